package website

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/arsyadal/fastblog/src/assets"
	"github.com/arsyadal/fastblog/src/blogdata"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func FourOhFour(c *RequestContext) ResponseData {
	if len(c.otherMethods) > 0 {
		res := c.JsonError(http.StatusMethodNotAllowed, "method not allowed", nil)
		res.Header().Set("Allow", strings.Join(c.otherMethods, ", "))
		return res
	}
	return c.JsonError(http.StatusNotFound, "not found", nil)
}

// A SafeError can be used to wrap another error and explicitly provide
// an error message that is safe to show to a user. This allows the original
// error to easily be logged and for servers to consistently return errors
// in a standard format, without having to worry about leaking sensitive
// info (assuming you use the right middleware!).
type SafeError struct {
	Wrapped error
	Msg     string
}

func NewSafeError(err error, msg string, args ...interface{}) error {
	return &SafeError{
		Wrapped: err,
		Msg:     fmt.Sprintf(msg, args...),
	}
}

func (s *SafeError) Error() string {
	return s.Msg
}

func (s *SafeError) Unwrap() error {
	return s.Wrapped
}

// A JSON error body with no logging. For problems that are the caller's fault.
func (c *RequestContext) JsonError(status int, msg string, fields map[string]string) ResponseData {
	res := ResponseData{StatusCode: status}
	res.WriteJson(errorBody{Error: msg, Fields: fields}, c.Perf)
	return res
}

// A generic JSON error body. The errors are attached to the response and get
// logged by logContextErrorsMiddleware.
func (c *RequestContext) ErrorResponse(status int, errs ...error) ResponseData {
	msg := http.StatusText(status)
	for _, err := range errs {
		var safe *SafeError
		if errors.As(err, &safe) {
			msg = safe.Msg
			break
		}
	}

	res := c.JsonError(status, msg, nil)
	res.Errors = errs
	return res
}

/*
Turns an error from the data layer into a response.

NotFound and Unauthorized are both 404, so that nobody can learn about
another author's drafts by poking at ids.
*/
func (c *RequestContext) DataError(err error) ResponseData {
	var validation *blogdata.ValidationError
	var badUpload *assets.InvalidUploadError

	switch {
	case errors.Is(err, blogdata.ErrNotFound), errors.Is(err, blogdata.ErrUnauthorized):
		return FourOhFour(c)
	case errors.As(err, &validation):
		return c.JsonError(http.StatusUnprocessableEntity, "validation failed", validation.Fields)
	case errors.As(err, &badUpload):
		return c.JsonError(http.StatusUnprocessableEntity, "invalid upload", map[string]string{"file": badUpload.Error()})
	case errors.Is(err, assets.ErrUploadsDisabled):
		return c.JsonError(http.StatusServiceUnavailable, "uploads are not configured", nil)
	case errors.Is(err, blogdata.ErrUserExists):
		return c.JsonError(http.StatusConflict, "a user with that email or username already exists", nil)
	case errors.Is(err, blogdata.ErrInvalidCredentials):
		return c.JsonError(http.StatusUnauthorized, "invalid credentials", nil)
	default:
		return c.ErrorResponse(http.StatusInternalServerError, err)
	}
}
