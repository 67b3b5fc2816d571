package blogdata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// The thing doesn't exist, or the caller isn't allowed to know it does.
	ErrNotFound = errors.New("not found")
	// The thing exists but belongs to someone else.
	ErrUnauthorized = errors.New("not authorized")
	// A concurrent writer kept winning. Only returned after retries run out.
	ErrConflict = errors.New("conflict")

	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError collects per-field problems with caller input. Nothing is
// written when one is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// Shorthand for a single-field ValidationError.
func invalid(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}}
}
