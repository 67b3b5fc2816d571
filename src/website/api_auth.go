package website

import (
	"net/http"
	"time"

	"github.com/arsyadal/fastblog/src/auth"
	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/models"
)

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      apiUser   `json:"user"`
}

func respondWithToken(c *RequestContext, status int, user *models.User, rememberMe bool) ResponseData {
	token, expiresAt, err := auth.IssueToken(user, rememberMe)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, err)
	}
	return c.JsonResponse(status, authResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      newApiUser(user),
	})
}

func Register(c *RequestContext) ResponseData {
	var body struct {
		Email       string  `json:"email"`
		Username    string  `json:"username"`
		Password    string  `json:"password"`
		DisplayName *string `json:"display_name"`
	}
	if res, ok := c.ReadJson(&body); !ok {
		return res
	}

	user, err := blogdata.Register(c, c.Conn, blogdata.RegisterInput{
		Email:       body.Email,
		Username:    body.Username,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		return c.DataError(err)
	}

	c.Logger.Info().Str("username", user.Username).Msg("new user registered")
	return respondWithToken(c, http.StatusCreated, user, false)
}

func Login(c *RequestContext) ResponseData {
	var body struct {
		Login      string `json:"login"`
		Email      string `json:"email"`
		Username   string `json:"username"`
		Password   string `json:"password"`
		RememberMe bool   `json:"remember_me"`
	}
	if res, ok := c.ReadJson(&body); !ok {
		return res
	}

	login := body.Login
	if login == "" {
		login = body.Email
	}
	if login == "" {
		login = body.Username
	}

	user, err := blogdata.Authenticate(c, c.Conn, login, body.Password)
	if err != nil {
		return c.DataError(err)
	}
	return respondWithToken(c, http.StatusOK, user, body.RememberMe)
}

func Me(c *RequestContext) ResponseData {
	user, err := blogdata.FetchUser(c, c.Conn, c.CurrentUser.UserID)
	if err != nil {
		// A valid token for a user who no longer exists.
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, newApiUser(user))
}
