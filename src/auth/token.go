package auth

import (
	"errors"
	"time"

	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by a bearer token. The user id lives in the standard "sub"
// claim.
type Claims struct {
	Username string          `json:"username"`
	UserType models.UserType `json:"user_type"`
	jwt.RegisteredClaims
}

// Identity is who a valid token says the caller is.
type Identity struct {
	UserID   uuid.UUID
	Username string
	UserType models.UserType
}

var ErrInvalidToken = errors.New("invalid token")

func IssueToken(user *models.User, rememberMe bool) (string, time.Time, error) {
	return issueToken(config.Config.Auth, user, rememberMe, time.Now())
}

func issueToken(cfg config.AuthConfig, user *models.User, rememberMe bool, now time.Time) (string, time.Time, error) {
	lifetime := cfg.TokenLifetime
	if rememberMe {
		lifetime = cfg.RememberMeLifetime
	}
	expiresAt := now.Add(lifetime)

	claims := &Claims{
		Username: user.Username,
		UserType: user.UserType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JwtSecret))
	if err != nil {
		return "", time.Time{}, oops.New(err, "failed to sign token")
	}
	return signed, expiresAt, nil
}

// ParseToken checks the signature and expiry of a bearer token. Any problem
// with the token itself comes back as ErrInvalidToken.
func ParseToken(tokenString string) (Identity, error) {
	return parseToken(config.Config.Auth, tokenString)
}

func parseToken(cfg config.AuthConfig, tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(cfg.JwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID:   userID,
		Username: claims.Username,
		UserType: claims.UserType,
	}, nil
}
