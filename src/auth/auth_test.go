package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hashed := HashPassword("correct horse battery staple")
	assert.Equal(t, Argon2id, hashed.Algorithm)

	parsed, err := ParsePasswordString(hashed.String())
	require.Nil(t, err)
	assert.Equal(t, hashed, parsed)

	ok, err := CheckPassword("correct horse battery staple", parsed)
	assert.Nil(t, err)
	assert.True(t, ok)

	ok, err = CheckPasswordString("wrong password", hashed.String())
	assert.Nil(t, err)
	assert.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	a := HashPassword("hunter22")
	b := HashPassword("hunter22")
	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestParseArgon2idConfig(t *testing.T) {
	cfg, err := ParseArgon2idConfig("t=1,m=40960,p=1,l=64")
	require.Nil(t, err)
	assert.Equal(t, Argon2idConfig{Time: 1, Memory: 40960, Threads: 1, KeyLength: 64}, cfg)
	assert.Equal(t, "t=1,m=40960,p=1,l=64", cfg.String())

	_, err = ParseArgon2idConfig("t=1,m=40960")
	assert.NotNil(t, err)
	_, err = ParseArgon2idConfig("t=1,m=40960,p=1000,l=64")
	assert.NotNil(t, err)
}

func TestBadPasswordStrings(t *testing.T) {
	_, err := ParsePasswordString("not a hash")
	assert.NotNil(t, err)

	_, err = CheckPasswordString("pw", "md5$x$y$z")
	assert.NotNil(t, err)
}

var testAuthConfig = config.AuthConfig{
	JwtSecret:          "test-secret",
	TokenLifetime:      24 * time.Hour,
	RememberMeLifetime: 30 * 24 * time.Hour,
}

func TestTokenRoundTrip(t *testing.T) {
	user := &models.User{
		ID:       uuid.New(),
		Username: "ada",
		UserType: models.UserTypeWriter,
	}

	now := time.Now()
	token, expiresAt, err := issueToken(testAuthConfig, user, false, now)
	require.Nil(t, err)
	assert.Equal(t, now.Add(24*time.Hour), expiresAt)

	identity, err := parseToken(testAuthConfig, token)
	require.Nil(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, "ada", identity.Username)
	assert.Equal(t, models.UserTypeWriter, identity.UserType)

	_, expiresAt, err = issueToken(testAuthConfig, user, true, now)
	require.Nil(t, err)
	assert.Equal(t, now.Add(30*24*time.Hour), expiresAt)
}

func TestInvalidTokens(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "ada", UserType: models.UserTypeFree}

	t.Run("expired", func(t *testing.T) {
		token, _, err := issueToken(testAuthConfig, user, false, time.Now().Add(-48*time.Hour))
		require.Nil(t, err)
		_, err = parseToken(testAuthConfig, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := issueToken(config.AuthConfig{JwtSecret: "other", TokenLifetime: time.Hour}, user, false, time.Now())
		require.Nil(t, err)
		_, err = parseToken(testAuthConfig, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("tampered", func(t *testing.T) {
		token, _, err := issueToken(testAuthConfig, user, false, time.Now())
		require.Nil(t, err)
		parts := strings.Split(token, ".")
		parts[1] = parts[1] + "x"
		_, err = parseToken(testAuthConfig, strings.Join(parts, "."))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := parseToken(testAuthConfig, "garbage")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
