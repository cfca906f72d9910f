package trace

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"logsmith/src/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$"))

	ok, err := VerifyPassword("s3cret", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("s3cret", "$2a$10$bcrypt")
	assert.Error(t, err)
}

func TestAuthenticatorNone(t *testing.T) {
	a, err := NewAuthenticator(&config.TraceAuthOptions{Type: "none"}, newTestLogger())
	require.NoError(t, err)
	assert.Nil(t, a)

	id, err := a.AuthenticateHTTP("", "10.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, "none", id.Method)
}

func TestAuthenticatorBasic(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)

	a, err := NewAuthenticator(&config.TraceAuthOptions{
		Type:  "basic",
		Realm: "ops",
		Users: []config.BasicUser{{Username: "alice", PasswordHash: hash}},
	}, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, `Basic realm="ops"`, a.Challenge())

	t.Run("Valid", func(t *testing.T) {
		id, err := a.AuthenticateHTTP(basicHeader("alice", "pw"), "10.0.0.1:5000")
		require.NoError(t, err)
		assert.Equal(t, "alice", id.Username)
		assert.Equal(t, "basic", id.Method)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := a.AuthenticateHTTP(basicHeader("alice", "nope"), "10.0.0.2:5000")
		assert.Error(t, err)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := a.AuthenticateHTTP(basicHeader("mallory", "pw"), "10.0.0.3:5000")
		assert.Error(t, err)
	})

	t.Run("BlockedAfterFailures", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := a.AuthenticateHTTP(basicHeader("alice", "nope"), "10.0.0.9:5000")
			require.Error(t, err)
		}
		_, err := a.AuthenticateHTTP(basicHeader("alice", "pw"), "10.0.0.9:5001")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too many failed attempts")
	})
}

func TestAuthenticatorBearer(t *testing.T) {
	key := "signing-key"
	a, err := NewAuthenticator(&config.TraceAuthOptions{
		Type:          "bearer",
		Tokens:        []string{"static-token"},
		JWTSigningKey: key,
		JWTIssuer:     "ops",
	}, newTestLogger())
	require.NoError(t, err)

	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return "Bearer " + s
	}

	t.Run("StaticToken", func(t *testing.T) {
		id, err := a.AuthenticateHTTP("Bearer static-token", "10.1.0.1:1")
		require.NoError(t, err)
		assert.Equal(t, "bearer", id.Method)
	})

	t.Run("ValidJWT", func(t *testing.T) {
		id, err := a.AuthenticateHTTP(sign(jwt.MapClaims{
			"sub": "bob",
			"iss": "ops",
			"exp": time.Now().Add(time.Hour).Unix(),
		}), "10.1.0.2:1")
		require.NoError(t, err)
		assert.Equal(t, "bob", id.Username)
		assert.Equal(t, "jwt", id.Method)
	})

	t.Run("ExpiredJWT", func(t *testing.T) {
		_, err := a.AuthenticateHTTP(sign(jwt.MapClaims{
			"iss": "ops",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}), "10.1.0.3:1")
		assert.Error(t, err)
	})

	t.Run("MissingExpiry", func(t *testing.T) {
		_, err := a.AuthenticateHTTP(sign(jwt.MapClaims{"iss": "ops"}), "10.1.0.4:1")
		assert.Error(t, err)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		_, err := a.AuthenticateHTTP(sign(jwt.MapClaims{
			"iss": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		}), "10.1.0.5:1")
		assert.Error(t, err)
	})

	t.Run("NotBearer", func(t *testing.T) {
		_, err := a.AuthenticateHTTP("Token abc", "10.1.0.6:1")
		assert.Error(t, err)
	})
}

func TestAuthenticatorInvalidType(t *testing.T) {
	_, err := NewAuthenticator(&config.TraceAuthOptions{Type: "mtls"}, newTestLogger())
	assert.Error(t, err)
}
