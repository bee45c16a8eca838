package idptoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("any-key-the-client-never-checks"))
	require.NoError(t, err)
	return s
}

func TestIDToken_Payload(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := signTestToken(t, jwt.MapClaims{
		"sub":              "user-123",
		"cognito:username": "alice",
		"iat":              jwt.NewNumericDate(now),
		"exp":              jwt.NewNumericDate(now.Add(time.Hour)),
	})

	idt := NewIDToken(raw)
	require.Equal(t, raw, idt.JWT())

	sub, err := idt.Subject()
	require.NoError(t, err)
	require.Equal(t, "user-123", sub)

	username, err := idt.Username()
	require.NoError(t, err)
	require.Equal(t, "alice", username)

	exp, err := idt.Expiration()
	require.NoError(t, err)
	require.True(t, exp.Equal(now.Add(time.Hour)))

	iat, err := idt.IssuedAt()
	require.NoError(t, err)
	require.True(t, iat.Equal(now))
}

func TestIDToken_UsernameFallback(t *testing.T) {
	t.Parallel()

	raw := signTestToken(t, jwt.MapClaims{"username": "bob", "sub": "s"})
	idt := NewIDToken(raw)

	username, err := idt.Username()
	require.NoError(t, err)
	require.Equal(t, "bob", username)
}

func TestIDToken_MissingUsername(t *testing.T) {
	t.Parallel()

	raw := signTestToken(t, jwt.MapClaims{"sub": "s"})
	idt := NewIDToken(raw)

	_, err := idt.Username()
	require.Error(t, err)
}

func TestPayload_EmptyToken(t *testing.T) {
	t.Parallel()

	_, err := Payload("")
	require.Error(t, err)
}

func TestPayload_MalformedToken(t *testing.T) {
	t.Parallel()

	_, err := Payload("not-a-jwt")
	require.Error(t, err)
}

func TestAccessToken_Payload(t *testing.T) {
	t.Parallel()

	raw := signTestToken(t, jwt.MapClaims{"sub": "user-123", "scope": "aws.cognito.signin.user.admin"})
	at := NewAccessToken(raw)

	sub, err := at.Subject()
	require.NoError(t, err)
	require.Equal(t, "user-123", sub)
}

func TestRefreshToken_Opaque(t *testing.T) {
	t.Parallel()

	rt := NewRefreshToken("opaque-refresh-value")
	require.Equal(t, "opaque-refresh-value", rt.String())
	require.False(t, rt.IsZero())

	var zero RefreshToken
	require.True(t, zero.IsZero())
}

func TestIDToken_NoSignatureVerification(t *testing.T) {
	t.Parallel()

	// A token "signed" with a key the client never sees still decodes: this
	// package deliberately never checks signatures.
	raw := signTestToken(t, jwt.MapClaims{"sub": "whoever"})
	idt := NewIDToken(raw)

	sub, err := idt.Subject()
	require.NoError(t, err)
	require.Equal(t, "whoever", sub)
}
