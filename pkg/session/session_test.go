package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/nickarocho/cogsrp/pkg/idptoken"
)

func signToken(t *testing.T, iat, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "user-1",
		"iat": jwt.NewNumericDate(iat),
		"exp": jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestNew_ComputesClockDrift(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idRaw := signToken(t, issuedAt, issuedAt.Add(time.Hour))
	accessRaw := signToken(t, issuedAt, issuedAt.Add(time.Hour))

	id := idptoken.NewIDToken(idRaw)
	access := idptoken.NewAccessToken(accessRaw)
	refresh := idptoken.NewRefreshToken("refresh-opaque")

	localNow := issuedAt.Add(5 * time.Second)

	s, err := New(id, access, refresh, localNow)
	require.NoError(t, err)
	require.Equal(t, int64(5), s.ClockDrift)
	require.Equal(t, refresh, s.RefreshToken)
}

func TestNew_InvalidIDToken(t *testing.T) {
	t.Parallel()

	_, err := New(idptoken.NewIDToken("not-a-jwt"), idptoken.NewAccessToken("x"), idptoken.RefreshToken{}, time.Now())
	require.Error(t, err)
}

func TestIsValid_TrueBeforeExpiry(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := issuedAt.Add(time.Hour)
	idRaw := signToken(t, issuedAt, exp)
	accessRaw := signToken(t, issuedAt, exp)

	s, err := New(idptoken.NewIDToken(idRaw), idptoken.NewAccessToken(accessRaw), idptoken.RefreshToken{}, issuedAt)
	require.NoError(t, err)

	require.True(t, s.IsValid(issuedAt.Add(30*time.Minute)))
}

func TestIsValid_FalseAfterExpiry(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := issuedAt.Add(time.Hour)
	idRaw := signToken(t, issuedAt, exp)
	accessRaw := signToken(t, issuedAt, exp)

	s, err := New(idptoken.NewIDToken(idRaw), idptoken.NewAccessToken(accessRaw), idptoken.RefreshToken{}, issuedAt)
	require.NoError(t, err)

	require.False(t, s.IsValid(issuedAt.Add(2*time.Hour)))
}

func TestIsValid_UsesEarlierOfTheTwoExpirations(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idRaw := signToken(t, issuedAt, issuedAt.Add(time.Hour))
	// Access token expires sooner than the id token.
	accessRaw := signToken(t, issuedAt, issuedAt.Add(10*time.Minute))

	s, err := New(idptoken.NewIDToken(idRaw), idptoken.NewAccessToken(accessRaw), idptoken.RefreshToken{}, issuedAt)
	require.NoError(t, err)

	require.True(t, s.IsValid(issuedAt.Add(5*time.Minute)))
	require.False(t, s.IsValid(issuedAt.Add(15*time.Minute)), "must expire at the access token's earlier expiry, not the id token's")
}

func TestIsValid_ClockDriftCorrectsForSkewedCaller(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := issuedAt.Add(time.Hour)
	idRaw := signToken(t, issuedAt, exp)
	accessRaw := signToken(t, issuedAt, exp)

	// The local clock was 10 minutes ahead of the identity provider's at
	// issuance, so ClockDrift = 600.
	localIssuance := issuedAt.Add(10 * time.Minute)
	s, err := New(idptoken.NewIDToken(idRaw), idptoken.NewAccessToken(accessRaw), idptoken.RefreshToken{}, localIssuance)
	require.NoError(t, err)
	require.Equal(t, int64(600), s.ClockDrift)

	// At local time exp+5m, the raw expiry has passed but the drift
	// correction pulls the effective threshold back before it.
	require.True(t, s.IsValid(exp.Add(5*time.Minute)))
}

func TestIsValid_MalformedTokenIsNeverValid(t *testing.T) {
	t.Parallel()

	s := Session{
		IDToken:     idptoken.NewIDToken("garbage"),
		AccessToken: idptoken.NewAccessToken("garbage"),
	}
	require.False(t, s.IsValid(time.Now()))
}
