package tokencache

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/nickarocho/cogsrp/pkg/idptoken"
	"github.com/nickarocho/cogsrp/pkg/session"
)

func testSession(t *testing.T) session.Session {
	t.Helper()

	iat := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	claims := jwt.MapClaims{
		"sub": "user-1",
		"iat": jwt.NewNumericDate(iat),
		"exp": jwt.NewNumericDate(iat.Add(time.Hour)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := tok.SignedString([]byte("k"))
	require.NoError(t, err)

	s, err := session.New(idptoken.NewIDToken(raw), idptoken.NewAccessToken(raw), idptoken.NewRefreshToken("refresh-1"), iat)
	require.NoError(t, err)
	return s
}

func TestCache_SaveAndLoad(t *testing.T) {
	t.Parallel()

	c := New("client-abc", nil)
	s := testSession(t)

	require.NoError(t, c.Save("alice", s))

	loaded, ok, err := c.Load("alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s.IDToken.JWT(), loaded.IDToken.JWT())
	require.Equal(t, s.AccessToken.JWT(), loaded.AccessToken.JWT())
	require.Equal(t, s.RefreshToken.String(), loaded.RefreshToken.String())
	require.Equal(t, s.ClockDrift, loaded.ClockDrift)
}

func TestCache_Load_MissReturnsFalseNotError(t *testing.T) {
	t.Parallel()

	c := New("client-abc", nil)
	_, ok, err := c.Load("nobody")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_KeysAreNamespacedByClientAndUsername(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	c := New("client-abc", storage)
	c.Save("alice", testSession(t))

	_, ok := storage.GetItem("CognitoIdentityServiceProvider.client-abc.alice.idToken")
	require.True(t, ok)
}

func TestCache_SetLastAuthUser(t *testing.T) {
	t.Parallel()

	c := New("client-abc", nil)

	_, ok := c.LastAuthUser()
	require.False(t, ok)

	c.Save("bob", testSession(t))

	last, ok := c.LastAuthUser()
	require.True(t, ok)
	require.Equal(t, "bob", last)
}

func TestCache_Clear_RemovesTokensOnlyAndOnlyForThatUser(t *testing.T) {
	t.Parallel()

	c := New("client-abc", nil)
	c.Save("alice", testSession(t))
	c.Save("bob", testSession(t))
	c.SaveDevice("alice", "device-key-1", "group-key-1", "random-pw-1")

	c.Clear("alice")

	_, ok, err := c.Load("alice")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = c.Load("bob")
	require.NoError(t, err)
	require.True(t, ok, "clearing one user must not touch another user's cache")

	_, _, _, ok = c.LoadDevice("alice")
	require.True(t, ok, "clearing tokens must not clear a remembered device")
}

func TestCache_ClearDevice_RemovesDeviceFieldsOnlyAndLeavesTokens(t *testing.T) {
	t.Parallel()

	c := New("client-abc", nil)
	c.Save("alice", testSession(t))
	c.SaveDevice("alice", "device-key-1", "group-key-1", "random-pw-1")

	c.ClearDevice("alice")

	_, _, _, ok := c.LoadDevice("alice")
	require.False(t, ok)

	_, ok, err := c.Load("alice")
	require.NoError(t, err)
	require.True(t, ok, "clearing a device must not clear session tokens")
}

func TestCache_DeviceRoundTrip(t *testing.T) {
	t.Parallel()

	c := New("client-abc", nil)

	_, _, _, ok := c.LoadDevice("alice")
	require.False(t, ok)

	c.SaveDevice("alice", "device-key-1", "group-key-1", "random-pw-1")

	deviceKey, deviceGroupKey, randomPassword, ok := c.LoadDevice("alice")
	require.True(t, ok)
	require.Equal(t, "device-key-1", deviceKey)
	require.Equal(t, "group-key-1", deviceGroupKey)
	require.Equal(t, "random-pw-1", randomPassword)
}

func TestCache_UserAttributes(t *testing.T) {
	t.Parallel()

	c := New("client-abc", nil)
	c.SaveUserAttribute("alice", "email", "alice@example.com")
	c.SaveUserAttribute("alice", "phone_number", "+15555550100")

	attrs := c.UserAttributes("alice", []string{"email", "phone_number", "unset"})
	require.Equal(t, "alice@example.com", attrs["email"])
	require.Equal(t, "+15555550100", attrs["phone_number"])
	require.NotContains(t, attrs, "unset")
}

func TestMemoryStorage_Clear(t *testing.T) {
	t.Parallel()

	m := NewMemoryStorage()
	m.SetItem("a", "1")
	m.Clear()

	_, ok := m.GetItem("a")
	require.False(t, ok)
}

func TestEncryptedStorage_RoundTrip(t *testing.T) {
	t.Parallel()

	salt := []byte("fixed-test-salt-16b")
	enc := NewEncryptedStorage(NewMemoryStorage(), "correct passphrase", salt)

	enc.SetItem("k", "super-secret-token")

	v, ok := enc.GetItem("k")
	require.True(t, ok)
	require.Equal(t, "super-secret-token", v)
}

func TestEncryptedStorage_UnderlyingValueIsNotPlaintext(t *testing.T) {
	t.Parallel()

	salt := []byte("fixed-test-salt-16b")
	inner := NewMemoryStorage()
	enc := NewEncryptedStorage(inner, "correct passphrase", salt)

	enc.SetItem("k", "super-secret-token")

	raw, ok := inner.GetItem("k")
	require.True(t, ok)
	require.NotContains(t, raw, "super-secret-token")
}

func TestEncryptedStorage_WrongPassphraseFailsToDecrypt(t *testing.T) {
	t.Parallel()

	salt := []byte("fixed-test-salt-16b")
	inner := NewMemoryStorage()
	writer := NewEncryptedStorage(inner, "correct passphrase", salt)
	writer.SetItem("k", "super-secret-token")

	reader := NewEncryptedStorage(inner, "wrong passphrase", salt)
	_, ok := reader.GetItem("k")
	require.False(t, ok)
}

func TestEncryptedStorage_CacheOverEncryptedStorage(t *testing.T) {
	t.Parallel()

	salt := []byte("fixed-test-salt-16b")
	enc := NewEncryptedStorage(NewMemoryStorage(), "passphrase", salt)
	c := New("client-abc", enc)

	s := testSession(t)
	require.NoError(t, c.Save("alice", s))

	loaded, ok, err := c.Load("alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s.IDToken.JWT(), loaded.IDToken.JWT())
}
