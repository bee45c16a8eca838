package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSHA256(t *testing.T) {
	t.Parallel()

	h1 := SHA256([]byte("hello"), []byte("world"))
	h2 := SHA256([]byte("helloworld"))
	require.Equal(t, h2, h1, "SHA256 should hash the concatenation of parts")
	require.Len(t, h1, 32)
}

func TestHMACSHA256(t *testing.T) {
	t.Parallel()

	mac1 := HMACSHA256([]byte("key"), []byte("data"))
	mac2 := HMACSHA256([]byte("key"), []byte("data"))
	require.Equal(t, mac1, mac2, "HMAC should be deterministic")

	mac3 := HMACSHA256([]byte("other-key"), []byte("data"))
	require.NotEqual(t, mac1, mac3)
}

func TestHKDFKey(t *testing.T) {
	t.Parallel()

	secret := []byte("shared-secret-material")
	salt := []byte("salt-bytes")
	info := []byte("info-bytes")

	key1, err := HKDFKey(secret, salt, info, 16)
	require.NoError(t, err)
	require.Len(t, key1, 16)

	key2, err := HKDFKey(secret, salt, info, 16)
	require.NoError(t, err)
	require.Equal(t, key1, key2, "HKDF should be deterministic for identical inputs")

	key3, err := HKDFKey(secret, salt, []byte("different-info"), 16)
	require.NoError(t, err)
	require.NotEqual(t, key1, key3)
}

func TestRandomBytes(t *testing.T) {
	t.Parallel()

	b1, err := RandomBytes(32)
	require.NoError(t, err)
	require.Len(t, b1, 32)

	b2, err := RandomBytes(32)
	require.NoError(t, err)
	require.NotEqual(t, b1, b2)
}

func TestRandomBase64(t *testing.T) {
	t.Parallel()

	s, err := RandomBase64(40)
	require.NoError(t, err)
	require.Len(t, s, 40)

	s2, err := RandomBase64(40)
	require.NoError(t, err)
	require.NotEqual(t, s, s2)
}

func TestPadHexString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0a", PadHexString("a"))
	require.Equal(t, "ab", PadHexString("ab"))
	require.Equal(t, "00ff", PadHexString("0ff"))
}
