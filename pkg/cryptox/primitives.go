package cryptox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SHA256 hashes the concatenation of parts with SHA-256.
func SHA256(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// HMACSHA256 computes an HMAC-SHA256 over data using key.
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// HKDFKey derives a symmetric key of length n from secret material using
// HMAC-based key derivation (RFC 5869): salt keys the extract step, info
// binds the expand step, secret is the input keying material.
func HKDFKey(secret, salt, info []byte, n int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, n)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("cryptox: hkdf expand: %w", err)
	}
	return key, nil
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("cryptox: random bytes: %w", err)
	}
	return buf, nil
}

// RandomBase64 returns a base64 (standard alphabet, padded) string built
// from enough random bytes to yield at least n characters, then truncated
// to exactly n. This matches the shape of a device SRP "random password".
func RandomBase64(n int) (string, error) {
	raw, err := RandomBytes((n*6 + 7) / 8)
	if err != nil {
		return "", err
	}
	s := base64.StdEncoding.EncodeToString(raw)
	if len(s) < n {
		return "", fmt.Errorf("cryptox: short random base64 output")
	}
	return s[:n], nil
}

// PadHexString zero-pads a hex string to even length. The SRP protocol is
// fragile to leading-zero handling: values with an odd number of hex digits
// must gain a leading zero nibble before they're decoded to bytes, or the
// high nibble gets silently dropped by callers that assume even length.
func PadHexString(s string) string {
	if len(s)%2 != 0 {
		return "0" + s
	}
	return s
}
