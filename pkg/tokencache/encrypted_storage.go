package tokencache

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/nickarocho/cogsrp/pkg/cryptox"
)

// argon2 parameters chosen for interactive, local key derivation rather than
// server-side password storage: this wraps a caller's own passphrase, not an
// attacker-reachable login form.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// EncryptedStorage wraps a Storage and transparently AES-GCM-seals every
// value under a key derived from a caller-supplied passphrase, so tokens
// never touch the underlying store in plaintext. It is a thin optional
// layer: the core Cache never depends on it, and any Storage implementation
// can be wrapped this way.
type EncryptedStorage struct {
	inner Storage
	key   []byte
	salt  []byte
}

// NewEncryptedStorage derives a 32-byte AES-256 key from passphrase and salt
// via argon2id, and returns a Storage that seals values before delegating to
// inner. The same salt must be supplied on every run to decrypt values
// written by a previous one.
func NewEncryptedStorage(inner Storage, passphrase string, salt []byte) *EncryptedStorage {
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return &EncryptedStorage{inner: inner, key: key, salt: salt}
}

func (e *EncryptedStorage) seal(plaintext string) (string, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("tokencache: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("tokencache: building GCM: %w", err)
	}

	nonce, err := cryptox.RandomBytes(gcm.NonceSize())
	if err != nil {
		return "", fmt.Errorf("tokencache: generating nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *EncryptedStorage) open(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("tokencache: decoding ciphertext: %w", err)
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("tokencache: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("tokencache: building GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("tokencache: ciphertext shorter than nonce")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("tokencache: opening ciphertext: %w", err)
	}
	return string(plaintext), nil
}

// GetItem decrypts the value inner has stored under key, if any.
func (e *EncryptedStorage) GetItem(key string) (string, bool) {
	raw, ok := e.inner.GetItem(key)
	if !ok {
		return "", false
	}
	plaintext, err := e.open(raw)
	if err != nil {
		return "", false
	}
	return plaintext, true
}

// SetItem seals value and stores it under key in inner.
func (e *EncryptedStorage) SetItem(key, value string) {
	sealed, err := e.seal(value)
	if err != nil {
		return
	}
	e.inner.SetItem(key, sealed)
}

// RemoveItem deletes key from inner.
func (e *EncryptedStorage) RemoveItem(key string) { e.inner.RemoveItem(key) }

// Clear deletes every key from inner.
func (e *EncryptedStorage) Clear() { e.inner.Clear() }
