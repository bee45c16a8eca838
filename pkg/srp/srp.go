// Package srp implements the client half of the SRP-6a exchange used by the
// authentication state machine: deriving the shared password authentication
// key from a server challenge, and generating verifiers for new
// registrations and remembered devices.
//
// The math here must be bit-identical with what the identity provider
// computes on the other end — see the exhaustive pad-hex vectors in
// srp_test.go before touching anything in this file.
package srp

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nickarocho/cogsrp/pkg/bignum"
	"github.com/nickarocho/cogsrp/pkg/cryptox"
)

// hkdfInfo is the fixed HKDF "info" label mixed into every derived
// authentication key. It has no secrecy value; it exists so the client and
// the identity provider expand the same PRK into the same output.
var hkdfInfo = []byte("Caldera Derived Key\x01")

// ErrCryptoInvariant reports a protocol-level SRP failure: an
// attacker-influenceable value landed on a degenerate case the exchange
// cannot recover from. The caller must restart the exchange with a fresh A.
var ErrCryptoInvariant = errors.New("srp: crypto invariant violated")

// Helper drives the SRP-6a math for one identity pool. PoolShortID is the
// pool identifier without its region prefix, mixed into the password hash
// exactly like the identity provider does.
type Helper struct {
	PoolShortID string
}

// LargeAValue samples a fresh client secret exponent a and returns it
// alongside the corresponding public value A = g^a mod N. It resamples if
// A happens to reduce to zero mod N, which would leak no information to an
// eavesdropper but must never be sent.
func (h Helper) LargeAValue() (a, A *big.Int, err error) {
	N := bignum.N()
	for {
		raw, err := cryptox.RandomBytes(128)
		if err != nil {
			return nil, nil, fmt.Errorf("srp: sampling a: %w", err)
		}
		a = new(big.Int).SetBytes(raw)
		a.Mod(a, N)
		if a.Sign() == 0 {
			continue
		}
		A = bignum.ModPow(bignum.G(), a, N)
		if new(big.Int).Mod(A, N).Sign() != 0 {
			return a, A, nil
		}
	}
}

// littleK computes k = H(PAD(N) || PAD(g)), the SRP-6a multiplier.
func littleK() *big.Int {
	byteLen := bignum.ByteLen()
	digest := cryptox.SHA256(bignum.PadHex(bignum.N(), byteLen), bignum.PadHex(bignum.G(), byteLen))
	return new(big.Int).SetBytes(digest)
}

// computeU computes u = H(PAD(A) || PAD(B)).
func computeU(A, B *big.Int) *big.Int {
	byteLen := bignum.ByteLen()
	digest := cryptox.SHA256(bignum.PadHex(A, byteLen), bignum.PadHex(B, byteLen))
	return new(big.Int).SetBytes(digest)
}

// computeX computes x = H(PAD(salt) || H(usernamePassword)) as a big
// integer, per §4.1 step 4.
func computeX(usernamePassword string, salt *big.Int) *big.Int {
	byteLen := bignum.ByteLen()
	innerHash := cryptox.SHA256([]byte(usernamePassword))
	digest := cryptox.SHA256(bignum.PadHex(salt, byteLen), innerHash)
	return new(big.Int).SetBytes(digest)
}

// computeKey implements §4.1's get_password_authentication_key steps 1–6
// for an arbitrary "usernamePassword" identity string, shared by both the
// normal password flow and device SRP (which substitutes the device group
// key and cached random password for username and password).
func computeKey(usernamePassword string, a, A, B, salt *big.Int) ([]byte, error) {
	N := bignum.N()
	byteLen := bignum.ByteLen()

	if new(big.Int).Mod(B, N).Sign() == 0 {
		return nil, fmt.Errorf("%w: B mod N = 0", ErrCryptoInvariant)
	}

	u := computeU(A, B)
	if u.Sign() == 0 {
		return nil, fmt.Errorf("%w: u = 0", ErrCryptoInvariant)
	}

	x := computeX(usernamePassword, salt)
	k := littleK()

	gx := bignum.ModPow(bignum.G(), x, N)
	kgx := new(big.Int).Mod(new(big.Int).Mul(k, gx), N)

	base := new(big.Int).Sub(B, kgx)
	base.Mod(base, N)

	exp := new(big.Int).Add(a, new(big.Int).Mul(u, x))

	S := bignum.ModPow(base, exp, N)

	sBytes := bignum.PadHex(S, byteLen)
	uBytes := bignum.PadHex(u, byteLen)

	return cryptox.HKDFKey(sBytes, uBytes, hkdfInfo, 16)
}

// PasswordAuthenticationKey derives the 16-byte MAC key for a
// PASSWORD_VERIFIER challenge response, from the plaintext password, the
// server's B and salt, and the client's own (a, A) generated earlier by
// LargeAValue.
func (h Helper) PasswordAuthenticationKey(username, password string, a, A, B, salt *big.Int) ([]byte, error) {
	usernamePassword := h.PoolShortID + ":" + username + ":" + password
	return computeKey(usernamePassword, a, A, B, salt)
}

// DeviceAuthenticationKey derives the same key for a DEVICE_PASSWORD_VERIFIER
// challenge response, substituting the device group key and the cached
// device random password for username and password.
func (h Helper) DeviceAuthenticationKey(deviceGroupKey, randomPassword string, a, A, B, salt *big.Int) ([]byte, error) {
	usernamePassword := h.PoolShortID + ":" + deviceGroupKey + ":" + randomPassword
	return computeKey(usernamePassword, a, A, B, salt)
}

// GenerateHashDevice produces the salt, verifier, and random password used
// to register a new device: a fresh 40-character random password is hashed
// under a fresh 16-byte salt to compute x, and the verifier v = g^x mod N.
func (h Helper) GenerateHashDevice(deviceGroupKey, deviceKey string) (salt, verifier *big.Int, randomPassword string, err error) {
	randomPassword, err = cryptox.RandomBase64(40)
	if err != nil {
		return nil, nil, "", fmt.Errorf("srp: generating device password: %w", err)
	}

	saltBytes, err := cryptox.RandomBytes(16)
	if err != nil {
		return nil, nil, "", fmt.Errorf("srp: generating device salt: %w", err)
	}
	salt = new(big.Int).SetBytes(saltBytes)

	usernamePassword := h.PoolShortID + ":" + deviceGroupKey + ":" + randomPassword
	x := computeX(usernamePassword, salt)
	verifier = bignum.ModPow(bignum.G(), x, bignum.N())

	return salt, verifier, randomPassword, nil
}

// GenerateVerifier produces the salt and verifier for a brand new
// registration: x = H(PAD(salt) || H(poolShortId:username:password)),
// v = g^x mod N. This is the supplemental sign-up-time counterpart to
// PasswordAuthenticationKey, grounded in the same "salt then hash then
// modexp" shape used by device registration above.
func (h Helper) GenerateVerifier(username, password string) (salt, verifier *big.Int, err error) {
	saltBytes, err := cryptox.RandomBytes(16)
	if err != nil {
		return nil, nil, fmt.Errorf("srp: generating verifier salt: %w", err)
	}
	salt = new(big.Int).SetBytes(saltBytes)

	usernamePassword := h.PoolShortID + ":" + username + ":" + password
	x := computeX(usernamePassword, salt)
	verifier = bignum.ModPow(bignum.G(), x, bignum.N())

	return salt, verifier, nil
}
