package testidp

import (
	"fmt"
	"math/big"

	"github.com/nickarocho/cogsrp/pkg/bignum"
	"github.com/nickarocho/cogsrp/pkg/cryptox"
)

// hkdfInfo must match pkg/srp's label exactly: both sides expand the same
// shared secret into the same MAC key.
var hkdfInfo = []byte("Caldera Derived Key\x01")

func littleK() *big.Int {
	byteLen := bignum.ByteLen()
	digest := cryptox.SHA256(bignum.PadHex(bignum.N(), byteLen), bignum.PadHex(bignum.G(), byteLen))
	return new(big.Int).SetBytes(digest)
}

func computeU(A, B *big.Int) *big.Int {
	byteLen := bignum.ByteLen()
	digest := cryptox.SHA256(bignum.PadHex(A, byteLen), bignum.PadHex(B, byteLen))
	return new(big.Int).SetBytes(digest)
}

func computeX(identity string, salt *big.Int) *big.Int {
	byteLen := bignum.ByteLen()
	innerHash := cryptox.SHA256([]byte(identity))
	digest := cryptox.SHA256(bignum.PadHex(salt, byteLen), innerHash)
	return new(big.Int).SetBytes(digest)
}

// serverBValue samples the server secret exponent b and computes the public
// value B = k*v + g^b (mod N), the counterpart to a client's (a, A).
func serverBValue(verifier *big.Int) (b, B *big.Int, err error) {
	N := bignum.N()
	raw, err := cryptox.RandomBytes(128)
	if err != nil {
		return nil, nil, fmt.Errorf("testidp: sampling b: %w", err)
	}
	b = new(big.Int).Mod(new(big.Int).SetBytes(raw), N)

	k := littleK()
	kv := new(big.Int).Mod(new(big.Int).Mul(k, verifier), N)
	gb := bignum.ModPow(bignum.G(), b, N)
	B = new(big.Int).Mod(new(big.Int).Add(kv, gb), N)
	return b, B, nil
}

// serverAuthenticationKey derives the same 16-byte MAC key a client derives
// via pkg/srp's PasswordAuthenticationKey/DeviceAuthenticationKey, computed
// from the server's side of the exchange: S = (A * v^u)^b mod N.
func serverAuthenticationKey(A, B, b, verifier *big.Int) ([]byte, error) {
	N := bignum.N()
	byteLen := bignum.ByteLen()

	u := computeU(A, B)
	if u.Sign() == 0 {
		return nil, fmt.Errorf("testidp: u = 0")
	}

	vu := bignum.ModPow(verifier, u, N)
	base := new(big.Int).Mod(new(big.Int).Mul(A, vu), N)
	S := bignum.ModPow(base, b, N)

	sBytes := bignum.PadHex(S, byteLen)
	uBytes := bignum.PadHex(u, byteLen)
	return cryptox.HKDFKey(sBytes, uBytes, hkdfInfo, 16)
}

// verifierFromPassword computes the (salt, verifier) pair a real identity
// provider derives at sign-up time, over the same "poolShortId:identity:secret"
// string pkg/srp's client-side GenerateVerifier hashes.
func verifierFromPassword(poolShortID, identity, secret string) (salt, verifier *big.Int, err error) {
	saltBytes, err := cryptox.RandomBytes(16)
	if err != nil {
		return nil, nil, fmt.Errorf("testidp: generating salt: %w", err)
	}
	salt = new(big.Int).SetBytes(saltBytes)

	usernamePassword := poolShortID + ":" + identity + ":" + secret
	x := computeX(usernamePassword, salt)
	verifier = bignum.ModPow(bignum.G(), x, bignum.N())
	return salt, verifier, nil
}
