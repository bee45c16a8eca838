// Package bignum provides the fixed 3072-bit MODP group arithmetic that the
// SRP-6a exchange runs over: the RFC 5054 safe prime N, generator g=2, and
// the modular exponentiation and padding helpers built on top of them.
package bignum

import "math/big"

// n3072Hex is the RFC 5054 Appendix A 3072-bit MODP group prime.
const n3072Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
	"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
	"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
	"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
	"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
	"3995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D04507A33" +
	"A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7" +
	"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864" +
	"D87602733EC86A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E2" +
	"08E24FA074E5AB3143DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF"

var (
	n *big.Int
	g *big.Int
)

func init() {
	n = new(big.Int)
	if _, ok := n.SetString(n3072Hex, 16); !ok {
		panic("bignum: invalid embedded N constant")
	}
	g = big.NewInt(2)
}

// N returns a defensive copy of the 3072-bit safe prime modulus.
func N() *big.Int {
	return new(big.Int).Set(n)
}

// G returns a defensive copy of the generator (g=2).
func G() *big.Int {
	return new(big.Int).Set(g)
}

// ByteLen is the byte length of N, used throughout the protocol to pad
// values before hashing.
func ByteLen() int {
	return (n.BitLen() + 7) / 8
}

// ModPow computes base^exp mod mod. It exists as its own function, rather
// than callers reaching for (*big.Int).Exp directly, so call sites read
// like the protocol's own notation.
func ModPow(base, exp, mod *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, mod)
}

// PadHex left-pads the big-endian byte representation of v with zero bytes
// until it is byteLen long. Values in SRP are hashed as fixed-width,
// zero-padded byte strings; a value that happens to have leading zero bytes
// in its natural representation must not be hashed short, or the digest
// will not match the server's.
func PadHex(v *big.Int, byteLen int) []byte {
	raw := v.Bytes()
	if len(raw) >= byteLen {
		return raw
	}
	out := make([]byte, byteLen)
	copy(out[byteLen-len(raw):], raw)
	return out
}
