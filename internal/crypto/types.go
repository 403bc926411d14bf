// Package crypto implements the OPRF(ristretto255, SHA-512) primitives and
// the metadata AEAD this protocol is built on, following the same
// ristretto255 group operations as the OPRF implementation this package is
// adapted from, generalized to the hash-to-group and finalize
// constructions this PSI protocol actually uses (direct SHA-512 over a
// domain-separation tag, not RFC 9380's expand_message_xmd).
//
// Outputs are modeled as distinct fixed-size types instead of bare []byte
// so a caller cannot, say, pass a Point32 where a Scalar32 is expected
// without an explicit conversion.
package crypto

import "fmt"

const (
	ScalarBytes = 32
	PointBytes  = 32
	PrfBytes    = 64
	NonceBytes  = 24
)

// Scalar32 is a 32-byte ristretto255 scalar encoding (a blinding factor or
// a server private key).
type Scalar32 [ScalarBytes]byte

// Point32 is a 32-byte encoded ristretto255 group element.
type Point32 [PointBytes]byte

// Prf64 is the 64-byte SHA-512 OPRF finalize output.
type Prf64 [PrfBytes]byte

// Nonce24 is a 24-byte XChaCha20-Poly1305 nonce.
type Nonce24 [NonceBytes]byte

func (s Scalar32) Bytes() []byte { return s[:] }
func (p Point32) Bytes() []byte  { return p[:] }
func (p Prf64) Bytes() []byte    { return p[:] }
func (n Nonce24) Bytes() []byte  { return n[:] }

func (p Prf64) Hex() string { return fmt.Sprintf("%x", p[:]) }
func (p Point32) Hex() string { return fmt.Sprintf("%x", p[:]) }

// NewScalar32 validates length and wraps b as a Scalar32.
func NewScalar32(b []byte) (Scalar32, error) {
	var s Scalar32
	if len(b) != ScalarBytes {
		return s, fmt.Errorf("crypto: scalar must be %d bytes, got %d", ScalarBytes, len(b))
	}
	copy(s[:], b)
	return s, nil
}

// NewPoint32 validates length and wraps b as a Point32. It does not
// validate that b decodes to a valid curve point; BlindEvaluate and
// Unblind decode their point arguments and report InvalidPoint.
func NewPoint32(b []byte) (Point32, error) {
	var p Point32
	if len(b) != PointBytes {
		return p, fmt.Errorf("crypto: point must be %d bytes, got %d", PointBytes, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// NewPrf64 validates length and wraps b as a Prf64.
func NewPrf64(b []byte) (Prf64, error) {
	var p Prf64
	if len(b) != PrfBytes {
		return p, fmt.Errorf("crypto: prf must be %d bytes, got %d", PrfBytes, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// NewNonce24 validates length and wraps b as a Nonce24.
func NewNonce24(b []byte) (Nonce24, error) {
	var n Nonce24
	if len(b) != NonceBytes {
		return n, fmt.Errorf("crypto: nonce must be %d bytes, got %d", NonceBytes, len(b))
	}
	copy(n[:], b)
	return n, nil
}

// Zeroize overwrites s with zero bytes. Call this once a private key or
// blinding scalar is no longer needed.
func (s *Scalar32) Zeroize() {
	for i := range s {
		s[i] = 0
	}
}
