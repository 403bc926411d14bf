package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"fmt"

	"github.com/gtank/ristretto255"

	"github.com/cloakmatch/psi/internal/errs"
)

// HashToGroup implements H1 from the protocol: wide = SHA512(dataName ||
// x), then map wide onto ristretto255 with FromUniformBytes. dataName is
// the domain-separation tag, so each dataset hashes onto the group
// independently.
func HashToGroup(dataName string, x []byte) *ristretto255.Element {
	h := sha512.New()
	h.Write([]byte(dataName))
	h.Write(x)
	wide := h.Sum(nil)

	el := ristretto255.NewElement()
	el.FromUniformBytes(wide)
	return el
}

// finalizeDST returns the domain-separation tag used by Finalize.
func finalizeDST(dataName string) []byte {
	return []byte(dataName + "-FINALIZE")
}

// Finalize computes prf = SHA512(DST_FIN || x || q), where q is the
// server's (or the client's unblinded) evaluation point, encoded.
func Finalize(dataName string, x []byte, q Point32) Prf64 {
	h := sha512.New()
	h.Write(finalizeDST(dataName))
	h.Write(x)
	h.Write(q[:])
	sum := h.Sum(nil)
	var out Prf64
	copy(out[:], sum)
	return out
}

// KeyGen produces a fresh uniformly random OPRF private key: 64 random
// bytes reduced mod the group order with FromUniformBytes, returned as a
// canonical 32-byte scalar encoding. Raw random 32-byte strings are not
// always canonical and would then fail ristretto255's scalar Decode; the
// reduced form always decodes.
func KeyGen() (Scalar32, error) {
	var raw [64]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return Scalar32{}, errs.New("crypto.KeyGen", errs.CryptoLibraryMissing, err)
	}
	s := ristretto255.NewScalar().FromUniformBytes(raw[:])
	out, err := NewScalar32(s.Encode(nil))
	if err != nil {
		return Scalar32{}, errs.New("crypto.KeyGen", errs.Io, err)
	}
	return out, nil
}

// RandomScalar samples a fresh non-zero blinding scalar for client-side
// blinding. FromUniformBytes over 64 random bytes cannot yield the zero
// scalar except with negligible probability, so no retry loop is needed.
func RandomScalar() (Scalar32, error) {
	var raw [64]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return Scalar32{}, errs.New("crypto.RandomScalar", errs.CryptoLibraryMissing, err)
	}
	s := ristretto255.NewScalar().FromUniformBytes(raw[:])
	out, err := NewScalar32(s.Encode(nil))
	if err != nil {
		return Scalar32{}, errs.New("crypto.RandomScalar", errs.Io, err)
	}
	return out, nil
}

// decodeScalar decodes a 32-byte scalar encoding, reporting InvalidPoint
// (the scalar-side analogue of a rejected point) on failure.
func decodeScalar(op string, s Scalar32) (*ristretto255.Scalar, error) {
	sc := ristretto255.NewScalar()
	if err := sc.Decode(s[:]); err != nil {
		return nil, errs.New(op, errs.InvalidPoint, fmt.Errorf("invalid scalar: %w", err))
	}
	return sc, nil
}

// decodePoint decodes a 32-byte ristretto255 element encoding.
func decodePoint(op string, p Point32) (*ristretto255.Element, error) {
	el := ristretto255.NewElement()
	if err := el.Decode(p[:]); err != nil {
		return nil, errs.New(op, errs.InvalidPoint, fmt.Errorf("invalid point: %w", err))
	}
	return el, nil
}

func encodePoint(el *ristretto255.Element) Point32 {
	var p Point32
	copy(p[:], el.Encode(nil))
	return p
}

// ServerEvaluate computes the offline server-side OPRF evaluation against
// a plaintext IOC: P = H1(dataName, ioc); Q = k*P; prf =
// Finalize(dataName, ioc, Q). Returns both the finalized prf and the raw
// point Q, since metadata encryption needs Q as additional HKDF input
// material.
func ServerEvaluate(dataName string, k Scalar32, ioc []byte) (Prf64, Point32, error) {
	kScalar, err := decodeScalar("crypto.ServerEvaluate", k)
	if err != nil {
		return Prf64{}, Point32{}, err
	}
	p := HashToGroup(dataName, ioc)
	q := ristretto255.NewElement().ScalarMult(kScalar, p)
	qEnc := encodePoint(q)
	prf := Finalize(dataName, ioc, qEnc)
	return prf, qEnc, nil
}

// BlindEvaluate is the online server endpoint: given a client-supplied
// blinded point B, return k*B. It never sees the client's plaintext IOC.
func BlindEvaluate(k Scalar32, b Point32) (Point32, error) {
	kScalar, err := decodeScalar("crypto.BlindEvaluate", k)
	if err != nil {
		return Point32{}, err
	}
	bEl, err := decodePoint("crypto.BlindEvaluate", b)
	if err != nil {
		return Point32{}, err
	}
	e := ristretto255.NewElement().ScalarMult(kScalar, bEl)
	return encodePoint(e), nil
}

// Blind performs the client-side blinding step: sample a random non-zero
// scalar r, compute B = r * H1(dataName, ioc). Returns r (to be retained
// for Unblind) and B (to be sent to the server).
func Blind(dataName string, ioc []byte) (r Scalar32, b Point32, err error) {
	r, err = RandomScalar()
	if err != nil {
		return Scalar32{}, Point32{}, err
	}
	rScalar, err := decodeScalar("crypto.Blind", r)
	if err != nil {
		return Scalar32{}, Point32{}, err
	}
	p := HashToGroup(dataName, ioc)
	bEl := ristretto255.NewElement().ScalarMult(rScalar, p)
	return r, encodePoint(bEl), nil
}

// Unblind removes the client's blinding factor from the server's
// evaluation: Q = r^-1 * E.
func Unblind(r Scalar32, e Point32) (Point32, error) {
	rScalar, err := decodeScalar("crypto.Unblind", r)
	if err != nil {
		return Point32{}, err
	}
	eEl, err := decodePoint("crypto.Unblind", e)
	if err != nil {
		return Point32{}, err
	}
	rInv := ristretto255.NewScalar().Invert(rScalar)
	q := ristretto255.NewElement().ScalarMult(rInv, eEl)
	return encodePoint(q), nil
}
