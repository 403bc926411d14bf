package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/cloakmatch/psi/internal/errs"
)

// hkdfSalt is the fixed 64-byte zero salt the metadata key derivation
// uses; the derivation already binds to the specific (prf, Q) pair, so a
// random salt would add no security margin here.
var hkdfSalt = make([]byte, 64)

// deriveMetaKey rederives the 32-byte XChaCha20-Poly1305 key from the
// OPRF output: HKDF-SHA512(ikm = prf || q, salt = 64 zero bytes,
// info = "meta|" + dataName, L = 32).
func deriveMetaKey(dataName string, prf Prf64, q Point32) ([]byte, error) {
	ikm := make([]byte, 0, PrfBytes+PointBytes)
	ikm = append(ikm, prf[:]...)
	ikm = append(ikm, q[:]...)
	info := []byte("meta|" + dataName)

	r := hkdf.New(sha512.New, ikm, hkdfSalt, info)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errs.New("crypto.deriveMetaKey", errs.Io, err)
	}
	return key, nil
}

// EncryptMetadata derives the metadata key from (prf, q, dataName) and
// seals plaintext under XChaCha20-Poly1305-IETF with a fresh random
// nonce and associated data equal to the raw ioc bytes.
func EncryptMetadata(dataName string, ioc []byte, prf Prf64, q Point32, plaintext []byte) (Nonce24, []byte, error) {
	key, err := deriveMetaKey(dataName, prf, q)
	if err != nil {
		return Nonce24{}, nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return Nonce24{}, nil, errs.New("crypto.EncryptMetadata", errs.CryptoLibraryMissing, err)
	}
	var nonce Nonce24
	if _, err := rand.Read(nonce[:]); err != nil {
		return Nonce24{}, nil, errs.New("crypto.EncryptMetadata", errs.CryptoLibraryMissing, err)
	}
	ct := aead.Seal(nil, nonce[:], plaintext, ioc)
	return nonce, ct, nil
}

// DecryptMetadata rederives the metadata key and opens ciphertext,
// authenticating ioc as associated data. A tampered ioc, a tampered
// ciphertext, or a (prf, q) pair from a different record all surface as
// AuthFailure.
func DecryptMetadata(dataName string, ioc []byte, prf Prf64, q Point32, nonce Nonce24, ciphertext []byte) ([]byte, error) {
	key, err := deriveMetaKey(dataName, prf, q)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errs.New("crypto.DecryptMetadata", errs.CryptoLibraryMissing, err)
	}
	pt, err := aead.Open(nil, nonce[:], ciphertext, ioc)
	if err != nil {
		return nil, errs.New("crypto.DecryptMetadata", errs.AuthFailure, fmt.Errorf("aead open failed: %w", err))
	}
	return pt, nil
}
