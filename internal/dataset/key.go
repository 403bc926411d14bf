package dataset

import (
	"encoding/hex"
	"errors"
	"os"

	"github.com/cloakmatch/psi/internal/crypto"
	"github.com/cloakmatch/psi/internal/errs"
)

var errKeyExists = errors.New("a private key already exists for this dataset")

// LoadKey reads and hex-decodes the dataset's private OPRF key.
func LoadKey(l Layout) (crypto.Scalar32, error) {
	raw, err := os.ReadFile(l.KeyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return crypto.Scalar32{}, errs.New("dataset.LoadKey", errs.NotFound, err)
		}
		return crypto.Scalar32{}, errs.New("dataset.LoadKey", errs.Io, err)
	}
	decoded, err := hex.DecodeString(trim(raw))
	if err != nil {
		return crypto.Scalar32{}, errs.New("dataset.LoadKey", errs.Io, err)
	}
	return crypto.NewScalar32(decoded)
}

// KeyExists reports whether a private key has already been generated.
func KeyExists(l Layout) bool {
	_, err := os.Stat(l.KeyPath())
	return err == nil
}

// WriteKey persists a hex-encoded key to disk with owner-only
// permissions, creating parent directories as needed.
func WriteKey(l Layout, key crypto.Scalar32) error {
	if err := os.MkdirAll(l.SecretsDir(), 0o700); err != nil {
		return errs.New("dataset.WriteKey", errs.Io, err)
	}
	line := hex.EncodeToString(key.Bytes()) + "\n"
	if err := os.WriteFile(l.KeyPath(), []byte(line), 0o600); err != nil {
		return errs.New("dataset.WriteKey", errs.Io, err)
	}
	return nil
}

// GenerateKey creates and persists a fresh private key, failing if one
// already exists (use rekey to replace an existing key).
func GenerateKey(l Layout) (crypto.Scalar32, error) {
	if KeyExists(l) {
		return crypto.Scalar32{}, errs.New("dataset.GenerateKey", errs.AlreadyExists, errKeyExists)
	}
	key, err := crypto.KeyGen()
	if err != nil {
		return crypto.Scalar32{}, err
	}
	if err := WriteKey(l, key); err != nil {
		return crypto.Scalar32{}, err
	}
	return key, nil
}

func trim(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
