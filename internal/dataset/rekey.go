package dataset

import (
	"fmt"

	"github.com/cloakmatch/psi/internal/changelog"
	"github.com/cloakmatch/psi/internal/crypto"
)

// RekeyResult summarizes a rekey pass.
type RekeyResult struct {
	Records int
}

// Rekey rotates the dataset's private key, recomputes OPRF+AEAD for
// every record in sourcePath against the new key, overwrites the index
// in source order, and resets the change log to a fresh chain of ADDED
// events for every surviving record.
//
// Rekey deliberately breaks linkability between pre- and post-rotation
// OPRF outputs for the same IOC: because the log is truncated and
// replayed from scratch, a client that only ever watches the log
// cannot correlate an old OPRF value with its rotated replacement.
// Rekey is not atomic: a crash partway through can leave the key
// rotated but the index or log from before the rotation. A later
// successful rekey repairs this; a reconcile does not, because it leaves
// entries that already carry encrypted metadata untouched.
func Rekey(l Layout, log changelog.Store, sourcePath string) (RekeyResult, error) {
	schema, err := LoadSchema(l)
	if err != nil {
		return RekeyResult{}, err
	}
	if err := checkAlgorithm(schema); err != nil {
		return RekeyResult{}, err
	}

	records, err := LoadSource(sourcePath)
	if err != nil {
		return RekeyResult{}, err
	}

	key, err := crypto.KeyGen()
	if err != nil {
		return RekeyResult{}, err
	}
	if err := WriteKey(l, key); err != nil {
		return RekeyResult{}, err
	}

	idx := newIndex()
	var pending []changelog.PendingEvent
	for _, rec := range records {
		prf, q, err := crypto.ServerEvaluate(l.Name, key, []byte(rec.IOC))
		if err != nil {
			return RekeyResult{}, err
		}
		nonce, ct, err := crypto.EncryptMetadata(l.Name, []byte(rec.IOC), prf, q, []byte(rec.Metadata))
		if err != nil {
			return RekeyResult{}, err
		}
		entry := IndexEntry{
			IOC:       rec.IOC,
			OprfHex:   prf.Hex(),
			NonceHex:  fmt.Sprintf("%x", nonce.Bytes()),
			CipherHex: fmt.Sprintf("%x", ct),
		}
		idx.Set(entry)
		pending = append(pending, changelog.NewAdded(entry.OprfHex, entry.EncMeta()))
	}

	if err := WriteIndex(l, idx); err != nil {
		return RekeyResult{}, err
	}
	if err := log.Truncate(); err != nil {
		return RekeyResult{}, err
	}
	if _, err := changelog.Append(log, pending); err != nil {
		return RekeyResult{}, err
	}

	return RekeyResult{Records: len(records)}, nil
}
