package dataset

import (
	"fmt"

	"github.com/cloakmatch/psi/internal/changelog"
	"github.com/cloakmatch/psi/internal/crypto"
	"github.com/cloakmatch/psi/internal/errs"
)

// Reconciler owns the single-writer reconcile/rekey operations for one
// dataset. Concurrent reconciles of the same dataset are not made safe
// here: the caller is responsible for serializing writers (see
// internal/server, which bounds this with singleflight).
type Reconciler struct {
	Layout Layout
	Log    changelog.Store
}

// ReconcileResult summarizes one reconcile pass, grounded on the
// original implementation's printed summary (schema/index/log paths,
// counts of added/removed/upgraded records).
type ReconcileResult struct {
	Added    int
	Removed  int
	Upgraded int
}

// Reconcile loads the dataset's schema, private key, and current index,
// diffs them against sourcePath, computes OPRF+AEAD for every new or
// to-be-upgraded record, rewrites the index, and appends the resulting
// ADDED/REMOVED events to the change log (all ADDED first, then all
// REMOVED, matching the order the log's readers expect for replay).
//
// Reconcile is idempotent: running it twice against an unchanged source
// file produces no new log events and leaves the index unchanged.
//
// A record whose IOC is already indexed with encrypted metadata but whose
// metadata changed in the source emits no event and keeps its old
// encrypted metadata in the index. Upgrades of legacy 2-field entries
// rewrite the index but emit no event either.
func (r *Reconciler) Reconcile(sourcePath string) (ReconcileResult, error) {
	schema, err := LoadSchema(r.Layout)
	if err != nil {
		return ReconcileResult{}, err
	}
	if err := checkAlgorithm(schema); err != nil {
		return ReconcileResult{}, err
	}

	key, err := LoadKey(r.Layout)
	if err != nil {
		return ReconcileResult{}, err
	}

	records, err := LoadSource(sourcePath)
	if err != nil {
		return ReconcileResult{}, err
	}
	currentMeta := make(map[string]string, len(records))
	currentOrder := make([]string, 0, len(records))
	currentSet := make(map[string]bool, len(records))
	for _, rec := range records {
		currentMeta[rec.IOC] = rec.Metadata
		currentOrder = append(currentOrder, rec.IOC)
		currentSet[rec.IOC] = true
	}

	idx, err := LoadIndex(r.Layout)
	if err != nil {
		return ReconcileResult{}, err
	}
	existingOrder := idx.Order()

	var toRemove, toAdd, toUpgrade []string
	for _, ioc := range existingOrder {
		if !currentSet[ioc] {
			toRemove = append(toRemove, ioc)
		}
	}
	for _, ioc := range currentOrder {
		if !idx.Has(ioc) {
			toAdd = append(toAdd, ioc)
		}
	}
	for _, ioc := range currentOrder {
		if e, ok := idx.Get(ioc); ok && !e.HasMetadata() {
			toUpgrade = append(toUpgrade, ioc)
		}
	}

	// Snapshot pre-removal entries so REMOVED events can still cite the
	// record's last known OPRF/metadata.
	removedSnapshot := make(map[string]IndexEntry, len(toRemove))
	for _, ioc := range toRemove {
		if e, ok := idx.Get(ioc); ok {
			removedSnapshot[ioc] = e
		}
	}

	for _, ioc := range append(append([]string{}, toAdd...), toUpgrade...) {
		prf, q, err := crypto.ServerEvaluate(r.Layout.Name, key, []byte(ioc))
		if err != nil {
			return ReconcileResult{}, err
		}
		nonce, ct, err := crypto.EncryptMetadata(r.Layout.Name, []byte(ioc), prf, q, []byte(currentMeta[ioc]))
		if err != nil {
			return ReconcileResult{}, err
		}
		idx.Set(IndexEntry{
			IOC:       ioc,
			OprfHex:   prf.Hex(),
			NonceHex:  fmt.Sprintf("%x", nonce.Bytes()),
			CipherHex: fmt.Sprintf("%x", ct),
		})
	}

	for _, ioc := range toRemove {
		idx.Delete(ioc)
	}

	newOrder := make([]string, 0, len(currentOrder))
	for _, ioc := range existingOrder {
		if idx.Has(ioc) {
			newOrder = append(newOrder, ioc)
		}
	}
	for _, ioc := range currentOrder {
		found := false
		for _, done := range newOrder {
			if done == ioc {
				found = true
				break
			}
		}
		if !found {
			newOrder = append(newOrder, ioc)
		}
	}
	idx.Reorder(newOrder)

	if err := WriteIndex(r.Layout, idx); err != nil {
		return ReconcileResult{}, err
	}

	var pending []changelog.PendingEvent
	for _, ioc := range toAdd {
		e, _ := idx.Get(ioc)
		pending = append(pending, changelog.NewAdded(e.OprfHex, e.EncMeta()))
	}
	for _, ioc := range toRemove {
		e := removedSnapshot[ioc]
		pending = append(pending, changelog.NewRemoved(e.OprfHex, e.EncMeta()))
	}
	if _, err := changelog.Append(r.Log, pending); err != nil {
		return ReconcileResult{}, err
	}

	return ReconcileResult{Added: len(toAdd), Removed: len(toRemove), Upgraded: len(toUpgrade)}, nil
}

func checkAlgorithm(s Schema) error {
	switch s.SupportedAlgorithm {
	case AlgorithmClassic:
		return nil
	case AlgorithmOT:
		return errs.New("dataset.checkAlgorithm", errs.UnsupportedAlgorithm, fmt.Errorf("OT sync not yet implemented"))
	default:
		return errs.New("dataset.checkAlgorithm", errs.UnsupportedAlgorithm, fmt.Errorf("unsupported algorithm in schema: %q", s.SupportedAlgorithm))
	}
}
