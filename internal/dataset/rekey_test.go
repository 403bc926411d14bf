package dataset

import (
	"testing"

	"github.com/cloakmatch/psi/internal/changelog"
)

// TestRekeyUnlinkability checks invariant 8: after rekey, the OPRF
// output for the same IOC changes, so a pre-rekey value can no longer
// be correlated against the post-rekey log.
func TestRekeyUnlinkability(t *testing.T) {
	l := setupDataset(t, "threatfeed")
	src := writeSource(t, `evil.com,{"severity":"high"}`)

	log := &changelog.MemStore{}
	r := &Reconciler{Layout: l, Log: log}
	if _, err := r.Reconcile(src); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	before, _ := LoadIndex(l)
	beforeEntry, _ := before.Get("evil.com")

	res, err := Rekey(l, log, src)
	if err != nil {
		t.Fatalf("Rekey: %v", err)
	}
	if res.Records != 1 {
		t.Errorf("expected 1 record rekeyed, got %d", res.Records)
	}

	after, _ := LoadIndex(l)
	afterEntry, _ := after.Get("evil.com")
	if beforeEntry.OprfHex == afterEntry.OprfHex {
		t.Error("OPRF output should change after rekey")
	}

	lines, _ := log.ReadLines()
	if len(lines) != 1 {
		t.Fatalf("expected log reset to 1 ADDED event, got %d lines", len(lines))
	}
}

func TestRekeyRejectsUnsupportedAlgorithm(t *testing.T) {
	base := t.TempDir()
	l := Layout{BaseDir: base, Name: "otfeed"}
	if err := WriteSchema(l, Schema{DataName: "otfeed", SupportedAlgorithm: AlgorithmOT, RekeyInterval: "30d"}); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	src := writeSource(t, `x,{}`)
	log := &changelog.MemStore{}
	if _, err := Rekey(l, log, src); err == nil {
		t.Error("expected unsupported algorithm error")
	}
}
