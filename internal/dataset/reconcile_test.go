package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloakmatch/psi/internal/changelog"
	"github.com/cloakmatch/psi/internal/crypto"
)

func setupDataset(t *testing.T, name string) Layout {
	t.Helper()
	base := t.TempDir()
	l := Layout{BaseDir: base, Name: name}
	require.NoError(t, WriteSchema(l, Schema{DataName: name, SupportedAlgorithm: AlgorithmClassic, RekeyInterval: "30d"}))
	_, err := GenerateKey(l)
	require.NoError(t, err)
	return l
}

func writeSource(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReconcileAddsRecords(t *testing.T) {
	l := setupDataset(t, "threatfeed")
	src := writeSource(t, `evil.com,{"severity":"high"}`, `bad.net,{"severity":"low"}`)

	log := &changelog.MemStore{}
	r := &Reconciler{Layout: l, Log: log}
	res, err := r.Reconcile(src)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Added: 2, Removed: 0, Upgraded: 0}, res)

	idx, err := LoadIndex(l)
	require.NoError(t, err)
	require.Len(t, idx.Order(), 2)
	for _, ioc := range idx.Order() {
		e, _ := idx.Get(ioc)
		assert.Truef(t, e.HasMetadata(), "entry %q missing encrypted metadata", ioc)
	}

	lines, _ := log.ReadLines()
	assert.Len(t, lines, 2)
}

// TestReconcileIdempotent checks invariant 7: reconciling an unchanged
// source a second time appends nothing and leaves the index untouched.
func TestReconcileIdempotent(t *testing.T) {
	l := setupDataset(t, "threatfeed")
	src := writeSource(t, `evil.com,{"severity":"high"}`)

	log := &changelog.MemStore{}
	r := &Reconciler{Layout: l, Log: log}
	_, err := r.Reconcile(src)
	require.NoError(t, err)
	before, err := LoadIndex(l)
	require.NoError(t, err)

	res, err := r.Reconcile(src)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, res)

	after, err := LoadIndex(l)
	require.NoError(t, err)
	assert.Len(t, after.Order(), len(before.Order()))

	lines, _ := log.ReadLines()
	assert.Len(t, lines, 1)
}

func TestReconcileHandlesRemovalAndAddition(t *testing.T) {
	l := setupDataset(t, "threatfeed")
	src1 := writeSource(t, `evil.com,{}`, `bad.net,{}`)
	log := &changelog.MemStore{}
	r := &Reconciler{Layout: l, Log: log}
	_, err := r.Reconcile(src1)
	require.NoError(t, err)

	src2 := writeSource(t, `bad.net,{}`, `new.org,{}`)
	res, err := r.Reconcile(src2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Removed)

	idx, err := LoadIndex(l)
	require.NoError(t, err)
	assert.False(t, idx.Has("evil.com"), "evil.com should have been removed")
	assert.True(t, idx.Has("bad.net"))
	assert.True(t, idx.Has("new.org"))
}

func TestReconcileUpgradesLegacyEntries(t *testing.T) {
	l := setupDataset(t, "threatfeed")
	key, err := LoadKey(l)
	require.NoError(t, err)
	prf, _, err := crypto.ServerEvaluate(l.Name, key, []byte("evil.com"))
	require.NoError(t, err)
	idx := newIndex()
	idx.Set(IndexEntry{IOC: "evil.com", OprfHex: prf.Hex()})
	require.NoError(t, WriteIndex(l, idx))

	src := writeSource(t, `evil.com,{"severity":"high"}`)
	log := &changelog.MemStore{}
	r := &Reconciler{Layout: l, Log: log}
	res, err := r.Reconcile(src)
	require.NoError(t, err)
	require.Equal(t, 1, res.Upgraded)

	after, err := LoadIndex(l)
	require.NoError(t, err)
	e, ok := after.Get("evil.com")
	require.True(t, ok)
	assert.True(t, e.HasMetadata(), "legacy entry should have been upgraded with encrypted metadata")
}

func TestReconcileRejectsUnsupportedAlgorithm(t *testing.T) {
	base := t.TempDir()
	l := Layout{BaseDir: base, Name: "otfeed"}
	require.NoError(t, WriteSchema(l, Schema{DataName: "otfeed", SupportedAlgorithm: AlgorithmOT, RekeyInterval: "30d"}))
	src := writeSource(t, `x,{}`)
	log := &changelog.MemStore{}
	r := &Reconciler{Layout: l, Log: log}
	_, err := r.Reconcile(src)
	assert.Error(t, err)
}
