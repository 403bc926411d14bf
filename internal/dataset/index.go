package dataset

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/cloakmatch/psi/internal/errs"
)

// IndexEntry is one row of the server-side plaintext index: an IOC
// mapped to its OPRF output and, once upgraded, its encrypted
// metadata. Nonce/CT are empty until the record has been encrypted.
type IndexEntry struct {
	IOC       string
	OprfHex   string
	NonceHex  string
	CipherHex string
}

// HasMetadata reports whether the entry carries encrypted metadata
// (the 4-field form) rather than only an OPRF value (the legacy,
// 2-field form).
func (e IndexEntry) HasMetadata() bool { return e.NonceHex != "" && e.CipherHex != "" }

// EncMeta renders the entry's encrypted metadata in change-log form,
// or "-" if it has none.
func (e IndexEntry) EncMeta() string {
	if !e.HasMetadata() {
		return "-"
	}
	return fmt.Sprintf("%s:%s", e.NonceHex, e.CipherHex)
}

// Line renders the entry in its on-disk CSV form: 2 fields for a
// legacy entry, 4 for one with encrypted metadata.
func (e IndexEntry) Line() string {
	if !e.HasMetadata() {
		return fmt.Sprintf("%s,%s\n", e.IOC, e.OprfHex)
	}
	return fmt.Sprintf("%s,%s,%s,%s\n", e.IOC, e.OprfHex, e.NonceHex, e.CipherHex)
}

// Index is the ordered, in-memory form of index.csv: order matters
// because the on-disk file preserves insertion order across
// reconciliations, and callers rely on that ordering for stable diffs.
type Index struct {
	order   []string
	entries map[string]IndexEntry
}

func newIndex() *Index {
	return &Index{entries: make(map[string]IndexEntry)}
}

func (idx *Index) Get(ioc string) (IndexEntry, bool) {
	e, ok := idx.entries[ioc]
	return e, ok
}

func (idx *Index) Has(ioc string) bool {
	_, ok := idx.entries[ioc]
	return ok
}

func (idx *Index) Set(e IndexEntry) {
	if _, exists := idx.entries[e.IOC]; !exists {
		idx.order = append(idx.order, e.IOC)
	}
	idx.entries[e.IOC] = e
}

func (idx *Index) Delete(ioc string) {
	delete(idx.entries, ioc)
}

// Order returns IOCs still present in the index, in their current
// on-disk order.
func (idx *Index) Order() []string {
	out := make([]string, 0, len(idx.order))
	for _, ioc := range idx.order {
		if idx.Has(ioc) {
			out = append(out, ioc)
		}
	}
	return out
}

// Reorder rebuilds the index's order slice from a caller-supplied
// sequence, dropping any IOC no longer present.
func (idx *Index) Reorder(order []string) {
	idx.order = idx.order[:0]
	seen := make(map[string]bool, len(order))
	for _, ioc := range order {
		if idx.Has(ioc) && !seen[ioc] {
			idx.order = append(idx.order, ioc)
			seen[ioc] = true
		}
	}
}

// LoadIndex reads index.csv, accepting both the legacy 2-field
// (ioc,oprf_hex) and the 4-field (ioc,oprf_hex,nonce_hex,ct_hex) forms.
// A missing file yields an empty index, not an error.
func LoadIndex(l Layout) (*Index, error) {
	idx := newIndex()
	file, err := os.Open(l.IndexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, errs.New("dataset.LoadIndex", errs.Io, err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || !strings.Contains(line, ",") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		ioc := parts[0]
		if ioc == "" {
			continue
		}
		entry := IndexEntry{IOC: ioc}
		if len(parts) > 1 {
			entry.OprfHex = parts[1]
		}
		if len(parts) > 3 {
			entry.NonceHex = parts[2]
			entry.CipherHex = parts[3]
		}
		idx.Set(entry)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.New("dataset.LoadIndex", errs.Io, err)
	}
	return idx, nil
}

// WriteIndex overwrites index.csv with idx's entries, in order.
func WriteIndex(l Layout, idx *Index) error {
	if err := os.MkdirAll(l.DataDir(), 0o755); err != nil {
		return errs.New("dataset.WriteIndex", errs.Io, err)
	}
	file, err := os.OpenFile(l.IndexPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.New("dataset.WriteIndex", errs.Io, err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	for _, ioc := range idx.Order() {
		entry, _ := idx.Get(ioc)
		if _, err := w.WriteString(entry.Line()); err != nil {
			return errs.New("dataset.WriteIndex", errs.Io, err)
		}
	}
	return flushErr(w.Flush())
}

func flushErr(err error) error {
	if err == nil {
		return nil
	}
	return errs.New("dataset.WriteIndex", errs.Io, err)
}

// SourceRecord is one parsed line of a data source file.
type SourceRecord struct {
	IOC      string
	Metadata string
}

// LoadSource parses a data source file of "<ioc>,<metadata_json>"
// lines, trimming whitespace and skipping blank or comma-less lines.
// Source order is preserved; a later duplicate IOC overwrites its
// metadata but keeps the first occurrence's position.
func LoadSource(path string) ([]SourceRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New("dataset.LoadSource", errs.NotFound, err)
		}
		return nil, errs.New("dataset.LoadSource", errs.Io, err)
	}
	defer file.Close()

	var records []SourceRecord
	seen := make(map[string]int)
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		comma := strings.Index(line, ",")
		if comma < 0 {
			continue
		}
		ioc := strings.TrimSpace(line[:comma])
		meta := strings.TrimSpace(line[comma+1:])
		if ioc == "" {
			continue
		}
		if i, ok := seen[ioc]; ok {
			records[i].Metadata = meta
			continue
		}
		seen[ioc] = len(records)
		records = append(records, SourceRecord{IOC: ioc, Metadata: meta})
	}
	if err := sc.Err(); err != nil {
		return nil, errs.New("dataset.LoadSource", errs.Io, err)
	}
	return records, nil
}
