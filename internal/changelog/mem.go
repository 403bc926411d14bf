package changelog

import "strings"

// MemStore is an in-memory Store, used by tests and by callers that want
// to stage events before committing them to disk.
type MemStore struct {
	Lines []string
}

func (m *MemStore) ReadLines() ([]string, error) {
	out := make([]string, len(m.Lines))
	copy(out, m.Lines)
	return out, nil
}

func (m *MemStore) AppendLines(lines []string) error {
	for _, l := range lines {
		m.Lines = append(m.Lines, strings.TrimRight(l, "\n"))
	}
	return nil
}

func (m *MemStore) Truncate() error {
	m.Lines = nil
	return nil
}
