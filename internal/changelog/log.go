package changelog

import (
	"bufio"
	"encoding/hex"
	"os"
	"strings"

	"github.com/cloakmatch/psi/internal/errs"
)

// Store abstracts the on-disk log file for testability: an in-memory
// implementation makes append/tail logic trivial to unit test without
// touching the filesystem.
type Store interface {
	// ReadLines returns every non-empty line currently in the log, in
	// order. A missing log reports no lines and no error.
	ReadLines() ([]string, error)
	// AppendLines appends lines (already newline-terminated) to the log,
	// creating it if necessary.
	AppendLines(lines []string) error
	// Truncate empties the log (used by rekey).
	Truncate() error
}

// FileStore is a Store backed by a single file on disk.
type FileStore struct {
	Path string
}

func (f FileStore) ReadLines() ([]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.New("changelog.ReadLines", errs.Io, err)
	}
	defer file.Close()

	var lines []string
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.New("changelog.ReadLines", errs.Io, err)
	}
	return lines, nil
}

func (f FileStore) AppendLines(lines []string) error {
	file, err := os.OpenFile(f.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.New("changelog.AppendLines", errs.Io, err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	for _, l := range lines {
		if _, err := w.WriteString(l); err != nil {
			return errs.New("changelog.AppendLines", errs.Io, err)
		}
	}
	return errWrap(w.Flush())
}

func (f FileStore) Truncate() error {
	file, err := os.OpenFile(f.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.New("changelog.Truncate", errs.Io, err)
	}
	return errWrap(file.Close())
}

func errWrap(err error) error {
	if err == nil {
		return nil
	}
	return errs.New("changelog", errs.Io, err)
}

// lastHash extracts the trailing whitespace-delimited token of the last
// non-empty line and hex-decodes it, accepting 64 or 128 hex characters
// for forward/backward compatibility. Falls back to ZeroHash on a parse
// failure or an empty log.
func lastHash(lines []string) []byte {
	if len(lines) == 0 {
		return ZeroHash
	}
	last := lines[len(lines)-1]
	fields := strings.Fields(last)
	if len(fields) == 0 {
		return ZeroHash
	}
	tok := fields[len(fields)-1]
	if len(tok) != 64 && len(tok) != 128 {
		return ZeroHash
	}
	decoded, err := hex.DecodeString(tok)
	if err != nil {
		return ZeroHash
	}
	return decoded
}

// Append writes pending events onto store's log, continuing its hash
// chain. Events whose Kind is not Added or Removed are skipped (NewAdded
// and NewRemoved only build those two kinds, but a PendingEvent literal
// can carry any EventKind value).
func Append(store Store, pending []PendingEvent) ([]Event, error) {
	existing, err := store.ReadLines()
	if err != nil {
		return nil, err
	}
	prev := lastHash(existing)

	var appended []Event
	var lines []string
	for _, p := range pending {
		if p.Kind != Added && p.Kind != Removed {
			continue
		}
		h := chainHash(prev, p)
		ev := Event{PendingEvent: p, Hash: h}
		appended = append(appended, ev)
		lines = append(lines, ev.Line())
		prev = h
	}
	if len(lines) == 0 {
		return nil, nil
	}
	if err := store.AppendLines(lines); err != nil {
		return nil, err
	}
	return appended, nil
}

// TailResult is the response to a client's sync request.
type TailResult struct {
	Lines []string
	Full  bool
}

// Tail implements the tail retrieval contract: with no anchor, the
// entire log is returned labeled full. With an anchor, the suffix after
// the first matching line is returned labeled delta; if nothing matches,
// the entire log is returned labeled full (forcing the client to reset).
// An anchor matching the very last line yields an empty delta.
func Tail(store Store, anchor string) (TailResult, error) {
	lines, err := store.ReadLines()
	if err != nil {
		return TailResult{}, err
	}
	if anchor == "" {
		return TailResult{Lines: lines, Full: true}, nil
	}

	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[len(fields)-1] == anchor {
			return TailResult{Lines: lines[i+1:], Full: false}, nil
		}
	}
	return TailResult{Lines: lines, Full: true}, nil
}
