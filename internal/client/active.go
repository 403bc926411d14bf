package client

import (
	"bufio"
	"os"
	"strings"

	"github.com/cloakmatch/psi/internal/changelog"
	"github.com/cloakmatch/psi/internal/errs"
)

// ActiveSet is the client's replayed view of a dataset: prf_hex (always
// lowercase) mapped to its enc_meta string.
type ActiveSet map[string]string

// LoadActiveSet reads a persisted active-set index, returning an empty
// set if none exists yet.
func LoadActiveSet(r Replica) (ActiveSet, error) {
	active := ActiveSet{}
	file, err := os.Open(r.ActiveIndexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return active, nil
		}
		return nil, errs.New("client.LoadActiveSet", errs.Io, err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || !strings.Contains(line, ",") {
			continue
		}
		prf, meta, _ := strings.Cut(line, ",")
		active[strings.ToLower(prf)] = meta
	}
	if err := sc.Err(); err != nil {
		return nil, errs.New("client.LoadActiveSet", errs.Io, err)
	}
	return active, nil
}

// WriteActiveSet persists active to disk as "prf_hex,enc_meta" lines.
func WriteActiveSet(r Replica, active ActiveSet) error {
	if err := r.ensureDir(); err != nil {
		return err
	}
	file, err := os.OpenFile(r.ActiveIndexPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.New("client.WriteActiveSet", errs.Io, err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	for prf, meta := range active {
		if _, err := w.WriteString(prf + "," + meta + "\n"); err != nil {
			return errs.New("client.WriteActiveSet", errs.Io, err)
		}
	}
	return flushErr(w.Flush())
}

func flushErr(err error) error {
	if err == nil {
		return nil
	}
	return errs.New("client.WriteActiveSet", errs.Io, err)
}

// Apply replays lines of change-log text onto active, mutating it in
// place: ADDED sets active[prf] = enc_meta, REMOVED deletes it,
// non-conforming lines are skipped.
func (active ActiveSet) Apply(lines []string) {
	for _, line := range lines {
		ev, ok := changelog.ParseLine(line)
		if !ok {
			continue
		}
		key := strings.ToLower(ev.OprfHex)
		switch ev.Kind {
		case changelog.Added:
			active[key] = ev.EncMeta
		case changelog.Removed:
			delete(active, key)
		}
	}
}

// ReplayLog rebuilds an active set from scratch by reading and
// replaying a replica's entire local log mirror. Used as the fallback
// when the persisted active-set index is missing (spec §4.5).
func ReplayLog(r Replica) (ActiveSet, error) {
	store := changelog.FileStore{Path: r.LogPath()}
	lines, err := store.ReadLines()
	if err != nil {
		return nil, err
	}
	active := ActiveSet{}
	active.Apply(lines)
	return active, nil
}
