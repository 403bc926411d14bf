package client

import (
	"context"
	"os"
	"strings"

	"github.com/cloakmatch/psi/internal/changelog"
	"github.com/cloakmatch/psi/internal/errs"
)

// Engine drives one replica's sync and query operations against a
// single server.
type Engine struct {
	HTTP    *HTTPClient
	Replica Replica
}

// NewEngine builds an Engine for dataName against server addr
// ("host:port"), rooted at baseDir for local replica state.
func NewEngine(addr, dataName, baseDir string) (*Engine, error) {
	if err := validateDataName(dataName); err != nil {
		return nil, err
	}
	host, port, label, err := ServerLabel(addr)
	if err != nil {
		return nil, err
	}
	return &Engine{
		HTTP:    NewHTTPClient(host, port),
		Replica: Replica{BaseDir: baseDir, ServerLabel: label, DataName: dataName},
	}, nil
}

func validateDataName(name string) error {
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errs.New("client.validateDataName", errs.InvalidInput, errBadDataName)
		}
	}
	if name == "" {
		return errs.New("client.validateDataName", errs.InvalidInput, errBadDataName)
	}
	return nil
}

// localAnchor returns the last line's final token in the local log
// mirror, or "" if the log is empty or missing.
func localAnchor(r Replica) string {
	store := changelog.FileStore{Path: r.LogPath()}
	lines, err := store.ReadLines()
	if err != nil || len(lines) == 0 {
		return ""
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// SyncReport summarizes one Sync call.
type SyncReport struct {
	Full      bool
	NewEvents int
}

// Sync implements the client protocol engine's sync operation (spec
// §4.5): determine an anchor, fetch the server's tail, reset or append
// the local log mirror, and replay the active set accordingly. An
// explicit anchor override forces that anchor regardless of local
// state; pass "" to let Sync discover it from the local log.
func (e *Engine) Sync(ctx context.Context, anchorOverride string) (SyncReport, error) {
	if err := e.Replica.ensureDir(); err != nil {
		return SyncReport{}, err
	}

	anchor := anchorOverride
	if anchor == "" {
		anchor = localAnchor(e.Replica)
	}

	res, err := e.HTTP.Sync(ctx, e.Replica.DataName, anchor)
	if err != nil {
		return SyncReport{}, err
	}
	if res.Body == "" && res.Delta {
		return SyncReport{}, nil
	}

	lines := splitLogLines(res.Body)
	store := changelog.FileStore{Path: e.Replica.LogPath()}

	var active ActiveSet
	if res.Delta {
		active, err = loadActiveSetWithFallback(e.Replica)
		if err != nil {
			return SyncReport{}, err
		}
		if err := store.AppendLines(linesWithNewline(lines)); err != nil {
			return SyncReport{}, err
		}
	} else {
		if err := os.Remove(e.Replica.LogPath()); err != nil && !os.IsNotExist(err) {
			return SyncReport{}, errs.New("client.Sync", errs.Io, err)
		}
		if err := os.Remove(e.Replica.ActiveIndexPath()); err != nil && !os.IsNotExist(err) {
			return SyncReport{}, errs.New("client.Sync", errs.Io, err)
		}
		if err := store.AppendLines(linesWithNewline(lines)); err != nil {
			return SyncReport{}, err
		}
		active = ActiveSet{}
	}

	active.Apply(lines)
	if err := WriteActiveSet(e.Replica, active); err != nil {
		return SyncReport{}, err
	}

	return SyncReport{Full: !res.Delta, NewEvents: len(lines)}, nil
}

// loadActiveSetWithFallback implements the active-set fallback rule:
// if the persisted index is missing but the log exists, rebuild it by
// full replay before applying new events.
func loadActiveSetWithFallback(r Replica) (ActiveSet, error) {
	if _, err := os.Stat(r.ActiveIndexPath()); err == nil {
		return LoadActiveSet(r)
	}
	return ReplayLog(r)
}

func splitLogLines(body string) []string {
	var out []string
	for _, l := range strings.Split(body, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// Purge implements the supplemented `purge` command: remove local
// replica state without contacting the server.
func (e *Engine) Purge() error {
	return e.Replica.Purge()
}

// Reset implements the supplemented `reset` command: purge all local
// replica state, then force a full sync (bypassing local anchor
// discovery), mirroring original_source/client/cli.py's reset_data.
func (e *Engine) Reset(ctx context.Context) (SyncReport, error) {
	if err := e.Replica.Purge(); err != nil {
		return SyncReport{}, err
	}
	if err := e.Replica.ensureDir(); err != nil {
		return SyncReport{}, err
	}
	return e.syncForcingFull(ctx)
}

// syncForcingFull performs a sync with no anchor at all, regardless of
// any local log state (there should be none, right after a purge).
func (e *Engine) syncForcingFull(ctx context.Context) (SyncReport, error) {
	res, err := e.HTTP.Sync(ctx, e.Replica.DataName, "")
	if err != nil {
		return SyncReport{}, err
	}
	if res.Body == "" {
		return SyncReport{Full: true}, nil
	}
	lines := splitLogLines(res.Body)
	store := changelog.FileStore{Path: e.Replica.LogPath()}
	if err := store.AppendLines(linesWithNewline(lines)); err != nil {
		return SyncReport{}, err
	}
	active := ActiveSet{}
	active.Apply(lines)
	if err := WriteActiveSet(e.Replica, active); err != nil {
		return SyncReport{}, err
	}
	return SyncReport{Full: true, NewEvents: len(lines)}, nil
}

func linesWithNewline(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
