// Package client implements the client protocol engine (C5): log
// replication against a server's sync endpoint, active-set maintenance,
// and the blinded query round trip with metadata decryption.
package client

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/cloakmatch/psi/internal/errs"
)

// ServerLabel derives the filesystem-safe label for a server address,
// replacing ':' and '/' with '_' the way the host/port pair is folded
// into a directory name.
func ServerLabel(addr string) (host string, port int, label string, err error) {
	h, p, splitErr := net.SplitHostPort(addr)
	if splitErr != nil {
		return "", 0, "", errs.New("client.ServerLabel", errs.InvalidInput, fmt.Errorf("server must be host:port: %w", splitErr))
	}
	portNum, convErr := strconv.Atoi(p)
	if convErr != nil {
		return "", 0, "", errs.New("client.ServerLabel", errs.InvalidInput, fmt.Errorf("port must be an integer: %w", convErr))
	}
	cleaned := strings.NewReplacer(":", "_", "/", "_").Replace(h)
	return h, portNum, fmt.Sprintf("%s_%d", cleaned, portNum), nil
}

// Replica resolves the on-disk paths for one client-side (server_label,
// data_name) replica: its local change-log mirror, active-set index,
// and match audit log.
type Replica struct {
	BaseDir     string
	ServerLabel string
	DataName    string
}

func (r Replica) dir() string {
	return fmt.Sprintf("%s/data/%s/%s", r.BaseDir, r.ServerLabel, r.DataName)
}

func (r Replica) LogPath() string         { return r.dir() + "/changes.log" }
func (r Replica) ActiveIndexPath() string { return r.dir() + "/active_index.csv" }
func (r Replica) MatchesPath() string     { return r.dir() + "/matches.txt" }

func (r Replica) ensureDir() error {
	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return errs.New("client.Replica.ensureDir", errs.Io, err)
	}
	return nil
}

// Purge removes all local state for this replica, matching the
// original purge_data semantics (no server round trip).
func (r Replica) Purge() error {
	if err := os.RemoveAll(r.dir()); err != nil {
		return errs.New("client.Replica.Purge", errs.Io, err)
	}
	// Best-effort: remove the per-server directory if it is now empty.
	serverDir := fmt.Sprintf("%s/data/%s", r.BaseDir, r.ServerLabel)
	_ = os.Remove(serverDir)
	return nil
}
