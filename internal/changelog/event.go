// Package changelog implements the append-only, hash-chained change log a
// dataset publishes and a client replicates: ADDED/REMOVED events over a
// record's OPRF output and encrypted metadata, each line binding a
// SHA-512 hash over everything before it so a client can detect
// truncation or tampering by replaying the chain.
package changelog

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
)

// EventKind tags a change-log entry. Modeled as a variant (per the
// redesign guidance against stringly-typed events) with String/Parse at
// the line-format boundary only.
type EventKind int

const (
	Added EventKind = iota
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "ADDED"
	case Removed:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

func parseEventKind(s string) (EventKind, bool) {
	switch strings.ToUpper(s) {
	case "ADDED":
		return Added, true
	case "REMOVED":
		return Removed, true
	default:
		return 0, false
	}
}

// ZeroHash is the 64-byte all-zero hash chain seed used when a log is
// empty or its last line's hash token fails to parse.
var ZeroHash = make([]byte, sha512.Size)

// PendingEvent is an event not yet appended to a log: it carries the
// OPRF hex (or "-" if unknown) and the encrypted metadata string
// (nonce_hex:ct_hex, or "-" if unknown), but not yet its chained hash.
type PendingEvent struct {
	Kind    EventKind
	OprfHex string // "-" if unknown
	EncMeta string // "nonce_hex:ct_hex", or "-" if unknown
}

// NewAdded builds a PendingEvent for an ADDED record. oprfHex/encMeta may
// be empty, which is normalized to "-" here.
func NewAdded(oprfHex, encMeta string) PendingEvent {
	return PendingEvent{Kind: Added, OprfHex: normalize(oprfHex), EncMeta: normalize(encMeta)}
}

// NewRemoved builds a PendingEvent for a REMOVED record.
func NewRemoved(oprfHex, encMeta string) PendingEvent {
	return PendingEvent{Kind: Removed, OprfHex: normalize(oprfHex), EncMeta: normalize(encMeta)}
}

func normalize(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Event is a PendingEvent once it has been chained onto a log: it also
// carries the cumulative hash naming the log prefix ending at this line.
type Event struct {
	PendingEvent
	Hash []byte // raw SHA-512 digest, 64 bytes
}

// HashHex returns the lowercase hex encoding of Hash.
func (e Event) HashHex() string { return hex.EncodeToString(e.Hash) }

// Line renders e in the on-disk/wire line format:
// "EVENT OPRF_HEX ENC_META HASH_HEX\n".
func (e Event) Line() string {
	return fmt.Sprintf("%s %s %s %s\n", e.Kind, e.OprfHex, e.EncMeta, e.HashHex())
}

// chainHash computes HASH = SHA512(prevHash || "|" || EVENT || "|" ||
// OPRF_HEX || "|" || ENC_META).
func chainHash(prevHash []byte, ev PendingEvent) []byte {
	h := sha512.New()
	h.Write(prevHash)
	h.Write([]byte("|"))
	h.Write([]byte(ev.Kind.String()))
	h.Write([]byte("|"))
	h.Write([]byte(ev.OprfHex))
	h.Write([]byte("|"))
	h.Write([]byte(ev.EncMeta))
	return h.Sum(nil)
}

// ParseLine parses one change-log line into an Event. Lines with fewer
// than 4 whitespace-delimited tokens, or an unrecognized EVENT token, are
// reported via ok=false so callers can skip non-conforming lines per the
// active-set reconstruction contract.
func ParseLine(line string) (ev Event, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Event{}, false
	}
	kind, known := parseEventKind(fields[0])
	if !known {
		return Event{}, false
	}
	hashBytes, err := hex.DecodeString(fields[3])
	if err != nil {
		return Event{}, false
	}
	return Event{
		PendingEvent: PendingEvent{Kind: kind, OprfHex: fields[1], EncMeta: fields[2]},
		Hash:         hashBytes,
	}, true
}
