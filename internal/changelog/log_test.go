package changelog

import (
	"encoding/hex"
	"testing"
)

func hexEnc(b []byte) string { return hex.EncodeToString(b) }

func TestAppendChainsHashes(t *testing.T) {
	store := &MemStore{}
	events, err := Append(store, []PendingEvent{
		NewAdded("aa", "nn:cc"),
		NewAdded("bb", "-"),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	// Invariant 4: hash_0 derives from the 64-zero seed, and hash_i
	// chains off hash_{i-1}.
	want0 := chainHash(ZeroHash, events[0].PendingEvent)
	if events[0].HashHex() != hexEnc(want0) {
		t.Errorf("hash0 mismatch")
	}
	want1 := chainHash(events[0].Hash, events[1].PendingEvent)
	if events[1].HashHex() != hexEnc(want1) {
		t.Errorf("hash1 mismatch")
	}
}

func TestAppendSkipsUnknownKind(t *testing.T) {
	store := &MemStore{}
	bogus := PendingEvent{Kind: EventKind(99), OprfHex: "aa", EncMeta: "-"}
	events, err := Append(store, []PendingEvent{bogus})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected bogus event kind to be skipped, got %d events", len(events))
	}
}

func TestIdempotentAppendOfNothing(t *testing.T) {
	store := &MemStore{}
	if _, err := Append(store, []PendingEvent{NewAdded("aa", "-")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	before, _ := store.ReadLines()
	if _, err := Append(store, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	after, _ := store.ReadLines()
	if len(before) != len(after) {
		t.Error("appending no events should not change the log")
	}
}

func TestTailFullWhenNoAnchor(t *testing.T) {
	store := &MemStore{}
	Append(store, []PendingEvent{NewAdded("aa", "-"), NewAdded("bb", "-")})

	res, err := Tail(store, "")
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !res.Full {
		t.Error("expected full response when no anchor given")
	}
	if len(res.Lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(res.Lines))
	}
}

func TestTailDeltaAfterAnchor(t *testing.T) {
	store := &MemStore{}
	events, _ := Append(store, []PendingEvent{
		NewAdded("aa", "-"),
		NewAdded("bb", "-"),
		NewAdded("cc", "-"),
	})

	res, err := Tail(store, events[0].HashHex())
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if res.Full {
		t.Error("expected delta response")
	}
	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 lines after anchor, got %d", len(res.Lines))
	}
}

func TestTailAnchorAtLastLineIsEmptyDelta(t *testing.T) {
	store := &MemStore{}
	events, _ := Append(store, []PendingEvent{NewAdded("aa", "-")})

	res, err := Tail(store, events[len(events)-1].HashHex())
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if res.Full {
		t.Error("expected delta response for anchor at last line")
	}
	if len(res.Lines) != 0 {
		t.Errorf("expected empty delta, got %d lines", len(res.Lines))
	}
}

// TestTailUnknownAnchorFallsBackToFull checks scenario S5: an anchor that
// never appeared yields a full response, not an error.
func TestTailUnknownAnchorFallsBackToFull(t *testing.T) {
	store := &MemStore{}
	Append(store, []PendingEvent{NewAdded("aa", "-")})

	res, err := Tail(store, "deadbeef")
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !res.Full {
		t.Error("expected fallback to full response for unknown anchor")
	}
}

func TestParseLineSkipsNonConforming(t *testing.T) {
	if _, ok := ParseLine("garbage"); ok {
		t.Error("expected garbage line to be rejected")
	}
	if _, ok := ParseLine("UNKNOWN aa bb cc"); ok {
		t.Error("expected unknown event kind to be rejected")
	}
	ev, ok := ParseLine("ADDED aa bb " + hexEnc(ZeroHash))
	if !ok {
		t.Fatal("expected well-formed line to parse")
	}
	if ev.Kind != Added || ev.OprfHex != "aa" || ev.EncMeta != "bb" {
		t.Errorf("parsed event mismatch: %+v", ev)
	}
}
