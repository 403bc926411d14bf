package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloakmatch/psi/internal/changelog"
	"github.com/cloakmatch/psi/internal/dataset"
	"github.com/cloakmatch/psi/internal/server"
)

func startTestServer(t *testing.T, name string) (*httptest.Server, string) {
	t.Helper()
	base := t.TempDir()
	l := dataset.Layout{BaseDir: base, Name: name}
	if err := dataset.WriteSchema(l, dataset.Schema{DataName: name, SupportedAlgorithm: dataset.AlgorithmClassic, RekeyInterval: "30d"}); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	if _, err := dataset.GenerateKey(l); err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	ts := httptest.NewServer(server.New(base, nil).Router())
	return ts, base
}

func reconcileOnServer(t *testing.T, ts *httptest.Server, name, source string) {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"dataset": name, "source": source})
	resp, err := http.Post(ts.URL+"/reconcile", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reconcile status: %d", resp.StatusCode)
	}
}

func writeTestSource(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.txt")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

// TestEngineScenarioS1 exercises a full sync + query round trip against
// a live in-process server.
func TestEngineScenarioS1(t *testing.T) {
	ts, _ := startTestServer(t, "threatfeed")
	defer ts.Close()

	src := writeTestSource(t, `evil.com,{"desc":"bad"}`)
	reconcileOnServer(t, ts, "threatfeed", src)

	addr := strings.TrimPrefix(ts.URL, "http://")
	engine, err := NewEngine(addr, "threatfeed", t.TempDir())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	res, err := engine.Query(context.Background(), "evil.com")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !res.Matched {
		t.Fatal("expected match for evil.com")
	}
	if string(res.Metadata) != `{"desc":"bad"}` {
		t.Errorf("unexpected metadata: %s", res.Metadata)
	}

	miss, err := engine.Query(context.Background(), "safe.com")
	if err != nil {
		t.Fatalf("Query safe.com: %v", err)
	}
	if miss.Matched {
		t.Error("expected no match for safe.com")
	}
}

// TestEngineScenarioS3RekeyForcesFullReplay exercises S3: after a
// rekey, the client's next sync is a full replay and queries still
// succeed against the rotated key.
func TestEngineScenarioS3RekeyForcesFullReplay(t *testing.T) {
	ts, base := startTestServer(t, "threatfeed")
	defer ts.Close()

	src := writeTestSource(t, `evil.com,{"desc":"bad"}`)
	reconcileOnServer(t, ts, "threatfeed", src)

	addr := strings.TrimPrefix(ts.URL, "http://")
	engine, err := NewEngine(addr, "threatfeed", t.TempDir())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := engine.Sync(context.Background(), ""); err != nil {
		t.Fatalf("initial sync: %v", err)
	}

	l := dataset.Layout{BaseDir: base, Name: "threatfeed"}
	store := changelog.FileStore{Path: l.LogPath()}
	if _, err := dataset.Rekey(l, store, src); err != nil {
		t.Fatalf("Rekey: %v", err)
	}

	report, err := engine.Sync(context.Background(), "")
	if err != nil {
		t.Fatalf("post-rekey sync: %v", err)
	}
	if !report.Full {
		t.Error("expected full replay after rekey")
	}

	res, err := engine.Query(context.Background(), "evil.com")
	if err != nil {
		t.Fatalf("Query after rekey: %v", err)
	}
	if !res.Matched {
		t.Error("expected match after rekey against rotated key")
	}
}
