package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloakmatch/psi/internal/dataset"
)

func newTestServer(t *testing.T, name string) (*httptest.Server, dataset.Layout) {
	t.Helper()
	base := t.TempDir()
	l := dataset.Layout{BaseDir: base, Name: name}
	if err := dataset.WriteSchema(l, dataset.Schema{DataName: name, SupportedAlgorithm: dataset.AlgorithmClassic, RekeyInterval: "30d"}); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	if _, err := dataset.GenerateKey(l); err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	srv := New(base, nil)
	return httptest.NewServer(srv.Router()), l
}

func writeSourceFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.txt")
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l + "\n")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// TestScenarioS1SingleRecordRoundTrip exercises the server side of
// scenario S1: reconcile, describe and a full sync against a freshly
// reconciled single-record dataset, plus describe on an unknown dataset.
func TestScenarioS1SingleRecordRoundTrip(t *testing.T) {
	ts, l := newTestServer(t, "threatfeed")
	defer ts.Close()

	src := writeSourceFile(t, `evil.com,{"desc":"bad"}`)
	resp := postJSON(t, ts.URL+"/reconcile", reconcileRequest{Dataset: l.Name, Source: src})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reconcile: status %d", resp.StatusCode)
	}

	descResp, err := http.Get(ts.URL + "/describe?dataset=" + l.Name)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if descResp.StatusCode != http.StatusOK {
		t.Fatalf("describe: status %d", descResp.StatusCode)
	}
	var desc map[string]string
	json.NewDecoder(descResp.Body).Decode(&desc)
	if desc["suite"] != "oprf-ristretto255-sha512" || desc["encryption"] != "xchacha20poly1305-ietf" {
		t.Errorf("unexpected describe response: %+v", desc)
	}

	syncResp, err := http.Get(ts.URL + "/sync?dataset=" + l.Name)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if syncResp.Header.Get("X-Delta") != "full" {
		t.Errorf("expected X-Delta: full on first sync, got %q", syncResp.Header.Get("X-Delta"))
	}
	body, _ := io.ReadAll(syncResp.Body)
	if len(body) == 0 {
		t.Error("expected non-empty log tail")
	}

	descUnknown, _ := http.Get(ts.URL + "/describe?dataset=doesnotexist")
	if descUnknown.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown dataset, got %d", descUnknown.StatusCode)
	}
}

// TestScenarioS2DeltaAfterReconcile exercises S2: a second reconcile
// with one removal and one addition is visible as a delta sync.
func TestScenarioS2DeltaAfterReconcile(t *testing.T) {
	ts, l := newTestServer(t, "threatfeed")
	defer ts.Close()

	src1 := writeSourceFile(t, `a,{"x":1}`, `b,{"y":2}`)
	postJSON(t, ts.URL+"/reconcile", reconcileRequest{Dataset: l.Name, Source: src1})

	first, _ := http.Get(ts.URL + "/sync?dataset=" + l.Name)
	firstBody, _ := io.ReadAll(first.Body)
	lines := splitNonEmpty(string(firstBody))
	anchor := lastToken(lines[len(lines)-1])

	src2 := writeSourceFile(t, `a,{"x":1}`, `c,{"z":3}`)
	postJSON(t, ts.URL+"/reconcile", reconcileRequest{Dataset: l.Name, Source: src2})

	second, _ := http.Get(ts.URL + "/sync?dataset=" + l.Name + "&anchor=" + anchor)
	if second.Header.Get("X-Delta") != "delta" {
		t.Errorf("expected delta response, got %q", second.Header.Get("X-Delta"))
	}
	secondBody, _ := io.ReadAll(second.Body)
	deltaLines := splitNonEmpty(string(secondBody))
	if len(deltaLines) != 2 {
		t.Fatalf("expected 2 delta lines (1 removed, 1 added), got %d", len(deltaLines))
	}
}

func TestEvaluateRejectsBadBlindedPoint(t *testing.T) {
	ts, l := newTestServer(t, "threatfeed")
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/evaluate", evaluateRequest{DataType: l.Name, Blinded: "not-hex"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// TestScenarioS6EvaluateUnknownDataset covers S6: evaluate against a
// dataset with no schema returns 404 and never attempts to load a key.
func TestScenarioS6EvaluateUnknownDataset(t *testing.T) {
	ts, _ := newTestServer(t, "threatfeed")
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/evaluate", evaluateRequest{
		DataType: "doesnotexist",
		Blinded:  strings.Repeat("ab", 32),
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown dataset, got %d", resp.StatusCode)
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, l := range bytes.Split([]byte(s), []byte("\n")) {
		if len(bytes.TrimSpace(l)) > 0 {
			out = append(out, string(l))
		}
	}
	return out
}

func lastToken(line string) string {
	fields := bytes.Fields([]byte(line))
	if len(fields) == 0 {
		return ""
	}
	return string(fields[len(fields)-1])
}
