package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cloakmatch/psi/internal/errs"
)

// HTTPClient is a thin wrapper over net/http bound to one server
// address, with an implementation-defined request timeout (spec §5).
type HTTPClient struct {
	Host    string
	Port    int
	HTTP    *http.Client
	Timeout time.Duration
}

// NewHTTPClient builds a client with a default 30s per-request timeout.
func NewHTTPClient(host string, port int) *HTTPClient {
	return &HTTPClient{Host: host, Port: port, HTTP: http.DefaultClient, Timeout: 30 * time.Second}
}

func (c *HTTPClient) base() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	u := c.base() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errs.New("client.http", errs.Io, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errs.New("client.http", errs.Io, err)
	}
	return resp, nil
}

// Describe calls GET /describe?dataset=<name>.
func (c *HTTPClient) Describe(ctx context.Context, dataName string) (map[string]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/describe", url.Values{"dataset": {dataName}}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusErr("client.Describe", resp)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errs.New("client.Describe", errs.Io, err)
	}
	return out, nil
}

// SyncResult is the decoded response of a sync round trip.
type SyncResult struct {
	Body  string
	Delta bool
}

// Sync calls GET /sync?dataset=<name>[&anchor=<hex>].
func (c *HTTPClient) Sync(ctx context.Context, dataName, anchor string) (SyncResult, error) {
	q := url.Values{"dataset": {dataName}}
	if anchor != "" {
		q.Set("anchor", anchor)
	}
	resp, err := c.do(ctx, http.MethodGet, "/sync", q, nil)
	if err != nil {
		return SyncResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return SyncResult{}, statusErr("client.Sync", resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SyncResult{}, errs.New("client.Sync", errs.Io, err)
	}
	return SyncResult{Body: string(raw), Delta: resp.Header.Get("X-Delta") == "delta"}, nil
}

// Evaluate calls POST /evaluate with the blinded point, returning the
// hex-encoded evaluated point.
func (c *HTTPClient) Evaluate(ctx context.Context, dataName, blindedHex string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"data_type": dataName, "blinded": blindedHex})
	resp, err := c.do(ctx, http.MethodPost, "/evaluate", nil, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusErr("client.Evaluate", resp)
	}
	var out struct {
		Evaluated string `json:"evaluated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errs.New("client.Evaluate", errs.Io, err)
	}
	return out.Evaluated, nil
}

func statusErr(op string, resp *http.Response) error {
	kind := errs.Io
	switch resp.StatusCode {
	case http.StatusNotFound:
		kind = errs.NotFound
	case http.StatusBadRequest:
		kind = errs.InvalidInput
	}
	return errs.New(op, kind, fmt.Errorf("server returned HTTP %d", resp.StatusCode))
}
