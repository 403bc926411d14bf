// Package server implements the query responder (C4): the HTTP
// endpoints a dataset exposes for description, log-tail replication,
// and blinded OPRF evaluation, plus an administrative endpoint that
// triggers a reconcile.
package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/singleflight"

	"github.com/cloakmatch/psi/internal/changelog"
	"github.com/cloakmatch/psi/internal/crypto"
	"github.com/cloakmatch/psi/internal/dataset"
	"github.com/cloakmatch/psi/internal/errs"
)

// Server holds everything the query responder's handlers need: where
// dataset state lives on disk, a logger, and a singleflight group that
// collapses concurrent /reconcile calls for the same dataset into one
// in-flight operation (reinforcing, not replacing, the operator's
// single-writer discipline). Rekey is not served over HTTP and does not
// pass through this group.
type Server struct {
	BaseDir string
	Log     *slog.Logger
	writers singleflight.Group
}

// New constructs a Server. A nil logger falls back to slog.Default().
func New(baseDir string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{BaseDir: baseDir, Log: log}
}

func (s *Server) layout(name string) dataset.Layout {
	return dataset.Layout{BaseDir: s.BaseDir, Name: name}
}

// Router builds the gorilla/mux router for the query responder's wire
// protocol (spec §6) plus a Prometheus /metrics endpoint and an
// administrative /reconcile endpoint.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)
	r.HandleFunc("/describe", s.handleDescribe).Methods(http.MethodGet)
	r.HandleFunc("/sync", s.handleSync).Methods(http.MethodGet)
	r.HandleFunc("/evaluate", s.handleEvaluate).Methods(http.MethodPost)
	r.HandleFunc("/reconcile", s.handleReconcile).Methods(http.MethodPost)
	r.Handle("/metrics", metricsHandler())
	return r
}

// instrument wraps every request with a correlation ID, structured
// access logging, and Prometheus counters/histograms.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		reqID := uuid.NewString()
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		ctx := context.WithValue(req.Context(), requestIDKey, reqID)
		next.ServeHTTP(sw, req.WithContext(ctx))

		route := req.URL.Path
		dur := time.Since(start)
		requestsTotal.WithLabelValues(route, http.StatusText(sw.status)).Inc()
		requestDuration.WithLabelValues(route).Observe(dur.Seconds())
		s.Log.Info("request",
			"request_id", reqID,
			"route", route,
			"status", sw.status,
			"duration_ms", dur.Milliseconds(),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID extracts the correlation ID instrument attached to ctx, if
// any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	writeJSON(w, kind.HTTPStatus(), map[string]string{"error": err.Error()})
}

// handleDescribe implements GET /describe?dataset=<name>.
func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("dataset")
	if err := dataset.ValidateName(name); err != nil {
		writeErr(w, err)
		return
	}
	l := s.layout(name)
	if !dataset.SchemaExists(l) {
		writeErr(w, errs.New("server.describe", errs.NotFound, errDatasetUnknown))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"data_type":  name,
		"encryption": "xchacha20poly1305-ietf",
		"suite":      "oprf-ristretto255-sha512",
	})
}

// handleSync implements GET /sync?dataset=<name>[&anchor=<hex>].
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("dataset")
	if err := dataset.ValidateName(name); err != nil {
		writeErr(w, err)
		return
	}
	l := s.layout(name)
	if !dataset.SchemaExists(l) {
		writeErr(w, errs.New("server.sync", errs.NotFound, errDatasetUnknown))
		return
	}

	anchor := r.URL.Query().Get("anchor")
	store := changelog.FileStore{Path: l.LogPath()}
	tail, err := changelog.Tail(store, anchor)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=changes_"+name+".log")
	if tail.Full {
		w.Header().Set("X-Delta", "full")
	} else {
		w.Header().Set("X-Delta", "delta")
	}
	w.WriteHeader(http.StatusOK)
	for _, line := range tail.Lines {
		_, _ = w.Write([]byte(line + "\n"))
	}
}

type evaluateRequest struct {
	DataType string `json:"data_type"`
	Blinded  string `json:"blinded"`
}

type evaluateResponse struct {
	Evaluated string `json:"evaluated"`
}

// handleEvaluate implements POST /evaluate.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, errs.New("server.evaluate", errs.InvalidInput, err))
		return
	}
	if err := dataset.ValidateName(req.DataType); err != nil {
		writeErr(w, err)
		return
	}
	blinded, err := hex.DecodeString(req.Blinded)
	if err != nil || len(blinded) != crypto.PointBytes {
		writeErr(w, errs.New("server.evaluate", errs.InvalidInput, errBadBlindedPoint))
		return
	}

	l := s.layout(req.DataType)
	if !dataset.SchemaExists(l) {
		writeErr(w, errs.New("server.evaluate", errs.NotFound, errDatasetUnknown))
		return
	}
	key, err := dataset.LoadKey(l)
	if err != nil {
		writeErr(w, err)
		return
	}
	var b crypto.Point32
	copy(b[:], blinded)
	evaluated, err := crypto.BlindEvaluate(key, b)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Evaluated: hex.EncodeToString(evaluated.Bytes())})
}

type reconcileRequest struct {
	Dataset string `json:"dataset"`
	Source  string `json:"source"`
}

// handleReconcile implements POST /reconcile, an administrative
// endpoint triggering a dataset reconcile against a source file
// already present on the server's filesystem. Concurrent reconciles of
// the same dataset are collapsed via singleflight.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, errs.New("server.reconcile", errs.InvalidInput, err))
		return
	}
	if err := dataset.ValidateName(req.Dataset); err != nil {
		writeErr(w, err)
		return
	}

	l := s.layout(req.Dataset)
	v, err, _ := s.writers.Do(req.Dataset, func() (any, error) {
		rec := &dataset.Reconciler{Layout: l, Log: changelog.FileStore{Path: l.LogPath()}}
		return rec.Reconcile(req.Source)
	})
	if err != nil {
		reconcileTotal.WithLabelValues(req.Dataset, "error").Inc()
		writeErr(w, err)
		return
	}
	reconcileTotal.WithLabelValues(req.Dataset, "ok").Inc()
	res := v.(dataset.ReconcileResult)
	writeJSON(w, http.StatusOK, map[string]int{
		"added":    res.Added,
		"removed":  res.Removed,
		"upgraded": res.Upgraded,
	})
}
