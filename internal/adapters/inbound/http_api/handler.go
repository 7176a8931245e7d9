package http_api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CMCFame/parseteamsapifb/internal/adapters/outbound/result_store"
	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
	"github.com/CMCFame/parseteamsapifb/internal/events"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

const (
	maxBodyBytes     = 1 << 20
	maxTextsPerCall  = 500
	defaultReviewRow = 50
	maxReviewRows    = 1000
)

// Resolver is satisfied by *resolver.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, text string) resolver.Result
}

// ReviewSource is satisfied by *result_store.Store.
type ReviewSource interface {
	NeedsReview(n int) ([]result_store.Row, error)
}

// Handler serves the resolver over HTTP.
//
// Routes:
//
//	POST /resolve  {"text": "..."} or {"texts": ["...", ...]}
//	GET  /review   ?n=50, stored results that need a human look
//	GET  /metrics  JSON counters and latencies
//	GET  /health   -> 200 OK
//	GET  /ws       review feed (when a fan-out server is attached)
type Handler struct {
	resolver Resolver
	bus      *events.Bus
	review   ReviewSource
	feed     http.HandlerFunc
}

func NewHandler(r Resolver, bus *events.Bus) *Handler {
	return &Handler{resolver: r, bus: bus}
}

// WithReview enables GET /review.
func (h *Handler) WithReview(src ReviewSource) *Handler {
	h.review = src
	return h
}

// WithFeed mounts a WebSocket handler at GET /ws.
func (h *Handler) WithFeed(ws http.HandlerFunc) *Handler {
	h.feed = ws
	return h
}

// RegisterRoutes wires HTTP routes onto the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /resolve", h.handleResolve)
	mux.HandleFunc("GET /review", h.handleReview)
	mux.HandleFunc("GET /metrics", h.handleMetrics)
	mux.HandleFunc("GET /health", h.healthCheck)
	if h.feed != nil {
		mux.HandleFunc("GET /ws", h.feed)
	}
}

type resolveRequest struct {
	Text  string   `json:"text"`
	Texts []string `json:"texts"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req resolveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	switch {
	case len(req.Texts) > 0:
		if len(req.Texts) > maxTextsPerCall {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d texts per call", maxTextsPerCall))
			return
		}
		out := make([]resolver.Result, 0, len(req.Texts))
		for _, text := range req.Texts {
			if r.Context().Err() != nil {
				return
			}
			out = append(out, h.resolve(r.Context(), text))
		}
		writeJSON(w, http.StatusOK, out)
	case strings.TrimSpace(req.Text) != "":
		writeJSON(w, http.StatusOK, h.resolve(r.Context(), req.Text))
	default:
		writeError(w, http.StatusBadRequest, `"text" or "texts" is required`)
	}
}

func (h *Handler) resolve(ctx context.Context, text string) resolver.Result {
	start := time.Now()
	res := h.resolver.Resolve(ctx, text)
	if h.bus != nil {
		h.bus.Publish(events.NewResolution(events.OriginHTTP, events.ResolutionEvent{Result: res}))
	}
	telemetry.Infof("http_api: resolve %q -> %s %s fixture=%d (%s)",
		text, res.Status, res.Reason, res.FixtureID, time.Since(start).Round(time.Millisecond))
	return res
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	if h.review == nil {
		writeError(w, http.StatusServiceUnavailable, "result store disabled")
		return
	}
	n := defaultReviewRow
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = min(parsed, maxReviewRows)
	}
	rows, err := h.review.NeedsReview(n)
	if err != nil {
		telemetry.Errorf("http_api: review query: %v", err)
		writeError(w, http.StatusInternalServerError, "review query failed")
		return
	}
	if rows == nil {
		rows = []result_store.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, telemetry.TakeSnapshot())
}

func (h *Handler) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// readBody accepts plain and gzip-encoded bodies up to maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	var reader io.Reader = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip header: %w", err)
		}
		defer gz.Close()
		reader = io.LimitReader(gz, maxBodyBytes)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		telemetry.Warnf("http_api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
