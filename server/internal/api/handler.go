package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/server/internal/alerts"
	"github.com/stewardlens/stewardlens/server/internal/history"
	"github.com/stewardlens/stewardlens/server/internal/store"
)

// maxBodyBytes bounds POST /api/v1/evaluate request bodies.
const maxBodyBytes = 1 << 20

// AlertSource is the subset of *alerts.Engine the API reads.
type AlertSource interface {
	Active() []*alerts.Alert
	FiringCount() int
}

// HistorySource is the subset of *history.Store the API reads.
type HistorySource interface {
	List(ctx context.Context, sourceID string, limit int) ([]history.Record, error)
}

// Instrumenter wraps a named route with request metrics.
type Instrumenter interface {
	Instrument(handler string, next http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithAlerts serves active alerts from src.
func WithAlerts(src AlertSource) Option {
	return func(h *Handler) { h.alerts = src }
}

// WithHistory enables the per-congregation history endpoint.
func WithHistory(src HistorySource) Option {
	return func(h *Handler) { h.history = src }
}

// WithMemo evaluates ad-hoc requests through m instead of computing afresh.
func WithMemo(m *finhealth.Memo) Option {
	return func(h *Handler) { h.memo = m }
}

// WithMetrics records request counts and durations per route.
func WithMetrics(m Instrumenter) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithRateLimit caps the request rate across all routes. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *Handler) {
		if rps > 0 {
			h.limiter = newRateLimiter(rps, burst)
		}
	}
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads congregation state from the snapshot store and returns JSON responses.
type Handler struct {
	store   *store.Store
	alerts  AlertSource
	history HistorySource
	memo    *finhealth.Memo
	metrics Instrumenter
	limiter *rateLimiter
	mux     *http.ServeMux
}

// New creates a Handler wired to the given snapshot store and registers all routes.
func New(st *store.Store, opts ...Option) *Handler {
	h := &Handler{store: st, mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(h)
	}

	h.route("/api/v1/health", "health", h.health)
	h.route("/api/v1/evaluate", "evaluate", h.evaluate)
	h.route("/api/v1/congregations", "congregations", h.listCongregations)
	h.route("/api/v1/congregations/", "congregation", h.congregationRoutes) // subtree: {id}, {id}/history
	h.route("/api/v1/alerts", "alerts", h.listAlerts)
	h.route("/api/v1/snapshot", "snapshot", h.snapshot)

	return h
}

func (h *Handler) route(pattern, name string, fn http.HandlerFunc) {
	var next http.Handler = fn
	if h.metrics != nil {
		next = h.metrics.Instrument(name, next)
	}
	h.mux.Handle(pattern, next)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.allow() {
		w.Header().Set("Retry-After", "1")
		jsonErr(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: mean score and per-label counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{
		CongregationCount: len(entries),
	}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.FiringCount()
	}

	var total float64
	var evaluated int
	for _, e := range entries {
		switch e.Snapshot.Label {
		case finhealth.LabelExcellent:
			resp.ExcellentCount++
		case finhealth.LabelGood:
			resp.GoodCount++
		case finhealth.LabelFair:
			resp.FairCount++
		case finhealth.LabelNeedsAttention:
			resp.NeedsAttentionCount++
		default:
			resp.UnevaluatedCount++
			continue
		}
		total += float64(e.Snapshot.Score)
		evaluated++
	}

	if evaluated == 0 {
		resp.Label = "unknown"
		jsonResp(w, http.StatusOK, resp)
		return
	}

	resp.OverallScore = total / float64(evaluated)
	resp.Label = string(finhealth.LabelFor(int(math.Floor(resp.OverallScore + 0.5))))
	jsonResp(w, http.StatusOK, resp)
}

// evaluate handles POST /api/v1/evaluate: scores an ad-hoc Input body.
func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, err := parseLimit(r, finhealth.MaxRecommendations)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	var in finhealth.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := finhealth.Validate(in); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	a := h.memo.Evaluate(r.Context(), in)
	jsonResp(w, http.StatusOK, EvaluateResponse{
		Score:           a.Result.Score,
		Label:           a.Result.Label,
		SubScores:       a.Result.SubScores,
		Breakdown:       finhealth.Breakdown(a.Result.SubScores),
		Recommendations: nonNilRecs(finhealth.Top(a.Recommendations, limit)),
	})
}

// listCongregations returns GET /api/v1/congregations: all live congregations.
func (h *Handler) listCongregations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	out := make([]CongregationResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toCongregationResponse(e))
	}
	jsonResp(w, http.StatusOK, out)
}

// congregationRoutes dispatches /api/v1/congregations/{id} and
// /api/v1/congregations/{id}/history.
func (h *Handler) congregationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/congregations/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		jsonErr(w, http.StatusNotFound, "congregation id required")
		return
	}

	switch sub {
	case "":
		h.getCongregation(w, r, id)
	case "history":
		h.congregationHistory(w, r, id)
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

// getCongregation returns GET /api/v1/congregations/{id}.
func (h *Handler) getCongregation(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	e, ok := h.store.Fresh(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "congregation not found")
		return
	}
	jsonResp(w, http.StatusOK, toCongregationResponse(e))
}

// congregationHistory returns GET /api/v1/congregations/{id}/history, newest
// first. Records outlive the in-memory snapshot, so an evicted congregation
// still has history.
func (h *Handler) congregationHistory(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.history == nil {
		jsonErr(w, http.StatusServiceUnavailable, "history storage is disabled")
		return
	}

	limit, err := parseLimit(r, history.DefaultListLimit)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.history.List(r.Context(), id, limit)
	if err != nil {
		slog.Error("api: history list failed", "source_id", id, "err", err)
		jsonErr(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	jsonResp(w, http.StatusOK, HistoryResponse{SourceID: id, Records: recs})
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	out := []*alerts.Alert{}
	if h.alerts != nil {
		if active := h.alerts.Active(); active != nil {
			out = active
		}
	}
	jsonResp(w, http.StatusOK, out)
}

// snapshot returns GET /api/v1/snapshot: all live congregations plus a timestamp.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// BuildSnapshot assembles a SnapshotResponse from all live store entries.
// The WebSocket hub uses it to build its broadcast payload.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	entries := st.List()
	out := make([]CongregationResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toCongregationResponse(e))
	}
	return SnapshotResponse{
		Congregations: out,
		GeneratedAt:   time.Now().UTC(),
	}
}

// --- helpers -----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, errorResponse{Error: msg})
}

var errBadLimit = errors.New("limit must be a non-negative integer")

// parseLimit reads ?limit=. Absent or zero yields def.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", errBadLimit, raw)
	}
	if n == 0 {
		return def, nil
	}
	return n, nil
}

func toCongregationResponse(e *store.Entry) CongregationResponse {
	s := e.Snapshot
	resp := CongregationResponse{
		SourceID:        s.SourceID,
		SourceType:      s.SourceType,
		Name:            s.Name,
		PeriodID:        s.PeriodID,
		Score:           s.Score,
		Label:           s.Label,
		SubScores:       s.SubScores,
		Recommendations: nonNilRecs(s.Recommendations),
		Input:           s.Input,
		UptimePct:       s.UptimePct,
		ErrorMessage:    s.ErrorMessage,
		Diagnostics:     computeDiagnostics(s),
		LastSeen:        e.UpdatedAt,
	}
	if s.Evaluated() {
		resp.Breakdown = finhealth.Breakdown(s.SubScores)
	}
	return resp
}

func nonNilRecs(recs []finhealth.Recommendation) []finhealth.Recommendation {
	if recs == nil {
		return []finhealth.Recommendation{}
	}
	return recs
}
