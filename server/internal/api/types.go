package api

import (
	"time"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/server/internal/history"
)

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	// OverallScore is the mean score across evaluated live congregations.
	OverallScore float64 `json:"overall_score"`

	// Label is the band of the rounded OverallScore, or "unknown" when no
	// congregation has been evaluated yet.
	Label string `json:"label"`

	CongregationCount   int `json:"congregation_count"`
	ExcellentCount      int `json:"excellent_count"`
	GoodCount           int `json:"good_count"`
	FairCount           int `json:"fair_count"`
	NeedsAttentionCount int `json:"needs_attention_count"`
	UnevaluatedCount    int `json:"unevaluated_count"`
	AlertCount          int `json:"alert_count"`
}

// CongregationResponse is the JSON representation of one congregation's
// latest snapshot.
type CongregationResponse struct {
	SourceID        string                     `json:"source_id"`
	SourceType      string                     `json:"source_type"`
	Name            string                     `json:"name,omitempty"`
	PeriodID        string                     `json:"period_id,omitempty"`
	Score           int                        `json:"score"`
	Label           finhealth.Label            `json:"label,omitempty"`
	SubScores       finhealth.SubScores        `json:"sub_scores"`
	Breakdown       []finhealth.Dimension      `json:"breakdown,omitempty"`
	Recommendations []finhealth.Recommendation `json:"recommendations"`
	Input           *finhealth.Input           `json:"input,omitempty"`
	UptimePct       float64                    `json:"uptime_pct"`
	ErrorMessage    string                     `json:"error_message,omitempty"`
	Diagnostics     []DiagnosticHint           `json:"diagnostics"`
	LastSeen        time.Time                  `json:"last_seen"`
}

// EvaluateResponse is returned by POST /api/v1/evaluate.
type EvaluateResponse struct {
	Score           int                        `json:"score"`
	Label           finhealth.Label            `json:"label"`
	SubScores       finhealth.SubScores        `json:"sub_scores"`
	Breakdown       []finhealth.Dimension      `json:"breakdown"`
	Recommendations []finhealth.Recommendation `json:"recommendations"`
}

// HistoryResponse is returned by GET /api/v1/congregations/{id}/history.
type HistoryResponse struct {
	SourceID string           `json:"source_id"`
	Records  []history.Record `json:"records"`
}

// SnapshotResponse is returned by GET /api/v1/snapshot and pushed over the
// WebSocket stream.
type SnapshotResponse struct {
	Congregations []CongregationResponse `json:"congregations"`
	GeneratedAt   time.Time              `json:"generated_at"`
}

// errorResponse is the standard JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
