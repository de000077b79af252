package wire

import (
	"time"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
)

// Snapshot is one scrape-and-derive cycle for a single congregation.
type Snapshot struct {
	SourceID      string `json:"source_id"`
	SourceType    string `json:"source_type"`
	Name          string `json:"name,omitempty"`
	PeriodID      string `json:"period_id,omitempty"`
	TimestampUnix int64  `json:"timestamp_unix"`

	// Input is nil when the scrape failed or the source is still warming up.
	Input *finhealth.Input `json:"input,omitempty"`

	// UptimePct is the scrape success rate over the agent's recent window.
	UptimePct    float64 `json:"uptime_pct"`
	ErrorMessage string  `json:"error_message,omitempty"`

	// Filled by the server.
	Score           int                        `json:"score"`
	Label           finhealth.Label            `json:"label,omitempty"`
	SubScores       finhealth.SubScores        `json:"sub_scores"`
	Recommendations []finhealth.Recommendation `json:"recommendations,omitempty"`
}

// Timestamp returns TimestampUnix as a time.Time.
func (s *Snapshot) Timestamp() time.Time {
	return time.Unix(s.TimestampUnix, 0)
}

// Evaluated reports whether the server attached an assessment.
func (s *Snapshot) Evaluated() bool {
	return s.Label != ""
}

// Apply copies an assessment into the evaluation fields.
func (s *Snapshot) Apply(a finhealth.Assessment) {
	s.Score = a.Result.Score
	s.Label = a.Result.Label
	s.SubScores = a.Result.SubScores
	s.Recommendations = a.Recommendations
}

// Assessment returns the evaluation fields as a finhealth.Assessment.
func (s *Snapshot) Assessment() finhealth.Assessment {
	return finhealth.Assessment{
		Result: finhealth.Result{
			Score:     s.Score,
			Label:     s.Label,
			SubScores: s.SubScores,
		},
		Recommendations: s.Recommendations,
	}
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.Input != nil {
		in := *s.Input
		out.Input = &in
	}
	if s.Recommendations != nil {
		out.Recommendations = append([]finhealth.Recommendation(nil), s.Recommendations...)
	}
	return &out
}

// SendResponse acknowledges a Snapshot.
type SendResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}
