package api

import (
	"fmt"
	"math"
	"sort"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/pkg/wire"
)

// DiagnosticHint is a single plain-English observation about a congregation,
// shown next to its score so a treasurer can see what is driving it.
type DiagnosticHint struct {
	Key    string   `json:"key"`
	Level  string   `json:"level"` // ok | info | warning | critical
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

// Hint levels.
const (
	LevelOK       = "ok"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// weakSubScore is the sub-score below which a dimension is flagged as a
// warning rather than informational.
const weakSubScore = 40

// computeDiagnostics returns hints for snap, most severe first.
func computeDiagnostics(snap *wire.Snapshot) []DiagnosticHint {
	var hints []DiagnosticHint

	if snap.ErrorMessage != "" {
		hints = append(hints, DiagnosticHint{
			Key:   "scrape_error",
			Level: LevelCritical,
			Title: "Data source unreachable",
			Detail: fmt.Sprintf(
				"The agent could not read giving data for this congregation: %s. "+
					"The last score is withheld until a scrape succeeds. "+
					"Check that the endpoint is up and the credentials are valid.",
				snap.ErrorMessage,
			),
		})
	} else if snap.Input == nil {
		hints = append(hints, DiagnosticHint{
			Key:   "warming_up",
			Level: LevelInfo,
			Title: "Collecting data",
			Detail: "The agent has connected but has not derived a full period of metrics yet. " +
				"A score appears once a comparison period is available.",
		})
	}

	if snap.UptimePct > 0 && snap.UptimePct < 100 {
		v := snap.UptimePct
		level := LevelInfo
		switch {
		case v < 70:
			level = LevelCritical
		case v < 90:
			level = LevelWarning
		}
		hints = append(hints, DiagnosticHint{
			Key:   "uptime",
			Level: level,
			Title: fmt.Sprintf("%.0f%% uptime", v),
			Detail: fmt.Sprintf(
				"The data source answered %.0f%% of recent scrape attempts. "+
					"Gaps delay score updates but do not change the score itself.",
				v,
			),
			Value: &v,
		})
	}

	if snap.Evaluated() {
		hints = append(hints, dimensionHints(snap)...)
	}

	if len(hints) == 0 {
		score := float64(snap.Score)
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: LevelOK,
			Title: "All clear",
			Detail: fmt.Sprintf(
				"Giving health is %s with a score of %d/100 and every dimension is holding up.",
				snap.Label, snap.Score,
			),
			Value: &score,
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelOrder(hints[i].Level) < levelOrder(hints[j].Level)
	})
	return hints
}

// dimensionHints flags the weakest scoring dimension and the trend direction.
func dimensionHints(snap *wire.Snapshot) []DiagnosticHint {
	var hints []DiagnosticHint

	rows := finhealth.Breakdown(snap.SubScores)
	weakest := rows[0]
	for _, r := range rows[1:] {
		if r.SubScore < weakest.SubScore {
			weakest = r
		}
	}
	if weakest.SubScore < 100 {
		v := weakest.SubScore
		level := LevelInfo
		if v < weakSubScore {
			level = LevelWarning
		}
		lost := (100 - v) * weakest.Weight
		hints = append(hints, DiagnosticHint{
			Key:   "weakest_" + weakest.Key,
			Level: level,
			Title: fmt.Sprintf("%s is the weakest dimension", weakest.Title),
			Detail: fmt.Sprintf(
				"%s rates %.0f/100 and carries %.0f%% of the overall score, "+
					"costing about %.1f points.",
				weakest.Title, v, weakest.Weight*100, lost,
			),
			Value: &v,
		})
	}

	if snap.Input != nil && snap.Input.GivingTrend.Direction == finhealth.DirectionDown {
		v := math.Abs(snap.Input.GivingTrend.PercentageChange)
		hints = append(hints, DiagnosticHint{
			Key:   "giving_down",
			Level: LevelWarning,
			Title: fmt.Sprintf("Giving down %.1f%%", v),
			Detail: fmt.Sprintf(
				"Total giving fell %.1f%% %s. One soft period is common; "+
					"two in a row usually warrants a conversation with the finance team.",
				v, trendPeriod(snap.Input.GivingTrend.ComparisonPeriodLabel),
			),
			Value: &v,
		})
	}
	return hints
}

func trendPeriod(label string) string {
	if label == "" {
		return "against the previous period"
	}
	return label
}

func levelOrder(level string) int {
	switch level {
	case LevelCritical:
		return 0
	case LevelWarning:
		return 1
	case LevelInfo:
		return 2
	default:
		return 3
	}
}
