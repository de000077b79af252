package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/pkg/wire"
)

// Numeric condition fields.
var numericFields = map[string]func(*wire.Snapshot) (float64, bool){
	"score":               func(s *wire.Snapshot) (float64, bool) { return float64(s.Score), s.Evaluated() },
	"uptime_pct":          func(s *wire.Snapshot) (float64, bool) { return s.UptimePct, true },
	"high_priority_count": func(s *wire.Snapshot) (float64, bool) { return float64(highPriority(s)), s.Evaluated() },
	"retention_rate": func(s *wire.Snapshot) (float64, bool) {
		return withInput(s, func(in *finhealth.Input) float64 { return in.DonorRetention.Rate })
	},
	"recurring_pct": func(s *wire.Snapshot) (float64, bool) {
		return withInput(s, func(in *finhealth.Input) float64 { return in.RecurringGiving.Percentage })
	},
	"giving_change_pct": func(s *wire.Snapshot) (float64, bool) {
		return withInput(s, func(in *finhealth.Input) float64 { return in.GivingTrend.PercentageChange })
	},
	"new_donor_rate": func(s *wire.Snapshot) (float64, bool) {
		return withInput(s, func(in *finhealth.Input) float64 { return in.NewDonorGrowth.Rate })
	},
}

// evalCondition evaluates a rule condition string against a Snapshot.
//
// Supported expressions (field operator value):
//
//	score < 60
//	retention_rate < 50
//	recurring_pct < 30
//	giving_change_pct < -10
//	new_donor_rate < 0
//	uptime_pct < 90
//	high_priority_count >= 2
//	label == needs_attention
//	direction == down
//
// Returns (fires bool, triggering value float64). Fields that need an
// assessment never fire on unevaluated snapshots. Unparseable expressions
// never fire; checkCondition reports them at load time.
func evalCondition(cond string, snap *wire.Snapshot) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	switch field {
	case "label":
		if !snap.Evaluated() {
			return false, 0
		}
		return compareString(snap.Label.Slug(), op, rhs), float64(snap.Score)

	case "direction":
		if snap.Input == nil {
			return false, 0
		}
		return compareString(string(snap.Input.GivingTrend.Direction), op, rhs), snap.Input.GivingTrend.PercentageChange

	default:
		get, ok := numericFields[field]
		if !ok {
			return false, 0
		}
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		v, ok := get(snap)
		if !ok {
			return false, 0
		}
		return compareFloat(v, op, threshold), v
	}
}

// checkCondition reports why cond can never fire, or nil if it is well formed.
func checkCondition(cond string) error {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return fmt.Errorf("want \"field op value\", got %q", cond)
	}
	field, op, rhs := parts[0], parts[1], parts[2]
	switch field {
	case "label", "direction":
		if op != "==" && op != "!=" {
			return fmt.Errorf("%s supports == and != only", field)
		}
		return nil
	}
	if _, ok := numericFields[field]; !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return fmt.Errorf("unknown operator %q", op)
	}
	if _, err := strconv.ParseFloat(rhs, 64); err != nil {
		return fmt.Errorf("threshold %q is not a number", rhs)
	}
	return nil
}

func withInput(s *wire.Snapshot, f func(*finhealth.Input) float64) (float64, bool) {
	if s.Input == nil {
		return 0, false
	}
	return f(s.Input), true
}

func highPriority(s *wire.Snapshot) int {
	n := 0
	for _, r := range s.Recommendations {
		if r.Priority == finhealth.PriorityHigh {
			n++
		}
	}
	return n
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}

func compareString(v, op, want string) bool {
	switch op {
	case "==":
		return v == want
	case "!=":
		return v != want
	default:
		return false
	}
}
