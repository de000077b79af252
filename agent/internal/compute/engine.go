package compute

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/stewardlens/stewardlens/agent/internal/scraper"
	"github.com/stewardlens/stewardlens/pkg/finhealth"
)

// uptimeWindow is the number of recent scrape outcomes tracked for uptime %.
const uptimeWindow = 20

// Result states.
const (
	StateReady     = "ready"
	StateWarmingUp = "warming_up"
	StateFailed    = "failed"
)

// Result is the derived snapshot for one congregation, ready to be handed to
// the gRPC shipper.
type Result struct {
	SourceID   string
	SourceType string
	Name       string
	PeriodID   string
	Timestamp  time.Time
	State      string
	UptimePct  float64

	// Input is nil unless State is StateReady.
	Input *finhealth.Input

	// ErrorMessage is non-empty when the scrape failed; forwarded to the server.
	ErrorMessage string
}

// Engine maintains per-source state across scrape cycles and derives the four
// metric groups from raw ScrapeResult values.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	stableBand float64
	states     map[string]*sourceState
}

// NewEngine returns a ready-to-use Engine. stableBandPct is the absolute
// giving change, in percent, within which the trend is reported as stable.
func NewEngine(stableBandPct float64) *Engine {
	return &Engine{
		stableBand: math.Abs(stableBandPct),
		states:     make(map[string]*sourceState),
	}
}

// SetStableBand changes the stable band for subsequent Process calls.
func (e *Engine) SetStableBand(pct float64) {
	e.mu.Lock()
	e.stableBand = math.Abs(pct)
	e.mu.Unlock()
}

// Process ingests a ScrapeResult and returns the derived snapshot.
//
// now is passed explicitly so callers (and tests) control the clock without
// sleeping. Use time.Now() in production.
//
// When the period id changes, the last values seen for the old period become
// the "previous" values, so period-over-period change can be derived even
// from exporters that only publish the current period.
func (e *Engine) Process(res *scraper.ScrapeResult, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(res.SourceID)
	success := res.Err == nil
	st.recordScrape(success)

	out := &Result{
		SourceID:   res.SourceID,
		SourceType: res.SourceType,
		Name:       res.Name,
		PeriodID:   res.PeriodID,
		Timestamp:  now,
		UptimePct:  st.uptimePct(),
	}

	if !success {
		slog.Warn("compute: scrape failed",
			"source", res.SourceID, "err", res.Err)
		out.State = StateFailed
		out.ErrorMessage = res.Err.Error()
		return out
	}

	var in finhealth.Input
	if res.Input != nil {
		in = *res.Input
	} else {
		st.advance(res)
		if _, ok := st.cur[scraper.ValueGivingCurrent]; !ok {
			out.State = StateWarmingUp
			return out
		}
		in = e.derive(st, res.ComparisonLabel)
	}

	// Non-finite figures cannot be encoded on the wire.
	if err := finhealth.Validate(in); err != nil {
		slog.Warn("compute: input rejected",
			"source", res.SourceID, "err", err)
		out.State = StateFailed
		out.ErrorMessage = err.Error()
		return out
	}
	out.Input = &in
	out.State = StateReady
	return out
}

// Forget drops all state for a source, e.g. after it is removed from config.
func (e *Engine) Forget(sourceID string) {
	e.mu.Lock()
	delete(e.states, sourceID)
	e.mu.Unlock()
}

// derive builds the four metric groups from the source's current and
// previous period values.
func (e *Engine) derive(st *sourceState, label string) finhealth.Input {
	giving := st.cur[scraper.ValueGivingCurrent]
	givingPrev, hasPrev := st.previous(scraper.ValueGivingPrevious, scraper.ValueGivingCurrent)
	change := pctChange(giving, givingPrev, hasPrev)

	total := st.cur[scraper.ValueDonorsTotal]
	retained := st.cur[scraper.ValueDonorsRetained]
	lost, ok := st.cur[scraper.ValueDonorsLost]
	if !ok {
		lost = math.Max(0, total-retained)
	}
	recurring := st.cur[scraper.ValueRecurringDonors]

	newCur := st.cur[scraper.ValueNewDonorsCurrent]
	newPrev, hasNewPrev := st.previous(scraper.ValueNewDonorsPrevious, scraper.ValueNewDonorsCurrent)

	return finhealth.Input{
		GivingTrend: finhealth.GivingTrend{
			Direction:             e.direction(change),
			PercentageChange:      change,
			ComparisonPeriodLabel: label,
		},
		DonorRetention: finhealth.DonorRetention{
			Rate:           ratio(retained, total),
			TotalDonors:    count(total),
			RetainedDonors: count(retained),
			LostDonors:     count(lost),
		},
		RecurringGiving: finhealth.RecurringGiving{
			Percentage:              ratio(recurring, total),
			RecurringDonors:         count(recurring),
			TotalDonors:             count(total),
			MonthlyRecurringRevenue: math.Max(0, st.cur[scraper.ValueRecurringRevenue]),
		},
		NewDonorGrowth: finhealth.NewDonorGrowth{
			Rate:                pctChange(newCur, newPrev, hasNewPrev),
			NewDonorsThisPeriod: count(newCur),
			NewDonorsLastPeriod: count(newPrev),
		},
	}
}

// direction classifies a percentage change against the stable band.
func (e *Engine) direction(change float64) finhealth.Direction {
	switch {
	case change > e.stableBand:
		return finhealth.DirectionUp
	case change < -e.stableBand:
		return finhealth.DirectionDown
	default:
		return finhealth.DirectionStable
	}
}

// sourceState holds per-source period values and uptime history.
type sourceState struct {
	periodID string
	cur      map[string]float64 // latest values for periodID
	rolled   map[string]float64 // final values of the period before periodID
	history  []bool             // scrape outcomes, newest last
}

func (e *Engine) stateFor(id string) *sourceState {
	if st, ok := e.states[id]; ok {
		return st
	}
	st := &sourceState{}
	e.states[id] = st
	return st
}

// advance records res as the latest values, rolling the current period over
// when the period id changes. Non-finite values are treated as unpublished.
func (st *sourceState) advance(res *scraper.ScrapeResult) {
	if res.PeriodID != "" && st.periodID != "" && res.PeriodID != st.periodID {
		st.rolled = st.cur
		slog.Info("compute: period rolled over",
			"source", res.SourceID, "from", st.periodID, "to", res.PeriodID)
	}
	if res.PeriodID != "" {
		st.periodID = res.PeriodID
	}
	cur := make(map[string]float64, len(res.Values))
	for k, v := range res.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		cur[k] = v
	}
	st.cur = cur
}

// previous returns the previous-period value: the exporter's own figure when
// published, else the rolled-over current figure.
func (st *sourceState) previous(publishedKey, currentKey string) (float64, bool) {
	if v, ok := st.cur[publishedKey]; ok {
		return v, true
	}
	if st.rolled != nil {
		if v, ok := st.rolled[currentKey]; ok {
			return v, true
		}
	}
	return 0, false
}

func (st *sourceState) recordScrape(success bool) {
	if len(st.history) >= uptimeWindow {
		st.history = st.history[1:]
	}
	st.history = append(st.history, success)
}

func (st *sourceState) uptimePct() float64 {
	if len(st.history) == 0 {
		return 100 // assume up before first observation
	}
	var ok int
	for _, s := range st.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(st.history)) * 100
}

// pctChange returns (cur-prev)/prev*100, or 0 when prev is unknown or zero.
func pctChange(cur, prev float64, known bool) float64 {
	if !known || prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// ratio returns part/whole*100, or 0 when whole is not positive.
func ratio(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

// count converts a gauge to a non-negative donor count.
func count(v float64) int {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return int(math.Round(v))
}
