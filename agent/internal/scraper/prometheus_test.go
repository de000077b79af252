package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stewardlens/stewardlens/agent/internal/config"
)

// ledgerMetrics is a realistic giving-ledger exporter page.
const ledgerMetrics = `
# HELP stewardlens_giving_amount Total giving in the period.
# TYPE stewardlens_giving_amount gauge
stewardlens_giving_amount{period="current"} 48250.5
stewardlens_giving_amount{period="previous"} 42100

# HELP stewardlens_donors_total Donors who gave in the previous period.
# TYPE stewardlens_donors_total gauge
stewardlens_donors_total 240
# TYPE stewardlens_donors_retained gauge
stewardlens_donors_retained 180
# TYPE stewardlens_donors_lost gauge
stewardlens_donors_lost 60

# TYPE stewardlens_recurring_donors gauge
stewardlens_recurring_donors 96
# TYPE stewardlens_recurring_revenue_monthly gauge
stewardlens_recurring_revenue_monthly 18400

# TYPE stewardlens_new_donors gauge
stewardlens_new_donors{period="current"} 30
stewardlens_new_donors{period="previous"} 24

# TYPE stewardlens_period_info gauge
stewardlens_period_info{period_id="2026-09"} 1
`

func newPromScraper(t *testing.T, body string, code int) *promScraper {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return &promScraper{
		src: config.Source{
			ID: "north", Name: "North Campus", Type: config.SourcePrometheus,
			Endpoint: srv.URL, ComparisonLabel: "vs last month",
		},
		client: srv.Client(),
	}
}

func TestPromScraper_Scrape(t *testing.T) {
	s := newPromScraper(t, ledgerMetrics, http.StatusOK)

	res, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if res.Err != nil {
		t.Fatalf("res.Err = %v", res.Err)
	}

	want := map[string]float64{
		ValueGivingCurrent:     48250.5,
		ValueGivingPrevious:    42100,
		ValueDonorsTotal:       240,
		ValueDonorsRetained:    180,
		ValueDonorsLost:        60,
		ValueRecurringDonors:   96,
		ValueRecurringRevenue:  18400,
		ValueNewDonorsCurrent:  30,
		ValueNewDonorsPrevious: 24,
	}
	for k, v := range want {
		got, ok := res.Value(k)
		if !ok {
			t.Errorf("Values[%s]: missing", k)
			continue
		}
		if got != v {
			t.Errorf("Values[%s] = %v, want %v", k, got, v)
		}
	}
	if res.PeriodID != "2026-09" {
		t.Errorf("PeriodID = %q, want 2026-09", res.PeriodID)
	}
	if res.Name != "North Campus" || res.ComparisonLabel != "vs last month" {
		t.Errorf("source metadata: got name=%q label=%q", res.Name, res.ComparisonLabel)
	}
	if res.SourceType != config.SourcePrometheus {
		t.Errorf("SourceType = %q", res.SourceType)
	}
	if res.Input != nil {
		t.Error("Input should be nil for prometheus sources")
	}
}

func TestPromScraper_MissingGaugesAreAbsent(t *testing.T) {
	// An exporter that only knows the current period.
	body := `
stewardlens_giving_amount{period="current"} 1000
stewardlens_donors_total 10
`
	res, _ := newPromScraper(t, body, http.StatusOK).Scrape(context.Background())
	if res.Err != nil {
		t.Fatalf("res.Err: %v", res.Err)
	}
	if _, ok := res.Value(ValueGivingPrevious); ok {
		t.Error("giving_previous should be absent")
	}
	if _, ok := res.Value(ValueDonorsRetained); ok {
		t.Error("donors_retained should be absent")
	}
	if v, _ := res.Value(ValueGivingCurrent); v != 1000 {
		t.Errorf("giving_current = %v, want 1000", v)
	}
	if res.PeriodID != "" {
		t.Errorf("PeriodID = %q, want empty", res.PeriodID)
	}
}

func TestPromScraper_FundsAreSummed(t *testing.T) {
	// Exporters that split giving by fund publish one sample per fund.
	body := `
stewardlens_giving_amount{period="current",fund="general"} 700
stewardlens_giving_amount{period="current",fund="missions"} 300
stewardlens_giving_amount{period="previous",fund="general"} 800
`
	res, _ := newPromScraper(t, body, http.StatusOK).Scrape(context.Background())
	if v, _ := res.Value(ValueGivingCurrent); v != 1000 {
		t.Errorf("giving_current = %v, want 1000", v)
	}
	if v, _ := res.Value(ValueGivingPrevious); v != 800 {
		t.Errorf("giving_previous = %v, want 800", v)
	}
}

func TestPromScraper_Non200(t *testing.T) {
	res, err := newPromScraper(t, "", http.StatusUnauthorized).Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape() should not return err, got: %v", err)
	}
	if res.Err == nil {
		t.Fatal("res.Err should be set for non-200 response")
	}
}

func TestPromScraper_ConnectFailure(t *testing.T) {
	s := &promScraper{
		src:    config.Source{ID: "down", Endpoint: "http://127.0.0.1:1"},
		client: &http.Client{},
	}
	res, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape() should not return err, got: %v", err)
	}
	if res.Err == nil {
		t.Fatal("res.Err should be set when endpoint is unreachable")
	}
}

func TestSumFamily_Nil(t *testing.T) {
	if v, ok := sumFamily(nil, "", ""); v != 0 || ok {
		t.Errorf("sumFamily(nil) = %v, %v; want 0, false", v, ok)
	}
}

func TestPromScraper_NonFiniteSamplesSkipped(t *testing.T) {
	body := `
stewardlens_giving_amount{period="current",fund="general"} 700
stewardlens_giving_amount{period="current",fund="missions"} NaN
stewardlens_donors_total NaN
stewardlens_recurring_revenue_monthly +Inf
`
	res, _ := newPromScraper(t, body, http.StatusOK).Scrape(context.Background())
	if res.Err != nil {
		t.Fatalf("res.Err: %v", res.Err)
	}
	if v, _ := res.Value(ValueGivingCurrent); v != 700 {
		t.Errorf("giving_current = %v, want 700", v)
	}
	if _, ok := res.Value(ValueDonorsTotal); ok {
		t.Error("donors_total with only a NaN sample should be absent")
	}
	if _, ok := res.Value(ValueRecurringRevenue); ok {
		t.Error("recurring_revenue with only a +Inf sample should be absent")
	}
}
