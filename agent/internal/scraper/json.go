package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stewardlens/stewardlens/agent/internal/config"
	"github.com/stewardlens/stewardlens/pkg/finhealth"
)

// givingSummary is the JSON shape returned by the church backend's giving
// summary endpoint: the four metric groups plus the period they describe.
type givingSummary struct {
	PeriodID string `json:"periodId"`
	finhealth.Input
}

type jsonScraper struct {
	src    config.Source
	client *http.Client
}

// Scrape fetches the giving summary and passes the metric groups through.
// A summary that fails structural validation (unknown direction, negative
// counts) is reported as a scrape error.
func (s *jsonScraper) Scrape(ctx context.Context) (*ScrapeResult, error) {
	res := newResult(s.src)

	body, err := get(ctx, s.client, s.src.Endpoint, "application/json")
	if err != nil {
		res.Err = fmt.Errorf("json scrape %q: %w", s.src.ID, err)
		slog.Warn("scraper: json fetch failed", "source", s.src.ID, "err", err)
		return res, nil
	}
	defer body.Close()

	var sum givingSummary
	if err := json.NewDecoder(body).Decode(&sum); err != nil {
		res.Err = fmt.Errorf("json scrape %q: decode JSON: %w", s.src.ID, err)
		return res, nil
	}
	if err := finhealth.Validate(sum.Input); err != nil {
		res.Err = fmt.Errorf("json scrape %q: %w", s.src.ID, err)
		return res, nil
	}

	in := sum.Input
	if in.GivingTrend.ComparisonPeriodLabel == "" {
		in.GivingTrend.ComparisonPeriodLabel = s.src.ComparisonLabel
	}
	res.PeriodID = sum.PeriodID
	res.Input = &in
	return res, nil
}
