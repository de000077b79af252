package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stewardlens/stewardlens/agent/internal/config"
)

// Gauges published by the giving-ledger exporter. Giving amounts and new
// donor counts carry a period="current|previous" label. Donor counts refer to
// donors who gave in the previous period; retained and lost split them by
// whether they gave again. The period id is the period_id label of the
// period_info gauge.
const (
	promGivingAmount     = "stewardlens_giving_amount"
	promDonorsTotal      = "stewardlens_donors_total"
	promDonorsRetained   = "stewardlens_donors_retained"
	promDonorsLost       = "stewardlens_donors_lost"
	promRecurringDonors  = "stewardlens_recurring_donors"
	promRecurringRevenue = "stewardlens_recurring_revenue_monthly"
	promNewDonors        = "stewardlens_new_donors"
	promPeriodInfo       = "stewardlens_period_info"

	periodLabel   = "period"
	periodIDLabel = "period_id"
)

type promScraper struct {
	src    config.Source
	client *http.Client
}

// Scrape fetches the exporter's /metrics endpoint and reads the giving gauges.
// Gauges the exporter does not publish are left out of Values so the compute
// engine can tell "zero" from "unknown".
func (s *promScraper) Scrape(ctx context.Context) (*ScrapeResult, error) {
	res := newResult(s.src)

	mfs, err := fetchMetrics(ctx, s.client, s.src.Endpoint)
	if err != nil {
		res.Err = fmt.Errorf("prometheus scrape %q: %w", s.src.ID, err)
		slog.Warn("scraper: prometheus fetch failed", "source", s.src.ID, "err", err)
		return res, nil
	}

	set := func(key string, v float64, ok bool) {
		if ok {
			res.Values[key] = v
		}
	}

	v, ok := sumFamily(mfs[promGivingAmount], periodLabel, "current")
	set(ValueGivingCurrent, v, ok)
	v, ok = sumFamily(mfs[promGivingAmount], periodLabel, "previous")
	set(ValueGivingPrevious, v, ok)
	v, ok = sumFamily(mfs[promNewDonors], periodLabel, "current")
	set(ValueNewDonorsCurrent, v, ok)
	v, ok = sumFamily(mfs[promNewDonors], periodLabel, "previous")
	set(ValueNewDonorsPrevious, v, ok)

	v, ok = sumFamily(mfs[promDonorsTotal], "", "")
	set(ValueDonorsTotal, v, ok)
	v, ok = sumFamily(mfs[promDonorsRetained], "", "")
	set(ValueDonorsRetained, v, ok)
	v, ok = sumFamily(mfs[promDonorsLost], "", "")
	set(ValueDonorsLost, v, ok)
	v, ok = sumFamily(mfs[promRecurringDonors], "", "")
	set(ValueRecurringDonors, v, ok)
	v, ok = sumFamily(mfs[promRecurringRevenue], "", "")
	set(ValueRecurringRevenue, v, ok)

	if mf := mfs[promPeriodInfo]; mf != nil {
		for _, m := range mf.GetMetric() {
			if id := labelValue(m, periodIDLabel); id != "" {
				res.PeriodID = id
				break
			}
		}
	}

	return res, nil
}
