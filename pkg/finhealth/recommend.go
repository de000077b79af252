package finhealth

import (
	"fmt"
	"math"
	"sort"
)

// MaxRecommendations is the number of recommendations a dashboard shows.
const MaxRecommendations = 4

// Rule thresholds. Each metric group has a warning side and a success side.
const (
	trendDeclineThreshold  = 10.0 // |change| above this while down → warning
	trendMomentumThreshold = 15.0 // change above this while up → success
	retentionLowThreshold  = 50.0
	retentionHighThreshold = 70.0
	recurringLowThreshold  = 30.0
	recurringHighThreshold = 50.0
	growthStrongThreshold  = 20.0
)

// Recommendation titles.
const (
	TitleDecliningGiving      = "Declining Giving Trend"
	TitleGivingMomentum       = "Strong Giving Momentum"
	TitleLowRetention         = "Low Donor Retention"
	TitleExcellentRetention   = "Excellent Donor Retention"
	TitleGrowRecurring        = "Grow Recurring Giving"
	TitleStrongRecurring      = "Strong Recurring Base"
	TitleAcquisitionDeclining = "Donor Acquisition Declining"
	TitleGrowingDonorBase     = "Growing Donor Base"
)

// GenerateRecommendations evaluates the rule table against the raw input.
// At most one recommendation is produced per metric group, so the result has
// between 0 and 4 entries. Entries are sorted high → medium → low; ties keep
// the group order trend, retention, recurring, growth.
func GenerateRecommendations(in Input) []Recommendation {
	recs := make([]Recommendation, 0, MaxRecommendations)
	for _, rule := range []func(Input) (Recommendation, bool){
		trendRule,
		retentionRule,
		recurringRule,
		growthRule,
	} {
		if rec, ok := rule(in); ok {
			recs = append(recs, rec)
		}
	}
	SortRecommendations(recs)
	return recs
}

// SortRecommendations stably sorts recs by priority (high first).
func SortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.order() < recs[j].Priority.order()
	})
}

// Top returns at most n leading recommendations. A non-positive n returns
// MaxRecommendations entries. The input slice is not modified.
func Top(recs []Recommendation, n int) []Recommendation {
	if n <= 0 {
		n = MaxRecommendations
	}
	if len(recs) <= n {
		return recs
	}
	out := make([]Recommendation, n)
	copy(out, recs[:n])
	return out
}

func trendRule(in Input) (Recommendation, bool) {
	t := in.GivingTrend
	period := periodSuffix(t.ComparisonPeriodLabel)
	switch {
	case t.Direction == DirectionDown && math.Abs(t.PercentageChange) > trendDeclineThreshold:
		return Recommendation{
			Type:  TypeWarning,
			Title: TitleDecliningGiving,
			Description: fmt.Sprintf(
				"Giving is down %.1f%%%s. Share a stewardship update with the congregation, "+
					"follow up personally with regular givers who have lapsed, and review "+
					"whether seasonal or one-off factors explain the drop.",
				math.Abs(t.PercentageChange), period),
			Priority: PriorityHigh,
		}, true
	case t.Direction == DirectionUp && t.PercentageChange > trendMomentumThreshold:
		return Recommendation{
			Type:  TypeSuccess,
			Title: TitleGivingMomentum,
			Description: fmt.Sprintf(
				"Giving is up %.1f%%%s. Thank your donors and tell them what their "+
					"generosity made possible to keep the momentum going.",
				t.PercentageChange, period),
			Priority: PriorityLow,
		}, true
	}
	return Recommendation{}, false
}

func retentionRule(in Input) (Recommendation, bool) {
	r := in.DonorRetention
	switch {
	case r.Rate < retentionLowThreshold:
		return Recommendation{
			Type:  TypeWarning,
			Title: TitleLowRetention,
			Description: fmt.Sprintf(
				"Only %.0f%% of donors gave again this period%s. Reach out to lapsed donors, "+
					"send timely thank-you notes, and make sure new givers receive a follow-up "+
					"within their first month.",
				r.Rate, lostSuffix(r.LostDonors)),
			Priority: PriorityHigh,
		}, true
	case r.Rate >= retentionHighThreshold:
		return Recommendation{
			Type:  TypeSuccess,
			Title: TitleExcellentRetention,
			Description: fmt.Sprintf(
				"%.0f%% of donors gave again this period. Your donor care is working; "+
					"keep communicating impact regularly.",
				r.Rate),
			Priority: PriorityLow,
		}, true
	}
	return Recommendation{}, false
}

func recurringRule(in Input) (Recommendation, bool) {
	g := in.RecurringGiving
	switch {
	case g.Percentage < recurringLowThreshold:
		return Recommendation{
			Type:  TypeTip,
			Title: TitleGrowRecurring,
			Description: fmt.Sprintf(
				"Only %.0f%% of donors give on a recurring schedule. Promote online recurring "+
					"giving during services and in newsletters; recurring gifts smooth out "+
					"seasonal dips.",
				g.Percentage),
			Priority: PriorityMedium,
		}, true
	case g.Percentage >= recurringHighThreshold:
		return Recommendation{
			Type:  TypeSuccess,
			Title: TitleStrongRecurring,
			Description: fmt.Sprintf(
				"%.0f%% of donors give on a recurring schedule, bringing in %.2f per month. "+
					"This gives the budget a predictable foundation.",
				g.Percentage, g.MonthlyRecurringRevenue),
			Priority: PriorityLow,
		}, true
	}
	return Recommendation{}, false
}

func growthRule(in Input) (Recommendation, bool) {
	g := in.NewDonorGrowth
	switch {
	case g.Rate < 0:
		return Recommendation{
			Type:  TypeWarning,
			Title: TitleAcquisitionDeclining,
			Description: fmt.Sprintf(
				"New donors fell %.1f%% (%d this period, %d last period). Invite visitors "+
					"and new members to give, and make the giving options easy to find.",
				math.Abs(g.Rate), g.NewDonorsThisPeriod, g.NewDonorsLastPeriod),
			Priority: PriorityHigh,
		}, true
	case g.Rate > growthStrongThreshold:
		return Recommendation{
			Type:  TypeSuccess,
			Title: TitleGrowingDonorBase,
			Description: fmt.Sprintf(
				"New donors grew %.1f%% (%d this period). Welcome them personally so "+
					"first-time givers become regular supporters.",
				g.Rate, g.NewDonorsThisPeriod),
			Priority: PriorityLow,
		}, true
	}
	return Recommendation{}, false
}

func periodSuffix(label string) string {
	if label == "" {
		return ""
	}
	return " " + label
}

func lostSuffix(lost int) string {
	switch lost {
	case 0:
		return ""
	case 1:
		return " and 1 donor has lapsed"
	default:
		return fmt.Sprintf(" and %d donors have lapsed", lost)
	}
}
