// Package finhealth scores the financial health of a congregation from four
// raw giving metrics.
//
// score.go provides the pure ComputeHealthScore(Input) function. Each metric
// group is first normalised to a 0–100 sub-score (normalize.go), then the
// sub-scores are combined with fixed weights:
// giving_trend(25%) + donor_retention(30%) + recurring_giving(25%) +
// new_donor_growth(20%).
//
// recommend.go provides GenerateRecommendations(Input), a rule table evaluated
// against the raw input (not the sub-scores). At most one recommendation is
// produced per metric group; the list is stably sorted high → medium → low.
//
// memo.go provides Memo, an optional evaluation cache keyed by structural input
// equality. Results are identical with or without a cache.
//
// Label bands: Excellent ≥80, Good 60–79, Fair 40–59, Needs Attention <40.
//
// Every function in this package is pure; out-of-range inputs are clamped,
// never rejected.
package finhealth
