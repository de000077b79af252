package finhealth

import "math"

// Weights of the health score formula, in percent. They must sum to 100.
// Keeping them integral makes the weighted sum exact for integral
// sub-scores, so half-up rounding sees a true .5.
const (
	weightTrend     = 25
	weightRetention = 30
	weightRecurring = 25
	weightGrowth    = 20
)

// Thresholds that map a score to a label. Lower bounds are inclusive.
const (
	ThresholdExcellent = 80
	ThresholdGood      = 60
	ThresholdFair      = 40
)

// ComputeHealthScore normalises in and combines the sub-scores into the
// overall score and its label.
//
// Formula:
//
//	score = round(clamp(
//	    trend     * 0.25 +
//	    retention * 0.30 +
//	    recurring * 0.25 +
//	    growth    * 0.20, 0, 100))
//
// Rounding is half-up.
func ComputeHealthScore(in Input) Result {
	sub := Normalize(in)
	score := Aggregate(sub)
	return Result{
		Score:     score,
		Label:     LabelFor(score),
		SubScores: sub,
	}
}

// Aggregate combines sub-scores into an integer score in [0,100].
func Aggregate(sub SubScores) int {
	h := weightedHundredths(sub)
	switch {
	case math.IsNaN(h) || h < 0:
		h = 0
	case h > 100*100:
		h = 100 * 100
	}
	return roundHalfUp(h)
}

// weightedHundredths is the weighted sum scaled by 100. Sub-scores with a
// fractional part carry binary representation noise; snapping to 1e-6
// removes it so a decimal .5 stays a .5.
func weightedHundredths(sub SubScores) float64 {
	v := sub.GivingTrend*weightTrend +
		sub.DonorRetention*weightRetention +
		sub.RecurringGiving*weightRecurring +
		sub.NewDonorGrowth*weightGrowth
	return math.Round(v*1e6) / 1e6
}

// LabelFor maps an integer score to its label.
func LabelFor(score int) Label {
	switch {
	case score >= ThresholdExcellent:
		return LabelExcellent
	case score >= ThresholdGood:
		return LabelGood
	case score >= ThresholdFair:
		return LabelFair
	default:
		return LabelNeedsAttention
	}
}

// roundHalfUp rounds a value given in hundredths to the nearest integer,
// with .5 rounding up.
func roundHalfUp(hundredths float64) int {
	return int(math.Floor((hundredths + 50) / 100))
}

// Dimension is one row of a score breakdown.
type Dimension struct {
	Key          string  `json:"key"`
	Title        string  `json:"title"`
	SubScore     float64 `json:"sub_score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Dimension keys, in evaluation order.
const (
	DimensionGivingTrend     = "giving_trend"
	DimensionDonorRetention  = "donor_retention"
	DimensionRecurringGiving = "recurring_giving"
	DimensionNewDonorGrowth  = "new_donor_growth"
)

// Breakdown explains how each sub-score contributes to the overall score.
// The contributions sum to the unrounded score.
func Breakdown(sub SubScores) []Dimension {
	rows := []Dimension{
		{Key: DimensionGivingTrend, Title: "Giving trend", SubScore: sub.GivingTrend, Weight: weightTrend},
		{Key: DimensionDonorRetention, Title: "Donor retention", SubScore: sub.DonorRetention, Weight: weightRetention},
		{Key: DimensionRecurringGiving, Title: "Recurring giving", SubScore: sub.RecurringGiving, Weight: weightRecurring},
		{Key: DimensionNewDonorGrowth, Title: "New donor growth", SubScore: sub.NewDonorGrowth, Weight: weightGrowth},
	}
	for i := range rows {
		rows[i].Weight /= 100
		rows[i].Contribution = rows[i].SubScore * rows[i].Weight
	}
	return rows
}
