package finhealth

import "math"

// neutral is the sub-score of a dimension that is neither improving nor
// declining.
const neutral = 50.0

// Normalize maps each metric group of in to a 0–100 sub-score.
func Normalize(in Input) SubScores {
	return SubScores{
		GivingTrend:     trendScore(in.GivingTrend),
		DonorRetention:  clamp100(in.DonorRetention.Rate),
		RecurringGiving: clamp100(in.RecurringGiving.Percentage),
		NewDonorGrowth:  growthScore(in.NewDonorGrowth),
	}
}

// trendScore rates the giving trend around a neutral 50.
// An unrecognised direction is rated as stable.
func trendScore(t GivingTrend) float64 {
	switch t.Direction {
	case DirectionUp:
		return clamp100(math.Min(100, neutral+t.PercentageChange))
	case DirectionDown:
		return clamp100(math.Max(0, neutral-math.Abs(t.PercentageChange)))
	default:
		return neutral
	}
}

// growthScore rates new donor growth around a neutral 50. A rate of exactly
// zero yields 50.
func growthScore(g NewDonorGrowth) float64 {
	if g.Rate > 0 {
		return clamp100(math.Min(100, neutral+g.Rate))
	}
	return clamp100(math.Max(0, neutral+g.Rate))
}

// clamp100 restricts v to the range [0, 100]. NaN is treated as 0.
func clamp100(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
