package finhealth

import (
	"fmt"
	"math"
)

// Evaluate computes the score and the recommendations for in in one call.
func Evaluate(in Input) Assessment {
	return Assessment{
		Result:          ComputeHealthScore(in),
		Recommendations: GenerateRecommendations(in),
	}
}

// Validate reports structural problems with in that clamping cannot repair,
// such as an unknown trend direction or a NaN or infinite figure. Numeric
// ranges are not checked: the engine clamps them. Callers at a trust boundary (HTTP, gRPC) use this to
// reject malformed payloads; the engine itself never calls it.
func Validate(in Input) error {
	if !in.GivingTrend.Direction.Valid() {
		return fmt.Errorf("givingTrend.direction %q unknown: want up|down|stable", in.GivingTrend.Direction)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"givingTrend.percentageChange", in.GivingTrend.PercentageChange},
		{"donorRetention.rate", in.DonorRetention.Rate},
		{"recurringGiving.percentage", in.RecurringGiving.Percentage},
		{"recurringGiving.monthlyRecurringRevenue", in.RecurringGiving.MonthlyRecurringRevenue},
		{"newDonorGrowth.rate", in.NewDonorGrowth.Rate},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", f.name, f.v)
		}
	}
	if in.DonorRetention.TotalDonors < 0 || in.DonorRetention.RetainedDonors < 0 || in.DonorRetention.LostDonors < 0 {
		return fmt.Errorf("donorRetention counts must not be negative")
	}
	if in.RecurringGiving.RecurringDonors < 0 || in.RecurringGiving.TotalDonors < 0 {
		return fmt.Errorf("recurringGiving counts must not be negative")
	}
	if in.NewDonorGrowth.NewDonorsThisPeriod < 0 || in.NewDonorGrowth.NewDonorsLastPeriod < 0 {
		return fmt.Errorf("newDonorGrowth counts must not be negative")
	}
	return nil
}
