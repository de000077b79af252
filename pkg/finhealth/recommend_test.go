package finhealth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

func TestGenerateRecommendations_AllSuccess(t *testing.T) {
	recs := GenerateRecommendations(input(DirectionUp, 20, 80, 60, 25))

	require.Len(t, recs, 4)
	assert.Equal(t, []string{
		TitleGivingMomentum,
		TitleExcellentRetention,
		TitleStrongRecurring,
		TitleGrowingDonorBase,
	}, titles(recs))
	for _, r := range recs {
		assert.Equal(t, TypeSuccess, r.Type)
		assert.Equal(t, PriorityLow, r.Priority)
	}
}

func TestGenerateRecommendations_WorstCaseOrdering(t *testing.T) {
	recs := GenerateRecommendations(input(DirectionDown, -50, 10, 5, -30))

	require.Len(t, recs, 4)
	assert.Equal(t, []string{
		TitleDecliningGiving,
		TitleLowRetention,
		TitleAcquisitionDeclining,
		TitleGrowRecurring,
	}, titles(recs))
	assert.Equal(t, []Priority{PriorityHigh, PriorityHigh, PriorityHigh, PriorityMedium},
		[]Priority{recs[0].Priority, recs[1].Priority, recs[2].Priority, recs[3].Priority})
	assert.Equal(t, TypeTip, recs[3].Type)
}

func TestGenerateRecommendations_NeutralIsEmpty(t *testing.T) {
	recs := GenerateRecommendations(input(DirectionStable, 0, 60, 40, 0))
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestGenerateRecommendations_Thresholds(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want []string
	}{
		{"decline of exactly 10 is quiet", input(DirectionDown, -10, 60, 40, 0), []string{}},
		{"decline just over 10 warns", input(DirectionDown, -10.1, 60, 40, 0), []string{TitleDecliningGiving}},
		{"rise of exactly 15 is quiet", input(DirectionUp, 15, 60, 40, 0), []string{}},
		{"retention 50 is quiet", input(DirectionStable, 0, 50, 40, 0), []string{}},
		{"retention 70 succeeds", input(DirectionStable, 0, 70, 40, 0), []string{TitleExcellentRetention}},
		{"recurring 30 is quiet", input(DirectionStable, 0, 60, 30, 0), []string{}},
		{"recurring 50 succeeds", input(DirectionStable, 0, 60, 50, 0), []string{TitleStrongRecurring}},
		{"growth 20 is quiet", input(DirectionStable, 0, 60, 40, 20), []string{}},
		{"tiny negative growth warns", input(DirectionStable, 0, 60, 40, -0.1), []string{TitleAcquisitionDeclining}},
		{"stable with large change is quiet", input(DirectionStable, 0, 60, 40, 0), []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, titles(GenerateRecommendations(tc.in)))
		})
	}
}

func TestGenerateRecommendations_MediumBeforeLow(t *testing.T) {
	// recurring tip (medium) must precede the earlier-group success (low).
	recs := GenerateRecommendations(input(DirectionUp, 30, 60, 10, 0))
	assert.Equal(t, []string{TitleGrowRecurring, TitleGivingMomentum}, titles(recs))
}

func TestGenerateRecommendations_Invariants(t *testing.T) {
	dirs := []Direction{DirectionUp, DirectionDown, DirectionStable}
	for _, dir := range dirs {
		for change := -40.0; change <= 40; change += 10 {
			for rate := 0.0; rate <= 100; rate += 20 {
				for growth := -30.0; growth <= 30; growth += 15 {
					recs := GenerateRecommendations(input(dir, change, rate, 100-rate, growth))
					require.LessOrEqual(t, len(recs), MaxRecommendations)

					seen := map[string]bool{}
					for i, r := range recs {
						require.True(t, r.Type.Valid())
						require.True(t, r.Priority.Valid())
						require.NotEmpty(t, r.Description)
						require.False(t, seen[r.Title], "duplicate %q", r.Title)
						seen[r.Title] = true
						if i > 0 {
							require.LessOrEqual(t, recs[i-1].Priority.order(), r.Priority.order())
						}
					}
				}
			}
		}
	}
}

func TestGenerateRecommendations_DescriptionsCarryNumbers(t *testing.T) {
	in := input(DirectionDown, -18, 35, 12, -10)
	in.DonorRetention.LostDonors = 42
	recs := GenerateRecommendations(in)
	require.Len(t, recs, 4)

	assert.Contains(t, recs[0].Description, "18.0%")
	assert.Contains(t, recs[0].Description, "vs last month")
	assert.Contains(t, recs[1].Description, "42 donors have lapsed")
	assert.True(t, strings.HasPrefix(recs[2].Description, "New donors fell 10.0%"))
}

func TestSortRecommendations_Stable(t *testing.T) {
	recs := []Recommendation{
		{Title: "a", Priority: PriorityLow},
		{Title: "b", Priority: PriorityHigh},
		{Title: "c", Priority: PriorityLow},
		{Title: "d", Priority: PriorityMedium},
		{Title: "e", Priority: PriorityHigh},
	}
	SortRecommendations(recs)
	assert.Equal(t, []string{"b", "e", "d", "a", "c"}, titles(recs))
}

func TestTop(t *testing.T) {
	recs := GenerateRecommendations(input(DirectionDown, -50, 10, 5, -30))

	assert.Len(t, Top(recs, 2), 2)
	assert.Equal(t, recs[:2], Top(recs, 2))
	assert.Len(t, Top(recs, 0), MaxRecommendations)
	assert.Len(t, Top(recs, 10), 4)
	assert.Empty(t, Top(nil, 3))

	top := Top(recs, 1)
	top[0].Title = "changed"
	assert.Equal(t, TitleDecliningGiving, recs[0].Title)
}

func TestEvaluate(t *testing.T) {
	in := input(DirectionDown, -50, 10, 5, -30)
	a := Evaluate(in)
	assert.Equal(t, ComputeHealthScore(in), a.Result)
	assert.Equal(t, GenerateRecommendations(in), a.Recommendations)
}
