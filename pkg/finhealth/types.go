package finhealth

// Direction is the movement of giving compared to the previous period.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionStable:
		return true
	}
	return false
}

// RecommendationType classifies the tone of a recommendation.
type RecommendationType string

const (
	TypeSuccess RecommendationType = "success"
	TypeWarning RecommendationType = "warning"
	TypeTip     RecommendationType = "tip"
)

// Valid reports whether t is one of the known recommendation types.
func (t RecommendationType) Valid() bool {
	switch t {
	case TypeSuccess, TypeWarning, TypeTip:
		return true
	}
	return false
}

// Priority orders recommendations for display.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// order returns a sort key (lower = shown first).
func (p Priority) order() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Label is the qualitative band of an overall score.
type Label string

const (
	LabelExcellent      Label = "Excellent"
	LabelGood           Label = "Good"
	LabelFair           Label = "Fair"
	LabelNeedsAttention Label = "Needs Attention"
)

// Valid reports whether l is one of the four score labels.
func (l Label) Valid() bool {
	switch l {
	case LabelExcellent, LabelGood, LabelFair, LabelNeedsAttention:
		return true
	}
	return false
}

// Slug returns a whitespace-free identifier for the label, suitable for
// metric labels and alert conditions ("needs_attention").
func (l Label) Slug() string {
	switch l {
	case LabelExcellent:
		return "excellent"
	case LabelGood:
		return "good"
	case LabelFair:
		return "fair"
	case LabelNeedsAttention:
		return "needs_attention"
	default:
		return "unknown"
	}
}

// Input is a snapshot of the four metric groups for one evaluation.
// Field names follow the dashboard's JSON contract.
type Input struct {
	GivingTrend     GivingTrend     `json:"givingTrend" yaml:"givingTrend"`
	DonorRetention  DonorRetention  `json:"donorRetention" yaml:"donorRetention"`
	RecurringGiving RecurringGiving `json:"recurringGiving" yaml:"recurringGiving"`
	NewDonorGrowth  NewDonorGrowth  `json:"newDonorGrowth" yaml:"newDonorGrowth"`
}

// GivingTrend compares total giving with the previous period.
type GivingTrend struct {
	Direction Direction `json:"direction" yaml:"direction"`

	// PercentageChange is signed, in percent (12.5 = +12.5%).
	PercentageChange float64 `json:"percentageChange" yaml:"percentageChange"`

	// ComparisonPeriodLabel is free text such as "vs last month".
	ComparisonPeriodLabel string `json:"comparisonPeriodLabel" yaml:"comparisonPeriodLabel"`
}

// DonorRetention describes how many of last period's donors gave again.
type DonorRetention struct {
	// Rate is a percentage in [0,100].
	Rate           float64 `json:"rate" yaml:"rate"`
	TotalDonors    int     `json:"totalDonors" yaml:"totalDonors"`
	RetainedDonors int     `json:"retainedDonors" yaml:"retainedDonors"`
	LostDonors     int     `json:"lostDonors" yaml:"lostDonors"`
}

// RecurringGiving describes the share of donors on a recurring schedule.
type RecurringGiving struct {
	// Percentage is in [0,100].
	Percentage              float64 `json:"percentage" yaml:"percentage"`
	RecurringDonors         int     `json:"recurringDonors" yaml:"recurringDonors"`
	TotalDonors             int     `json:"totalDonors" yaml:"totalDonors"`
	MonthlyRecurringRevenue float64 `json:"monthlyRecurringRevenue" yaml:"monthlyRecurringRevenue"`
}

// NewDonorGrowth compares first-time donors with the previous period.
type NewDonorGrowth struct {
	// Rate is signed, in percent.
	Rate                float64 `json:"rate" yaml:"rate"`
	NewDonorsThisPeriod int     `json:"newDonorsThisPeriod" yaml:"newDonorsThisPeriod"`
	NewDonorsLastPeriod int     `json:"newDonorsLastPeriod" yaml:"newDonorsLastPeriod"`
}

// SubScores holds the per-dimension ratings, each in [0,100].
type SubScores struct {
	GivingTrend     float64 `json:"givingTrend"`
	DonorRetention  float64 `json:"donorRetention"`
	RecurringGiving float64 `json:"recurringGiving"`
	NewDonorGrowth  float64 `json:"newDonorGrowth"`
}

// Result is the output of ComputeHealthScore.
type Result struct {
	// Score is the overall health score in [0,100].
	Score int `json:"score"`

	// Label is the band Score falls into.
	Label Label `json:"label"`

	// SubScores are the normalised dimensions Score was computed from.
	SubScores SubScores `json:"subScores"`
}

// Recommendation is one advisory entry produced by GenerateRecommendations.
type Recommendation struct {
	Type        RecommendationType `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Priority    Priority           `json:"priority"`
}

// Assessment bundles the score and the recommendations for one input.
type Assessment struct {
	Result          Result           `json:"result"`
	Recommendations []Recommendation `json:"recommendations"`
}
