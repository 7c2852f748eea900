package models

import "time"

// CorrelationStrength classifies the absolute value of a coefficient.
type CorrelationStrength string

const (
	StrengthVeryStrong CorrelationStrength = "very_strong" // |r| >= 0.8
	StrengthStrong     CorrelationStrength = "strong"      // |r| >= 0.6
	StrengthModerate   CorrelationStrength = "moderate"    // |r| >= 0.4
	StrengthWeak       CorrelationStrength = "weak"        // |r| >= 0.2
	StrengthVeryWeak   CorrelationStrength = "very_weak"
)

// CorrelationDirection classifies the sign of a coefficient.
type CorrelationDirection string

const (
	DirectionPositive CorrelationDirection = "positive"
	DirectionNegative CorrelationDirection = "negative"
	DirectionNeutral  CorrelationDirection = "neutral"
)

// PairwiseCorrelation is the Pearson correlation between two covenant
// series over the intersection of their periods. Correlation is
// symmetric, so exactly one record exists per unordered pair, with the
// source holding the lexicographically smaller covenant id.
type PairwiseCorrelation struct {
	SourceCovenantID string               `json:"source_covenant_id"`
	TargetCovenantID string               `json:"target_covenant_id"`
	Coefficient      float64              `json:"coefficient"` // [-1, 1]
	PValue           float64              `json:"p_value"`     // [0, 1]
	SampleSize       int                  `json:"sample_size"`
	Strength         CorrelationStrength  `json:"strength"`
	Direction        CorrelationDirection `json:"direction"`
	Significant      bool                 `json:"significant"`
	WindowStart      time.Time            `json:"window_start"`
	WindowEnd        time.Time            `json:"window_end"`
	ComputedAt       time.Time            `json:"computed_at"`
}

// LeadLagRelation classifies the sign of a lead-lag offset.
type LeadLagRelation string

const (
	RelationLeads       LeadLagRelation = "leads"
	RelationLags        LeadLagRelation = "lags"
	RelationSynchronous LeadLagRelation = "synchronous"
)

// LeadLagResult is the representative lead-lag offset for an ordered
// pair. Lag > 0 means the source moves first. The relation is
// antisymmetric: the (B,A) record carries the negated lag of (A,B).
type LeadLagResult struct {
	SourceCovenantID string          `json:"source_covenant_id"`
	TargetCovenantID string          `json:"target_covenant_id"`
	LagPeriods       int             `json:"lag_periods"`
	CrossCorrelation float64         `json:"cross_correlation"`
	Relation         LeadLagRelation `json:"relation"`
}

// MatrixLabel carries display metadata for one matrix row/column.
type MatrixLabel struct {
	CovenantID   string `json:"covenant_id"`
	CovenantName string `json:"covenant_name"`
	FacilityID   string `json:"facility_id"`
	CovenantType string `json:"covenant_type"`
}

// CorrelationMatrix is the dense pairwise view for visualization
// consumers. All three matrices are square with the same dimension and
// label order; diagonals are fixed at 1.0 / 0.0 / 0 respectively.
type CorrelationMatrix struct {
	RunID        string        `json:"run_id"`
	Scope        Scope         `json:"scope"`
	AsOf         time.Time     `json:"as_of"`
	Labels       []MatrixLabel `json:"labels"`
	Coefficients [][]float64   `json:"coefficients"`
	PValues      [][]float64   `json:"p_values"`
	LeadLags     [][]int       `json:"lead_lags"`
	Diagnostics  []Diagnostic  `json:"diagnostics,omitempty"`
	GeneratedAt  time.Time     `json:"generated_at"`
}
