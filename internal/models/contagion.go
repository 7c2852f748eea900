package models

import "time"

// RiskTier is a qualitative band for a compounded propagation probability.
type RiskTier string

const (
	TierSevere   RiskTier = "severe"   // >= 75
	TierHigh     RiskTier = "high"     // >= 50
	TierElevated RiskTier = "elevated" // >= 25
	TierLow      RiskTier = "low"
)

// AffectedCovenant is one downstream covenant reached by the contagion
// traversal, carrying the best path found to it.
type AffectedCovenant struct {
	CovenantID   string `json:"covenant_id"`
	FacilityID   string `json:"facility_id"`
	CovenantName string `json:"covenant_name"`
	// Probability is the compounded propagation probability along the
	// best path from the source, 0-100.
	Probability float64 `json:"probability"`
	// HorizonPeriods is the cumulative expected-impact horizon along
	// that path, in periods (may be fractional).
	HorizonPeriods        float64  `json:"horizon_periods"`
	Hops                  int      `json:"hops"`
	Path                  []string `json:"path"`
	PreBreachHeadroomPct  float64  `json:"pre_breach_headroom_pct"`
	PostBreachHeadroomPct float64  `json:"post_breach_headroom_pct"`
	Tier                  RiskTier `json:"tier"`
}

// ContagionAssessment ranks the downstream impact of a breach at one
// source covenant. Produced on demand; not part of the core network.
type ContagionAssessment struct {
	RunID            string             `json:"run_id"`
	SourceCovenantID string             `json:"source_covenant_id"`
	Affected         []AffectedCovenant `json:"affected"`
	FacilitiesAtRisk int                `json:"facilities_at_risk"`
	CovenantsAtRisk  int                `json:"covenants_at_risk"`
	// CascadeProbability is the probability that at least one
	// downstream covenant breaches, 0-100.
	CascadeProbability float64 `json:"cascade_probability"`
	// ExpectedTimelinePeriods is the probability-weighted mean horizon
	// across affected covenants. Zero when nothing is affected.
	ExpectedTimelinePeriods float64   `json:"expected_timeline_periods"`
	Recommendations         []string  `json:"recommendations"`
	GeneratedAt             time.Time `json:"generated_at"`
}
