package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CovenantStatus represents the current lifecycle status of a covenant.
type CovenantStatus string

const (
	CovenantStatusActive   CovenantStatus = "active"
	CovenantStatusAtRisk   CovenantStatus = "at_risk"
	CovenantStatusBreached CovenantStatus = "breached"
	CovenantStatusWaived   CovenantStatus = "waived"
)

// CovenantTestRecord is a raw covenant test result row from the
// authoritative test-history store. Ratio values come back as numeric
// columns and are kept as decimals until they cross into the engine.
type CovenantTestRecord struct {
	CovenantID   string          `json:"covenant_id" db:"covenant_id"`
	FacilityID   string          `json:"facility_id" db:"facility_id"`
	BorrowerID   string          `json:"borrower_id" db:"borrower_id"`
	CovenantType string          `json:"covenant_type" db:"covenant_type"`
	CovenantName string          `json:"covenant_name" db:"covenant_name"`
	Status       CovenantStatus  `json:"status" db:"status"`
	PeriodEnd    time.Time       `json:"period_end" db:"period_end"`
	Value        decimal.Decimal `json:"value" db:"value"`
	Threshold    decimal.Decimal `json:"threshold" db:"threshold"`
	HeadroomPct  decimal.Decimal `json:"headroom_pct" db:"headroom_pct"`
	Passed       bool            `json:"passed" db:"passed"`
	RecordedAt   time.Time       `json:"recorded_at" db:"recorded_at"`
}

// TestSample is one aligned observation in a covenant series.
type TestSample struct {
	PeriodEnd   time.Time `json:"period_end"`
	Value       float64   `json:"value"`
	HeadroomPct float64   `json:"headroom_pct"`
	Passed      bool      `json:"passed"`
}

// CovenantSeries holds the ordered test history for one covenant.
// Samples are strictly ascending by period end with no duplicate
// periods. Immutable for the lifetime of one engine run.
type CovenantSeries struct {
	CovenantID   string         `json:"covenant_id"`
	FacilityID   string         `json:"facility_id"`
	BorrowerID   string         `json:"borrower_id"`
	CovenantType string         `json:"covenant_type"`
	CovenantName string         `json:"covenant_name"`
	Status       CovenantStatus `json:"status"`
	Samples      []TestSample   `json:"samples"`
}

// HeadroomSeries returns the headroom percentages in period order.
func (s *CovenantSeries) HeadroomSeries() []float64 {
	values := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		values[i] = sample.HeadroomPct
	}
	return values
}

// CurrentHeadroomPct returns the headroom of the most recent sample.
func (s *CovenantSeries) CurrentHeadroomPct() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Samples[len(s.Samples)-1].HeadroomPct
}

// BreachPeriods returns the indices of failed test periods.
func (s *CovenantSeries) BreachPeriods() []int {
	var periods []int
	for i, sample := range s.Samples {
		if !sample.Passed {
			periods = append(periods, i)
		}
	}
	return periods
}

// Scope narrows an engine run to one borrower or facility.
// The zero value means the whole portfolio.
type Scope struct {
	BorrowerID string `json:"borrower_id,omitempty"`
	FacilityID string `json:"facility_id,omitempty"`
}

// IsPortfolio reports whether the scope covers the whole portfolio.
func (s Scope) IsPortfolio() bool {
	return s.BorrowerID == "" && s.FacilityID == ""
}

// Diagnostic is a non-fatal condition surfaced alongside engine results.
type Diagnostic struct {
	Severity   string `json:"severity"` // "info" or "warning"
	Code       string `json:"code"`
	CovenantID string `json:"covenant_id,omitempty"`
	Message    string `json:"message"`
}

// Diagnostic codes emitted by the engine.
const (
	DiagInsufficientData = "insufficient_data"
	DiagDegenerateSeries = "degenerate_series"
	DiagConvergence      = "centrality_convergence"
)
