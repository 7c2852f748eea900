package services

import "fmt"

// InsufficientDataError marks a covenant or pair that lacks enough
// samples for correlation. Never fatal to a whole run; the affected
// entity is skipped and reported as a diagnostic.
type InsufficientDataError struct {
	CovenantID string
	Samples    int
	Required   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("covenant %s has %d samples, %d required", e.CovenantID, e.Samples, e.Required)
}

// DegenerateSeriesError marks a zero-variance series whose correlation
// is undefined; the pair is recorded as non-significant instead.
type DegenerateSeriesError struct {
	CovenantID string
}

func (e *DegenerateSeriesError) Error() string {
	return fmt.Sprintf("covenant %s has a constant series; correlation undefined", e.CovenantID)
}

// InvalidScopeError marks a request for a covenant or borrower that is
// not present in the data. Fatal to the single requested operation.
type InvalidScopeError struct {
	Scope string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("scope %s not present in covenant data", e.Scope)
}

// NewInvalidScopeError creates an InvalidScopeError for a scope
// description such as a covenant id or borrower id.
func NewInvalidScopeError(scope string) error {
	return &InvalidScopeError{Scope: scope}
}
