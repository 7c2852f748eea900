package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/akeroyd/covnet/internal/models"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// CovenantRepository reads covenant test history. The engine never
// writes back; this repository is read-only by construction.
type CovenantRepository struct {
	pool DatabasePool
}

// NewCovenantRepository creates a new covenant repository.
func NewCovenantRepository(pool DatabasePool) *CovenantRepository {
	return &CovenantRepository{
		pool: pool,
	}
}

const testHistoryColumns = `
	r.covenant_id, c.facility_id, f.borrower_id, c.covenant_type, c.name,
	c.status, r.period_end, r.value, r.threshold, r.headroom_pct, r.passed,
	r.recorded_at
`

// FetchTestHistory returns all test records in scope with a period end
// on or before asOf, ordered by covenant then period. The zero scope
// means the whole portfolio.
func (r *CovenantRepository) FetchTestHistory(ctx context.Context, scope models.Scope, asOf time.Time) ([]models.CovenantTestRecord, error) {
	query := `
		SELECT ` + testHistoryColumns + `
		FROM covenant_test_results r
		JOIN covenants c ON c.id = r.covenant_id
		JOIN facilities f ON f.id = c.facility_id
		WHERE r.period_end <= $1
	`
	args := []interface{}{asOf}

	switch {
	case scope.FacilityID != "":
		query += ` AND c.facility_id = $2`
		args = append(args, scope.FacilityID)
	case scope.BorrowerID != "":
		query += ` AND f.borrower_id = $2`
		args = append(args, scope.BorrowerID)
	}

	query += ` ORDER BY r.covenant_id, r.period_end, r.recorded_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch covenant test history: %w", err)
	}
	defer rows.Close()

	var records []models.CovenantTestRecord
	for rows.Next() {
		var record models.CovenantTestRecord
		err := rows.Scan(
			&record.CovenantID,
			&record.FacilityID,
			&record.BorrowerID,
			&record.CovenantType,
			&record.CovenantName,
			&record.Status,
			&record.PeriodEnd,
			&record.Value,
			&record.Threshold,
			&record.HeadroomPct,
			&record.Passed,
			&record.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan covenant test record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating covenant test records: %w", err)
	}

	return records, nil
}

// CountTestRecords returns the number of test records inside a scope,
// used by the health endpoint to report data availability.
func (r *CovenantRepository) CountTestRecords(ctx context.Context, scope models.Scope) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM covenant_test_results r
		JOIN covenants c ON c.id = r.covenant_id
		JOIN facilities f ON f.id = c.facility_id
	`
	var args []interface{}

	switch {
	case scope.FacilityID != "":
		query += ` WHERE c.facility_id = $1`
		args = append(args, scope.FacilityID)
	case scope.BorrowerID != "":
		query += ` WHERE f.borrower_id = $1`
		args = append(args, scope.BorrowerID)
	}

	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count covenant test records: %w", err)
	}
	return count, nil
}

// LatestPeriodEnd returns the most recent test period end in the store,
// or the zero time when the store is empty.
func (r *CovenantRepository) LatestPeriodEnd(ctx context.Context) (time.Time, error) {
	query := `SELECT COALESCE(MAX(period_end), 'epoch'::timestamptz) FROM covenant_test_results`

	var latest time.Time
	if err := r.pool.QueryRow(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch latest period end: %w", err)
	}
	return latest, nil
}
