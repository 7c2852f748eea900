package database

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akeroyd/covnet/internal/models"
)

func newTracedMock(t *testing.T) (*TracedPool, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewTracedPool(NewMockPoolAdapter(mock), logger), mock
}

func TestTracedPoolQueryPassthrough(t *testing.T) {
	pool, mock := newTracedMock(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	// The repository works unchanged behind the traced wrapper.
	repo := NewCovenantRepository(pool)
	count, err := repo.CountTestRecords(context.Background(), models.Scope{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracedPoolQueryError(t *testing.T) {
	pool, mock := newTracedMock(t)

	mock.ExpectQuery("SELECT").
		WillReturnError(fmt.Errorf("connection refused"))

	_, err := pool.Query(context.Background(), "SELECT 1")
	assert.Error(t, err)
}

func TestTracedPoolExec(t *testing.T) {
	pool, mock := newTracedMock(t)

	mock.ExpectExec("DELETE FROM covenant_test_results").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	tag, err := pool.Exec(context.Background(),
		"DELETE FROM covenant_test_results WHERE recorded_at < $1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), tag.RowsAffected())
}
