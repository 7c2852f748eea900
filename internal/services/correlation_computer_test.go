package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

func TestComputePairsPerfectCorrelation(t *testing.T) {
	computer := NewCorrelationComputer(config.DefaultAnalyticsConfig(), newTestLogger())

	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4, 5, 6, 7, 8}})
	b := makeSeries(seriesSpec{id: "cov-b", values: []float64{2, 4, 6, 8, 10, 12, 14, 16}})

	correlations, diagnostics := computer.ComputePairs(context.Background(), []*models.CovenantSeries{b, a}, time.Now())
	require.Len(t, correlations, 1)
	assert.Empty(t, diagnostics)

	corr := correlations[0]
	// The canonical source is the lexicographically smaller id,
	// whatever order the series arrived in.
	assert.Equal(t, "cov-a", corr.SourceCovenantID)
	assert.Equal(t, "cov-b", corr.TargetCovenantID)
	assert.InDelta(t, 1.0, corr.Coefficient, 1e-9)
	assert.InDelta(t, 0.0, corr.PValue, 1e-9)
	assert.True(t, corr.Significant)
	assert.Equal(t, models.StrengthVeryStrong, corr.Strength)
	assert.Equal(t, models.DirectionPositive, corr.Direction)
	assert.Equal(t, 8, corr.SampleSize)
	assert.Equal(t, quarterEnd(0), corr.WindowStart)
	assert.Equal(t, quarterEnd(7), corr.WindowEnd)
}

func TestComputePairsAntiCorrelation(t *testing.T) {
	computer := NewCorrelationComputer(config.DefaultAnalyticsConfig(), newTestLogger())

	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4, 5, 6, 7, 8}})
	b := makeSeries(seriesSpec{id: "cov-b", values: []float64{8, 7, 6, 5, 4, 3, 2, 1}})

	correlations, _ := computer.ComputePairs(context.Background(), []*models.CovenantSeries{a, b}, time.Now())
	require.Len(t, correlations, 1)

	assert.InDelta(t, -1.0, correlations[0].Coefficient, 1e-9)
	assert.Equal(t, models.DirectionNegative, correlations[0].Direction)
	assert.True(t, correlations[0].Significant)
}

func TestComputePairsDegenerateSeries(t *testing.T) {
	computer := NewCorrelationComputer(config.DefaultAnalyticsConfig(), newTestLogger())

	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4, 5}})
	flat := makeSeries(seriesSpec{id: "cov-flat", values: []float64{3, 3, 3, 3, 3}})

	correlations, diagnostics := computer.ComputePairs(context.Background(), []*models.CovenantSeries{a, flat}, time.Now())
	require.Len(t, correlations, 1)

	corr := correlations[0]
	assert.Equal(t, 0.0, corr.Coefficient)
	assert.Equal(t, 1.0, corr.PValue)
	assert.False(t, corr.Significant)
	assert.Equal(t, models.StrengthVeryWeak, corr.Strength)
	assert.Equal(t, models.DirectionNeutral, corr.Direction)

	// The diagnostic names the constant covenant, not the pair source.
	require.Len(t, diagnostics, 1)
	assert.Equal(t, models.DiagDegenerateSeries, diagnostics[0].Code)
	assert.Equal(t, "cov-flat", diagnostics[0].CovenantID)
	assert.Contains(t, diagnostics[0].Message, "constant series")
}

func TestComputePairsInsufficientOverlap(t *testing.T) {
	computer := NewCorrelationComputer(config.DefaultAnalyticsConfig(), newTestLogger())

	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4}})
	// Only the last period overlaps with cov-a.
	b := makeSeries(seriesSpec{id: "cov-b", values: []float64{1, 2, 3, 4}})
	for i := range b.Samples {
		b.Samples[i].PeriodEnd = quarterEnd(i + 3)
	}

	correlations, diagnostics := computer.ComputePairs(context.Background(), []*models.CovenantSeries{a, b}, time.Now())
	assert.Empty(t, correlations)
	assert.Empty(t, diagnostics)
}

func TestComputePairsDeterministicOrder(t *testing.T) {
	computer := NewCorrelationComputer(config.DefaultAnalyticsConfig(), newTestLogger())

	series := []*models.CovenantSeries{
		makeSeries(seriesSpec{id: "cov-c", values: []float64{1, 3, 2, 5, 4, 6}}),
		makeSeries(seriesSpec{id: "cov-a", values: []float64{2, 4, 3, 6, 5, 7}}),
		makeSeries(seriesSpec{id: "cov-b", values: []float64{5, 3, 4, 1, 2, 0}}),
	}

	first, _ := computer.ComputePairs(context.Background(), series, time.Now())
	require.Len(t, first, 3)

	wantOrder := [][2]string{
		{"cov-a", "cov-b"},
		{"cov-a", "cov-c"},
		{"cov-b", "cov-c"},
	}
	for i, corr := range first {
		assert.Equal(t, wantOrder[i][0], corr.SourceCovenantID)
		assert.Equal(t, wantOrder[i][1], corr.TargetCovenantID)
	}

	// Re-running over the same input reproduces the result exactly.
	second, _ := computer.ComputePairs(context.Background(), series, time.Now())
	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].Coefficient, second[i].Coefficient)
		assert.Equal(t, first[i].PValue, second[i].PValue)
	}
}

func TestComputePairsSingleWorker(t *testing.T) {
	cfg := config.DefaultAnalyticsConfig()
	cfg.CorrelationWorkers = 1
	computer := NewCorrelationComputer(cfg, newTestLogger())

	series := []*models.CovenantSeries{
		makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4, 5}}),
		makeSeries(seriesSpec{id: "cov-b", values: []float64{2, 3, 4, 5, 6}}),
		makeSeries(seriesSpec{id: "cov-c", values: []float64{5, 4, 3, 2, 1}}),
	}

	correlations, _ := computer.ComputePairs(context.Background(), series, time.Now())
	assert.Len(t, correlations, 3)
}

func TestAlignSeries(t *testing.T) {
	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4, 5}})
	b := makeSeries(seriesSpec{id: "cov-b", values: []float64{10, 20, 30, 40}})
	// Shift cov-b two quarters later: overlap is quarters 2-4.
	for i := range b.Samples {
		b.Samples[i].PeriodEnd = quarterEnd(i + 2)
	}

	pair := alignSeries(a, b)
	assert.Equal(t, []float64{3, 4, 5}, pair.x)
	assert.Equal(t, []float64{10, 20, 30}, pair.y)
	assert.Equal(t, quarterEnd(2), pair.start)
	assert.Equal(t, quarterEnd(4), pair.end)
}
