package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

func TestAnalyzeDetectsLeader(t *testing.T) {
	analyzer := NewLeadLagAnalyzer(config.DefaultAnalyticsConfig(), newTestLogger())

	leader := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 3, 2, 5, 4, 7, 6, 9}})
	// Follower repeats the leader one quarter later.
	follower := makeSeries(seriesSpec{id: "cov-b", values: []float64{0, 1, 3, 2, 5, 4, 7, 6}})

	correlations := []models.PairwiseCorrelation{{
		SourceCovenantID: "cov-a",
		TargetCovenantID: "cov-b",
		Significant:      true,
	}}

	results := analyzer.Analyze(seriesMap(leader, follower), correlations)
	require.Len(t, results, 2)

	forward := results[0]
	assert.Equal(t, "cov-a", forward.SourceCovenantID)
	assert.Equal(t, 1, forward.LagPeriods)
	assert.Equal(t, models.RelationLeads, forward.Relation)
	assert.InDelta(t, 1.0, forward.CrossCorrelation, 1e-9)

	reverse := results[1]
	assert.Equal(t, "cov-b", reverse.SourceCovenantID)
	assert.Equal(t, "cov-a", reverse.TargetCovenantID)
	assert.Equal(t, -1, reverse.LagPeriods)
	assert.Equal(t, models.RelationLags, reverse.Relation)
	assert.Equal(t, forward.CrossCorrelation, reverse.CrossCorrelation)
}

func TestAnalyzeAntisymmetry(t *testing.T) {
	analyzer := NewLeadLagAnalyzer(config.DefaultAnalyticsConfig(), newTestLogger())

	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{2.2, 3.8, 3.1, 4.9, 4.2, 6.0, 5.5, 7.1}})
	b := makeSeries(seriesSpec{id: "cov-b", values: []float64{1.1, 2.0, 3.5, 3.0, 4.6, 4.1, 5.9, 5.2}})

	correlations := []models.PairwiseCorrelation{{
		SourceCovenantID: "cov-a",
		TargetCovenantID: "cov-b",
		Significant:      true,
	}}

	results := analyzer.Analyze(seriesMap(a, b), correlations)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].LagPeriods, -results[1].LagPeriods)
}

func TestAnalyzeSkipsNonSignificant(t *testing.T) {
	analyzer := NewLeadLagAnalyzer(config.DefaultAnalyticsConfig(), newTestLogger())

	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4, 5, 6}})
	b := makeSeries(seriesSpec{id: "cov-b", values: []float64{2, 1, 4, 3, 6, 5}})

	correlations := []models.PairwiseCorrelation{{
		SourceCovenantID: "cov-a",
		TargetCovenantID: "cov-b",
		Significant:      false,
	}}

	results := analyzer.Analyze(seriesMap(a, b), correlations)
	assert.Empty(t, results)
}

func TestAnalyzeSynchronousSeries(t *testing.T) {
	analyzer := NewLeadLagAnalyzer(config.DefaultAnalyticsConfig(), newTestLogger())

	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4, 5, 6, 7, 8}})
	b := makeSeries(seriesSpec{id: "cov-b", values: []float64{2, 4, 6, 8, 10, 12, 14, 16}})

	correlations := []models.PairwiseCorrelation{{
		SourceCovenantID: "cov-a",
		TargetCovenantID: "cov-b",
		Significant:      true,
	}}

	results := analyzer.Analyze(seriesMap(a, b), correlations)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].LagPeriods)
	assert.Equal(t, models.RelationSynchronous, results[0].Relation)
}

func TestBetterLagTieBreaks(t *testing.T) {
	// Higher magnitude always wins.
	assert.True(t, betterLag(3, -0.9, 1, 0.8))
	assert.False(t, betterLag(1, 0.5, 0, -0.9))

	// Equal magnitude: smaller absolute lag wins.
	assert.True(t, betterLag(1, 0.8, 2, 0.8))
	assert.False(t, betterLag(3, 0.8, -2, -0.8))

	// Exact tie between +k and -k resolves to the positive lag.
	assert.True(t, betterLag(2, 0.8, -2, 0.8))
	assert.False(t, betterLag(-2, 0.8, 2, 0.8))
}
