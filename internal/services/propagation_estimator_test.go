package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

func significantPair(source, target string, coefficient float64, samples int) models.PairwiseCorrelation {
	return models.PairwiseCorrelation{
		SourceCovenantID: source,
		TargetCovenantID: target,
		Coefficient:      coefficient,
		SampleSize:       samples,
		Significant:      true,
	}
}

func TestEstimateEmitsBothDirections(t *testing.T) {
	estimator := NewPropagationEstimator(config.DefaultAnalyticsConfig(), newTestLogger())

	a := makeSeries(seriesSpec{
		id:     "cov-a",
		values: []float64{1, 2, 3, 4, 5, 6},
		passed: []bool{true, false, true, true, false, true},
	})
	b := makeSeries(seriesSpec{
		id:     "cov-b",
		values: []float64{2, 4, 6, 8, 10, 12},
		passed: []bool{true, false, true, true, true, false},
	})

	edges := estimator.Estimate(seriesMap(a, b),
		[]models.PairwiseCorrelation{significantPair("cov-a", "cov-b", 0.9, 6)}, nil)

	require.Len(t, edges, 2)
	assert.Equal(t, "cov-a", edges[0].SourceCovenantID)
	assert.Equal(t, "cov-b", edges[0].TargetCovenantID)
	assert.Equal(t, "cov-b", edges[1].SourceCovenantID)
	assert.Equal(t, "cov-a", edges[1].TargetCovenantID)

	for _, edge := range edges {
		assert.GreaterOrEqual(t, edge.Probability, 0.0)
		assert.LessOrEqual(t, edge.Probability, 100.0)
	}
}

func TestEstimateFiltersWeakAndNonSignificant(t *testing.T) {
	estimator := NewPropagationEstimator(config.DefaultAnalyticsConfig(), newTestLogger())

	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4, 5, 6}})
	b := makeSeries(seriesSpec{id: "cov-b", values: []float64{2, 4, 6, 8, 10, 12}})

	weak := significantPair("cov-a", "cov-b", 0.3, 6)
	insignificant := significantPair("cov-a", "cov-b", 0.9, 6)
	insignificant.Significant = false

	assert.Empty(t, estimator.Estimate(seriesMap(a, b), []models.PairwiseCorrelation{weak}, nil))
	assert.Empty(t, estimator.Estimate(seriesMap(a, b), []models.PairwiseCorrelation{insignificant}, nil))
}

func TestEstimateFloorWithoutCoBreaches(t *testing.T) {
	cfg := config.DefaultAnalyticsConfig()
	estimator := NewPropagationEstimator(cfg, newTestLogger())

	// Correlated values, but neither covenant ever failed a test.
	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4, 5, 6}})
	b := makeSeries(seriesSpec{id: "cov-b", values: []float64{2, 4, 6, 8, 10, 12}})

	edges := estimator.Estimate(seriesMap(a, b),
		[]models.PairwiseCorrelation{significantPair("cov-a", "cov-b", 0.95, 6)}, nil)

	require.Len(t, edges, 2)
	for _, edge := range edges {
		assert.Equal(t, cfg.PropagationFloor, edge.Probability)
		assert.Nil(t, edge.AvgPropagationPeriods)
		assert.Equal(t, 0, edge.CoBreachCount)
		assert.Equal(t, 0.0, edge.CoBreachRate)
	}
}

func TestEstimateCoBreachHistory(t *testing.T) {
	cfg := config.DefaultAnalyticsConfig()
	estimator := NewPropagationEstimator(cfg, newTestLogger())

	// Every cov-a breach is followed by a cov-b breach one period later.
	a := makeSeries(seriesSpec{
		id:     "cov-a",
		values: []float64{1, 2, 3, 4, 5, 6, 7, 8},
		passed: []bool{true, false, true, true, false, true, true, true},
	})
	b := makeSeries(seriesSpec{
		id:     "cov-b",
		values: []float64{2, 4, 6, 8, 10, 12, 14, 16},
		passed: []bool{true, true, false, true, true, false, true, true},
	})

	edges := estimator.Estimate(seriesMap(a, b),
		[]models.PairwiseCorrelation{significantPair("cov-a", "cov-b", 0.9, 8)}, nil)
	require.Len(t, edges, 2)

	forward := edges[0]
	require.Equal(t, "cov-a", forward.SourceCovenantID)
	assert.Equal(t, 2, forward.CoBreachCount)
	assert.InDelta(t, 100.0, forward.CoBreachRate, 1e-9)
	require.NotNil(t, forward.AvgPropagationPeriods)
	assert.InDelta(t, 1.0, *forward.AvgPropagationPeriods, 1e-9)

	// Blend of |r| and the co-breach rate, pulled toward 50 by the
	// 8-of-12 sample confidence.
	blended := (cfg.CorrelationWeight*0.9*100 + cfg.CoBreachWeight*100) / (cfg.CorrelationWeight + cfg.CoBreachWeight)
	confidence := 8.0 / float64(cfg.ConfidenceFullSamples)
	want := confidence*blended + (1-confidence)*50
	assert.InDelta(t, want, forward.Probability, 1e-9)
}

func TestEstimateConfidencePullsTowardNeutral(t *testing.T) {
	cfg := config.DefaultAnalyticsConfig()
	estimator := NewPropagationEstimator(cfg, newTestLogger())

	passedA := []bool{true, false, true, true, false, true, true, true, true, false, true, true}
	passedB := []bool{true, true, false, true, true, false, true, true, true, true, false, true}
	values := make([]float64, 12)
	scaled := make([]float64, 12)
	for i := range values {
		values[i] = float64(i + 1)
		scaled[i] = float64(2 * (i + 1))
	}

	a := makeSeries(seriesSpec{id: "cov-a", values: values, passed: passedA})
	b := makeSeries(seriesSpec{id: "cov-b", values: scaled, passed: passedB})

	small := estimator.Estimate(seriesMap(a, b),
		[]models.PairwiseCorrelation{significantPair("cov-a", "cov-b", 0.9, 6)}, nil)
	full := estimator.Estimate(seriesMap(a, b),
		[]models.PairwiseCorrelation{significantPair("cov-a", "cov-b", 0.9, 12)}, nil)

	require.Len(t, small, 2)
	require.Len(t, full, 2)

	// The fully-sampled estimate sits further from the neutral 50.
	assert.Greater(t, abs(full[0].Probability-50), abs(small[0].Probability-50))
}

func TestEstimateDeterministicEdgeOrder(t *testing.T) {
	estimator := NewPropagationEstimator(config.DefaultAnalyticsConfig(), newTestLogger())

	a := makeSeries(seriesSpec{id: "cov-a", values: []float64{1, 2, 3, 4, 5, 6}})
	b := makeSeries(seriesSpec{id: "cov-b", values: []float64{2, 4, 6, 8, 10, 12}})
	c := makeSeries(seriesSpec{id: "cov-c", values: []float64{6, 5, 4, 3, 2, 1}})

	edges := estimator.Estimate(seriesMap(a, b, c), []models.PairwiseCorrelation{
		significantPair("cov-b", "cov-c", -0.8, 6),
		significantPair("cov-a", "cov-b", 0.9, 6),
	}, nil)

	require.Len(t, edges, 4)
	for i := 1; i < len(edges); i++ {
		prev, cur := edges[i-1], edges[i]
		ordered := prev.SourceCovenantID < cur.SourceCovenantID ||
			(prev.SourceCovenantID == cur.SourceCovenantID && prev.TargetCovenantID < cur.TargetCovenantID)
		assert.True(t, ordered, "edges must be sorted by (source, target)")
	}
}
