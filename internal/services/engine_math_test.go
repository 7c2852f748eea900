package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCorrelation(t *testing.T) {
	tests := []struct {
		name     string
		x        []float64
		y        []float64
		expected float64
	}{
		{
			name:     "perfect positive",
			x:        []float64{1, 2, 3, 4, 5, 6, 7, 8},
			y:        []float64{2, 4, 6, 8, 10, 12, 14, 16},
			expected: 1,
		},
		{
			name:     "perfect negative",
			x:        []float64{1, 2, 3, 4, 5, 6, 7, 8},
			y:        []float64{8, 7, 6, 5, 4, 3, 2, 1},
			expected: -1,
		},
		{
			name:     "constant series",
			x:        []float64{3, 3, 3, 3},
			y:        []float64{1, 2, 3, 4},
			expected: 0,
		},
		{
			name:     "empty input",
			x:        nil,
			y:        nil,
			expected: 0,
		},
		{
			name:     "length mismatch",
			x:        []float64{1, 2, 3},
			y:        []float64{1, 2},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, calculateCorrelation(tt.x, tt.y), 1e-12)
		})
	}
}

func TestCalculateCorrelationBounds(t *testing.T) {
	x := []float64{1.2, 3.4, 2.1, 5.6, 4.4, 6.1, 5.9, 7.3}
	y := []float64{0.9, 2.8, 2.5, 5.1, 4.9, 5.8, 6.2, 7.1}

	r := calculateCorrelation(x, y)
	assert.GreaterOrEqual(t, r, -1.0)
	assert.LessOrEqual(t, r, 1.0)

	// Symmetry of arguments.
	assert.InDelta(t, r, calculateCorrelation(y, x), 1e-12)
}

func TestCorrelationPValue(t *testing.T) {
	// Too few samples: no evidence either way.
	assert.Equal(t, 1.0, correlationPValue(0.9, 2))

	// Perfect correlation diverges to zero.
	assert.Equal(t, 0.0, correlationPValue(1, 10))
	assert.Equal(t, 0.0, correlationPValue(-1, 10))

	// Zero correlation is maximally non-significant.
	assert.InDelta(t, 1.0, correlationPValue(0, 10), 1e-9)

	// A strong coefficient on a decent sample is significant.
	assert.Less(t, correlationPValue(0.9, 12), 0.05)

	// A weak coefficient on a small sample is not.
	assert.Greater(t, correlationPValue(0.2, 6), 0.05)
}

func TestCorrelationPValueMonotonicInSampleSize(t *testing.T) {
	// The same coefficient becomes more significant as n grows.
	p6 := correlationPValue(0.7, 6)
	p12 := correlationPValue(0.7, 12)
	p24 := correlationPValue(0.7, 24)

	assert.Greater(t, p6, p12)
	assert.Greater(t, p12, p24)

	for _, p := range []float64{p6, p12, p24} {
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
	}
}

func TestCorrelationPValueSymmetricInSign(t *testing.T) {
	assert.InDelta(t, correlationPValue(0.6, 10), correlationPValue(-0.6, 10), 1e-12)
}

func TestRegularizedIncompleteBeta(t *testing.T) {
	assert.Equal(t, 0.0, regularizedIncompleteBeta(0, 2, 3))
	assert.Equal(t, 1.0, regularizedIncompleteBeta(1, 2, 3))

	// I_x(1, 1) is the identity.
	assert.InDelta(t, 0.25, regularizedIncompleteBeta(0.25, 1, 1), 1e-9)
	assert.InDelta(t, 0.75, regularizedIncompleteBeta(0.75, 1, 1), 1e-9)

	// I_x(1, b) = 1 - (1-x)^b.
	assert.InDelta(t, 1-0.5*0.5*0.5, regularizedIncompleteBeta(0.5, 1, 3), 1e-9)
}

func TestCrossCorrelationAtLag(t *testing.T) {
	x := []float64{1, 3, 2, 5, 4, 7, 6, 9}
	// y trails x by exactly one period.
	y := []float64{0, 1, 3, 2, 5, 4, 7, 6}

	r, overlap := crossCorrelationAtLag(x, y, 1)
	assert.Equal(t, 7, overlap)
	assert.InDelta(t, 1.0, r, 1e-9)

	// The reverse shift is a much poorer fit.
	rBack, _ := crossCorrelationAtLag(x, y, -1)
	assert.Less(t, abs(rBack), abs(r))

	// Zero lag aligns the full series.
	_, fullOverlap := crossCorrelationAtLag(x, y, 0)
	assert.Equal(t, len(x), fullOverlap)
}

func TestCrossCorrelationAtLagShortOverlap(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{4, 3, 2, 1}

	// Overlap of 2 is below the evaluation minimum.
	r, overlap := crossCorrelationAtLag(x, y, 2)
	assert.Equal(t, 2, overlap)
	assert.Equal(t, 0.0, r)

	// A lag beyond the series length has no overlap at all.
	r, overlap = crossCorrelationAtLag(x, y, 4)
	assert.Equal(t, 0, overlap)
	assert.Equal(t, 0.0, r)
}

func TestHasVariance(t *testing.T) {
	assert.True(t, hasVariance([]float64{1, 1, 2}))
	assert.False(t, hasVariance([]float64{5, 5, 5}))
	assert.False(t, hasVariance([]float64{5}))
	assert.False(t, hasVariance(nil))
}
