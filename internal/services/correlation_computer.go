package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

// CorrelationComputer computes pairwise Pearson correlations between
// all covenant series with sufficiently overlapping windows. Each
// unordered pair is computed exactly once, which makes symmetry a
// structural guarantee rather than a numerical one.
type CorrelationComputer struct {
	cfg    config.AnalyticsConfig
	logger *logrus.Logger
}

// NewCorrelationComputer creates a new correlation computer.
func NewCorrelationComputer(cfg config.AnalyticsConfig, logger *logrus.Logger) *CorrelationComputer {
	return &CorrelationComputer{cfg: cfg, logger: logger}
}

// alignedPair holds two series restricted to their common periods.
type alignedPair struct {
	x, y       []float64
	start, end time.Time
}

// alignSeries intersects the period axes of two series. Both sample
// slices are sorted ascending, so a two-pointer merge suffices.
func alignSeries(a, b *models.CovenantSeries) alignedPair {
	var pair alignedPair
	i, j := 0, 0
	for i < len(a.Samples) && j < len(b.Samples) {
		pa := a.Samples[i].PeriodEnd
		pb := b.Samples[j].PeriodEnd
		switch {
		case pa.Before(pb):
			i++
		case pb.Before(pa):
			j++
		default:
			if len(pair.x) == 0 {
				pair.start = pa
			}
			pair.end = pa
			pair.x = append(pair.x, a.Samples[i].Value)
			pair.y = append(pair.y, b.Samples[j].Value)
			i++
			j++
		}
	}
	return pair
}

// pairOutcome carries one computed pair and, when a constant series
// forced the undefined-correlation fallback, the offending covenant.
type pairOutcome struct {
	corr       models.PairwiseCorrelation
	degenerate *DegenerateSeriesError
}

// ComputePairs computes correlations for every unordered pair whose
// period intersection meets the minimum sample count. Pairs are
// independent, so the work fans out over a bounded worker pool and is
// merged after all workers finish. The source of each result is the
// lexicographically smaller covenant id.
func (c *CorrelationComputer) ComputePairs(ctx context.Context, series []*models.CovenantSeries, computedAt time.Time) ([]models.PairwiseCorrelation, []models.Diagnostic) {
	ordered := make([]*models.CovenantSeries, len(series))
	copy(ordered, series)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CovenantID < ordered[j].CovenantID
	})

	type pairJob struct{ i, j int }
	pairCount := len(ordered) * (len(ordered) - 1) / 2
	jobs := make(chan pairJob)
	outcomes := make(chan pairOutcome, pairCount+1)

	workers := c.cfg.CorrelationWorkers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if outcome, ok := c.computePair(ordered[job.i], ordered[job.j], computedAt); ok {
					outcomes <- outcome
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < len(ordered); i++ {
			for j := i + 1; j < len(ordered); j++ {
				select {
				case jobs <- pairJob{i, j}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	// Completion barrier: no result is observed until all pairwise
	// computations are done.
	wg.Wait()
	close(outcomes)

	collected := make([]pairOutcome, 0, pairCount)
	for outcome := range outcomes {
		collected = append(collected, outcome)
	}
	sort.Slice(collected, func(i, j int) bool {
		a, b := collected[i].corr, collected[j].corr
		if a.SourceCovenantID != b.SourceCovenantID {
			return a.SourceCovenantID < b.SourceCovenantID
		}
		return a.TargetCovenantID < b.TargetCovenantID
	})

	correlations := make([]models.PairwiseCorrelation, 0, len(collected))
	var diagnostics []models.Diagnostic
	for _, outcome := range collected {
		correlations = append(correlations, outcome.corr)
		if outcome.degenerate != nil {
			diagnostics = append(diagnostics, models.Diagnostic{
				Severity:   "info",
				Code:       models.DiagDegenerateSeries,
				CovenantID: outcome.degenerate.CovenantID,
				Message:    outcome.degenerate.Error(),
			})
		}
	}

	c.logger.WithFields(logrus.Fields{
		"series": len(ordered),
		"pairs":  len(correlations),
	}).Debug("Pairwise correlation pass complete")

	return correlations, diagnostics
}

// computePair computes one pairwise correlation. Returns false when the
// overlapping window is too short to evaluate at all.
func (c *CorrelationComputer) computePair(a, b *models.CovenantSeries, computedAt time.Time) (pairOutcome, bool) {
	pair := alignSeries(a, b)
	if len(pair.x) < c.cfg.MinSampleSize {
		return pairOutcome{}, false
	}

	result := models.PairwiseCorrelation{
		SourceCovenantID: a.CovenantID,
		TargetCovenantID: b.CovenantID,
		SampleSize:       len(pair.x),
		WindowStart:      pair.start,
		WindowEnd:        pair.end,
		ComputedAt:       computedAt,
	}

	// Zero-variance series make the correlation undefined; record it
	// as non-significant instead of dividing by zero.
	if !hasVariance(pair.x) || !hasVariance(pair.y) {
		constant := a.CovenantID
		if hasVariance(pair.x) {
			constant = b.CovenantID
		}
		result.Coefficient = 0
		result.PValue = 1
		result.Strength = models.StrengthVeryWeak
		result.Direction = models.DirectionNeutral
		result.Significant = false
		return pairOutcome{corr: result, degenerate: &DegenerateSeriesError{CovenantID: constant}}, true
	}

	r := calculateCorrelation(pair.x, pair.y)
	result.Coefficient = r
	result.PValue = correlationPValue(r, len(pair.x))
	result.Strength = classifyStrength(r)
	result.Direction = classifyDirection(r)
	result.Significant = result.PValue <= c.cfg.SignificanceLevel

	return pairOutcome{corr: result}, true
}

// classifyStrength maps |r| onto the fixed strength breakpoints.
func classifyStrength(r float64) models.CorrelationStrength {
	abs := r
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 0.8:
		return models.StrengthVeryStrong
	case abs >= 0.6:
		return models.StrengthStrong
	case abs >= 0.4:
		return models.StrengthModerate
	case abs >= 0.2:
		return models.StrengthWeak
	default:
		return models.StrengthVeryWeak
	}
}

func classifyDirection(r float64) models.CorrelationDirection {
	switch {
	case r > 0:
		return models.DirectionPositive
	case r < 0:
		return models.DirectionNegative
	default:
		return models.DirectionNeutral
	}
}
