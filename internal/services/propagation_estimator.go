package services

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

// PropagationEstimator converts correlations and historical co-breach
// statistics into directed breach-propagation edges. Propagation is
// directional even though correlation is not, so each significant pair
// yields up to two edges estimated independently.
type PropagationEstimator struct {
	cfg    config.AnalyticsConfig
	logger *logrus.Logger
}

// NewPropagationEstimator creates a new propagation estimator.
func NewPropagationEstimator(cfg config.AnalyticsConfig, logger *logrus.Logger) *PropagationEstimator {
	return &PropagationEstimator{cfg: cfg, logger: logger}
}

// coBreachStats summarises how often, and how quickly, a target breach
// followed a source breach inside the trailing window.
type coBreachStats struct {
	sourceBreaches int
	coBreaches     int
	rate           float64  // 0-100, share of source breaches with a co-breach
	avgPeriods     *float64 // mean periods to nearest subsequent target breach
}

// Estimate builds propagation edges for each direction of each
// significant pair whose correlation clears the edge threshold.
// Results are ordered by (source, target) for determinism.
func (p *PropagationEstimator) Estimate(seriesByID map[string]*models.CovenantSeries, correlations []models.PairwiseCorrelation, leadLags []models.LeadLagResult) []models.PropagationEdge {
	lagByPair := make(map[[2]string]int, len(leadLags))
	for _, ll := range leadLags {
		lagByPair[[2]string{ll.SourceCovenantID, ll.TargetCovenantID}] = ll.LagPeriods
	}

	var edges []models.PropagationEdge
	for _, corr := range correlations {
		if !corr.Significant || abs(corr.Coefficient) < p.cfg.MinEdgeCoefficient {
			continue
		}
		source := seriesByID[corr.SourceCovenantID]
		target := seriesByID[corr.TargetCovenantID]
		if source == nil || target == nil {
			continue
		}

		edges = append(edges,
			p.estimateDirection(source, target, corr, lagByPair[[2]string{source.CovenantID, target.CovenantID}]),
			p.estimateDirection(target, source, corr, lagByPair[[2]string{target.CovenantID, source.CovenantID}]),
		)
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].SourceCovenantID != edges[j].SourceCovenantID {
			return edges[i].SourceCovenantID < edges[j].SourceCovenantID
		}
		return edges[i].TargetCovenantID < edges[j].TargetCovenantID
	})
	return edges
}

// estimateDirection blends absolute correlation strength, the
// historical co-breach rate, and a sample-size confidence discount into
// a propagation probability for source -> target. The blending weights
// are configuration, not derived constants.
func (p *PropagationEstimator) estimateDirection(source, target *models.CovenantSeries, corr models.PairwiseCorrelation, lag int) models.PropagationEdge {
	stats := p.coBreach(source, target)

	edge := models.PropagationEdge{
		SourceCovenantID:      source.CovenantID,
		TargetCovenantID:      target.CovenantID,
		CoBreachRate:          stats.rate,
		CoBreachCount:         stats.coBreaches,
		AvgPropagationPeriods: stats.avgPeriods,
		Coefficient:           corr.Coefficient,
		LagPeriods:            lag,
	}

	if stats.coBreaches == 0 {
		// Correlation-implied but historically unobserved risk: hold
		// the probability at a low floor rather than zero.
		edge.Probability = p.cfg.PropagationFloor
		return edge
	}

	wCorr := p.cfg.CorrelationWeight
	wBreach := p.cfg.CoBreachWeight
	blended := (wCorr*abs(corr.Coefficient)*100 + wBreach*stats.rate) / (wCorr + wBreach)

	// Few samples pull the estimate toward a neutral 50.
	confidence := float64(corr.SampleSize) / float64(p.cfg.ConfidenceFullSamples)
	if confidence > 1 {
		confidence = 1
	}
	probability := confidence*blended + (1-confidence)*50

	if probability < 0 {
		probability = 0
	}
	if probability > 100 {
		probability = 100
	}
	edge.Probability = probability
	return edge
}

// coBreach walks the source's breach periods looking for the nearest
// subsequent target breach within the trailing window, matching
// periods across the two series by period-end date.
func (p *PropagationEstimator) coBreach(source, target *models.CovenantSeries) coBreachStats {
	targetPeriods := make([]int64, len(target.Samples))
	for i, sample := range target.Samples {
		targetPeriods[i] = sample.PeriodEnd.Unix()
	}

	var stats coBreachStats
	var totalDelta float64

	for _, breachIdx := range source.BreachPeriods() {
		sample := source.Samples[breachIdx]
		stats.sourceBreaches++

		// Find the target's position for this period, then scan the
		// window forward from there.
		pos := sort.Search(len(targetPeriods), func(k int) bool {
			return targetPeriods[k] >= sample.PeriodEnd.Unix()
		})
		for offset := 0; offset <= p.cfg.CoBreachWindowPeriods; offset++ {
			k := pos + offset
			if k >= len(target.Samples) {
				break
			}
			if !target.Samples[k].Passed {
				stats.coBreaches++
				totalDelta += float64(k - pos)
				break
			}
		}
	}

	if stats.sourceBreaches > 0 {
		stats.rate = float64(stats.coBreaches) / float64(stats.sourceBreaches) * 100
	}
	if stats.coBreaches > 0 {
		avg := totalDelta / float64(stats.coBreaches)
		stats.avgPeriods = &avg
	}
	return stats
}
