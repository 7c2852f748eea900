package services

import (
	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

// LeadLagAnalyzer determines which covenant of a correlated pair tends
// to move first, by scanning cross-correlation over a bounded lag
// window. Only one direction per pair is computed; the reverse is
// derived algebraically, which keeps lag(A,B) = -lag(B,A) exact.
type LeadLagAnalyzer struct {
	cfg    config.AnalyticsConfig
	logger *logrus.Logger
}

// NewLeadLagAnalyzer creates a new lead-lag analyzer.
func NewLeadLagAnalyzer(cfg config.AnalyticsConfig, logger *logrus.Logger) *LeadLagAnalyzer {
	return &LeadLagAnalyzer{cfg: cfg, logger: logger}
}

// Analyze computes the representative lead-lag for every significant
// correlation pair. Both orderings of each pair are returned: the
// canonical one computed, the reverse derived by negation.
func (l *LeadLagAnalyzer) Analyze(seriesByID map[string]*models.CovenantSeries, correlations []models.PairwiseCorrelation) []models.LeadLagResult {
	results := make([]models.LeadLagResult, 0, 2*len(correlations))

	for _, corr := range correlations {
		if !corr.Significant {
			continue
		}
		source := seriesByID[corr.SourceCovenantID]
		target := seriesByID[corr.TargetCovenantID]
		if source == nil || target == nil {
			continue
		}

		pair := alignSeries(source, target)
		lag, xcorr := l.bestLag(pair.x, pair.y)

		forward := models.LeadLagResult{
			SourceCovenantID: corr.SourceCovenantID,
			TargetCovenantID: corr.TargetCovenantID,
			LagPeriods:       lag,
			CrossCorrelation: xcorr,
			Relation:         classifyRelation(lag),
		}
		// Never recompute the reverse direction independently.
		reverse := models.LeadLagResult{
			SourceCovenantID: corr.TargetCovenantID,
			TargetCovenantID: corr.SourceCovenantID,
			LagPeriods:       -lag,
			CrossCorrelation: xcorr,
			Relation:         classifyRelation(-lag),
		}
		results = append(results, forward, reverse)
	}

	return results
}

// bestLag scans lags in [-L, +L] and returns the one with the largest
// absolute cross-correlation. Ties are broken by preferring the smaller
// absolute lag, the nearer-term signal; an exact tie between +k and -k
// resolves to the positive lag.
func (l *LeadLagAnalyzer) bestLag(x, y []float64) (int, float64) {
	maxLag := l.cfg.MaxLagPeriods

	bestLag := 0
	bestXCorr := 0.0
	haveBest := false

	for lag := -maxLag; lag <= maxLag; lag++ {
		xcorr, overlap := crossCorrelationAtLag(x, y, lag)
		if overlap < 3 {
			continue
		}
		if !haveBest || betterLag(lag, xcorr, bestLag, bestXCorr) {
			bestLag = lag
			bestXCorr = xcorr
			haveBest = true
		}
	}

	return bestLag, bestXCorr
}

// betterLag reports whether candidate (lag, xcorr) beats the incumbent.
func betterLag(lag int, xcorr float64, bestLag int, bestXCorr float64) bool {
	mag := abs(xcorr)
	bestMag := abs(bestXCorr)
	if mag != bestMag {
		return mag > bestMag
	}
	if absInt(lag) != absInt(bestLag) {
		return absInt(lag) < absInt(bestLag)
	}
	return lag > bestLag
}

func classifyRelation(lag int) models.LeadLagRelation {
	switch {
	case lag > 0:
		return models.RelationLeads
	case lag < 0:
		return models.RelationLags
	default:
		return models.RelationSynchronous
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
