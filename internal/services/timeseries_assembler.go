package services

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

// TimeSeriesAssembler turns raw test-history records into one ordered
// CovenantSeries per covenant on a common quarterly axis.
type TimeSeriesAssembler struct {
	minSamples int
	logger     *logrus.Logger
}

// NewTimeSeriesAssembler creates a new assembler.
func NewTimeSeriesAssembler(cfg config.AnalyticsConfig, logger *logrus.Logger) *TimeSeriesAssembler {
	return &TimeSeriesAssembler{
		minSamples: cfg.MinSampleSize,
		logger:     logger,
	}
}

// Assemble groups records by covenant, resolves duplicate periods by
// keeping the most recently recorded value, and sorts samples ascending
// by period end. Gaps are left unfilled. Covenants with fewer than the
// minimum sample count are excluded and reported in the skip list.
func (a *TimeSeriesAssembler) Assemble(records []models.CovenantTestRecord) ([]*models.CovenantSeries, []models.Diagnostic) {
	byCovenant := make(map[string][]models.CovenantTestRecord)
	for _, record := range records {
		byCovenant[record.CovenantID] = append(byCovenant[record.CovenantID], record)
	}

	// Deterministic iteration order.
	covenantIDs := make([]string, 0, len(byCovenant))
	for id := range byCovenant {
		covenantIDs = append(covenantIDs, id)
	}
	sort.Strings(covenantIDs)

	series := make([]*models.CovenantSeries, 0, len(covenantIDs))
	var skipped []models.Diagnostic

	for _, covenantID := range covenantIDs {
		group := byCovenant[covenantID]

		// Latest RecordedAt wins for duplicate periods.
		byPeriod := make(map[int64]models.CovenantTestRecord)
		for _, record := range group {
			key := record.PeriodEnd.UTC().Unix()
			existing, ok := byPeriod[key]
			if !ok || record.RecordedAt.After(existing.RecordedAt) {
				byPeriod[key] = record
			}
		}

		deduped := make([]models.CovenantTestRecord, 0, len(byPeriod))
		for _, record := range byPeriod {
			deduped = append(deduped, record)
		}
		sort.Slice(deduped, func(i, j int) bool {
			return deduped[i].PeriodEnd.Before(deduped[j].PeriodEnd)
		})

		if len(deduped) < a.minSamples {
			err := &InsufficientDataError{
				CovenantID: covenantID,
				Samples:    len(deduped),
				Required:   a.minSamples,
			}
			a.logger.WithFields(logrus.Fields{
				"covenant_id": covenantID,
				"samples":     len(deduped),
				"required":    a.minSamples,
			}).Debug("Skipping covenant with insufficient history")
			skipped = append(skipped, models.Diagnostic{
				Severity:   "warning",
				Code:       models.DiagInsufficientData,
				CovenantID: covenantID,
				Message:    err.Error(),
			})
			continue
		}

		samples := make([]models.TestSample, len(deduped))
		for i, record := range deduped {
			value, _ := record.Value.Float64()
			headroom, _ := record.HeadroomPct.Float64()
			samples[i] = models.TestSample{
				PeriodEnd:   record.PeriodEnd.UTC(),
				Value:       value,
				HeadroomPct: headroom,
				Passed:      record.Passed,
			}
		}

		latest := deduped[len(deduped)-1]
		series = append(series, &models.CovenantSeries{
			CovenantID:   covenantID,
			FacilityID:   latest.FacilityID,
			BorrowerID:   latest.BorrowerID,
			CovenantType: latest.CovenantType,
			CovenantName: latest.CovenantName,
			Status:       latest.Status,
			Samples:      samples,
		})
	}

	return series, skipped
}
