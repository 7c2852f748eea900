package services

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/models"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// quarterEnd returns the i-th quarterly period end starting at
// 2022-03-31.
func quarterEnd(i int) time.Time {
	months := []time.Month{time.March, time.June, time.September, time.December}
	days := []int{31, 30, 30, 31}
	year := 2022 + i/4
	q := i % 4
	return time.Date(year, months[q], days[q], 0, 0, 0, 0, time.UTC)
}

type seriesSpec struct {
	id       string
	facility string
	borrower string
	status   models.CovenantStatus
	values   []float64
	passed   []bool
	headroom []float64
}

func makeSeries(spec seriesSpec) *models.CovenantSeries {
	if spec.facility == "" {
		spec.facility = "fac-1"
	}
	if spec.borrower == "" {
		spec.borrower = "bor-1"
	}
	if spec.status == "" {
		spec.status = models.CovenantStatusActive
	}

	samples := make([]models.TestSample, len(spec.values))
	for i, v := range spec.values {
		passed := true
		if spec.passed != nil {
			passed = spec.passed[i]
		}
		headroom := 20.0
		if spec.headroom != nil {
			headroom = spec.headroom[i]
		}
		samples[i] = models.TestSample{
			PeriodEnd:   quarterEnd(i),
			Value:       v,
			HeadroomPct: headroom,
			Passed:      passed,
		}
	}

	return &models.CovenantSeries{
		CovenantID:   spec.id,
		FacilityID:   spec.facility,
		BorrowerID:   spec.borrower,
		CovenantType: "leverage_ratio",
		CovenantName: "Leverage " + spec.id,
		Status:       spec.status,
		Samples:      samples,
	}
}

func seriesMap(series ...*models.CovenantSeries) map[string]*models.CovenantSeries {
	m := make(map[string]*models.CovenantSeries, len(series))
	for _, s := range series {
		m[s.CovenantID] = s
	}
	return m
}

// makeRecords expands a series spec into raw test records, the shape
// the assembler and engine consume.
func makeRecords(spec seriesSpec) []models.CovenantTestRecord {
	s := makeSeries(spec)
	records := make([]models.CovenantTestRecord, len(s.Samples))
	for i, sample := range s.Samples {
		records[i] = models.CovenantTestRecord{
			CovenantID:   s.CovenantID,
			FacilityID:   s.FacilityID,
			BorrowerID:   s.BorrowerID,
			CovenantType: s.CovenantType,
			CovenantName: s.CovenantName,
			Status:       s.Status,
			PeriodEnd:    sample.PeriodEnd,
			Value:        decimal.NewFromFloat(sample.Value),
			Threshold:    decimal.NewFromFloat(3.5),
			HeadroomPct:  decimal.NewFromFloat(sample.HeadroomPct),
			Passed:       sample.Passed,
			RecordedAt:   sample.PeriodEnd.Add(24 * time.Hour),
		}
	}
	return records
}
