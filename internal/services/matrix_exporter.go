package services

import (
	"sort"

	"github.com/akeroyd/covnet/internal/models"
)

// MatrixExporter renders the pairwise correlation, p-value, and
// lead-lag data as dense square matrices for visualization consumers.
type MatrixExporter struct{}

// NewMatrixExporter creates a new matrix exporter.
func NewMatrixExporter() *MatrixExporter {
	return &MatrixExporter{}
}

// Export builds the three matrices over the sorted covenant ids.
// Diagonals are fixed: coefficient 1.0, p-value 0.0, lag 0. Cells with
// no computed pair (insufficient overlap) stay at the zero value.
func (e *MatrixExporter) Export(series []*models.CovenantSeries, correlations []models.PairwiseCorrelation, leadLags []models.LeadLagResult) ([]models.MatrixLabel, [][]float64, [][]float64, [][]int) {
	ordered := make([]*models.CovenantSeries, len(series))
	copy(ordered, series)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CovenantID < ordered[j].CovenantID
	})

	n := len(ordered)
	labels := make([]models.MatrixLabel, n)
	index := make(map[string]int, n)
	for i, s := range ordered {
		labels[i] = models.MatrixLabel{
			CovenantID:   s.CovenantID,
			CovenantName: s.CovenantName,
			FacilityID:   s.FacilityID,
			CovenantType: s.CovenantType,
		}
		index[s.CovenantID] = i
	}

	coefficients := make([][]float64, n)
	pValues := make([][]float64, n)
	lags := make([][]int, n)
	for i := 0; i < n; i++ {
		coefficients[i] = make([]float64, n)
		pValues[i] = make([]float64, n)
		lags[i] = make([]int, n)
		coefficients[i][i] = 1
		pValues[i][i] = 0
		lags[i][i] = 0
		for j := 0; j < n; j++ {
			if i != j {
				// Pairs below the overlap minimum have no correlation
				// record; their p-value reads as fully non-significant.
				pValues[i][j] = 1
			}
		}
	}

	// Correlation is symmetric; one record fills both triangles.
	for _, corr := range correlations {
		i, okI := index[corr.SourceCovenantID]
		j, okJ := index[corr.TargetCovenantID]
		if !okI || !okJ {
			continue
		}
		coefficients[i][j] = corr.Coefficient
		coefficients[j][i] = corr.Coefficient
		pValues[i][j] = corr.PValue
		pValues[j][i] = corr.PValue
	}

	// Lead-lag results already carry both orderings (the reverse is
	// derived by negation), so this fill preserves antisymmetry.
	for _, ll := range leadLags {
		i, okI := index[ll.SourceCovenantID]
		j, okJ := index[ll.TargetCovenantID]
		if !okI || !okJ {
			continue
		}
		lags[i][j] = ll.LagPeriods
	}

	return labels, coefficients, pValues, lags
}
