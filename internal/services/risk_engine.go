package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

// CovenantRepository is the read-only view of the authoritative
// test-history store the engine consumes.
type CovenantRepository interface {
	// FetchTestHistory returns all covenant test records inside the
	// scope with period end on or before asOf.
	FetchTestHistory(ctx context.Context, scope models.Scope, asOf time.Time) ([]models.CovenantTestRecord, error)
}

// RiskEngine runs the full correlation/contagion pipeline. Each run is
// a pure function of (series snapshot, configuration): the engine holds
// no long-lived mutable state, and outputs are rebuilt wholesale.
type RiskEngine struct {
	repo   CovenantRepository
	cfg    config.AnalyticsConfig
	logger *logrus.Logger

	assembler  *TimeSeriesAssembler
	correlator *CorrelationComputer
	leadLag    *LeadLagAnalyzer
	estimator  *PropagationEstimator
	builder    *NetworkBuilder
	assessor   *ContagionAssessor
	exporter   *MatrixExporter

	// now is injectable so identical inputs produce identical output.
	now func() time.Time
}

// NewRiskEngine creates a risk engine wired to a repository.
func NewRiskEngine(repo CovenantRepository, cfg config.AnalyticsConfig, logger *logrus.Logger) *RiskEngine {
	return &RiskEngine{
		repo:       repo,
		cfg:        cfg,
		logger:     logger,
		assembler:  NewTimeSeriesAssembler(cfg, logger),
		correlator: NewCorrelationComputer(cfg, logger),
		leadLag:    NewLeadLagAnalyzer(cfg, logger),
		estimator:  NewPropagationEstimator(cfg, logger),
		builder:    NewNetworkBuilder(cfg, logger),
		assessor:   NewContagionAssessor(cfg, logger),
		exporter:   NewMatrixExporter(),
		now:        time.Now,
	}
}

// WithClock overrides the engine clock; intended for tests and
// deterministic replay.
func (e *RiskEngine) WithClock(now func() time.Time) *RiskEngine {
	e.now = now
	return e
}

// runID derives a stable identifier from the scope and as-of date, so
// re-running identical input yields byte-identical output.
func runID(scope models.Scope, asOf time.Time) string {
	name := fmt.Sprintf("covnet:%s:%s:%s", scope.BorrowerID, scope.FacilityID, asOf.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// pipeline bundles the intermediate products shared by ComputeNetwork
// and ComputeMatrix.
type pipeline struct {
	series       []*models.CovenantSeries
	seriesByID   map[string]*models.CovenantSeries
	correlations []models.PairwiseCorrelation
	leadLags     []models.LeadLagResult
	diagnostics  []models.Diagnostic
	computedAt   time.Time
}

// runPipeline loads, assembles, and correlates the scoped history.
func (e *RiskEngine) runPipeline(ctx context.Context, scope models.Scope, asOf time.Time) (*pipeline, error) {
	records, err := e.repo.FetchTestHistory(ctx, scope, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch test history: %w", err)
	}
	if len(records) == 0 {
		return nil, NewInvalidScopeError(scopeLabel(scope))
	}

	computedAt := e.now().UTC()

	series, skipped := e.assembler.Assemble(records)
	correlations, degenerate := e.correlator.ComputePairs(ctx, series, computedAt)

	seriesByID := make(map[string]*models.CovenantSeries, len(series))
	for _, s := range series {
		seriesByID[s.CovenantID] = s
	}
	leadLags := e.leadLag.Analyze(seriesByID, correlations)

	diagnostics := make([]models.Diagnostic, 0, len(skipped)+len(degenerate))
	diagnostics = append(diagnostics, skipped...)
	diagnostics = append(diagnostics, degenerate...)

	return &pipeline{
		series:       series,
		seriesByID:   seriesByID,
		correlations: correlations,
		leadLags:     leadLags,
		diagnostics:  diagnostics,
		computedAt:   computedAt,
	}, nil
}

// ComputeNetwork runs the full pipeline: assemble, correlate, lead-lag,
// estimate propagation, and build the network with statistics.
func (e *RiskEngine) ComputeNetwork(ctx context.Context, scope models.Scope, asOf time.Time) (*models.CovenantNetwork, error) {
	ctx, span := otel.Tracer("covnet/engine").Start(ctx, "RiskEngine.ComputeNetwork")
	defer span.End()
	span.SetAttributes(
		attribute.String("scope.borrower_id", scope.BorrowerID),
		attribute.String("scope.facility_id", scope.FacilityID),
	)

	p, err := e.runPipeline(ctx, scope, asOf)
	if err != nil {
		return nil, err
	}

	edges := e.estimator.Estimate(p.seriesByID, p.correlations, p.leadLags)
	built := e.builder.Build(p.series, p.correlations, edges)

	network := &models.CovenantNetwork{
		RunID:                runID(scope, asOf),
		Scope:                scope,
		AsOf:                 asOf,
		Nodes:                built.nodes,
		Edges:                edges,
		Correlations:         p.correlations,
		Stats:                built.stats,
		CentralityConverged:  built.converged,
		CentralityIterations: built.iterations,
		Diagnostics:          append(p.diagnostics, built.diagnostics...),
		GeneratedAt:          p.computedAt,
	}

	e.logger.WithFields(logrus.Fields{
		"run_id": network.RunID,
		"nodes":  len(network.Nodes),
		"edges":  len(network.Edges),
	}).Info("Covenant network computed")

	return network, nil
}

// ComputeMatrix runs the pipeline through lead-lag and renders the
// dense matrices.
func (e *RiskEngine) ComputeMatrix(ctx context.Context, scope models.Scope, asOf time.Time) (*models.CorrelationMatrix, error) {
	ctx, span := otel.Tracer("covnet/engine").Start(ctx, "RiskEngine.ComputeMatrix")
	defer span.End()

	p, err := e.runPipeline(ctx, scope, asOf)
	if err != nil {
		return nil, err
	}

	labels, coefficients, pValues, lags := e.exporter.Export(p.series, p.correlations, p.leadLags)

	return &models.CorrelationMatrix{
		RunID:        runID(scope, asOf),
		Scope:        scope,
		AsOf:         asOf,
		Labels:       labels,
		Coefficients: coefficients,
		PValues:      pValues,
		LeadLags:     lags,
		Diagnostics:  p.diagnostics,
		GeneratedAt:  p.computedAt,
	}, nil
}

// AssessContagion performs the bounded traversal from a source covenant
// over an already-computed network.
func (e *RiskEngine) AssessContagion(ctx context.Context, sourceCovenantID string, network *models.CovenantNetwork) (*models.ContagionAssessment, error) {
	_, span := otel.Tracer("covnet/engine").Start(ctx, "RiskEngine.AssessContagion")
	defer span.End()
	span.SetAttributes(attribute.String("source.covenant_id", sourceCovenantID))

	assessment, err := e.assessor.Assess(network, sourceCovenantID)
	if err != nil {
		return nil, err
	}
	assessment.GeneratedAt = network.GeneratedAt
	return assessment, nil
}

func scopeLabel(scope models.Scope) string {
	switch {
	case scope.IsPortfolio():
		return "portfolio"
	case scope.BorrowerID != "":
		return "borrower:" + scope.BorrowerID
	default:
		return "facility:" + scope.FacilityID
	}
}
