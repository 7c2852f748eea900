package services

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

// ContagionAssessor ranks the downstream impact of a breach at one
// source covenant by a bounded best-path traversal over outbound
// propagation edges. Path probabilities multiply (independent
// propagation is assumed absent stronger evidence) and only the best
// path per downstream node is kept, so multi-path routes never double
// count. The hop bound and finite node count guarantee termination
// even on cyclic graphs.
type ContagionAssessor struct {
	cfg    config.AnalyticsConfig
	logger *logrus.Logger
}

// NewContagionAssessor creates a new contagion assessor.
func NewContagionAssessor(cfg config.AnalyticsConfig, logger *logrus.Logger) *ContagionAssessor {
	return &ContagionAssessor{cfg: cfg, logger: logger}
}

// pathState is the best route found so far to one downstream node.
type pathState struct {
	probability float64 // compounded, 0-100
	horizon     float64 // cumulative periods
	path        []string
}

// better reports whether the candidate state beats the incumbent:
// higher compounded probability, ties broken by shorter horizon.
func (s pathState) better(than pathState) bool {
	if s.probability != than.probability {
		return s.probability > than.probability
	}
	return s.horizon < than.horizon
}

// Assess traverses outbound edges from the source up to the configured
// depth and ranks affected covenants. A source with no outbound edges
// yields an empty list and zero cascade probability, not an error.
func (a *ContagionAssessor) Assess(network *models.CovenantNetwork, sourceCovenantID string) (*models.ContagionAssessment, error) {
	if network.Node(sourceCovenantID) == nil {
		return nil, NewInvalidScopeError(sourceCovenantID)
	}

	best := make(map[string]pathState)
	frontier := map[string]pathState{
		sourceCovenantID: {probability: 100, path: []string{sourceCovenantID}},
	}

	for depth := 0; depth < a.cfg.MaxTraversalDepth; depth++ {
		next := make(map[string]pathState)
		// Deterministic expansion order.
		nodeIDs := make([]string, 0, len(frontier))
		for id := range frontier {
			nodeIDs = append(nodeIDs, id)
		}
		sort.Strings(nodeIDs)

		for _, nodeID := range nodeIDs {
			state := frontier[nodeID]
			for _, edge := range network.OutboundEdges(nodeID) {
				if edge.TargetCovenantID == sourceCovenantID {
					continue
				}
				horizonStep := a.cfg.DefaultPropagationPeriods
				if edge.AvgPropagationPeriods != nil {
					horizonStep = *edge.AvgPropagationPeriods
				}
				candidate := pathState{
					probability: state.probability * edge.Probability / 100,
					horizon:     state.horizon + horizonStep,
					path:        appendPath(state.path, edge.TargetCovenantID),
				}
				if existing, ok := best[edge.TargetCovenantID]; !ok || candidate.better(existing) {
					best[edge.TargetCovenantID] = candidate
				}
				if existing, ok := next[edge.TargetCovenantID]; !ok || candidate.better(existing) {
					next[edge.TargetCovenantID] = candidate
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}

	affected := make([]models.AffectedCovenant, 0, len(best))
	for covenantID, state := range best {
		node := network.Node(covenantID)
		if node == nil {
			continue
		}
		pre := node.HeadroomPct
		affected = append(affected, models.AffectedCovenant{
			CovenantID:           covenantID,
			FacilityID:           node.FacilityID,
			CovenantName:         node.CovenantName,
			Probability:          state.probability,
			HorizonPeriods:       state.horizon,
			Hops:                 len(state.path) - 1,
			Path:                 state.path,
			PreBreachHeadroomPct: pre,
			// Headroom shrinks in proportion to the propagation
			// probability; a calibration stand-in, see DESIGN.md.
			PostBreachHeadroomPct: pre * (1 - state.probability/100),
			Tier:                  classifyTier(state.probability),
		})
	}

	sort.Slice(affected, func(i, j int) bool {
		if affected[i].Probability != affected[j].Probability {
			return affected[i].Probability > affected[j].Probability
		}
		if affected[i].HorizonPeriods != affected[j].HorizonPeriods {
			return affected[i].HorizonPeriods < affected[j].HorizonPeriods
		}
		return affected[i].CovenantID < affected[j].CovenantID
	})

	assessment := &models.ContagionAssessment{
		RunID:            network.RunID,
		SourceCovenantID: sourceCovenantID,
		Affected:         affected,
	}
	a.aggregate(assessment, network)

	a.logger.WithFields(logrus.Fields{
		"source":   sourceCovenantID,
		"affected": len(affected),
	}).Debug("Contagion assessment complete")

	return assessment, nil
}

// aggregate fills the portfolio-level summary and recommendations.
func (a *ContagionAssessor) aggregate(assessment *models.ContagionAssessment, network *models.CovenantNetwork) {
	facilities := make(map[string]bool)
	noBreachProduct := 1.0
	var weightedHorizon, probabilitySum float64

	for _, affected := range assessment.Affected {
		noBreachProduct *= 1 - affected.Probability/100
		weightedHorizon += affected.Probability * affected.HorizonPeriods
		probabilitySum += affected.Probability
		if affected.Probability >= a.cfg.AtRiskProbability {
			assessment.CovenantsAtRisk++
			facilities[affected.FacilityID] = true
		}
	}
	assessment.FacilitiesAtRisk = len(facilities)

	if len(assessment.Affected) > 0 {
		assessment.CascadeProbability = (1 - noBreachProduct) * 100
	}
	if probabilitySum > 0 {
		assessment.ExpectedTimelinePeriods = weightedHorizon / probabilitySum
	}

	assessment.Recommendations = a.recommendations(assessment, network)
}

// recommendations produces the templated remediation-adjacent guidance
// shown with an assessment. Wording only; the engine never decides
// remediation actions.
func (a *ContagionAssessor) recommendations(assessment *models.ContagionAssessment, network *models.CovenantNetwork) []string {
	if len(assessment.Affected) == 0 {
		return []string{"No downstream covenants are linked to this breach; monitor the source covenant in isolation."}
	}

	recs := []string{
		fmt.Sprintf("Review the %d covenant(s) with propagation probability above %.0f%% before the next test date.",
			assessment.CovenantsAtRisk, a.cfg.AtRiskProbability),
	}
	if assessment.FacilitiesAtRisk > 1 {
		recs = append(recs, fmt.Sprintf("Contagion crosses %d facilities; escalate to portfolio-level review.", assessment.FacilitiesAtRisk))
	}
	if top := assessment.Affected[0]; top.Tier == models.TierSevere || top.Tier == models.TierHigh {
		recs = append(recs, fmt.Sprintf("Covenant %s (%s) is the most exposed at %.0f%% within ~%.1f periods; prioritise headroom analysis there.",
			top.CovenantID, top.CovenantName, top.Probability, top.HorizonPeriods))
	}
	if node := network.Node(assessment.SourceCovenantID); node != nil && node.Centrality > 0.5 {
		recs = append(recs, "The source covenant is highly central to the portfolio network; a waiver here has outsized systemic effect.")
	}
	return recs
}

func classifyTier(probability float64) models.RiskTier {
	switch {
	case probability >= 75:
		return models.TierSevere
	case probability >= 50:
		return models.TierHigh
	case probability >= 25:
		return models.TierElevated
	default:
		return models.TierLow
	}
}

func appendPath(path []string, next string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = next
	return out
}
