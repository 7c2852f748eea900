package models

import "time"

// HeadroomTrend classifies the trajectory of a covenant's headroom.
type HeadroomTrend string

const (
	TrendImproving     HeadroomTrend = "improving"
	TrendStable        HeadroomTrend = "stable"
	TrendDeteriorating HeadroomTrend = "deteriorating"
)

// PropagationEdge is a directed breach-propagation relationship.
// Edges exist only for ordered pairs whose correlation cleared the
// configured significance thresholds.
type PropagationEdge struct {
	SourceCovenantID string `json:"source_covenant_id"`
	TargetCovenantID string `json:"target_covenant_id"`
	// Probability that a source breach propagates to the target, 0-100.
	Probability float64 `json:"probability"`
	// AvgPropagationPeriods is the mean number of periods between a
	// source breach and the nearest subsequent target breach. Nil when
	// no co-breach events were observed.
	AvgPropagationPeriods *float64 `json:"avg_propagation_periods,omitempty"`
	CoBreachRate          float64  `json:"co_breach_rate"` // 0-100
	CoBreachCount         int      `json:"co_breach_count"`
	Coefficient           float64  `json:"coefficient"`
	LagPeriods            int      `json:"lag_periods"`
}

// NetworkNode is the per-covenant vertex of the contagion network.
// Nodes are replaced wholesale on every engine run, never mutated.
type NetworkNode struct {
	CovenantID    string         `json:"covenant_id"`
	FacilityID    string         `json:"facility_id"`
	BorrowerID    string         `json:"borrower_id"`
	CovenantType  string         `json:"covenant_type"`
	CovenantName  string         `json:"covenant_name"`
	Status        CovenantStatus `json:"status"`
	HeadroomPct   float64        `json:"headroom_pct"`
	HeadroomTrend HeadroomTrend  `json:"headroom_trend"`
	InDegree      int            `json:"in_degree"`
	OutDegree     int            `json:"out_degree"`
	Centrality    float64        `json:"centrality"` // [0, 1]
	RiskScore     float64        `json:"risk_score"` // [0, 100]
}

// NetworkStats holds portfolio-level statistics derived from the
// assembled node/edge set.
type NetworkStats struct {
	NodeCount               int      `json:"node_count"`
	EdgeCount               int      `json:"edge_count"`
	Density                 float64  `json:"density"`
	AvgCorrelationStrength  float64  `json:"avg_correlation_strength"`
	ComponentCount          int      `json:"component_count"`
	MostCentralCovenantID   string   `json:"most_central_covenant_id,omitempty"`
	HighestRiskCluster      []string `json:"highest_risk_cluster,omitempty"`
	HighestRiskClusterScore float64  `json:"highest_risk_cluster_score"`
}

// CovenantNetwork is the full output of one engine run: the weighted
// directed graph plus portfolio statistics and run diagnostics.
type CovenantNetwork struct {
	RunID                string                `json:"run_id"`
	Scope                Scope                 `json:"scope"`
	AsOf                 time.Time             `json:"as_of"`
	Nodes                []NetworkNode         `json:"nodes"`
	Edges                []PropagationEdge     `json:"edges"`
	Correlations         []PairwiseCorrelation `json:"correlations"`
	Stats                NetworkStats          `json:"stats"`
	CentralityConverged  bool                  `json:"centrality_converged"`
	CentralityIterations int                   `json:"centrality_iterations"`
	Diagnostics          []Diagnostic          `json:"diagnostics,omitempty"`
	GeneratedAt          time.Time             `json:"generated_at"`
}

// Node returns the node for a covenant id, or nil if absent.
func (n *CovenantNetwork) Node(covenantID string) *NetworkNode {
	for i := range n.Nodes {
		if n.Nodes[i].CovenantID == covenantID {
			return &n.Nodes[i]
		}
	}
	return nil
}

// OutboundEdges returns the edges originating at a covenant.
func (n *CovenantNetwork) OutboundEdges(covenantID string) []PropagationEdge {
	var edges []PropagationEdge
	for _, edge := range n.Edges {
		if edge.SourceCovenantID == covenantID {
			edges = append(edges, edge)
		}
	}
	return edges
}
