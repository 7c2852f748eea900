package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

// NetworkBuilder assembles the contagion network: one node per
// surviving covenant (isolated nodes included), one directed edge per
// propagation estimate, plus eigenvector centrality, per-node risk
// scores, and portfolio-level statistics. Nodes and edges are addressed
// by covenant id, never by object reference, so the structure stays
// serializable and cycle-safe.
type NetworkBuilder struct {
	cfg    config.AnalyticsConfig
	logger *logrus.Logger
}

// NewNetworkBuilder creates a new network builder.
func NewNetworkBuilder(cfg config.AnalyticsConfig, logger *logrus.Logger) *NetworkBuilder {
	return &NetworkBuilder{cfg: cfg, logger: logger}
}

// Status severity used in the risk score blend.
var statusSeverity = map[models.CovenantStatus]float64{
	models.CovenantStatusBreached: 100,
	models.CovenantStatusAtRisk:   70,
	models.CovenantStatusWaived:   40,
	models.CovenantStatusActive:   10,
}

// buildResult bundles everything the builder derives from one run.
type buildResult struct {
	nodes       []models.NetworkNode
	stats       models.NetworkStats
	converged   bool
	iterations  int
	diagnostics []models.Diagnostic
}

// Build computes nodes, centrality, risk scores, and network statistics
// from the assembled series and estimated edges. All orderings are
// deterministic with covenant-id tie-breaks.
func (b *NetworkBuilder) Build(series []*models.CovenantSeries, correlations []models.PairwiseCorrelation, edges []models.PropagationEdge) buildResult {
	ordered := make([]*models.CovenantSeries, len(series))
	copy(ordered, series)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CovenantID < ordered[j].CovenantID
	})

	index := make(map[string]int, len(ordered))
	for i, s := range ordered {
		index[s.CovenantID] = i
	}

	centrality, iterations, converged := b.powerIteration(len(ordered), index, edges)

	inDegree := make([]int, len(ordered))
	outDegree := make([]int, len(ordered))
	for _, edge := range edges {
		if si, ok := index[edge.SourceCovenantID]; ok {
			outDegree[si]++
		}
		if ti, ok := index[edge.TargetCovenantID]; ok {
			inDegree[ti]++
		}
	}

	nodes := make([]models.NetworkNode, len(ordered))
	for i, s := range ordered {
		trendClass := b.headroomTrend(s.HeadroomSeries())
		nodes[i] = models.NetworkNode{
			CovenantID:    s.CovenantID,
			FacilityID:    s.FacilityID,
			BorrowerID:    s.BorrowerID,
			CovenantType:  s.CovenantType,
			CovenantName:  s.CovenantName,
			Status:        s.Status,
			HeadroomPct:   s.CurrentHeadroomPct(),
			HeadroomTrend: trendClass,
			InDegree:      inDegree[i],
			OutDegree:     outDegree[i],
			Centrality:    centrality[i],
		}
		nodes[i].RiskScore = b.riskScore(nodes[i])
	}

	stats := b.networkStats(nodes, correlations, edges, index)

	var diagnostics []models.Diagnostic
	if !converged {
		diagnostics = append(diagnostics, models.Diagnostic{
			Severity: "warning",
			Code:     models.DiagConvergence,
			Message:  fmt.Sprintf("centrality hit the iteration cap (%d) without converging; scores are approximate", b.cfg.CentralityMaxIterations),
		})
	}

	return buildResult{
		nodes:       nodes,
		stats:       stats,
		converged:   converged,
		iterations:  iterations,
		diagnostics: diagnostics,
	}
}

// powerIteration approximates eigenvector centrality on the weighted
// adjacency matrix (weights = probability/100). The vector is
// L2-normalized each iteration; iteration stops at the convergence
// tolerance or the iteration cap, whichever comes first, so termination
// is guaranteed. A node's score accumulates over incoming edges.
func (b *NetworkBuilder) powerIteration(n int, index map[string]int, edges []models.PropagationEdge) ([]float64, int, bool) {
	centrality := make([]float64, n)
	if n == 0 {
		return centrality, 0, true
	}
	if len(edges) == 0 {
		return centrality, 0, true
	}

	type weightedEdge struct {
		from, to int
		weight   float64
	}
	adj := make([]weightedEdge, 0, len(edges))
	for _, edge := range edges {
		si, okS := index[edge.SourceCovenantID]
		ti, okT := index[edge.TargetCovenantID]
		if !okS || !okT {
			continue
		}
		adj = append(adj, weightedEdge{from: si, to: ti, weight: edge.Probability / 100})
	}

	vector := make([]float64, n)
	for i := range vector {
		vector[i] = 1 / math.Sqrt(float64(n))
	}
	next := make([]float64, n)

	iterations := 0
	for iterations < b.cfg.CentralityMaxIterations {
		iterations++
		for i := range next {
			next[i] = 0
		}
		for _, e := range adj {
			next[e.to] += e.weight * vector[e.from]
		}

		norm := 0.0
		for _, v := range next {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			// The weight mass drained out (e.g. all edges point at
			// sources with zero score); nothing to rank.
			return make([]float64, n), iterations, true
		}

		delta := 0.0
		for i := range next {
			next[i] /= norm
			delta += math.Abs(next[i] - vector[i])
		}
		vector, next = next, vector

		if delta < b.cfg.CentralityTolerance {
			return clampUnit(vector), iterations, true
		}
	}

	return clampUnit(vector), iterations, false
}

func clampUnit(values []float64) []float64 {
	for i, v := range values {
		if v < 0 {
			values[i] = 0
		}
		if v > 1 {
			values[i] = 1
		}
	}
	return values
}

// riskScore blends status severity, inverse headroom, and centrality
// using the configured weights, with a bump for deteriorating headroom.
func (b *NetworkBuilder) riskScore(node models.NetworkNode) float64 {
	severity := statusSeverity[node.Status]

	inverseHeadroom := 100 - node.HeadroomPct
	if inverseHeadroom < 0 {
		inverseHeadroom = 0
	}
	if inverseHeadroom > 100 {
		inverseHeadroom = 100
	}

	score := b.cfg.RiskStatusWeight*severity +
		b.cfg.RiskHeadroomWeight*inverseHeadroom +
		b.cfg.RiskCentralityWeight*node.Centrality*100

	if node.HeadroomTrend == models.TrendDeteriorating {
		score += b.cfg.TrendRiskBump
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// headroomTrend classifies the trailing headroom trajectory by
// comparing the newest SMA value against the oldest one, with a one
// point deadband.
func (b *NetworkBuilder) headroomTrend(headroom []float64) models.HeadroomTrend {
	period := b.cfg.TrendPeriods
	if period < 2 || len(headroom) < period+1 {
		return models.TrendStable
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	smoothed := helper.ChanToSlice(sma.Compute(helper.SliceToChan(headroom)))
	if len(smoothed) < 2 {
		return models.TrendStable
	}

	const deadband = 1.0
	delta := smoothed[len(smoothed)-1] - smoothed[0]
	switch {
	case delta > deadband:
		return models.TrendImproving
	case delta < -deadband:
		return models.TrendDeteriorating
	default:
		return models.TrendStable
	}
}

// networkStats derives the portfolio-level statistics: density, average
// significant correlation strength, connected components over the
// undirected view, the most central node, and the highest-risk cluster.
func (b *NetworkBuilder) networkStats(nodes []models.NetworkNode, correlations []models.PairwiseCorrelation, edges []models.PropagationEdge, index map[string]int) models.NetworkStats {
	stats := models.NetworkStats{
		NodeCount: len(nodes),
		EdgeCount: len(edges),
	}

	if len(nodes) > 1 {
		stats.Density = float64(len(edges)) / float64(len(nodes)*(len(nodes)-1))
	}

	var strengthSum float64
	var significant int
	for _, corr := range correlations {
		if corr.Significant {
			strengthSum += abs(corr.Coefficient)
			significant++
		}
	}
	if significant > 0 {
		stats.AvgCorrelationStrength = strengthSum / float64(significant)
	}

	if len(nodes) > 0 {
		best := 0
		for i := 1; i < len(nodes); i++ {
			// Ties resolve to the smaller covenant id, which is the
			// earlier index in the sorted node slice.
			if nodes[i].Centrality > nodes[best].Centrality {
				best = i
			}
		}
		stats.MostCentralCovenantID = nodes[best].CovenantID
	}

	components := connectedComponents(len(nodes), index, edges)
	stats.ComponentCount = len(components)
	stats.HighestRiskCluster, stats.HighestRiskClusterScore = b.highestRiskCluster(nodes, components)

	return stats
}

// connectedComponents runs BFS over the undirected view of the graph.
// Components are returned in order of their smallest node index, each
// sorted internally, so the output is deterministic.
func connectedComponents(n int, index map[string]int, edges []models.PropagationEdge) [][]int {
	neighbors := make([][]int, n)
	for _, edge := range edges {
		si, okS := index[edge.SourceCovenantID]
		ti, okT := index[edge.TargetCovenantID]
		if !okS || !okT || si == ti {
			continue
		}
		neighbors[si] = append(neighbors[si], ti)
		neighbors[ti] = append(neighbors[ti], si)
	}

	visited := make([]bool, n)
	var components [][]int
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		var component []int
		queue := []int{start}
		visited[start] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			component = append(component, node)
			for _, next := range neighbors[node] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		sort.Ints(component)
		components = append(components, component)
	}
	return components
}

// highestRiskCluster picks the connected component with the highest
// mean risk score, or the top-k nodes by risk when the graph is a
// single component.
func (b *NetworkBuilder) highestRiskCluster(nodes []models.NetworkNode, components [][]int) ([]string, float64) {
	if len(nodes) == 0 {
		return nil, 0
	}

	if len(components) == 1 {
		k := b.cfg.ClusterTopK
		if k <= 0 || k > len(nodes) {
			k = len(nodes)
		}
		ranked := make([]int, len(nodes))
		for i := range ranked {
			ranked[i] = i
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			if nodes[ranked[i]].RiskScore != nodes[ranked[j]].RiskScore {
				return nodes[ranked[i]].RiskScore > nodes[ranked[j]].RiskScore
			}
			return nodes[ranked[i]].CovenantID < nodes[ranked[j]].CovenantID
		})

		cluster := make([]string, 0, k)
		var sum float64
		for _, idx := range ranked[:k] {
			cluster = append(cluster, nodes[idx].CovenantID)
			sum += nodes[idx].RiskScore
		}
		return cluster, sum / float64(k)
	}

	bestScore := math.Inf(-1)
	var bestComponent []int
	for _, component := range components {
		var sum float64
		for _, idx := range component {
			sum += nodes[idx].RiskScore
		}
		mean := sum / float64(len(component))
		// Ties resolve to the component containing the smaller first
		// node index; components are already ordered that way.
		if mean > bestScore {
			bestScore = mean
			bestComponent = component
		}
	}

	cluster := make([]string, 0, len(bestComponent))
	for _, idx := range bestComponent {
		cluster = append(cluster, nodes[idx].CovenantID)
	}
	return cluster, bestScore
}
