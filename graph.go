// graph assembly and session stats.
//
// assembleGraph is the last pipeline stage for both dialects: stable sort,
// edge derivation, stats fold. the result is a disposable snapshot.

package main

import "sort"

// assembleGraph orders nodes by timestamp (stable, so ties keep discovery
// order), derives parent edges and attaches the folded stats.
// the input slice is not modified.
func assembleGraph(nodes []node, samples []usageSample) graph {
	sorted := make([]node, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].timestamp < sorted[j].timestamp
	})

	edges := make([]edge, 0, len(sorted))
	for _, n := range sorted {
		if n.parentID == "" {
			continue
		}
		edges = append(edges, edge{
			from:     n.parentID,
			to:       n.id,
			isBranch: n.branchLevel > 0,
		})
	}

	return graph{
		nodes: sorted,
		edges: edges,
		stats: aggregateStats(samples),
	}
}

// aggregateStats folds token and cost accounting into one summary.
// token sums are order independent. model is last-write-wins over samples
// with a non-empty model.
func aggregateStats(samples []usageSample) sessionStats {
	var (
		stats     sessionStats
		reasoning int64
		cost      float64
	)
	for _, s := range samples {
		stats.inputTokens += s.input
		stats.outputTokens += s.output
		stats.cacheReadTokens += s.cacheRead
		stats.cacheCreationTokens += s.cacheCreation
		reasoning += s.reasoning
		cost += s.cost
		if s.model != "" {
			stats.model = s.model
		}
	}
	if reasoning != 0 {
		stats.reasoningTokens = &reasoning
	}
	if cost != 0 {
		stats.totalCost = &cost
	}
	return stats
}

// nodeByID returns a pointer into g.nodes for the given id, or nil.
func (g graph) nodeByID(id string) *node {
	for i := range g.nodes {
		if g.nodes[i].id == id {
			return &g.nodes[i]
		}
	}
	return nil
}
