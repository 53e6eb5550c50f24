// sub-agent lane packing: greedy interval partitioning.
//
// each agent's span is [first node ts, last node ts]. spans are sorted by
// start (discovery order breaks ties) and dropped into the first lane whose
// previous occupant has already finished, opening a new lane otherwise.
// sequential agents therefore share lane 1; only truly parallel agents fan
// out into more rows.

package main

import "sort"

// agentSpan is the time extent of one sub-agent's nodes.
type agentSpan struct {
	agentID string
	start   int64
	end     int64
	order   int // discovery order, tie-breaker for equal starts
	first   int // index of the agent's earliest node
}

// collectSpans computes one span per distinct agentID in nodes,
// in discovery order.
func collectSpans(nodes []node) []agentSpan {
	index := make(map[string]int)
	var spans []agentSpan
	for i, n := range nodes {
		if n.agentID == "" {
			continue
		}
		idx, ok := index[n.agentID]
		if !ok {
			index[n.agentID] = len(spans)
			spans = append(spans, agentSpan{
				agentID: n.agentID,
				start:   n.timestamp,
				end:     n.timestamp,
				order:   len(spans),
				first:   i,
			})
			continue
		}
		s := &spans[idx]
		if n.timestamp < s.start {
			s.start = n.timestamp
			s.first = i
		}
		if n.timestamp > s.end {
			s.end = n.timestamp
		}
	}
	return spans
}

// packLanes assigns each span a 1-based lane so that spans sharing a lane
// never overlap. a lane is reusable once its last end is <= the next start.
func packLanes(spans []agentSpan) map[string]int {
	sorted := make([]agentSpan, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].start != sorted[j].start {
			return sorted[i].start < sorted[j].start
		}
		return sorted[i].order < sorted[j].order
	})

	lanes := make(map[string]int, len(sorted))
	var laneEnds []int64 // laneEnds[k] = end of the last span in lane k+1
	for _, s := range sorted {
		lane := -1
		for k, end := range laneEnds {
			if end <= s.start {
				lane = k
				break
			}
		}
		if lane < 0 {
			laneEnds = append(laneEnds, s.end)
			lane = len(laneEnds) - 1
		} else {
			laneEnds[lane] = s.end
		}
		lanes[s.agentID] = lane + 1
	}
	return lanes
}

// assignLanes sets branchLevel on every agent-owned node and re-parents each
// agent's earliest node to the tool call that spawned it, when known.
// spawns maps agentID → spawning tool id. nodes is modified in place.
func assignLanes(nodes []node, spawns map[string]string) {
	spans := collectSpans(nodes)
	if len(spans) == 0 {
		return
	}
	lanes := packLanes(spans)

	for i := range nodes {
		if nodes[i].agentID != "" {
			nodes[i].branchLevel = lanes[nodes[i].agentID]
		}
	}
	for _, s := range spans {
		if toolID, ok := spawns[s.agentID]; ok && toolID != "" {
			nodes[s.first].parentID = toolID
		}
	}
}
