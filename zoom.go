// zoom levels and the graph → row projection.
//
// rows 0-2 belong to the main line at every level that shows them
// (0 = user, 1 = assistant, 2 = everything else). sub-agent lane b owns
// the pair 3+(b-1)*2 (assistant) and 3+(b-1)*2+1 (everything else), so
// no two concurrent agents ever share a row and zooming never moves a row.

package main

type zoomLevel int

const (
	zoomSessions zoomLevel = iota
	zoomConversations
	zoomDetails
	zoomFocus
)

func (z zoomLevel) zoomIn() zoomLevel {
	if z >= zoomFocus {
		return zoomFocus
	}
	return z + 1
}

func (z zoomLevel) zoomOut() zoomLevel {
	if z <= zoomSessions {
		return zoomSessions
	}
	return z - 1
}

func (z zoomLevel) String() string {
	switch z {
	case zoomSessions:
		return "SESSIONS"
	case zoomConversations:
		return "CONVERSATIONS"
	case zoomDetails:
		return "DETAILS"
	case zoomFocus:
		return "FOCUS"
	}
	return "?"
}

const (
	rowUser      = 0
	rowAssistant = 1
	rowMainOther = 2
	rowAgentBase = 3
	rowHidden    = -1
)

// visibleIndices returns the indices into g.nodes shown at level.
func visibleIndices(g graph, level zoomLevel) []int {
	n := len(g.nodes)
	switch level {
	case zoomSessions:
		switch n {
		case 0:
			return nil
		case 1:
			return []int{0}
		}
		return []int{0, n - 1}
	case zoomConversations:
		var out []int
		for i, nd := range g.nodes {
			if visibleInConversations(nd) {
				out = append(out, i)
			}
		}
		return out
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func visibleInConversations(n node) bool {
	if n.isMainLine() {
		return n.kind == kindUser || n.kind == kindAssistant
	}
	return n.kind == kindAssistant
}

// visualBranch maps a node to its display row at level. rowHidden means the
// node has no row at this level.
func visualBranch(n node, level zoomLevel) int {
	switch level {
	case zoomSessions:
		return 0
	case zoomConversations:
		if n.isMainLine() {
			return mainLineRow(n)
		}
		if n.kind == kindAssistant {
			return agentRow(n.branchLevel)
		}
		return rowHidden
	}
	if n.isMainLine() {
		return mainLineRow(n)
	}
	if n.kind == kindAssistant {
		return agentRow(n.branchLevel)
	}
	return agentRow(n.branchLevel) + 1
}

func mainLineRow(n node) int {
	switch n.kind {
	case kindUser:
		return rowUser
	case kindAssistant:
		return rowAssistant
	}
	return rowMainOther
}

// agentRow is the assistant row of lane b. an agent node that was never
// packed (b == 0) is drawn on lane 1.
func agentRow(b int) int {
	if b < 1 {
		b = 1
	}
	return rowAgentBase + (b-1)*2
}

// findStickyNode scans visible[:beforeColumn] backwards for the last node on
// row. returns the node index and true, or -1 and false.
func findStickyNode(nodes []node, visible []int, row, beforeColumn int, level zoomLevel) (int, bool) {
	end := min(beforeColumn, len(visible))
	for c := end - 1; c >= 0; c-- {
		idx := visible[c]
		if idx < 0 || idx >= len(nodes) {
			continue
		}
		if visualBranch(nodes[idx], level) == row {
			return idx, true
		}
	}
	return -1, false
}

// -- cursor helpers --

// rowNodes returns the indices of visible nodes on row, in graph order.
func rowNodes(g graph, level zoomLevel, row int) []int {
	var out []int
	for _, idx := range visibleIndices(g, level) {
		if visualBranch(g.nodes[idx], level) == row {
			out = append(out, idx)
		}
	}
	return out
}

// maxRow is the highest row any visible node occupies (at least rowAssistant
// so the user/assistant pair is always navigable).
func maxRow(g graph, level zoomLevel) int {
	top := rowAssistant
	if level == zoomSessions {
		top = 0
	}
	for _, idx := range visibleIndices(g, level) {
		top = max(top, visualBranch(g.nodes[idx], level))
	}
	return top
}

// indexOfNode returns the index of the node with id, or -1.
func indexOfNode(g graph, id string) int {
	for i := range g.nodes {
		if g.nodes[i].id == id {
			return i
		}
	}
	return -1
}

// nearestInRow returns the position within rowNodes(g, level, row) whose
// timestamp is closest to ts. earlier nodes win ties. 0 on an empty row.
func nearestInRow(g graph, level zoomLevel, row int, ts int64) int {
	best, bestDiff := 0, int64(-1)
	for pos, idx := range rowNodes(g, level, row) {
		diff := g.nodes[idx].timestamp - ts
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = pos, diff
		}
	}
	return best
}
