// tool-call merging: collapses tool_use + tool_result pairs.
//
// only the single-log dialect produces split pairs. matching is strictly
// by id: a result's parentID must equal a tool_use id. unmatched tool_use
// nodes become pending tool calls, unmatched results survive as orphans.

package main

// mergeToolCalls returns a new node sequence where every tool_use has been
// replaced by a tool_call and every consumed tool_result is dropped.
// order of the surviving nodes is preserved.
func mergeToolCalls(nodes []node) []node {
	uses := make(map[string]int) // tool_use id → index in nodes
	for i, n := range nodes {
		if n.kind == kindToolUse {
			if _, dup := uses[n.id]; !dup {
				uses[n.id] = i
			}
		}
	}

	results := make(map[int]int) // tool_use index → tool_result index
	consumed := make(map[int]bool)
	for i, n := range nodes {
		if n.kind != kindToolResult || n.parentID == "" {
			continue
		}
		useIdx, ok := uses[n.parentID]
		if !ok {
			continue
		}
		// first result wins; later duplicates stay as orphans
		if _, taken := results[useIdx]; taken {
			continue
		}
		results[useIdx] = i
		consumed[i] = true
	}

	out := make([]node, 0, len(nodes)-len(consumed))
	for i, n := range nodes {
		if consumed[i] {
			continue
		}
		if n.kind != kindToolUse {
			out = append(out, n)
			continue
		}

		call := n
		call.kind = kindToolCall
		info := toolInfo{}
		if n.tool != nil {
			info.name = n.tool.name
			info.input = n.tool.input
		}
		if resIdx, ok := results[i]; ok {
			res := nodes[resIdx]
			output := ""
			if res.tool != nil {
				if res.tool.output != nil {
					output = *res.tool.output
				}
				info.isError = res.tool.isError
			}
			info.output = &output
			info.doneAt = res.timestamp
		}
		call.tool = &info
		out = append(out, call)
	}
	return out
}
