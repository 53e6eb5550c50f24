// data types shared across the codebase.
//
// claudeEntry and ocMessage/ocPart are the raw records of the two source
// dialects. both normalize into node, and the assembler turns a node set
// into an immutable graph snapshot.

package main

// sourceKind tags which dialect produced a node or session.
type sourceKind string

const (
	sourceClaude   sourceKind = "claude"
	sourceOpencode sourceKind = "opencode"
)

// nodeKind is the tag of the node variant.
type nodeKind string

const (
	kindUser       nodeKind = "user"
	kindAssistant  nodeKind = "assistant"
	kindReasoning  nodeKind = "reasoning"
	kindToolUse    nodeKind = "tool_use"
	kindToolResult nodeKind = "tool_result"
	kindToolCall   nodeKind = "tool_call"
	kindPatch      nodeKind = "patch"
	kindProgress   nodeKind = "progress"
)

// node is a single normalized event in the execution graph.
type node struct {
	id          string
	parentID    string // weak reference, "" when none
	kind        nodeKind
	text        string     // user, assistant, reasoning, progress
	tool        *toolInfo  // tool_use, tool_result, tool_call
	patch       *patchInfo // patch
	timestamp   int64      // epoch ms
	branchLevel int        // 0 = main line
	agentID     string     // "" = main line
	usage       *usage
	cost        *float64
	model       string
	source      sourceKind
	turnID      string
}

// toolInfo is the payload of tool_use, tool_result and tool_call nodes.
// output is nil while the call is still pending.
type toolInfo struct {
	name    string
	title   string // short human label, when the source provides one
	input   string
	output  *string
	isError bool
	doneAt  int64 // result timestamp, 0 when unknown
}

type patchInfo struct {
	hash  string
	files []string
}

// usage is per-record token accounting.
type usage struct {
	input         int64
	output        int64
	reasoning     int64
	cacheRead     int64
	cacheCreation int64
}

// usageSample is one assistant-authored record as seen by the stats fold.
type usageSample struct {
	usage
	cost  float64
	model string
}

// edge links a node to the node it causally follows.
type edge struct {
	from     string
	to       string
	isBranch bool
}

// sessionStats aggregates accounting across a session.
// reasoningTokens and totalCost are nil when their sum is zero.
type sessionStats struct {
	inputTokens         int64
	outputTokens        int64
	cacheReadTokens     int64
	cacheCreationTokens int64
	reasoningTokens     *int64
	totalCost           *float64
	model               string
}

// graph is a fully-derived snapshot. consumers never mutate it.
type graph struct {
	nodes []node
	edges []edge
	stats sessionStats
}

// sessionInfo is one entry of a source's session listing.
type sessionInfo struct {
	id           string
	source       sourceKind
	title        string
	directory    string
	lastActivity int64 // epoch ms
	eventCount   int   // approximate
}

// isMainLine reports whether the node belongs to the main line of execution.
func (n node) isMainLine() bool {
	return n.agentID == ""
}

// pending reports whether a tool call has no result yet.
func (n node) pending() bool {
	return n.kind == kindToolCall && n.tool != nil && n.tool.output == nil
}
