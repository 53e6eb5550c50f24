// single-log dialect: Claude Code session JSONL → nodes.
//
// every line is one chronological entry. user entries carry either text or
// tool_result blocks, assistant entries carry text and tool_use blocks.
// progress entries never become nodes, but they (and toolUseResult on Task
// results) tell us which tool call spawned which sub-agent.

package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"lukechampine.com/blake3"
)

// claudeEntry is one line of a session log.
type claudeEntry struct {
	UUID            string          `json:"uuid"`
	ParentUUID      *string         `json:"parentUuid"`
	IsSidechain     bool            `json:"isSidechain"`
	AgentID         string          `json:"agentId"`
	SessionID       string          `json:"sessionId"`
	Type            string          `json:"type"`
	Message         *claudeMessage  `json:"message"`
	Timestamp       string          `json:"timestamp"`
	Summary         string          `json:"summary"`
	CostUSD         float64         `json:"costUSD"`
	CWD             string          `json:"cwd"`
	ParentToolUseID string          `json:"parentToolUseID"`
	ToolUseResult   json.RawMessage `json:"toolUseResult"`
	Data            json.RawMessage `json:"data"`

	ts int64 // parsed timestamp, filled by the reader
}

type claudeMessage struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *claudeUsage    `json:"usage"`
}

type claudeUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
}

// claudeBlock is one element of a content array.
type claudeBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// synthetic model id Claude Code writes for locally generated messages.
const syntheticModel = "<synthetic>"

// -- reading --

// parseClaudeLog decodes a JSONL stream. malformed lines are skipped, and so
// are lines longer than maxScanLine.
// entries without a uuid get an id derived from (origin, line number) so the
// same file always yields the same ids. a missing or unparsable timestamp
// inherits the previous entry's.
func parseClaudeLog(r io.Reader, origin string) []claudeEntry {
	return parseClaudeLines(r, origin, maxScanLine)
}

func parseClaudeLines(r io.Reader, origin string, limit int) []claudeEntry {
	br := bufio.NewReaderSize(r, 64*1024)

	var (
		entries []claudeEntry
		lastTS  int64
		lineNo  int
	)
	for {
		raw, ok, err := readRecord(br, limit)
		lineNo++
		if line := bytes.TrimSpace(raw); ok && len(line) > 0 {
			var e claudeEntry
			if json.Unmarshal(line, &e) == nil {
				if e.UUID == "" {
					e.UUID = synthesizeID(origin, lineNo)
				}
				if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
					lastTS = t.UnixMilli()
				}
				e.ts = lastTS
				entries = append(entries, e)
			}
		}
		if err != nil {
			// io.EOF, or a truncated read: keep what was read
			return entries
		}
	}
}

// readRecord returns the next line without its newline. ok is false when the
// line ran past limit; the rest of that line is consumed and dropped.
func readRecord(br *bufio.Reader, limit int) ([]byte, bool, error) {
	var (
		line     []byte
		oversize bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !oversize {
			if len(line)+len(chunk) > limit+1 {
				oversize, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if oversize {
			return nil, false, err
		}
		return bytes.TrimSuffix(line, []byte("\n")), true, err
	}
}

// synthesizeID derives a stable id for a record that has none.
func synthesizeID(origin string, lineNo int) string {
	sum := blake3.Sum256([]byte(fmt.Sprintf("%s:%d", origin, lineNo)))
	return "generated-" + hex.EncodeToString(sum[:6])
}

// -- content helpers --

// contentBlocks returns the content array, or nil when content is a string.
func contentBlocks(raw json.RawMessage) []claudeBlock {
	var blocks []claudeBlock
	if json.Unmarshal(raw, &blocks) != nil {
		return nil
	}
	return blocks
}

// extractText returns string content as-is, or the text blocks joined by a
// space. the result is trimmed.
func extractText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var parts []string
	for _, b := range contentBlocks(raw) {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// prettyJSON indents a raw JSON value, falling back to the raw text.
func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if json.Indent(&buf, raw, "", "  ") != nil {
		return string(raw)
	}
	return buf.String()
}

// -- normalization --

// normalizeClaude converts entries into nodes. ids are unique in the result:
// a repeated id keeps its first occurrence.
func normalizeClaude(entries []claudeEntry) []node {
	var (
		nodes []node
		seen  = make(map[string]bool)
	)
	emit := func(n node) bool {
		if seen[n.id] {
			return false
		}
		seen[n.id] = true
		n.source = sourceClaude
		nodes = append(nodes, n)
		return true
	}

	for _, e := range entries {
		if e.Message == nil || e.Type == "progress" {
			continue
		}
		parent := ""
		if e.ParentUUID != nil {
			parent = *e.ParentUUID
		}

		switch e.Message.Role {
		case "user":
			var results []claudeBlock
			for _, b := range contentBlocks(e.Message.Content) {
				if b.Type == "tool_result" && b.ToolUseID != "" {
					results = append(results, b)
				}
			}
			if len(results) > 0 {
				for idx, b := range results {
					output := toolResultText(b.Content)
					emit(node{
						id:        fmt.Sprintf("%s:%d", e.UUID, idx),
						parentID:  b.ToolUseID,
						kind:      kindToolResult,
						tool:      &toolInfo{output: &output, isError: b.IsError},
						timestamp: e.ts,
						agentID:   e.AgentID,
					})
				}
				continue
			}
			if e.AgentID != "" && dropAgentUserTurns {
				continue
			}
			if text := extractText(e.Message.Content); text != "" {
				emit(node{
					id:        e.UUID,
					parentID:  parent,
					kind:      kindUser,
					text:      text,
					timestamp: e.ts,
					agentID:   e.AgentID,
				})
			}

		case "assistant":
			accounted := false
			account := func(n *node) {
				if accounted {
					return
				}
				accounted = true
				if u := e.Message.Usage; u != nil {
					n.usage = &usage{
						input:         u.InputTokens,
						output:        u.OutputTokens,
						cacheRead:     u.CacheReadInputTokens,
						cacheCreation: u.CacheCreationInputTokens,
					}
				}
				if e.CostUSD != 0 {
					c := e.CostUSD
					n.cost = &c
				}
				if e.Message.Model != syntheticModel {
					n.model = e.Message.Model
				}
			}

			toolParent := parent
			if text := extractText(e.Message.Content); text != "" {
				n := node{
					id:        e.UUID,
					parentID:  parent,
					kind:      kindAssistant,
					text:      text,
					timestamp: e.ts,
					agentID:   e.AgentID,
				}
				account(&n)
				if emit(n) {
					toolParent = e.UUID
				}
			}
			for _, b := range contentBlocks(e.Message.Content) {
				if b.Type != "tool_use" || b.ID == "" {
					continue
				}
				n := node{
					id:        b.ID,
					parentID:  toolParent,
					kind:      kindToolUse,
					tool:      &toolInfo{name: b.Name, input: prettyJSON(b.Input)},
					timestamp: e.ts,
					agentID:   e.AgentID,
				}
				account(&n)
				emit(n)
			}
		}
	}
	return nodes
}

// toolResultText flattens tool_result content (string or text blocks).
func toolResultText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var parts []string
	for _, b := range contentBlocks(raw) {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// claudeSpawns maps sub-agent ids to the tool_use id that launched them.
// two signals exist: toolUseResult.agentId on the Task result entry, and
// progress entries carrying data.agentId plus parentToolUseID.
// the first mapping seen for an agent wins.
func claudeSpawns(entries []claudeEntry) map[string]string {
	spawns := make(map[string]string)
	record := func(agentID, toolID string) {
		if agentID == "" || toolID == "" {
			return
		}
		if _, ok := spawns[agentID]; !ok {
			spawns[agentID] = toolID
		}
	}

	for _, e := range entries {
		switch {
		case e.Type == "progress":
			var data struct {
				AgentID string `json:"agentId"`
			}
			if json.Unmarshal(e.Data, &data) == nil {
				record(data.AgentID, e.ParentToolUseID)
			}
		case e.Message != nil && e.Message.Role == "user" && len(e.ToolUseResult) > 0:
			var result struct {
				AgentID string `json:"agentId"`
			}
			if json.Unmarshal(e.ToolUseResult, &result) != nil || result.AgentID == "" {
				continue
			}
			for _, b := range contentBlocks(e.Message.Content) {
				if b.Type == "tool_result" && b.ToolUseID != "" {
					record(result.AgentID, b.ToolUseID)
					break
				}
			}
		}
	}
	return spawns
}

// claudeSamples collects accounting from assistant-authored entries.
// Claude Code writes one line per content block, each repeating the
// message's id and usage, so a message id counts once (its last line wins).
func claudeSamples(entries []claudeEntry) []usageSample {
	var samples []usageSample
	byMessage := make(map[string]int)
	for _, e := range entries {
		if e.Message == nil || e.Message.Role != "assistant" {
			continue
		}
		s := usageSample{cost: e.CostUSD}
		if e.Message.Model != syntheticModel {
			s.model = e.Message.Model
		}
		if u := e.Message.Usage; u != nil {
			s.input = u.InputTokens
			s.output = u.OutputTokens
			s.cacheRead = u.CacheReadInputTokens
			s.cacheCreation = u.CacheCreationInputTokens
		}
		if id := e.Message.ID; id != "" {
			if idx, ok := byMessage[id]; ok {
				samples[idx] = s
				continue
			}
			byMessage[id] = len(samples)
		}
		samples = append(samples, s)
	}
	return samples
}

// buildClaudeGraph runs the full pipeline over one session's entries.
func buildClaudeGraph(entries []claudeEntry) graph {
	nodes := mergeToolCalls(normalizeClaude(entries))
	assignLanes(nodes, claudeSpawns(entries))
	return assembleGraph(nodes, claudeSamples(entries))
}

// claudeTitle picks a display title: the first summary entry, else the first
// main-line user text.
func claudeTitle(entries []claudeEntry) string {
	for _, e := range entries {
		if e.Type == "summary" && e.Summary != "" {
			return e.Summary
		}
	}
	for _, e := range entries {
		if e.Message == nil || e.Message.Role != "user" || e.AgentID != "" {
			continue
		}
		if text := extractText(e.Message.Content); text != "" {
			return firstLine(text)
		}
	}
	return ""
}
