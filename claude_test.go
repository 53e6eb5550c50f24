package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func parseLines(t *testing.T, lines ...string) []claudeEntry {
	t.Helper()
	return parseClaudeLog(strings.NewReader(strings.Join(lines, "\n")), "test.jsonl")
}

func TestToolUseMergesWithResult(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"a1","type":"assistant","timestamp":"2025-01-01T00:00:00Z","message":{"role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"tool_use","id":"t1","name":"read","input":{"path":"main.go"}}],"usage":{"input_tokens":10,"output_tokens":5}}}`,
		`{"uuid":"u1","parentUuid":"a1","type":"user","timestamp":"2025-01-01T00:00:01Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}`,
	)
	g := buildClaudeGraph(entries)

	if len(g.nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(g.nodes))
	}
	n := g.nodes[0]
	if n.kind != kindToolCall || n.id != "t1" {
		t.Fatalf("expected tool_call t1, got %s %s", n.kind, n.id)
	}
	if n.tool.name != "read" {
		t.Errorf("expected tool name read, got %q", n.tool.name)
	}
	if n.tool.output == nil || *n.tool.output != "ok" {
		t.Errorf("expected output ok, got %v", n.tool.output)
	}
	if n.tool.isError {
		t.Error("expected isError false")
	}
	if n.tool.doneAt != n.timestamp+1000 {
		t.Errorf("expected doneAt one second after start, got %d vs %d", n.tool.doneAt, n.timestamp)
	}
	if g.stats.inputTokens != 10 || g.stats.outputTokens != 5 {
		t.Errorf("unexpected stats: %+v", g.stats)
	}
	if g.stats.model != "claude-sonnet-4-5" {
		t.Errorf("unexpected model %q", g.stats.model)
	}
}

func TestOrphanToolResultSurvives(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"u1","type":"user","timestamp":"2025-01-01T00:00:00Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"missing","content":"late","is_error":true}]}}`,
	)
	g := buildClaudeGraph(entries)

	if len(g.nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(g.nodes))
	}
	n := g.nodes[0]
	if n.kind != kindToolResult {
		t.Fatalf("expected tool_result, got %s", n.kind)
	}
	if n.id != "u1:0" || n.parentID != "missing" {
		t.Errorf("unexpected id/parent: %s %s", n.id, n.parentID)
	}
	if !n.tool.isError {
		t.Error("expected error flag to be kept")
	}
	if len(g.edges) != 1 || g.edges[0].from != "missing" {
		t.Errorf("expected one edge from missing, got %+v", g.edges)
	}
}

func TestAssistantTextAndToolUses(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"u0","type":"user","timestamp":"2025-01-01T00:00:00Z","message":{"role":"user","content":"  fix the build  "}}`,
		`{"uuid":"a1","parentUuid":"u0","type":"assistant","timestamp":"2025-01-01T00:00:02Z","costUSD":0.25,"message":{"role":"assistant","model":"claude-opus-4-6","content":[{"type":"text","text":"Looking"},{"type":"text","text":"now."},{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"go build"}},{"type":"tool_use","id":"t2","name":"Read","input":{}}],"usage":{"input_tokens":100,"output_tokens":20,"cache_read_input_tokens":7}}}`,
	)
	nodes := normalizeClaude(entries)

	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(nodes))
	}
	if nodes[0].kind != kindUser || nodes[0].text != "fix the build" {
		t.Errorf("unexpected user node: %+v", nodes[0])
	}
	asst := nodes[1]
	if asst.kind != kindAssistant || asst.text != "Looking now." {
		t.Errorf("unexpected assistant node: %q", asst.text)
	}
	if asst.parentID != "u0" {
		t.Errorf("expected parent u0, got %q", asst.parentID)
	}
	if asst.usage == nil || asst.usage.input != 100 || asst.usage.cacheRead != 7 {
		t.Errorf("expected accounting on the text node, got %+v", asst.usage)
	}
	if asst.cost == nil || *asst.cost != 0.25 {
		t.Errorf("expected cost on the text node")
	}
	for _, n := range nodes[2:] {
		if n.kind != kindToolUse {
			t.Errorf("expected tool_use, got %s", n.kind)
		}
		if n.parentID != "a1" {
			t.Errorf("tool_use %s should hang off the text node, got %q", n.id, n.parentID)
		}
		if n.usage != nil || n.cost != nil {
			t.Errorf("tool_use %s should not carry accounting", n.id)
		}
	}
	if !strings.Contains(nodes[2].tool.input, `"command": "go build"`) {
		t.Errorf("expected indented input, got %q", nodes[2].tool.input)
	}
}

func TestToolUseWithoutTextCarriesAccounting(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"a1","parentUuid":"u0","type":"assistant","timestamp":"2025-01-01T00:00:00Z","message":{"role":"assistant","model":"m","content":[{"type":"tool_use","id":"t1","name":"Read","input":{}},{"type":"tool_use","id":"t2","name":"Read","input":{}}],"usage":{"input_tokens":3}}}`,
	)
	nodes := normalizeClaude(entries)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].parentID != "u0" {
		t.Errorf("expected declared parent, got %q", nodes[0].parentID)
	}
	if nodes[0].usage == nil || nodes[1].usage != nil {
		t.Error("expected accounting on the first emitted node only")
	}
}

func TestSyntheticModelIgnored(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"a1","type":"assistant","timestamp":"2025-01-01T00:00:00Z","message":{"role":"assistant","model":"claude-opus-4-6","content":"hi"}}`,
		`{"uuid":"a2","type":"assistant","timestamp":"2025-01-01T00:00:01Z","message":{"role":"assistant","model":"<synthetic>","content":"No response requested."}}`,
	)
	g := buildClaudeGraph(entries)
	if g.stats.model != "claude-opus-4-6" {
		t.Errorf("expected synthetic model to be skipped, got %q", g.stats.model)
	}
	if g.nodes[1].model != "" {
		t.Errorf("expected no model on synthetic node, got %q", g.nodes[1].model)
	}
}

func TestAgentUserTurnsDropped(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"s1","agentId":"ag1","isSidechain":true,"type":"user","timestamp":"2025-01-01T00:00:00Z","message":{"role":"user","content":"go find the bug"}}`,
		`{"uuid":"s2","parentUuid":"s1","agentId":"ag1","isSidechain":true,"type":"assistant","timestamp":"2025-01-01T00:00:01Z","message":{"role":"assistant","content":[{"type":"text","text":"found it"}]}}`,
	)
	nodes := normalizeClaude(entries)
	if len(nodes) != 1 {
		t.Fatalf("expected only the agent's assistant node, got %d", len(nodes))
	}
	if nodes[0].agentID != "ag1" || nodes[0].isMainLine() {
		t.Errorf("expected agent-owned node, got agentID %q", nodes[0].agentID)
	}
}

func TestDuplicateIDsKeepFirst(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"u1","type":"user","timestamp":"2025-01-01T00:00:00Z","message":{"role":"user","content":"first"}}`,
		`{"uuid":"u1","type":"user","timestamp":"2025-01-01T00:00:05Z","message":{"role":"user","content":"second"}}`,
	)
	nodes := normalizeClaude(entries)
	if len(nodes) != 1 || nodes[0].text != "first" {
		t.Fatalf("expected first occurrence only, got %+v", nodes)
	}
}

func TestParseSkipsMalformedLines(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"u1","type":"user","timestamp":"2025-01-01T00:00:00Z","message":{"role":"user","content":"a"}}`,
		`{not json`,
		``,
		`{"uuid":"u2","type":"user","message":{"role":"user","content":"b"}}`,
	)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].ts != entries[0].ts {
		t.Errorf("expected missing timestamp to inherit %d, got %d", entries[0].ts, entries[1].ts)
	}
	if entries[0].ts != 1735689600000 {
		t.Errorf("unexpected epoch ms: %d", entries[0].ts)
	}
}

func TestOversizedLineIsSkipped(t *testing.T) {
	huge := `{"uuid":"big","type":"user","message":{"role":"user","content":"` +
		strings.Repeat("x", maxScanLine+10) + `"}}`
	entries := parseLines(t,
		`{"uuid":"a","type":"user","message":{"role":"user","content":"a"}}`,
		huge,
		`{"uuid":"c","type":"user","message":{"role":"user","content":"c"}}`,
	)
	if len(entries) != 2 || entries[0].UUID != "a" || entries[1].UUID != "c" {
		t.Fatalf("expected a and c around the oversized line, got %d entries", len(entries))
	}
}

func TestRecordLimit(t *testing.T) {
	log := strings.Join([]string{
		`{"type":"user","message":{"role":"user","content":"one"}}`,
		`{"type":"user","message":{"role":"user","content":"` + strings.Repeat("y", 300) + `"}}`,
		`{"type":"user","message":{"role":"user","content":"three"}}`,
		`{"type":"user","message":{"role":"user","content":"four"}}`,
	}, "\n") + "\n"

	entries := parseClaudeLines(strings.NewReader(log), "s.jsonl", 100)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[1].UUID != synthesizeID("s.jsonl", 3) {
		t.Error("line numbers must still count the dropped line")
	}
	if extractText(entries[2].Message.Content) != "four" {
		t.Errorf("unexpected last entry %s", entries[2].Message.Content)
	}
}

func TestSynthesizedIDsAreStable(t *testing.T) {
	line := `{"type":"user","timestamp":"2025-01-01T00:00:00Z","message":{"role":"user","content":"no uuid here"}}`
	first := parseClaudeLog(strings.NewReader(line), "s.jsonl")
	second := parseClaudeLog(strings.NewReader(line), "s.jsonl")
	other := parseClaudeLog(strings.NewReader(line), "other.jsonl")

	id := first[0].UUID
	if !strings.HasPrefix(id, "generated-") || len(id) != len("generated-")+12 {
		t.Fatalf("unexpected synthesized id %q", id)
	}
	if second[0].UUID != id {
		t.Errorf("expected stable id, got %q and %q", id, second[0].UUID)
	}
	if other[0].UUID == id {
		t.Error("expected ids from different files to differ")
	}
}

func TestClaudeSpawns(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"p1","type":"progress","parentToolUseID":"t9","data":{"type":"agent_progress","agentId":"ag1"}}`,
		`{"uuid":"p2","type":"progress","parentToolUseID":"t99","data":{"agentId":"ag1"}}`,
		`{"uuid":"u1","type":"user","toolUseResult":{"agentId":"ag2","status":"completed"},"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t10","content":"done"}]}}`,
	)
	spawns := claudeSpawns(entries)
	if spawns["ag1"] != "t9" {
		t.Errorf("expected first progress mapping to win, got %q", spawns["ag1"])
	}
	if spawns["ag2"] != "t10" {
		t.Errorf("expected toolUseResult mapping, got %q", spawns["ag2"])
	}
	if len(spawns) != 2 {
		t.Errorf("expected 2 spawns, got %d", len(spawns))
	}
}

func TestSubAgentHangsOffSpawningTool(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"a1","type":"assistant","timestamp":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"task1","name":"Task","input":{"prompt":"look"}}]}}`,
		`{"uuid":"p1","type":"progress","parentToolUseID":"task1","data":{"agentId":"ag1"}}`,
		`{"uuid":"s1","agentId":"ag1","type":"assistant","timestamp":"2025-01-01T00:00:01Z","message":{"role":"assistant","content":"reading"}}`,
		`{"uuid":"s2","parentUuid":"s1","agentId":"ag1","type":"assistant","timestamp":"2025-01-01T00:00:02Z","message":{"role":"assistant","content":"done"}}`,
		`{"uuid":"u2","parentUuid":"a1","type":"user","timestamp":"2025-01-01T00:00:03Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"task1","content":"report"}]}}`,
	)
	g := buildClaudeGraph(entries)

	s1 := g.nodeByID("s1")
	if s1 == nil {
		t.Fatal("missing s1")
	}
	if s1.parentID != "task1" {
		t.Errorf("expected first agent node re-parented to task1, got %q", s1.parentID)
	}
	if s1.branchLevel != 1 {
		t.Errorf("expected lane 1, got %d", s1.branchLevel)
	}
	if s2 := g.nodeByID("s2"); s2 == nil || s2.parentID != "s1" {
		t.Error("expected later agent nodes to keep their parent")
	}
	var branch int
	for _, e := range g.edges {
		if e.isBranch {
			branch++
		}
	}
	if branch != 2 {
		t.Errorf("expected 2 branch edges, got %d", branch)
	}
}

func TestClaudeTitle(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"u1","type":"user","message":{"role":"user","content":"\n  refactor the parser\nplease"}}`,
	)
	if got := claudeTitle(entries); got != "refactor the parser" {
		t.Errorf("unexpected title %q", got)
	}
	entries = append(entries, parseLines(t, `{"type":"summary","summary":"Parser refactor"}`)...)
	if got := claudeTitle(entries); got != "Parser refactor" {
		t.Errorf("expected summary to win, got %q", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadCompressedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1.jsonl.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	enc.Write([]byte(`{"uuid":"u1","type":"user","message":{"role":"user","content":"zipped"}}` + "\n"))
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	entries, err := readClaudeFile(path)
	if err != nil {
		t.Fatalf("readClaudeFile: %v", err)
	}
	if len(entries) != 1 || extractText(entries[0].Message.Content) != "zipped" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestClaudeSourceListAndRead(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "projects", projectSlug("/work/app"))
	writeFile(t, filepath.Join(project, "s1.jsonl"), strings.Join([]string{
		`{"uuid":"u1","cwd":"/work/app","type":"user","timestamp":"2025-01-01T00:00:00Z","message":{"role":"user","content":"hello"}}`,
		`{"uuid":"a1","parentUuid":"u1","type":"assistant","timestamp":"2025-01-01T00:00:01Z","message":{"role":"assistant","content":"hi"}}`,
	}, "\n"))
	writeFile(t, filepath.Join(project, "s1", "subagents", "agent-x.jsonl"),
		`{"uuid":"x1","agentId":"x","type":"assistant","timestamp":"2025-01-01T00:00:02Z","message":{"role":"assistant","content":"sub"}}`)
	writeFile(t, filepath.Join(project, "agent-legacy.jsonl"), `{"uuid":"l1"}`)
	writeFile(t, filepath.Join(project, "notes.txt"), "ignored")

	src := newClaudeSource(dir, "/work/app")
	sessions, err := src.listSessions()
	if err != nil {
		t.Fatalf("listSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.id != "s1" || s.title != "hello" || s.directory != "/work/app" || s.eventCount != 2 {
		t.Errorf("unexpected session info: %+v", s)
	}

	g, err := src.readGraph("s1")
	if err != nil {
		t.Fatalf("readGraph: %v", err)
	}
	if len(g.nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.nodes))
	}
	if x := g.nodeByID("x1"); x == nil || x.branchLevel != 1 {
		t.Errorf("expected sub-agent node in lane 1, got %+v", x)
	}

	if _, err := src.readGraph("nope"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestClaudeSourceMissingProject(t *testing.T) {
	src := newClaudeSource(t.TempDir(), "/nowhere")
	sessions, err := src.listSessions()
	if err != nil || len(sessions) != 0 {
		t.Fatalf("expected empty listing, got %v, %v", sessions, err)
	}
}

func TestUsageCountedOncePerMessage(t *testing.T) {
	entries := parseLines(t,
		`{"uuid":"a1","type":"assistant","message":{"id":"msg_1","role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"looking"}],"usage":{"input_tokens":100,"output_tokens":5,"cache_read_input_tokens":40}}}`,
		`{"uuid":"a2","parentUuid":"a1","type":"assistant","message":{"id":"msg_1","role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"tool_use","id":"t1","name":"Read","input":{}}],"usage":{"input_tokens":100,"output_tokens":30,"cache_read_input_tokens":40}}}`,
		`{"uuid":"a3","type":"assistant","message":{"id":"msg_2","role":"assistant","content":"done","usage":{"input_tokens":7,"output_tokens":2}}}`,
		`{"uuid":"a4","type":"assistant","message":{"role":"assistant","content":"no id","usage":{"input_tokens":1}}}`,
	)
	samples := claudeSamples(entries)
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	stats := aggregateStats(samples)
	if stats.inputTokens != 108 || stats.outputTokens != 32 || stats.cacheReadTokens != 40 {
		t.Errorf("unexpected totals %+v", stats)
	}
}
