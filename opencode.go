// message/part-store dialect: opencode messages and parts → nodes.
//
// a turn is a top-level user message plus every assistant message whose
// parentID points at it. parts are emitted in id order (opencode ids sort by
// creation time), and the whole session forms one linear parent chain so
// presentation order survives out-of-band part writes. child sessions are
// sub-agents: each is its own chain, owned by the child session id.

package main

import (
	"encoding/json"
	"sort"
	"strings"
)

// ocMessage is a row of the message table.
type ocMessage struct {
	id          string
	sessionID   string
	timeCreated int64
	data        ocMessageData
}

type ocMessageData struct {
	Role     string  `json:"role"`
	ParentID string  `json:"parentID"`
	ModelID  string  `json:"modelID"`
	Cost     float64 `json:"cost"`
	Tokens   *struct {
		Input     int64 `json:"input"`
		Output    int64 `json:"output"`
		Reasoning int64 `json:"reasoning"`
		Cache     struct {
			Read  int64 `json:"read"`
			Write int64 `json:"write"`
		} `json:"cache"`
	} `json:"tokens"`
	Time struct {
		Created int64 `json:"created"`
	} `json:"time"`
}

// ocPart is a row of the part table.
type ocPart struct {
	id          string
	messageID   string
	sessionID   string
	timeCreated int64
	data        ocPartData
}

type ocPartData struct {
	Type      string       `json:"type"`
	Text      string       `json:"text"`
	Synthetic bool         `json:"synthetic"`
	Ignored   bool         `json:"ignored"`
	Tool      string       `json:"tool"`
	State     *ocToolState `json:"state"`
	Hash      string       `json:"hash"`
	Files     []string     `json:"files"`
}

type ocToolState struct {
	Status   string          `json:"status"` // pending, running, completed, error
	Input    json.RawMessage `json:"input"`
	Output   string          `json:"output"`
	Error    string          `json:"error"`
	Title    string          `json:"title"`
	Metadata struct {
		SessionID string `json:"sessionId"`
	} `json:"metadata"`
	Time struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"time"`
}

// ocSession is everything stored for one session row.
type ocSession struct {
	id       string
	parentID string
	title    string
	messages []ocMessage
	parts    []ocPart
}

// skipped part types: step boundaries, snapshots and compaction markers
// carry no graph information.
var ocMarkerParts = map[string]bool{
	"step-start":  true,
	"step-finish": true,
	"snapshot":    true,
	"compaction":  true,
}

type ocTurn struct {
	key     string // anchor id, or the first reply id for anchorless turns
	anchor  *ocMessage
	replies []ocMessage
}

// groupTurns anchors turns at parentless user messages. a reply whose parent
// is not an anchor becomes a standalone turn instead of being dropped.
func groupTurns(messages []ocMessage) []ocTurn {
	sorted := make([]ocMessage, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	var turns []ocTurn
	anchors := make(map[string]int)
	for i := range sorted {
		m := sorted[i]
		if m.data.Role == "user" && m.data.ParentID == "" {
			anchors[m.id] = len(turns)
			turns = append(turns, ocTurn{key: m.id, anchor: &sorted[i]})
		}
	}
	for _, m := range sorted {
		if m.data.Role == "user" && m.data.ParentID == "" {
			continue
		}
		if idx, ok := anchors[m.data.ParentID]; ok {
			turns[idx].replies = append(turns[idx].replies, m)
			continue
		}
		turns = append(turns, ocTurn{key: m.id, replies: []ocMessage{m}})
	}

	sort.SliceStable(turns, func(i, j int) bool { return turns[i].key < turns[j].key })
	return turns
}

// userText joins the non-synthetic text parts of a message.
func userText(parts []ocPart) string {
	var texts []string
	for _, p := range parts {
		if p.data.Type == "text" && !p.data.Synthetic && !p.data.Ignored {
			texts = append(texts, p.data.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// normalizeOpencode converts one session into a linear node chain.
// agentID is "" for the root session and the child session id otherwise.
// timestamps are clamped to be non-decreasing along the chain so the
// assembler's sort cannot reorder it. it also returns the spawn lookup
// (child session id → task tool part id) found in this session.
func normalizeOpencode(s ocSession, agentID string) ([]node, map[string]string) {
	partsByMsg := make(map[string][]ocPart)
	for _, p := range s.parts {
		partsByMsg[p.messageID] = append(partsByMsg[p.messageID], p)
	}
	for id := range partsByMsg {
		ps := partsByMsg[id]
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].id < ps[j].id })
	}

	var (
		nodes  []node
		spawns = make(map[string]string)
		seen   = make(map[string]bool)
		prevID string
		prevTS int64
	)
	emit := func(n node) bool {
		if seen[n.id] {
			return false
		}
		seen[n.id] = true
		n.parentID = prevID
		n.timestamp = max(n.timestamp, prevTS)
		n.agentID = agentID
		n.source = sourceOpencode
		nodes = append(nodes, n)
		prevID, prevTS = n.id, n.timestamp
		return true
	}

	emitUser := func(m ocMessage, turnID string) {
		if agentID != "" && dropAgentUserTurns {
			return
		}
		if text := userText(partsByMsg[m.id]); text != "" {
			emit(node{
				id:        m.id,
				kind:      kindUser,
				text:      text,
				timestamp: messageTime(m),
				turnID:    turnID,
			})
		}
	}

	for _, t := range groupTurns(s.messages) {
		turnID := ""
		if t.anchor != nil {
			turnID = t.anchor.id
			emitUser(*t.anchor, turnID)
		}
		for _, m := range t.replies {
			if m.data.Role == "user" {
				emitUser(m, turnID)
				continue
			}
			accounted := false
			for _, p := range partsByMsg[m.id] {
				n, ok := ocPartNode(p, m)
				if !ok {
					continue
				}
				n.turnID = turnID
				if !accounted {
					attachMessageAccounting(&n, m)
				}
				if emit(n) {
					accounted = true
				}
				if p.data.Tool == "task" && p.data.State != nil && p.data.State.Metadata.SessionID != "" {
					if _, dup := spawns[p.data.State.Metadata.SessionID]; !dup {
						spawns[p.data.State.Metadata.SessionID] = p.id
					}
				}
			}
		}
	}
	return nodes, spawns
}

// ocPartNode maps one part to a node; ok is false for parts that carry no
// graph information.
func ocPartNode(p ocPart, m ocMessage) (node, bool) {
	ts := p.timeCreated
	if ts == 0 {
		ts = messageTime(m)
	}
	n := node{id: p.id, timestamp: ts}
	if ocMarkerParts[p.data.Type] {
		return node{}, false
	}

	switch p.data.Type {
	case "text":
		if p.data.Ignored || strings.TrimSpace(p.data.Text) == "" {
			return node{}, false
		}
		n.kind = kindAssistant
		n.text = strings.TrimSpace(p.data.Text)
	case "reasoning":
		if strings.TrimSpace(p.data.Text) == "" {
			return node{}, false
		}
		n.kind = kindReasoning
		n.text = strings.TrimSpace(p.data.Text)
	case "tool":
		n.kind = kindToolCall
		info := &toolInfo{name: p.data.Tool}
		if st := p.data.State; st != nil {
			info.input = prettyJSON(st.Input)
			info.title = st.Title
			switch st.Status {
			case "completed":
				out := st.Output
				info.output = &out
				info.doneAt = st.Time.End
			case "error":
				out := st.Error
				info.output = &out
				info.isError = true
				info.doneAt = st.Time.End
			}
		}
		n.tool = info
	case "patch":
		n.kind = kindPatch
		n.patch = &patchInfo{hash: p.data.Hash, files: p.data.Files}
	default:
		// file, agent, subtask, retry, ...
		return node{}, false
	}
	return n, true
}

func messageTime(m ocMessage) int64 {
	if m.timeCreated != 0 {
		return m.timeCreated
	}
	return m.data.Time.Created
}

func attachMessageAccounting(n *node, m ocMessage) {
	if m.data.Role != "assistant" {
		return
	}
	if t := m.data.Tokens; t != nil {
		n.usage = &usage{
			input:         t.Input,
			output:        t.Output,
			reasoning:     t.Reasoning,
			cacheRead:     t.Cache.Read,
			cacheCreation: t.Cache.Write,
		}
	}
	if m.data.Cost != 0 {
		c := m.data.Cost
		n.cost = &c
	}
	n.model = m.data.ModelID
}

// opencodeSamples collects per-message accounting from assistant messages.
func opencodeSamples(sessions []ocSession) []usageSample {
	var samples []usageSample
	for _, s := range sessions {
		msgs := make([]ocMessage, len(s.messages))
		copy(msgs, s.messages)
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].id < msgs[j].id })
		for _, m := range msgs {
			if m.data.Role != "assistant" {
				continue
			}
			sample := usageSample{cost: m.data.Cost, model: m.data.ModelID}
			if t := m.data.Tokens; t != nil {
				sample.input = t.Input
				sample.output = t.Output
				sample.reasoning = t.Reasoning
				sample.cacheRead = t.Cache.Read
				sample.cacheCreation = t.Cache.Write
			}
			samples = append(samples, sample)
		}
	}
	return samples
}

// buildOpencodeGraph runs the pipeline over a session tree. sessions[0] is
// the root; the rest are descendants in discovery order.
func buildOpencodeGraph(sessions []ocSession) graph {
	if len(sessions) == 0 {
		return assembleGraph(nil, nil)
	}
	var (
		nodes  []node
		spawns = make(map[string]string)
	)
	for i, s := range sessions {
		agentID := ""
		if i > 0 {
			agentID = s.id
		}
		ns, sp := normalizeOpencode(s, agentID)
		nodes = append(nodes, ns...)
		for child, toolID := range sp {
			if _, dup := spawns[child]; !dup {
				spawns[child] = toolID
			}
		}
	}
	assignLanes(nodes, spawns)
	return assembleGraph(nodes, opencodeSamples(sessions))
}
