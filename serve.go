// HTTP server mode: the same session list and graphs as the viewer, as JSON.
//
// handy for feeding another front-end or for poking at a graph with curl/jq.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// serveCommand starts an HTTP server exposing sessions and graphs.
func serveCommand(src *multiSource, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		handleSessions(w, r, src)
	})
	mux.HandleFunc("/graph", func(w http.ResponseWriter, r *http.Request) {
		handleGraph(w, r, src)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("vizzy serve on %s\n", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

func handleSessions(w http.ResponseWriter, r *http.Request, src *multiSource) {
	sessions, err := src.listSessions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"timestamp": time.Now().UnixMilli(),
		"sessions":  sessionsJSON(sessions),
	})
}

func handleGraph(w http.ResponseWriter, r *http.Request, src *multiSource) {
	id := r.URL.Query().Get("session")
	if id == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}
	g, err := src.readGraph(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errUnknownSource) {
			status = http.StatusBadRequest
		}
		log.Printf("serve: graph %s: %v", id, err)
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, graphJSON(id, g))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(v)
}

// -- JSON shapes (shared with `vizzy sessions` and `vizzy graph`) --

func sessionsJSON(sessions []sessionInfo) []map[string]any {
	out := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, map[string]any{
			"id":            s.id,
			"source":        s.source,
			"title":         s.title,
			"directory":     s.directory,
			"last_activity": s.lastActivity,
			"event_count":   s.eventCount,
		})
	}
	return out
}

func graphJSON(sessionID string, g graph) map[string]any {
	nodes := make([]map[string]any, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, nodeJSON(n))
	}
	edges := make([]map[string]any, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, map[string]any{
			"from":      e.from,
			"to":        e.to,
			"is_branch": e.isBranch,
		})
	}
	return map[string]any{
		"session": sessionID,
		"nodes":   nodes,
		"edges":   edges,
		"stats":   statsJSON(g.stats),
	}
}

func nodeJSON(n node) map[string]any {
	entry := map[string]any{
		"id":           n.id,
		"kind":         n.kind,
		"timestamp":    n.timestamp,
		"branch_level": n.branchLevel,
		"source":       n.source,
	}
	if n.parentID != "" {
		entry["parent_id"] = n.parentID
	}
	if n.agentID != "" {
		entry["agent_id"] = n.agentID
	}
	if n.turnID != "" {
		entry["turn_id"] = n.turnID
	}
	if n.text != "" {
		entry["text"] = n.text
	}
	if n.model != "" {
		entry["model"] = n.model
	}
	if n.cost != nil {
		entry["cost"] = *n.cost
	}
	if u := n.usage; u != nil {
		entry["usage"] = map[string]any{
			"input":          u.input,
			"output":         u.output,
			"reasoning":      u.reasoning,
			"cache_read":     u.cacheRead,
			"cache_creation": u.cacheCreation,
		}
	}
	if t := n.tool; t != nil {
		tool := map[string]any{
			"name":     t.name,
			"input":    t.input,
			"is_error": t.isError,
			"output":   nil, // null while pending
		}
		if t.title != "" {
			tool["title"] = t.title
		}
		if t.output != nil {
			tool["output"] = *t.output
		}
		if t.doneAt > 0 {
			tool["done_at"] = t.doneAt
		}
		entry["tool"] = tool
	}
	if p := n.patch; p != nil {
		entry["patch"] = map[string]any{"hash": p.hash, "files": p.files}
	}
	return entry
}

func statsJSON(s sessionStats) map[string]any {
	out := map[string]any{
		"input_tokens":          s.inputTokens,
		"output_tokens":         s.outputTokens,
		"cache_read_tokens":     s.cacheReadTokens,
		"cache_creation_tokens": s.cacheCreationTokens,
	}
	if s.reasoningTokens != nil {
		out["reasoning_tokens"] = *s.reasoningTokens
	}
	if s.totalCost != nil {
		out["total_cost"] = *s.totalCost
	}
	if s.model != "" {
		out["model"] = s.model
	}
	return out
}
