package main

import (
	"context"
	"errors"
	"testing"
)

type fakeSource struct {
	name     sourceKind
	sessions []sessionInfo
	err      error
	graphs   map[string]graph
	sent     []string
}

func (f *fakeSource) kind() sourceKind { return f.name }

func (f *fakeSource) listSessions() ([]sessionInfo, error) {
	return f.sessions, f.err
}

func (f *fakeSource) readGraph(id string) (graph, error) {
	g, ok := f.graphs[id]
	if !ok {
		return graph{}, errors.New("no such session")
	}
	return g, nil
}

func (f *fakeSource) watch(id string, onUpdate func()) (func(), error) {
	return func() {}, nil
}

type fakeLive struct {
	*fakeSource
}

func (f *fakeLive) sendMessage(ctx context.Context, id, text string) error {
	f.sent = append(f.sent, id+"="+text)
	return nil
}

func (f *fakeLive) abortSession(ctx context.Context, id string) error {
	f.sent = append(f.sent, id+"=abort")
	return nil
}

func TestSplitID(t *testing.T) {
	tests := []struct {
		id     string
		kind   sourceKind
		native string
		ok     bool
	}{
		{"claude:abc", sourceClaude, "abc", true},
		{"opencode:ses:with:colons", sourceOpencode, "ses:with:colons", true},
		{"bare", "", "", false},
		{":abc", "", "", false},
	}
	for _, tt := range tests {
		kind, native, ok := splitID(tt.id)
		if kind != tt.kind || native != tt.native || ok != tt.ok {
			t.Errorf("splitID(%q) = %q, %q, %v", tt.id, kind, native, ok)
		}
	}
	if qualifyID(sourceClaude, "abc") != "claude:abc" {
		t.Error("unexpected qualified id")
	}
}

func TestMultiSourceListMerges(t *testing.T) {
	a := &fakeSource{name: sourceClaude, sessions: []sessionInfo{
		{id: "c1", lastActivity: 100},
		{id: "c2", lastActivity: 300},
	}}
	b := &fakeSource{name: sourceOpencode, sessions: []sessionInfo{
		{id: "o1", lastActivity: 300},
		{id: "o2", lastActivity: 200},
	}}
	sessions, err := newMultiSource(a, b).listSessions()
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"claude:c2", "opencode:o1", "opencode:o2", "claude:c1"}
	if len(sessions) != len(want) {
		t.Fatalf("expected %d sessions, got %d", len(want), len(sessions))
	}
	for i, s := range sessions {
		if s.id != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], s.id)
		}
	}
	if sessions[1].source != sourceOpencode {
		t.Errorf("expected source to be stamped, got %q", sessions[1].source)
	}
	if a.sessions[0].id != "c1" {
		t.Error("source listing was modified")
	}
}

func TestMultiSourceSkipsFailingSource(t *testing.T) {
	ok := &fakeSource{name: sourceClaude, sessions: []sessionInfo{{id: "c1"}}}
	bad := &fakeSource{name: sourceOpencode, err: errors.New("db locked")}

	sessions, err := newMultiSource(ok, bad).listSessions()
	if err != nil {
		t.Fatalf("expected partial listing, got %v", err)
	}
	if len(sessions) != 1 || sessions[0].id != "claude:c1" {
		t.Errorf("unexpected sessions %+v", sessions)
	}

	_, err = newMultiSource(bad).listSessions()
	if err == nil || err.Error() != "db locked" {
		t.Errorf("expected the source error when all fail, got %v", err)
	}
}

func TestMultiSourceRoutes(t *testing.T) {
	want := graph{nodes: []node{{id: "n1"}}}
	a := &fakeSource{name: sourceClaude, graphs: map[string]graph{"c1": want}}
	m := newMultiSource(a, &fakeSource{name: sourceOpencode})

	g, err := m.readGraph("claude:c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(g.nodes) != 1 || g.nodes[0].id != "n1" {
		t.Errorf("unexpected graph %+v", g)
	}

	for _, id := range []string{"c1", "kiro:c1"} {
		if _, err := m.readGraph(id); !errors.Is(err, errUnknownSource) {
			t.Errorf("%s: expected errUnknownSource, got %v", id, err)
		}
		if _, err := m.watch(id, func() {}); !errors.Is(err, errUnknownSource) {
			t.Errorf("%s: expected errUnknownSource from watch, got %v", id, err)
		}
	}
	stop, err := m.watch("claude:c1", func() {})
	if err != nil {
		t.Fatal(err)
	}
	stop()
}

func TestMultiSourceLive(t *testing.T) {
	live := &fakeLive{&fakeSource{name: sourceOpencode}}
	m := newMultiSource(&fakeSource{name: sourceClaude}, live)
	ctx := context.Background()

	if err := m.sendMessage(ctx, "claude:c1", "hi"); !errors.Is(err, errNotLive) {
		t.Errorf("expected errNotLive, got %v", err)
	}
	if m.isLive("claude:c1") {
		t.Error("claude sessions have no runtime")
	}
	if !m.isLive("opencode:s1") {
		t.Error("expected opencode session to be live")
	}
	if err := m.sendMessage(ctx, "opencode:s1", "hi"); err != nil {
		t.Fatal(err)
	}
	if err := m.abortSession(ctx, "opencode:s1"); err != nil {
		t.Fatal(err)
	}
	if len(live.sent) != 2 || live.sent[0] != "s1=hi" || live.sent[1] != "s1=abort" {
		t.Errorf("expected native ids on the wire, got %v", live.sent)
	}
}

func TestFetchAllKeepsOrder(t *testing.T) {
	sources := []source{
		&fakeSource{name: "one", sessions: []sessionInfo{{id: "a"}}},
		&fakeSource{name: "two", err: errors.New("boom")},
		&fakeSource{name: "three"},
	}
	got := fetchAll(sources)
	if len(got) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(got))
	}
	if got[0].kind != "one" || len(got[0].sessions) != 1 {
		t.Errorf("unexpected first listing %+v", got[0])
	}
	if got[1].kind != "two" || got[1].err == nil {
		t.Errorf("expected error in second listing, got %+v", got[1])
	}
	if got[2].kind != "three" || got[2].err != nil {
		t.Errorf("unexpected third listing %+v", got[2])
	}
}
