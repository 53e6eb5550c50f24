package main

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCollapsesBursts(t *testing.T) {
	var calls atomic.Int32
	d := newDebouncer(30*time.Millisecond, func() { calls.Add(1) })
	for range 10 {
		d.trigger()
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected one callback, got %d", n)
	}

	d.trigger()
	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 2 {
		t.Errorf("expected a second callback after quiet period, got %d", n)
	}
}

func TestDebouncerStop(t *testing.T) {
	var calls atomic.Int32
	d := newDebouncer(20*time.Millisecond, func() { calls.Add(1) })
	d.trigger()
	d.stop()
	d.trigger()
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no callback after stop, got %d", n)
	}
}

func TestWatchFilesMissingDir(t *testing.T) {
	_, err := watchFiles(watchSpec{
		dirs:  []string{filepath.Join(t.TempDir(), "nope")},
		match: func(string) bool { return true },
	}, func() {})
	if err == nil {
		t.Error("expected error when nothing can be watched")
	}
}

func TestWatchFilesNotifies(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "session.jsonl")
	writeFile(t, target, "")

	fired := make(chan struct{}, 4)
	stop, err := watchFiles(watchSpec{
		dirs:  []string{dir},
		match: func(path string) bool { return filepath.Base(path) == "session.jsonl" },
	}, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	if err := os.WriteFile(target, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}

	stop()
	stop()
}

func TestClaudeWatchFollowsNestedAgentDir(t *testing.T) {
	dir := t.TempDir()
	src := newClaudeSource(dir, "/work/app")
	writeFile(t, filepath.Join(src.projectDir(), "s1.jsonl"), "")

	fired := make(chan struct{}, 8)
	stop, err := src.watch("s1", func() { fired <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	agentDir := filepath.Join(src.projectDir(), "s1", "subagents")
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification for the new session directory")
	}
	time.Sleep(2 * debounceWindow)
	for len(fired) > 0 {
		<-fired
	}

	if err := os.WriteFile(filepath.Join(agentDir, "agent-a.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification for the agent log write")
	}
}
