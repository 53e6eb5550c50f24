// Claude Code session discovery, reading and watching.
//
// layout: <claude dir>/projects/<slug>/<session>.jsonl is the main log,
// <session>/subagents/*.jsonl hold sub-agent logs. archived logs may be
// zstd-compressed (*.jsonl.zst) and are read transparently.

package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	claudeLogExt     = ".jsonl"
	claudeArchiveExt = ".jsonl.zst"
)

// claudeSource reads one project's sessions.
type claudeSource struct {
	dir     string // ~/.claude
	project string // project slug
}

func newClaudeSource(dir, projectPath string) *claudeSource {
	return &claudeSource{dir: dir, project: projectSlug(projectPath)}
}

func (s *claudeSource) kind() sourceKind { return sourceClaude }

func (s *claudeSource) projectDir() string {
	return filepath.Join(s.dir, "projects", s.project)
}

// sessionIDFromFile strips the log extension; ok is false for non-logs.
func sessionIDFromFile(name string) (string, bool) {
	switch {
	case strings.HasSuffix(name, claudeArchiveExt):
		return strings.TrimSuffix(name, claudeArchiveExt), true
	case strings.HasSuffix(name, claudeLogExt):
		return strings.TrimSuffix(name, claudeLogExt), true
	}
	return "", false
}

// listSessions returns the project's sessions, newest first.
func (s *claudeSource) listSessions() ([]sessionInfo, error) {
	entries, err := os.ReadDir(s.projectDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read project dir: %w", err)
	}

	var sessions []sessionInfo
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		id, ok := sessionIDFromFile(de.Name())
		// legacy sub-agent logs live next to sessions as agent-*.jsonl
		if !ok || strings.HasPrefix(id, "agent-") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(s.projectDir(), de.Name())
		records, err := readClaudeFile(path)
		if err != nil {
			log.Printf("claude: skip %s: %v", path, err)
			continue
		}
		sessions = append(sessions, sessionInfo{
			id:           id,
			source:       sourceClaude,
			title:        claudeTitle(records),
			directory:    claudeCWD(records),
			lastActivity: info.ModTime().UnixMilli(),
			eventCount:   len(records),
		})
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].lastActivity > sessions[j].lastActivity
	})
	return sessions, nil
}

// claudeCWD returns the first recorded working directory.
func claudeCWD(entries []claudeEntry) string {
	for _, e := range entries {
		if e.CWD != "" {
			return e.CWD
		}
	}
	return ""
}

// sessionFiles returns the main log followed by sub-agent logs in name order.
// discovery order is part of the tie-break contract, so it must be stable.
func (s *claudeSource) sessionFiles(sessionID string) ([]string, error) {
	var main string
	for _, ext := range []string{claudeLogExt, claudeArchiveExt} {
		p := filepath.Join(s.projectDir(), sessionID+ext)
		if _, err := os.Stat(p); err == nil {
			main = p
			break
		}
	}
	if main == "" {
		return nil, fmt.Errorf("session %s: %w", sessionID, os.ErrNotExist)
	}

	files := []string{main}
	agentDir := filepath.Join(s.projectDir(), sessionID, "subagents")
	des, err := os.ReadDir(agentDir)
	if err != nil {
		return files, nil
	}
	var agents []string
	for _, de := range des {
		if _, ok := sessionIDFromFile(de.Name()); ok && !de.IsDir() {
			agents = append(agents, filepath.Join(agentDir, de.Name()))
		}
	}
	sort.Strings(agents)
	return append(files, agents...), nil
}

// readEntries reads every log belonging to a session. an unreadable
// sub-agent log is skipped; an unreadable main log is an error.
func (s *claudeSource) readEntries(sessionID string) ([]claudeEntry, error) {
	files, err := s.sessionFiles(sessionID)
	if err != nil {
		return nil, err
	}
	var all []claudeEntry
	for i, path := range files {
		entries, err := readClaudeFile(path)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("read session: %w", err)
			}
			log.Printf("claude: skip agent log %s: %v", path, err)
			continue
		}
		all = append(all, entries...)
	}
	return all, nil
}

func (s *claudeSource) readGraph(sessionID string) (graph, error) {
	entries, err := s.readEntries(sessionID)
	if err != nil {
		return graph{}, err
	}
	return buildClaudeGraph(entries), nil
}

// watch fires onUpdate (debounced) when the session log or any sub-agent log
// changes. sub-agent directories created after the call are picked up.
func (s *claudeSource) watch(sessionID string, onUpdate func()) (func(), error) {
	projectDir := s.projectDir()
	sessionDir := filepath.Join(projectDir, sessionID)
	agentDir := filepath.Join(sessionDir, "subagents")

	return watchFiles(watchSpec{
		dirs: []string{projectDir, sessionDir, agentDir},
		match: func(path string) bool {
			dir, name := filepath.Split(path)
			dir = filepath.Clean(dir)
			id, ok := sessionIDFromFile(name)
			if !ok {
				return false
			}
			return (dir == projectDir && id == sessionID) || dir == agentDir
		},
		follow: func(path string) bool {
			return path == sessionDir || path == agentDir
		},
	}, onUpdate)
}

// readClaudeFile opens a log, decompressing *.zst archives.
func readClaudeFile(path string) ([]claudeEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return parseClaudeLog(r, filepath.Base(path)), nil
}
