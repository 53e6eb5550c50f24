// paths, constants, and model-name abbreviations.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

const (
	// debounceWindow coalesces bursts of file writes into one rebuild.
	debounceWindow = 120 * time.Millisecond

	// maxScanLine caps a single JSONL record. tool results carrying whole
	// files can run to several megabytes.
	maxScanLine = 16 * 1024 * 1024

	// dropAgentUserTurns hides the prompt a sub-agent receives; the
	// spawning tool call already shows it.
	dropAgentUserTurns = true

	// columnWidth is the width of one timeline cell, including the gap.
	columnWidth = 14

	// liveRequestTimeout bounds a prompt sent to a live server, which
	// answers only once the assistant's turn is over.
	liveRequestTimeout = 10 * time.Minute
)

// claudeDir returns Claude Code's config directory.
// respects CLAUDE_CONFIG_DIR.
func claudeDir() string {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// dbPath returns the path to opencode's sqlite database.
// respects XDG_DATA_HOME.
func dbPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "opencode", "opencode.db")
}

// iconRulesPath returns the path to the tool icon rule file.
// respects VIZZY_ICONS, then XDG_CONFIG_HOME.
func iconRulesPath() string {
	if path := os.Getenv("VIZZY_ICONS"); path != "" {
		return path
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "vizzy", "icons.yaml")
}

// projectSlug maps a working directory to its Claude Code project folder
// name: every character that is not a letter or digit becomes '-'.
func projectSlug(cwd string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '-'
	}, cwd)
}

// shortModel abbreviates long model names for display.
func shortModel(model string) string {
	if model == "" || model == "?" {
		return "?"
	}
	for _, r := range modelReplacements {
		model = strings.Replace(model, r.old, r.short, 1)
	}
	if len(model) > 16 {
		return model[:16]
	}
	return model
}

var modelReplacements = []struct{ old, short string }{
	{"claude-opus-4-5-20251101", "opus-4.5"},
	{"claude-sonnet-4-5-20250929", "sonnet-4.5"},
	{"claude-haiku-4-5-20251001", "haiku-4.5"},
	{"claude-opus-4-6", "opus-4.6"},
	{"claude-sonnet-4-6", "sonnet-4.6"},
	{"claude-opus-4-5", "opus-4.5"},
	{"claude-sonnet-4-5", "sonnet-4.5"},
	{"claude-opus-4-1", "opus-4.1"},
	{"gpt-5.2-codex", "gpt-5.2"},
	{"gpt-4o-mini", "4o-mini"},
	{"antigravity-", "ag/"},
	{"gemini-3-pro", "gem-3p"},
	{"gemini-3-flash", "gem-3f"},
}
