// formatting helpers: token counts, durations, costs, node labels.
// no lipgloss dependency, pure data transformations.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// -- numbers --

func formatTokens(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	secs := ms / 1000
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	mins := secs / 60
	secs = secs % 60
	if mins < 60 {
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := mins / 60
	mins = mins % 60
	if hours < 24 {
		return fmt.Sprintf("%dh%02dm", hours, mins)
	}
	days := hours / 24
	hours = hours % 24
	return fmt.Sprintf("%dd%dh", days, hours)
}

// formatCost renders a dollar amount; sub-cent costs keep four decimals.
func formatCost(cost *float64) string {
	if cost == nil {
		return "-"
	}
	if *cost < 0.01 {
		return fmt.Sprintf("$%.4f", *cost)
	}
	return fmt.Sprintf("$%.2f", *cost)
}

// formatClock renders an epoch-ms timestamp as local wall-clock time.
func formatClock(ms int64) string {
	if ms <= 0 {
		return "--:--:--"
	}
	return time.UnixMilli(ms).Format("15:04:05")
}

// formatAge is the time since ms, e.g. "4m12s".
func formatAge(ms, nowMS int64) string {
	if ms <= 0 {
		return "-"
	}
	return formatDuration(nowMS - ms)
}

// -- strings --

func shortPath(path string, maxLen int) string {
	home, _ := os.UserHomeDir()
	if home != "" && strings.HasPrefix(path, home) {
		path = "~" + path[len(home):]
	}
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-(maxLen-3):]
}

// truncOrPad truncates or right-pads a string to exactly width runes.
func truncOrPad(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return string(r[:width])
	}
	if len(r) < width {
		return s + strings.Repeat(" ", width-len(r))
	}
	return s
}

// firstLine returns the first non-blank line of text, trimmed.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// -- nodes --

// nodeGlyph is the default marker for a node kind.
func nodeGlyph(n node) string {
	switch n.kind {
	case kindUser:
		return "●"
	case kindAssistant:
		return "◉"
	case kindReasoning:
		return "◌"
	case kindToolUse:
		return "⬢"
	case kindToolCall:
		switch {
		case n.pending():
			return "⬡"
		case n.tool != nil && n.tool.isError:
			return "✗"
		}
		return "⬢"
	case kindToolResult:
		if n.tool != nil && n.tool.isError {
			return "✗"
		}
		return "✓"
	case kindPatch:
		return "±"
	case kindProgress:
		return "○"
	}
	return "·"
}

// nodeLabel is the one-line text shown next to a node's glyph.
func nodeLabel(n node) string {
	switch n.kind {
	case kindToolUse, kindToolCall, kindToolResult:
		if n.tool == nil {
			break
		}
		if n.tool.title != "" {
			return n.tool.name + " " + firstLine(n.tool.title)
		}
		if n.kind == kindToolResult && n.tool.output != nil {
			return firstLine(*n.tool.output)
		}
		return n.tool.name
	case kindPatch:
		if n.patch == nil {
			break
		}
		if len(n.patch.files) == 1 {
			return filepath.Base(n.patch.files[0])
		}
		return fmt.Sprintf("%d files", len(n.patch.files))
	}
	return firstLine(n.text)
}

// toolDuration is how long a merged tool call ran, "" when unknown.
func toolDuration(n node) string {
	if n.tool == nil || n.tool.doneAt <= 0 || n.tool.doneAt < n.timestamp {
		return ""
	}
	d := n.tool.doneAt - n.timestamp
	if d < 1000 {
		return fmt.Sprintf("%dms", d)
	}
	return formatDuration(d)
}
