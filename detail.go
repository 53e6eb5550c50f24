// detail panel: everything known about the node under the cursor.
//
// d toggles a fixed-height panel under the timeline; the focus zoom level
// gives the same content the rest of the screen.

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// formatNodeDetail formats a node into displayable lines, wrapped to width.
func formatNodeDetail(n node, width int) []string {
	width = max(20, width)
	var lines []string

	header := fmt.Sprintf(" %s  %-11s %s", formatClock(n.timestamp), n.kind, n.id)
	lines = append(lines, header)

	var meta []string
	if n.agentID != "" {
		meta = append(meta, fmt.Sprintf("agent:%s lane:%d", n.agentID, n.branchLevel))
	}
	if n.parentID != "" {
		meta = append(meta, "parent:"+n.parentID)
	}
	if n.model != "" {
		meta = append(meta, "model:"+shortModel(n.model))
	}
	if u := n.usage; u != nil {
		meta = append(meta, fmt.Sprintf("in:%s out:%s cache:%s/%s",
			formatTokens(u.input), formatTokens(u.output),
			formatTokens(u.cacheRead), formatTokens(u.cacheCreation)))
		if u.reasoning > 0 {
			meta = append(meta, "think:"+formatTokens(u.reasoning))
		}
	}
	if n.cost != nil {
		meta = append(meta, formatCost(n.cost))
	}
	if len(meta) > 0 {
		lines = append(lines, "   "+strings.Join(meta, "  "))
	}

	body := func(label, text string) {
		text = strings.TrimRight(text, "\n")
		if text == "" {
			return
		}
		lines = append(lines, "   "+label)
		for _, l := range strings.Split(ansi.Wrap(text, width-6, ""), "\n") {
			lines = append(lines, "      "+l)
		}
	}

	switch {
	case n.tool != nil:
		status := "done"
		switch {
		case n.pending():
			status = "pending"
		case n.tool.isError:
			status = "error"
		}
		if d := toolDuration(n); d != "" {
			status += " in " + d
		}
		lines = append(lines, fmt.Sprintf("   tool:%s  %s", n.tool.name, status))
		body("title", n.tool.title)
		body("input", n.tool.input)
		if n.tool.output != nil {
			body("output", *n.tool.output)
		}
	case n.patch != nil:
		lines = append(lines, "   patch:"+n.patch.hash)
		for _, f := range n.patch.files {
			lines = append(lines, "      "+shortPath(f, width-6))
		}
	default:
		body("text", n.text)
	}
	return lines
}

func (m model) renderDetailsPanel(height int) string {
	return m.renderNodeLines(height, " DETAILS")
}

func (m model) renderFocusView(height int) string {
	return m.renderNodeLines(height, " FOCUS")
}

func (m model) renderNodeLines(height int, title string) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render(strings.Repeat("─", max(0, m.width))))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(title))
	b.WriteString("\n")

	lines := formatNodeDetail(m.g.nodes[m.cursor], m.width)
	if len(lines) > height {
		lines = append(lines[:height-1], dimStyle.Render(fmt.Sprintf("   … %d more lines", len(lines)-height+1)))
	}
	for _, line := range lines {
		b.WriteString(ansi.Truncate(line, max(0, m.width), ""))
		b.WriteString("\n")
	}
	return b.String()
}
