// rendering: the graph timeline, header bars, session list, and footer.
//
// the timeline is a grid: one line per row of the zoom projection, one
// cell per visible node. the column window follows the cursor. a row with
// nothing in the window shows its sticky node (the last one before the
// window) dimmed in the first cell so a lane never looks empty by accident.

package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// -- styles --

var (
	// structural
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	panelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Bold(true)

	// status colors
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	transStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	// selection + markers
	selectStyle = lipgloss.NewStyle().Background(lipgloss.Color("6")).Foreground(lipgloss.Color("0"))
	liveStyle   = lipgloss.NewStyle().Background(lipgloss.Color("2")).Foreground(lipgloss.Color("0")).Bold(true)
	followStyle = lipgloss.NewStyle().Background(lipgloss.Color("3")).Foreground(lipgloss.Color("0")).Bold(true)
)

// kindStyleFor returns the cell style for a node kind.
func kindStyleFor(n node) lipgloss.Style {
	switch n.kind {
	case kindUser:
		return idleStyle.Bold(true)
	case kindAssistant:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	case kindReasoning, kindProgress:
		return dimStyle
	case kindToolCall, kindToolUse, kindToolResult:
		if n.tool != nil && n.tool.isError {
			return errorStyle
		}
		if n.pending() {
			return transStyle
		}
		return activeStyle
	case kindPatch:
		return transStyle
	}
	return idleStyle
}

const rowLabelWidth = 7

// rowLabel names a timeline row.
func rowLabel(row int, level zoomLevel) string {
	if level == zoomSessions {
		return "span"
	}
	switch row {
	case rowUser:
		return "user"
	case rowAssistant:
		return "asst"
	case rowMainOther:
		return "tools"
	}
	lane := (row-rowAgentBase)/2 + 1
	if (row-rowAgentBase)%2 == 0 {
		return fmt.Sprintf("a%d", lane)
	}
	return fmt.Sprintf("a%d ⋯", lane)
}

// -- graph view --

func (m model) renderGraphView() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStatsBar())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", max(0, m.width))))
	b.WriteString("\n")

	used := 4 // header + stats + separator + footer
	switch {
	case !m.loaded:
		b.WriteString("\n  loading...\n")
		used += 2
	case len(m.g.nodes) == 0:
		b.WriteString(dimStyle.Render("\n  (no events in this session)"))
		b.WriteString("\n")
		used += 2
	default:
		timeline := m.renderTimeline()
		b.WriteString(timeline)
		used += strings.Count(timeline, "\n")
	}

	if m.cursor >= 0 && m.cursor < len(m.g.nodes) {
		switch {
		case m.level == zoomFocus:
			b.WriteString(m.renderFocusView(max(3, m.height-used-1)))
		case m.showDetails:
			b.WriteString(m.renderDetailsPanel(10))
		}
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

// -- header --

func (m model) renderHeader() string {
	title := m.title
	if title == "" {
		title = m.sessionID
	}
	crumb := " vizzy > " + title + " > " + m.level.String()

	var markers []string
	if m.live {
		markers = append(markers, liveStyle.Render(" LIVE "))
	}
	if m.follow {
		markers = append(markers, followStyle.Render(" FOLLOW "))
	}
	right := strings.Join(markers, " ") + " " + headerStyle.Render(time.Now().Format("15:04:05")+" ")
	rightWidth := lipgloss.Width(right)

	crumb = ansi.Truncate(crumb, max(0, m.width-rightWidth-1), "…")
	pad := max(0, m.width-lipgloss.Width(crumb)-rightWidth)
	return headerStyle.Render(crumb) + strings.Repeat(" ", pad) + right
}

// -- stats bar --

func (m model) renderStatsBar() string {
	s := m.g.stats
	parts := []string{
		fmt.Sprintf("%d nodes", len(m.g.nodes)),
		"in:" + formatTokens(s.inputTokens),
		"out:" + formatTokens(s.outputTokens),
		fmt.Sprintf("cache:%s/%s", formatTokens(s.cacheReadTokens), formatTokens(s.cacheCreationTokens)),
	}
	if s.reasoningTokens != nil {
		parts = append(parts, "think:"+formatTokens(*s.reasoningTokens))
	}
	if s.totalCost != nil {
		parts = append(parts, formatCost(s.totalCost))
	}
	if s.model != "" {
		parts = append(parts, shortModel(s.model))
	}
	if lanes := m.laneCount(); lanes > 0 {
		parts = append(parts, fmt.Sprintf("%d agent lanes", lanes))
	}
	return dimStyle.Render(ansi.Truncate(" "+strings.Join(parts, "  "), max(0, m.width), ""))
}

func (m model) laneCount() int {
	top := 0
	for _, n := range m.g.nodes {
		top = max(top, n.branchLevel)
	}
	return top
}

// -- timeline --

// columnWindow returns the [start, end) slice of visible columns to draw,
// centered on the cursor where possible.
func columnWindow(visible []int, cursor, width int) (int, int) {
	cols := max(1, (width-rowLabelWidth)/columnWidth)
	if len(visible) <= cols {
		return 0, len(visible)
	}
	at := slices.Index(visible, cursor)
	if at < 0 {
		at = len(visible) - 1
	}
	start := min(max(0, at-cols/2), len(visible)-cols)
	return start, start + cols
}

func (m model) renderTimeline() string {
	visible := visibleIndices(m.g, m.level)
	start, end := columnWindow(visible, m.cursor, m.width)

	var b strings.Builder
	for row := 0; row <= maxRow(m.g, m.level); row++ {
		line := labelStyle.Render(truncOrPad(rowLabel(row, m.level), rowLabelWidth))

		var cells []string
		hasNode := false
		for c := start; c < end; c++ {
			idx := visible[c]
			if visualBranch(m.g.nodes[idx], m.level) != row {
				cells = append(cells, strings.Repeat(" ", columnWidth))
				continue
			}
			hasNode = true
			cells = append(cells, m.renderCell(m.g.nodes[idx], idx == m.cursor, false))
		}
		if !hasNode && len(cells) > 0 {
			if idx, ok := findStickyNode(m.g.nodes, visible, row, start, m.level); ok {
				cells[0] = m.renderCell(m.g.nodes[idx], false, true)
			}
		}

		b.WriteString(line)
		b.WriteString(strings.Join(cells, ""))
		b.WriteString("\n")
	}
	return b.String()
}

// renderCell draws one node as icon + label, exactly columnWidth wide.
func (m model) renderCell(n node, selected, sticky bool) string {
	hint := m.icons.lookup(n)
	text := hint.icon + " " + nodeLabel(n)
	text = ansi.Truncate(strings.ReplaceAll(text, "\n", " "), columnWidth-1, "…")

	style := kindStyleFor(n)
	if hint.color != "" {
		style = style.Foreground(lipgloss.Color(hint.color))
	}
	switch {
	case selected:
		style = selectStyle
	case sticky:
		style = dimStyle.Italic(true)
	}
	return style.Width(columnWidth-1).MaxWidth(columnWidth-1).Render(text) + " "
}

// -- session list --

func (m model) renderSessionList() string {
	var b strings.Builder

	crumb := fmt.Sprintf(" vizzy > sessions (%d)", len(m.sessions))
	b.WriteString(headerStyle.Render(ansi.Truncate(crumb, max(0, m.width), "")))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", max(0, m.width))))
	b.WriteString("\n")

	if len(m.sessions) == 0 {
		b.WriteString(dimStyle.Render("  (no sessions found)"))
		b.WriteString("\n")
		b.WriteString(m.renderFooter())
		return b.String()
	}

	pageSize := max(1, m.height-4)
	offset := 0
	if m.listCursor >= pageSize {
		offset = m.listCursor - pageSize + 1
	}
	end := min(offset+pageSize, len(m.sessions))

	nowMS := time.Now().UnixMilli()
	titleWidth := max(10, m.width-2-9-2-8-2-6-2-24)
	for i := offset; i < end; i++ {
		s := m.sessions[i]
		text := "  " + truncOrPad(string(s.source), 9) +
			"  " + truncOrPad(formatAge(s.lastActivity, nowMS), 8) +
			"  " + truncOrPad(fmt.Sprintf("%d", s.eventCount), 6) +
			"  " + truncOrPad(ansi.Truncate(firstLine(s.title), titleWidth, "…"), titleWidth) +
			"  " + shortPath(s.directory, 22)
		style := idleStyle
		switch {
		case i == m.listCursor:
			style = selectStyle
		case s.id == m.sessionID:
			style = activeStyle
		}
		b.WriteString(style.Width(max(0, m.width)).MaxWidth(max(1, m.width)).Render(text))
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

// -- footer --

func (m model) renderFooter() string {
	if m.prompting {
		return m.prompt.View()
	}

	bar := " " + m.help.View(m.keys)

	// flash message overlay
	if m.flashMsg != "" && time.Since(m.flashTime) < 3*time.Second {
		flash := " " + m.flashMsg + " "
		style := activeStyle.Bold(true)
		if strings.Contains(m.flashMsg, "failed") || strings.HasPrefix(m.flashMsg, "not ") {
			style = errorStyle.Bold(true)
		}
		flashRendered := style.Render(flash)
		barWidth := lipgloss.Width(bar)
		flashWidth := lipgloss.Width(flashRendered)
		if barWidth+flashWidth < m.width {
			return bar + strings.Repeat(" ", m.width-barWidth-flashWidth) + flashRendered
		}
		return flashRendered
	}
	return bar
}
