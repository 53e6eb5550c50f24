// bubbletea model, update loop, and commands.
//
// follows the elm architecture: model holds all state, Update is a pure
// state transition, View renders to string. side effects happen in
// tea.Cmd functions (loadGraphCmd, watchCmd, etc.)
//
// the graph is rebuilt whole on open, on a debounced change notification
// and on session switch. the cursor is a node index, re-located by id
// after every rebuild.

package main

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// -- messages --

type sessionsMsg struct {
	sessions []sessionInfo
	err      error
}

type graphMsg struct {
	sessionID string
	g         graph
	err       error
}

type watchStartedMsg struct {
	sessionID string
	changes   <-chan struct{}
	done      <-chan struct{}
	stop      func()
	err       error
}

type changedMsg struct {
	sessionID string
}

type liveDoneMsg struct {
	action string
	err    error
}

// -- keys --

type keyMap struct {
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	Focus    key.Binding
	First    key.Binding
	Last     key.Binding
	Follow   key.Binding
	Sessions key.Binding
	Enter    key.Binding
	Details  key.Binding
	Send     key.Binding
	Abort    key.Binding
	Refresh  key.Binding
	Esc      key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Left:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/l", "prev/next")),
		Right:    key.NewBinding(key.WithKeys("l", "right")),
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "row")),
		Down:     key.NewBinding(key.WithKeys("j", "down")),
		ZoomIn:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "zoom")),
		ZoomOut:  key.NewBinding(key.WithKeys("-", "_")),
		Focus:    key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "focus")),
		First:    key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g/G", "first/last")),
		Last:     key.NewBinding(key.WithKeys("G", "end")),
		Follow:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow")),
		Sessions: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sessions")),
		Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Details:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "details")),
		Send:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "message")),
		Abort:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "abort")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Esc:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Up, k.ZoomIn, k.Focus, k.Follow, k.Sessions, k.Details, k.Send, k.Abort, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Up, k.First, k.Follow},
		{k.ZoomIn, k.Focus, k.Details},
		{k.Sessions, k.Enter, k.Refresh, k.Esc},
		{k.Send, k.Abort, k.Help, k.Quit},
	}
}

// -- model --

type model struct {
	src    *multiSource
	icons  *iconRules
	keys   keyMap
	help   help.Model
	prompt textinput.Model

	// terminal dimensions
	width  int
	height int

	// current session
	sessionID string
	title     string
	g         graph
	loaded    bool
	live      bool

	// watch subscription for sessionID
	changes   <-chan struct{}
	done      <-chan struct{}
	stopWatch func()

	// projection + cursor
	level       zoomLevel
	prevLevel   zoomLevel // restored when leaving focus
	cursor      int       // index into g.nodes, -1 when nothing is visible
	follow      bool
	showDetails bool
	showHelp    bool

	// session list
	sessions   []sessionInfo
	listMode   bool
	listCursor int

	// message prompt (live sessions)
	prompting bool

	// flash message (e.g. after send)
	flashMsg  string
	flashTime time.Time
}

func newModel(src *multiSource, icons *iconRules, sessionID string) model {
	prompt := textinput.New()
	prompt.Prompt = "› "
	prompt.Placeholder = "message to send"
	prompt.CharLimit = 8000

	m := model{
		src:       src,
		icons:     icons,
		keys:      newKeyMap(),
		help:      help.New(),
		prompt:    prompt,
		level:     zoomConversations,
		prevLevel: zoomConversations,
		cursor:    -1,
		follow:    true,
		listMode:  sessionID == "",
	}
	m.setSession(sessionID)
	return m
}

// setSession resets per-session state. it does not start any I/O.
func (m *model) setSession(id string) {
	if m.stopWatch != nil {
		m.stopWatch()
	}
	m.sessionID = id
	m.g = graph{}
	m.loaded = false
	m.cursor = -1
	m.follow = true
	m.changes = nil
	m.done = nil
	m.stopWatch = nil
	m.live = id != "" && m.src != nil && m.src.isLive(id)
	m.keys.Send.SetEnabled(m.live)
	m.keys.Abort.SetEnabled(m.live)
	m.title = ""
	for _, s := range m.sessions {
		if s.id == id {
			m.title = s.title
		}
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{listSessionsCmd(m.src)}
	if m.sessionID != "" {
		cmds = append(cmds, loadGraphCmd(m.src, m.sessionID), watchCmd(m.src, m.sessionID))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompting {
			return m.handlePromptKey(msg)
		}
		if m.listMode {
			return m.handleListKey(msg)
		}
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.prompt.Width = max(10, msg.Width-4)
		return m, nil
	case sessionsMsg:
		if msg.err != nil {
			log.Printf("list sessions: %v", msg.err)
			m.flash("listing failed: " + msg.err.Error())
			return m, nil
		}
		m.sessions = msg.sessions
		m.listCursor = min(m.listCursor, max(0, len(m.sessions)-1))
		for _, s := range m.sessions {
			if s.id == m.sessionID {
				m.title = s.title
			}
		}
		return m, nil
	case graphMsg:
		if msg.sessionID != m.sessionID {
			return m, nil
		}
		if msg.err != nil {
			log.Printf("rebuild %s: %v", msg.sessionID, msg.err)
			m.flash("read failed: " + msg.err.Error())
			return m, nil
		}
		m.cursor = relocateCursor(m.g, m.cursor, msg.g, m.level, m.follow)
		m.g = msg.g
		m.loaded = true
		log.Printf("rebuilt %s: %d nodes", msg.sessionID, len(msg.g.nodes))
		return m, nil
	case watchStartedMsg:
		if msg.sessionID != m.sessionID {
			if msg.stop != nil {
				msg.stop()
			}
			return m, nil
		}
		if msg.err != nil {
			log.Printf("watch %s: %v", msg.sessionID, msg.err)
			m.flash("not watching: " + msg.err.Error())
			return m, nil
		}
		m.changes = msg.changes
		m.done = msg.done
		m.stopWatch = msg.stop
		return m, waitForChange(m.sessionID, m.changes, m.done)
	case changedMsg:
		if msg.sessionID != m.sessionID || m.changes == nil {
			return m, nil
		}
		return m, tea.Batch(loadGraphCmd(m.src, m.sessionID), waitForChange(m.sessionID, m.changes, m.done))
	case liveDoneMsg:
		if msg.err != nil {
			log.Printf("%s: %v", msg.action, msg.err)
			m.flash(msg.action + " failed: " + msg.err.Error())
		} else {
			m.flash(msg.action)
		}
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	if m.listMode {
		return m.renderSessionList()
	}
	return m.renderGraphView()
}

func (m *model) flash(msg string) {
	m.flashMsg = msg
	m.flashTime = time.Now()
}

func (m model) quit() (tea.Model, tea.Cmd) {
	if m.stopWatch != nil {
		m.stopWatch()
	}
	return m, tea.Quit
}

// -- key handlers --

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Left):
		m.follow = false
		m.moveColumn(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveColumn(1)
		m.follow = m.follow && m.atEnd()
	case key.Matches(msg, m.keys.Up):
		m.follow = false
		m.moveRow(-1)
	case key.Matches(msg, m.keys.Down):
		m.follow = false
		m.moveRow(1)
	case key.Matches(msg, m.keys.ZoomIn):
		m.setLevel(m.level.zoomIn())
	case key.Matches(msg, m.keys.ZoomOut):
		m.setLevel(m.level.zoomOut())
	case key.Matches(msg, m.keys.Focus):
		if m.level == zoomFocus {
			m.setLevel(m.prevLevel)
		} else {
			m.prevLevel = m.level
			m.setLevel(zoomFocus)
		}
	case key.Matches(msg, m.keys.First):
		m.follow = false
		if visible := visibleIndices(m.g, m.level); len(visible) > 0 {
			m.cursor = visible[0]
		}
	case key.Matches(msg, m.keys.Last):
		if visible := visibleIndices(m.g, m.level); len(visible) > 0 {
			m.cursor = visible[len(visible)-1]
		}
	case key.Matches(msg, m.keys.Follow):
		m.follow = !m.follow
		if m.follow {
			if visible := visibleIndices(m.g, m.level); len(visible) > 0 {
				m.cursor = visible[len(visible)-1]
			}
		}
	case key.Matches(msg, m.keys.Details):
		m.showDetails = !m.showDetails
	case key.Matches(msg, m.keys.Sessions):
		m.listMode = true
		for i, s := range m.sessions {
			if s.id == m.sessionID {
				m.listCursor = i
			}
		}
		return m, listSessionsCmd(m.src)
	case key.Matches(msg, m.keys.Refresh):
		if m.sessionID != "" {
			return m, loadGraphCmd(m.src, m.sessionID)
		}
	case key.Matches(msg, m.keys.Send):
		m.prompting = true
		m.prompt.Reset()
		return m, m.prompt.Focus()
	case key.Matches(msg, m.keys.Abort):
		return m, abortCmd(m.src, m.sessionID)
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	}
	return m, nil
}

func (m model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Up):
		m.listCursor = max(m.listCursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.listCursor = min(m.listCursor+1, max(0, len(m.sessions)-1))
	case key.Matches(msg, m.keys.First):
		m.listCursor = 0
	case key.Matches(msg, m.keys.Last):
		m.listCursor = max(0, len(m.sessions)-1)
	case key.Matches(msg, m.keys.Refresh):
		return m, listSessionsCmd(m.src)
	case key.Matches(msg, m.keys.Esc), key.Matches(msg, m.keys.Sessions):
		if m.sessionID != "" {
			m.listMode = false
		}
	case key.Matches(msg, m.keys.Enter):
		if m.listCursor >= len(m.sessions) {
			return m, nil
		}
		id := m.sessions[m.listCursor].id
		m.listMode = false
		if id == m.sessionID {
			return m, nil
		}
		m.setSession(id)
		return m, tea.Batch(loadGraphCmd(m.src, id), watchCmd(m.src, id))
	}
	return m, nil
}

func (m model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompting = false
		m.prompt.Blur()
		return m, nil
	case "enter":
		text := m.prompt.Value()
		m.prompting = false
		m.prompt.Blur()
		m.prompt.Reset()
		if text == "" {
			return m, nil
		}
		m.follow = true
		return m, sendCmd(m.src, m.sessionID, text)
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

// -- cursor --

func (m model) currentRow() int {
	if m.cursor < 0 || m.cursor >= len(m.g.nodes) {
		return 0
	}
	return max(0, visualBranch(m.g.nodes[m.cursor], m.level))
}

func (m model) atEnd() bool {
	visible := visibleIndices(m.g, m.level)
	return len(visible) > 0 && visible[len(visible)-1] == m.cursor
}

// moveColumn steps to the previous/next node on the cursor's row.
func (m *model) moveColumn(delta int) {
	if m.cursor < 0 {
		return
	}
	row := rowNodes(m.g, m.level, m.currentRow())
	pos := slices.Index(row, m.cursor)
	if pos < 0 {
		return
	}
	pos = min(max(pos+delta, 0), len(row)-1)
	m.cursor = row[pos]
}

// moveRow jumps to the nearest-in-time node on the next non-empty row in
// the given direction. the cursor stays put when there is none.
func (m *model) moveRow(delta int) {
	if m.cursor < 0 {
		return
	}
	ts := m.g.nodes[m.cursor].timestamp
	top := maxRow(m.g, m.level)
	for r := m.currentRow() + delta; r >= 0 && r <= top; r += delta {
		row := rowNodes(m.g, m.level, r)
		if len(row) > 0 {
			m.cursor = row[nearestInRow(m.g, m.level, r, ts)]
			return
		}
	}
}

// setLevel changes zoom and keeps the cursor on a node visible at the new
// level, the same node if possible.
func (m *model) setLevel(level zoomLevel) {
	m.level = level
	visible := visibleIndices(m.g, level)
	if m.cursor >= 0 && slices.Contains(visible, m.cursor) {
		return
	}
	if m.cursor < 0 || m.cursor >= len(m.g.nodes) {
		m.cursor = -1
		if len(visible) > 0 {
			m.cursor = visible[len(visible)-1]
		}
		return
	}
	m.cursor = nearestVisible(m.g, visible, m.g.nodes[m.cursor].timestamp)
}

// relocateCursor places the cursor in a freshly rebuilt graph: the newest
// visible node when following or when the cursor sat on the newest node,
// else the same node by id, else the visible node nearest in time.
func relocateCursor(old graph, oldCursor int, next graph, level zoomLevel, follow bool) int {
	visible := visibleIndices(next, level)
	if len(visible) == 0 {
		return -1
	}
	newest := visible[len(visible)-1]
	if follow || oldCursor < 0 || oldCursor >= len(old.nodes) {
		return newest
	}
	if oldVisible := visibleIndices(old, level); len(oldVisible) > 0 && oldVisible[len(oldVisible)-1] == oldCursor {
		return newest
	}
	prev := old.nodes[oldCursor]
	if idx := indexOfNode(next, prev.id); idx >= 0 && slices.Contains(visible, idx) {
		return idx
	}
	return nearestVisible(next, visible, prev.timestamp)
}

// nearestVisible returns the visible node closest to ts, earlier on ties.
func nearestVisible(g graph, visible []int, ts int64) int {
	best, bestDiff := -1, int64(-1)
	for _, idx := range visible {
		diff := g.nodes[idx].timestamp - ts
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = idx, diff
		}
	}
	return best
}

// -- commands --

func listSessionsCmd(src *multiSource) tea.Cmd {
	return func() tea.Msg {
		sessions, err := src.listSessions()
		return sessionsMsg{sessions: sessions, err: err}
	}
}

func loadGraphCmd(src *multiSource, id string) tea.Cmd {
	return func() tea.Msg {
		g, err := src.readGraph(id)
		return graphMsg{sessionID: id, g: g, err: err}
	}
}

// watchCmd subscribes to a session. notifications land on a depth-1
// channel; a burst while a rebuild is in flight collapses into one.
func watchCmd(src *multiSource, id string) tea.Cmd {
	return func() tea.Msg {
		changes := make(chan struct{}, 1)
		done := make(chan struct{})
		unsubscribe, err := src.watch(id, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err != nil {
			return watchStartedMsg{sessionID: id, err: err}
		}
		var once sync.Once
		stop := func() {
			once.Do(func() {
				unsubscribe()
				close(done)
			})
		}
		return watchStartedMsg{sessionID: id, changes: changes, done: done, stop: stop}
	}
}

// waitForChange blocks until the next notification for id, or until the
// subscription is released.
func waitForChange(id string, changes, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-changes:
			return changedMsg{sessionID: id}
		case <-done:
			return nil
		}
	}
}

func sendCmd(src *multiSource, id, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), liveRequestTimeout)
		defer cancel()
		return liveDoneMsg{action: "message sent", err: src.sendMessage(ctx, id, text)}
	}
}

func abortCmd(src *multiSource, id string) tea.Cmd {
	return func() tea.Msg {
		return liveDoneMsg{action: "abort requested", err: src.abortSession(context.Background(), id)}
	}
}
