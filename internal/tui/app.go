package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskboard/internal/board"
	"taskboard/internal/catalog"
	"taskboard/internal/controller"
	"taskboard/internal/deps"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
	"taskboard/internal/session"
)

type loadedMsg struct {
	seq     int
	variant board.Variant
	loaded  session.Loaded
	err     error
}

// persistedMsg carries the result of a Persist call back to Update, where it is resolved.
type persistedMsg struct {
	mut *mutate.Mutator
	p   *mutate.Pending
	err error
}

type appModel struct {
	ctx  context.Context
	sess *session.Session

	variant board.Variant
	ctrl    *controller.Controller
	cat     *catalog.Catalog
	graph   *deps.Graph
	sel     selection
	loadSeq int
	loading bool

	keys       keyMap
	help       help.Model
	showDetail bool
	status     string
	statusErr  bool

	width  int
	height int
}

func newAppModel(ctx context.Context, sess *session.Session, variant board.Variant) appModel {
	if variant == "" {
		variant = board.Kanban
	}
	return appModel{
		ctx:     ctx,
		sess:    sess,
		variant: variant,
		loadSeq: 1,
		loading: true,
		keys:    defaultKeys(),
		help:    help.New(),
		width:   100,
		height:  30,
	}
}

func (m appModel) Init() tea.Cmd {
	return m.fetch()
}

// loadCmd starts a new fetch; results of older fetches are dropped.
func (m *appModel) loadCmd() tea.Cmd {
	m.loadSeq++
	m.loading = true
	return m.fetch()
}

func (m appModel) fetch() tea.Cmd {
	seq, variant, ctx, sess := m.loadSeq, m.variant, m.ctx, m.sess
	return func() tea.Msg {
		loaded, err := sess.Load(ctx, variant)
		return loadedMsg{seq: seq, variant: variant, loaded: loaded, err: err}
	}
}

func (m appModel) persistCmd(p *mutate.Pending) tea.Cmd {
	if p == nil {
		return nil
	}
	ctx, mut := m.ctx, m.ctrl.Mutator()
	return func() tea.Msg {
		return persistedMsg{mut: mut, p: p, err: p.Persist(ctx)}
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case loadedMsg:
		return m.onLoaded(msg)

	case persistedMsg:
		return m.onPersisted(msg)

	case tea.KeyMsg:
		return m.onKey(msg)
	}
	return m, nil
}

func (m appModel) onLoaded(msg loadedMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.loadSeq || msg.variant != m.variant {
		return m, nil
	}
	m.loading = false
	if msg.err != nil {
		m.setError(msg.err)
		if m.ctrl != nil {
			// Keep showing the last good board.
			return m, nil
		}
	}
	if msg.loaded.Board == nil {
		return m, nil
	}
	m.cat, m.graph = msg.loaded.Catalog, msg.loaded.Graph
	if m.ctrl != nil && m.ctrl.Board().Variant() == msg.variant {
		m.ctrl.Mutator().Replace(msg.loaded.Board)
	} else {
		// Refreshes are issued from Update as commands, never from inside Resolve.
		m.ctrl = controller.New(m.sess.Mutator(msg.loaded.Board, mutate.WithRefresh(nil)))
	}
	m.sel = clamp(m.ctrl.Board(), m.sel)
	return m, nil
}

func (m appModel) onPersisted(msg persistedMsg) (tea.Model, tea.Cmd) {
	out := msg.mut.Resolve(m.ctx, msg.p, msg.err)
	if out.Ignored || m.ctrl == nil || msg.mut != m.ctrl.Mutator() {
		return m, nil
	}
	switch out.State {
	case mutate.StateCommitted:
		m.setStatus(fmt.Sprintf("saved #%s", out.Command.TaskID))
	case mutate.StateRolledBack:
		m.setError(out.Err)
	}
	m.sel = clamp(m.ctrl.Board(), m.sel)
	if out.Refresh {
		cmd := m.loadCmd()
		return m, cmd
	}
	return m, nil
}

func (m appModel) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		if m.ctrl != nil {
			m.ctrl.Mutator().Close()
		}
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, k.Refresh):
		cmd := m.loadCmd()
		return m, cmd
	case key.Matches(msg, k.Variant):
		if m.ctrl != nil {
			m.ctrl.Mutator().Close()
		}
		m.ctrl = nil
		m.sel = selection{}
		if m.variant == board.Kanban {
			m.variant = board.Focus
		} else {
			m.variant = board.Kanban
		}
		cmd := m.loadCmd()
		return m, cmd
	case key.Matches(msg, k.Detail):
		m.showDetail = !m.showDetail
		return m, nil
	}
	if m.ctrl == nil {
		return m, nil
	}
	b := m.ctrl.Board()
	m.sel = clamp(b, m.sel)

	switch {
	case key.Matches(msg, k.Left):
		m.sel = clamp(b, selection{Col: m.sel.Col - 1, Item: m.sel.Item})
	case key.Matches(msg, k.Right):
		m.sel = clamp(b, selection{Col: m.sel.Col + 1, Item: m.sel.Item})
	case key.Matches(msg, k.Up):
		m.sel = clamp(b, selection{Col: m.sel.Col, Item: m.sel.Item - 1})
	case key.Matches(msg, k.Down):
		m.sel = clamp(b, selection{Col: m.sel.Col, Item: m.sel.Item + 1})
	case key.Matches(msg, k.MoveLeft):
		return m.begin(m.ctrl.Shift(m.sel.TaskID, -1))
	case key.Matches(msg, k.MoveRight):
		return m.begin(m.ctrl.Shift(m.sel.TaskID, 1))
	case key.Matches(msg, k.MoveUp):
		if m.sel.Item > 0 {
			return m.begin(m.ctrl.Reorder(m.sel.TaskID, m.sel.Item-1))
		}
	case key.Matches(msg, k.MoveDown):
		return m.begin(m.ctrl.Reorder(m.sel.TaskID, m.sel.Item+1))
	case key.Matches(msg, k.Focus):
		if b.Variant() != board.Focus {
			m.setStatus("space toggles focus on the focus board (press f)")
			return m, nil
		}
		col, _, _ := b.Locate(m.sel.TaskID)
		return m.begin(m.ctrl.SetFocus(m.sel.TaskID, col != board.FocusColumn))
	case key.Matches(msg, k.Clear):
		return m.begin(m.ctrl.Mutator().BeginClearFocus(m.sess.Backend()))
	}
	return m, nil
}

func (m appModel) begin(p *mutate.Pending, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.setError(err)
		return m, nil
	}
	if p == nil {
		return m, nil
	}
	m.status = ""
	m.sel = clamp(m.ctrl.Board(), m.sel)
	return m, m.persistCmd(p)
}

func (m *appModel) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *appModel) setError(err error) {
	switch {
	case errors.Is(err, mutate.ErrTaskPending):
		m.status = "still saving that card"
	case errors.Is(err, mutate.ErrNotFocus):
		m.status = "focus actions need the focus board (press f)"
	default:
		m.status = err.Error()
	}
	m.statusErr = true
}

func (m appModel) isFinalColumn(column string) bool {
	if m.cat == nil || m.variant != board.Kanban {
		return false
	}
	return m.cat.IsFinal(model.ID(column))
}

func (m appModel) View() string {
	var top string
	switch m.variant {
	case board.Focus:
		top = "Focus · " + string(m.sess.Today())
	default:
		top = "Kanban"
	}
	if m.loading {
		top += " · loading…"
	}
	if m.ctrl != nil {
		if n := m.ctrl.Mutator().PendingCount(); n > 0 {
			top += fmt.Sprintf(" · %d saving", n)
		}
	}
	header := titleBarStyle.Width(m.width).Render(top)

	footer := m.help.View(m.keys)
	statusLine := ""
	if m.status != "" {
		statusLine = m.status
		if m.statusErr {
			statusLine = statusErrStyle.Render(statusLine)
		}
	}
	bodyH := m.height - lipgloss.Height(header) - lipgloss.Height(footer) - 1
	if bodyH < 3 {
		bodyH = 3
	}

	var body string
	if m.ctrl == nil {
		body = normalizePane(styleMuted().Render("loading…"), m.width, bodyH)
	} else {
		boardW := m.width
		detailW := 0
		if m.showDetail {
			detailW = m.width / 3
			boardW = m.width - detailW - 1
		}
		r := boardRender{
			b:         m.ctrl.Board(),
			graph:     m.graph,
			isPending: m.ctrl.Mutator().IsPending,
			isFinal:   m.isFinalColumn,
		}
		body = r.render(m.sel, boardW, bodyH)
		if m.showDetail {
			body = lipgloss.JoinHorizontal(lipgloss.Top, body, " ", m.detailPane(detailW, bodyH))
		}
	}
	return strings.Join([]string{header, body, statusLine, footer}, "\n")
}

func (m appModel) detailPane(width, height int) string {
	t, ok := m.ctrl.Board().Task(m.sel.TaskID)
	if !ok {
		return normalizePane(styleMuted().Render("(no card selected)"), width, height)
	}
	md := detailMarkdown(t, m.graph, m.ctrl.Mutator().IsPending(t.ID))
	return normalizePane(renderMarkdown(md, width), width, height)
}
