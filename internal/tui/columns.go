package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"taskboard/internal/board"
	"taskboard/internal/deps"
	"taskboard/internal/model"
)

const pendingMarker = "…"

type selection struct {
	Col  int
	Item int
	// TaskID keeps the cursor on the same card across moves, refetches and rollbacks.
	TaskID model.ID
}

// clamp pins sel to a real slot of b, preferring the card it last pointed at.
func clamp(b *board.Board, sel selection) selection {
	cols := b.Columns()
	if len(cols) == 0 {
		return selection{Item: -1}
	}
	if sel.TaskID != "" {
		if col, idx, ok := b.Locate(sel.TaskID); ok {
			for ci := range cols {
				if cols[ci].ID == col {
					sel.Col, sel.Item = ci, idx
				}
			}
		} else {
			sel.TaskID = ""
		}
	}
	if sel.Col < 0 {
		sel.Col = 0
	}
	if sel.Col >= len(cols) {
		sel.Col = len(cols) - 1
	}
	n := len(cols[sel.Col].TaskIDs)
	if n == 0 {
		sel.Item = -1
		sel.TaskID = ""
		return sel
	}
	if sel.Item < 0 {
		sel.Item = 0
	}
	if sel.Item >= n {
		sel.Item = n - 1
	}
	sel.TaskID = cols[sel.Col].TaskIDs[sel.Item]
	return sel
}

type cardState struct {
	pending bool
	blocked bool
	final   bool
}

type boardRender struct {
	b     *board.Board
	graph *deps.Graph
	// isPending reports in-flight cards; they render muted and refuse moves.
	isPending func(model.ID) bool
	isFinal   func(column string) bool
}

func (r boardRender) state(column string, t model.Task) cardState {
	st := cardState{}
	if r.isPending != nil {
		st.pending = r.isPending(t.ID)
	}
	if r.graph != nil {
		st.blocked = r.graph.IsBlocked(t)
	}
	if r.isFinal != nil {
		st.final = r.isFinal(column)
	}
	return st
}

func (r boardRender) render(sel selection, width, height int) string {
	cols := r.b.Columns()
	n := len(cols)
	if n == 0 {
		return normalizePane(styleMuted().Render("(no columns: status catalog unavailable)"), width, height)
	}
	sel = clamp(r.b, sel)

	gap := 2
	colW := (width - gap*(n-1)) / n
	if colW < 12 {
		colW = 12
	}
	rendered := make([]string, 0, n*2)
	for i, c := range cols {
		if i > 0 {
			rendered = append(rendered, strings.Repeat(" ", gap))
		}
		rendered = append(rendered, r.column(c, i == sel.Col, sel, colW, height))
	}
	return normalizePane(lipgloss.JoinHorizontal(lipgloss.Top, rendered...), width, height)
}

func (r boardRender) column(c board.Column, active bool, sel selection, colW, height int) string {
	head := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg)
	if active {
		head = head.Foreground(colorSelectedFg).Background(colorSelectedBg)
	}
	lines := []string{head.Width(colW).Render(fitWidth(fmt.Sprintf("%s (%d)", c.Label, len(c.TaskIDs)), colW))}
	if len(c.TaskIDs) == 0 {
		lines = append(lines, styleMuted().Render("(empty)"))
		return normalizePane(strings.Join(lines, "\n"), colW, height)
	}
	lines = append(lines, "")
	for i, id := range c.TaskIDs {
		t, ok := r.b.Task(id)
		if !ok {
			continue
		}
		selected := active && sel.TaskID == id
		lines = append(lines, strings.Split(r.card(t, r.state(c.ID, t), selected, colW), "\n")...)
		if i < len(c.TaskIDs)-1 {
			lines = append(lines, styleMuted().Render(" "+strings.Repeat("─", max(colW-2, 0))+" "))
		}
	}
	return normalizePane(strings.Join(lines, "\n"), colW, height)
}

func (r boardRender) card(t model.Task, st cardState, selected bool, colW int) string {
	inner := max(colW-2, 1)
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "(untitled)"
	}
	prefix := "  "
	if st.pending {
		prefix = pendingMarker + " "
	}
	titleStyle := lipgloss.NewStyle().Bold(true)
	switch {
	case selected:
		titleStyle = titleStyle.Foreground(colorSelectedFg).Background(colorSelectedBg)
	case st.pending:
		titleStyle = styleMuted().Italic(true)
	case st.final:
		titleStyle = faintIfDark(lipgloss.NewStyle()).Foreground(colorMuted).Strikethrough(true)
	}

	var out []string
	for i, ln := range wrapWords(title, inner-2) {
		p := "  "
		if i == 0 {
			p = prefix
		}
		out = append(out, titleStyle.Render(p+ln))
	}
	if meta := metaLine(t, st, selected); meta != "" {
		out = append(out, "  "+meta)
	}

	box := lipgloss.NewStyle().Width(colW).Padding(0, 1)
	if selected {
		box = box.Background(colorSelectedBg)
	}
	return box.Render(normalizePane(strings.Join(out, "\n"), inner, 0))
}

func metaLine(t model.Task, st cardState, selected bool) string {
	var parts []string
	add := func(style lipgloss.Style, s string) {
		if selected {
			style = style.Background(colorSelectedBg)
		}
		parts = append(parts, style.Render(s))
	}
	if st.blocked {
		add(metaBlockedStyle, "blocked")
	}
	if t.Priority != "" {
		add(metaPriorityStyle, "p"+string(t.Priority))
	}
	if t.DueDate != nil && *t.DueDate != "" {
		add(metaDueStyle, "due "+string(*t.DueDate))
	}
	line := strings.Join(parts, " ")
	if xansi.StringWidth(line) == 0 {
		return ""
	}
	return line
}
