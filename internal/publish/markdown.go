package publish

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"taskboard/internal/board"
	"taskboard/internal/catalog"
	"taskboard/internal/deps"
	"taskboard/internal/model"
)

// Snapshot is everything a rendered board page needs.
type Snapshot struct {
	Board   *board.Board
	Catalog *catalog.Catalog
	Graph   *deps.Graph
}

// RenderTaskMarkdown renders one task page.
func RenderTaskMarkdown(s Snapshot, taskID model.ID) (string, error) {
	if s.Board == nil {
		return "", fmt.Errorf("missing board")
	}
	t, ok := s.Board.Task(taskID)
	if !ok {
		return "", fmt.Errorf("task not found: %s", taskID)
	}

	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + titleOf(t))
	writeLn("")
	writeLn("## Meta")
	writeLn("")
	writeLn("- ID: " + string(t.ID))
	if t.ProjectID != "" {
		writeLn("- Project: " + string(t.ProjectID))
	}
	if name := s.statusName(t); name != "" {
		writeLn("- Status: " + name)
	}
	if col, _, ok := s.Board.Locate(t.ID); ok {
		writeLn("- Column: " + s.columnLabel(col))
	}
	if t.Priority != "" {
		writeLn("- Priority: " + string(t.Priority))
	}
	if t.DueDate != nil && *t.DueDate != "" {
		writeLn("- Due: " + string(*t.DueDate))
	}
	if t.BoardDate != nil && *t.BoardDate != "" {
		writeLn("- On board: " + string(*t.BoardDate))
	}
	if names := assigneeNames(t.Assignees); len(names) > 0 {
		writeLn("- Assignees: " + strings.Join(names, ", "))
	}

	if desc := strings.TrimSpace(t.Description); desc != "" {
		writeLn("")
		writeLn("## Description")
		writeLn("")
		writeLn(desc)
	}

	if s.Graph != nil && len(t.Dependencies) > 0 {
		writeLn("")
		writeLn("## Depends on")
		writeLn("")
		for _, p := range s.Graph.Predecessors(t) {
			mark := " "
			if p.Resolved {
				mark = "x"
			}
			line := fmt.Sprintf("- [%s] %s", mark, p.Title)
			if p.Status != "" {
				line += " (" + p.Status + ")"
			}
			if _, ok := s.Board.Task(p.ID); ok {
				line = fmt.Sprintf("- [%s] [%s](%s)", mark, p.Title, taskFile(p.ID))
				if p.Status != "" {
					line += " (" + p.Status + ")"
				}
			}
			writeLn(line)
		}
	}

	return buf.String(), nil
}

// RenderBoardIndexMarkdown renders the board as one section per column, linking each task page.
func RenderBoardIndexMarkdown(s Snapshot) (string, error) {
	if s.Board == nil {
		return "", fmt.Errorf("missing board")
	}

	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	title := "Kanban board"
	if s.Board.Variant() == board.Focus {
		title = "Focus board"
	}
	if today := s.Board.Today(); today != "" {
		title += " (" + string(today) + ")"
	}
	writeLn("# " + title)

	for _, col := range s.Board.Columns() {
		tasks := s.Board.ColumnTasks(col.ID)
		writeLn("")
		writeLn(fmt.Sprintf("## %s (%d)", col.Label, len(tasks)))
		writeLn("")
		if len(tasks) == 0 {
			writeLn("_empty_")
			continue
		}
		for _, t := range tasks {
			line := fmt.Sprintf("- [%s](%s)", titleOf(t), taskFile(t.ID))
			if s.Graph != nil && s.Graph.IsBlocked(t) {
				line += " (blocked)"
			}
			writeLn(line)
		}
	}

	return buf.String(), nil
}

func (s Snapshot) statusName(t model.Task) string {
	if s.Catalog != nil {
		if st, ok := s.Catalog.Resolve(t); ok {
			return st.Name
		}
	}
	if _, slug := t.StatusKey(); slug != "" {
		return slug
	}
	return ""
}

func (s Snapshot) columnLabel(id string) string {
	if c, ok := s.Board.Column(id); ok && c.Label != "" {
		return c.Label
	}
	return id
}

func titleOf(t model.Task) string {
	if title := strings.TrimSpace(t.Title); title != "" {
		return title
	}
	return "#" + string(t.ID)
}

func assigneeNames(as []model.Assignee) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = string(a.ID)
		}
		if name != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
