package tui

import (
	"fmt"
	"strings"

	"taskboard/internal/deps"
	"taskboard/internal/model"
)

// detailMarkdown describes one task for the side pane.
func detailMarkdown(t model.Task, graph *deps.Graph, pending bool) string {
	var b strings.Builder
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(&b, "## %s\n\n", title)
	fmt.Fprintf(&b, "`#%s`", t.ID)
	if t.Priority != "" {
		fmt.Fprintf(&b, " · priority %s", t.Priority)
	}
	if t.DueDate != nil && *t.DueDate != "" {
		fmt.Fprintf(&b, " · due %s", *t.DueDate)
	}
	if t.BoardDate != nil && *t.BoardDate != "" {
		fmt.Fprintf(&b, " · on board %s", *t.BoardDate)
	}
	b.WriteString("\n\n")
	if pending {
		b.WriteString("_Saving…_\n\n")
	}
	if d := strings.TrimSpace(t.Description); d != "" {
		b.WriteString(d)
		b.WriteString("\n\n")
	}
	if graph != nil {
		if reasons := graph.BlockingReasons(t); len(reasons) > 0 {
			b.WriteString("**Blocked by**\n\n")
			for _, r := range reasons {
				fmt.Fprintf(&b, "- %s\n", r)
			}
		}
	}
	return b.String()
}
