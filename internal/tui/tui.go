// Package tui is the interactive board: kanban or daily focus, with optimistic card moves.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard/internal/board"
	"taskboard/internal/session"
)

func Run(ctx context.Context, sess *session.Session, variant board.Variant) error {
	applyColorProfilePreference()
	applyThemePreference()
	m := newAppModel(ctx, sess, variant)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
