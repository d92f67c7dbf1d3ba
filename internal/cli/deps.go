package cli

import (
	"github.com/spf13/cobra"

	"taskboard/internal/board"
	"taskboard/internal/model"
)

func newDepsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Dependency commands",
	}
	cmd.AddCommand(newDepsBlockedCmd(app))
	cmd.AddCommand(newDepsReadyCmd(app))
	cmd.AddCommand(newDepsCyclesCmd(app))
	return cmd
}

type blockedOut struct {
	ID      model.ID `json:"id"`
	Title   string   `json:"title"`
	Reasons []string `json:"blockedBy"`
}

func newDepsBlockedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "blocked",
		Short: "List tasks waiting on an unfinished predecessor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := loadBoard(cmd, app, board.Kanban)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer lb.close()
			out := []blockedOut{}
			for _, t := range lb.loaded.Tasks {
				if !lb.loaded.Graph.IsBlocked(t) {
					continue
				}
				out = append(out, blockedOut{ID: t.ID, Title: t.Title, Reasons: lb.loaded.Graph.BlockingReasons(t)})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
}

func newDepsReadyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "List unfinished tasks with nothing blocking them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := loadBoard(cmd, app, board.Kanban)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer lb.close()
			return writeOut(cmd, app, map[string]any{"data": lb.loaded.Graph.Ready()})
		},
	}
}

func newDepsCyclesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "Detect dependency cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := loadBoard(cmd, app, board.Kanban)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer lb.close()
			return writeOut(cmd, app, map[string]any{"data": lb.loaded.Graph.Cycles()})
		},
	}
}
