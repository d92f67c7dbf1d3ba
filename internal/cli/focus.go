package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"taskboard/internal/board"
	"taskboard/internal/controller"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
)

func newFocusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Daily focus board commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print today's focus list and the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showBoard(cmd, app, board.Focus)
		},
	})
	cmd.AddCommand(newFocusSetCmd(app, "add", "Put a task on today's focus list", true))
	cmd.AddCommand(newFocusSetCmd(app, "remove", "Return a task to the library", false))
	cmd.AddCommand(newFocusClearCmd(app))
	return cmd
}

func newFocusSetCmd(app *App, use, short string, focused bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := loadBoard(cmd, app, board.Focus)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer lb.close()

			taskID := model.ID(strings.TrimSpace(args[0]))
			if _, ok := lb.loaded.Board.Task(taskID); !ok {
				return writeErr(cmd, errNotFound("task", string(taskID)))
			}
			ctrl := controller.New(lb.sess.Mutator(lb.loaded.Board))
			p, err := ctrl.SetFocus(taskID, focused)
			if err != nil {
				return writeErr(cmd, err)
			}
			return settle(cmd, app, ctrl, p, taskID)
		},
	}
}

func newFocusClearCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Move every focus task back to the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := loadBoard(cmd, app, board.Focus)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer lb.close()

			m := lb.sess.Mutator(lb.loaded.Board)
			out, err := m.ClearFocus(ctxOf(cmd), lb.sess.Backend())
			if err != nil {
				return writeErr(cmd, err)
			}
			if out.State == mutate.StateRolledBack {
				return writeErr(cmd, out.Err)
			}
			cleared := out.TaskIDs
			if cleared == nil {
				cleared = []model.ID{}
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"cleared": cleared,
				"state":   out.State.String(),
			}})
		},
	}
}
