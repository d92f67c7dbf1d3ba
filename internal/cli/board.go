package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskboard/internal/board"
	"taskboard/internal/catalog"
	"taskboard/internal/controller"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
	"taskboard/internal/publish"
	"taskboard/internal/session"
)

type loadedBoard struct {
	sess   *session.Session
	loaded session.Loaded
	close  func()
}

func loadBoard(cmd *cobra.Command, app *App, variant board.Variant) (*loadedBoard, error) {
	sess, closeFn, err := openSession(cmd.Context(), app)
	if err != nil {
		return nil, err
	}
	loaded, err := sess.Load(ctxOf(cmd), variant)
	if err != nil {
		closeFn()
		return nil, err
	}
	return &loadedBoard{sess: sess, loaded: loaded, close: closeFn}, nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseVariant(s string) (board.Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(board.Kanban):
		return board.Kanban, nil
	case string(board.Focus):
		return board.Focus, nil
	default:
		return "", fmt.Errorf("unknown board %q (want kanban|focus)", s)
	}
}

func newStatusesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "statuses",
		Short: "List task statuses in board column order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closeFn, err := openSession(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeFn()
			cat, err := catalog.Load(ctxOf(cmd), sess.Backend(), app.Cfg.Rules())
			if err != nil {
				return writeErr(cmd, err)
			}
			type statusOut struct {
				model.Status
				Final bool `json:"final"`
			}
			out := make([]statusOut, 0, cat.Len())
			for _, s := range cat.Statuses() {
				out = append(out, statusOut{Status: s, Final: cat.IsFinal(s.ID)})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
}

func newBoardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Board commands",
	}
	cmd.AddCommand(newBoardShowCmd(app))
	cmd.AddCommand(newBoardMoveCmd(app))
	cmd.AddCommand(newBoardReorderCmd(app))
	cmd.AddCommand(newBoardPublishCmd(app))
	return cmd
}

func newBoardShowCmd(app *App) *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the board as columns of tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseVariant(variant)
			if err != nil {
				return writeErr(cmd, err)
			}
			return showBoard(cmd, app, v)
		},
	}
	cmd.Flags().StringVar(&variant, "board", "kanban", "Board: kanban|focus")
	return cmd
}

// showBoard prints the board envelope. When the backend is unreachable the degraded empty
// board is still printed, with the failure under meta.error, and the command exits non-zero.
func showBoard(cmd *cobra.Command, app *App, v board.Variant) error {
	sess, closeFn, err := openSession(cmd.Context(), app)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer closeFn()
	loaded, loadErr := sess.Load(ctxOf(cmd), v)
	if loaded.Board == nil {
		return writeErr(cmd, loadErr)
	}
	blocked := map[model.ID][]string{}
	for _, t := range loaded.Board.Tasks() {
		if reasons := loaded.Graph.BlockingReasons(t); len(reasons) > 0 {
			blocked[t.ID] = reasons
		}
	}
	meta := map[string]any{"blocked": blocked}
	if loadErr != nil {
		meta["error"] = loadErr.Error()
	}
	if err := writeOut(cmd, app, map[string]any{
		"data": loaded.Board.View(),
		"meta": meta,
	}); err != nil {
		return err
	}
	if loadErr != nil {
		return writeErr(cmd, loadErr)
	}
	return nil
}

type moveOut struct {
	TaskID    model.ID    `json:"taskId"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Index     int         `json:"index"`
	State     string      `json:"state"`
	Refreshed bool        `json:"refreshed"`
	Task      *model.Task `json:"task,omitempty"`
}

// settle runs p to completion and reports it. A rollback is an error.
func settle(cmd *cobra.Command, app *App, ctrl *controller.Controller, p *mutate.Pending, taskID model.ID) error {
	out := ctrl.Apply(ctxOf(cmd), p)
	if out.State == mutate.StateRolledBack {
		return writeErr(cmd, out.Err)
	}
	res := moveOut{
		TaskID:    taskID,
		From:      out.Command.FromColumn,
		To:        out.Command.ToColumn,
		Index:     out.Command.ToIndex,
		State:     out.State.String(),
		Refreshed: out.Refreshed,
	}
	if out.State == mutate.StateIdle {
		res.State = "unchanged"
	}
	if t, ok := ctrl.Board().Task(taskID); ok {
		res.Task = &t
	}
	return writeOut(cmd, app, map[string]any{"data": res})
}

func newBoardMoveCmd(app *App) *cobra.Command {
	var to string
	var index int
	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task to another status column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(to) == "" {
				return writeErr(cmd, fmt.Errorf("missing --to"))
			}
			lb, err := loadBoard(cmd, app, board.Kanban)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer lb.close()

			taskID := model.ID(strings.TrimSpace(args[0]))
			if _, ok := lb.loaded.Board.Task(taskID); !ok {
				return writeErr(cmd, errNotFound("task", string(taskID)))
			}
			status, ok := lb.loaded.Catalog.ByID(model.ID(to))
			if !ok {
				status, ok = lb.loaded.Catalog.BySlug(to)
			}
			if !ok {
				return writeErr(cmd, errNotFound("status", to))
			}

			ctrl := controller.New(lb.sess.Mutator(lb.loaded.Board))
			var p *mutate.Pending
			if index < 0 {
				p, err = ctrl.SetStatus(taskID, status.ID)
			} else {
				p, err = ctrl.OnDragEnd(dragTo(lb.loaded.Board, taskID, string(status.ID), index))
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return settle(cmd, app, ctrl, p, taskID)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Destination status (id or name)")
	cmd.Flags().IntVar(&index, "index", -1, "Position in the destination column (default: end)")
	return cmd
}

// dragTo describes a move of taskID as the drag gesture that would produce it.
func dragTo(b *board.Board, taskID model.ID, column string, index int) board.DragResult {
	from, idx, _ := b.Locate(taskID)
	if c, ok := b.Column(column); ok {
		limit := len(c.TaskIDs)
		if from == column {
			limit--
		}
		if index > limit {
			index = limit
		}
	}
	return board.DragResult{
		TaskID:      taskID,
		Source:      board.Location{ColumnID: from, Index: idx},
		Destination: &board.Location{ColumnID: column, Index: index},
	}
}

func newBoardReorderCmd(app *App) *cobra.Command {
	var index int
	var variant string
	cmd := &cobra.Command{
		Use:   "reorder <task-id>",
		Short: "Change a task's position within its column (stored locally)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseVariant(variant)
			if err != nil {
				return writeErr(cmd, err)
			}
			if index < 0 {
				return writeErr(cmd, fmt.Errorf("--index must be >= 0"))
			}
			lb, err := loadBoard(cmd, app, v)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer lb.close()

			taskID := model.ID(strings.TrimSpace(args[0]))
			ctrl := controller.New(lb.sess.Mutator(lb.loaded.Board))
			p, err := ctrl.Reorder(taskID, index)
			if err != nil {
				return writeErr(cmd, err)
			}
			return settle(cmd, app, ctrl, p, taskID)
		},
	}
	cmd.Flags().IntVar(&index, "index", -1, "New position (0-based)")
	cmd.Flags().StringVar(&variant, "board", "kanban", "Board: kanban|focus")
	return cmd
}

func newBoardPublishCmd(app *App) *cobra.Command {
	var variant, to string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write the board as Markdown files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseVariant(variant)
			if err != nil {
				return writeErr(cmd, err)
			}
			lb, err := loadBoard(cmd, app, v)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer lb.close()
			res, err := publish.WriteBoard(publish.Snapshot{
				Board:   lb.loaded.Board,
				Catalog: lb.loaded.Catalog,
				Graph:   lb.loaded.Graph,
			}, to, publish.WriteOptions{Overwrite: overwrite})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
	cmd.Flags().StringVar(&variant, "board", "kanban", "Board: kanban|focus")
	cmd.Flags().StringVar(&to, "to", "", "Output directory")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	return cmd
}
