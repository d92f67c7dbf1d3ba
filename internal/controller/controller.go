// Package controller binds UI gestures (drag end, status dropdown, focus toggle) to the
// mutator, so every path shares one mutation pipeline and one failure policy.
package controller

import (
	"context"
	"errors"

	"taskboard/internal/board"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
)

var ErrNotKanban = errors.New("not a kanban board")

type Controller struct {
	m *mutate.Mutator
}

func New(m *mutate.Mutator) *Controller { return &Controller{m: m} }

func (c *Controller) Mutator() *mutate.Mutator { return c.m }

func (c *Controller) Board() *board.Board { return c.m.Board() }

// CanDrag reports whether the card may start a new move.
func (c *Controller) CanDrag(taskID model.ID) bool {
	if _, _, ok := c.m.Board().Locate(taskID); !ok {
		return false
	}
	return !c.m.IsPending(taskID)
}

// OnDragEnd handles a finished drag. A drop outside every column or back into the
// same slot returns nil, nil.
func (c *Controller) OnDragEnd(r board.DragResult) (*mutate.Pending, error) {
	cmd, ok, err := board.ComputeMove(c.m.Board(), r)
	if err != nil || !ok {
		return nil, err
	}
	return c.m.Begin(cmd)
}

// SetStatus moves taskID to the column of statusID, appended at the end. It is the
// non-drag path for kanban boards; a task already in that column is left alone.
func (c *Controller) SetStatus(taskID, statusID model.ID) (*mutate.Pending, error) {
	b := c.m.Board()
	if b.Variant() != board.Kanban {
		return nil, ErrNotKanban
	}
	if _, ok := b.Column(string(statusID)); !ok {
		return nil, mutate.NotFoundError{Kind: "status", ID: string(statusID)}
	}
	return c.changeColumn(b, taskID, string(statusID))
}

// SetFocus adds taskID to today's focus (true) or returns it to the library (false).
func (c *Controller) SetFocus(taskID model.ID, focused bool) (*mutate.Pending, error) {
	b := c.m.Board()
	if b.Variant() != board.Focus {
		return nil, mutate.ErrNotFocus
	}
	to := board.LibraryColumn
	if focused {
		to = board.FocusColumn
	}
	return c.changeColumn(b, taskID, to)
}

func (c *Controller) changeColumn(b *board.Board, taskID model.ID, column string) (*mutate.Pending, error) {
	from, _, ok := b.Locate(taskID)
	if !ok {
		return nil, mutate.NotFoundError{Kind: "task", ID: string(taskID)}
	}
	if from == column {
		return nil, nil
	}
	return c.moveTo(b, taskID, column, -1)
}

// Reorder moves taskID to index within its current column. Reorders are local only.
func (c *Controller) Reorder(taskID model.ID, index int) (*mutate.Pending, error) {
	b := c.m.Board()
	col, _, ok := b.Locate(taskID)
	if !ok {
		return nil, mutate.NotFoundError{Kind: "task", ID: string(taskID)}
	}
	return c.moveTo(b, taskID, col, index)
}

// Shift moves taskID by delta columns (negative is left), appended at the end.
func (c *Controller) Shift(taskID model.ID, delta int) (*mutate.Pending, error) {
	b := c.m.Board()
	col, _, ok := b.Locate(taskID)
	if !ok {
		return nil, mutate.NotFoundError{Kind: "task", ID: string(taskID)}
	}
	cols := b.Columns()
	at := -1
	for i := range cols {
		if cols[i].ID == col {
			at = i
		}
	}
	to := at + delta
	if to < 0 || to >= len(cols) || to == at {
		return nil, nil
	}
	return c.moveTo(b, taskID, cols[to].ID, -1)
}

func (c *Controller) moveTo(b *board.Board, taskID model.ID, column string, index int) (*mutate.Pending, error) {
	if _, _, ok := b.Locate(taskID); !ok {
		return nil, mutate.NotFoundError{Kind: "task", ID: string(taskID)}
	}
	if index >= 0 {
		if col, ok := b.Column(column); ok {
			limit := len(col.TaskIDs)
			if from, _, _ := b.Locate(taskID); from == column {
				limit--
			}
			if index > limit {
				index = limit
			}
		}
	}
	cmd, err := b.CommandTo(taskID, column, index)
	if err != nil {
		return nil, err
	}
	return c.m.Begin(cmd)
}

// Run persists p in the background; see mutate.Mutator.Run.
func (c *Controller) Run(ctx context.Context, p *mutate.Pending) <-chan mutate.Outcome {
	return c.m.Run(ctx, p)
}

// Apply runs p to completion on the calling goroutine. A nil p yields an Idle outcome.
func (c *Controller) Apply(ctx context.Context, p *mutate.Pending) mutate.Outcome {
	if p == nil {
		return mutate.Outcome{State: mutate.StateIdle}
	}
	return c.m.Resolve(ctx, p, p.Persist(ctx))
}
