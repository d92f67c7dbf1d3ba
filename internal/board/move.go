package board

import (
	"fmt"

	"taskboard/internal/model"
)

// MoveCommand relocates one task between (or within) columns. Indices address the board
// the command was computed from; callers must not cache them across board changes.
type MoveCommand struct {
	TaskID     model.ID `json:"taskId"`
	FromColumn string   `json:"fromColumn"`
	FromIndex  int      `json:"fromIndex"`
	ToColumn   string   `json:"toColumn"`
	ToIndex    int      `json:"toIndex"`
}

func (c MoveCommand) IsNoop() bool {
	return c.FromColumn == c.ToColumn && c.FromIndex == c.ToIndex
}

// CrossColumn reports whether the move changes the task's column (and therefore needs
// persisting). Same-column moves only reorder.
func (c MoveCommand) CrossColumn() bool { return c.FromColumn != c.ToColumn }

// InvalidMoveError reports a move that does not match the board it was applied to.
type InvalidMoveError struct {
	TaskID model.ID
	Column string
	Index  int
	Reason string
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("invalid move of task %s: %s (column %q, index %d)", e.TaskID, e.Reason, e.Column, e.Index)
}

// Move returns a new board with the task moved. A same-slot move returns the receiver.
// Cross-column moves also update the task record (status id, or board date on focus
// boards) so the board stays self-consistent until the next refetch.
func (b *Board) Move(cmd MoveCommand) (*Board, error) {
	if cmd.IsNoop() {
		return b, nil
	}
	fi := b.columnIndex(cmd.FromColumn)
	if fi < 0 {
		return nil, &InvalidMoveError{TaskID: cmd.TaskID, Column: cmd.FromColumn, Index: cmd.FromIndex, Reason: "unknown source column"}
	}
	from := b.columns[fi].TaskIDs
	if cmd.FromIndex < 0 || cmd.FromIndex >= len(from) || from[cmd.FromIndex] != cmd.TaskID {
		return nil, &InvalidMoveError{TaskID: cmd.TaskID, Column: cmd.FromColumn, Index: cmd.FromIndex, Reason: "stale source index"}
	}
	ti := b.columnIndex(cmd.ToColumn)
	if ti < 0 {
		return nil, &InvalidMoveError{TaskID: cmd.TaskID, Column: cmd.ToColumn, Index: cmd.ToIndex, Reason: "unknown destination column"}
	}
	limit := len(b.columns[ti].TaskIDs)
	if ti == fi {
		limit--
	}
	if cmd.ToIndex < 0 || cmd.ToIndex > limit {
		return nil, &InvalidMoveError{TaskID: cmd.TaskID, Column: cmd.ToColumn, Index: cmd.ToIndex, Reason: "destination index out of range"}
	}

	out := b.clone()
	src := out.columns[fi].TaskIDs
	out.columns[fi].TaskIDs = append(src[:cmd.FromIndex], src[cmd.FromIndex+1:]...)
	out.columns[ti].TaskIDs = insertID(out.columns[ti].TaskIDs, cmd.ToIndex, cmd.TaskID)

	if patch, ok := b.PatchFor(cmd); ok {
		out.tasks[cmd.TaskID] = patch.Apply(out.tasks[cmd.TaskID])
	}
	return out, nil
}

// PatchFor returns the partial task update that persists cmd's destination column.
// Same-column moves have no server-side meaning and return ok=false.
func (b *Board) PatchFor(cmd MoveCommand) (model.TaskPatch, bool) {
	if !cmd.CrossColumn() {
		return model.TaskPatch{}, false
	}
	switch b.variant {
	case Focus:
		switch cmd.ToColumn {
		case FocusColumn:
			d := b.today
			return model.TaskPatch{BoardDate: &d}, true
		case LibraryColumn:
			return model.TaskPatch{ClearBoardDate: true}, true
		}
		return model.TaskPatch{}, false
	default:
		sid := model.ID(cmd.ToColumn)
		return model.TaskPatch{StatusID: &sid}, true
	}
}

// CommandTo builds a move of taskID from wherever it currently sits. A negative index
// appends to the end of the destination column.
func (b *Board) CommandTo(taskID model.ID, toColumn string, toIndex int) (MoveCommand, error) {
	from, fromIdx, ok := b.Locate(taskID)
	if !ok {
		return MoveCommand{}, &InvalidMoveError{TaskID: taskID, Column: toColumn, Index: toIndex, Reason: "task not on board"}
	}
	ti := b.columnIndex(toColumn)
	if ti < 0 {
		return MoveCommand{}, &InvalidMoveError{TaskID: taskID, Column: toColumn, Index: toIndex, Reason: "unknown destination column"}
	}
	if toIndex < 0 {
		toIndex = len(b.columns[ti].TaskIDs)
		if from == toColumn {
			toIndex--
		}
	}
	return MoveCommand{
		TaskID:     taskID,
		FromColumn: from,
		FromIndex:  fromIdx,
		ToColumn:   toColumn,
		ToIndex:    toIndex,
	}, nil
}
