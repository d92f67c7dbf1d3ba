package board

import "taskboard/internal/model"

// Location is a (column, index) slot as reported by a drag gesture.
type Location struct {
	ColumnID string `json:"droppableId"`
	Index    int    `json:"index"`
}

// DragResult is the raw outcome of a drag gesture. Destination is nil when the card was
// dropped outside every column.
type DragResult struct {
	TaskID      model.ID  `json:"draggableId"`
	Source      Location  `json:"source"`
	Destination *Location `json:"destination,omitempty"`
}

// ComputeMove turns a drag result into a move command against b. ok is false when the
// gesture does nothing (no destination, or dropped back into its own slot). A source slot
// that no longer holds the dragged task yields an *InvalidMoveError.
func ComputeMove(b *Board, r DragResult) (MoveCommand, bool, error) {
	if r.Destination == nil {
		return MoveCommand{}, false, nil
	}
	taskID := r.TaskID
	if taskID == "" {
		if c, ok := b.Column(r.Source.ColumnID); ok && r.Source.Index >= 0 && r.Source.Index < len(c.TaskIDs) {
			taskID = c.TaskIDs[r.Source.Index]
		}
	}
	cmd := MoveCommand{
		TaskID:     taskID,
		FromColumn: r.Source.ColumnID,
		FromIndex:  r.Source.Index,
		ToColumn:   r.Destination.ColumnID,
		ToIndex:    r.Destination.Index,
	}
	if cmd.IsNoop() {
		return MoveCommand{}, false, nil
	}
	c, ok := b.Column(cmd.FromColumn)
	if !ok || cmd.FromIndex < 0 || cmd.FromIndex >= len(c.TaskIDs) || c.TaskIDs[cmd.FromIndex] != cmd.TaskID {
		return MoveCommand{}, false, &InvalidMoveError{TaskID: cmd.TaskID, Column: cmd.FromColumn, Index: cmd.FromIndex, Reason: "stale source index"}
	}
	if _, ok := b.Column(cmd.ToColumn); !ok {
		return MoveCommand{}, false, &InvalidMoveError{TaskID: cmd.TaskID, Column: cmd.ToColumn, Index: cmd.ToIndex, Reason: "unknown destination column"}
	}
	return cmd, true, nil
}
