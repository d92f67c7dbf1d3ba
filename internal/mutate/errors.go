package mutate

import (
	"errors"
	"fmt"

	"taskboard/internal/model"
)

var (
	// ErrTaskPending is returned when a task already has a move in flight.
	ErrTaskPending = errors.New("task has a pending move")
	ErrClosed      = errors.New("mutator closed")
	ErrNotFocus    = errors.New("not a focus board")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// PersistenceError is a failed PATCH/POST behind an optimistic move. The board has already
// been rolled back when callers see it.
type PersistenceError struct {
	TaskID model.ID
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s for task %s failed: %v", e.Op, e.TaskID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
