package board

import (
	"reflect"
	"strings"

	"taskboard/internal/catalog"
	"taskboard/internal/model"
)

type Variant string

const (
	// Kanban boards have one column per catalog status.
	Kanban Variant = "kanban"
	// Focus boards split a user's tasks into today's focus list and the library.
	Focus Variant = "focus"
)

const (
	FocusColumn   = "focus"
	LibraryColumn = "library"
)

type Column struct {
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	TaskIDs []model.ID `json:"taskIds"`
}

// Board is the partition of one task collection into columns. Boards are values: Move and
// the other transformations return a new *Board and leave the receiver untouched.
type Board struct {
	variant Variant
	today   model.Date
	columns []Column
	tasks   map[model.ID]model.Task
	dropped []model.ID
}

// Partition builds a kanban board with one column per catalog status, in catalog order.
// Tasks whose status is unknown land in the first column. With an empty catalog the
// board has no columns and holds no tasks. Records without an ID and repeats of an ID
// already placed are skipped and reported by Dropped.
func Partition(tasks []model.Task, cat *catalog.Catalog) *Board {
	b := &Board{variant: Kanban, tasks: map[model.ID]model.Task{}}
	if cat == nil || cat.Len() == 0 {
		return b
	}
	statuses := cat.Statuses()
	b.columns = make([]Column, 0, len(statuses))
	index := make(map[model.ID]int, len(statuses))
	for i, s := range statuses {
		label := strings.TrimSpace(s.Name)
		if label == "" {
			label = string(s.ID)
		}
		b.columns = append(b.columns, Column{ID: string(s.ID), Label: label, TaskIDs: []model.ID{}})
		index[s.ID] = i
	}

	for _, t := range tasks {
		if _, dup := b.tasks[t.ID]; dup || t.ID == "" {
			b.dropped = append(b.dropped, t.ID)
			continue
		}
		ci := 0
		if s, ok := cat.Resolve(t); ok {
			ci = index[s.ID]
		}
		b.columns[ci].TaskIDs = append(b.columns[ci].TaskIDs, t.ID)
		b.tasks[t.ID] = t.Clone()
	}
	return b
}

// PartitionFocus builds the daily board: tasks whose board date is today go to the focus
// column, everything else to the library. Records are skipped as in Partition.
func PartitionFocus(tasks []model.Task, today model.Date) *Board {
	b := &Board{
		variant: Focus,
		today:   today,
		columns: []Column{
			{ID: FocusColumn, Label: "Focus", TaskIDs: []model.ID{}},
			{ID: LibraryColumn, Label: "Library", TaskIDs: []model.ID{}},
		},
		tasks: map[model.ID]model.Task{},
	}
	for _, t := range tasks {
		if _, dup := b.tasks[t.ID]; dup || t.ID == "" {
			b.dropped = append(b.dropped, t.ID)
			continue
		}
		ci := 1
		if t.BoardDate != nil && *t.BoardDate == today {
			ci = 0
		}
		b.columns[ci].TaskIDs = append(b.columns[ci].TaskIDs, t.ID)
		b.tasks[t.ID] = t.Clone()
	}
	return b
}

func (b *Board) Variant() Variant { return b.variant }

// Dropped lists the IDs of records the partition skipped, in input order. A record with
// no ID contributes an empty entry.
func (b *Board) Dropped() []model.ID { return append([]model.ID(nil), b.dropped...) }

func (b *Board) Today() model.Date { return b.today }

// Len is the number of tasks on the board.
func (b *Board) Len() int { return len(b.tasks) }

// Columns returns a copy of the columns.
func (b *Board) Columns() []Column {
	out := make([]Column, len(b.columns))
	for i, c := range b.columns {
		out[i] = Column{ID: c.ID, Label: c.Label, TaskIDs: append([]model.ID{}, c.TaskIDs...)}
	}
	return out
}

func (b *Board) Column(id string) (Column, bool) {
	i := b.columnIndex(id)
	if i < 0 {
		return Column{}, false
	}
	c := b.columns[i]
	return Column{ID: c.ID, Label: c.Label, TaskIDs: append([]model.ID{}, c.TaskIDs...)}, true
}

func (b *Board) columnIndex(id string) int {
	for i := range b.columns {
		if b.columns[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) Task(id model.ID) (model.Task, bool) {
	t, ok := b.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

// Tasks returns every task in column order.
func (b *Board) Tasks() []model.Task {
	out := make([]model.Task, 0, len(b.tasks))
	for _, c := range b.columns {
		for _, id := range c.TaskIDs {
			out = append(out, b.tasks[id].Clone())
		}
	}
	return out
}

func (b *Board) ColumnTasks(columnID string) []model.Task {
	i := b.columnIndex(columnID)
	if i < 0 {
		return nil
	}
	out := make([]model.Task, 0, len(b.columns[i].TaskIDs))
	for _, id := range b.columns[i].TaskIDs {
		out = append(out, b.tasks[id].Clone())
	}
	return out
}

// Locate returns the column and index currently holding taskID.
func (b *Board) Locate(taskID model.ID) (string, int, bool) {
	for _, c := range b.columns {
		for i, id := range c.TaskIDs {
			if id == taskID {
				return c.ID, i, true
			}
		}
	}
	return "", 0, false
}

// Equal reports structural equality.
func (b *Board) Equal(o *Board) bool {
	if b == o {
		return true
	}
	if b == nil || o == nil {
		return false
	}
	return b.variant == o.variant &&
		b.today == o.today &&
		reflect.DeepEqual(b.columns, o.columns) &&
		reflect.DeepEqual(b.tasks, o.tasks)
}

func (b *Board) clone() *Board {
	out := &Board{
		variant: b.variant,
		today:   b.today,
		columns: make([]Column, len(b.columns)),
		tasks:   make(map[model.ID]model.Task, len(b.tasks)),
		dropped: b.dropped,
	}
	for i, c := range b.columns {
		out.columns[i] = Column{ID: c.ID, Label: c.Label, TaskIDs: append([]model.ID{}, c.TaskIDs...)}
	}
	for id, t := range b.tasks {
		out.tasks[id] = t.Clone()
	}
	return out
}

// Snapshot is an opaque copy of a board used for rollback.
type Snapshot struct {
	b *Board
}

func (b *Board) Snapshot() Snapshot { return Snapshot{b: b.clone()} }

// Restore returns a fresh board equal to the one the snapshot was taken from.
func Restore(s Snapshot) *Board {
	if s.b == nil {
		return &Board{variant: Kanban, tasks: map[model.ID]model.Task{}}
	}
	return s.b.clone()
}

// WithTask replaces the record of a task already on the board. Placement is unchanged.
func (b *Board) WithTask(t model.Task) *Board {
	if _, ok := b.tasks[t.ID]; !ok {
		return b
	}
	out := b.clone()
	out.tasks[t.ID] = t.Clone()
	return out
}

// Relocate puts taskID back into column at index (clamped), restoring record as its task
// data. It is used to undo a single move when other moves have landed since. ok is false
// when the task or column is no longer on the board.
func (b *Board) Relocate(taskID model.ID, column string, index int, record model.Task) (*Board, bool) {
	if _, ok := b.tasks[taskID]; !ok {
		return b, false
	}
	ci := b.columnIndex(column)
	if ci < 0 {
		return b, false
	}
	out := b.clone()
	for i := range out.columns {
		out.columns[i].TaskIDs = removeID(out.columns[i].TaskIDs, taskID)
	}
	ids := out.columns[ci].TaskIDs
	if index < 0 {
		index = 0
	}
	if index > len(ids) {
		index = len(ids)
	}
	out.columns[ci].TaskIDs = insertID(ids, index, taskID)
	out.tasks[taskID] = record.Clone()
	return out, true
}

func removeID(ids []model.ID, id model.ID) []model.ID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func insertID(ids []model.ID, at int, id model.ID) []model.ID {
	ids = append(ids, "")
	copy(ids[at+1:], ids[at:])
	ids[at] = id
	return ids
}
