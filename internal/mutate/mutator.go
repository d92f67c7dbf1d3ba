// Package mutate applies board moves optimistically and reconciles them with the backend.
//
// Every move goes through the same lifecycle: Begin applies it to the in-memory board and
// marks the task Pending, Persist issues the backend call, and Resolve commits or rolls
// back. Begin and Resolve are synchronous and cheap; only Persist does I/O, so UI loops can
// run Persist off-thread and feed the result back into Resolve.
package mutate

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"taskboard/internal/board"
	"taskboard/internal/logging"
	"taskboard/internal/model"
)

type State int

const (
	StateIdle State = iota
	StatePending
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// Persister saves a partial task update and returns the stored record.
type Persister interface {
	PatchTask(ctx context.Context, id model.ID, patch model.TaskPatch) (model.Task, error)
}

// FocusClearer clears the board date of every focus task of the current user.
type FocusClearer interface {
	ClearMyFocus(ctx context.Context) error
}

// OrderRecorder keeps intra-column order outside the backend. b is the board the move
// was computed against.
type OrderRecorder interface {
	RecordMove(ctx context.Context, b *board.Board, cmd board.MoveCommand) error
}

// Policy decides when the caller's refresh callback runs after a move resolves.
type Policy struct {
	RefreshOnCommit   bool
	RefreshOnRollback bool
}

var (
	// KanbanPolicy refetches the task list after a successful move.
	KanbanPolicy = Policy{RefreshOnCommit: true}
	// FocusPolicy trusts the optimistic state on success and refetches after a failure.
	FocusPolicy = Policy{RefreshOnRollback: true}
)

func PolicyFor(v board.Variant) Policy {
	if v == board.Focus {
		return FocusPolicy
	}
	return KanbanPolicy
}

// Outcome is the resolution of one Pending mutation.
type Outcome struct {
	TaskIDs []model.ID
	Command board.MoveCommand
	State   State
	// Err is a *PersistenceError when State is StateRolledBack.
	Err error
	// Refresh is set when the policy asks for a refetch. Refreshed reports whether the
	// configured refresh callback ran; RefreshErr is its result.
	Refresh    bool
	Refreshed  bool
	RefreshErr error
	// Ignored is set for results that arrived after Close or for an unknown mutation.
	Ignored bool
}

type Option func(*Mutator)

func WithPolicy(p Policy) Option { return func(m *Mutator) { m.policy = p } }

// WithRefresh installs the callback run when the policy asks for a refetch. Without it,
// callers act on Outcome.Refresh themselves.
func WithRefresh(fn func(ctx context.Context) error) Option {
	return func(m *Mutator) { m.refresh = fn }
}

// WithNotifier receives every non-ignored outcome, after the board has been updated.
func WithNotifier(fn func(Outcome)) Option { return func(m *Mutator) { m.notify = fn } }

func WithOrderRecorder(r OrderRecorder) Option { return func(m *Mutator) { m.order = r } }

func WithLogger(l *logrus.Entry) Option {
	return func(m *Mutator) {
		if l != nil {
			m.log = l
		}
	}
}

// Mutator owns one board and every in-flight move against it. It is safe for concurrent
// use; the board itself is only ever replaced, never modified in place.
type Mutator struct {
	mu      sync.Mutex
	board   *board.Board
	gen     uint64
	pending map[model.ID]*Pending
	closed  bool

	persister Persister
	policy    Policy
	refresh   func(ctx context.Context) error
	notify    func(Outcome)
	order     OrderRecorder
	log       *logrus.Entry

	wg sync.WaitGroup
}

func New(b *board.Board, persister Persister, opts ...Option) *Mutator {
	m := &Mutator{
		board:     b,
		pending:   map[model.ID]*Pending{},
		persister: persister,
		policy:    PolicyFor(b.Variant()),
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Board returns the current (possibly optimistic) board.
func (m *Mutator) Board() *board.Board {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.board
}

func (m *Mutator) Policy() Policy { return m.policy }

func (m *Mutator) IsPending(taskID model.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[taskID]
	return ok
}

func (m *Mutator) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// origin is where a task sat before a mutation moved it.
type origin struct {
	column string
	index  int
	record model.Task
}

// Pending is one in-flight mutation: a single-task move, or a bulk focus clear.
type Pending struct {
	m *Mutator

	Command board.MoveCommand
	Patch   model.TaskPatch
	TaskIDs []model.ID

	persist  bool
	clearer  FocusClearer
	before   *board.Board
	snapshot board.Snapshot
	origins  map[model.ID]origin
	gen      uint64

	result *model.Task
}

// Persisted reports whether the mutation needs a backend call. Reorder-only moves don't.
func (p *Pending) Persisted() bool { return p.persist }

// Begin applies cmd to the board and marks the task Pending. It returns nil, nil for a
// no-op move, ErrTaskPending when the task already has a move in flight, and the board's
// *InvalidMoveError for a move that does not match the current board.
func (m *Mutator) Begin(cmd board.MoveCommand) (*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if cmd.IsNoop() {
		return nil, nil
	}
	if _, busy := m.pending[cmd.TaskID]; busy {
		return nil, ErrTaskPending
	}
	prev := m.board
	next, err := prev.Move(cmd)
	if err != nil {
		return nil, err
	}
	record, _ := prev.Task(cmd.TaskID)
	patch, persist := prev.PatchFor(cmd)

	m.gen++
	p := &Pending{
		m:        m,
		Command:  cmd,
		Patch:    patch,
		TaskIDs:  []model.ID{cmd.TaskID},
		persist:  persist,
		before:   prev,
		snapshot: prev.Snapshot(),
		origins:  map[model.ID]origin{cmd.TaskID: {column: cmd.FromColumn, index: cmd.FromIndex, record: record}},
		gen:      m.gen,
	}
	m.board = next
	m.pending[cmd.TaskID] = p

	m.log.WithFields(logrus.Fields{
		"task_id": cmd.TaskID,
		"from":    cmd.FromColumn,
		"to":      cmd.ToColumn,
		"state":   StatePending.String(),
	}).Debug("move applied")
	return p, nil
}

// BeginClearFocus moves every focus task to the library and marks them all Pending until
// the bulk clear resolves. It returns nil, nil when the focus column is empty.
func (m *Mutator) BeginClearFocus(clearer FocusClearer) (*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.board.Variant() != board.Focus {
		return nil, ErrNotFocus
	}
	col, _ := m.board.Column(board.FocusColumn)
	if len(col.TaskIDs) == 0 {
		return nil, nil
	}
	for _, id := range col.TaskIDs {
		if _, busy := m.pending[id]; busy {
			return nil, ErrTaskPending
		}
	}

	prev := m.board
	next := prev
	origins := make(map[model.ID]origin, len(col.TaskIDs))
	for i, id := range col.TaskIDs {
		record, _ := prev.Task(id)
		origins[id] = origin{column: board.FocusColumn, index: i, record: record}
		cmd, err := next.CommandTo(id, board.LibraryColumn, -1)
		if err != nil {
			return nil, err
		}
		if next, err = next.Move(cmd); err != nil {
			return nil, err
		}
	}

	m.gen++
	p := &Pending{
		m:        m,
		TaskIDs:  col.TaskIDs,
		Patch:    model.TaskPatch{ClearBoardDate: true},
		persist:  true,
		clearer:  clearer,
		before:   prev,
		snapshot: prev.Snapshot(),
		origins:  origins,
		gen:      m.gen,
	}
	m.board = next
	for _, id := range col.TaskIDs {
		m.pending[id] = p
	}
	m.log.WithField("tasks", len(col.TaskIDs)).Debug("focus clear applied")
	return p, nil
}

// Persist performs the backend call for p. It is the only step that blocks; it does not
// touch the board.
func (p *Pending) Persist(ctx context.Context) error {
	m := p.m
	if p.clearer != nil {
		return p.clearer.ClearMyFocus(ctx)
	}
	if !p.persist {
		m.recordOrder(ctx, p)
		return nil
	}
	if m.persister == nil {
		return errors.New("no persister configured")
	}
	task, err := m.persister.PatchTask(ctx, p.Command.TaskID, p.Patch)
	if err != nil {
		return err
	}
	p.result = &task
	m.recordOrder(ctx, p)
	return nil
}

func (m *Mutator) recordOrder(ctx context.Context, p *Pending) {
	if m.order == nil || p.before == nil {
		return
	}
	if err := m.order.RecordMove(ctx, p.before, p.Command); err != nil {
		m.log.WithError(err).WithField("task_id", p.Command.TaskID).Warn("record local order")
	}
}

// Resolve settles p with the result of Persist. On success the optimistic state stays; on
// failure the board is rolled back. When no other mutation touched the board since p
// began, rollback restores the whole pre-move snapshot; otherwise only p's tasks are
// returned to where they were, so concurrent moves of other tasks survive.
func (m *Mutator) Resolve(ctx context.Context, p *Pending, err error) Outcome {
	if p == nil {
		return Outcome{State: StateIdle, Ignored: true}
	}
	out := Outcome{TaskIDs: p.TaskIDs, Command: p.Command}

	m.mu.Lock()
	if m.closed || len(p.TaskIDs) == 0 || m.pending[p.TaskIDs[0]] != p {
		m.mu.Unlock()
		out.Ignored = true
		m.log.WithField("task_id", p.Command.TaskID).Debug("late result ignored")
		return out
	}
	for _, id := range p.TaskIDs {
		delete(m.pending, id)
	}

	if err == nil {
		out.State = StateCommitted
		if p.result != nil && p.result.ID == p.Command.TaskID {
			if next := m.board.WithTask(*p.result); next != m.board {
				m.board = next
				m.gen++
			}
		}
		out.Refresh = m.policy.RefreshOnCommit && p.persist
	} else {
		out.State = StateRolledBack
		out.Err = &PersistenceError{TaskID: p.Command.TaskID, Op: p.op(), Err: err}
		m.rollback(p)
		out.Refresh = m.policy.RefreshOnRollback
	}
	refresh := m.refresh
	notify := m.notify
	m.mu.Unlock()

	entry := m.log.WithFields(logrus.Fields{
		"task_id": p.Command.TaskID,
		"from":    p.Command.FromColumn,
		"to":      p.Command.ToColumn,
		"state":   out.State.String(),
	})
	if out.Err != nil {
		entry.WithError(err).Warn("move rolled back")
	} else {
		entry.Debug("move committed")
	}

	if out.Refresh && refresh != nil {
		out.Refreshed = true
		out.RefreshErr = refresh(ctx)
		if out.RefreshErr != nil {
			m.log.WithError(out.RefreshErr).Warn("refresh after move")
		}
	}
	if notify != nil {
		notify(out)
	}
	return out
}

func (p *Pending) op() string {
	if p.clearer != nil {
		return "clear focus"
	}
	return "update " + p.Patch.String()
}

// rollback must be called with m.mu held.
func (m *Mutator) rollback(p *Pending) {
	if m.gen == p.gen {
		m.board = board.Restore(p.snapshot)
		m.gen++
		return
	}
	next := m.board
	for _, id := range p.TaskIDs {
		o := p.origins[id]
		if b, ok := next.Relocate(id, o.column, o.index, o.record); ok {
			next = b
		}
	}
	m.board = next
	m.gen++
}

// Run persists and resolves p in a goroutine. The channel yields the outcome and closes;
// for a nil p it is closed immediately.
func (m *Mutator) Run(ctx context.Context, p *Pending) <-chan Outcome {
	ch := make(chan Outcome, 1)
	if p == nil {
		close(ch)
		return ch
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(ch)
		err := p.Persist(ctx)
		ch <- m.Resolve(ctx, p, err)
	}()
	return ch
}

// Move is Begin followed by Run.
func (m *Mutator) Move(ctx context.Context, cmd board.MoveCommand) (<-chan Outcome, error) {
	p, err := m.Begin(cmd)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx, p), nil
}

// Apply runs a move to completion on the calling goroutine. A no-op move yields an Idle
// outcome.
func (m *Mutator) Apply(ctx context.Context, cmd board.MoveCommand) (Outcome, error) {
	p, err := m.Begin(cmd)
	if err != nil {
		return Outcome{}, err
	}
	if p == nil {
		return Outcome{Command: cmd, State: StateIdle}, nil
	}
	return m.Resolve(ctx, p, p.Persist(ctx)), nil
}

// ClearFocus runs a bulk focus clear to completion on the calling goroutine.
func (m *Mutator) ClearFocus(ctx context.Context, clearer FocusClearer) (Outcome, error) {
	p, err := m.BeginClearFocus(clearer)
	if err != nil {
		return Outcome{}, err
	}
	if p == nil {
		return Outcome{State: StateIdle}, nil
	}
	return m.Resolve(ctx, p, p.Persist(ctx)), nil
}

// Replace installs a freshly fetched board. Moves still in flight are re-applied on top
// of it so their cards keep the optimistic position until they resolve.
func (m *Mutator) Replace(b *board.Board) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || b == nil {
		return
	}
	next := b
	seen := map[*Pending]bool{}
	for _, p := range m.pending {
		if seen[p] {
			continue
		}
		seen[p] = true
		next = reapply(next, p)
	}
	m.board = next
	m.gen++
}

func reapply(b *board.Board, p *Pending) *board.Board {
	for _, id := range p.TaskIDs {
		to := p.Command.ToColumn
		index := p.Command.ToIndex
		if p.clearer != nil {
			to, index = board.LibraryColumn, -1
		}
		from, _, ok := b.Locate(id)
		if !ok {
			continue
		}
		// An unpositioned move that already landed keeps the fetched order.
		if from == to && index < 0 {
			continue
		}
		if col, ok := b.Column(to); ok && index >= 0 {
			limit := len(col.TaskIDs)
			if from == to {
				limit--
			}
			if index > limit {
				index = limit
			}
		}
		cmd, err := b.CommandTo(id, to, index)
		if err != nil {
			continue
		}
		if next, err := b.Move(cmd); err == nil {
			b = next
		}
	}
	return b
}

// Close detaches the mutator from its view. Results that arrive afterwards are ignored.
func (m *Mutator) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Wait blocks until every goroutine started by Run has finished.
func (m *Mutator) Wait() { m.wg.Wait() }
