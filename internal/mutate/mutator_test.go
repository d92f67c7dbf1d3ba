package mutate

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"taskboard/internal/board"
	"taskboard/internal/catalog"
	"taskboard/internal/model"
	"taskboard/internal/statusutil"
)

type fakePersister struct {
	mu    sync.Mutex
	calls []model.TaskPatch
	ids   []model.ID
	fail  map[model.ID]error
}

func (f *fakePersister) PatchTask(_ context.Context, id model.ID, patch model.TaskPatch) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, patch)
	f.ids = append(f.ids, id)
	if err := f.fail[id]; err != nil {
		return model.Task{}, err
	}
	return model.Task{}, nil
}

func (f *fakePersister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeClearer struct{ err error }

func (f fakeClearer) ClearMyFocus(context.Context) error { return f.err }

type fakeRecorder struct {
	mu   sync.Mutex
	cmds []board.MoveCommand
}

func (f *fakeRecorder) RecordMove(_ context.Context, _ *board.Board, cmd board.MoveCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return nil
}

// gatedPersister holds each PATCH until its task's gate is closed.
type gatedPersister struct {
	gates map[model.ID]chan struct{}
}

func (g *gatedPersister) PatchTask(ctx context.Context, id model.ID, _ model.TaskPatch) (model.Task, error) {
	select {
	case <-g.gates[id]:
		return model.Task{}, nil
	case <-ctx.Done():
		return model.Task{}, ctx.Err()
	}
}

func idPtr(s string) *model.ID {
	id := model.ID(s)
	return &id
}

func datePtr(s string) *model.Date {
	d := model.Date(s)
	return &d
}

func kanbanBoard() *board.Board {
	cat := catalog.New(statusutil.DefaultRules(), []model.Status{
		{ID: "s-pend", Name: "Pending"},
		{ID: "s-prog", Name: "In Progress"},
		{ID: "s-done", Name: "Completed"},
	})
	return board.Partition([]model.Task{
		{ID: "1", Title: "one", StatusID: idPtr("s-pend")},
		{ID: "2", Title: "two", StatusID: idPtr("s-pend")},
		{ID: "3", Title: "three", StatusID: idPtr("s-prog")},
	}, cat)
}

func focusBoard() *board.Board {
	return board.PartitionFocus([]model.Task{
		{ID: "1", Title: "one"},
		{ID: "2", Title: "two", BoardDate: datePtr("2026-10-17")},
		{ID: "3", Title: "three", BoardDate: datePtr("2026-10-17")},
	}, "2026-10-17")
}

func TestMutator_ScenarioA_CommitsAndRefreshes(t *testing.T) {
	p := &fakePersister{}
	refreshed := 0
	m := New(kanbanBoard(), p, WithRefresh(func(context.Context) error {
		refreshed++
		return nil
	}))

	cmd := board.MoveCommand{TaskID: "1", FromColumn: "s-pend", FromIndex: 0, ToColumn: "s-done", ToIndex: 0}
	pending, err := m.Begin(cmd)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// The optimistic state is visible before any persistence happens.
	if col, _, _ := m.Board().Locate("1"); col != "s-done" {
		t.Fatalf("expected optimistic move; task 1 in %s", col)
	}
	if !m.IsPending("1") {
		t.Fatalf("expected task 1 pending")
	}
	if p.callCount() != 0 {
		t.Fatalf("Begin must not persist")
	}

	out := m.Resolve(context.Background(), pending, pending.Persist(context.Background()))
	if out.State != StateCommitted {
		t.Fatalf("expected committed; got %s (%v)", out.State, out.Err)
	}
	if !out.Refresh || !out.Refreshed || refreshed != 1 {
		t.Fatalf("kanban must refresh after commit; out=%+v refreshed=%d", out, refreshed)
	}
	if len(p.calls) != 1 || p.ids[0] != "1" || p.calls[0].StatusID == nil || *p.calls[0].StatusID != "s-done" {
		t.Fatalf("expected PATCH tasks/1 statusId=s-done; got ids=%v calls=%v", p.ids, p.calls)
	}
	if m.IsPending("1") {
		t.Fatalf("task 1 must leave pending")
	}
	if col, _, _ := m.Board().Locate("1"); col != "s-done" {
		t.Fatalf("commit must keep optimistic state; task 1 in %s", col)
	}
}

func TestMutator_ScenarioC_FocusRollbackRefetches(t *testing.T) {
	boom := errors.New("503")
	p := &fakePersister{fail: map[model.ID]error{"1": boom}}
	refreshed := 0
	var notified []Outcome
	m := New(focusBoard(), p,
		WithRefresh(func(context.Context) error { refreshed++; return nil }),
		WithNotifier(func(o Outcome) { notified = append(notified, o) }),
	)
	before := m.Board()

	cmd := board.MoveCommand{TaskID: "1", FromColumn: board.LibraryColumn, FromIndex: 0, ToColumn: board.FocusColumn, ToIndex: 0}
	pending, err := m.Begin(cmd)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if col, _, _ := m.Board().Locate("1"); col != board.FocusColumn {
		t.Fatalf("expected task 1 in focus immediately; got %s", col)
	}
	if pending.Patch.BoardDate == nil || *pending.Patch.BoardDate != "2026-10-17" {
		t.Fatalf("expected boardDate patch; got %v", pending.Patch)
	}

	out := m.Resolve(context.Background(), pending, pending.Persist(context.Background()))
	if out.State != StateRolledBack {
		t.Fatalf("expected rolled back; got %s", out.State)
	}
	var pe *PersistenceError
	if !errors.As(out.Err, &pe) || !errors.Is(out.Err, boom) || pe.TaskID != "1" {
		t.Fatalf("expected PersistenceError wrapping cause; got %v", out.Err)
	}
	if !m.Board().Equal(before) {
		t.Fatalf("expected board restored to pre-move state")
	}
	if refreshed != 1 {
		t.Fatalf("focus variant must refetch after rollback; refreshed=%d", refreshed)
	}
	if len(notified) != 1 || notified[0].State != StateRolledBack {
		t.Fatalf("expected one rollback notification; got %+v", notified)
	}
}

func TestMutator_PolicyMatrix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		b           func() *board.Board
		cmd         board.MoveCommand
		fail        bool
		wantRefresh bool
	}{
		{
			name:        "kanban success refreshes",
			b:           kanbanBoard,
			cmd:         board.MoveCommand{TaskID: "3", FromColumn: "s-prog", ToColumn: "s-done"},
			wantRefresh: true,
		},
		{
			name: "kanban failure does not refresh",
			b:    kanbanBoard,
			cmd:  board.MoveCommand{TaskID: "3", FromColumn: "s-prog", ToColumn: "s-done"},
			fail: true,
		},
		{
			name: "focus success trusts optimistic state",
			b:    focusBoard,
			cmd:  board.MoveCommand{TaskID: "2", FromColumn: board.FocusColumn, ToColumn: board.LibraryColumn, ToIndex: 1},
		},
		{
			name:        "focus failure refetches",
			b:           focusBoard,
			cmd:         board.MoveCommand{TaskID: "2", FromColumn: board.FocusColumn, ToColumn: board.LibraryColumn, ToIndex: 1},
			fail:        true,
			wantRefresh: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &fakePersister{fail: map[model.ID]error{}}
			if tt.fail {
				p.fail[tt.cmd.TaskID] = errors.New("nope")
			}
			m := New(tt.b(), p)
			out, err := m.Apply(context.Background(), tt.cmd)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if out.Refresh != tt.wantRefresh {
				t.Fatalf("Refresh = %v; want %v", out.Refresh, tt.wantRefresh)
			}
			if out.Refreshed {
				t.Fatalf("no refresh callback configured; Refreshed must be false")
			}
		})
	}
}

func TestMutator_ScenarioD_ConcurrentMovesRollBackIndependently(t *testing.T) {
	p := &fakePersister{fail: map[model.ID]error{"1": errors.New("conflict")}}
	m := New(kanbanBoard(), p)

	p1, err := m.Begin(board.MoveCommand{TaskID: "1", FromColumn: "s-pend", FromIndex: 0, ToColumn: "s-done", ToIndex: 0})
	if err != nil {
		t.Fatalf("Begin 1: %v", err)
	}
	p2, err := m.Begin(board.MoveCommand{TaskID: "2", FromColumn: "s-pend", FromIndex: 0, ToColumn: "s-prog", ToIndex: 0})
	if err != nil {
		t.Fatalf("Begin 2: %v", err)
	}
	if m.PendingCount() != 2 {
		t.Fatalf("expected two pending moves; got %d", m.PendingCount())
	}

	// Task 2 commits first, task 1 fails afterwards.
	if out := m.Resolve(context.Background(), p2, p2.Persist(context.Background())); out.State != StateCommitted {
		t.Fatalf("expected task 2 committed; got %s", out.State)
	}
	if out := m.Resolve(context.Background(), p1, p1.Persist(context.Background())); out.State != StateRolledBack {
		t.Fatalf("expected task 1 rolled back; got %s", out.State)
	}

	b := m.Board()
	if col, idx, _ := b.Locate("1"); col != "s-pend" || idx != 0 {
		t.Fatalf("task 1 must return to pending[0]; got %s[%d]", col, idx)
	}
	if col, _, _ := b.Locate("2"); col != "s-prog" {
		t.Fatalf("task 2's committed move must survive; got %s", col)
	}
	rec, _ := b.Task("1")
	if rec.StatusID == nil || *rec.StatusID != "s-pend" {
		t.Fatalf("task 1 record must be restored; got %v", rec.StatusID)
	}
}

func TestMutator_ScenarioD_ConcurrentMovesBothCommit(t *testing.T) {
	g := &gatedPersister{gates: map[model.ID]chan struct{}{
		"1": make(chan struct{}),
		"2": make(chan struct{}),
	}}
	m := New(kanbanBoard(), g)
	ctx := context.Background()

	ch1, err := m.Move(ctx, board.MoveCommand{TaskID: "1", FromColumn: "s-pend", FromIndex: 0, ToColumn: "s-done", ToIndex: 0})
	if err != nil {
		t.Fatalf("Move 1: %v", err)
	}
	ch2, err := m.Move(ctx, board.MoveCommand{TaskID: "2", FromColumn: "s-pend", FromIndex: 0, ToColumn: "s-prog", ToIndex: 1})
	if err != nil {
		t.Fatalf("Move 2: %v", err)
	}

	close(g.gates["2"])
	if out := <-ch2; out.State != StateCommitted {
		t.Fatalf("expected task 2 committed; got %s (%v)", out.State, out.Err)
	}
	if !m.IsPending("1") {
		t.Fatalf("task 1 must still be pending after task 2 resolves")
	}
	close(g.gates["1"])
	if out := <-ch1; out.State != StateCommitted {
		t.Fatalf("expected task 1 committed; got %s (%v)", out.State, out.Err)
	}
	m.Wait()

	b := m.Board()
	if col, _, _ := b.Locate("1"); col != "s-done" {
		t.Fatalf("task 1 must stay in s-done; got %s", col)
	}
	if col, idx, _ := b.Locate("2"); col != "s-prog" || idx != 1 {
		t.Fatalf("task 2 must stay at s-prog[1]; got %s[%d]", col, idx)
	}
	if m.PendingCount() != 0 {
		t.Fatalf("expected no pending moves; got %d", m.PendingCount())
	}
}

func TestMutator_RejectsSecondMoveOfPendingTask(t *testing.T) {
	m := New(kanbanBoard(), &fakePersister{})
	if _, err := m.Begin(board.MoveCommand{TaskID: "3", FromColumn: "s-prog", FromIndex: 0, ToColumn: "s-done", ToIndex: 0}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_, err := m.Begin(board.MoveCommand{TaskID: "3", FromColumn: "s-done", FromIndex: 0, ToColumn: "s-pend", ToIndex: 0})
	if !errors.Is(err, ErrTaskPending) {
		t.Fatalf("expected ErrTaskPending; got %v", err)
	}
}

func TestMutator_NoopAndInvalidMoves(t *testing.T) {
	b := kanbanBoard()
	m := New(b, &fakePersister{})

	p, err := m.Begin(board.MoveCommand{TaskID: "1", FromColumn: "s-pend", FromIndex: 0, ToColumn: "s-pend", ToIndex: 0})
	if err != nil || p != nil {
		t.Fatalf("expected nil, nil for no-op; got %v, %v", p, err)
	}
	if m.Board() != b {
		t.Fatalf("no-op must not replace the board")
	}

	_, err = m.Begin(board.MoveCommand{TaskID: "1", FromColumn: "s-pend", FromIndex: 1, ToColumn: "s-done", ToIndex: 0})
	var ime *board.InvalidMoveError
	if !errors.As(err, &ime) {
		t.Fatalf("expected InvalidMoveError; got %v", err)
	}
	if m.IsPending("1") {
		t.Fatalf("invalid move must not leave the task pending")
	}
}

func TestMutator_ReorderOnlyIsNotPersisted(t *testing.T) {
	p := &fakePersister{}
	rec := &fakeRecorder{}
	refreshed := 0
	m := New(kanbanBoard(), p, WithOrderRecorder(rec), WithRefresh(func(context.Context) error {
		refreshed++
		return nil
	}))

	cmd := board.MoveCommand{TaskID: "1", FromColumn: "s-pend", FromIndex: 0, ToColumn: "s-pend", ToIndex: 1}
	out, err := m.Apply(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.State != StateCommitted || out.Refresh {
		t.Fatalf("expected quiet commit; got %+v", out)
	}
	if p.callCount() != 0 {
		t.Fatalf("reorder-only move must not PATCH; got %d calls", p.callCount())
	}
	if refreshed != 0 {
		t.Fatalf("reorder-only move must not refetch")
	}
	if len(rec.cmds) != 1 || rec.cmds[0] != cmd {
		t.Fatalf("expected local order recorded; got %+v", rec.cmds)
	}
	col, _ := m.Board().Column("s-pend")
	if !reflect.DeepEqual(col.TaskIDs, []model.ID{"2", "1"}) {
		t.Fatalf("unexpected order %v", col.TaskIDs)
	}
}

func TestMutator_CloseIgnoresLateResults(t *testing.T) {
	notified := 0
	m := New(kanbanBoard(), &fakePersister{}, WithNotifier(func(Outcome) { notified++ }))
	p, err := m.Begin(board.MoveCommand{TaskID: "1", FromColumn: "s-pend", FromIndex: 0, ToColumn: "s-done", ToIndex: 0})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	optimistic := m.Board()
	m.Close()

	out := m.Resolve(context.Background(), p, errors.New("late failure"))
	if !out.Ignored {
		t.Fatalf("expected late result ignored")
	}
	if m.Board() != optimistic {
		t.Fatalf("closed mutator must not touch the board")
	}
	if notified != 0 {
		t.Fatalf("closed mutator must not notify")
	}
	if _, err := m.Begin(board.MoveCommand{TaskID: "2", FromColumn: "s-pend", FromIndex: 1, ToColumn: "s-done", ToIndex: 0}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed; got %v", err)
	}
}

func TestMutator_RunResolvesAsynchronously(t *testing.T) {
	m := New(kanbanBoard(), &fakePersister{})
	ch, err := m.Move(context.Background(), board.MoveCommand{TaskID: "3", FromColumn: "s-prog", FromIndex: 0, ToColumn: "s-pend", ToIndex: 2})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	out, ok := <-ch
	if !ok || out.State != StateCommitted {
		t.Fatalf("expected committed outcome; got %+v ok=%v", out, ok)
	}
	m.Wait()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after outcome")
	}
}

func TestMutator_ClearFocus(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		m := New(focusBoard(), &fakePersister{})
		out, err := m.ClearFocus(context.Background(), fakeClearer{})
		if err != nil {
			t.Fatalf("ClearFocus: %v", err)
		}
		if out.State != StateCommitted || out.Refresh {
			t.Fatalf("expected commit without refresh; got %+v", out)
		}
		focus, _ := m.Board().Column(board.FocusColumn)
		lib, _ := m.Board().Column(board.LibraryColumn)
		if len(focus.TaskIDs) != 0 || !reflect.DeepEqual(lib.TaskIDs, []model.ID{"1", "2", "3"}) {
			t.Fatalf("unexpected columns focus=%v library=%v", focus.TaskIDs, lib.TaskIDs)
		}
		rec, _ := m.Board().Task("2")
		if rec.BoardDate != nil {
			t.Fatalf("expected board date cleared on record")
		}
	})

	t.Run("rollback", func(t *testing.T) {
		m := New(focusBoard(), &fakePersister{})
		before := m.Board()
		out, err := m.ClearFocus(context.Background(), fakeClearer{err: errors.New("down")})
		if err != nil {
			t.Fatalf("ClearFocus: %v", err)
		}
		if out.State != StateRolledBack || !out.Refresh {
			t.Fatalf("expected rollback with refresh; got %+v", out)
		}
		if !m.Board().Equal(before) {
			t.Fatalf("expected focus restored")
		}
		if m.PendingCount() != 0 {
			t.Fatalf("expected no pending tasks after resolve")
		}
	})

	t.Run("kanban board rejected", func(t *testing.T) {
		m := New(kanbanBoard(), &fakePersister{})
		if _, err := m.ClearFocus(context.Background(), fakeClearer{}); !errors.Is(err, ErrNotFocus) {
			t.Fatalf("expected ErrNotFocus; got %v", err)
		}
	})
}

func TestMutator_ReplaceKeepsPendingPosition(t *testing.T) {
	m := New(kanbanBoard(), &fakePersister{})
	p, err := m.Begin(board.MoveCommand{TaskID: "1", FromColumn: "s-pend", FromIndex: 0, ToColumn: "s-done", ToIndex: 0})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// A refetch that raced the PATCH still shows the old status.
	m.Replace(kanbanBoard())
	if col, _, _ := m.Board().Locate("1"); col != "s-done" {
		t.Fatalf("pending move must survive refetch; got %s", col)
	}

	out := m.Resolve(context.Background(), p, errors.New("rejected"))
	if out.State != StateRolledBack {
		t.Fatalf("expected rollback; got %s", out.State)
	}
	if col, idx, _ := m.Board().Locate("1"); col != "s-pend" || idx != 0 {
		t.Fatalf("expected task 1 back at pending[0]; got %s[%d]", col, idx)
	}
}

func TestMutator_ReplaceKeepsPendingReorder(t *testing.T) {
	m := New(kanbanBoard(), &fakePersister{})
	p, err := m.Begin(board.MoveCommand{TaskID: "1", FromColumn: "s-pend", FromIndex: 0, ToColumn: "s-pend", ToIndex: 1})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	m.Replace(kanbanBoard())
	col, _ := m.Board().Column("s-pend")
	if !reflect.DeepEqual(col.TaskIDs, []model.ID{"2", "1"}) {
		t.Fatalf("pending reorder must survive refetch; got %v", col.TaskIDs)
	}

	// The refetched column shrank under the pending index.
	m.Replace(board.Partition([]model.Task{
		{ID: "1", Title: "one", StatusID: idPtr("s-pend")},
		{ID: "3", Title: "three", StatusID: idPtr("s-prog")},
	}, catalog.New(statusutil.DefaultRules(), []model.Status{
		{ID: "s-pend", Name: "Pending"},
		{ID: "s-prog", Name: "In Progress"},
		{ID: "s-done", Name: "Completed"},
	})))
	if c, idx, _ := m.Board().Locate("1"); c != "s-pend" || idx != 0 {
		t.Fatalf("expected clamped index s-pend[0]; got %s[%d]", c, idx)
	}

	if out := m.Resolve(context.Background(), p, p.Persist(context.Background())); out.State != StateCommitted {
		t.Fatalf("expected committed; got %s", out.State)
	}
}

func TestMutator_LogsRollback(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	m := New(kanbanBoard(), &fakePersister{fail: map[model.ID]error{"3": errors.New("boom")}},
		WithLogger(logrus.NewEntry(logger)))

	if _, err := m.Apply(context.Background(), board.MoveCommand{TaskID: "3", FromColumn: "s-prog", FromIndex: 0, ToColumn: "s-done", ToIndex: 0}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected warn entry; got %+v", entry)
	}
	if entry.Data["task_id"] != model.ID("3") || entry.Data["state"] != "rolled_back" {
		t.Fatalf("unexpected fields %v", entry.Data)
	}
}
