// Package session loads boards from the backend and wires them to a mutator. It is the
// glue shared by the CLI commands and the TUI.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"taskboard/internal/api"
	"taskboard/internal/board"
	"taskboard/internal/catalog"
	"taskboard/internal/deps"
	"taskboard/internal/logging"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
	"taskboard/internal/statusutil"
	"taskboard/internal/store"
)

// Backend is the REST surface a session needs; *api.Client implements it.
type Backend interface {
	catalog.StatusSource
	mutate.Persister
	mutate.FocusClearer
	ListTasks(ctx context.Context, q api.TaskQuery) ([]model.Task, error)
	MyTasks(ctx context.Context) ([]model.Task, error)
}

type Session struct {
	backend   Backend
	rules     statusutil.Rules
	order     *store.OrderStore
	projectID model.ID
	userID    model.ID
	log       *logrus.Entry
	now       func() time.Time
}

type Option func(*Session)

func WithRules(r statusutil.Rules) Option { return func(s *Session) { s.rules = r } }

// WithOrderStore applies and records local card order. Without it boards keep the
// backend's order.
func WithOrderStore(o *store.OrderStore) Option { return func(s *Session) { s.order = o } }

func WithProject(id model.ID) Option { return func(s *Session) { s.projectID = id } }

// WithUser names the user whose focus board this session loads. It only scopes local
// card order; the backend resolves "my tasks" from the credentials.
func WithUser(id model.ID) Option { return func(s *Session) { s.userID = id } }

func WithLogger(l *logrus.Entry) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		rules:   statusutil.DefaultRules(),
		log:     logging.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Backend() Backend { return s.backend }

func (s *Session) Today() model.Date { return model.DateOf(s.now()) }

// Loaded is one fetched board together with what was needed to build it.
type Loaded struct {
	Board   *board.Board
	Catalog *catalog.Catalog
	Graph   *deps.Graph
	Tasks   []model.Task
}

// Load fetches the board for variant. On a fetch failure the returned board is empty (a
// kanban board without a catalog has no columns) and the error is a *catalog.FetchError
// or *api.FetchError.
func (s *Session) Load(ctx context.Context, variant board.Variant) (Loaded, error) {
	switch variant {
	case board.Kanban:
		return s.loadKanban(ctx)
	case board.Focus:
		return s.loadFocus(ctx)
	default:
		return Loaded{}, fmt.Errorf("unknown board variant %q", variant)
	}
}

func (s *Session) loadKanban(ctx context.Context) (Loaded, error) {
	cat, err := catalog.Load(ctx, s.backend, s.rules)
	if err != nil {
		s.log.WithError(err).Warn("status catalog unavailable")
		return Loaded{Board: board.Partition(nil, cat), Catalog: cat, Graph: deps.New(cat, nil)}, err
	}
	tasks, err := s.backend.ListTasks(ctx, api.TaskQuery{ProjectID: s.projectID})
	if err != nil {
		return Loaded{Board: board.Partition(nil, cat), Catalog: cat, Graph: deps.New(cat, nil)}, err
	}
	b := s.applyOrder(ctx, s.reportDropped(board.Partition(tasks, cat)))
	return Loaded{Board: b, Catalog: cat, Graph: deps.New(cat, tasks), Tasks: tasks}, nil
}

// loadFocus does not need statuses to partition, so a catalog failure only degrades
// blocking checks.
func (s *Session) loadFocus(ctx context.Context) (Loaded, error) {
	cat, err := catalog.Load(ctx, s.backend, s.rules)
	if err != nil {
		s.log.WithError(err).Warn("status catalog unavailable; blocking checks use legacy status names")
	}
	tasks, err := s.backend.MyTasks(ctx)
	if err != nil {
		return Loaded{Board: board.PartitionFocus(nil, s.Today()), Catalog: cat, Graph: deps.New(cat, nil)}, err
	}
	b := s.applyOrder(ctx, s.reportDropped(board.PartitionFocus(tasks, s.Today())))
	return Loaded{Board: b, Catalog: cat, Graph: deps.New(cat, tasks), Tasks: tasks}, nil
}

func (s *Session) reportDropped(b *board.Board) *board.Board {
	if dropped := b.Dropped(); len(dropped) > 0 {
		s.log.WithFields(logrus.Fields{
			"variant": b.Variant(),
			"dropped": dropped,
		}).Warn("skipped tasks without an ID or with a duplicate ID")
	}
	return b
}

func (s *Session) applyOrder(ctx context.Context, b *board.Board) *board.Board {
	if s.order == nil {
		return b
	}
	next, err := s.orderFor(b.Variant()).Apply(ctx, b)
	if err != nil {
		s.log.WithError(err).Warn("local card order unavailable")
		return b
	}
	return next
}

// orderFor scopes stored order: kanban boards by project, focus boards by user.
func (s *Session) orderFor(v board.Variant) *store.OrderStore {
	if v == board.Focus {
		if s.userID == "" {
			return s.order
		}
		return s.order.Scoped("user/" + string(s.userID))
	}
	if s.projectID == "" {
		return s.order
	}
	return s.order.Scoped("project/" + string(s.projectID))
}

// Mutator binds b to the backend with the variant's policy. The refresh callback reloads
// the board and installs it with Replace; extra options are applied last.
func (s *Session) Mutator(b *board.Board, opts ...mutate.Option) *mutate.Mutator {
	var m *mutate.Mutator
	base := []mutate.Option{
		mutate.WithPolicy(mutate.PolicyFor(b.Variant())),
		mutate.WithLogger(s.log.WithField("component", "mutate")),
		mutate.WithRefresh(func(ctx context.Context) error {
			loaded, err := s.Load(ctx, b.Variant())
			if err != nil {
				return err
			}
			m.Replace(loaded.Board)
			return nil
		}),
	}
	if s.order != nil {
		base = append(base, mutate.WithOrderRecorder(s.orderFor(b.Variant())))
	}
	m = mutate.New(b, s.backend, append(base, opts...)...)
	return m
}

// IsFetchError reports whether err came from loading statuses or tasks.
func IsFetchError(err error) bool {
	var cf *catalog.FetchError
	var af *api.FetchError
	return errors.As(err, &cf) || errors.As(err, &af)
}
