package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"taskboard/internal/board"
	"taskboard/internal/model"
)

const orderDBName = "board.sqlite"

// OrderStore keeps intra-column task order on the local machine. The backend has no order
// field, so reorders live here and are applied on top of every fetched board.
type OrderStore struct {
	db    *sql.DB
	path  string
	scope string
}

// OpenOrderStore opens (creating if needed) <dir>/board.sqlite.
func OpenOrderStore(ctx context.Context, dir string) (*OrderStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("missing state dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, orderDBName)
	// modernc.org/sqlite registers as "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer, many readers; busy_timeout covers a CLI and the TUI sharing the file.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	s := &OrderStore{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *OrderStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS task_order (
			board_key TEXT NOT NULL,
			column_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			rank TEXT NOT NULL,
			PRIMARY KEY(board_key, column_id, task_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_order_task ON task_order(board_key, task_id);`,
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderStore) Path() string { return s.path }

func (s *OrderStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Scoped returns a view of the store whose board keys are qualified by scope, so boards
// of different projects or users keep separate order. The view shares the database; close
// only the store returned by OpenOrderStore.
func (s *OrderStore) Scoped(scope string) *OrderStore {
	out := *s
	out.scope = strings.TrimSpace(scope)
	return &out
}

func (s *OrderStore) Scope() string { return s.scope }

// BoardKey scopes stored order to a board variant and, when set, to scope.
func BoardKey(b *board.Board, scope string) string {
	if scope == "" {
		return string(b.Variant())
	}
	return string(b.Variant()) + ":" + scope
}

// Ranks returns every stored rank for the board, keyed by column id.
func (s *OrderStore) Ranks(ctx context.Context, key string) (map[string]map[model.ID]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_id, task_id, rank FROM task_order WHERE board_key = ?`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]map[model.ID]string{}
	for rows.Next() {
		var col, id, rank string
		if err := rows.Scan(&col, &id, &rank); err != nil {
			return nil, err
		}
		if out[col] == nil {
			out[col] = map[model.ID]string{}
		}
		out[col][model.ID(id)] = rank
	}
	return out, rows.Err()
}

// Apply returns b sorted by its stored ranks.
func (s *OrderStore) Apply(ctx context.Context, b *board.Board) (*board.Board, error) {
	ranks, err := s.Ranks(ctx, BoardKey(b, s.scope))
	if err != nil {
		return b, err
	}
	return b.ApplyOrder(ranks), nil
}

// RecordMove stores the destination order produced by cmd on b. A task that changed
// columns loses its rank in the source column.
func (s *OrderStore) RecordMove(ctx context.Context, b *board.Board, cmd board.MoveCommand) error {
	next, err := b.Move(cmd)
	if err != nil {
		return err
	}
	col, ok := next.Column(cmd.ToColumn)
	if !ok {
		return nil
	}
	key := BoardKey(b, s.scope)
	all, err := s.Ranks(ctx, key)
	if err != nil {
		return err
	}
	stored := all[cmd.ToColumn]

	final := make([]Ranked, len(col.TaskIDs))
	movedIdx := -1
	for i, id := range col.TaskIDs {
		final[i] = Ranked{ID: id, Rank: stored[id]}
		if id == cmd.TaskID {
			movedIdx = i
		}
	}
	if movedIdx < 0 {
		return nil
	}
	updates, err := PlanPlacement(final, movedIdx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if cmd.CrossColumn() {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM task_order WHERE board_key = ? AND column_id = ? AND task_id = ?`,
			key, cmd.FromColumn, string(cmd.TaskID)); err != nil {
			return err
		}
	}
	for id, rank := range updates {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_order(board_key, column_id, task_id, rank) VALUES (?, ?, ?, ?)
			 ON CONFLICT(board_key, column_id, task_id) DO UPDATE SET rank = excluded.rank`,
			key, cmd.ToColumn, string(id), rank); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Forget drops stored order for a board.
func (s *OrderStore) Forget(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_order WHERE board_key = ?`, key)
	return err
}
