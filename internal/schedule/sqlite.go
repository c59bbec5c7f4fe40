package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the schedule in a local database file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scheduled_calls (
			slot TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			number TEXT NOT NULL,
			reason TEXT NOT NULL,
			fire_at_ms INTEGER NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, req Request) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_calls (slot, id, number, reason, fire_at_ms, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET
		   id=excluded.id, number=excluded.number, reason=excluded.reason,
		   fire_at_ms=excluded.fire_at_ms, created_at_ms=excluded.created_at_ms`,
		activeSlot, req.ID, req.Number, req.Reason, req.FireAt.UnixMilli(), req.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Request, error) {
	var (
		req              Request
		fireMS, createMS int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, number, reason, fire_at_ms, created_at_ms FROM scheduled_calls WHERE slot = ?`,
		activeSlot,
	).Scan(&req.ID, &req.Number, &req.Reason, &fireMS, &createMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNoSchedule
	}
	if err != nil {
		return Request{}, fmt.Errorf("load schedule: %w", err)
	}
	req.FireAt = time.UnixMilli(fireMS).UTC()
	req.CreatedAt = time.UnixMilli(createMS).UTC()
	return req, nil
}

func (s *SQLiteStore) DeleteIf(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_calls WHERE slot = ? AND id = ?`, activeSlot, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
