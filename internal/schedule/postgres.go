package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the schedule in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scheduled_calls (
			slot TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			number TEXT NOT NULL,
			reason TEXT NOT NULL,
			fire_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, req Request) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scheduled_calls (slot, id, number, reason, fire_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (slot) DO UPDATE SET
		   id = EXCLUDED.id, number = EXCLUDED.number, reason = EXCLUDED.reason,
		   fire_at = EXCLUDED.fire_at, created_at = EXCLUDED.created_at`,
		activeSlot, req.ID, req.Number, req.Reason, req.FireAt, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (Request, error) {
	var req Request
	err := s.pool.QueryRow(ctx,
		`SELECT id, number, reason, fire_at, created_at FROM scheduled_calls WHERE slot = $1`,
		activeSlot,
	).Scan(&req.ID, &req.Number, &req.Reason, &req.FireAt, &req.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNoSchedule
	}
	if err != nil {
		return Request{}, fmt.Errorf("load schedule: %w", err)
	}
	req.FireAt = req.FireAt.UTC()
	req.CreatedAt = req.CreatedAt.UTC()
	return req, nil
}

func (s *PostgresStore) DeleteIf(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scheduled_calls WHERE slot = $1 AND id = $2`, activeSlot, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
