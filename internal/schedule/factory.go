package schedule

import (
	"context"
	"strings"
)

// NewStore picks postgres when a database URL is set, then a sqlite file,
// otherwise memory.
func NewStore(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		pg, err := NewPostgresStore(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	if strings.TrimSpace(sqlitePath) != "" {
		lite, err := NewSQLiteStore(ctx, sqlitePath)
		if err != nil {
			return nil, err
		}
		return lite, nil
	}
	return NewInMemoryStore(), nil
}
