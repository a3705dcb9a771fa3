package aggregate

import (
	"context"
	"fmt"

	"pairEngine/internal/model"
	"pairEngine/internal/storage/postgres"
)

// DBStateStore keeps cursors in the aggregate_cursors table, one row per
// (name, pool). Name separates aggregations over different window sizes.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) ([]model.PoolCursor, error) {
	if s == nil || s.Store == nil {
		return nil, nil
	}
	cursors, err := s.Store.LoadCursors(ctx, s.Name)
	if err != nil {
		return nil, fmt.Errorf("load cursors %s: %w", s.Name, err)
	}
	return cursors, nil
}

func (s *DBStateStore) Save(ctx context.Context, cursors []model.PoolCursor) error {
	if s == nil || s.Store == nil {
		return nil
	}
	if err := s.Store.SaveCursors(ctx, s.Name, cursors); err != nil {
		return fmt.Errorf("save cursors %s: %w", s.Name, err)
	}
	return nil
}
