package simulate

import (
	"context"

	"pairEngine/internal/model"
	"pairEngine/internal/storage/postgres"
)

// DBSnapshotStore stores simulator state in the engine_state table.
type DBSnapshotStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBSnapshotStore) Load(ctx context.Context) (model.EngineState, bool, error) {
	if s == nil || s.Store == nil {
		return model.EngineState{}, false, nil
	}
	return s.Store.LoadEngineState(ctx, s.Name)
}

func (s *DBSnapshotStore) Save(ctx context.Context, state model.EngineState) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveEngineState(ctx, s.Name, state)
}
