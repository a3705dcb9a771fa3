package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pairEngine/internal/model"
)

// SnapshotStore persists simulator state between runs.
type SnapshotStore interface {
	Load(ctx context.Context) (model.EngineState, bool, error)
	Save(ctx context.Context, state model.EngineState) error
}

// FileSnapshotStore keeps the state in a local JSON file.
type FileSnapshotStore struct {
	Path string
}

func (s *FileSnapshotStore) Load(ctx context.Context) (model.EngineState, bool, error) {
	if s == nil || s.Path == "" {
		return model.EngineState{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.EngineState{}, false, nil
		}
		return model.EngineState{}, false, fmt.Errorf("read state: %w", err)
	}

	var state model.EngineState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.EngineState{}, false, fmt.Errorf("parse state: %w", err)
	}
	return state, true, nil
}

func (s *FileSnapshotStore) Save(ctx context.Context, state model.EngineState) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
