package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pairEngine/internal/model"
)

// StateStore persists per-pool aggregation cursors.
type StateStore interface {
	Load(ctx context.Context) ([]model.PoolCursor, error)
	Save(ctx context.Context, cursors []model.PoolCursor) error
}

// FileStateStore keeps cursors in a local JSON file. Save replaces the
// whole file.
type FileStateStore struct {
	Path string
}

type cursorFile struct {
	Pools     []model.PoolCursor `json:"pools"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (s *FileStateStore) Load(_ context.Context) ([]model.PoolCursor, error) {
	if s == nil || s.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read aggregate cursors: %w", err)
	}

	var stored cursorFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse aggregate cursors %s: %w", s.Path, err)
	}
	for _, cursor := range stored.Pools {
		if cursor.Pool == "" || cursor.ClosedSeq > cursor.LastSeq {
			return nil, fmt.Errorf("corrupt aggregate cursor %+v in %s", cursor, s.Path)
		}
	}
	return stored.Pools, nil
}

func (s *FileStateStore) Save(_ context.Context, cursors []model.PoolCursor) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(cursorFile{Pools: cursors, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal aggregate cursors: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write aggregate cursors: %w", err)
	}
	return os.Rename(tmp, s.Path)
}
