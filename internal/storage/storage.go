package storage

import (
	"context"

	"pairEngine/internal/model"
)

// Storage defines a sink for event records.
type Storage interface {
	PutEventBatch(ctx context.Context, records []model.EventRecord) error
}
