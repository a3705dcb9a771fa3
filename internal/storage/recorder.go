package storage

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"pairEngine/internal/dex"
	"pairEngine/internal/model"
)

// Recorder buffers committed pool events and writes them to every backend
// on Flush. It satisfies amm.EventSink.
type Recorder struct {
	backends  []Storage
	batchSize int
	logger    *zap.Logger

	mu      sync.Mutex
	pending []model.EventRecord
	// flushed[i] counts the pending records backend i already holds.
	flushed []int
	written int
}

func NewRecorder(batchSize int, logger *zap.Logger, backends ...Storage) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Recorder{
		backends:  backends,
		batchSize: batchSize,
		logger:    logger,
		flushed:   make([]int, len(backends)),
	}
}

// Emit stamps the V2 pair topic onto record and queues it.
func (r *Recorder) Emit(record model.EventRecord) {
	dex.StampTopic(&record)
	r.mu.Lock()
	r.pending = append(r.pending, record)
	r.mu.Unlock()
}

// Full reports whether a batch is ready to flush.
func (r *Recorder) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) >= r.batchSize
}

// Written returns how many records have been flushed.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Flush writes queued records to every backend. A backend that fails is
// retried with its unwritten records on the next Flush. Backends that
// succeeded never see the same record twice.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return nil
	}

	var errs []error
	for i, backend := range r.backends {
		if r.flushed[i] == len(r.pending) {
			continue
		}
		if err := backend.PutEventBatch(ctx, r.pending[r.flushed[i]:]); err != nil {
			errs = append(errs, err)
			continue
		}
		r.flushed[i] = len(r.pending)
	}
	if err := errors.Join(errs...); err != nil {
		r.logger.Error("flush events", zap.Int("pending", len(r.pending)), zap.Error(err))
		return err
	}

	r.logger.Debug("events flushed", zap.Int("count", len(r.pending)))
	r.written += len(r.pending)
	r.pending = r.pending[:0]
	for i := range r.flushed {
		r.flushed[i] = 0
	}
	return nil
}
