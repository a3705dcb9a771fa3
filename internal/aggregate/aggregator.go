package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"pairEngine/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	DecimalsX     uint8
	DecimalsY     uint8
	StateStore    StateStore
}

// MetricsWriter receives finished window metrics.
type MetricsWriter interface {
	PutWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator aggregates pool events into window metrics. Progress is
// tracked per pool by event sequence number, since many events can share
// one timestamp.
type Aggregator struct {
	cfg          Config
	out          MetricsWriter
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	cursors      map[string]model.PoolCursor
	lastSeen     map[string]uint64
	pools        map[string]string
}

func NewAggregator(cfg Config, out MetricsWriter, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		out:          out,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		cursors:      make(map[string]model.PoolCursor),
		lastSeen:     make(map[string]uint64),
		pools:        make(map[string]string),
	}
}

// Run executes aggregation over an event JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.out == nil {
		return fmt.Errorf("metrics output is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	if err := a.loadCursors(ctx); err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	var total, windows, skipped, failed int

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.EventRecordJSON
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode event", zap.Error(err))
			continue
		}

		key := poolKey(record.Pool)
		a.pools[key] = record.Pool
		cursor := a.cursors[key]
		prevSeq := a.lastSeen[key]
		if record.Seq > prevSeq {
			a.lastSeen[key] = record.Seq
		}

		if record.Seq <= cursor.ClosedSeq || record.Timestamp < a.cfg.RecomputeFrom {
			skipped++
			continue
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		acc := a.accumulators[key]
		if acc != nil && acc.WindowStart != windowStart {
			if acc.Fresh {
				batch = append(batch, a.metricsFor(acc))
				windows++
			}
			acc = nil
		}
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			acc.OpenedAfter = prevSeq
			a.accumulators[key] = acc
		}
		if record.Seq > cursor.LastSeq {
			acc.Fresh = true
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Pool), zap.String("event", record.EventName), zap.Uint64("seq", record.Seq))
			continue
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.out.PutWindowMetrics(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]

			if err := a.saveState(ctx, false); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		if acc.Fresh {
			batch = append(batch, a.metricsFor(acc))
			windows++
		}
	}

	if len(batch) > 0 {
		if err := a.out.PutWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}

	if err := a.saveState(ctx, true); err != nil {
		return err
	}
	a.accumulators = make(map[string]*Accumulator)

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

// loadCursors seeds per-pool progress. RecomputeFrom discards it so every
// window from that time on is rebuilt.
func (a *Aggregator) loadCursors(ctx context.Context) error {
	if a.cfg.RecomputeFrom > 0 || a.cfg.StateStore == nil {
		return nil
	}
	cursors, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return err
	}
	for _, cursor := range cursors {
		key := poolKey(cursor.Pool)
		a.cursors[key] = cursor
		a.lastSeen[key] = cursor.ClosedSeq
	}
	return nil
}

// saveState records per-pool progress after a flush. The open window of
// each pool stays re-readable. Until the final flush its events have not
// been written, so LastSeq only moves past them when final is set.
func (a *Aggregator) saveState(ctx context.Context, final bool) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	saved := make(map[string]model.PoolCursor, len(a.lastSeen))
	for key, cursor := range a.cursors {
		saved[key] = cursor
	}
	for key, seen := range a.lastSeen {
		cursor := saved[key]
		if name, ok := a.pools[key]; ok {
			cursor.Pool = name
		}
		if acc, ok := a.accumulators[key]; ok {
			cursor.ClosedSeq = acc.OpenedAfter
			if final {
				cursor.LastSeq = seen
			} else if acc.OpenedAfter > cursor.LastSeq {
				cursor.LastSeq = acc.OpenedAfter
			}
		} else if seen > cursor.ClosedSeq {
			// every event of this pool was skipped by RecomputeFrom
			cursor.ClosedSeq, cursor.LastSeq = seen, seen
		}
		saved[key] = cursor
	}

	out := make([]model.PoolCursor, 0, len(saved))
	for _, cursor := range saved {
		out = append(out, cursor)
	}
	sort.Slice(out, func(i, j int) bool { return poolKey(out[i].Pool) < poolKey(out[j].Pool) })
	return a.cfg.StateStore.Save(ctx, out)
}

func (a *Aggregator) metricsFor(acc *Accumulator) model.PoolWindowMetrics {
	feeRateX, feeRateY := computeFeeRates(acc.FeeX, acc.FeeY, acc.ReserveX, acc.ReserveY)

	var tvlX, tvlY *string
	if acc.ReserveX != nil {
		val := formatTokenAmount(acc.ReserveX, a.cfg.DecimalsX)
		tvlX = &val
	}
	if acc.ReserveY != nil {
		val := formatTokenAmount(acc.ReserveY, a.cfg.DecimalsY)
		tvlY = &val
	}

	return model.PoolWindowMetrics{
		Pool:           acc.Pool,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		AddCount:       acc.AddCount,
		RemoveCount:    acc.RemoveCount,
		VolumeX:        formatTokenAmount(acc.VolumeX, a.cfg.DecimalsX),
		VolumeY:        formatTokenAmount(acc.VolumeY, a.cfg.DecimalsY),
		FeeX:           formatTokenAmount(acc.FeeX, a.cfg.DecimalsX),
		FeeY:           formatTokenAmount(acc.FeeY, a.cfg.DecimalsY),
		FeeRateX:       feeRateX,
		FeeRateY:       feeRateY,
		TVLX:           tvlX,
		TVLY:           tvlY,
		APR:            computeAPR(acc.FeeX, acc.FeeY, acc.ReserveX, acc.ReserveY, a.cfg.WindowSeconds),
	}
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}
