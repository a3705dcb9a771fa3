package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairEngine/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for events, snapshots and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// PutEventBatch inserts event records, ignoring ones already stored.
func (s *Store) PutEventBatch(ctx context.Context, records []model.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		decoded, err := json.Marshal(record.Decoded)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", record.Seq, err)
		}
		var topic0 *string
		if record.Topic0 != "" {
			topic0 = &record.Topic0
		}
		batch.Queue(`
			INSERT INTO pool_events (
				pool_address, seq, ts, event_name, topic0, decoded, reserve_x, reserve_y, total_shares, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (pool_address, seq) DO NOTHING
		`,
			record.Pool,
			int64(record.Seq),
			int64(record.Timestamp),
			record.EventName,
			topic0,
			decoded,
			record.ReserveX,
			record.ReserveY,
			record.TotalShares,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertSnapshot records the latest reserve view of a pool.
func (s *Store) UpsertSnapshot(ctx context.Context, snap model.PoolSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_snapshots (
			pool_address, asset_x, asset_y, reserve_x, reserve_y, total_shares, seq, ts, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (pool_address)
		DO UPDATE SET
			reserve_x = EXCLUDED.reserve_x,
			reserve_y = EXCLUDED.reserve_y,
			total_shares = EXCLUDED.total_shares,
			seq = EXCLUDED.seq,
			ts = EXCLUDED.ts,
			updated_at = now()
		WHERE pool_snapshots.seq <= EXCLUDED.seq
	`,
		snap.Pool,
		snap.AssetX,
		snap.AssetY,
		snap.ReserveX,
		snap.ReserveY,
		snap.TotalShares,
		int64(snap.Seq),
		int64(snap.Timestamp),
	)
	return err
}

// PutWindowMetrics inserts or updates window metrics.
func (s *Store) PutWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, add_count, remove_count, volume_x, volume_y, fee_x, fee_y,
				fee_rate_x, fee_rate_y, tvl_x, tvl_y, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				add_count = EXCLUDED.add_count,
				remove_count = EXCLUDED.remove_count,
				volume_x = EXCLUDED.volume_x,
				volume_y = EXCLUDED.volume_y,
				fee_x = EXCLUDED.fee_x,
				fee_y = EXCLUDED.fee_y,
				fee_rate_x = EXCLUDED.fee_rate_x,
				fee_rate_y = EXCLUDED.fee_rate_y,
				tvl_x = EXCLUDED.tvl_x,
				tvl_y = EXCLUDED.tvl_y,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			m.Pool,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.AddCount),
			int64(m.RemoveCount),
			m.VolumeX,
			m.VolumeY,
			m.FeeX,
			m.FeeY,
			m.FeeRateX,
			m.FeeRateY,
			m.TVLX,
			m.TVLY,
			m.APR,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadCursors returns the per-pool aggregation cursors stored under name.
func (s *Store) LoadCursors(ctx context.Context, name string) ([]model.PoolCursor, error) {
	if name == "" {
		return nil, fmt.Errorf("state name required")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT pool_address, closed_seq, last_seq
		FROM aggregate_cursors
		WHERE name = $1
		ORDER BY pool_address
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cursors []model.PoolCursor
	for rows.Next() {
		var pool string
		var closedSeq, lastSeq int64
		if err := rows.Scan(&pool, &closedSeq, &lastSeq); err != nil {
			return nil, err
		}
		cursors = append(cursors, model.PoolCursor{Pool: pool, ClosedSeq: uint64(closedSeq), LastSeq: uint64(lastSeq)})
	}
	return cursors, rows.Err()
}

// SaveCursors upserts one cursor row per pool under name.
func (s *Store) SaveCursors(ctx context.Context, name string, cursors []model.PoolCursor) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	if len(cursors) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, cursor := range cursors {
		batch.Queue(`
			INSERT INTO aggregate_cursors (name, pool_address, closed_seq, last_seq, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (name, pool_address) DO UPDATE
			SET closed_seq = EXCLUDED.closed_seq, last_seq = EXCLUDED.last_seq, updated_at = now()
		`, name, strings.ToLower(cursor.Pool), int64(cursor.ClosedSeq), int64(cursor.LastSeq))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range cursors {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadEngineState returns the simulator state stored under name.
func (s *Store) LoadEngineState(ctx context.Context, name string) (model.EngineState, bool, error) {
	if name == "" {
		return model.EngineState{}, false, fmt.Errorf("state name required")
	}
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM engine_state WHERE name=$1`, name)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EngineState{}, false, nil
		}
		return model.EngineState{}, false, err
	}
	var state model.EngineState
	if err := json.Unmarshal(raw, &state); err != nil {
		return model.EngineState{}, false, fmt.Errorf("parse engine state: %w", err)
	}
	return state, true, nil
}

// SaveEngineState upserts the simulator state under name.
func (s *Store) SaveEngineState(ctx context.Context, name string, state model.EngineState) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal engine state: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO engine_state (name, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = now()
	`, name, raw)
	return err
}
