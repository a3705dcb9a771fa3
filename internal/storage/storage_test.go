package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairEngine/internal/model"
)

type failingStorage struct {
	calls   int
	healthy bool
	got     []uint64
}

func (f *failingStorage) PutEventBatch(_ context.Context, records []model.EventRecord) error {
	f.calls++
	if !f.healthy {
		return errors.New("disk full")
	}
	for _, record := range records {
		f.got = append(f.got, record.Seq)
	}
	return nil
}

func readRecords(t *testing.T, path string) []model.EventRecordJSON {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var out []model.EventRecordJSON
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec model.EventRecordJSON
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestRecorderFlushesStampedEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	recorder := NewRecorder(2, nil, NewJsonlStorage(path))

	recorder.Emit(model.EventRecord{Seq: 1, EventName: model.EventLiquidityAdded, Decoded: model.LiquidityAddedEventData{Shares: "999000"}})
	assert.False(t, recorder.Full())
	recorder.Emit(model.EventRecord{Seq: 2, EventName: model.EventSwap, Decoded: model.SwapEventData{AmountIn: "1000", AmountOut: "996"}})
	assert.True(t, recorder.Full())

	require.NoError(t, recorder.Flush(context.Background()))
	assert.Equal(t, 2, recorder.Written())
	assert.False(t, recorder.Full())

	records := readRecords(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(1), records[0].Seq)
	assert.NotEmpty(t, records[0].Topic0)
	assert.Equal(t, "0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822", records[1].Topic0)

	var swap model.SwapEventData
	require.NoError(t, json.Unmarshal(records[1].Decoded, &swap))
	assert.Equal(t, "996", swap.AmountOut)
}

func TestRecorderKeepsEventsOnFailure(t *testing.T) {
	failing := &failingStorage{}
	recorder := NewRecorder(10, nil, failing)
	recorder.Emit(model.EventRecord{Seq: 1, EventName: model.EventSwap})

	require.Error(t, recorder.Flush(context.Background()))
	require.Error(t, recorder.Flush(context.Background()))
	assert.Equal(t, 2, failing.calls)
	assert.Equal(t, 0, recorder.Written())
}

func TestRecorderDoesNotRewriteToHealthyBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	flaky := &failingStorage{}
	recorder := NewRecorder(10, nil, NewJsonlStorage(path), flaky)
	ctx := context.Background()

	recorder.Emit(model.EventRecord{Seq: 1, EventName: model.EventSwap})
	require.Error(t, recorder.Flush(ctx))
	require.Error(t, recorder.Flush(ctx))
	require.Len(t, readRecords(t, path), 1)

	recorder.Emit(model.EventRecord{Seq: 2, EventName: model.EventSwap})
	flaky.healthy = true
	require.NoError(t, recorder.Flush(ctx))

	records := readRecords(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(1), records[0].Seq)
	assert.Equal(t, uint64(2), records[1].Seq)
	assert.Equal(t, []uint64{1, 2}, flaky.got)
	assert.Equal(t, 2, recorder.Written())

	recorder.Emit(model.EventRecord{Seq: 3, EventName: model.EventSwap})
	require.NoError(t, recorder.Flush(ctx))
	assert.Len(t, readRecords(t, path), 3)
	assert.Equal(t, []uint64{1, 2, 3}, flaky.got)
}

func TestFileSnapshotStoreRoundTrip(t *testing.T) {
	store := &FileSnapshotStore{Path: filepath.Join(t.TempDir(), "state", "engine.json")}
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	state := model.EngineState{
		Pool: model.PoolSnapshot{
			Pool:         "0x00000000000000000000000000000000000000f0",
			ReserveX:     "1000000",
			ReserveY:     "1000000",
			TotalShares:  "1000000",
			LockedShares: "1000",
			Balances:     map[string]string{"0x1111111111111111111111111111111111111111": "999000"},
			Seq:          1,
		},
		Clock:    42,
		Balances: map[string]map[string]string{"X": {"0x1111111111111111111111111111111111111111": "5"}},
	}
	require.NoError(t, store.Save(ctx, state))

	loaded, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state, loaded)

	_, err = os.Stat(store.Path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileSnapshotStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, _, err := (&FileSnapshotStore{Path: path}).Load(context.Background())
	require.Error(t, err)
}
