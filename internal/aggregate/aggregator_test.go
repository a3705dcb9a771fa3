package aggregate

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairEngine/internal/model"
)

const (
	testPool   = "0x00000000000000000000000000000000000000F0"
	testAssetX = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"
	testAssetY = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
)

type captureWriter struct {
	metrics []model.PoolWindowMetrics
}

func (c *captureWriter) PutWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	c.metrics = append(c.metrics, metrics...)
	return nil
}

func event(t *testing.T, seq, ts uint64, name string, decoded interface{}, reserveX, reserveY string) string {
	t.Helper()
	raw, err := json.Marshal(model.EventRecord{
		Pool:      testPool,
		AssetX:    testAssetX,
		AssetY:    testAssetY,
		Seq:       seq,
		Timestamp: ts,
		EventName: name,
		Decoded:   decoded,
		ReserveX:  reserveX,
		ReserveY:  reserveY,
	})
	require.NoError(t, err)
	return string(raw)
}

func writeEvents(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func sampleEvents(t *testing.T) string {
	return writeEvents(t,
		event(t, 1, 10, model.EventLiquidityAdded, model.LiquidityAddedEventData{AmountX: "1000000", AmountY: "1000000"}, "1000000", "1000000"),
		event(t, 2, 20, model.EventSwap, model.SwapEventData{TokenIn: strings.ToLower(testAssetX), TokenOut: testAssetY, AmountIn: "1000", AmountOut: "996"}, "1001000", "999004"),
		"{broken",
		event(t, 3, 70, model.EventSwap, model.SwapEventData{TokenIn: testAssetY, TokenOut: testAssetX, AmountIn: "2000", AmountOut: "1990"}, "999010", "1001004"),
		event(t, 4, 80, model.EventLiquidityRemoved, model.LiquidityRemovedEventData{AmountX: "499010", AmountY: "501004"}, "500000", "500000"),
	)
}

func TestAggregatorWindows(t *testing.T) {
	out := &captureWriter{}
	agg := NewAggregator(Config{WindowSeconds: 60}, out, nil)
	require.NoError(t, agg.Run(context.Background(), sampleEvents(t)))

	require.Len(t, out.metrics, 2)
	sort.Slice(out.metrics, func(i, j int) bool { return out.metrics[i].WindowStart.Before(out.metrics[j].WindowStart) })

	first := out.metrics[0]
	assert.Equal(t, testPool, first.Pool)
	assert.Equal(t, time.Unix(0, 0).UTC(), first.WindowStart)
	assert.Equal(t, time.Unix(60, 0).UTC(), first.WindowEnd)
	assert.Equal(t, uint64(1), first.SwapCount)
	assert.Equal(t, uint64(1), first.AddCount)
	assert.Equal(t, uint64(0), first.RemoveCount)
	assert.Equal(t, "1000", first.VolumeX)
	assert.Equal(t, "996", first.VolumeY)
	assert.Equal(t, "3", first.FeeX)
	assert.Equal(t, "0", first.FeeY)
	require.NotNil(t, first.TVLX)
	assert.Equal(t, "1001000", *first.TVLX)
	assert.Equal(t, "999004", *first.TVLY)
	require.NotNil(t, first.FeeRateX)
	assert.Nil(t, first.FeeRateY)
	require.NotNil(t, first.APR)

	second := out.metrics[1]
	assert.Equal(t, uint64(1), second.SwapCount)
	assert.Equal(t, uint64(1), second.RemoveCount)
	assert.Equal(t, "1990", second.VolumeX)
	assert.Equal(t, "2000", second.VolumeY)
	assert.Equal(t, "6", second.FeeY)
	require.NotNil(t, second.FeeRateY)
	assert.Equal(t, "0.000012000000000000", *second.FeeRateY)
	assert.Equal(t, "500000", *second.TVLX)
}

func TestAggregatorResumesFromState(t *testing.T) {
	input := sampleEvents(t)
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "agg_state.json")}

	out := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 60, StateStore: state}, out, nil).Run(context.Background(), input))
	require.Len(t, out.metrics, 2)

	cursors, err := state.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []model.PoolCursor{{Pool: testPool, ClosedSeq: 2, LastSeq: 4}}, cursors)

	again := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 60, StateStore: state}, again, nil).Run(context.Background(), input))
	assert.Empty(t, again.metrics)

	recompute := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 60, StateStore: state, RecomputeFrom: 60}, recompute, nil).Run(context.Background(), input))
	require.Len(t, recompute.metrics, 1)
	assert.Equal(t, "6", recompute.metrics[0].FeeY)
}

func appendEvents(t *testing.T, path string, lines ...string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer file.Close()
	_, err = file.WriteString(strings.Join(lines, "\n") + "\n")
	require.NoError(t, err)
}

func swapX(t *testing.T, seq, ts uint64) string {
	return event(t, seq, ts, model.EventSwap, model.SwapEventData{TokenIn: testAssetX, TokenOut: testAssetY, AmountIn: "1000", AmountOut: "990"}, "1000000", "1000000")
}

func TestAggregatorResumePicksUpEventsAtSameTimestamp(t *testing.T) {
	input := writeEvents(t, swapX(t, 1, 100))
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "agg_state.json")}
	ctx := context.Background()

	first := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 60, StateStore: state}, first, nil).Run(ctx, input))
	require.Len(t, first.metrics, 1)
	assert.Equal(t, uint64(1), first.metrics[0].SwapCount)

	appendEvents(t, input, swapX(t, 2, 100))

	second := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 60, StateStore: state}, second, nil).Run(ctx, input))
	require.Len(t, second.metrics, 1)
	assert.Equal(t, time.Unix(60, 0).UTC(), second.metrics[0].WindowStart)
	assert.Equal(t, uint64(2), second.metrics[0].SwapCount)
	assert.Equal(t, "2000", second.metrics[0].VolumeX)
	assert.Equal(t, "6", second.metrics[0].FeeX)

	third := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 60, StateStore: state}, third, nil).Run(ctx, input))
	assert.Empty(t, third.metrics)
}

func TestAggregatorResumeCompletesOpenWindow(t *testing.T) {
	input := writeEvents(t, swapX(t, 1, 10), swapX(t, 2, 100))
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "agg_state.json")}
	ctx := context.Background()

	require.NoError(t, NewAggregator(Config{WindowSeconds: 60, StateStore: state}, &captureWriter{}, nil).Run(ctx, input))

	appendEvents(t, input, swapX(t, 3, 110), swapX(t, 4, 200))

	resumed := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 60, StateStore: state}, resumed, nil).Run(ctx, input))
	require.Len(t, resumed.metrics, 2)
	sort.Slice(resumed.metrics, func(i, j int) bool { return resumed.metrics[i].WindowStart.Before(resumed.metrics[j].WindowStart) })

	assert.Equal(t, time.Unix(60, 0).UTC(), resumed.metrics[0].WindowStart)
	assert.Equal(t, uint64(2), resumed.metrics[0].SwapCount)
	assert.Equal(t, time.Unix(180, 0).UTC(), resumed.metrics[1].WindowStart)
	assert.Equal(t, uint64(1), resumed.metrics[1].SwapCount)

	cursors, err := state.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.PoolCursor{{Pool: testPool, ClosedSeq: 3, LastSeq: 4}}, cursors)
}

func TestAggregatorMidRunStateKeepsOpenWindowUnwritten(t *testing.T) {
	input := writeEvents(t, swapX(t, 1, 10), swapX(t, 2, 70), swapX(t, 3, 80))
	saves := &recordingState{}

	require.NoError(t, NewAggregator(Config{WindowSeconds: 60, BatchSize: 1, StateStore: saves}, &captureWriter{}, nil).Run(context.Background(), input))
	require.Len(t, saves.saved, 2)
	assert.Equal(t, []model.PoolCursor{{Pool: testPool, ClosedSeq: 1, LastSeq: 1}}, saves.saved[0])
	assert.Equal(t, []model.PoolCursor{{Pool: testPool, ClosedSeq: 1, LastSeq: 3}}, saves.saved[1])
}

type recordingState struct {
	saved [][]model.PoolCursor
}

func (r *recordingState) Load(context.Context) ([]model.PoolCursor, error) { return nil, nil }

func (r *recordingState) Save(_ context.Context, cursors []model.PoolCursor) error {
	r.saved = append(r.saved, cursors)
	return nil
}

func TestFileStateStoreRejectsCorruptCursor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agg_state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pools":[{"pool":"0x01","closed_seq":5,"last_seq":2}]}`), 0o644))
	_, err := (&FileStateStore{Path: path}).Load(context.Background())
	require.Error(t, err)

	cursors, err := (&FileStateStore{Path: filepath.Join(t.TempDir(), "missing.json")}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cursors)
}

func TestAggregatorRejectsForeignSwapInput(t *testing.T) {
	input := writeEvents(t,
		event(t, 1, 5, model.EventSwap, model.SwapEventData{TokenIn: "0xcccccccccccccccccccccccccccccccccccccccc", AmountIn: "10", AmountOut: "9"}, "10", "10"),
	)
	out := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 60}, out, nil).Run(context.Background(), input))
	require.Len(t, out.metrics, 1)
	assert.Equal(t, uint64(0), out.metrics[0].SwapCount)
	assert.Equal(t, "0", out.metrics[0].VolumeX)
}

func TestAggregatorConfigChecks(t *testing.T) {
	require.Error(t, NewAggregator(Config{WindowSeconds: 60}, nil, nil).Run(context.Background(), "unused"))
	require.Error(t, NewAggregator(Config{}, &captureWriter{}, nil).Run(context.Background(), "unused"))
}

func TestFeeFromAmount(t *testing.T) {
	assert.Equal(t, int64(3), feeFromAmount(big.NewInt(1000)).Int64())
	assert.Equal(t, int64(0), feeFromAmount(big.NewInt(333)).Int64())
	assert.Equal(t, int64(0), feeFromAmount(nil).Int64())
}

func TestComputeAPR(t *testing.T) {
	year := uint64(365 * 24 * 60 * 60)
	apr := computeAPR(big.NewInt(10), big.NewInt(0), big.NewInt(1000), big.NewInt(1000), year)
	require.NotNil(t, apr)
	assert.Equal(t, "0.005000000000000000", *apr)

	apr = computeAPR(big.NewInt(10), big.NewInt(20), big.NewInt(1000), big.NewInt(2000), year)
	require.NotNil(t, apr)
	assert.Equal(t, "0.010000000000000000", *apr)

	assert.Nil(t, computeAPR(big.NewInt(10), nil, big.NewInt(0), big.NewInt(1000), year))
	assert.Nil(t, computeAPR(big.NewInt(10), nil, big.NewInt(10), big.NewInt(1000), 0))
}

func TestFormatTokenAmount(t *testing.T) {
	assert.Equal(t, "1234.567", formatTokenAmount(big.NewInt(1_234_567), 3))
	assert.Equal(t, "42", formatTokenAmount(big.NewInt(42), 0))
	assert.Equal(t, "0", formatTokenAmount(nil, 6))
}
