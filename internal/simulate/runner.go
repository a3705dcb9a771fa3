package simulate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairEngine/internal/amm"
	"pairEngine/internal/model"
	"pairEngine/internal/storage"
	"pairEngine/internal/token"
)

// RunConfig holds runtime settings for a simulation.
type RunConfig struct {
	Pool       common.Address
	AssetX     common.Address
	AssetY     common.Address
	SymbolX    string
	SymbolY    string
	AckX       token.AckMode
	AckY       token.AckMode
	StartTime  uint64
	StopOnFail bool
}

// ResultWriter receives the outcome of every script line.
type ResultWriter interface {
	PutResults(ctx context.Context, results []model.OperationResult) error
}

// SnapshotPublisher mirrors the final pool view somewhere queryable.
type SnapshotPublisher interface {
	UpsertSnapshot(ctx context.Context, snap model.PoolSnapshot) error
}

// Deps are the runner's optional outputs.
type Deps struct {
	Recorder  *storage.Recorder
	Results   ResultWriter
	Snapshots storage.SnapshotStore
	Publisher SnapshotPublisher
}

// Summary counts what a run did.
type Summary struct {
	Operations int
	Failed     int
	Events     int
}

// Runner replays operation scripts against one pool.
type Runner struct {
	cfg    RunConfig
	deps   Deps
	logger *zap.Logger

	clock  *amm.ManualClock
	engine *amm.Engine
	tokens map[common.Address]*token.Ledger
	xRef   string
	yRef   string
}

// NewRunner builds the pool and its two asset ledgers.
func NewRunner(cfg RunConfig, deps Deps, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Recorder == nil {
		deps.Recorder = storage.NewRecorder(0, logger)
	}

	tokenX := token.NewLedger(cfg.AssetX, cfg.SymbolX, cfg.AckX)
	tokenY := token.NewLedger(cfg.AssetY, cfg.SymbolY, cfg.AckY)
	clock := amm.NewManualClock(cfg.StartTime)

	engine, err := amm.New(amm.Config{
		Address: cfg.Pool,
		AssetX:  cfg.AssetX,
		AssetY:  cfg.AssetY,
		Sink:    deps.Recorder,
	}, map[common.Address]amm.AssetTransferProvider{
		cfg.AssetX: tokenX,
		cfg.AssetY: tokenY,
	}, clock, logger)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		clock:  clock,
		engine: engine,
		tokens: map[common.Address]*token.Ledger{
			cfg.AssetX: tokenX,
			cfg.AssetY: tokenY,
		},
		xRef: cfg.SymbolX,
		yRef: cfg.SymbolY,
	}, nil
}

// Engine exposes the simulated pool.
func (r *Runner) Engine() *amm.Engine { return r.engine }

// Token returns the ledger of asset.
func (r *Runner) Token(asset common.Address) *token.Ledger { return r.tokens[asset] }

// Run restores saved state, replays the script at scriptPath and saves the
// resulting state.
func (r *Runner) Run(ctx context.Context, scriptPath string) (Summary, error) {
	file, err := os.Open(scriptPath)
	if err != nil {
		return Summary{}, fmt.Errorf("open script: %w", err)
	}
	defer file.Close()
	return r.RunScript(ctx, file)
}

// RunScript is Run over an already opened script.
func (r *Runner) RunScript(ctx context.Context, script io.Reader) (Summary, error) {
	if err := r.restore(ctx); err != nil {
		return Summary{}, err
	}

	var summary Summary
	var results []model.OperationResult

	scanner := bufio.NewScanner(script)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		summary.Operations++

		var op model.Operation
		var output map[string]string
		err := json.Unmarshal(line, &op)
		if err != nil {
			err = fmt.Errorf("%w: decode line: %v", ErrInvalidOperation, err)
		} else {
			output, err = r.apply(ctx, op)
		}

		result := model.OperationResult{Line: lineNo, Op: op.Op, OK: err == nil, Output: output}
		if err != nil {
			summary.Failed++
			result.Error = err.Error()
			result.Kind = errorKind(err)
			r.logger.Warn("operation failed",
				zap.Int("line", lineNo),
				zap.String("op", op.Op),
				zap.String("kind", result.Kind),
				zap.Error(err),
			)
		}
		results = append(results, result)

		if err != nil && r.cfg.StopOnFail {
			if flushErr := r.flush(ctx, results); flushErr != nil {
				return summary, errors.Join(err, flushErr)
			}
			return summary, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if r.deps.Recorder.Full() {
			if err := r.deps.Recorder.Flush(ctx); err != nil {
				return summary, fmt.Errorf("store events: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan script: %w", err)
	}

	if err := r.flush(ctx, results); err != nil {
		return summary, err
	}
	summary.Events = r.deps.Recorder.Written()

	if err := r.engine.CheckCustody(ctx); err != nil {
		return summary, err
	}
	if err := r.save(ctx); err != nil {
		return summary, err
	}

	r.logger.Info("simulation complete",
		zap.Int("operations", summary.Operations),
		zap.Int("failed", summary.Failed),
		zap.Int("events", summary.Events),
	)
	return summary, nil
}

func (r *Runner) flush(ctx context.Context, results []model.OperationResult) error {
	if err := r.deps.Recorder.Flush(ctx); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	if r.deps.Results != nil {
		if err := r.deps.Results.PutResults(ctx, results); err != nil {
			return fmt.Errorf("store results: %w", err)
		}
	}
	return nil
}

func (r *Runner) restore(ctx context.Context) error {
	if r.deps.Snapshots == nil {
		return nil
	}
	state, ok, err := r.deps.Snapshots.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := r.engine.Restore(state.Pool); err != nil {
		return fmt.Errorf("restore pool: %w", err)
	}
	for asset, ledger := range r.tokens {
		if err := ledger.SetBalances(balancesFor(state.Balances, asset)); err != nil {
			return fmt.Errorf("restore %s balances: %w", ledger.Symbol(), err)
		}
	}
	if state.Clock > r.clock.Now() {
		if err := r.clock.Set(state.Clock); err != nil {
			return err
		}
	}
	if err := r.engine.CheckCustody(ctx); err != nil {
		return fmt.Errorf("restored state: %w", err)
	}

	r.logger.Info("resume from snapshot",
		zap.Uint64("seq", state.Pool.Seq),
		zap.Uint64("clock", r.clock.Now()),
		zap.String("reserve_x", state.Pool.ReserveX),
		zap.String("reserve_y", state.Pool.ReserveY),
	)
	return nil
}

func (r *Runner) save(ctx context.Context) error {
	snap := r.engine.Snapshot()
	if r.deps.Snapshots != nil {
		state := model.EngineState{
			Pool:     snap,
			Clock:    r.clock.Now(),
			Balances: make(map[string]map[string]string, len(r.tokens)),
		}
		for asset, ledger := range r.tokens {
			state.Balances[asset.Hex()] = ledger.Balances()
		}
		if err := r.deps.Snapshots.Save(ctx, state); err != nil {
			return err
		}
	}
	if r.deps.Publisher != nil {
		if err := r.deps.Publisher.UpsertSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("publish snapshot: %w", err)
		}
	}
	return nil
}

func balancesFor(all map[string]map[string]string, asset common.Address) map[string]string {
	for key, balances := range all {
		if common.IsHexAddress(key) && common.HexToAddress(key) == asset {
			return balances
		}
	}
	return map[string]string{}
}
