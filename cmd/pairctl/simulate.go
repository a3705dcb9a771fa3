package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairEngine/internal/config"
	"pairEngine/internal/simulate"
	"pairEngine/internal/storage"
	"pairEngine/internal/storage/postgres"
	"pairEngine/internal/token"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Script == "" {
		return fmt.Errorf("script path is required")
	}

	runCfg, err := simulateRunConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends := []storage.Storage{storage.NewJsonlStorage(cfg.Events)}
	deps := simulate.Deps{
		Results: storage.NewJsonlStorage(cfg.Results),
	}
	if cfg.StateFile != "" {
		deps.Snapshots = &storage.FileSnapshotStore{Path: cfg.StateFile}
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}

		backends = append(backends, store)
		deps.Publisher = store
		if deps.Snapshots == nil {
			deps.Snapshots = &simulate.DBSnapshotStore{Store: store, Name: cfg.StateName}
		}
	}
	deps.Recorder = storage.NewRecorder(cfg.BatchSize, logger, backends...)

	runner, err := simulate.NewRunner(runCfg, deps, logger)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("script", cfg.Script),
		zap.String("pool", runCfg.Pool.Hex()),
		zap.String("asset_x", runCfg.AssetX.Hex()),
		zap.String("asset_y", runCfg.AssetY.Hex()),
		zap.String("events", cfg.Events),
		zap.String("results", cfg.Results),
		zap.String("state_file", cfg.StateFile),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("start_time", runCfg.StartTime),
	)

	summary, err := runner.Run(ctx, cfg.Script)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "operations=%d failed=%d events=%d\n", summary.Operations, summary.Failed, summary.Events)
	return nil
}

func simulateRunConfig(cfg config.SimulateConfig) (simulate.RunConfig, error) {
	addrs := make([]common.Address, 0, 3)
	for _, item := range []struct{ name, value string }{
		{"pool", cfg.Pool},
		{"asset-x", cfg.AssetX},
		{"asset-y", cfg.AssetY},
	} {
		if !common.IsHexAddress(item.value) {
			return simulate.RunConfig{}, fmt.Errorf("invalid %s address: %s", item.name, item.value)
		}
		addrs = append(addrs, common.HexToAddress(item.value))
	}

	ackX, err := parseAckMode(cfg.AckX)
	if err != nil {
		return simulate.RunConfig{}, err
	}
	ackY, err := parseAckMode(cfg.AckY)
	if err != nil {
		return simulate.RunConfig{}, err
	}

	start, err := config.ParseTimestamp(cfg.StartTime)
	if err != nil {
		return simulate.RunConfig{}, fmt.Errorf("parse start-time: %w", err)
	}
	if start == 0 {
		start = uint64(time.Now().Unix())
	}

	return simulate.RunConfig{
		Pool:       addrs[0],
		AssetX:     addrs[1],
		AssetY:     addrs[2],
		SymbolX:    cfg.SymbolX,
		SymbolY:    cfg.SymbolY,
		AckX:       ackX,
		AckY:       ackY,
		StartTime:  start,
		StopOnFail: cfg.StopOnFail,
	}, nil
}

func parseAckMode(value string) (token.AckMode, error) {
	switch value {
	case "", "bool":
		return token.AckBool, nil
	case "empty":
		return token.AckEmpty, nil
	default:
		return 0, fmt.Errorf("unknown ack mode %q", value)
	}
}
