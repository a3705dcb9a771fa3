package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "pairctl",
		Short:        "Constant-product pair engine tools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay an operation script against a pool",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("script", "", "operation script JSONL")
	simulateCmd.Flags().String("events", "./data/events.jsonl", "output events JSONL")
	simulateCmd.Flags().String("results", "./data/results.jsonl", "output operation results JSONL")
	simulateCmd.Flags().String("state-file", "", "pool state file (restored before, saved after the run)")
	simulateCmd.Flags().String("state-name", "simulate", "state row name when state lives in Postgres")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN (events, snapshots and state)")
	simulateCmd.Flags().String("pool", "0x00000000000000000000000000000000000000f0", "pool address")
	simulateCmd.Flags().String("asset-x", "0x000000000000000000000000000000000000000a", "asset X address")
	simulateCmd.Flags().String("asset-y", "0x000000000000000000000000000000000000000b", "asset Y address")
	simulateCmd.Flags().String("symbol-x", "X", "asset X symbol")
	simulateCmd.Flags().String("symbol-y", "Y", "asset Y symbol")
	simulateCmd.Flags().String("ack-x", "bool", "asset X transfer acknowledgement (bool, empty)")
	simulateCmd.Flags().String("ack-y", "bool", "asset Y transfer acknowledgement (bool, empty)")
	simulateCmd.Flags().String("start-time", "", "initial logical time (unix seconds or RFC3339), default now")
	simulateCmd.Flags().Int("batch-size", 500, "events per write batch")
	simulateCmd.Flags().Bool("stop-on-fail", false, "stop at the first failed operation")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote an exact-input swap",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("amount-in", "", "input amount")
	quoteCmd.Flags().String("reserve-in", "", "input reserve (offline)")
	quoteCmd.Flags().String("reserve-out", "", "output reserve (offline)")
	quoteCmd.Flags().String("rpc", "", "RPC URL (online)")
	quoteCmd.Flags().String("pair", "", "V2 pair address (online)")
	quoteCmd.Flags().String("token-in", "", "input token address (online)")
	quoteCmd.Flags().Uint64("block", 0, "block number, 0 means latest (online)")
	quoteCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	quoteCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate pool events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "", "input events JSONL")
	aggregateCmd.Flags().String("out", "", "output metrics JSONL (when no Postgres DSN)")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for metric writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().Uint("decimals-x", 0, "asset X decimals for formatting")
	aggregateCmd.Flags().Uint("decimals-y", 0, "asset Y decimals for formatting")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
