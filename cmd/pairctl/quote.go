package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairEngine/internal/amm"
	"pairEngine/internal/chain"
	"pairEngine/internal/config"
	"pairEngine/internal/dex"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	amountIn, err := uint256.FromDecimal(cfg.AmountIn)
	if err != nil {
		return fmt.Errorf("parse amount-in: %w", err)
	}

	var reserveIn, reserveOut *uint256.Int
	if cfg.RPCURL == "" {
		if reserveIn, err = uint256.FromDecimal(cfg.ReserveIn); err != nil {
			return fmt.Errorf("parse reserve-in: %w", err)
		}
		if reserveOut, err = uint256.FromDecimal(cfg.ReserveOut); err != nil {
			return fmt.Errorf("parse reserve-out: %w", err)
		}
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if reserveIn, reserveOut, err = liveReserves(ctx, cfg, logger); err != nil {
			return err
		}
	}

	amountOut, err := amm.GetAmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return fmt.Errorf("quote (%s): %w", amm.Kind(err), err)
	}

	logger.Debug("quote",
		zap.String("amount_in", amountIn.Dec()),
		zap.String("reserve_in", reserveIn.Dec()),
		zap.String("reserve_out", reserveOut.Dec()),
		zap.String("amount_out", amountOut.Dec()),
	)
	fmt.Fprintln(cmd.OutOrStdout(), amountOut.Dec())
	return nil
}

func liveReserves(ctx context.Context, cfg config.QuoteConfig, logger *zap.Logger) (*uint256.Int, *uint256.Int, error) {
	if !common.IsHexAddress(cfg.Pair) {
		return nil, nil, fmt.Errorf("invalid pair address: %s", cfg.Pair)
	}
	if !common.IsHexAddress(cfg.TokenIn) {
		return nil, nil, fmt.Errorf("invalid token-in address: %s", cfg.TokenIn)
	}

	policy := chain.RetryPolicy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff}
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, policy, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	state, err := chainClient.PairState(ctx, common.HexToAddress(cfg.Pair), cfg.Block)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("pair state",
		zap.Uint64("block", state.Block),
		zap.String("pair", state.Pair),
		zap.String("token0", state.Token0),
		zap.String("token1", state.Token1),
		zap.String("reserve0", state.Reserve0),
		zap.String("reserve1", state.Reserve1),
		zap.Uint32("block_timestamp_last", state.BlockTimestampLast),
	)

	return dex.OrderedReserves(state, common.HexToAddress(cfg.TokenIn))
}
