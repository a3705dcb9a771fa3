package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"pairEngine/internal/dex"
	"pairEngine/internal/model"
)

// BlockCaller is the node surface needed to read a pair at one block.
// *Client satisfies it.
type BlockCaller interface {
	dex.ContractCaller
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Client is a read-only node connection for live V2 pair quotes.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	policy    RetryPolicy
	logger    *zap.Logger
}

func NewClient(ctx context.Context, rpcURL string, policy RetryPolicy, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		policy:    policy,
		logger:    logger.With(zap.String("component", "chain")),
	}, nil
}

func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// PairState reads pair at block, or at the head when block is 0.
func (c *Client) PairState(ctx context.Context, pair common.Address, block uint64) (model.PairState, error) {
	return ReadPairState(ctx, c, c.policy, c.logger, pair, block)
}

// ReadPairState pins one block (the head when block is 0) and reads the
// pair's tokens and reserves at it, so all values describe the same state.
func ReadPairState(ctx context.Context, node BlockCaller, policy RetryPolicy, logger *zap.Logger, pair common.Address, block uint64) (model.PairState, error) {
	if node == nil {
		return model.PairState{}, fmt.Errorf("chain client is nil")
	}
	if block == 0 {
		err := policy.Do(ctx, logger, "block_number", func(ctx context.Context) error {
			var err error
			block, err = node.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return model.PairState{}, fmt.Errorf("get latest block: %w", err)
		}
	}
	pinned := new(big.Int).SetUint64(block)

	var state model.PairState
	err := policy.Do(ctx, logger, "pair_state", func(ctx context.Context) error {
		var err error
		state, err = dex.FetchPairState(ctx, node, pair, pinned)
		return err
	})
	if err != nil {
		return model.PairState{}, fmt.Errorf("read pair %s at block %d: %w", pair.Hex(), block, err)
	}
	return state, nil
}
