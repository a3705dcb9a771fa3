package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pairEngine/internal/model"
)

// ErrBadResponse marks a pair call that answered with data the V2 ABI
// cannot decode. Retrying the same block will not change it.
var ErrBadResponse = errors.New("bad pair response")

// ContractCaller performs read-only contract calls. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FetchPairState loads token addresses and reserves of a V2 pair.
func FetchPairState(ctx context.Context, caller ContractCaller, pair common.Address, block *big.Int) (model.PairState, error) {
	if caller == nil {
		return model.PairState{}, fmt.Errorf("chain client is nil")
	}

	pairABI, err := V2PairABI()
	if err != nil {
		return model.PairState{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := callPairMethod(ctx, caller, pair, pairABI, "token0", block)
	if err != nil {
		return model.PairState{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PairState{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callPairMethod(ctx, caller, pair, pairABI, "token1", block)
	if err != nil {
		return model.PairState{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PairState{}, fmt.Errorf("token1: %w", err)
	}

	values, err = callPairMethod(ctx, caller, pair, pairABI, "getReserves", block)
	if err != nil {
		return model.PairState{}, err
	}
	if len(values) != 3 {
		return model.PairState{}, fmt.Errorf("getReserves return size %d: %w", len(values), ErrBadResponse)
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.PairState{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.PairState{}, fmt.Errorf("reserve1: %w", err)
	}
	tsLast, err := asBigInt(values[2])
	if err != nil {
		return model.PairState{}, fmt.Errorf("block timestamp last: %w", err)
	}

	state := model.PairState{
		Pair:               pair.Hex(),
		Token0:             token0.Hex(),
		Token1:             token1.Hex(),
		Reserve0:           reserve0.String(),
		Reserve1:           reserve1.String(),
		BlockTimestampLast: uint32(tsLast.Uint64()),
	}
	if block != nil {
		state.Block = block.Uint64()
	}
	return state, nil
}

// OrderedReserves returns (reserveIn, reserveOut) for tokenIn.
func OrderedReserves(state model.PairState, tokenIn common.Address) (*uint256.Int, *uint256.Int, error) {
	reserve0, err := uint256.FromDecimal(state.Reserve0)
	if err != nil {
		return nil, nil, fmt.Errorf("parse reserve0: %w", err)
	}
	reserve1, err := uint256.FromDecimal(state.Reserve1)
	if err != nil {
		return nil, nil, fmt.Errorf("parse reserve1: %w", err)
	}
	switch tokenIn {
	case common.HexToAddress(state.Token0):
		return reserve0, reserve1, nil
	case common.HexToAddress(state.Token1):
		return reserve1, reserve0, nil
	default:
		return nil, nil, fmt.Errorf("token %s is not in pair %s", tokenIn.Hex(), state.Pair)
	}
}

func callPairMethod(ctx context.Context, caller ContractCaller, pair common.Address, pairABI abi.ABI, method string, block *big.Int) ([]interface{}, error) {
	data, err := pairABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &pair, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := pairABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %v: %w", method, err, ErrBadResponse)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing: %w", method, ErrBadResponse)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T: %w", value, ErrBadResponse)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T: %w", value, ErrBadResponse)
	}
}
