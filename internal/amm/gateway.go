package amm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// AssetTransferProvider is an external fungible asset. Both calls return the
// raw acknowledgement: either an ABI-encoded bool or nothing at all.
type AssetTransferProvider interface {
	// Transfer moves amount from sender to to.
	Transfer(ctx context.Context, sender, to common.Address, amount *uint256.Int) ([]byte, error)
	// TransferFrom moves amount from from to to on behalf of spender.
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) ([]byte, error)
}

// BalanceReader is implemented by assets that can report balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
}

var boolArgs = mustBoolArgs()

func mustBoolArgs() abi.Arguments {
	boolType, err := abi.NewType("bool", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: boolType}}
}

// acknowledged interprets a transfer acknowledgement. An empty
// acknowledgement counts as success.
func acknowledged(ret []byte) bool {
	if len(ret) == 0 {
		return true
	}
	values, err := boolArgs.Unpack(ret)
	if err != nil || len(values) != 1 {
		return false
	}
	ok, _ := values[0].(bool)
	return ok
}

// TransferGateway moves assets into and out of the pool's custody.
type TransferGateway struct {
	pool   common.Address
	assets map[common.Address]AssetTransferProvider
	logger *zap.Logger
}

func newTransferGateway(pool common.Address, assets map[common.Address]AssetTransferProvider, logger *zap.Logger) *TransferGateway {
	return &TransferGateway{pool: pool, assets: assets, logger: logger}
}

// MoveIn pulls amount of asset from from into custody.
func (g *TransferGateway) MoveIn(ctx context.Context, asset, from common.Address, amount *uint256.Int) error {
	provider, err := g.provider(asset)
	if err != nil {
		return err
	}
	ret, err := provider.TransferFrom(ctx, g.pool, from, g.pool, amount)
	if err != nil || !acknowledged(ret) {
		return &TransferError{Asset: asset, Direction: DirectionIn, Account: from, Cause: err}
	}
	return nil
}

// MoveOut sends amount of asset from custody to to.
func (g *TransferGateway) MoveOut(ctx context.Context, asset, to common.Address, amount *uint256.Int) error {
	provider, err := g.provider(asset)
	if err != nil {
		return err
	}
	ret, err := provider.Transfer(ctx, g.pool, to, amount)
	if err != nil || !acknowledged(ret) {
		return &TransferError{Asset: asset, Direction: DirectionOut, Account: to, Cause: err}
	}
	return nil
}

// Custodied reads the pool's actual balance of asset. ok is false when the
// asset cannot report balances.
func (g *TransferGateway) Custodied(ctx context.Context, asset common.Address) (*uint256.Int, bool, error) {
	provider, err := g.provider(asset)
	if err != nil {
		return nil, false, err
	}
	reader, ok := provider.(BalanceReader)
	if !ok {
		return nil, false, nil
	}
	bal, err := reader.BalanceOf(ctx, g.pool)
	if err != nil {
		return nil, true, fmt.Errorf("balance of %s: %w", asset.Hex(), err)
	}
	return bal, true, nil
}

func (g *TransferGateway) provider(asset common.Address) (AssetTransferProvider, error) {
	provider, ok := g.assets[asset]
	if !ok || provider == nil {
		return nil, fmt.Errorf("%w: no provider for %s", ErrInvalidToken, asset.Hex())
	}
	return provider, nil
}

type leg struct {
	asset     common.Address
	account   common.Address
	amount    *uint256.Int
	direction Direction
}

// journal records completed legs of one operation so they can be reversed.
type journal struct {
	gateway *TransferGateway
	legs    []leg
}

func (g *TransferGateway) begin() *journal {
	return &journal{gateway: g}
}

func (j *journal) moveIn(ctx context.Context, asset, from common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := j.gateway.MoveIn(ctx, asset, from, amount); err != nil {
		return err
	}
	j.legs = append(j.legs, leg{asset: asset, account: from, amount: amount.Clone(), direction: DirectionIn})
	return nil
}

func (j *journal) moveOut(ctx context.Context, asset, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := j.gateway.MoveOut(ctx, asset, to, amount); err != nil {
		return err
	}
	j.legs = append(j.legs, leg{asset: asset, account: to, amount: amount.Clone(), direction: DirectionOut})
	return nil
}

// rollback reverses completed legs, newest first. Every leg is attempted;
// failures are joined. Reversing an out leg is a transferFrom on the
// recipient, so it only succeeds when the recipient has approved the pool.
func (j *journal) rollback(ctx context.Context) error {
	var errs []error
	for i := len(j.legs) - 1; i >= 0; i-- {
		l := j.legs[i]
		var err error
		switch l.direction {
		case DirectionIn:
			err = j.gateway.MoveOut(ctx, l.asset, l.account, l.amount)
		case DirectionOut:
			err = j.gateway.MoveIn(ctx, l.asset, l.account, l.amount)
		}
		if err != nil {
			j.gateway.logger.Error("compensate transfer",
				zap.String("asset", l.asset.Hex()),
				zap.String("account", l.account.Hex()),
				zap.String("amount", l.amount.Dec()),
				zap.String("direction", string(l.direction)),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	j.legs = nil
	return errors.Join(errs...)
}
