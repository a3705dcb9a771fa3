package amm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pairEngine/internal/model"
)

// Snapshot captures the pool state for persistence.
func (e *Engine) Snapshot() model.PoolSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	balances := make(map[string]string, len(e.ledger.balances))
	for holder, shares := range e.ledger.balances {
		balances[holder.Hex()] = shares.Dec()
	}
	return model.PoolSnapshot{
		Pool:         e.cfg.Address.Hex(),
		AssetX:       e.cfg.AssetX.Hex(),
		AssetY:       e.cfg.AssetY.Hex(),
		ReserveX:     e.reserves.reserveX.Dec(),
		ReserveY:     e.reserves.reserveY.Dec(),
		TotalShares:  e.ledger.totalShares.Dec(),
		LockedShares: e.ledger.locked.Dec(),
		Balances:     balances,
		Seq:          e.seq,
		Timestamp:    e.clock.Now(),
	}
}

// Restore replaces the pool state with snap. The snapshot must belong to
// this pool and satisfy every pool invariant; otherwise nothing changes.
func (e *Engine) Restore(snap model.PoolSnapshot) error {
	if !sameAddress(snap.Pool, e.cfg.Address) || !sameAddress(snap.AssetX, e.cfg.AssetX) || !sameAddress(snap.AssetY, e.cfg.AssetY) {
		return fmt.Errorf("%w: snapshot belongs to pool %s (%s/%s)", ErrInvalidToken, snap.Pool, snap.AssetX, snap.AssetY)
	}

	reserves := newReservePool(e.cfg.AssetX, e.cfg.AssetY)
	ledger := newLiquidityLedger()
	var err error
	if reserves.reserveX, err = parseAmount("reserve_x", snap.ReserveX); err != nil {
		return err
	}
	if reserves.reserveY, err = parseAmount("reserve_y", snap.ReserveY); err != nil {
		return err
	}
	if ledger.totalShares, err = parseAmount("total_shares", snap.TotalShares); err != nil {
		return err
	}
	if ledger.locked, err = parseAmount("locked_shares", snap.LockedShares); err != nil {
		return err
	}
	for holder, value := range snap.Balances {
		if !common.IsHexAddress(holder) {
			return fmt.Errorf("%w: holder %s", ErrInvalidAddress, holder)
		}
		shares, err := parseAmount("balance", value)
		if err != nil {
			return err
		}
		if shares.IsZero() {
			continue
		}
		ledger.balances[common.HexToAddress(holder)] = shares
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	savedReserves, savedLedger := e.reserves, e.ledger
	e.reserves, e.ledger = reserves, ledger
	if err := e.checkInvariants(nil); err != nil {
		e.reserves, e.ledger = savedReserves, savedLedger
		return err
	}
	e.seq = snap.Seq
	return nil
}

func parseAmount(field, value string) (*uint256.Int, error) {
	if strings.TrimSpace(value) == "" {
		return zero(), nil
	}
	v, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return v, nil
}

func sameAddress(hex string, addr common.Address) bool {
	return common.IsHexAddress(hex) && common.HexToAddress(hex) == addr
}
