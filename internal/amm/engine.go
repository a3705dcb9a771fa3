package amm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/model"
)

// EventSink receives notifications for committed operations, in commit order.
type EventSink interface {
	Emit(record model.EventRecord)
}

// Config fixes the pool identity and its asset pair.
type Config struct {
	Address common.Address
	AssetX  common.Address
	AssetY  common.Address
	Sink    EventSink
}

// Engine is a two-asset constant-product pool. Mutating operations are
// linearizable: each runs its read-compute-transfer-commit sequence under
// the pool mutex and either commits fully or leaves no trace.
type Engine struct {
	cfg     Config
	clock   Clock
	gateway *TransferGateway
	logger  *zap.Logger

	mu       sync.Mutex
	reserves *ReservePool
	ledger   *LiquidityLedger
	seq      uint64
}

// AddLiquidityParams describes a deposit.
type AddLiquidityParams struct {
	Sender    common.Address
	Recipient common.Address
	DesiredX  *uint256.Int
	DesiredY  *uint256.Int
	MinX      *uint256.Int
	MinY      *uint256.Int
	Deadline  uint64
}

// AddLiquidityResult reports what a deposit used and minted.
type AddLiquidityResult struct {
	UsedX  *uint256.Int
	UsedY  *uint256.Int
	Shares *uint256.Int
}

// RemoveLiquidityParams describes a withdrawal.
type RemoveLiquidityParams struct {
	Sender    common.Address
	Recipient common.Address
	Shares    *uint256.Int
	MinX      *uint256.Int
	MinY      *uint256.Int
	Deadline  uint64
}

// RemoveLiquidityResult reports the released amounts.
type RemoveLiquidityResult struct {
	AmountX *uint256.Int
	AmountY *uint256.Int
}

// SwapParams describes an exact-input swap along Path = [tokenIn, tokenOut].
type SwapParams struct {
	Sender       common.Address
	Recipient    common.Address
	AmountIn     *uint256.Int
	MinAmountOut *uint256.Int
	Path         []common.Address
	Deadline     uint64
}

// New creates an empty pool. assets must provide both pool assets.
func New(cfg Config, assets map[common.Address]AssetTransferProvider, clock Clock, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	var zeroAddr common.Address
	switch {
	case cfg.AssetX == zeroAddr || cfg.AssetY == zeroAddr:
		return nil, fmt.Errorf("%w: zero asset", ErrInvalidConstructorArguments)
	case cfg.AssetX == cfg.AssetY:
		return nil, fmt.Errorf("%w: identical assets", ErrInvalidConstructorArguments)
	case cfg.Address == zeroAddr:
		return nil, fmt.Errorf("%w: zero pool address", ErrInvalidConstructorArguments)
	case cfg.Address == cfg.AssetX || cfg.Address == cfg.AssetY:
		return nil, fmt.Errorf("%w: pool address equals an asset", ErrInvalidConstructorArguments)
	}
	for _, asset := range []common.Address{cfg.AssetX, cfg.AssetY} {
		if assets[asset] == nil {
			return nil, fmt.Errorf("%w: no provider for %s", ErrInvalidConstructorArguments, asset.Hex())
		}
	}

	logger = logger.With(zap.String("pool", cfg.Address.Hex()))
	return &Engine{
		cfg:      cfg,
		clock:    clock,
		gateway:  newTransferGateway(cfg.Address, assets, logger),
		logger:   logger,
		reserves: newReservePool(cfg.AssetX, cfg.AssetY),
		ledger:   newLiquidityLedger(),
	}, nil
}

// Address returns the pool identity.
func (e *Engine) Address() common.Address { return e.cfg.Address }

// Assets returns the pool's asset pair in (X, Y) order.
func (e *Engine) Assets() (common.Address, common.Address) { return e.cfg.AssetX, e.cfg.AssetY }

// AddLiquidity deposits both assets at the current ratio and mints shares.
func (e *Engine) AddLiquidity(ctx context.Context, p AddLiquidityParams) (AddLiquidityResult, error) {
	var res AddLiquidityResult
	err := e.execute(ctx, "add_liquidity", func(tx *txn) error {
		if err := e.checkCommon(p.Deadline, p.Sender, p.Recipient); err != nil {
			return err
		}
		if isZero(p.DesiredX) || isZero(p.DesiredY) {
			return ErrInsufficientInputAmount
		}

		reserveX, reserveY := e.reserves.CurrentReserves()
		totalShares := e.ledger.TotalShares()

		usedX, usedY, err := AddLiquidityAmounts(p.DesiredX, p.DesiredY, clone(p.MinX), clone(p.MinY), reserveX, reserveY)
		if err != nil {
			return err
		}
		shares, err := SharesForDeposit(usedX, usedY, reserveX, reserveY, totalShares)
		if err != nil {
			return err
		}

		if err := e.reserves.credit(e.cfg.AssetX, usedX); err != nil {
			return err
		}
		if err := e.reserves.credit(e.cfg.AssetY, usedY); err != nil {
			return err
		}
		if err := tx.journal.moveIn(ctx, e.cfg.AssetX, p.Sender, usedX); err != nil {
			return err
		}
		if err := tx.journal.moveIn(ctx, e.cfg.AssetY, p.Sender, usedY); err != nil {
			return err
		}

		if totalShares.IsZero() {
			if err := e.ledger.lockMinimum(); err != nil {
				return err
			}
		}
		if err := e.ledger.mint(p.Recipient, shares); err != nil {
			return err
		}

		res = AddLiquidityResult{UsedX: usedX, UsedY: usedY, Shares: shares}
		tx.event(model.EventLiquidityAdded, model.LiquidityAddedEventData{
			Sender:    p.Sender.Hex(),
			Recipient: p.Recipient.Hex(),
			AmountX:   usedX.Dec(),
			AmountY:   usedY.Dec(),
			Shares:    shares.Dec(),
		})
		return nil
	})
	return res, err
}

// RemoveLiquidity burns the sender's shares and releases the pro-rata
// reserves to the recipient. A withdrawal where either amount rounds to
// zero fails with ErrInsufficientLiquidityBurned even when both minimums
// are zero.
//
// If paying the second asset fails, the first payout is pulled back from
// the recipient with transferFrom. That needs the recipient's allowance
// for the pool; without it the rollback is incomplete and the error wraps
// ErrTransferFromFailed.
func (e *Engine) RemoveLiquidity(ctx context.Context, p RemoveLiquidityParams) (RemoveLiquidityResult, error) {
	var res RemoveLiquidityResult
	err := e.execute(ctx, "remove_liquidity", func(tx *txn) error {
		if err := e.checkCommon(p.Deadline, p.Sender, p.Recipient); err != nil {
			return err
		}
		if isZero(p.Shares) {
			return ErrInsufficientLiquidityBurned
		}
		if e.ledger.BalanceOf(p.Sender).Lt(p.Shares) {
			return ErrInsufficientShares
		}

		reserveX, reserveY := e.reserves.CurrentReserves()
		amountX, amountY, err := AmountsForShares(p.Shares, reserveX, reserveY, e.ledger.TotalShares())
		if err != nil {
			return err
		}
		if amountX.IsZero() || amountY.IsZero() {
			return ErrInsufficientLiquidityBurned
		}
		if amountX.Lt(clone(p.MinX)) || amountY.Lt(clone(p.MinY)) {
			return ErrInsufficientOutputAmount
		}

		if err := e.ledger.burn(p.Sender, p.Shares); err != nil {
			return err
		}
		if err := e.reserves.debit(e.cfg.AssetX, amountX); err != nil {
			return err
		}
		if err := e.reserves.debit(e.cfg.AssetY, amountY); err != nil {
			return err
		}
		if err := tx.journal.moveOut(ctx, e.cfg.AssetX, p.Recipient, amountX); err != nil {
			return err
		}
		if err := tx.journal.moveOut(ctx, e.cfg.AssetY, p.Recipient, amountY); err != nil {
			return err
		}

		res = RemoveLiquidityResult{AmountX: amountX, AmountY: amountY}
		tx.event(model.EventLiquidityRemoved, model.LiquidityRemovedEventData{
			Sender:    p.Sender.Hex(),
			AmountX:   amountX.Dec(),
			AmountY:   amountY.Dec(),
			Recipient: p.Recipient.Hex(),
			Shares:    p.Shares.Dec(),
		})
		return nil
	})
	return res, err
}

// Swap trades exactly AmountIn of Path[0] for at least MinAmountOut of Path[1].
// A trade whose output rounds to zero fails with ErrInsufficientOutputAmount
// even when MinAmountOut is zero.
//
// The output is paid after the input is pulled in. Should the output
// transfer fail, the input is returned to the sender; if instead the
// output transfer succeeds but the commit check fails, reversing it pulls
// from the recipient and needs the recipient's allowance for the pool.
func (e *Engine) Swap(ctx context.Context, p SwapParams) (*uint256.Int, error) {
	var amountOut *uint256.Int
	err := e.execute(ctx, "swap", func(tx *txn) error {
		if err := e.checkCommon(p.Deadline, p.Sender, p.Recipient); err != nil {
			return err
		}
		if len(p.Path) != 2 {
			return ErrInvalidSwapRoute
		}
		tokenIn, tokenOut := p.Path[0], p.Path[1]
		reserveIn, reserveOut, err := e.reserves.Ordered(tokenIn, tokenOut)
		if err != nil {
			return err
		}
		if reserveIn.IsZero() || reserveOut.IsZero() {
			return ErrInsufficientLiquidity
		}
		out, err := GetAmountOut(p.AmountIn, reserveIn, reserveOut)
		if err != nil {
			return err
		}
		if out.IsZero() || out.Lt(clone(p.MinAmountOut)) {
			return ErrInsufficientOutputAmount
		}

		tx.checkProduct = e.reserves.product()
		if err := e.reserves.credit(tokenIn, p.AmountIn); err != nil {
			return err
		}
		if err := e.reserves.debit(tokenOut, out); err != nil {
			return err
		}
		if err := tx.journal.moveIn(ctx, tokenIn, p.Sender, p.AmountIn); err != nil {
			return err
		}
		if err := tx.journal.moveOut(ctx, tokenOut, p.Recipient, out); err != nil {
			return err
		}

		amountOut = out
		tx.event(model.EventSwap, model.SwapEventData{
			Sender:    p.Sender.Hex(),
			TokenIn:   tokenIn.Hex(),
			TokenOut:  tokenOut.Hex(),
			AmountIn:  p.AmountIn.Dec(),
			AmountOut: out.Dec(),
			Recipient: p.Recipient.Hex(),
		})
		return nil
	})
	return amountOut, err
}

// TransferShares moves shares between ordinary holders.
func (e *Engine) TransferShares(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return e.execute(ctx, "transfer_shares", func(tx *txn) error {
		if err := e.validRecipient(from); err != nil {
			return err
		}
		if err := e.validRecipient(to); err != nil {
			return err
		}
		if isZero(amount) {
			return ErrInsufficientShares
		}
		if err := e.ledger.transfer(from, to, amount); err != nil {
			return err
		}
		tx.event(model.EventSharesTransfer, model.SharesTransferEventData{
			From:   from.Hex(),
			To:     to.Hex(),
			Amount: amount.Dec(),
		})
		return nil
	})
}

// GetPrice returns the price of tokenA in units of the other asset, scaled
// by 1e18.
func (e *Engine) GetPrice(tokenA, tokenB common.Address) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reserveA, reserveOther, err := e.reserves.Ordered(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	if reserveA.IsZero() || reserveOther.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	return mulDiv(reserveOther, priceScale, reserveA)
}

// GetAmountOut quotes an exact-input trade against explicit reserves.
func (e *Engine) GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	return GetAmountOut(amountIn, reserveIn, reserveOut)
}

// Reserves returns the current (reserveX, reserveY).
func (e *Engine) Reserves() (*uint256.Int, *uint256.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reserves.CurrentReserves()
}

// TotalShares returns the outstanding share supply.
func (e *Engine) TotalShares() *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.TotalShares()
}

// LockedShares returns the permanently locked share amount.
func (e *Engine) LockedShares() *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Locked()
}

// ShareBalance returns holder's shares.
func (e *Engine) ShareBalance(holder common.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.BalanceOf(holder)
}

// Holders lists ordinary share holders; the locked balance is excluded.
func (e *Engine) Holders() []Holding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Holders()
}

// CheckCustody verifies that every asset able to report balances holds at
// least the recorded reserve.
func (e *Engine) CheckCustody(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	reserveX, reserveY := e.reserves.CurrentReserves()
	for _, item := range []struct {
		asset   common.Address
		reserve *uint256.Int
	}{
		{e.cfg.AssetX, reserveX},
		{e.cfg.AssetY, reserveY},
	} {
		bal, ok, err := e.gateway.Custodied(ctx, item.asset)
		if err != nil {
			return err
		}
		if ok && bal.Lt(item.reserve) {
			return fmt.Errorf("%w: custody of %s is %s, reserve %s", ErrInvariantViolation, item.asset.Hex(), bal.Dec(), item.reserve.Dec())
		}
	}
	return nil
}

func (e *Engine) checkCommon(deadline uint64, sender, recipient common.Address) error {
	if deadline < e.clock.Now() {
		return ErrDeadlineExpired
	}
	if err := e.validRecipient(sender); err != nil {
		return err
	}
	return e.validRecipient(recipient)
}

func (e *Engine) validRecipient(addr common.Address) error {
	if addr == (common.Address{}) || addr == e.cfg.Address {
		return ErrInvalidAddress
	}
	return nil
}

type txn struct {
	journal      *journal
	checkProduct *uint256.Int
	name         string
	decoded      interface{}
}

func (t *txn) event(name string, decoded interface{}) {
	t.name = name
	t.decoded = decoded
}

// execute runs fn as one all-or-nothing step under the pool mutex.
func (e *Engine) execute(ctx context.Context, op string, fn func(tx *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	savedReserves := e.reserves.clone()
	savedLedger := e.ledger.clone()
	tx := &txn{journal: e.gateway.begin()}

	err := fn(tx)
	if err == nil {
		err = e.checkInvariants(tx.checkProduct)
	}
	if err != nil {
		e.reserves = savedReserves
		e.ledger = savedLedger
		if rbErr := tx.journal.rollback(context.WithoutCancel(ctx)); rbErr != nil {
			e.logger.Error("rollback incomplete", zap.String("op", op), zap.Error(rbErr))
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		e.logger.Debug("operation rejected", zap.String("op", op), zap.String("kind", Kind(err)), zap.Error(err))
		return err
	}

	e.seq++
	if tx.name != "" && e.cfg.Sink != nil {
		e.cfg.Sink.Emit(e.record(tx.name, tx.decoded))
	}
	e.logger.Debug("operation committed",
		zap.String("op", op),
		zap.Uint64("seq", e.seq),
		zap.String("reserve_x", e.reserves.reserveX.Dec()),
		zap.String("reserve_y", e.reserves.reserveY.Dec()),
		zap.String("total_shares", e.ledger.totalShares.Dec()),
	)
	return nil
}

func (e *Engine) record(name string, decoded interface{}) model.EventRecord {
	return model.EventRecord{
		Pool:        e.cfg.Address.Hex(),
		AssetX:      e.cfg.AssetX.Hex(),
		AssetY:      e.cfg.AssetY.Hex(),
		Seq:         e.seq,
		Timestamp:   e.clock.Now(),
		EventName:   name,
		Decoded:     decoded,
		ReserveX:    e.reserves.reserveX.Dec(),
		ReserveY:    e.reserves.reserveY.Dec(),
		TotalShares: e.ledger.totalShares.Dec(),
	}
}

// checkInvariants validates the state about to be committed. productBefore,
// when set, is the reserve product the new state must not fall below.
func (e *Engine) checkInvariants(productBefore *uint256.Int) error {
	rx, ry := e.reserves.reserveX, e.reserves.reserveY
	total := e.ledger.totalShares

	if rx.IsZero() != ry.IsZero() || rx.IsZero() != total.IsZero() {
		return fmt.Errorf("%w: reserves (%s, %s) with total shares %s", ErrInvariantViolation, rx.Dec(), ry.Dec(), total.Dec())
	}
	if rx.Gt(MaxReserve) || ry.Gt(MaxReserve) {
		return ErrOverflow
	}
	if !total.IsZero() {
		if !e.ledger.locked.Eq(minimumLiquidity) {
			return fmt.Errorf("%w: locked shares %s", ErrInvariantViolation, e.ledger.locked.Dec())
		}
		if total.Lt(minimumLiquidity) {
			return fmt.Errorf("%w: total shares %s below minimum", ErrInvariantViolation, total.Dec())
		}
	}
	sum, err := e.ledger.sumBalances()
	if err != nil {
		return err
	}
	if !sum.Add(sum, e.ledger.locked).Eq(total) {
		return fmt.Errorf("%w: balances do not sum to total shares", ErrInvariantViolation)
	}
	if productBefore != nil && e.reserves.product().Lt(productBefore) {
		return fmt.Errorf("%w: reserve product decreased", ErrInvariantViolation)
	}
	return nil
}
