package amm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ReservePool tracks how many units of each asset the pool custodies.
// Counters are authoritative and only change inside an engine transaction.
// ReservePool does no locking of its own.
type ReservePool struct {
	assetX   common.Address
	assetY   common.Address
	reserveX *uint256.Int
	reserveY *uint256.Int
}

func newReservePool(assetX, assetY common.Address) *ReservePool {
	return &ReservePool{
		assetX:   assetX,
		assetY:   assetY,
		reserveX: zero(),
		reserveY: zero(),
	}
}

// CurrentReserves returns copies of both reserves; (0, 0) for an empty pool.
func (r *ReservePool) CurrentReserves() (*uint256.Int, *uint256.Int) {
	return r.reserveX.Clone(), r.reserveY.Clone()
}

// Empty reports whether the pool holds nothing.
func (r *ReservePool) Empty() bool {
	return r.reserveX.IsZero() && r.reserveY.IsZero()
}

// Has reports whether token is one of the pool's two assets.
func (r *ReservePool) Has(token common.Address) bool {
	return token == r.assetX || token == r.assetY
}

// Ordered resolves reserves for a directed pair.
func (r *ReservePool) Ordered(tokenIn, tokenOut common.Address) (reserveIn, reserveOut *uint256.Int, err error) {
	if tokenIn == tokenOut {
		return nil, nil, ErrInvalidToken
	}
	switch {
	case tokenIn == r.assetX && tokenOut == r.assetY:
		return r.reserveX.Clone(), r.reserveY.Clone(), nil
	case tokenIn == r.assetY && tokenOut == r.assetX:
		return r.reserveY.Clone(), r.reserveX.Clone(), nil
	default:
		return nil, nil, ErrInvalidToken
	}
}

// credit adds amount to the reserve of token, bounded by MaxReserve.
func (r *ReservePool) credit(token common.Address, amount *uint256.Int) error {
	target := r.slot(token)
	if target == nil {
		return ErrInvalidToken
	}
	sum, overflow := new(uint256.Int).AddOverflow(target, amount)
	if overflow || sum.Gt(MaxReserve) {
		return ErrOverflow
	}
	target.Set(sum)
	return nil
}

func (r *ReservePool) debit(token common.Address, amount *uint256.Int) error {
	target := r.slot(token)
	if target == nil {
		return ErrInvalidToken
	}
	if target.Lt(amount) {
		return ErrInsufficientLiquidity
	}
	target.Sub(target, amount)
	return nil
}

func (r *ReservePool) slot(token common.Address) *uint256.Int {
	switch token {
	case r.assetX:
		return r.reserveX
	case r.assetY:
		return r.reserveY
	default:
		return nil
	}
}

// product returns reserveX*reserveY; both are bounded by MaxReserve.
func (r *ReservePool) product() *uint256.Int {
	return new(uint256.Int).Mul(r.reserveX, r.reserveY)
}

func (r *ReservePool) clone() *ReservePool {
	return &ReservePool{
		assetX:   r.assetX,
		assetY:   r.assetY,
		reserveX: r.reserveX.Clone(),
		reserveY: r.reserveY.Clone(),
	}
}
