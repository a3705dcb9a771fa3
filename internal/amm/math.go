package amm

import (
	"github.com/holiman/uint256"
)

// MinimumLiquidity is the share amount locked forever on the first deposit.
const MinimumLiquidity = 1000

const (
	feeNumerator   = 997
	feeDenominator = 1000
	priceDecimals  = 18
)

var (
	minimumLiquidity = uint256.NewInt(MinimumLiquidity)
	feeMul           = uint256.NewInt(feeNumerator)
	feeDen           = uint256.NewInt(feeDenominator)
	priceScale       = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(priceDecimals))

	// MaxReserve bounds each reserve to 112 bits so reserve products and
	// fee-scaled terms stay within 256 bits.
	MaxReserve = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 112), 1)
)

// GetAmountOut returns the fee-adjusted output of an exact-input trade:
// floor(amountIn*997*reserveOut / (reserveIn*1000 + amountIn*997)).
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if isZero(amountIn) {
		return nil, ErrInsufficientOutputAmount
	}
	if isZero(reserveIn) || isZero(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}

	amountInWithFee, overflow := new(uint256.Int).MulOverflow(amountIn, feeMul)
	if overflow {
		return nil, ErrOverflow
	}
	numerator, overflow := new(uint256.Int).MulOverflow(amountInWithFee, reserveOut)
	if overflow {
		return nil, ErrOverflow
	}
	denominator, overflow := new(uint256.Int).MulOverflow(reserveIn, feeDen)
	if overflow {
		return nil, ErrOverflow
	}
	if _, overflow := denominator.AddOverflow(denominator, amountInWithFee); overflow {
		return nil, ErrOverflow
	}
	return numerator.Div(numerator, denominator), nil
}

// GetAmountIn returns the smallest input that yields at least amountOut
// under the same fee curve.
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if isZero(amountOut) {
		return nil, ErrInsufficientOutputAmount
	}
	if isZero(reserveIn) || isZero(reserveOut) || !amountOut.Lt(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}

	numerator, err := mul(reserveIn, amountOut)
	if err != nil {
		return nil, err
	}
	if numerator, err = mul(numerator, feeDen); err != nil {
		return nil, err
	}
	remaining := new(uint256.Int).Sub(reserveOut, amountOut)
	denominator, err := mul(remaining, feeMul)
	if err != nil {
		return nil, err
	}
	amountIn := numerator.Div(numerator, denominator)
	return amountIn.AddUint64(amountIn, 1), nil
}

// Quote returns the amount of B equivalent to amountA at the current ratio.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if isZero(amountA) {
		return nil, ErrInsufficientInputAmount
	}
	if isZero(reserveA) || isZero(reserveB) {
		return nil, ErrInsufficientLiquidity
	}
	return mulDiv(amountA, reserveB, reserveA)
}

func mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// mulDiv computes floor(x*y/d). d must be non-zero.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := mul(x, y)
	if err != nil {
		return nil, err
	}
	return z.Div(z, d), nil
}

func minInt(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}

func zero() *uint256.Int {
	return new(uint256.Int)
}

func clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
