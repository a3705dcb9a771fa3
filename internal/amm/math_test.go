package amm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func TestGetAmountOutExample(t *testing.T) {
	out, err := GetAmountOut(u(100), u(1000), u(1000))
	require.NoError(t, err)
	require.Equal(t, uint64(90), out.Uint64())
}

func TestGetAmountOutFailures(t *testing.T) {
	_, err := GetAmountOut(u(0), u(1000), u(1000))
	require.ErrorIs(t, err, ErrInsufficientOutputAmount)

	_, err = GetAmountOut(nil, u(1000), u(1000))
	require.ErrorIs(t, err, ErrInsufficientOutputAmount)

	_, err = GetAmountOut(u(10), u(0), u(1000))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = GetAmountOut(u(10), u(1000), u(0))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	huge := new(uint256.Int).SetAllOne()
	_, err = GetAmountOut(huge, u(1000), u(1000))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestGetAmountOutMonotonicAndBelowSpot(t *testing.T) {
	reserveIn, reserveOut := u(5_000_000), u(3_000_000)

	prev := uint256.NewInt(0)
	for _, amountIn := range []uint64{1_000, 2_000, 10_000, 250_000, 1_000_000, 40_000_000} {
		out, err := GetAmountOut(u(amountIn), reserveIn, reserveOut)
		require.NoError(t, err)
		assert.True(t, out.Gt(prev), "amountIn %d: %s should exceed %s", amountIn, out.Dec(), prev.Dec())
		prev = out

		spot := new(uint256.Int).Mul(u(amountIn), reserveOut)
		spot.Div(spot, reserveIn)
		assert.True(t, out.Lt(spot), "amountIn %d: fee must reduce output", amountIn)
	}
}

func TestGetAmountInRoundTrip(t *testing.T) {
	reserveIn, reserveOut := u(1_000_000), u(2_000_000)
	for _, target := range []uint64{1, 997, 50_000, 1_999_000} {
		amountIn, err := GetAmountIn(u(target), reserveIn, reserveOut)
		require.NoError(t, err)

		out, err := GetAmountOut(amountIn, reserveIn, reserveOut)
		require.NoError(t, err)
		assert.False(t, out.Lt(u(target)), "target %d got %s", target, out.Dec())
	}

	_, err := GetAmountIn(u(2_000_000), reserveIn, reserveOut)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	_, err = GetAmountIn(u(0), reserveIn, reserveOut)
	require.ErrorIs(t, err, ErrInsufficientOutputAmount)
}

func TestQuote(t *testing.T) {
	out, err := Quote(u(100), u(1_000_000), u(2_000_000))
	require.NoError(t, err)
	require.Equal(t, uint64(200), out.Uint64())

	_, err = Quote(u(0), u(1), u(1))
	require.ErrorIs(t, err, ErrInsufficientInputAmount)
	_, err = Quote(u(1), u(0), u(1))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestSharesForDeposit(t *testing.T) {
	shares, err := SharesForDeposit(u(1_000_000), u(1_000_000), u(0), u(0), u(0))
	require.NoError(t, err)
	require.Equal(t, uint64(999_000), shares.Uint64())

	_, err = SharesForDeposit(u(1000), u(1000), u(0), u(0), u(0))
	require.ErrorIs(t, err, ErrInsufficientLiquidityMinted)

	shares, err = SharesForDeposit(u(100), u(200), u(1_000_000), u(2_000_000), u(1_414_213))
	require.NoError(t, err)
	require.Equal(t, uint64(141), shares.Uint64())
}

func TestAddLiquidityAmounts(t *testing.T) {
	reserveX, reserveY := u(1_000_000), u(2_000_000)

	usedX, usedY, err := AddLiquidityAmounts(u(100), u(1000), u(0), u(0), reserveX, reserveY)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), usedX.Uint64())
	assert.Equal(t, uint64(200), usedY.Uint64())

	usedX, usedY, err = AddLiquidityAmounts(u(1000), u(100), u(0), u(0), reserveX, reserveY)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), usedX.Uint64())
	assert.Equal(t, uint64(100), usedY.Uint64())

	_, _, err = AddLiquidityAmounts(u(100), u(1000), u(0), u(201), reserveX, reserveY)
	require.ErrorIs(t, err, ErrInsufficientBAmount)

	_, _, err = AddLiquidityAmounts(u(1000), u(100), u(51), u(0), reserveX, reserveY)
	require.ErrorIs(t, err, ErrInsufficientAAmount)

	usedX, usedY, err = AddLiquidityAmounts(u(7), u(9), u(0), u(0), u(0), u(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), usedX.Uint64())
	assert.Equal(t, uint64(9), usedY.Uint64())
}

func TestAmountsForShares(t *testing.T) {
	x, y, err := AmountsForShares(u(500), u(1000), u(3000), u(1500))
	require.NoError(t, err)
	assert.Equal(t, uint64(333), x.Uint64())
	assert.Equal(t, uint64(1000), y.Uint64())

	_, _, err = AmountsForShares(u(1), u(0), u(0), u(0))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestLiquidityHelpersTreatNilAsZero(t *testing.T) {
	usedX, usedY, err := AddLiquidityAmounts(u(1), u(1), nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), usedX.Uint64())
	assert.Equal(t, uint64(1), usedY.Uint64())

	usedX, usedY, err = AddLiquidityAmounts(nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, usedX.IsZero())
	assert.True(t, usedY.IsZero())

	_, _, err = AddLiquidityAmounts(u(10), nil, nil, nil, u(100), u(100))
	require.ErrorIs(t, err, ErrInsufficientInputAmount)

	shares, err := SharesForDeposit(u(4_000), u(4_000), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000), shares.Uint64())

	_, err = SharesForDeposit(nil, nil, nil, nil, nil)
	require.ErrorIs(t, err, ErrInsufficientLiquidityMinted)

	_, err = SharesForDeposit(u(1), u(1), nil, u(5), u(10))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, _, err = AmountsForShares(u(1), nil, nil, nil)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	x, y, err := AmountsForShares(nil, u(10), nil, u(10))
	require.NoError(t, err)
	assert.True(t, x.IsZero())
	assert.True(t, y.IsZero())
}
