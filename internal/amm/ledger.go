package amm

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// LiquidityLedger owns share accounting. The locked minimum-liquidity
// balance is held apart from ordinary holders and can never be burned or
// transferred.
type LiquidityLedger struct {
	totalShares *uint256.Int
	locked      *uint256.Int
	balances    map[common.Address]*uint256.Int
}

// Holding is one holder's share balance.
type Holding struct {
	Holder common.Address
	Shares *uint256.Int
}

func newLiquidityLedger() *LiquidityLedger {
	return &LiquidityLedger{
		totalShares: zero(),
		locked:      zero(),
		balances:    make(map[common.Address]*uint256.Int),
	}
}

// AddLiquidityAmounts picks the deposit that preserves the reserve ratio.
// On an empty pool the desired amounts are used as-is. Nil amounts count
// as zero.
func AddLiquidityAmounts(desiredX, desiredY, minX, minY, reserveX, reserveY *uint256.Int) (usedX, usedY *uint256.Int, err error) {
	desiredX, desiredY = clone(desiredX), clone(desiredY)
	if isZero(reserveX) && isZero(reserveY) {
		return desiredX, desiredY, nil
	}

	matchedY, err := Quote(desiredX, reserveX, reserveY)
	if err != nil {
		return nil, nil, err
	}
	if !matchedY.Gt(desiredY) {
		if matchedY.Lt(clone(minY)) {
			return nil, nil, ErrInsufficientBAmount
		}
		return desiredX, matchedY, nil
	}

	matchedX, err := Quote(desiredY, reserveY, reserveX)
	if err != nil {
		return nil, nil, err
	}
	// matchedX <= desiredX holds whenever matchedY > desiredY.
	if matchedX.Lt(clone(minX)) {
		return nil, nil, ErrInsufficientAAmount
	}
	return matchedX, desiredY, nil
}

// SharesForDeposit returns how many shares a deposit of (usedX, usedY)
// mints. For the first deposit this is floor(sqrt(usedX*usedY)) minus
// MinimumLiquidity.
func SharesForDeposit(usedX, usedY, reserveX, reserveY, totalShares *uint256.Int) (*uint256.Int, error) {
	usedX, usedY = clone(usedX), clone(usedY)
	if isZero(totalShares) {
		product, err := mul(usedX, usedY)
		if err != nil {
			return nil, err
		}
		root := new(uint256.Int).Sqrt(product)
		if !root.Gt(minimumLiquidity) {
			return nil, ErrInsufficientLiquidityMinted
		}
		return root.Sub(root, minimumLiquidity), nil
	}

	if isZero(reserveX) || isZero(reserveY) {
		return nil, ErrInsufficientLiquidity
	}
	sharesX, err := mulDiv(usedX, totalShares, reserveX)
	if err != nil {
		return nil, err
	}
	sharesY, err := mulDiv(usedY, totalShares, reserveY)
	if err != nil {
		return nil, err
	}
	shares := minInt(sharesX, sharesY)
	if shares.IsZero() {
		return nil, ErrInsufficientLiquidityMinted
	}
	return shares, nil
}

// AmountsForShares returns the pro-rata reserves released by burning shares.
func AmountsForShares(shares, reserveX, reserveY, totalShares *uint256.Int) (amountX, amountY *uint256.Int, err error) {
	if isZero(totalShares) {
		return nil, nil, ErrInsufficientLiquidity
	}
	shares, reserveX, reserveY = clone(shares), clone(reserveX), clone(reserveY)
	if amountX, err = mulDiv(shares, reserveX, totalShares); err != nil {
		return nil, nil, err
	}
	if amountY, err = mulDiv(shares, reserveY, totalShares); err != nil {
		return nil, nil, err
	}
	return amountX, amountY, nil
}

// TotalShares returns the outstanding share supply, locked shares included.
func (l *LiquidityLedger) TotalShares() *uint256.Int {
	return l.totalShares.Clone()
}

// Locked returns the permanently locked share amount.
func (l *LiquidityLedger) Locked() *uint256.Int {
	return l.locked.Clone()
}

// BalanceOf returns holder's shares.
func (l *LiquidityLedger) BalanceOf(holder common.Address) *uint256.Int {
	return clone(l.balances[holder])
}

// Holders lists ordinary holders with a non-zero balance, sorted by address.
func (l *LiquidityLedger) Holders() []Holding {
	out := make([]Holding, 0, len(l.balances))
	for holder, shares := range l.balances {
		if shares.IsZero() {
			continue
		}
		out = append(out, Holding{Holder: holder, Shares: shares.Clone()})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Holder.Bytes(), out[j].Holder.Bytes()) < 0
	})
	return out
}

func (l *LiquidityLedger) lockMinimum() error {
	if !l.locked.IsZero() {
		return ErrInvariantViolation
	}
	total, err := add(l.totalShares, minimumLiquidity)
	if err != nil {
		return err
	}
	l.locked.Set(minimumLiquidity)
	l.totalShares = total
	return nil
}

func (l *LiquidityLedger) mint(to common.Address, shares *uint256.Int) error {
	total, err := add(l.totalShares, shares)
	if err != nil {
		return err
	}
	balance, err := add(clone(l.balances[to]), shares)
	if err != nil {
		return err
	}
	l.totalShares = total
	l.balances[to] = balance
	return nil
}

func (l *LiquidityLedger) burn(from common.Address, shares *uint256.Int) error {
	balance := l.balances[from]
	if balance == nil || balance.Lt(shares) {
		return ErrInsufficientShares
	}
	remaining := new(uint256.Int).Sub(l.totalShares, shares)
	if remaining.Lt(l.locked) {
		return ErrInvariantViolation
	}
	balance.Sub(balance, shares)
	if balance.IsZero() {
		delete(l.balances, from)
	}
	l.totalShares = remaining
	return nil
}

func (l *LiquidityLedger) transfer(from, to common.Address, shares *uint256.Int) error {
	if err := l.burn(from, shares); err != nil {
		return err
	}
	return l.mint(to, shares)
}

// sumBalances adds up every ordinary holder's shares.
func (l *LiquidityLedger) sumBalances() (*uint256.Int, error) {
	sum := zero()
	for _, shares := range l.balances {
		if _, overflow := sum.AddOverflow(sum, shares); overflow {
			return nil, ErrOverflow
		}
	}
	return sum, nil
}

func (l *LiquidityLedger) clone() *LiquidityLedger {
	balances := make(map[common.Address]*uint256.Int, len(l.balances))
	for holder, shares := range l.balances {
		balances[holder] = shares.Clone()
	}
	return &LiquidityLedger{
		totalShares: l.totalShares.Clone(),
		locked:      l.locked.Clone(),
		balances:    balances,
	}
}
