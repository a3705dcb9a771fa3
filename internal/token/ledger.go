package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AckMode selects how a ledger acknowledges transfers.
type AckMode int

const (
	// AckBool returns an ABI-encoded bool and reports failures as false.
	AckBool AckMode = iota
	// AckEmpty returns nothing on success and an error on failure.
	AckEmpty
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrRejected              = errors.New("transfer rejected")
)

var maxAllowance = new(uint256.Int).SetAllOne()

var boolArgs = mustBoolArgs()

func mustBoolArgs() abi.Arguments {
	boolType, err := abi.NewType("bool", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: boolType}}
}

// Ledger is an in-memory mintable fungible asset.
type Ledger struct {
	address common.Address
	symbol  string
	mode    AckMode

	mu         sync.Mutex
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
	rejected   map[common.Address]struct{}
}

func NewLedger(address common.Address, symbol string, mode AckMode) *Ledger {
	return &Ledger{
		address:    address,
		symbol:     symbol,
		mode:       mode,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
		rejected:   make(map[common.Address]struct{}),
	}
}

func (l *Ledger) Address() common.Address { return l.address }

func (l *Ledger) Symbol() string { return l.symbol }

// Mint credits amount to account.
func (l *Ledger) Mint(account common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balance(account)
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("mint %s: balance overflow", l.symbol)
	}
	l.balances[account] = sum
	return nil
}

// Approve sets the amount spender may move out of owner's balance.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	l.allowances[owner][spender] = amount.Clone()
}

// ApproveMax grants spender an unlimited allowance over owner's balance.
func (l *Ledger) ApproveMax(owner, spender common.Address) {
	l.Approve(owner, spender, maxAllowance)
}

// Allowance returns what spender may still move out of owner's balance.
func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowance(owner, spender).Clone()
}

// Reject makes every transfer that credits account fail.
func (l *Ledger) Reject(account common.Address) {
	l.mu.Lock()
	l.rejected[account] = struct{}{}
	l.mu.Unlock()
}

// Accept undoes Reject.
func (l *Ledger) Accept(account common.Address) {
	l.mu.Lock()
	delete(l.rejected, account)
	l.mu.Unlock()
}

// BalanceOf returns account's balance.
func (l *Ledger) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account).Clone(), nil
}

// Transfer moves amount from sender to to.
func (l *Ledger) Transfer(ctx context.Context, sender, to common.Address, amount *uint256.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ack(l.move(sender, to, amount))
}

// TransferFrom moves amount from from to to, spending spender's allowance.
func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := l.allowance(from, spender)
	if spender != from && allowance.Lt(amount) {
		return l.ack(fmt.Errorf("%s: %w", l.symbol, ErrInsufficientAllowance))
	}
	if err := l.move(from, to, amount); err != nil {
		return l.ack(err)
	}
	if spender != from && !allowance.Eq(maxAllowance) {
		l.allowances[from][spender] = new(uint256.Int).Sub(allowance, amount)
	}
	return l.ack(nil)
}

// Balances returns every non-zero balance keyed by hex address.
func (l *Ledger) Balances() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]string, len(l.balances))
	for account, bal := range l.balances {
		if bal.IsZero() {
			continue
		}
		out[account.Hex()] = bal.Dec()
	}
	return out
}

// SetBalances replaces all balances, used when resuming from a snapshot.
func (l *Ledger) SetBalances(balances map[string]string) error {
	parsed := make(map[common.Address]*uint256.Int, len(balances))
	for account, value := range balances {
		if !common.IsHexAddress(account) {
			return fmt.Errorf("invalid account: %s", account)
		}
		bal, err := uint256.FromDecimal(value)
		if err != nil {
			return fmt.Errorf("parse balance of %s: %w", account, err)
		}
		parsed[common.HexToAddress(account)] = bal
	}

	l.mu.Lock()
	l.balances = parsed
	l.mu.Unlock()
	return nil
}

func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	if _, ok := l.rejected[to]; ok {
		return fmt.Errorf("%s: %w: %s", l.symbol, ErrRejected, to.Hex())
	}
	bal := l.balance(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%s: %w", l.symbol, ErrInsufficientBalance)
	}
	l.balances[from] = new(uint256.Int).Sub(bal, amount)
	l.balances[to] = new(uint256.Int).Add(l.balance(to), amount)
	return nil
}

func (l *Ledger) ack(err error) ([]byte, error) {
	if l.mode == AckEmpty {
		return nil, err
	}
	ret, packErr := boolArgs.Pack(err == nil)
	if packErr != nil {
		return nil, packErr
	}
	return ret, nil
}

func (l *Ledger) balance(account common.Address) *uint256.Int {
	if bal, ok := l.balances[account]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (l *Ledger) allowance(owner, spender common.Address) *uint256.Int {
	if byOwner, ok := l.allowances[owner]; ok {
		if amount, ok := byOwner[spender]; ok {
			return amount
		}
	}
	return new(uint256.Int)
}
