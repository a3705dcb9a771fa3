package amm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrDeadlineExpired             = errors.New("deadline expired")
	ErrInvalidAddress              = errors.New("invalid address")
	ErrInvalidToken                = errors.New("invalid token")
	ErrInvalidSwapRoute            = errors.New("invalid swap route")
	ErrInsufficientLiquidity       = errors.New("insufficient liquidity")
	ErrInsufficientOutputAmount    = errors.New("insufficient output amount")
	ErrInsufficientInputAmount     = errors.New("insufficient input amount")
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = errors.New("insufficient liquidity burned")
	ErrInsufficientAAmount         = errors.New("insufficient A amount")
	ErrInsufficientBAmount         = errors.New("insufficient B amount")
	ErrInsufficientShares          = errors.New("insufficient shares")
	ErrTransferFailed              = errors.New("transfer failed")
	ErrTransferFromFailed          = errors.New("transfer from failed")
	ErrInvalidConstructorArguments = errors.New("invalid constructor arguments")
	ErrOverflow                    = errors.New("arithmetic overflow")
	ErrInvariantViolation          = errors.New("invariant violation")
)

// Direction identifies which leg of custody movement failed.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// TransferError reports a failed custody movement.
type TransferError struct {
	Asset     common.Address
	Direction Direction
	Account   common.Address
	Cause     error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("transfer %s %s (account %s)", e.Direction, e.Asset.Hex(), e.Account.Hex())
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the provider cause to errors.Is.
func (e *TransferError) Unwrap() []error {
	kind := ErrTransferFailed
	if e.Direction == DirectionIn {
		kind = ErrTransferFromFailed
	}
	if e.Cause == nil {
		return []error{kind}
	}
	return []error{kind, e.Cause}
}

// Kind maps an engine error onto its stable short name, used in logs and
// simulation output. Unknown errors map to "internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrDeadlineExpired, "deadline_expired"},
	{ErrInvalidAddress, "invalid_address"},
	{ErrInvalidToken, "invalid_token"},
	{ErrInvalidSwapRoute, "invalid_swap_route"},
	{ErrInsufficientLiquidityMinted, "insufficient_liquidity_minted"},
	{ErrInsufficientLiquidityBurned, "insufficient_liquidity_burned"},
	{ErrInsufficientLiquidity, "insufficient_liquidity"},
	{ErrInsufficientOutputAmount, "insufficient_output_amount"},
	{ErrInsufficientInputAmount, "insufficient_input_amount"},
	{ErrInsufficientAAmount, "insufficient_a_amount"},
	{ErrInsufficientBAmount, "insufficient_b_amount"},
	{ErrInsufficientShares, "insufficient_shares"},
	{ErrTransferFromFailed, "transfer_from_failed"},
	{ErrTransferFailed, "transfer_failed"},
	{ErrInvalidConstructorArguments, "invalid_constructor_arguments"},
	{ErrOverflow, "overflow"},
	{ErrInvariantViolation, "invariant_violation"},
}
