package simulate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pairEngine/internal/amm"
	"pairEngine/internal/model"
)

// ErrInvalidOperation marks script lines that cannot be interpreted.
var ErrInvalidOperation = errors.New("invalid operation")

const (
	OpMint           = "mint"
	OpApprove        = "approve"
	OpAdvance        = "advance"
	OpAdd            = "add"
	OpRemove         = "remove"
	OpSwap           = "swap"
	OpPrice          = "price"
	OpTransferShares = "transfer_shares"
)

func errorKind(err error) string {
	if errors.Is(err, ErrInvalidOperation) {
		return "invalid_operation"
	}
	return amm.Kind(err)
}

func (r *Runner) apply(ctx context.Context, op model.Operation) (map[string]string, error) {
	switch op.Op {
	case OpMint:
		asset, err := r.asset(op.Asset)
		if err != nil {
			return nil, err
		}
		account, err := parseAccount("account", op.Account)
		if err != nil {
			return nil, err
		}
		amount, err := parseRequired("amount", op.Amount)
		if err != nil {
			return nil, err
		}
		if err := r.tokens[asset].Mint(account, amount); err != nil {
			return nil, err
		}
		bal, err := r.tokens[asset].BalanceOf(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", account.Hex(), err)
		}
		return map[string]string{"balance": bal.Dec()}, nil

	case OpApprove:
		asset, err := r.asset(op.Asset)
		if err != nil {
			return nil, err
		}
		owner, err := parseAccount("account", op.Account)
		if err != nil {
			return nil, err
		}
		if op.Amount == "" {
			r.tokens[asset].ApproveMax(owner, r.cfg.Pool)
			return nil, nil
		}
		amount, err := parseRequired("amount", op.Amount)
		if err != nil {
			return nil, err
		}
		r.tokens[asset].Approve(owner, r.cfg.Pool, amount)
		return nil, nil

	case OpAdvance:
		now := r.clock.Advance(op.Seconds)
		return map[string]string{"now": strconv.FormatUint(now, 10)}, nil

	case OpAdd:
		sender, recipient, err := r.parties(op)
		if err != nil {
			return nil, err
		}
		desiredX, err := parseRequired("amount_x", op.AmountX)
		if err != nil {
			return nil, err
		}
		desiredY, err := parseRequired("amount_y", op.AmountY)
		if err != nil {
			return nil, err
		}
		minX, err := parseOptional("min_x", op.MinX)
		if err != nil {
			return nil, err
		}
		minY, err := parseOptional("min_y", op.MinY)
		if err != nil {
			return nil, err
		}
		res, err := r.engine.AddLiquidity(ctx, amm.AddLiquidityParams{
			Sender:    sender,
			Recipient: recipient,
			DesiredX:  desiredX,
			DesiredY:  desiredY,
			MinX:      minX,
			MinY:      minY,
			Deadline:  r.deadline(op.Deadline),
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"used_x": res.UsedX.Dec(),
			"used_y": res.UsedY.Dec(),
			"shares": res.Shares.Dec(),
		}, nil

	case OpRemove:
		sender, recipient, err := r.parties(op)
		if err != nil {
			return nil, err
		}
		shares, err := parseRequired("shares", op.Shares)
		if err != nil {
			return nil, err
		}
		minX, err := parseOptional("min_x", op.MinX)
		if err != nil {
			return nil, err
		}
		minY, err := parseOptional("min_y", op.MinY)
		if err != nil {
			return nil, err
		}
		res, err := r.engine.RemoveLiquidity(ctx, amm.RemoveLiquidityParams{
			Sender:    sender,
			Recipient: recipient,
			Shares:    shares,
			MinX:      minX,
			MinY:      minY,
			Deadline:  r.deadline(op.Deadline),
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"amount_x": res.AmountX.Dec(),
			"amount_y": res.AmountY.Dec(),
		}, nil

	case OpSwap:
		sender, recipient, err := r.parties(op)
		if err != nil {
			return nil, err
		}
		amountIn, err := parseRequired("amount", op.Amount)
		if err != nil {
			return nil, err
		}
		minOut, err := parseOptional("min_out", op.MinOut)
		if err != nil {
			return nil, err
		}
		path, err := r.path(op.Path)
		if err != nil {
			return nil, err
		}
		out, err := r.engine.Swap(ctx, amm.SwapParams{
			Sender:       sender,
			Recipient:    recipient,
			AmountIn:     amountIn,
			MinAmountOut: minOut,
			Path:         path,
			Deadline:     r.deadline(op.Deadline),
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{"amount_out": out.Dec()}, nil

	case OpPrice:
		path, err := r.path(op.Path)
		if err != nil {
			return nil, err
		}
		if len(path) != 2 {
			return nil, fmt.Errorf("%w: price needs two assets", ErrInvalidOperation)
		}
		price, err := r.engine.GetPrice(path[0], path[1])
		if err != nil {
			return nil, err
		}
		return map[string]string{"price": price.Dec()}, nil

	case OpTransferShares:
		from, to, err := r.parties(op)
		if err != nil {
			return nil, err
		}
		amount, err := parseRequired("shares", op.Shares)
		if err != nil {
			return nil, err
		}
		if err := r.engine.TransferShares(ctx, from, to, amount); err != nil {
			return nil, err
		}
		return map[string]string{"balance": r.engine.ShareBalance(from).Dec()}, nil

	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, op.Op)
	}
}

// deadline defaults an unset deadline to the current logical time.
func (r *Runner) deadline(deadline uint64) uint64 {
	if deadline == 0 {
		return r.clock.Now()
	}
	return deadline
}

// parties resolves the sender and the recipient, which defaults to the
// sender.
func (r *Runner) parties(op model.Operation) (common.Address, common.Address, error) {
	sender, err := parseAccount("sender", op.Sender)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	if op.Recipient == "" {
		return sender, sender, nil
	}
	recipient, err := parseAccount("recipient", op.Recipient)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return sender, recipient, nil
}

// path resolves asset references. Unknown hex addresses pass through so the
// engine can reject them.
func (r *Runner) path(refs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(refs))
	for _, ref := range refs {
		if asset, err := r.asset(ref); err == nil {
			out = append(out, asset)
			continue
		}
		if !common.IsHexAddress(ref) {
			return nil, fmt.Errorf("%w: path entry %q", ErrInvalidOperation, ref)
		}
		out = append(out, common.HexToAddress(ref))
	}
	return out, nil
}

// asset resolves "x", "y", a ledger symbol or a hex address to a pool asset.
func (r *Runner) asset(ref string) (common.Address, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.EqualFold(ref, "x") || (r.xRef != "" && strings.EqualFold(ref, r.xRef)):
		return r.cfg.AssetX, nil
	case strings.EqualFold(ref, "y") || (r.yRef != "" && strings.EqualFold(ref, r.yRef)):
		return r.cfg.AssetY, nil
	case common.IsHexAddress(ref):
		addr := common.HexToAddress(ref)
		if _, ok := r.tokens[addr]; ok {
			return addr, nil
		}
	}
	return common.Address{}, fmt.Errorf("%w: unknown asset %q", ErrInvalidOperation, ref)
}

func parseAccount(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not an address", ErrInvalidOperation, field, value)
	}
	return common.HexToAddress(value), nil
}

func parseRequired(field, value string) (*uint256.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidOperation, field)
	}
	return parseOptional(field, value)
}

func parseOptional(field, value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", ErrInvalidOperation, field, value, err)
	}
	return v, nil
}
