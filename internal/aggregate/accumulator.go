package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"pairEngine/internal/model"
)

var (
	feeNumerator   = big.NewInt(3)
	feeDenominator = big.NewInt(1000)
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	Pool        string
	AssetX      string
	AssetY      string
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64
	AddCount    uint64
	RemoveCount uint64
	VolumeX     *big.Int
	VolumeY     *big.Int
	FeeX        *big.Int
	FeeY        *big.Int
	ReserveX    *big.Int
	ReserveY    *big.Int
	LastSeq     uint64
	LastTS      uint64

	// OpenedAfter is the newest sequence number seen before the window's
	// first event. Fresh is set once the window holds an event that was
	// not part of an earlier run's output.
	OpenedAfter uint64
	Fresh       bool
}

func NewAccumulator(record model.EventRecordJSON, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		Pool:        record.Pool,
		AssetX:      record.AssetX,
		AssetY:      record.AssetY,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeX:     big.NewInt(0),
		VolumeY:     big.NewInt(0),
		FeeX:        big.NewInt(0),
		FeeY:        big.NewInt(0),
	}
}

// AddEvent folds one committed event into the window.
func (a *Accumulator) AddEvent(record model.EventRecordJSON) error {
	switch record.EventName {
	case model.EventSwap:
		var swap model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		if err := a.applySwap(swap); err != nil {
			return err
		}
	case model.EventLiquidityAdded:
		a.AddCount++
	case model.EventLiquidityRemoved:
		a.RemoveCount++
	}

	// Reserves after the latest event are the window's closing TVL.
	if a.ReserveX == nil || record.Seq >= a.LastSeq {
		reserveX, err := parseBigInt(record.ReserveX)
		if err != nil {
			return err
		}
		reserveY, err := parseBigInt(record.ReserveY)
		if err != nil {
			return err
		}
		a.ReserveX, a.ReserveY = reserveX, reserveY
		a.LastSeq = record.Seq
	}
	if record.Timestamp > a.LastTS {
		a.LastTS = record.Timestamp
	}
	return nil
}

func (a *Accumulator) applySwap(swap model.SwapEventData) error {
	amountIn, err := parseBigInt(swap.AmountIn)
	if err != nil {
		return err
	}
	amountOut, err := parseBigInt(swap.AmountOut)
	if err != nil {
		return err
	}

	switch {
	case sameAsset(swap.TokenIn, a.AssetX):
		a.VolumeX.Add(a.VolumeX, amountIn)
		a.VolumeY.Add(a.VolumeY, amountOut)
		a.FeeX.Add(a.FeeX, feeFromAmount(amountIn))
	case sameAsset(swap.TokenIn, a.AssetY):
		a.VolumeY.Add(a.VolumeY, amountIn)
		a.VolumeX.Add(a.VolumeX, amountOut)
		a.FeeY.Add(a.FeeY, feeFromAmount(amountIn))
	default:
		return fmt.Errorf("swap input %s is not a pool asset", swap.TokenIn)
	}

	a.SwapCount++
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return parsed, nil
}

// feeFromAmount is the liquidity provider's cut of an input amount.
func feeFromAmount(amountIn *big.Int) *big.Int {
	if amountIn == nil {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amountIn, feeNumerator)
	return fee.Div(fee, feeDenominator)
}

func sameAsset(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
