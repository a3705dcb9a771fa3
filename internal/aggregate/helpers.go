package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func computeFeeRates(feeX, feeY, tvlX, tvlY *big.Int) (*string, *string) {
	var feeRateX *string
	var feeRateY *string

	if rate := computeRateFromInt(feeX, tvlX); rate != nil {
		val := rate.FloatString(ratioScale)
		feeRateX = &val
	}
	if rate := computeRateFromInt(feeY, tvlY); rate != nil {
		val := rate.FloatString(ratioScale)
		feeRateY = &val
	}
	return feeRateX, feeRateY
}

func computeRateFromInt(fee, tvl *big.Int) *big.Rat {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() == 0 {
		return nil
	}
	return new(big.Rat).SetFrac(fee, tvl)
}

// computeAPR annualizes the window's fee yield. Each side of a constant
// product pool holds half its value, so the pool-wide rate is the mean of the
// per-asset rates.
func computeAPR(feeX, feeY, tvlX, tvlY *big.Int, windowSeconds uint64) *string {
	if windowSeconds == 0 || tvlX == nil || tvlX.Sign() == 0 || tvlY == nil || tvlY.Sign() == 0 {
		return nil
	}

	rate := new(big.Rat)
	if r := computeRateFromInt(feeX, tvlX); r != nil {
		rate.Add(rate, r)
	}
	if r := computeRateFromInt(feeY, tvlY); r != nil {
		rate.Add(rate, r)
	}
	rate.Quo(rate, big.NewRat(2, 1))

	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(rate, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}
