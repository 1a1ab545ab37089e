package analyzer

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	sdkmath "cosmossdk.io/math"
)

const year = 365 * 24 * time.Hour

var ErrInvalidInput = errors.New("invalid analyzer input")

// SharePrice is the underlying value of one whole share, where a whole share is
// 10^offset share units. It includes the virtual share and asset, so an empty
// vault prices at exactly 1.
func SharePrice(totalAssets, totalSupply sdkmath.Int, decimalsOffset uint32) (float64, error) {
	if totalAssets.IsNil() || totalSupply.IsNil() || totalAssets.IsNegative() || totalSupply.IsNegative() {
		return 0, fmt.Errorf("%w: totals must be non-negative", ErrInvalidInput)
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimalsOffset)), nil)

	assets := new(big.Float).SetInt(new(big.Int).Add(totalAssets.BigInt(), big.NewInt(1)))
	supply := new(big.Float).SetInt(new(big.Int).Add(totalSupply.BigInt(), unit))
	price, _ := assets.Mul(assets, new(big.Float).SetInt(unit)).Quo(assets, supply).Float64()
	return price, nil
}

// AnnualizedGrowth extrapolates the share price change over elapsed to a simple yearly rate.
func AnnualizedGrowth(before, after float64, elapsed time.Duration) (float64, error) {
	if elapsed <= 0 {
		return 0, fmt.Errorf("%w: elapsed %s", ErrInsufficientData, elapsed)
	}
	if before <= 0 || after <= 0 || math.IsNaN(before) || math.IsNaN(after) {
		return 0, fmt.Errorf("%w: prices %f -> %f", ErrInvalidInput, before, after)
	}
	return (after/before - 1) * float64(year) / float64(elapsed), nil
}

// CompoundDaily converts a simple APR to the APY reached by compounding it daily.
// Non-positive rates yield 0.
func CompoundDaily(apr float64) float64 {
	if apr <= 0 || math.IsNaN(apr) {
		return 0
	}
	return math.Pow(1+apr/365, 365) - 1
}
