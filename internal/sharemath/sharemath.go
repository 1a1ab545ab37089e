// Package sharemath converts between vault assets and vault shares.
//
// Both directions add a virtual offset to the totals before dividing: 10^offset
// virtual shares and one virtual asset unit. An empty vault therefore never
// divides by zero, and a donation to an empty vault cannot inflate the share
// price enough to steal from the next depositor.
package sharemath

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/types"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrMathOverflow  = errors.New("math overflow")
)

// Rounding selects how a quotient with a remainder is resolved.
type Rounding int

const (
	Floor Rounding = iota
	Ceil
)

func (r Rounding) String() string {
	if r == Ceil {
		return "ceil"
	}
	return "floor"
}

// MaxDecimalsOffset is the largest offset whose power of ten fits in an amount.
const MaxDecimalsOffset = 38

// Pow10 returns 10^offset, failing when it would not fit in an amount.
func Pow10(offset uint32) (sdkmath.Int, error) {
	if offset > MaxDecimalsOffset {
		return sdkmath.Int{}, fmt.Errorf("%w: 10^%d", ErrMathOverflow, offset)
	}
	p := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(offset)), nil)
	return sdkmath.NewIntFromBigInt(p), nil
}

// MulDiv computes x*y/denominator with the given rounding. Operands must be
// non-negative amounts; the product is formed in 256-bit space so it cannot
// overflow before the division. A result above types.MaxAmount is an overflow.
func MulDiv(x, y, denominator sdkmath.Int, rounding Rounding) (sdkmath.Int, error) {
	for _, v := range []sdkmath.Int{x, y, denominator} {
		if v.IsNil() || v.IsNegative() {
			return sdkmath.Int{}, fmt.Errorf("%w: muldiv operand %v", ErrInvalidAmount, v)
		}
		if v.GT(types.MaxAmount) {
			return sdkmath.Int{}, fmt.Errorf("%w: muldiv operand %s", ErrMathOverflow, v)
		}
	}
	if denominator.IsZero() {
		return sdkmath.Int{}, fmt.Errorf("%w: division by zero", ErrMathOverflow)
	}

	product := x.Mul(y)
	q := product.Quo(denominator)
	if rounding == Ceil && !product.Mod(denominator).IsZero() {
		q = q.AddRaw(1)
	}
	if q.GT(types.MaxAmount) {
		return sdkmath.Int{}, fmt.Errorf("%w: muldiv result %s", ErrMathOverflow, q)
	}
	return q, nil
}

// AssetsToShares computes assets * (totalSupply + 10^offset) / (totalAssets + 1).
// Zero assets short-circuit to zero; negative assets are rejected.
func AssetsToShares(assets, totalSupply, totalAssets sdkmath.Int, offset uint32, rounding Rounding) (sdkmath.Int, error) {
	if assets.IsNil() || assets.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: assets %v", ErrInvalidAmount, assets)
	}
	if assets.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	effSupply, effAssets, err := effectiveTotals(totalSupply, totalAssets, offset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return MulDiv(assets, effSupply, effAssets, rounding)
}

// SharesToAssets computes shares * (totalAssets + 1) / (totalSupply + 10^offset).
// Zero shares short-circuit to zero; negative shares are rejected.
func SharesToAssets(shares, totalSupply, totalAssets sdkmath.Int, offset uint32, rounding Rounding) (sdkmath.Int, error) {
	if shares.IsNil() || shares.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: shares %v", ErrInvalidAmount, shares)
	}
	if shares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	effSupply, effAssets, err := effectiveTotals(totalSupply, totalAssets, offset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return MulDiv(shares, effAssets, effSupply, rounding)
}

func effectiveTotals(totalSupply, totalAssets sdkmath.Int, offset uint32) (supply, assets sdkmath.Int, err error) {
	if totalSupply.IsNil() || totalSupply.IsNegative() {
		return supply, assets, fmt.Errorf("%w: total supply %v", ErrInvalidAmount, totalSupply)
	}
	if totalAssets.IsNil() || totalAssets.IsNegative() {
		return supply, assets, fmt.Errorf("%w: total assets %v", ErrInvalidAmount, totalAssets)
	}
	pow, err := Pow10(offset)
	if err != nil {
		return supply, assets, err
	}
	supply = totalSupply.Add(pow)
	if supply.GT(types.MaxAmount) {
		return supply, assets, fmt.Errorf("%w: total supply %s + 10^%d", ErrMathOverflow, totalSupply, offset)
	}
	assets = totalAssets.AddRaw(1)
	if assets.GT(types.MaxAmount) {
		return supply, assets, fmt.Errorf("%w: total assets %s + 1", ErrMathOverflow, totalAssets)
	}
	return supply, assets, nil
}
