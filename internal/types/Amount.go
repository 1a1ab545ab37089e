package types

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// MaxAmount is the largest amount any ledger value may hold (2^127 - 1).
var MaxAmount = sdkmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1)))

// FitsAmount reports whether x is non-nil and within [-MaxAmount, MaxAmount].
func FitsAmount(x sdkmath.Int) bool {
	if x.IsNil() {
		return false
	}
	return x.Abs().LTE(MaxAmount)
}

// AmountOrZero replaces a nil Int with zero.
func AmountOrZero(x sdkmath.Int) sdkmath.Int {
	if x.IsNil() {
		return sdkmath.ZeroInt()
	}
	return x
}
