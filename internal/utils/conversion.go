/*
This file contains common utility functions for converting ledger amounts between
their integer form and human readable or floating point representations.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/types"
)

// Decimals of the devnet underlying asset and reward token.
const DefaultDecimals = 7

// Largest precision the float conversions accept.
const MaxPrecision = 48

var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
	ErrInvalidFormat    = errors.New("amount format is invalid")
)

// AmountToFloat64 converts an integer amount with the given decimals to float64.
func AmountToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > MaxPrecision {
		return 0, fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidPrecision, precision, MaxPrecision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	f, _ := new(big.Float).Quo(new(big.Float).SetInt(amount.BigInt()), new(big.Float).SetInt(pow10(precision))).Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, f)
	}
	return f, nil
}

// Float64ToAmount converts a float64 to an integer amount with the given decimals, truncating.
func Float64ToAmount(amount float64, precision int) (sdkmath.Int, error) {
	if precision < 0 || precision > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if amount == 0 {
		return sdkmath.ZeroInt(), nil
	}

	// Use string conversion to avoid floating point precision issues
	amountStr := fmt.Sprintf("%.*f", precision, amount)
	return ParseAmount(amountStr, precision)
}

// FormatAmount renders an integer amount as a decimal string without trailing
// fractional zeros: 12345000 with 7 decimals is "1.2345".
func FormatAmount(amount sdkmath.Int, decimals int) string {
	if amount.IsNil() {
		return "0"
	}
	sign := ""
	abs := amount.BigInt()
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	if decimals <= 0 {
		return sign + abs.String()
	}

	whole, fraction := new(big.Int).QuoRem(abs, pow10(decimals), new(big.Int))
	digits := fraction.String()
	fractionStr := strings.TrimRight(strings.Repeat("0", decimals-len(digits))+digits, "0")
	if fractionStr == "" {
		return sign + whole.String()
	}
	return sign + whole.String() + "." + fractionStr
}

// FormatAmountWithCommas is FormatAmount with thousands separators in the whole part.
func FormatAmountWithCommas(amount sdkmath.Int, decimals int) string {
	formatted := FormatAmount(amount, decimals)
	sign := ""
	if strings.HasPrefix(formatted, "-") {
		sign, formatted = "-", formatted[1:]
	}
	whole, fraction, hasFraction := strings.Cut(formatted, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFraction {
		return sign + b.String() + "." + fraction
	}
	return sign + b.String()
}

// ParseAmount parses a non-negative decimal string into an integer amount.
// Fraction digits beyond decimals are dropped.
func ParseAmount(s string, decimals int) (sdkmath.Int, error) {
	if decimals < 0 {
		return sdkmath.Int{}, fmt.Errorf("%w: %d", ErrInvalidPrecision, decimals)
	}
	s = strings.TrimSpace(s)
	whole, fraction, _ := strings.Cut(s, ".")
	if whole == "" && fraction == "" {
		return sdkmath.Int{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if !digitsOnly(whole) || !digitsOnly(fraction) {
		return sdkmath.Int{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if whole == "" {
		whole = "0"
	}
	if len(fraction) > decimals {
		fraction = fraction[:decimals]
	}
	fraction += strings.Repeat("0", decimals-len(fraction))

	raw, ok := new(big.Int).SetString(whole+fraction, 10)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: %q", ErrConversionFailed, s)
	}
	if raw.BitLen() > 127 {
		return sdkmath.Int{}, fmt.Errorf("%w: %q exceeds the maximum amount", ErrConversionFailed, s)
	}
	amount := sdkmath.NewIntFromBigInt(raw)
	if amount.GT(types.MaxAmount) {
		return sdkmath.Int{}, fmt.Errorf("%w: %q exceeds the maximum amount", ErrConversionFailed, s)
	}
	return amount, nil
}

// FormatAddress shortens long addresses for display.
func FormatAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
