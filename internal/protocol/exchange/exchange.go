// Package exchange is a reference swap pool hosted on the ledger. Each directed
// pair trades at a fixed ratio set by the pool administrator.
package exchange

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/types"
)

var (
	ErrUnknownPair  = errors.New("exchange: unknown pair")
	ErrInvalidPrice = errors.New("exchange: invalid price")
	ErrInvalidInput = errors.New("exchange: invalid input amount")
	ErrLimitOut     = errors.New("exchange: output below minimum")
	ErrLimitPrice   = errors.New("exchange: spot price above maximum")
)

// PriceScale is the fixed-point base of reported spot prices (7 decimals).
var PriceScale = sdkmath.NewInt(10_000_000)

var exchangeLogger = logger.GetForComponent("exchange")

// Token is the part of a token contract the exchange moves funds with.
type Token interface {
	Transfer(ctx context.Context, from, to types.Address, amount sdkmath.Int) error
	TransferFrom(ctx context.Context, spender, from, to types.Address, amount sdkmath.Int) error
}

// TokenResolver returns the token contract deployed at an address.
type TokenResolver func(address types.Address) (Token, error)

// Price converts tokenIn to tokenOut as amountIn * Numerator / Denominator.
type Price struct {
	Numerator   sdkmath.Int `json:"numerator"`
	Denominator sdkmath.Int `json:"denominator"`
}

// Exchange is one swap pool contract instance.
type Exchange struct {
	db      *ledger.DB
	address types.Address
	tokens  TokenResolver
}

func New(db *ledger.DB, address types.Address, tokens TokenResolver) *Exchange {
	return &Exchange{db: db, address: address, tokens: tokens}
}

func (x *Exchange) Address() types.Address { return x.address }

// SetPrice fixes the ratio for swaps from tokenIn to tokenOut.
func (x *Exchange) SetPrice(ctx context.Context, tokenIn, tokenOut types.Address, price Price) error {
	for _, v := range []sdkmath.Int{price.Numerator, price.Denominator} {
		if v.IsNil() || !v.IsPositive() || v.GT(types.MaxAmount) {
			return fmt.Errorf("%w: %v/%v", ErrInvalidPrice, price.Numerator, price.Denominator)
		}
	}
	return x.db.Update(ctx, func(ctx context.Context) error {
		return ledger.PutJSON(ctx, x.priceKey(tokenIn, tokenOut), price)
	})
}

// SpotPrice is the amount of tokenIn paid per unit of tokenOut, scaled by PriceScale.
func (x *Exchange) SpotPrice(ctx context.Context, tokenIn, tokenOut types.Address) (spot sdkmath.Int, err error) {
	err = x.db.View(ctx, func(ctx context.Context) error {
		p, err := x.loadPrice(ctx, tokenIn, tokenOut)
		if err != nil {
			return err
		}
		spot = p.Denominator.Mul(PriceScale).Quo(p.Numerator)
		return nil
	})
	return spot, err
}

// SwapExactAmountIn pulls amountIn of tokenIn from user through the allowance
// user granted the exchange and pays the output to user. It fails when the
// output is below minAmountOut or the spot price exceeds maxPrice.
func (x *Exchange) SwapExactAmountIn(ctx context.Context, tokenIn types.Address, amountIn sdkmath.Int, tokenOut types.Address, minAmountOut, maxPrice sdkmath.Int, user types.Address) (amountOut, spot sdkmath.Int, err error) {
	if amountIn.IsNil() || !amountIn.IsPositive() || amountIn.GT(types.MaxAmount) {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: %v", ErrInvalidInput, amountIn)
	}
	err = x.db.Update(ctx, func(ctx context.Context) error {
		p, err := x.loadPrice(ctx, tokenIn, tokenOut)
		if err != nil {
			return err
		}
		spot = p.Denominator.Mul(PriceScale).Quo(p.Numerator)
		if spot.GT(maxPrice) {
			return fmt.Errorf("%w: %s > %s", ErrLimitPrice, spot, maxPrice)
		}
		amountOut = amountIn.Mul(p.Numerator).Quo(p.Denominator)
		if amountOut.LT(minAmountOut) {
			return fmt.Errorf("%w: %s < %s", ErrLimitOut, amountOut, minAmountOut)
		}
		if amountOut.GT(types.MaxAmount) {
			return fmt.Errorf("%w: output %s", ErrInvalidInput, amountOut)
		}

		in, err := x.tokens(tokenIn)
		if err != nil {
			return err
		}
		out, err := x.tokens(tokenOut)
		if err != nil {
			return err
		}
		if err := in.TransferFrom(ctx, x.address, user, x.address, amountIn); err != nil {
			return err
		}
		if amountOut.IsPositive() {
			if err := out.Transfer(ctx, x.address, user, amountOut); err != nil {
				return err
			}
		}
		exchangeLogger.Debug().
			Str("amount_in", amountIn.String()).
			Str("amount_out", amountOut.String()).
			Str("spot_price", spot.String()).
			Msg("Swap executed")
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return amountOut, spot, nil
}

func (x *Exchange) loadPrice(ctx context.Context, tokenIn, tokenOut types.Address) (Price, error) {
	var p Price
	found, err := ledger.GetJSON(ctx, x.priceKey(tokenIn, tokenOut), &p)
	if err != nil {
		return p, err
	}
	if !found {
		return p, fmt.Errorf("%w: %s -> %s", ErrUnknownPair, tokenIn, tokenOut)
	}
	return p, nil
}

func (x *Exchange) priceKey(tokenIn, tokenOut types.Address) []byte {
	return ledger.Key("exchange", x.address.String(), "price", tokenIn.String(), tokenOut.String())
}
