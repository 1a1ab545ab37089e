// Package token is a fungible token contract hosted on the ledger. It backs the
// underlying asset, the reward token, and the vault's share ledger.
package token

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
	ErrNegativeAmount        = errors.New("token: negative amount")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrAllowanceExpired      = errors.New("token: allowance expired")
	ErrInvalidExpiration     = errors.New("token: expiration ledger is in the past")
	ErrSupplyOverflow        = errors.New("token: supply overflow")
)

var tokenLogger = logger.GetForComponent("token")

// Metadata describes a token.
type Metadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint32 `json:"decimals"`
}

// Allowance is a spender's remaining grant and the last ledger it can be used in.
type Allowance struct {
	Amount           sdkmath.Int `json:"amount"`
	ExpirationLedger uint32      `json:"expiration_ledger"`
}

// Token is one token contract instance.
type Token struct {
	db      *ledger.DB
	address types.Address
	meta    Metadata
}

// New binds a token contract at address.
func New(db *ledger.DB, address types.Address, meta Metadata) *Token {
	return &Token{db: db, address: address, meta: meta}
}

func (t *Token) Address() types.Address { return t.address }

func (t *Token) Metadata() Metadata { return t.meta }

func (t *Token) Decimals(ctx context.Context) (uint32, error) { return t.meta.Decimals, nil }

func (t *Token) Name(ctx context.Context) (string, error) { return t.meta.Name, nil }

func (t *Token) Symbol(ctx context.Context) (string, error) { return t.meta.Symbol, nil }

// Balance returns holder's balance, zero if it never held the token.
func (t *Token) Balance(ctx context.Context, holder types.Address) (balance sdkmath.Int, err error) {
	err = t.db.View(ctx, func(ctx context.Context) error {
		balance, err = t.readAmount(ctx, t.balanceKey(holder))
		return err
	})
	return balance, err
}

// TotalSupply returns the minted minus burned amount.
func (t *Token) TotalSupply(ctx context.Context) (supply sdkmath.Int, err error) {
	err = t.db.View(ctx, func(ctx context.Context) error {
		supply, err = t.readAmount(ctx, t.supplyKey())
		return err
	})
	return supply, err
}

// Allowance returns the grant from owner to spender as the next transfer would
// see it; expired grants read as zero.
func (t *Token) Allowance(ctx context.Context, owner, spender types.Address) (amount sdkmath.Int, err error) {
	err = t.db.View(ctx, func(ctx context.Context) error {
		txn, err := ledger.FromContext(ctx)
		if err != nil {
			return err
		}
		a, err := t.readAllowance(ctx, owner, spender)
		if err != nil {
			return err
		}
		if a.ExpirationLedger < txn.WriteSequence() {
			amount = sdkmath.ZeroInt()
			return nil
		}
		amount = a.Amount
		return nil
	})
	return amount, err
}

// Approve replaces the grant from owner to spender. A non-zero grant needs an
// expiration ledger no earlier than the current one.
func (t *Token) Approve(ctx context.Context, owner, spender types.Address, amount sdkmath.Int, expirationLedger uint32) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return t.db.Update(ctx, func(ctx context.Context) error {
		txn, err := ledger.FromContext(ctx)
		if err != nil {
			return err
		}
		if amount.IsPositive() && expirationLedger < txn.Sequence() {
			return fmt.Errorf("%w: %d < %d", ErrInvalidExpiration, expirationLedger, txn.Sequence())
		}
		return ledger.PutJSON(ctx, t.allowanceKey(owner, spender), Allowance{Amount: amount, ExpirationLedger: expirationLedger})
	})
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(ctx context.Context, from, to types.Address, amount sdkmath.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return t.db.Update(ctx, func(ctx context.Context) error {
		return t.move(ctx, from, to, amount)
	})
}

// TransferFrom spends spender's allowance from owner to move amount to to.
func (t *Token) TransferFrom(ctx context.Context, spender, from, to types.Address, amount sdkmath.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return t.db.Update(ctx, func(ctx context.Context) error {
		if err := t.spendAllowance(ctx, from, spender, amount); err != nil {
			return err
		}
		return t.move(ctx, from, to, amount)
	})
}

// Mint credits amount to to and grows the supply.
func (t *Token) Mint(ctx context.Context, to types.Address, amount sdkmath.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return t.db.Update(ctx, func(ctx context.Context) error {
		supply, err := t.readAmount(ctx, t.supplyKey())
		if err != nil {
			return err
		}
		supply = supply.Add(amount)
		if supply.GT(types.MaxAmount) {
			return fmt.Errorf("%w: %s", ErrSupplyOverflow, supply)
		}
		bal, err := t.readAmount(ctx, t.balanceKey(to))
		if err != nil {
			return err
		}
		if err := ledger.PutJSON(ctx, t.balanceKey(to), bal.Add(amount)); err != nil {
			return err
		}
		return ledger.PutJSON(ctx, t.supplyKey(), supply)
	})
}

// Burn debits amount from from and shrinks the supply.
func (t *Token) Burn(ctx context.Context, from types.Address, amount sdkmath.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return t.db.Update(ctx, func(ctx context.Context) error {
		bal, err := t.readAmount(ctx, t.balanceKey(from))
		if err != nil {
			return err
		}
		if bal.LT(amount) {
			return fmt.Errorf("%w: %s has %s, burning %s", ErrInsufficientBalance, from, bal, amount)
		}
		supply, err := t.readAmount(ctx, t.supplyKey())
		if err != nil {
			return err
		}
		if err := ledger.PutJSON(ctx, t.balanceKey(from), bal.Sub(amount)); err != nil {
			return err
		}
		return ledger.PutJSON(ctx, t.supplyKey(), supply.Sub(amount))
	})
}

func (t *Token) move(ctx context.Context, from, to types.Address, amount sdkmath.Int) error {
	fromBal, err := t.readAmount(ctx, t.balanceKey(from))
	if err != nil {
		return err
	}
	if fromBal.LT(amount) {
		return fmt.Errorf("%w: %s has %s %s, sending %s", ErrInsufficientBalance, from, fromBal, t.meta.Symbol, amount)
	}
	if err := ledger.PutJSON(ctx, t.balanceKey(from), fromBal.Sub(amount)); err != nil {
		return err
	}
	toBal, err := t.readAmount(ctx, t.balanceKey(to))
	if err != nil {
		return err
	}
	if err := ledger.PutJSON(ctx, t.balanceKey(to), toBal.Add(amount)); err != nil {
		return err
	}
	tokenLogger.Debug().
		Str("token", t.meta.Symbol).
		Str("from", from.String()).
		Str("to", to.String()).
		Str("amount", amount.String()).
		Msg("Transfer")
	return nil
}

func (t *Token) spendAllowance(ctx context.Context, owner, spender types.Address, amount sdkmath.Int) error {
	txn, err := ledger.FromContext(ctx)
	if err != nil {
		return err
	}
	a, err := t.readAllowance(ctx, owner, spender)
	if err != nil {
		return err
	}
	if a.Amount.IsPositive() && a.ExpirationLedger < txn.Sequence() {
		return fmt.Errorf("%w: %s -> %s expired at ledger %d", ErrAllowanceExpired, owner, spender, a.ExpirationLedger)
	}
	if a.Amount.LT(amount) {
		return fmt.Errorf("%w: %s -> %s has %s, spending %s", ErrInsufficientAllowance, owner, spender, a.Amount, amount)
	}
	a.Amount = a.Amount.Sub(amount)
	return ledger.PutJSON(ctx, t.allowanceKey(owner, spender), a)
}

func (t *Token) readAmount(ctx context.Context, key []byte) (sdkmath.Int, error) {
	var v sdkmath.Int
	found, err := ledger.GetJSON(ctx, key, &v)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !found {
		return sdkmath.ZeroInt(), nil
	}
	return v, nil
}

func (t *Token) readAllowance(ctx context.Context, owner, spender types.Address) (Allowance, error) {
	a := Allowance{Amount: sdkmath.ZeroInt()}
	if _, err := ledger.GetJSON(ctx, t.allowanceKey(owner, spender), &a); err != nil {
		return Allowance{}, err
	}
	a.Amount = types.AmountOrZero(a.Amount)
	return a, nil
}

func (t *Token) balanceKey(holder types.Address) []byte {
	return ledger.Key("token", t.address.String(), "balance", holder.String())
}

func (t *Token) supplyKey() []byte {
	return ledger.Key("token", t.address.String(), "supply")
}

func (t *Token) allowanceKey(owner, spender types.Address) []byte {
	return ledger.Key("token", t.address.String(), "allowance", owner.String(), spender.String())
}

func checkAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: %v", ErrNegativeAmount, amount)
	}
	if amount.GT(types.MaxAmount) {
		return fmt.Errorf("%w: %s", ErrSupplyOverflow, amount)
	}
	return nil
}
