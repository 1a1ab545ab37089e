package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/sharemath"
	"github.com/elys-network/yieldvault/internal/types"
)

// Deposit pulls assets from from, supplies them to the lending pool and mints
// the floor share amount to receiver. from must have approved the vault for
// assets. It returns the shares minted.
func (v *Vault) Deposit(ctx context.Context, assets sdkmath.Int, receiver, from, operator types.Address) (shares sdkmath.Int, err error) {
	inv := v.Invocation("deposit", amountArg(assets), receiver.String(), from.String(), operator.String())
	v.logger.Debug().Str("operator", operator.String()).Str("assets", assets.String()).Msg("Deposit requested")
	err = v.host.Update(ctx, func(ctx context.Context) error {
		if err := v.authorizer.RequireAuth(ctx, operator, inv); err != nil {
			return err
		}
		if err := checkAmount(assets); err != nil {
			return err
		}
		if assets.IsZero() {
			shares = sdkmath.ZeroInt()
			return nil
		}

		p, err := v.snapshot(ctx)
		if err != nil {
			return err
		}
		shares, err = p.toShares(assets, sharemath.Floor)
		if err != nil {
			return err
		}
		if err := v.supplyFrom(ctx, p.cfg, from, assets); err != nil {
			return err
		}
		if err := v.credit(ctx, receiver, shares); err != nil {
			return err
		}

		v.publish(ctx, types.VaultEvent{Kind: types.EventDeposit, Operator: operator, Receiver: receiver, Owner: from, Assets: assets, Shares: shares})
		v.logger.Info().
			Str("receiver", receiver.String()).
			Str("assets", assets.String()).
			Str("shares", shares.String()).
			Msg("Deposit committed")
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return shares, nil
}

// Mint mints exactly shares to receiver, pulling the ceiling asset amount from
// from. It returns the assets pulled.
func (v *Vault) Mint(ctx context.Context, shares sdkmath.Int, receiver, from, operator types.Address) (assets sdkmath.Int, err error) {
	inv := v.Invocation("mint", amountArg(shares), receiver.String(), from.String(), operator.String())
	v.logger.Debug().Str("operator", operator.String()).Str("shares", shares.String()).Msg("Mint requested")
	err = v.host.Update(ctx, func(ctx context.Context) error {
		if err := v.authorizer.RequireAuth(ctx, operator, inv); err != nil {
			return err
		}
		if err := checkAmount(shares); err != nil {
			return err
		}
		if shares.IsZero() {
			assets = sdkmath.ZeroInt()
			return nil
		}

		p, err := v.snapshot(ctx)
		if err != nil {
			return err
		}
		assets, err = p.toAssets(shares, sharemath.Ceil)
		if err != nil {
			return err
		}
		if err := v.supplyFrom(ctx, p.cfg, from, assets); err != nil {
			return err
		}
		if err := v.credit(ctx, receiver, shares); err != nil {
			return err
		}

		v.publish(ctx, types.VaultEvent{Kind: types.EventMint, Operator: operator, Receiver: receiver, Owner: from, Assets: assets, Shares: shares})
		v.logger.Info().
			Str("receiver", receiver.String()).
			Str("assets", assets.String()).
			Str("shares", shares.String()).
			Msg("Mint committed")
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return assets, nil
}

// supplyFrom moves assets from from into vault custody and on into the pool.
func (v *Vault) supplyFrom(ctx context.Context, cfg types.VaultConfig, from types.Address, assets sdkmath.Int) error {
	asset, err := v.protocols.Token(cfg.Asset)
	if err != nil {
		return err
	}
	if err := asset.TransferFrom(ctx, v.address, from, v.address, assets); err != nil {
		return fmt.Errorf("pull %s from %s: %w", assets, from, err)
	}
	return v.supplyToPool(ctx, cfg, asset, assets)
}

// supplyToPool grants the pool an allowance for exactly amount and supplies it
// as collateral on the vault's own position.
func (v *Vault) supplyToPool(ctx context.Context, cfg types.VaultConfig, asset Token, amount sdkmath.Int) error {
	txn, err := ledger.FromContext(ctx)
	if err != nil {
		return err
	}
	if err := asset.Approve(ctx, v.address, cfg.LendingPool, amount, txn.Sequence()+SupplyAllowanceLedgers); err != nil {
		return fmt.Errorf("approve lending pool: %w", err)
	}
	pool, err := v.protocols.LendingPool(cfg.LendingPool)
	if err != nil {
		return err
	}
	requests := []types.Request{{Type: types.RequestSupplyCollateral, Asset: cfg.Asset, Amount: amount}}
	if _, err := pool.SubmitWithAllowance(ctx, v.address, v.address, v.address, requests); err != nil {
		return fmt.Errorf("supply %s to lending pool: %w", amount, err)
	}
	return nil
}

// credit mints shares to receiver and registers it as a depositor. A deposit
// that rounds down to zero shares credits nothing and registers no one.
func (v *Vault) credit(ctx context.Context, receiver types.Address, shares sdkmath.Int) error {
	if shares.IsZero() {
		return nil
	}
	if err := v.shares.Mint(ctx, receiver, shares); err != nil {
		return fmt.Errorf("mint shares: %w", err)
	}
	return v.addDepositor(ctx, receiver)
}

func checkAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if amount.GT(types.MaxAmount) {
		return fmt.Errorf("%w: %s", ErrMathOverflow, amount)
	}
	return nil
}

func amountArg(amount sdkmath.Int) string {
	if amount.IsNil() {
		return "<nil>"
	}
	return amount.String()
}
