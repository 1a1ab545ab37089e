package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/auth"
	"github.com/elys-network/yieldvault/internal/sharemath"
	"github.com/elys-network/yieldvault/internal/types"
)

// Withdraw releases exactly assets from the lending pool to receiver and burns
// the ceiling share amount from owner. It returns the shares burned.
func (v *Vault) Withdraw(ctx context.Context, assets sdkmath.Int, receiver, owner, operator types.Address) (shares sdkmath.Int, err error) {
	inv := v.Invocation("withdraw", amountArg(assets), receiver.String(), owner.String(), operator.String())
	v.logger.Debug().Str("operator", operator.String()).Str("assets", assets.String()).Msg("Withdraw requested")
	err = v.host.Update(ctx, func(ctx context.Context) error {
		if err := v.requireOwnerAuth(ctx, owner, operator, inv); err != nil {
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
		shares, err = p.toShares(assets, sharemath.Ceil)
		if err != nil {
			return err
		}
		if err := v.release(ctx, p.cfg, receiver, owner, assets, shares); err != nil {
			return err
		}

		v.publish(ctx, types.VaultEvent{Kind: types.EventWithdraw, Operator: operator, Receiver: receiver, Owner: owner, Assets: assets, Shares: shares})
		v.logger.Info().
			Str("owner", owner.String()).
			Str("receiver", receiver.String()).
			Str("assets", assets.String()).
			Str("shares", shares.String()).
			Msg("Withdraw committed")
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return shares, nil
}

// Redeem burns exactly shares from owner and releases their floor asset value
// to receiver. It returns the assets released.
func (v *Vault) Redeem(ctx context.Context, shares sdkmath.Int, receiver, owner, operator types.Address) (assets sdkmath.Int, err error) {
	inv := v.Invocation("redeem", amountArg(shares), receiver.String(), owner.String(), operator.String())
	v.logger.Debug().Str("operator", operator.String()).Str("shares", shares.String()).Msg("Redeem requested")
	err = v.host.Update(ctx, func(ctx context.Context) error {
		if err := v.requireOwnerAuth(ctx, owner, operator, inv); err != nil {
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
		assets, err = p.toAssets(shares, sharemath.Floor)
		if err != nil {
			return err
		}
		if err := v.release(ctx, p.cfg, receiver, owner, assets, shares); err != nil {
			return err
		}

		v.publish(ctx, types.VaultEvent{Kind: types.EventRedeem, Operator: operator, Receiver: receiver, Owner: owner, Assets: assets, Shares: shares})
		v.logger.Info().
			Str("owner", owner.String()).
			Str("receiver", receiver.String()).
			Str("assets", assets.String()).
			Str("shares", shares.String()).
			Msg("Redeem committed")
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return assets, nil
}

// requireOwnerAuth needs the operator's capability, and the owner's as well
// when someone else operates on the owner's shares.
func (v *Vault) requireOwnerAuth(ctx context.Context, owner, operator types.Address, inv auth.Invocation) error {
	if err := v.authorizer.RequireAuth(ctx, operator, inv); err != nil {
		return err
	}
	if owner != operator {
		return v.authorizer.RequireAuth(ctx, owner, inv)
	}
	return nil
}

// release has the pool pay assets straight to receiver, then burns shares from
// owner. The payout comes first; a shortfall in owner's shares fails the whole
// transaction and reverts it.
func (v *Vault) release(ctx context.Context, cfg types.VaultConfig, receiver, owner types.Address, assets, shares sdkmath.Int) error {
	pool, err := v.protocols.LendingPool(cfg.LendingPool)
	if err != nil {
		return err
	}
	requests := []types.Request{{Type: types.RequestWithdrawCollateral, Asset: cfg.Asset, Amount: assets}}
	if _, err := pool.SubmitWithAllowance(ctx, v.address, v.address, receiver, requests); err != nil {
		return fmt.Errorf("withdraw %s from lending pool: %w", assets, err)
	}

	balance, err := v.shares.Balance(ctx, owner)
	if err != nil {
		return err
	}
	if balance.LT(shares) {
		return &InsufficientSharesError{Have: balance, Need: shares}
	}
	if err := v.shares.Burn(ctx, owner, shares); err != nil {
		return fmt.Errorf("burn shares: %w", err)
	}
	return nil
}
