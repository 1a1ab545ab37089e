package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/sharemath"
	"github.com/elys-network/yieldvault/internal/types"
)

func (v *Vault) convert(ctx context.Context, fn func(p price) (sdkmath.Int, error)) (out sdkmath.Int, err error) {
	err = v.host.View(ctx, func(ctx context.Context) error {
		p, err := v.snapshot(ctx)
		if err != nil {
			return err
		}
		out, err = fn(p)
		return err
	})
	return out, err
}

// ConvertToShares is the floor share value of assets at the current price.
func (v *Vault) ConvertToShares(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	return v.convert(ctx, func(p price) (sdkmath.Int, error) { return p.toShares(assets, sharemath.Floor) })
}

// ConvertToAssets is the floor asset value of shares at the current price.
func (v *Vault) ConvertToAssets(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	return v.convert(ctx, func(p price) (sdkmath.Int, error) { return p.toAssets(shares, sharemath.Floor) })
}

// PreviewDeposit is the shares Deposit would mint for assets.
func (v *Vault) PreviewDeposit(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	return v.convert(ctx, func(p price) (sdkmath.Int, error) { return p.toShares(assets, sharemath.Floor) })
}

// PreviewMint is the assets Mint would pull for shares.
func (v *Vault) PreviewMint(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	return v.convert(ctx, func(p price) (sdkmath.Int, error) { return p.toAssets(shares, sharemath.Ceil) })
}

// PreviewWithdraw is the shares Withdraw would burn for assets.
func (v *Vault) PreviewWithdraw(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	return v.convert(ctx, func(p price) (sdkmath.Int, error) { return p.toShares(assets, sharemath.Ceil) })
}

// PreviewRedeem is the assets Redeem would release for shares.
func (v *Vault) PreviewRedeem(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	return v.convert(ctx, func(p price) (sdkmath.Int, error) { return p.toAssets(shares, sharemath.Floor) })
}

// MaxDeposit has no per-receiver limit.
func (v *Vault) MaxDeposit(ctx context.Context, receiver types.Address) (sdkmath.Int, error) {
	if _, err := v.Config(ctx); err != nil {
		return sdkmath.Int{}, err
	}
	return types.MaxAmount, nil
}

// MaxMint has no per-receiver limit.
func (v *Vault) MaxMint(ctx context.Context, receiver types.Address) (sdkmath.Int, error) {
	if _, err := v.Config(ctx); err != nil {
		return sdkmath.Int{}, err
	}
	return types.MaxAmount, nil
}

// MaxWithdraw is the floor asset value of owner's shares.
func (v *Vault) MaxWithdraw(ctx context.Context, owner types.Address) (sdkmath.Int, error) {
	var out sdkmath.Int
	err := v.host.View(ctx, func(ctx context.Context) error {
		p, err := v.snapshot(ctx)
		if err != nil {
			return err
		}
		balance, err := v.shares.Balance(ctx, owner)
		if err != nil {
			return err
		}
		out, err = p.toAssets(balance, sharemath.Floor)
		return err
	})
	return out, err
}

// MaxRedeem is owner's share balance.
func (v *Vault) MaxRedeem(ctx context.Context, owner types.Address) (sdkmath.Int, error) {
	var out sdkmath.Int
	err := v.host.View(ctx, func(ctx context.Context) error {
		if _, err := v.storage.LoadConfig(ctx); err != nil {
			return err
		}
		var err error
		out, err = v.shares.Balance(ctx, owner)
		return err
	})
	return out, err
}
