package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/sharemath"
	"github.com/elys-network/yieldvault/internal/types"
)

// TotalAssets values the vault's lending pool collateral in underlying units.
// It is read live from the pool on every call.
func (v *Vault) TotalAssets(ctx context.Context) (total sdkmath.Int, err error) {
	err = v.host.View(ctx, func(ctx context.Context) error {
		cfg, err := v.storage.LoadConfig(ctx)
		if err != nil {
			return err
		}
		total, err = v.totalAssets(ctx, cfg)
		return err
	})
	return total, err
}

func (v *Vault) totalAssets(ctx context.Context, cfg types.VaultConfig) (sdkmath.Int, error) {
	pool, err := v.protocols.LendingPool(cfg.LendingPool)
	if err != nil {
		return sdkmath.Int{}, err
	}
	positions, err := pool.GetPositions(ctx, v.address)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("get vault positions: %w", err)
	}
	bTokens := positions.CollateralAt(cfg.AssetReserveIndex)
	if bTokens.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	reserve, err := pool.GetReserve(ctx, cfg.Asset)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("get asset reserve: %w", err)
	}
	value := bTokens.Mul(reserve.Data.BRate)
	if value.GT(types.MaxAmount) {
		return sdkmath.Int{}, fmt.Errorf("%w: collateral %s at b-rate %s", ErrMathOverflow, bTokens, reserve.Data.BRate)
	}
	return value.Quo(types.RateScalar), nil
}

// price is the supply and asset totals one operation converts against.
type price struct {
	cfg         types.VaultConfig
	totalSupply sdkmath.Int
	totalAssets sdkmath.Int
}

// snapshot loads the config and reads both totals once.
func (v *Vault) snapshot(ctx context.Context) (price, error) {
	cfg, err := v.storage.LoadConfig(ctx)
	if err != nil {
		return price{}, err
	}
	supply, err := v.shares.TotalSupply(ctx)
	if err != nil {
		return price{}, err
	}
	assets, err := v.totalAssets(ctx, cfg)
	if err != nil {
		return price{}, err
	}
	return price{cfg: cfg, totalSupply: supply, totalAssets: assets}, nil
}

func (p price) toShares(assets sdkmath.Int, r sharemath.Rounding) (sdkmath.Int, error) {
	return sharemath.AssetsToShares(assets, p.totalSupply, p.totalAssets, p.cfg.DecimalsOffset, r)
}

func (p price) toAssets(shares sdkmath.Int, r sharemath.Rounding) (sdkmath.Int, error) {
	return sharemath.SharesToAssets(shares, p.totalSupply, p.totalAssets, p.cfg.DecimalsOffset, r)
}
