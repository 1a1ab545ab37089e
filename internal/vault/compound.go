package vault

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/types"
)

// Compound claims the pool's reward emissions for the vault, swaps them for the
// underlying asset and supplies the proceeds back into the vault's position.
// No shares are minted, so every holder's shares gain value. It returns the
// underlying amount reinvested; zero when nothing was claimable or the swap
// paid nothing.
//
// The swap takes any price: it passes no minimum output and an unbounded
// maximum price.
func (v *Vault) Compound(ctx context.Context, operator types.Address) (compounded sdkmath.Int, err error) {
	inv := v.Invocation("compound", operator.String())
	compounded = sdkmath.ZeroInt()
	err = v.host.Update(ctx, func(ctx context.Context) error {
		if err := v.authorizer.RequireAuth(ctx, operator, inv); err != nil {
			return err
		}
		cfg, err := v.storage.LoadConfig(ctx)
		if err != nil {
			return err
		}
		pool, err := v.protocols.LendingPool(cfg.LendingPool)
		if err != nil {
			return err
		}

		// claiming
		claimed, err := pool.Claim(ctx, v.address, []uint32{cfg.RewardReserveIndex}, v.address)
		if err != nil {
			return fmt.Errorf("claim rewards: %w", err)
		}
		if claimed.IsNil() || !claimed.IsPositive() {
			v.logger.Debug().Msg("Compound skipped: no rewards to claim")
			return nil
		}

		// swapping
		received, err := v.swapRewards(ctx, cfg, claimed)
		if err != nil {
			return err
		}
		if received.IsNil() || !received.IsPositive() {
			v.logger.Warn().Str("claimed", claimed.String()).Msg("Compound stopped: swap returned no underlying")
			return nil
		}

		// redepositing
		asset, err := v.protocols.Token(cfg.Asset)
		if err != nil {
			return err
		}
		if err := v.supplyToPool(ctx, cfg, asset, received); err != nil {
			return err
		}
		compounded = received

		v.publish(ctx, types.VaultEvent{Kind: types.EventCompound, Operator: operator, RewardClaimed: claimed, AssetsReceived: received})
		v.logger.Info().
			Str("rewardClaimed", claimed.String()).
			Str("assetsReceived", received.String()).
			Msg("Compound committed")
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return compounded, nil
}

func (v *Vault) swapRewards(ctx context.Context, cfg types.VaultConfig, claimed sdkmath.Int) (sdkmath.Int, error) {
	txn, err := ledger.FromContext(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	reward, err := v.protocols.Token(cfg.RewardToken)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if err := reward.Approve(ctx, v.address, cfg.Exchange, claimed, txn.Sequence()+SwapAllowanceLedgers); err != nil {
		return sdkmath.Int{}, fmt.Errorf("approve exchange: %w", err)
	}
	exchange, err := v.protocols.Exchange(cfg.Exchange)
	if err != nil {
		return sdkmath.Int{}, err
	}
	received, _, err := exchange.SwapExactAmountIn(ctx, cfg.RewardToken, claimed, cfg.Asset, sdkmath.ZeroInt(), types.MaxAmount, v.address)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("swap rewards: %w", err)
	}
	return received, nil
}
