package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/types"
)

// addDepositor appends principal to the depositor registry unless present.
// Membership is a linear scan; the registry is sized for a moderate number of
// unique depositors.
func (v *Vault) addDepositor(ctx context.Context, principal types.Address) error {
	depositors, err := v.storage.Depositors(ctx)
	if err != nil {
		return err
	}
	for _, d := range depositors {
		if d == principal {
			return nil
		}
	}
	return v.storage.SaveDepositors(ctx, append(depositors, principal))
}

// Depositors lists every principal ever credited with shares, in first-credit order.
func (v *Vault) Depositors(ctx context.Context) (depositors []types.Address, err error) {
	err = v.host.View(ctx, func(ctx context.Context) error {
		depositors, err = v.storage.Depositors(ctx)
		return err
	})
	return depositors, err
}

// DepositorsSnapshot maps each registered depositor with a non-zero share
// balance to that balance, read live.
func (v *Vault) DepositorsSnapshot(ctx context.Context) (snapshot map[types.Address]sdkmath.Int, err error) {
	err = v.host.View(ctx, func(ctx context.Context) error {
		depositors, err := v.storage.Depositors(ctx)
		if err != nil {
			return err
		}
		snapshot = make(map[types.Address]sdkmath.Int, len(depositors))
		for _, d := range depositors {
			balance, err := v.shares.Balance(ctx, d)
			if err != nil {
				return err
			}
			if balance.IsPositive() {
				snapshot[d] = balance
			}
		}
		return nil
	})
	return snapshot, err
}
