package devnet

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yieldvault/internal/auth"
	"github.com/elys-network/yieldvault/internal/config"
	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/types"
)

func TestAttachDoesNotDeploy(t *testing.T) {
	db, err := ledger.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	n, err := Attach(db, Options{Params: config.DefaultDevnetParameters})
	require.NoError(t, err)
	initialized, err := n.Vault.IsInitialized(context.Background())
	require.NoError(t, err)
	require.False(t, initialized)
	seq, err := db.Sequence()
	require.NoError(t, err)
	require.Zero(t, seq)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := ledger.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	operator := types.ContractAddress("operator")
	params := config.DefaultDevnetParameters
	n, err := Bootstrap(ctx, db, Options{Params: params, Operator: operator})
	require.NoError(t, err)

	balance, err := n.Asset.Balance(ctx, operator)
	require.NoError(t, err)
	require.True(t, balance.Equal(sdkmath.NewInt(params.OperatorFaucet)))
	seq, err := db.Sequence()
	require.NoError(t, err)
	require.Equal(t, uint32(1), seq)

	again, err := Bootstrap(ctx, db, Options{Params: params, Operator: operator})
	require.NoError(t, err)
	balance, err = again.Asset.Balance(ctx, operator)
	require.NoError(t, err)
	require.True(t, balance.Equal(sdkmath.NewInt(params.OperatorFaucet)))
	seq, err = db.Sequence()
	require.NoError(t, err)
	require.Equal(t, uint32(1), seq)

	cfg, err := again.Vault.Config(ctx)
	require.NoError(t, err)
	require.Equal(t, PoolAddress, cfg.LendingPool)
	require.Equal(t, ExchangeAddress, cfg.Exchange)
}

func TestAccrueGrowsVaultAssets(t *testing.T) {
	ctx := context.Background()
	db, err := ledger.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	alice := types.ContractAddress("alice")
	n, err := Bootstrap(ctx, db, Options{Params: config.DefaultDevnetParameters, Authorizer: auth.AllowAll{}})
	require.NoError(t, err)

	amount := sdkmath.NewInt(1000_0000000)
	require.NoError(t, n.Faucet(ctx, alice, amount))
	require.NoError(t, n.Asset.Approve(ctx, alice, VaultAddress, amount, 100))
	_, err = n.Vault.Deposit(ctx, amount, alice, alice, alice)
	require.NoError(t, err)

	before, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)
	require.NoError(t, n.Accrue(ctx))
	after, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)
	require.True(t, after.GT(before), "%s -> %s", before, after)

	pending, err := n.Pool.PendingEmissions(ctx, VaultAddress, []uint32{n.Params.RewardReserveIndex})
	require.NoError(t, err)
	require.True(t, pending.Equal(sdkmath.NewInt(n.Params.EmissionsPerCycle)))

	// the pool holds the backing for the grown b-rate
	_, err = n.Vault.Redeem(ctx, amount, alice, alice, alice)
	require.NoError(t, err)
}
