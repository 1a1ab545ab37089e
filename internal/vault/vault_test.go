package vault_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yieldvault/internal/auth"
	"github.com/elys-network/yieldvault/internal/config"
	"github.com/elys-network/yieldvault/internal/devnet"
	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/protocol/lending"
	"github.com/elys-network/yieldvault/internal/protocol/token"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/vault"
)

// units of a 7-decimal asset
const unit = 10_000_000

var (
	alice = types.ContractAddress("alice")
	bob   = types.ContractAddress("bob")
	carol = types.ContractAddress("carol")
)

type recordingSink struct {
	mu     sync.Mutex
	events []types.VaultEvent
}

func (s *recordingSink) Publish(_ context.Context, e types.VaultEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) kinds() []types.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.EventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

func quietParams() config.DevnetParameters {
	p := config.DefaultDevnetParameters
	p.BRateGrowthPerCyclePPB = 0
	return p
}

func newNetwork(t *testing.T, params config.DevnetParameters, authz auth.Authorizer, sinks ...vault.EventSink) *devnet.Network {
	t.Helper()
	db, err := ledger.OpenMemory()
	require.NoError(t, err)
	n, err := devnet.Bootstrap(context.Background(), db, devnet.Options{Params: params, Authorizer: authz, Sinks: sinks})
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func amt(v int64) sdkmath.Int { return sdkmath.NewInt(v) }

// fund mints assets to holder and approves the vault to pull them.
func fund(t *testing.T, n *devnet.Network, holder types.Address, assets int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, n.Faucet(ctx, holder, amt(assets)))
	seq, err := n.Ledger.Sequence()
	require.NoError(t, err)
	require.NoError(t, n.Asset.Approve(ctx, holder, devnet.VaultAddress, amt(assets), seq+100))
}

func deposit(t *testing.T, n *devnet.Network, holder types.Address, assets int64) sdkmath.Int {
	t.Helper()
	fund(t, n, holder, assets)
	shares, err := n.Vault.Deposit(context.Background(), amt(assets), holder, holder, holder)
	require.NoError(t, err)
	return shares
}

func balanceOf(t *testing.T, tok *token.Token, holder types.Address) int64 {
	t.Helper()
	b, err := tok.Balance(context.Background(), holder)
	require.NoError(t, err)
	return b.Int64()
}

func TestInitializeOnce(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})

	ok, err := n.Vault.IsInitialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	cfg, err := n.Vault.Config(ctx)
	require.NoError(t, err)
	err = n.Vault.Initialize(ctx, cfg)
	assert.ErrorIs(t, err, vault.ErrAlreadyInitialized)

	name, err := n.Vault.Name(ctx)
	require.NoError(t, err)
	symbol, err := n.Vault.Symbol(ctx)
	require.NoError(t, err)
	decimals, err := n.Vault.Decimals(ctx)
	require.NoError(t, err)
	asset, err := n.Vault.Asset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "YIELD VAULT", name)
	assert.Equal(t, "YV", symbol)
	assert.Equal(t, uint32(7), decimals)
	assert.Equal(t, devnet.AssetAddress, asset)
}

func TestDecimalsIncludeOffset(t *testing.T) {
	p := quietParams()
	p.DecimalsOffset = 3
	n := newNetwork(t, p, auth.AllowAll{})
	decimals, err := n.Vault.Decimals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(10), decimals)

	shares := deposit(t, n, alice, 5)
	assert.Equal(t, int64(5000), shares.Int64())
}

func TestReadsFailBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	db, err := ledger.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	addr := types.ContractAddress("fresh-vault")
	v, err := vault.NewVault(vault.Config{
		Address:    addr,
		Host:       db,
		Storage:    vault.NewLedgerStorage(addr),
		Shares:     token.New(db, types.ContractAddress("fresh-shares"), token.Metadata{}),
		Protocols:  vault.NewDirectory(),
		Authorizer: auth.AllowAll{},
	})
	require.NoError(t, err)

	ok, err := v.IsInitialized(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = v.TotalAssets(ctx)
	assert.ErrorIs(t, err, vault.ErrNotInitialized)
	_, err = v.Asset(ctx)
	assert.ErrorIs(t, err, vault.ErrNotInitialized)
	_, err = v.Decimals(ctx)
	assert.ErrorIs(t, err, vault.ErrNotInitialized)
	_, err = v.Deposit(ctx, amt(1), alice, alice, alice)
	assert.ErrorIs(t, err, vault.ErrNotInitialized)
	_, err = v.Compound(ctx, alice)
	assert.ErrorIs(t, err, vault.ErrNotInitialized)

	err = v.Initialize(ctx, types.VaultConfig{
		Asset: devnet.AssetAddress, LendingPool: devnet.PoolAddress, RewardToken: devnet.RewardAddress,
		Exchange: devnet.ExchangeAddress, DecimalsOffset: 39,
	})
	assert.ErrorIs(t, err, vault.ErrMathOverflow)
}

func TestNewVaultValidatesConfig(t *testing.T) {
	_, err := vault.NewVault(vault.Config{Address: "not-an-address"})
	assert.Error(t, err)
	_, err = vault.NewVault(vault.Config{Address: types.ContractAddress("v")})
	assert.Error(t, err)
}

func TestDepositThenWithdraw(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})

	shares := deposit(t, n, alice, 1000*unit)
	assert.Equal(t, int64(1000*unit), shares.Int64())

	supply, err := n.Vault.TotalSupply(ctx)
	require.NoError(t, err)
	total, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000*unit), supply.Int64())
	assert.Equal(t, int64(1000*unit), total.Int64())
	assert.Equal(t, int64(0), balanceOf(t, n.Asset, devnet.VaultAddress), "vault keeps no idle custody")

	burned, err := n.Vault.Withdraw(ctx, amt(500*unit), alice, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(500*unit), burned.Int64())

	bal, err := n.Vault.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(500*unit), bal.Int64())
	assert.Equal(t, int64(500*unit), balanceOf(t, n.Asset, alice))
}

func TestMintAndRedeem(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})
	deposit(t, n, bob, 3*unit)

	fund(t, n, alice, 10*unit)
	assets, err := n.Vault.Mint(ctx, amt(2*unit), alice, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2*unit), assets.Int64())

	preview, err := n.Vault.PreviewRedeem(ctx, amt(unit))
	require.NoError(t, err)
	out, err := n.Vault.Redeem(ctx, amt(unit), carol, alice, alice)
	require.NoError(t, err)
	assert.Equal(t, preview, out)
	assert.Equal(t, out.Int64(), balanceOf(t, n.Asset, carol))

	maxRedeem, err := n.Vault.MaxRedeem(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(unit), maxRedeem.Int64())
}

func TestSmallDepositorUnaffectedByInterleaving(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})

	deposit(t, n, alice, 1000) // 0.0001
	deposit(t, n, bob, unit)   // 1.0000000
	deposit(t, n, alice, 1000) // 0.0001

	maxWithdraw, err := n.Vault.MaxWithdraw(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), maxWithdraw.Int64())
}

func TestWithdrawAboveMaxRollsBack(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})
	deposit(t, n, alice, 1000)
	deposit(t, n, bob, unit)
	deposit(t, n, alice, 1000)

	total, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)

	_, err = n.Vault.Withdraw(ctx, amt(2001), carol, alice, alice)
	require.ErrorIs(t, err, vault.ErrInsufficientShares)
	var shortfall *vault.InsufficientSharesError
	require.ErrorAs(t, err, &shortfall)
	assert.Equal(t, int64(2000), shortfall.Have.Int64())
	assert.Equal(t, int64(2001), shortfall.Need.Int64())

	// the pool payout to carol was reverted with the failed burn
	assert.Equal(t, int64(0), balanceOf(t, n.Asset, carol))
	after, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, after)
	bal, err := n.Vault.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), bal.Int64())
}

func TestWithdrawBeyondPoolCollateralFails(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})
	deposit(t, n, alice, 100)

	_, err := n.Vault.Withdraw(ctx, amt(101), alice, alice, alice)
	assert.ErrorIs(t, err, lending.ErrInsufficientCollateral)
	bal, err := n.Vault.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Int64())
}

func TestZeroAmountsAreNoOps(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	n := newNetwork(t, quietParams(), auth.AllowAll{}, sink)
	deposit(t, n, alice, unit)

	for name, op := range map[string]func() (sdkmath.Int, error){
		"deposit":  func() (sdkmath.Int, error) { return n.Vault.Deposit(ctx, sdkmath.ZeroInt(), bob, bob, bob) },
		"mint":     func() (sdkmath.Int, error) { return n.Vault.Mint(ctx, sdkmath.ZeroInt(), bob, bob, bob) },
		"withdraw": func() (sdkmath.Int, error) { return n.Vault.Withdraw(ctx, sdkmath.ZeroInt(), bob, alice, alice) },
		"redeem":   func() (sdkmath.Int, error) { return n.Vault.Redeem(ctx, sdkmath.ZeroInt(), bob, alice, alice) },
	} {
		out, err := op()
		require.NoError(t, err, name)
		assert.True(t, out.IsZero(), name)
	}

	supply, err := n.Vault.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(unit), supply.Int64())
	depositors, err := n.Vault.Depositors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Address{alice}, depositors)
	assert.Equal(t, []types.EventKind{types.EventInitialized, types.EventDeposit}, sink.kinds())
}

func TestNegativeAmountsRejected(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})
	_, err := n.Vault.Deposit(ctx, amt(-1), alice, alice, alice)
	assert.ErrorIs(t, err, vault.ErrInvalidAmount)
	_, err = n.Vault.Redeem(ctx, amt(-1), alice, alice, alice)
	assert.ErrorIs(t, err, vault.ErrInvalidAmount)
	_, err = n.Vault.PreviewDeposit(ctx, amt(-1))
	assert.ErrorIs(t, err, vault.ErrInvalidAmount)
}

func TestInsufficientAllowanceRollsBack(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})
	require.NoError(t, n.Faucet(ctx, alice, amt(unit)))
	seq, err := n.Ledger.Sequence()
	require.NoError(t, err)
	require.NoError(t, n.Asset.Approve(ctx, alice, devnet.VaultAddress, amt(unit-1), seq+10))

	_, err = n.Vault.Deposit(ctx, amt(unit), alice, alice, alice)
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)

	assert.Equal(t, int64(unit), balanceOf(t, n.Asset, alice))
	supply, err := n.Vault.TotalSupply(ctx)
	require.NoError(t, err)
	assert.True(t, supply.IsZero())
	depositors, err := n.Vault.Depositors(ctx)
	require.NoError(t, err)
	assert.Empty(t, depositors)
}

func TestCompoundRaisesSharePrice(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	n := newNetwork(t, quietParams(), auth.AllowAll{}, sink)
	deposit(t, n, alice, 1000*unit)
	deposit(t, n, bob, 500*unit)

	before, err := n.Vault.ConvertToAssets(ctx, amt(unit))
	require.NoError(t, err)
	require.NoError(t, n.Accrue(ctx))

	compounded, err := n.Vault.Compound(ctx, alice)
	require.NoError(t, err)
	// 100 BLND at 20 BLND per USDC
	assert.Equal(t, int64(5*unit), compounded.Int64())

	after, err := n.Vault.ConvertToAssets(ctx, amt(unit))
	require.NoError(t, err)
	assert.True(t, after.GT(before), "share price %s -> %s", before, after)

	total, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1505*unit), total.Int64())
	supply, err := n.Vault.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1500*unit), supply.Int64())
	assert.Equal(t, int64(0), balanceOf(t, n.Reward, devnet.VaultAddress))
	assert.Contains(t, sink.kinds(), types.EventCompound)
}

func TestCompoundWithoutRewardsChangesNothing(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	n := newNetwork(t, quietParams(), auth.AllowAll{}, sink)
	deposit(t, n, alice, 10*unit)

	supply, err := n.Vault.TotalSupply(ctx)
	require.NoError(t, err)
	total, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)
	snapshot, err := n.Vault.DepositorsSnapshot(ctx)
	require.NoError(t, err)

	compounded, err := n.Vault.Compound(ctx, alice)
	require.NoError(t, err)
	assert.True(t, compounded.IsZero())

	supplyAfter, err := n.Vault.TotalSupply(ctx)
	require.NoError(t, err)
	totalAfter, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)
	snapshotAfter, err := n.Vault.DepositorsSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, supply, supplyAfter)
	assert.Equal(t, total, totalAfter)
	assert.Equal(t, snapshot, snapshotAfter)
	assert.NotContains(t, sink.kinds(), types.EventCompound)
}

func TestCompoundDustRewardsSupplyNothing(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	params := quietParams()
	n := newNetwork(t, params, auth.AllowAll{}, sink)
	deposit(t, n, alice, 10*unit)
	// below one unit of USDC at 20 BLND per USDC
	require.NoError(t, n.Pool.AccrueEmissions(ctx, devnet.VaultAddress, params.RewardReserveIndex, amt(19)))

	supply, err := n.Vault.TotalSupply(ctx)
	require.NoError(t, err)
	total, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)
	snapshot, err := n.Vault.DepositorsSnapshot(ctx)
	require.NoError(t, err)

	compounded, err := n.Vault.Compound(ctx, alice)
	require.NoError(t, err)
	assert.True(t, compounded.IsZero())

	supplyAfter, err := n.Vault.TotalSupply(ctx)
	require.NoError(t, err)
	totalAfter, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)
	snapshotAfter, err := n.Vault.DepositorsSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, supply, supplyAfter)
	assert.Equal(t, total, totalAfter)
	assert.Equal(t, snapshot, snapshotAfter)
	assert.Equal(t, int64(0), balanceOf(t, n.Reward, devnet.VaultAddress))
	assert.NotContains(t, sink.kinds(), types.EventCompound)
}

func TestDustDepositRegistersNoDepositor(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})
	deposit(t, n, alice, 1500*unit)
	require.NoError(t, n.Accrue(ctx))
	_, err := n.Vault.Compound(ctx, alice)
	require.NoError(t, err)

	// one base unit is worth less than a share once the price is above 1
	shares := deposit(t, n, bob, 1)
	assert.True(t, shares.IsZero())
	assert.Equal(t, int64(0), balanceOf(t, n.Asset, bob))

	depositors, err := n.Vault.Depositors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Address{alice}, depositors)
}

func TestDepositorsSnapshotSkipsEmptyBalances(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})
	deposit(t, n, alice, 100)
	deposit(t, n, bob, 200)
	_, err := n.Vault.Redeem(ctx, amt(100), alice, alice, alice)
	require.NoError(t, err)
	deposit(t, n, bob, 1)

	depositors, err := n.Vault.Depositors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Address{alice, bob}, depositors)

	snapshot, err := n.Vault.DepositorsSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot, 1)
	assert.Equal(t, int64(201), snapshot[bob].Int64())
}

func TestDepositorAssetsNeverExceedTotal(t *testing.T) {
	ctx := context.Background()
	p := config.DefaultDevnetParameters
	p.BRateGrowthPerCyclePPB = 1_234_567
	n := newNetwork(t, p, auth.AllowAll{})
	holders := []types.Address{alice, bob, carol, types.ContractAddress("dave")}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 60; i++ {
		h := holders[rng.Intn(len(holders))]
		switch rng.Intn(4) {
		case 0, 1:
			deposit(t, n, h, rng.Int63n(50*unit)+1)
		case 2:
			maxRedeem, err := n.Vault.MaxRedeem(ctx, h)
			require.NoError(t, err)
			if maxRedeem.IsPositive() {
				_, err = n.Vault.Redeem(ctx, maxRedeem.QuoRaw(2), h, h, h)
				require.NoError(t, err)
			}
		case 3:
			require.NoError(t, n.Accrue(ctx))
			_, err := n.Vault.Compound(ctx, h)
			require.NoError(t, err)
		}

		snapshot, err := n.Vault.DepositorsSnapshot(ctx)
		require.NoError(t, err)
		sum := sdkmath.ZeroInt()
		for _, shares := range snapshot {
			assets, err := n.Vault.ConvertToAssets(ctx, shares)
			require.NoError(t, err)
			sum = sum.Add(assets)
		}
		total, err := n.Vault.TotalAssets(ctx)
		require.NoError(t, err)
		assert.True(t, sum.LTE(total.AddRaw(int64(len(snapshot)))), "step %d: %s > %s", i, sum, total)
	}
}

func TestOracleOverflowIsFatal(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})
	deposit(t, n, alice, unit)
	require.NoError(t, n.Pool.SetBRate(ctx, devnet.AssetAddress, types.MaxAmount))

	_, err := n.Vault.TotalAssets(ctx)
	assert.ErrorIs(t, err, vault.ErrMathOverflow)
}

func TestPreviewsFollowRounding(t *testing.T) {
	ctx := context.Background()
	n := newNetwork(t, quietParams(), auth.AllowAll{})
	deposit(t, n, alice, 1000)
	// 1 b-token now worth 1.5 units
	require.NoError(t, n.Pool.SetBRate(ctx, devnet.AssetAddress, sdkmath.NewInt(1_500_000_000_000)))

	depositShares, err := n.Vault.PreviewDeposit(ctx, amt(10))
	require.NoError(t, err)
	withdrawShares, err := n.Vault.PreviewWithdraw(ctx, amt(10))
	require.NoError(t, err)
	assert.Equal(t, withdrawShares.Int64(), depositShares.Int64()+1)

	mintAssets, err := n.Vault.PreviewMint(ctx, amt(10))
	require.NoError(t, err)
	redeemAssets, err := n.Vault.PreviewRedeem(ctx, amt(10))
	require.NoError(t, err)
	assert.Equal(t, mintAssets.Int64(), redeemAssets.Int64()+1)

	maxDeposit, err := n.Vault.MaxDeposit(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, types.MaxAmount, maxDeposit)
}
