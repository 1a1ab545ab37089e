package state

import (
	"context"
	"os"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yieldvault/internal/types"
)

// openTestJournal connects to YV_TEST_DATABASE_DSN and starts from empty tables.
func openTestJournal(t *testing.T) {
	t.Helper()
	dsn := os.Getenv("YV_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("YV_TEST_DATABASE_DSN not set")
	}
	require.NoError(t, InitDBWithDSN(dsn))
	t.Cleanup(CloseDB)
	require.NoError(t, DropSchema())
	require.NoError(t, EnsureSchema())
}

func TestJournalRequiresInit(t *testing.T) {
	saved := DB
	DB = nil
	defer func() { DB = saved }()

	ctx := context.Background()
	require.ErrorIs(t, SaveVaultEvent(ctx, types.VaultEvent{}), ErrNotInitialized)
	_, err := GetRecentEvents(ctx, "", 10)
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = SaveHarvestRecord(ctx, types.HarvestRecord{})
	require.ErrorIs(t, err, ErrNotInitialized)
	require.Error(t, TestDBConnection())
}

func TestPrincipalsDeduplicates(t *testing.T) {
	a := types.ContractAddress("a")
	b := types.ContractAddress("b")
	got := principals(types.VaultEvent{Operator: a, Receiver: a, Owner: b})
	require.Equal(t, []string{a.String(), b.String()}, got)
	require.Empty(t, principals(types.VaultEvent{}))
}

func TestSaveAndQueryEvents(t *testing.T) {
	openTestJournal(t)
	ctx := context.Background()

	alice := types.ContractAddress("alice")
	bob := types.ContractAddress("bob")
	huge, ok := sdkmath.NewIntFromString("170141183460469231731687303715884105727")
	require.True(t, ok)

	deposit := types.VaultEvent{
		ID: uuid.NewString(), Kind: types.EventDeposit, Vault: types.ContractAddress("vault"),
		Operator: alice, Receiver: bob,
		Assets: huge, Shares: sdkmath.NewInt(5), RewardClaimed: sdkmath.ZeroInt(), AssetsReceived: sdkmath.ZeroInt(),
		LedgerSequence: 7, Timestamp: time.Now().UTC().Truncate(time.Microsecond),
	}
	compound := types.VaultEvent{
		ID: uuid.NewString(), Kind: types.EventCompound, Vault: deposit.Vault, Operator: alice,
		Assets: sdkmath.ZeroInt(), Shares: sdkmath.ZeroInt(), RewardClaimed: sdkmath.NewInt(100), AssetsReceived: sdkmath.NewInt(5),
		LedgerSequence: 8, Timestamp: deposit.Timestamp.Add(time.Second),
	}
	require.NoError(t, SaveVaultEvent(ctx, deposit))
	require.NoError(t, SaveVaultEvent(ctx, compound))
	// replays are ignored
	require.NoError(t, SaveVaultEvent(ctx, deposit))

	all, err := GetRecentEvents(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, compound.ID, all[0].ID)

	deposits, err := GetRecentEvents(ctx, types.EventDeposit, 10)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	require.True(t, deposits[0].Assets.Equal(huge))

	forBob, err := GetEventsByPrincipal(ctx, bob, 10)
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	require.Equal(t, deposit.ID, forBob[0].ID)

	got, err := GetEventByID(ctx, compound.ID)
	require.NoError(t, err)
	require.Equal(t, uint32(8), got.LedgerSequence)
	require.True(t, got.RewardClaimed.Equal(sdkmath.NewInt(100)))

	_, err = GetEventByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestHarvestRecordsAreNumbered(t *testing.T) {
	openTestJournal(t)
	ctx := context.Background()
	j := Journal{}

	now := time.Now().UTC()
	for i, received := range []int64{0, 40, 60} {
		n, err := j.RecordHarvest(ctx, types.HarvestRecord{
			CycleID: uuid.NewString(), StartedAt: now, FinishedAt: now.Add(time.Duration(i) * time.Second),
			LedgerSequence: uint32(i + 1), AssetsReceived: sdkmath.NewInt(received),
			SharePriceBefore: 1, SharePriceAfter: 1 + float64(i)/100, Success: i > 0,
		})
		require.NoError(t, err)
		require.Equal(t, i+1, n)
	}

	current, err := GetCurrentHarvestNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, current)

	summary, err := j.HarvestSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, summary.TotalHarvests)
	require.Equal(t, 2, summary.SuccessfulHarvests)
	require.True(t, summary.TotalCompounded.Equal(sdkmath.NewInt(100)))
	require.InDelta(t, 1.02, summary.LastSharePrice, 1e-9)
	require.NotNil(t, summary.LastHarvestAt)

	recent, err := j.RecentHarvests(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, 3, recent[0].HarvestNumber)

	require.NoError(t, ResetHarvestNumber(ctx, 0))
	require.Error(t, ResetHarvestNumber(ctx, -1))
}
