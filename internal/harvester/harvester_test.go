package harvester

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/elys-network/yieldvault/internal/analyzer"
	"github.com/elys-network/yieldvault/internal/auth"
	"github.com/elys-network/yieldvault/internal/config"
	"github.com/elys-network/yieldvault/internal/devnet"
	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/types"
)

type memoryRecorder struct {
	mu      sync.Mutex
	records []types.HarvestRecord
	added   chan struct{}
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{added: make(chan struct{}, 64)}
}

func (r *memoryRecorder) RecordHarvest(_ context.Context, record types.HarvestRecord) (int, error) {
	r.mu.Lock()
	r.records = append(r.records, record)
	n := len(r.records)
	r.mu.Unlock()
	select {
	case r.added <- struct{}{}:
	default:
	}
	return n, nil
}

type observed struct {
	record types.HarvestRecord
	apy    float64
}

type memoryObserver struct {
	cycles []observed
}

func (o *memoryObserver) ObserveCycle(record types.HarvestRecord, apy float64) {
	o.cycles = append(o.cycles, observed{record, apy})
}

type failingSigner struct{ auth.Signer }

func (failingSigner) Sign(auth.Invocation, uint64, uint32) (auth.Capability, error) {
	return auth.Capability{}, errors.New("key unavailable")
}

// deployWithDeposit bootstraps a devnet whose operator holds 1000 units in the vault.
func deployWithDeposit(t *testing.T) (*devnet.Network, *auth.KeySigner) {
	t.Helper()
	ctx := context.Background()
	operator, err := auth.GenerateKeySigner()
	require.NoError(t, err)
	addr := operator.Address()

	params := config.DefaultDevnetParameters
	db, err := ledger.OpenMemory()
	require.NoError(t, err)
	n, err := devnet.Bootstrap(ctx, db, devnet.Options{Params: params, Operator: addr})
	require.NoError(t, err)

	deposit := sdkmath.NewInt(1000_0000000)
	seq, err := n.Ledger.Sequence()
	require.NoError(t, err)
	require.NoError(t, n.Asset.Approve(ctx, addr, devnet.VaultAddress, deposit, seq+100))
	c, err := operator.Sign(n.Vault.Invocation("deposit", deposit.String(), addr.String(), addr.String(), addr.String()), 1, seq+100)
	require.NoError(t, err)
	_, err = n.Vault.Deposit(auth.WithCapabilities(ctx, c), deposit, addr, addr, addr)
	require.NoError(t, err)
	return n, operator
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	n, operator := deployWithDeposit(t)
	defer n.Close()
	_, err = New(Config{Vault: n.Vault, Ledger: n.Ledger})
	require.Error(t, err)
	_, err = New(Config{Vault: n.Vault, Ledger: n.Ledger, Signer: operator})
	require.NoError(t, err)
}

func TestRunCycleCompoundsAccruedRewards(t *testing.T) {
	n, operator := deployWithDeposit(t)
	defer n.Close()
	ctx := context.Background()

	recorder := newMemoryRecorder()
	observer := &memoryObserver{}
	h, err := New(Config{
		Vault:       n.Vault,
		Ledger:      n.Ledger,
		Signer:      operator,
		Recorder:    recorder,
		Observer:    observer,
		BeforeCycle: n.Accrue,
	})
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return clock }

	first, err := h.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.NotEmpty(t, first.CycleID)
	assert.Equal(t, 1, first.HarvestNumber)
	// 100 reward tokens at 20 per asset
	assert.True(t, first.AssetsReceived.Equal(sdkmath.NewInt(5_0000000)), "compounded %s", first.AssetsReceived)
	assert.Greater(t, first.SharePriceAfter, first.SharePriceBefore)
	assert.Zero(t, first.GrowthAPR)

	clock = clock.Add(24 * time.Hour)
	second, err := h.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.HarvestNumber)
	assert.Greater(t, second.LedgerSequence, first.LedgerSequence)
	assert.Greater(t, second.GrowthAPR, 0.0)

	require.Len(t, observer.cycles, 2)
	assert.Greater(t, observer.cycles[1].apy, observer.cycles[1].record.GrowthAPR)
	require.Len(t, recorder.records, 2)

	// the compounded assets stay in the vault's pool position
	total, err := n.Vault.TotalAssets(ctx)
	require.NoError(t, err)
	assert.True(t, total.GT(sdkmath.NewInt(1010_0000000)), "total assets %s", total)
}

func TestRunCycleWithoutRewardsSucceeds(t *testing.T) {
	n, operator := deployWithDeposit(t)
	defer n.Close()

	h, err := New(Config{Vault: n.Vault, Ledger: n.Ledger, Signer: operator})
	require.NoError(t, err)

	record, err := h.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, record.Success)
	assert.True(t, record.AssetsReceived.IsZero())
	assert.Equal(t, record.SharePriceBefore, record.SharePriceAfter)
}

func TestRunCycleRecordsFailure(t *testing.T) {
	n, operator := deployWithDeposit(t)
	defer n.Close()

	recorder := newMemoryRecorder()
	observer := &memoryObserver{}
	h, err := New(Config{Vault: n.Vault, Ledger: n.Ledger, Signer: failingSigner{operator}, Recorder: recorder, Observer: observer})
	require.NoError(t, err)

	record, err := h.RunCycle(context.Background())
	require.Error(t, err)
	assert.False(t, record.Success)
	assert.Contains(t, record.Message, "key unavailable")
	require.Len(t, recorder.records, 1)
	require.Len(t, observer.cycles, 1)
	assert.Empty(t, h.samples)
}

func TestAnyKeyMayCompound(t *testing.T) {
	n, _ := deployWithDeposit(t)
	defer n.Close()

	keeper, err := auth.GenerateKeySigner()
	require.NoError(t, err)
	h, err := New(Config{Vault: n.Vault, Ledger: n.Ledger, Signer: keeper, BeforeCycle: n.Accrue})
	require.NoError(t, err)
	record, err := h.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, record.AssetsReceived.IsPositive())
}

func TestSampleWindowIsBounded(t *testing.T) {
	h := &Harvester{sampleWindow: 3}
	for i := 0; i < 5; i++ {
		h.addSample(analyzer.Sample{Price: float64(i)})
	}
	require.Len(t, h.samples, 3)
	assert.Equal(t, 4.0, h.samples[2].Price)
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	n, operator := deployWithDeposit(t)
	defer n.Close()

	recorder := newMemoryRecorder()
	h, err := New(Config{Vault: n.Vault, Ledger: n.Ledger, Signer: operator, Recorder: recorder, BeforeCycle: n.Accrue})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.RunLoop(ctx, 5*time.Millisecond)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-recorder.added:
		case <-time.After(5 * time.Second):
			t.Fatal("harvest cycle did not run")
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunLoop did not stop")
	}
	assert.GreaterOrEqual(t, h.cycleCount, 2)
}
