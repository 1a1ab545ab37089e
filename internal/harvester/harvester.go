// Package harvester runs the keeper that periodically compounds the vault's
// reward emissions with an operator key.
package harvester

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/yieldvault/internal/analyzer"
	"github.com/elys-network/yieldvault/internal/auth"
	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/utils"
)

const (
	// Ledgers a compound capability stays valid for after signing.
	CapabilityTTL = 100
	// Share price samples kept for the volatility estimate.
	DefaultSampleWindow = 288
)

// Vault is the part of the vault the harvester drives.
type Vault interface {
	Invocation(function string, args ...string) auth.Invocation
	Compound(ctx context.Context, operator types.Address) (sdkmath.Int, error)
	Config(ctx context.Context) (types.VaultConfig, error)
	TotalAssets(ctx context.Context) (sdkmath.Int, error)
	TotalSupply(ctx context.Context) (sdkmath.Int, error)
}

// Ledger reports the last closed ledger sequence.
type Ledger interface {
	Sequence() (uint32, error)
}

// Recorder persists harvest records and numbers them.
type Recorder interface {
	RecordHarvest(ctx context.Context, record types.HarvestRecord) (int, error)
}

// Observer receives every finished cycle together with the daily-compounded growth.
type Observer interface {
	ObserveCycle(record types.HarvestRecord, apy float64)
}

// Harvester is the compounding keeper.
type Harvester struct {
	logger   zerolog.Logger
	vault    Vault
	ledger   Ledger
	signer   auth.Signer
	recorder Recorder
	observer Observer
	// beforeCycle runs ahead of every compound (devnet yield accrual).
	beforeCycle func(ctx context.Context) error

	sampleWindow int
	samples      []analyzer.Sample
	interval     time.Duration
	cycleCount   int
	now          func() time.Time
}

// Config holds the dependencies of a Harvester. Recorder, Observer and
// BeforeCycle are optional.
type Config struct {
	Vault        Vault
	Ledger       Ledger
	Signer       auth.Signer
	Recorder     Recorder
	Observer     Observer
	BeforeCycle  func(ctx context.Context) error
	SampleWindow int
}

// New validates cfg and builds the harvester.
func New(cfg Config) (*Harvester, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("harvester configuration validation failed: %w", err)
	}
	window := cfg.SampleWindow
	if window <= 0 {
		window = DefaultSampleWindow
	}
	h := &Harvester{
		logger:       logger.GetForComponent("harvester"),
		vault:        cfg.Vault,
		ledger:       cfg.Ledger,
		signer:       cfg.Signer,
		recorder:     cfg.Recorder,
		observer:     cfg.Observer,
		beforeCycle:  cfg.BeforeCycle,
		sampleWindow: window,
		now:          time.Now,
	}
	h.logger.Info().Str("operator", cfg.Signer.Address().String()).Msg("Harvester created")
	return h, nil
}

func validateConfig(cfg Config) error {
	if cfg.Vault == nil {
		return fmt.Errorf("vault cannot be nil")
	}
	if cfg.Ledger == nil {
		return fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Signer == nil {
		return fmt.Errorf("signer cannot be nil")
	}
	return nil
}

// RunLoop runs a cycle immediately and then on every tick until ctx is done.
func (h *Harvester) RunLoop(ctx context.Context, interval time.Duration) {
	h.logger.Info().Dur("interval", interval).Msg("Starting harvester loop")
	h.interval = interval

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.runCounted(ctx)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("Harvester loop stopped due to context cancellation")
			return
		case <-ticker.C:
			h.runCounted(ctx)
		}
	}
}

func (h *Harvester) runCounted(ctx context.Context) {
	h.cycleCount++
	h.logger.Info().Int("cycle", h.cycleCount).Msg("Initiating harvest cycle")
	if _, err := h.RunCycle(ctx); err != nil {
		h.logger.Error().Err(err).Int("cycle", h.cycleCount).Msg("Harvest cycle failed")
		return
	}
	h.logger.Info().Int("cycle", h.cycleCount).Msg("Harvest cycle completed")
}

// RunCycle accrues (when configured), signs a compound capability and invokes
// Compound. The returned record is also handed to the recorder and observer.
func (h *Harvester) RunCycle(ctx context.Context) (types.HarvestRecord, error) {
	record := types.HarvestRecord{
		CycleID:        uuid.New().String(),
		StartedAt:      h.now().UTC(),
		AssetsReceived: sdkmath.ZeroInt(),
	}
	cycleLogger := h.logger.With().Str("cycle_id", record.CycleID).Logger()
	cycleLogger.Info().Msg("--- Starting Harvest Cycle ---")

	err := h.harvest(ctx, &record, cycleLogger)
	record.FinishedAt = h.now().UTC()
	record.Success = err == nil
	if err != nil {
		record.Message = err.Error()
	}

	h.finish(ctx, &record, cycleLogger)
	cycleLogger.Info().
		Str("cycleDuration", record.FinishedAt.Sub(record.StartedAt).String()).
		Bool("success", record.Success).
		Msg("--- Harvest Cycle Finished ---")
	return record, err
}

func (h *Harvester) harvest(ctx context.Context, record *types.HarvestRecord, cycleLogger zerolog.Logger) error {
	if h.beforeCycle != nil {
		cycleLogger.Debug().Msg("Step 1: Running pre-cycle hook...")
		if err := h.beforeCycle(ctx); err != nil {
			// compounding proceeds without the accrual
			cycleLogger.Warn().Err(err).Msg("Pre-cycle hook failed")
		}
	}

	before, err := h.sharePrice(ctx)
	if err != nil {
		return fmt.Errorf("read share price: %w", err)
	}
	record.SharePriceBefore = before

	cycleLogger.Debug().Msg("Step 2: Signing compound capability...")
	operator := h.signer.Address()
	seq, err := h.ledger.Sequence()
	if err != nil {
		return fmt.Errorf("read ledger sequence: %w", err)
	}
	nonce, err := auth.RandomNonce()
	if err != nil {
		return err
	}
	capability, err := h.signer.Sign(h.vault.Invocation("compound", operator.String()), nonce, seq+CapabilityTTL)
	if err != nil {
		return fmt.Errorf("sign compound capability: %w", err)
	}

	cycleLogger.Debug().Msg("Step 3: Compounding...")
	compounded, err := h.vault.Compound(auth.WithCapabilities(ctx, capability), operator)
	if err != nil {
		return fmt.Errorf("compound: %w", err)
	}
	record.AssetsReceived = compounded
	if record.LedgerSequence, err = h.ledger.Sequence(); err != nil {
		return fmt.Errorf("read ledger sequence: %w", err)
	}

	after, err := h.sharePrice(ctx)
	if err != nil {
		return fmt.Errorf("read share price: %w", err)
	}
	record.SharePriceAfter = after

	cycleLogger.Info().
		Str("compounded", utils.FormatAmount(compounded, utils.DefaultDecimals)).
		Float64("sharePriceBefore", before).
		Float64("sharePriceAfter", after).
		Uint32("ledger", record.LedgerSequence).
		Msg("Compound committed")
	return nil
}

// finish derives growth from the previous successful cycle, then records and
// exports the cycle.
func (h *Harvester) finish(ctx context.Context, record *types.HarvestRecord, cycleLogger zerolog.Logger) {
	var apy float64
	if record.Success {
		if n := len(h.samples); n > 0 {
			prev := h.samples[n-1]
			growth, err := analyzer.AnnualizedGrowth(prev.Price, record.SharePriceAfter, record.FinishedAt.Sub(prev.Timestamp))
			if err != nil {
				cycleLogger.Debug().Err(err).Msg("Skipping growth estimate")
			} else {
				record.GrowthAPR = growth
				apy = analyzer.CompoundDaily(growth)
			}
		}
		h.addSample(analyzer.Sample{Timestamp: record.FinishedAt, Price: record.SharePriceAfter})
		if h.interval > 0 && len(h.samples) > 2 {
			window := append([]analyzer.Sample(nil), h.samples...)
			if vol, err := analyzer.CalculateVolatility(window, analyzer.PeriodsPerYear(h.interval)); err == nil {
				cycleLogger.Info().Float64("annualizedVolatility", vol).Msg("Share price volatility")
			}
		}
		cycleLogger.Info().Float64("growthAPR", record.GrowthAPR).Float64("growthAPY", apy).Msg("Realized growth")
	}

	if h.recorder != nil {
		number, err := h.recorder.RecordHarvest(ctx, *record)
		if err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to record harvest")
		} else {
			record.HarvestNumber = number
		}
	}
	if h.observer != nil {
		h.observer.ObserveCycle(*record, apy)
	}
}

func (h *Harvester) addSample(s analyzer.Sample) {
	h.samples = append(h.samples, s)
	if len(h.samples) > h.sampleWindow {
		h.samples = h.samples[len(h.samples)-h.sampleWindow:]
	}
}

func (h *Harvester) sharePrice(ctx context.Context) (float64, error) {
	cfg, err := h.vault.Config(ctx)
	if err != nil {
		return 0, err
	}
	assets, err := h.vault.TotalAssets(ctx)
	if err != nil {
		return 0, err
	}
	supply, err := h.vault.TotalSupply(ctx)
	if err != nil {
		return 0, err
	}
	return analyzer.SharePrice(assets, supply, cfg.DecimalsOffset)
}
