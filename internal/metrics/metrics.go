// Package metrics exports prometheus collectors for committed vault events and
// the harvester.
package metrics

import (
	"context"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/utils"
)

const namespace = "yieldvault"

type vaultMetrics struct {
	events         *prometheus.CounterVec
	assets         *prometheus.CounterVec
	shares         *prometheus.CounterVec
	rewardClaimed  prometheus.Counter
	ledgerSequence prometheus.Gauge
}

type harvestMetrics struct {
	cycles     *prometheus.CounterVec
	duration   prometheus.Histogram
	compounded prometheus.Counter
	sharePrice prometheus.Gauge
	growthAPR  prometheus.Gauge
	apy        prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *vaultMetrics

	harvestOnce     sync.Once
	harvestRegistry *harvestMetrics
)

// Vault returns the collectors fed by committed vault events. It satisfies the
// vault's event sink interface.
func Vault() *vaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &vaultMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "vault",
				Name:      "events_total",
				Help:      "Committed vault operations segmented by kind.",
			}, []string{"kind"}),
			assets: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "vault",
				Name:      "assets_total",
				Help:      "Underlying units moved by committed operations, segmented by kind.",
			}, []string{"kind"}),
			shares: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "vault",
				Name:      "shares_total",
				Help:      "Share units minted or burned by committed operations, segmented by kind.",
			}, []string{"kind"}),
			rewardClaimed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "vault",
				Name:      "reward_claimed_total",
				Help:      "Reward token units claimed by compound.",
			}),
			ledgerSequence: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "vault",
				Name:      "last_event_ledger",
				Help:      "Ledger sequence of the latest committed vault event.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.events,
			vaultRegistry.assets,
			vaultRegistry.shares,
			vaultRegistry.rewardClaimed,
			vaultRegistry.ledgerSequence,
		)
	})
	return vaultRegistry
}

// Publish records a committed vault event.
func (m *vaultMetrics) Publish(_ context.Context, event types.VaultEvent) error {
	if m == nil {
		return nil
	}
	kind := string(event.Kind)
	if kind == "" {
		kind = "unknown"
	}
	m.events.WithLabelValues(kind).Inc()

	assets := event.Assets
	if event.Kind == types.EventCompound {
		assets = event.AssetsReceived
	}
	m.assets.WithLabelValues(kind).Add(units(assets))
	m.shares.WithLabelValues(kind).Add(units(event.Shares))
	m.rewardClaimed.Add(units(event.RewardClaimed))
	m.ledgerSequence.Set(float64(event.LedgerSequence))
	return nil
}

// Harvest returns the collectors fed by the harvester.
func Harvest() *harvestMetrics {
	harvestOnce.Do(func() {
		harvestRegistry = &harvestMetrics{
			cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "harvest",
				Name:      "cycles_total",
				Help:      "Harvester cycles segmented by result.",
			}, []string{"result"}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "harvest",
				Name:      "cycle_duration_seconds",
				Help:      "Wall time of one harvester cycle.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			}),
			compounded: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "harvest",
				Name:      "compounded_total",
				Help:      "Underlying units reinvested by the harvester.",
			}),
			sharePrice: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "harvest",
				Name:      "share_price",
				Help:      "Underlying value of one whole share after the latest cycle.",
			}),
			growthAPR: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "harvest",
				Name:      "growth_apr",
				Help:      "Share price growth since the previous cycle, annualized as a simple rate.",
			}),
			apy: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "harvest",
				Name:      "growth_apy",
				Help:      "growth_apr compounded daily.",
			}),
		}
		prometheus.MustRegister(
			harvestRegistry.cycles,
			harvestRegistry.duration,
			harvestRegistry.compounded,
			harvestRegistry.sharePrice,
			harvestRegistry.growthAPR,
			harvestRegistry.apy,
		)
	})
	return harvestRegistry
}

// ObserveCycle records the outcome of one harvester cycle.
func (m *harvestMetrics) ObserveCycle(record types.HarvestRecord, apy float64) {
	if m == nil {
		return
	}
	result := "success"
	if !record.Success {
		result = "failure"
	}
	m.cycles.WithLabelValues(result).Inc()
	if !record.StartedAt.IsZero() && !record.FinishedAt.IsZero() {
		m.duration.Observe(record.FinishedAt.Sub(record.StartedAt).Seconds())
	}
	if !record.Success {
		return
	}
	m.compounded.Add(units(record.AssetsReceived))
	m.sharePrice.Set(record.SharePriceAfter)
	m.growthAPR.Set(record.GrowthAPR)
	m.apy.Set(apy)
}

func units(x sdkmath.Int) float64 {
	if x.IsNil() || !x.IsPositive() {
		return 0
	}
	f, err := utils.AmountToFloat64(x, 0)
	if err != nil {
		return 0
	}
	return f
}
