package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// HarvestRecord is the outcome of one harvester cycle.
type HarvestRecord struct {
	CycleID          string      `json:"cycle_id"`
	HarvestNumber    int         `json:"harvest_number"`
	StartedAt        time.Time   `json:"started_at"`
	FinishedAt       time.Time   `json:"finished_at"`
	LedgerSequence   uint32      `json:"ledger_sequence"`
	AssetsReceived   sdkmath.Int `json:"assets_received"`
	SharePriceBefore float64     `json:"share_price_before"`
	SharePriceAfter  float64     `json:"share_price_after"`
	// GrowthAPR annualizes the share price change since the previous cycle.
	GrowthAPR float64 `json:"growth_apr"`
	Success   bool    `json:"success"`
	Message   string  `json:"message,omitempty"`
}

// HarvestSummary aggregates every recorded harvest.
type HarvestSummary struct {
	TotalHarvests      int         `json:"total_harvests"`
	SuccessfulHarvests int         `json:"successful_harvests"`
	TotalCompounded    sdkmath.Int `json:"total_compounded"`
	LastSharePrice     float64     `json:"last_share_price"`
	LastHarvestAt      *time.Time  `json:"last_harvest_at,omitempty"`
}
