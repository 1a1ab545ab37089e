package types

import (
	sdkmath "cosmossdk.io/math"
)

// RateScalar is the fixed-point base of reserve b-rates and d-rates (12 decimals).
var RateScalar = sdkmath.NewInt(1_000_000_000_000)

// RequestType selects the action a lending pool performs for a Request.
type RequestType uint32

const (
	// RequestSupplyCollateral deposits the asset as collateral. Collateral still earns interest.
	RequestSupplyCollateral RequestType = 2
	// RequestWithdrawCollateral releases collateral to the submit destination.
	RequestWithdrawCollateral RequestType = 3
)

func (t RequestType) String() string {
	switch t {
	case RequestSupplyCollateral:
		return "supply_collateral"
	case RequestWithdrawCollateral:
		return "withdraw_collateral"
	default:
		return "unknown"
	}
}

// Request is one instruction inside a lending pool submit.
type Request struct {
	Type   RequestType `json:"request_type"`
	Asset  Address     `json:"address"`
	Amount sdkmath.Int `json:"amount"`
}

// Positions holds a principal's balances in a lending pool, keyed by reserve index.
// Collateral and supply are denominated in b-tokens, liabilities in d-tokens.
type Positions struct {
	Collateral  map[uint32]sdkmath.Int `json:"collateral"`
	Liabilities map[uint32]sdkmath.Int `json:"liabilities"`
	Supply      map[uint32]sdkmath.Int `json:"supply"`
}

// NewPositions returns empty, non-nil position maps.
func NewPositions() Positions {
	return Positions{
		Collateral:  map[uint32]sdkmath.Int{},
		Liabilities: map[uint32]sdkmath.Int{},
		Supply:      map[uint32]sdkmath.Int{},
	}
}

// CollateralAt returns the collateral held at a reserve index, zero when absent.
func (p Positions) CollateralAt(index uint32) sdkmath.Int {
	if v, ok := p.Collateral[index]; ok && !v.IsNil() {
		return v
	}
	return sdkmath.ZeroInt()
}

// ReserveConfig is the static configuration of one lending reserve.
type ReserveConfig struct {
	Index     uint32      `json:"index"`
	Decimals  uint32      `json:"decimals"`
	SupplyCap sdkmath.Int `json:"supply_cap"`
	Enabled   bool        `json:"enabled"`
}

// ReserveData is the accruing state of a reserve. BRate converts b-tokens into
// underlying units and is scaled by the pool's rate scalar.
type ReserveData struct {
	BRate   sdkmath.Int `json:"b_rate"`
	DRate   sdkmath.Int `json:"d_rate"`
	BSupply sdkmath.Int `json:"b_supply"`
	DSupply sdkmath.Int `json:"d_supply"`
}

// Reserve describes one asset slot of a lending pool.
type Reserve struct {
	Asset  Address       `json:"asset"`
	Config ReserveConfig `json:"config"`
	Data   ReserveData   `json:"data"`
}
