package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// EventKind names the vault operation that produced an event.
type EventKind string

const (
	EventInitialized EventKind = "initialized"
	EventDeposit     EventKind = "deposit"
	EventMint        EventKind = "mint"
	EventWithdraw    EventKind = "withdraw"
	EventRedeem      EventKind = "redeem"
	EventCompound    EventKind = "compound"
)

// VaultEvent records one committed vault operation. Unused amount fields are zero.
type VaultEvent struct {
	ID             string      `json:"id"`
	Kind           EventKind   `json:"kind"`
	Vault          Address     `json:"vault"`
	Operator       Address     `json:"operator,omitempty"`
	Receiver       Address     `json:"receiver,omitempty"`
	Owner          Address     `json:"owner,omitempty"`
	Assets         sdkmath.Int `json:"assets"`
	Shares         sdkmath.Int `json:"shares"`
	RewardClaimed  sdkmath.Int `json:"reward_claimed"`
	AssetsReceived sdkmath.Int `json:"assets_received"`
	LedgerSequence uint32      `json:"ledger_sequence"`
	Timestamp      time.Time   `json:"timestamp"`
}
