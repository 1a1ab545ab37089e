package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/types"
)

// Host runs vault operations as ledger transactions. Update commits or discards
// everything fn does, including the collaborator calls it makes.
type Host interface {
	Update(ctx context.Context, fn func(ctx context.Context) error) error
	View(ctx context.Context, fn func(ctx context.Context) error) error
}

// Token is the vault's view of the underlying asset and the reward token.
type Token interface {
	Decimals(ctx context.Context) (uint32, error)
	Balance(ctx context.Context, holder types.Address) (sdkmath.Int, error)
	Transfer(ctx context.Context, from, to types.Address, amount sdkmath.Int) error
	TransferFrom(ctx context.Context, spender, from, to types.Address, amount sdkmath.Int) error
	Approve(ctx context.Context, owner, spender types.Address, amount sdkmath.Int, expirationLedger uint32) error
}

// ShareLedger keeps share balances. The vault only mints, burns and reads.
type ShareLedger interface {
	Balance(ctx context.Context, holder types.Address) (sdkmath.Int, error)
	TotalSupply(ctx context.Context) (sdkmath.Int, error)
	Mint(ctx context.Context, to types.Address, amount sdkmath.Int) error
	Burn(ctx context.Context, from types.Address, amount sdkmath.Int) error
}

// LendingPool is the external protocol holding the vault's collateral.
type LendingPool interface {
	Submit(ctx context.Context, from, spender, to types.Address, requests []types.Request) (types.Positions, error)
	SubmitWithAllowance(ctx context.Context, from, spender, to types.Address, requests []types.Request) (types.Positions, error)
	GetPositions(ctx context.Context, holder types.Address) (types.Positions, error)
	Claim(ctx context.Context, from types.Address, reserveTokenIDs []uint32, to types.Address) (sdkmath.Int, error)
	GetReserve(ctx context.Context, asset types.Address) (types.Reserve, error)
}

// Exchange swaps harvested rewards into the underlying asset.
type Exchange interface {
	SwapExactAmountIn(ctx context.Context, tokenIn types.Address, amountIn sdkmath.Int, tokenOut types.Address, minAmountOut, maxPrice sdkmath.Int, user types.Address) (amountOut, spotPrice sdkmath.Int, err error)
}

// Protocols resolves the collaborator contracts named in the vault config.
type Protocols interface {
	Token(address types.Address) (Token, error)
	LendingPool(address types.Address) (LendingPool, error)
	Exchange(address types.Address) (Exchange, error)
}

// Storage persists the vault's own state.
type Storage interface {
	// LoadConfig returns ErrNotInitialized until SaveConfig has run.
	LoadConfig(ctx context.Context) (types.VaultConfig, error)
	SaveConfig(ctx context.Context, cfg types.VaultConfig) error
	LoadMetadata(ctx context.Context) (types.ShareMetadata, error)
	SaveMetadata(ctx context.Context, md types.ShareMetadata) error
	Depositors(ctx context.Context) ([]types.Address, error)
	SaveDepositors(ctx context.Context, depositors []types.Address) error
}

// EventSink receives vault events after the operation that produced them commits.
type EventSink interface {
	Publish(ctx context.Context, event types.VaultEvent) error
}
