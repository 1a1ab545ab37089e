// Package vault is the yield vault: depositors receive shares for the underlying
// asset, the vault supplies everything it holds to a lending pool, and Compound
// reinvests the pool's reward emissions.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/yieldvault/internal/auth"
	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/sharemath"
	"github.com/elys-network/yieldvault/internal/types"
)

const (
	DefaultShareName   = "YIELD VAULT"
	DefaultShareSymbol = "YV"

	// Ledgers an unused allowance to the lending pool stays valid for.
	SupplyAllowanceLedgers = 1000
	// Ledgers an unused allowance to the exchange stays valid for.
	SwapAllowanceLedgers = 100000
)

// Config holds the dependencies of a Vault.
type Config struct {
	Address    types.Address
	Host       Host
	Storage    Storage
	Shares     ShareLedger
	Protocols  Protocols
	Authorizer auth.Authorizer
	Sinks      []EventSink
	// ShareName and ShareSymbol override the defaults written at initialization.
	ShareName   string
	ShareSymbol string
}

// Vault is one vault contract instance.
type Vault struct {
	logger     zerolog.Logger
	address    types.Address
	host       Host
	storage    Storage
	shares     ShareLedger
	protocols  Protocols
	authorizer auth.Authorizer
	sinks      []EventSink
	name       string
	symbol     string
	now        func() time.Time
}

// NewVault validates cfg and builds the vault.
func NewVault(cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("vault configuration validation failed: %w", err)
	}
	v := &Vault{
		logger:     logger.GetForComponent("vault").With().Str("vault", cfg.Address.String()).Logger(),
		address:    cfg.Address,
		host:       cfg.Host,
		storage:    cfg.Storage,
		shares:     cfg.Shares,
		protocols:  cfg.Protocols,
		authorizer: cfg.Authorizer,
		sinks:      cfg.Sinks,
		name:       cfg.ShareName,
		symbol:     cfg.ShareSymbol,
		now:        time.Now,
	}
	if v.name == "" {
		v.name = DefaultShareName
	}
	if v.symbol == "" {
		v.symbol = DefaultShareSymbol
	}
	return v, nil
}

func validateConfig(cfg Config) error {
	if err := cfg.Address.Validate(); err != nil {
		return fmt.Errorf("vault address: %w", err)
	}
	if cfg.Host == nil {
		return fmt.Errorf("host cannot be nil")
	}
	if cfg.Storage == nil {
		return fmt.Errorf("storage cannot be nil")
	}
	if cfg.Shares == nil {
		return fmt.Errorf("share ledger cannot be nil")
	}
	if cfg.Protocols == nil {
		return fmt.Errorf("protocols cannot be nil")
	}
	if cfg.Authorizer == nil {
		return fmt.Errorf("authorizer cannot be nil")
	}
	return nil
}

// Address is the vault's own principal; it holds custody and the pool position.
func (v *Vault) Address() types.Address { return v.address }

// Invocation describes a call on this vault for capability signing. Arguments
// are the operation's parameters in declaration order.
func (v *Vault) Invocation(function string, args ...string) auth.Invocation {
	return auth.Invocation{Contract: v.address, Function: function, Args: args}
}

// Initialize writes the vault config. It succeeds exactly once.
func (v *Vault) Initialize(ctx context.Context, cfg types.VaultConfig) error {
	if cfg.DecimalsOffset > sharemath.MaxDecimalsOffset {
		return fmt.Errorf("%w: decimals offset %d", ErrMathOverflow, cfg.DecimalsOffset)
	}
	for name, addr := range map[string]types.Address{
		"asset":        cfg.Asset,
		"lending pool": cfg.LendingPool,
		"reward token": cfg.RewardToken,
		"exchange":     cfg.Exchange,
	} {
		if err := addr.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return v.host.Update(ctx, func(ctx context.Context) error {
		if _, err := v.storage.LoadConfig(ctx); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, ErrNotInitialized) {
			return err
		}

		asset, err := v.protocols.Token(cfg.Asset)
		if err != nil {
			return err
		}
		assetDecimals, err := asset.Decimals(ctx)
		if err != nil {
			return err
		}

		cfg.Initialized = true
		if err := v.storage.SaveConfig(ctx, cfg); err != nil {
			return err
		}
		md := types.ShareMetadata{Name: v.name, Symbol: v.symbol, Decimals: assetDecimals + cfg.DecimalsOffset}
		if err := v.storage.SaveMetadata(ctx, md); err != nil {
			return err
		}

		v.publish(ctx, types.VaultEvent{Kind: types.EventInitialized})
		v.logger.Info().
			Str("asset", cfg.Asset.String()).
			Str("lendingPool", cfg.LendingPool.String()).
			Uint32("assetReserveIndex", cfg.AssetReserveIndex).
			Uint32("decimalsOffset", cfg.DecimalsOffset).
			Msg("Vault initialized")
		return nil
	})
}

// IsInitialized reports whether Initialize has committed.
func (v *Vault) IsInitialized(ctx context.Context) (initialized bool, err error) {
	err = v.host.View(ctx, func(ctx context.Context) error {
		_, err := v.storage.LoadConfig(ctx)
		if errors.Is(err, ErrNotInitialized) {
			return nil
		}
		initialized = err == nil
		return err
	})
	return initialized, err
}

// Config returns the stored vault config.
func (v *Vault) Config(ctx context.Context) (cfg types.VaultConfig, err error) {
	err = v.host.View(ctx, func(ctx context.Context) error {
		cfg, err = v.storage.LoadConfig(ctx)
		return err
	})
	return cfg, err
}

// Asset returns the underlying asset address.
func (v *Vault) Asset(ctx context.Context) (types.Address, error) {
	cfg, err := v.Config(ctx)
	if err != nil {
		return "", err
	}
	return cfg.Asset, nil
}

func (v *Vault) metadata(ctx context.Context) (md types.ShareMetadata, err error) {
	err = v.host.View(ctx, func(ctx context.Context) error {
		md, err = v.storage.LoadMetadata(ctx)
		return err
	})
	return md, err
}

// Name is the share token name.
func (v *Vault) Name(ctx context.Context) (string, error) {
	md, err := v.metadata(ctx)
	return md.Name, err
}

// Symbol is the share token symbol.
func (v *Vault) Symbol(ctx context.Context) (string, error) {
	md, err := v.metadata(ctx)
	return md.Symbol, err
}

// Decimals is the underlying asset's decimals plus the decimals offset.
func (v *Vault) Decimals(ctx context.Context) (uint32, error) {
	md, err := v.metadata(ctx)
	return md.Decimals, err
}

// Balance returns holder's share balance.
func (v *Vault) Balance(ctx context.Context, holder types.Address) (balance sdkmath.Int, err error) {
	err = v.host.View(ctx, func(ctx context.Context) error {
		balance, err = v.shares.Balance(ctx, holder)
		return err
	})
	return balance, err
}

// TotalSupply returns the outstanding shares.
func (v *Vault) TotalSupply(ctx context.Context) (supply sdkmath.Int, err error) {
	err = v.host.View(ctx, func(ctx context.Context) error {
		supply, err = v.shares.TotalSupply(ctx)
		return err
	})
	return supply, err
}

// publish hands event to every sink once the current transaction commits.
func (v *Vault) publish(ctx context.Context, event types.VaultEvent) {
	txn, err := ledger.FromContext(ctx)
	if err != nil {
		v.logger.Error().Err(err).Str("kind", string(event.Kind)).Msg("Event dropped: no ledger transaction")
		return
	}
	event.ID = uuid.New().String()
	event.Vault = v.address
	event.LedgerSequence = txn.Sequence()
	event.Timestamp = v.now().UTC()
	event.Assets = types.AmountOrZero(event.Assets)
	event.Shares = types.AmountOrZero(event.Shares)
	event.RewardClaimed = types.AmountOrZero(event.RewardClaimed)
	event.AssetsReceived = types.AmountOrZero(event.AssetsReceived)

	txn.OnCommit(func() {
		for _, sink := range v.sinks {
			// the transaction is closed; sinks get a fresh context
			if err := sink.Publish(context.Background(), event); err != nil {
				v.logger.Warn().Err(err).Str("event", event.ID).Str("kind", string(event.Kind)).Msg("Event sink failed")
			}
		}
	})
}
