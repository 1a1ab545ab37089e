// Package devnet assembles a self-contained host: the ledger, the underlying
// and reward tokens, a lending pool, an exchange and an initialized vault.
package devnet

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/auth"
	"github.com/elys-network/yieldvault/internal/config"
	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/protocol/exchange"
	"github.com/elys-network/yieldvault/internal/protocol/lending"
	"github.com/elys-network/yieldvault/internal/protocol/token"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/vault"
)

var devnetLogger = logger.GetForComponent("devnet")

// Contract addresses of a devnet deployment.
var (
	VaultAddress    = types.ContractAddress("vault")
	SharesAddress   = types.ContractAddress("vault-shares")
	AssetAddress    = types.ContractAddress("token/asset")
	RewardAddress   = types.ContractAddress("token/reward")
	PoolAddress     = types.ContractAddress("lending-pool")
	ExchangeAddress = types.ContractAddress("exchange")
)

// Options selects how the devnet is assembled.
type Options struct {
	Params     config.DevnetParameters
	Authorizer auth.Authorizer
	Sinks      []vault.EventSink
	// Operator receives the faucet amount of the underlying asset.
	Operator types.Address
}

// Network is a bootstrapped devnet.
type Network struct {
	Ledger    *ledger.DB
	Asset     *token.Token
	Reward    *token.Token
	Shares    *token.Token
	Pool      *lending.Pool
	Exchange  *exchange.Exchange
	Directory *vault.Directory
	Vault     *vault.Vault
	Params    config.DevnetParameters
}

// Bootstrap deploys every contract on db. Bootstrapping a ledger that already
// holds a deployment only rebinds the contracts.
func Bootstrap(ctx context.Context, db *ledger.DB, opts Options) (*Network, error) {
	n, err := Attach(db, opts)
	if err != nil {
		return nil, err
	}
	initialized, err := n.Vault.IsInitialized(ctx)
	if err != nil {
		return nil, err
	}
	if initialized {
		devnetLogger.Info().Msg("Existing devnet deployment found on ledger")
		return n, nil
	}
	if err := n.deploy(ctx, opts.Operator); err != nil {
		return nil, fmt.Errorf("deploy devnet: %w", err)
	}
	return n, nil
}

// Attach binds the devnet contracts to db without writing anything.
func Attach(db *ledger.DB, opts Options) (*Network, error) {
	p := opts.Params
	if opts.Authorizer == nil {
		opts.Authorizer = auth.NewSignatureAuthorizer()
	}

	n := &Network{Ledger: db, Params: p, Directory: vault.NewDirectory()}
	n.Asset = token.New(db, AssetAddress, token.Metadata{Name: p.AssetName, Symbol: p.AssetSymbol, Decimals: p.AssetDecimals})
	n.Reward = token.New(db, RewardAddress, token.Metadata{Name: p.RewardName, Symbol: p.RewardSymbol, Decimals: p.RewardDecimals})
	n.Shares = token.New(db, SharesAddress, token.Metadata{Name: vault.DefaultShareName, Symbol: vault.DefaultShareSymbol, Decimals: p.AssetDecimals + p.DecimalsOffset})

	resolve := func(address types.Address) (*token.Token, error) {
		switch address {
		case AssetAddress:
			return n.Asset, nil
		case RewardAddress:
			return n.Reward, nil
		}
		return nil, fmt.Errorf("%w: token %s", vault.ErrUnknownContract, address)
	}
	n.Pool = lending.New(db, PoolAddress, RewardAddress, func(a types.Address) (lending.Token, error) { return resolve(a) })
	n.Exchange = exchange.New(db, ExchangeAddress, func(a types.Address) (exchange.Token, error) { return resolve(a) })

	n.Directory.RegisterToken(AssetAddress, n.Asset)
	n.Directory.RegisterToken(RewardAddress, n.Reward)
	n.Directory.RegisterLendingPool(PoolAddress, n.Pool)
	n.Directory.RegisterExchange(ExchangeAddress, n.Exchange)

	v, err := vault.NewVault(vault.Config{
		Address:    VaultAddress,
		Host:       db,
		Storage:    vault.NewLedgerStorage(VaultAddress),
		Shares:     n.Shares,
		Protocols:  n.Directory,
		Authorizer: opts.Authorizer,
		Sinks:      opts.Sinks,
	})
	if err != nil {
		return nil, err
	}
	n.Vault = v
	return n, nil
}

// deploy lists the reserve, prices the exchange, seeds liquidity and
// initializes the vault in one ledger transaction.
func (n *Network) deploy(ctx context.Context, operator types.Address) error {
	p := n.Params
	return n.Ledger.Update(ctx, func(ctx context.Context) error {
		if err := n.Pool.AddReserve(ctx, AssetAddress, types.ReserveConfig{
			Index:     p.AssetReserveIndex,
			Decimals:  p.AssetDecimals,
			SupplyCap: sdkmath.ZeroInt(),
			Enabled:   true,
		}); err != nil {
			return err
		}
		price := exchange.Price{Numerator: sdkmath.NewInt(p.RewardPriceNumerator), Denominator: sdkmath.NewInt(p.RewardPriceDenominator)}
		if err := n.Exchange.SetPrice(ctx, RewardAddress, AssetAddress, price); err != nil {
			return err
		}
		if err := n.Asset.Mint(ctx, ExchangeAddress, sdkmath.NewInt(p.ExchangeLiquidity)); err != nil {
			return err
		}
		if err := n.Reward.Mint(ctx, PoolAddress, sdkmath.NewInt(p.PoolRewardBudget)); err != nil {
			return err
		}
		if operator != "" && p.OperatorFaucet > 0 {
			if err := n.Asset.Mint(ctx, operator, sdkmath.NewInt(p.OperatorFaucet)); err != nil {
				return err
			}
		}
		if err := n.Vault.Initialize(ctx, types.VaultConfig{
			Asset:              AssetAddress,
			DecimalsOffset:     p.DecimalsOffset,
			LendingPool:        PoolAddress,
			AssetReserveIndex:  p.AssetReserveIndex,
			RewardToken:        RewardAddress,
			RewardReserveIndex: p.RewardReserveIndex,
			Exchange:           ExchangeAddress,
		}); err != nil {
			return err
		}
		devnetLogger.Info().
			Str("vault", VaultAddress.String()).
			Str("asset", AssetAddress.String()).
			Str("pool", PoolAddress.String()).
			Msg("Devnet deployed")
		return nil
	})
}

// Accrue simulates one period of protocol yield: the asset reserve's b-rate
// grows and the vault accrues reward emissions. The pool receives the asset
// backing the b-rate growth so withdrawals stay solvent.
func (n *Network) Accrue(ctx context.Context) error {
	p := n.Params
	return n.Ledger.Update(ctx, func(ctx context.Context) error {
		if p.BRateGrowthPerCyclePPB > 0 {
			reserve, err := n.Pool.GetReserve(ctx, AssetAddress)
			if err != nil {
				return err
			}
			growth := reserve.Data.BRate.MulRaw(p.BRateGrowthPerCyclePPB).QuoRaw(1_000_000_000)
			if growth.IsPositive() {
				backing := reserve.Data.BSupply.Mul(growth).Quo(types.RateScalar).AddRaw(1)
				if err := n.Pool.SetBRate(ctx, AssetAddress, reserve.Data.BRate.Add(growth)); err != nil {
					return err
				}
				if err := n.Asset.Mint(ctx, PoolAddress, backing); err != nil {
					return err
				}
			}
		}
		if p.EmissionsPerCycle > 0 {
			if err := n.Pool.AccrueEmissions(ctx, VaultAddress, p.RewardReserveIndex, sdkmath.NewInt(p.EmissionsPerCycle)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Faucet mints amount of the underlying asset to to.
func (n *Network) Faucet(ctx context.Context, to types.Address, amount sdkmath.Int) error {
	return n.Asset.Mint(ctx, to, amount)
}

// Close closes the ledger.
func (n *Network) Close() error {
	return n.Ledger.Close()
}
