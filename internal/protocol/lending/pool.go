// Package lending is a reference lending pool hosted on the ledger. Suppliers
// hold collateral as b-tokens whose value in the underlying grows with the
// reserve's b-rate; reward emissions accrue per holder and reserve token id.
package lending

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/types"
)

var (
	ErrUnknownReserve         = errors.New("lending: unknown reserve")
	ErrReserveExists          = errors.New("lending: reserve already exists")
	ErrReserveDisabled        = errors.New("lending: reserve disabled")
	ErrSupplyCapExceeded      = errors.New("lending: supply cap exceeded")
	ErrInsufficientCollateral = errors.New("lending: insufficient collateral")
	ErrInvalidRequest         = errors.New("lending: invalid request")
	ErrInvalidRate            = errors.New("lending: invalid rate")
)

var poolLogger = logger.GetForComponent("lending")

// Token is the part of a token contract the pool moves funds with.
type Token interface {
	Transfer(ctx context.Context, from, to types.Address, amount sdkmath.Int) error
	TransferFrom(ctx context.Context, spender, from, to types.Address, amount sdkmath.Int) error
}

// TokenResolver returns the token contract deployed at an address.
type TokenResolver func(address types.Address) (Token, error)

// Pool is one lending pool contract instance.
type Pool struct {
	db          *ledger.DB
	address     types.Address
	rewardToken types.Address
	tokens      TokenResolver
}

// New binds a pool at address that pays emissions in rewardToken.
func New(db *ledger.DB, address, rewardToken types.Address, tokens TokenResolver) *Pool {
	return &Pool{db: db, address: address, rewardToken: rewardToken, tokens: tokens}
}

func (p *Pool) Address() types.Address { return p.address }

// AddReserve lists asset with both rates at the scalar.
func (p *Pool) AddReserve(ctx context.Context, asset types.Address, cfg types.ReserveConfig) error {
	return p.db.Update(ctx, func(ctx context.Context) error {
		var existing types.Reserve
		found, err := ledger.GetJSON(ctx, p.reserveKey(asset), &existing)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", ErrReserveExists, asset)
		}
		cfg.SupplyCap = types.AmountOrZero(cfg.SupplyCap)
		r := types.Reserve{
			Asset:  asset,
			Config: cfg,
			Data: types.ReserveData{
				BRate:   types.RateScalar,
				DRate:   types.RateScalar,
				BSupply: sdkmath.ZeroInt(),
				DSupply: sdkmath.ZeroInt(),
			},
		}
		poolLogger.Info().Str("asset", asset.String()).Uint32("index", cfg.Index).Msg("Reserve added")
		return ledger.PutJSON(ctx, p.reserveKey(asset), r)
	})
}

// GetReserve returns the reserve listed for asset.
func (p *Pool) GetReserve(ctx context.Context, asset types.Address) (r types.Reserve, err error) {
	err = p.db.View(ctx, func(ctx context.Context) error {
		r, err = p.loadReserve(ctx, asset)
		return err
	})
	return r, err
}

// SetBRate moves the reserve's b-rate. Raising it is how supplied collateral earns yield.
func (p *Pool) SetBRate(ctx context.Context, asset types.Address, bRate sdkmath.Int) error {
	if bRate.IsNil() || !bRate.IsPositive() || bRate.GT(types.MaxAmount) {
		return fmt.Errorf("%w: b-rate %v", ErrInvalidRate, bRate)
	}
	return p.db.Update(ctx, func(ctx context.Context) error {
		r, err := p.loadReserve(ctx, asset)
		if err != nil {
			return err
		}
		r.Data.BRate = bRate
		return ledger.PutJSON(ctx, p.reserveKey(asset), r)
	})
}

// GetPositions returns holder's positions; a holder that never supplied has empty maps.
func (p *Pool) GetPositions(ctx context.Context, holder types.Address) (pos types.Positions, err error) {
	err = p.db.View(ctx, func(ctx context.Context) error {
		pos, err = p.loadPositions(ctx, holder)
		return err
	})
	return pos, err
}

// Submit processes requests for from, pulling supplied funds from spender
// directly and sending withdrawn funds to to.
func (p *Pool) Submit(ctx context.Context, from, spender, to types.Address, requests []types.Request) (types.Positions, error) {
	return p.submit(ctx, from, spender, to, requests, false)
}

// SubmitWithAllowance is Submit, but supplied funds are pulled through the
// allowance spender granted the pool.
func (p *Pool) SubmitWithAllowance(ctx context.Context, from, spender, to types.Address, requests []types.Request) (types.Positions, error) {
	return p.submit(ctx, from, spender, to, requests, true)
}

func (p *Pool) submit(ctx context.Context, from, spender, to types.Address, requests []types.Request, useAllowance bool) (pos types.Positions, err error) {
	err = p.db.Update(ctx, func(ctx context.Context) error {
		pos, err = p.loadPositions(ctx, from)
		if err != nil {
			return err
		}
		for _, req := range requests {
			if req.Amount.IsNil() || req.Amount.IsNegative() || req.Amount.GT(types.MaxAmount) {
				return fmt.Errorf("%w: amount %v", ErrInvalidRequest, req.Amount)
			}
			switch req.Type {
			case types.RequestSupplyCollateral:
				err = p.supply(ctx, &pos, spender, req, useAllowance)
			case types.RequestWithdrawCollateral:
				err = p.withdraw(ctx, &pos, to, req)
			default:
				err = fmt.Errorf("%w: request type %d", ErrInvalidRequest, req.Type)
			}
			if err != nil {
				return err
			}
		}
		return ledger.PutJSON(ctx, p.positionsKey(from), pos)
	})
	return pos, err
}

func (p *Pool) supply(ctx context.Context, pos *types.Positions, spender types.Address, req types.Request, useAllowance bool) error {
	r, err := p.loadReserve(ctx, req.Asset)
	if err != nil {
		return err
	}
	if !r.Config.Enabled {
		return fmt.Errorf("%w: %s", ErrReserveDisabled, req.Asset)
	}
	tok, err := p.tokens(req.Asset)
	if err != nil {
		return err
	}
	if useAllowance {
		err = tok.TransferFrom(ctx, p.address, spender, p.address, req.Amount)
	} else {
		err = tok.Transfer(ctx, spender, p.address, req.Amount)
	}
	if err != nil {
		return err
	}

	bTokens := req.Amount.Mul(types.RateScalar).Quo(r.Data.BRate)
	r.Data.BSupply = r.Data.BSupply.Add(bTokens)
	if r.Config.SupplyCap.IsPositive() {
		total := r.Data.BSupply.Mul(r.Data.BRate).Quo(types.RateScalar)
		if total.GT(r.Config.SupplyCap) {
			return fmt.Errorf("%w: %s > %s", ErrSupplyCapExceeded, total, r.Config.SupplyCap)
		}
	}
	pos.Collateral[r.Config.Index] = pos.CollateralAt(r.Config.Index).Add(bTokens)
	if err := ledger.PutJSON(ctx, p.reserveKey(req.Asset), r); err != nil {
		return err
	}
	poolLogger.Debug().
		Str("asset", req.Asset.String()).
		Str("amount", req.Amount.String()).
		Str("b_tokens", bTokens.String()).
		Msg("Collateral supplied")
	return nil
}

func (p *Pool) withdraw(ctx context.Context, pos *types.Positions, to types.Address, req types.Request) error {
	r, err := p.loadReserve(ctx, req.Asset)
	if err != nil {
		return err
	}
	num := req.Amount.Mul(types.RateScalar)
	bTokens := num.Quo(r.Data.BRate)
	if !num.Mod(r.Data.BRate).IsZero() {
		bTokens = bTokens.AddRaw(1)
	}
	held := pos.CollateralAt(r.Config.Index)
	if held.LT(bTokens) {
		return fmt.Errorf("%w: have %s b-tokens, need %s", ErrInsufficientCollateral, held, bTokens)
	}
	pos.Collateral[r.Config.Index] = held.Sub(bTokens)
	r.Data.BSupply = r.Data.BSupply.Sub(bTokens)
	if err := ledger.PutJSON(ctx, p.reserveKey(req.Asset), r); err != nil {
		return err
	}
	tok, err := p.tokens(req.Asset)
	if err != nil {
		return err
	}
	return tok.Transfer(ctx, p.address, to, req.Amount)
}

func (p *Pool) loadReserve(ctx context.Context, asset types.Address) (types.Reserve, error) {
	var r types.Reserve
	found, err := ledger.GetJSON(ctx, p.reserveKey(asset), &r)
	if err != nil {
		return r, err
	}
	if !found {
		return r, fmt.Errorf("%w: %s", ErrUnknownReserve, asset)
	}
	return r, nil
}

func (p *Pool) loadPositions(ctx context.Context, holder types.Address) (types.Positions, error) {
	pos := types.NewPositions()
	if _, err := ledger.GetJSON(ctx, p.positionsKey(holder), &pos); err != nil {
		return pos, err
	}
	if pos.Collateral == nil {
		pos.Collateral = map[uint32]sdkmath.Int{}
	}
	if pos.Liabilities == nil {
		pos.Liabilities = map[uint32]sdkmath.Int{}
	}
	if pos.Supply == nil {
		pos.Supply = map[uint32]sdkmath.Int{}
	}
	return pos, nil
}

func (p *Pool) reserveKey(asset types.Address) []byte {
	return ledger.Key("lending", p.address.String(), "reserve", asset.String())
}

func (p *Pool) positionsKey(holder types.Address) []byte {
	return ledger.Key("lending", p.address.String(), "positions", holder.String())
}
