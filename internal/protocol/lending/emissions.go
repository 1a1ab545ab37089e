package lending

import (
	"context"
	"fmt"
	"strconv"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/types"
)

// AccrueEmissions credits holder with amount of reward token under reserveTokenID.
func (p *Pool) AccrueEmissions(ctx context.Context, holder types.Address, reserveTokenID uint32, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() || amount.GT(types.MaxAmount) {
		return fmt.Errorf("%w: emission %v", ErrInvalidRequest, amount)
	}
	return p.db.Update(ctx, func(ctx context.Context) error {
		pending, err := p.pending(ctx, holder, reserveTokenID)
		if err != nil {
			return err
		}
		pending = pending.Add(amount)
		if pending.GT(types.MaxAmount) {
			return fmt.Errorf("%w: emission overflow", ErrInvalidRequest)
		}
		return ledger.PutJSON(ctx, p.emissionKey(holder, reserveTokenID), pending)
	})
}

// PendingEmissions sums what Claim would pay from for reserveTokenIDs.
func (p *Pool) PendingEmissions(ctx context.Context, holder types.Address, reserveTokenIDs []uint32) (total sdkmath.Int, err error) {
	total = sdkmath.ZeroInt()
	err = p.db.View(ctx, func(ctx context.Context) error {
		for _, id := range reserveTokenIDs {
			v, err := p.pending(ctx, holder, id)
			if err != nil {
				return err
			}
			total = total.Add(v)
		}
		return nil
	})
	return total, err
}

// Claim pays from's accrued emissions for reserveTokenIDs to to and returns the amount.
func (p *Pool) Claim(ctx context.Context, from types.Address, reserveTokenIDs []uint32, to types.Address) (claimed sdkmath.Int, err error) {
	claimed = sdkmath.ZeroInt()
	err = p.db.Update(ctx, func(ctx context.Context) error {
		for _, id := range reserveTokenIDs {
			v, err := p.pending(ctx, from, id)
			if err != nil {
				return err
			}
			if v.IsZero() {
				continue
			}
			claimed = claimed.Add(v)
			txn, err := ledger.FromContext(ctx)
			if err != nil {
				return err
			}
			if err := txn.Delete(p.emissionKey(from, id)); err != nil {
				return err
			}
		}
		if claimed.IsZero() {
			return nil
		}
		tok, err := p.tokens(p.rewardToken)
		if err != nil {
			return err
		}
		if err := tok.Transfer(ctx, p.address, to, claimed); err != nil {
			return err
		}
		poolLogger.Debug().Str("holder", from.String()).Str("claimed", claimed.String()).Msg("Emissions claimed")
		return nil
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return claimed, nil
}

func (p *Pool) pending(ctx context.Context, holder types.Address, id uint32) (sdkmath.Int, error) {
	v := sdkmath.ZeroInt()
	if _, err := ledger.GetJSON(ctx, p.emissionKey(holder, id), &v); err != nil {
		return sdkmath.Int{}, err
	}
	return v, nil
}

func (p *Pool) emissionKey(holder types.Address, id uint32) []byte {
	return ledger.Key("lending", p.address.String(), "emissions", holder.String(), strconv.FormatUint(uint64(id), 10))
}
