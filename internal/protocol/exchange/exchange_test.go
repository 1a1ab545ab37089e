package exchange

import (
	"context"
	"fmt"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/protocol/token"
	"github.com/elys-network/yieldvault/internal/types"
)

func newExchange(t *testing.T) (*Exchange, *token.Token, *token.Token, types.Address) {
	t.Helper()
	db, err := ledger.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	blnd := token.New(db, types.ContractAddress("blnd"), token.Metadata{Symbol: "BLND", Decimals: 7})
	usdc := token.New(db, types.ContractAddress("usdc"), token.Metadata{Symbol: "USDC", Decimals: 7})
	tokens := map[types.Address]*token.Token{blnd.Address(): blnd, usdc.Address(): usdc}
	x := New(db, types.ContractAddress("comet"), func(a types.Address) (Token, error) {
		if tok, ok := tokens[a]; ok {
			return tok, nil
		}
		return nil, fmt.Errorf("no token at %s", a)
	})

	ctx := context.Background()
	user := types.ContractAddress("user")
	require.NoError(t, blnd.Mint(ctx, user, sdkmath.NewInt(1_000)))
	require.NoError(t, usdc.Mint(ctx, x.Address(), sdkmath.NewInt(1_000)))
	// 4 BLND buy 1 USDC
	require.NoError(t, x.SetPrice(ctx, blnd.Address(), usdc.Address(), Price{Numerator: sdkmath.NewInt(1), Denominator: sdkmath.NewInt(4)}))
	return x, blnd, usdc, user
}

func TestSwapExactAmountIn(t *testing.T) {
	ctx := context.Background()
	x, blnd, usdc, user := newExchange(t)
	require.NoError(t, blnd.Approve(ctx, user, x.Address(), sdkmath.NewInt(402), 100))

	out, spot, err := x.SwapExactAmountIn(ctx, blnd.Address(), sdkmath.NewInt(402), usdc.Address(), sdkmath.ZeroInt(), types.MaxAmount, user)
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.Int64())
	assert.Equal(t, int64(40_000_000), spot.Int64())

	got, err := usdc.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Int64())
	left, err := blnd.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(598), left.Int64())
}

func TestSwapLimits(t *testing.T) {
	ctx := context.Background()
	x, blnd, usdc, user := newExchange(t)
	require.NoError(t, blnd.Approve(ctx, user, x.Address(), sdkmath.NewInt(1_000), 100))

	_, _, err := x.SwapExactAmountIn(ctx, blnd.Address(), sdkmath.NewInt(400), usdc.Address(), sdkmath.NewInt(101), types.MaxAmount, user)
	assert.ErrorIs(t, err, ErrLimitOut)

	_, _, err = x.SwapExactAmountIn(ctx, blnd.Address(), sdkmath.NewInt(400), usdc.Address(), sdkmath.ZeroInt(), sdkmath.NewInt(39_999_999), user)
	assert.ErrorIs(t, err, ErrLimitPrice)

	_, _, err = x.SwapExactAmountIn(ctx, usdc.Address(), sdkmath.NewInt(1), blnd.Address(), sdkmath.ZeroInt(), types.MaxAmount, user)
	assert.ErrorIs(t, err, ErrUnknownPair)

	left, err := blnd.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), left.Int64())
}

func TestSwapRequiresAllowance(t *testing.T) {
	ctx := context.Background()
	x, blnd, usdc, user := newExchange(t)
	_, _, err := x.SwapExactAmountIn(ctx, blnd.Address(), sdkmath.NewInt(4), usdc.Address(), sdkmath.ZeroInt(), types.MaxAmount, user)
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)
}
