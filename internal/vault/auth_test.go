package vault_test

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yieldvault/internal/auth"
	"github.com/elys-network/yieldvault/internal/devnet"
	"github.com/elys-network/yieldvault/internal/vault"
)

func sign(t *testing.T, n *devnet.Network, s auth.Signer, nonce uint64, function string, args ...string) context.Context {
	t.Helper()
	seq, err := n.Ledger.Sequence()
	require.NoError(t, err)
	c, err := s.Sign(n.Vault.Invocation(function, args...), nonce, seq+10)
	require.NoError(t, err)
	return auth.WithCapabilities(context.Background(), c)
}

func TestOperatorCapabilityRequired(t *testing.T) {
	n := newNetwork(t, quietParams(), auth.NewSignatureAuthorizer())
	user, err := auth.GenerateKeySigner()
	require.NoError(t, err)
	addr := user.Address()
	fund(t, n, addr, 100)

	_, err = n.Vault.Deposit(context.Background(), sdkmath.NewInt(100), addr, addr, addr)
	assert.ErrorIs(t, err, vault.ErrAuthRequired)

	// a capability for a different amount does not cover this call
	ctx := sign(t, n, user, 1, "deposit", "99", addr.String(), addr.String(), addr.String())
	_, err = n.Vault.Deposit(ctx, sdkmath.NewInt(100), addr, addr, addr)
	assert.ErrorIs(t, err, vault.ErrAuthRequired)

	ctx = sign(t, n, user, 2, "deposit", "100", addr.String(), addr.String(), addr.String())
	shares, err := n.Vault.Deposit(ctx, sdkmath.NewInt(100), addr, addr, addr)
	require.NoError(t, err)
	assert.Equal(t, int64(100), shares.Int64())

	// replaying the same capability fails
	fund(t, n, addr, 100)
	_, err = n.Vault.Deposit(ctx, sdkmath.NewInt(100), addr, addr, addr)
	assert.ErrorIs(t, err, auth.ErrNonceReplayed)
}

func TestWithdrawByThirdPartyNeedsOwner(t *testing.T) {
	n := newNetwork(t, quietParams(), auth.NewSignatureAuthorizer())
	owner, err := auth.GenerateKeySigner()
	require.NoError(t, err)
	operator, err := auth.GenerateKeySigner()
	require.NoError(t, err)
	o, op := owner.Address(), operator.Address()

	fund(t, n, o, 50)
	ctx := sign(t, n, owner, 1, "deposit", "50", o.String(), o.String(), o.String())
	_, err = n.Vault.Deposit(ctx, sdkmath.NewInt(50), o, o, o)
	require.NoError(t, err)

	args := []string{"20", op.String(), o.String(), op.String()}
	ctx = sign(t, n, operator, 1, "withdraw", args...)
	_, err = n.Vault.Withdraw(ctx, sdkmath.NewInt(20), op, o, op)
	assert.ErrorIs(t, err, vault.ErrAuthRequired)

	seq, err := n.Ledger.Sequence()
	require.NoError(t, err)
	ownerCap, err := owner.Sign(n.Vault.Invocation("withdraw", args...), 2, seq+10)
	require.NoError(t, err)
	ctx = sign(t, n, operator, 3, "withdraw", args...)
	burned, err := n.Vault.Withdraw(auth.WithCapabilities(ctx, ownerCap), sdkmath.NewInt(20), op, o, op)
	require.NoError(t, err)
	assert.Equal(t, int64(20), burned.Int64())
	assert.Equal(t, int64(20), balanceOf(t, n.Asset, op))
}
