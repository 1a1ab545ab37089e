package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/types"
)

var authLogger = logger.GetForComponent("auth")

// Authorizer checks that principal authorized inv within the current ledger transaction.
type Authorizer interface {
	RequireAuth(ctx context.Context, principal types.Address, inv Invocation) error
}

type capsKey struct{}

// WithCapabilities attaches signed capabilities to ctx for the next operation.
func WithCapabilities(ctx context.Context, caps ...Capability) context.Context {
	existing, _ := ctx.Value(capsKey{}).([]Capability)
	merged := make([]Capability, 0, len(existing)+len(caps))
	merged = append(merged, existing...)
	merged = append(merged, caps...)
	return context.WithValue(ctx, capsKey{}, merged)
}

// CapabilitiesFromContext returns the capabilities attached to ctx.
func CapabilitiesFromContext(ctx context.Context) []Capability {
	caps, _ := ctx.Value(capsKey{}).([]Capability)
	return caps
}

// SignatureAuthorizer accepts a capability signed by the principal's key. Each
// capability nonce is recorded in the ledger so it cannot be used twice; the
// record rolls back with the transaction that consumed it.
type SignatureAuthorizer struct{}

func NewSignatureAuthorizer() *SignatureAuthorizer { return &SignatureAuthorizer{} }

func (a *SignatureAuthorizer) RequireAuth(ctx context.Context, principal types.Address, inv Invocation) error {
	txn, err := ledger.FromContext(ctx)
	if err != nil {
		return err
	}

	var lastErr error
	for _, c := range CapabilitiesFromContext(ctx) {
		if !c.Matches(principal, inv) {
			continue
		}
		if c.Expiry < txn.Sequence() {
			lastErr = fmt.Errorf("%w: expiry %d, ledger %d", ErrCapabilityExpired, c.Expiry, txn.Sequence())
			continue
		}
		if err := c.Verify(inv.Contract); err != nil {
			lastErr = err
			continue
		}
		key := nonceKey(principal, c.Nonce)
		used, err := txn.Has(key)
		if err != nil {
			return err
		}
		if used {
			lastErr = fmt.Errorf("%w: %d", ErrNonceReplayed, c.Nonce)
			continue
		}
		if err := txn.Put(key, []byte(strconv.FormatUint(uint64(c.Expiry), 10))); err != nil {
			return err
		}
		authLogger.Debug().
			Str("principal", principal.String()).
			Str("function", inv.Function).
			Uint64("nonce", c.Nonce).
			Msg("Capability consumed")
		return nil
	}

	if lastErr != nil {
		return errors.Join(ErrAuthRequired, lastErr)
	}
	return fmt.Errorf("%w: %s for %s", ErrAuthRequired, principal, inv)
}

func nonceKey(principal types.Address, nonce uint64) []byte {
	return ledger.Key("auth", "nonce", principal.String(), strconv.FormatUint(nonce, 10))
}

// AllowAll authorizes every invocation.
type AllowAll struct{}

func (AllowAll) RequireAuth(context.Context, types.Address, Invocation) error { return nil }
