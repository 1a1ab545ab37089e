package vault

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/auth"
	"github.com/elys-network/yieldvault/internal/sharemath"
)

var (
	ErrAlreadyInitialized = errors.New("vault already initialized")
	ErrNotInitialized     = errors.New("vault not initialized")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrUnknownContract    = errors.New("unknown contract")

	ErrInvalidAmount = sharemath.ErrInvalidAmount
	ErrMathOverflow  = sharemath.ErrMathOverflow
	ErrAuthRequired  = auth.ErrAuthRequired
)

// InsufficientSharesError reports an owner's share balance against what an
// operation needed to burn.
type InsufficientSharesError struct {
	Have sdkmath.Int
	Need sdkmath.Int
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares: have %s, need %s", e.Have, e.Need)
}

func (e *InsufficientSharesError) Is(target error) bool {
	return target == ErrInsufficientShares
}
