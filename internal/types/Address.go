package types

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"lukechampine.com/blake3"
)

const (
	// AccountHRP prefixes principals backed by an ed25519 public key.
	AccountHRP = "yv"
	// ContractHRP prefixes addresses of contracts hosted on the ledger (vault, tokens, pools).
	ContractHRP = "yvc"
)

var (
	ErrInvalidAddress = errors.New("address is invalid")
	ErrNotAccount     = errors.New("address is not an account")
)

// Address identifies a principal or a contract on the host ledger.
type Address string

// AccountAddress encodes an ed25519 public key as an account address.
func AccountAddress(pub ed25519.PublicKey) (Address, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: public key has %d bytes", ErrInvalidAddress, len(pub))
	}
	s, err := bech32.ConvertAndEncode(AccountHRP, pub)
	if err != nil {
		return "", errors.Join(ErrInvalidAddress, err)
	}
	return Address(s), nil
}

// ContractAddress derives a deterministic contract address from a name.
func ContractAddress(name string) Address {
	sum := blake3.Sum256([]byte("contract:" + name))
	s, err := bech32.ConvertAndEncode(ContractHRP, sum[:])
	if err != nil {
		// 32 bytes under a static hrp always encode
		panic(err)
	}
	return Address(s)
}

func (a Address) String() string { return string(a) }

// Validate checks the bech32 encoding and prefix.
func (a Address) Validate() error {
	if a == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	hrp, data, err := bech32.DecodeAndConvert(string(a))
	if err != nil {
		return errors.Join(ErrInvalidAddress, err)
	}
	if hrp != AccountHRP && hrp != ContractHRP {
		return fmt.Errorf("%w: unknown prefix %q", ErrInvalidAddress, hrp)
	}
	if len(data) != 32 {
		return fmt.Errorf("%w: payload has %d bytes", ErrInvalidAddress, len(data))
	}
	return nil
}

// IsContract reports whether the address carries the contract prefix.
func (a Address) IsContract() bool {
	hrp, _, err := bech32.DecodeAndConvert(string(a))
	return err == nil && hrp == ContractHRP
}

// PublicKey returns the ed25519 key of an account address.
func (a Address) PublicKey() (ed25519.PublicKey, error) {
	hrp, data, err := bech32.DecodeAndConvert(string(a))
	if err != nil {
		return nil, errors.Join(ErrInvalidAddress, err)
	}
	if hrp != AccountHRP {
		return nil, fmt.Errorf("%w: %s", ErrNotAccount, a)
	}
	if len(data) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: payload has %d bytes", ErrInvalidAddress, len(data))
	}
	return ed25519.PublicKey(data), nil
}
