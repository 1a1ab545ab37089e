// Package auth scopes an operator's authorization to a single contract invocation.
//
// A Capability is an ed25519 signature over (principal, contract, function,
// argument digest, nonce, expiry). It authorizes exactly one invocation, is
// consumed on use, and expires at a ledger sequence number.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/elys-network/yieldvault/internal/types"
)

const signingDomain = "yieldvault/capability/v1"

var (
	ErrAuthRequired      = errors.New("authorization required")
	ErrCapabilityExpired = errors.New("capability expired")
	ErrNonceReplayed     = errors.New("capability nonce already used")
	ErrBadSignature      = errors.New("capability signature invalid")
)

// Invocation names one call on a contract with its canonical string arguments.
type Invocation struct {
	Contract types.Address
	Function string
	Args     []string
}

// Digest hashes the arguments together with the call target.
func (inv Invocation) Digest() [32]byte {
	h := blake3.New(32, nil)
	writeField(h, []byte(inv.Contract))
	writeField(h, []byte(inv.Function))
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(inv.Args)))
	_, _ = h.Write(n[:])
	for _, a := range inv.Args {
		writeField(h, []byte(a))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (inv Invocation) String() string {
	return fmt.Sprintf("%s.%s%v", inv.Contract, inv.Function, inv.Args)
}

// Capability authorizes Principal to have Function invoked with the digested arguments.
type Capability struct {
	Principal  types.Address `json:"principal"`
	Function   string        `json:"function"`
	ArgsDigest [32]byte      `json:"args_digest"`
	Nonce      uint64        `json:"nonce"`
	Expiry     uint32        `json:"expiry"`
	Signature  []byte        `json:"signature"`
}

// Matches reports whether c was issued for inv on behalf of principal.
func (c Capability) Matches(principal types.Address, inv Invocation) bool {
	return c.Principal == principal && c.Function == inv.Function && c.ArgsDigest == inv.Digest()
}

// Verify checks the signature against the principal's public key.
func (c Capability) Verify(contract types.Address) error {
	pub, err := c.Principal.PublicKey()
	if err != nil {
		return errors.Join(ErrBadSignature, err)
	}
	if !ed25519.Verify(pub, signingPayload(c.Principal, contract, c.Function, c.ArgsDigest, c.Nonce, c.Expiry), c.Signature) {
		return fmt.Errorf("%w: principal %s", ErrBadSignature, c.Principal)
	}
	return nil
}

// Signer issues capabilities for its own address.
type Signer interface {
	Address() types.Address
	Sign(inv Invocation, nonce uint64, expiry uint32) (Capability, error)
}

// KeySigner signs with an in-memory ed25519 key.
type KeySigner struct {
	key     ed25519.PrivateKey
	address types.Address
}

// NewKeySigner wraps a private key.
func NewKeySigner(key ed25519.PrivateKey) (*KeySigner, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key has %d bytes", len(key))
	}
	addr, err := types.AccountAddress(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &KeySigner{key: key, address: addr}, nil
}

// NewKeySignerFromSeed derives the key from a hex-encoded 32-byte seed.
func NewKeySignerFromSeed(seedHex string) (*KeySigner, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed has %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return NewKeySigner(ed25519.NewKeyFromSeed(seed))
}

// GenerateKeySigner creates a signer with a random key.
func GenerateKeySigner() (*KeySigner, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewKeySigner(priv)
}

func (s *KeySigner) Address() types.Address { return s.address }

func (s *KeySigner) Sign(inv Invocation, nonce uint64, expiry uint32) (Capability, error) {
	digest := inv.Digest()
	sig := ed25519.Sign(s.key, signingPayload(s.address, inv.Contract, inv.Function, digest, nonce, expiry))
	return Capability{
		Principal:  s.address,
		Function:   inv.Function,
		ArgsDigest: digest,
		Nonce:      nonce,
		Expiry:     expiry,
		Signature:  sig,
	}, nil
}

// RandomNonce returns a nonce drawn from crypto/rand.
func RandomNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read nonce: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func signingPayload(principal, contract types.Address, function string, digest [32]byte, nonce uint64, expiry uint32) []byte {
	h := blake3.New(32, nil)
	writeField(h, []byte(signingDomain))
	writeField(h, []byte(principal))
	writeField(h, []byte(contract))
	writeField(h, []byte(function))
	_, _ = h.Write(digest[:])
	var tail [12]byte
	binary.BigEndian.PutUint64(tail[:8], nonce)
	binary.BigEndian.PutUint32(tail[8:], expiry)
	_, _ = h.Write(tail[:])
	return h.Sum(nil)
}

func writeField(h *blake3.Hasher, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	_, _ = h.Write(n[:])
	_, _ = h.Write(b)
}
