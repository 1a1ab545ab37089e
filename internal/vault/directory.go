package vault

import (
	"fmt"
	"sync"

	"github.com/elys-network/yieldvault/internal/types"
)

// Directory is an in-process Protocols registry.
type Directory struct {
	mu        sync.RWMutex
	tokens    map[types.Address]Token
	pools     map[types.Address]LendingPool
	exchanges map[types.Address]Exchange
}

func NewDirectory() *Directory {
	return &Directory{
		tokens:    make(map[types.Address]Token),
		pools:     make(map[types.Address]LendingPool),
		exchanges: make(map[types.Address]Exchange),
	}
}

func (d *Directory) RegisterToken(address types.Address, t Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens[address] = t
}

func (d *Directory) RegisterLendingPool(address types.Address, p LendingPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pools[address] = p
}

func (d *Directory) RegisterExchange(address types.Address, x Exchange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exchanges[address] = x
}

func (d *Directory) Token(address types.Address) (Token, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tokens[address]
	if !ok {
		return nil, fmt.Errorf("%w: token %s", ErrUnknownContract, address)
	}
	return t, nil
}

func (d *Directory) LendingPool(address types.Address) (LendingPool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.pools[address]
	if !ok {
		return nil, fmt.Errorf("%w: lending pool %s", ErrUnknownContract, address)
	}
	return p, nil
}

func (d *Directory) Exchange(address types.Address) (Exchange, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	x, ok := d.exchanges[address]
	if !ok {
		return nil, fmt.Errorf("%w: exchange %s", ErrUnknownContract, address)
	}
	return x, nil
}
