package vault

import (
	"context"

	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/types"
)

// LedgerStorage keeps vault state in the host ledger under the vault's address.
type LedgerStorage struct {
	prefix string
}

func NewLedgerStorage(vault types.Address) *LedgerStorage {
	return &LedgerStorage{prefix: vault.String()}
}

func (s *LedgerStorage) LoadConfig(ctx context.Context) (types.VaultConfig, error) {
	var cfg types.VaultConfig
	found, err := ledger.GetJSON(ctx, s.key("config"), &cfg)
	if err != nil {
		return cfg, err
	}
	if !found || !cfg.Initialized {
		return cfg, ErrNotInitialized
	}
	return cfg, nil
}

func (s *LedgerStorage) SaveConfig(ctx context.Context, cfg types.VaultConfig) error {
	return ledger.PutJSON(ctx, s.key("config"), cfg)
}

func (s *LedgerStorage) LoadMetadata(ctx context.Context) (types.ShareMetadata, error) {
	var md types.ShareMetadata
	found, err := ledger.GetJSON(ctx, s.key("metadata"), &md)
	if err != nil {
		return md, err
	}
	if !found {
		return md, ErrNotInitialized
	}
	return md, nil
}

func (s *LedgerStorage) SaveMetadata(ctx context.Context, md types.ShareMetadata) error {
	return ledger.PutJSON(ctx, s.key("metadata"), md)
}

func (s *LedgerStorage) Depositors(ctx context.Context) ([]types.Address, error) {
	var depositors []types.Address
	if _, err := ledger.GetJSON(ctx, s.key("depositors"), &depositors); err != nil {
		return nil, err
	}
	return depositors, nil
}

func (s *LedgerStorage) SaveDepositors(ctx context.Context, depositors []types.Address) error {
	return ledger.PutJSON(ctx, s.key("depositors"), depositors)
}

func (s *LedgerStorage) key(name string) []byte {
	return ledger.Key("vault", s.prefix, name)
}
