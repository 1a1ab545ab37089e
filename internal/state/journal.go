package state

import (
	"context"

	"github.com/elys-network/yieldvault/internal/types"
)

// Journal exposes the package-level postgres journal as a value, so it can be
// passed as the vault's event sink, the harvester's recorder and the web API's
// read model.
type Journal struct{}

// Publish stores a committed vault event.
func (Journal) Publish(ctx context.Context, event types.VaultEvent) error {
	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	return SaveVaultEvent(ctx, event)
}

// RecordHarvest stores a harvester cycle.
func (Journal) RecordHarvest(ctx context.Context, record types.HarvestRecord) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	return SaveHarvestRecord(ctx, record)
}

func (Journal) RecentEvents(ctx context.Context, kind types.EventKind, limit int) ([]types.VaultEvent, error) {
	return GetRecentEvents(ctx, kind, limit)
}

func (Journal) EventsByPrincipal(ctx context.Context, address types.Address, limit int) ([]types.VaultEvent, error) {
	return GetEventsByPrincipal(ctx, address, limit)
}

func (Journal) EventByID(ctx context.Context, id string) (*types.VaultEvent, error) {
	return GetEventByID(ctx, id)
}

func (Journal) RecentHarvests(ctx context.Context, limit int) ([]types.HarvestRecord, error) {
	return GetRecentHarvests(ctx, limit)
}

func (Journal) HarvestSummary(ctx context.Context) (*types.HarvestSummary, error) {
	return GetHarvestSummary(ctx)
}

// Healthy pings the database.
func (Journal) Healthy() error {
	return TestDBConnection()
}
