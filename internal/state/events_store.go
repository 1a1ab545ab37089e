package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yieldvault/internal/types"
)

// ErrEventNotFound is returned by GetEventByID for unknown ids.
var ErrEventNotFound = errors.New("vault event not found")

const eventColumns = `
	event_id, kind, vault, operator, receiver, owner,
	assets, shares, reward_claimed, assets_received,
	ledger_sequence, event_timestamp`

// SaveVaultEvent stores one committed vault event. Saving the same event id twice is a no-op.
func SaveVaultEvent(ctx context.Context, event types.VaultEvent) error {
	if DB == nil {
		return ErrNotInitialized
	}

	query := `
		INSERT INTO vault_events (` + eventColumns + `, principals)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (event_id) DO NOTHING;`

	_, err := DB.ExecContext(ctx, query,
		event.ID, string(event.Kind), event.Vault.String(),
		event.Operator.String(), event.Receiver.String(), event.Owner.String(),
		numeric(event.Assets), numeric(event.Shares), numeric(event.RewardClaimed), numeric(event.AssetsReceived),
		int64(event.LedgerSequence), event.Timestamp,
		pq.Array(principals(event)),
	)
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Str("kind", string(event.Kind)).Msg("Failed to save vault event")
		return fmt.Errorf("failed to save vault event %s: %w", event.ID, err)
	}
	log.Debug().Str("event_id", event.ID).Str("kind", string(event.Kind)).Msg("Saved vault event")
	return nil
}

// GetRecentEvents returns the newest events first. An empty kind matches every kind.
func GetRecentEvents(ctx context.Context, kind types.EventKind, limit int) ([]types.VaultEvent, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT ` + eventColumns + `
		FROM vault_events
		WHERE ($1 = '' OR kind = $1)
		ORDER BY event_timestamp DESC, ledger_sequence DESC
		LIMIT $2`

	rows, err := DB.QueryContext(ctx, query, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetEventsByPrincipal returns the newest events that touch address in any role.
func GetEventsByPrincipal(ctx context.Context, address types.Address, limit int) ([]types.VaultEvent, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT ` + eventColumns + `
		FROM vault_events
		WHERE $1 = ANY(principals)
		ORDER BY event_timestamp DESC, ledger_sequence DESC
		LIMIT $2`

	rows, err := DB.QueryContext(ctx, query, address.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for %s: %w", address, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetEventByID retrieves a specific event.
func GetEventByID(ctx context.Context, id string) (*types.VaultEvent, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	row := DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM vault_events WHERE event_id = $1`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		return nil, fmt.Errorf("failed to query event %s: %w", id, err)
	}
	return &event, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvents(rows *sql.Rows) ([]types.VaultEvent, error) {
	var events []types.VaultEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vault event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vault events: %w", err)
	}
	return events, nil
}

func scanEvent(row rowScanner) (types.VaultEvent, error) {
	var event types.VaultEvent
	var kind, vault, operator, receiver, owner string
	var assets, shares, rewardClaimed, assetsReceived string
	var sequence int64
	err := row.Scan(
		&event.ID, &kind, &vault, &operator, &receiver, &owner,
		&assets, &shares, &rewardClaimed, &assetsReceived,
		&sequence, &event.Timestamp,
	)
	if err != nil {
		return types.VaultEvent{}, err
	}

	event.Kind = types.EventKind(kind)
	event.Vault = types.Address(vault)
	event.Operator = types.Address(operator)
	event.Receiver = types.Address(receiver)
	event.Owner = types.Address(owner)
	event.LedgerSequence = uint32(sequence)
	for _, f := range []struct {
		raw string
		dst *sdkmath.Int
	}{{assets, &event.Assets}, {shares, &event.Shares}, {rewardClaimed, &event.RewardClaimed}, {assetsReceived, &event.AssetsReceived}} {
		if *f.dst, err = parseNumeric(f.raw); err != nil {
			return types.VaultEvent{}, err
		}
	}
	return event, nil
}

// principals lists the distinct non-empty addresses of an event.
func principals(event types.VaultEvent) []string {
	var out []string
	seen := make(map[string]bool)
	for _, a := range []types.Address{event.Operator, event.Receiver, event.Owner} {
		if a == "" || seen[a.String()] {
			continue
		}
		seen[a.String()] = true
		out = append(out, a.String())
	}
	return out
}

func numeric(x sdkmath.Int) string {
	return types.AmountOrZero(x).String()
}

func parseNumeric(raw string) (sdkmath.Int, error) {
	x, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid numeric value %q", raw)
	}
	return x, nil
}
