/*

This file manages the persistent harvest counter.
The counter lives in the database so harvest numbers continue across restarts.

*/

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetCurrentHarvestNumber retrieves the number of the last recorded harvest.
func GetCurrentHarvestNumber(ctx context.Context) (int, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	var current int
	err := DB.QueryRowContext(ctx, `SELECT current_harvest FROM harvest_counter WHERE id = 1;`).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Msg("No harvest counter row found, treating as 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current harvest number: %w", err)
	}
	return current, nil
}

// IncrementHarvestNumber increments the harvest counter and returns the new value.
func IncrementHarvestNumber(ctx context.Context) (int, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}
	return incrementHarvestNumber(ctx, DB)
}

func incrementHarvestNumber(ctx context.Context, q queryer) (int, error) {
	updateQuery := `
		UPDATE harvest_counter
		SET current_harvest = current_harvest + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_harvest;`

	var next int
	if err := q.QueryRowContext(ctx, updateQuery).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to increment harvest number: %w", err)
	}
	log.Debug().Int("harvestNumber", next).Msg("Incremented harvest counter")
	return next, nil
}

// ResetHarvestNumber sets the harvest counter to a specific value (for maintenance).
func ResetHarvestNumber(ctx context.Context, harvestNumber int) error {
	if DB == nil {
		return ErrNotInitialized
	}
	if harvestNumber < 0 {
		return fmt.Errorf("harvest number cannot be negative: %d", harvestNumber)
	}

	result, err := DB.ExecContext(ctx, `
		UPDATE harvest_counter
		SET current_harvest = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`, harvestNumber)
	if err != nil {
		return fmt.Errorf("failed to reset harvest number to %d: %w", harvestNumber, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when resetting harvest number")
	}

	log.Warn().Int("harvestNumber", harvestNumber).Msg("Reset harvest counter")
	return nil
}
