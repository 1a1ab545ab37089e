package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/yieldvault/internal/types"
)

// SaveHarvestRecord numbers the record from the harvest counter and stores it in
// one transaction. It returns the assigned harvest number.
func SaveHarvestRecord(ctx context.Context, record types.HarvestRecord) (harvestNumber int, err error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	harvestNumber, err = incrementHarvestNumber(ctx, tx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO harvest_cycles (
			cycle_id, harvest_number, started_at, finished_at, ledger_sequence,
			assets_received, share_price_before, share_price_after, growth_apr,
			success, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`

	_, err = tx.ExecContext(ctx, query,
		record.CycleID, harvestNumber, record.StartedAt, record.FinishedAt, int64(record.LedgerSequence),
		numeric(record.AssetsReceived), record.SharePriceBefore, record.SharePriceAfter, record.GrowthAPR,
		record.Success, record.Message,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert harvest cycle %s: %w", record.CycleID, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit harvest cycle %s: %w", record.CycleID, err)
	}

	log.Info().
		Str("cycle_id", record.CycleID).
		Int("harvest_number", harvestNumber).
		Bool("success", record.Success).
		Msg("Saved harvest record")
	return harvestNumber, nil
}

// GetRecentHarvests returns the newest harvest records first.
func GetRecentHarvests(ctx context.Context, limit int) ([]types.HarvestRecord, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `
		SELECT
			cycle_id, harvest_number, started_at, finished_at, ledger_sequence,
			assets_received, share_price_before, share_price_after, growth_apr,
			success, COALESCE(message, '')
		FROM harvest_cycles
		ORDER BY harvest_number DESC
		LIMIT $1`

	rows, err := DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent harvests: %w", err)
	}
	defer rows.Close()

	var records []types.HarvestRecord
	for rows.Next() {
		var r types.HarvestRecord
		var sequence int64
		var received string
		if err := rows.Scan(
			&r.CycleID, &r.HarvestNumber, &r.StartedAt, &r.FinishedAt, &sequence,
			&received, &r.SharePriceBefore, &r.SharePriceAfter, &r.GrowthAPR,
			&r.Success, &r.Message,
		); err != nil {
			return nil, fmt.Errorf("failed to scan harvest record: %w", err)
		}
		r.LedgerSequence = uint32(sequence)
		if r.AssetsReceived, err = parseNumeric(received); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating harvest records: %w", err)
	}
	return records, nil
}

// GetHarvestSummary aggregates every recorded harvest.
func GetHarvestSummary(ctx context.Context) (*types.HarvestSummary, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT
			COUNT(*) AS total_harvests,
			COUNT(CASE WHEN success THEN 1 END) AS successful_harvests,
			COALESCE(SUM(assets_received), 0)::TEXT AS total_compounded,
			MAX(finished_at) AS last_harvest_at
		FROM harvest_cycles`

	summary := &types.HarvestSummary{}
	var total string
	var last sql.NullTime
	err := DB.QueryRowContext(ctx, query).Scan(&summary.TotalHarvests, &summary.SuccessfulHarvests, &total, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to get harvest summary: %w", err)
	}
	if summary.TotalCompounded, err = parseNumeric(total); err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time.UTC()
		summary.LastHarvestAt = &t
	}

	err = DB.QueryRowContext(ctx, `
		SELECT share_price_after FROM harvest_cycles
		WHERE success
		ORDER BY harvest_number DESC
		LIMIT 1`).Scan(&summary.LastSharePrice)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get latest share price: %w", err)
	}

	log.Debug().Int("totalHarvests", summary.TotalHarvests).Msg("Retrieved harvest summary")
	return summary, nil
}

// journalTimeout bounds a journal write made from a post-commit hook.
const journalTimeout = 5 * time.Second
