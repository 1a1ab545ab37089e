package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// ErrNotInitialized is returned by every journal function until InitDB succeeds.
var ErrNotInitialized = errors.New("database not initialized")

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders cfg as a lib/pq connection string.
func (cfg DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	return InitDBWithDSN(cfg.DSN())
}

// InitDBWithDSN initializes the pool from a raw connection string.
func InitDBWithDSN(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
		DB = nil
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return ErrNotInitialized
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS vault_events (
			event_id TEXT PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			vault TEXT NOT NULL,
			operator TEXT NOT NULL DEFAULT '',
			receiver TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			principals TEXT[] NOT NULL DEFAULT '{}', -- every address the event touches
			assets NUMERIC(40, 0) NOT NULL DEFAULT 0,
			shares NUMERIC(40, 0) NOT NULL DEFAULT 0,
			reward_claimed NUMERIC(40, 0) NOT NULL DEFAULT 0,
			assets_received NUMERIC(40, 0) NOT NULL DEFAULT 0,
			ledger_sequence BIGINT NOT NULL,
			event_timestamp TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_vault_events_timestamp ON vault_events(event_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_vault_events_kind ON vault_events(kind);
		CREATE INDEX IF NOT EXISTS idx_vault_events_principals ON vault_events USING GIN (principals);

		CREATE TABLE IF NOT EXISTS harvest_cycles (
			cycle_id TEXT PRIMARY KEY,
			harvest_number INTEGER NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			ledger_sequence BIGINT NOT NULL,
			assets_received NUMERIC(40, 0) NOT NULL DEFAULT 0,
			share_price_before DOUBLE PRECISION NOT NULL,
			share_price_after DOUBLE PRECISION NOT NULL,
			growth_apr DOUBLE PRECISION NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_harvest_cycles_finished ON harvest_cycles(finished_at DESC);

		-- Harvest counter table for persistent harvest numbering across restarts
		CREATE TABLE IF NOT EXISTS harvest_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_harvest INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO harvest_counter (id, current_harvest)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// DropSchema removes every journal table. Used by scripts/reset_db.go.
func DropSchema() error {
	if DB == nil {
		return ErrNotInitialized
	}
	dropSQL := `
		DROP TABLE IF EXISTS vault_events CASCADE;
		DROP TABLE IF EXISTS harvest_cycles CASCADE;
		DROP TABLE IF EXISTS harvest_counter CASCADE;
	`
	if _, err := DB.Exec(dropSQL); err != nil {
		return fmt.Errorf("failed to drop journal tables: %w", err)
	}
	log.Warn().Msg("Dropped journal tables")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
