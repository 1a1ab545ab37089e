package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yieldvault/internal/config"
	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/state"
)

// Drops and recreates the event journal tables.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Initialize(config.LogLevel, config.LogFile)
	log.Info().Msg("Starting database reset script...")

	if !config.Journal.Enabled() {
		log.Fatal().Msg("DB_HOST environment variable not set.")
	}
	dbCfg := state.DBConfig{
		Host:     config.Journal.Host,
		Port:     config.Journal.Port,
		User:     config.Journal.User,
		Password: config.Journal.Password,
		DBName:   config.Journal.DBName,
		SSLMode:  config.Journal.SSLMode,
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("user", dbCfg.User).
		Str("dbname", dbCfg.DBName).
		Msg("Connecting to database")

	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer state.CloseDB()

	if err := state.DropSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop journal tables")
	}
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate journal schema")
	}
	log.Info().Msg("Database reset complete.")
}
