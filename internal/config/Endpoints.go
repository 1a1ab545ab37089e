package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebPort is the port of the read-only JSON API and /metrics.
	WebPort string
	// GRPCPort is the port of the gRPC health service.
	GRPCPort string

	// Journal is the optional postgres event journal. Disabled when DB_HOST is unset.
	Journal JournalConfig
)

// JournalConfig holds the postgres connection parameters of the event journal.
type JournalConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether a journal database is configured.
func (c JournalConfig) Enabled() bool { return c.Host != "" }

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	WebPort = getEnvWithDefault("WEB_PORT", "8080")
	GRPCPort = getEnvWithDefault("GRPC_PORT", "9090")

	port, err := getEnvAsUint64WithDefault("DB_PORT", 5432)
	if err != nil {
		return err
	}
	Journal = JournalConfig{
		Host:     getEnvWithDefault("DB_HOST", ""),
		Port:     int(port),
		User:     getEnvWithDefault("DB_USER", "postgres"),
		Password: getEnvWithDefault("DB_PASSWORD", ""),
		DBName:   getEnvWithDefault("DB_NAME", "yieldvault"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}

	log.Debug().
		Str("WebPort", WebPort).
		Str("GRPCPort", GRPCPort).
		Bool("JournalEnabled", Journal.Enabled()).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
