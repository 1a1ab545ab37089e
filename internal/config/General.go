package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// LedgerPath is the goleveldb directory of the host ledger. Empty keeps the ledger in memory.
	LedgerPath string

	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string
	// LogFile, when set, also writes logs to a rotating file.
	LogFile string

	// HarvestInterval is the time between compound cycles.
	HarvestInterval time.Duration

	// OperatorSeed is the hex-encoded ed25519 seed of the harvest operator. Empty generates a key.
	OperatorSeed string

	// VaultDecimalsOffset is the share decimals offset the devnet vault is initialized with.
	VaultDecimalsOffset uint32
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	LedgerPath = getEnvWithDefault("LEDGER_PATH", "")
	LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	LogFile = getEnvWithDefault("LOG_FILE", "")
	OperatorSeed = getEnvWithDefault("OPERATOR_SEED", "")

	HarvestInterval, err = getEnvAsDurationWithDefault("HARVEST_INTERVAL", 10*time.Minute)
	if err != nil {
		return err
	}
	if HarvestInterval <= 0 {
		return errors.New("environment variable HARVEST_INTERVAL must be positive")
	}

	offset, err := getEnvAsUint64WithDefault("VAULT_DECIMALS_OFFSET", uint64(DefaultDevnetParameters.DecimalsOffset))
	if err != nil {
		return err
	}
	if offset > 38 {
		return errors.New("environment variable VAULT_DECIMALS_OFFSET must be at most 38")
	}
	VaultDecimalsOffset = uint32(offset)

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	// Expand the tilde (~) in the ledger path to the user's home directory.
	if strings.HasPrefix(LedgerPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		LedgerPath = filepath.Join(home, LedgerPath[2:])
	}

	log.Debug().
		Str("LedgerPath", LedgerPath).
		Dur("HarvestInterval", HarvestInterval).
		Uint32("VaultDecimalsOffset", VaultDecimalsOffset).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvWithDefault retrieves a string environment variable, falling back to defaultValue.
func getEnvWithDefault(key, defaultValue string) string {
	if value, err := getEnv(key); err == nil && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsUint64WithDefault retrieves an environment variable as a uint64. Returns error if set but invalid.
func getEnvAsUint64WithDefault(key string, defaultValue uint64) (uint64, error) {
	valueStr := getEnvWithDefault(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDurationWithDefault retrieves an environment variable as a time.Duration. Returns error if set but invalid.
func getEnvAsDurationWithDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnvWithDefault(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration, got: " + valueStr)
	}
	return value, nil
}
