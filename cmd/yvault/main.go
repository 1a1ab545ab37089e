package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/elys-network/yieldvault/internal/config"
	"github.com/elys-network/yieldvault/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "yvault",
	Short: "Yield vault host: share accounting over a lending pool with reward compounding",
	Long: `yvault runs a self-contained devnet host for the yield vault.

The vault takes deposits of the underlying asset, supplies them to the lending
pool and mints shares. A harvester periodically claims the pool's reward
emissions, swaps them for the underlying asset and supplies the proceeds back,
raising the value of every share.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
		}
		if err := config.LoadConfig(); err != nil {
			return err
		}
		logger.Initialize(config.LogLevel, config.LogFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, statusCmd)
}

// main is the entry point for the yield vault host.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
