package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/elys-network/yieldvault/internal/auth"
	"github.com/elys-network/yieldvault/internal/config"
	"github.com/elys-network/yieldvault/internal/devnet"
	"github.com/elys-network/yieldvault/internal/harvester"
	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/metrics"
	"github.com/elys-network/yieldvault/internal/state"
	"github.com/elys-network/yieldvault/internal/vault"
	"github.com/elys-network/yieldvault/internal/web"
)

var simulateYield bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the devnet host, web API, gRPC health service and harvester",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&simulateYield, "simulate-yield", true, "accrue devnet lending yield and emissions before every harvest")
}

func serve(ctx context.Context) error {
	log.Info().Msg("Yield vault host starting...")

	signer, err := operatorSigner()
	if err != nil {
		return err
	}
	log.Info().Str("operator", signer.Address().String()).Msg("Operator key loaded")

	db, err := openLedger()
	if err != nil {
		return err
	}

	sinks := []vault.EventSink{metrics.Vault()}
	var journal web.Journal
	var recorder harvester.Recorder
	if config.Journal.Enabled() {
		if err := state.InitDB(journalConfig()); err != nil {
			db.Close()
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			db.Close()
			return fmt.Errorf("failed to ensure database schema: %w", err)
		}
		sinks = append(sinks, state.Journal{})
		journal = state.Journal{}
		recorder = state.Journal{}
	} else {
		log.Warn().Msg("DB_HOST not set. Running without the event journal.")
	}

	params := config.DefaultDevnetParameters
	params.DecimalsOffset = config.VaultDecimalsOffset
	network, err := devnet.Bootstrap(ctx, db, devnet.Options{
		Params:     params,
		Authorizer: auth.NewSignatureAuthorizer(),
		Sinks:      sinks,
		Operator:   signer.Address(),
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("bootstrap devnet: %w", err)
	}
	defer network.Close()

	hcfg := harvester.Config{
		Vault:    network.Vault,
		Ledger:   network.Ledger,
		Signer:   signer,
		Recorder: recorder,
		Observer: metrics.Harvest(),
	}
	if simulateYield {
		hcfg.BeforeCycle = network.Accrue
	}
	keeper, err := harvester.New(hcfg)
	if err != nil {
		return err
	}

	webServer := web.NewWebServer(web.Config{
		Port:    config.WebPort,
		Vault:   network.Vault,
		Ledger:  network.Ledger,
		Journal: journal,
	})
	healthServer := web.NewHealthServer(network.Ledger, 5*time.Second)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting web API")
		return webServer.Start(gctx)
	})
	g.Go(func() error {
		return healthServer.ServeGRPC(gctx, config.GRPCPort)
	})
	g.Go(func() error {
		keeper.RunLoop(gctx, config.HarvestInterval)
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Yield vault host stopped")
	return err
}

func operatorSigner() (*auth.KeySigner, error) {
	if config.OperatorSeed != "" {
		signer, err := auth.NewKeySignerFromSeed(config.OperatorSeed)
		if err != nil {
			return nil, fmt.Errorf("load operator key: %w", err)
		}
		return signer, nil
	}
	log.Warn().Msg("OPERATOR_SEED not set. Generating an ephemeral operator key.")
	return auth.GenerateKeySigner()
}

func openLedger() (*ledger.DB, error) {
	if config.LedgerPath == "" {
		log.Warn().Msg("LEDGER_PATH not set. Keeping the ledger in memory.")
		return ledger.OpenMemory()
	}
	log.Info().Str("path", config.LedgerPath).Msg("Opening ledger")
	return ledger.Open(config.LedgerPath)
}

func journalConfig() state.DBConfig {
	return state.DBConfig{
		Host:     config.Journal.Host,
		Port:     config.Journal.Port,
		User:     config.Journal.User,
		Password: config.Journal.Password,
		DBName:   config.Journal.DBName,
		SSLMode:  config.Journal.SSLMode,
	}
}
