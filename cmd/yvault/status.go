package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/elys-network/yieldvault/internal/analyzer"
	"github.com/elys-network/yieldvault/internal/config"
	"github.com/elys-network/yieldvault/internal/devnet"
	"github.com/elys-network/yieldvault/internal/ledger"
	"github.com/elys-network/yieldvault/internal/utils"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the vault totals stored in the ledger at LEDGER_PATH",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.LedgerPath == "" {
			return errors.New("status reads a persisted ledger: set LEDGER_PATH")
		}
		db, err := ledger.Open(config.LedgerPath)
		if err != nil {
			return err
		}
		defer db.Close()

		params := config.DefaultDevnetParameters
		params.DecimalsOffset = config.VaultDecimalsOffset
		network, err := devnet.Attach(db, devnet.Options{Params: params})
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		v := network.Vault

		cfg, err := v.Config(ctx)
		if err != nil {
			return err
		}
		totalAssets, err := v.TotalAssets(ctx)
		if err != nil {
			return err
		}
		totalSupply, err := v.TotalSupply(ctx)
		if err != nil {
			return err
		}
		depositors, err := v.Depositors(ctx)
		if err != nil {
			return err
		}
		price, err := analyzer.SharePrice(totalAssets, totalSupply, cfg.DecimalsOffset)
		if err != nil {
			return err
		}
		seq, err := db.Sequence()
		if err != nil {
			return err
		}
		decimals, err := v.Decimals(ctx)
		if err != nil {
			return err
		}
		assetDecimals := int(decimals - cfg.DecimalsOffset)

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"vault":           v.Address(),
				"ledger_sequence": seq,
				"config":          cfg,
				"total_assets":    totalAssets,
				"total_supply":    totalSupply,
				"share_price":     price,
				"depositors":      len(depositors),
			})
		}
		fmt.Fprintf(out, "vault:        %s\n", v.Address())
		fmt.Fprintf(out, "ledger:       %d\n", seq)
		fmt.Fprintf(out, "total assets: %s\n", utils.FormatAmountWithCommas(totalAssets, assetDecimals))
		fmt.Fprintf(out, "total supply: %s\n", utils.FormatAmountWithCommas(totalSupply, int(decimals)))
		fmt.Fprintf(out, "share price:  %.7f\n", price)
		fmt.Fprintf(out, "depositors:   %d\n", len(depositors))
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print JSON instead of text")
}
