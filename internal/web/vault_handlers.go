package web

import (
	"context"
	"errors"
	"net/http"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/elys-network/yieldvault/internal/analyzer"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/utils"
	"github.com/elys-network/yieldvault/internal/vault"
)

// VaultSummary is the /api/vault/summary payload.
type VaultSummary struct {
	Address        types.Address     `json:"address"`
	Name           string            `json:"name"`
	Symbol         string            `json:"symbol"`
	Decimals       uint32            `json:"decimals"`
	AssetDecimals  uint32            `json:"asset_decimals"`
	Config         types.VaultConfig `json:"config"`
	TotalAssets    sdkmath.Int       `json:"total_assets"`
	TotalSupply    sdkmath.Int       `json:"total_supply"`
	TotalAssetsFmt string            `json:"total_assets_formatted"`
	TotalSupplyFmt string            `json:"total_supply_formatted"`
	SharePrice     float64           `json:"share_price"`
	DepositorCount int               `json:"depositor_count"`
	LedgerSequence uint32            `json:"ledger_sequence"`
}

// AccountView is the /api/accounts/{address} payload.
type AccountView struct {
	Address     types.Address      `json:"address"`
	Shares      sdkmath.Int        `json:"shares"`
	Assets      sdkmath.Int        `json:"assets"`
	AssetsFmt   string             `json:"assets_formatted"`
	MaxWithdraw sdkmath.Int        `json:"max_withdraw"`
	MaxRedeem   sdkmath.Int        `json:"max_redeem"`
	Events      []types.VaultEvent `json:"recent_events,omitempty"`
}

// PreviewView is the /api/preview/{operation} payload.
type PreviewView struct {
	Operation string      `json:"operation"`
	Input     sdkmath.Int `json:"input"`
	InputUnit string      `json:"input_unit"`
	Output    sdkmath.Int `json:"output"`
	OutputFmt string      `json:"output_formatted"`
	Rounding  string      `json:"rounding"`
}

type previewOp struct {
	// inputShares is true when the amount is denominated in shares.
	inputShares bool
	rounding    string
	run         func(v Vault, ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error)
}

var previewOps = map[string]previewOp{
	"deposit":  {false, "floor", func(v Vault, ctx context.Context, a sdkmath.Int) (sdkmath.Int, error) { return v.PreviewDeposit(ctx, a) }},
	"mint":     {true, "ceil", func(v Vault, ctx context.Context, a sdkmath.Int) (sdkmath.Int, error) { return v.PreviewMint(ctx, a) }},
	"withdraw": {false, "ceil", func(v Vault, ctx context.Context, a sdkmath.Int) (sdkmath.Int, error) { return v.PreviewWithdraw(ctx, a) }},
	"redeem":   {true, "floor", func(v Vault, ctx context.Context, a sdkmath.Int) (sdkmath.Int, error) { return v.PreviewRedeem(ctx, a) }},
}

// handleGetVaultSummary returns vault totals and metadata
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := ws.vaultSummary(ctx)
	if err != nil {
		ws.writeVaultError(w, err, "Failed to retrieve vault summary")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

func (ws *WebServer) vaultSummary(ctx context.Context) (*VaultSummary, error) {
	cfg, err := ws.vault.Config(ctx)
	if err != nil {
		return nil, err
	}
	s := &VaultSummary{Address: ws.vault.Address(), Config: cfg}
	if s.Name, err = ws.vault.Name(ctx); err != nil {
		return nil, err
	}
	if s.Symbol, err = ws.vault.Symbol(ctx); err != nil {
		return nil, err
	}
	if s.Decimals, err = ws.vault.Decimals(ctx); err != nil {
		return nil, err
	}
	s.AssetDecimals = s.Decimals - cfg.DecimalsOffset
	if s.TotalAssets, err = ws.vault.TotalAssets(ctx); err != nil {
		return nil, err
	}
	if s.TotalSupply, err = ws.vault.TotalSupply(ctx); err != nil {
		return nil, err
	}
	depositors, err := ws.vault.Depositors(ctx)
	if err != nil {
		return nil, err
	}
	s.DepositorCount = len(depositors)
	if s.SharePrice, err = analyzer.SharePrice(s.TotalAssets, s.TotalSupply, cfg.DecimalsOffset); err != nil {
		return nil, err
	}
	if s.LedgerSequence, err = ws.ledger.Sequence(); err != nil {
		return nil, err
	}
	s.TotalAssetsFmt = utils.FormatAmountWithCommas(s.TotalAssets, int(s.AssetDecimals))
	s.TotalSupplyFmt = utils.FormatAmountWithCommas(s.TotalSupply, int(s.Decimals))
	return s, nil
}

// handleGetAccount returns one holder's position
func (ws *WebServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := types.Address(mux.Vars(r)["address"])
	if err := address.Validate(); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid address")
		return
	}

	view := AccountView{Address: address}
	var err error
	if view.Shares, err = ws.vault.Balance(ctx, address); err != nil {
		ws.writeVaultError(w, err, "Failed to retrieve balance")
		return
	}
	if view.Assets, err = ws.vault.ConvertToAssets(ctx, view.Shares); err != nil {
		ws.writeVaultError(w, err, "Failed to value shares")
		return
	}
	if view.MaxWithdraw, err = ws.vault.MaxWithdraw(ctx, address); err != nil {
		ws.writeVaultError(w, err, "Failed to compute max withdraw")
		return
	}
	if view.MaxRedeem, err = ws.vault.MaxRedeem(ctx, address); err != nil {
		ws.writeVaultError(w, err, "Failed to compute max redeem")
		return
	}
	if assetDecimals, err := ws.assetDecimals(ctx); err == nil {
		view.AssetsFmt = utils.FormatAmount(view.Assets, int(assetDecimals))
	}
	if ws.journal != nil {
		events, err := ws.journal.EventsByPrincipal(ctx, address, 10)
		if err != nil {
			webLogger.Warn().Err(err).Str("address", address.String()).Msg("Failed to load account events")
		}
		view.Events = events
	}
	ws.writeJSONResponse(w, http.StatusOK, view)
}

// handlePreview simulates deposit, mint, withdraw or redeem at the current price.
// The amount query parameter is a decimal in whole assets or whole shares.
func (ws *WebServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["operation"]
	op, ok := previewOps[name]
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Unknown preview operation")
		return
	}

	shareDecimals, err := ws.vault.Decimals(ctx)
	if err != nil {
		ws.writeVaultError(w, err, "Failed to read decimals")
		return
	}
	assetDecimals, err := ws.assetDecimals(ctx)
	if err != nil {
		ws.writeVaultError(w, err, "Failed to read decimals")
		return
	}
	inDecimals, outDecimals, inUnit := assetDecimals, shareDecimals, "assets"
	if op.inputShares {
		inDecimals, outDecimals, inUnit = shareDecimals, assetDecimals, "shares"
	}

	amount, err := utils.ParseAmount(r.URL.Query().Get("amount"), int(inDecimals))
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	out, err := op.run(ws.vault, ctx, amount)
	if err != nil {
		ws.writeVaultError(w, err, "Preview failed")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, PreviewView{
		Operation: name,
		Input:     amount,
		InputUnit: inUnit,
		Output:    out,
		OutputFmt: utils.FormatAmount(out, int(outDecimals)),
		Rounding:  op.rounding,
	})
}

func (ws *WebServer) assetDecimals(ctx context.Context) (uint32, error) {
	cfg, err := ws.vault.Config(ctx)
	if err != nil {
		return 0, err
	}
	decimals, err := ws.vault.Decimals(ctx)
	if err != nil {
		return 0, err
	}
	return decimals - cfg.DecimalsOffset, nil
}

// writeVaultError maps vault errors onto HTTP statuses
func (ws *WebServer) writeVaultError(w http.ResponseWriter, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vault.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	case errors.Is(err, vault.ErrInvalidAmount), errors.Is(err, vault.ErrMathOverflow):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		webLogger.Error().Err(err).Msg(message)
	}
	ws.writeErrorResponse(w, status, message)
}
