package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// Vault is the read side of the vault served by the API.
type Vault interface {
	Address() types.Address
	Config(ctx context.Context) (types.VaultConfig, error)
	Name(ctx context.Context) (string, error)
	Symbol(ctx context.Context) (string, error)
	Decimals(ctx context.Context) (uint32, error)
	TotalAssets(ctx context.Context) (sdkmath.Int, error)
	TotalSupply(ctx context.Context) (sdkmath.Int, error)
	Balance(ctx context.Context, holder types.Address) (sdkmath.Int, error)
	Depositors(ctx context.Context) ([]types.Address, error)
	ConvertToAssets(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error)
	PreviewDeposit(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error)
	PreviewMint(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error)
	PreviewWithdraw(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error)
	PreviewRedeem(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error)
	MaxWithdraw(ctx context.Context, owner types.Address) (sdkmath.Int, error)
	MaxRedeem(ctx context.Context, owner types.Address) (sdkmath.Int, error)
}

// Ledger is the host ledger as seen by the health check.
type Ledger interface {
	Sequence() (uint32, error)
	Ping() error
}

// Journal is the optional event and harvest history.
type Journal interface {
	RecentEvents(ctx context.Context, kind types.EventKind, limit int) ([]types.VaultEvent, error)
	EventsByPrincipal(ctx context.Context, address types.Address, limit int) ([]types.VaultEvent, error)
	EventByID(ctx context.Context, id string) (*types.VaultEvent, error)
	RecentHarvests(ctx context.Context, limit int) ([]types.HarvestRecord, error)
	HarvestSummary(ctx context.Context) (*types.HarvestSummary, error)
	Healthy() error
}

// Config holds the dependencies of the web server. Journal may be nil.
type Config struct {
	Port    string
	Vault   Vault
	Ledger  Ledger
	Journal Journal
}

// WebServer serves the read-only vault API
type WebServer struct {
	router  *mux.Router
	port    string
	vault   Vault
	ledger  Ledger
	journal Journal
	started time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) *WebServer {
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		vault:   cfg.Vault,
		ledger:  cfg.Ledger,
		journal: cfg.Journal,
		started: time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/vault/depositors", ws.handleGetDepositors).Methods("GET")
	api.HandleFunc("/accounts/{address}", ws.handleGetAccount).Methods("GET")
	api.HandleFunc("/preview/{operation}", ws.handlePreview).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/events/{id}", ws.handleGetEvent).Methods("GET")
	api.HandleFunc("/harvests", ws.handleGetHarvests).Methods("GET")
	api.HandleFunc("/harvests/summary", ws.handleGetHarvestSummary).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler { return ws.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		webLogger.Info().Msg("Shutting down web server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	ledgerHealthy := ws.ledger.Ping() == nil
	if !ledgerHealthy {
		hasErrors = true
	}
	sequence, _ := ws.ledger.Sequence()

	journalStatus := "disabled"
	if ws.journal != nil {
		journalStatus = "healthy"
		if err := ws.journal.Healthy(); err != nil {
			journalStatus = "unhealthy"
			hasErrors = true
		}
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":           runtime.Version(),
			"goroutines_count":  runtime.NumGoroutine(),
			"total_alloc_bytes": memStats.TotalAlloc,
			"alloc_bytes":       memStats.Alloc,
			"sys_bytes":         memStats.Sys,
			"gc_cycles":         memStats.NumGC,
			"uptime_seconds":    int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "yieldvault",
			"version": "1.0.0",
		},
		"vault_status": map[string]interface{}{
			"ledger_healthy":  ledgerHealthy,
			"ledger_sequence": sequence,
			"journal":         journalStatus,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}
	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetDepositors returns every principal that ever received shares
func (ws *WebServer) handleGetDepositors(w http.ResponseWriter, r *http.Request) {
	depositors, err := ws.vault.Depositors(r.Context())
	if err != nil {
		ws.writeVaultError(w, err, "Failed to retrieve depositors")
		return
	}
	if depositors == nil {
		depositors = []types.Address{}
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"depositors": depositors,
		"count":      len(depositors),
	})
}

// handleGetEvents returns recent journal events, optionally filtered by kind or address
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if !ws.requireJournal(w) {
		return
	}
	limit := parseLimit(r)
	kind := types.EventKind(r.URL.Query().Get("kind"))

	var events []types.VaultEvent
	var err error
	if address := r.URL.Query().Get("address"); address != "" {
		if verr := types.Address(address).Validate(); verr != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid address")
			return
		}
		events, err = ws.journal.EventsByPrincipal(r.Context(), types.Address(address), limit)
	} else {
		events, err = ws.journal.RecentEvents(r.Context(), kind, limit)
	}
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	if events == nil {
		events = []types.VaultEvent{}
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	})
}

// handleGetEvent returns a specific event by ID
func (ws *WebServer) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if !ws.requireJournal(w) {
		return
	}
	id := mux.Vars(r)["id"]

	event, err := ws.journal.EventByID(r.Context(), id)
	if err != nil {
		webLogger.Error().Err(err).Str("eventId", id).Msg("Failed to get event")
		ws.writeErrorResponse(w, http.StatusNotFound, "Event not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, event)
}

// handleGetHarvests returns recent harvester cycles
func (ws *WebServer) handleGetHarvests(w http.ResponseWriter, r *http.Request) {
	if !ws.requireJournal(w) {
		return
	}
	limit := parseLimit(r)
	harvests, err := ws.journal.RecentHarvests(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent harvests")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve harvests")
		return
	}
	if harvests == nil {
		harvests = []types.HarvestRecord{}
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"harvests": harvests,
		"count":    len(harvests),
		"limit":    limit,
	})
}

// handleGetHarvestSummary returns aggregated harvest statistics
func (ws *WebServer) handleGetHarvestSummary(w http.ResponseWriter, r *http.Request) {
	if !ws.requireJournal(w) {
		return
	}
	summary, err := ws.journal.HarvestSummary(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get harvest summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve harvest summary")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

func (ws *WebServer) requireJournal(w http.ResponseWriter) bool {
	if ws.journal == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Event journal is not configured")
		return false
	}
	return true
}

func parseLimit(r *http.Request) int {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}
	return limit
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
