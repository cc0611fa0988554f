// Package admin exposes the operator HTTP surface: health, metrics, ledger
// inspection, rollback, and world currency conversion.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/louisbranch/meshmush/internal/economy"
	"github.com/louisbranch/meshmush/internal/storage"
	"github.com/louisbranch/meshmush/internal/world"
)

var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshmush_http_requests_total",
		Help: "Total admin HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meshmush_http_request_duration_seconds",
		Help:    "Admin request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Handler serves the admin API.
type Handler struct {
	store  storage.Store
	engine *economy.Engine
	system world.CurrencySystem
}

// NewHandler creates an admin handler.
func NewHandler(store storage.Store, engine *economy.Engine, system world.CurrencySystem) *Handler {
	return &Handler{store: store, engine: engine, system: system}
}

// Router builds the admin route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/players/{username}", h.GetPlayer).Methods("GET")
	apiV1.HandleFunc("/players/{username}/transactions", h.PlayerTransactions).Methods("GET")
	apiV1.HandleFunc("/transactions/parked", h.ParkedTransactions).Methods("GET")
	apiV1.HandleFunc("/transactions/{id}", h.GetTransaction).Methods("GET")
	apiV1.HandleFunc("/transactions/{id}/rollback", h.RollbackTransaction).Methods("POST")
	apiV1.HandleFunc("/transfers", h.CreateTransfer).Methods("POST")
	apiV1.HandleFunc("/grants", h.CreateGrant).Methods("POST")
	apiV1.HandleFunc("/convert", h.ConvertWorld).Methods("POST")
	return r
}

// playerView is the admin projection of a player record.
type playerView struct {
	Username    string               `json:"username"`
	DisplayName string               `json:"display_name"`
	OnHand      world.CurrencyAmount `json:"on_hand"`
	Banked      world.CurrencyAmount `json:"banked"`
	// Display strings use the active currency configuration.
	OnHandDisplay string            `json:"on_hand_display"`
	BankedDisplay string            `json:"banked_display"`
	Stacks        []world.ItemStack `json:"inventory,omitempty"`
}

// GetPlayer returns a player's balances and inventory.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", "/players/{username}"))
	defer timer.ObserveDuration()

	username := mux.Vars(r)["username"]
	player, err := h.store.GetPlayer(r.Context(), username)
	if err != nil {
		h.respondStoreError(w, err, "GET", "/players/{username}")
		return
	}
	h.respondJSON(w, http.StatusOK, playerView{
		Username:      player.Username,
		DisplayName:   player.DisplayName,
		OnHand:        player.OnHand,
		Banked:        player.Banked,
		OnHandDisplay: world.FormatCurrency(player.OnHand, h.system),
		BankedDisplay: world.FormatCurrency(player.Banked, h.system),
		Stacks:        player.Stacks,
	}, "GET", "/players/{username}")
}

// PlayerTransactions returns a page of a player's ledger history, newest
// first.
func (h *Handler) PlayerTransactions(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", "/players/{username}/transactions"))
	defer timer.ObserveDuration()

	username := mux.Vars(r)["username"]
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	entries, err := h.engine.PlayerTransactions(r.Context(), username, page, pageSize)
	if err != nil {
		h.respondStoreError(w, err, "GET", "/players/{username}/transactions")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"page":         page,
		"transactions": entries,
	}, "GET", "/players/{username}/transactions")
}

// ParkedTransactions lists the ledger entries crash recovery set aside as
// unreplayable. Operators resolve these by hand.
func (h *Handler) ParkedTransactions(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", "/transactions/parked"))
	defer timer.ObserveDuration()

	entries, err := h.store.ParkedEntries(r.Context())
	if err != nil {
		h.respondStoreError(w, err, "GET", "/transactions/parked")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"transactions": entries,
	}, "GET", "/transactions/parked")
}

// GetTransaction returns one ledger entry by id.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", "/transactions/{id}"))
	defer timer.ObserveDuration()

	entry, err := h.store.GetEntry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondStoreError(w, err, "GET", "/transactions/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, entry, "GET", "/transactions/{id}")
}

// RollbackTransaction reverses a committed ledger entry.
func (h *Handler) RollbackTransaction(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/transactions/{id}/rollback"))
	defer timer.ObserveDuration()

	reversal, err := h.engine.RollbackTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		switch {
		case errors.Is(err, economy.ErrTransactionNotFound):
			h.respondError(w, http.StatusNotFound, "Transaction not found", "POST", "/transactions/{id}/rollback")
		case errors.Is(err, economy.ErrAlreadyReversed):
			h.respondError(w, http.StatusConflict, "Transaction already reversed", "POST", "/transactions/{id}/rollback")
		case errors.Is(err, economy.ErrNotCommitted):
			h.respondError(w, http.StatusConflict, "Transaction is not committed", "POST", "/transactions/{id}/rollback")
		case errors.Is(err, world.ErrInsufficientFunds), errors.Is(err, economy.ErrInsufficientItems):
			h.respondError(w, http.StatusUnprocessableEntity, err.Error(), "POST", "/transactions/{id}/rollback")
		default:
			h.respondError(w, http.StatusInternalServerError, err.Error(), "POST", "/transactions/{id}/rollback")
		}
		return
	}
	h.respondJSON(w, http.StatusCreated, reversal, "POST", "/transactions/{id}/rollback")
}

type transferRequest struct {
	From   string                  `json:"from"`
	To     string                  `json:"to"`
	Amount world.CurrencyAmount    `json:"amount"`
	Reason world.TransactionReason `json:"reason"`
}

// CreateTransfer moves currency between two players.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/transfers"))
	defer timer.ObserveDuration()

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/transfers")
		return
	}
	if req.Reason == "" {
		req.Reason = world.ReasonAdmin
	}

	entry, err := h.engine.TransferCurrency(r.Context(), req.From, req.To, req.Amount, req.Reason)
	if err != nil {
		h.respondEngineError(w, err, "POST", "/transfers")
		return
	}
	h.respondJSON(w, http.StatusCreated, entry, "POST", "/transfers")
}

type grantRequest struct {
	To     string                  `json:"to"`
	Amount world.CurrencyAmount    `json:"amount"`
	Reason world.TransactionReason `json:"reason"`
}

// CreateGrant creates currency on a player's balance.
func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/grants"))
	defer timer.ObserveDuration()

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/grants")
		return
	}
	if req.Reason == "" {
		req.Reason = world.ReasonAdmin
	}

	entry, err := h.engine.GrantCurrency(r.Context(), req.To, req.Amount, req.Reason)
	if err != nil {
		h.respondEngineError(w, err, "POST", "/grants")
		return
	}
	h.respondJSON(w, http.StatusCreated, entry, "POST", "/grants")
}

type convertRequest struct {
	Target world.CurrencyKind `json:"target"`
	DryRun bool               `json:"dry_run"`
}

// ConvertWorld converts every stored balance to the target currency system.
func (h *Handler) ConvertWorld(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/convert"))
	defer timer.ObserveDuration()

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/convert")
		return
	}
	if req.Target != world.CurrencyDecimal && req.Target != world.CurrencyMultiTier {
		h.respondError(w, http.StatusUnprocessableEntity, "Unknown currency kind", "POST", "/convert")
		return
	}

	report, err := h.engine.ConvertWorld(r.Context(), req.Target, req.DryRun)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), "POST", "/convert")
		return
	}
	h.respondJSON(w, http.StatusOK, report, "POST", "/convert")
}

func (h *Handler) respondEngineError(w http.ResponseWriter, err error, method, endpoint string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "Player not found", method, endpoint)
	case errors.Is(err, world.ErrNonPositiveAmount):
		h.respondError(w, http.StatusUnprocessableEntity, "Amount must be positive", method, endpoint)
	case errors.Is(err, economy.ErrSameParty):
		h.respondError(w, http.StatusUnprocessableEntity, "Cannot transfer to self", method, endpoint)
	case errors.Is(err, world.ErrInsufficientFunds):
		h.respondError(w, http.StatusUnprocessableEntity, "Insufficient funds", method, endpoint)
	case errors.Is(err, world.ErrCurrencyMismatch):
		h.respondError(w, http.StatusUnprocessableEntity, "Currency systems do not match", method, endpoint)
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error(), method, endpoint)
	}
}

func (h *Handler) respondStoreError(w http.ResponseWriter, err error, method, endpoint string) {
	var corrupt *storage.CorruptRecordError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "Not Found", method, endpoint)
	case errors.As(err, &corrupt):
		h.respondError(w, http.StatusInternalServerError, corrupt.Error(), method, endpoint)
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error(), method, endpoint)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload any, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
