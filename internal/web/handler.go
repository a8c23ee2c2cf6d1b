package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KNICEX/listing-agent/internal/repo"
	"github.com/KNICEX/listing-agent/internal/service/subscription"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type Reconciler interface {
	Reconcile(ctx context.Context) (subscription.Report, error)
}

type RouteSource interface {
	Routes() []subscription.RouteInfo
	States() []subscription.ChannelState
}

// Subscriptions 由 subscription.Manager 实现
type Subscriptions interface {
	Reconciler
	RouteSource
}

type Handler struct {
	channels  repo.ChannelRepo
	exchanges repo.ExchangeRepo
	listings  repo.ListingRepo

	lifecycle  *subscription.Lifecycle
	reconciler Reconciler
	routes     RouteSource
}

func NewHandler(channels repo.ChannelRepo, exchanges repo.ExchangeRepo, listings repo.ListingRepo,
	lifecycle *subscription.Lifecycle, subs Subscriptions) *Handler {
	return &Handler{
		channels:   channels,
		exchanges:  exchanges,
		listings:   listings,
		lifecycle:  lifecycle,
		reconciler: subs,
		routes:     subs,
	}
}

// Router 额外的 handler(如 websocket hub) 由调用方挂载
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.RegisterHTTP(r)
	return r
}

func (h *Handler) RegisterHTTP(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Post("/config/channel/", h.handleAddChannel)
	r.Delete("/config/channel/{id}", h.handleDeleteChannel)
	r.Get("/config/channels/", h.handleListChannels)
	r.Get("/config/channel/{id}", h.handleGetChannel)

	r.Post("/config/exchange/", h.handleAddExchange)
	r.Delete("/config/exchange/{id}", h.handleDeleteExchange)
	r.Get("/config/exchanges/", h.handleListExchanges)
	r.Get("/config/exchange/{id}", h.handleGetExchange)

	r.Get("/tokens/", h.handleTokens)
	r.Get("/tokens/latest/", h.handleLatestTokens)
	r.Get("/tokens/{id}", h.handleGetToken)

	r.Get("/routes/", h.handleRoutes)
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleAddChannel(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeName(w, r)
	if !ok {
		return
	}
	ch, err := h.channels.CreateOrGet(r.Context(), name)
	if err != nil {
		slog.Error("add channel failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to add channel")
		return
	}
	h.reconcile(r.Context())
	writeJSON(w, http.StatusOK, ch)
}

func (h *Handler) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.channels.Delete(r.Context(), id); err != nil {
		slog.Error("delete channel failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete channel")
		return
	}
	h.reconcile(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"message": "Channel deleted successfully."})
}

func (h *Handler) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.FindAll(r.Context())
	if err != nil {
		slog.Error("list channels failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch channels")
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (h *Handler) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ch, err := h.channels.FindById(r.Context(), id)
	if err != nil {
		writeLookupError(w, err, "Channel not found")
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (h *Handler) handleAddExchange(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeName(w, r)
	if !ok {
		return
	}
	ex, err := h.exchanges.CreateOrGet(r.Context(), name)
	if err != nil {
		slog.Error("add exchange failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to add exchange")
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (h *Handler) handleDeleteExchange(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.exchanges.Delete(r.Context(), id); err != nil {
		slog.Error("delete exchange failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete exchange")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Exchange deleted successfully."})
}

func (h *Handler) handleListExchanges(w http.ResponseWriter, r *http.Request) {
	exchanges, err := h.exchanges.FindAll(r.Context())
	if err != nil {
		slog.Error("list exchanges failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch exchanges")
		return
	}
	writeJSON(w, http.StatusOK, exchanges)
}

func (h *Handler) handleGetExchange(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ex, err := h.exchanges.FindById(r.Context(), id)
	if err != nil {
		writeLookupError(w, err, "Exchange not found")
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (h *Handler) handleTokens(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	exchange := strings.TrimSpace(r.URL.Query().Get("exchange"))
	h.writeLatest(w, r, exchange, limit)
}

func (h *Handler) handleLatestTokens(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	h.writeLatest(w, r, "", limit)
}

func (h *Handler) writeLatest(w http.ResponseWriter, r *http.Request, exchange string, limit int) {
	listings, err := h.listings.FindLatest(r.Context(), exchange, limit)
	if err != nil {
		slog.Error("fetch tokens failed", "exchange", exchange, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch tokens")
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	listing, err := h.listings.FindById(r.Context(), id)
	if err != nil {
		writeLookupError(w, err, "Token not found")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

type routesResponse struct {
	State    subscription.RunState       `json:"state"`
	Since    time.Time                   `json:"since"`
	Routes   []subscription.RouteInfo    `json:"routes"`
	Channels []subscription.ChannelState `json:"channels"`
}

func (h *Handler) handleRoutes(w http.ResponseWriter, r *http.Request) {
	state, since := h.lifecycle.State()
	writeJSON(w, http.StatusOK, routesResponse{
		State:    state,
		Since:    since,
		Routes:   h.routes.Routes(),
		Channels: h.routes.States(),
	})
}

// reconcile 监听器运行中才对账, 失败只记录日志
func (h *Handler) reconcile(ctx context.Context) {
	if !h.lifecycle.IsRunning() {
		return
	}
	report, err := h.reconciler.Reconcile(ctx)
	if err != nil {
		slog.Warn("reconcile after config change failed", "error", err)
		return
	}
	slog.Info("reconciled after config change", "active", len(report.Active), "failed", len(report.Failed))
}

func decodeName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name is required")
		return "", false
	}
	return name, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxLimit {
		writeError(w, http.StatusUnprocessableEntity, "limit must be between 1 and 100")
		return 0, false
	}
	return limit, true
}

func writeLookupError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	slog.Error("lookup failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}
