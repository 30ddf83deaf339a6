package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mohamedkhairy/storefront-realtime/internal/config"
	"github.com/mohamedkhairy/storefront-realtime/internal/realtime"
	"github.com/mohamedkhairy/storefront-realtime/internal/storage"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxEventBodyBytes = 1 << 20
	readyPingTimeout  = 2 * time.Second
)

type callerKey struct{}

func withCaller(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, callerKey{}, subject)
}

// CallerFromContext returns the authenticated API caller, if any
func CallerFromContext(ctx context.Context) string {
	if subject, ok := ctx.Value(callerKey{}).(string); ok {
		return subject
	}
	return ""
}

// eventRequest is the body of the broadcast endpoints
type eventRequest struct {
	Type             string          `json:"type"`
	Data             json.RawMessage `json:"data,omitempty"`
	UserID           string          `json:"userId,omitempty"`
	ExcludeSessionID string          `json:"excludeSessionId,omitempty"`
}

// Handler serves the websocket endpoint, probes and the broadcast API
type Handler struct {
	hub      *realtime.Hub
	auth     *realtime.AuthManager
	redis    storage.RedisClient
	cfg      config.ServerConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a handler for hub. redis may be nil when no
// Redis-backed component is configured.
func NewHandler(hub *realtime.Hub, auth *realtime.AuthManager, redis storage.RedisClient, cfg config.ServerConfig) *Handler {
	h := &Handler{
		hub:   hub,
		auth:  auth,
		redis: redis,
		cfg:   cfg,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

// Router builds the HTTP routes
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(ChainMiddleware(
		RecoveryMiddleware(),
		RequestIDMiddleware(),
		LoggingMiddleware(),
		CORSMiddleware(h.cfg.AllowedOrigins),
	)))

	router.HandleFunc("/ws", h.ServeWS).Methods(http.MethodGet)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	router.HandleFunc("/live", h.Live).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(
		mux.MiddlewareFunc(RateLimitMiddleware(h.cfg.APIRateLimitRPS, h.cfg.APIRateBurst)),
		mux.MiddlewareFunc(AuthMiddleware(h.auth)),
	)
	api.HandleFunc("/stores/{storeId}/events", h.SendToStore).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/users/{userId}/events", h.SendToUser).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions/{sessionId}/events", h.SendToSession).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/events", h.SendToAll).Methods(http.MethodPost, http.MethodOptions)

	return router
}

// ServeWS handles GET /ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !h.hub.Running() {
		respondWithError(w, http.StatusServiceUnavailable, "Server is shutting down")
		return
	}

	if h.cfg.MaxConnections > 0 && h.hub.Registry().Count() >= h.cfg.MaxConnections {
		logger.Warn("Max connections reached, rejecting new connection",
			logger.Int("max_connections", h.cfg.MaxConnections),
		)
		respondWithError(w, http.StatusServiceUnavailable, "Max connections reached")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		logger.Warn("Failed to upgrade connection",
			logger.ErrorField(err),
			logger.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	h.hub.ServeConn(ws)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if originAllowed(origin, h.cfg.AllowedOrigins) {
		return true
	}
	logger.Warn("Rejected websocket origin", logger.String("origin", origin))
	return false
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.hub.GetHealth())
}

// Stats handles GET /stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.hub.GetStats())
}

// Live handles GET /live
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Ready handles GET /ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.hub.Running() {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyPingTimeout)
		defer cancel()
		if err := h.redis.Ping(ctx); err != nil {
			logger.Warn("Readiness check failed, redis unreachable", logger.ErrorField(err))
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "redis unreachable",
			})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// SendToStore handles POST /api/v1/stores/{storeId}/events
func (h *Handler) SendToStore(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, realtime.ScopeStore, mux.Vars(r)["storeId"])
}

// SendToUser handles POST /api/v1/users/{userId}/events
func (h *Handler) SendToUser(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, realtime.ScopeUser, mux.Vars(r)["userId"])
}

// SendToSession handles POST /api/v1/sessions/{sessionId}/events
func (h *Handler) SendToSession(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, realtime.ScopeSession, mux.Vars(r)["sessionId"])
}

// SendToAll handles POST /api/v1/events
func (h *Handler) SendToAll(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, realtime.ScopeAll, "")
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, scope realtime.Scope, target string) {
	var req eventRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxEventBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	env := realtime.Envelope{
		Scope:            scope,
		Target:           target,
		Type:             req.Type,
		Data:             req.Data,
		UserID:           req.UserID,
		ExcludeSessionID: req.ExcludeSessionID,
	}

	delivered, err := h.hub.Dispatch(env)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.WithContext(r.Context()).Debug("Event dispatched via API",
		logger.String("scope", string(scope)),
		logger.String("target", target),
		logger.String("type", req.Type),
		logger.String("caller", CallerFromContext(r.Context())),
		logger.Int("delivered", delivered),
	)

	respondWithJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}
