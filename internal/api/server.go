package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atmx/dealer/internal/metrics"
	"github.com/atmx/dealer/internal/price"
	"github.com/atmx/dealer/internal/store"
)

const (
	defaultOrdersLimit = 20
	maxOrdersLimit     = 100
)

// Service holds the read-only views the HTTP handlers serve.
type Service struct {
	hub    *Hub
	prices *price.Cache
	store  store.Store
	status func() any
}

// NewService creates the HTTP service. status returns the latest cycle
// outcome, or nil before the first cycle.
func NewService(hub *Hub, prices *price.Cache, st store.Store, status func() any) *Service {
	return &Service{hub: hub, prices: prices, store: st, status: status}
}

// Router builds the chi router with the shared middleware stack.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	r.Get("/health", s.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for dealer events. Registered outside the
		// timeout middleware, which would cut long-lived connections.
		r.Get("/ws", s.hub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/price", s.GetPrice)
			r.Get("/status", s.GetStatus)
			r.Get("/orders", s.ListOrders)
		})
	})
	return r
}

// Health handles GET /health.
func (s *Service) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "dealer"})
}

// GetPrice handles GET /api/v1/price.
func (s *Service) GetPrice(w http.ResponseWriter, _ *http.Request) {
	q, ok := s.prices.Get()
	if !ok {
		writeError(w, "no price yet", http.StatusServiceUnavailable)
		return
	}
	_, err := s.prices.Mid()
	writeJSON(w, http.StatusOK, struct {
		price.Quote
		Stale bool `json:"stale"`
	}{Quote: q, Stale: err != nil})
}

// GetStatus handles GET /api/v1/status.
func (s *Service) GetStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.status()
	if st == nil {
		writeError(w, "no cycle completed yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListOrders handles GET /api/v1/orders?limit=N.
func (s *Service) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultOrdersLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxOrdersLimit)
	}

	orders, err := s.store.ListRecentOrders(r.Context(), limit)
	if err != nil {
		writeError(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
