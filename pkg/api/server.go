package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantfin/papertrade/params"
	"github.com/quantfin/papertrade/pkg/auth"
	"github.com/quantfin/papertrade/pkg/broadcast"
	"github.com/quantfin/papertrade/pkg/executor"
	"github.com/quantfin/papertrade/pkg/feed"
	"github.com/quantfin/papertrade/pkg/ledger"
)

// Server handles REST API and WebSocket connections
type Server struct {
	feed        *feed.PriceFeed
	executor    *executor.OrderExecutor
	broadcaster *broadcast.Broadcaster
	verifier    auth.Verifier

	router *mux.Router
	cors   *cors.Cors
	logger *zap.SugaredLogger
}

// NewServer wires the API surface over the core components.
func NewServer(cfg params.Server, pf *feed.PriceFeed, exec *executor.OrderExecutor, bc *broadcast.Broadcaster, verifier auth.Verifier, logger *zap.SugaredLogger) *Server {
	s := &Server{
		feed:        pf,
		executor:    exec,
		broadcaster: bc,
		verifier:    verifier,
		router:      mux.NewRouter(),
		logger:      logger,
	}

	s.cors = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Price query
	api.HandleFunc("/prices", s.handleGetPrices).Methods("GET")

	// Authenticated account surface
	api.HandleFunc("/account", s.requireAuth(s.handleGetDashboard)).Methods("GET")
	api.HandleFunc("/orders", s.requireAuth(s.handlePlaceOrder)).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the fully wrapped handler for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.feed.Snapshot())
}

func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	acc, err := s.executor.Dashboard(principalFrom(r))
	if err != nil {
		s.respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, DashboardResponse{
		Balance: acc.Balance,
		Orders:  acc.Orders,
	})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := s.executor.PlaceOrder(principalFrom(r), req)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, PlaceOrderResponse{
		Message: "order placed",
		Order:   order,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondCoreError maps core error kinds onto HTTP statuses.
func (s *Server) respondCoreError(w http.ResponseWriter, err error) {
	var vErr *executor.ValidationError

	switch {
	case errors.As(err, &vErr):
		respondError(w, http.StatusBadRequest, "invalid order", vErr.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, "account not found", "")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		respondError(w, http.StatusUnprocessableEntity, "insufficient balance", "")
	default:
		s.logger.Errorw("request_failed", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
