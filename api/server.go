// Package api exposes the credit ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/credits"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/types"
)

// Server is the credit ledger HTTP API.
type Server struct {
	ledger  *credits.Ledger
	logger  *slog.Logger
	metrics http.Handler
}

// NewServer creates a new API server.
func NewServer(l *credits.Ledger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ledger: l, logger: logger}
}

// SetMetricsHandler mounts h at /metrics.
func (s *Server) SetMetricsHandler(h http.Handler) { s.metrics = h }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/accounts/{id}", func(r chi.Router) {
		r.Get("/", s.handleAccount)
		r.Post("/allocate", s.handleAllocate)
		r.Get("/balance", s.handleBalance)
		r.Post("/spend", s.handleSpend)
		r.Get("/check", s.handleCheck)
		r.Post("/purchases", s.handlePurchase)
		r.Post("/corrections", s.handleCorrection)
		r.Put("/plan", s.handleChangePlan)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/audit", s.handleAudit)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return r
}

type tierRequest struct {
	Tier plan.Tier `json:"tier"`
}

type amountRequest struct {
	Amount types.Credits `json:"amount"`
}

type purchaseRequest struct {
	Amount      types.Credits `json:"amount"`
	ExternalRef string        `json:"external_ref"`
}

type balanceResponse struct {
	AccountID string        `json:"account_id"`
	Balance   types.Credits `json:"balance"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Store().Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.ledger.Account(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if r.ContentLength != 0 {
		if !decode(w, r, &req) {
			return
		}
	}
	a, err := s.ledger.Allocate(r.Context(), chi.URLParam(r, "id"), req.Tier)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	balance, err := s.ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{AccountID: accountID, Balance: balance})
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.ledger.Spend(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be an integer")
		return
	}
	res, err := s.ledger.Check(r.Context(), chi.URLParam(r, "id"), types.Credits(amount))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.ledger.AddPurchasedCredits(r.Context(), chi.URLParam(r, "id"), req.Amount, req.ExternalRef)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req credits.Correction
	if !decode(w, r, &req) {
		return
	}
	a, err := s.ledger.CorrectBalance(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.ledger.ChangePlan(r.Context(), chi.URLParam(r, "id"), req.Tier)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	txs, err := s.ledger.ListRecentTransactions(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.Audit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// fail maps a ledger error to its HTTP status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *credits.InsufficientCreditsError
	var invalid credits.ValidationError

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error": map[string]any{
				"message":   err.Error(),
				"type":      "insufficient_credits",
				"requested": insufficient.Requested,
				"available": insufficient.Available,
			},
		})
	case credits.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, credits.ErrDuplicatePurchase):
		writeError(w, http.StatusConflict, err.Error())
	case credits.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalid),
		errors.Is(err, credits.ErrInvalidAmount),
		errors.Is(err, credits.ErrInvalidPlanTier),
		errors.Is(err, credits.ErrBalanceFloor):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("credits api request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    http.StatusText(status),
		},
	})
}
