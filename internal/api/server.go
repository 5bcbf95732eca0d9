// Package api provides the HTTP server for the collaboration and ledger
// engine. Identity authentication happens in the fronting layer; requests
// arrive with the authenticated account id in the X-Account-ID header, and
// all per-project authorization is resolved here through the access policy.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexus-hq/nexusd/internal/app/billing"
	"github.com/nexus-hq/nexusd/internal/app/ledger"
	"github.com/nexus-hq/nexusd/internal/app/nexus"
	"github.com/nexus-hq/nexusd/internal/app/pulse"
	"github.com/nexus-hq/nexusd/internal/app/streak"
	"github.com/nexus-hq/nexusd/internal/app/vault"
	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

// Server is the nexusd HTTP API server.
type Server struct {
	db       *sqlite.DB
	sessions *pulse.Manager
	ledger   *ledger.Service
	vault    *vault.Engine
	billing  *billing.Reconciler
	nexus    *nexus.Service
	streaks  *streak.Service

	digestSecret   string
	metricsEnabled bool
}

// NewServer creates a new API server over the service layer.
func NewServer(db *sqlite.DB, sessions *pulse.Manager, ledgerSvc *ledger.Service, vaultEng *vault.Engine, reconciler *billing.Reconciler, collab *nexus.Service, streaks *streak.Service) *Server {
	return &Server{
		db:       db,
		sessions: sessions,
		ledger:   ledgerSvc,
		vault:    vaultEng,
		billing:  reconciler,
		nexus:    collab,
		streaks:  streaks,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetDigestSecret sets the bearer token guarding the digest endpoints.
func (s *Server) SetDigestSecret(secret string) { s.digestSecret = secret }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts", s.handleSignup)
		r.Post("/projects", s.handleCreateProject)

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/members", s.handleListMembers)
			r.Post("/invites", s.handleInvite)
			r.Delete("/members/{membershipID}", s.handleRemoveMember)
			r.Put("/members/{membershipID}/rate", s.handleSetMemberRate)

			r.Get("/logs", s.handleListLogs)
			r.Post("/logs", s.handleManualEntry)
			r.Post("/logs/{logID}/approve", s.handleApprove)

			r.Post("/tasks", s.handleCreateTask)
		})
		r.Post("/invites/{membershipID}/accept", s.handleAcceptInvite)

		r.Post("/sessions/start", s.handleSessionStart)
		r.Post("/sessions/stop", s.handleSessionStop)
		r.Get("/sessions/active", s.handleSessionActive)

		r.Get("/vault/metrics", s.handleVaultMetrics)
		r.Get("/vault/movements", s.handleListMovements)
		r.Post("/vault/movements", s.handleRecordMovement)
		r.Delete("/vault/movements/{movementID}", s.handlePurgeMovement)
		r.Delete("/vault/movements", s.handlePurgeAll)
		r.Put("/vault/balances", s.handleSetBalances)
		r.Post("/vault/costs", s.handleAddRecurringCost)

		r.Post("/credits/spend", s.handleSpendCredits)
		r.Get("/streak", s.handleStreak)
	})

	// Billing webhooks: raw inbound provider traffic, no account header.
	r.Post("/webhooks/billing", s.handleSignedWebhook)
	r.Post("/webhooks/checkout", s.handleFormWebhook)

	// Read-only digest boundary, bearer-secret guarded.
	r.Route("/digest", func(r chi.Router) {
		r.Use(s.requireDigestSecret)
		r.Get("/overdue-tasks", s.handleOverdueTasks)
		r.Get("/upcoming-costs", s.handleUpcomingCosts)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// actor extracts the authenticated account id set by the fronting layer.
func actor(r *http.Request) string {
	return r.Header.Get("X-Account-ID")
}

// ─── JSON Helpers ───────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured JSON error with a stable machine-readable
// code, so the UI can tell "you can't approve this" from "there's nothing
// to approve".
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": msg,
		},
	})
}

// writeDomainError maps a domain error to its HTTP status and code.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "UNAUTHORIZED", err.Error())
	case errors.Is(err, domain.ErrProLicenseRequired):
		writeError(w, http.StatusForbidden, "PRO_LICENSE_REQUIRED", err.Error())
	case errors.Is(err, domain.ErrSessionConflict):
		writeError(w, http.StatusConflict, "SESSION_CONFLICT", err.Error())
	case errors.Is(err, domain.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, "NO_ACTIVE_SESSION", err.Error())
	case errors.Is(err, domain.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", err.Error())
	case errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
