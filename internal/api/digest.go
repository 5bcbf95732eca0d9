package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// ─── Digest Boundary ────────────────────────────────────────────────────────

// requireDigestSecret guards the read-only digest endpoints with a bearer
// token. With no secret configured the endpoints are disabled outright.
func (s *Server) requireDigestSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.digestSecret == "" {
			writeError(w, http.StatusServiceUnavailable, "DIGEST_DISABLED", "digest secret not configured")
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.digestSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid digest token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleOverdueTasks lists a project's incomplete tasks past their due date.
func (s *Server) handleOverdueTasks(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "project_id is required")
		return
	}
	tasks, err := s.db.ListOverdueTasks(projectID, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// handleUpcomingCosts lists an account's recurring costs due within the
// window, default seven days.
func (s *Server) handleUpcomingCosts(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "account_id is required")
		return
	}
	within := 7 * 24 * time.Hour
	if d := r.URL.Query().Get("within"); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "within must be a duration")
			return
		}
		within = parsed
	}
	costs, err := s.vault.UpcomingCosts(accountID, within, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, costs)
}
