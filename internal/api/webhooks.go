package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nexus-hq/nexusd/internal/app/billing"
	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Billing Webhooks ───────────────────────────────────────────────────────
// Status codes drive provider retry behavior: 400 only for payloads that
// can never succeed, 500 for anything that might on redelivery (the event
// id is released when application fails, so the retry applies cleanly).

// handleSignedWebhook receives HMAC-signed subscription events. The raw body
// is what the provider signed, so it must be read before any parsing.
func (s *Server) handleSignedWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "unreadable body")
		return
	}
	if err := s.billing.HandleSigned(body, r.Header.Get("X-Signature")); err != nil {
		writeWebhookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFormWebhook receives form-encoded checkout notifications.
func (s *Server) handleFormWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid form body")
		return
	}
	if err := s.billing.HandleForm(r.PostForm); err != nil {
		writeWebhookError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeWebhookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", err.Error())
	case errors.Is(err, billing.ErrPayload):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
