// Package observability holds the Prometheus metrics for the collaboration
// and ledger engine. Counters are registered once via promauto and shared
// by the services; the API server exposes them at /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Session Metrics ────────────────────────────────────────────────────────

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_sessions_started_total",
		Help: "Pulse sessions started.",
	})

	SessionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_session_conflicts_total",
		Help: "Session starts rejected because one was already active.",
	})

	SessionsStopped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_sessions_stopped_total",
		Help: "Pulse sessions stopped and converted into time-log entries.",
	})
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

var (
	LogsApproved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_time_logs_approved_total",
		Help: "Time-log entries transitioned to approved.",
	})

	ApprovalsDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_approvals_denied_total",
		Help: "Approval attempts rejected by the access policy.",
	})
)

// ─── Billing Metrics ────────────────────────────────────────────────────────

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_webhook_events_total",
		Help: "Billing webhook events applied, by provider and kind.",
	}, []string{"provider", "kind"})

	WebhookDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_webhook_duplicates_total",
		Help: "Billing webhook deliveries skipped as already processed.",
	})

	WebhookRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_webhook_rejected_total",
		Help: "Billing webhook deliveries rejected for bad authenticity.",
	})
)

// ─── Vault Metrics ──────────────────────────────────────────────────────────

var (
	VaultMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_vault_movements_total",
		Help: "Vault movements recorded, by vault and direction.",
	}, []string{"vault", "direction"})
)
