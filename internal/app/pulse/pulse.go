// Package pulse owns the exclusive work-session state machine:
// none → active → (converted to a time-log entry) → none.
// Uniqueness is arbitrated by the storage layer; this service never
// check-then-acts on session existence.
package pulse

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexus-hq/nexusd/internal/app/access"
	"github.com/nexus-hq/nexusd/internal/app/streak"
	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/observability"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

// Manager starts and stops pulse sessions.
type Manager struct {
	db      *sqlite.DB
	policy  *access.Policy
	streaks *streak.Service

	now func() time.Time
}

// New creates a session manager. streaks may be nil to disable rewards.
func New(db *sqlite.DB, policy *access.Policy, streaks *streak.Service) *Manager {
	return &Manager{db: db, policy: policy, streaks: streaks, now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Start opens the account's exclusive session on the project. A second
// start anywhere — another tab, another device, another project — fails
// with ErrSessionConflict straight from the storage constraint.
func (m *Manager) Start(accountID, projectID string) (*domain.PulseSession, error) {
	if _, err := m.policy.Require(projectID, accountID, domain.Role.CanLogTime); err != nil {
		return nil, err
	}

	s := domain.PulseSession{
		AccountID: accountID,
		ProjectID: projectID,
		StartedAt: m.now(),
	}
	if err := m.db.InsertPulseSession(s); err != nil {
		if err == domain.ErrSessionConflict {
			observability.SessionConflicts.Inc()
		}
		return nil, err
	}
	observability.SessionsStarted.Inc()
	return &s, nil
}

// Stop closes the active session and converts it into a time-log entry.
// Minutes are floored whole minutes of elapsed time. An architect's entry
// is approved immediately with cost impact at the project's hourly rate;
// anyone else's is pending with zero cost impact until approval.
func (m *Manager) Stop(accountID, projectID, description string, completedTaskIDs []string) (*domain.TimeLogEntry, error) {
	session, err := m.db.GetPulseSession(accountID)
	if err != nil {
		return nil, err
	}
	if session.ProjectID != projectID {
		return nil, domain.ErrNoActiveSession
	}

	now := m.now()
	minutes := int(now.Sub(session.StartedAt) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}

	role, err := m.policy.ResolveRole(projectID, accountID)
	if err != nil {
		return nil, err
	}

	entry := domain.TimeLogEntry{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		AccountID:   accountID,
		Minutes:     minutes,
		Description: description,
		Status:      domain.TimeLogPending,
	}
	if role == domain.RoleArchitect {
		project, err := m.db.GetProject(projectID)
		if err != nil {
			return nil, err
		}
		entry.Status = domain.TimeLogApproved
		entry.CostImpact = domain.CostImpact(minutes, project.HourlyRate)
	}

	// The DELETE arbitrates racing stops: whoever takes the session row
	// converts it into the one time-log entry, everyone else lost it.
	deleted, err := m.db.DeletePulseSession(accountID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, domain.ErrNoActiveSession
	}

	if err := m.db.InsertTimeLog(entry); err != nil {
		return nil, err
	}
	if len(completedTaskIDs) > 0 {
		if err := m.db.MarkTasksCompleted(projectID, completedTaskIDs); err != nil {
			return nil, err
		}
	}
	observability.SessionsStopped.Inc()

	if m.streaks != nil {
		if _, err := m.streaks.Touch(accountID, now); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}

// Active returns the account's current session, or ErrNoActiveSession.
func (m *Manager) Active(accountID string) (*domain.PulseSession, error) {
	return m.db.GetPulseSession(accountID)
}
