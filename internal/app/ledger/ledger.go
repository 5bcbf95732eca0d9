// Package ledger owns time-log entries: creation, the pending/approved
// state, per-member rate lookup, and cost computation. Approval is a
// privileged operation — an architect mutating another account's row —
// and goes through the privops escalation path.
package ledger

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/app/access"
	"github.com/nexus-hq/nexusd/internal/app/privops"
	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/observability"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

// Service is the time ledger.
type Service struct {
	db     *sqlite.DB
	policy *access.Policy
	ops    *privops.Ops
}

// New creates the ledger service.
func New(db *sqlite.DB, policy *access.Policy, ops *privops.Ops) *Service {
	return &Service{db: db, policy: policy, ops: ops}
}

// Approve transitions a pending entry to approved, computing its cost
// impact from the contributing member's hourly rate (0 when unset, by
// design — approval succeeds with zero cost). Approving an already
// approved entry is a no-op: status stays approved, cost is not doubled.
func (s *Service) Approve(projectID, logID, actingAccountID string) (*domain.TimeLogEntry, error) {
	entry, err := s.db.GetTimeLog(logID)
	if err != nil {
		return nil, err
	}
	if entry.ProjectID != projectID {
		return nil, domain.ErrNotFound
	}

	rate := s.memberRate(projectID, entry.AccountID)
	cost := domain.CostImpact(entry.Minutes, rate)

	applied, err := s.ops.ApproveTimeLog(projectID, logID, actingAccountID, cost)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			observability.ApprovalsDenied.Inc()
		}
		return nil, err
	}
	if applied {
		observability.LogsApproved.Inc()
	}
	return s.db.GetTimeLog(logID)
}

// memberRate returns the contributing member's rate override, defaulting
// to zero when no accepted membership or no override exists.
func (s *Service) memberRate(projectID, accountID string) decimal.Decimal {
	m, err := s.db.GetAcceptedMembership(projectID, accountID)
	if err != nil || m.MemberHourlyRate == nil {
		return decimal.Zero
	}
	return *m.MemberHourlyRate
}

// SetMemberRate stores the rate override used by future approvals. It does
// not recompute past approved entries.
func (s *Service) SetMemberRate(projectID, membershipID string, rate decimal.Decimal, actingAccountID string) error {
	if _, err := s.policy.Require(projectID, actingAccountID, domain.Role.CanSetRates); err != nil {
		return err
	}
	m, err := s.db.GetMembership(membershipID)
	if err != nil {
		return err
	}
	if m.ProjectID != projectID {
		return domain.ErrNotFound
	}
	return s.db.SetMemberRate(membershipID, rate)
}

// ManualEntry creates a time-log entry without a session, same approval
// rules as stopping one: architects are auto-approved at the project rate.
func (s *Service) ManualEntry(projectID, accountID string, minutes int, description string) (*domain.TimeLogEntry, error) {
	role, err := s.policy.Require(projectID, accountID, domain.Role.CanLogTime)
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
		project, err := s.db.GetProject(projectID)
		if err != nil {
			return nil, err
		}
		entry.Status = domain.TimeLogApproved
		entry.CostImpact = domain.CostImpact(minutes, project.HourlyRate)
	}
	if err := s.db.InsertTimeLog(entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns a project's entries for callers with any role on it.
func (s *Service) List(projectID, actingAccountID string) ([]domain.TimeLogEntry, error) {
	if _, err := s.policy.Require(projectID, actingAccountID, domain.Role.CanLogTime); err != nil {
		return nil, err
	}
	return s.db.ListTimeLogs(projectID)
}
