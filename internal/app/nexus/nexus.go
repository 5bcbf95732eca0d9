// Package nexus manages the collaboration relationship between a project's
// architect and its invited members: invites, acceptance, removal, and the
// project records the relationship hangs off.
package nexus

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/app/access"
	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

// Service manages projects and memberships.
type Service struct {
	db     *sqlite.DB
	policy *access.Policy
}

// New creates the collaboration service.
func New(db *sqlite.DB, policy *access.Policy) *Service {
	return &Service{db: db, policy: policy}
}

// ─── Accounts & Projects ────────────────────────────────────────────────────

// Signup creates an account on the free tier with empty vaults.
func (s *Service) Signup(email, name string) (*domain.Account, error) {
	a := domain.Account{
		ID:         uuid.NewString(),
		Email:      strings.ToLower(strings.TrimSpace(email)),
		Name:       name,
		PlanStatus: domain.PlanFree,
		CreatedAt:  time.Now(),
	}
	if err := s.db.InsertAccount(a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateProject creates a project owned by its creator.
func (s *Service) CreateProject(ownerID, name string, budget, hourlyRate decimal.Decimal) (*domain.Project, error) {
	p := domain.Project{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Name:       name,
		Budget:     budget,
		HourlyRate: hourlyRate,
		Status:     domain.ProjectActive,
		CreatedAt:  time.Now(),
	}
	if err := s.db.InsertProject(p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ─── Membership Lifecycle ───────────────────────────────────────────────────

// Invite creates a pending membership for an email. Architect only. The
// rate override may be nil; approvals then default the member's rate to 0.
func (s *Service) Invite(projectID, actingAccountID, email string, role domain.Role, rate *decimal.Decimal) (*domain.Membership, error) {
	if _, err := s.policy.Require(projectID, actingAccountID, domain.Role.CanInvite); err != nil {
		return nil, err
	}
	if role != domain.RoleOperator && role != domain.RoleGuest {
		role = domain.RoleGuest
	}

	m := domain.Membership{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		InviterID:        actingAccountID,
		InvitedEmail:     strings.ToLower(strings.TrimSpace(email)),
		Role:             role,
		Status:           domain.MembershipPending,
		MemberHourlyRate: rate,
		CreatedAt:        time.Now(),
	}
	if err := s.db.InsertMembership(m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Accept binds a pending invite to the accepting account. Only the identity
// whose email matches the invite may accept, and only on a plan with a pro
// license — free and expired accounts get ErrProLicenseRequired.
func (s *Service) Accept(membershipID, accountID string) (*domain.Membership, error) {
	m, err := s.db.GetMembership(membershipID)
	if err != nil {
		return nil, err
	}
	if m.Status == domain.MembershipAccepted {
		return m, nil
	}
	account, err := s.db.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(account.Email, m.InvitedEmail) {
		return nil, domain.ErrUnauthorized
	}
	if !account.PlanStatus.HasProLicense() {
		return nil, domain.ErrProLicenseRequired
	}

	if err := s.db.AcceptMembership(membershipID, accountID); err != nil {
		return nil, err
	}
	return s.db.GetMembership(membershipID)
}

// Remove deletes a membership. Architect only.
func (s *Service) Remove(projectID, membershipID, actingAccountID string) error {
	if _, err := s.policy.Require(projectID, actingAccountID, domain.Role.CanRemoveMember); err != nil {
		return err
	}
	m, err := s.db.GetMembership(membershipID)
	if err != nil {
		return err
	}
	if m.ProjectID != projectID {
		return domain.ErrNotFound
	}
	return s.db.DeleteMembership(membershipID)
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

// CreateTask adds a task to a project. Anyone with a role on the project may
// create tasks.
func (s *Service) CreateTask(projectID, actingAccountID, title string, dueAt time.Time) (*domain.Task, error) {
	if _, err := s.policy.Require(projectID, actingAccountID, domain.Role.CanLogTime); err != nil {
		return nil, err
	}
	t := domain.Task{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     title,
		DueAt:     dueAt,
	}
	if err := s.db.InsertTask(t); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns a project's memberships for callers with any role on it.
func (s *Service) List(projectID, actingAccountID string) ([]domain.Membership, error) {
	if _, err := s.policy.Require(projectID, actingAccountID, domain.Role.CanLogTime); err != nil {
		return nil, err
	}
	return s.db.ListMemberships(projectID)
}
