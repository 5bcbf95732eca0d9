package access

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

func newTestPolicy(t *testing.T) (*Policy, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPolicy(db), db
}

func seed(t *testing.T, db *sqlite.DB) {
	t.Helper()
	accounts := []domain.Account{
		{ID: "owner", Email: "owner@example.com", PlanStatus: domain.PlanPro},
		{ID: "op", Email: "op@example.com", PlanStatus: domain.PlanPro},
		{ID: "stranger", Email: "s@example.com", PlanStatus: domain.PlanFree},
	}
	for _, a := range accounts {
		if err := db.InsertAccount(a); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.InsertProject(domain.Project{
		ID: "proj", OwnerID: "owner", Name: "launch",
		Budget: decimal.Zero, HourlyRate: decimal.Zero, Status: domain.ProjectActive,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMembership(domain.Membership{
		ID: "mem", ProjectID: "proj", InviterID: "owner",
		InvitedEmail: "op@example.com", Role: domain.RoleOperator,
		Status: domain.MembershipPending,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.AcceptMembership("mem", "op"); err != nil {
		t.Fatal(err)
	}
}

func TestResolveRole(t *testing.T) {
	policy, db := newTestPolicy(t)
	seed(t, db)

	tests := []struct {
		accountID string
		want      domain.Role
	}{
		{"owner", domain.RoleArchitect},
		{"op", domain.RoleOperator},
		{"stranger", domain.RoleNone},
	}
	for _, tt := range tests {
		got, err := policy.ResolveRole("proj", tt.accountID)
		if err != nil {
			t.Fatalf("ResolveRole(proj, %s) error: %v", tt.accountID, err)
		}
		if got != tt.want {
			t.Errorf("ResolveRole(proj, %s) = %s, want %s", tt.accountID, got, tt.want)
		}
	}
}

func TestResolveRole_MissingProject(t *testing.T) {
	policy, _ := newTestPolicy(t)
	role, err := policy.ResolveRole("nope", "anyone")
	if err != nil {
		t.Fatalf("ResolveRole error: %v", err)
	}
	if role != domain.RoleNone {
		t.Errorf("role = %s, want none", role)
	}
}

func TestResolveRole_PendingInviteGrantsNothing(t *testing.T) {
	policy, db := newTestPolicy(t)
	seed(t, db)
	if err := db.InsertMembership(domain.Membership{
		ID: "mem-2", ProjectID: "proj", InviterID: "owner",
		InvitedEmail: "s@example.com", Role: domain.RoleGuest,
		Status: domain.MembershipPending,
	}); err != nil {
		t.Fatal(err)
	}

	role, err := policy.ResolveRole("proj", "stranger")
	if err != nil {
		t.Fatal(err)
	}
	if role != domain.RoleNone {
		t.Errorf("pending invite resolved to %s, want none", role)
	}
}

func TestRequire(t *testing.T) {
	policy, db := newTestPolicy(t)
	seed(t, db)

	if _, err := policy.Require("proj", "owner", domain.Role.CanApprove); err != nil {
		t.Errorf("architect Require(CanApprove) error: %v", err)
	}
	if _, err := policy.Require("proj", "op", domain.Role.CanApprove); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("operator Require(CanApprove) = %v, want ErrUnauthorized", err)
	}
	if _, err := policy.Require("proj", "op", domain.Role.CanLogTime); err != nil {
		t.Errorf("operator Require(CanLogTime) error: %v", err)
	}
	if _, err := policy.Require("proj", "stranger", domain.Role.CanLogTime); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("stranger Require(CanLogTime) = %v, want ErrUnauthorized", err)
	}
}
