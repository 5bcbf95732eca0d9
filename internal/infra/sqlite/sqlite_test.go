package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedAccount(t *testing.T, db *DB, id, email string) {
	t.Helper()
	seedAccountPlan(t, db, id, email, domain.PlanFree)
}

func seedAccountPlan(t *testing.T, db *DB, id, email string, plan domain.PlanStatus) {
	t.Helper()
	err := db.InsertAccount(domain.Account{
		ID: id, Email: email, PlanStatus: plan,
		BusinessCash: decimal.Zero, PersonalCash: decimal.Zero, TaxReserve: decimal.Zero,
	})
	if err != nil {
		t.Fatalf("InsertAccount(%s) error: %v", id, err)
	}
}

func seedProject(t *testing.T, db *DB, id, ownerID string) {
	t.Helper()
	if err := db.InsertProject(domain.Project{
		ID: id, OwnerID: ownerID, Name: "launch",
		Budget: decimal.Zero, HourlyRate: decimal.Zero, Status: domain.ProjectActive,
	}); err != nil {
		t.Fatalf("InsertProject(%s) error: %v", id, err)
	}
}

// ─── Pulse Session Uniqueness ───────────────────────────────────────────────

func TestInsertPulseSession_Conflict(t *testing.T) {
	db := newTestDB(t)
	s := domain.PulseSession{AccountID: "acct-1", ProjectID: "proj-1", StartedAt: time.Now()}

	if err := db.InsertPulseSession(s); err != nil {
		t.Fatalf("first insert error: %v", err)
	}
	// Second start for the same account must lose at the storage layer,
	// regardless of project.
	s.ProjectID = "proj-2"
	if err := db.InsertPulseSession(s); !errors.Is(err, domain.ErrSessionConflict) {
		t.Fatalf("second insert error = %v, want ErrSessionConflict", err)
	}
}

func TestInsertPulseSession_AfterStop(t *testing.T) {
	db := newTestDB(t)
	s := domain.PulseSession{AccountID: "acct-1", ProjectID: "proj-1", StartedAt: time.Now()}

	if err := db.InsertPulseSession(s); err != nil {
		t.Fatal(err)
	}
	deleted, err := db.DeletePulseSession("acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("first delete should take the session row")
	}
	// A second delete finds nothing: the row is the arbiter of who stopped.
	deleted, err = db.DeletePulseSession("acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Fatal("second delete must report no row")
	}
	if err := db.InsertPulseSession(s); err != nil {
		t.Fatalf("restart after stop error: %v", err)
	}
}

func TestGetPulseSession_None(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetPulseSession("acct-1")
	if !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("error = %v, want ErrNoActiveSession", err)
	}
}

// ─── Credits ────────────────────────────────────────────────────────────────

func TestSpendCredits_Guarded(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "acct-1", "a@example.com")

	if err := db.AddCredits("acct-1", 10); err != nil {
		t.Fatal(err)
	}
	if err := db.SpendCredits("acct-1", 7); err != nil {
		t.Fatalf("SpendCredits(7) error: %v", err)
	}
	if err := db.SpendCredits("acct-1", 7); !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("overspend error = %v, want ErrInsufficientCredits", err)
	}

	a, err := db.GetAccount("acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if a.CreditBalance != 3 {
		t.Errorf("CreditBalance = %d, want 3", a.CreditBalance)
	}
}

func TestSpendCredits_UnknownAccount(t *testing.T) {
	db := newTestDB(t)
	if err := db.SpendCredits("nope", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

// ─── Billing Event Application ──────────────────────────────────────────────

func TestApplyBillingEvent_PlanAndCredits(t *testing.T) {
	db := newTestDB(t)
	seedAccountPlan(t, db, "acct-pro", "pro@example.com", domain.PlanPro)
	seedAccountPlan(t, db, "acct-beta", "beta@example.com", domain.PlanBeta)

	applied, err := db.ApplyBillingEvent(domain.BillingEvent{
		Provider: domain.ProviderSigned, EventID: "evt-1",
		Kind: domain.SubscriptionExpired, AccountID: "acct-pro",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("first delivery should apply")
	}
	applied, err = db.ApplyBillingEvent(domain.BillingEvent{
		Provider: domain.ProviderSigned, EventID: "evt-2",
		Kind: domain.SubscriptionExpired, AccountID: "acct-beta",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("beta expiry delivery is still consumed")
	}

	pro, _ := db.GetAccount("acct-pro")
	beta, _ := db.GetAccount("acct-beta")
	if pro.PlanStatus != domain.PlanExpired {
		t.Errorf("pro plan = %s, want expired", pro.PlanStatus)
	}
	if beta.PlanStatus != domain.PlanBeta {
		t.Errorf("beta plan = %s, want beta (protected)", beta.PlanStatus)
	}
}

func TestApplyBillingEvent_Duplicate(t *testing.T) {
	db := newTestDB(t)
	seedAccountPlan(t, db, "acct-1", "a@example.com", domain.PlanPro)
	evt := domain.BillingEvent{
		Provider: domain.ProviderSigned, EventID: "evt-1",
		Kind: domain.SubscriptionRenewed, AccountID: "acct-1", Credits: 100,
	}

	applied, err := db.ApplyBillingEvent(evt)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("first delivery should apply")
	}
	applied, err = db.ApplyBillingEvent(evt)
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Fatal("duplicate delivery must not apply")
	}

	a, _ := db.GetAccount("acct-1")
	if a.CreditBalance != 100 {
		t.Errorf("credits = %d, want 100 (not doubled)", a.CreditBalance)
	}

	// Same id under a different provider is a distinct event.
	applied, err = db.ApplyBillingEvent(domain.BillingEvent{
		Provider: domain.ProviderForm, EventID: "evt-1",
		Kind: domain.TopUpPurchased, AccountID: "acct-1", Credits: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("same id under another provider should apply")
	}
}

func TestApplyBillingEvent_FailureReleasesEventID(t *testing.T) {
	db := newTestDB(t)
	evt := domain.BillingEvent{
		Provider: domain.ProviderSigned, EventID: "evt-1",
		Kind: domain.SubscriptionRenewed, AccountID: "acct-late", Credits: 100,
	}

	// The account does not exist yet: the application fails and must not
	// leave the event id behind.
	if _, err := db.ApplyBillingEvent(evt); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	seedAccountPlan(t, db, "acct-late", "late@example.com", domain.PlanPro)
	applied, err := db.ApplyBillingEvent(evt)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("retry after the failed attempt must apply, not dedupe")
	}
	a, _ := db.GetAccount("acct-late")
	if a.CreditBalance != 100 {
		t.Errorf("credits = %d, want 100 on the retry", a.CreditBalance)
	}
}

// ─── Time Log Approval Guard ────────────────────────────────────────────────

func TestApproveTimeLog_Idempotent(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "owner", "owner@example.com")
	seedProject(t, db, "proj-1", "owner")
	entry := domain.TimeLogEntry{
		ID: "log-1", ProjectID: "proj-1", AccountID: "acct-2",
		Minutes: 90, Status: domain.TimeLogPending, CostImpact: decimal.Zero,
	}
	if err := db.InsertTimeLog(entry); err != nil {
		t.Fatal(err)
	}

	cost := decimal.RequireFromString("67.5")
	applied, err := db.ApproveTimeLog("log-1", cost)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("first approval should transition the entry")
	}

	applied, err = db.ApproveTimeLog("log-1", decimal.RequireFromString("135"))
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Fatal("second approval must be a no-op")
	}

	got, err := db.GetTimeLog("log-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TimeLogApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}
	if !got.CostImpact.Equal(cost) {
		t.Errorf("cost = %s, want 67.5 (not doubled)", got.CostImpact)
	}
}

// ─── Vault Movements ────────────────────────────────────────────────────────

func TestRecordMovement_AdjustsBalance(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "acct-1", "a@example.com")

	if _, err := db.RecordMovement(domain.VaultMovement{
		AccountID: "acct-1", Vault: domain.VaultBusiness,
		Direction: domain.MovementIn, Amount: decimal.RequireFromString("250.75"),
		Description: "client payment",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.RecordMovement(domain.VaultMovement{
		AccountID: "acct-1", Vault: domain.VaultBusiness,
		Direction: domain.MovementOut, Amount: decimal.RequireFromString("400"),
		Description: "laptop",
	}); err != nil {
		t.Fatal(err)
	}

	a, err := db.GetAccount("acct-1")
	if err != nil {
		t.Fatal(err)
	}
	// Overspend drives the balance negative; it is never clamped.
	want := decimal.RequireFromString("-149.25")
	if !a.BusinessCash.Equal(want) {
		t.Errorf("BusinessCash = %s, want %s", a.BusinessCash, want)
	}
}

func TestPurgeMovements_KeepsBalance(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "acct-1", "a@example.com")

	id, err := db.RecordMovement(domain.VaultMovement{
		AccountID: "acct-1", Vault: domain.VaultTax,
		Direction: domain.MovementIn, Amount: decimal.RequireFromString("100"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.PurgeMovement(id); err != nil {
		t.Fatal(err)
	}

	movements, err := db.ListMovements("acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(movements) != 0 {
		t.Errorf("movements = %d, want 0 after purge", len(movements))
	}

	a, _ := db.GetAccount("acct-1")
	if !a.TaxReserve.Equal(decimal.RequireFromString("100")) {
		t.Errorf("TaxReserve = %s, want 100 (purge never reverses balances)", a.TaxReserve)
	}
}

// ─── Memberships ────────────────────────────────────────────────────────────

func TestAcceptMembership(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "owner", "owner@example.com")
	if err := db.InsertProject(domain.Project{
		ID: "proj-1", OwnerID: "owner", Name: "launch",
		Budget: decimal.Zero, HourlyRate: decimal.Zero, Status: domain.ProjectActive,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMembership(domain.Membership{
		ID: "mem-1", ProjectID: "proj-1", InviterID: "owner",
		InvitedEmail: "op@example.com", Role: domain.RoleOperator,
		Status: domain.MembershipPending,
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.AcceptMembership("mem-1", "acct-op"); err != nil {
		t.Fatal(err)
	}
	m, err := db.GetAcceptedMembership("proj-1", "acct-op")
	if err != nil {
		t.Fatalf("GetAcceptedMembership error: %v", err)
	}
	if m.Status != domain.MembershipAccepted {
		t.Errorf("status = %s, want accepted", m.Status)
	}
	if m.AccountID != "acct-op" {
		t.Errorf("account_id = %s, want acct-op", m.AccountID)
	}
}

func TestSetMemberRate(t *testing.T) {
	db := newTestDB(t)
	seedAccount(t, db, "owner", "owner@example.com")
	seedProject(t, db, "proj-1", "owner")
	if err := db.InsertMembership(domain.Membership{
		ID: "mem-1", ProjectID: "proj-1", InviterID: "owner",
		InvitedEmail: "op@example.com", Role: domain.RoleOperator,
		Status: domain.MembershipPending,
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.SetMemberRate("mem-1", decimal.RequireFromString("45")); err != nil {
		t.Fatal(err)
	}
	m, err := db.GetMembership("mem-1")
	if err != nil {
		t.Fatal(err)
	}
	if m.MemberHourlyRate == nil || !m.MemberHourlyRate.Equal(decimal.RequireFromString("45")) {
		t.Errorf("rate = %v, want 45", m.MemberHourlyRate)
	}

	if err := db.SetMemberRate("missing", decimal.Zero); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
