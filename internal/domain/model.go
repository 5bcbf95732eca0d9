// Package domain holds the business types shared by every service: roles
// and plan tiers, accounts with their segregated cash vaults, projects,
// memberships, sessions, time-log entries, and the vault movement trail.
// It imports no infrastructure.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Authorization Types ────────────────────────────────────────────────────

// Role is a caller's resolved authority over a single project.
// It is computed fresh per call from Project ownership and accepted
// Memberships, never stored.
type Role string

const (
	RoleArchitect Role = "architect" // project owner
	RoleOperator  Role = "operator"
	RoleGuest     Role = "guest"
	RoleNone      Role = "none"
)

// CanApprove reports whether the role may approve time-log entries.
func (r Role) CanApprove() bool { return r == RoleArchitect }

// CanInvite reports whether the role may invite new members.
func (r Role) CanInvite() bool { return r == RoleArchitect }

// CanSetRates reports whether the role may set member hourly rates.
func (r Role) CanSetRates() bool { return r == RoleArchitect }

// CanRemoveMember reports whether the role may remove members.
func (r Role) CanRemoveMember() bool { return r == RoleArchitect }

// CanLogTime reports whether the role may run work sessions on the project.
func (r Role) CanLogTime() bool { return r != RoleNone }

// ─── Account Types ──────────────────────────────────────────────────────────

// PlanStatus is the subscription tier of an account.
type PlanStatus string

const (
	PlanFree    PlanStatus = "free"
	PlanPro     PlanStatus = "pro"
	PlanBeta    PlanStatus = "beta" // protected tier, never downgraded by billing events
	PlanExpired PlanStatus = "expired"
)

// HasProLicense reports whether the plan grants collaborator features.
func (p PlanStatus) HasProLicense() bool { return p == PlanPro || p == PlanBeta }

// Account is an identity plus its three segregated cash vaults and
// billing state.
type Account struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	BusinessCash  decimal.Decimal `json:"business_cash"`
	PersonalCash  decimal.Decimal `json:"personal_cash"`
	TaxReserve    decimal.Decimal `json:"tax_reserve"`
	CreditBalance int64           `json:"credit_balance"`
	PlanStatus    PlanStatus      `json:"plan_status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ─── Project & Membership Types ─────────────────────────────────────────────

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// Project is owned exclusively by its creator (the Architect).
type Project struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Name       string          `json:"name"`
	Budget     decimal.Decimal `json:"budget"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Status     ProjectStatus   `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MembershipStatus is the invite lifecycle state.
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipAccepted MembershipStatus = "accepted"
)

// Membership links a project to an invited identity. The inviter id is
// denormalized so authorization never needs a recursive lookup.
type Membership struct {
	ID               string           `json:"id"`
	ProjectID        string           `json:"project_id"`
	InviterID        string           `json:"inviter_id"`
	InvitedEmail     string           `json:"invited_email"`
	AccountID        string           `json:"account_id,omitempty"` // set on accept
	Role             Role             `json:"role"`                 // operator or guest
	Status           MembershipStatus `json:"status"`
	MemberHourlyRate *decimal.Decimal `json:"member_hourly_rate,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ─── Pulse Session & Time Log Types ─────────────────────────────────────────

// PulseSession is an exclusive open-ended work timer. At most one exists
// per account at any instant — a storage-level uniqueness invariant, not
// an application check.
type PulseSession struct {
	AccountID string    `json:"account_id"`
	ProjectID string    `json:"project_id"`
	StartedAt time.Time `json:"started_at"`
}

// TimeLogStatus is the approval state of a time-log entry.
type TimeLogStatus string

const (
	TimeLogPending  TimeLogStatus = "pending"
	TimeLogApproved TimeLogStatus = "approved"
)

// TimeLogEntry is a completed work interval. CostImpact is non-zero only
// when Status is approved.
type TimeLogEntry struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	AccountID   string          `json:"account_id"`
	Minutes     int             `json:"minutes"`
	Description string          `json:"description"`
	Status      TimeLogStatus   `json:"status"`
	CostImpact  decimal.Decimal `json:"cost_impact"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CostImpact computes the monetary impact of logged minutes at an hourly
// rate: (minutes / 60) × rate, exact decimal arithmetic.
func CostImpact(minutes int, hourlyRate decimal.Decimal) decimal.Decimal {
	return hourlyRate.Mul(decimal.NewFromInt(int64(minutes))).Div(decimal.NewFromInt(60))
}

// ─── Vault Types ────────────────────────────────────────────────────────────

// VaultType identifies one of the three segregated cash pools.
type VaultType string

const (
	VaultBusiness VaultType = "business"
	VaultPersonal VaultType = "personal"
	VaultTax      VaultType = "tax"
)

// MovementDirection is the sign of a vault movement.
type MovementDirection string

const (
	MovementIn  MovementDirection = "in"
	MovementOut MovementDirection = "out"
)

// VaultMovement is an append-only audit row. Purging movements never
// reverses balances: the Account balance fields are the source of truth.
type VaultMovement struct {
	ID          int64             `json:"id"`
	AccountID   string            `json:"account_id"`
	Vault       VaultType         `json:"vault"`
	Direction   MovementDirection `json:"direction"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
}

// CostCategory splits recurring costs into business vs personal burn.
type CostCategory string

const (
	CostBusiness CostCategory = "business"
	CostPersonal CostCategory = "personal"
)

// RecurringCost is a monthly cost feeding the burn computation.
type RecurringCost struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
	Category  CostCategory    `json:"category"`
	Active    bool            `json:"active"`
	NextDueAt time.Time       `json:"next_due_at"`
}

// VaultMetrics is the derived financial snapshot for an account.
// RunwayMonths is rounded to one decimal for display; the computation
// behind it uses unrounded cash and burn.
type VaultMetrics struct {
	BusinessBurn   decimal.Decimal `json:"business_burn"`
	PersonalBurn   decimal.Decimal `json:"personal_burn"`
	TotalBurn      decimal.Decimal `json:"total_burn"`
	RunwayMonths   decimal.Decimal `json:"runway_months"`
	RunwayInfinite bool            `json:"runway_infinite"`
	AllocationPct  decimal.Decimal `json:"allocation_pct"`
	OverAllocated  bool            `json:"over_allocated"`
	// ApprovedLaborCost is the ledger-side pressure on the business vault:
	// the total approved time-log cost across the account's projects.
	ApprovedLaborCost decimal.Decimal `json:"approved_labor_cost"`
}

// ─── Task Types ─────────────────────────────────────────────────────────────

// Task is a minimal project task. Stopping a session may mark tasks
// completed; overdue tasks feed the digest boundary.
type Task struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	DueAt     time.Time `json:"due_at"`
	Completed bool      `json:"completed"`
}

// ─── Streak Types ───────────────────────────────────────────────────────────

// Streak tracks consecutive working days for an account. Extending a
// streak grants bonus credits through the privileged credit op.
type Streak struct {
	AccountID   string    `json:"account_id"`
	CurrentDays int       `json:"current_days"`
	LongestDays int       `json:"longest_days"`
	LastDate    time.Time `json:"last_date"`
}
