// Package vault derives the financial metrics — burn, runway, allocation
// utilization — and owns the movement audit trail. Balances are the source
// of truth set by direct edits and movements; the audit trail never
// reconciles back into them.
package vault

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/domain"
	"github.com/nexus-hq/nexusd/internal/infra/observability"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

var hundred = decimal.NewFromInt(100)

// Engine computes vault metrics and records movements.
type Engine struct {
	db *sqlite.DB
}

// New creates a vault engine.
func New(db *sqlite.DB) *Engine {
	return &Engine{db: db}
}

// Metrics derives the account's financial snapshot. Runway divides
// unrounded combined cash by unrounded burn and rounds the quotient to one
// decimal for display; zero burn yields the Infinite sentinel, never a
// division error. Allocation above 100% is a valid over-allocated state.
func (e *Engine) Metrics(accountID string) (*domain.VaultMetrics, error) {
	account, err := e.db.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	costs, err := e.db.ListActiveRecurringCosts(accountID)
	if err != nil {
		return nil, err
	}
	budgets, err := e.db.SumActiveBudgets(accountID)
	if err != nil {
		return nil, err
	}

	m := &domain.VaultMetrics{}
	for _, c := range costs {
		if c.Category == domain.CostPersonal {
			m.PersonalBurn = m.PersonalBurn.Add(c.Amount)
		} else {
			m.BusinessBurn = m.BusinessBurn.Add(c.Amount)
		}
	}
	m.TotalBurn = m.BusinessBurn.Add(m.PersonalBurn)

	cash := account.BusinessCash.Add(account.PersonalCash)
	if m.TotalBurn.IsZero() {
		m.RunwayInfinite = true
	} else {
		m.RunwayMonths = cash.Div(m.TotalBurn).Round(1)
	}

	if account.BusinessCash.IsPositive() {
		m.AllocationPct = budgets.Div(account.BusinessCash).Mul(hundred).Round(1)
		m.OverAllocated = m.AllocationPct.GreaterThan(hundred)
	} else {
		// No positive business cash: any budget at all is over-allocation.
		m.OverAllocated = budgets.IsPositive()
	}

	projects, err := e.db.ListProjectsByOwner(accountID)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		approved, err := e.db.SumApprovedCost(p.ID)
		if err != nil {
			return nil, err
		}
		m.ApprovedLaborCost = m.ApprovedLaborCost.Add(approved)
	}
	return m, nil
}

// RecordMovement appends a movement and adjusts the matching balance.
// Balances may go negative; overspend is real and never clamped.
func (e *Engine) RecordMovement(accountID string, vault domain.VaultType, direction domain.MovementDirection, amount decimal.Decimal, description string) (*domain.VaultMovement, error) {
	m := domain.VaultMovement{
		AccountID:   accountID,
		Vault:       vault,
		Direction:   direction,
		Amount:      amount,
		Description: description,
	}
	id, err := e.db.RecordMovement(m)
	if err != nil {
		return nil, err
	}
	m.ID = id
	observability.VaultMovements.WithLabelValues(string(vault), string(direction)).Inc()
	return &m, nil
}

// SetBalances overwrites the three vault balances directly.
func (e *Engine) SetBalances(accountID string, business, personal, tax decimal.Decimal) error {
	return e.db.SetBalances(accountID, business, personal, tax)
}

// Movements returns the account's audit trail.
func (e *Engine) Movements(accountID string) ([]domain.VaultMovement, error) {
	return e.db.ListMovements(accountID)
}

// PurgeMovement deletes one audit row. The balance it once adjusted stays
// exactly where it is — the trail is decorative history, not a ledger.
func (e *Engine) PurgeMovement(id int64) error {
	return e.db.PurgeMovement(id)
}

// PurgeAll wipes the account's audit trail without touching balances.
func (e *Engine) PurgeAll(accountID string) error {
	return e.db.PurgeAllMovements(accountID)
}

// AddRecurringCost registers a monthly cost feeding the burn computation.
func (e *Engine) AddRecurringCost(accountID, label string, amount decimal.Decimal, category domain.CostCategory, nextDue time.Time) (*domain.RecurringCost, error) {
	c := domain.RecurringCost{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Label:     label,
		Amount:    amount,
		Category:  category,
		Active:    true,
		NextDueAt: nextDue,
	}
	if err := e.db.InsertRecurringCost(c); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpcomingCosts returns active costs due within the window, the read-only
// feed for the upcoming-costs digest.
func (e *Engine) UpcomingCosts(accountID string, within time.Duration, now time.Time) ([]domain.RecurringCost, error) {
	return e.db.ListUpcomingRecurringCosts(accountID, now.Add(within))
}
