package sqlite

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Vault Operations ───────────────────────────────────────────────────────
// Balances are the source of truth; movements are a non-reconciling audit
// trail. Purging movements never reverses a balance.

func balanceColumn(vault domain.VaultType) (string, error) {
	switch vault {
	case domain.VaultBusiness:
		return "business_cash", nil
	case domain.VaultPersonal:
		return "personal_cash", nil
	case domain.VaultTax:
		return "tax_reserve", nil
	default:
		return "", fmt.Errorf("unknown vault type %q", vault)
	}
}

// RecordMovement appends a movement row and adjusts the matching balance
// inside one transaction. Direction out subtracts; balances are allowed to
// go negative (real overspend, never clamped).
func (db *DB) RecordMovement(m domain.VaultMovement) (int64, error) {
	column, err := balanceColumn(m.Vault)
	if err != nil {
		return 0, err
	}

	tx, err := db.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRow(`SELECT `+column+` FROM accounts WHERE id = ?`, m.AccountID).Scan(&current)
	if err != nil {
		return 0, domain.ErrNotFound
	}

	balance := dec(current)
	if m.Direction == domain.MovementOut {
		balance = balance.Sub(m.Amount)
	} else {
		balance = balance.Add(m.Amount)
	}
	if _, err := tx.Exec(`UPDATE accounts SET `+column+` = ? WHERE id = ?`,
		balance.String(), m.AccountID); err != nil {
		return 0, err
	}

	res, err := tx.Exec(`
		INSERT INTO vault_movements (account_id, vault, direction, amount, description)
		VALUES (?, ?, ?, ?, ?)
	`, m.AccountID, string(m.Vault), string(m.Direction), m.Amount.String(), m.Description)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// SetBalances overwrites the three vault balances directly (CashInput-style
// edit). No movement row is written: direct edits are the authoritative
// correction path.
func (db *DB) SetBalances(accountID string, business, personal, tax decimal.Decimal) error {
	res, err := db.db.Exec(`
		UPDATE accounts SET business_cash = ?, personal_cash = ?, tax_reserve = ? WHERE id = ?
	`, business.String(), personal.String(), tax.String(), accountID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListMovements returns the audit trail for an account, newest first.
func (db *DB) ListMovements(accountID string) ([]domain.VaultMovement, error) {
	rows, err := db.db.Query(`
		SELECT id, account_id, vault, direction, amount, description, created_at
		FROM vault_movements WHERE account_id = ? ORDER BY id DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.VaultMovement
	for rows.Next() {
		var m domain.VaultMovement
		var vault, direction, amount, created string
		if err := rows.Scan(&m.ID, &m.AccountID, &vault, &direction, &amount,
			&m.Description, &created); err != nil {
			return nil, err
		}
		m.Vault = domain.VaultType(vault)
		m.Direction = domain.MovementDirection(direction)
		m.Amount = dec(amount)
		m.CreatedAt = parseTime(created)
		result = append(result, m)
	}
	return result, rows.Err()
}

// PurgeMovement deletes a single audit row. Balances are untouched.
func (db *DB) PurgeMovement(id int64) error {
	_, err := db.db.Exec(`DELETE FROM vault_movements WHERE id = ?`, id)
	return err
}

// PurgeAllMovements wipes the account's audit trail. Balances are untouched.
func (db *DB) PurgeAllMovements(accountID string) error {
	_, err := db.db.Exec(`DELETE FROM vault_movements WHERE account_id = ?`, accountID)
	return err
}

// ─── Recurring Cost Operations ──────────────────────────────────────────────

// InsertRecurringCost adds a monthly cost.
func (db *DB) InsertRecurringCost(c domain.RecurringCost) error {
	active := 0
	if c.Active {
		active = 1
	}
	_, err := db.db.Exec(`
		INSERT INTO recurring_costs (id, account_id, label, amount, category, active, next_due_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.AccountID, c.Label, c.Amount.String(), string(c.Category),
		active, c.NextDueAt.UTC().Format(time.RFC3339))
	return err
}

// ListActiveRecurringCosts returns the active costs feeding burn.
func (db *DB) ListActiveRecurringCosts(accountID string) ([]domain.RecurringCost, error) {
	return db.listRecurring(`
		SELECT id, account_id, label, amount, category, active, next_due_at
		FROM recurring_costs WHERE account_id = ? AND active = 1
	`, accountID)
}

// ListUpcomingRecurringCosts returns active costs due before the cutoff,
// read by the upcoming-costs digest.
func (db *DB) ListUpcomingRecurringCosts(accountID string, before time.Time) ([]domain.RecurringCost, error) {
	return db.listRecurring(`
		SELECT id, account_id, label, amount, category, active, next_due_at
		FROM recurring_costs
		WHERE account_id = ? AND active = 1 AND next_due_at <= ?
		ORDER BY next_due_at
	`, accountID, before.UTC().Format(time.RFC3339))
}

func (db *DB) listRecurring(query string, args ...interface{}) ([]domain.RecurringCost, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RecurringCost
	for rows.Next() {
		var c domain.RecurringCost
		var amount, category, due string
		var active int
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Label, &amount, &category,
			&active, &due); err != nil {
			return nil, err
		}
		c.Amount = dec(amount)
		c.Category = domain.CostCategory(category)
		c.Active = active == 1
		c.NextDueAt = parseTime(due)
		result = append(result, c)
	}
	return result, rows.Err()
}

// SetRecurringCostActive toggles a cost in or out of the burn computation.
func (db *DB) SetRecurringCostActive(id string, active bool) error {
	activeInt := 0
	if active {
		activeInt = 1
	}
	_, err := db.db.Exec(`UPDATE recurring_costs SET active = ? WHERE id = ?`, activeInt, id)
	return err
}
