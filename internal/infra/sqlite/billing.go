package sqlite

import (
	"database/sql"

	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Billing Event Application ──────────────────────────────────────────────

// ApplyBillingEvent records the event id and applies its effect — the plan
// transition from the state table plus a non-negative credit grant — in one
// transaction. An already-seen (provider, event id, kind) key applies
// nothing and reports false. When the effect fails (unknown account, for
// one) the whole transaction rolls back, event id included, so the
// provider's retry gets a clean attempt instead of a burned id.
func (db *DB) ApplyBillingEvent(evt domain.BillingEvent) (bool, error) {
	tx, err := db.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO billing_events (provider, event_id, kind)
		VALUES (?, ?, ?)
	`, string(evt.Provider), evt.EventID, string(evt.Kind))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	var plan string
	err = tx.QueryRow(`SELECT plan_status FROM accounts WHERE id = ?`, evt.AccountID).Scan(&plan)
	if err == sql.ErrNoRows {
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if next, changed := domain.NextPlan(domain.PlanStatus(plan), evt.Kind); changed {
		if _, err := tx.Exec(`UPDATE accounts SET plan_status = ? WHERE id = ?`,
			string(next), evt.AccountID); err != nil {
			return false, err
		}
	}
	if evt.Credits > 0 {
		if _, err := tx.Exec(`
			UPDATE accounts SET credit_balance = credit_balance + ? WHERE id = ?
		`, evt.Credits, evt.AccountID); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}
