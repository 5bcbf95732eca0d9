package sqlite

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Scan Helpers ───────────────────────────────────────────────────────────

const sqliteTime = "2006-01-02 15:04:05"

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse(sqliteTime, s)
	return t
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ─── Account Operations ─────────────────────────────────────────────────────

// InsertAccount creates an account at signup.
func (db *DB) InsertAccount(a domain.Account) error {
	_, err := db.db.Exec(`
		INSERT INTO accounts (id, email, name, business_cash, personal_cash, tax_reserve, credit_balance, plan_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Email, a.Name, a.BusinessCash.String(), a.PersonalCash.String(),
		a.TaxReserve.String(), a.CreditBalance, string(a.PlanStatus))
	return err
}

// GetAccount retrieves an account by id.
func (db *DB) GetAccount(id string) (*domain.Account, error) {
	return db.scanAccount(db.db.QueryRow(`
		SELECT id, email, name, business_cash, personal_cash, tax_reserve, credit_balance, plan_status, created_at
		FROM accounts WHERE id = ?
	`, id))
}

// GetAccountByEmail retrieves an account by email.
func (db *DB) GetAccountByEmail(email string) (*domain.Account, error) {
	return db.scanAccount(db.db.QueryRow(`
		SELECT id, email, name, business_cash, personal_cash, tax_reserve, credit_balance, plan_status, created_at
		FROM accounts WHERE email = ?
	`, email))
}

func (db *DB) scanAccount(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	var business, personal, tax, plan, created string
	err := row.Scan(&a.ID, &a.Email, &a.Name, &business, &personal, &tax,
		&a.CreditBalance, &plan, &created)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.BusinessCash = dec(business)
	a.PersonalCash = dec(personal)
	a.TaxReserve = dec(tax)
	a.PlanStatus = domain.PlanStatus(plan)
	a.CreatedAt = parseTime(created)
	return &a, nil
}

// ─── Credit Operations ──────────────────────────────────────────────────────
// Credit mutations never read-then-add: additions are a single atomic
// UPDATE, subtractions are guarded by the balance check inside the same
// statement.

// AddCredits atomically adds n credits to the account.
func (db *DB) AddCredits(accountID string, n int64) error {
	res, err := db.db.Exec(`
		UPDATE accounts SET credit_balance = credit_balance + ? WHERE id = ?
	`, n, accountID)
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

// SpendCredits atomically subtracts n credits, failing with
// ErrInsufficientCredits when the balance cannot cover it. The sufficiency
// check lives inside the UPDATE so concurrent spends cannot drive the
// balance negative.
func (db *DB) SpendCredits(accountID string, n int64) error {
	res, err := db.db.Exec(`
		UPDATE accounts SET credit_balance = credit_balance - ?
		WHERE id = ? AND credit_balance >= ?
	`, n, accountID, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := db.GetAccount(accountID); err != nil {
			return err
		}
		return domain.ErrInsufficientCredits
	}
	return nil
}
