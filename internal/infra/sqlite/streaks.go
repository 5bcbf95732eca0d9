package sqlite

import (
	"database/sql"
	"time"

	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Streak Operations ──────────────────────────────────────────────────────

// GetStreak returns the account's streak, zero-valued when none exists yet.
func (db *DB) GetStreak(accountID string) (domain.Streak, error) {
	s := domain.Streak{AccountID: accountID}
	var last string
	err := db.db.QueryRow(`
		SELECT current_days, longest_days, last_date FROM streaks WHERE account_id = ?
	`, accountID).Scan(&s.CurrentDays, &s.LongestDays, &last)
	if err == sql.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if last != "" {
		s.LastDate, _ = time.Parse(time.DateOnly, last)
	}
	return s, nil
}

// UpsertStreak saves the streak state.
func (db *DB) UpsertStreak(s domain.Streak) error {
	last := ""
	if !s.LastDate.IsZero() {
		last = s.LastDate.Format(time.DateOnly)
	}
	_, err := db.db.Exec(`
		INSERT INTO streaks (account_id, current_days, longest_days, last_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			current_days = excluded.current_days,
			longest_days = excluded.longest_days,
			last_date    = excluded.last_date
	`, s.AccountID, s.CurrentDays, s.LongestDays, last)
	return err
}
