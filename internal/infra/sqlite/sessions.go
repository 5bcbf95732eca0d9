package sqlite

import (
	"database/sql"
	"time"

	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Pulse Session Operations ───────────────────────────────────────────────

// InsertPulseSession starts a session. The table's PRIMARY KEY on
// account_id is the arbiter of the single-active-session invariant:
// INSERT OR IGNORE with a RowsAffected check turns the constraint
// violation into ErrSessionConflict without any check-then-act window.
func (db *DB) InsertPulseSession(s domain.PulseSession) error {
	res, err := db.db.Exec(`
		INSERT OR IGNORE INTO pulse_sessions (account_id, project_id, started_at)
		VALUES (?, ?, ?)
	`, s.AccountID, s.ProjectID, s.StartedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrSessionConflict
	}
	return nil
}

// GetPulseSession returns the account's active session, or
// ErrNoActiveSession when none exists.
func (db *DB) GetPulseSession(accountID string) (*domain.PulseSession, error) {
	var s domain.PulseSession
	var started string
	err := db.db.QueryRow(`
		SELECT account_id, project_id, started_at FROM pulse_sessions WHERE account_id = ?
	`, accountID).Scan(&s.AccountID, &s.ProjectID, &started)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	s.StartedAt = parseTime(started)
	return &s, nil
}

// DeletePulseSession removes the account's active session row and reports
// whether a row was actually deleted. The DELETE is the stop-side arbiter:
// of two racing stops, only the one whose delete takes the row converts the
// session into a time-log entry.
func (db *DB) DeletePulseSession(accountID string) (bool, error) {
	res, err := db.db.Exec(`DELETE FROM pulse_sessions WHERE account_id = ?`, accountID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
