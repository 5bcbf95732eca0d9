package sqlite

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Time Log Operations ────────────────────────────────────────────────────

// InsertTimeLog creates a time-log entry.
func (db *DB) InsertTimeLog(e domain.TimeLogEntry) error {
	_, err := db.db.Exec(`
		INSERT INTO time_logs (id, project_id, account_id, minutes, description, status, cost_impact)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.ProjectID, e.AccountID, e.Minutes, e.Description,
		string(e.Status), e.CostImpact.String())
	return err
}

// GetTimeLog retrieves a time-log entry by id.
func (db *DB) GetTimeLog(id string) (*domain.TimeLogEntry, error) {
	var e domain.TimeLogEntry
	var status, cost, created string
	err := db.db.QueryRow(`
		SELECT id, project_id, account_id, minutes, description, status, cost_impact, created_at
		FROM time_logs WHERE id = ?
	`, id).Scan(&e.ID, &e.ProjectID, &e.AccountID, &e.Minutes, &e.Description,
		&status, &cost, &created)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Status = domain.TimeLogStatus(status)
	e.CostImpact = dec(cost)
	e.CreatedAt = parseTime(created)
	return &e, nil
}

// ApproveTimeLog transitions a pending entry to approved with its computed
// cost impact. The status guard in the WHERE clause makes double approval
// a no-op: the first approval wins, the cost is never doubled. Returns
// whether this call performed the transition.
func (db *DB) ApproveTimeLog(id string, costImpact decimal.Decimal) (bool, error) {
	res, err := db.db.Exec(`
		UPDATE time_logs SET status = 'approved', cost_impact = ?
		WHERE id = ? AND status = 'pending'
	`, costImpact.String(), id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListTimeLogs returns all entries for a project, newest first.
func (db *DB) ListTimeLogs(projectID string) ([]domain.TimeLogEntry, error) {
	rows, err := db.db.Query(`
		SELECT id, project_id, account_id, minutes, description, status, cost_impact, created_at
		FROM time_logs WHERE project_id = ? ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TimeLogEntry
	for rows.Next() {
		var e domain.TimeLogEntry
		var status, cost, created string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.AccountID, &e.Minutes,
			&e.Description, &status, &cost, &created); err != nil {
			return nil, err
		}
		e.Status = domain.TimeLogStatus(status)
		e.CostImpact = dec(cost)
		e.CreatedAt = parseTime(created)
		result = append(result, e)
	}
	return result, rows.Err()
}

// SumApprovedCost returns the total approved cost impact for a project,
// the ledger-side pressure on the business vault view.
func (db *DB) SumApprovedCost(projectID string) (decimal.Decimal, error) {
	rows, err := db.db.Query(`
		SELECT cost_impact FROM time_logs WHERE project_id = ? AND status = 'approved'
	`, projectID)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var cost string
		if err := rows.Scan(&cost); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(dec(cost))
	}
	return total, rows.Err()
}
