package sqlite

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Membership Operations ──────────────────────────────────────────────────

// InsertMembership creates a pending invite.
func (db *DB) InsertMembership(m domain.Membership) error {
	var rate *string
	if m.MemberHourlyRate != nil {
		s := m.MemberHourlyRate.String()
		rate = &s
	}
	_, err := db.db.Exec(`
		INSERT INTO memberships (id, project_id, inviter_id, invited_email, account_id, role, status, member_hourly_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ProjectID, m.InviterID, m.InvitedEmail, m.AccountID,
		string(m.Role), string(m.Status), rate)
	return err
}

// GetMembership retrieves a membership by id.
func (db *DB) GetMembership(id string) (*domain.Membership, error) {
	return db.scanMembership(db.db.QueryRow(`
		SELECT id, project_id, inviter_id, invited_email, account_id, role, status, member_hourly_rate, created_at
		FROM memberships WHERE id = ?
	`, id))
}

// GetAcceptedMembership finds the accepted membership of an account on a
// project, the lookup behind role resolution and rate defaults.
func (db *DB) GetAcceptedMembership(projectID, accountID string) (*domain.Membership, error) {
	return db.scanMembership(db.db.QueryRow(`
		SELECT id, project_id, inviter_id, invited_email, account_id, role, status, member_hourly_rate, created_at
		FROM memberships WHERE project_id = ? AND account_id = ? AND status = 'accepted'
	`, projectID, accountID))
}

func (db *DB) scanMembership(row *sql.Row) (*domain.Membership, error) {
	var m domain.Membership
	var role, status, created string
	var rate sql.NullString
	err := row.Scan(&m.ID, &m.ProjectID, &m.InviterID, &m.InvitedEmail,
		&m.AccountID, &role, &status, &rate, &created)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Role = domain.Role(role)
	m.Status = domain.MembershipStatus(status)
	if rate.Valid {
		d := dec(rate.String)
		m.MemberHourlyRate = &d
	}
	m.CreatedAt = parseTime(created)
	return &m, nil
}

// AcceptMembership marks a pending invite accepted and binds it to the
// accepting account. The status guard makes a second accept a no-op.
func (db *DB) AcceptMembership(id, accountID string) error {
	_, err := db.db.Exec(`
		UPDATE memberships SET status = 'accepted', account_id = ?
		WHERE id = ? AND status = 'pending'
	`, accountID, id)
	return err
}

// SetMemberRate stores the hourly-rate override used by future approvals.
func (db *DB) SetMemberRate(id string, rate decimal.Decimal) error {
	res, err := db.db.Exec(`
		UPDATE memberships SET member_hourly_rate = ? WHERE id = ?
	`, rate.String(), id)
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

// DeleteMembership removes a member from a project.
func (db *DB) DeleteMembership(id string) error {
	_, err := db.db.Exec(`DELETE FROM memberships WHERE id = ?`, id)
	return err
}

// ListMemberships returns all memberships of a project.
func (db *DB) ListMemberships(projectID string) ([]domain.Membership, error) {
	rows, err := db.db.Query(`
		SELECT id, project_id, inviter_id, invited_email, account_id, role, status, member_hourly_rate, created_at
		FROM memberships WHERE project_id = ? ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Membership
	for rows.Next() {
		var m domain.Membership
		var role, status, created string
		var rate sql.NullString
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.InviterID, &m.InvitedEmail,
			&m.AccountID, &role, &status, &rate, &created); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		m.Status = domain.MembershipStatus(status)
		if rate.Valid {
			d := dec(rate.String)
			m.MemberHourlyRate = &d
		}
		m.CreatedAt = parseTime(created)
		result = append(result, m)
	}
	return result, rows.Err()
}
