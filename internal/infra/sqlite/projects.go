package sqlite

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Project Operations ─────────────────────────────────────────────────────

// InsertProject creates a project owned by its creator.
func (db *DB) InsertProject(p domain.Project) error {
	_, err := db.db.Exec(`
		INSERT INTO projects (id, owner_id, name, budget, hourly_rate, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.OwnerID, p.Name, p.Budget.String(), p.HourlyRate.String(), string(p.Status))
	return err
}

// GetProject retrieves a project by id.
func (db *DB) GetProject(id string) (*domain.Project, error) {
	var p domain.Project
	var budget, rate, status, created string
	err := db.db.QueryRow(`
		SELECT id, owner_id, name, budget, hourly_rate, status, created_at
		FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.OwnerID, &p.Name, &budget, &rate, &status, &created)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Budget = dec(budget)
	p.HourlyRate = dec(rate)
	p.Status = domain.ProjectStatus(status)
	p.CreatedAt = parseTime(created)
	return &p, nil
}

// UpdateProject updates the owner-editable fields.
func (db *DB) UpdateProject(p domain.Project) error {
	_, err := db.db.Exec(`
		UPDATE projects SET name = ?, budget = ?, hourly_rate = ?, status = ? WHERE id = ?
	`, p.Name, p.Budget.String(), p.HourlyRate.String(), string(p.Status), p.ID)
	return err
}

// SumActiveBudgets returns the total budget of the owner's active projects,
// the numerator of allocation utilization.
func (db *DB) SumActiveBudgets(ownerID string) (decimal.Decimal, error) {
	rows, err := db.db.Query(`
		SELECT budget FROM projects WHERE owner_id = ? AND status = 'active'
	`, ownerID)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var budget string
		if err := rows.Scan(&budget); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(dec(budget))
	}
	return total, rows.Err()
}

// ListProjectsByOwner returns all projects owned by an account.
func (db *DB) ListProjectsByOwner(ownerID string) ([]domain.Project, error) {
	rows, err := db.db.Query(`
		SELECT id, owner_id, name, budget, hourly_rate, status, created_at
		FROM projects WHERE owner_id = ? ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Project
	for rows.Next() {
		var p domain.Project
		var budget, rate, status, created string
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &budget, &rate, &status, &created); err != nil {
			return nil, err
		}
		p.Budget = dec(budget)
		p.HourlyRate = dec(rate)
		p.Status = domain.ProjectStatus(status)
		p.CreatedAt = parseTime(created)
		result = append(result, p)
	}
	return result, rows.Err()
}
