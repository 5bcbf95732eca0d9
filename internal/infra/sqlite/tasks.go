package sqlite

import (
	"time"

	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Task Operations ────────────────────────────────────────────────────────

// InsertTask creates a task.
func (db *DB) InsertTask(t domain.Task) error {
	completed := 0
	if t.Completed {
		completed = 1
	}
	_, err := db.db.Exec(`
		INSERT INTO tasks (id, project_id, title, due_at, completed)
		VALUES (?, ?, ?, ?, ?)
	`, t.ID, t.ProjectID, t.Title, t.DueAt.UTC().Format(time.RFC3339), completed)
	return err
}

// MarkTasksCompleted marks the given tasks done, scoped to one project so a
// stop request cannot complete tasks elsewhere.
func (db *DB) MarkTasksCompleted(projectID string, taskIDs []string) error {
	for _, id := range taskIDs {
		if _, err := db.db.Exec(`
			UPDATE tasks SET completed = 1 WHERE id = ? AND project_id = ?
		`, id, projectID); err != nil {
			return err
		}
	}
	return nil
}

// ListOverdueTasks returns incomplete tasks past due, read by the overdue
// digest.
func (db *DB) ListOverdueTasks(projectID string, now time.Time) ([]domain.Task, error) {
	rows, err := db.db.Query(`
		SELECT id, project_id, title, due_at, completed
		FROM tasks WHERE project_id = ? AND completed = 0 AND due_at < ?
		ORDER BY due_at
	`, projectID, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Task
	for rows.Next() {
		var t domain.Task
		var due string
		var completed int
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &due, &completed); err != nil {
			return nil, err
		}
		t.DueAt = parseTime(due)
		t.Completed = completed == 1
		result = append(result, t)
	}
	return result, rows.Err()
}

// GetTask retrieves a task by id.
func (db *DB) GetTask(id string) (*domain.Task, error) {
	var t domain.Task
	var due string
	var completed int
	err := db.db.QueryRow(`
		SELECT id, project_id, title, due_at, completed FROM tasks WHERE id = ?
	`, id).Scan(&t.ID, &t.ProjectID, &t.Title, &due, &completed)
	if err != nil {
		return nil, err
	}
	t.DueAt = parseTime(due)
	t.Completed = completed == 1
	return &t, nil
}
