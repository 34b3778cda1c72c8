package repos

import (
	"database/sql"
	"time"

	"device-sync/internal/models"
)

// FindingRepo is the findings sink: conflict-resolution audit entries and
// continuity suggestions are both persisted here.
type FindingRepo struct {
	db *sql.DB
}

func NewFindingRepo(db *sql.DB) *FindingRepo {
	return &FindingRepo{db: db}
}

func (r *FindingRepo) Insert(f *models.Finding) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	evidence := string(f.Evidence)
	if evidence == "" {
		evidence = "{}"
	}
	res, err := r.db.Exec(`
		INSERT INTO findings (user_id, severity, title, description, evidence, method, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.UserID, f.Severity, f.Title, f.Description, evidence, f.Method, f.Fingerprint, f.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err == nil {
		f.ID = id
	}
	return nil
}

// SeenSince reports whether a finding with the same fingerprint was already
// recorded at or after the cutoff. Used to dedupe re-emitted findings over
// unchanged state.
func (r *FindingRepo) SeenSince(userID, fingerprint string, since time.Time) (bool, error) {
	var n int
	err := r.db.QueryRow(`
		SELECT COUNT(1) FROM findings
		WHERE user_id = ? AND fingerprint = ? AND created_at >= ?
	`, userID, fingerprint, since.UTC()).Scan(&n)
	return n > 0, err
}

// ListByMethod returns the newest findings recorded with the given detection
// method tag.
func (r *FindingRepo) ListByMethod(userID, method string, limit int) ([]models.Finding, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, user_id, severity, title, description, evidence, method, fingerprint, created_at
		FROM findings
		WHERE user_id = ? AND method = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, method, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []models.Finding
	for rows.Next() {
		var (
			f        models.Finding
			evidence string
		)
		if err := rows.Scan(&f.ID, &f.UserID, &f.Severity, &f.Title, &f.Description,
			&evidence, &f.Method, &f.Fingerprint, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Evidence = []byte(evidence)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
