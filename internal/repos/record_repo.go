package repos

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RecordRepo applies partial updates to conversation and project records.
// Both tables share the same shape: id, title and a JSON document the sync
// payload's fields are merged into.
type RecordRepo struct {
	db *sql.DB
}

func NewRecordRepo(db *sql.DB) *RecordRepo {
	return &RecordRepo{db: db}
}

func (r *RecordRepo) InsertConversation(userID, id, title string) error {
	return r.insert("conversations", userID, id, title)
}

func (r *RecordRepo) InsertProject(userID, id, title string) error {
	return r.insert("projects", userID, id, title)
}

// ApplyConversationUpdate merges fields into an existing conversation's
// document. A missing record is an error; the executor surfaces it as a task
// failure rather than creating records the user never made.
func (r *RecordRepo) ApplyConversationUpdate(userID, id string, fields map[string]any) error {
	return r.applyUpdate("conversations", userID, id, fields)
}

func (r *RecordRepo) ApplyProjectUpdate(userID, id string, fields map[string]any) error {
	return r.applyUpdate("projects", userID, id, fields)
}

func (r *RecordRepo) GetConversationDoc(userID, id string) (map[string]any, error) {
	return r.getDoc("conversations", userID, id)
}

func (r *RecordRepo) GetProjectDoc(userID, id string) (map[string]any, error) {
	return r.getDoc("projects", userID, id)
}

func (r *RecordRepo) insert(table, userID, id, title string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (id, user_id, title, doc, updated_at) VALUES (?, ?, ?, '{}', ?)`, table),
		id, userID, title, now)
	return err
}

func (r *RecordRepo) applyUpdate(table, userID, id string, fields map[string]any) error {
	doc, err := r.getDoc(table, userID, id)
	if err != nil {
		return err
	}
	for k, v := range fields {
		doc[k] = v
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s doc: %w", table, err)
	}
	var res sql.Result
	if title, ok := fields["title"].(string); ok && title != "" {
		res, err = r.db.Exec(
			fmt.Sprintf(`UPDATE %s SET doc = ?, title = ?, updated_at = ? WHERE user_id = ? AND id = ?`, table),
			string(docJSON), title, time.Now().UTC(), userID, id)
	} else {
		res, err = r.db.Exec(
			fmt.Sprintf(`UPDATE %s SET doc = ?, updated_at = ? WHERE user_id = ? AND id = ?`, table),
			string(docJSON), time.Now().UTC(), userID, id)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RecordRepo) getDoc(table, userID, id string) (map[string]any, error) {
	var docJSON string
	err := r.db.QueryRow(
		fmt.Sprintf(`SELECT doc FROM %s WHERE user_id = ? AND id = ?`, table),
		userID, id).Scan(&docJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	doc := map[string]any{}
	if docJSON != "" {
		if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
			return nil, fmt.Errorf("parse %s doc %s: %w", table, id, err)
		}
	}
	return doc, nil
}
