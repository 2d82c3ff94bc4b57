package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

const (
	insertActivityQuery = `INSERT INTO computer_activities (computer_id, type, payload, created_at)
VALUES (?, ?, ?, ?)
RETURNING id`

	touchComputerLastSeenQuery = `UPDATE computers
SET last_seen_at = ?, updated_at = ?
WHERE id = ? AND (last_seen_at IS NULL OR last_seen_at < ?)`

	selectActivityBase = `SELECT id, computer_id, type, payload, created_at
FROM computer_activities`

	latestActivityQuery = selectActivityBase + `
WHERE computer_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`

	latestActivityOfTypeQuery = selectActivityBase + `
WHERE computer_id = ? AND type = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`

	// json_type is non-NULL whenever the key exists, including a JSON null
	// value. It raises on malformed JSON, so guard it with json_valid.
	latestActivityWithFieldQuery = selectActivityBase + `
WHERE computer_id = ?
  AND CASE WHEN json_valid(payload) THEN json_type(payload, ?) END IS NOT NULL
ORDER BY created_at DESC, id DESC
LIMIT 1`
)

// RecordActivity appends an activity for a computer and advances the
// computer's last_seen_at. CreatedAt defaults to now.
func (db *DB) RecordActivity(ctx context.Context, activity *models.ComputerActivity) error {
	if activity == nil {
		return fmt.Errorf("activity payload is required")
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = db.now()
	}
	activity.CreatedAt = activity.CreatedAt.UTC()

	var payload any
	if activity.Payload != nil {
		raw, err := json.Marshal(activity.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal activity payload: %w", err)
		}
		payload = string(raw)
	}

	tx, err := db.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	if err := tx.QueryRowContext(ctx, insertActivityQuery,
		int64(activity.ComputerID), activity.Type, payload, activity.CreatedAt,
	).Scan(&id); err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	if _, err := tx.ExecContext(ctx, touchComputerLastSeenQuery,
		activity.CreatedAt, db.now(), int64(activity.ComputerID), activity.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activity: %w", err)
	}
	activity.ID = models.ActivityID(id)
	return nil
}

// LatestActivity returns the newest activity of the given type for a computer.
// An empty activityType matches any type. ErrNotFound means the computer has
// never reported.
func (db *DB) LatestActivity(ctx context.Context, computerID models.ComputerID, activityType string) (*models.ComputerActivity, error) {
	var row *sql.Row
	if activityType == "" {
		row = db.readDB.QueryRowContext(ctx, latestActivityQuery, int64(computerID))
	} else {
		row = db.readDB.QueryRowContext(ctx, latestActivityOfTypeQuery, int64(computerID), activityType)
	}
	activity, err := scanActivity(row)
	if err != nil {
		return nil, handleNotFoundError(err, "getting latest activity")
	}
	return activity, nil
}

// LatestActivityWithField returns the newest activity whose payload carries
// field, whatever its value. A null value still counts as carrying it.
func (db *DB) LatestActivityWithField(ctx context.Context, computerID models.ComputerID, field string) (*models.ComputerActivity, error) {
	row := db.readDB.QueryRowContext(ctx, latestActivityWithFieldQuery, int64(computerID), jsonPath(field))
	activity, err := scanActivity(row)
	if err != nil {
		return nil, handleNotFoundError(err, fmt.Sprintf("getting latest activity with %q", field))
	}
	return activity, nil
}

// jsonPath quotes field as a single top-level JSON object label.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, "") + `"`
}

func scanActivity(s scanner) (*models.ComputerActivity, error) {
	var (
		id           int64
		computerID   int64
		activityType string
		payload      sql.NullString
		createdAt    time.Time
	)
	if err := s.Scan(&id, &computerID, &activityType, &payload, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}

	activity := &models.ComputerActivity{
		ID:         models.ActivityID(id),
		ComputerID: models.ComputerID(computerID),
		Type:       activityType,
		CreatedAt:  createdAt.UTC(),
	}
	// A payload that does not decode is left nil; readers treat it as carrying no fields.
	if payload.Valid && payload.String != "" {
		dec := json.NewDecoder(strings.NewReader(payload.String))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err == nil {
			activity.Payload = m
		}
	}
	return activity, nil
}
