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
	insertNotificationQuery = `INSERT INTO notifications (user_id, type, title, message, data, read, created_at)
VALUES (?, ?, ?, ?, ?, 0, ?)
RETURNING id`

	listNotificationsForUserQuery = `SELECT id, user_id, type, title, message, data, read, read_at, created_at
FROM notifications
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`

	countNotificationsByTypeQuery = `SELECT COUNT(*) FROM notifications WHERE type = ?`
)

// CreateNotifications inserts all notifications in a single transaction. On
// error none of them is stored. IDs and CreatedAt are filled in on success.
func (db *DB) CreateNotifications(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	tx, err := db.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertNotificationQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare notification insert: %w", err)
	}
	defer stmt.Close()

	now := db.now()
	ids := make([]int64, len(notifications))
	for i, n := range notifications {
		var data any
		if n.Data != nil {
			raw, err := json.Marshal(n.Data)
			if err != nil {
				return fmt.Errorf("failed to marshal notification data: %w", err)
			}
			data = string(raw)
		}
		if err := stmt.QueryRowContext(ctx, int64(n.UserID), string(n.Type), n.Title, n.Message, data, now).Scan(&ids[i]); err != nil {
			return fmt.Errorf("failed to insert notification for user %d: %w", n.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notifications: %w", err)
	}
	for i, n := range notifications {
		n.ID = models.NotificationID(ids[i])
		n.CreatedAt = now
	}
	return nil
}

// ListNotificationsForUser returns a user's newest notifications.
func (db *DB) ListNotificationsForUser(ctx context.Context, userID models.UserID, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.readDB.QueryContext(ctx, listNotificationsForUserQuery, int64(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return out, nil
}

// CountNotificationsByType counts stored notifications of one event type.
func (db *DB) CountNotificationsByType(ctx context.Context, eventType models.EventType) (int, error) {
	var n int
	if err := db.readDB.QueryRowContext(ctx, countNotificationsByTypeQuery, string(eventType)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

func scanNotification(s scanner) (*models.Notification, error) {
	var (
		id        int64
		userID    int64
		eventType string
		title     string
		message   string
		data      sql.NullString
		read      int64
		readAt    sql.NullTime
		createdAt time.Time
	)
	if err := s.Scan(&id, &userID, &eventType, &title, &message, &data, &read, &readAt, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	n := &models.Notification{
		ID:        models.NotificationID(id),
		UserID:    models.UserID(userID),
		Type:      models.EventType(eventType),
		Title:     title,
		Message:   message,
		Read:      read == 1,
		ReadAt:    timePtr(readAt),
		CreatedAt: createdAt.UTC(),
	}
	if data.Valid && data.String != "" {
		dec := json.NewDecoder(strings.NewReader(data.String))
		dec.UseNumber()
		if err := dec.Decode(&n.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification %d data: %w", id, err)
		}
	}
	return n, nil
}
