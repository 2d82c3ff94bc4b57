package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

const (
	insertAlertQuery = `INSERT INTO alerts (
    alert_rule_id,
    computer_id,
    title,
    description,
    severity,
    status,
    trigger_value,
    created_at,
    updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

	selectAlertBase = `SELECT
    id,
    alert_rule_id,
    computer_id,
    title,
    description,
    severity,
    status,
    trigger_value,
    acknowledged_at,
    resolved_at,
    created_at,
    updated_at
FROM alerts`

	getOpenAlertQuery = selectAlertBase + `
WHERE alert_rule_id = ?
  AND computer_id = ?
  AND status IN ('active', 'acknowledged')
ORDER BY created_at DESC, id DESC
LIMIT 1`

	resolveAlertQuery = `UPDATE alerts
SET status = 'resolved',
    resolved_at = ?,
    updated_at = ?
WHERE id = ?
  AND status IN ('active', 'acknowledged')`

	acknowledgeAlertQuery = `UPDATE alerts
SET status = 'acknowledged',
    acknowledged_at = ?,
    updated_at = ?
WHERE id = ?
  AND status = 'active'`

	lastResolvedAtQuery = `SELECT resolved_at
FROM alerts
WHERE alert_rule_id = ?
  AND computer_id = ?
  AND status = 'resolved'
  AND resolved_at IS NOT NULL
ORDER BY resolved_at DESC
LIMIT 1`

	countOpenAlertsQuery = `SELECT COUNT(*) FROM alerts WHERE status IN ('active', 'acknowledged')`
)

// GetOpenAlert returns the active or acknowledged alert for a rule and
// computer, or ErrNotFound when the pair has none.
func (db *DB) GetOpenAlert(ctx context.Context, ruleID models.RuleID, computerID models.ComputerID) (*models.Alert, error) {
	row := db.readDB.QueryRowContext(ctx, getOpenAlertQuery, int64(ruleID), int64(computerID))
	alert, err := scanAlert(row)
	if err != nil {
		return nil, handleNotFoundError(err, "getting open alert")
	}
	return alert, nil
}

// CreateAlert inserts a new alert. Status defaults to active and CreatedAt to
// the current time. A second open alert for the same pair yields
// ErrOpenAlertExists.
func (db *DB) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert payload is required")
	}
	if alert.Status == "" {
		alert.Status = models.AlertStatusActive
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = db.now()
	}
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.UpdatedAt = alert.CreatedAt

	var id int64
	err := db.writeDB.QueryRowContext(ctx, insertAlertQuery,
		int64(alert.AlertRuleID),
		int64(alert.ComputerID),
		alert.Title,
		nullableString(alert.Description),
		string(alert.Severity),
		string(alert.Status),
		nullableFloat(alert.TriggerValue),
		alert.CreatedAt,
		alert.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOpenAlertExists
		}
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	alert.ID = models.AlertID(id)
	return nil
}

// ResolveAlert marks an open alert resolved at the given time. It returns
// ErrAlertNotOpen when the alert is already resolved or missing.
func (db *DB) ResolveAlert(ctx context.Context, id models.AlertID, at time.Time) error {
	at = at.UTC()
	res, err := db.writeDB.ExecContext(ctx, resolveAlertQuery, at, at, int64(id))
	if err != nil {
		return fmt.Errorf("failed to resolve alert %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlertNotOpen
	}
	return nil
}

// AcknowledgeAlert moves an active alert to acknowledged. Acknowledging an
// already acknowledged alert returns it unchanged; a resolved alert yields
// ErrAlertNotOpen.
func (db *DB) AcknowledgeAlert(ctx context.Context, id models.AlertID) (*models.Alert, error) {
	now := db.now()
	res, err := db.writeDB.ExecContext(ctx, acknowledgeAlertQuery, now, now, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
	}
	n, _ := res.RowsAffected()

	alert, err := db.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 && alert.Status != models.AlertStatusAcknowledged {
		return nil, ErrAlertNotOpen
	}
	return alert, nil
}

// GetAlert fetches an alert by id.
func (db *DB) GetAlert(ctx context.Context, id models.AlertID) (*models.Alert, error) {
	row := db.readDB.QueryRowContext(ctx, selectAlertBase+" WHERE id = ?", int64(id))
	alert, err := scanAlert(row)
	if err != nil {
		return nil, handleNotFoundError(err, fmt.Sprintf("getting alert id %d", id))
	}
	return alert, nil
}

// ListAlertsForPair returns the alert history of a rule and computer, newest first.
func (db *DB) ListAlertsForPair(ctx context.Context, ruleID models.RuleID, computerID models.ComputerID) ([]*models.Alert, error) {
	query := selectAlertBase + " WHERE alert_rule_id = ? AND computer_id = ? ORDER BY created_at DESC, id DESC"
	rows, err := db.readDB.QueryContext(ctx, query, int64(ruleID), int64(computerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

// LastResolvedAt returns when the pair's most recent alert was resolved, or
// nil when it never was.
func (db *DB) LastResolvedAt(ctx context.Context, ruleID models.RuleID, computerID models.ComputerID) (*time.Time, error) {
	var resolvedAt sql.NullTime
	err := db.readDB.QueryRowContext(ctx, lastResolvedAtQuery, int64(ruleID), int64(computerID)).Scan(&resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last resolution: %w", err)
	}
	return timePtr(resolvedAt), nil
}

// CountOpenAlerts returns the number of active and acknowledged alerts.
func (db *DB) CountOpenAlerts(ctx context.Context) (int, error) {
	var n int
	if err := db.readDB.QueryRowContext(ctx, countOpenAlertsQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count open alerts: %w", err)
	}
	return n, nil
}

func scanAlert(s scanner) (*models.Alert, error) {
	var (
		id             int64
		ruleID         int64
		computerID     int64
		title          string
		description    sql.NullString
		severity       string
		status         string
		triggerValue   sql.NullFloat64
		acknowledgedAt sql.NullTime
		resolvedAt     sql.NullTime
		createdAt      time.Time
		updatedAt      time.Time
	)
	if err := s.Scan(&id, &ruleID, &computerID, &title, &description, &severity, &status, &triggerValue,
		&acknowledgedAt, &resolvedAt, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}
	return &models.Alert{
		ID:             models.AlertID(id),
		AlertRuleID:    models.RuleID(ruleID),
		ComputerID:     models.ComputerID(computerID),
		Title:          title,
		Description:    description.String,
		Severity:       models.Severity(severity),
		Status:         models.AlertStatus(status),
		TriggerValue:   floatPtr(triggerValue),
		AcknowledgedAt: timePtr(acknowledgedAt),
		ResolvedAt:     timePtr(resolvedAt),
		CreatedAt:      createdAt.UTC(),
		UpdatedAt:      updatedAt.UTC(),
	}, nil
}
