package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

const (
	selectRuleBase = `SELECT
    id,
    name,
    description,
    type,
    metric,
    condition,
    threshold,
    duration_minutes,
    severity,
    lab_id,
    notification_channels,
    is_active,
    created_at,
    updated_at
FROM alert_rules`

	// Global rules plus the rules of the computer's lab.
	listActiveRulesQuery = selectRuleBase + `
WHERE is_active = 1
  AND (lab_id IS NULL OR lab_id = ?)
ORDER BY id`

	listActiveGlobalRulesQuery = selectRuleBase + `
WHERE is_active = 1
  AND lab_id IS NULL
ORDER BY id`

	insertRuleQuery = `INSERT INTO alert_rules (
    name,
    description,
    type,
    metric,
    condition,
    threshold,
    duration_minutes,
    severity,
    lab_id,
    notification_channels,
    is_active,
    created_at,
    updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

	setRuleActiveQuery = `UPDATE alert_rules SET is_active = ?, updated_at = ? WHERE id = ?`
)

// ActiveRules returns the active rules that apply to a computer in labID:
// every global rule plus the rules scoped to that lab. A nil labID yields only
// global rules.
func (db *DB) ActiveRules(ctx context.Context, labID *models.LabID) ([]*models.AlertRule, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if labID == nil {
		rows, err = db.readDB.QueryContext(ctx, listActiveGlobalRulesQuery)
	} else {
		rows, err = db.readDB.QueryContext(ctx, listActiveRulesQuery, int64(*labID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// GetRule fetches a rule by id.
func (db *DB) GetRule(ctx context.Context, id models.RuleID) (*models.AlertRule, error) {
	row := db.readDB.QueryRowContext(ctx, selectRuleBase+" WHERE id = ?", int64(id))
	rule, err := scanRule(row)
	if err != nil {
		return nil, handleNotFoundError(err, fmt.Sprintf("getting rule id %d", id))
	}
	return rule, nil
}

// CreateRule inserts a rule. Rules are managed outside the engine; this exists
// for seeding and tests.
func (db *DB) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	if rule == nil {
		return fmt.Errorf("rule payload is required")
	}
	channels := rule.NotificationChannels
	if len(channels) == 0 {
		channels = []models.Channel{models.ChannelDatabase}
	}
	channelsJSON, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("failed to marshal notification channels: %w", err)
	}

	now := db.now()
	var id int64
	err = db.writeDB.QueryRowContext(ctx, insertRuleQuery,
		rule.Name,
		nullableString(rule.Description),
		string(rule.Type),
		nullableString(rule.Metric),
		nullableString(string(rule.Condition)),
		rule.Threshold,
		rule.DurationMinutes,
		string(rule.Severity),
		nullableLabID(rule.LabID),
		string(channelsJSON),
		boolToInt(rule.IsActive),
		now,
		now,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	rule.ID = models.RuleID(id)
	rule.NotificationChannels = channels
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// SetRuleActive toggles a rule on or off.
func (db *DB) SetRuleActive(ctx context.Context, id models.RuleID, active bool) error {
	res, err := db.writeDB.ExecContext(ctx, setRuleActiveQuery, boolToInt(active), db.now(), int64(id))
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRule(s scanner) (*models.AlertRule, error) {
	var (
		id              int64
		name            string
		description     sql.NullString
		ruleType        string
		metric          sql.NullString
		condition       sql.NullString
		threshold       float64
		durationMinutes int
		severity        string
		labID           sql.NullInt64
		channelsJSON    string
		isActive        int64
		createdAt       time.Time
		updatedAt       time.Time
	)
	if err := s.Scan(&id, &name, &description, &ruleType, &metric, &condition, &threshold, &durationMinutes,
		&severity, &labID, &channelsJSON, &isActive, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	var channels []models.Channel
	if channelsJSON != "" {
		if err := json.Unmarshal([]byte(channelsJSON), &channels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification channels for rule %d: %w", id, err)
		}
	}

	return &models.AlertRule{
		ID:                   models.RuleID(id),
		Name:                 name,
		Description:          description.String,
		Type:                 models.RuleType(ruleType),
		Metric:               metric.String,
		Condition:            models.Comparator(condition.String),
		Threshold:            threshold,
		DurationMinutes:      durationMinutes,
		Severity:             models.Severity(severity),
		LabID:                labIDPtr(labID),
		NotificationChannels: channels,
		IsActive:             isActive == 1,
		CreatedAt:            createdAt.UTC(),
		UpdatedAt:            updatedAt.UTC(),
	}, nil
}
