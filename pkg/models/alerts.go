package models

import "time"

// RuleID identifies an alert rule.
type RuleID int64

// AlertID identifies a single alert occurrence.
type AlertID int64

// RuleType selects how a rule is evaluated.
type RuleType string

const (
	// RuleTypeMetric compares a numeric payload field from recent activity against a threshold.
	RuleTypeMetric RuleType = "metric"
	// RuleTypeStatus triggers when a computer has not reported for a number of minutes.
	RuleTypeStatus RuleType = "status"
	// RuleTypeSoftware is reserved; it never triggers.
	RuleTypeSoftware RuleType = "software"
)

// Comparator is the token used to compare an evaluated value with the rule threshold.
type Comparator string

const (
	ComparatorGreaterThan        Comparator = ">"
	ComparatorGreaterThanOrEqual Comparator = ">="
	ComparatorLessThan           Comparator = "<"
	ComparatorLessThanOrEqual    Comparator = "<="
	ComparatorEqual              Comparator = "=="
)

// Severity is a lightweight severity indicator for routing and display.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertStatus captures the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// IsOpen reports whether the status still counts as an unresolved alert.
func (s AlertStatus) IsOpen() bool {
	return s == AlertStatusActive || s == AlertStatusAcknowledged
}

// Channel identifies a delivery channel configured on a rule.
type Channel string

const (
	// ChannelDatabase persists one notification per viewer and pushes it live.
	ChannelDatabase Channel = "database"
	// ChannelWebhook posts the alert to the configured webhook endpoints.
	ChannelWebhook Channel = "webhook"
)

// AlertRule is a user-configured condition evaluated against every computer in scope.
type AlertRule struct {
	ID                   RuleID     `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description,omitempty"`
	Type                 RuleType   `json:"type"`
	Metric               string     `json:"metric,omitempty"`
	Condition            Comparator `json:"condition,omitempty"`
	Threshold            float64    `json:"threshold"`
	DurationMinutes      int        `json:"duration_minutes"`
	Severity             Severity   `json:"severity"`
	LabID                *LabID     `json:"lab_id,omitempty"`
	NotificationChannels []Channel  `json:"notification_channels"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// AppliesTo reports whether the rule is scoped to the given computer's lab.
// Rules without a lab apply globally.
func (r *AlertRule) AppliesTo(c *Computer) bool {
	if r.LabID == nil {
		return true
	}
	return c != nil && c.LabID != nil && *c.LabID == *r.LabID
}

// Alert is one occurrence of a rule holding for a computer.
type Alert struct {
	ID             AlertID     `json:"id"`
	AlertRuleID    RuleID      `json:"alert_rule_id"`
	ComputerID     ComputerID  `json:"computer_id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	Severity       Severity    `json:"severity"`
	Status         AlertStatus `json:"status"`
	TriggerValue   *float64    `json:"trigger_value"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	// Silence is how long a computer had been quiet when a status alert opened.
	// It is not persisted.
	Silence *time.Duration `json:"-"`
}
