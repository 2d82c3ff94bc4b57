package alerts

import (
	"context"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// AlertNotification is an alert transition resolved into a delivery payload.
type AlertNotification struct {
	AlertID     models.AlertID
	RuleID      models.RuleID
	RuleName    string
	RuleType    models.RuleType
	Title       string
	Description string
	Status      models.AlertStatus
	Severity    models.Severity
	ComputerID  models.ComputerID
	Hostname    string
	LabID       *models.LabID
	Metric      string
	Condition   models.Comparator
	Threshold   float64
	Value       *float64
	TriggeredAt time.Time
	ResolvedAt  *time.Time

	WebhookURLs []string
}

// AlertSender abstracts the delivery mechanism for alert notifications.
type AlertSender interface {
	Send(ctx context.Context, notification AlertNotification) error
}

func newAlertNotification(computer *models.Computer, rule *models.AlertRule, alert *models.Alert) AlertNotification {
	return AlertNotification{
		AlertID:     alert.ID,
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		RuleType:    rule.Type,
		Title:       alert.Title,
		Description: alert.Description,
		Status:      alert.Status,
		Severity:    alert.Severity,
		ComputerID:  computer.ID,
		Hostname:    computer.Hostname,
		LabID:       computer.LabID,
		Metric:      rule.Metric,
		Condition:   rule.Condition,
		Threshold:   rule.Threshold,
		Value:       alert.TriggerValue,
		TriggeredAt: alert.CreatedAt,
		ResolvedAt:  alert.ResolvedAt,
	}
}
