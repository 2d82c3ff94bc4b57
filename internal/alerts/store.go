package alerts

import (
	"context"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// ActivityReader reads the newest activity of a computer. Implementations
// return models.ErrNotFound when nothing matches.
type ActivityReader interface {
	LatestActivity(ctx context.Context, computerID models.ComputerID, activityType string) (*models.ComputerActivity, error)
	LatestActivityWithField(ctx context.Context, computerID models.ComputerID, field string) (*models.ComputerActivity, error)
}

// RuleReader loads the rules that apply to a lab. It is queried fresh on every pass.
type RuleReader interface {
	ActiveRules(ctx context.Context, labID *models.LabID) ([]*models.AlertRule, error)
}

// AlertStore persists alert lifecycle transitions.
type AlertStore interface {
	GetOpenAlert(ctx context.Context, ruleID models.RuleID, computerID models.ComputerID) (*models.Alert, error)
	CreateAlert(ctx context.Context, alert *models.Alert) error
	ResolveAlert(ctx context.Context, id models.AlertID, at time.Time) error
	LastResolvedAt(ctx context.Context, ruleID models.RuleID, computerID models.ComputerID) (*time.Time, error)
}

// ComputerStore reads computers and records online state.
type ComputerStore interface {
	GetComputer(ctx context.Context, id models.ComputerID) (*models.Computer, error)
	ListComputers(ctx context.Context) ([]*models.Computer, error)
	SetComputerOnline(ctx context.Context, id models.ComputerID, online bool, lastSeen *time.Time) error
}

// Store is everything the manager needs from persistence.
type Store interface {
	ActivityReader
	RuleReader
	AlertStore
	ComputerStore
}
