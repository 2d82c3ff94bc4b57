package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/metrics"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// Transition describes what Apply did to a (rule, computer) pair.
type Transition string

const (
	TransitionNone     Transition = "none"
	TransitionOpened   Transition = "opened"
	TransitionResolved Transition = "resolved"
	// TransitionUnchanged means the rule still holds and its alert stays open.
	TransitionUnchanged Transition = "unchanged"
)

// AlertNotifier is told about lifecycle transitions. Its errors never undo a
// transition.
type AlertNotifier interface {
	AlertOpened(ctx context.Context, computer *models.Computer, rule *models.AlertRule, alert *models.Alert) error
	AlertResolved(ctx context.Context, computer *models.Computer, rule *models.AlertRule, alert *models.Alert) error
}

// LifecycleOptions configures a Lifecycle.
type LifecycleOptions struct {
	Store           AlertStore
	Notifier        AlertNotifier
	NotifyOnResolve bool
	Logger          *slog.Logger
	Now             func() time.Time
}

// Lifecycle opens and resolves alerts from evaluation results, keeping at most
// one open alert per rule and computer. Callers serialize Apply per computer.
type Lifecycle struct {
	store           AlertStore
	notifier        AlertNotifier
	notifyOnResolve atomic.Bool
	log             *slog.Logger
	now             func() time.Time
}

// NewLifecycle builds a Lifecycle.
func NewLifecycle(opts LifecycleOptions) *Lifecycle {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	l := &Lifecycle{
		store:    opts.Store,
		notifier: opts.Notifier,
		log:      log.With("component", "alert_lifecycle"),
		now:      now,
	}
	l.notifyOnResolve.Store(opts.NotifyOnResolve)
	return l
}

// SetNotifyOnResolve changes whether resolutions are announced.
func (l *Lifecycle) SetNotifyOnResolve(on bool) {
	l.notifyOnResolve.Store(on)
}

// Apply moves the pair's alert according to result. Persistence errors are
// returned; notification errors are only logged.
func (l *Lifecycle) Apply(ctx context.Context, computer *models.Computer, rule *models.AlertRule, result Result) (Transition, error) {
	open, err := l.store.GetOpenAlert(ctx, rule.ID, computer.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return TransitionNone, fmt.Errorf("checking open alert for rule %d: %w", rule.ID, err)
	}
	if errors.Is(err, models.ErrNotFound) {
		open = nil
	}

	switch {
	case result.Triggered && open != nil:
		l.log.Debug("alert already open, suppressing duplicate notification",
			"alert_id", open.ID, "rule_id", rule.ID, "computer_id", computer.ID)
		return TransitionUnchanged, nil
	case result.Triggered:
		if err := l.open(ctx, computer, rule, result); err != nil {
			return TransitionNone, err
		}
		return TransitionOpened, nil
	case open != nil:
		if err := l.resolve(ctx, computer, rule, open); err != nil {
			return TransitionNone, err
		}
		return TransitionResolved, nil
	default:
		return TransitionNone, nil
	}
}

func (l *Lifecycle) open(ctx context.Context, computer *models.Computer, rule *models.AlertRule, result Result) error {
	now := l.now()
	suppress, err := l.withinSuppressionWindow(ctx, computer, rule, now)
	if err != nil {
		l.log.Warn("failed to read previous resolution, notifying anyway",
			"rule_id", rule.ID, "computer_id", computer.ID, "error", err)
	}

	alert := &models.Alert{
		AlertRuleID:  rule.ID,
		ComputerID:   computer.ID,
		Title:        alertTitle(rule, computer),
		Description:  alertDescription(rule, computer, result),
		Severity:     rule.Severity,
		Status:       models.AlertStatusActive,
		TriggerValue: result.Value,
		CreatedAt:    now,
		Silence:      result.Silence,
	}
	if err := l.store.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("creating alert for rule %d: %w", rule.ID, err)
	}
	metrics.AlertOpened(rule.Severity)
	l.log.Info("alert opened", "alert_id", alert.ID, "rule_id", rule.ID, "computer_id", computer.ID,
		"severity", rule.Severity)

	if suppress {
		metrics.NotificationSuppressed()
		l.log.Info("alert re-opened inside suppression window, notification withheld",
			"alert_id", alert.ID, "rule_id", rule.ID, "window_minutes", rule.DurationMinutes)
		return nil
	}
	if l.notifier != nil {
		if err := l.notifier.AlertOpened(ctx, computer, rule, alert); err != nil {
			l.log.Warn("alert notification failed", "alert_id", alert.ID, "error", err)
		}
	}
	return nil
}

func (l *Lifecycle) resolve(ctx context.Context, computer *models.Computer, rule *models.AlertRule, alert *models.Alert) error {
	now := l.now()
	if err := l.store.ResolveAlert(ctx, alert.ID, now); err != nil {
		return fmt.Errorf("resolving alert %d: %w", alert.ID, err)
	}
	alert.Status = models.AlertStatusResolved
	alert.ResolvedAt = &now
	alert.UpdatedAt = now
	metrics.AlertResolved(alert.Severity)
	l.log.Info("alert resolved", "alert_id", alert.ID, "rule_id", rule.ID, "computer_id", computer.ID)

	if l.notifyOnResolve.Load() && l.notifier != nil {
		if err := l.notifier.AlertResolved(ctx, computer, rule, alert); err != nil {
			l.log.Warn("resolution notification failed", "alert_id", alert.ID, "error", err)
		}
	}
	return nil
}

// withinSuppressionWindow reports whether a metric rule is re-opening less
// than DurationMinutes after the pair's last resolution.
func (l *Lifecycle) withinSuppressionWindow(ctx context.Context, computer *models.Computer, rule *models.AlertRule, now time.Time) (bool, error) {
	if rule.Type != models.RuleTypeMetric || rule.DurationMinutes <= 0 {
		return false, nil
	}
	last, err := l.store.LastResolvedAt(ctx, rule.ID, computer.ID)
	if err != nil || last == nil {
		return false, err
	}
	return now.Sub(*last) < time.Duration(rule.DurationMinutes)*time.Minute, nil
}

func alertTitle(rule *models.AlertRule, computer *models.Computer) string {
	return fmt.Sprintf("%s - %s", rule.Name, computer.Hostname)
}

func alertDescription(rule *models.AlertRule, computer *models.Computer, result Result) string {
	switch rule.Type {
	case models.RuleTypeStatus:
		if result.Silence == nil {
			return fmt.Sprintf("Computador %s nunca reportou atividade", computer.Hostname)
		}
		return fmt.Sprintf("Computador %s sem atividade há %.0f minutos (limite: %d)",
			computer.Hostname, math.Floor(result.Silence.Minutes()), rule.DurationMinutes)
	case models.RuleTypeMetric:
		if result.Value == nil {
			return rule.Description
		}
		return fmt.Sprintf("%s em %s: %s (condição: %s %s)", rule.Metric, computer.Hostname,
			formatValue(*result.Value), rule.Condition, formatValue(rule.Threshold))
	default:
		return rule.Description
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
