package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/util"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// equalityEpsilon is the tolerance used by the "==" comparator.
const equalityEpsilon = 1e-9

// metricFields maps rule metric names to the payload field agents report.
var metricFields = map[string]string{
	"cpu_usage":    "cpu_percent",
	"memory_usage": "memory_percent",
	"disk_usage":   "disk_percent",
}

// MetricField returns the payload field carrying metric. Unknown metrics are
// looked up under their own name.
func MetricField(metric string) string {
	if field, ok := metricFields[metric]; ok {
		return field
	}
	return metric
}

// Result is the outcome of one rule for one computer. Value is the measured
// metric and is nil for status rules or when there was nothing to measure.
// Silence is set for status rules on computers that reported at least once.
type Result struct {
	Triggered bool
	Value     *float64
	Silence   *time.Duration
}

// Snapshot is the activity data a computer's rules are evaluated against.
type Snapshot struct {
	// Latest is the newest activity of any type, nil when the computer never reported.
	Latest *models.ComputerActivity
	// ByField holds, per payload field, the newest activity carrying it.
	ByField map[string]*models.ComputerActivity
}

// EvalOptions tunes evaluation policy.
type EvalOptions struct {
	// NeverSeenIsOffline makes status rules trigger for computers with no activity at all.
	NeverSeenIsOffline bool
	Logger             *slog.Logger
}

// LoadSnapshot reads the activities the given rules need. A computer with no
// matching activity yields empty entries, not an error.
func LoadSnapshot(ctx context.Context, reader ActivityReader, computerID models.ComputerID, rules []*models.AlertRule) (Snapshot, error) {
	snap := Snapshot{ByField: make(map[string]*models.ComputerActivity)}
	needLatest := false
	for _, rule := range rules {
		switch rule.Type {
		case models.RuleTypeStatus:
			needLatest = true
		case models.RuleTypeMetric:
			field := MetricField(rule.Metric)
			if _, done := snap.ByField[field]; done {
				continue
			}
			activity, err := reader.LatestActivityWithField(ctx, computerID, field)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return Snapshot{}, fmt.Errorf("loading %s for computer %d: %w", field, computerID, err)
			}
			snap.ByField[field] = activity
		}
	}
	if needLatest {
		activity, err := reader.LatestActivity(ctx, computerID, "")
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return Snapshot{}, fmt.Errorf("loading latest activity for computer %d: %w", computerID, err)
		}
		snap.Latest = activity
	}
	return snap, nil
}

// Evaluate computes the result of every applicable rule for computer. Rules
// that are inactive or scoped to another lab are left out of the result.
// Evaluate performs no I/O.
func Evaluate(computer *models.Computer, rules []*models.AlertRule, snap Snapshot, now time.Time, opts EvalOptions) map[models.RuleID]Result {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	results := make(map[models.RuleID]Result, len(rules))
	for _, rule := range rules {
		if rule == nil || !rule.IsActive || !rule.AppliesTo(computer) {
			continue
		}
		switch rule.Type {
		case models.RuleTypeMetric:
			results[rule.ID] = evaluateMetric(rule, snap, log)
		case models.RuleTypeStatus:
			results[rule.ID] = evaluateStatus(rule, snap, now, opts.NeverSeenIsOffline)
		default:
			// Software rules and unknown types never trigger.
			results[rule.ID] = Result{}
		}
	}
	return results
}

func evaluateMetric(rule *models.AlertRule, snap Snapshot, log *slog.Logger) Result {
	field := MetricField(rule.Metric)
	activity := snap.ByField[field]
	if activity == nil {
		return Result{}
	}
	raw, ok := activity.Payload[field]
	if !ok {
		return Result{}
	}
	value, err := util.ToFloat(raw)
	if err != nil {
		log.Debug("ignoring non-numeric metric value", "rule_id", rule.ID, "computer_id", activity.ComputerID,
			"field", field, "error", err)
		return Result{}
	}
	return Result{
		Triggered: compareThreshold(value, rule.Threshold, rule.Condition),
		Value:     &value,
	}
}

func evaluateStatus(rule *models.AlertRule, snap Snapshot, now time.Time, neverSeenIsOffline bool) Result {
	if snap.Latest == nil {
		return Result{Triggered: neverSeenIsOffline}
	}
	elapsed := now.Sub(snap.Latest.CreatedAt)
	return Result{
		Triggered: elapsed >= time.Duration(rule.DurationMinutes)*time.Minute,
		Silence:   &elapsed,
	}
}

func compareThreshold(value, threshold float64, operator models.Comparator) bool {
	switch operator {
	case models.ComparatorGreaterThan:
		return value > threshold
	case models.ComparatorGreaterThanOrEqual:
		return value >= threshold
	case models.ComparatorLessThan:
		return value < threshold
	case models.ComparatorLessThanOrEqual:
		return value <= threshold
	case models.ComparatorEqual:
		return math.Abs(value-threshold) < equalityEpsilon
	default:
		return false
	}
}
