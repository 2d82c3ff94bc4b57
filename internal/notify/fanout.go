// Package notify turns domain events into one notification per viewer and
// pushes each one to the live bus.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/metrics"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// Store persists notifications and resolves permission holders.
type Store interface {
	ListUserIDsWithPermission(ctx context.Context, permission string) ([]models.UserID, error)
	CreateNotifications(ctx context.Context, notifications []*models.Notification) error
}

// Publisher pushes a message to a subject; *bus.Publisher implements it.
type Publisher interface {
	Publish(subject, eventType string, payload any) error
}

// viewPermissions names the permission that makes a user a viewer of a resource type.
var viewPermissions = map[models.ResourceType]string{
	models.ResourceComputer: "computers.view",
	models.ResourceLab:      "labs.view",
}

// ViewPermission returns the view permission of a resource type.
func ViewPermission(resourceType models.ResourceType) (string, bool) {
	p, ok := viewPermissions[resourceType]
	return p, ok
}

// Event is a resource-scoped occurrence to announce.
type Event struct {
	ResourceType models.ResourceType
	ResourceID   int64
	Type         models.EventType
	Title        string
	Message      string
	Data         map[string]any
}

// Options configures a FanOut.
type Options struct {
	Store         Store
	Publisher     Publisher
	SubjectPrefix string
	Logger        *slog.Logger
}

// FanOut creates one notification per viewer of a resource.
type FanOut struct {
	store     Store
	publisher Publisher
	prefix    string
	log       *slog.Logger
}

// New builds a FanOut. SubjectPrefix defaults to "notifications".
func New(opts Options) *FanOut {
	prefix := opts.SubjectPrefix
	if prefix == "" {
		prefix = "notifications"
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FanOut{
		store:     opts.Store,
		publisher: opts.Publisher,
		prefix:    prefix,
		log:       log.With("component", "notify_fanout"),
	}
}

// UserSubject is the live subject of one recipient.
func (f *FanOut) UserSubject(id models.UserID) string {
	return fmt.Sprintf("%s.user.%d", f.prefix, id)
}

// BroadcastSubject is the live subject shared by all clients.
func (f *FanOut) BroadcastSubject() string {
	return f.prefix + ".broadcast"
}

// NotifyResourceViewers stores one notification per distinct viewer of the
// event's resource, all in one transaction, then pushes each to the bus.
// Push failures are logged and never returned. It returns how many
// notifications were created.
func (f *FanOut) NotifyResourceViewers(ctx context.Context, ev Event) (int, error) {
	if _, ok := catalogue[ev.Type]; !ok {
		return 0, fmt.Errorf("unknown event type %q", ev.Type)
	}
	permission, ok := ViewPermission(ev.ResourceType)
	if !ok {
		return 0, fmt.Errorf("unknown resource type %q", ev.ResourceType)
	}

	holders, err := f.store.ListUserIDsWithPermission(ctx, permission)
	if err != nil {
		return 0, fmt.Errorf("resolving viewers: %w", err)
	}
	recipients := recipientSet(holders)
	if len(recipients) == 0 {
		f.log.Debug("no viewers for event", "type", ev.Type, "resource_type", ev.ResourceType, "resource_id", ev.ResourceID)
		return 0, nil
	}

	data := make(map[string]any, len(ev.Data)+2)
	for k, v := range ev.Data {
		data[k] = v
	}
	data["resource_type"] = string(ev.ResourceType)
	data["resource_id"] = ev.ResourceID

	rows := make([]*models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		rows = append(rows, &models.Notification{
			UserID:  userID,
			Type:    ev.Type,
			Title:   ev.Title,
			Message: ev.Message,
			Data:    data,
		})
	}
	if err := f.store.CreateNotifications(ctx, rows); err != nil {
		return 0, fmt.Errorf("creating notifications: %w", err)
	}
	metrics.NotificationsCreated(len(rows))
	f.log.Info("notifications created", "type", ev.Type, "resource_type", ev.ResourceType,
		"resource_id", ev.ResourceID, "recipients", len(rows))

	f.push(rows)
	return len(rows), nil
}

func (f *FanOut) push(rows []*models.Notification) {
	if f.publisher == nil {
		return
	}
	for _, n := range rows {
		for _, subject := range []string{f.UserSubject(n.UserID), f.BroadcastSubject()} {
			if err := f.publisher.Publish(subject, string(n.Type), n); err != nil {
				metrics.PushFailed()
				f.log.Warn("live push failed", "subject", subject, "notification_id", n.ID, "error", err)
			}
		}
	}
}

// recipientSet removes duplicates and returns the ids in ascending order.
func recipientSet(ids []models.UserID) []models.UserID {
	set := make(map[models.UserID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	out := make([]models.UserID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (f *FanOut) notifyComputer(ctx context.Context, computer *models.Computer, eventType models.EventType, msg MessageData, data map[string]any) (int, error) {
	msg.Hostname = computer.Hostname
	title, message, err := Render(eventType, msg)
	if err != nil {
		return 0, err
	}
	data["computer_id"] = int64(computer.ID)
	data["hostname"] = computer.Hostname
	if computer.LabID != nil {
		data["lab_id"] = int64(*computer.LabID)
	}
	return f.NotifyResourceViewers(ctx, Event{
		ResourceType: models.ResourceComputer,
		ResourceID:   int64(computer.ID),
		Type:         eventType,
		Title:        title,
		Message:      message,
		Data:         data,
	})
}

// NotifyComputerStatus announces an online or offline transition.
func (f *FanOut) NotifyComputerStatus(ctx context.Context, computer *models.Computer, online bool) (int, error) {
	eventType := models.EventComputerOffline
	if online {
		eventType = models.EventComputerOnline
	}
	data := map[string]any{"is_online": online}
	if computer.LastSeenAt != nil {
		data["last_seen_at"] = computer.LastSeenAt
	}
	return f.notifyComputer(ctx, computer, eventType, MessageData{}, data)
}

// NotifySoftwareChange announces an installed or removed package.
func (f *FanOut) NotifySoftwareChange(ctx context.Context, computer *models.Computer, software, version string, installed bool) (int, error) {
	eventType := models.EventSoftwareRemoved
	if installed {
		eventType = models.EventSoftwareInstalled
	}
	data := map[string]any{"software": software}
	if version != "" {
		data["version"] = version
	}
	return f.notifyComputer(ctx, computer, eventType, MessageData{Software: software, Version: version}, data)
}

// NotifyHardwareAlert announces a newly opened alert.
func (f *FanOut) NotifyHardwareAlert(ctx context.Context, computer *models.Computer, rule *models.AlertRule, alert *models.Alert) (int, error) {
	msg, data := alertMessage(rule, alert)
	return f.notifyComputer(ctx, computer, HardwareEventType(rule), msg, data)
}

// NotifyAlertResolved announces that an alert was resolved.
func (f *FanOut) NotifyAlertResolved(ctx context.Context, computer *models.Computer, rule *models.AlertRule, alert *models.Alert) (int, error) {
	msg, data := alertMessage(rule, alert)
	if alert.ResolvedAt != nil {
		data["resolved_at"] = alert.ResolvedAt
	}
	return f.notifyComputer(ctx, computer, models.EventAlertResolved, msg, data)
}

func alertMessage(rule *models.AlertRule, alert *models.Alert) (MessageData, map[string]any) {
	msg := MessageData{
		RuleName:  rule.Name,
		Metric:    rule.Metric,
		Severity:  string(alert.Severity),
		ThreshFmt: formatValue(rule.Threshold),
	}
	data := map[string]any{
		"alert_id":  int64(alert.ID),
		"rule_id":   int64(rule.ID),
		"rule_type": string(rule.Type),
		"severity":  string(alert.Severity),
		"threshold": rule.Threshold,
	}
	switch {
	case rule.Type == models.RuleTypeStatus && alert.Silence != nil:
		minutes := math.Floor(alert.Silence.Minutes())
		msg.HasValue = true
		msg.ValueFmt = strconv.FormatFloat(minutes, 'f', 0, 64)
		data["minutes_offline"] = minutes
	case rule.Type != models.RuleTypeStatus && alert.TriggerValue != nil:
		v := *alert.TriggerValue
		msg.HasValue = true
		msg.ValueFmt = formatValue(v)
		data["value"] = v
	}
	return msg, data
}

func formatValue(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
