package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/metrics"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// ViewerNotifier fans alert events out to the viewers of a computer.
type ViewerNotifier interface {
	NotifyHardwareAlert(ctx context.Context, computer *models.Computer, rule *models.AlertRule, alert *models.Alert) (int, error)
	NotifyAlertResolved(ctx context.Context, computer *models.Computer, rule *models.AlertRule, alert *models.Alert) (int, error)
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Viewers ViewerNotifier
	Webhook AlertSender
	Timeout time.Duration
	Logger  *slog.Logger
}

// Dispatcher routes alert transitions to the channels configured on the rule.
type Dispatcher struct {
	viewers ViewerNotifier
	webhook AlertSender
	timeout time.Duration
	log     *slog.Logger
}

// NewDispatcher builds a Dispatcher. A nil Webhook disables the webhook channel.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		viewers: opts.Viewers,
		webhook: opts.Webhook,
		timeout: timeout,
		log:     log.With("component", "alert_dispatcher"),
	}
}

func (d *Dispatcher) AlertOpened(ctx context.Context, computer *models.Computer, rule *models.AlertRule, alert *models.Alert) error {
	var toViewers viewerFunc
	if d.viewers != nil {
		toViewers = d.viewers.NotifyHardwareAlert
	}
	return d.dispatch(ctx, computer, rule, alert, toViewers)
}

func (d *Dispatcher) AlertResolved(ctx context.Context, computer *models.Computer, rule *models.AlertRule, alert *models.Alert) error {
	var toViewers viewerFunc
	if d.viewers != nil {
		toViewers = d.viewers.NotifyAlertResolved
	}
	return d.dispatch(ctx, computer, rule, alert, toViewers)
}

type viewerFunc func(context.Context, *models.Computer, *models.AlertRule, *models.Alert) (int, error)

func (d *Dispatcher) dispatch(ctx context.Context, computer *models.Computer, rule *models.AlertRule, alert *models.Alert, toViewers viewerFunc) error {
	channels := rule.NotificationChannels
	if len(channels) == 0 {
		channels = []models.Channel{models.ChannelDatabase}
	}

	var errs []error
	for _, channel := range channels {
		if err := d.deliver(ctx, channel, computer, rule, alert, toViewers); err != nil {
			metrics.ChannelError()
			d.log.Warn("notification failed", "alert_id", alert.ID, "channel", channel, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, channel models.Channel, computer *models.Computer, rule *models.AlertRule, alert *models.Alert, toViewers viewerFunc) error {
	notifyCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	switch channel {
	case models.ChannelDatabase:
		if toViewers == nil {
			return nil
		}
		n, err := toViewers(notifyCtx, computer, rule, alert)
		if err != nil {
			return err
		}
		d.log.Debug("viewers notified", "alert_id", alert.ID, "recipients", n)
		return nil
	case models.ChannelWebhook:
		if d.webhook == nil {
			d.log.Debug("webhook channel not configured", "alert_id", alert.ID)
			return nil
		}
		return d.webhook.Send(notifyCtx, newAlertNotification(computer, rule, alert))
	default:
		return fmt.Errorf("unsupported channel %q", channel)
	}
}
