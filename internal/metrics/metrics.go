// Package metrics exposes engine counters in Prometheus text format.
package metrics

import (
	"fmt"
	"io"

	vm "github.com/VictoriaMetrics/metrics"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

var (
	passSkipped        = vm.NewCounter("iflab_alert_pass_skipped_total")
	passErrors         = vm.NewCounter("iflab_alert_pass_errors_total")
	passDuration       = vm.NewHistogram("iflab_alert_pass_duration_seconds")
	notificationsSent  = vm.NewCounter("iflab_notifications_created_total")
	notifySuppressed   = vm.NewCounter("iflab_alert_notifications_suppressed_total")
	pushFailures       = vm.NewCounter("iflab_notification_push_failures_total")
	statusTransitions  = vm.NewCounter("iflab_computer_status_transitions_total")
	channelDeliveryErr = vm.NewCounter("iflab_alert_channel_errors_total")
)

// AlertOpened counts a newly opened alert by severity.
func AlertOpened(severity models.Severity) {
	vm.GetOrCreateCounter(fmt.Sprintf(`iflab_alerts_opened_total{severity=%q}`, string(severity))).Inc()
}

// AlertResolved counts a resolved alert by severity.
func AlertResolved(severity models.Severity) {
	vm.GetOrCreateCounter(fmt.Sprintf(`iflab_alerts_resolved_total{severity=%q}`, string(severity))).Inc()
}

// PassSkipped counts a computer pass skipped because another pass held its lock.
func PassSkipped() { passSkipped.Inc() }

// PassError counts a rule whose lifecycle transition failed.
func PassError() { passErrors.Inc() }

// ObservePassDuration records the wall time of a full evaluation pass.
func ObservePassDuration(seconds float64) { passDuration.Update(seconds) }

// NotificationsCreated adds n persisted notification rows.
func NotificationsCreated(n int) { notificationsSent.Add(n) }

// NotificationSuppressed counts an opened alert whose notification was withheld.
func NotificationSuppressed() { notifySuppressed.Inc() }

// PushFailed counts a failed live push.
func PushFailed() { pushFailures.Inc() }

// StatusTransition counts an online/offline change.
func StatusTransition() { statusTransitions.Inc() }

// ChannelError counts a failed delivery on a rule channel.
func ChannelError() { channelDeliveryErr.Inc() }

// RegisterOpenAlertsGauge exposes the number of open alerts, read on scrape.
func RegisterOpenAlertsGauge(fn func() float64) {
	vm.GetOrCreateGauge("iflab_alerts_open", fn)
}

// WritePrometheus writes every registered metric to w.
func WritePrometheus(w io.Writer) {
	vm.WritePrometheus(w, true)
}
