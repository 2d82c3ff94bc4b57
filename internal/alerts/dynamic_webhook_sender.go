package alerts

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// SettingsReader reads runtime settings; *sqlite.DB implements it.
type SettingsReader interface {
	GetSettingWithDefault(ctx context.Context, key, defaultValue string) string
	GetBoolSetting(ctx context.Context, key string, defaultValue bool) bool
	GetDurationSetting(ctx context.Context, key string, defaultValue time.Duration) time.Duration
}

// DynamicWebhookSender re-reads webhook settings on every send so edits to
// system_settings apply without a restart.
type DynamicWebhookSender struct {
	settings SettingsReader
	defaults WebhookSenderOptions
	logger   *slog.Logger
}

func NewDynamicWebhookSender(settings SettingsReader, defaults WebhookSenderOptions, logger *slog.Logger) *DynamicWebhookSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamicWebhookSender{
		settings: settings,
		defaults: defaults,
		logger:   logger.With("component", "dynamic_webhook_sender"),
	}
}

func (d *DynamicWebhookSender) Send(ctx context.Context, notification AlertNotification) error {
	urls := d.defaults.URLs
	if raw := d.settings.GetSettingWithDefault(ctx, "alerts.webhook_urls", ""); raw != "" {
		urls = splitURLs(raw)
	}
	opts := WebhookSenderOptions{
		URLs:          urls,
		Timeout:       d.settings.GetDurationSetting(ctx, "alerts.notification_timeout", d.defaults.Timeout),
		SkipTLSVerify: d.settings.GetBoolSetting(ctx, "alerts.webhook_skip_tls_verify", d.defaults.SkipTLSVerify),
		Logger:        d.logger,
	}
	return NewWebhookSender(opts).Send(ctx, notification)
}

func splitURLs(raw string) []string {
	var urls []string
	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
