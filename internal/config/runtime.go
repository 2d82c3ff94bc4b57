package config

import (
	"context"
	"log/slog"
	"time"
)

// SettingsStore defines the interface for retrieving settings from the database.
type SettingsStore interface {
	GetSettingWithDefault(ctx context.Context, key, defaultValue string) string
	GetBoolSetting(ctx context.Context, key string, defaultValue bool) bool
	GetIntSetting(ctx context.Context, key string, defaultValue int) int
	GetDurationSetting(ctx context.Context, key string, defaultValue time.Duration) time.Duration
}

// LoadRuntimeConfig overlays the runtime-tunable alert settings stored in the
// database on top of the static configuration. The static config is not modified.
func LoadRuntimeConfig(ctx context.Context, staticConfig *Config, store SettingsStore, log *slog.Logger) *Config {
	cfg := *staticConfig
	cfg.Alerts.WebhookURLs = append([]string(nil), staticConfig.Alerts.WebhookURLs...)

	if store == nil {
		if log != nil {
			log.Info("no settings store provided, using static configuration only")
		}
		return &cfg
	}

	cfg.Alerts = OverlayAlerts(ctx, cfg.Alerts, store)

	if log != nil {
		log.Info("runtime configuration loaded (static config + database settings)")
	}
	return &cfg
}

// OverlayAlerts returns base with every alerts.* key present in store applied
// on top. Missing keys keep the value from base.
func OverlayAlerts(ctx context.Context, base AlertsConfig, store SettingsStore) AlertsConfig {
	cfg := base
	cfg.WebhookURLs = append([]string(nil), base.WebhookURLs...)
	if store == nil {
		return cfg
	}
	cfg.Enabled = store.GetBoolSetting(ctx, "alerts.enabled", cfg.Enabled)
	cfg.EvaluationInterval = store.GetDurationSetting(ctx, "alerts.evaluation_interval", cfg.EvaluationInterval)
	cfg.StatusInterval = store.GetDurationSetting(ctx, "alerts.status_interval", cfg.StatusInterval)
	cfg.OfflineAfter = store.GetDurationSetting(ctx, "alerts.offline_after", cfg.OfflineAfter)
	cfg.Workers = store.GetIntSetting(ctx, "alerts.workers", cfg.Workers)
	cfg.NeverSeenOffline = store.GetBoolSetting(ctx, "alerts.never_seen_offline", cfg.NeverSeenOffline)
	cfg.NotifyOnResolve = store.GetBoolSetting(ctx, "alerts.notify_on_resolve", cfg.NotifyOnResolve)
	cfg.NotificationTimeout = store.GetDurationSetting(ctx, "alerts.notification_timeout", cfg.NotificationTimeout)
	cfg.WebhookSkipTLS = store.GetBoolSetting(ctx, "alerts.webhook_skip_tls_verify", cfg.WebhookSkipTLS)
	return cfg
}
