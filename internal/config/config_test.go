package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, time.Minute, cfg.Alerts.EvaluationInterval)
	assert.Equal(t, 5*time.Minute, cfg.Alerts.StatusInterval)
	assert.Equal(t, 4, cfg.Alerts.Workers)
	assert.True(t, cfg.Alerts.NeverSeenOffline)
	assert.False(t, cfg.Alerts.NotifyOnResolve)
	assert.Equal(t, "notifications", cfg.Notifications.SubjectPrefix)
	require.NoError(t, cfg.Validate())
}

func TestEnvToKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"SQLITE_PATH", "sqlite.path"},
		{"ALERTS_WORKERS", "alerts.workers"},
		{"ALERTS_EVALUATION_INTERVAL", "alerts.evaluation_interval"},
		{"NOTIFICATIONS_NATS_URL", "notifications.nats_url"},
		{"LOGGING", "logging"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, envToKey(tt.input))
		})
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[sqlite]
path = "/var/lib/iflab/fleet.db"

[alerts]
evaluation_interval = "30s"
workers = 8
never_seen_offline = false
webhook_urls = ["https://hooks.example.com/a"]

[logging]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/iflab/fleet.db", cfg.SQLite.Path)
	assert.Equal(t, 30*time.Second, cfg.Alerts.EvaluationInterval)
	assert.Equal(t, 8, cfg.Alerts.Workers)
	assert.False(t, cfg.Alerts.NeverSeenOffline)
	assert.Equal(t, []string{"https://hooks.example.com/a"}, cfg.Alerts.WebhookURLs)
	assert.Equal(t, "json", cfg.Logging.Format)
	// untouched keys keep their defaults
	assert.Equal(t, 5*time.Minute, cfg.Alerts.StatusInterval)
}

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("IFLAB_SQLITE_PATH", "/tmp/from-env.db")
	t.Setenv("IFLAB_ALERTS_WORKERS", "2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.SQLite.Path)
	assert.Equal(t, 2, cfg.Alerts.Workers)
}

func TestLoad_InvalidFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nformat = \"xml\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

type fakeSettings struct {
	values map[string]any
}

func (f fakeSettings) GetSettingWithDefault(_ context.Context, key, def string) string {
	if v, ok := f.values[key].(string); ok {
		return v
	}
	return def
}

func (f fakeSettings) GetBoolSetting(_ context.Context, key string, def bool) bool {
	if v, ok := f.values[key].(bool); ok {
		return v
	}
	return def
}

func (f fakeSettings) GetIntSetting(_ context.Context, key string, def int) int {
	if v, ok := f.values[key].(int); ok {
		return v
	}
	return def
}

func (f fakeSettings) GetDurationSetting(_ context.Context, key string, def time.Duration) time.Duration {
	if v, ok := f.values[key].(time.Duration); ok {
		return v
	}
	return def
}

func TestLoadRuntimeConfig(t *testing.T) {
	static := Default()
	store := fakeSettings{values: map[string]any{
		"alerts.notify_on_resolve":   true,
		"alerts.evaluation_interval": 2 * time.Minute,
		"alerts.workers":             16,
	}}

	cfg := LoadRuntimeConfig(context.Background(), static, store, nil)

	assert.True(t, cfg.Alerts.NotifyOnResolve)
	assert.Equal(t, 2*time.Minute, cfg.Alerts.EvaluationInterval)
	assert.Equal(t, 16, cfg.Alerts.Workers)
	assert.False(t, static.Alerts.NotifyOnResolve, "static config must not be mutated")
}

func TestLoadRuntimeConfig_NilStore(t *testing.T) {
	static := Default()
	cfg := LoadRuntimeConfig(context.Background(), static, nil, nil)
	assert.Equal(t, static, cfg)
}

func TestOverlayAlerts(t *testing.T) {
	base := Default().Alerts
	base.WebhookURLs = []string{"https://hooks.example.edu/a"}
	store := fakeSettings{values: map[string]any{
		"alerts.never_seen_offline": false,
		"alerts.offline_after":      15 * time.Minute,
	}}

	cfg := OverlayAlerts(context.Background(), base, store)
	assert.False(t, cfg.NeverSeenOffline)
	assert.Equal(t, 15*time.Minute, cfg.OfflineAfter)
	assert.Equal(t, base.Workers, cfg.Workers, "absent keys keep the base value")

	cfg.WebhookURLs[0] = "changed"
	assert.Equal(t, "https://hooks.example.edu/a", base.WebhookURLs[0])
}
