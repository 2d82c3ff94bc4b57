package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/logger"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("IFLAB_SQLITE_PATH", filepath.Join(t.TempDir(), "app.db"))

	a, err := New(Options{
		ConfigPath: filepath.Join(t.TempDir(), "absent.toml"),
		Logger:     logger.Discard(),
		Version:    "test",
	})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func TestInitialize_SeedsSettingsOnce(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	settings, err := a.SQLite.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, settings, len(defaultSettings(a.Config.Alerts)))

	workers, err := a.SQLite.GetSetting(ctx, "alerts.workers")
	require.NoError(t, err)
	assert.Equal(t, "4", workers)

	// An operator edit survives a second seeding attempt.
	require.NoError(t, a.SQLite.UpsertSetting(ctx, "alerts.workers", "9", "number", "alerts", "", false))
	require.NoError(t, a.seedSystemSettings(ctx))
	workers, err = a.SQLite.GetSetting(ctx, "alerts.workers")
	require.NoError(t, err)
	assert.Equal(t, "9", workers)
}

func TestInitialize_WiresEngine(t *testing.T) {
	a := newTestApp(t)

	require.NotNil(t, a.Alerts)
	require.NotNil(t, a.Notifier)
	require.NotNil(t, a.server)
	assert.False(t, a.Bus.Enabled(), "no NATS url means live push is disabled")

	summary, err := a.Alerts.EvaluateAllComputers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Computers)
	assert.NotEmpty(t, summary.RunID)
}

func TestStart_RequiresInitialize(t *testing.T) {
	a := &App{Logger: logger.Discard()}
	assert.Error(t, a.Start(context.Background()))
}
