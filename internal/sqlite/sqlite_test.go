package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/config"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/logger"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Options{
		Logger: logger.Discard(),
		Config: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedComputer(t *testing.T, db *DB, hostname string, lab *models.LabID) *models.Computer {
	t.Helper()
	c := &models.Computer{Hostname: hostname, LabID: lab}
	require.NoError(t, db.CreateComputer(context.Background(), c))
	return c
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	opts := Options{Logger: logger.Discard(), Config: config.SQLiteConfig{Path: path}}

	db, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(opts)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestActiveRules_LabScoping(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	labA, err := db.CreateLab(ctx, "Lab A")
	require.NoError(t, err)
	labB, err := db.CreateLab(ctx, "Lab B")
	require.NoError(t, err)

	global := &models.AlertRule{Name: "cpu", Type: models.RuleTypeMetric, Metric: "cpu_usage", Condition: ">", Threshold: 90, Severity: models.SeverityWarning, IsActive: true}
	scopedA := &models.AlertRule{Name: "offline A", Type: models.RuleTypeStatus, DurationMinutes: 10, Severity: models.SeverityCritical, LabID: &labA, IsActive: true}
	scopedB := &models.AlertRule{Name: "offline B", Type: models.RuleTypeStatus, DurationMinutes: 10, Severity: models.SeverityCritical, LabID: &labB, IsActive: true}
	inactive := &models.AlertRule{Name: "off", Type: models.RuleTypeSoftware, Severity: models.SeverityInfo, IsActive: false}
	for _, r := range []*models.AlertRule{global, scopedA, scopedB, inactive} {
		require.NoError(t, db.CreateRule(ctx, r))
	}

	rules, err := db.ActiveRules(ctx, &labA)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, global.ID, rules[0].ID)
	assert.Equal(t, scopedA.ID, rules[1].ID)
	assert.Equal(t, []models.Channel{models.ChannelDatabase}, rules[0].NotificationChannels)
	assert.Equal(t, models.Comparator(">"), rules[0].Condition)

	rules, err = db.ActiveRules(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, global.ID, rules[0].ID)
}

func TestAlerts_OpenResolveAcknowledge(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	c := seedComputer(t, db, "lab-pc-01", nil)
	rule := &models.AlertRule{Name: "cpu", Type: models.RuleTypeMetric, Metric: "cpu_usage", Condition: ">", Threshold: 90, Severity: models.SeverityWarning, IsActive: true}
	require.NoError(t, db.CreateRule(ctx, rule))

	_, err := db.GetOpenAlert(ctx, rule.ID, c.ID)
	require.ErrorIs(t, err, ErrNotFound)

	v := 95.0
	alert := &models.Alert{AlertRuleID: rule.ID, ComputerID: c.ID, Title: "cpu", Severity: rule.Severity, TriggerValue: &v}
	require.NoError(t, db.CreateAlert(ctx, alert))
	assert.NotZero(t, alert.ID)
	assert.Equal(t, models.AlertStatusActive, alert.Status)

	// The partial unique index refuses a second open alert for the pair.
	dup := &models.Alert{AlertRuleID: rule.ID, ComputerID: c.ID, Title: "cpu", Severity: rule.Severity}
	require.ErrorIs(t, db.CreateAlert(ctx, dup), ErrOpenAlertExists)

	open, err := db.GetOpenAlert(ctx, rule.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, open.ID)
	require.NotNil(t, open.TriggerValue)
	assert.InDelta(t, 95.0, *open.TriggerValue, 1e-9)

	acked, err := db.AcknowledgeAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, acked.Status)
	assert.NotNil(t, acked.AcknowledgedAt)

	// Acknowledged alerts still count as open.
	open, err = db.GetOpenAlert(ctx, rule.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, open.ID)

	resolvedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.ResolveAlert(ctx, alert.ID, resolvedAt))
	require.ErrorIs(t, db.ResolveAlert(ctx, alert.ID, resolvedAt), ErrAlertNotOpen)

	_, err = db.AcknowledgeAlert(ctx, alert.ID)
	require.ErrorIs(t, err, ErrAlertNotOpen)
	_, err = db.AcknowledgeAlert(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)

	last, err := db.LastResolvedAt(ctx, rule.ID, c.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, resolvedAt.Equal(*last))

	// Once resolved, a new open alert may be created.
	require.NoError(t, db.CreateAlert(ctx, dup))
	history, err := db.ListAlertsForPair(ctx, rule.ID, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	n, err := db.CountOpenAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestActivities_Latest(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	c := seedComputer(t, db, "lab-pc-02", nil)

	_, err := db.LatestActivity(ctx, c.ID, "")
	require.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	acts := []*models.ComputerActivity{
		{ComputerID: c.ID, Type: models.ActivityAgentReport, Payload: map[string]any{"cpu_percent": 97.5}, CreatedAt: base},
		{ComputerID: c.ID, Type: models.ActivityHeartbeat, CreatedAt: base.Add(time.Minute)},
		{ComputerID: c.ID, Type: models.ActivityAgentReport, Payload: map[string]any{"memory_percent": 40}, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, a := range acts {
		require.NoError(t, db.RecordActivity(ctx, a))
	}

	latest, err := db.LatestActivity(ctx, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, acts[2].ID, latest.ID)

	hb, err := db.LatestActivity(ctx, c.ID, models.ActivityHeartbeat)
	require.NoError(t, err)
	assert.Equal(t, acts[1].ID, hb.ID)
	assert.True(t, base.Add(time.Minute).Equal(hb.CreatedAt))

	withCPU, err := db.LatestActivityWithField(ctx, c.ID, "cpu_percent")
	require.NoError(t, err)
	assert.Equal(t, acts[0].ID, withCPU.ID)
	assert.Contains(t, withCPU.Payload, "cpu_percent")

	_, err = db.LatestActivityWithField(ctx, c.ID, "disk_percent")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := db.GetComputer(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSeenAt)
	assert.True(t, base.Add(2*time.Minute).Equal(*got.LastSeenAt))
}

func TestActivities_LatestWithFieldKeepsNullValues(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	c := seedComputer(t, db, "lab-pc-03", nil)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := &models.ComputerActivity{ComputerID: c.ID, Type: models.ActivityAgentReport,
		Payload: map[string]any{"cpu_percent": 95}, CreatedAt: base}
	newer := &models.ComputerActivity{ComputerID: c.ID, Type: models.ActivityAgentReport,
		Payload: map[string]any{"cpu_percent": nil}, CreatedAt: base.Add(2 * time.Minute)}
	require.NoError(t, db.RecordActivity(ctx, older))
	require.NoError(t, db.RecordActivity(ctx, newer))

	got, err := db.LatestActivityWithField(ctx, c.ID, "cpu_percent")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	v, ok := got.Payload["cpu_percent"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestListUserIDsWithPermission_Dedups(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	alice := &models.User{Name: "Alice", Email: "alice@example.edu"}
	bob := &models.User{Name: "Bob", Email: "bob@example.edu"}
	carol := &models.User{Name: "Carol", Email: "carol@example.edu"}
	for _, u := range []*models.User{alice, bob, carol} {
		require.NoError(t, db.CreateUser(ctx, u))
	}

	admin, err := db.EnsureRole(ctx, "admin")
	require.NoError(t, err)
	tech, err := db.EnsureRole(ctx, "technician")
	require.NoError(t, err)
	again, err := db.EnsureRole(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, admin, again)

	require.NoError(t, db.GrantRolePermission(ctx, admin, "computers.view"))
	require.NoError(t, db.GrantRolePermission(ctx, tech, "computers.view"))
	require.NoError(t, db.AssignRole(ctx, alice.ID, admin))
	require.NoError(t, db.AssignRole(ctx, alice.ID, tech))
	require.NoError(t, db.GrantUserPermission(ctx, alice.ID, "computers.view"))
	require.NoError(t, db.GrantUserPermission(ctx, carol.ID, "computers.view"))

	ids, err := db.ListUserIDsWithPermission(ctx, "computers.view")
	require.NoError(t, err)
	assert.Equal(t, []models.UserID{alice.ID, carol.ID}, ids)

	ids, err = db.ListUserIDsWithPermission(ctx, "labs.view")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCreateNotifications_Atomic(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	u := &models.User{Name: "Dana", Email: "dana@example.edu"}
	require.NoError(t, db.CreateUser(ctx, u))

	ok := []*models.Notification{{
		UserID: u.ID, Type: models.EventHardwareCPUHigh, Title: "t", Message: "m",
		Data: map[string]any{"computer_id": 7},
	}}
	require.NoError(t, db.CreateNotifications(ctx, ok))
	assert.NotZero(t, ok[0].ID)

	// The second row violates the user foreign key, so the first must roll back too.
	bad := []*models.Notification{
		{UserID: u.ID, Type: models.EventComputerOffline, Title: "t", Message: "m"},
		{UserID: 4242, Type: models.EventComputerOffline, Title: "t", Message: "m"},
	}
	require.Error(t, db.CreateNotifications(ctx, bad))

	n, err := db.CountNotificationsByType(ctx, models.EventComputerOffline)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := db.ListNotificationsForUser(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, json.Number("7"), list[0].Data["computer_id"])
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	assert.Equal(t, 4, db.GetIntSetting(ctx, "alerts.workers", 4))

	require.NoError(t, db.UpsertSetting(ctx, "alerts.workers", "8", "int", "alerts", "", false))
	require.NoError(t, db.UpsertSetting(ctx, "alerts.offline_after", "7m", "duration", "alerts", "offline threshold", false))
	require.NoError(t, db.UpsertSetting(ctx, "alerts.notify_on_resolve", "true", "bool", "alerts", "", false))

	assert.Equal(t, 8, db.GetIntSetting(ctx, "alerts.workers", 4))
	assert.Equal(t, 7*time.Minute, db.GetDurationSetting(ctx, "alerts.offline_after", time.Minute))
	assert.True(t, db.GetBoolSetting(ctx, "alerts.notify_on_resolve", false))

	settings, err := db.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, settings, 3)

	require.NoError(t, db.DeleteSetting(ctx, "alerts.workers"))
	_, err = db.GetSetting(ctx, "alerts.workers")
	require.ErrorIs(t, err, ErrNotFound)
}
