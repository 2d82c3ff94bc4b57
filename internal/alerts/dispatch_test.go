package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

type fakeViewers struct {
	hardware int
	resolved int
	err      error
}

func (f *fakeViewers) NotifyHardwareAlert(context.Context, *models.Computer, *models.AlertRule, *models.Alert) (int, error) {
	f.hardware++
	return 2, f.err
}

func (f *fakeViewers) NotifyAlertResolved(context.Context, *models.Computer, *models.AlertRule, *models.Alert) (int, error) {
	f.resolved++
	return 2, f.err
}

type fakeSender struct {
	sent []AlertNotification
	err  error
}

func (f *fakeSender) Send(_ context.Context, n AlertNotification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func TestDispatcher_RoutesByChannel(t *testing.T) {
	viewers := &fakeViewers{}
	webhook := &fakeSender{}
	d := NewDispatcher(DispatcherOptions{Viewers: viewers, Webhook: webhook})

	computer := &models.Computer{ID: 1, Hostname: "lab-pc-01"}
	alert := &models.Alert{ID: 3, Status: models.AlertStatusActive}

	rule := cpuRule(1, ">", 90)
	require.NoError(t, d.AlertOpened(context.Background(), computer, rule, alert))
	assert.Equal(t, 1, viewers.hardware, "no channels means the database channel")
	assert.Empty(t, webhook.sent)

	rule.NotificationChannels = []models.Channel{models.ChannelDatabase, models.ChannelWebhook}
	require.NoError(t, d.AlertOpened(context.Background(), computer, rule, alert))
	assert.Equal(t, 2, viewers.hardware)
	require.Len(t, webhook.sent, 1)
	assert.Equal(t, "lab-pc-01", webhook.sent[0].Hostname)
	assert.Equal(t, models.AlertID(3), webhook.sent[0].AlertID)

	require.NoError(t, d.AlertResolved(context.Background(), computer, rule, alert))
	assert.Equal(t, 1, viewers.resolved)
}

func TestDispatcher_CollectsChannelErrors(t *testing.T) {
	viewers := &fakeViewers{err: errors.New("database is locked")}
	webhook := &fakeSender{}
	d := NewDispatcher(DispatcherOptions{Viewers: viewers, Webhook: webhook})

	rule := cpuRule(1, ">", 90)
	rule.NotificationChannels = []models.Channel{models.ChannelDatabase, models.ChannelWebhook, "sms"}
	err := d.AlertOpened(context.Background(), &models.Computer{ID: 1}, rule, &models.Alert{ID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Contains(t, err.Error(), "unsupported channel")
	assert.Len(t, webhook.sent, 1, "a failing channel does not block the others")
}

func TestWebhookSender_Send(t *testing.T) {
	var hits atomic.Int32
	var got webhookPayload
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ok.Close()

	sender := NewWebhookSender(WebhookSenderOptions{URLs: []string{ok.URL}, Timeout: time.Second})
	lab := models.LabID(4)
	v := 97.0
	err := sender.Send(context.Background(), AlertNotification{
		AlertID: 9, RuleID: 2, RuleName: "CPU", Status: models.AlertStatusActive,
		Severity: models.SeverityCritical, ComputerID: 1, Hostname: "lab-pc-01", LabID: &lab, Value: &v,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())
	assert.EqualValues(t, 9, got.AlertID)
	assert.Equal(t, "lab-pc-01", got.Hostname)
	require.NotNil(t, got.LabID)
	assert.EqualValues(t, 4, *got.LabID)
}

func TestWebhookSender_ReportsFailures(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer bad.Close()

	sender := NewWebhookSender(WebhookSenderOptions{URLs: []string{bad.URL}})
	err := sender.Send(context.Background(), AlertNotification{AlertID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "boom")
}

func TestWebhookSender_NoURLs(t *testing.T) {
	assert.NoError(t, NewWebhookSender(WebhookSenderOptions{}).Send(context.Background(), AlertNotification{}))
}

type fakeSettings map[string]string

func (f fakeSettings) GetSettingWithDefault(_ context.Context, key, def string) string {
	if v, ok := f[key]; ok {
		return v
	}
	return def
}

func (f fakeSettings) GetBoolSetting(_ context.Context, key string, def bool) bool {
	if v, ok := f[key]; ok {
		return v == "true"
	}
	return def
}

func (f fakeSettings) GetDurationSetting(_ context.Context, key string, def time.Duration) time.Duration {
	if v, ok := f[key]; ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func TestDynamicWebhookSender_ReadsURLsFromSettings(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	settings := fakeSettings{"alerts.webhook_urls": " " + srv.URL + " , ," + srv.URL}
	sender := NewDynamicWebhookSender(settings, WebhookSenderOptions{}, nil)
	require.NoError(t, sender.Send(context.Background(), AlertNotification{AlertID: 1}))
	assert.EqualValues(t, 2, hits.Load())
}
