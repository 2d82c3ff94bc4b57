package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

func TestWritePrometheus(t *testing.T) {
	PassSkipped()
	AlertOpened(models.SeverityCritical)
	NotificationsCreated(3)

	var buf bytes.Buffer
	WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, "iflab_alert_pass_skipped_total")
	assert.Contains(t, out, `iflab_alerts_opened_total{severity="critical"}`)
	assert.Contains(t, out, "iflab_notifications_created_total")
}
