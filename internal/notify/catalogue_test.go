package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

func TestCatalogueCoversEveryEventType(t *testing.T) {
	all := []models.EventType{
		models.EventComputerOnline, models.EventComputerOffline,
		models.EventSoftwareInstalled, models.EventSoftwareRemoved,
		models.EventHardwareCPUHigh, models.EventHardwareMemHigh, models.EventHardwareDiskHigh,
		models.EventHardwareOffline, models.EventHardwareThreshold, models.EventAlertResolved,
	}
	for _, ev := range all {
		title, message, err := Render(ev, MessageData{Hostname: "lab-pc-01", RuleName: "r"})
		require.NoError(t, err, ev)
		assert.NotEmpty(t, title, ev)
		assert.NotEmpty(t, message, ev)
	}
	assert.Len(t, catalogue, len(all))
}

func TestHardwareEventType(t *testing.T) {
	tests := []struct {
		rule models.AlertRule
		want models.EventType
	}{
		{models.AlertRule{Type: models.RuleTypeMetric, Metric: "cpu_usage"}, models.EventHardwareCPUHigh},
		{models.AlertRule{Type: models.RuleTypeMetric, Metric: "memory_usage"}, models.EventHardwareMemHigh},
		{models.AlertRule{Type: models.RuleTypeMetric, Metric: "disk_usage"}, models.EventHardwareDiskHigh},
		{models.AlertRule{Type: models.RuleTypeMetric, Metric: "temperature"}, models.EventHardwareThreshold},
		{models.AlertRule{Type: models.RuleTypeStatus}, models.EventHardwareOffline},
		{models.AlertRule{Type: models.RuleTypeSoftware}, models.EventHardwareThreshold},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HardwareEventType(&tt.rule))
	}
}

func TestRender_Offline(t *testing.T) {
	_, msg, err := Render(models.EventHardwareOffline, MessageData{Hostname: "pc", HasValue: true, ValueFmt: "12"})
	require.NoError(t, err)
	assert.Equal(t, "O computador pc não envia atividade há 12 minutos.", msg)

	_, msg, err = Render(models.EventHardwareOffline, MessageData{Hostname: "pc"})
	require.NoError(t, err)
	assert.Equal(t, "O computador pc nunca enviou atividade.", msg)
}

func TestRender_Unknown(t *testing.T) {
	_, _, err := Render("computer.exploded", MessageData{})
	require.Error(t, err)
}
