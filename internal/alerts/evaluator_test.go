package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

var evalNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func cpuRule(id models.RuleID, cond models.Comparator, threshold float64) *models.AlertRule {
	return &models.AlertRule{ID: id, Name: "CPU", Type: models.RuleTypeMetric, Metric: "cpu_usage",
		Condition: cond, Threshold: threshold, Severity: models.SeverityWarning, IsActive: true}
}

func offlineRule(id models.RuleID, minutes int) *models.AlertRule {
	return &models.AlertRule{ID: id, Name: "Offline", Type: models.RuleTypeStatus,
		DurationMinutes: minutes, Severity: models.SeverityCritical, IsActive: true}
}

func snapshotWith(field string, value any) Snapshot {
	return Snapshot{ByField: map[string]*models.ComputerActivity{
		field: {ComputerID: 1, Payload: map[string]any{field: value}, CreatedAt: evalNow},
	}}
}

func TestEvaluate_ThresholdBoundary(t *testing.T) {
	computer := &models.Computer{ID: 1}
	rule := cpuRule(1, ">", 90)

	res := Evaluate(computer, []*models.AlertRule{rule}, snapshotWith("cpu_percent", 90.0), evalNow, EvalOptions{})
	assert.False(t, res[1].Triggered, "exactly 90 must not trigger >90")
	require.NotNil(t, res[1].Value)
	assert.Equal(t, 90.0, *res[1].Value)

	res = Evaluate(computer, []*models.AlertRule{rule}, snapshotWith("cpu_percent", 90.0001), evalNow, EvalOptions{})
	assert.True(t, res[1].Triggered)
}

func TestEvaluate_Comparators(t *testing.T) {
	tests := []struct {
		cond  models.Comparator
		value float64
		want  bool
	}{
		{">=", 90, true},
		{">=", 89.99, false},
		{"<", 10, true},
		{"<", 90, false},
		{"<=", 90, true},
		{"==", 90, true},
		{"==", 90 + 1e-12, true},
		{"==", 90.01, false},
		{"!=", 10, false},
		{"", 95, false},
	}
	computer := &models.Computer{ID: 1}
	for _, tt := range tests {
		t.Run(string(tt.cond), func(t *testing.T) {
			threshold := 90.0
			if tt.cond == "<" && tt.value == 10 {
				threshold = 20
			}
			rule := cpuRule(1, tt.cond, threshold)
			res := Evaluate(computer, []*models.AlertRule{rule}, snapshotWith("cpu_percent", tt.value), evalNow, EvalOptions{})
			assert.Equal(t, tt.want, res[1].Triggered)
		})
	}
}

func TestEvaluate_ValueCoercion(t *testing.T) {
	computer := &models.Computer{ID: 1}
	rule := cpuRule(1, ">", 90)
	triggers := []any{95, int64(95), float32(95), json.Number("95"), "95", " 95.5 "}
	for _, v := range triggers {
		res := Evaluate(computer, []*models.AlertRule{rule}, snapshotWith("cpu_percent", v), evalNow, EvalOptions{})
		assert.True(t, res[1].Triggered, "%T %v", v, v)
	}

	clear := []any{"high", true, nil, map[string]any{"v": 95}, "NaN", json.Number("x")}
	for _, v := range clear {
		res := Evaluate(computer, []*models.AlertRule{rule}, snapshotWith("cpu_percent", v), evalNow, EvalOptions{})
		assert.False(t, res[1].Triggered, "%T %v", v, v)
		assert.Nil(t, res[1].Value)
	}
}

func TestEvaluate_NoDataIsClear(t *testing.T) {
	computer := &models.Computer{ID: 1}
	rules := []*models.AlertRule{cpuRule(1, ">", 90), cpuRule(2, "<", 10)}
	res := Evaluate(computer, rules, Snapshot{}, evalNow, EvalOptions{NeverSeenIsOffline: true})
	require.Len(t, res, 2)
	assert.False(t, res[1].Triggered)
	assert.False(t, res[2].Triggered)
}

func TestEvaluate_OfflineBoundary(t *testing.T) {
	computer := &models.Computer{ID: 1}
	rule := offlineRule(5, 10)

	at := func(ago time.Duration) Snapshot {
		return Snapshot{Latest: &models.ComputerActivity{ComputerID: 1, CreatedAt: evalNow.Add(-ago)}}
	}

	res := Evaluate(computer, []*models.AlertRule{rule}, at(10*time.Minute), evalNow, EvalOptions{})
	assert.True(t, res[5].Triggered, "exactly 10 minutes triggers")
	assert.Nil(t, res[5].Value, "status rules carry no metric value")
	require.NotNil(t, res[5].Silence)
	assert.Equal(t, 10*time.Minute, *res[5].Silence)

	res = Evaluate(computer, []*models.AlertRule{rule}, at(9*time.Minute+59*time.Second), evalNow, EvalOptions{})
	assert.False(t, res[5].Triggered, "9m59s does not trigger")
}

func TestEvaluate_NeverSeen(t *testing.T) {
	computer := &models.Computer{ID: 1}
	rule := offlineRule(5, 10)

	res := Evaluate(computer, []*models.AlertRule{rule}, Snapshot{}, evalNow, EvalOptions{NeverSeenIsOffline: true})
	assert.True(t, res[5].Triggered)
	assert.Nil(t, res[5].Value)
	assert.Nil(t, res[5].Silence)

	res = Evaluate(computer, []*models.AlertRule{rule}, Snapshot{}, evalNow, EvalOptions{NeverSeenIsOffline: false})
	assert.False(t, res[5].Triggered)
}

func TestEvaluate_SkipsInactiveAndForeignLabRules(t *testing.T) {
	labA, labB := models.LabID(1), models.LabID(2)
	computer := &models.Computer{ID: 1, LabID: &labA}

	inactive := cpuRule(1, ">", 0)
	inactive.IsActive = false
	foreign := cpuRule(2, ">", 0)
	foreign.LabID = &labB
	local := cpuRule(3, ">", 0)
	local.LabID = &labA
	software := &models.AlertRule{ID: 4, Type: models.RuleTypeSoftware, IsActive: true}

	res := Evaluate(computer, []*models.AlertRule{inactive, foreign, local, software},
		snapshotWith("cpu_percent", 50), evalNow, EvalOptions{})
	assert.NotContains(t, res, models.RuleID(1))
	assert.NotContains(t, res, models.RuleID(2))
	assert.True(t, res[3].Triggered)
	assert.False(t, res[4].Triggered)
}

func TestMetricField(t *testing.T) {
	assert.Equal(t, "cpu_percent", MetricField("cpu_usage"))
	assert.Equal(t, "memory_percent", MetricField("memory_usage"))
	assert.Equal(t, "disk_percent", MetricField("disk_usage"))
	assert.Equal(t, "temperature", MetricField("temperature"))
}

type fakeActivities struct {
	latest   *models.ComputerActivity
	byField  map[string]*models.ComputerActivity
	err      error
	anyCalls int
}

func (f *fakeActivities) LatestActivity(_ context.Context, _ models.ComputerID, _ string) (*models.ComputerActivity, error) {
	f.anyCalls++
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil {
		return nil, models.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakeActivities) LatestActivityWithField(_ context.Context, _ models.ComputerID, field string) (*models.ComputerActivity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.byField[field]; ok {
		return a, nil
	}
	return nil, models.ErrNotFound
}

func TestLoadSnapshot(t *testing.T) {
	report := &models.ComputerActivity{ID: 1, Payload: map[string]any{"cpu_percent": 10}}
	reader := &fakeActivities{byField: map[string]*models.ComputerActivity{"cpu_percent": report}}

	snap, err := LoadSnapshot(context.Background(), reader, 1, []*models.AlertRule{cpuRule(1, ">", 90), cpuRule(2, "<", 5)})
	require.NoError(t, err)
	assert.Same(t, report, snap.ByField["cpu_percent"])
	assert.Nil(t, snap.Latest)
	assert.Zero(t, reader.anyCalls, "metric-only rules never need the latest activity")

	snap, err = LoadSnapshot(context.Background(), reader, 1, []*models.AlertRule{offlineRule(3, 10)})
	require.NoError(t, err)
	assert.Nil(t, snap.Latest)
	assert.Equal(t, 1, reader.anyCalls)

	reader.err = errors.New("disk I/O error")
	_, err = LoadSnapshot(context.Background(), reader, 1, []*models.AlertRule{offlineRule(3, 10)})
	require.Error(t, err)
}
