package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/metrics"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

func session(name, start, end string) models.UsageSession {
	return models.UsageSession{Name: name, StartDateTime: start, EndDateTime: end}
}

func TestUniqueActors(t *testing.T) {
	loc := newYork(t)
	sessions := []models.UsageSession{
		session("alice", "2024-03-05 09:00:00", ""),
		session("bob", "2024-03-05 10:00:00", ""),
		session("alice", "2024-03-05 13:00:00", ""),
		session("", "2024-03-05 13:00:00", ""),
		session("carol", "not a date", ""),
	}

	assert.Equal(t, 2, metrics.UniqueActors(sessions, loc))
	assert.Zero(t, metrics.UniqueActors(nil, loc))
}

func TestNewActors(t *testing.T) {
	current := metrics.ActorSet{"a": {}, "b": {}, "c": {}}
	reference := metrics.ActorSet{"b": {}, "z": {}}

	assert.Equal(t, 2, metrics.NewActors(current, reference))
	assert.Zero(t, metrics.NewActors(reference, reference))
}

func TestActiveSessions(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2024, 3, 5, 15, 0, 0, 0, loc)
	sessions := []models.UsageSession{
		session("alice", "2024-03-05 14:00:00", "2024-03-05 16:00:00"),
		session("bob", "2024-03-05 10:00:00", "2024-03-05 12:00:00"),
		session("carol", "2024-03-05 04:00:00", ""),
		session("dave", "2024-03-04 02:00:00", ""),
		session("alice", "2024-03-05 14:30:00", ""),
		session("erin", "2024-03-05 16:00:00", ""),
		session("", "2024-03-05 14:00:00", ""),
	}

	got := metrics.ActiveSessions(sessions, now, 12*time.Hour, loc)

	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Name)
	assert.Equal(t, "2024-03-05 16:00:00", got[0].EndTime)
	assert.Equal(t, "carol", got[1].Name)

	assert.NotNil(t, metrics.ActiveSessions(nil, now, 12*time.Hour, loc))
}

func TestUniqueActorsByDay(t *testing.T) {
	loc := newYork(t)
	report := &models.IndividualUsageReport{UsageList: []models.ToolUsage{
		{ToolName: "Hub Login", InUseBy: []models.UsageSession{
			session("x", "2024-03-05 09:00:00", ""),
			session("y", "2024-03-05 10:00:00", ""),
			session("x", "2024-03-04 10:00:00", ""),
		}},
		{ToolName: "Laser Cutter", InUseBy: []models.UsageSession{
			session("x", "2024-03-05 11:00:00", ""),
			session("z", "broken", ""),
		}},
	}}

	got := metrics.UniqueActorsByDay(report, loc)

	assert.Equal(t, []models.DailyAttendance{
		{Date: "2024-03-04", UniqueUsers: 1},
		{Date: "2024-03-05", UniqueUsers: 2},
	}, got)
}

func TestToolSessions(t *testing.T) {
	report := &models.IndividualUsageReport{UsageList: []models.ToolUsage{
		{ToolName: "Hub Login", InUseBy: []models.UsageSession{session("x", "2024-03-05 09:00:00", "")}},
	}}

	assert.Len(t, metrics.ToolSessions(report, "Hub Login"), 1)
	assert.Nil(t, metrics.ToolSessions(report, "Mill"))
	assert.Nil(t, metrics.ToolSessions(nil, "Hub Login"))
}

func TestParseCapacity(t *testing.T) {
	tests := []struct {
		status   string
		expected int
	}{
		{"In use by 12", 12},
		{"In use by 1 user", 1},
		{"Available", 0},
		{"in use by 4", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, metrics.ParseCapacity(tt.status))
		})
	}
}

func TestToolStates(t *testing.T) {
	statuses := []models.ToolStatus{
		{ToolName: "Hub Login", Status: "In use by 4"},
		{ToolName: "Laser Cutter", Status: "Available"},
		{ToolName: "Mill", Status: "In use by 1"},
	}

	got := metrics.ToolStates(statuses, []string{"Hub Login"})

	assert.Equal(t, []models.ToolState{
		{ToolName: "Laser Cutter", Status: "Available", Available: true},
		{ToolName: "Mill", Status: "In use by 1", Available: false},
	}, got)

	hub, ok := metrics.FindTool(statuses, "Hub Login")
	assert.True(t, ok)
	assert.Equal(t, 4, metrics.ParseCapacity(hub.Status))

	_, ok = metrics.FindTool(statuses, "Waterjet")
	assert.False(t, ok)
}

func TestSumUsageHours(t *testing.T) {
	rows := []models.DailyUsage{
		{ToolName: "Laser Cutter", UsageHours: 2.5},
		{ToolName: "Hub Login", UsageHours: 10},
		{ToolName: "Mill", UsageHours: 1},
	}

	assert.InDelta(t, 3.5, metrics.SumUsageHours(rows, []string{"Hub Login"}), 0.0001)
	assert.InDelta(t, 13.5, metrics.SumUsageHours(rows, nil), 0.0001)
	assert.Equal(t, "3.50", metrics.FormatFixed(metrics.SumUsageHours(rows, []string{"Hub Login"})))
}

func TestHoursPolicy(t *testing.T) {
	loc := newYork(t)
	enabled := config.DefaultPolicy().OperatingHours
	enabled.Enabled = true

	withHolidays := enabled
	withHolidays.ExcludeHolidays = true

	tests := []struct {
		name     string
		cfg      config.OperatingHours
		at       time.Time
		expected bool
	}{
		{"disabled_allows_friday", config.OperatingHours{}, time.Date(2024, 3, 8, 23, 0, 0, 0, loc), true},
		{"window_start_inclusive", enabled, time.Date(2024, 3, 5, 10, 0, 0, 0, loc), true},
		{"evening_window_end_inclusive", enabled, time.Date(2024, 3, 5, 19, 0, 0, 0, loc), true},
		{"after_close", enabled, time.Date(2024, 3, 5, 19, 1, 0, 0, loc), false},
		{"before_open", enabled, time.Date(2024, 3, 5, 9, 59, 0, 0, loc), false},
		{"friday_closed", enabled, time.Date(2024, 3, 8, 12, 0, 0, 0, loc), false},
		{"holiday_counted_without_exclusion", enabled, time.Date(2024, 7, 4, 12, 0, 0, 0, loc), true},
		{"holiday_excluded", withHolidays, time.Date(2024, 7, 4, 12, 0, 0, 0, loc), false},
		{"regular_thursday", withHolidays, time.Date(2024, 7, 11, 12, 0, 0, 0, loc), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			policy, err := metrics.NewHoursPolicy(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, policy.Allows(tt.at))
		})
	}
}

func TestHoursPolicyRejectsBadConfig(t *testing.T) {
	_, err := metrics.NewHoursPolicy(config.OperatingHours{Enabled: true, Days: []string{"funday"}})
	require.Error(t, err)

	_, err = metrics.NewHoursPolicy(config.OperatingHours{
		Enabled: true,
		Days:    []string{"monday"},
		Windows: []config.HoursWindow{{Start: "18:00", End: "09:00"}},
	})
	require.Error(t, err)
}

func TestCountWithinHours(t *testing.T) {
	loc := newYork(t)
	cfg := config.DefaultPolicy().OperatingHours
	cfg.Enabled = true
	policy, err := metrics.NewHoursPolicy(cfg)
	require.NoError(t, err)

	sessions := []models.UsageSession{
		session("a", "2024-03-05 10:30:00", ""),
		session("b", "2024-03-05 20:00:00", ""),
		session("c", "2024-03-05 18:15:00", ""),
		session("d", "bad", ""),
	}

	assert.Equal(t, 2, metrics.CountWithinHours(sessions, policy, loc))
	assert.Equal(t, 3, metrics.CountWithinHours(sessions, nil, loc))
}
