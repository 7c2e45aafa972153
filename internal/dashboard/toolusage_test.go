package dashboard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/cache"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/dashboard"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/metrics"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

func newLoader(t *testing.T) *cache.Loader {
	t.Helper()
	store := cache.NewMemoryStore(100, 0, quietLogger())
	t.Cleanup(func() { _ = store.Close() })
	return cache.NewLoader(store, 30*time.Minute, quietLogger(), nil)
}

func TestAttendanceSummary(t *testing.T) {
	tu := &fakeToolUsage{individual: map[string]*models.IndividualUsageReport{
		"2024-03-13|2024-03-13": hubLogins("alice", "bob", "alice"),
		"2024-03-07|2024-03-13": hubLogins("alice", "bob", "carol"),
		"2024-03-01|2024-03-13": hubLogins("alice", "bob", "carol", "dave"),
	}}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, nil, testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	got, err := svc.AttendanceSummary(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.AttendanceSummary{DayActive: 2, WeekActive: 3, MonthActive: 4}, got)
}

func TestAttendanceTrendIsCached(t *testing.T) {
	tu := &fakeToolUsage{individual: map[string]*models.IndividualUsageReport{
		"2024-03-01|2024-03-13": hubLogins("a", "b", "c"),
		"2024-02-01|2024-02-29": hubLogins("a", "b"),
		"2024-03-13|2024-03-13": hubLogins("a", "b", "c"),
		"2024-02-13|2024-02-13": hubLogins("a", "b"),
	}}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, newLoader(t), testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	first, err := svc.AttendanceTrend(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.AttendanceTrend{
		CurrentUsers:    "3.00",
		PreviousUsers:   "2.00",
		PercentChange:   "+50.0%",
		CurrentDayUsers: "3.00",
		Trend:           []float64{0, 0, 0, 0, 0, 2, 3},
	}, first)
	assert.Equal(t, 9, tu.totalIndividualCalls())

	second, err := svc.AttendanceTrend(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 9, tu.totalIndividualCalls(), "second trend within the TTL must not reach upstream")
}

func TestUsageHoursSummary(t *testing.T) {
	tu := &fakeToolUsage{daily: map[string][]models.DailyUsage{
		"2024-03-13|2024-03-13": {{ToolName: "Laser Cutter", UsageHours: 2.5}, {ToolName: "Hub Login", UsageHours: 10}},
		"2024-03-07|2024-03-13": {{ToolName: "Laser Cutter", UsageHours: 5}, {ToolName: "Mill", UsageHours: 1.25}},
	}}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, nil, testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	got, err := svc.UsageHoursSummary(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.UsageHoursSummary{
		DayUsageHours:   "2.50",
		WeekUsageHours:  "6.25",
		MonthUsageHours: "0.00",
	}, got)
}

func TestUsageHoursTrend(t *testing.T) {
	tu := &fakeToolUsage{daily: map[string][]models.DailyUsage{
		"2024-03-01|2024-03-13": {{ToolName: "Laser Cutter", UsageHours: 12.5}},
		"2024-03-13|2024-03-13": {{ToolName: "Laser Cutter", UsageHours: 3}},
		"2024-02-13|2024-02-13": {{ToolName: "Laser Cutter", UsageHours: 2}},
	}}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, nil, testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	got, err := svc.UsageHoursTrend(ctx)

	require.NoError(t, err)
	assert.Len(t, got.Trend, 7)
	assert.InDelta(t, 12.5, got.Trend[6], 0.001)
	assert.Equal(t, "12.50", got.CurrentHours)
	assert.Equal(t, "2.00", got.PreviousHours)
	assert.Equal(t, "+50.0%", got.PercentChange)
	assert.Equal(t, "3.00", got.CurrentDayHours)
}

func TestNewStudentsSummary(t *testing.T) {
	tu := &fakeToolUsage{individual: map[string]*models.IndividualUsageReport{
		"2024-03-13|2024-03-13": hubLogins("a", "b", "new1"),
		"2024-03-07|2024-03-13": hubLogins("a", "new1", "new2"),
		"2024-01-01|2024-03-13": hubLogins("a", "b", "new1", "new2", "new3"),
		"2023-01-01|2024-01-01": hubLogins("a", "b"),
	}}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, nil, testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	got, err := svc.NewStudentsSummary(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.NewStudentsSummary{
		DayNewUsers:      1,
		WeekNewUsers:     2,
		SemesterNewUsers: 3,
		Semester:         "SPRING 2024",
	}, got)
}

func TestNewStudentsTrend(t *testing.T) {
	tu := &fakeToolUsage{individual: map[string]*models.IndividualUsageReport{
		"2024-03-01|2024-03-13": hubLogins("a", "x", "y"),
		"2023-01-01|2024-03-01": hubLogins("a"),
		"2024-02-01|2024-02-29": hubLogins("a", "x"),
		"2023-01-01|2024-02-01": hubLogins("a"),
		"2024-03-13|2024-03-13": hubLogins("x", "y", "z"),
		"2024-02-13|2024-02-13": hubLogins("x"),
	}}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, nil, testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	got, err := svc.NewStudentsTrend(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.NewStudentsTrend{
		CurrentNewUsers:    "2.00",
		PreviousNewUsers:   "1.00",
		PercentChange:      "+100.0%",
		CurrentDayNewUsers: "2.00",
		Trend:              []float64{0, 0, 0, 0, 0, 1, 2},
	}, got)
}

func TestCurrentCapacity(t *testing.T) {
	tu := &fakeToolUsage{
		statuses: []models.ToolStatus{
			{ToolName: "Hub Login", Status: "In use by 5"},
			{ToolName: "Laser Cutter", Status: "Available"},
		},
		individual: map[string]*models.IndividualUsageReport{
			"2024-03-14|2024-03-14": {UsageList: []models.ToolUsage{{
				ToolName: "Hub Login",
				InUseBy: []models.UsageSession{
					{Name: "alice", StartDateTime: "2024-03-14 08:00:00"},
					{Name: "bob", StartDateTime: "2024-03-14 07:00:00", EndDateTime: "2024-03-14 08:30:00"},
				},
			}}},
		},
	}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, newLoader(t), testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	got, err := svc.CurrentCapacity(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CapacityResponse{
		CurrentCapacity: 5,
		ActiveUsers:     []models.ActiveUser{{Name: "alice", StartTime: "2024-03-14 08:00:00"}},
	}, got)

	_, err = svc.CurrentCapacity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tu.individualCalls["2024-03-14|2024-03-14"], "today's sessions are never cached")
}

func TestCurrentCapacityWithoutHubLogin(t *testing.T) {
	tu := &fakeToolUsage{statuses: []models.ToolStatus{{ToolName: "Laser Cutter", Status: "Available"}}}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, nil, testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	_, err := svc.CurrentCapacity(ctx)

	require.ErrorIs(t, err, models.ErrUpstream)
	assert.Equal(t, 500, models.StatusCode(err))
}

func TestAttendanceOverTime(t *testing.T) {
	tu := &fakeToolUsage{individual: map[string]*models.IndividualUsageReport{
		"2024-03-01|2024-03-05": {UsageList: []models.ToolUsage{
			{ToolName: "Hub Login", InUseBy: []models.UsageSession{
				{Name: "a", StartDateTime: "2024-03-05 09:00:00"},
				{Name: "b", StartDateTime: "2024-03-05 10:00:00"},
				{Name: "a", StartDateTime: "2024-03-01 10:00:00"},
			}},
			{ToolName: "Mill", InUseBy: []models.UsageSession{
				{Name: "c", StartDateTime: "2024-03-01 12:00:00"},
			}},
		}},
	}}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, nil, testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	_, err := svc.AttendanceOverTime(ctx, "", "")
	require.ErrorIs(t, err, models.ErrValidation)

	got, err := svc.AttendanceOverTime(ctx, "2024-03-01", "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, []models.DailyAttendance{
		{Date: "2024-03-01", UniqueUsers: 2},
		{Date: "2024-03-05", UniqueUsers: 2},
	}, got)
}

func TestHubLogins(t *testing.T) {
	report := &models.IndividualUsageReport{UsageList: []models.ToolUsage{{
		ToolName: "Hub Login",
		InUseBy: []models.UsageSession{
			{Name: "a", StartDateTime: "2024-03-05 09:00:00"},
			{Name: "b", StartDateTime: "2024-03-05 10:30:00"},
			{Name: "c", StartDateTime: "2024-03-05 18:00:00"},
			{Name: "d", StartDateTime: "2024-03-05 20:00:00"},
			{Name: "e", StartDateTime: "garbled"},
		},
	}}}
	tu := &fakeToolUsage{individual: map[string]*models.IndividualUsageReport{"2024-03-05|2024-03-05": report}}
	ctx, _, _ := sessionContext("key:id")

	svc := dashboard.NewService(&fakePrintFleet{}, tu, nil, testOptions(t), quietLogger())
	count, err := svc.HubLogins(ctx, "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	opts := testOptions(t)
	hours := opts.Policy.OperatingHours
	hours.Enabled = true
	policy, err := metrics.NewHoursPolicy(hours)
	require.NoError(t, err)
	opts.Hours = policy

	svc = dashboard.NewService(&fakePrintFleet{}, tu, nil, opts, quietLogger())
	count, err = svc.HubLogins(ctx, "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = svc.HubLogins(ctx, "March 5")
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestToolStates(t *testing.T) {
	tu := &fakeToolUsage{statuses: []models.ToolStatus{
		{ToolName: "Hub Login", Status: "In use by 5"},
		{ToolName: "Laser Cutter", Status: "Available"},
	}}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, nil, testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	got, err := svc.ToolStates(ctx)

	require.NoError(t, err)
	assert.Equal(t, []models.ToolState{{ToolName: "Laser Cutter", Status: "Available", Available: true}}, got)
}

func TestUpstreamFailureFailsWholeMetric(t *testing.T) {
	tu := &fakeToolUsage{err: models.NewUpstreamError("SUMS returned 502")}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, nil, testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	_, err := svc.AttendanceSummary(ctx)

	require.ErrorIs(t, err, models.ErrUpstream)
}

func TestWarmFillsSemesterWindows(t *testing.T) {
	tu := &fakeToolUsage{}
	svc := dashboard.NewService(&fakePrintFleet{}, tu, newLoader(t), testOptions(t), quietLogger())
	ctx, _, _ := sessionContext("key:id")

	require.NoError(t, svc.Warm(ctx))
	assert.Equal(t, 1, tu.individualCalls["2024-01-01|2024-03-13"])
	assert.Equal(t, 1, tu.individualCalls["2023-01-01|2024-01-01"])

	_, err := svc.NewStudentsSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, tu.individualCalls["2024-01-01|2024-03-13"])
	assert.Equal(t, 1, tu.individualCalls["2023-01-01|2024-01-01"])
}
