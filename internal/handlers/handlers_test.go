package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// fakeService returns canned results, or err from every method when set.
type fakeService struct {
	err error

	lastFrom, lastTo string
	lastPeriod       string
	lastPrinter      string
	lastLimit        int
	lastOffset       int
	lastJob          string

	averages    []models.EntityAverage
	leaderboard []models.LeaderboardEntry
	counts      map[string]models.JobStatusCounts
	job         *models.Job
	attendance  models.AttendanceSummary
	trend       models.AttendanceTrend
	capacity    models.CapacityResponse
	days        []models.DailyAttendance
	hubLogins   int
	tools       []models.ToolState
}

func (f *fakeService) AverageDuration(_ context.Context, from, to string) ([]models.EntityAverage, error) {
	f.lastFrom, f.lastTo = from, to
	return f.averages, f.err
}

func (f *fakeService) PeriodSuccess(_ context.Context, period, date string) ([]models.PeriodSuccess, error) {
	f.lastPeriod, f.lastTo = period, date
	return []models.PeriodSuccess{}, f.err
}

func (f *fakeService) CancellationReasons(_ context.Context, from, to string) ([]models.ReasonShare, error) {
	f.lastFrom, f.lastTo = from, to
	return []models.ReasonShare{}, f.err
}

func (f *fakeService) PrintPurposes(_ context.Context, from, to string) ([]models.CategoryCount, error) {
	f.lastFrom, f.lastTo = from, to
	return []models.CategoryCount{}, f.err
}

func (f *fakeService) Leaderboard(context.Context) ([]models.LeaderboardEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.leaderboard, nil
}

func (f *fakeService) JobStatusCounts(
	_ context.Context,
	printerID string,
	limit, offset int,
) (map[string]models.JobStatusCounts, error) {
	f.lastPrinter, f.lastLimit, f.lastOffset = printerID, limit, offset
	return f.counts, f.err
}

func (f *fakeService) PrinterTiming(context.Context) (map[string]models.PrinterTimings, error) {
	return map[string]models.PrinterTimings{}, f.err
}

func (f *fakeService) Printers(context.Context) ([]models.Printer, error) {
	return []models.Printer{}, f.err
}

func (f *fakeService) Job(_ context.Context, jobID string) (*models.Job, error) {
	f.lastJob = jobID
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

func (f *fakeService) AttendanceSummary(context.Context) (models.AttendanceSummary, error) {
	return f.attendance, f.err
}

func (f *fakeService) AttendanceTrend(context.Context) (models.AttendanceTrend, error) {
	return f.trend, f.err
}

func (f *fakeService) UsageHoursSummary(context.Context) (models.UsageHoursSummary, error) {
	return models.UsageHoursSummary{DayUsageHours: "1.50"}, f.err
}

func (f *fakeService) UsageHoursTrend(context.Context) (models.UsageHoursTrend, error) {
	return models.UsageHoursTrend{Trend: []float64{1, 2}}, f.err
}

func (f *fakeService) NewStudentsSummary(context.Context) (models.NewStudentsSummary, error) {
	return models.NewStudentsSummary{SemesterNewUsers: 12, Semester: "Fall 2026"}, f.err
}

func (f *fakeService) NewStudentsTrend(context.Context) (models.NewStudentsTrend, error) {
	return models.NewStudentsTrend{Trend: []float64{3, 4}}, f.err
}

func (f *fakeService) CurrentCapacity(context.Context) (models.CapacityResponse, error) {
	return f.capacity, f.err
}

func (f *fakeService) AttendanceOverTime(_ context.Context, from, to string) ([]models.DailyAttendance, error) {
	f.lastFrom, f.lastTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.days, nil
}

func (f *fakeService) HubLogins(_ context.Context, date string) (int, error) {
	f.lastTo = date
	if f.err != nil {
		return 0, f.err
	}
	return f.hubLogins, nil
}

func (f *fakeService) ToolStates(context.Context) ([]models.ToolState, error) {
	return f.tools, f.err
}

func (f *fakeService) Warm(context.Context) error {
	return f.err
}
