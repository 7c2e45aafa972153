package dashboard_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client/printfleet"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client/toolusage"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/dashboard"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fixedNow is Thursday 2024-03-14 09:00 in New York; "yesterday" is 2024-03-13.
func fixedNow(t *testing.T) (time.Time, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2024, 3, 14, 9, 0, 0, 0, loc), loc
}

func testOptions(t *testing.T) dashboard.Options {
	now, loc := fixedNow(t)
	return dashboard.Options{
		Metrics: config.MetricsConfig{
			LeaderboardLimit:  11,
			ReasonsLimit:      10,
			PurposesLimit:     10,
			TrendLength:       7,
			OpenSessionWindow: 12 * time.Hour,
			AttendanceTool:    "Hub Login",
			FanOutLimit:       4,
		},
		Policy:   config.DefaultPolicy(),
		Location: loc,
		Now:      func() time.Time { return now },
	}
}

// stubBroker hands out a fixed fresh credential.
type stubBroker struct {
	system      string
	fresh       string
	mu          sync.Mutex
	invalidated []string
}

func (b *stubBroker) GetCredential(_ context.Context, supplied string) (string, error) {
	if supplied != "" {
		return supplied, nil
	}
	return b.fresh, nil
}

func (b *stubBroker) Invalidate(stale string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invalidated = append(b.invalidated, stale)
}

func (b *stubBroker) System() string { return b.system }

// sessionContext attaches sessions for both systems starting from credential.
func sessionContext(credential string) (context.Context, *stubBroker, *stubBroker) {
	pf := &stubBroker{system: printfleet.System, fresh: "fresh-session"}
	tu := &stubBroker{system: toolusage.System, fresh: "key:id"}
	ctx := client.WithSession(context.Background(), client.NewSession(pf, credential))
	ctx = client.WithSession(ctx, client.NewSession(tu, credential))
	return ctx, pf, tu
}

type reportCall struct {
	session  string
	from, to string
	fields   models.ReportFields
}

type fakePrintFleet struct {
	mu sync.Mutex

	printers []models.Printer
	jobs     map[string][]models.Job
	details  map[string]models.Job
	tables   map[string]*models.RawTable
	finished []models.FinishedJob
	// rejects makes every call with this session fail authentication.
	rejects string

	reportCalls   []reportCall
	finishedRange [2]string
	listJobCalls  []string
}

func (f *fakePrintFleet) check(session string) error {
	if f.rejects != "" && session == f.rejects {
		return models.NewAuthenticationError("session expired")
	}
	return nil
}

func (f *fakePrintFleet) ListPrinters(_ context.Context, session string) ([]models.Printer, error) {
	if err := f.check(session); err != nil {
		return nil, err
	}
	return f.printers, nil
}

func (f *fakePrintFleet) ListJobs(_ context.Context, session, printerID string, limit, offset int) ([]models.Job, error) {
	if err := f.check(session); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.listJobCalls = append(f.listJobCalls, printerID)
	f.mu.Unlock()
	return f.jobs[printerID], nil
}

func (f *fakePrintFleet) GetJobInfo(_ context.Context, session, jobID string) (*models.Job, error) {
	if err := f.check(session); err != nil {
		return nil, err
	}
	job, ok := f.details[jobID]
	if !ok {
		return nil, models.NewNotFoundError("job not found")
	}
	return &job, nil
}

func (f *fakePrintFleet) CustomReport(_ context.Context, session, from, to string, fields models.ReportFields) (*models.RawTable, error) {
	if err := f.check(session); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.reportCalls = append(f.reportCalls, reportCall{session: session, from: from, to: to, fields: fields})
	f.mu.Unlock()
	if table, ok := f.tables[from+"|"+to]; ok {
		return table, nil
	}
	return models.NewRawTable(nil), nil
}

func (f *fakePrintFleet) FinishedJobsReport(_ context.Context, session, from, to string) ([]models.FinishedJob, error) {
	if err := f.check(session); err != nil {
		return nil, err
	}
	f.finishedRange = [2]string{from, to}
	return f.finished, nil
}

type fakeToolUsage struct {
	mu sync.Mutex

	individual map[string]*models.IndividualUsageReport
	daily      map[string][]models.DailyUsage
	statuses   []models.ToolStatus
	err        error

	individualCalls map[string]int
	dailyCalls      int
}

func (f *fakeToolUsage) DailyUsage(_ context.Context, _, from, to string) ([]models.DailyUsage, error) {
	f.mu.Lock()
	f.dailyCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.daily[from+"|"+to], nil
}

func (f *fakeToolUsage) IndividualUsages(_ context.Context, _, from, to string) (*models.IndividualUsageReport, error) {
	f.mu.Lock()
	if f.individualCalls == nil {
		f.individualCalls = make(map[string]int)
	}
	f.individualCalls[from+"|"+to]++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if report, ok := f.individual[from+"|"+to]; ok {
		return report, nil
	}
	return &models.IndividualUsageReport{UsageList: []models.ToolUsage{}}, nil
}

func (f *fakeToolUsage) ToolStatus(context.Context, string) ([]models.ToolStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.statuses, nil
}

func (f *fakeToolUsage) totalIndividualCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.individualCalls {
		n += c
	}
	return n
}

func hubLogins(names ...string) *models.IndividualUsageReport {
	sessions := make([]models.UsageSession, 0, len(names))
	for _, n := range names {
		sessions = append(sessions, models.UsageSession{Name: n, StartDateTime: "2024-03-13 10:00:00"})
	}
	return &models.IndividualUsageReport{UsageList: []models.ToolUsage{
		{ToolName: "Hub Login", InUseBy: sessions},
		{ToolName: "Laser Cutter", InUseBy: []models.UsageSession{
			{Name: "laser-only", StartDateTime: "2024-03-13 11:00:00"},
		}},
	}}
}
