// Package dashboard computes every dashboard metric: it obtains the request's
// upstream sessions, fetches raw records (through the cache where the query
// shape allows it), and hands them to the aggregation functions.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/cache"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/metrics"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// Re-authentication budget for every upstream call.
const authRetries = 1

// Default listing page for job queries.
const (
	DefaultJobLimit  = 20
	DefaultJobOffset = 0
)

// PrintFleet is the subset of the print fleet client the service needs.
type PrintFleet interface {
	ListPrinters(ctx context.Context, session string) ([]models.Printer, error)
	ListJobs(ctx context.Context, session, printerID string, limit, offset int) ([]models.Job, error)
	GetJobInfo(ctx context.Context, session, jobID string) (*models.Job, error)
	CustomReport(ctx context.Context, session, from, to string, fields models.ReportFields) (*models.RawTable, error)
	FinishedJobsReport(ctx context.Context, session, from, to string) ([]models.FinishedJob, error)
}

// ToolUsage is the subset of the tool usage client the service needs.
type ToolUsage interface {
	DailyUsage(ctx context.Context, credential, from, to string) ([]models.DailyUsage, error)
	IndividualUsages(ctx context.Context, credential, from, to string) (*models.IndividualUsageReport, error)
	ToolStatus(ctx context.Context, credential string) ([]models.ToolStatus, error)
}

// Service computes the dashboard metrics. Every method expects the upstream
// session of its source system in ctx (see client.WithSession).
type Service interface {
	AverageDuration(ctx context.Context, from, to string) ([]models.EntityAverage, error)
	PeriodSuccess(ctx context.Context, period, date string) ([]models.PeriodSuccess, error)
	CancellationReasons(ctx context.Context, from, to string) ([]models.ReasonShare, error)
	PrintPurposes(ctx context.Context, from, to string) ([]models.CategoryCount, error)
	Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error)
	JobStatusCounts(ctx context.Context, printerID string, limit, offset int) (map[string]models.JobStatusCounts, error)
	PrinterTiming(ctx context.Context) (map[string]models.PrinterTimings, error)
	Printers(ctx context.Context) ([]models.Printer, error)
	Job(ctx context.Context, jobID string) (*models.Job, error)

	AttendanceSummary(ctx context.Context) (models.AttendanceSummary, error)
	AttendanceTrend(ctx context.Context) (models.AttendanceTrend, error)
	UsageHoursSummary(ctx context.Context) (models.UsageHoursSummary, error)
	UsageHoursTrend(ctx context.Context) (models.UsageHoursTrend, error)
	NewStudentsSummary(ctx context.Context) (models.NewStudentsSummary, error)
	NewStudentsTrend(ctx context.Context) (models.NewStudentsTrend, error)
	CurrentCapacity(ctx context.Context) (models.CapacityResponse, error)
	AttendanceOverTime(ctx context.Context, from, to string) ([]models.DailyAttendance, error)
	HubLogins(ctx context.Context, date string) (int, error)
	ToolStates(ctx context.Context) ([]models.ToolState, error)

	// Warm loads the semester usage windows the trend metrics read into the cache.
	Warm(ctx context.Context) error
}

// Options tunes the aggregation.
type Options struct {
	Metrics  config.MetricsConfig
	Policy   config.Policy
	Location *time.Location
	Hours    *metrics.HoursPolicy
	// Now overrides the clock in tests.
	Now func() time.Time
}

type service struct {
	printFleet PrintFleet
	toolUsage  ToolUsage
	loader     *cache.Loader
	opts       Options
	logger     *logrus.Logger
}

// NewService creates the dashboard service. loader may be nil to disable caching.
func NewService(
	printFleet PrintFleet,
	toolUsage ToolUsage,
	loader *cache.Loader,
	opts Options,
	logger *logrus.Logger,
) Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics.TrendLength < 2 {
		opts.Metrics.TrendLength = 7
	}
	if opts.Metrics.FanOutLimit < 1 {
		opts.Metrics.FanOutLimit = 1
	}
	if opts.Metrics.AttendanceTool == "" {
		opts.Metrics.AttendanceTool = "Hub Login"
	}
	return &service{
		printFleet: printFleet,
		toolUsage:  toolUsage,
		loader:     loader,
		opts:       opts,
		logger:     logger,
	}
}

func (s *service) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

func (s *service) today() time.Time {
	return metrics.Day(s.now(), s.opts.Location)
}

// yesterday is the reference day of the default and trend views.
func (s *service) yesterday() time.Time {
	return metrics.Yesterday(s.now(), s.opts.Location)
}

func (s *service) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Metrics.FanOutLimit)
	return g, gctx
}

// withSession runs fn with the request's credential for system, refreshing
// it once on an authentication failure.
func withSession[T any](
	ctx context.Context,
	system string,
	fn func(ctx context.Context, credential string) (T, error),
) (T, error) {
	session, ok := client.SessionFromContext(ctx, system)
	if !ok {
		var zero T
		return zero, models.NewAuthenticationError(fmt.Sprintf("no %s session on request", system))
	}
	return client.WithRetryOnAuthFailure(ctx, session, authRetries, fn)
}

// parseDate parses a YYYY-MM-DD query value in the service location. An empty
// value yields fallback.
func (s *service) parseDate(field, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseInLocation(metrics.DateLayout, value, s.opts.Location)
	if err != nil {
		return time.Time{}, models.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// parseRange validates a from/to pair. Both empty selects the default window;
// exactly one empty is rejected, as is a range that ends before it starts.
func (s *service) parseRange(from, to string, fallback metrics.Window) (metrics.Window, error) {
	if from == "" && to == "" {
		return fallback, nil
	}

	var errs models.ValidationErrors
	if from == "" {
		errs.Add("from", "is required when to is given")
	}
	if to == "" {
		errs.Add("to", "is required when from is given")
	}
	if errs.HasErrors() {
		return metrics.Window{}, models.NewValidationFailure(errs)
	}

	start, err := s.parseDate("from", from, time.Time{})
	if err != nil {
		return metrics.Window{}, err
	}
	end, err := s.parseDate("to", to, time.Time{})
	if err != nil {
		return metrics.Window{}, err
	}
	if end.Before(start) {
		return metrics.Window{}, models.NewValidationError("to", "must not be before from")
	}
	return metrics.Window{Start: start, End: end}, nil
}

// lastDays is the window of n days before today through today.
func (s *service) lastDays(n int) metrics.Window {
	today := s.today()
	return metrics.Window{Start: today.AddDate(0, 0, -n), End: today}
}
