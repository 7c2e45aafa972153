package dashboard

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/cache"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client/toolusage"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/metrics"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// Cache key shapes.
const (
	shapeIndividualUsage = "individual-usage"
	shapeDailyUsage      = "daily-usage"
)

// individualUsages fetches the per-tool sessions of w. Windows that end before
// today are final and go through the cache.
func (s *service) individualUsages(ctx context.Context, w metrics.Window) (*models.IndividualUsageReport, error) {
	load := func(ctx context.Context) (*models.IndividualUsageReport, error) {
		return withSession(ctx, toolusage.System, func(ctx context.Context, credential string) (*models.IndividualUsageReport, error) {
			return s.toolUsage.IndividualUsages(ctx, credential, w.From(), w.To())
		})
	}
	if !w.End.Before(s.today()) {
		return load(ctx)
	}
	return cache.Fetch(ctx, s.loader, cache.Key(shapeIndividualUsage, w.From(), w.To()), load)
}

func (s *service) dailyUsage(ctx context.Context, w metrics.Window) ([]models.DailyUsage, error) {
	load := func(ctx context.Context) ([]models.DailyUsage, error) {
		return withSession(ctx, toolusage.System, func(ctx context.Context, credential string) ([]models.DailyUsage, error) {
			return s.toolUsage.DailyUsage(ctx, credential, w.From(), w.To())
		})
	}
	if !w.End.Before(s.today()) {
		return load(ctx)
	}
	return cache.Fetch(ctx, s.loader, cache.Key(shapeDailyUsage, w.From(), w.To()), load)
}

func (s *service) toolStatus(ctx context.Context) ([]models.ToolStatus, error) {
	return withSession(ctx, toolusage.System, func(ctx context.Context, credential string) ([]models.ToolStatus, error) {
		return s.toolUsage.ToolStatus(ctx, credential)
	})
}

// actors returns the distinct attendance-tool actors of each window, in order.
func (s *service) actors(ctx context.Context, windows ...metrics.Window) ([]metrics.ActorSet, error) {
	sets := make([]metrics.ActorSet, len(windows))
	tool := s.opts.Metrics.AttendanceTool

	g, gctx := s.group(ctx)
	for i, w := range windows {
		g.Go(func() error {
			report, err := s.individualUsages(gctx, w)
			if err != nil {
				return err
			}
			sets[i] = metrics.UniqueActorSet(metrics.ToolSessions(report, tool), s.opts.Location)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

// hours returns the summed usage hours of each window, in order.
func (s *service) hours(ctx context.Context, windows ...metrics.Window) ([]float64, error) {
	totals := make([]float64, len(windows))

	g, gctx := s.group(ctx)
	for i, w := range windows {
		g.Go(func() error {
			rows, err := s.dailyUsage(gctx, w)
			if err != nil {
				return err
			}
			totals[i] = metrics.SumUsageHours(rows, s.opts.Policy.ExcludedTools)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return totals, nil
}

func (s *service) AttendanceSummary(ctx context.Context) (models.AttendanceSummary, error) {
	ref := s.yesterday()
	sets, err := s.actors(ctx,
		metrics.Window{Start: ref, End: ref},
		metrics.TrailingWeek(ref),
		metrics.MonthToDate(ref),
	)
	if err != nil {
		return models.AttendanceSummary{}, err
	}
	return models.AttendanceSummary{
		DayActive:   len(sets[0]),
		WeekActive:  len(sets[1]),
		MonthActive: len(sets[2]),
	}, nil
}

// trendWindows returns the trailing month windows followed by the reference
// day and the same day one month earlier.
func (s *service) trendWindows(ref time.Time) []metrics.Window {
	previous := metrics.SameDayPreviousMonth(ref)
	windows := metrics.TrailingMonths(ref, s.opts.Metrics.TrendLength)
	return append(windows,
		metrics.Window{Start: ref, End: ref},
		metrics.Window{Start: previous, End: previous},
	)
}

func (s *service) AttendanceTrend(ctx context.Context) (models.AttendanceTrend, error) {
	windows := s.trendWindows(s.yesterday())
	sets, err := s.actors(ctx, windows...)
	if err != nil {
		return models.AttendanceTrend{}, err
	}

	n := s.opts.Metrics.TrendLength
	trend := make([]float64, n)
	for i := range n {
		trend[i] = float64(len(sets[i]))
	}
	currentDay := float64(len(sets[n]))
	previousDay := float64(len(sets[n+1]))

	return models.AttendanceTrend{
		CurrentUsers:    metrics.FormatFixed(trend[n-1]),
		PreviousUsers:   metrics.FormatFixed(previousDay),
		PercentChange:   metrics.FormatPercentChange(metrics.PercentChange(currentDay, previousDay)),
		CurrentDayUsers: metrics.FormatFixed(currentDay),
		Trend:           trend,
	}, nil
}

func (s *service) UsageHoursSummary(ctx context.Context) (models.UsageHoursSummary, error) {
	ref := s.yesterday()
	totals, err := s.hours(ctx,
		metrics.Window{Start: ref, End: ref},
		metrics.TrailingWeek(ref),
		metrics.MonthToDate(ref),
	)
	if err != nil {
		return models.UsageHoursSummary{}, err
	}
	return models.UsageHoursSummary{
		DayUsageHours:   metrics.FormatFixed(totals[0]),
		WeekUsageHours:  metrics.FormatFixed(totals[1]),
		MonthUsageHours: metrics.FormatFixed(totals[2]),
	}, nil
}

func (s *service) UsageHoursTrend(ctx context.Context) (models.UsageHoursTrend, error) {
	windows := s.trendWindows(s.yesterday())
	totals, err := s.hours(ctx, windows...)
	if err != nil {
		return models.UsageHoursTrend{}, err
	}

	n := s.opts.Metrics.TrendLength
	trend := make([]float64, n)
	for i := range n {
		trend[i] = metrics.Round2(totals[i])
	}
	currentDay := totals[n]
	previousDay := totals[n+1]

	return models.UsageHoursTrend{
		CurrentHours:    metrics.FormatFixed(trend[n-1]),
		PreviousHours:   metrics.FormatFixed(previousDay),
		PercentChange:   metrics.FormatPercentChange(metrics.PercentChange(currentDay, previousDay)),
		CurrentDayHours: metrics.FormatFixed(currentDay),
		Trend:           trend,
	}, nil
}

// newActors counts, for each window, the actors absent from that window's
// reference period (the same semester one year earlier up to the window start).
// Trend months use it; each month has its own reference.
func (s *service) newActors(ctx context.Context, ref time.Time, windows []metrics.Window) ([]int, error) {
	all := make([]metrics.Window, 0, 2*len(windows))
	for _, w := range windows {
		all = append(all, w, metrics.ReferenceWindow(ref, w.Start))
	}

	sets, err := s.actors(ctx, all...)
	if err != nil {
		return nil, err
	}

	counts := make([]int, len(windows))
	for i := range windows {
		counts[i] = metrics.NewActors(sets[2*i], sets[2*i+1])
	}
	return counts, nil
}

// NewStudentsSummary compares the day, week and semester-to-date actors with
// one reference period: the same semester a year earlier up to the current
// semester start.
func (s *service) NewStudentsSummary(ctx context.Context) (models.NewStudentsSummary, error) {
	ref := s.yesterday()
	semester := metrics.SemesterToDate(ref)

	sets, err := s.actors(ctx,
		metrics.Window{Start: ref, End: ref},
		metrics.TrailingWeek(ref),
		semester,
		metrics.ReferenceWindow(ref, semester.Start),
	)
	if err != nil {
		return models.NewStudentsSummary{}, err
	}
	reference := sets[3]
	return models.NewStudentsSummary{
		DayNewUsers:      metrics.NewActors(sets[0], reference),
		WeekNewUsers:     metrics.NewActors(sets[1], reference),
		SemesterNewUsers: metrics.NewActors(sets[2], reference),
		Semester:         metrics.SemesterOf(ref).String(),
	}, nil
}

func (s *service) NewStudentsTrend(ctx context.Context) (models.NewStudentsTrend, error) {
	ref := s.yesterday()
	n := s.opts.Metrics.TrendLength

	months := metrics.TrailingMonths(ref, n)
	counts, err := s.newActors(ctx, ref, months)
	if err != nil {
		return models.NewStudentsTrend{}, err
	}

	previous := metrics.SameDayPreviousMonth(ref)
	days, err := s.actors(ctx,
		metrics.Window{Start: ref, End: ref},
		metrics.Window{Start: previous, End: previous},
	)
	if err != nil {
		return models.NewStudentsTrend{}, err
	}
	currentDay := float64(metrics.NewActors(days[0], days[1]))

	trend := make([]float64, n)
	for i, c := range counts {
		trend[i] = float64(c)
	}
	previousMonth := trend[n-2]

	return models.NewStudentsTrend{
		CurrentNewUsers:    metrics.FormatFixed(trend[n-1]),
		PreviousNewUsers:   metrics.FormatFixed(previousMonth),
		PercentChange:      metrics.FormatPercentChange(metrics.PercentChange(currentDay, previousMonth)),
		CurrentDayNewUsers: metrics.FormatFixed(currentDay),
		Trend:              trend,
	}, nil
}

func (s *service) CurrentCapacity(ctx context.Context) (models.CapacityResponse, error) {
	tool := s.opts.Metrics.AttendanceTool
	now := s.now()

	var (
		statuses []models.ToolStatus
		report   *models.IndividualUsageReport
	)
	g, gctx := s.group(ctx)
	g.Go(func() error {
		var err error
		statuses, err = s.toolStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		report, err = s.individualUsages(gctx, metrics.DayWindow(now, s.opts.Location))
		return err
	})
	if err := g.Wait(); err != nil {
		return models.CapacityResponse{}, err
	}

	status, ok := metrics.FindTool(statuses, tool)
	if !ok {
		return models.CapacityResponse{}, models.NewUpstreamError(tool + " status not found")
	}

	return models.CapacityResponse{
		CurrentCapacity: metrics.ParseCapacity(status.Status),
		ActiveUsers: metrics.ActiveSessions(
			metrics.ToolSessions(report, tool), now, s.opts.Metrics.OpenSessionWindow, s.opts.Location,
		),
	}, nil
}

func (s *service) AttendanceOverTime(ctx context.Context, from, to string) ([]models.DailyAttendance, error) {
	var errs models.ValidationErrors
	if from == "" {
		errs.Add("from", "is required")
	}
	if to == "" {
		errs.Add("to", "is required")
	}
	if errs.HasErrors() {
		return nil, models.NewValidationFailure(errs)
	}

	w, err := s.parseRange(from, to, metrics.Window{})
	if err != nil {
		return nil, err
	}

	report, err := s.individualUsages(ctx, w)
	if err != nil {
		return nil, err
	}
	return metrics.UniqueActorsByDay(report, s.opts.Location), nil
}

func (s *service) HubLogins(ctx context.Context, date string) (int, error) {
	day, err := s.parseDate("date", date, s.today())
	if err != nil {
		return 0, err
	}

	report, err := s.individualUsages(ctx, metrics.Window{Start: day, End: day})
	if err != nil {
		return 0, err
	}
	sessions := metrics.ToolSessions(report, s.opts.Metrics.AttendanceTool)
	return metrics.CountWithinHours(sessions, s.opts.Hours, s.opts.Location), nil
}

func (s *service) ToolStates(ctx context.Context) ([]models.ToolState, error) {
	statuses, err := s.toolStatus(ctx)
	if err != nil {
		return nil, err
	}
	return metrics.ToolStates(statuses, s.opts.Policy.ExcludedTools), nil
}

func (s *service) Warm(ctx context.Context) error {
	ref := s.yesterday()
	current := metrics.SemesterToDate(ref)
	reference := metrics.ReferenceWindow(ref, current.Start)

	if _, err := s.actors(ctx, current, reference); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"current_from":   current.From(),
		"current_to":     current.To(),
		"reference_from": reference.From(),
		"reference_to":   reference.To(),
	}).Info("Warmed semester usage windows")
	return nil
}
