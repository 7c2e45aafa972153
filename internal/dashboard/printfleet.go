package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client/printfleet"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/metrics"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

func (s *service) customReport(ctx context.Context, w metrics.Window, fields models.ReportFields) (*models.RawTable, error) {
	return withSession(ctx, printfleet.System, func(ctx context.Context, session string) (*models.RawTable, error) {
		return s.printFleet.CustomReport(ctx, session, w.From(), w.To(), fields)
	})
}

func (s *service) listPrinters(ctx context.Context) ([]models.Printer, error) {
	return withSession(ctx, printfleet.System, func(ctx context.Context, session string) ([]models.Printer, error) {
		return s.printFleet.ListPrinters(ctx, session)
	})
}

func (s *service) listJobs(ctx context.Context, printerID string, limit, offset int) ([]models.Job, error) {
	return withSession(ctx, printfleet.System, func(ctx context.Context, session string) ([]models.Job, error) {
		return s.printFleet.ListJobs(ctx, session, printerID, limit, offset)
	})
}

func (s *service) jobInfo(ctx context.Context, jobID string) (*models.Job, error) {
	return withSession(ctx, printfleet.System, func(ctx context.Context, session string) (*models.Job, error) {
		return s.printFleet.GetJobInfo(ctx, session, jobID)
	})
}

func (s *service) AverageDuration(ctx context.Context, from, to string) ([]models.EntityAverage, error) {
	w, err := s.parseRange(from, to, s.lastDays(31))
	if err != nil {
		return nil, err
	}

	table, err := s.customReport(ctx, w, models.PrintTimeFields)
	if err != nil {
		return nil, err
	}
	return metrics.AverageDuration(table, s.opts.Policy.ExcludedPrinters), nil
}

func (s *service) PeriodSuccess(ctx context.Context, period, date string) ([]models.PeriodSuccess, error) {
	p, ok := metrics.ParsePeriod(period)
	if !ok {
		return nil, models.NewValidationError("period", "must be day or week")
	}
	ref, err := s.parseDate("date", date, s.today())
	if err != nil {
		return nil, err
	}

	windows := metrics.TrailingPeriods(p, ref, s.opts.Metrics.TrendLength)
	results := make([]models.PeriodSuccess, len(windows))

	g, gctx := s.group(ctx)
	for i, w := range windows {
		g.Go(func() error {
			table, err := s.customReport(gctx, w, models.AllReportFields)
			if err != nil {
				return err
			}
			results[i] = metrics.PeriodSuccess(table, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *service) CancellationReasons(ctx context.Context, from, to string) ([]models.ReasonShare, error) {
	today := s.today()
	w, err := s.parseRange(from, to, metrics.Window{Start: today.AddDate(0, -3, 0), End: today})
	if err != nil {
		return nil, err
	}

	table, err := s.customReport(ctx, w, models.AllReportFields)
	if err != nil {
		return nil, err
	}
	return metrics.CancellationReasons(table, s.opts.Policy.CancellationCategories, s.opts.Metrics.ReasonsLimit), nil
}

func (s *service) PrintPurposes(ctx context.Context, from, to string) ([]models.CategoryCount, error) {
	w, err := s.parseRange(from, to, s.lastDays(31))
	if err != nil {
		return nil, err
	}

	table, err := s.customReport(ctx, w, models.AllReportFields)
	if err != nil {
		return nil, err
	}
	return metrics.PrintPurposes(table, s.opts.Policy.PurposeCategories, s.opts.Metrics.PurposesLimit), nil
}

func (s *service) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	month := metrics.CalendarMonth(s.now(), s.opts.Location)

	jobs, err := withSession(ctx, printfleet.System, func(ctx context.Context, session string) ([]models.FinishedJob, error) {
		return s.printFleet.FinishedJobsReport(ctx, session, month.From(), month.To())
	})
	if err != nil {
		return nil, err
	}
	return metrics.Leaderboard(jobs, s.opts.Metrics.LeaderboardLimit), nil
}

// printerIDs returns printerID alone when set, otherwise every printer in the
// organization.
func (s *service) printerIDs(ctx context.Context, printerID string) ([]string, error) {
	if printerID != "" {
		return []string{printerID}, nil
	}
	printers, err := s.listPrinters(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(printers))
	for _, p := range printers {
		if id := p.ID.String(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *service) JobStatusCounts(
	ctx context.Context,
	printerID string,
	limit, offset int,
) (map[string]models.JobStatusCounts, error) {
	if limit <= 0 {
		limit = DefaultJobLimit
	}
	if offset < 0 {
		offset = DefaultJobOffset
	}

	ids, err := s.printerIDs(ctx, printerID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	counts := make(map[string]models.JobStatusCounts, len(ids))

	g, gctx := s.group(ctx)
	for _, id := range ids {
		g.Go(func() error {
			jobs, err := s.listJobs(gctx, id, limit, offset)
			if err != nil {
				return err
			}
			tally := metrics.TallyJobStatuses(jobs)
			mu.Lock()
			counts[id] = tally
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// PrinterTiming reports the queued and printing jobs of every printer. Job
// details are re-read so that the timing reflects the job's current state; a
// job that disappears between the two calls is skipped.
func (s *service) PrinterTiming(ctx context.Context) (map[string]models.PrinterTimings, error) {
	ids, err := s.printerIDs(ctx, "")
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	timings := make(map[string]models.PrinterTimings, len(ids))

	g, gctx := s.group(ctx)
	for _, id := range ids {
		g.Go(func() error {
			jobs, err := s.listJobs(gctx, id, DefaultJobLimit, DefaultJobOffset)
			if err != nil {
				return err
			}

			details := make([]models.Job, 0, len(jobs))
			for _, job := range jobs {
				if !metrics.IsActiveJob(job) {
					continue
				}
				detail, err := s.jobInfo(gctx, job.ID.String())
				if errors.Is(err, models.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				details = append(details, *detail)
			}

			result := metrics.QueueTimings(details)
			mu.Lock()
			timings[id] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return timings, nil
}

func (s *service) Printers(ctx context.Context) ([]models.Printer, error) {
	return s.listPrinters(ctx)
}

func (s *service) Job(ctx context.Context, jobID string) (*models.Job, error) {
	if jobID == "" {
		return nil, models.NewValidationError("jobId", "is required")
	}
	return s.jobInfo(ctx, jobID)
}
