package metrics

import (
	"time"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// Period is the granularity of the success rate series.
type Period string

// Supported periods.
const (
	PeriodDay  Period = "day"
	PeriodWeek Period = "week"
)

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case PeriodDay, PeriodWeek:
		return Period(s), true
	}
	return "", false
}

// TrailingPeriods returns the n day or week windows ending with the one that
// contains ref, oldest first. Weeks run Sunday to Saturday.
func TrailingPeriods(period Period, ref time.Time, n int) []Window {
	windows := make([]Window, 0, n)
	for i := n - 1; i >= 0; i-- {
		if period == PeriodWeek {
			start := StartOfWeek(ref.AddDate(0, 0, -7*i))
			windows = append(windows, Window{Start: start, End: start.AddDate(0, 0, 6)})
			continue
		}
		d := ref.AddDate(0, 0, -i)
		windows = append(windows, Window{Start: d, End: d})
	}
	return windows
}

// PeriodSuccess counts the jobs started inside w and how many finished or were
// cancelled. Rows without a parseable start are skipped. The label is the
// window's first day.
func PeriodSuccess(table *models.RawTable, w Window) models.PeriodSuccess {
	loc := w.Start.Location()
	result := models.PeriodSuccess{Period: w.From()}

	for _, row := range table.JobRows() {
		started, ok := ParseTimestamp(row.StartedAt, loc)
		if !ok || !w.Contains(started) {
			continue
		}
		result.TotalJobs++
		switch row.Status {
		case models.ReportStatusDone:
			result.CompletedJobs++
		case models.ReportStatusCancelled:
			result.CancelledJobs++
		}
	}

	result.PercentSuccessful = FormatPercent(result.CompletedJobs, result.TotalJobs)
	return result
}
