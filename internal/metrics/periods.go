// Package metrics turns raw upstream rows into dashboard metrics. Every function
// is pure: rows that cannot be parsed are skipped, and no state survives a call.
package metrics

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the YYYY-MM-DD form used for upstream date ranges and period labels.
const DateLayout = "2006-01-02"

// timestampLayouts are tried in order. Layouts without an offset are read in
// the caller's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 3:04:05 PM",
	"1/2/2006 3:04:05 PM",
	DateLayout,
}

// ParseTimestamp parses the timestamp shapes the vendors emit.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// Window is an inclusive range of whole days.
type Window struct {
	Start time.Time
	End   time.Time
}

// From returns the first day as YYYY-MM-DD.
func (w Window) From() string { return w.Start.Format(DateLayout) }

// To returns the last day as YYYY-MM-DD.
func (w Window) To() string { return w.End.Format(DateLayout) }

// Contains reports whether t falls on or between the window's days.
func (w Window) Contains(t time.Time) bool {
	t = t.In(w.Start.Location())
	return !t.Before(w.Start) && t.Before(w.End.AddDate(0, 0, 1))
}

// Day truncates t to midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayWindow is the single day containing t.
func DayWindow(t time.Time, loc *time.Location) Window {
	d := Day(t, loc)
	return Window{Start: d, End: d}
}

// Yesterday is the last day whose data is considered final.
func Yesterday(now time.Time, loc *time.Location) time.Time {
	return Day(now, loc).AddDate(0, 0, -1)
}

// TrailingWeek is the seven days ending on ref.
func TrailingWeek(ref time.Time) Window {
	return Window{Start: ref.AddDate(0, 0, -6), End: ref}
}

// MonthToDate runs from the first of ref's month to ref.
func MonthToDate(ref time.Time) Window {
	return Window{Start: time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location()), End: ref}
}

// CalendarMonth is the whole month containing t.
func CalendarMonth(t time.Time, loc *time.Location) Window {
	t = t.In(loc)
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return Window{Start: first, End: first.AddDate(0, 1, -1)}
}

// StartOfWeek returns the Sunday on or before d.
func StartOfWeek(d time.Time) time.Time {
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// TrailingMonths returns n month windows ending with the month of ref, oldest
// first. Months are aligned to calendar boundaries and the last one ends on ref.
func TrailingMonths(ref time.Time, n int) []Window {
	windows := make([]Window, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := time.Date(ref.Year(), ref.Month()-time.Month(i), 1, 0, 0, 0, 0, ref.Location())
		end := start.AddDate(0, 1, -1)
		if i == 0 {
			end = ref
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows
}

// SameDayPreviousMonth steps ref back one calendar month, clamping to the last
// day of that month (March 31 becomes February 28 or 29).
func SameDayPreviousMonth(ref time.Time) time.Time {
	first := time.Date(ref.Year(), ref.Month()-1, 1, 0, 0, 0, 0, ref.Location())
	last := first.AddDate(0, 1, -1).Day()
	day := ref.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, ref.Location())
}

// PercentChange is (current-previous)/previous*100, or 0 when previous is 0.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// FormatPercentChange renders a change as "+12.5%", "-3.0%" or "0.0%".
func FormatPercentChange(pct float64) string {
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%%", sign, pct)
}

// FormatPercent renders part/total as "NN.NN%", or "0.00%" when total is 0.
func FormatPercent(part, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(part)/float64(total)*100)
}

// FormatFixed renders v with two decimals.
func FormatFixed(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
