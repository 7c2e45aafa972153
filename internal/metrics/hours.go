package metrics

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// HoursPolicy decides whether a login happened during staffed hours.
type HoursPolicy struct {
	enabled  bool
	days     map[time.Weekday]bool
	windows  [][2]int
	holidays *cal.BusinessCalendar
}

// NewHoursPolicy compiles the operating hours configuration.
func NewHoursPolicy(cfg config.OperatingHours) (*HoursPolicy, error) {
	p := &HoursPolicy{enabled: cfg.Enabled, days: make(map[time.Weekday]bool)}
	if !cfg.Enabled {
		return p, nil
	}

	weekdays, err := cfg.Weekdays()
	if err != nil {
		return nil, err
	}
	for _, d := range weekdays {
		p.days[d] = true
	}

	for _, w := range cfg.Windows {
		start, end, err := w.Minutes()
		if err != nil {
			return nil, err
		}
		p.windows = append(p.windows, [2]int{start, end})
	}

	if cfg.ExcludeHolidays {
		p.holidays = cal.NewBusinessCalendar()
		p.holidays.AddHoliday(us.Holidays...)
	}
	return p, nil
}

// Allows reports whether t falls on an operating day, inside a window (bounds
// inclusive) and, when configured, not on a US federal holiday. A disabled
// policy allows everything.
func (p *HoursPolicy) Allows(t time.Time) bool {
	if p == nil || !p.enabled {
		return true
	}
	if !p.days[t.Weekday()] {
		return false
	}
	if p.holidays != nil {
		if actual, observed, _ := p.holidays.IsHoliday(t); actual || observed {
			return false
		}
	}
	minute := t.Hour()*60 + t.Minute()
	for _, w := range p.windows {
		if minute >= w[0] && minute <= w[1] {
			return true
		}
	}
	return false
}

// CountWithinHours counts the sessions whose start the policy allows.
func CountWithinHours(sessions []models.UsageSession, policy *HoursPolicy, loc *time.Location) int {
	n := 0
	for _, s := range sessions {
		start, ok := ParseTimestamp(s.StartDateTime, loc)
		if !ok {
			continue
		}
		if policy.Allows(start) {
			n++
		}
	}
	return n
}
