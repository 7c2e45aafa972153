package metrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// ActorSet is a set of distinct actor names.
type ActorSet map[string]struct{}

// UniqueActorSet collects the names of sessions with a name and a parseable start.
func UniqueActorSet(sessions []models.UsageSession, loc *time.Location) ActorSet {
	set := make(ActorSet)
	for _, s := range sessions {
		if s.Name == "" {
			continue
		}
		if _, ok := ParseTimestamp(s.StartDateTime, loc); !ok {
			continue
		}
		set[s.Name] = struct{}{}
	}
	return set
}

// UniqueActors counts distinct actors.
func UniqueActors(sessions []models.UsageSession, loc *time.Location) int {
	return len(UniqueActorSet(sessions, loc))
}

// NewActors counts the actors of current that are absent from reference.
func NewActors(current, reference ActorSet) int {
	n := 0
	for name := range current {
		if _, seen := reference[name]; !seen {
			n++
		}
	}
	return n
}

// ToolSessions returns the sessions recorded against tool, or nil.
func ToolSessions(report *models.IndividualUsageReport, tool string) []models.UsageSession {
	if t := report.Tool(tool); t != nil {
		return t.InUseBy
	}
	return nil
}

// ActiveSessions returns the distinct actors whose session is open at now. A
// session with an end time is open when it brackets now. A session without one
// is open when it started within openWindow before now.
func ActiveSessions(sessions []models.UsageSession, now time.Time, openWindow time.Duration, loc *time.Location) []models.ActiveUser {
	seen := make(map[string]struct{})
	active := []models.ActiveUser{}

	for _, s := range sessions {
		if s.Name == "" {
			continue
		}
		start, ok := ParseTimestamp(s.StartDateTime, loc)
		if !ok || start.After(now) {
			continue
		}
		if end, hasEnd := ParseTimestamp(s.EndDateTime, loc); hasEnd {
			if now.After(end) {
				continue
			}
		} else if now.Sub(start) > openWindow {
			continue
		}
		if _, dup := seen[s.Name]; dup {
			continue
		}
		seen[s.Name] = struct{}{}
		active = append(active, models.ActiveUser{
			Name:      s.Name,
			StartTime: s.StartDateTime,
			EndTime:   s.EndDateTime,
		})
	}
	return active
}

// UniqueActorsByDay counts distinct actors per start day across every tool, in
// date order.
func UniqueActorsByDay(report *models.IndividualUsageReport, loc *time.Location) []models.DailyAttendance {
	days := make(map[string]ActorSet)
	for _, tool := range report.UsageList {
		for _, s := range tool.InUseBy {
			if s.Name == "" {
				continue
			}
			start, ok := ParseTimestamp(s.StartDateTime, loc)
			if !ok {
				continue
			}
			key := start.Format(DateLayout)
			if days[key] == nil {
				days[key] = make(ActorSet)
			}
			days[key][s.Name] = struct{}{}
		}
	}

	out := make([]models.DailyAttendance, 0, len(days))
	for date, set := range days {
		out = append(out, models.DailyAttendance{Date: date, UniqueUsers: len(set)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

var inUseBy = regexp.MustCompile(`In use by (\d+)`)

// ParseCapacity extracts N from "In use by N". Any other status is 0.
func ParseCapacity(status string) int {
	m := inUseBy.FindStringSubmatch(status)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// FindTool returns the status row of a tool by exact name.
func FindTool(statuses []models.ToolStatus, name string) (models.ToolStatus, bool) {
	for _, s := range statuses {
		if s.ToolName == name {
			return s, true
		}
	}
	return models.ToolStatus{}, false
}

// ToolStates derives the availability flag for every tool not excluded.
func ToolStates(statuses []models.ToolStatus, excluded []string) []models.ToolState {
	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[strings.TrimSpace(e)] = struct{}{}
	}

	out := make([]models.ToolState, 0, len(statuses))
	for _, s := range statuses {
		if _, ok := skip[s.ToolName]; ok {
			continue
		}
		out = append(out, models.ToolState{ToolName: s.ToolName, Status: s.Status, Available: s.Available()})
	}
	return out
}
