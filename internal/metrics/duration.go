package metrics

import (
	"strconv"
	"strings"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// AverageDuration averages the real print time per printer, in minutes rounded
// to two decimals. Printers whose name contains an excluded name (case
// insensitive) are skipped, as are rows with an unparseable duration. Output is
// in first-seen order.
func AverageDuration(table *models.RawTable, excluded []string) []models.EntityAverage {
	type accumulator struct {
		sum   float64
		count int
		name  string
	}

	lowered := make([]string, 0, len(excluded))
	for _, e := range excluded {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			lowered = append(lowered, e)
		}
	}

	var order []string
	acc := make(map[string]*accumulator)

	for _, row := range table.PrintTimeRows() {
		if row.PrinterID == "" || isExcluded(row.PrinterName, lowered) {
			continue
		}
		minutes, ok := ParseDurationMinutes(row.RealPrintTime)
		if !ok {
			continue
		}
		a, seen := acc[row.PrinterID]
		if !seen {
			a = &accumulator{name: row.PrinterName}
			acc[row.PrinterID] = a
			order = append(order, row.PrinterID)
		}
		a.sum += float64(minutes)
		a.count++
	}

	out := make([]models.EntityAverage, 0, len(order))
	for _, id := range order {
		a := acc[id]
		out = append(out, models.EntityAverage{
			EntityID:    id,
			DisplayName: a.name,
			Average:     Round2(a.sum / float64(a.count)),
		})
	}
	return out
}

func isExcluded(name string, lowered []string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, e := range lowered {
		if strings.Contains(name, e) {
			return true
		}
	}
	return false
}

// ParseDurationMinutes parses "H:MM" (hours may exceed 24) into minutes.
func ParseDurationMinutes(s string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}
