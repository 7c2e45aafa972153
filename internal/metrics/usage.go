package metrics

import "github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"

// SumUsageHours adds up the usage hours of every tool not in excluded.
func SumUsageHours(rows []models.DailyUsage, excluded []string) float64 {
	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[e] = struct{}{}
	}

	total := 0.0
	for _, r := range rows {
		if _, ok := skip[r.ToolName]; ok {
			continue
		}
		total += float64(r.UsageHours)
	}
	return total
}
