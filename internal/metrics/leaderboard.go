package metrics

import (
	"sort"
	"strings"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// Leaderboard counts finished jobs per email and returns the top limit users,
// highest first. Names come from each user's first row; ties keep first-seen
// order. Rows without an email are skipped.
func Leaderboard(jobs []models.FinishedJob, limit int) []models.LeaderboardEntry {
	index := make(map[string]int)
	entries := []models.LeaderboardEntry{}

	for _, job := range jobs {
		email := strings.TrimSpace(job.Email)
		if email == "" {
			continue
		}
		i, ok := index[email]
		if !ok {
			i = len(entries)
			index[email] = i
			entries = append(entries, models.LeaderboardEntry{
				Email:     email,
				FirstName: job.FirstName,
				LastName:  job.LastName,
			})
		}
		entries[i].Count++
	}

	sort.SliceStable(entries, func(a, b int) bool { return entries[a].Count > entries[b].Count })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
