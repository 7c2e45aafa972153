package metrics

import (
	"sort"
	"strings"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// OtherCategory is assigned to text no category matches.
const OtherCategory = "Other"

// CategorizeReason normalizes a free-text cancel reason and maps it to a
// category label. A leading "- " marker and trailing separators are stripped,
// the text before the first ':' is kept, and the first category whose Match
// phrase it contains wins.
func CategorizeReason(text string, categories []config.Category) string {
	reason := strings.TrimSpace(text)
	reason = strings.TrimPrefix(reason, "- ")
	if before, _, found := strings.Cut(reason, ":"); found {
		reason = before
	}
	reason = strings.TrimRight(strings.TrimSpace(reason), " -:;,.")
	return categorize(reason, categories)
}

func categorize(text string, categories []config.Category) string {
	if text == "" {
		return OtherCategory
	}
	for _, c := range categories {
		if strings.Contains(text, c.Match) {
			return c.Label
		}
	}
	return OtherCategory
}

type tally struct {
	label string
	count int
}

// countLabels counts labels and sorts them by count, ties in first-seen order.
func countLabels(labels []string) ([]tally, int) {
	index := make(map[string]int)
	var tallies []tally
	for _, l := range labels {
		i, ok := index[l]
		if !ok {
			i = len(tallies)
			index[l] = i
			tallies = append(tallies, tally{label: l})
		}
		tallies[i].count++
	}
	sort.SliceStable(tallies, func(a, b int) bool { return tallies[a].count > tallies[b].count })
	return tallies, len(labels)
}

// CancellationReasons categorizes the reasons of cancelled jobs and returns the
// top limit categories as percentages of all categorized jobs.
func CancellationReasons(table *models.RawTable, categories []config.Category, limit int) []models.ReasonShare {
	var labels []string
	for _, row := range table.JobRows() {
		if row.Status != models.ReportStatusCancelled || strings.TrimSpace(row.CancelReason) == "" {
			continue
		}
		labels = append(labels, CategorizeReason(row.CancelReason, categories))
	}

	tallies, total := countLabels(labels)
	if limit > 0 && len(tallies) > limit {
		tallies = tallies[:limit]
	}

	out := make([]models.ReasonShare, 0, len(tallies))
	for _, t := range tallies {
		out = append(out, models.ReasonShare{
			Reason:     t.label,
			Percentage: Round2(float64(t.count) / float64(total) * 100),
		})
	}
	return out
}

// PrintPurposes counts jobs per stated print purpose and returns the top limit.
// Jobs with no purpose are skipped.
func PrintPurposes(table *models.RawTable, categories []config.Category, limit int) []models.CategoryCount {
	var labels []string
	for _, row := range table.JobRows() {
		purpose := strings.TrimSpace(row.Purpose)
		if purpose == "" {
			continue
		}
		labels = append(labels, categorize(purpose, categories))
	}

	tallies, _ := countLabels(labels)
	if limit > 0 && len(tallies) > limit {
		tallies = tallies[:limit]
	}

	out := make([]models.CategoryCount, 0, len(tallies))
	for _, t := range tallies {
		out = append(out, models.CategoryCount{Category: t.label, Count: t.count})
	}
	return out
}
