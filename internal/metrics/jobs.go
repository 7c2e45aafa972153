package metrics

import "github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"

// Vendor job status codes.
const (
	StatusInQueue    = "11"
	StatusInProgress = "21"
	StatusFailed     = "43"
	StatusAborted    = "45"
	StatusFinished   = "77"
)

// TallyJobStatuses counts jobs per status bucket. Unknown codes are dropped.
func TallyJobStatuses(jobs []models.Job) models.JobStatusCounts {
	var counts models.JobStatusCounts
	for _, job := range jobs {
		switch job.StatusID.String() {
		case StatusInQueue:
			counts.InQueue++
		case StatusInProgress:
			counts.InProgress++
		case StatusFailed:
			counts.Failed++
		case StatusAborted:
			counts.Aborted++
		case StatusFinished:
			counts.Finished++
		}
	}
	return counts
}

// IsActiveJob reports whether a job is queued or printing.
func IsActiveJob(job models.Job) bool {
	s := job.StatusID.String()
	return s == StatusInQueue || s == StatusInProgress
}

// QueueTimings groups the timing of queued and printing jobs.
func QueueTimings(jobs []models.Job) models.PrinterTimings {
	timings := models.PrinterTimings{
		InProgress: []models.JobTiming{},
		InQueue:    []models.JobTiming{},
	}
	for _, job := range jobs {
		t := models.JobTiming{
			JobID:            job.ID.String(),
			PrintTime:        float64(job.PrintTime),
			PrintingDuration: float64(job.PrintingDuration),
		}
		switch job.StatusID.String() {
		case StatusInQueue:
			timings.InQueue = append(timings.InQueue, t)
		case StatusInProgress:
			timings.InProgress = append(timings.InProgress, t)
		}
	}
	return timings
}
