package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/dashboard"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/metrics"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// View modes of the summary metrics.
const (
	ModeDefault = "default"
	ModeTrend   = "trend"
)

// MetricsHandler serves the dashboard metric API. Routes are split by the
// upstream system they read from so the caller can attach the matching
// credential middleware to each group.
type MetricsHandler struct {
	svc         dashboard.Service
	trendLength int
	logger      *logrus.Logger
}

// NewMetricsHandler creates a new metrics handler. trendLength sizes the
// zeroed trend series sent when a trend metric fails; below 2 it is 7.
func NewMetricsHandler(svc dashboard.Service, trendLength int, logger *logrus.Logger) *MetricsHandler {
	if trendLength < 2 {
		trendLength = 7
	}
	return &MetricsHandler{svc: svc, trendLength: trendLength, logger: logger}
}

// zeroTrend returns the all-zero trend fields of a failed trend metric.
func (h *MetricsHandler) zeroTrend() (value, percent string, trend []float64) {
	return metrics.FormatFixed(0), metrics.FormatPercentChange(0), make([]float64, h.trendLength)
}

// RegisterPrintFleetRoutes registers the metrics computed from the print fleet.
func (h *MetricsHandler) RegisterPrintFleetRoutes(router *mux.Router) {
	get := []string{http.MethodGet, http.MethodOptions}
	router.HandleFunc("/average-duration", h.AverageDuration).Methods(get...)
	router.HandleFunc("/period-success", h.PeriodSuccess).Methods(get...)
	router.HandleFunc("/cancellation-reasons", h.CancellationReasons).Methods(get...)
	router.HandleFunc("/print-purposes", h.PrintPurposes).Methods(get...)
	router.HandleFunc("/leaderboard", h.Leaderboard).Methods(get...)
	router.HandleFunc("/job-status-counts", h.JobStatusCounts).Methods(get...)
	router.HandleFunc("/printer-timing", h.PrinterTiming).Methods(get...)
	router.HandleFunc("/printers", h.Printers).Methods(get...)
	router.HandleFunc("/jobs/{jobId}", h.Job).Methods(get...)
}

// RegisterToolUsageRoutes registers the metrics computed from the tool usage system.
func (h *MetricsHandler) RegisterToolUsageRoutes(router *mux.Router) {
	get := []string{http.MethodGet, http.MethodOptions}
	router.HandleFunc("/attendance", h.Attendance).Methods(get...)
	router.HandleFunc("/usage-hours", h.UsageHours).Methods(get...)
	router.HandleFunc("/new-students", h.NewStudents).Methods(get...)
	router.HandleFunc("/current-capacity", h.CurrentCapacity).Methods(get...)
	router.HandleFunc("/attendance-over-time", h.AttendanceOverTime).Methods(get...)
	router.HandleFunc("/hub-logins", h.HubLogins).Methods(get...)
	router.HandleFunc("/tool-status", h.ToolStatus).Methods(get...)
}

// AverageDuration handles GET /metrics/average-duration?from&to
// Returns the average print time per printer, defaulting to the last 31 days.
//
// Responses:
//   - 200: [{entityId, displayName, average}]
//   - 400: Malformed date
//   - 401: Upstream authentication failed
//   - 500: Upstream error
func (h *MetricsHandler) AverageDuration(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.AverageDuration(r.Context(), q.Get("from"), q.Get("to"))
	h.respond(w, r, result, err)
}

// PeriodSuccess handles GET /metrics/period-success?period=day|week&date
// Returns the trailing completion rate series ending at date (default today).
func (h *MetricsHandler) PeriodSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.PeriodSuccess(r.Context(), q.Get("period"), q.Get("date"))
	h.respond(w, r, result, err)
}

// CancellationReasons handles GET /metrics/cancellation-reasons?from&to
// Returns the top cancellation categories, defaulting to the last 3 months.
func (h *MetricsHandler) CancellationReasons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.CancellationReasons(r.Context(), q.Get("from"), q.Get("to"))
	h.respond(w, r, result, err)
}

// PrintPurposes handles GET /metrics/print-purposes?from&to
func (h *MetricsHandler) PrintPurposes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.PrintPurposes(r.Context(), q.Get("from"), q.Get("to"))
	h.respond(w, r, result, err)
}

// Leaderboard handles GET /metrics/leaderboard
// Returns the users with the most finished jobs this calendar month.
func (h *MetricsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Leaderboard(r.Context())
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	h.respondObject(w, r, &models.LeaderboardResponse{Leaderboard: entries}, err, func(msg string) any {
		return &models.LeaderboardResponse{Leaderboard: []models.LeaderboardEntry{}, Error: msg}
	})
}

// JobStatusCounts handles GET /metrics/job-status-counts?limit&offset&printer_id
// Returns a status tally per printer over each printer's most recent jobs.
//
// Query Parameters:
//   - limit: Jobs per printer (default: 20)
//   - offset: Listing offset (default: 0)
//   - printer_id: Restrict to one printer
func (h *MetricsHandler) JobStatusCounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var errs models.ValidationErrors
	limit := parseIntParam(q.Get("limit"), dashboard.DefaultJobLimit, "limit", &errs)
	offset := parseIntParam(q.Get("offset"), dashboard.DefaultJobOffset, "offset", &errs)
	if len(errs) > 0 {
		h.respond(w, r, nil, models.NewValidationFailure(errs))
		return
	}

	result, err := h.svc.JobStatusCounts(r.Context(), q.Get("printer_id"), limit, offset)
	h.respond(w, r, result, err)
}

// PrinterTiming handles GET /metrics/printer-timing
// Returns the timing of queued and printing jobs grouped by printer.
func (h *MetricsHandler) PrinterTiming(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.PrinterTiming(r.Context())
	h.respond(w, r, result, err)
}

// Printers handles GET /metrics/printers
func (h *MetricsHandler) Printers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Printers(r.Context())
	h.respond(w, r, result, err)
}

// Job handles GET /metrics/jobs/{jobId}
//
// Responses:
//   - 200: Job detail
//   - 404: Unknown job
func (h *MetricsHandler) Job(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Job(r.Context(), mux.Vars(r)["jobId"])
	h.respond(w, r, result, err)
}

// Attendance handles GET /metrics/attendance?mode=default|trend
func (h *MetricsHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	mode, ok := h.mode(w, r)
	if !ok {
		return
	}

	if mode == ModeTrend {
		result, err := h.svc.AttendanceTrend(r.Context())
		h.respondObject(w, r, &result, err, func(msg string) any {
			zero, pct, trend := h.zeroTrend()
			return &models.AttendanceTrend{
				CurrentUsers:    zero,
				PreviousUsers:   zero,
				PercentChange:   pct,
				CurrentDayUsers: zero,
				Trend:           trend,
				Error:           msg,
			}
		})
		return
	}

	result, err := h.svc.AttendanceSummary(r.Context())
	h.respondObject(w, r, &result, err, func(msg string) any {
		return &models.AttendanceSummary{Error: msg}
	})
}

// UsageHours handles GET /metrics/usage-hours?mode=default|trend
func (h *MetricsHandler) UsageHours(w http.ResponseWriter, r *http.Request) {
	mode, ok := h.mode(w, r)
	if !ok {
		return
	}

	if mode == ModeTrend {
		result, err := h.svc.UsageHoursTrend(r.Context())
		h.respondObject(w, r, &result, err, func(msg string) any {
			zero, pct, trend := h.zeroTrend()
			return &models.UsageHoursTrend{
				CurrentHours:    zero,
				PreviousHours:   zero,
				PercentChange:   pct,
				CurrentDayHours: zero,
				Trend:           trend,
				Error:           msg,
			}
		})
		return
	}

	result, err := h.svc.UsageHoursSummary(r.Context())
	h.respondObject(w, r, &result, err, func(msg string) any {
		zero := metrics.FormatFixed(0)
		return &models.UsageHoursSummary{
			DayUsageHours:   zero,
			WeekUsageHours:  zero,
			MonthUsageHours: zero,
			Error:           msg,
		}
	})
}

// NewStudents handles GET /metrics/new-students?mode=default|trend
func (h *MetricsHandler) NewStudents(w http.ResponseWriter, r *http.Request) {
	mode, ok := h.mode(w, r)
	if !ok {
		return
	}

	if mode == ModeTrend {
		result, err := h.svc.NewStudentsTrend(r.Context())
		h.respondObject(w, r, &result, err, func(msg string) any {
			zero, pct, trend := h.zeroTrend()
			return &models.NewStudentsTrend{
				CurrentNewUsers:    zero,
				PreviousNewUsers:   zero,
				PercentChange:      pct,
				CurrentDayNewUsers: zero,
				Trend:              trend,
				Error:              msg,
			}
		})
		return
	}

	result, err := h.svc.NewStudentsSummary(r.Context())
	h.respondObject(w, r, &result, err, func(msg string) any {
		return &models.NewStudentsSummary{Error: msg}
	})
}

// CurrentCapacity handles GET /metrics/current-capacity
// Returns the studio occupancy and the sessions open right now.
func (h *MetricsHandler) CurrentCapacity(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CurrentCapacity(r.Context())
	if err == nil && result.ActiveUsers == nil {
		result.ActiveUsers = []models.ActiveUser{}
	}
	h.respondObject(w, r, &result, err, func(msg string) any {
		return &models.CapacityResponse{ActiveUsers: []models.ActiveUser{}, Error: msg}
	})
}

// AttendanceOverTime handles GET /metrics/attendance-over-time?from&to
func (h *MetricsHandler) AttendanceOverTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := h.svc.AttendanceOverTime(r.Context(), q.Get("from"), q.Get("to"))
	if days == nil {
		days = []models.DailyAttendance{}
	}
	h.respondObject(w, r, &models.AttendanceOverTime{AttendanceData: days}, err, func(msg string) any {
		return &models.AttendanceOverTime{AttendanceData: []models.DailyAttendance{}, Error: msg}
	})
}

// HubLogins handles GET /metrics/hub-logins?date
// Returns the number of hub logins during operating hours on date.
func (h *MetricsHandler) HubLogins(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.HubLogins(r.Context(), r.URL.Query().Get("date"))
	h.respondObject(w, r, &models.HubLoginCount{HubLoginCount: count}, err, func(msg string) any {
		return &models.HubLoginCount{Error: msg}
	})
}

// ToolStatus handles GET /metrics/tool-status
func (h *MetricsHandler) ToolStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ToolStates(r.Context())
	h.respond(w, r, result, err)
}

// mode validates the mode parameter and answers 400 when it is unknown.
func (h *MetricsHandler) mode(w http.ResponseWriter, r *http.Request) (string, bool) {
	mode := r.URL.Query().Get("mode")
	switch mode {
	case "", ModeDefault:
		return ModeDefault, true
	case ModeTrend:
		return ModeTrend, true
	}
	h.respond(w, r, nil, models.NewValidationError("mode", "must be default or trend"))
	return "", false
}

// respond writes result, or an error payload for array and map shaped metrics.
func (h *MetricsHandler) respond(w http.ResponseWriter, r *http.Request, result any, err error) {
	if err != nil {
		h.logFailure(r, err)
		writeErrorResponse(w, h.logger, err)
		return
	}
	writeJSONResponse(w, h.logger, result, http.StatusOK)
}

// respondObject writes result, or on failure the zeroed payload built by
// fallback carrying the public error message.
func (h *MetricsHandler) respondObject(
	w http.ResponseWriter,
	r *http.Request,
	result any,
	err error,
	fallback func(msg string) any,
) {
	if err != nil {
		h.logFailure(r, err)
		writeJSONResponse(w, h.logger, fallback(models.PublicMessage(err)), models.StatusCode(err))
		return
	}
	writeJSONResponse(w, h.logger, result, http.StatusOK)
}

func (h *MetricsHandler) logFailure(r *http.Request, err error) {
	entry := requestLogger(r, h.logger).WithError(err)
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrNotFound):
		entry.Info("Metric request rejected")
	case errors.Is(err, models.ErrAuthenticationFailed):
		entry.Warn("Metric request failed upstream authentication")
	default:
		entry.Error("Metric request failed")
	}
}

// parseIntParam parses a non-negative integer query parameter, recording a
// validation error when it is malformed.
func parseIntParam(raw string, def int, field string, errs *models.ValidationErrors) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		errs.Add(field, "must be a non-negative integer")
		return def
	}
	return n
}
