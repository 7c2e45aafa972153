package models

// EntityAverage is the average print duration of one printer in minutes.
type EntityAverage struct {
	EntityID    string  `json:"entityId"`
	DisplayName string  `json:"displayName"`
	Average     float64 `json:"average"`
}

// PeriodSuccess is the completion rate of one day or week.
type PeriodSuccess struct {
	Period            string `json:"period"`
	PercentSuccessful string `json:"percentSuccessful"`
	TotalJobs         int    `json:"totalJobs"`
	CompletedJobs     int    `json:"completedJobs"`
	CancelledJobs     int    `json:"cancelledJobs"`
}

// ReasonShare is the share of one cancellation category.
type ReasonShare struct {
	Reason     string  `json:"reason"`
	Percentage float64 `json:"percentage"`
}

// CategoryCount is the number of jobs in one print purpose category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// LeaderboardEntry is one user's finished job count for the month.
type LeaderboardEntry struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Count     int    `json:"count"`
}

// LeaderboardResponse wraps the leaderboard rows.
type LeaderboardResponse struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Error       string             `json:"error,omitempty"`
}

// JobStatusCounts tallies jobs per canonical status bucket.
type JobStatusCounts struct {
	InQueue    int `json:"in_queue"`
	InProgress int `json:"in_progress"`
	Failed     int `json:"failed"`
	Finished   int `json:"finished"`
	Aborted    int `json:"aborted"`
}

// JobTiming is the timing detail of a queued or printing job.
type JobTiming struct {
	JobID            string  `json:"job_id"`
	PrintTime        float64 `json:"print_time"`
	PrintingDuration float64 `json:"printing_duration"`
}

// PrinterTimings groups timing details by state for one printer.
type PrinterTimings struct {
	InProgress []JobTiming `json:"in_progress"`
	InQueue    []JobTiming `json:"in_queue"`
}

// AttendanceSummary is the default attendance view.
type AttendanceSummary struct {
	DayActive   int    `json:"dayActive"`
	WeekActive  int    `json:"weekActive"`
	MonthActive int    `json:"monthActive"`
	Error       string `json:"error,omitempty"`
}

// AttendanceTrend is the trend attendance view.
type AttendanceTrend struct {
	CurrentUsers    string    `json:"currentUsers"`
	PreviousUsers   string    `json:"previousUsers"`
	PercentChange   string    `json:"percentChange"`
	CurrentDayUsers string    `json:"currentDayUsers"`
	Trend           []float64 `json:"trend"`
	Error           string    `json:"error,omitempty"`
}

// UsageHoursSummary is the default usage hours view.
type UsageHoursSummary struct {
	DayUsageHours   string `json:"dayUsageHours"`
	WeekUsageHours  string `json:"weekUsageHours"`
	MonthUsageHours string `json:"monthUsageHours"`
	Error           string `json:"error,omitempty"`
}

// UsageHoursTrend is the trend usage hours view.
type UsageHoursTrend struct {
	CurrentHours    string    `json:"currentHours"`
	PreviousHours   string    `json:"previousHours"`
	PercentChange   string    `json:"percentChange"`
	CurrentDayHours string    `json:"currentDayHours"`
	Trend           []float64 `json:"trend"`
	Error           string    `json:"error,omitempty"`
}

// NewStudentsSummary is the default new student view.
type NewStudentsSummary struct {
	DayNewUsers      int    `json:"dayNewUsers"`
	WeekNewUsers     int    `json:"weekNewUsers"`
	SemesterNewUsers int    `json:"semesterNewUsers"`
	Semester         string `json:"semester"`
	Error            string `json:"error,omitempty"`
}

// NewStudentsTrend is the trend new student view.
type NewStudentsTrend struct {
	CurrentNewUsers    string    `json:"currentNewUsers"`
	PreviousNewUsers   string    `json:"previousNewUsers"`
	PercentChange      string    `json:"percentChange"`
	CurrentDayNewUsers string    `json:"currentDayNewUsers"`
	Trend              []float64 `json:"trend"`
	Error              string    `json:"error,omitempty"`
}

// ActiveUser is a session that is open right now.
type ActiveUser struct {
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CapacityResponse is the current occupancy of the studio.
type CapacityResponse struct {
	CurrentCapacity int          `json:"current_capacity"`
	ActiveUsers     []ActiveUser `json:"active_users"`
	Error           string       `json:"error,omitempty"`
}

// DailyAttendance is the number of distinct users seen on one day.
type DailyAttendance struct {
	Date        string `json:"date"`
	UniqueUsers int    `json:"uniqueUsers"`
}

// AttendanceOverTime wraps the per-day attendance rows.
type AttendanceOverTime struct {
	AttendanceData []DailyAttendance `json:"attendanceData"`
	Error          string            `json:"error,omitempty"`
}

// HubLoginCount is the number of hub logins that fall within operating hours.
type HubLoginCount struct {
	HubLoginCount int    `json:"hubLoginCount"`
	Error         string `json:"error,omitempty"`
}

// ToolState is a tool status row with the availability flag derived.
type ToolState struct {
	ToolName  string `json:"toolName"`
	Status    string `json:"status"`
	Available bool   `json:"available"`
}
