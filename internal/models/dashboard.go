package models

// Role tags recognised by the route gate.
const (
	RolePI      = "PI"
	RoleStaff   = "STAFF"
	RoleStudent = "STUDENT"
	RoleAdmin   = "ADMIN"
)

// SizeClass is the layout width of a dashboard component.
type SizeClass string

// Supported size classes.
const (
	SizeHalf SizeClass = "half"
	SizeFull SizeClass = "full"
)

// SourceSystem names the upstream system a component reads from.
type SourceSystem string

// Upstream systems.
const (
	SourcePrintFleet SourceSystem = "3DPOS"
	SourceToolUsage  SourceSystem = "SUMS"
)

// ComponentDescriptor describes one dashboard component. Rendering is left to
// the presentation layer.
type ComponentDescriptor struct {
	ID           string       `json:"id" mapstructure:"id"`
	Label        string       `json:"label" mapstructure:"label"`
	SizeClass    SizeClass    `json:"sizeClass" mapstructure:"size"`
	SourceSystem SourceSystem `json:"sourceSystem" mapstructure:"source"`
}

// Registry maps a page name to its ordered components.
type Registry map[string][]ComponentDescriptor

// Page returns the components of a page and whether the page exists.
func (r Registry) Page(name string) ([]ComponentDescriptor, bool) {
	c, ok := r[name]
	return c, ok
}

// DefaultRegistry is the component layout used when no policy file overrides it.
func DefaultRegistry() Registry {
	return Registry{
		"dashboard": {
			{ID: "toolStatus", Label: "Tool Status List", SizeClass: SizeHalf, SourceSystem: SourceToolUsage},
			{ID: "printerStatus", Label: "Printer Status List", SizeClass: SizeHalf, SourceSystem: SourcePrintFleet},
			{ID: "leaderboard", Label: "Job Leaderboard", SizeClass: SizeHalf, SourceSystem: SourcePrintFleet},
			{ID: "jobCounts", Label: "Printer Job Counts", SizeClass: SizeHalf, SourceSystem: SourcePrintFleet},
		},
		"pi": {
			{ID: "commonReasons", Label: "Most Common Reasons", SizeClass: SizeHalf, SourceSystem: SourcePrintFleet},
			{ID: "attendance", Label: "Attendance Over Time", SizeClass: SizeHalf, SourceSystem: SourceToolUsage},
			{ID: "printTime", Label: "Average Print Time", SizeClass: SizeFull, SourceSystem: SourcePrintFleet},
			{ID: "percentSuccess", Label: "Success Rate", SizeClass: SizeFull, SourceSystem: SourcePrintFleet},
		},
	}
}

// PageView is the payload of a dashboard page request.
type PageView struct {
	Page       string                `json:"page"`
	User       string                `json:"user"`
	Roles      []string              `json:"roles"`
	Components []ComponentDescriptor `json:"components"`
}

// SessionInfo is the payload of the session endpoint.
type SessionInfo struct {
	User            *string `json:"user"`
	IsAuthenticated bool    `json:"isAuthenticated"`
}
