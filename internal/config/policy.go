package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// Policy holds the list-shaped settings that do not fit environment variables.
type Policy struct {
	ProtectedRoutes        []RouteRule     `mapstructure:"protected_routes"`
	Roles                  RolePolicy      `mapstructure:"roles"`
	ExcludedPrinters       []string        `mapstructure:"excluded_printers"`
	ExcludedTools          []string        `mapstructure:"excluded_tools"`
	CancellationCategories []Category      `mapstructure:"cancellation_categories"`
	PurposeCategories      []Category      `mapstructure:"purpose_categories"`
	OperatingHours         OperatingHours  `mapstructure:"operating_hours"`
	Registry               models.Registry `mapstructure:"registry"`
}

// RouteRule requires one of Roles for every path starting with Prefix.
type RouteRule struct {
	Prefix string   `mapstructure:"prefix"`
	Roles  []string `mapstructure:"roles"`
}

// RolePolicy is the static role directory.
type RolePolicy struct {
	Assignments  map[string][]string `mapstructure:"assignments"`
	DefaultRoles []string            `mapstructure:"default_roles"`
}

// Category maps free text containing Match to Label.
type Category struct {
	Match string `mapstructure:"match"`
	Label string `mapstructure:"label"`
}

// OperatingHours restricts which sessions count as in-hours hub logins.
type OperatingHours struct {
	Enabled         bool          `mapstructure:"enabled"`
	Days            []string      `mapstructure:"days"`
	Windows         []HoursWindow `mapstructure:"windows"`
	ExcludeHolidays bool          `mapstructure:"exclude_holidays"`
}

// HoursWindow is an inclusive HH:MM range.
type HoursWindow struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// DefaultPolicy is used when no policy files are found.
func DefaultPolicy() Policy {
	return Policy{
		ProtectedRoutes: []RouteRule{
			{Prefix: "/pi", Roles: []string{models.RolePI}},
			{Prefix: "/dashboard", Roles: []string{models.RolePI, models.RoleStaff, models.RoleStudent}},
			{Prefix: "/admin", Roles: []string{models.RoleAdmin}},
		},
		Roles: RolePolicy{
			Assignments: map[string][]string{
				"gburdell3":  {models.RolePI},
				"professor1": {models.RolePI},
			},
			DefaultRoles: []string{models.RoleStudent},
		},
		ExcludedPrinters: []string{
			"UMS5 USER FILE LIBRARY (Upload Here)",
			"UMS3 UPLOADS",
			"UMS5 IN PERSON QUEUE",
			"BAMBULABS IN-PERSON QUEUE",
			"BAMBU LAB X1E FILE LIBRARY (Upload Here)",
		},
		ExcludedTools: []string{
			"Hub Login",
			"EcoMake Login",
			"Metal Room Login",
			"Wood Room Login",
			"Shift Time Clock",
			"SUMS Environment",
			"Request Replacement PI",
			"Test Inventory Tool",
			"CAE Helpdesk",
		},
		CancellationCategories: append([]Category{
			{Match: "3D model/job issues", Label: "3D Model/Job Issues"},
			{Match: "Hardware issues", Label: "Hardware Issues"},
			{Match: "Slicing issues", Label: "Slicing Issues"},
			{Match: "Calibration issues", Label: "Calibration Issues"},
			{Match: "User cancelled", Label: "User Cancellation"},
		}, defaultPurposeCategories()...),
		PurposeCategories: defaultPurposeCategories(),
		OperatingHours: OperatingHours{
			Enabled: false,
			Days:    []string{"monday", "tuesday", "wednesday", "thursday"},
			Windows: []HoursWindow{
				{Start: "10:00", End: "17:00"},
				{Start: "17:00", End: "19:00"},
			},
		},
		Registry: models.DefaultRegistry(),
	}
}

func defaultPurposeCategories() []Category {
	return []Category{
		{Match: "ME 2110", Label: "ME 2110"},
		{Match: "Personal Project", Label: "Personal Project"},
		{Match: "Research Project", Label: "Research Project"},
		{Match: "ME Capstone Project", Label: "ME Capstone Project"},
		{Match: "VIP", Label: "VIP"},
		{Match: "Other Academic Course", Label: "Other Academic Course"},
		{Match: "Project for Club/Lab/Other Org", Label: "Club/Lab/Org Project"},
		{Match: "Training/Studio Improvement", Label: "Training/Studio Improvement"},
		{Match: "ME 1670", Label: "ME 1670"},
	}
}

var policyPaths = []string{"./configs", "../configs", "../../configs"}

// loadPolicy loads defaults.yaml and overlays the environment-specific file
// (local.yaml, nonprod.yaml or prod.yaml). Keys absent from both files keep the
// compiled defaults.
func loadPolicy(env Environment) (*Policy, error) {
	policy := DefaultPolicy()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("defaults")
	for _, p := range policyPaths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read defaults policy: %w", err)
		}
	}

	envViper := viper.New()
	envViper.SetConfigType("yaml")
	envViper.SetConfigName(envPolicyName(env))
	for _, p := range policyPaths {
		envViper.AddConfigPath(p)
	}

	if err := envViper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s policy: %w", envPolicyName(env), err)
		}
	}

	if err := v.MergeConfigMap(envViper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to merge environment policy: %w", err)
	}

	if err := v.Unmarshal(&policy); err != nil {
		return nil, fmt.Errorf("failed to decode policy: %w", err)
	}

	return &policy, nil
}

func envPolicyName(env Environment) string {
	switch env {
	case NonProd:
		return "nonprod"
	case Prod:
		return "prod"
	default:
		return "local"
	}
}

// Validate checks route rules, hour windows and category tables.
func (p *Policy) Validate() error {
	for _, r := range p.ProtectedRoutes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("protected route %q must start with /", r.Prefix)
		}
		if len(r.Roles) == 0 {
			return fmt.Errorf("protected route %q has no roles", r.Prefix)
		}
	}

	for _, c := range append(append([]Category{}, p.CancellationCategories...), p.PurposeCategories...) {
		if c.Match == "" || c.Label == "" {
			return errors.New("categories need both match and label")
		}
	}

	if _, err := p.OperatingHours.Weekdays(); err != nil {
		return err
	}
	for _, w := range p.OperatingHours.Windows {
		if _, _, err := w.Minutes(); err != nil {
			return err
		}
	}

	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Weekdays parses the configured day names.
func (h OperatingHours) Weekdays() ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(h.Days))
	for _, d := range h.Days {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(d))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in operating hours", d)
		}
		days = append(days, wd)
	}
	return days, nil
}

// Minutes returns the window bounds as minutes since midnight.
func (w HoursWindow) Minutes() (int, int, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, fmt.Errorf("operating window %s-%s ends before it starts", w.Start, w.End)
	}
	return start, end, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
