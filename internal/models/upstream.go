package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string or number into a string. The print-fleet API
// is inconsistent about whether identifiers and status codes are quoted.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the raw value.
func (f FlexString) String() string { return string(f) }

// FlexFloat decodes a JSON number or a numeric string. Unparseable strings decode
// to zero so that one bad record never fails a whole payload.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("flex float: %w", err)
	}
	*f = FlexFloat(v)
	return nil
}

// Printer is one entry of the organization printer inventory.
type Printer struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
}

// Job is a print job as returned by the per-printer job listing and the job
// detail lookup.
type Job struct {
	ID               FlexString `json:"id"`
	PrinterID        FlexString `json:"printer_id,omitempty"`
	StatusID         FlexString `json:"status_id"`
	Filename         string     `json:"filename,omitempty"`
	PrintTime        FlexFloat  `json:"print_time"`
	PrintingDuration FlexFloat  `json:"printing_duration"`
}

// FinishedJob is one row of the finished-jobs report. Each row is one job.
type FinishedJob struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// UsageSession is one tool session from the individual usage report.
type UsageSession struct {
	Name          string `json:"Name"`
	StartDateTime string `json:"StartDateTime"`
	EndDateTime   string `json:"EndDateTime,omitempty"`
}

// ToolUsage groups the sessions recorded against one tool.
type ToolUsage struct {
	ToolName string         `json:"ToolName"`
	InUseBy  []UsageSession `json:"InUseBy"`
}

// IndividualUsageReport is the payload of the individual tool usage endpoint.
type IndividualUsageReport struct {
	UsageList []ToolUsage `json:"UsageList"`
}

// Tool returns the usage entry for a tool name, or nil.
func (r *IndividualUsageReport) Tool(name string) *ToolUsage {
	if r == nil {
		return nil
	}
	for i := range r.UsageList {
		if r.UsageList[i].ToolName == name {
			return &r.UsageList[i]
		}
	}
	return nil
}

// DailyUsage is one row of the daily tool usage endpoint.
type DailyUsage struct {
	ToolName   string    `json:"ToolName"`
	UsageHours FlexFloat `json:"UsageHours"`
}

// ToolStatus is one row of the tool status endpoint. Status is free text.
type ToolStatus struct {
	ToolName string `json:"ToolName"`
	Status   string `json:"Status"`
}

// Available reports whether the status text marks the tool as available.
func (s ToolStatus) Available() bool {
	return strings.Contains(strings.ToLower(s.Status), "available")
}
