package models

import "strings"

// ReportFields selects the columns of a custom report.
type ReportFields struct {
	Fields    []string
	AllFields bool
}

var (
	// PrintTimeFields requests the three columns the average duration metric reads.
	PrintTimeFields = ReportFields{Fields: []string{"printer_id", "printer_name", "real_print_time"}}

	// AllReportFields requests every column; job status, reason and purpose
	// metrics read from it.
	AllReportFields = ReportFields{AllFields: true}
)

// ReportColumn locates one column of a custom report. When Header is set it is
// resolved against the header row; Index is used when the header is absent.
type ReportColumn struct {
	Header string
	Index  int
}

// ReportColumns is the single column layout table for every custom report the
// dashboard reads. The print time report is requested with an explicit field
// list so its columns are positional. The purpose column has no stable header.
var ReportColumns = struct {
	PrinterID     ReportColumn
	PrinterName   ReportColumn
	RealPrintTime ReportColumn
	Status        ReportColumn
	Started       ReportColumn
	CancelReason  ReportColumn
	Purpose       ReportColumn
}{
	PrinterID:     ReportColumn{Index: 0},
	PrinterName:   ReportColumn{Index: 1},
	RealPrintTime: ReportColumn{Index: 2},
	Status:        ReportColumn{Header: "Status", Index: -1},
	Started:       ReportColumn{Header: "Started Date/Time", Index: -1},
	CancelReason:  ReportColumn{Header: "Cancel Reason", Index: -1},
	Purpose:       ReportColumn{Index: 19},
}

// Canonical job status labels used by the custom report.
const (
	ReportStatusDone      = "DONE"
	ReportStatusCancelled = "CANCELLED_WEB"
)

// RawTable is a custom report split into its metadata rows and data rows.
type RawTable struct {
	Header []string
	Types  []string
	Rows   [][]string
}

// NewRawTable builds a RawTable from the vendor's 2D array. The first row is the
// header, the second the column types. Tables with fewer than three rows have
// no data and yield an empty Rows slice.
func NewRawTable(cells [][]string) *RawTable {
	t := &RawTable{Rows: [][]string{}}
	if len(cells) > 0 {
		t.Header = cells[0]
	}
	if len(cells) > 1 {
		t.Types = cells[1]
	}
	if len(cells) < 3 {
		return t
	}
	t.Rows = cells[2:]
	return t
}

// Resolve returns the index of a column in this table, or -1.
func (t *RawTable) Resolve(c ReportColumn) int {
	if c.Header != "" {
		for i, h := range t.Header {
			if strings.EqualFold(strings.TrimSpace(h), c.Header) {
				return i
			}
		}
	}
	return c.Index
}

func cell(row []string, idx int) (string, bool) {
	if idx < 0 || idx >= len(row) {
		return "", false
	}
	return row[idx], true
}

// PrintTimeRow is a data row of the print time report.
type PrintTimeRow struct {
	PrinterID     string
	PrinterName   string
	RealPrintTime string
}

// PrintTimeRows parses the data rows of a print time report. Rows that are too
// short to hold all three columns are skipped.
func (t *RawTable) PrintTimeRows() []PrintTimeRow {
	idIdx := t.Resolve(ReportColumns.PrinterID)
	nameIdx := t.Resolve(ReportColumns.PrinterName)
	timeIdx := t.Resolve(ReportColumns.RealPrintTime)

	rows := make([]PrintTimeRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		id, ok1 := cell(r, idIdx)
		name, ok2 := cell(r, nameIdx)
		dur, ok3 := cell(r, timeIdx)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		rows = append(rows, PrintTimeRow{PrinterID: id, PrinterName: name, RealPrintTime: dur})
	}
	return rows
}

// JobReportRow is a data row of the all-fields job report. StartedAt is kept as
// the raw vendor text; parsing is left to the aggregation step.
type JobReportRow struct {
	Status       string
	StartedAt    string
	CancelReason string
	Purpose      string
}

// JobRows parses the data rows of an all-fields job report. Missing columns
// leave the corresponding field empty.
func (t *RawTable) JobRows() []JobReportRow {
	statusIdx := t.Resolve(ReportColumns.Status)
	startedIdx := t.Resolve(ReportColumns.Started)
	reasonIdx := t.Resolve(ReportColumns.CancelReason)
	purposeIdx := t.Resolve(ReportColumns.Purpose)

	rows := make([]JobReportRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		var row JobReportRow
		row.Status, _ = cell(r, statusIdx)
		row.StartedAt, _ = cell(r, startedIdx)
		row.CancelReason, _ = cell(r, reasonIdx)
		row.Purpose, _ = cell(r, purposeIdx)
		rows = append(rows, row)
	}
	return rows
}
