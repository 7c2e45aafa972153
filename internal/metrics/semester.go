package metrics

import (
	"strconv"
	"time"
)

// Term is an academic term.
type Term string

// Academic terms. Classification is by month: January-May is spring,
// June-August summer and September-December fall.
const (
	Spring Term = "SPRING"
	Summer Term = "SUMMER"
	Fall   Term = "FALL"
)

// Semester identifies one term of one year.
type Semester struct {
	Term Term
	Year int
}

// termMonths holds the first and last month of each term's date range. The
// ranges overlap at the boundaries (May, August) even though classification
// does not.
var termMonths = map[Term][2]time.Month{
	Spring: {time.January, time.May},
	Summer: {time.May, time.August},
	Fall:   {time.August, time.December},
}

// SemesterOf classifies a date.
func SemesterOf(t time.Time) Semester {
	switch m := t.Month(); {
	case m <= time.May:
		return Semester{Term: Spring, Year: t.Year()}
	case m <= time.August:
		return Semester{Term: Summer, Year: t.Year()}
	default:
		return Semester{Term: Fall, Year: t.Year()}
	}
}

// String renders the semester as "FALL 2024".
func (s Semester) String() string {
	return string(s.Term) + " " + strconv.Itoa(s.Year)
}

// Range returns the whole date range of the semester.
func (s Semester) Range(loc *time.Location) Window {
	months := termMonths[s.Term]
	start := time.Date(s.Year, months[0], 1, 0, 0, 0, 0, loc)
	end := time.Date(s.Year, months[1]+1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	return Window{Start: start, End: end}
}

// PreviousYear is the same term one year earlier.
func (s Semester) PreviousYear() Semester {
	return Semester{Term: s.Term, Year: s.Year - 1}
}

// SemesterToDate runs from the start of ref's semester to ref.
func SemesterToDate(ref time.Time) Window {
	r := SemesterOf(ref).Range(ref.Location())
	return Window{Start: r.Start, End: ref}
}

// ReferenceWindow is the window whose actors are not new: from the start of the
// same semester one year earlier up to (and including) start.
func ReferenceWindow(ref, start time.Time) Window {
	prev := SemesterOf(ref).PreviousYear().Range(ref.Location())
	return Window{Start: prev.Start, End: start}
}

