package fhir

import (
	"fmt"
	"strings"
	"time"
)

// DatePrecision records how much of a date was actually present in the
// source document. Partial dates (year or year-month) are common in
// clinical data and must not be mistaken for exact timestamps when
// bucketing time series.
type DatePrecision string

const (
	PrecisionDay   DatePrecision = "day"
	PrecisionMonth DatePrecision = "month"
	PrecisionYear  DatePrecision = "year"
)

// Date represents a FHIR date or dateTime together with its precision.
type Date struct {
	Time      time.Time
	Precision DatePrecision
}

// dateFormats pairs each accepted layout with the precision it implies.
// Timestamp layouts are tried first so that "2006-01" never partially
// matches a full dateTime string.
var dateFormats = []struct {
	layout    string
	precision DatePrecision
}{
	{time.RFC3339, PrecisionDay},          // YYYY-MM-DDTHH:MM:SS(.sss)+ZZ:ZZ
	{"2006-01-02T15:04:05", PrecisionDay}, // dateTime without zone
	{"2006-01-02", PrecisionDay},
	{"2006-01", PrecisionMonth},
	{"2006", PrecisionYear},
}

// ParseDate parses a FHIR date, year-month or year string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("empty date string")
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format.layout, s); err == nil {
			return Date{Time: t, Precision: format.precision}, nil
		}
	}

	return Date{}, fmt.Errorf("invalid date format: %s", s)
}

// String renders the date at its own precision.
func (d Date) String() string {
	switch d.Precision {
	case PrecisionYear:
		return d.Time.Format("2006")
	case PrecisionMonth:
		return d.Time.Format("2006-01")
	default:
		return d.Time.Format("2006-01-02")
	}
}

// Bucket truncates the date to a time-series bucket. A year-precision
// date always buckets to its year, even when monthly buckets are
// requested, so partial dates are never reported as January.
func (d Date) Bucket() string {
	if d.Precision == PrecisionYear {
		return d.Time.Format("2006")
	}
	return d.Time.Format("2006-01")
}
