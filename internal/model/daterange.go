package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format accepted for range queries.
const DateLayout = "2006-01-02"

// ValidationError reports a bad request parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DateRange is a closed interval covering whole calendar days.
// Start is 00:00:00.000 of the first day, End is 23:59:59.999 of the last day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses two YYYY-MM-DD strings into a DateRange in loc.
// A start after end is accepted and simply matches nothing.
func ParseDateRange(start, end string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.Local
	}

	startDay, err := parseDay("start", start, loc)
	if err != nil {
		return DateRange{}, err
	}
	endDay, err := parseDay("end", end, loc)
	if err != nil {
		return DateRange{}, err
	}

	return DateRange{
		Start: StartOfDay(startDay),
		End:   EndOfDay(endDay),
	}, nil
}

func parseDay(field, value string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid date %q for %s, format YYYY-MM-DD", value, field),
		}
	}
	return day, nil
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last millisecond of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Contains reports whether t falls inside the range, both bounds included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// FilterAttendance returns the records whose RecordTime lies within r.
// The result is never nil.
func (r DateRange) FilterAttendance(records []AttendanceRecord) []AttendanceRecord {
	filtered := make([]AttendanceRecord, 0, len(records))
	for _, rec := range records {
		if r.Contains(rec.RecordTime) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}
