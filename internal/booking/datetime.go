package booking

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout = "02/01/2006"
	TimeLayout = "15:04"
)

var (
	datePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	timePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// Combine parses a dd/mm/yyyy date and an HH:mm time into one instant in loc.
// Calendar-invalid dates and wall-clock times skipped by a DST change in loc
// are rejected rather than rolled over.
func Combine(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	dateStr = strings.TrimSpace(dateStr)
	timeStr = strings.TrimSpace(timeStr)
	if dateStr == "" || timeStr == "" {
		return time.Time{}, InvalidDateTime("date (dd/mm/yyyy) and time (HH:mm) are required")
	}

	dm := datePattern.FindStringSubmatch(dateStr)
	if dm == nil {
		return time.Time{}, ErrInvalidDateTime
	}
	tm := timePattern.FindStringSubmatch(timeStr)
	if tm == nil {
		return time.Time{}, ErrInvalidDateTime
	}

	day, _ := strconv.Atoi(dm[1])
	month, _ := strconv.Atoi(dm[2])
	year, _ := strconv.Atoi(dm[3])
	hour, _ := strconv.Atoi(tm[1])
	minute, _ := strconv.Atoi(tm[2])

	if hour > 23 || minute > 59 {
		return time.Time{}, ErrInvalidDateTime
	}

	at := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if at.Year() != year || int(at.Month()) != month || at.Day() != day {
		return time.Time{}, InvalidDateTime("date does not exist: " + dateStr)
	}
	if at.Hour() != hour || at.Minute() != minute {
		return time.Time{}, InvalidDateTime("time does not exist in " + loc.String() + ": " + dateStr + " " + timeStr)
	}
	return at, nil
}

// FormatDate renders t in the same dd/mm/yyyy form Combine accepts.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
