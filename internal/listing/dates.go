package listing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var isoDayPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2",
	"2-1-2006",
	"02-01-2006",
	"2/1/2006",
	"02/01/2006",
	"2006/01/02",
}

// ParseDate accepts the date shapes the backend and spreadsheets produce:
// ISO dates and timestamps, day-first dashed or slashed dates and Excel
// serial numbers. Values without a zone are read as UTC.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial >= 20000 && serial <= 80000 {
			if parsed, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return parsed.UTC(), true
			}
		}
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// DatePart returns the YYYY-MM-DD calendar day of value, or "" when it cannot
// be read. ISO values keep their literal day so zones never shift it.
func DatePart(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if isoDayPrefix.MatchString(value) {
		return value[:10]
	}
	parsed, ok := ParseDate(value)
	if !ok {
		return ""
	}
	return parsed.Format("2006-01-02")
}

// FormatDate renders value as DD/MM/YYYY, or "-".
func FormatDate(value string) string {
	day := DatePart(value)
	if day == "" {
		return "-"
	}
	parsed, err := time.Parse("2006-01-02", day)
	if err != nil {
		return "-"
	}
	return parsed.Format("02/01/2006")
}

// FormatDateTime renders value as DD/MM/YYYY HH:MM, or "-".
func FormatDateTime(value string) string {
	parsed, ok := ParseDate(value)
	if !ok {
		return "-"
	}
	return parsed.Format("02/01/2006 15:04")
}

// DaysSince counts whole days elapsed between value and now. Unreadable values
// report ok=false.
func DaysSince(value string, now time.Time) (int, bool) {
	parsed, ok := ParseDate(value)
	if !ok {
		return 0, false
	}
	return int(math.Floor(now.Sub(parsed).Hours() / 24)), true
}

// DaysRemaining is max(0, window - DaysSince). Missing dates have no days left.
func DaysRemaining(value string, now time.Time, window int) int {
	days, ok := DaysSince(value, now)
	if !ok {
		return 0
	}
	return max(0, window-days)
}

// IsRecent reports at least a week left in a 30 day window.
func IsRecent(value string, now time.Time) bool {
	return DaysRemaining(value, now, 30) >= 7
}

// AddDays shifts a date value and returns it as YYYY-MM-DD.
func AddDays(value string, days int) string {
	day := DatePart(value)
	if day == "" {
		return ""
	}
	parsed, err := time.Parse("2006-01-02", day)
	if err != nil {
		return ""
	}
	return parsed.AddDate(0, 0, days).Format("2006-01-02")
}
