package utils

import (
	"fmt"
	"time"
)

const DefaultDateFormat = "2006-01-02"

// Statement exports are inconsistent about date formats; these are the ones
// seen in the wild, tried in order.
var statementDateFormats = []string{
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
}

// ParseStatementDate parses a date cell from a brokerage export.
func ParseStatementDate(dateStr string) (time.Time, error) {
	for _, format := range statementDateFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", dateStr)
}

// FormatDate renders a date the way it is stored and reported.
func FormatDate(t time.Time) string {
	return t.Format(DefaultDateFormat)
}
