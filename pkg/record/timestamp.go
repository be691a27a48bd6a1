package record

import (
	"time"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
)

// ISOInstantFormat renders an instant with millisecond precision in UTC
const ISOInstantFormat = "2006-01-02T15:04:05.000Z"

// NewTimestamp breaks t down into the calendar fields of a record capture time.
// All fields are taken in UTC.
func NewTimestamp(t time.Time) models.Timestamp {
	t = t.UTC()
	return models.Timestamp{
		ISOInstant:    t.Format(ISOInstantFormat),
		Year:          t.Year(),
		Month:         int(t.Month()),
		Day:           t.Day(),
		Hour:          t.Hour(),
		Minute:        t.Minute(),
		Second:        t.Second(),
		Millisecond:   t.Nanosecond() / int(time.Millisecond),
		WeekdayIndex:  int(t.Weekday()),
		ISOWeekOfYear: ISOWeek(t),
	}
}

// ISOWeek returns the ISO-8601 week number of t's UTC date.
// The date is moved to the Thursday of its Monday-based week; the week is then
// counted from January 1 of that Thursday's year.
func ISOWeek(t time.Time) int {
	y, m, d := t.UTC().Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	weekday := int(date.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	thursday := date.AddDate(0, 0, 4-weekday)
	yearStart := time.Date(thursday.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	days := int(thursday.Sub(yearStart) / (24 * time.Hour))
	return (days + 1 + 6) / 7
}
