// Package civiltime converts instants to and from the business's single
// fixed civil timezone. The region has no daylight-saving transitions, so
// the zone is a constant UTC offset and every function here is pure:
// instant in, instant out, no clock reads.
package civiltime

import (
	"fmt"
	"strings"
	"time"
)

// Calendar performs boundary arithmetic in one fixed-offset civil timezone.
type Calendar struct {
	loc       *time.Location
	weekStart time.Weekday
}

// New builds a Calendar for the given UTC offset (minutes east of UTC) and
// week-start weekday.
func New(utcOffsetMinutes int, weekStart time.Weekday) Calendar {
	name := fmt.Sprintf("UTC%+03d:%02d", utcOffsetMinutes/60, abs(utcOffsetMinutes%60))
	return Calendar{
		loc:       time.FixedZone(name, utcOffsetMinutes*60),
		weekStart: weekStart,
	}
}

// Location returns the fixed civil zone.
func (c Calendar) Location() *time.Location { return c.loc }

// DayBounds returns the UTC instants bounding the civil day containing now:
// [start, end) where start is local midnight and end is the next midnight.
func (c Calendar) DayBounds(now time.Time) (start, end time.Time) {
	local := now.In(c.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return midnight.UTC(), midnight.AddDate(0, 0, 1).UTC()
}

// StartOfWeek returns the UTC instant of the most recent week-start weekday
// at local midnight (today if now falls on that weekday).
func (c Calendar) StartOfWeek(now time.Time) time.Time {
	local := now.In(c.loc)
	daysBack := (int(local.Weekday()) - int(c.weekStart) + 7) % 7
	d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return d.AddDate(0, 0, -daysBack).UTC()
}

// StartOfMonth returns the UTC instant of the 1st of the current civil month
// at local midnight.
func (c Calendar) StartOfMonth(now time.Time) time.Time {
	local := now.In(c.loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, c.loc).UTC()
}

// FutureBound returns the UTC instant n civil days ahead of the start of the
// current civil day.
func (c Calendar) FutureBound(now time.Time, days int) time.Time {
	start, _ := c.DayBounds(now)
	return start.In(c.loc).AddDate(0, 0, days).UTC()
}

// ParseLocal converts a user-entered wall-clock string into the equivalent
// UTC instant by applying the fixed civil offset. Accepted layouts:
//
//	2006-01-02T15:04
//	2006-01-02T15:04:05
//	2006-01-02          (treated as local midnight, not UTC midnight)
//
// An explicit offset in the input is rejected: callers supply civil time only.
func (c Calendar) ParseLocal(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date/time input")
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized local date/time %q", s)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
