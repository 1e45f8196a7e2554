package civiltime

import (
	"testing"
	"time"
)

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts.UTC()
}

func TestParseLocalWallClock(t *testing.T) {
	cal := New(-420, time.Monday) // UTC-07:00

	got, err := cal.ParseLocal("2026-03-10T15:00")
	if err != nil {
		t.Fatalf("ParseLocal: %v", err)
	}
	want := mustUTC(t, "2026-03-10T22:00:00Z")
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseLocalDateOnlyIsLocalMidnight(t *testing.T) {
	cal := New(-420, time.Monday)

	got, err := cal.ParseLocal("2026-03-10")
	if err != nil {
		t.Fatalf("ParseLocal: %v", err)
	}
	// Local midnight at UTC-07:00, not UTC midnight.
	want := mustUTC(t, "2026-03-10T07:00:00Z")
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseLocalRejectsGarbage(t *testing.T) {
	cal := New(-420, time.Monday)
	for _, in := range []string{"", "not-a-date", "2026-13-40T99:99"} {
		if _, err := cal.ParseLocal(in); err == nil {
			t.Errorf("ParseLocal(%q): expected error", in)
		}
	}
}

func TestDayBounds(t *testing.T) {
	cal := New(-420, time.Monday)
	// 2026-03-10 15:00 local = 2026-03-10 22:00 UTC
	now := mustUTC(t, "2026-03-10T22:00:00Z")

	start, end := cal.DayBounds(now)
	if want := mustUTC(t, "2026-03-10T07:00:00Z"); !start.Equal(want) {
		t.Errorf("start: got %v, want %v", start, want)
	}
	if want := mustUTC(t, "2026-03-11T07:00:00Z"); !end.Equal(want) {
		t.Errorf("end: got %v, want %v", end, want)
	}
}

func TestDayBoundsNearUTCMidnight(t *testing.T) {
	cal := New(-420, time.Monday)
	// 2026-03-11 01:30 UTC is still 2026-03-10 in the civil zone.
	now := mustUTC(t, "2026-03-11T01:30:00Z")

	start, _ := cal.DayBounds(now)
	if want := mustUTC(t, "2026-03-10T07:00:00Z"); !start.Equal(want) {
		t.Errorf("start: got %v, want %v", start, want)
	}
}

func TestStartOfWeek(t *testing.T) {
	cal := New(-420, time.Monday)
	// 2026-03-10 is a Tuesday locally.
	now := mustUTC(t, "2026-03-10T22:00:00Z")

	got := cal.StartOfWeek(now)
	if want := mustUTC(t, "2026-03-09T07:00:00Z"); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// On the week-start day itself, the boundary is that day's midnight.
	monday := mustUTC(t, "2026-03-09T12:00:00Z")
	got = cal.StartOfWeek(monday)
	if want := mustUTC(t, "2026-03-09T07:00:00Z"); !got.Equal(want) {
		t.Errorf("on week start: got %v, want %v", got, want)
	}
}

func TestStartOfWeekSundayConfig(t *testing.T) {
	cal := New(-420, time.Sunday)
	now := mustUTC(t, "2026-03-10T22:00:00Z") // local Tuesday

	got := cal.StartOfWeek(now)
	if want := mustUTC(t, "2026-03-08T07:00:00Z"); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStartOfMonth(t *testing.T) {
	cal := New(-420, time.Monday)
	now := mustUTC(t, "2026-03-10T22:00:00Z")

	got := cal.StartOfMonth(now)
	if want := mustUTC(t, "2026-03-01T07:00:00Z"); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFutureBound(t *testing.T) {
	cal := New(-420, time.Monday)
	now := mustUTC(t, "2026-03-10T22:00:00Z")

	got := cal.FutureBound(now, 90)
	if want := mustUTC(t, "2026-06-08T07:00:00Z"); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPositiveOffsetZone(t *testing.T) {
	cal := New(330, time.Monday) // UTC+05:30

	got, err := cal.ParseLocal("2026-03-10T15:00")
	if err != nil {
		t.Fatalf("ParseLocal: %v", err)
	}
	if want := mustUTC(t, "2026-03-10T09:30:00Z"); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
