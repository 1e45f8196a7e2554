package calendarfeed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/clientdesk/backend/internal/civiltime"
	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

type feedStub struct {
	bookings []models.Booking
	groups   []models.GroupBooking
}

func (s *feedStub) ListBetween(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.Booking, error) {
	return s.bookings, nil
}

func (s *feedStub) ListUpcoming(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.GroupBooking, error) {
	return s.groups, nil
}

func tptr(t time.Time) *time.Time { return &t }

func TestRenderProducesStableUIDs(t *testing.T) {
	at := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	stub := &feedStub{
		bookings: []models.Booking{
			{ID: 7, Variant: models.VariantTrial, ContactID: 3, ScheduledAt: tptr(at), Status: models.StatusScheduled, Location: "Court 2"},
			{ID: 8, Variant: models.VariantRecurring, ContactID: 3, ScheduledAt: tptr(at.Add(24 * time.Hour)), Status: models.StatusAccepted},
		},
		groups: []models.GroupBooking{
			{ID: 2, Title: "saturday doubles", StartsAt: at.Add(96 * time.Hour), MaxPlayers: 8, PaidCount: 5},
		},
	}
	svc := NewService(nil, stub, stub, civiltime.New(-420, time.Monday), 90, nil)

	out, err := svc.Render(context.Background(), at.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"UID:trial-7@clientdesk",
		"UID:recurring-8@clientdesk",
		"UID:group-2@clientdesk",
		"SUMMARY:Trial session",
		"SUMMARY:saturday doubles",
		"LOCATION:Court 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q", want)
		}
	}
}

func TestRenderSkipsUnscheduledBookings(t *testing.T) {
	stub := &feedStub{
		bookings: []models.Booking{
			{ID: 9, Variant: models.VariantTrial, ContactID: 3, Status: models.StatusScheduled},
		},
	}
	svc := NewService(nil, stub, stub, civiltime.New(-420, time.Monday), 90, nil)

	out, err := svc.Render(context.Background(), time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "trial-9@clientdesk") {
		t.Error("booking without a scheduled time must not be exported")
	}
}
