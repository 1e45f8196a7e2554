package calendarfeed

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/civiltime"
	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// BookingStore lists the bookings the feed exports.
type BookingStore interface {
	ListBetween(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.Booking, error)
}

// GroupStore lists the group bookings the feed exports.
type GroupStore interface {
	ListUpcoming(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.GroupBooking, error)
}

// defaultDuration pads events that have no recorded end time so calendar
// clients render a visible block.
const defaultDuration = time.Hour

// Service renders upcoming bookings as an iCalendar feed for subscription
// by external calendar clients.
type Service struct {
	db            database.Queryer
	bookings      BookingStore
	groups        GroupStore
	cal           civiltime.Calendar
	lookAheadDays int
	logger        *zap.Logger
}

// NewService creates the calendar feed service.
func NewService(db database.Queryer, bookings BookingStore, groups GroupStore, cal civiltime.Calendar, lookAheadDays int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, bookings: bookings, groups: groups, cal: cal, lookAheadDays: lookAheadDays, logger: logger}
}

// Render serializes the upcoming schedule as an ICS payload. UIDs are
// stable per booking so re-fetches update rather than duplicate events.
func (s *Service) Render(ctx context.Context, now time.Time) (string, error) {
	from, _ := s.cal.DayBounds(now)
	to := s.cal.FutureBound(now, s.lookAheadDays)

	bookings, err := s.bookings.ListBetween(ctx, s.db, from, to)
	if err != nil {
		return "", err
	}
	groups, err := s.groups.ListUpcoming(ctx, s.db, from, to)
	if err != nil {
		return "", err
	}

	feed := ics.NewCalendar()
	feed.SetMethod(ics.MethodPublish)
	feed.SetProductId("-//clientdesk//schedule//EN")

	for _, b := range bookings {
		if b.ScheduledAt == nil {
			continue
		}
		ev := feed.AddEvent(fmt.Sprintf("%s-%d@clientdesk", b.Variant, b.ID))
		ev.SetDtStampTime(now.UTC())
		ev.SetStartAt(b.ScheduledAt.UTC())
		if b.EndsAt != nil {
			ev.SetEndAt(b.EndsAt.UTC())
		} else {
			ev.SetEndAt(b.ScheduledAt.UTC().Add(defaultDuration))
		}
		ev.SetSummary(summaryFor(b))
		if b.Location != "" {
			ev.SetLocation(b.Location)
		}
		ev.SetDescription(fmt.Sprintf("status: %s", b.Status))
	}

	for _, g := range groups {
		ev := feed.AddEvent(fmt.Sprintf("group-%d@clientdesk", g.ID))
		ev.SetDtStampTime(now.UTC())
		ev.SetStartAt(g.StartsAt.UTC())
		ev.SetEndAt(g.StartsAt.UTC().Add(defaultDuration))
		ev.SetSummary(g.Title)
		if g.Location != "" {
			ev.SetLocation(g.Location)
		}
		ev.SetDescription(fmt.Sprintf("%d/%d paid", g.PaidCount, g.MaxPlayers))
	}

	s.logger.Debug("calendar feed rendered",
		zap.Int("bookings", len(bookings)),
		zap.Int("groups", len(groups)))
	return feed.Serialize(), nil
}

func summaryFor(b models.Booking) string {
	switch b.Variant {
	case models.VariantTrial:
		return "Trial session"
	default:
		return "Training session"
	}
}
