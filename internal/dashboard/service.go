package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/civiltime"
	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// BookingStore is the slice of the bookings repository the snapshot reads.
type BookingStore interface {
	ListActionable(ctx context.Context, db database.Queryer, dayStart, dayEnd time.Time) ([]models.Booking, error)
	ListBetween(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.Booking, error)
	CountCompletedBetween(ctx context.Context, db database.Queryer, from, to time.Time) (int, error)
}

// ReminderStore is the slice of the reminders repository the snapshot reads.
type ReminderStore interface {
	ListDueBetween(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.Reminder, error)
}

// GroupStore is the slice of the groups repository the snapshot reads.
type GroupStore interface {
	ListUpcoming(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.GroupBooking, error)
}

// Snapshot is the aggregated view for a single instant: everything keyed by
// the civil day, week, month and look-ahead windows around that instant.
type Snapshot struct {
	Now            time.Time             `json:"now"`
	TodayBookings  []models.Booking      `json:"today_bookings"`
	DueReminders   []models.Reminder     `json:"due_reminders"`
	Upcoming       []models.Booking      `json:"upcoming"`
	UpcomingGroups []models.GroupBooking `json:"upcoming_groups"`
	CompletedWeek  int                   `json:"completed_week"`
	CompletedMonth int                   `json:"completed_month"`
}

// Service assembles dashboard snapshots.
type Service struct {
	db            database.Queryer
	bookings      BookingStore
	reminders     ReminderStore
	groups        GroupStore
	cal           civiltime.Calendar
	lookAheadDays int
	logger        *zap.Logger
}

// NewService creates the dashboard service.
func NewService(db database.Queryer, bookings BookingStore, reminders ReminderStore, groups GroupStore, cal civiltime.Calendar, lookAheadDays int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:            db,
		bookings:      bookings,
		reminders:     reminders,
		groups:        groups,
		cal:           cal,
		lookAheadDays: lookAheadDays,
		logger:        logger,
	}
}

// Snapshot builds the aggregated view for now. All window boundaries come
// from the civil calendar, so "today" is the operator's day, not the UTC
// day. The reads are independent and non-locking; a booking completed
// between two reads may be counted in one list and not the other, which is
// acceptable for an advisory view.
func (s *Service) Snapshot(ctx context.Context, now time.Time) (*Snapshot, error) {
	dayStart, dayEnd := s.cal.DayBounds(now)

	today, err := s.bookings.ListActionable(ctx, s.db, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	due, err := s.reminders.ListDueBetween(ctx, s.db, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	future := s.cal.FutureBound(now, s.lookAheadDays)
	upcoming, err := s.bookings.ListBetween(ctx, s.db, dayEnd, future)
	if err != nil {
		return nil, err
	}
	groups, err := s.groups.ListUpcoming(ctx, s.db, now, future)
	if err != nil {
		return nil, err
	}
	completedWeek, err := s.bookings.CountCompletedBetween(ctx, s.db, s.cal.StartOfWeek(now), now)
	if err != nil {
		return nil, err
	}
	completedMonth, err := s.bookings.CountCompletedBetween(ctx, s.db, s.cal.StartOfMonth(now), now)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Now:            now.UTC(),
		TodayBookings:  today,
		DueReminders:   due,
		Upcoming:       upcoming,
		UpcomingGroups: groups,
		CompletedWeek:  completedWeek,
		CompletedMonth: completedMonth,
	}, nil
}
