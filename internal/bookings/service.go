// Package bookings moves trial and recurring session bookings through their
// lifecycle and fans out the reminder and contact side effects each
// transition mandates.
package bookings

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/civiltime"
	"github.com/clientdesk/backend/internal/engine"
	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// Store is the booking persistence surface the service drives.
type Store interface {
	CreateTrial(ctx context.Context, db database.Queryer, b *models.Booking) error
	CreateSession(ctx context.Context, db database.Queryer, b *models.Booking) error
	AddParticipants(ctx context.Context, db database.Queryer, ref models.BookingRef, participantIDs []int64) error
	Get(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64) (*models.Booking, error)
	UpdateStatus(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64, status models.BookingStatus) error
	MarkCancelled(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64) error
	MarkNoShow(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64) error
	RecordCompletion(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64, showedUp, cancelled, paid bool, paymentMethod string) error
	HasFutureBooking(ctx context.Context, db database.Queryer, variant models.BookingVariant, contactID, excludeID int64, after time.Time) (bool, error)
	ListBetween(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.Booking, error)
}

// ReminderScheduler creates and retires reminder records.
type ReminderScheduler interface {
	ScheduleSessionReminders(ctx context.Context, db database.Queryer, contactID int64, anchor time.Time, ref models.BookingRef) error
	ScheduleFollowUp(ctx context.Context, db database.Queryer, contactID int64, category models.ReminderCategory, anchor time.Time) error
	CancelReminders(ctx context.Context, db database.Queryer, ref models.BookingRef) error
	CancelFollowUps(ctx context.Context, db database.Queryer, contactID int64, categories ...models.ReminderCategory) error
}

// ContactStore is the slice of contact persistence the lifecycle touches.
type ContactStore interface {
	Exists(ctx context.Context, db database.Queryer, id int64) (bool, error)
	MarkCustomer(ctx context.Context, db database.Queryer, id int64) error
	TouchActivity(ctx context.Context, db database.Queryer, id int64) error
}

// DB is the connection surface: run statements directly or open a transaction.
type DB interface {
	database.Queryer
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the booking lifecycle state machine.
type Service struct {
	db        DB
	store     Store
	scheduler ReminderScheduler
	contacts  ContactStore
	packages  PackageCreator
	cal       civiltime.Calendar
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the lifecycle service.
func NewService(db DB, store Store, scheduler ReminderScheduler, contacts ContactStore, cal civiltime.Calendar, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        db,
		store:     store,
		scheduler: scheduler,
		contacts:  contacts,
		cal:       cal,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries a new booking request. Scheduled and Ends are local
// wall-clock strings in the business timezone, never UTC.
type CreateInput struct {
	Variant        models.BookingVariant
	ContactID      int64
	ParticipantIDs []int64
	ScheduledLocal string
	EndsLocal      string
	Location       string
	Price          *float64
	PackageID      *int64
}

func (in CreateInput) validate() error {
	if !in.Variant.Valid() {
		return engine.Validationf("unknown booking variant %q", in.Variant)
	}
	if in.ContactID <= 0 {
		return engine.Validationf("contact id is required")
	}
	if in.ScheduledLocal == "" {
		return engine.Validationf("scheduled time is required")
	}
	if in.Price != nil && (math.IsNaN(*in.Price) || math.IsInf(*in.Price, 0)) {
		return engine.Validationf("price must be a finite number")
	}
	if in.PackageID != nil && in.Variant != models.VariantRecurring {
		return engine.Validationf("only recurring bookings can reference a package")
	}
	return nil
}

// Create schedules a new booking: persists it, supersedes any pending
// drop-off follow-ups for the contact, and schedules the pre-session
// reminder set, all in one transaction. Trial creation additionally flips
// the contact to customer.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	scheduledAt, err := s.cal.ParseLocal(in.ScheduledLocal)
	if err != nil {
		return nil, engine.Validationf("scheduled time: %v", err)
	}
	var endsAt *time.Time
	if in.EndsLocal != "" {
		t, err := s.cal.ParseLocal(in.EndsLocal)
		if err != nil {
			return nil, engine.Validationf("end time: %v", err)
		}
		endsAt = &t
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	b, err := s.createInTx(ctx, tx, in, scheduledAt, endsAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("booking created",
		zap.String("variant", string(b.Variant)),
		zap.Int64("booking_id", b.ID),
		zap.Int64("contact_id", b.ContactID),
		zap.Timep("scheduled_at", b.ScheduledAt))
	return b, nil
}

func (s *Service) createInTx(ctx context.Context, tx pgx.Tx, in CreateInput, scheduledAt time.Time, endsAt *time.Time) (*models.Booking, error) {
	ok, err := s.contacts.Exists(ctx, tx, in.ContactID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, engine.NotFoundf("contact %d", in.ContactID)
	}

	b := &models.Booking{
		Variant:     in.Variant,
		ContactID:   in.ContactID,
		PackageID:   in.PackageID,
		ScheduledAt: &scheduledAt,
		EndsAt:      endsAt,
		Location:    in.Location,
		Price:       in.Price,
	}
	if in.Variant == models.VariantTrial {
		err = s.store.CreateTrial(ctx, tx, b)
	} else {
		err = s.store.CreateSession(ctx, tx, b)
	}
	if err != nil {
		return nil, err
	}
	if len(in.ParticipantIDs) > 0 {
		if err := s.store.AddParticipants(ctx, tx, b.Ref(), in.ParticipantIDs); err != nil {
			return nil, err
		}
		b.ParticipantIDs = in.ParticipantIDs
	}

	// The contact came back: stale drop-off nags must not fire. Purge before
	// creating the new reminder set so no one observes both.
	if err := s.scheduler.CancelFollowUps(ctx, tx, in.ContactID, models.FollowUpCategories...); err != nil {
		return nil, err
	}
	if err := s.scheduler.ScheduleSessionReminders(ctx, tx, in.ContactID, scheduledAt, b.Ref()); err != nil {
		return nil, err
	}

	if in.Variant == models.VariantTrial {
		if err := s.contacts.MarkCustomer(ctx, tx, in.ContactID); err != nil {
			return nil, err
		}
	}
	if err := s.contacts.TouchActivity(ctx, tx, in.ContactID); err != nil {
		return nil, err
	}
	return b, nil
}

// Accept moves a trial booking from scheduled to accepted. No side effects
// beyond the status write.
func (s *Service) Accept(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := s.get(ctx, models.VariantTrial, id)
	if err != nil {
		return nil, err
	}
	tr, err := Apply(b.Status, EventAccept)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, s.db, b.Variant, b.ID, tr.Next); err != nil {
		return nil, err
	}
	b.Status = tr.Next
	return b, nil
}

// Cancel moves a booking to cancelled and purges its unsent reminders.
// The status write is the source of truth: if the purge fails afterwards the
// cancellation stands and the failure is logged, because a stray reminder is
// a lesser harm than a booking stuck uncancelled. Cancelling an
// already-cancelled booking is a data no-op but still attempts the purge.
func (s *Service) Cancel(ctx context.Context, variant models.BookingVariant, id int64) (*models.Booking, error) {
	b, err := s.get(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	tr, err := Apply(b.Status, EventCancel)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusCancelled {
		if err := s.store.MarkCancelled(ctx, s.db, variant, id); err != nil {
			return nil, err
		}
		if err := s.contacts.TouchActivity(ctx, s.db, b.ContactID); err != nil {
			s.logger.Warn("activity bump failed after cancel", zap.Int64("contact_id", b.ContactID), zap.Error(err))
		}
	}
	b.Status = tr.Next
	b.Cancelled = true

	// Best-effort pair: reported, never rolled back into the status write.
	if err := s.scheduler.CancelReminders(ctx, s.db, b.Ref()); err != nil {
		s.logger.Error("reminder purge failed after cancel",
			zap.String("variant", string(variant)),
			zap.Int64("booking_id", id),
			zap.Error(err))
	}
	return b, nil
}

// MarkNoShow moves a booking to no_show and stamps showed_up = false. A
// no-show never creates a follow-up: it is not a drop-off after attendance.
func (s *Service) MarkNoShow(ctx context.Context, variant models.BookingVariant, id int64) (*models.Booking, error) {
	b, err := s.get(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	tr, err := Apply(b.Status, EventNoShow)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkNoShow(ctx, s.db, variant, id); err != nil {
		return nil, err
	}
	b.Status = tr.Next
	showed := false
	b.ShowedUp = &showed
	return b, nil
}

// CompleteInput carries the outcome recorded atomically with the completed
// status write.
type CompleteInput struct {
	ShowedUp      bool
	Cancelled     bool
	Paid          bool
	PaymentMethod string
}

// Complete moves a booking to completed and records its outcome. When the
// contact showed up, was not cancelled, and has no other future non-cancelled
// booking of the same kind, it schedules a drop-off follow-up: recurring
// bookings purge any pending post-session follow-up first (net one reminder
// even on re-completion), trial bookings schedule directly since a contact
// only ever has one trial. Everything runs in a single transaction.
func (s *Service) Complete(ctx context.Context, variant models.BookingVariant, id int64, in CompleteInput) (*models.Booking, error) {
	b, err := s.get(ctx, variant, id)
	if err != nil {
		return nil, err
	}
	tr, err := Apply(b.Status, EventComplete)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.RecordCompletion(ctx, tx, variant, id, in.ShowedUp, in.Cancelled, in.Paid, in.PaymentMethod); err != nil {
		return nil, err
	}

	if in.ShowedUp && !in.Cancelled {
		if err := s.followUpFanOut(ctx, tx, b); err != nil {
			return nil, err
		}
	}
	if err := s.contacts.TouchActivity(ctx, tx, b.ContactID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	b.Status = tr.Next
	b.ShowedUp = &in.ShowedUp
	b.Cancelled = in.Cancelled
	b.Paid = in.Paid
	b.PaymentMethod = in.PaymentMethod
	s.logger.Info("booking completed",
		zap.String("variant", string(variant)),
		zap.Int64("booking_id", id),
		zap.Bool("showed_up", in.ShowedUp))
	return b, nil
}

func (s *Service) followUpFanOut(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	now := s.now()
	hasFuture, err := s.store.HasFutureBooking(ctx, tx, b.Variant, b.ContactID, b.ID, now)
	if err != nil {
		return err
	}
	if hasFuture {
		return nil
	}

	anchor := now
	if b.ScheduledAt != nil {
		anchor = *b.ScheduledAt
	}
	switch b.Variant {
	case models.VariantRecurring:
		// Purge first to avoid duplicate nags if the same contact completes
		// several sessions without rebooking.
		if err := s.scheduler.CancelFollowUps(ctx, tx, b.ContactID, models.CategoryPostSessionFollowUp); err != nil {
			return err
		}
		return s.scheduler.ScheduleFollowUp(ctx, tx, b.ContactID, models.CategoryPostSessionFollowUp, anchor)
	default:
		// A contact has only one trial, so there is nothing to purge.
		return s.scheduler.ScheduleFollowUp(ctx, tx, b.ContactID, models.CategoryPostFirstSessionFollowUp, anchor)
	}
}

func (s *Service) get(ctx context.Context, variant models.BookingVariant, id int64) (*models.Booking, error) {
	if !variant.Valid() {
		return nil, engine.Validationf("unknown booking variant %q", variant)
	}
	b, err := s.store.Get(ctx, s.db, variant, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.NotFoundf("%s booking %d", variant, id)
		}
		return nil, err
	}
	return b, nil
}

// Get returns one booking with its participant list.
func (s *Service) Get(ctx context.Context, variant models.BookingVariant, id int64) (*models.Booking, error) {
	return s.get(ctx, variant, id)
}

// ListBetween returns non-terminal bookings of both variants scheduled
// inside [from, to).
func (s *Service) ListBetween(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	return s.store.ListBetween(ctx, s.db, from, to)
}
