// Package reminders creates and retires reminder records around booking
// lifecycle events. It never sends anything and never reads the clock when
// planning: what to do with a reminder that is already overdue is the
// dispatch worker's call.
package reminders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// Store is the persistence surface the scheduler needs.
type Store interface {
	InsertBatch(ctx context.Context, db database.Queryer, rs []models.Reminder) error
	DeleteUnsentForBooking(ctx context.Context, db database.Queryer, ref models.BookingRef) (int64, error)
	DeleteUnsentFollowUps(ctx context.Context, db database.Queryer, contactID int64, categories []models.ReminderCategory) (int64, error)
}

// Scheduler derives reminder rows from booking anchors and invalidates them
// when bookings are cancelled or superseded.
type Scheduler struct {
	store  Store
	policy Policy
	logger *zap.Logger
}

// NewScheduler creates a scheduler with the given policy.
func NewScheduler(store Store, policy Policy, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{store: store, policy: policy, logger: logger}
}

// Policy returns the scheduler's offsets (for callers that plan without persisting).
func (s *Scheduler) Policy() Policy { return s.policy }

// ScheduleSessionReminders creates the pre-session reminder set for a booking.
func (s *Scheduler) ScheduleSessionReminders(ctx context.Context, db database.Queryer, contactID int64, anchor time.Time, ref models.BookingRef) error {
	planned := s.policy.PlanSessionReminders(contactID, anchor, ref)
	if err := s.store.InsertBatch(ctx, db, planned); err != nil {
		return fmt.Errorf("insert session reminders: %w", err)
	}
	s.logger.Debug("session reminders scheduled",
		zap.Int64("contact_id", contactID),
		zap.String("variant", string(ref.Variant)),
		zap.Int64("booking_id", ref.ID),
		zap.Int("count", len(planned)))
	return nil
}

// ScheduleFollowUp creates a single drop-off follow-up for a contact.
func (s *Scheduler) ScheduleFollowUp(ctx context.Context, db database.Queryer, contactID int64, category models.ReminderCategory, anchor time.Time) error {
	planned := []models.Reminder{s.policy.PlanFollowUp(contactID, category, anchor)}
	if err := s.store.InsertBatch(ctx, db, planned); err != nil {
		return fmt.Errorf("insert follow-up: %w", err)
	}
	s.logger.Debug("follow-up scheduled",
		zap.Int64("contact_id", contactID),
		zap.String("category", string(category)),
		zap.Time("due_at", planned[0].DueAt))
	return nil
}

// CancelReminders deletes all unsent reminders owned by a booking.
func (s *Scheduler) CancelReminders(ctx context.Context, db database.Queryer, ref models.BookingRef) error {
	n, err := s.store.DeleteUnsentForBooking(ctx, db, ref)
	if err != nil {
		return fmt.Errorf("delete booking reminders: %w", err)
	}
	if n > 0 {
		s.logger.Debug("booking reminders cancelled",
			zap.String("variant", string(ref.Variant)),
			zap.Int64("booking_id", ref.ID),
			zap.Int64("deleted", n))
	}
	return nil
}

// CancelFollowUps deletes unsent follow-ups of the given categories for a
// contact, used when a new booking supersedes a pending drop-off warning.
func (s *Scheduler) CancelFollowUps(ctx context.Context, db database.Queryer, contactID int64, categories ...models.ReminderCategory) error {
	n, err := s.store.DeleteUnsentFollowUps(ctx, db, contactID, categories)
	if err != nil {
		return fmt.Errorf("delete follow-ups: %w", err)
	}
	if n > 0 {
		s.logger.Debug("follow-ups superseded", zap.Int64("contact_id", contactID), zap.Int64("deleted", n))
	}
	return nil
}
