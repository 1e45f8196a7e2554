package reminders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// Repository persists reminder rows. Every method takes the Queryer to run
// on, so callers can point it at the pool or at an open transaction.
type Repository struct{}

// NewRepository creates a reminders repository.
func NewRepository() *Repository {
	return &Repository{}
}

const reminderColumns = `id, contact_id, due_at, sent, sent_at, category, trial_booking_id, session_booking_id, created_at`

// InsertBatch inserts the planned reminders, filling in generated IDs.
func (r *Repository) InsertBatch(ctx context.Context, db database.Queryer, rs []models.Reminder) error {
	const q = `INSERT INTO reminders (contact_id, due_at, category, trial_booking_id, session_booking_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	for i := range rs {
		err := db.QueryRow(ctx, q, rs[i].ContactID, rs[i].DueAt, rs[i].Category, rs[i].TrialBookingID, rs[i].SessionBookingID).
			Scan(&rs[i].ID, &rs[i].CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteUnsentForBooking deletes (not merely marks) all unsent reminders
// owned by the given booking. Sent reminders are history and stay.
func (r *Repository) DeleteUnsentForBooking(ctx context.Context, db database.Queryer, ref models.BookingRef) (int64, error) {
	var q string
	switch ref.Variant {
	case models.VariantTrial:
		q = `DELETE FROM reminders WHERE trial_booking_id = $1 AND NOT sent`
	default:
		q = `DELETE FROM reminders WHERE session_booking_id = $1 AND NOT sent`
	}
	tag, err := db.Exec(ctx, q, ref.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteUnsentFollowUps deletes all unsent reminders of the given follow-up
// categories for a contact.
func (r *Repository) DeleteUnsentFollowUps(ctx context.Context, db database.Queryer, contactID int64, categories []models.ReminderCategory) (int64, error) {
	if len(categories) == 0 {
		return 0, nil
	}
	cats := make([]string, len(categories))
	for i, c := range categories {
		cats[i] = string(c)
	}
	const q = `DELETE FROM reminders WHERE contact_id = $1 AND category = ANY($2) AND NOT sent`
	tag, err := db.Exec(ctx, q, contactID, cats)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListDueUnsent returns up to limit unsent reminders due at or before the
// given instant, oldest first.
func (r *Repository) ListDueUnsent(ctx context.Context, db database.Queryer, due time.Time, limit int) ([]models.Reminder, error) {
	const q = `SELECT ` + reminderColumns + ` FROM reminders
		WHERE NOT sent AND due_at <= $1 ORDER BY due_at LIMIT $2`
	rows, err := db.Query(ctx, q, due, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ListDueBetween returns unsent reminders with due_at in [from, to), for the
// dashboard's today window.
func (r *Repository) ListDueBetween(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.Reminder, error) {
	const q = `SELECT ` + reminderColumns + ` FROM reminders
		WHERE NOT sent AND due_at >= $1 AND due_at < $2 ORDER BY due_at`
	rows, err := db.Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

// MarkSent stamps a reminder as sent. Already-sent rows are left untouched.
func (r *Repository) MarkSent(ctx context.Context, db database.Queryer, id int64, at time.Time) error {
	const q = `UPDATE reminders SET sent = TRUE, sent_at = $2 WHERE id = $1 AND NOT sent`
	_, err := db.Exec(ctx, q, id, at)
	return err
}

func scanReminders(rows pgx.Rows) ([]models.Reminder, error) {
	var list []models.Reminder
	for rows.Next() {
		var rem models.Reminder
		if err := rows.Scan(&rem.ID, &rem.ContactID, &rem.DueAt, &rem.Sent, &rem.SentAt,
			&rem.Category, &rem.TrialBookingID, &rem.SessionBookingID, &rem.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rem)
	}
	return list, rows.Err()
}
