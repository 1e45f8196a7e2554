package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// Repository persists trial and recurring session bookings. The two variants
// live in separate tables with the same lifecycle columns; methods take the
// variant and route to the right table.
type Repository struct{}

// NewRepository creates a bookings repository.
func NewRepository() *Repository {
	return &Repository{}
}

func table(v models.BookingVariant) string {
	if v == models.VariantTrial {
		return "trial_bookings"
	}
	return "session_bookings"
}

func participantTable(v models.BookingVariant) (join, fk string) {
	if v == models.VariantTrial {
		return "trial_booking_participants", "trial_booking_id"
	}
	return "session_booking_participants", "session_booking_id"
}

// CreateTrial inserts a trial booking.
func (r *Repository) CreateTrial(ctx context.Context, db database.Queryer, b *models.Booking) error {
	const q = `INSERT INTO trial_bookings (contact_id, scheduled_at, ends_at, location, price)
		VALUES ($1, $2, $3, NULLIF($4,''), $5)
		RETURNING id, status, created_at, updated_at`
	b.Variant = models.VariantTrial
	return db.QueryRow(ctx, q, b.ContactID, b.ScheduledAt, b.EndsAt, b.Location, b.Price).
		Scan(&b.ID, &b.Status, &b.CreatedAt, &b.UpdatedAt)
}

// CreateSession inserts a recurring session booking.
func (r *Repository) CreateSession(ctx context.Context, db database.Queryer, b *models.Booking) error {
	const q = `INSERT INTO session_bookings (contact_id, package_id, scheduled_at, ends_at, location, price)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6)
		RETURNING id, status, created_at, updated_at`
	b.Variant = models.VariantRecurring
	return db.QueryRow(ctx, q, b.ContactID, b.PackageID, b.ScheduledAt, b.EndsAt, b.Location, b.Price).
		Scan(&b.ID, &b.Status, &b.CreatedAt, &b.UpdatedAt)
}

// AddParticipants links participants to a booking.
func (r *Repository) AddParticipants(ctx context.Context, db database.Queryer, ref models.BookingRef, participantIDs []int64) error {
	join, fk := participantTable(ref.Variant)
	const tmpl = `INSERT INTO %s (%s, participant_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, pid := range participantIDs {
		if _, err := db.Exec(ctx, fmt.Sprintf(tmpl, join, fk), ref.ID, pid); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a booking with its participant IDs, or pgx.ErrNoRows.
func (r *Repository) Get(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64) (*models.Booking, error) {
	var q string
	if variant == models.VariantTrial {
		q = `SELECT id, contact_id, NULL::BIGINT, scheduled_at, ends_at, COALESCE(location,''), price,
			status, showed_up, cancelled, paid, COALESCE(payment_method,''), created_at, updated_at
			FROM trial_bookings WHERE id = $1`
	} else {
		q = `SELECT id, contact_id, package_id, scheduled_at, ends_at, COALESCE(location,''), price,
			status, showed_up, cancelled, paid, COALESCE(payment_method,''), created_at, updated_at
			FROM session_bookings WHERE id = $1`
	}
	var b models.Booking
	b.Variant = variant
	err := db.QueryRow(ctx, q, id).Scan(&b.ID, &b.ContactID, &b.PackageID, &b.ScheduledAt, &b.EndsAt,
		&b.Location, &b.Price, &b.Status, &b.ShowedUp, &b.Cancelled, &b.Paid, &b.PaymentMethod,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	join, fk := participantTable(variant)
	rows, err := db.Query(ctx, fmt.Sprintf(`SELECT participant_id FROM %s WHERE %s = $1`, join, fk), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var pid int64
		if err := rows.Scan(&pid); err != nil {
			return nil, err
		}
		b.ParticipantIDs = append(b.ParticipantIDs, pid)
	}
	return &b, rows.Err()
}

// UpdateStatus writes a bare status change.
func (r *Repository) UpdateStatus(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64, status models.BookingStatus) error {
	q := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = NOW() WHERE id = $1`, table(variant))
	_, err := db.Exec(ctx, q, id, status)
	return err
}

// MarkCancelled sets the cancelled status and flag together.
func (r *Repository) MarkCancelled(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64) error {
	q := fmt.Sprintf(`UPDATE %s SET status = 'cancelled', cancelled = TRUE, updated_at = NOW() WHERE id = $1`, table(variant))
	_, err := db.Exec(ctx, q, id)
	return err
}

// MarkNoShow sets the no_show status and showed_up = false together.
func (r *Repository) MarkNoShow(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64) error {
	q := fmt.Sprintf(`UPDATE %s SET status = 'no_show', showed_up = FALSE, updated_at = NOW() WHERE id = $1`, table(variant))
	_, err := db.Exec(ctx, q, id)
	return err
}

// RecordCompletion writes the completed status and the outcome fields in one
// statement, so a completed booking always has its showed-up flag set.
func (r *Repository) RecordCompletion(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64, showedUp, cancelled, paid bool, paymentMethod string) error {
	q := fmt.Sprintf(`UPDATE %s SET status = 'completed', showed_up = $2, cancelled = $3, paid = $4,
		payment_method = NULLIF($5,''), updated_at = NOW() WHERE id = $1`, table(variant))
	_, err := db.Exec(ctx, q, id, showedUp, cancelled, paid, paymentMethod)
	return err
}

// HasFutureBooking reports whether the contact has another non-cancelled
// booking of the same variant scheduled after the given instant.
func (r *Repository) HasFutureBooking(ctx context.Context, db database.Queryer, variant models.BookingVariant, contactID, excludeID int64, after time.Time) (bool, error) {
	q := fmt.Sprintf(`SELECT EXISTS (
		SELECT 1 FROM %s
		WHERE contact_id = $1 AND id <> $2 AND NOT cancelled AND status <> 'cancelled' AND scheduled_at > $3
	)`, table(variant))
	var exists bool
	err := db.QueryRow(ctx, q, contactID, excludeID, after).Scan(&exists)
	return exists, err
}

// ListBetween returns non-terminal bookings of both variants scheduled in
// [from, to), ordered by scheduled time.
func (r *Repository) ListBetween(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.Booking, error) {
	const q = `
		SELECT 'trial', id, contact_id, NULL::BIGINT, scheduled_at, ends_at, COALESCE(location,''), price, status
		FROM trial_bookings
		WHERE scheduled_at >= $1 AND scheduled_at < $2 AND status NOT IN ('completed','cancelled','no_show')
		UNION ALL
		SELECT 'recurring', id, contact_id, package_id, scheduled_at, ends_at, COALESCE(location,''), price, status
		FROM session_bookings
		WHERE scheduled_at >= $1 AND scheduled_at < $2 AND status NOT IN ('completed','cancelled','no_show')
		ORDER BY scheduled_at`
	rows, err := db.Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookingSummaries(rows)
}

// ListActionable returns the dashboard's today window: non-terminal bookings
// scheduled in [dayStart, dayEnd) plus the no-date-set carve-out, trial
// requests with no scheduled instant that still need action.
func (r *Repository) ListActionable(ctx context.Context, db database.Queryer, dayStart, dayEnd time.Time) ([]models.Booking, error) {
	const q = `
		SELECT 'trial', id, contact_id, NULL::BIGINT, scheduled_at, ends_at, COALESCE(location,''), price, status
		FROM trial_bookings
		WHERE status NOT IN ('completed','cancelled','no_show')
		  AND (scheduled_at IS NULL OR (scheduled_at >= $1 AND scheduled_at < $2))
		UNION ALL
		SELECT 'recurring', id, contact_id, package_id, scheduled_at, ends_at, COALESCE(location,''), price, status
		FROM session_bookings
		WHERE status NOT IN ('completed','cancelled','no_show')
		  AND scheduled_at >= $1 AND scheduled_at < $2
		ORDER BY scheduled_at NULLS FIRST`
	rows, err := db.Query(ctx, q, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookingSummaries(rows)
}

// CountCompletedBetween counts recurring sessions completed-and-showed in
// [from, to), for the dashboard's week and month tallies.
func (r *Repository) CountCompletedBetween(ctx context.Context, db database.Queryer, from, to time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM session_bookings
		WHERE status = 'completed' AND showed_up AND scheduled_at >= $1 AND scheduled_at < $2`
	var n int
	err := db.QueryRow(ctx, q, from, to).Scan(&n)
	return n, err
}

func scanBookingSummaries(rows pgx.Rows) ([]models.Booking, error) {
	var list []models.Booking
	for rows.Next() {
		var b models.Booking
		var variant string
		if err := rows.Scan(&variant, &b.ID, &b.ContactID, &b.PackageID, &b.ScheduledAt, &b.EndsAt,
			&b.Location, &b.Price, &b.Status); err != nil {
			return nil, err
		}
		b.Variant = models.BookingVariant(variant)
		list = append(list, b)
	}
	return list, rows.Err()
}
