package groups

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// paidCountSubquery derives the capacity-relevant occupancy. Unpaid signups
// never count against capacity.
const paidCountSubquery = `(SELECT COUNT(*) FROM group_signups s WHERE s.group_booking_id = g.id AND s.paid)`

const groupColumns = `g.id, g.title, g.starts_at, COALESCE(g.location, ''), g.max_players, g.price, ` + paidCountSubquery + `, g.created_at, g.updated_at`

// Repository handles group booking and signup persistence. Stateless; every
// method runs against the Queryer passed in so admission can share the
// caller's transaction.
type Repository struct{}

// NewRepository creates a groups repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Insert creates a group booking.
func (r *Repository) Insert(ctx context.Context, db database.Queryer, g *models.GroupBooking) error {
	const q = `INSERT INTO group_bookings (title, starts_at, location, max_players, price)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING id, created_at, updated_at`
	return db.QueryRow(ctx, q, g.Title, g.StartsAt, g.Location, g.MaxPlayers, g.Price).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

// Get returns a group booking with its derived paid count.
func (r *Repository) Get(ctx context.Context, db database.Queryer, id int64) (*models.GroupBooking, error) {
	row := db.QueryRow(ctx, `SELECT `+groupColumns+` FROM group_bookings g WHERE g.id = $1`, id)
	return scanGroup(row)
}

// GetForUpdate locks the group booking row. PaidCount is NOT populated:
// under read committed a locker that blocked resumes with the snapshot its
// statement started with, so a count folded into this statement would miss
// a signup committed by the admitter it waited on. Read the occupancy with
// CountPaidSignups once the lock is held.
func (r *Repository) GetForUpdate(ctx context.Context, db database.Queryer, id int64) (*models.GroupBooking, error) {
	const q = `SELECT id, title, starts_at, COALESCE(location, ''), max_players, price, created_at, updated_at
		FROM group_bookings WHERE id = $1 FOR UPDATE`
	var g models.GroupBooking
	err := db.QueryRow(ctx, q, id).
		Scan(&g.ID, &g.Title, &g.StartsAt, &g.Location, &g.MaxPlayers, &g.Price, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CountPaidSignups returns a group's paid occupancy. Issued as its own
// statement so it runs on a fresh snapshot and sees rows committed while
// the caller was waiting on the group row lock.
func (r *Repository) CountPaidSignups(ctx context.Context, db database.Queryer, groupID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM group_signups WHERE group_booking_id = $1 AND paid`
	var n int
	err := db.QueryRow(ctx, q, groupID).Scan(&n)
	return n, err
}

// UpdateCapacity sets max_players. Callers must hold the row lock and have
// checked the new capacity against the current paid count.
func (r *Repository) UpdateCapacity(ctx context.Context, db database.Queryer, id int64, maxPlayers int) error {
	const q = `UPDATE group_bookings SET max_players = $2, updated_at = NOW() WHERE id = $1`
	_, err := db.Exec(ctx, q, id, maxPlayers)
	return err
}

// ListUpcoming returns group bookings starting inside [from, to).
func (r *Repository) ListUpcoming(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.GroupBooking, error) {
	const q = `SELECT ` + groupColumns + ` FROM group_bookings g
		WHERE g.starts_at >= $1 AND g.starts_at < $2
		ORDER BY g.starts_at`
	rows, err := db.Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.GroupBooking
	for rows.Next() {
		var g models.GroupBooking
		if err := rows.Scan(&g.ID, &g.Title, &g.StartsAt, &g.Location, &g.MaxPlayers, &g.Price, &g.PaidCount, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// InsertSignup creates a signup row. Capacity checking happens in the
// service under the group row lock.
func (r *Repository) InsertSignup(ctx context.Context, db database.Queryer, s *models.Signup) error {
	const q = `INSERT INTO group_signups (group_booking_id, contact_id, name, paid)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	return db.QueryRow(ctx, q, s.GroupBookingID, s.ContactID, s.Name, s.Paid).
		Scan(&s.ID, &s.CreatedAt)
}

// ListSignups returns a group's signups, oldest first.
func (r *Repository) ListSignups(ctx context.Context, db database.Queryer, groupID int64) ([]models.Signup, error) {
	const q = `SELECT id, group_booking_id, contact_id, name, paid, created_at
		FROM group_signups WHERE group_booking_id = $1 ORDER BY id`
	rows, err := db.Query(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Signup
	for rows.Next() {
		var s models.Signup
		if err := rows.Scan(&s.ID, &s.GroupBookingID, &s.ContactID, &s.Name, &s.Paid, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// SetSignupPaid flips a signup's paid flag. Callers flipping unpaid→paid
// must hold the group row lock and re-check capacity first.
func (r *Repository) SetSignupPaid(ctx context.Context, db database.Queryer, signupID int64, paid bool) error {
	const q = `UPDATE group_signups SET paid = $2 WHERE id = $1`
	_, err := db.Exec(ctx, q, signupID, paid)
	return err
}

// GetSignup returns one signup.
func (r *Repository) GetSignup(ctx context.Context, db database.Queryer, signupID int64) (*models.Signup, error) {
	const q = `SELECT id, group_booking_id, contact_id, name, paid, created_at
		FROM group_signups WHERE id = $1`
	var s models.Signup
	err := db.QueryRow(ctx, q, signupID).Scan(&s.ID, &s.GroupBookingID, &s.ContactID, &s.Name, &s.Paid, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanGroup(row pgx.Row) (*models.GroupBooking, error) {
	var g models.GroupBooking
	err := row.Scan(&g.ID, &g.Title, &g.StartsAt, &g.Location, &g.MaxPlayers, &g.Price, &g.PaidCount, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
