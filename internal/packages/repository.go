package packages

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// sessionsCompletedSubquery derives the completed-session count from booking
// rows at read time. There is deliberately no stored counter to keep in sync.
const sessionsCompletedSubquery = `(
	SELECT COUNT(*) FROM session_bookings b
	WHERE b.package_id = p.id
	  AND NOT b.cancelled AND b.status NOT IN ('cancelled','no_show')
	  AND (COALESCE(b.showed_up, FALSE) OR b.status = 'completed'
	       OR (b.status = 'accepted' AND b.scheduled_at <= NOW()))
)`

// Repository persists packages and their payment event log.
type Repository struct{}

// NewRepository creates a packages repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Insert creates a package row.
func (r *Repository) Insert(ctx context.Context, db database.Queryer, p *models.Package) error {
	const q = `INSERT INTO packages (contact_id, kind, total_sessions, price, amount_received, start_date, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return db.QueryRow(ctx, q, p.ContactID, p.Kind, p.TotalSessions, p.Price, p.AmountReceived, p.StartDate, p.Active).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Get returns a package with its derived sessions-completed count.
func (r *Repository) Get(ctx context.Context, db database.Queryer, id int64) (*models.Package, error) {
	q := `SELECT p.id, p.contact_id, p.kind, p.total_sessions, p.price, p.amount_received,
		p.start_date, p.active, ` + sessionsCompletedSubquery + `, p.created_at, p.updated_at
		FROM packages p WHERE p.id = $1`
	return r.scanOne(db.QueryRow(ctx, q, id))
}

// GetForUpdate locks the package row for the caller's transaction and
// returns it. The derived count is read alongside under the same snapshot.
func (r *Repository) GetForUpdate(ctx context.Context, db database.Queryer, id int64) (*models.Package, error) {
	const lock = `SELECT id, contact_id, kind, total_sessions, price, amount_received, start_date, active, created_at, updated_at
		FROM packages WHERE id = $1 FOR UPDATE`
	var p models.Package
	err := db.QueryRow(ctx, lock, id).Scan(&p.ID, &p.ContactID, &p.Kind, &p.TotalSessions, &p.Price,
		&p.AmountReceived, &p.StartDate, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update writes the mutable fields of a package.
func (r *Repository) Update(ctx context.Context, db database.Queryer, p *models.Package) error {
	const q = `UPDATE packages SET kind = $2, total_sessions = $3, price = $4, amount_received = $5,
		start_date = $6, active = $7, updated_at = NOW() WHERE id = $1
		RETURNING updated_at`
	return db.QueryRow(ctx, q, p.ID, p.Kind, p.TotalSessions, p.Price, p.AmountReceived, p.StartDate, p.Active).
		Scan(&p.UpdatedAt)
}

// ListByContact returns a contact's packages, newest first.
func (r *Repository) ListByContact(ctx context.Context, db database.Queryer, contactID int64) ([]models.Package, error) {
	q := `SELECT p.id, p.contact_id, p.kind, p.total_sessions, p.price, p.amount_received,
		p.start_date, p.active, ` + sessionsCompletedSubquery + `, p.created_at, p.updated_at
		FROM packages p WHERE p.contact_id = $1 ORDER BY p.created_at DESC`
	rows, err := db.Query(ctx, q, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Package
	for rows.Next() {
		p, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// InsertPaymentEvent appends one row to the package's payment log. The log
// is append-only: there is no update or delete.
func (r *Repository) InsertPaymentEvent(ctx context.Context, db database.Queryer, ev *models.PaymentEvent) error {
	const q = `INSERT INTO payment_events (package_id, amount, note, created_at)
		VALUES ($1, $2, NULLIF($3,''), $4)
		RETURNING id`
	return db.QueryRow(ctx, q, ev.PackageID, ev.Amount, ev.Note, ev.CreatedAt).Scan(&ev.ID)
}

// ListPaymentEvents returns a package's payment log in append order.
func (r *Repository) ListPaymentEvents(ctx context.Context, db database.Queryer, packageID int64) ([]models.PaymentEvent, error) {
	const q = `SELECT id, package_id, amount, COALESCE(note,''), created_at
		FROM payment_events WHERE package_id = $1 ORDER BY created_at, id`
	rows, err := db.Query(ctx, q, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PaymentEvent
	for rows.Next() {
		var ev models.PaymentEvent
		if err := rows.Scan(&ev.ID, &ev.PackageID, &ev.Amount, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, ev)
	}
	return list, rows.Err()
}

func (r *Repository) scanOne(row pgx.Row) (*models.Package, error) {
	var p models.Package
	err := row.Scan(&p.ID, &p.ContactID, &p.Kind, &p.TotalSessions, &p.Price, &p.AmountReceived,
		&p.StartDate, &p.Active, &p.SessionsCompleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
