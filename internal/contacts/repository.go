package contacts

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

const contactColumns = `id, name, COALESCE(second_name, ''), is_customer, last_activity_at, created_at, updated_at`

// Repository handles contact and participant persistence. It is stateless;
// every method runs against the Queryer passed in, so callers can hand it
// either the pool or an open transaction.
type Repository struct{}

// NewRepository creates a contacts repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Insert creates a contact.
func (r *Repository) Insert(ctx context.Context, db database.Queryer, c *models.Contact) error {
	const q = `INSERT INTO contacts (name, second_name, is_customer)
		VALUES ($1, NULLIF($2, ''), $3)
		RETURNING id, last_activity_at, created_at, updated_at`
	return db.QueryRow(ctx, q, c.Name, c.SecondName, c.IsCustomer).
		Scan(&c.ID, &c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt)
}

// Get returns a contact by ID.
func (r *Repository) Get(ctx context.Context, db database.Queryer, id int64) (*models.Contact, error) {
	row := db.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	return scanContact(row)
}

// Exists reports whether a contact row exists.
func (r *Repository) Exists(ctx context.Context, db database.Queryer, id int64) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contacts WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// Update patches a contact's display names.
func (r *Repository) Update(ctx context.Context, db database.Queryer, c *models.Contact) error {
	const q = `UPDATE contacts SET name = $2, second_name = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return db.QueryRow(ctx, q, c.ID, c.Name, c.SecondName).Scan(&c.UpdatedAt)
}

// List returns contacts ordered by most recent activity. When
// customersOnly is set, prospects are filtered out.
func (r *Repository) List(ctx context.Context, db database.Queryer, customersOnly bool) ([]models.Contact, error) {
	q := `SELECT ` + contactColumns + ` FROM contacts`
	if customersOnly {
		q += ` WHERE is_customer`
	}
	q += ` ORDER BY last_activity_at DESC`
	rows, err := db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.SecondName, &c.IsCustomer, &c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// MarkCustomer promotes a contact from prospect to customer. Idempotent;
// a contact never moves back.
func (r *Repository) MarkCustomer(ctx context.Context, db database.Queryer, id int64) error {
	const q = `UPDATE contacts SET is_customer = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT is_customer`
	_, err := db.Exec(ctx, q, id)
	return err
}

// TouchActivity bumps last_activity_at to now.
func (r *Repository) TouchActivity(ctx context.Context, db database.Queryer, id int64) error {
	const q = `UPDATE contacts SET last_activity_at = NOW(), updated_at = NOW() WHERE id = $1`
	_, err := db.Exec(ctx, q, id)
	return err
}

// AddParticipant attaches a participant to a contact.
func (r *Repository) AddParticipant(ctx context.Context, db database.Queryer, p *models.Participant) error {
	const q = `INSERT INTO participants (contact_id, name) VALUES ($1, $2)
		RETURNING id, created_at`
	return db.QueryRow(ctx, q, p.ContactID, p.Name).Scan(&p.ID, &p.CreatedAt)
}

// ListParticipants returns a contact's participants in insertion order.
func (r *Repository) ListParticipants(ctx context.Context, db database.Queryer, contactID int64) ([]models.Participant, error) {
	const q = `SELECT id, contact_id, name, created_at FROM participants WHERE contact_id = $1 ORDER BY id`
	rows, err := db.Query(ctx, q, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.ContactID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func scanContact(row pgx.Row) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(&c.ID, &c.Name, &c.SecondName, &c.IsCustomer, &c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
