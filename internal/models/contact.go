package models

import "time"

// Contact is the guardian/payer entity owning participants and bookings.
// Contacts are never hard-deleted by the engine.
type Contact struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	SecondName     string    `json:"second_name,omitempty"` // optional joint display name
	IsCustomer     bool      `json:"is_customer"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Participant is a person attending sessions, owned by a contact.
type Participant struct {
	ID        int64     `json:"id"`
	ContactID int64     `json:"contact_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
