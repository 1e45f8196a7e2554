package models

import "time"

// GroupBooking is a capacity-limited group event.
type GroupBooking struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	StartsAt   time.Time `json:"starts_at"`
	Location   string    `json:"location,omitempty"`
	MaxPlayers int       `json:"max_players"`
	Price      *float64  `json:"price,omitempty"`
	PaidCount  int       `json:"paid_count"` // derived
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Signup is one participant slot in a group booking. Only paid signups count
// against capacity.
type Signup struct {
	ID             int64     `json:"id"`
	GroupBookingID int64     `json:"group_booking_id"`
	ContactID      *int64    `json:"contact_id,omitempty"`
	Name           string    `json:"name"`
	Paid           bool      `json:"paid"`
	CreatedAt      time.Time `json:"created_at"`
}
