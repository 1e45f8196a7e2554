package models

import "time"

// BookingVariant distinguishes the two persisted booking entities.
type BookingVariant string

const (
	// VariantTrial is a one-off first session for a prospective customer.
	VariantTrial BookingVariant = "trial"
	// VariantRecurring is a regular coaching session, usually linked to a package.
	VariantRecurring BookingVariant = "recurring"
)

// Valid reports whether v is a known variant.
func (v BookingVariant) Valid() bool {
	return v == VariantTrial || v == VariantRecurring
}

// BookingStatus is the lifecycle state shared by both booking variants.
type BookingStatus string

const (
	StatusScheduled BookingStatus = "scheduled"
	StatusAccepted  BookingStatus = "accepted"
	StatusCompleted BookingStatus = "completed"
	StatusNoShow    BookingStatus = "no_show"
	StatusCancelled BookingStatus = "cancelled"
)

// Terminal reports whether the status is a sink state: no further automated
// transition occurs, only administrative field correction.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusNoShow || s == StatusCancelled
}

// BookingRef identifies the booking that owns a set of reminders.
type BookingRef struct {
	Variant BookingVariant `json:"variant"`
	ID      int64          `json:"id"`
}

// Booking is a trial or recurring session. ScheduledAt is nullable because
// imported trial requests can exist before a slot is agreed; the engine
// requires it on creation.
type Booking struct {
	ID             int64          `json:"id"`
	Variant        BookingVariant `json:"variant"`
	ContactID      int64          `json:"contact_id"`
	PackageID      *int64         `json:"package_id,omitempty"` // recurring only
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"`
	EndsAt         *time.Time     `json:"ends_at,omitempty"`
	Location       string         `json:"location,omitempty"`
	Price          *float64       `json:"price,omitempty"`
	Status         BookingStatus  `json:"status"`
	ShowedUp       *bool          `json:"showed_up,omitempty"` // set when completed or no-show
	Cancelled      bool           `json:"cancelled"`
	Paid           bool           `json:"paid"`
	PaymentMethod  string         `json:"payment_method,omitempty"`
	ParticipantIDs []int64        `json:"participant_ids,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Ref returns the reminder back-reference for this booking.
func (b *Booking) Ref() BookingRef {
	return BookingRef{Variant: b.Variant, ID: b.ID}
}
