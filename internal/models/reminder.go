package models

import "time"

// ReminderCategory enumerates the reminder kinds the scheduler produces.
type ReminderCategory string

const (
	// CategoryPreSession is a time-before-event reminder at a fixed lead time.
	CategoryPreSession ReminderCategory = "pre_session"
	// CategoryPostSessionFollowUp flags a contact who attended a recurring
	// session and has not rebooked.
	CategoryPostSessionFollowUp ReminderCategory = "post_session_follow_up"
	// CategoryPostFirstSessionFollowUp flags a contact who attended their
	// trial and has not rebooked.
	CategoryPostFirstSessionFollowUp ReminderCategory = "post_first_session_follow_up"
)

// FollowUpCategories are the drop-off categories purged when a contact books again.
var FollowUpCategories = []ReminderCategory{
	CategoryPostSessionFollowUp,
	CategoryPostFirstSessionFollowUp,
}

// Reminder is a scheduled notification record. The engine only creates,
// deletes and marks these; actual delivery belongs to the dispatch worker's
// consumer side.
type Reminder struct {
	ID               int64            `json:"id"`
	ContactID        int64            `json:"contact_id"`
	DueAt            time.Time        `json:"due_at"`
	Sent             bool             `json:"sent"`
	SentAt           *time.Time       `json:"sent_at,omitempty"`
	Category         ReminderCategory `json:"category"`
	TrialBookingID   *int64           `json:"trial_booking_id,omitempty"`
	SessionBookingID *int64           `json:"session_booking_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// SetRef stamps the booking back-reference for the given variant.
func (r *Reminder) SetRef(ref BookingRef) {
	id := ref.ID
	switch ref.Variant {
	case VariantTrial:
		r.TrialBookingID = &id
	case VariantRecurring:
		r.SessionBookingID = &id
	}
}
