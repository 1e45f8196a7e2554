package bookings

import (
	"github.com/clientdesk/backend/internal/engine"
	"github.com/clientdesk/backend/internal/models"
)

// Event is a lifecycle operation applied to a booking.
type Event string

const (
	EventAccept   Event = "accept"
	EventCancel   Event = "cancel"
	EventNoShow   Event = "no_show"
	EventComplete Event = "complete"
)

// SideEffect is one command run, in order, alongside a transition's status
// write. Keeping the fan-out in a table rather than inline branches makes it
// auditable and testable on its own.
type SideEffect string

const (
	// EffectPurgeBookingReminders deletes the booking's unsent reminders.
	EffectPurgeBookingReminders SideEffect = "purge_booking_reminders"
	// EffectRecordNoShow stamps showed_up = false.
	EffectRecordNoShow SideEffect = "record_no_show"
	// EffectRecordOutcome stamps showed-up, cancelled, paid and payment
	// method together with the status write.
	EffectRecordOutcome SideEffect = "record_outcome"
	// EffectFollowUpFanOut runs the drop-off check: when the contact showed
	// up, was not cancelled, and has no future booking of the same kind,
	// schedule a follow-up (purging stale ones first for recurring).
	EffectFollowUpFanOut SideEffect = "follow_up_fan_out"
)

// Transition is the outcome of applying an event to a state.
type Transition struct {
	Next    models.BookingStatus
	Effects []SideEffect
}

// transitions maps (current state, event) to (next state, ordered effects).
// Completed re-appears as a source of EventComplete only: re-completing is an
// administrative correction that re-records the outcome fields and re-runs
// the fan-out (which purges before scheduling, so the net reminder count
// stays one).
var transitions = map[models.BookingStatus]map[Event]Transition{
	models.StatusScheduled: {
		EventAccept:   {Next: models.StatusAccepted},
		EventCancel:   {Next: models.StatusCancelled, Effects: []SideEffect{EffectPurgeBookingReminders}},
		EventNoShow:   {Next: models.StatusNoShow, Effects: []SideEffect{EffectRecordNoShow}},
		EventComplete: {Next: models.StatusCompleted, Effects: []SideEffect{EffectRecordOutcome, EffectFollowUpFanOut}},
	},
	models.StatusAccepted: {
		EventCancel:   {Next: models.StatusCancelled, Effects: []SideEffect{EffectPurgeBookingReminders}},
		EventNoShow:   {Next: models.StatusNoShow, Effects: []SideEffect{EffectRecordNoShow}},
		EventComplete: {Next: models.StatusCompleted, Effects: []SideEffect{EffectRecordOutcome, EffectFollowUpFanOut}},
	},
	models.StatusCompleted: {
		EventComplete: {Next: models.StatusCompleted, Effects: []SideEffect{EffectRecordOutcome, EffectFollowUpFanOut}},
	},
	models.StatusCancelled: {
		// Re-cancelling is a no-op status-wise but still purges reminders.
		EventCancel: {Next: models.StatusCancelled, Effects: []SideEffect{EffectPurgeBookingReminders}},
	},
}

// Apply resolves the transition for (current, event). Unknown combinations
// are invariant violations: terminal states are sinks for the engine.
func Apply(current models.BookingStatus, ev Event) (Transition, error) {
	if byEvent, ok := transitions[current]; ok {
		if tr, ok := byEvent[ev]; ok {
			return tr, nil
		}
	}
	return Transition{}, engine.Invariantf("cannot %s a booking in status %q", ev, current)
}
