package reminders

import (
	"time"

	"github.com/clientdesk/backend/internal/models"
)

// Policy holds the reminder offsets. Planning is a pure computation from the
// anchor instant: reminders whose due time is already past are still planned,
// the dispatch worker decides what to do with stale ones.
type Policy struct {
	PreSessionLeads []time.Duration // before the anchor, e.g. 48h, 24h, 6h
	FollowUpDelay   time.Duration   // after the anchor
}

// PlanSessionReminders computes one pre-session reminder per configured lead
// time, each linked to the given booking.
func (p Policy) PlanSessionReminders(contactID int64, anchor time.Time, ref models.BookingRef) []models.Reminder {
	out := make([]models.Reminder, 0, len(p.PreSessionLeads))
	for _, lead := range p.PreSessionLeads {
		r := models.Reminder{
			ContactID: contactID,
			DueAt:     anchor.Add(-lead).UTC(),
			Category:  models.CategoryPreSession,
		}
		r.SetRef(ref)
		out = append(out, r)
	}
	return out
}

// PlanFollowUp computes a single drop-off follow-up at the fixed delay after
// the anchor.
func (p Policy) PlanFollowUp(contactID int64, category models.ReminderCategory, anchor time.Time) models.Reminder {
	return models.Reminder{
		ContactID: contactID,
		DueAt:     anchor.Add(p.FollowUpDelay).UTC(),
		Category:  category,
	}
}
