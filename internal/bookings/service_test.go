package bookings

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clientdesk/backend/internal/civiltime"
	"github.com/clientdesk/backend/internal/engine"
	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

type txStub struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *txStub) Commit(ctx context.Context) error   { t.committed = true; return nil }
func (t *txStub) Rollback(ctx context.Context) error { t.rolledBack = true; return nil }

type dbStub struct {
	tx *txStub
}

func (d *dbStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (d *dbStub) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (d *dbStub) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (d *dbStub) Begin(ctx context.Context) (pgx.Tx, error)                     { return d.tx, nil }

type storeStub struct {
	booking    *models.Booking
	hasFuture  bool
	nextID     int64
	created    []models.Booking
	calls      *[]string
	updateErrs map[string]error
}

func (s *storeStub) record(call string) {
	if s.calls != nil {
		*s.calls = append(*s.calls, call)
	}
}

func (s *storeStub) CreateTrial(ctx context.Context, db database.Queryer, b *models.Booking) error {
	s.nextID++
	b.ID = s.nextID
	b.Status = models.StatusScheduled
	s.created = append(s.created, *b)
	s.record("create_trial")
	return nil
}

func (s *storeStub) CreateSession(ctx context.Context, db database.Queryer, b *models.Booking) error {
	s.nextID++
	b.ID = s.nextID
	b.Status = models.StatusScheduled
	s.created = append(s.created, *b)
	s.record("create_session")
	return nil
}

func (s *storeStub) AddParticipants(ctx context.Context, db database.Queryer, ref models.BookingRef, ids []int64) error {
	return nil
}

func (s *storeStub) Get(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64) (*models.Booking, error) {
	if s.booking == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *s.booking
	return &cp, nil
}

func (s *storeStub) UpdateStatus(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64, status models.BookingStatus) error {
	s.record("update_status:" + string(status))
	return s.updateErrs["update_status"]
}

func (s *storeStub) MarkCancelled(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64) error {
	s.record("mark_cancelled")
	return s.updateErrs["mark_cancelled"]
}

func (s *storeStub) MarkNoShow(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64) error {
	s.record("mark_no_show")
	return s.updateErrs["mark_no_show"]
}

func (s *storeStub) RecordCompletion(ctx context.Context, db database.Queryer, variant models.BookingVariant, id int64, showedUp, cancelled, paid bool, method string) error {
	s.record("record_completion")
	return s.updateErrs["record_completion"]
}

func (s *storeStub) HasFutureBooking(ctx context.Context, db database.Queryer, variant models.BookingVariant, contactID, excludeID int64, after time.Time) (bool, error) {
	s.record("has_future")
	return s.hasFuture, nil
}

func (s *storeStub) ListBetween(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.Booking, error) {
	return nil, nil
}

type schedulerStub struct {
	calls     *[]string
	cancelErr error
}

func (s *schedulerStub) ScheduleSessionReminders(ctx context.Context, db database.Queryer, contactID int64, anchor time.Time, ref models.BookingRef) error {
	*s.calls = append(*s.calls, fmt.Sprintf("schedule_session:%s:%d", ref.Variant, ref.ID))
	return nil
}

func (s *schedulerStub) ScheduleFollowUp(ctx context.Context, db database.Queryer, contactID int64, category models.ReminderCategory, anchor time.Time) error {
	*s.calls = append(*s.calls, "schedule_follow_up:"+string(category))
	return nil
}

func (s *schedulerStub) CancelReminders(ctx context.Context, db database.Queryer, ref models.BookingRef) error {
	*s.calls = append(*s.calls, fmt.Sprintf("cancel_reminders:%s:%d", ref.Variant, ref.ID))
	return s.cancelErr
}

func (s *schedulerStub) CancelFollowUps(ctx context.Context, db database.Queryer, contactID int64, cats ...models.ReminderCategory) error {
	*s.calls = append(*s.calls, fmt.Sprintf("cancel_follow_ups:%d", len(cats)))
	return nil
}

type contactsStub struct {
	exists bool
	calls  *[]string
}

func (c *contactsStub) Exists(ctx context.Context, db database.Queryer, id int64) (bool, error) {
	return c.exists, nil
}

func (c *contactsStub) MarkCustomer(ctx context.Context, db database.Queryer, id int64) error {
	*c.calls = append(*c.calls, "mark_customer")
	return nil
}

func (c *contactsStub) TouchActivity(ctx context.Context, db database.Queryer, id int64) error {
	*c.calls = append(*c.calls, "touch_activity")
	return nil
}

type fixture struct {
	svc      *Service
	store    *storeStub
	sched    *schedulerStub
	contacts *contactsStub
	tx       *txStub
	calls    []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{tx: &txStub{}}
	f.store = &storeStub{calls: &f.calls, updateErrs: map[string]error{}}
	f.sched = &schedulerStub{calls: &f.calls}
	f.contacts = &contactsStub{exists: true, calls: &f.calls}
	cal := civiltime.New(-420, time.Monday)
	f.svc = NewService(&dbStub{tx: f.tx}, f.store, f.sched, f.contacts, cal, nil)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC) }
	return f
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	nan := func() *float64 { v := 0.0; v = v / v; return &v }()
	cases := []CreateInput{
		{Variant: "weekly", ContactID: 1, ScheduledLocal: "2026-03-10T15:00"},
		{Variant: models.VariantTrial, ScheduledLocal: "2026-03-10T15:00"},
		{Variant: models.VariantTrial, ContactID: 1},
		{Variant: models.VariantTrial, ContactID: 1, ScheduledLocal: "bogus"},
		{Variant: models.VariantTrial, ContactID: 1, ScheduledLocal: "2026-03-10T15:00", Price: nan},
		{Variant: models.VariantTrial, ContactID: 1, ScheduledLocal: "2026-03-10T15:00", PackageID: ptr(int64(3))},
	}
	for i, in := range cases {
		if _, err := f.svc.Create(context.Background(), in); !engine.IsValidation(err) {
			t.Errorf("case %d: got %v, want validation error", i, err)
		}
	}
	if len(f.store.created) != 0 {
		t.Error("validation failures must not write")
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateUnknownContact(t *testing.T) {
	f := newFixture(t)
	f.contacts.exists = false

	_, err := f.svc.Create(context.Background(), CreateInput{
		Variant: models.VariantTrial, ContactID: 99, ScheduledLocal: "2026-03-10T15:00",
	})
	if !engine.IsNotFound(err) {
		t.Fatalf("got %v, want not found", err)
	}
	if f.tx.committed {
		t.Error("transaction must not commit")
	}
	if !f.tx.rolledBack {
		t.Error("transaction must roll back")
	}
}

func TestCreateTrialConvertsLocalTimeAndFansOut(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), CreateInput{
		Variant:        models.VariantTrial,
		ContactID:      7,
		ScheduledLocal: "2026-03-10T15:00",
		Location:       "main pool",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	if b.ScheduledAt == nil || !b.ScheduledAt.Equal(want) {
		t.Errorf("scheduled %v, want %v", b.ScheduledAt, want)
	}

	wantCalls := []string{"create_trial", "cancel_follow_ups:2", "schedule_session:trial:1", "mark_customer", "touch_activity"}
	assertCalls(t, f.calls, wantCalls)
	if !f.tx.committed {
		t.Error("transaction not committed")
	}
}

func TestCreateRecurringDoesNotMarkCustomer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateInput{
		Variant:        models.VariantRecurring,
		ContactID:      7,
		PackageID:      ptr(int64(2)),
		ScheduledLocal: "2026-03-12T16:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range f.calls {
		if c == "mark_customer" {
			t.Error("recurring creation must not flip the customer flag")
		}
	}
	// Purge precedes reminder creation so stale and fresh never coexist past
	// the operation.
	assertCalls(t, f.calls, []string{"create_session", "cancel_follow_ups:2", "schedule_session:recurring:1", "touch_activity"})
}

func TestAcceptTrial(t *testing.T) {
	f := newFixture(t)
	f.store.booking = &models.Booking{ID: 4, Variant: models.VariantTrial, ContactID: 7, Status: models.StatusScheduled}

	b, err := f.svc.Accept(context.Background(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.StatusAccepted {
		t.Errorf("status %s", b.Status)
	}
	assertCalls(t, f.calls, []string{"update_status:accepted"})
}

func TestAcceptFromTerminalRejected(t *testing.T) {
	f := newFixture(t)
	f.store.booking = &models.Booking{ID: 4, Variant: models.VariantTrial, Status: models.StatusCompleted}

	if _, err := f.svc.Accept(context.Background(), 4); !engine.IsInvariant(err) {
		t.Fatalf("got %v, want invariant violation", err)
	}
}

func TestCancelPurgesReminders(t *testing.T) {
	f := newFixture(t)
	f.store.booking = &models.Booking{ID: 9, Variant: models.VariantRecurring, ContactID: 7, Status: models.StatusAccepted}

	b, err := f.svc.Cancel(context.Background(), models.VariantRecurring, 9)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.StatusCancelled || !b.Cancelled {
		t.Errorf("status %s cancelled %v", b.Status, b.Cancelled)
	}
	assertCalls(t, f.calls, []string{"mark_cancelled", "touch_activity", "cancel_reminders:recurring:9"})
}

func TestCancelAlreadyCancelledStillPurges(t *testing.T) {
	f := newFixture(t)
	f.store.booking = &models.Booking{ID: 9, Variant: models.VariantTrial, ContactID: 7, Status: models.StatusCancelled, Cancelled: true}

	if _, err := f.svc.Cancel(context.Background(), models.VariantTrial, 9); err != nil {
		t.Fatal(err)
	}
	// No status write, but the purge still runs.
	assertCalls(t, f.calls, []string{"cancel_reminders:trial:9"})
}

func TestCancelSurvivesPurgeFailure(t *testing.T) {
	f := newFixture(t)
	f.store.booking = &models.Booking{ID: 9, Variant: models.VariantTrial, ContactID: 7, Status: models.StatusScheduled}
	f.sched.cancelErr = errors.New("reminder store down")

	b, err := f.svc.Cancel(context.Background(), models.VariantTrial, 9)
	if err != nil {
		t.Fatalf("cancellation must stand when the purge fails: %v", err)
	}
	if b.Status != models.StatusCancelled {
		t.Errorf("status %s", b.Status)
	}
}

func TestCancelNotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Cancel(context.Background(), models.VariantTrial, 404); !engine.IsNotFound(err) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestMarkNoShowNoFollowUp(t *testing.T) {
	f := newFixture(t)
	f.store.booking = &models.Booking{ID: 5, Variant: models.VariantTrial, ContactID: 7, Status: models.StatusScheduled}

	b, err := f.svc.MarkNoShow(context.Background(), models.VariantTrial, 5)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.StatusNoShow {
		t.Errorf("status %s", b.Status)
	}
	if b.ShowedUp == nil || *b.ShowedUp {
		t.Error("showed_up must be recorded false")
	}
	for _, c := range f.calls {
		if c == "schedule_follow_up:post_session_follow_up" || c == "schedule_follow_up:post_first_session_follow_up" {
			t.Error("a no-show is not a drop-off after attendance")
		}
	}
}

func completedAt(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
}

func TestCompleteRecurringSchedulesFollowUpAfterPurge(t *testing.T) {
	f := newFixture(t)
	at := completedAt(t)
	f.store.booking = &models.Booking{ID: 3, Variant: models.VariantRecurring, ContactID: 7, Status: models.StatusScheduled, ScheduledAt: &at}

	b, err := f.svc.Complete(context.Background(), models.VariantRecurring, 3, CompleteInput{ShowedUp: true, Paid: true, PaymentMethod: "card"})
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.StatusCompleted {
		t.Errorf("status %s", b.Status)
	}
	assertCalls(t, f.calls, []string{
		"record_completion",
		"has_future",
		"cancel_follow_ups:1",
		"schedule_follow_up:post_session_follow_up",
		"touch_activity",
	})
	if !f.tx.committed {
		t.Error("transaction not committed")
	}
}

func TestCompleteTrialSchedulesWithoutPurge(t *testing.T) {
	f := newFixture(t)
	at := completedAt(t)
	f.store.booking = &models.Booking{ID: 3, Variant: models.VariantTrial, ContactID: 7, Status: models.StatusAccepted, ScheduledAt: &at}

	_, err := f.svc.Complete(context.Background(), models.VariantTrial, 3, CompleteInput{ShowedUp: true})
	if err != nil {
		t.Fatal(err)
	}
	assertCalls(t, f.calls, []string{
		"record_completion",
		"has_future",
		"schedule_follow_up:post_first_session_follow_up",
		"touch_activity",
	})
}

func TestCompleteWithFutureBookingSkipsFollowUp(t *testing.T) {
	f := newFixture(t)
	at := completedAt(t)
	f.store.booking = &models.Booking{ID: 3, Variant: models.VariantRecurring, ContactID: 7, Status: models.StatusScheduled, ScheduledAt: &at}
	f.store.hasFuture = true

	_, err := f.svc.Complete(context.Background(), models.VariantRecurring, 3, CompleteInput{ShowedUp: true})
	if err != nil {
		t.Fatal(err)
	}
	assertCalls(t, f.calls, []string{"record_completion", "has_future", "touch_activity"})
}

func TestCompleteNoShowUpSkipsFanOut(t *testing.T) {
	f := newFixture(t)
	at := completedAt(t)
	f.store.booking = &models.Booking{ID: 3, Variant: models.VariantRecurring, ContactID: 7, Status: models.StatusScheduled, ScheduledAt: &at}

	_, err := f.svc.Complete(context.Background(), models.VariantRecurring, 3, CompleteInput{ShowedUp: false})
	if err != nil {
		t.Fatal(err)
	}
	assertCalls(t, f.calls, []string{"record_completion", "touch_activity"})
}

func TestCompleteCancelledDuringCompletionSkipsFanOut(t *testing.T) {
	f := newFixture(t)
	at := completedAt(t)
	f.store.booking = &models.Booking{ID: 3, Variant: models.VariantRecurring, ContactID: 7, Status: models.StatusScheduled, ScheduledAt: &at}

	_, err := f.svc.Complete(context.Background(), models.VariantRecurring, 3, CompleteInput{ShowedUp: true, Cancelled: true})
	if err != nil {
		t.Fatal(err)
	}
	assertCalls(t, f.calls, []string{"record_completion", "touch_activity"})
}

func TestCompleteTwiceNetsOneFollowUp(t *testing.T) {
	// Re-completing is an administrative correction: the fan-out purges
	// before scheduling, so the second run replaces rather than duplicates.
	f := newFixture(t)
	at := completedAt(t)
	f.store.booking = &models.Booking{ID: 3, Variant: models.VariantRecurring, ContactID: 7, Status: models.StatusCompleted, ScheduledAt: &at}

	_, err := f.svc.Complete(context.Background(), models.VariantRecurring, 3, CompleteInput{ShowedUp: true})
	if err != nil {
		t.Fatal(err)
	}
	assertCalls(t, f.calls, []string{
		"record_completion",
		"has_future",
		"cancel_follow_ups:1",
		"schedule_follow_up:post_session_follow_up",
		"touch_activity",
	})
}

func assertCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}
