package groups

import (
	"context"
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

type dbStub struct{ tx *txStub }

func (d *dbStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (d *dbStub) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (d *dbStub) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (d *dbStub) Begin(ctx context.Context) (pgx.Tx, error)                     { return d.tx, nil }

// storeStub models the admission-relevant state: the group row and its paid
// occupancy. InsertSignup bumps the paid count the way a committed insert
// would, so sequential admissions see each other. GetForUpdate reports
// rowPaidCount, the occupancy the locking statement's own snapshot would
// show, while CountPaidSignups reports the live count.
type storeStub struct {
	group        *models.GroupBooking
	rowPaidCount int
	signup       *models.Signup
	signups      []models.Signup
	maxSet       *int
	paidSet      *bool
}

func (s *storeStub) Insert(ctx context.Context, db database.Queryer, g *models.GroupBooking) error {
	g.ID = 1
	cp := *g
	s.group = &cp
	return nil
}

func (s *storeStub) Get(ctx context.Context, db database.Queryer, id int64) (*models.GroupBooking, error) {
	if s.group == nil || s.group.ID != id {
		return nil, pgx.ErrNoRows
	}
	cp := *s.group
	return &cp, nil
}

func (s *storeStub) GetForUpdate(ctx context.Context, db database.Queryer, id int64) (*models.GroupBooking, error) {
	g, err := s.Get(ctx, db, id)
	if err != nil {
		return nil, err
	}
	g.PaidCount = s.rowPaidCount
	return g, nil
}

func (s *storeStub) CountPaidSignups(ctx context.Context, db database.Queryer, groupID int64) (int, error) {
	if s.group == nil || s.group.ID != groupID {
		return 0, nil
	}
	return s.group.PaidCount, nil
}

func (s *storeStub) UpdateCapacity(ctx context.Context, db database.Queryer, id int64, maxPlayers int) error {
	s.maxSet = &maxPlayers
	s.group.MaxPlayers = maxPlayers
	return nil
}

func (s *storeStub) ListUpcoming(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.GroupBooking, error) {
	return nil, nil
}

func (s *storeStub) InsertSignup(ctx context.Context, db database.Queryer, sg *models.Signup) error {
	sg.ID = int64(len(s.signups) + 1)
	s.signups = append(s.signups, *sg)
	if sg.Paid {
		s.group.PaidCount++
	}
	return nil
}

func (s *storeStub) ListSignups(ctx context.Context, db database.Queryer, groupID int64) ([]models.Signup, error) {
	return s.signups, nil
}

func (s *storeStub) SetSignupPaid(ctx context.Context, db database.Queryer, signupID int64, paid bool) error {
	s.paidSet = &paid
	return nil
}

func (s *storeStub) GetSignup(ctx context.Context, db database.Queryer, signupID int64) (*models.Signup, error) {
	if s.signup == nil || s.signup.ID != signupID {
		return nil, pgx.ErrNoRows
	}
	cp := *s.signup
	return &cp, nil
}

func newService(store *storeStub) (*Service, *txStub) {
	tx := &txStub{}
	return NewService(&dbStub{tx: tx}, store, civiltime.New(-420, time.Monday), nil), tx
}

func groupWith(max, paid int) *models.GroupBooking {
	return &models.GroupBooking{
		ID:         1,
		Title:      "saturday doubles",
		StartsAt:   time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC),
		MaxPlayers: max,
		PaidCount:  paid,
	}
}

func TestAdmitPaidIntoOpenSlot(t *testing.T) {
	store := &storeStub{group: groupWith(4, 3)}
	svc, tx := newService(store)

	sg, err := svc.Admit(context.Background(), 1, SignupInput{Name: "Ana", Paid: true})
	if err != nil {
		t.Fatal(err)
	}
	if !sg.Paid || sg.ID == 0 {
		t.Errorf("signup %+v", sg)
	}
	if !tx.committed {
		t.Error("transaction not committed")
	}
}

func TestAdmitPaidIntoFullGroupFails(t *testing.T) {
	store := &storeStub{group: groupWith(4, 4)}
	svc, tx := newService(store)

	_, err := svc.Admit(context.Background(), 1, SignupInput{Name: "Ben", Paid: true})
	if !engine.IsInvariant(err) {
		t.Fatalf("got %v, want invariant violation", err)
	}
	if len(store.signups) != 0 {
		t.Error("no signup row may be created on a full group")
	}
	if tx.committed {
		t.Error("transaction must not commit")
	}
}

func TestAdmitFinalSlotExactlyOnce(t *testing.T) {
	// Two back-to-back admissions for one remaining slot: the second runs
	// after the first's insert is visible (the row lock serializes them)
	// and must fail.
	store := &storeStub{group: groupWith(4, 3)}
	svc, _ := newService(store)

	if _, err := svc.Admit(context.Background(), 1, SignupInput{Name: "first", Paid: true}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Admit(context.Background(), 1, SignupInput{Name: "second", Paid: true})
	if !engine.IsInvariant(err) {
		t.Fatalf("got %v, want invariant violation for the loser", err)
	}
	if len(store.signups) != 1 {
		t.Errorf("signups %d, want exactly 1", len(store.signups))
	}
}

func TestAdmitSeesSignupCommittedWhileWaitingForLock(t *testing.T) {
	// A rival took the final slot while this caller was blocked on the row
	// lock. The locking statement's snapshot still shows one slot free, but
	// the follow-up count query sees the committed signup, so the gate must
	// reject and must not insert.
	store := &storeStub{group: groupWith(4, 4), rowPaidCount: 3}
	svc, tx := newService(store)

	_, err := svc.Admit(context.Background(), 1, SignupInput{Name: "late", Paid: true})
	if !engine.IsInvariant(err) {
		t.Fatalf("got %v, want invariant violation", err)
	}
	if len(store.signups) != 0 {
		t.Errorf("signups %d, the full group must admit nobody", len(store.signups))
	}
	if tx.committed {
		t.Error("transaction must not commit")
	}
}

func TestMarkSignupPaidSeesCommitFromLockWaiter(t *testing.T) {
	// Same stale-snapshot shape on the unpaid to paid flip: the live count
	// fills the group even though the locking statement's view does not.
	store := &storeStub{
		group:        groupWith(2, 2),
		rowPaidCount: 1,
		signup:       &models.Signup{ID: 7, GroupBookingID: 1, Name: "waitlist", Paid: false},
	}
	svc, _ := newService(store)

	err := svc.MarkSignupPaid(context.Background(), 7, true)
	if !engine.IsInvariant(err) {
		t.Fatalf("got %v, want invariant violation", err)
	}
	if store.paidSet != nil {
		t.Error("paid flag must not be written")
	}
}

func TestAdmitUnpaidNeverCapacityLimited(t *testing.T) {
	store := &storeStub{group: groupWith(2, 2)}
	svc, _ := newService(store)

	for i := 0; i < 3; i++ {
		if _, err := svc.Admit(context.Background(), 1, SignupInput{Name: "waitlist", Paid: false}); err != nil {
			t.Fatalf("unpaid signup %d rejected: %v", i, err)
		}
	}
	if store.group.PaidCount != 2 {
		t.Errorf("paid count %d changed by unpaid signups", store.group.PaidCount)
	}
}

func TestAdmitUnknownGroup(t *testing.T) {
	svc, _ := newService(&storeStub{})
	_, err := svc.Admit(context.Background(), 9, SignupInput{Name: "Ana", Paid: true})
	if !engine.IsNotFound(err) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestAdmitBlankName(t *testing.T) {
	svc, _ := newService(&storeStub{group: groupWith(4, 0)})
	_, err := svc.Admit(context.Background(), 1, SignupInput{Name: "   ", Paid: false})
	if !engine.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestSetCapacityBelowPaidCountFails(t *testing.T) {
	store := &storeStub{group: groupWith(6, 5)}
	svc, tx := newService(store)

	_, err := svc.SetCapacity(context.Background(), 1, 4)
	if !engine.IsInvariant(err) {
		t.Fatalf("got %v, want invariant violation", err)
	}
	if store.maxSet != nil {
		t.Error("capacity must not be written")
	}
	if tx.committed {
		t.Error("transaction must not commit")
	}
}

func TestSetCapacityDownToPaidCountAllowed(t *testing.T) {
	store := &storeStub{group: groupWith(6, 5)}
	svc, _ := newService(store)

	g, err := svc.SetCapacity(context.Background(), 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if g.MaxPlayers != 5 {
		t.Errorf("max players %d", g.MaxPlayers)
	}
}

func TestMarkSignupPaidRechecksCapacity(t *testing.T) {
	store := &storeStub{
		group:  groupWith(2, 2),
		signup: &models.Signup{ID: 3, GroupBookingID: 1, Name: "waitlist", Paid: false},
	}
	svc, _ := newService(store)

	err := svc.MarkSignupPaid(context.Background(), 3, true)
	if !engine.IsInvariant(err) {
		t.Fatalf("got %v, want invariant violation", err)
	}
	if store.paidSet != nil {
		t.Error("paid flag must not be written")
	}
}

func TestMarkSignupUnpaidAlwaysAllowed(t *testing.T) {
	store := &storeStub{
		group:  groupWith(2, 2),
		signup: &models.Signup{ID: 3, GroupBookingID: 1, Name: "Ana", Paid: true},
	}
	svc, tx := newService(store)

	if err := svc.MarkSignupPaid(context.Background(), 3, false); err != nil {
		t.Fatal(err)
	}
	if store.paidSet == nil || *store.paidSet {
		t.Error("paid flag not cleared")
	}
	if !tx.committed {
		t.Error("transaction not committed")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(&storeStub{})

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"blank title", CreateInput{Title: " ", StartsLocal: "2026-03-14T10:00", MaxPlayers: 4}},
		{"zero capacity", CreateInput{Title: "doubles", StartsLocal: "2026-03-14T10:00", MaxPlayers: 0}},
		{"bad time", CreateInput{Title: "doubles", StartsLocal: "saturday-ish", MaxPlayers: 4}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(context.Background(), tc.in); !engine.IsValidation(err) {
			t.Errorf("%s: got %v, want validation error", tc.name, err)
		}
	}
}

func TestCreateConvertsLocalStart(t *testing.T) {
	store := &storeStub{}
	svc, _ := newService(store)

	g, err := svc.Create(context.Background(), CreateInput{
		Title:       "saturday doubles",
		StartsLocal: "2026-03-14T10:00",
		MaxPlayers:  8,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC)
	if !g.StartsAt.Equal(want) {
		t.Errorf("starts at %v, want %v", g.StartsAt, want)
	}
}
