package packages

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

type storeStub struct {
	pkg     *models.Package
	nextID  int64
	updated *models.Package
	events  []models.PaymentEvent
}

func (s *storeStub) Insert(ctx context.Context, db database.Queryer, p *models.Package) error {
	s.nextID++
	p.ID = s.nextID
	p.CreatedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p.UpdatedAt = p.CreatedAt
	return nil
}

func (s *storeStub) Get(ctx context.Context, db database.Queryer, id int64) (*models.Package, error) {
	if s.pkg == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *s.pkg
	return &cp, nil
}

func (s *storeStub) GetForUpdate(ctx context.Context, db database.Queryer, id int64) (*models.Package, error) {
	return s.Get(ctx, db, id)
}

func (s *storeStub) Update(ctx context.Context, db database.Queryer, p *models.Package) error {
	cp := *p
	s.updated = &cp
	return nil
}

func (s *storeStub) ListByContact(ctx context.Context, db database.Queryer, contactID int64) ([]models.Package, error) {
	return nil, nil
}

func (s *storeStub) InsertPaymentEvent(ctx context.Context, db database.Queryer, ev *models.PaymentEvent) error {
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, *ev)
	return nil
}

func (s *storeStub) ListPaymentEvents(ctx context.Context, db database.Queryer, packageID int64) ([]models.PaymentEvent, error) {
	return s.events, nil
}

type contactsStub struct{ exists bool }

func (c *contactsStub) Exists(ctx context.Context, db database.Queryer, id int64) (bool, error) {
	return c.exists, nil
}
func (c *contactsStub) TouchActivity(ctx context.Context, db database.Queryer, id int64) error {
	return nil
}

func newService(store *storeStub, contacts *contactsStub) (*Service, *txStub) {
	tx := &txStub{}
	cal := civiltime.New(-420, time.Monday)
	return NewService(&dbStub{tx: tx}, store, contacts, cal, nil), tx
}

func TestCreateWithInitialPaymentLogsOneSyntheticEvent(t *testing.T) {
	store := &storeStub{}
	svc, tx := newService(store, &contactsStub{exists: true})

	p, err := svc.Create(context.Background(), CreateInput{
		ContactID:             7,
		Kind:                  models.KindStandard10,
		Price:                 fptr(800),
		InitialAmountReceived: 400,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalSessions != 10 {
		t.Errorf("total sessions %d", p.TotalSessions)
	}
	if len(store.events) != 1 {
		t.Fatalf("payment events %d, want exactly 1", len(store.events))
	}
	ev := store.events[0]
	if ev.Amount != 400 || ev.Note != models.InitialPaymentNote {
		t.Errorf("event %+v", ev)
	}
	if !ev.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("event stamped %v, want package creation time %v", ev.CreatedAt, p.CreatedAt)
	}
	if !tx.committed {
		t.Error("transaction not committed")
	}
}

func TestCreateZeroInitialPaymentLogsNothing(t *testing.T) {
	store := &storeStub{}
	svc, _ := newService(store, &contactsStub{exists: true})

	_, err := svc.Create(context.Background(), CreateInput{ContactID: 7, Kind: models.KindStarter5})
	if err != nil {
		t.Fatal(err)
	}
	if len(store.events) != 0 {
		t.Errorf("payment events %d, want 0", len(store.events))
	}
}

func TestCreateRejectsOverpayment(t *testing.T) {
	store := &storeStub{}
	svc, tx := newService(store, &contactsStub{exists: true})

	_, err := svc.Create(context.Background(), CreateInput{
		ContactID:             7,
		Kind:                  models.KindStarter5,
		Price:                 fptr(100),
		InitialAmountReceived: 150,
	})
	if !engine.IsInvariant(err) {
		t.Fatalf("got %v, want invariant violation", err)
	}
	if tx.committed {
		t.Error("transaction must not commit")
	}
}

func TestCreateUnknownKind(t *testing.T) {
	svc, _ := newService(&storeStub{}, &contactsStub{exists: true})
	_, err := svc.Create(context.Background(), CreateInput{ContactID: 7, Kind: "mega_50"})
	if !engine.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestCreateUnknownContact(t *testing.T) {
	svc, _ := newService(&storeStub{}, &contactsStub{exists: false})
	_, err := svc.Create(context.Background(), CreateInput{ContactID: 99, Kind: models.KindStarter5})
	if !engine.IsNotFound(err) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestUpdateEnforcesInvariantUnderNewPrice(t *testing.T) {
	store := &storeStub{pkg: &models.Package{
		ID: 1, ContactID: 7, Kind: models.KindStandard10, TotalSessions: 10,
		Price: fptr(800), AmountReceived: 400, Active: true,
	}}
	svc, tx := newService(store, &contactsStub{exists: true})

	// Lowering price below the already-received amount must fail.
	_, err := svc.Update(context.Background(), 1, UpdateInput{Price: fptr(300)})
	if !engine.IsInvariant(err) {
		t.Fatalf("got %v, want invariant violation", err)
	}
	if store.updated != nil {
		t.Error("no partial write on invariant violation")
	}
	if tx.committed {
		t.Error("transaction must not commit")
	}
}

func TestUpdateDoesNotAutoLogPaymentEvents(t *testing.T) {
	store := &storeStub{pkg: &models.Package{
		ID: 1, ContactID: 7, Kind: models.KindStandard10, TotalSessions: 10,
		Price: fptr(800), AmountReceived: 400, Active: true,
	}}
	svc, _ := newService(store, &contactsStub{exists: true})

	p, err := svc.Update(context.Background(), 1, UpdateInput{AmountReceived: fptr(600)})
	if err != nil {
		t.Fatal(err)
	}
	if p.AmountReceived != 600 {
		t.Errorf("amount received %v", p.AmountReceived)
	}
	// Incremental payments are logged by the caller, never implicitly here.
	if len(store.events) != 0 {
		t.Errorf("payment events %d, want 0", len(store.events))
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc, _ := newService(&storeStub{}, &contactsStub{exists: true})
	_, err := svc.Update(context.Background(), 42, UpdateInput{Active: func() *bool { b := false; return &b }()})
	if !engine.IsNotFound(err) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestUpdateKindRecomputesTotalSessions(t *testing.T) {
	store := &storeStub{pkg: &models.Package{
		ID: 1, ContactID: 7, Kind: models.KindStarter5, TotalSessions: 5, Active: true,
	}}
	svc, _ := newService(store, &contactsStub{exists: true})

	kind := models.KindIntensive20
	p, err := svc.Update(context.Background(), 1, UpdateInput{Kind: &kind})
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalSessions != 20 {
		t.Errorf("total sessions %d, want 20", p.TotalSessions)
	}
}

func TestLogPaymentAppendsAdvisoryEvent(t *testing.T) {
	store := &storeStub{pkg: &models.Package{ID: 1, ContactID: 7, AmountReceived: 400, Active: true}}
	svc, _ := newService(store, &contactsStub{exists: true})

	ev, err := svc.LogPayment(context.Background(), 1, 200, "cash, second installment")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Amount != 200 {
		t.Errorf("amount %v", ev.Amount)
	}
	// The log never feeds back into the authoritative amount.
	if store.updated != nil {
		t.Error("LogPayment must not touch the package row")
	}
}

func TestLogPaymentAllowsReversal(t *testing.T) {
	store := &storeStub{pkg: &models.Package{ID: 1, ContactID: 7, Active: true}}
	svc, _ := newService(store, &contactsStub{exists: true})

	if _, err := svc.LogPayment(context.Background(), 1, -50, "refund correction"); err != nil {
		t.Fatalf("reversal entry rejected: %v", err)
	}
}
