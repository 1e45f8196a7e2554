// Package packages manages prepaid session bundles and keeps the payment
// invariant: amount received never exceeds the agreed price.
package packages

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/civiltime"
	"github.com/clientdesk/backend/internal/engine"
	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// Store is the package persistence surface.
type Store interface {
	Insert(ctx context.Context, db database.Queryer, p *models.Package) error
	Get(ctx context.Context, db database.Queryer, id int64) (*models.Package, error)
	GetForUpdate(ctx context.Context, db database.Queryer, id int64) (*models.Package, error)
	Update(ctx context.Context, db database.Queryer, p *models.Package) error
	ListByContact(ctx context.Context, db database.Queryer, contactID int64) ([]models.Package, error)
	InsertPaymentEvent(ctx context.Context, db database.Queryer, ev *models.PaymentEvent) error
	ListPaymentEvents(ctx context.Context, db database.Queryer, packageID int64) ([]models.PaymentEvent, error)
}

// ContactStore is the slice of contact persistence payments touch.
type ContactStore interface {
	Exists(ctx context.Context, db database.Queryer, id int64) (bool, error)
	TouchActivity(ctx context.Context, db database.Queryer, id int64) error
}

// DB is the connection surface: run statements directly or open a transaction.
type DB interface {
	database.Queryer
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service owns package lifecycle and payment reconciliation.
type Service struct {
	db       DB
	store    Store
	contacts ContactStore
	cal      civiltime.Calendar
	logger   *zap.Logger
}

// NewService creates the packages service.
func NewService(db DB, store Store, contacts ContactStore, cal civiltime.Calendar, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, store: store, contacts: contacts, cal: cal, logger: logger}
}

// CreateInput is a new package request. StartLocal is an optional local
// date; empty means the package starts unanchored.
type CreateInput struct {
	ContactID             int64
	Kind                  models.PackageKind
	Price                 *float64
	StartLocal            string
	InitialAmountReceived float64
}

// Create validates and persists a package. A non-zero initial amount
// received produces exactly one synthetic payment event stamped with the
// package's creation time.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Package, error) {
	if in.ContactID <= 0 {
		return nil, engine.Validationf("contact id is required")
	}
	total, ok := models.PackageKindSessions[in.Kind]
	if !ok {
		return nil, engine.Validationf("unknown package kind %q", in.Kind)
	}
	var startDate *time.Time
	if in.StartLocal != "" {
		t, err := s.cal.ParseLocal(in.StartLocal)
		if err != nil {
			return nil, engine.Validationf("start date: %v", err)
		}
		startDate = &t
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	exists, err := s.contacts.Exists(ctx, tx, in.ContactID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, engine.NotFoundf("contact %d", in.ContactID)
	}

	p := &models.Package{
		ContactID:      in.ContactID,
		Kind:           in.Kind,
		TotalSessions:  total,
		Price:          in.Price,
		AmountReceived: in.InitialAmountReceived,
		StartDate:      startDate,
		Active:         true,
	}
	if err := s.CreateInTx(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := s.contacts.TouchActivity(ctx, tx, in.ContactID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("package created",
		zap.Int64("package_id", p.ID),
		zap.Int64("contact_id", p.ContactID),
		zap.String("kind", string(p.Kind)))
	return p, nil
}

// CreateInTx inserts a package, checking the payment invariant and writing
// the synthetic initial payment event, inside the caller's transaction.
func (s *Service) CreateInTx(ctx context.Context, db database.Queryer, p *models.Package) error {
	if err := ValidatePayment(p.Price, p.AmountReceived); err != nil {
		return err
	}
	if err := s.store.Insert(ctx, db, p); err != nil {
		return err
	}
	if p.AmountReceived != 0 {
		ev := &models.PaymentEvent{
			PackageID: p.ID,
			Amount:    p.AmountReceived,
			Note:      models.InitialPaymentNote,
			CreatedAt: p.CreatedAt,
		}
		if err := s.store.InsertPaymentEvent(ctx, db, ev); err != nil {
			return err
		}
	}
	return nil
}

// UpdateInput is a partial package patch; nil fields are left unchanged.
type UpdateInput struct {
	Kind           *models.PackageKind
	Price          *float64
	ClearPrice     bool
	AmountReceived *float64
	StartLocal     *string
	Active         *bool
}

// Update patches a package under a row lock so two concurrent patches cannot
// both pass the payment check and then both write. Changes to the amount
// received are NOT logged as payment events here; incremental event logging
// is the caller's responsibility and the asymmetry with creation is
// intentional.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*models.Package, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p, err := s.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.NotFoundf("package %d", id)
		}
		return nil, err
	}

	if in.Kind != nil {
		total, ok := models.PackageKindSessions[*in.Kind]
		if !ok {
			return nil, engine.Validationf("unknown package kind %q", *in.Kind)
		}
		p.Kind = *in.Kind
		p.TotalSessions = total
	}
	if in.ClearPrice {
		p.Price = nil
	} else if in.Price != nil {
		p.Price = in.Price
	}
	if in.AmountReceived != nil {
		p.AmountReceived = *in.AmountReceived
	}
	if in.StartLocal != nil {
		if *in.StartLocal == "" {
			p.StartDate = nil
		} else {
			t, err := s.cal.ParseLocal(*in.StartLocal)
			if err != nil {
				return nil, engine.Validationf("start date: %v", err)
			}
			p.StartDate = &t
		}
	}
	if in.Active != nil {
		p.Active = *in.Active
	}

	if err := ValidatePayment(p.Price, p.AmountReceived); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := s.contacts.TouchActivity(ctx, tx, p.ContactID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a package with its derived sessions-completed count.
func (s *Service) Get(ctx context.Context, id int64) (*models.Package, error) {
	p, err := s.store.Get(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.NotFoundf("package %d", id)
		}
		return nil, err
	}
	return p, nil
}

// ListByContact returns a contact's packages.
func (s *Service) ListByContact(ctx context.Context, contactID int64) ([]models.Package, error) {
	return s.store.ListByContact(ctx, s.db, contactID)
}

// LogPayment appends an advisory payment event to a package's log. It does
// not touch the authoritative amount received; callers adjust that through
// Update.
func (s *Service) LogPayment(ctx context.Context, packageID int64, amount float64, note string) (*models.PaymentEvent, error) {
	// Negative amounts are allowed: corrections are logged as reversals,
	// never by editing earlier rows.
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, engine.Validationf("amount must be a finite number")
	}
	if _, err := s.Get(ctx, packageID); err != nil {
		return nil, err
	}
	ev := &models.PaymentEvent{
		PackageID: packageID,
		Amount:    amount,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertPaymentEvent(ctx, s.db, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ListPayments returns a package's payment log.
func (s *Service) ListPayments(ctx context.Context, packageID int64) ([]models.PaymentEvent, error) {
	if _, err := s.Get(ctx, packageID); err != nil {
		return nil, err
	}
	return s.store.ListPaymentEvents(ctx, s.db, packageID)
}
