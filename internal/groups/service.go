package groups

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/civiltime"
	"github.com/clientdesk/backend/internal/engine"
	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// Store is the persistence surface the service needs.
type Store interface {
	Insert(ctx context.Context, db database.Queryer, g *models.GroupBooking) error
	Get(ctx context.Context, db database.Queryer, id int64) (*models.GroupBooking, error)
	GetForUpdate(ctx context.Context, db database.Queryer, id int64) (*models.GroupBooking, error)
	CountPaidSignups(ctx context.Context, db database.Queryer, groupID int64) (int, error)
	UpdateCapacity(ctx context.Context, db database.Queryer, id int64, maxPlayers int) error
	ListUpcoming(ctx context.Context, db database.Queryer, from, to time.Time) ([]models.GroupBooking, error)
	InsertSignup(ctx context.Context, db database.Queryer, s *models.Signup) error
	ListSignups(ctx context.Context, db database.Queryer, groupID int64) ([]models.Signup, error)
	SetSignupPaid(ctx context.Context, db database.Queryer, signupID int64, paid bool) error
	GetSignup(ctx context.Context, db database.Queryer, signupID int64) (*models.Signup, error)
}

// DB is the pool surface the service needs.
type DB interface {
	database.Queryer
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service owns group bookings and capacity-gated admission.
type Service struct {
	db     DB
	store  Store
	cal    civiltime.Calendar
	logger *zap.Logger
}

// NewService creates the groups service.
func NewService(db DB, store Store, cal civiltime.Calendar, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, store: store, cal: cal, logger: logger}
}

// CreateInput is a new group booking request. StartsLocal is civil
// wall-clock input.
type CreateInput struct {
	Title       string
	StartsLocal string
	Location    string
	MaxPlayers  int
	Price       *float64
}

// Create validates and persists a group booking.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.GroupBooking, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, engine.Validationf("group title is required")
	}
	if in.MaxPlayers <= 0 {
		return nil, engine.Validationf("max players must be positive")
	}
	if in.Price != nil && (math.IsNaN(*in.Price) || math.IsInf(*in.Price, 0) || *in.Price < 0) {
		return nil, engine.Validationf("price must be a non-negative finite number")
	}
	startsAt, err := s.cal.ParseLocal(in.StartsLocal)
	if err != nil {
		return nil, engine.Validationf("start time: %v", err)
	}
	g := &models.GroupBooking{
		Title:      title,
		StartsAt:   startsAt,
		Location:   strings.TrimSpace(in.Location),
		MaxPlayers: in.MaxPlayers,
		Price:      in.Price,
	}
	if err := s.store.Insert(ctx, s.db, g); err != nil {
		return nil, err
	}
	s.logger.Info("group booking created",
		zap.Int64("group_id", g.ID),
		zap.Int("max_players", g.MaxPlayers))
	return g, nil
}

// SignupInput is an admission request.
type SignupInput struct {
	ContactID *int64
	Name      string
	Paid      bool
}

// lockGroup takes the group row lock, then reads the paid occupancy as a
// follow-up statement. The count must not ride on the locking statement:
// a locker that blocked keeps that statement's original snapshot and would
// miss the signup committed by the admitter it waited on, letting two
// callers each take the final slot.
func (s *Service) lockGroup(ctx context.Context, db database.Queryer, groupID int64) (*models.GroupBooking, error) {
	g, err := s.store.GetForUpdate(ctx, db, groupID)
	if err != nil {
		return nil, err
	}
	paid, err := s.store.CountPaidSignups(ctx, db, groupID)
	if err != nil {
		return nil, err
	}
	g.PaidCount = paid
	return g, nil
}

// Admit applies the capacity gate: the group row is locked, the paid count
// is read under that lock, and the signup is only inserted if it fits. Two
// concurrent admissions for the final slot serialize on the lock; at most
// one commits. Unpaid signups are never capacity-limited.
func (s *Service) Admit(ctx context.Context, groupID int64, in SignupInput) (*models.Signup, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, engine.Validationf("signup name is required")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	g, err := s.lockGroup(ctx, tx, groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.NotFoundf("group booking %d", groupID)
		}
		return nil, err
	}
	if in.Paid && g.PaidCount >= g.MaxPlayers {
		return nil, engine.Invariantf("group %d is full (%d/%d paid)", groupID, g.PaidCount, g.MaxPlayers)
	}

	signup := &models.Signup{
		GroupBookingID: groupID,
		ContactID:      in.ContactID,
		Name:           name,
		Paid:           in.Paid,
	}
	if err := s.store.InsertSignup(ctx, tx, signup); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("signup admitted",
		zap.Int64("group_id", groupID),
		zap.Int64("signup_id", signup.ID),
		zap.Bool("paid", signup.Paid))
	return signup, nil
}

// SetCapacity changes max_players under the group row lock. Lowering the
// cap below the current paid count is rejected.
func (s *Service) SetCapacity(ctx context.Context, groupID int64, maxPlayers int) (*models.GroupBooking, error) {
	if maxPlayers <= 0 {
		return nil, engine.Validationf("max players must be positive")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	g, err := s.lockGroup(ctx, tx, groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.NotFoundf("group booking %d", groupID)
		}
		return nil, err
	}
	if maxPlayers < g.PaidCount {
		return nil, engine.Invariantf("cannot reduce capacity to %d below %d paid signups", maxPlayers, g.PaidCount)
	}
	if err := s.store.UpdateCapacity(ctx, tx, groupID, maxPlayers); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	g.MaxPlayers = maxPlayers
	return g, nil
}

// MarkSignupPaid flips a signup to paid, re-running the capacity gate under
// the group row lock. Flipping to unpaid always succeeds.
func (s *Service) MarkSignupPaid(ctx context.Context, signupID int64, paid bool) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	signup, err := s.store.GetSignup(ctx, tx, signupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.NotFoundf("signup %d", signupID)
		}
		return err
	}
	if signup.Paid == paid {
		return tx.Commit(ctx)
	}
	if paid {
		g, err := s.lockGroup(ctx, tx, signup.GroupBookingID)
		if err != nil {
			return err
		}
		if g.PaidCount >= g.MaxPlayers {
			return engine.Invariantf("group %d is full (%d/%d paid)", g.ID, g.PaidCount, g.MaxPlayers)
		}
	}
	if err := s.store.SetSignupPaid(ctx, tx, signupID, paid); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get returns a group booking with its signups.
func (s *Service) Get(ctx context.Context, groupID int64) (*models.GroupBooking, []models.Signup, error) {
	g, err := s.store.Get(ctx, s.db, groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, engine.NotFoundf("group booking %d", groupID)
		}
		return nil, nil, err
	}
	signups, err := s.store.ListSignups(ctx, s.db, groupID)
	if err != nil {
		return nil, nil, err
	}
	return g, signups, nil
}

// ListUpcoming returns group bookings starting within the look-ahead window
// from now.
func (s *Service) ListUpcoming(ctx context.Context, now time.Time, lookAheadDays int) ([]models.GroupBooking, error) {
	return s.store.ListUpcoming(ctx, s.db, now, s.cal.FutureBound(now, lookAheadDays))
}
