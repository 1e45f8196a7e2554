package bookings

import (
	"context"
	"math"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/engine"
	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// PackageCreator creates a package inside the caller's transaction, with the
// payment invariant checked and the synthetic initial payment event written.
type PackageCreator interface {
	CreateInTx(ctx context.Context, db database.Queryer, p *models.Package) error
}

// SetPackageCreator wires the package component in. Quick-add is unavailable
// until it is set.
func (s *Service) SetPackageCreator(pc PackageCreator) { s.packages = pc }

// QuickAddInput creates a package and its full run of weekly recurring
// sessions in one shot. StartLocal is the first session's local wall-clock
// time; subsequent sessions repeat weekly at the same time.
type QuickAddInput struct {
	ContactID             int64
	Kind                  models.PackageKind
	Price                 *float64
	InitialAmountReceived float64
	StartLocal            string
	Location              string
	ParticipantIDs        []int64
}

func (in QuickAddInput) validate() error {
	if in.ContactID <= 0 {
		return engine.Validationf("contact id is required")
	}
	if _, ok := models.PackageKindSessions[in.Kind]; !ok {
		return engine.Validationf("unknown package kind %q", in.Kind)
	}
	if in.StartLocal == "" {
		return engine.Validationf("start time is required")
	}
	if in.Price != nil && (math.IsNaN(*in.Price) || math.IsInf(*in.Price, 0)) {
		return engine.Validationf("price must be a finite number")
	}
	return nil
}

// QuickAdd expands a weekly recurrence from the start time into one session
// booking per package credit, creates the package and all bookings with
// their reminders in a single transaction, and fails the whole batch on any
// error.
func (s *Service) QuickAdd(ctx context.Context, in QuickAddInput) (*models.Package, []models.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}
	if s.packages == nil {
		return nil, nil, engine.Validationf("package creation is not configured")
	}

	start, err := s.cal.ParseLocal(in.StartLocal)
	if err != nil {
		return nil, nil, engine.Validationf("start time: %v", err)
	}
	total := models.PackageKindSessions[in.Kind]

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Count:   total,
		Dtstart: start.In(s.cal.Location()),
	})
	if err != nil {
		return nil, nil, engine.Validationf("recurrence: %v", err)
	}
	occurrences := rule.All()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.contacts.Exists(ctx, tx, in.ContactID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, engine.NotFoundf("contact %d", in.ContactID)
	}

	startDate := start
	pkg := &models.Package{
		ContactID:      in.ContactID,
		Kind:           in.Kind,
		TotalSessions:  total,
		Price:          in.Price,
		AmountReceived: in.InitialAmountReceived,
		StartDate:      &startDate,
		Active:         true,
	}
	if err := s.packages.CreateInTx(ctx, tx, pkg); err != nil {
		return nil, nil, err
	}

	if err := s.scheduler.CancelFollowUps(ctx, tx, in.ContactID, models.FollowUpCategories...); err != nil {
		return nil, nil, err
	}

	bookings := make([]models.Booking, 0, len(occurrences))
	for _, occ := range occurrences {
		scheduledAt := occ.UTC()
		b := models.Booking{
			ContactID:   in.ContactID,
			PackageID:   &pkg.ID,
			ScheduledAt: &scheduledAt,
			Location:    in.Location,
		}
		if err := s.store.CreateSession(ctx, tx, &b); err != nil {
			return nil, nil, err
		}
		if len(in.ParticipantIDs) > 0 {
			if err := s.store.AddParticipants(ctx, tx, b.Ref(), in.ParticipantIDs); err != nil {
				return nil, nil, err
			}
			b.ParticipantIDs = in.ParticipantIDs
		}
		if err := s.scheduler.ScheduleSessionReminders(ctx, tx, in.ContactID, scheduledAt, b.Ref()); err != nil {
			return nil, nil, err
		}
		bookings = append(bookings, b)
	}

	if err := s.contacts.TouchActivity(ctx, tx, in.ContactID); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	s.logger.Info("quick-add batch created",
		zap.Int64("contact_id", in.ContactID),
		zap.String("kind", string(in.Kind)),
		zap.Int64("package_id", pkg.ID),
		zap.Int("sessions", len(bookings)))
	return pkg, bookings, nil
}
