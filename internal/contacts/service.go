package contacts

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/engine"
	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/database"
)

// Service owns contact and participant lifecycle.
type Service struct {
	db     database.Queryer
	store  *Repository
	logger *zap.Logger
}

// NewService creates the contacts service.
func NewService(db database.Queryer, store *Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, store: store, logger: logger}
}

// CreateInput is a new contact request.
type CreateInput struct {
	Name         string
	SecondName   string
	Participants []string
}

// Create inserts a contact and any initial participants.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Contact, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, engine.Validationf("contact name is required")
	}
	c := &models.Contact{Name: name, SecondName: strings.TrimSpace(in.SecondName)}
	if err := s.store.Insert(ctx, s.db, c); err != nil {
		return nil, err
	}
	for _, pn := range in.Participants {
		pn = strings.TrimSpace(pn)
		if pn == "" {
			continue
		}
		p := &models.Participant{ContactID: c.ID, Name: pn}
		if err := s.store.AddParticipant(ctx, s.db, p); err != nil {
			return nil, err
		}
	}
	s.logger.Info("contact created", zap.Int64("contact_id", c.ID))
	return c, nil
}

// Get returns a contact with its participants.
func (s *Service) Get(ctx context.Context, id int64) (*models.Contact, []models.Participant, error) {
	c, err := s.store.Get(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, engine.NotFoundf("contact %d", id)
		}
		return nil, nil, err
	}
	parts, err := s.store.ListParticipants(ctx, s.db, id)
	if err != nil {
		return nil, nil, err
	}
	return c, parts, nil
}

// Update patches a contact's names.
func (s *Service) Update(ctx context.Context, id int64, name, secondName string) (*models.Contact, error) {
	c, err := s.store.Get(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, engine.NotFoundf("contact %d", id)
		}
		return nil, err
	}
	if n := strings.TrimSpace(name); n != "" {
		c.Name = n
	}
	c.SecondName = strings.TrimSpace(secondName)
	if err := s.store.Update(ctx, s.db, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns contacts, newest activity first.
func (s *Service) List(ctx context.Context, customersOnly bool) ([]models.Contact, error) {
	return s.store.List(ctx, s.db, customersOnly)
}

// AddParticipant attaches a named participant to an existing contact.
func (s *Service) AddParticipant(ctx context.Context, contactID int64, name string) (*models.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, engine.Validationf("participant name is required")
	}
	exists, err := s.store.Exists(ctx, s.db, contactID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, engine.NotFoundf("contact %d", contactID)
	}
	p := &models.Participant{ContactID: contactID, Name: name}
	if err := s.store.AddParticipant(ctx, s.db, p); err != nil {
		return nil, err
	}
	return p, nil
}
