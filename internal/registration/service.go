package registration

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/registration/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/telemetry"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

var tracer = otel.Tracer("github.com/ovaphlow/pitchfork/service-events-go/internal/registration")

// Store is implemented by *repo.RegistrationRepo.
type Store interface {
	Create(ctx context.Context, reg *entity.Registration) error
	Delete(ctx context.Context, userID, eventID string) (int64, error)
	ListByEvent(ctx context.Context, eventID string) ([]*entity.Registration, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Registration, error)
}

// Events confirms an event exists; *event.Service implements it.
type Events interface {
	Exists(ctx context.Context, id string) error
}

// Service enforces one registration per (user, event). A second register
// call for the same pair is reported as a conflict, never ignored.
type Service struct {
	store  Store
	users  user.Directory
	events Events
	ids    *utilities.IDGenerator
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(store Store, users user.Directory, events Events, ids *utilities.IDGenerator, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		store:  store,
		users:  users,
		events: events,
		ids:    ids,
		logger: logger,
		now:    database.Now,
	}
}

func (s *Service) Register(ctx context.Context, userID, eventID string) (reg *entity.Registration, err error) {
	const op = "registration.Register"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", eventID))
	defer func() { telemetry.End(span, err) }()

	if _, err := s.users.Resolve(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.events.Exists(ctx, eventID); err != nil {
		return nil, err
	}
	reg = &entity.Registration{
		ID:        s.ids.Next(),
		UserID:    userID,
		EventID:   eventID,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, reg); err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return nil, apperror.Conflict(op, "already registered for this event")
		case database.IsForeignKeyViolation(err):
			return nil, apperror.NotFound(op, "event")
		default:
			return nil, apperror.Store(op, err)
		}
	}
	s.logger.Infow("registered", "user_id", userID, "event_id", eventID)
	return reg, nil
}

func (s *Service) Unregister(ctx context.Context, userID, eventID string) (err error) {
	const op = "registration.Unregister"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", eventID))
	defer func() { telemetry.End(span, err) }()

	if _, err := s.users.Resolve(ctx, userID); err != nil {
		return err
	}
	n, err := s.store.Delete(ctx, userID, eventID)
	if err != nil {
		return apperror.Store(op, err)
	}
	if n == 0 {
		return apperror.NotFound(op, "registration")
	}
	s.logger.Infow("unregistered", "user_id", userID, "event_id", eventID)
	return nil
}

// ListRegistrants lists the registrations of an event, oldest first. An
// unknown or deleted event has no registrants.
func (s *Service) ListRegistrants(ctx context.Context, eventID string) (out []*entity.Registration, err error) {
	const op = "registration.ListRegistrants"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", eventID))
	defer func() { telemetry.End(span, err) }()

	out, err = s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperror.Store(op, err)
	}
	return out, nil
}

// ListRegistrations lists the registrations held by a user, oldest first.
func (s *Service) ListRegistrations(ctx context.Context, userID string) (out []*entity.Registration, err error) {
	const op = "registration.ListRegistrations"
	ctx, span := telemetry.Start(ctx, tracer, op)
	defer func() { telemetry.End(span, err) }()

	if _, err := s.users.Resolve(ctx, userID); err != nil {
		return nil, err
	}
	out, err = s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Store(op, err)
	}
	return out, nil
}
