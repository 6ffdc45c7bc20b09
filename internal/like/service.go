package like

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/like/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/telemetry"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

var tracer = otel.Tracer("github.com/ovaphlow/pitchfork/service-events-go/internal/like")

// Store is implemented by *repo.LikeRepo.
type Store interface {
	Toggle(ctx context.Context, l *entity.Like) (bool, error)
	CountByEvent(ctx context.Context, eventID string) (int64, error)
	Exists(ctx context.Context, userID, eventID string) (bool, error)
}

// Events confirms an event exists; *event.Service implements it.
type Events interface {
	Exists(ctx context.Context, id string) error
}

// Service implements like toggling. Unlike registrations, a repeated call
// flips the state instead of failing.
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

// Toggle likes the event when the user has not liked it yet and removes the
// like otherwise. When two toggles for the same pair race to insert, the
// loser gets a conflict.
func (s *Service) Toggle(ctx context.Context, userID, eventID string) (res entity.ToggleResult, err error) {
	const op = "like.Toggle"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", eventID))
	defer func() { telemetry.End(span, err) }()

	if _, err := s.users.Resolve(ctx, userID); err != nil {
		return entity.ToggleResult{}, err
	}
	if err := s.events.Exists(ctx, eventID); err != nil {
		return entity.ToggleResult{}, err
	}
	liked, err := s.store.Toggle(ctx, &entity.Like{
		ID:        s.ids.Next(),
		UserID:    userID,
		EventID:   eventID,
		CreatedAt: s.now(),
	})
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return entity.ToggleResult{}, apperror.Conflict(op, "like changed concurrently")
		case database.IsForeignKeyViolation(err):
			return entity.ToggleResult{}, apperror.NotFound(op, "event")
		default:
			return entity.ToggleResult{}, apperror.Store(op, err)
		}
	}
	count, err := s.store.CountByEvent(ctx, eventID)
	if err != nil {
		return entity.ToggleResult{}, apperror.Store(op, err)
	}
	s.logger.Infow("like toggled", "user_id", userID, "event_id", eventID, "liked", liked)
	return entity.ToggleResult{Liked: liked, Count: count}, nil
}

// Count returns the number of likes on an event; zero for unknown events.
func (s *Service) Count(ctx context.Context, eventID string) (n int64, err error) {
	const op = "like.Count"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", eventID))
	defer func() { telemetry.End(span, err) }()

	n, err = s.store.CountByEvent(ctx, eventID)
	if err != nil {
		return 0, apperror.Store(op, err)
	}
	return n, nil
}

// Liked reports whether userID currently likes eventID.
func (s *Service) Liked(ctx context.Context, userID, eventID string) (bool, error) {
	const op = "like.Liked"
	ok, err := s.store.Exists(ctx, userID, eventID)
	if err != nil {
		return false, apperror.Store(op, err)
	}
	return ok, nil
}
