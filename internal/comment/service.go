package comment

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/comment/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/telemetry"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

var tracer = otel.Tracer("github.com/ovaphlow/pitchfork/service-events-go/internal/comment")

// Store is implemented by *repo.CommentRepo.
type Store interface {
	Create(ctx context.Context, c *entity.Comment) error
	GetByID(ctx context.Context, id string) (*entity.Comment, error)
	UpdateBody(ctx context.Context, id, userID, body string, editedAt time.Time) (*entity.Comment, error)
	Delete(ctx context.Context, id, userID string) (int64, error)
	ListByEvent(ctx context.Context, eventID string) ([]*entity.Comment, error)
}

// Events confirms an event exists; *event.Service implements it.
type Events interface {
	Exists(ctx context.Context, id string) error
}

// Service manages comments. Only the author may edit or delete one.
type Service struct {
	store    Store
	users    user.Directory
	events   Events
	ids      *utilities.IDGenerator
	validate *utilities.Validator
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewService(store Store, users user.Directory, events Events, ids *utilities.IDGenerator, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		store:    store,
		users:    users,
		events:   events,
		ids:      ids,
		validate: utilities.NewValidator(),
		logger:   logger,
		now:      database.Now,
	}
}

func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(op, "comment")
	}
	return apperror.Store(op, err)
}

func (s *Service) Add(ctx context.Context, userID, eventID, body string) (c *entity.Comment, err error) {
	const op = "comment.Add"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", eventID))
	defer func() { telemetry.End(span, err) }()

	if err := s.validate.Struct(op, entity.BodyCommand{Body: body}); err != nil {
		return nil, err
	}
	if _, err := s.users.Resolve(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.events.Exists(ctx, eventID); err != nil {
		return nil, err
	}
	c = &entity.Comment{
		ID:        s.ids.Next(),
		UserID:    userID,
		EventID:   eventID,
		Body:      strings.TrimSpace(body),
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, c); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperror.NotFound(op, "event")
		}
		return nil, apperror.Store(op, err)
	}
	s.logger.Infow("comment added", "comment_id", c.ID, "event_id", eventID, "user_id", userID)
	return c, nil
}

// Edit replaces the body. CreatedAt is kept and EditedAt records the change.
func (s *Service) Edit(ctx context.Context, actingUserID, commentID, body string) (c *entity.Comment, err error) {
	const op = "comment.Edit"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("comment.id", commentID))
	defer func() { telemetry.End(span, err) }()

	if _, err := s.authorize(ctx, op, actingUserID, commentID); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(op, entity.BodyCommand{Body: body}); err != nil {
		return nil, err
	}
	c, err = s.store.UpdateBody(ctx, commentID, actingUserID, strings.TrimSpace(body), s.now())
	if err != nil {
		return nil, storeErr(op, err)
	}
	s.logger.Infow("comment edited", "comment_id", commentID, "user_id", actingUserID)
	return c, nil
}

func (s *Service) Delete(ctx context.Context, actingUserID, commentID string) (err error) {
	const op = "comment.Delete"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("comment.id", commentID))
	defer func() { telemetry.End(span, err) }()

	if _, err := s.authorize(ctx, op, actingUserID, commentID); err != nil {
		return err
	}
	n, err := s.store.Delete(ctx, commentID, actingUserID)
	if err != nil {
		return apperror.Store(op, err)
	}
	if n == 0 {
		return apperror.NotFound(op, "comment")
	}
	s.logger.Infow("comment deleted", "comment_id", commentID, "user_id", actingUserID)
	return nil
}

// List returns the comments of an event ordered by creation time. An unknown
// or deleted event lists as empty.
func (s *Service) List(ctx context.Context, eventID string) (out []*entity.Comment, err error) {
	const op = "comment.List"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", eventID))
	defer func() { telemetry.End(span, err) }()

	out, err = s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperror.Store(op, err)
	}
	return out, nil
}

func (s *Service) authorize(ctx context.Context, op, actingUserID, commentID string) (*entity.Comment, error) {
	if _, err := s.users.Resolve(ctx, actingUserID); err != nil {
		return nil, err
	}
	c, err := s.store.GetByID(ctx, commentID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if c.UserID != actingUserID {
		return nil, apperror.Forbidden(op, "comment")
	}
	return c, nil
}
