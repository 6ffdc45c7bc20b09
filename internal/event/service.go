package event

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/event/entity"
	eventrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/event/repo"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/telemetry"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

var tracer = otel.Tracer("github.com/ovaphlow/pitchfork/service-events-go/internal/event")

const pageSize = 100

// Store is implemented by *repo.EventRepo.
type Store interface {
	Create(ctx context.Context, e *entity.Event) error
	GetByID(ctx context.Context, id string) (*entity.Event, error)
	IncrementViews(ctx context.Context, id string) (*entity.Event, error)
	Exists(ctx context.Context, id string) (bool, error)
	Page(ctx context.Context, f entity.Filter, after *eventrepo.Cursor, limit int) ([]*entity.Event, *eventrepo.Cursor, error)
	Update(ctx context.Context, e *entity.Event) (*entity.Event, error)
	DeleteCascade(ctx context.Context, id, authorID string) (entity.Cascade, error)
	Stats(ctx context.Context, id string) (*entity.Stats, error)
}

// Service owns the event lifecycle, authorship checks and view counting.
type Service struct {
	store    Store
	users    user.Directory
	ids      *utilities.IDGenerator
	validate *utilities.Validator
	logger   *zap.SugaredLogger
	now      func() time.Time
	pageSize int
}

func NewService(store Store, users user.Directory, ids *utilities.IDGenerator, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		store:    store,
		users:    users,
		ids:      ids,
		validate: utilities.NewValidator(),
		logger:   logger,
		now:      database.Now,
		pageSize: pageSize,
	}
}

func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(op, "event")
	}
	return apperror.Store(op, err)
}

// ParseDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates and
// returns the instant in UTC, truncated to milliseconds.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return database.Truncate(t), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseDateField(op, s string) (time.Time, error) {
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}, apperror.Validation(op, "invalid input",
			map[string]string{"date": "must be RFC3339 or YYYY-MM-DD"})
	}
	return t, nil
}

// Create persists a new event authored by actingUserID with zero views.
func (s *Service) Create(ctx context.Context, actingUserID string, cmd entity.CreateCommand) (e *entity.Event, err error) {
	const op = "event.Create"
	ctx, span := telemetry.Start(ctx, tracer, op)
	defer func() { telemetry.End(span, err) }()

	if err := s.validate.Struct(op, cmd); err != nil {
		return nil, err
	}
	date, err := parseDateField(op, cmd.Date)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.Resolve(ctx, actingUserID); err != nil {
		return nil, err
	}
	now := s.now()
	e = &entity.Event{
		ID:          s.ids.Next(),
		Name:        strings.TrimSpace(cmd.Name),
		Description: strings.TrimSpace(cmd.Description),
		Location:    strings.TrimSpace(cmd.Location),
		Date:        date,
		Category:    strings.TrimSpace(cmd.Category),
		Poster:      strings.TrimSpace(cmd.Poster),
		AuthorID:    actingUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, e); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperror.NotFound(op, "user")
		}
		return nil, apperror.Store(op, err)
	}
	s.logger.Infow("event created", "event_id", e.ID, "author_id", e.AuthorID)
	return e, nil
}

// Get returns the event and counts the read as a view.
func (s *Service) Get(ctx context.Context, id string) (e *entity.Event, err error) {
	const op = "event.Get"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", id))
	defer func() { telemetry.End(span, err) }()

	e, err = s.store.IncrementViews(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return e, nil
}

// Exists reports a missing event as NotFound. Services that attach rows to
// an event call it before mutating.
func (s *Service) Exists(ctx context.Context, id string) error {
	const op = "event.Exists"
	ok, err := s.store.Exists(ctx, id)
	if err != nil {
		return apperror.Store(op, err)
	}
	if !ok {
		return apperror.NotFound(op, "event")
	}
	return nil
}

// List streams events matching f ordered by date then id. The sequence is
// lazy: pages are read as the caller advances. Ranging over it again starts
// a fresh read. Views are not touched.
func (s *Service) List(ctx context.Context, f entity.Filter) iter.Seq2[*entity.Event, error] {
	const op = "event.List"
	return func(yield func(*entity.Event, error) bool) {
		var (
			after   *eventrepo.Cursor
			yielded int
		)
		for {
			size := s.pageSize
			if f.Limit > 0 && f.Limit-yielded < size {
				size = f.Limit - yielded
			}
			if size <= 0 {
				return
			}
			page, next, err := s.store.Page(ctx, f, after, size)
			if err != nil {
				yield(nil, apperror.Store(op, err))
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
				yielded++
			}
			if next == nil {
				return
			}
			after = next
		}
	}
}

// Update applies a partial update. Authorship is checked before the command
// is validated, so a non-author is always refused.
func (s *Service) Update(ctx context.Context, actingUserID, id string, cmd entity.UpdateCommand) (e *entity.Event, err error) {
	const op = "event.Update"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", id))
	defer func() { telemetry.End(span, err) }()

	current, err := s.authorize(ctx, op, actingUserID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(op, cmd); err != nil {
		return nil, err
	}
	next := *current
	if cmd.Name != nil {
		next.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Description != nil {
		next.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.Location != nil {
		next.Location = strings.TrimSpace(*cmd.Location)
	}
	if cmd.Category != nil {
		next.Category = strings.TrimSpace(*cmd.Category)
	}
	if cmd.Poster != nil {
		next.Poster = strings.TrimSpace(*cmd.Poster)
	}
	if cmd.Date != nil {
		date, err := parseDateField(op, *cmd.Date)
		if err != nil {
			return nil, err
		}
		next.Date = date
	}
	next.UpdatedAt = s.now()

	e, err = s.store.Update(ctx, &next)
	if err != nil {
		return nil, storeErr(op, err)
	}
	s.logger.Infow("event updated", "event_id", id, "author_id", actingUserID)
	return e, nil
}

// Delete removes the event with all its registrations, likes and comments
// atomically.
func (s *Service) Delete(ctx context.Context, actingUserID, id string) (err error) {
	const op = "event.Delete"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", id))
	defer func() { telemetry.End(span, err) }()

	current, err := s.authorize(ctx, op, actingUserID, id)
	if err != nil {
		return err
	}
	removed, err := s.store.DeleteCascade(ctx, current.ID, current.AuthorID)
	if err != nil {
		return storeErr(op, err)
	}
	s.logger.Infow("event deleted",
		"event_id", id,
		"registrations", removed.Registrations,
		"likes", removed.Likes,
		"comments", removed.Comments,
	)
	return nil
}

// Stats returns the counters of an event without counting a view.
func (s *Service) Stats(ctx context.Context, id string) (st *entity.Stats, err error) {
	const op = "event.Stats"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("event.id", id))
	defer func() { telemetry.End(span, err) }()

	st, err = s.store.Stats(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return st, nil
}

func (s *Service) authorize(ctx context.Context, op, actingUserID, id string) (*entity.Event, error) {
	if _, err := s.users.Resolve(ctx, actingUserID); err != nil {
		return nil, err
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if current.AuthorID != actingUserID {
		return nil, apperror.Forbidden(op, "event")
	}
	return current, nil
}
