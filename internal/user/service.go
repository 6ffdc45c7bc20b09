package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/telemetry"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

var tracer = otel.Tracer("github.com/ovaphlow/pitchfork/service-events-go/internal/user")

const resolveTTL = 30 * time.Second

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Directory resolves an acting user id to a live user. Every other service
// goes through it before touching the store.
type Directory interface {
	Resolve(ctx context.Context, id string) (*entity.User, error)
}

// Store is the persistence the directory needs; *repo.UserRepo implements it.
type Store interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	LinkGoogleID(ctx context.Context, id, googleID string, at time.Time) error
	SetConnected(ctx context.Context, id string, connected bool, at time.Time) error
	DeleteCascade(ctx context.Context, id string) (userrepo.DeletedRows, error)
}

// Service is the user directory: account lifecycle, connection state and
// identity resolution.
type Service struct {
	store    Store
	hasher   PasswordHasher
	ids      *utilities.IDGenerator
	validate *utilities.Validator
	resolved *cache.Cache
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewService(store Store, hasher PasswordHasher, ids *utilities.IDGenerator, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		store:    store,
		hasher:   hasher,
		ids:      ids,
		validate: utilities.NewValidator(),
		resolved: cache.New(resolveTTL, 2*resolveTTL),
		logger:   logger,
		now:      database.Now,
	}
}

const errBadCredentials = "invalid credentials"

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(op, "user")
	}
	return apperror.Store(op, err)
}

// Signup creates a password (or password-less) account.
func (s *Service) Signup(ctx context.Context, cmd entity.SignupCommand) (u *entity.User, err error) {
	const op = "user.Signup"
	ctx, span := telemetry.Start(ctx, tracer, op)
	defer func() { telemetry.End(span, err) }()

	cmd.Email = normalizeEmail(cmd.Email)
	if err := s.validate.Struct(op, cmd); err != nil {
		return nil, err
	}
	now := s.now()
	u = &entity.User{
		ID:        s.ids.Next(),
		FirstName: strings.TrimSpace(cmd.FirstName),
		LastName:  strings.TrimSpace(cmd.LastName),
		Email:     cmd.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cmd.Password != "" {
		hash, err := s.hasher.Hash(cmd.Password)
		if err != nil {
			return nil, apperror.Store(op, err)
		}
		u.PasswordHash = &hash
	}
	if err := s.store.Create(ctx, u); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Conflict(op, "email already registered")
		}
		return nil, apperror.Store(op, err)
	}
	s.logger.Infow("user signed up", "user_id", u.ID)
	return u, nil
}

// Login checks the password and marks the account connected. Unknown emails
// and wrong passwords produce the same validation error.
func (s *Service) Login(ctx context.Context, email, password string) (u *entity.User, err error) {
	const op = "user.Login"
	ctx, span := telemetry.Start(ctx, tracer, op)
	defer func() { telemetry.End(span, err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.Validation(op, errBadCredentials, nil)
	}
	found, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Validation(op, errBadCredentials, nil)
		}
		return nil, apperror.Store(op, err)
	}
	if found.PasswordHash == nil || !s.hasher.Verify(*found.PasswordHash, password) {
		s.logger.Debugw("login rejected", "user_id", found.ID)
		return nil, apperror.Validation(op, errBadCredentials, nil)
	}
	return s.connect(ctx, op, found.ID)
}

// FederatedLogin signs in with a Google identity: an account already holding
// the Google id wins, then an account with the same email gets linked, and
// otherwise a new account is created.
func (s *Service) FederatedLogin(ctx context.Context, cmd entity.FederatedCommand) (u *entity.User, err error) {
	const op = "user.FederatedLogin"
	ctx, span := telemetry.Start(ctx, tracer, op)
	defer func() { telemetry.End(span, err) }()

	cmd.Email = normalizeEmail(cmd.Email)
	if err := s.validate.Struct(op, cmd); err != nil {
		return nil, err
	}
	found, err := s.store.GetByGoogleID(ctx, cmd.GoogleID)
	if err == nil {
		return s.connect(ctx, op, found.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Store(op, err)
	}

	email := cmd.Email
	found, err = s.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if found.GoogleID != nil && *found.GoogleID != cmd.GoogleID {
			return nil, apperror.Conflict(op, "email is linked to another google account")
		}
		if err := s.store.LinkGoogleID(ctx, found.ID, cmd.GoogleID, s.now()); err != nil {
			if database.IsUniqueViolation(err) {
				return nil, apperror.Conflict(op, "google account already linked")
			}
			return nil, storeErr(op, err)
		}
		s.logger.Infow("google account linked", "user_id", found.ID)
		return s.connect(ctx, op, found.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, apperror.Store(op, err)
	}

	now := s.now()
	googleID := cmd.GoogleID
	u = &entity.User{
		ID:             s.ids.Next(),
		GoogleID:       &googleID,
		FirstName:      strings.TrimSpace(cmd.FirstName),
		LastName:       strings.TrimSpace(cmd.LastName),
		Email:          email,
		IsConnected:    true,
		LastConnection: &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Conflict(op, "account created concurrently, retry sign-in")
		}
		return nil, apperror.Store(op, err)
	}
	s.logger.Infow("user created from google sign-in", "user_id", u.ID)
	return u, nil
}

func (s *Service) connect(ctx context.Context, op, id string) (*entity.User, error) {
	if err := s.store.SetConnected(ctx, id, true, s.now()); err != nil {
		return nil, storeErr(op, err)
	}
	s.resolved.Delete(id)
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	s.logger.Infow("user connected", "user_id", id)
	return u, nil
}

// Logout clears the connection flag.
func (s *Service) Logout(ctx context.Context, id string) (err error) {
	const op = "user.Logout"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("user.id", id))
	defer func() { telemetry.End(span, err) }()

	if err := s.store.SetConnected(ctx, id, false, s.now()); err != nil {
		return storeErr(op, err)
	}
	s.resolved.Delete(id)
	s.logger.Infow("user disconnected", "user_id", id)
	return nil
}

// Get reads a user straight from the store.
func (s *Service) Get(ctx context.Context, id string) (u *entity.User, err error) {
	const op = "user.Get"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("user.id", id))
	defer func() { telemetry.End(span, err) }()

	u, err = s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) (users []*entity.User, err error) {
	const op = "user.List"
	ctx, span := telemetry.Start(ctx, tracer, op)
	defer func() { telemetry.End(span, err) }()

	users, err = s.store.List(ctx)
	if err != nil {
		return nil, apperror.Store(op, err)
	}
	return users, nil
}

// Delete removes the acting user's own account together with their
// registrations, likes and comments. Accounts that still author events are
// kept and a conflict is reported.
func (s *Service) Delete(ctx context.Context, actingUserID, id string) (err error) {
	const op = "user.Delete"
	ctx, span := telemetry.Start(ctx, tracer, op, attribute.String("user.id", id))
	defer func() { telemetry.End(span, err) }()

	if _, err := s.Resolve(ctx, actingUserID); err != nil {
		return err
	}
	if actingUserID != id {
		return apperror.Forbidden(op, "user")
	}
	removed, err := s.store.DeleteCascade(ctx, id)
	s.resolved.Delete(id)
	switch {
	case err == nil:
	case errors.Is(err, userrepo.ErrAuthorsEvents), database.IsForeignKeyViolation(err):
		return apperror.Conflict(op, "user still authors events")
	default:
		return storeErr(op, err)
	}
	s.logger.Infow("user deleted",
		"user_id", id,
		"registrations", removed.Registrations,
		"likes", removed.Likes,
		"comments", removed.Comments,
	)
	return nil
}

// Resolve implements Directory. Hits are served from a short-lived cache that
// is purged whenever the account changes state.
func (s *Service) Resolve(ctx context.Context, id string) (*entity.User, error) {
	const op = "user.Resolve"
	if id == "" {
		return nil, apperror.NotFound(op, "user")
	}
	if v, ok := s.resolved.Get(id); ok {
		return v.(*entity.User), nil
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	s.resolved.Set(id, u, cache.DefaultExpiration)
	return u, nil
}
