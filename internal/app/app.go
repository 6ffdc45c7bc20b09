// Package app assembles repositories, services and the HTTP handler from an
// open database. It holds no globals so tests can build as many as they need.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/comment"
	commentrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/comment/repo"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/event"
	eventrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/event/repo"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/like"
	likerepo "github.com/ovaphlow/pitchfork/service-events-go/internal/like/repo"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/registration"
	registrationrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/registration/repo"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

type App struct {
	Tokens        *auth.Issuer
	Users         *user.Service
	Events        *event.Service
	Registrations *registration.Service
	Likes         *like.Service
	Comments      *comment.Service
	Handler       http.Handler
}

// New wires every service over db. rdb may be nil, which disables the usage
// quota. The rate limiter janitor stops when ctx is done.
func New(ctx context.Context, cfg config.Config, db *sqlx.DB, rdb *redis.Client, logger *zap.SugaredLogger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	tokens, err := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TTL)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	ids := utilities.NewIDGenerator(cfg.NodeID)

	users := user.NewService(userrepo.NewUserRepo(db), user.BcryptHasher{Cost: cfg.BcryptCost}, ids, logger.Named("user"))
	events := event.NewService(eventrepo.NewEventRepo(db), users, ids, logger.Named("event"))
	a := &App{
		Tokens:        tokens,
		Users:         users,
		Events:        events,
		Registrations: registration.NewService(registrationrepo.NewRegistrationRepo(db), users, events, ids, logger.Named("registration")),
		Likes:         like.NewService(likerepo.NewLikeRepo(db), users, events, ids, logger.Named("like")),
		Comments:      comment.NewService(commentrepo.NewCommentRepo(db), users, events, ids, logger.Named("comment")),
	}

	var limiter *router.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = router.NewRateLimiter(ctx, router.LimiterConfig{
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
			IdleTTL: cfg.RateLimit.IdleTTL,
		})
	}
	a.Handler = router.RegisterRoutes(router.Deps{
		Logger:        logger.Named("http"),
		Tokens:        tokens,
		DB:            db,
		Users:         a.Users,
		Events:        a.Events,
		Registrations: a.Registrations,
		Likes:         a.Likes,
		Comments:      a.Comments,
		Redis:         rdb,
		Quota:         router.QuotaRule{Limit: cfg.Quota.Limit, Window: cfg.Quota.Window},
		RateLimiter:   limiter,
	})
	return a, nil
}
