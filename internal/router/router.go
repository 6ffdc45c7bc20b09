package router

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/comment"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/event"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/like"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/registration"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

// Pinger reports store liveness for the health route; *sqlx.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the services and settings the HTTP layer is built from.
// Redis and RateLimiter are optional.
type Deps struct {
	Logger        *zap.SugaredLogger
	Tokens        *auth.Issuer
	DB            Pinger
	Users         *user.Service
	Events        *event.Service
	Registrations *registration.Service
	Likes         *like.Service
	Comments      *comment.Service
	Redis         *redis.Client
	Quota         QuotaRule
	RateLimiter   *RateLimiter
}

// RegisterRoutes mounts every endpoint on a stdlib http.ServeMux and wraps it
// in the global middleware chain.
func RegisterRoutes(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	mux := http.NewServeMux()

	requireAuth := auth.Require(d.Tokens, logger)
	quota := Quota(d.Redis, d.Quota, logger)
	protected := func(h http.HandlerFunc) http.Handler {
		return requireAuth(quota(h))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			if err := d.DB.PingContext(r.Context()); err != nil {
				logger.Warnw("health check failed", "err", err)
				utilities.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		utilities.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	users := user.NewHandler(d.Users, d.Tokens, logger)
	mux.HandleFunc("POST /users/signup", users.Signup)
	mux.HandleFunc("POST /users/login", users.Login)
	mux.HandleFunc("POST /users/federated", users.Federated)
	mux.Handle("POST /users/logout", protected(users.Logout))
	mux.HandleFunc("GET /users", users.List)
	mux.HandleFunc("GET /users/{id}", users.Get)
	mux.Handle("DELETE /users/{id}", protected(users.Delete))

	events := event.NewHandler(d.Events, logger)
	mux.HandleFunc("GET /events", events.List)
	mux.HandleFunc("GET /events/{id}", events.Get)
	mux.HandleFunc("GET /events/{id}/stats", events.Stats)
	mux.Handle("POST /events", protected(events.Create))
	mux.Handle("PUT /events/{id}", protected(events.Update))
	mux.Handle("DELETE /events/{id}", protected(events.Delete))

	regs := registration.NewHandler(d.Registrations, logger)
	mux.Handle("POST /events/{id}/registrations", protected(regs.Register))
	mux.Handle("DELETE /events/{id}/registrations", protected(regs.Unregister))
	mux.HandleFunc("GET /events/{id}/registrations", regs.ListByEvent)
	mux.HandleFunc("GET /users/{id}/registrations", regs.ListByUser)

	likes := like.NewHandler(d.Likes, logger)
	mux.Handle("POST /events/{id}/like", protected(likes.Toggle))
	mux.HandleFunc("GET /events/{id}/likes", likes.Count)

	comments := comment.NewHandler(d.Comments, logger)
	mux.HandleFunc("GET /events/{id}/comments", comments.List)
	mux.Handle("POST /events/{id}/comments", protected(comments.Add))
	mux.Handle("PUT /comments/{id}", protected(comments.Edit))
	mux.Handle("DELETE /comments/{id}", protected(comments.Delete))

	var handler http.Handler = mux
	if d.RateLimiter != nil {
		handler = d.RateLimiter.Middleware()(handler)
	}
	handler = SecurityHeadersMiddleware()(handler)
	handler = RecoverMiddleware(logger)(handler)
	handler = LoggingMiddleware(logger)(handler)
	return RequestIDMiddleware()(handler)
}
