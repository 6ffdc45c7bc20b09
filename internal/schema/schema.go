// Package schema creates every table the service needs, parents before
// children so that foreign keys resolve.
package schema

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	commentrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/comment/repo"
	eventrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/event/repo"
	likerepo "github.com/ovaphlow/pitchfork/service-events-go/internal/like/repo"
	registrationrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/registration/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/user/repo"
)

type tableEnsurer interface {
	EnsureTable(ctx context.Context) error
}

// Ensure runs each repo's idempotent DDL.
func Ensure(ctx context.Context, db *sqlx.DB) error {
	steps := []struct {
		name string
		repo tableEnsurer
	}{
		{"users", userrepo.NewUserRepo(db)},
		{"events", eventrepo.NewEventRepo(db)},
		{"registrations", registrationrepo.NewRegistrationRepo(db)},
		{"likes", likerepo.NewLikeRepo(db)},
		{"comments", commentrepo.NewCommentRepo(db)},
	}
	for _, s := range steps {
		if err := s.repo.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
	}
	return nil
}
