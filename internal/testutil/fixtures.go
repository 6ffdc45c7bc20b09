package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	evententity "github.com/ovaphlow/pitchfork/service-events-go/internal/event/entity"
	eventrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/event/repo"
	userentity "github.com/ovaphlow/pitchfork/service-events-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/user/repo"
)

var seq atomic.Int64

// InsertUser stores a user with a unique id and email and returns its id.
func InsertUser(t testing.TB, db *sqlx.DB) string {
	t.Helper()
	n := seq.Add(1)
	now := time.Now().UTC()
	u := &userentity.User{
		ID:        fmt.Sprintf("u%d", n),
		FirstName: "Test",
		LastName:  fmt.Sprintf("User%d", n),
		Email:     fmt.Sprintf("user%d@example.com", n),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, userrepo.NewUserRepo(db).Create(context.Background(), u))
	return u.ID
}

// InsertEvent stores an event authored by authorID, dated daysAhead days
// from now, and returns its id.
func InsertEvent(t testing.TB, db *sqlx.DB, authorID string, daysAhead int) string {
	t.Helper()
	n := seq.Add(1)
	now := time.Now().UTC()
	e := &evententity.Event{
		ID:          fmt.Sprintf("e%d", n),
		Name:        fmt.Sprintf("Event %d", n),
		Description: "fixture",
		Location:    "Paris",
		Date:        now.AddDate(0, 0, daysAhead).Truncate(time.Millisecond),
		Category:    "music",
		AuthorID:    authorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, eventrepo.NewEventRepo(db).Create(context.Background(), e))
	return e.ID
}
