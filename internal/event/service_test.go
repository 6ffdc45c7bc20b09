package event

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"pgregory.net/rapid"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/event/entity"
	eventrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/event/repo"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/testutil"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

func newTestService(t testing.TB) (*Service, *sqlx.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	ids := utilities.NewIDGenerator(2)
	users := user.NewService(userrepo.NewUserRepo(db), user.BcryptHasher{Cost: bcrypt.MinCost}, ids, nil)
	return NewService(eventrepo.NewEventRepo(db), users, ids, nil), db
}

func validCreate() entity.CreateCommand {
	return entity.CreateCommand{
		Name:        "Jazz night",
		Description: "Live quartet",
		Location:    "Lyon",
		Date:        "2030-06-21T20:00:00+02:00",
		Category:    "music",
		Poster:      "https://img.example.com/jazz.png",
	}
}

func TestCreateRoundTrip(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	author := testutil.InsertUser(t, db)

	cmd := validCreate()
	cmd.Date = "2030-06-21T20:00:00.123456789+02:00"
	created, err := s.Create(ctx, author, cmd)
	require.NoError(t, err)
	require.Equal(t, int64(0), created.Views)
	require.Equal(t, author, created.AuthorID)
	require.Equal(t, time.Date(2030, 6, 21, 18, 0, 0, 123_000_000, time.UTC), created.Date)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Name, got.Name)
	require.Equal(t, created.Description, got.Description)
	require.Equal(t, created.Location, got.Location)
	require.Equal(t, created.Category, got.Category)
	require.Equal(t, created.Poster, got.Poster)
	require.Equal(t, created.Date, got.Date)
	require.Equal(t, created.CreatedAt, got.CreatedAt)
	require.Equal(t, created.UpdatedAt, got.UpdatedAt)
	require.Equal(t, int64(1), got.Views)

	got, err = s.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Views)

	st, err := s.Stats(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), st.Views)
	require.Zero(t, st.Likes+st.Registrations+st.Comments)
}

func TestCreateAcceptsPlainDate(t *testing.T) {
	s, db := newTestService(t)
	cmd := validCreate()
	cmd.Date = "2031-01-02"
	e, err := s.Create(context.Background(), testutil.InsertUser(t, db), cmd)
	require.NoError(t, err)
	require.True(t, time.Date(2031, 1, 2, 0, 0, 0, 0, time.UTC).Equal(e.Date))
}

func TestCreateValidation(t *testing.T) {
	s, db := newTestService(t)
	author := testutil.InsertUser(t, db)

	_, err := s.Create(context.Background(), author, entity.CreateCommand{Name: " "})
	require.ErrorIs(t, err, apperror.ErrValidation)
	fields := apperror.FieldsOf(err)
	for _, f := range []string{"name", "description", "location", "date", "category"} {
		require.Contains(t, fields, f)
	}

	cmd := validCreate()
	cmd.Date = "next tuesday"
	_, err = s.Create(context.Background(), author, cmd)
	require.ErrorIs(t, err, apperror.ErrValidation)
	require.Contains(t, apperror.FieldsOf(err), "date")
}

func TestCreateRequiresKnownUser(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Create(context.Background(), "ghost", validCreate())
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGetMissingIsAlwaysNotFound(t *testing.T) {
	s, db := newTestService(t)
	testutil.InsertEvent(t, db, testutil.InsertUser(t, db), 1)

	rapid.Check(t, func(rt *rapid.T) {
		id := rapid.StringMatching(`[a-z0-9]{1,20}`).Draw(rt, "id")
		e, err := s.Get(context.Background(), "missing-"+id)
		if e != nil || !apperrorIsNotFound(err) {
			rt.Fatalf("Get(%q) = %v, %v; want NotFound", id, e, err)
		}
	})
}

func apperrorIsNotFound(err error) bool {
	return apperror.KindOf(err) == apperror.KindNotFound
}

func collect(t *testing.T, s *Service, f entity.Filter) []*entity.Event {
	t.Helper()
	var out []*entity.Event
	for e, err := range s.List(context.Background(), f) {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestListOrderingPagingAndRestart(t *testing.T) {
	s, db := newTestService(t)
	s.pageSize = 2
	ctx := context.Background()
	author := testutil.InsertUser(t, db)

	dates := []string{"2030-03-01", "2030-01-01", "2030-02-01", "2030-01-01", "2030-04-01"}
	for i, d := range dates {
		cmd := validCreate()
		cmd.Name = fmt.Sprintf("event %d", i)
		cmd.Date = d
		if i%2 == 0 {
			cmd.Category = "sport"
		}
		_, err := s.Create(ctx, author, cmd)
		require.NoError(t, err)
	}

	all := collect(t, s, entity.Filter{})
	require.Len(t, all, len(dates))
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		ordered := prev.Date.Before(cur.Date) || (prev.Date.Equal(cur.Date) && prev.ID < cur.ID)
		require.True(t, ordered, "events %d and %d out of order", i-1, i)
	}
	for _, e := range all {
		require.Zero(t, e.Views)
	}

	// ranging again starts over
	require.Equal(t, all, collect(t, s, entity.Filter{}))

	// stopping early is honored
	seen := 0
	for range s.List(ctx, entity.Filter{}) {
		seen++
		if seen == 3 {
			break
		}
	}
	require.Equal(t, 3, seen)

	require.Len(t, collect(t, s, entity.Filter{Limit: 3}), 3)
	require.Len(t, collect(t, s, entity.Filter{Category: "sport"}), 3)

	from := time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	ranged := collect(t, s, entity.Filter{From: &from, To: &to})
	require.Len(t, ranged, 2)
}

func TestUpdatePartial(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	author := testutil.InsertUser(t, db)
	created, err := s.Create(ctx, author, validCreate())
	require.NoError(t, err)
	_, err = s.Get(ctx, created.ID)
	require.NoError(t, err)

	name := "Blues night"
	updated, err := s.Update(ctx, author, created.ID, entity.UpdateCommand{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Blues night", updated.Name)
	require.Equal(t, created.Location, updated.Location)
	require.Equal(t, author, updated.AuthorID)
	require.Equal(t, int64(1), updated.Views)

	blank := "  "
	_, err = s.Update(ctx, author, created.ID, entity.UpdateCommand{Location: &blank})
	require.ErrorIs(t, err, apperror.ErrValidation)

	_, err = s.Update(ctx, author, "missing", entity.UpdateCommand{Name: &name})
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestNonAuthorIsAlwaysForbidden(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	author := testutil.InsertUser(t, db)
	stranger := testutil.InsertUser(t, db)
	created, err := s.Create(ctx, author, validCreate())
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		var cmd entity.UpdateCommand
		if rapid.Bool().Draw(rt, "setName") {
			v := rapid.StringN(0, 300, -1).Draw(rt, "name")
			cmd.Name = &v
		}
		if rapid.Bool().Draw(rt, "setDate") {
			v := rapid.String().Draw(rt, "date")
			cmd.Date = &v
		}
		if _, err := s.Update(ctx, stranger, created.ID, cmd); apperror.KindOf(err) != apperror.KindForbidden {
			rt.Fatalf("update by non-author: %v", err)
		}
	})
	require.ErrorIs(t, s.Delete(ctx, stranger, created.ID), apperror.ErrForbidden)

	got, err := s.Stats(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.EventID)
}

func TestDeleteCascadesChildren(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	author := testutil.InsertUser(t, db)
	e, err := s.Create(ctx, author, validCreate())
	require.NoError(t, err)
	other := testutil.InsertEvent(t, db, author, 5)

	const n, m, k = 3, 2, 4
	for i := 0; i < n; i++ {
		insertChild(t, db, "registrations", testutil.InsertUser(t, db), e.ID)
	}
	for i := 0; i < m; i++ {
		insertChild(t, db, "likes", testutil.InsertUser(t, db), e.ID)
	}
	for i := 0; i < k; i++ {
		insertComment(t, db, author, e.ID)
	}
	insertComment(t, db, author, other)

	st, err := s.Stats(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, int64(n), st.Registrations)
	require.Equal(t, int64(m), st.Likes)
	require.Equal(t, int64(k), st.Comments)

	require.NoError(t, s.Delete(ctx, author, e.ID))

	for _, table := range []string{"registrations", "likes", "comments"} {
		var c int
		require.NoError(t, db.GetContext(ctx, &c, db.Rebind(`SELECT COUNT(*) FROM `+table+` WHERE event_id=?`), e.ID))
		require.Zero(t, c, table)
	}
	_, err = s.Get(ctx, e.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = s.Stats(ctx, e.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)
	require.ErrorIs(t, s.Exists(ctx, e.ID), apperror.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, author, e.ID), apperror.ErrNotFound)

	otherStats, err := s.Stats(ctx, other)
	require.NoError(t, err)
	require.Equal(t, int64(1), otherStats.Comments)
}

func insertChild(t *testing.T, db *sqlx.DB, table, userID, eventID string) {
	t.Helper()
	_, err := db.Exec(db.Rebind(`INSERT INTO `+table+` (id, user_id, event_id, created_at) VALUES (?, ?, ?, 0)`),
		table+"-"+userID, userID, eventID)
	require.NoError(t, err)
}

var commentSeq int

func insertComment(t *testing.T, db *sqlx.DB, userID, eventID string) {
	t.Helper()
	commentSeq++
	_, err := db.Exec(db.Rebind(`INSERT INTO comments (id, user_id, event_id, body, created_at) VALUES (?, ?, ?, 'nice', 0)`),
		fmt.Sprintf("c%d", commentSeq), userID, eventID)
	require.NoError(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2030-06-21T20:00:00.9999Z")
	require.NoError(t, err)
	require.Equal(t, time.UTC, d.Location())
	require.Equal(t, 999_000_000, d.Nanosecond())
	_, err = ParseDate("21/06/2030")
	require.Error(t, err)
}
