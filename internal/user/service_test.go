package user

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/testutil"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-events-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

func newTestService(t *testing.T) (*Service, *sqlx.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	r := userrepo.NewUserRepo(db)
	return NewService(r, BcryptHasher{Cost: bcrypt.MinCost}, utilities.NewIDGenerator(1), nil), db
}

func signup(t *testing.T, s *Service, email string) *entity.User {
	t.Helper()
	u, err := s.Signup(context.Background(), entity.SignupCommand{
		FirstName: "Ada", LastName: "Lovelace", Email: email, Password: "correct horse",
	})
	require.NoError(t, err)
	return u
}

func TestSignupNormalizesEmailAndHashesPassword(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	u := signup(t, s, "  Ada@Example.COM ")
	require.Equal(t, "ada@example.com", u.Email)
	require.NotNil(t, u.PasswordHash)
	require.NotEqual(t, "correct horse", *u.PasswordHash)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, u.Email, got.Email)
	require.Equal(t, u.CreatedAt, got.CreatedAt)
	require.Equal(t, u.UpdatedAt, got.UpdatedAt)
	require.Equal(t, "Ada", got.FirstName)
	require.False(t, got.IsConnected)
	require.Nil(t, got.LastConnection)
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	s, _ := newTestService(t)
	signup(t, s, "ada@example.com")

	_, err := s.Signup(context.Background(), entity.SignupCommand{
		FirstName: "Other", LastName: "Person", Email: "ADA@example.com",
	})
	require.ErrorIs(t, err, apperror.ErrConflict)
}

func TestSignupValidation(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Signup(context.Background(), entity.SignupCommand{FirstName: "  ", Email: "nope"})
	require.ErrorIs(t, err, apperror.ErrValidation)
	fields := apperror.FieldsOf(err)
	require.Contains(t, fields, "firstName")
	require.Contains(t, fields, "lastName")
	require.Contains(t, fields, "email")
}

func TestLoginAndLogout(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	u := signup(t, s, "ada@example.com")

	_, err := s.Login(ctx, "ada@example.com", "wrong")
	require.ErrorIs(t, err, apperror.ErrValidation)
	_, err = s.Login(ctx, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, apperror.ErrValidation)
	require.Equal(t, apperror.PublicMessage(err), "invalid credentials")

	logged, err := s.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	require.True(t, logged.IsConnected)
	require.NotNil(t, logged.LastConnection)

	require.NoError(t, s.Logout(ctx, u.ID))
	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.IsConnected)
	require.NotNil(t, got.LastConnection)

	require.ErrorIs(t, s.Logout(ctx, "missing"), apperror.ErrNotFound)
}

func TestFederatedLogin(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	created, err := s.FederatedLogin(ctx, entity.FederatedCommand{
		GoogleID: "g-1", Email: "grace@example.com", FirstName: "Grace", LastName: "Hopper",
	})
	require.NoError(t, err)
	require.True(t, created.IsConnected)
	require.Nil(t, created.PasswordHash)

	again, err := s.FederatedLogin(ctx, entity.FederatedCommand{GoogleID: "g-1", Email: "changed@example.com"})
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)

	local := signup(t, s, "ada@example.com")
	linked, err := s.FederatedLogin(ctx, entity.FederatedCommand{GoogleID: "g-2", Email: "Ada@example.com"})
	require.NoError(t, err)
	require.Equal(t, local.ID, linked.ID)
	require.NotNil(t, linked.GoogleID)
	require.Equal(t, "g-2", *linked.GoogleID)

	_, err = s.FederatedLogin(ctx, entity.FederatedCommand{GoogleID: "g-3", Email: "ada@example.com"})
	require.ErrorIs(t, err, apperror.ErrConflict)
}

func TestDeleteRules(t *testing.T) {
	s, db := newTestService(t)
	r := userrepo.NewUserRepo(db)
	ctx := context.Background()

	alice := signup(t, s, "alice@example.com")
	bob := signup(t, s, "bob@example.com")

	require.ErrorIs(t, s.Delete(ctx, bob.ID, alice.ID), apperror.ErrForbidden)
	require.ErrorIs(t, s.Delete(ctx, "ghost", alice.ID), apperror.ErrNotFound)

	require.NoError(t, s.Delete(ctx, alice.ID, alice.ID))
	_, err := r.GetByID(ctx, alice.ID)
	require.Error(t, err)

	_, err = s.Resolve(ctx, alice.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteBlockedWhileAuthoringEvents(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	author := signup(t, s, "author@example.com")
	guest := signup(t, s, "guest@example.com")
	eventID := testutil.InsertEvent(t, db, author.ID, 3)
	_, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO registrations (id, user_id, event_id, created_at) VALUES (?, ?, ?, 0)`),
		"r1", guest.ID, eventID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, db.Rebind(`INSERT INTO comments (id, user_id, event_id, body, created_at) VALUES (?, ?, ?, 'hi', 0)`),
		"c1", guest.ID, eventID)
	require.NoError(t, err)

	require.ErrorIs(t, s.Delete(ctx, author.ID, author.ID), apperror.ErrConflict)
	_, err = s.Get(ctx, author.ID)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, guest.ID, guest.ID))
	var left int
	require.NoError(t, db.GetContext(ctx, &left, db.Rebind(`SELECT
		(SELECT COUNT(*) FROM registrations WHERE user_id=?) + (SELECT COUNT(*) FROM comments WHERE user_id=?)`),
		guest.ID, guest.ID))
	require.Zero(t, left)
}

func TestResolveCachesUntilStateChanges(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	u := signup(t, s, "ada@example.com")

	first, err := s.Resolve(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, first.IsConnected)

	cached, err := s.Resolve(ctx, u.ID)
	require.NoError(t, err)
	require.Same(t, first, cached)

	_, err = s.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	fresh, err := s.Resolve(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, fresh.IsConnected)

	_, err = s.Resolve(ctx, "")
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestList(t *testing.T) {
	s, _ := newTestService(t)
	signup(t, s, "a@example.com")
	signup(t, s, "b@example.com")

	users, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
}
