package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
)

// ErrAuthorsEvents is returned by DeleteCascade when the user still owns events.
var ErrAuthorsEvents = errors.New("user still authors events")

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	return database.EnsureStatements(ctx, r.db, []string{
		`CREATE TABLE IF NOT EXISTS users (
  id VARCHAR(32) PRIMARY KEY,
  google_id VARCHAR(255),
  first_name VARCHAR(255) NOT NULL,
  last_name VARCHAR(255) NOT NULL,
  email VARCHAR(320) NOT NULL,
  password_hash TEXT,
  is_connected BOOLEAN NOT NULL DEFAULT FALSE,
  last_connection BIGINT,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_email ON users(email)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_google_id ON users(google_id)`,
	})
}

type userRow struct {
	ID             string         `db:"id"`
	GoogleID       sql.NullString `db:"google_id"`
	FirstName      string         `db:"first_name"`
	LastName       string         `db:"last_name"`
	Email          string         `db:"email"`
	PasswordHash   sql.NullString `db:"password_hash"`
	IsConnected    bool           `db:"is_connected"`
	LastConnection sql.NullInt64  `db:"last_connection"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
}

const userColumns = `id, google_id, first_name, last_name, email, password_hash,
	is_connected, last_connection, created_at, updated_at`

func (row userRow) toEntity() *entity.User {
	u := &entity.User{
		ID:          row.ID,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
		Email:       row.Email,
		IsConnected: row.IsConnected,
		CreatedAt:   database.FromMillis(row.CreatedAt),
		UpdatedAt:   database.FromMillis(row.UpdatedAt),
	}
	if row.GoogleID.Valid {
		g := row.GoogleID.String
		u.GoogleID = &g
	}
	if row.PasswordHash.Valid {
		h := row.PasswordHash.String
		u.PasswordHash = &h
	}
	if row.LastConnection.Valid {
		t := database.FromMillis(row.LastConnection.Int64)
		u.LastConnection = &t
	}
	return u
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Create inserts a new user row. The caller assigns ID and timestamps.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	q := r.db.Rebind(`INSERT INTO users (id, google_id, first_name, last_name, email, password_hash,
		is_connected, last_connection, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	var last sql.NullInt64
	if u.LastConnection != nil {
		last = sql.NullInt64{Int64: database.ToMillis(*u.LastConnection), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		u.ID, nullString(u.GoogleID), u.FirstName, u.LastName, u.Email, nullString(u.PasswordHash),
		u.IsConnected, last, database.ToMillis(u.CreatedAt), database.ToMillis(u.UpdatedAt))
	return err
}

func (r *UserRepo) getBy(ctx context.Context, column, value string) (*entity.User, error) {
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + `=?`)
	var row userRow
	if err := r.db.GetContext(ctx, &row, q, value); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// GetByID fetches a user or returns sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail expects an already normalized (lower case) email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepo) GetByGoogleID(ctx context.Context, googleID string) (*entity.User, error) {
	return r.getBy(ctx, "google_id", googleID)
}

// List returns every user ordered by creation time.
func (r *UserRepo) List(ctx context.Context) ([]*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	out := make([]*entity.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// LinkGoogleID attaches a federated identity to an existing account.
func (r *UserRepo) LinkGoogleID(ctx context.Context, id, googleID string, at time.Time) error {
	q := r.db.Rebind(`UPDATE users SET google_id=?, updated_at=? WHERE id=?`)
	res, err := r.db.ExecContext(ctx, q, googleID, database.ToMillis(at), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetConnected flips the connection flag. lastConnection is only moved on connect.
func (r *UserRepo) SetConnected(ctx context.Context, id string, connected bool, at time.Time) error {
	ms := database.ToMillis(at)
	var (
		q    string
		args []any
	)
	if connected {
		q = `UPDATE users SET is_connected=?, last_connection=?, updated_at=? WHERE id=?`
		args = []any{true, ms, ms, id}
	} else {
		q = `UPDATE users SET is_connected=?, updated_at=? WHERE id=?`
		args = []any{false, ms, id}
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeletedRows reports what DeleteCascade removed along with the user.
type DeletedRows struct {
	Registrations int64
	Likes         int64
	Comments      int64
}

// DeleteCascade removes the user's registrations, likes and comments and then
// the user, in one transaction. It refuses with ErrAuthorsEvents while the
// user owns events and returns sql.ErrNoRows when the user does not exist.
func (r *UserRepo) DeleteCascade(ctx context.Context, id string) (DeletedRows, error) {
	var out DeletedRows
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM users WHERE id=?`), id); err != nil {
			return err
		}
		if exists == 0 {
			return sql.ErrNoRows
		}
		var owned int
		if err := tx.GetContext(ctx, &owned, tx.Rebind(`SELECT COUNT(*) FROM events WHERE author_id=?`), id); err != nil {
			return err
		}
		if owned > 0 {
			return ErrAuthorsEvents
		}
		for _, step := range []struct {
			table string
			n     *int64
		}{
			{"comments", &out.Comments},
			{"likes", &out.Likes},
			{"registrations", &out.Registrations},
		} {
			res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+step.table+` WHERE user_id=?`), id)
			if err != nil {
				return err
			}
			if *step.n, err = res.RowsAffected(); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id=?`), id)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
	if err != nil {
		return DeletedRows{}, err
	}
	return out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
