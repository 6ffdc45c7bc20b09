package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/registration/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
)

// RegistrationRepo provides data access for the registrations table.
type RegistrationRepo struct {
	db *sqlx.DB
}

func NewRegistrationRepo(db *sqlx.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

// EnsureTable creates the registrations table if not exists (idempotent).
// The unique index on (user_id, event_id) is what makes concurrent
// registrations for the same pair resolve to a single row.
func (r *RegistrationRepo) EnsureTable(ctx context.Context) error {
	return database.EnsureStatements(ctx, r.db, []string{
		`CREATE TABLE IF NOT EXISTS registrations (
  id VARCHAR(32) PRIMARY KEY,
  user_id VARCHAR(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  event_id VARCHAR(32) NOT NULL REFERENCES events(id) ON DELETE CASCADE,
  created_at BIGINT NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_registrations_user_event ON registrations(user_id, event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_event ON registrations(event_id, created_at)`,
	})
}

type registrationRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	EventID   string `db:"event_id"`
	CreatedAt int64  `db:"created_at"`
}

func (row registrationRow) toEntity() *entity.Registration {
	return &entity.Registration{
		ID:        row.ID,
		UserID:    row.UserID,
		EventID:   row.EventID,
		CreatedAt: database.FromMillis(row.CreatedAt),
	}
}

func (r *RegistrationRepo) Create(ctx context.Context, reg *entity.Registration) error {
	q := r.db.Rebind(`INSERT INTO registrations (id, user_id, event_id, created_at) VALUES (?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, reg.ID, reg.UserID, reg.EventID, database.ToMillis(reg.CreatedAt))
	return err
}

// Delete removes the pair and reports how many rows went away (0 or 1).
func (r *RegistrationRepo) Delete(ctx context.Context, userID, eventID string) (int64, error) {
	q := r.db.Rebind(`DELETE FROM registrations WHERE user_id=? AND event_id=?`)
	res, err := r.db.ExecContext(ctx, q, userID, eventID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RegistrationRepo) list(ctx context.Context, column, value string) ([]*entity.Registration, error) {
	q := r.db.Rebind(`SELECT id, user_id, event_id, created_at FROM registrations
		WHERE ` + column + `=? ORDER BY created_at, id`)
	var rows []registrationRow
	if err := r.db.SelectContext(ctx, &rows, q, value); err != nil {
		return nil, err
	}
	out := make([]*entity.Registration, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// ListByEvent returns the registrants of an event, oldest first.
func (r *RegistrationRepo) ListByEvent(ctx context.Context, eventID string) ([]*entity.Registration, error) {
	return r.list(ctx, "event_id", eventID)
}

// ListByUser returns the events a user registered for, oldest first.
func (r *RegistrationRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Registration, error) {
	return r.list(ctx, "user_id", userID)
}
