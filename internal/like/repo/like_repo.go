package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/like/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
)

// LikeRepo provides data access for the likes table.
type LikeRepo struct {
	db *sqlx.DB
}

func NewLikeRepo(db *sqlx.DB) *LikeRepo { return &LikeRepo{db: db} }

// EnsureTable creates the likes table if not exists (idempotent).
func (r *LikeRepo) EnsureTable(ctx context.Context) error {
	return database.EnsureStatements(ctx, r.db, []string{
		`CREATE TABLE IF NOT EXISTS likes (
  id VARCHAR(32) PRIMARY KEY,
  user_id VARCHAR(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  event_id VARCHAR(32) NOT NULL REFERENCES events(id) ON DELETE CASCADE,
  created_at BIGINT NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_likes_user_event ON likes(user_id, event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_likes_event ON likes(event_id)`,
	})
}

// Toggle deletes the (user, event) like when present and inserts l otherwise,
// in one transaction. It returns whether the pair is liked afterwards.
func (r *LikeRepo) Toggle(ctx context.Context, l *entity.Like) (bool, error) {
	var liked bool
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM likes WHERE user_id=? AND event_id=?`), l.UserID, l.EventID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			liked = false
			return nil
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO likes (id, user_id, event_id, created_at) VALUES (?, ?, ?, ?)`),
			l.ID, l.UserID, l.EventID, database.ToMillis(l.CreatedAt))
		if err != nil {
			return err
		}
		liked = true
		return nil
	})
	return liked, err
}

func (r *LikeRepo) CountByEvent(ctx context.Context, eventID string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM likes WHERE event_id=?`), eventID)
	return n, err
}

func (r *LikeRepo) Exists(ctx context.Context, userID, eventID string) (bool, error) {
	var n int
	q := r.db.Rebind(`SELECT COUNT(*) FROM likes WHERE user_id=? AND event_id=?`)
	if err := r.db.GetContext(ctx, &n, q, userID, eventID); err != nil {
		return false, err
	}
	return n > 0, nil
}
