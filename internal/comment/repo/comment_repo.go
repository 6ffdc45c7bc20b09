package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/comment/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
)

// CommentRepo provides data access for the comments table.
type CommentRepo struct {
	db *sqlx.DB
}

func NewCommentRepo(db *sqlx.DB) *CommentRepo { return &CommentRepo{db: db} }

// EnsureTable creates the comments table if not exists (idempotent).
func (r *CommentRepo) EnsureTable(ctx context.Context) error {
	return database.EnsureStatements(ctx, r.db, []string{
		`CREATE TABLE IF NOT EXISTS comments (
  id VARCHAR(32) PRIMARY KEY,
  user_id VARCHAR(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  event_id VARCHAR(32) NOT NULL REFERENCES events(id) ON DELETE CASCADE,
  body TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  edited_at BIGINT
)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_event_created ON comments(event_id, created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_user ON comments(user_id)`,
	})
}

type commentRow struct {
	ID        string        `db:"id"`
	UserID    string        `db:"user_id"`
	EventID   string        `db:"event_id"`
	Body      string        `db:"body"`
	CreatedAt int64         `db:"created_at"`
	EditedAt  sql.NullInt64 `db:"edited_at"`
}

const commentColumns = `id, user_id, event_id, body, created_at, edited_at`

func (row commentRow) toEntity() *entity.Comment {
	c := &entity.Comment{
		ID:        row.ID,
		UserID:    row.UserID,
		EventID:   row.EventID,
		Body:      row.Body,
		CreatedAt: database.FromMillis(row.CreatedAt),
	}
	if row.EditedAt.Valid {
		t := database.FromMillis(row.EditedAt.Int64)
		c.EditedAt = &t
	}
	return c
}

func (r *CommentRepo) Create(ctx context.Context, c *entity.Comment) error {
	q := r.db.Rebind(`INSERT INTO comments (id, user_id, event_id, body, created_at) VALUES (?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, c.ID, c.UserID, c.EventID, c.Body, database.ToMillis(c.CreatedAt))
	return err
}

func (r *CommentRepo) GetByID(ctx context.Context, id string) (*entity.Comment, error) {
	var row commentRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+commentColumns+` FROM comments WHERE id=?`), id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// UpdateBody rewrites the body of a comment owned by userID and stamps
// edited_at. It returns sql.ErrNoRows when no such comment exists.
func (r *CommentRepo) UpdateBody(ctx context.Context, id, userID, body string, editedAt time.Time) (*entity.Comment, error) {
	q := r.db.Rebind(`UPDATE comments SET body=?, edited_at=? WHERE id=? AND user_id=? RETURNING ` + commentColumns)
	var row commentRow
	if err := r.db.GetContext(ctx, &row, q, body, database.ToMillis(editedAt), id, userID); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// Delete removes a comment owned by userID and reports the affected rows.
func (r *CommentRepo) Delete(ctx context.Context, id, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM comments WHERE id=? AND user_id=?`), id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByEvent returns the comments of an event, oldest first.
func (r *CommentRepo) ListByEvent(ctx context.Context, eventID string) ([]*entity.Comment, error) {
	q := r.db.Rebind(`SELECT ` + commentColumns + ` FROM comments WHERE event_id=? ORDER BY created_at, id`)
	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, q, eventID); err != nil {
		return nil, err
	}
	out := make([]*entity.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}
