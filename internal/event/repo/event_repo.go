package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/event/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
)

// EventRepo provides data access for the events table using sqlx.
type EventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

// EnsureTable creates the events table if not exists (idempotent).
// users must already exist.
func (r *EventRepo) EnsureTable(ctx context.Context) error {
	return database.EnsureStatements(ctx, r.db, []string{
		`CREATE TABLE IF NOT EXISTS events (
  id VARCHAR(32) PRIMARY KEY,
  name VARCHAR(255) NOT NULL,
  description TEXT NOT NULL,
  location VARCHAR(255) NOT NULL,
  event_date BIGINT NOT NULL,
  category VARCHAR(100) NOT NULL,
  poster TEXT NOT NULL DEFAULT '',
  views BIGINT NOT NULL DEFAULT 0 CHECK (views >= 0),
  author_id VARCHAR(32) NOT NULL REFERENCES users(id),
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_events_date_id ON events(event_date, id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_author ON events(author_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_category ON events(category)`,
	})
}

type eventRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Location    string `db:"location"`
	EventDate   int64  `db:"event_date"`
	Category    string `db:"category"`
	Poster      string `db:"poster"`
	Views       int64  `db:"views"`
	AuthorID    string `db:"author_id"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

const eventColumns = `id, name, description, location, event_date, category, poster,
	views, author_id, created_at, updated_at`

func (row eventRow) toEntity() *entity.Event {
	return &entity.Event{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Location:    row.Location,
		Date:        database.FromMillis(row.EventDate),
		Category:    row.Category,
		Poster:      row.Poster,
		Views:       row.Views,
		AuthorID:    row.AuthorID,
		CreatedAt:   database.FromMillis(row.CreatedAt),
		UpdatedAt:   database.FromMillis(row.UpdatedAt),
	}
}

// Create inserts a new event. Views always start at zero.
func (r *EventRepo) Create(ctx context.Context, e *entity.Event) error {
	q := r.db.Rebind(`INSERT INTO events (id, name, description, location, event_date, category, poster,
		views, author_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.Name, e.Description, e.Location, database.ToMillis(e.Date), e.Category, e.Poster,
		e.AuthorID, database.ToMillis(e.CreatedAt), database.ToMillis(e.UpdatedAt))
	return err
}

// GetByID fetches an event without touching its view counter.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	q := r.db.Rebind(`SELECT ` + eventColumns + ` FROM events WHERE id=?`)
	var row eventRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// IncrementViews bumps the counter and returns the event as stored after the
// increment, in a single statement.
func (r *EventRepo) IncrementViews(ctx context.Context, id string) (*entity.Event, error) {
	q := r.db.Rebind(`UPDATE events SET views = views + 1 WHERE id=? RETURNING ` + eventColumns)
	var row eventRow
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *EventRepo) Exists(ctx context.Context, id string) (bool, error) {
	q := r.db.Rebind(`SELECT COUNT(*) FROM events WHERE id=?`)
	var n int
	if err := r.db.GetContext(ctx, &n, q, id); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cursor is the (date, id) position of the last event of a page.
type Cursor struct {
	DateMillis int64
	ID         string
}

// Page returns up to limit events matching f, ordered by date then id,
// strictly after the cursor when one is given.
func (r *EventRepo) Page(ctx context.Context, f entity.Filter, after *Cursor, limit int) ([]*entity.Event, *Cursor, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "category=?")
		args = append(args, f.Category)
	}
	if f.AuthorID != "" {
		where = append(where, "author_id=?")
		args = append(args, f.AuthorID)
	}
	if f.From != nil {
		where = append(where, "event_date>=?")
		args = append(args, database.ToMillis(*f.From))
	}
	if f.To != nil {
		where = append(where, "event_date<=?")
		args = append(args, database.ToMillis(*f.To))
	}
	if after != nil {
		where = append(where, "(event_date>? OR (event_date=? AND id>?))")
		args = append(args, after.DateMillis, after.DateMillis, after.ID)
	}
	q := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY event_date, id LIMIT ?`
	args = append(args, limit)

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, nil, err
	}
	out := make([]*entity.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	if len(rows) < limit {
		return out, nil, nil
	}
	last := rows[len(rows)-1]
	return out, &Cursor{DateMillis: last.EventDate, ID: last.ID}, nil
}

// Update writes the mutable fields of e. It only matches while e.AuthorID
// still owns the row and returns sql.ErrNoRows otherwise.
func (r *EventRepo) Update(ctx context.Context, e *entity.Event) (*entity.Event, error) {
	q := r.db.Rebind(`UPDATE events SET name=?, description=?, location=?, event_date=?, category=?,
		poster=?, updated_at=? WHERE id=? AND author_id=? RETURNING ` + eventColumns)
	var row eventRow
	err := r.db.GetContext(ctx, &row, q,
		e.Name, e.Description, e.Location, database.ToMillis(e.Date), e.Category,
		e.Poster, database.ToMillis(e.UpdatedAt), e.ID, e.AuthorID)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// DeleteCascade removes comments, likes and registrations of the event and
// then the event itself in one transaction. sql.ErrNoRows means the event
// was already gone and nothing was removed.
func (r *EventRepo) DeleteCascade(ctx context.Context, id, authorID string) (entity.Cascade, error) {
	var out entity.Cascade
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, step := range []struct {
			table string
			n     *int64
		}{
			{"comments", &out.Comments},
			{"likes", &out.Likes},
			{"registrations", &out.Registrations},
		} {
			res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+step.table+` WHERE event_id=?`), id)
			if err != nil {
				return err
			}
			if *step.n, err = res.RowsAffected(); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM events WHERE id=? AND author_id=?`), id, authorID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return entity.Cascade{}, err
	}
	return out, nil
}

// Stats reads the view counter and child counts in one statement.
func (r *EventRepo) Stats(ctx context.Context, id string) (*entity.Stats, error) {
	q := r.db.Rebind(`SELECT e.id, e.views,
		(SELECT COUNT(*) FROM likes l WHERE l.event_id = e.id) AS likes,
		(SELECT COUNT(*) FROM registrations g WHERE g.event_id = e.id) AS registrations,
		(SELECT COUNT(*) FROM comments c WHERE c.event_id = e.id) AS comments
		FROM events e WHERE e.id=?`)
	var s entity.Stats
	if err := r.db.GetContext(ctx, &s, q, id); err != nil {
		return nil, err
	}
	return &s, nil
}
