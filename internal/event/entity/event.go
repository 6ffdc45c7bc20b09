package entity

import "time"

// Event is a row in the `events` table. AuthorID never changes after creation.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`
	Category    string    `json:"category"`
	Poster      string    `json:"poster,omitempty"`
	Views       int64     `json:"views"`
	AuthorID    string    `json:"authorId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateCommand holds the fields of a new event. Date accepts RFC3339 or
// YYYY-MM-DD.
type CreateCommand struct {
	Name        string `json:"name" validate:"notblank,max=255"`
	Description string `json:"description" validate:"notblank,max=4000"`
	Location    string `json:"location" validate:"notblank,max=255"`
	Date        string `json:"date" validate:"notblank"`
	Category    string `json:"category" validate:"notblank,max=100"`
	Poster      string `json:"poster" validate:"omitempty,max=2048"`
}

// UpdateCommand is a partial update; nil fields are left unchanged.
type UpdateCommand struct {
	Name        *string `json:"name" validate:"omitnil,notblank,max=255"`
	Description *string `json:"description" validate:"omitnil,notblank,max=4000"`
	Location    *string `json:"location" validate:"omitnil,notblank,max=255"`
	Date        *string `json:"date" validate:"omitnil,notblank"`
	Category    *string `json:"category" validate:"omitnil,notblank,max=100"`
	Poster      *string `json:"poster" validate:"omitnil,max=2048"`
}

// Filter narrows List. Zero values match everything; Limit <= 0 means no limit.
type Filter struct {
	Category string
	AuthorID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// Stats is the engagement summary used for response shaping.
type Stats struct {
	EventID       string `json:"eventId" db:"id"`
	Views         int64  `json:"views" db:"views"`
	Likes         int64  `json:"likes" db:"likes"`
	Registrations int64  `json:"registrations" db:"registrations"`
	Comments      int64  `json:"comments" db:"comments"`
}

// Cascade counts the child rows removed together with an event.
type Cascade struct {
	Registrations int64
	Likes         int64
	Comments      int64
}
