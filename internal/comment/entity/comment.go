package entity

import "time"

// Comment is free text a user attaches to an event. Editing keeps CreatedAt
// and sets EditedAt.
type Comment struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	EventID   string     `json:"eventId"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

// BodyCommand is the payload of add and edit.
type BodyCommand struct {
	Body string `json:"body" validate:"notblank,max=2000"`
}
