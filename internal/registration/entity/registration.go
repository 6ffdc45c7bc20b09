package entity

import "time"

// Registration records that a user intends to attend an event. A user holds
// at most one registration per event.
type Registration struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	EventID   string    `json:"eventId"`
	CreatedAt time.Time `json:"createdAt"`
}
