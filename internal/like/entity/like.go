package entity

import "time"

// Like is a user's endorsement of an event. A user holds at most one like
// per event; toggling removes it again.
type Like struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	EventID   string    `json:"eventId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToggleResult reports the state after a toggle and the event's like count.
type ToggleResult struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"count"`
}
