package entity

import "time"

// User is a row in the `users` table. GoogleID is set for accounts created or
// linked through federated login; PasswordHash is nil for those that never
// set a password.
type User struct {
	ID             string     `json:"id"`
	GoogleID       *string    `json:"googleId,omitempty"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Email          string     `json:"email"`
	PasswordHash   *string    `json:"-"`
	IsConnected    bool       `json:"isConnected"`
	LastConnection *time.Time `json:"lastConnection,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// SignupCommand creates a password account. Password may be empty for
// accounts that will only sign in through a federated provider.
type SignupCommand struct {
	FirstName string `json:"firstName" validate:"notblank,max=255"`
	LastName  string `json:"lastName" validate:"notblank,max=255"`
	Email     string `json:"email" validate:"required,email,max=320"`
	Password  string `json:"password" validate:"omitempty,min=8,max=72"`
}

// FederatedCommand carries the identity asserted by Google sign-in.
type FederatedCommand struct {
	GoogleID  string `json:"googleId" validate:"notblank,max=255"`
	Email     string `json:"email" validate:"required,email,max=320"`
	FirstName string `json:"firstName" validate:"max=255"`
	LastName  string `json:"lastName" validate:"max=255"`
}
