package domain

import "time"

// AuthorizationCode models a one-time credential bound to a single user.
// A code is consumable at most once; consumption atomically revokes it.
type AuthorizationCode struct {
	ID        int64
	UserID    int64
	Code      string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}
