package domain

import "time"

// User represents an end user known to the host CMS directory.
type User struct {
	ID        int64
	Email     string
	Name      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
