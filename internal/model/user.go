package model

import "time"

// User is the signed-in account. The client holds a read-only copy for the
// lifetime of a session.
type User struct {
	ID        ID         `json:"id"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}
