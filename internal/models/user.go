// internal/models/user.go
package models

import "github.com/google/uuid"

// User is the lightweight profile attached to a live connection. It is
// created when the client submits its profile and lives exactly as long as
// the connection; nothing about it is persisted.
type User struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Age    int       `json:"age,omitempty"`
	Gender string    `json:"gender,omitempty"`
}
