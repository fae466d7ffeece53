package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role is an authorization role. The (name, guard) pair is unique; the same
// name under different guards names two unrelated roles.
type Role struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Guard     string    `json:"guard"`
	CreatedAt time.Time `json:"created_at"`
}

// Permission is an authorization permission, scoped by guard the same way
// roles are.
type Permission struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Guard     string    `json:"guard"`
	CreatedAt time.Time `json:"created_at"`
}
