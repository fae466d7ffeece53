package login

import (
	"time"

	"github.com/google/uuid"
)

// Account is the principal entity this core authenticates. It is owned by the
// backing account store; this package never physically deletes one.
type Account struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	PasswordHash   string    `json:"-"`
	IsActive       bool      `json:"is_active"`
	SocialProvider string    `json:"social_provider,omitempty"`
	SocialID       string    `json:"social_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateAccountParams are the fields needed to create an account.
type CreateAccountParams struct {
	Email          string
	Name           string
	PasswordHash   string
	IsActive       bool
	SocialProvider string
	SocialID       string
}
