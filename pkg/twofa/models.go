package twofa

import (
	"time"

	"github.com/google/uuid"
)

// Setting is the one-to-one 2FA configuration for an account. The TOTP secret
// never serializes outward.
type Setting struct {
	AccountID      uuid.UUID  `json:"account_id"`
	Method         Method     `json:"method"`
	Secret         string     `json:"-"`
	PhoneNumber    string     `json:"phone_number,omitempty"`
	IsEnabled      bool       `json:"is_enabled"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Enrollment is returned from Enable so a TOTP client can provision itself.
type Enrollment struct {
	Method Method `json:"method"`
	Secret string `json:"secret,omitempty"`
	Issuer string `json:"issuer,omitempty"`
	Digits int    `json:"digits,omitempty"`
	Period int    `json:"period,omitempty"`
	URL    string `json:"url,omitempty"`
}
