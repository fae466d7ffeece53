package guardian

import (
	"context"
	"log/slog"

	"github.com/arden28/guardian/pkg/login"
)

// LoginEvent describes one successful authentication.
type LoginEvent struct {
	Account login.Account
	// Method is how the account authenticated: "password", "2fa", or the
	// social provider name.
	Method string
	// Created is true when a social login created the account.
	Created bool
}

// LoginHook runs synchronously after a successful login. Hook errors are
// logged and never fail the login itself.
type LoginHook interface {
	OnLogin(ctx context.Context, event LoginEvent) error
}

// LoggingHook records every successful login to the structured log.
type LoggingHook struct{}

func (LoggingHook) OnLogin(_ context.Context, event LoginEvent) error {
	slog.Info("User logged in",
		"accountId", event.Account.ID,
		"method", event.Method,
		"created", event.Created)
	return nil
}
