package twofa

import (
	"errors"
	"fmt"
)

// Method is a closed set of supported second factors.
type Method string

const (
	MethodEmail Method = "email"
	MethodSMS   Method = "sms"
	MethodTOTP  Method = "totp"
)

// ErrInvalidMethod indicates an unknown 2FA method.
var ErrInvalidMethod = errors.New("invalid 2FA method")

// ParseMethod validates a method string against the closed set.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodEmail, MethodSMS, MethodTOTP:
		return Method(s), nil
	default:
		return "", fmt.Errorf("%w: %q, must be one of: %s, %s, %s",
			ErrInvalidMethod, s, MethodEmail, MethodSMS, MethodTOTP)
	}
}
