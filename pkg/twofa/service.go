package twofa

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/arden28/guardian/pkg/notification"
	"github.com/arden28/guardian/pkg/utils"
)

var (
	// ErrMissingPhone indicates sms enrollment without a phone number.
	ErrMissingPhone = errors.New("phone number required for sms method")
	// ErrNotEnabled indicates the account has no enabled 2FA setting.
	ErrNotEnabled = errors.New("2FA is not enabled")
	// ErrMethodMismatch indicates the supplied method differs from the
	// account's enrolled method.
	ErrMethodMismatch = errors.New("2FA method does not match enrollment")
	// ErrInvalidPasscode indicates the supplied code did not verify.
	ErrInvalidPasscode = errors.New("invalid passcode")
	// ErrRateLimited indicates too many code sends inside the window.
	ErrRateLimited = errors.New("too many code requests")
)

// Config tunes the two-factor engine. Zero values fall back to the defaults
// the original deployment shipped with.
type Config struct {
	CodeDigits    int           // default 6
	CodeTTL       time.Duration // default 5m
	SendLimit     int           // default 5 sends
	SendWindow    time.Duration // per default 60s window
	MaxAttempts   int           // default 5 failed verifies per challenge
	TOTPIssuer    string        // default "guardian"
	TOTPDigits    int           // default 6
	TOTPPeriod    int           // seconds, default 30
	TOTPSkewSteps int           // default 1 step of clock skew either way
}

func (c *Config) applyDefaults() {
	if c.CodeDigits <= 0 {
		c.CodeDigits = 6
	}
	if c.CodeTTL <= 0 {
		c.CodeTTL = 5 * time.Minute
	}
	if c.SendLimit <= 0 {
		c.SendLimit = 5
	}
	if c.SendWindow <= 0 {
		c.SendWindow = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.TOTPIssuer == "" {
		c.TOTPIssuer = "guardian"
	}
	if c.TOTPDigits <= 0 {
		c.TOTPDigits = 6
	}
	if c.TOTPPeriod <= 0 {
		c.TOTPPeriod = 30
	}
	if c.TOTPSkewSteps <= 0 {
		c.TOTPSkewSteps = 1
	}
}

// Service drives the per-account two-factor state machine:
// Disabled -> Enabled -> ChallengeIssued -> (verified) -> Enabled.
type Service struct {
	settings   SettingsRepository
	challenges *ChallengeStore
	notifier   *notification.Manager
	config     Config
	now        func() time.Time
}

func NewService(settings SettingsRepository, challenges *ChallengeStore, notifier *notification.Manager, config Config) *Service {
	config.applyDefaults()
	return &Service{
		settings:   settings,
		challenges: challenges,
		notifier:   notifier,
		config:     config,
		now:        time.Now,
	}
}

// IsEnabled reports whether the account has an enabled 2FA setting.
func (s *Service) IsEnabled(ctx context.Context, accountID uuid.UUID) (bool, error) {
	setting, err := s.settings.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load 2FA setting: %w", err)
	}
	return setting.IsEnabled, nil
}

// Setting returns the account's 2FA setting.
func (s *Service) Setting(ctx context.Context, accountID uuid.UUID) (Setting, error) {
	return s.settings.GetByAccountID(ctx, accountID)
}

// Enable enrolls the account in 2FA with the given method. For sms a phone
// number is required; for totp a fresh secret is generated and returned in
// the enrollment descriptor for client-side provisioning.
func (s *Service) Enable(ctx context.Context, accountID uuid.UUID, accountEmail string, method Method, phone string) (Enrollment, error) {
	if _, err := ParseMethod(string(method)); err != nil {
		return Enrollment{}, err
	}
	if method == MethodSMS && phone == "" {
		return Enrollment{}, ErrMissingPhone
	}

	setting := Setting{
		AccountID:   accountID,
		Method:      method,
		PhoneNumber: phone,
		IsEnabled:   true,
	}
	enrollment := Enrollment{Method: method}

	if method == MethodTOTP {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.config.TOTPIssuer,
			AccountName: accountEmail,
			Period:      uint(s.config.TOTPPeriod),
			Digits:      otpDigits(s.config.TOTPDigits),
		})
		if err != nil {
			return Enrollment{}, fmt.Errorf("failed to generate totp secret: %w", err)
		}
		setting.Secret = key.Secret()
		enrollment.Secret = key.Secret()
		enrollment.Issuer = s.config.TOTPIssuer
		enrollment.Digits = s.config.TOTPDigits
		enrollment.Period = s.config.TOTPPeriod
		enrollment.URL = key.URL()
	}

	if _, err := s.settings.Upsert(ctx, setting); err != nil {
		return Enrollment{}, fmt.Errorf("failed to persist 2FA setting: %w", err)
	}

	slog.Info("2FA enabled", "accountId", accountID, "method", method)
	return enrollment, nil
}

// SendCode issues a fresh numeric challenge and dispatches it over the
// enrolled channel. A new send supersedes the prior challenge. TOTP needs no
// server-issued code, so the call short-circuits.
func (s *Service) SendCode(ctx context.Context, accountID uuid.UUID, accountEmail string) error {
	setting, err := s.settings.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			return ErrNotEnabled
		}
		return fmt.Errorf("failed to load 2FA setting: %w", err)
	}
	if !setting.IsEnabled {
		return ErrNotEnabled
	}
	if setting.Method == MethodTOTP {
		return nil
	}

	allowed, err := s.challenges.AllowSend(ctx, accountID, s.config.SendLimit, s.config.SendWindow)
	if err != nil {
		return err
	}
	if !allowed {
		slog.Warn("2FA send rate limited", "accountId", accountID)
		return ErrRateLimited
	}

	code, err := utils.GenerateNumericCode(s.config.CodeDigits)
	if err != nil {
		return fmt.Errorf("failed to generate passcode: %w", err)
	}
	if err := s.challenges.Issue(ctx, accountID, code, s.config.CodeTTL); err != nil {
		return err
	}

	data := notification.NotificationData{
		Data: map[string]string{
			"Code":      code,
			"ExpiresIn": s.config.CodeTTL.String(),
		},
	}

	switch setting.Method {
	case MethodEmail:
		data.To = accountEmail
		err = s.notifier.Send(notification.TwofaCodeNotice, notification.EmailSystem, data)
	case MethodSMS:
		data.To = setting.PhoneNumber
		err = s.notifier.Send(notification.TwofaCodeNotice, notification.SMSSystem, data)
	}
	if err != nil {
		return fmt.Errorf("failed to send 2FA passcode: %w", err)
	}

	return nil
}

// VerifyCode checks the supplied code against the live challenge (email/sms)
// or the time-derived value (totp). A consumed challenge cannot verify twice;
// exceeding the attempt budget invalidates the challenge outright.
func (s *Service) VerifyCode(ctx context.Context, accountID uuid.UUID, method Method, code string) error {
	setting, err := s.settings.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			return ErrNotEnabled
		}
		return fmt.Errorf("failed to load 2FA setting: %w", err)
	}
	if !setting.IsEnabled {
		return ErrNotEnabled
	}
	if method != setting.Method {
		return ErrMethodMismatch
	}

	switch setting.Method {
	case MethodTOTP:
		valid, err := totp.ValidateCustom(code, setting.Secret, s.now().UTC(), totp.ValidateOpts{
			Period:    uint(s.config.TOTPPeriod),
			Skew:      uint(s.config.TOTPSkewSteps),
			Digits:    otpDigits(s.config.TOTPDigits),
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return fmt.Errorf("failed to validate totp passcode: %w", err)
		}
		if !valid {
			return ErrInvalidPasscode
		}
	default:
		// Expiry is checked first: a missing key means the challenge
		// aged out or was superseded, and that fails closed.
		expected, err := s.challenges.Code(ctx, accountID)
		if err != nil {
			return err
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) != 1 {
			attempts, recErr := s.challenges.RecordFailure(ctx, accountID)
			if recErr != nil {
				slog.Error("Failed to record 2FA attempt", "accountId", accountID, "err", recErr)
			} else if attempts >= int64(s.config.MaxAttempts) {
				if invErr := s.challenges.Invalidate(ctx, accountID); invErr != nil {
					slog.Error("Failed to invalidate challenge", "accountId", accountID, "err", invErr)
				}
			}
			return ErrInvalidPasscode
		}
		if err := s.challenges.Invalidate(ctx, accountID); err != nil {
			return err
		}
	}

	if err := s.settings.StampVerified(ctx, accountID, s.now()); err != nil {
		slog.Error("Failed to stamp 2FA verification", "accountId", accountID, "err", err)
	}
	return nil
}

// Disable clears the account's 2FA enrollment. Idempotent.
func (s *Service) Disable(ctx context.Context, accountID uuid.UUID) error {
	if err := s.settings.Disable(ctx, accountID); err != nil {
		return fmt.Errorf("failed to disable 2FA: %w", err)
	}
	if err := s.challenges.Invalidate(ctx, accountID); err != nil {
		slog.Error("Failed to clear pending challenge", "accountId", accountID, "err", err)
	}
	return nil
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func otpDigits(d int) otp.Digits {
	if d == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}
