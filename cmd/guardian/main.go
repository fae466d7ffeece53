package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/arden28/guardian/pkg/config"
	"github.com/arden28/guardian/pkg/guardian"
	"github.com/arden28/guardian/pkg/impersonate"
	"github.com/arden28/guardian/pkg/login"
	"github.com/arden28/guardian/pkg/notification"
	"github.com/arden28/guardian/pkg/rbac"
	"github.com/arden28/guardian/pkg/social"
	"github.com/arden28/guardian/pkg/token"
	"github.com/arden28/guardian/pkg/twofa"

	"github.com/google/uuid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Error("Failed to create database pool", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to redis", "err", err)
		os.Exit(1)
	}

	notifier, err := notification.DefaultManager(cfg.Server.BaseURL,
		notification.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			TLS:      cfg.Email.TLS,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		},
		notification.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.From,
		})
	if err != nil {
		slog.Error("Failed to build notification manager", "err", err)
		os.Exit(1)
	}

	accounts := login.NewPostgresAccountRepository(pool)
	hasher := login.NewBcryptHasher(0)
	loginService := login.NewService(accounts, hasher)

	tokenService := token.NewService(cfg.Jwt.Secret, cfg.Jwt.Issuer, cfg.Jwt.Audience, rdb)

	resetService := login.NewPasswordResetService(accounts, hasher, rdb, notifier, tokenService,
		login.PasswordResetConfig{TokenTTL: time.Duration(cfg.PasswordReset.TokenTTLSecs) * time.Second})

	secretCipher, err := twofa.NewSecretCipher(cfg.TwoFactor.SecretKey)
	if err != nil {
		slog.Error("Failed to build 2FA secret cipher", "err", err)
		os.Exit(1)
	}

	twofaService := twofa.NewService(
		twofa.NewPostgresSettingsRepository(pool, secretCipher),
		twofa.NewChallengeStore(rdb),
		notifier,
		twofa.Config{
			CodeDigits:  cfg.TwoFactor.CodeDigits,
			CodeTTL:     time.Duration(cfg.TwoFactor.CodeTTLSecs) * time.Second,
			SendLimit:   cfg.TwoFactor.SendLimit,
			SendWindow:  time.Duration(cfg.TwoFactor.SendWindow) * time.Second,
			MaxAttempts: cfg.TwoFactor.MaxAttempts,
			TOTPIssuer:  cfg.TwoFactor.TOTPIssuer,
			TOTPDigits:  cfg.TwoFactor.TOTPDigits,
			TOTPPeriod:  cfg.TwoFactor.TOTPPeriod,
		})

	rbacService := rbac.NewService(rbac.NewPostgresStore(pool), cfg.Roles.GuardList())

	socialService := social.NewService(accounts, rbacService, cfg.Roles.DefaultRole, cfg.Roles.Guard)
	if cfg.Social.GoogleClientID != "" {
		google, err := social.NewOAuthProvider(social.OAuthConfig{
			Name:         "google",
			ClientID:     cfg.Social.GoogleClientID,
			ClientSecret: cfg.Social.GoogleClientSecret,
			AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:     "https://oauth2.googleapis.com/token",
			UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
			RedirectURI:  cfg.Social.GoogleRedirectURI,
		})
		if err != nil {
			slog.Error("Failed to configure google provider", "err", err)
			os.Exit(1)
		}
		socialService.RegisterProvider(google)
	}
	if cfg.Social.TelegramBotToken != "" {
		socialService.RegisterProvider(social.NewTelegramProvider(cfg.Social.TelegramBotToken))
	}

	impersonateService := impersonate.NewService(
		impersonate.NewPostgresLogRepository(pool),
		accounts,
		rbacService,
		tokenService,
		impersonate.Config{
			AdminRole:         cfg.Roles.AdminRole,
			Guard:             cfg.Roles.Guard,
			MaxDuration:       time.Duration(cfg.Impersonation.MaxDurationSecs) * time.Second,
			RevokeTokenOnStop: cfg.Impersonation.RevokeTokenOnStop,
		})

	pendingLogins := guardian.NewPendingLoginStore(rdb, time.Duration(cfg.TwoFactor.CodeTTLSecs)*time.Second)
	authService := guardian.NewService(loginService, twofaService, socialService, tokenService, rbacService,
		pendingLogins, guardian.Config{DefaultRole: cfg.Roles.DefaultRole, Guard: cfg.Roles.Guard})
	authService.AddHook(guardian.LoggingHook{})

	authHandle := guardian.NewHandle(authService, resetService)
	twofaHandle := twofa.NewHandle(twofaService, func(ctx context.Context, accountID uuid.UUID) (string, error) {
		account, err := accounts.FindByID(ctx, accountID)
		if err != nil {
			return "", err
		}
		return account.Email, nil
	})
	rbacHandle := rbac.NewHandle(rbacService)
	impersonateHandle := impersonate.NewHandle(impersonateService)

	auth := guardian.NewAuthMiddleware(cfg.Jwt.Secret, tokenService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		authHandle.RegisterRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Verifier())
		r.Use(auth.Authenticator)
		authHandle.RegisterProtectedRoutes(r)
		twofaHandle.RegisterRoutes(r)
		impersonateHandle.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(rbac.RequireRole(rbacService, cfg.Roles.AdminRole, cfg.Roles.Guard))
			rbacHandle.RegisterRoutes(r)
		})
	})

	slog.Info("Guardian listening", "addr", cfg.Server.Addr())
	if err := http.ListenAndServe(cfg.Server.Addr(), r); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}
