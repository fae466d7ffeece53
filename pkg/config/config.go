package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

type ServerConfig struct {
	Host    string `env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port    string `env:"SERVER_PORT" env-default:"4000"`
	BaseURL string `env:"BASE_URL" env-default:"http://localhost:4000"`
}

func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	Name     string `env:"DB_NAME" env-default:"guardian_db"`
	User     string `env:"DB_USER" env-default:"guardian"`
	Password string `env:"DB_PASSWORD" env-default:"guardian"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.User, c.Password, c.Host, c.Port, c.Name)
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type JwtConfig struct {
	Secret   string `env:"JWT_SECRET" env-required:"true"`
	Issuer   string `env:"JWT_ISSUER" env-default:"guardian"`
	Audience string `env:"JWT_AUDIENCE" env-default:"guardian"`
}

type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"EMAIL_PORT" env-default:"1025"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
}

type TwilioConfig struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID" env-default:""`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN" env-default:""`
	From       string `env:"TWILIO_FROM" env-default:""`
}

type TwoFactorConfig struct {
	// SecretKey encrypts stored TOTP secrets at rest.
	SecretKey   string `env:"TWOFA_SECRET_KEY" env-required:"true"`
	CodeDigits  int    `env:"TWOFA_CODE_DIGITS" env-default:"6"`
	CodeTTLSecs int    `env:"TWOFA_CODE_TTL" env-default:"300"`
	SendLimit   int    `env:"TWOFA_SEND_LIMIT" env-default:"5"`
	SendWindow  int    `env:"TWOFA_SEND_WINDOW" env-default:"60"`
	MaxAttempts int    `env:"TWOFA_MAX_ATTEMPTS" env-default:"5"`
	TOTPIssuer  string `env:"TWOFA_TOTP_ISSUER" env-default:"guardian"`
	TOTPDigits  int    `env:"TWOFA_TOTP_DIGITS" env-default:"6"`
	TOTPPeriod  int    `env:"TWOFA_TOTP_PERIOD" env-default:"30"`
}

type SocialConfig struct {
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID" env-default:""`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET" env-default:""`
	GoogleRedirectURI  string `env:"GOOGLE_REDIRECT_URI" env-default:""`
	TelegramBotToken   string `env:"TELEGRAM_BOT_TOKEN" env-default:""`
}

type RolesConfig struct {
	// Guards is the comma-separated guard allow-list.
	Guards      string `env:"AUTH_GUARDS" env-default:"web,api"`
	DefaultRole string `env:"DEFAULT_ROLE" env-default:"user"`
	AdminRole   string `env:"ADMIN_ROLE" env-default:"admin"`
	Guard       string `env:"DEFAULT_GUARD" env-default:"web"`
}

func (c RolesConfig) GuardList() []string {
	parts := strings.Split(c.Guards, ",")
	guards := make([]string, 0, len(parts))
	for _, p := range parts {
		if g := strings.TrimSpace(p); g != "" {
			guards = append(guards, g)
		}
	}
	return guards
}

type ImpersonationConfig struct {
	MaxDurationSecs   int  `env:"IMPERSONATION_MAX_DURATION" env-default:"3600"`
	RevokeTokenOnStop bool `env:"IMPERSONATION_REVOKE_ON_STOP" env-default:"false"`
}

type PasswordResetConfig struct {
	TokenTTLSecs int `env:"PASSWORD_RESET_TTL" env-default:"3600"`
}

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Jwt           JwtConfig
	Email         EmailConfig
	Twilio        TwilioConfig
	TwoFactor     TwoFactorConfig
	Social        SocialConfig
	Roles         RolesConfig
	Impersonation ImpersonationConfig
	PasswordReset PasswordResetConfig
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return cfg, nil
}
