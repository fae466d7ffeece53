package twofa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSettingsRepository implements SettingsRepository using PostgreSQL.
// TOTP secrets are encrypted before they hit the table and decrypted on the
// way out; only this layer ever sees the stored form.
type PostgresSettingsRepository struct {
	pool   *pgxpool.Pool
	cipher *SecretCipher
}

func NewPostgresSettingsRepository(pool *pgxpool.Pool, cipher *SecretCipher) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{pool: pool, cipher: cipher}
}

func (r *PostgresSettingsRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (Setting, error) {
	var s Setting
	var method string
	err := r.pool.QueryRow(ctx,
		`SELECT account_id, method, COALESCE(secret, ''), COALESCE(phone_number, ''),
		        is_enabled, last_verified_at, created_at, updated_at
		 FROM two_factor_settings WHERE account_id = $1`, accountID).
		Scan(&s.AccountID, &method, &s.Secret, &s.PhoneNumber,
			&s.IsEnabled, &s.LastVerifiedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Setting{}, ErrSettingNotFound
		}
		return Setting{}, fmt.Errorf("failed to get 2FA setting: %w", err)
	}
	s.Method = Method(method)
	if s.Secret, err = r.cipher.Decrypt(s.Secret); err != nil {
		return Setting{}, fmt.Errorf("failed to decrypt 2FA secret: %w", err)
	}
	return s, nil
}

// Upsert writes the setting keyed by account id; the primary key keeps the
// one-setting-per-account invariant without a read-then-write race.
func (r *PostgresSettingsRepository) Upsert(ctx context.Context, setting Setting) (Setting, error) {
	sealed, err := r.cipher.Encrypt(setting.Secret)
	if err != nil {
		return Setting{}, fmt.Errorf("failed to encrypt 2FA secret: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO two_factor_settings (account_id, method, secret, phone_number, is_enabled)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		 ON CONFLICT (account_id) DO UPDATE
		 SET method = EXCLUDED.method,
		     secret = EXCLUDED.secret,
		     phone_number = EXCLUDED.phone_number,
		     is_enabled = EXCLUDED.is_enabled,
		     updated_at = now()
		 RETURNING created_at, updated_at`,
		setting.AccountID, string(setting.Method), sealed, setting.PhoneNumber, setting.IsEnabled).
		Scan(&setting.CreatedAt, &setting.UpdatedAt)
	if err != nil {
		return Setting{}, fmt.Errorf("failed to upsert 2FA setting: %w", err)
	}
	return setting, nil
}

func (r *PostgresSettingsRepository) Disable(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE two_factor_settings
		 SET is_enabled = false, secret = NULL, updated_at = now()
		 WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to disable 2FA: %w", err)
	}
	return nil
}

func (r *PostgresSettingsRepository) StampVerified(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE two_factor_settings
		 SET last_verified_at = $2, updated_at = now()
		 WHERE account_id = $1`, accountID, at)
	if err != nil {
		return fmt.Errorf("failed to stamp 2FA verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSettingNotFound
	}
	return nil
}
