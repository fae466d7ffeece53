package login

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAccountRepository implements AccountRepository using PostgreSQL.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

const accountColumns = `id, COALESCE(email, ''), name, COALESCE(password_hash, ''), is_active,
	COALESCE(social_provider, ''), COALESCE(social_id, ''), created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsActive,
		&a.SocialProvider, &a.SocialID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("failed to scan account: %w", err)
	}
	return a, nil
}

func (r *PostgresAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
	return scanAccount(row)
}

func (r *PostgresAccountRepository) Create(ctx context.Context, params CreateAccountParams) (Account, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, email, name, password_hash, is_active, social_provider, social_id)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		 RETURNING `+accountColumns,
		uuid.New(), params.Email, params.Name, params.PasswordHash, params.IsActive,
		params.SocialProvider, params.SocialID)

	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrAccountExists
		}
		return Account{}, err
	}
	return account, nil
}

func (r *PostgresAccountRepository) Update(ctx context.Context, account Account) (Account, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE accounts
		 SET email = $2, name = $3, is_active = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+accountColumns,
		account.ID, account.Email, account.Name, account.IsActive)
	return scanAccount(row)
}

func (r *PostgresAccountRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// FindOrCreateBySocialID relies on the partial unique index on
// (social_provider, social_id): the insert races are resolved by the store,
// never by read-then-write in this process.
func (r *PostgresAccountRepository) FindOrCreateBySocialID(ctx context.Context, provider, externalID string, params CreateAccountParams) (Account, bool, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE social_provider = $1 AND social_id = $2`, provider, externalID)
	account, err := scanAccount(row)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, false, err
	}

	// The conflict target repeats the partial index predicate: postgres only
	// infers a partial unique index as arbiter when the predicate is spelled
	// out in the INSERT.
	row = r.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, email, name, password_hash, is_active, social_provider, social_id)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
		 ON CONFLICT (social_provider, social_id)
		 WHERE social_provider IS NOT NULL AND social_id IS NOT NULL
		 DO UPDATE SET updated_at = accounts.updated_at
		 RETURNING `+accountColumns+`, (xmax = 0) AS inserted`,
		uuid.New(), params.Email, params.Name, params.PasswordHash, params.IsActive,
		provider, externalID)

	var a Account
	var inserted bool
	err = row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsActive,
		&a.SocialProvider, &a.SocialID, &a.CreatedAt, &a.UpdatedAt, &inserted)
	if err != nil {
		return Account{}, false, fmt.Errorf("failed to find or create account: %w", err)
	}
	return a, inserted, nil
}

func (r *PostgresAccountRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
