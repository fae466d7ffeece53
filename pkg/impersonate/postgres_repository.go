package impersonate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLogRepository implements LogRepository using PostgreSQL.
type PostgresLogRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresLogRepository(pool *pgxpool.Pool) *PostgresLogRepository {
	return &PostgresLogRepository{pool: pool}
}

const logColumns = `id, impersonator_id, impersonated_id, session_id, COALESCE(token_id, ''), started_at, ended_at`

func scanLog(row pgx.Row) (Log, error) {
	var l Log
	err := row.Scan(&l.ID, &l.ImpersonatorID, &l.ImpersonatedID, &l.SessionID,
		&l.TokenID, &l.StartedAt, &l.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Log{}, ErrSessionNotFound
		}
		return Log{}, fmt.Errorf("failed to scan impersonation log: %w", err)
	}
	return l, nil
}

func (r *PostgresLogRepository) Create(ctx context.Context, log Log) (Log, error) {
	id := log.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO impersonation_logs (id, impersonator_id, impersonated_id, session_id, token_id, started_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		 RETURNING `+logColumns,
		id, log.ImpersonatorID, log.ImpersonatedID, log.SessionID, log.TokenID, log.StartedAt)
	return scanLog(row)
}

func (r *PostgresLogRepository) FindBySessionID(ctx context.Context, sessionID string) (Log, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+logColumns+` FROM impersonation_logs WHERE session_id = $1`, sessionID)
	return scanLog(row)
}

// End sets ended_at only when it is still null, so the row is mutated at most
// once even under concurrent stops.
func (r *PostgresLogRepository) End(ctx context.Context, sessionID string, endedAt time.Time) (Log, bool, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE impersonation_logs SET ended_at = $2
		 WHERE session_id = $1 AND ended_at IS NULL
		 RETURNING `+logColumns,
		sessionID, endedAt)
	log, err := scanLog(row)
	if err == nil {
		return log, true, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return Log{}, false, err
	}

	// No live row matched: either the session never existed or it already
	// ended.
	log, err = r.FindBySessionID(ctx, sessionID)
	if err != nil {
		return Log{}, false, err
	}
	return log, false, nil
}

func (r *PostgresLogRepository) FindOpenByImpersonator(ctx context.Context, impersonatorID uuid.UUID) ([]Log, error) {
	return r.list(ctx,
		`SELECT `+logColumns+` FROM impersonation_logs
		 WHERE impersonator_id = $1 AND ended_at IS NULL
		 ORDER BY started_at DESC`, impersonatorID)
}

func (r *PostgresLogRepository) ListByImpersonated(ctx context.Context, impersonatedID uuid.UUID) ([]Log, error) {
	return r.list(ctx,
		`SELECT `+logColumns+` FROM impersonation_logs
		 WHERE impersonated_id = $1
		 ORDER BY started_at DESC`, impersonatedID)
}

func (r *PostgresLogRepository) list(ctx context.Context, query string, arg any) ([]Log, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list impersonation logs: %w", err)
	}
	defer rows.Close()

	var logs []Log
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list impersonation logs: %w", err)
	}
	return logs, nil
}
