package guardian

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoPendingLogin indicates a second-factor completion with no preceding
// successful credential check.
var ErrNoPendingLogin = errors.New("no pending login")

// PendingLoginStore records that an account passed the credential check and
// is waiting on its second factor. The ticket lives in redis so the two
// halves of the login may land on different service instances; a new login
// supersedes the prior ticket the same way a fresh challenge does.
type PendingLoginStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPendingLoginStore(rdb *redis.Client, ttl time.Duration) *PendingLoginStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PendingLoginStore{rdb: rdb, ttl: ttl}
}

func pendingKey(accountID uuid.UUID) string {
	return "guardian:pendinglogin:" + accountID.String()
}

// Create marks the account as password-verified, overwriting any prior mark.
func (s *PendingLoginStore) Create(ctx context.Context, accountID uuid.UUID) error {
	if err := s.rdb.Set(ctx, pendingKey(accountID), time.Now().Unix(), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pending login: %w", err)
	}
	return nil
}

// Exists reports whether the account has a live pending login.
func (s *PendingLoginStore) Exists(ctx context.Context, accountID uuid.UUID) (bool, error) {
	n, err := s.rdb.Exists(ctx, pendingKey(accountID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check pending login: %w", err)
	}
	return n > 0, nil
}

// Consume destroys the pending login once the second factor verified.
func (s *PendingLoginStore) Consume(ctx context.Context, accountID uuid.UUID) error {
	if err := s.rdb.Del(ctx, pendingKey(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to consume pending login: %w", err)
	}
	return nil
}
