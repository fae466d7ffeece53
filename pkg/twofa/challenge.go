package twofa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrChallengeExpired indicates no live challenge exists for the account:
// either none was ever issued, it expired, or it was invalidated. All three
// look the same to the caller; expiry fails closed.
var ErrChallengeExpired = errors.New("challenge expired or not found")

// ChallengeStore keeps pending one-time codes and send-rate counters in
// redis so every service instance observes the same single live challenge
// per account. Issuing replaces the prior challenge atomically.
type ChallengeStore struct {
	rdb *redis.Client
}

func NewChallengeStore(rdb *redis.Client) *ChallengeStore {
	return &ChallengeStore{rdb: rdb}
}

func challengeKey(accountID uuid.UUID) string {
	return "guardian:2fa:challenge:" + accountID.String()
}

func sendCounterKey(accountID uuid.UUID) string {
	return "guardian:2fa:send:" + accountID.String()
}

// Issue stores a new challenge for the account, superseding any live one.
// The delete and re-create run in a single transaction so two concurrent
// issues still leave exactly one winner.
func (s *ChallengeStore) Issue(ctx context.Context, accountID uuid.UUID, code string, ttl time.Duration) error {
	key := challengeKey(accountID)
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "code", code, "issued_at", time.Now().Unix(), "attempts", 0)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// Code returns the live challenge code, or ErrChallengeExpired when none.
func (s *ChallengeStore) Code(ctx context.Context, accountID uuid.UUID) (string, error) {
	code, err := s.rdb.HGet(ctx, challengeKey(accountID), "code").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrChallengeExpired
		}
		return "", fmt.Errorf("failed to load challenge: %w", err)
	}
	return code, nil
}

// RecordFailure atomically increments the attempt counter and returns the
// new total. The counter rides on the challenge hash, so it disappears with
// the challenge.
func (s *ChallengeStore) RecordFailure(ctx context.Context, accountID uuid.UUID) (int64, error) {
	key := challengeKey(accountID)
	attempts, err := s.rdb.HIncrBy(ctx, key, "attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to record attempt: %w", err)
	}
	// HINCRBY recreates the hash when the challenge already expired; that
	// fresh hash carries no TTL, so drop it rather than leave an immortal
	// stray key.
	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to check challenge expiry: %w", err)
	}
	if ttl == -1 {
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return 0, fmt.Errorf("failed to drop stray challenge: %w", err)
		}
		return 0, ErrChallengeExpired
	}
	return attempts, nil
}

// Invalidate destroys the live challenge, if any.
func (s *ChallengeStore) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	if err := s.rdb.Del(ctx, challengeKey(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate challenge: %w", err)
	}
	return nil
}

// AllowSend enforces the per-account send rate limit with an atomic INCR;
// the first increment in a window arms the window expiry.
func (s *ChallengeStore) AllowSend(ctx context.Context, accountID uuid.UUID, limit int, window time.Duration) (bool, error) {
	key := sendCounterKey(accountID)
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment send counter: %w", err)
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to arm rate window: %w", err)
		}
	}
	return count <= int64(limit), nil
}
