package twofa

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeStoreRecordFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("CountsAttemptsWhileLive", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store := NewChallengeStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		accountID := uuid.New()

		require.NoError(t, store.Issue(ctx, accountID, "123456", time.Minute))

		attempts, err := store.RecordFailure(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), attempts)

		attempts, err = store.RecordFailure(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), attempts)
	})

	t.Run("AfterExpiryLeavesNoStrayKey", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store := NewChallengeStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		accountID := uuid.New()

		require.NoError(t, store.Issue(ctx, accountID, "123456", time.Minute))
		mr.FastForward(time.Minute + time.Second)

		// HINCRBY would recreate the hash without a TTL; the store must not
		// leave that key behind.
		_, err := store.RecordFailure(ctx, accountID)
		assert.ErrorIs(t, err, ErrChallengeExpired)
		assert.False(t, mr.Exists(challengeKey(accountID)))
	})
}
