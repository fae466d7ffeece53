package impersonate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arden28/guardian/pkg/login"
	"github.com/arden28/guardian/pkg/rbac"
	"github.com/arden28/guardian/pkg/token"
)

type fixture struct {
	service  *Service
	logs     *InMemoryLogRepository
	accounts *login.InMemoryAccountRepository
	tokens   *token.Service
	adminID  uuid.UUID
	targetID uuid.UUID
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	accounts := login.NewInMemoryAccountRepository()
	admin := login.Account{ID: uuid.New(), Email: "admin@example.com", IsActive: true}
	target := login.Account{ID: uuid.New(), Email: "target@example.com", IsActive: true}
	accounts.SeedAccount(admin)
	accounts.SeedAccount(target)

	roles := rbac.NewService(rbac.NewInMemoryStore(), []string{"web", "api"})
	ctx := context.Background()
	_, err := roles.CreateRole(ctx, "admin", "web")
	require.NoError(t, err)
	require.NoError(t, roles.AssignRole(ctx, admin.ID, "admin", "web"))

	tokens := token.NewService("test-secret", "guardian", "guardian", rdb)
	logs := NewInMemoryLogRepository()
	service := NewService(logs, accounts, roles, tokens, config)

	return &fixture{
		service:  service,
		logs:     logs,
		accounts: accounts,
		tokens:   tokens,
		adminID:  admin.ID,
		targetID: target.ID,
	}
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	t.Run("AdminStartsSession", func(t *testing.T) {
		f := newFixture(t, Config{})

		session, err := f.service.Start(ctx, f.adminID, f.targetID)
		require.NoError(t, err)
		assert.NotEmpty(t, session.SessionID)
		assert.Equal(t, f.targetID, session.ImpersonatedID)

		// The issued token is bound to the target and carries the session.
		claims, err := f.tokens.Validate(ctx, session.Token)
		require.NoError(t, err)
		assert.Equal(t, f.targetID.String(), claims.Subject)
		assert.Equal(t, session.SessionID, claims.ImpersonationSessionID)
		assert.Equal(t, f.adminID.String(), claims.ActorID)
	})

	t.Run("NonAdminWritesNoRow", func(t *testing.T) {
		f := newFixture(t, Config{})

		_, err := f.service.Start(ctx, f.targetID, f.adminID)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, 0, f.logs.Count())
	})

	t.Run("UnknownTarget", func(t *testing.T) {
		f := newFixture(t, Config{})

		_, err := f.service.Start(ctx, f.adminID, uuid.New())
		assert.ErrorIs(t, err, ErrTargetNotFound)
		assert.Equal(t, 0, f.logs.Count())
	})

	t.Run("SelfImpersonation", func(t *testing.T) {
		f := newFixture(t, Config{})

		_, err := f.service.Start(ctx, f.adminID, f.adminID)
		assert.ErrorIs(t, err, ErrSelfImpersonation)
		assert.Equal(t, 0, f.logs.Count())
	})

	t.Run("OneLiveSessionPerActor", func(t *testing.T) {
		f := newFixture(t, Config{})

		_, err := f.service.Start(ctx, f.adminID, f.targetID)
		require.NoError(t, err)
		_, err = f.service.Start(ctx, f.adminID, f.targetID)
		assert.ErrorIs(t, err, ErrAlreadyImpersonating)
	})
}

func TestStop(t *testing.T) {
	ctx := context.Background()

	t.Run("StopEndsExactlyOnce", func(t *testing.T) {
		f := newFixture(t, Config{})

		session, err := f.service.Start(ctx, f.adminID, f.targetID)
		require.NoError(t, err)

		require.NoError(t, f.service.Stop(ctx, session.SessionID))

		log, err := f.logs.FindBySessionID(ctx, session.SessionID)
		require.NoError(t, err)
		require.NotNil(t, log.EndedAt)
		assert.Equal(t, 1, f.logs.Count())

		assert.ErrorIs(t, f.service.Stop(ctx, session.SessionID), ErrSessionEnded)
	})

	t.Run("UnknownSession", func(t *testing.T) {
		f := newFixture(t, Config{})
		assert.ErrorIs(t, f.service.Stop(ctx, "no-such-session"), ErrSessionNotFound)
	})

	t.Run("TokenStaysValidByDefault", func(t *testing.T) {
		f := newFixture(t, Config{})

		session, err := f.service.Start(ctx, f.adminID, f.targetID)
		require.NoError(t, err)
		require.NoError(t, f.service.Stop(ctx, session.SessionID))

		_, err = f.tokens.Validate(ctx, session.Token)
		assert.NoError(t, err)
	})

	t.Run("RevokeOnStopPolicy", func(t *testing.T) {
		f := newFixture(t, Config{RevokeTokenOnStop: true})

		session, err := f.service.Start(ctx, f.adminID, f.targetID)
		require.NoError(t, err)
		require.NoError(t, f.service.Stop(ctx, session.SessionID))

		_, err = f.tokens.Validate(ctx, session.Token)
		assert.ErrorIs(t, err, token.ErrTokenRevoked)
	})
}

func TestIsLive(t *testing.T) {
	ctx := context.Background()

	t.Run("LiveUntilStopped", func(t *testing.T) {
		f := newFixture(t, Config{})

		session, err := f.service.Start(ctx, f.adminID, f.targetID)
		require.NoError(t, err)

		live, err := f.service.IsLive(ctx, session.SessionID)
		require.NoError(t, err)
		assert.True(t, live)

		require.NoError(t, f.service.Stop(ctx, session.SessionID))
		live, err = f.service.IsLive(ctx, session.SessionID)
		require.NoError(t, err)
		assert.False(t, live)
	})

	t.Run("ExpiresByDurationWithoutStop", func(t *testing.T) {
		f := newFixture(t, Config{MaxDuration: time.Hour})
		start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		f.service.SetClock(func() time.Time { return start })

		session, err := f.service.Start(ctx, f.adminID, f.targetID)
		require.NoError(t, err)

		f.service.SetClock(func() time.Time { return start.Add(time.Hour + time.Second) })
		live, err := f.service.IsLive(ctx, session.SessionID)
		require.NoError(t, err)
		assert.False(t, live)

		// An expired-by-duration session no longer blocks a new start.
		_, err = f.service.Start(ctx, f.adminID, f.targetID)
		assert.NoError(t, err)
	})

	t.Run("UnknownSessionIsNotLive", func(t *testing.T) {
		f := newFixture(t, Config{})
		live, err := f.service.IsLive(ctx, "no-such-session")
		require.NoError(t, err)
		assert.False(t, live)
	})
}
