package login

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/arden28/guardian/pkg/notification"
)

type recordingRevoker struct {
	revoked []uuid.UUID
}

func (r *recordingRevoker) RevokeAll(_ context.Context, accountID uuid.UUID) error {
	r.revoked = append(r.revoked, accountID)
	return nil
}

func testNotifier(t *testing.T) (*notification.Manager, *notification.MockNotifier) {
	t.Helper()
	manager := notification.NewManager("http://localhost:4000")
	mock := notification.NewMockNotifier()
	manager.RegisterNotifier(notification.EmailSystem, mock)
	require.NoError(t, manager.RegisterNotice(notification.PasswordResetNotice, notification.EmailSystem,
		notification.NoticeTemplate{Subject: "Reset your password", Text: "{{.Link}}"}))
	return manager, mock
}

func newResetFixture(t *testing.T) (*PasswordResetService, *InMemoryAccountRepository, *notification.MockNotifier, *recordingRevoker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager, mock := testNotifier(t)
	revoker := &recordingRevoker{}

	repo := NewInMemoryAccountRepository()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	service := NewPasswordResetService(repo, hasher, rdb, manager, revoker, PasswordResetConfig{})
	return service, repo, mock, revoker, mr
}

func tokenFromLink(t *testing.T, mock *notification.MockNotifier) string {
	t.Helper()
	sent := mock.LastSent()
	require.NotNil(t, sent)
	link := sent.Data["Link"]
	require.NotEmpty(t, link)
	return link[len("http://localhost:4000/password-reset/"):]
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("RequestAndRedeem", func(t *testing.T) {
		service, repo, mock, revoker, _ := newResetFixture(t)
		account := seedAccount(t, repo, NewBcryptHasher(bcrypt.MinCost), "alice@example.com", "old-password", true)

		require.NoError(t, service.RequestReset(ctx, "alice@example.com"))
		tok := tokenFromLink(t, mock)

		require.NoError(t, service.Reset(ctx, "alice@example.com", tok, "new-password"))

		updated, err := repo.FindByID(ctx, account.ID)
		require.NoError(t, err)
		match, err := NewBcryptHasher(bcrypt.MinCost).Verify("new-password", updated.PasswordHash)
		require.NoError(t, err)
		assert.True(t, match)

		// Reset forces re-login everywhere.
		assert.Equal(t, []uuid.UUID{account.ID}, revoker.revoked)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		service, _, _, _, _ := newResetFixture(t)
		err := service.RequestReset(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("SecondRequestSupersedesFirst", func(t *testing.T) {
		service, repo, mock, _, _ := newResetFixture(t)
		seedAccount(t, repo, NewBcryptHasher(bcrypt.MinCost), "bob@example.com", "password-1", true)

		require.NoError(t, service.RequestReset(ctx, "bob@example.com"))
		first := tokenFromLink(t, mock)
		require.NoError(t, service.RequestReset(ctx, "bob@example.com"))
		second := tokenFromLink(t, mock)
		require.NotEqual(t, first, second)

		assert.ErrorIs(t, service.Reset(ctx, "bob@example.com", first, "x-password"), ErrInvalidResetToken)
		assert.NoError(t, service.Reset(ctx, "bob@example.com", second, "x-password"))
	})

	t.Run("TicketIsSingleUse", func(t *testing.T) {
		service, repo, mock, _, _ := newResetFixture(t)
		seedAccount(t, repo, NewBcryptHasher(bcrypt.MinCost), "carol@example.com", "password-1", true)

		require.NoError(t, service.RequestReset(ctx, "carol@example.com"))
		tok := tokenFromLink(t, mock)

		require.NoError(t, service.Reset(ctx, "carol@example.com", tok, "password-2"))
		assert.ErrorIs(t, service.Reset(ctx, "carol@example.com", tok, "password-3"), ErrInvalidResetToken)
	})

	t.Run("ExpiredTicket", func(t *testing.T) {
		service, repo, mock, _, mr := newResetFixture(t)
		seedAccount(t, repo, NewBcryptHasher(bcrypt.MinCost), "dave@example.com", "password-1", true)

		require.NoError(t, service.RequestReset(ctx, "dave@example.com"))
		tok := tokenFromLink(t, mock)

		mr.FastForward(time.Hour + time.Second)
		assert.ErrorIs(t, service.Reset(ctx, "dave@example.com", tok, "password-2"), ErrInvalidResetToken)
	})

	t.Run("WrongToken", func(t *testing.T) {
		service, repo, _, _, _ := newResetFixture(t)
		seedAccount(t, repo, NewBcryptHasher(bcrypt.MinCost), "erin@example.com", "password-1", true)

		require.NoError(t, service.RequestReset(ctx, "erin@example.com"))
		assert.ErrorIs(t, service.Reset(ctx, "erin@example.com", "not-the-token", "password-2"), ErrInvalidResetToken)
	})
}
