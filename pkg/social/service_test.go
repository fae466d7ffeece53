package social

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arden28/guardian/pkg/login"
)

type countingAssigner struct {
	calls []string
}

func (c *countingAssigner) AssignRole(_ context.Context, accountID uuid.UUID, role, guard string) error {
	c.calls = append(c.calls, role+"/"+guard)
	return nil
}

func newSocialFixture(t *testing.T) (*Service, *login.InMemoryAccountRepository, *countingAssigner, *TelegramProvider) {
	t.Helper()
	repo := login.NewInMemoryAccountRepository()
	assigner := &countingAssigner{}
	service := NewService(repo, assigner, "user", "web")

	provider := NewTelegramProvider(testBotToken)
	service.RegisterProvider(provider)
	return service, repo, assigner, provider
}

func signedPayload(now time.Time) map[string]string {
	payload := freshPayload(now)
	payload["hash"] = signPayload(payload)
	return payload
}

func TestPayloadLogin(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("FirstLoginCreatesAccountWithDefaultRole", func(t *testing.T) {
		service, _, assigner, _ := newSocialFixture(t)

		account, created, err := service.PayloadLogin(ctx, "telegram", signedPayload(now))
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, account.IsActive)
		assert.Equal(t, "telegram", account.SocialProvider)
		assert.Equal(t, "99912345", account.SocialID)
		assert.Equal(t, []string{"user/web"}, assigner.calls)
	})

	t.Run("SecondLoginResolvesSameAccount", func(t *testing.T) {
		service, _, assigner, _ := newSocialFixture(t)

		first, created, err := service.PayloadLogin(ctx, "telegram", signedPayload(now))
		require.NoError(t, err)
		require.True(t, created)

		second, created, err := service.PayloadLogin(ctx, "telegram", signedPayload(now))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		// The default role is assigned exactly once.
		assert.Len(t, assigner.calls, 1)
	})

	t.Run("TamperedPayloadNeverTouchesStore", func(t *testing.T) {
		service, repo, _, _ := newSocialFixture(t)

		payload := signedPayload(now)
		payload["id"] = strconv.FormatInt(424242, 10)

		_, _, err := service.PayloadLogin(ctx, "telegram", payload)
		assert.ErrorIs(t, err, ErrInvalidSignature)

		// No account was created for either the original or the forged id.
		_, created, err := repo.FindOrCreateBySocialID(ctx, "telegram", "99912345", login.CreateAccountParams{
			SocialProvider: "telegram", SocialID: "99912345",
		})
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		service, _, _, _ := newSocialFixture(t)
		_, _, err := service.PayloadLogin(ctx, "myspace", signedPayload(now))
		assert.ErrorIs(t, err, ErrUnsupportedProvider)
	})

	t.Run("RedirectFlowUnsupportedForTelegram", func(t *testing.T) {
		service, _, _, _ := newSocialFixture(t)
		_, err := service.AuthURL("telegram", "state-1")
		assert.ErrorIs(t, err, ErrUnsupportedProvider)
	})
}

func TestOAuthProviderAuthURL(t *testing.T) {
	provider, err := NewOAuthProvider(OAuthConfig{
		Name:         "google",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
		RedirectURI:  "http://localhost:4000/social/google/callback",
	})
	require.NoError(t, err)

	url, err := provider.AuthURL("state-xyz")
	require.NoError(t, err)
	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "state=state-xyz")
	assert.Contains(t, url, "response_type=code")
}
