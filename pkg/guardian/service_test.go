package guardian

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/arden28/guardian/pkg/login"
	"github.com/arden28/guardian/pkg/notification"
	"github.com/arden28/guardian/pkg/rbac"
	"github.com/arden28/guardian/pkg/social"
	"github.com/arden28/guardian/pkg/token"
	"github.com/arden28/guardian/pkg/twofa"
)

type fixture struct {
	service  *Service
	accounts *login.InMemoryAccountRepository
	hasher   login.PasswordHasher
	twofa    *twofa.Service
	rbac     *rbac.Service
	social   *social.Service
	mock     *notification.MockNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	manager := notification.NewManager("http://localhost:4000")
	mock := notification.NewMockNotifier()
	manager.RegisterNotifier(notification.EmailSystem, mock)
	manager.RegisterNotifier(notification.SMSSystem, mock)
	require.NoError(t, manager.RegisterNotice(notification.TwofaCodeNotice, notification.EmailSystem,
		notification.NoticeTemplate{Subject: "Your code", Text: "{{.Code}}"}))
	require.NoError(t, manager.RegisterNotice(notification.TwofaCodeNotice, notification.SMSSystem,
		notification.NoticeTemplate{Text: "{{.Code}}"}))

	accounts := login.NewInMemoryAccountRepository()
	hasher := login.NewBcryptHasher(bcrypt.MinCost)
	loginService := login.NewService(accounts, hasher)

	twofaService := twofa.NewService(twofa.NewInMemorySettingsRepository(),
		twofa.NewChallengeStore(rdb), manager, twofa.Config{})

	rbacService := rbac.NewService(rbac.NewInMemoryStore(), []string{"web", "api"})
	ctx := context.Background()
	_, err := rbacService.CreateRole(ctx, "user", "web")
	require.NoError(t, err)

	socialService := social.NewService(accounts, rbacService, "user", "web")
	tokenService := token.NewService("test-secret", "guardian", "guardian", rdb)
	pending := NewPendingLoginStore(rdb, 0)

	service := NewService(loginService, twofaService, socialService, tokenService, rbacService, pending, Config{})

	return &fixture{
		service:  service,
		accounts: accounts,
		hasher:   hasher,
		twofa:    twofaService,
		rbac:     rbacService,
		social:   socialService,
		mock:     mock,
	}
}

func (f *fixture) seed(t *testing.T, email, password string) login.Account {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	account := login.Account{ID: uuid.New(), Email: email, Name: "Test", PasswordHash: hash, IsActive: true}
	f.accounts.SeedAccount(account)
	return account
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("WithoutTwoFactorIssuesToken", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "alice@example.com", "correct-horse")

		result, err := f.service.Login(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)
		assert.False(t, result.RequiresTwoFactor)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "alice@example.com", "correct-horse")

		_, err := f.service.Login(ctx, "alice@example.com", "wrong")
		assert.ErrorIs(t, err, login.ErrInvalidCredentials)
	})

	t.Run("TwoFactorGatesToken", func(t *testing.T) {
		f := newFixture(t)
		account := f.seed(t, "alice@example.com", "correct-horse")
		_, err := f.twofa.Enable(ctx, account.ID, account.Email, twofa.MethodEmail, "")
		require.NoError(t, err)

		result, err := f.service.Login(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)
		assert.True(t, result.RequiresTwoFactor)
		assert.Equal(t, twofa.MethodEmail, result.TwoFactorMethod)
		// No token before the second factor verifies.
		assert.Empty(t, result.Token)

		sent := f.mock.LastSent()
		require.NotNil(t, sent)
		code := sent.Data["Code"]

		completed, err := f.service.CompleteTwoFactor(ctx, "alice@example.com", code)
		require.NoError(t, err)
		assert.NotEmpty(t, completed.Token)
	})

	t.Run("TotpCompletionRequiresPriorPasswordLogin", func(t *testing.T) {
		f := newFixture(t)
		account := f.seed(t, "alice@example.com", "correct-horse")
		enrollment, err := f.twofa.Enable(ctx, account.ID, account.Email, twofa.MethodTOTP, "")
		require.NoError(t, err)

		code, err := totp.GenerateCode(enrollment.Secret, time.Now())
		require.NoError(t, err)

		// A current authenticator code alone is a single factor; without a
		// preceding successful password login no token is minted.
		_, err = f.service.CompleteTwoFactor(ctx, "alice@example.com", code)
		assert.ErrorIs(t, err, ErrNoPendingLogin)

		result, err := f.service.Login(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)
		require.True(t, result.RequiresTwoFactor)

		code, err = totp.GenerateCode(enrollment.Secret, time.Now())
		require.NoError(t, err)
		completed, err := f.service.CompleteTwoFactor(ctx, "alice@example.com", code)
		require.NoError(t, err)
		assert.NotEmpty(t, completed.Token)

		// The pending login is consumed: completing again needs a fresh
		// password login, even with another valid code.
		code, err = totp.GenerateCode(enrollment.Secret, time.Now())
		require.NoError(t, err)
		_, err = f.service.CompleteTwoFactor(ctx, "alice@example.com", code)
		assert.ErrorIs(t, err, ErrNoPendingLogin)
	})

	t.Run("EmailCompletionRequiresPriorPasswordLogin", func(t *testing.T) {
		f := newFixture(t)
		account := f.seed(t, "alice@example.com", "correct-horse")
		_, err := f.twofa.Enable(ctx, account.ID, account.Email, twofa.MethodEmail, "")
		require.NoError(t, err)

		_, err = f.service.CompleteTwoFactor(ctx, "alice@example.com", "123456")
		assert.ErrorIs(t, err, ErrNoPendingLogin)
	})

	t.Run("WrongCodeMintsNoToken", func(t *testing.T) {
		f := newFixture(t)
		account := f.seed(t, "alice@example.com", "correct-horse")
		_, err := f.twofa.Enable(ctx, account.ID, account.Email, twofa.MethodEmail, "")
		require.NoError(t, err)

		_, err = f.service.Login(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)

		_, err = f.service.CompleteTwoFactor(ctx, "alice@example.com", "000000")
		assert.ErrorIs(t, err, twofa.ErrInvalidPasscode)
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesActiveAccountWithDefaultRole", func(t *testing.T) {
		f := newFixture(t)

		result, err := f.service.Register(ctx, "Bob", "bob@example.com", "secret-password")
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
		assert.True(t, result.Account.IsActive)

		has, err := f.rbac.HasRole(ctx, result.Account.ID, "user", "web")
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "bob@example.com", "secret-password")

		_, err := f.service.Register(ctx, "Bob", "bob@example.com", "secret-password")
		assert.ErrorIs(t, err, login.ErrAccountExists)
	})
}

func TestLogoutAndCurrentAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	account := f.seed(t, "alice@example.com", "correct-horse")

	result, err := f.service.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	got, claims, err := f.service.CurrentAccount(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Empty(t, claims.ImpersonationSessionID)

	require.NoError(t, f.service.Logout(ctx, result.Token))
	_, _, err = f.service.CurrentAccount(ctx, result.Token)
	assert.ErrorIs(t, err, token.ErrTokenRevoked)
}

func telegramPayload(botToken string) map[string]string {
	payload := map[string]string{
		"id":         "55512345",
		"first_name": "Jane",
		"auth_date":  strconv.FormatInt(time.Now().Unix(), 10),
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+payload[k])
	}

	secretKey := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secretKey[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	payload["hash"] = hex.EncodeToString(mac.Sum(nil))
	return payload
}

func TestSocialPayloadLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.social.RegisterProvider(social.NewTelegramProvider("bot-token"))

	result, err := f.service.SocialPayloadLogin(ctx, "telegram", telegramPayload("bot-token"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "telegram", result.Account.SocialProvider)

	// The minted token resolves back to the same account.
	got, _, err := f.service.CurrentAccount(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Account.ID, got.ID)
}
