package login

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func seedAccount(t *testing.T, repo *InMemoryAccountRepository, hasher PasswordHasher, email, password string, active bool) Account {
	t.Helper()
	hash, err := hasher.Hash(password)
	require.NoError(t, err)

	account := Account{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		IsActive:     active,
	}
	repo.SeedAccount(account)
	return account
}

func TestVerifyCredentials(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAccountRepository()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	service := NewService(repo, hasher)

	account := seedAccount(t, repo, hasher, "alice@example.com", "correct-horse", true)
	seedAccount(t, repo, hasher, "inactive@example.com", "correct-horse", false)

	t.Run("ValidCredentials", func(t *testing.T) {
		got, err := service.VerifyCredentials(ctx, "alice@example.com", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := service.VerifyCredentials(ctx, "alice@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := service.VerifyCredentials(ctx, "nobody@example.com", "correct-horse")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("InactiveAccount", func(t *testing.T) {
		_, err := service.VerifyCredentials(ctx, "inactive@example.com", "correct-horse")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestFindOrCreateBySocialID(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAccountRepository()

	params := CreateAccountParams{
		Name:           "Bob",
		IsActive:       true,
		SocialProvider: "telegram",
		SocialID:       "12345",
	}

	first, created, err := repo.FindOrCreateBySocialID(ctx, "telegram", "12345", params)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.FindOrCreateBySocialID(ctx, "telegram", "12345", params)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// Same external id under a different provider is a different account.
	third, created, err := repo.FindOrCreateBySocialID(ctx, "google", "12345", CreateAccountParams{
		Name: "Bob", IsActive: true, SocialProvider: "google", SocialID: "12345",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}
