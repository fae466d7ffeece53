package social

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

// signPayload computes the widget MAC the same way Telegram's servers do.
func signPayload(payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+payload[k])
	}

	secretKey := sha256.Sum256([]byte(testBotToken))
	mac := hmac.New(sha256.New, secretKey[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func freshPayload(now time.Time) map[string]string {
	return map[string]string{
		"id":         "99912345",
		"first_name": "Jane",
		"last_name":  "Doe",
		"username":   "janedoe",
		"photo_url":  "https://t.me/i/userpic/320/janedoe.jpg",
		"auth_date":  strconv.FormatInt(now.Unix(), 10),
	}
}

func TestTelegramVerifyPayload(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := NewTelegramProvider(testBotToken)
	provider.SetClock(func() time.Time { return now })

	t.Run("ValidPayload", func(t *testing.T) {
		payload := freshPayload(now)
		payload["hash"] = signPayload(payload)

		identity, err := provider.VerifyPayload(payload)
		require.NoError(t, err)
		assert.Equal(t, "telegram", identity.Provider)
		assert.Equal(t, "99912345", identity.ExternalID)
		assert.Equal(t, "Jane Doe", identity.Name)
		assert.Equal(t, "https://t.me/i/userpic/320/janedoe.jpg", identity.AvatarURL)
		assert.Empty(t, identity.Email)
	})

	t.Run("MacIsDeterministic", func(t *testing.T) {
		payload := freshPayload(now)
		assert.Equal(t, signPayload(payload), signPayload(payload))
	})

	t.Run("FlippedFieldInvalidatesMac", func(t *testing.T) {
		for field := range freshPayload(now) {
			payload := freshPayload(now)
			payload["hash"] = signPayload(payload)
			payload[field] = payload[field] + "x"

			_, err := provider.VerifyPayload(payload)
			assert.ErrorIs(t, err, ErrInvalidSignature, "tampering with %s must invalidate the MAC", field)
		}
	})

	t.Run("MissingHash", func(t *testing.T) {
		_, err := provider.VerifyPayload(freshPayload(now))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("StaleAuthDate", func(t *testing.T) {
		payload := freshPayload(now.Add(-25 * time.Hour))
		payload["hash"] = signPayload(payload)

		_, err := provider.VerifyPayload(payload)
		assert.ErrorIs(t, err, ErrExpiredAuth)
	})

	t.Run("AuthDateJustInsideWindow", func(t *testing.T) {
		payload := freshPayload(now.Add(-23 * time.Hour))
		payload["hash"] = signPayload(payload)

		_, err := provider.VerifyPayload(payload)
		assert.NoError(t, err)
	})
}
