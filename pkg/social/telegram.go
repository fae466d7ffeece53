package social

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const telegramFreshnessWindow = 86400 * time.Second

// TelegramProvider verifies Telegram Login Widget payloads. The widget signs
// the payload with HMAC-SHA256 keyed by SHA-256 of the bot token; there is no
// redirect or token exchange.
type TelegramProvider struct {
	botToken  string
	freshness time.Duration
	now       func() time.Time
}

func NewTelegramProvider(botToken string) *TelegramProvider {
	return &TelegramProvider{
		botToken:  botToken,
		freshness: telegramFreshnessWindow,
		now:       time.Now,
	}
}

func (p *TelegramProvider) Name() string {
	return "telegram"
}

// VerifyPayload checks the payload MAC and freshness, then maps the Telegram
// fields to a normalized identity. Telegram does not provide an email.
func (p *TelegramProvider) VerifyPayload(payload map[string]string) (Identity, error) {
	checkHash, ok := payload["hash"]
	if !ok || checkHash == "" {
		return Identity{}, ErrInvalidSignature
	}

	// Canonical form: every field except hash, sorted by key, joined as
	// key=value lines.
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+payload[k])
	}
	dataCheckString := strings.Join(lines, "\n")

	secretKey := sha256.Sum256([]byte(p.botToken))
	mac := hmac.New(sha256.New, secretKey[:])
	mac.Write([]byte(dataCheckString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(checkHash)) {
		return Identity{}, ErrInvalidSignature
	}

	if authDate, ok := payload["auth_date"]; ok {
		ts, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: malformed auth_date", ErrExpiredAuth)
		}
		if p.now().Sub(time.Unix(ts, 0)) > p.freshness {
			return Identity{}, ErrExpiredAuth
		}
	}

	name := strings.TrimSpace(payload["first_name"] + " " + payload["last_name"])
	return Identity{
		Provider:   p.Name(),
		ExternalID: payload["id"],
		Name:       name,
		AvatarURL:  payload["photo_url"],
	}, nil
}

// SetClock overrides the provider clock, for tests.
func (p *TelegramProvider) SetClock(now func() time.Time) {
	p.now = now
}
