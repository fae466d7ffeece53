package notification

import (
	"bytes"
	"fmt"
	"log/slog"
	texttemplate "text/template"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioConfig holds Twilio SMS settings.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// IsConfigured reports whether all required Twilio settings are present.
func (c TwilioConfig) IsConfigured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// SMSNotifier delivers notices as SMS messages through Twilio.
type SMSNotifier struct {
	client *twilio.RestClient
	config TwilioConfig
}

func NewSMSNotifier(config TwilioConfig) *SMSNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})
	return &SMSNotifier{client: client, config: config}
}

func (s *SMSNotifier) Send(notice NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("SMS notification requires 'To' number")
	}

	tmpl, err := texttemplate.New("sms").Parse(noticeTemplate.Text)
	if err != nil {
		return fmt.Errorf("failed to parse SMS template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, notification.Data); err != nil {
		return fmt.Errorf("failed to execute SMS template: %w", err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(notification.To)
	params.SetFrom(s.config.From)
	params.SetBody(buf.String())

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		slog.Error("Failed to send sms", "to", notification.To, "err", err)
		return err
	}

	slog.Info("SMS sent", "to", notification.To, "notice", notice)
	return nil
}
