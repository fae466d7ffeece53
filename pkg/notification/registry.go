package notification

// DefaultManager builds a manager with the email and SMS notifiers wired and
// the notices this package ships registered on both channels.
func DefaultManager(baseURL string, smtp SMTPConfig, twilio TwilioConfig) (*Manager, error) {
	m := NewManager(baseURL)

	emailNotifier, err := NewEmailNotifier(smtp)
	if err != nil {
		return nil, err
	}
	m.RegisterNotifier(EmailSystem, emailNotifier)

	if twilio.IsConfigured() {
		m.RegisterNotifier(SMSSystem, NewSMSNotifier(twilio))
	}

	if err := RegisterDefaultNotices(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterDefaultNotices registers the stock notice templates on a manager.
func RegisterDefaultNotices(m *Manager) error {
	notices := []struct {
		notice   NoticeType
		system   NotificationSystem
		template NoticeTemplate
	}{
		{
			notice: TwofaCodeNotice,
			system: EmailSystem,
			template: NoticeTemplate{
				Subject: "Your verification code",
				Text:    "Your verification code is {{.Code}}. It expires in {{.ExpiresIn}}.",
				Html:    "<p>Your verification code is <strong>{{.Code}}</strong>.</p><p>It expires in {{.ExpiresIn}}.</p>",
			},
		},
		{
			notice: TwofaCodeNotice,
			system: SMSSystem,
			template: NoticeTemplate{
				Text: "{{.Code}} is your verification code.",
			},
		},
		{
			notice: PasswordResetNotice,
			system: EmailSystem,
			template: NoticeTemplate{
				Subject: "Reset your password",
				Text:    "Follow this link to reset your password: {{.Link}}",
				Html:    `<p>Follow <a href="{{.Link}}">this link</a> to reset your password.</p>`,
			},
		},
	}

	for _, n := range notices {
		if err := m.RegisterNotice(n.notice, n.system, n.template); err != nil {
			return err
		}
	}
	return nil
}
