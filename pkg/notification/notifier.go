package notification

// NotificationSystem represents a delivery channel (email, sms).
type NotificationSystem string

// NoticeType identifies a kind of notice (e.g. "twofa_code").
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"
)

const (
	TwofaCodeNotice     NoticeType = "twofa_code"
	PasswordResetNotice NoticeType = "password_reset_init"
)

// NoticeTemplate holds the renderable content for one notice on one system.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// NotificationData carries the recipient and template data for a single send.
type NotificationData struct {
	To   string            // email address or phone number
	Data map[string]string // template variables
}

// Notifier delivers a rendered notice over one system.
type Notifier interface {
	Send(notice NoticeType, notification NotificationData, template NoticeTemplate) error
}
