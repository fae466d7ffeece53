package notification

import "sync"

// MockNotifier records sends for tests.
type MockNotifier struct {
	mu    sync.Mutex
	Sent  []NotificationData
	Types []NoticeType
	Err   error
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Send(notice NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, notification)
	m.Types = append(m.Types, notice)
	return nil
}

// LastSent returns the most recent notification, or nil when none was sent.
func (m *MockNotifier) LastSent() *NotificationData {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return &m.Sent[len(m.Sent)-1]
}
