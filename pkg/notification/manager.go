package notification

import (
	"fmt"
)

// Manager routes notices to registered notifiers using a per-notice template
// registry. Delivery failures propagate to the caller, never swallowed.
type Manager struct {
	BaseURL   string
	notifiers map[NotificationSystem]Notifier
	registry  map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewManager creates an empty notification manager. BaseURL is used by
// templates that render absolute links (e.g. password reset).
func NewManager(baseURL string) *Manager {
	return &Manager{
		BaseURL:   baseURL,
		notifiers: make(map[NotificationSystem]Notifier),
		registry:  make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers a notifier for a delivery system.
func (m *Manager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	m.notifiers[system] = notifier
}

// RegisterNotice adds or replaces the template for a notice on a system.
func (m *Manager) RegisterNotice(notice NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if notice == "" || system == "" {
		return fmt.Errorf("notice type and system cannot be empty")
	}
	if _, exists := m.registry[notice]; !exists {
		m.registry[notice] = make(map[NotificationSystem]NoticeTemplate)
	}
	m.registry[notice][system] = template
	return nil
}

// Send renders and delivers a notice over the given system.
func (m *Manager) Send(notice NoticeType, system NotificationSystem, data NotificationData) error {
	templates, exists := m.registry[notice]
	if !exists {
		return fmt.Errorf("no templates registered for notice: %s", notice)
	}
	template, exists := templates[system]
	if !exists {
		return fmt.Errorf("no template registered for system %s under notice %s", system, notice)
	}
	notifier, exists := m.notifiers[system]
	if !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}
	return notifier.Send(notice, data, template)
}
