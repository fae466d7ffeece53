package impersonate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryLogRepository is a map-backed LogRepository for tests.
type InMemoryLogRepository struct {
	mu   sync.RWMutex
	logs map[string]Log
}

func NewInMemoryLogRepository() *InMemoryLogRepository {
	return &InMemoryLogRepository{logs: make(map[string]Log)}
}

func (r *InMemoryLogRepository) Create(_ context.Context, log Log) (Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	r.logs[log.SessionID] = log
	return log, nil
}

func (r *InMemoryLogRepository) FindBySessionID(_ context.Context, sessionID string) (Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log, ok := r.logs[sessionID]
	if !ok {
		return Log{}, ErrSessionNotFound
	}
	return log, nil
}

func (r *InMemoryLogRepository) End(_ context.Context, sessionID string, endedAt time.Time) (Log, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log, ok := r.logs[sessionID]
	if !ok {
		return Log{}, false, ErrSessionNotFound
	}
	if log.EndedAt != nil {
		return log, false, nil
	}
	log.EndedAt = &endedAt
	r.logs[sessionID] = log
	return log, true, nil
}

func (r *InMemoryLogRepository) FindOpenByImpersonator(_ context.Context, impersonatorID uuid.UUID) ([]Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []Log
	for _, log := range r.logs {
		if log.ImpersonatorID == impersonatorID && log.EndedAt == nil {
			open = append(open, log)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].StartedAt.After(open[j].StartedAt) })
	return open, nil
}

func (r *InMemoryLogRepository) ListByImpersonated(_ context.Context, impersonatedID uuid.UUID) ([]Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var logs []Log
	for _, log := range r.logs {
		if log.ImpersonatedID == impersonatedID {
			logs = append(logs, log)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].StartedAt.After(logs[j].StartedAt) })
	return logs, nil
}

// Count reports the number of stored log rows, for asserting the absence of
// writes in tests.
func (r *InMemoryLogRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.logs)
}
