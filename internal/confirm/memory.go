package confirm

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	subject string
	expires time.Time
}

// MemoryStore keeps tokens in process. Tokens are lost on restart and are
// not shared between instances; use RedisStore when running more than one.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (m *MemoryStore) Put(_ context.Context, token, subject string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	// Drop expired entries so abandoned tokens do not accumulate.
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[token] = entry{subject: subject, expires: now.Add(ttl)}
	return nil
}

func (m *MemoryStore) Take(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[token]
	if !ok {
		return "", ErrInvalidToken
	}
	delete(m.entries, token)
	if !m.now().Before(e.expires) {
		return "", ErrInvalidToken
	}
	return e.subject, nil
}
