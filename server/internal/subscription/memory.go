package subscription

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRegistry is an in-process Registry. Subscribers are lost on restart.
type MemoryRegistry struct {
	mu    sync.RWMutex
	byID  map[string]Subscriber
	urls  map[string]string // callback url -> id
	order []string
	now   func() time.Time
}

// NewMemoryRegistry returns an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byID: make(map[string]Subscriber),
		urls: make(map[string]string),
		now:  time.Now,
	}
}

func (m *MemoryRegistry) Subscribe(_ context.Context, s Subscriber) (string, error) {
	if err := validate(&s); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.urls[s.CallbackURL]; ok {
		return "", ErrDuplicateURL
	}

	s.ID = uuid.NewString()
	s.CreatedAt = m.now()
	m.byID[s.ID] = s
	m.urls[s.CallbackURL] = s.ID
	m.order = append(m.order, s.ID)
	return s.ID, nil
}

func (m *MemoryRegistry) Unsubscribe(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	delete(m.urls, s.CallbackURL)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	return nil
}

func (m *MemoryRegistry) List(_ context.Context) ([]Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Subscriber, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *MemoryRegistry) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID), nil
}
