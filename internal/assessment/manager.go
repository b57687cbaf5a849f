package assessment

import (
	"context"
	"sort"
	"sync"

	"github.com/felixgeelhaar/codelab/internal/domain"
)

// Manager keeps one session per (course, problem)
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[domain.ProblemKey]*Session
}

// NewManager creates a session manager
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		sessions: make(map[domain.ProblemKey]*Session),
	}
}

// Open returns the session for key, opening it on first use. When reload is
// set an existing session reloads its problem.
func (m *Manager) Open(ctx context.Context, key domain.ProblemKey, reload bool) (*Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if ok && !reload {
		return s, nil
	}
	if !ok {
		s = NewSession(key, m.deps)
	}

	if err := s.Open(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[key]; ok && existing != s {
		// Lost a race with a concurrent open
		s.Close()
		return existing, nil
	}
	m.sessions[key] = s
	return s, nil
}

// Get returns an open session
func (m *Manager) Get(key domain.ProblemKey) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, domain.ErrSessionNotOpen
	}
	return s, nil
}

// Keys lists open sessions in course/problem order
func (m *Manager) Keys() []domain.ProblemKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]domain.ProblemKey, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Remove closes and forgets the session for key
func (m *Manager) Remove(key domain.ProblemKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return domain.ErrSessionNotOpen
	}
	s.Close()
	delete(m.sessions, key)
	return nil
}

// Close releases every session
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, s := range m.sessions {
		s.Close()
		delete(m.sessions, k)
	}
}
