package registry

import (
	"sync"

	"github.com/hiet-studio/companion-server/internal/live"
)

// Manager tracks the live engine session owned by each connected client.
// The device handles and the upstream connection belong to exactly one
// session per client, so a client with a running session cannot register
// another.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*live.Session
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*live.Session)}
}

// Put registers the session for clientUID. It reports false when the client
// already owns a session that is still running.
func (m *Manager) Put(clientUID string, session *live.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[clientUID]; ok {
		if existing.State() == live.StateConnecting || existing.State() == live.StateActive {
			return false
		}
	}
	m.sessions[clientUID] = session
	return true
}

// Get returns the session registered for clientUID, or nil.
func (m *Manager) Get(clientUID string) *live.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[clientUID]
}

// Remove drops the registration and returns the removed session, or nil.
func (m *Manager) Remove(clientUID string) *live.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[clientUID]
	delete(m.sessions, clientUID)
	return session
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
