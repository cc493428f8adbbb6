// Package session persists the last-known identity snapshot so the app
// can show something immediately on resume, before the network
// round-trip confirms the session.
package session

import (
	"sync"

	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
)

// Store is the key-value snapshot abstraction. Implementations must
// treat a missing snapshot as a normal state, not an error.
type Store interface {
	Save(ident models.Identity) error
	Load() (*models.Identity, bool)
	Clear() error
}

// Memory keeps the snapshot in process. Useful for tests and for
// deployments that do not want resume-before-confirm behavior.
type Memory struct {
	mu    sync.Mutex
	ident *models.Identity
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Save(ident models.Identity) error {
	m.mu.Lock()
	m.ident = &ident
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load() (*models.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ident == nil {
		return nil, false
	}
	cp := *m.ident
	return &cp, true
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	m.ident = nil
	m.mu.Unlock()
	return nil
}
