package apimgr

import (
	"sync"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
)

// Manager is the process-scoped set of APIs. It is filled at startup and
// frozen before traffic is served.
type Manager struct {
	mu     sync.RWMutex
	byName map[string]*API
	order  []*API
	frozen bool
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{byName: make(map[string]*API)}
}

// Add registers api. Adding the same API twice is a no-op; a different API
// under a taken name fails.
func (m *Manager) Add(api *API) error {
	if api == nil {
		return mboterror.New("api cannot be nil").WithCode(mboterror.CodeInvalidInput).WithOperation("apimgr.Add")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byName[api.name]; ok {
		if existing == api {
			return nil
		}
		return mboterror.Newf("api '%s' already registered", api.name).
			WithCode(mboterror.CodeInvalidConfig).
			WithOperation("apimgr.Add").
			WithDetail("url", api.URL())
	}
	if m.frozen {
		return mboterror.New("api manager is frozen").
			WithCode(mboterror.CodeRegistryFrozen).
			WithOperation("apimgr.Add").
			WithDetail("api", api.name)
	}

	m.byName[api.name] = api
	m.order = append(m.order, api)
	return nil
}

// APIs returns all APIs in registration order
func (m *Manager) APIs() []*API {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*API(nil), m.order...)
}

// Lookup returns the API registered under name
func (m *Manager) Lookup(name string) (*API, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byName[name]
	return a, ok
}

// Len returns the number of APIs
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Freeze rejects further additions
func (m *Manager) Freeze() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frozen = true
}
