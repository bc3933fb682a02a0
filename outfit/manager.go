package outfit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Factory builds the engine for an account on first use.
type Factory func(accountID int64) (*Engine, error)

// Manager maintains the registry of per-account engines.
type Manager struct {
	mu      sync.Mutex
	engines map[int64]*Engine // accountID → engine
	factory Factory
	logger  *zap.Logger
}

// NewManager creates a new Manager.
func NewManager(factory Factory, logger *zap.Logger) *Manager {
	return &Manager{
		engines: make(map[int64]*Engine),
		factory: factory,
		logger:  logger,
	}
}

// Get returns the account's engine, creating it if needed. The engine is
// marked used so a concurrent Sweep does not drop it before the caller acts.
func (m *Manager) Get(accountID int64) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.engines[accountID]; ok {
		e.touch()
		return e, nil
	}
	e, err := m.factory(accountID)
	if err != nil {
		return nil, err
	}
	m.engines[accountID] = e
	m.logger.Debug("outfit session opened", zap.Int64("account_id", accountID))
	return e, nil
}

// Lookup returns the account's engine without creating one.
func (m *Manager) Lookup(accountID int64) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engines[accountID]
}

// Drop discards the account's session, e.g. on logout.
func (m *Manager) Drop(accountID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.engines, accountID)
}

// Sweep drops sessions idle for longer than idle that are not mid-operation
// and returns how many were dropped.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.engines {
		if e.Loading() || e.LastUsed().After(cutoff) {
			continue
		}
		delete(m.engines, id)
		n++
	}
	if n > 0 {
		m.logger.Info("idle outfit sessions swept", zap.Int("count", n), zap.Int("remaining", len(m.engines)))
	}
	return n
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.engines)
}
