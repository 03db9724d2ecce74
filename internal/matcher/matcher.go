// Package matcher resolves phone numbers and session ids to business
// entities backed by the matcher tables. Hosts register the keys they care
// about; TriggerMatch resolves them in one batch and refreshes the data
// mapping the engine reads.
package matcher

import (
	"sync"

	"github.com/hamzaKhattat/calllog-production-system/internal/models"
)

// matchSet holds the shared key-registration and mapping mechanics of the
// concrete matchers.
type matchSet struct {
	mu      sync.RWMutex
	ready   bool
	keys    map[string]bool
	mapping map[string][]models.MatchEntity
}

func newMatchSet() matchSet {
	return matchSet{
		keys:    make(map[string]bool),
		mapping: make(map[string][]models.MatchEntity),
	}
}

// AddKeys registers keys for the next match pass. Unknown keys resolve to
// no entities rather than errors.
func (m *matchSet) AddKeys(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if key != "" {
			m.keys[key] = true
		}
	}
}

func (m *matchSet) registeredKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.keys))
	for key := range m.keys {
		keys = append(keys, key)
	}
	return keys
}

func (m *matchSet) replaceMapping(mapping map[string][]models.MatchEntity) {
	m.mu.Lock()
	m.mapping = mapping
	m.mu.Unlock()
}

// Matches returns the entities resolved for a key by the last match pass.
func (m *matchSet) Matches(key string) []models.MatchEntity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mapping[key]
}

// SetReady flips the matcher readiness flag.
func (m *matchSet) SetReady(ready bool) {
	m.mu.Lock()
	m.ready = ready
	m.mu.Unlock()
}

func (m *matchSet) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}
