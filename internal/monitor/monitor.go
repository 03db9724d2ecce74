// Package monitor maintains the live logical call list. Hosts push the raw
// call list as the telephony source reports it; the monitor reconciles it
// and publishes a versioned snapshot for the engine to diff.
package monitor

import (
	"sort"
	"sync"

	"github.com/hamzaKhattat/calllog-production-system/internal/calllog"
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/pkg/logger"
)

type Monitor struct {
	mu       sync.RWMutex
	ready    bool
	calls    []models.LogicalCall
	version  uint64
	handlers []func()
}

func New() *Monitor {
	return &Monitor{}
}

// Subscribe registers a handler invoked after every state change: a new
// snapshot or a readiness flip. Handlers run synchronously on the updating
// goroutine, outside the monitor's lock.
func (m *Monitor) Subscribe(handler func()) {
	m.mu.Lock()
	m.handlers = append(m.handlers, handler)
	m.mu.Unlock()
}

// SetReady flips the source readiness flag and notifies subscribers.
func (m *Monitor) SetReady(ready bool) {
	m.mu.Lock()
	changed := m.ready != ready
	m.ready = ready
	m.mu.Unlock()

	if changed {
		logger.WithField("ready", ready).Info("Call monitor readiness changed")
		m.notify()
	}
}

// Update replaces the raw call list. The list is reconciled into logical
// calls, ordered newest first, and published as a new snapshot version.
func (m *Monitor) Update(raw []models.Call) {
	calls := calllog.Reconcile(raw)
	sort.SliceStable(calls, func(i, j int) bool {
		return calllog.LessByStartTime(&calls[i].Call, &calls[j].Call)
	})

	m.mu.Lock()
	m.calls = calls
	m.version++
	version := m.version
	m.mu.Unlock()

	logger.WithField("version", version).WithField("calls", len(calls)).Debug("Call snapshot updated")
	m.notify()
}

func (m *Monitor) notify() {
	m.mu.RLock()
	handlers := make([]func(), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		handler()
	}
}

// Ready reports whether the source has produced a usable call list.
func (m *Monitor) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Snapshot returns the current logical call list and its version. The
// returned slice must be treated as immutable.
func (m *Monitor) Snapshot() ([]models.LogicalCall, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls, m.version
}

// HasRinging reports whether any current call is ringing.
func (m *Monitor) HasRinging() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return calllog.HasRingingCalls(m.calls)
}
