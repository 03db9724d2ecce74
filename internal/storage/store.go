// Package storage persists controller settings in redis. Each controller
// registers its storage key with defaults; values are kept write-through in
// a local map so reads never touch the network.
package storage

import (
	"context"
	"sync"

	"github.com/hamzaKhattat/calllog-production-system/internal/db"
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
	"github.com/hamzaKhattat/calllog-production-system/pkg/logger"
)

const keyPrefix = "settings:"

type Store struct {
	cache *db.Cache

	mu       sync.RWMutex
	ready    bool
	values   map[string]models.LoggerSettings
	defaults map[string]models.LoggerSettings
	handlers []func()
}

func NewStore(cache *db.Cache) *Store {
	return &Store{
		cache:    cache,
		values:   make(map[string]models.LoggerSettings),
		defaults: make(map[string]models.LoggerSettings),
	}
}

// Subscribe registers a handler invoked after readiness or value changes.
func (s *Store) Subscribe(handler func()) {
	s.mu.Lock()
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

// Register records a storage key and its defaults. Values load on Start;
// until then Get returns the defaults.
func (s *Store) Register(key string, defaults models.LoggerSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[key] = defaults
	if _, ok := s.values[key]; !ok {
		s.values[key] = defaults
	}
}

// Start loads all registered keys from redis and marks the store ready.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.defaults))
	for key := range s.defaults {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		var settings models.LoggerSettings
		found, err := s.cache.Get(ctx, keyPrefix+key, &settings)
		if err != nil {
			return errors.Wrap(err, errors.ErrStorage, "failed to load settings")
		}
		if found {
			s.mu.Lock()
			s.values[key] = settings
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()

	logger.WithField("keys", len(keys)).Info("Settings store ready")
	s.notify()
	return nil
}

func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Get returns the current settings for a key, falling back to the
// registered defaults.
func (s *Store) Get(key string) models.LoggerSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if value, ok := s.values[key]; ok {
		return value
	}
	return s.defaults[key]
}

// Set writes settings through to redis and the local map, then notifies
// subscribers.
func (s *Store) Set(ctx context.Context, key string, settings models.LoggerSettings) error {
	if err := s.cache.Set(ctx, keyPrefix+key, settings, 0); err != nil {
		return errors.Wrap(err, errors.ErrStorage, "failed to persist settings")
	}

	s.mu.Lock()
	s.values[key] = settings
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) notify() {
	s.mu.RLock()
	handlers := make([]func(), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, handler := range handlers {
		handler()
	}
}
