package engine

import (
	"context"

	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
)

// Provider is a registered log destination. Log receives one entry per
// qualifying call transition; ReadyCheck gates both auto-log eligibility
// and the controller's own readiness.
type Provider struct {
	Name         string
	Log          func(ctx context.Context, entry models.LogEntry) error
	ReadyCheck   func() bool
	AllowAutoLog bool
}

// ProviderInfo is the read-only view exposed to hosts.
type ProviderInfo struct {
	Name         string `json:"name"`
	AllowAutoLog bool   `json:"allowAutoLog"`
	Ready        bool   `json:"ready"`
}

// AddProvider registers a log destination. Registering an existing name
// replaces the descriptor; providers are never removed during normal
// operation.
func (c *Controller) AddProvider(p Provider) error {
	if p.Name == "" {
		return errors.New(errors.ErrConfiguration, "provider name is required")
	}
	if p.Log == nil {
		return errors.New(errors.ErrConfiguration, "provider log function is required").
			WithContext("provider", p.Name)
	}
	if p.ReadyCheck == nil {
		return errors.New(errors.ErrConfiguration, "provider ready check is required").
			WithContext("provider", p.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.providers[p.Name]; !exists {
		c.order = append(c.order, p.Name)
	}
	c.providers[p.Name] = p
	return nil
}

// Providers lists registered providers in registration order.
func (c *Controller) Providers() []ProviderInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]ProviderInfo, 0, len(c.order))
	for _, name := range c.order {
		p := c.providers[name]
		infos = append(infos, ProviderInfo{
			Name:         p.Name,
			AllowAutoLog: p.AllowAutoLog,
			Ready:        p.ReadyCheck(),
		})
	}
	return infos
}

func (c *Controller) providersReadyLocked() bool {
	for _, p := range c.providers {
		if !p.ReadyCheck() {
			return false
		}
	}
	return true
}
