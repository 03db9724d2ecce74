package engine

import (
	"context"

	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
)

// AutoLog reports whether auto-log is enabled.
func (c *Controller) AutoLog() bool {
	return c.store.Get(c.storageKey).AutoLog
}

// LogOnRinging reports whether calls may be logged while still ringing.
func (c *Controller) LogOnRinging() bool {
	return c.store.Get(c.storageKey).LogOnRinging
}

// SetAutoLog persists the auto-log switch. A call while the controller is
// not ready, or with an unchanged value, is a silent no-op.
func (c *Controller) SetAutoLog(ctx context.Context, autoLog bool) error {
	if !c.Ready() {
		return nil
	}
	settings := c.store.Get(c.storageKey)
	if settings.AutoLog == autoLog {
		return nil
	}
	settings.AutoLog = autoLog
	if err := c.store.Set(ctx, c.storageKey, settings); err != nil {
		return errors.Wrap(err, errors.ErrStorage, "failed to persist autoLog")
	}
	return nil
}

// SetLogOnRinging persists the log-on-ringing switch with the same gating
// as SetAutoLog.
func (c *Controller) SetLogOnRinging(ctx context.Context, logOnRinging bool) error {
	if !c.Ready() {
		return nil
	}
	settings := c.store.Get(c.storageKey)
	if settings.LogOnRinging == logOnRinging {
		return nil
	}
	settings.LogOnRinging = logOnRinging
	if err := c.store.Set(ctx, c.storageKey, settings); err != nil {
		return errors.Wrap(err, errors.ErrStorage, "failed to persist logOnRinging")
	}
	return nil
}
