package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hamzaKhattat/calllog-production-system/internal/engine"
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
)

// WebhookConfig describes one webhook destination.
type WebhookConfig struct {
	Name         string
	URL          string
	AllowAutoLog bool
	Timeout      time.Duration
}

// NewWebhookProvider returns a provider that POSTs each log entry as JSON.
// Any non-2xx response is the destination's failure to report; the engine
// does not retry.
func NewWebhookProvider(cfg WebhookConfig) engine.Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return engine.Provider{
		Name:         cfg.Name,
		AllowAutoLog: cfg.AllowAutoLog,
		ReadyCheck:   func() bool { return cfg.URL != "" },
		Log: func(ctx context.Context, entry models.LogEntry) error {
			body, err := json.Marshal(entry)
			if err != nil {
				return errors.Wrap(err, errors.ErrProviderFailed, "failed to encode log entry")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
			if err != nil {
				return errors.Wrap(err, errors.ErrProviderFailed, "failed to build webhook request")
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return errors.Wrap(err, errors.ErrProviderFailed, "webhook request failed")
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return errors.New(errors.ErrProviderFailed,
					fmt.Sprintf("webhook returned status %d", resp.StatusCode)).
					WithContext("provider", cfg.Name)
			}
			return nil
		},
	}
}
