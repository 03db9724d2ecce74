// Package providers holds the built-in log destinations.
package providers

import (
	"context"

	"github.com/hamzaKhattat/calllog-production-system/internal/db"
	"github.com/hamzaKhattat/calllog-production-system/internal/engine"
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
)

// NewDatabaseProvider returns a provider that upserts one call_log row per
// (session, provider) pair. Repeated transitions for the same call update
// the row in place, which is what makes the activity matcher see the call
// as already logged.
func NewDatabaseProvider(database *db.DB) engine.Provider {
	return engine.Provider{
		Name:         "database",
		AllowAutoLog: true,
		ReadyCheck:   database.IsHealthy,
		Log: func(ctx context.Context, entry models.LogEntry) error {
			call := entry.Call
			var fromNumber, toNumber string
			if call.From != nil {
				fromNumber = call.From.PhoneNumber
			}
			if call.To != nil {
				toNumber = call.To.PhoneNumber
			}
			var duration int64
			if call.Duration != nil {
				duration = *call.Duration
			}
			var fromEntityID, toEntityID string
			if entry.FromEntity != nil {
				fromEntityID = entry.FromEntity.ID
			}
			if entry.ToEntity != nil {
				toEntityID = entry.ToEntity.ID
			}

			_, err := database.ExecContext(ctx, `
				INSERT INTO call_log (session_id, provider, direction, telephony_status,
					from_number, to_number, result, duration_seconds, start_time,
					from_entity_id, to_entity_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE
					telephony_status = VALUES(telephony_status),
					result = VALUES(result),
					duration_seconds = VALUES(duration_seconds),
					from_entity_id = VALUES(from_entity_id),
					to_entity_id = VALUES(to_entity_id)`,
				call.SessionID, entry.Provider, string(call.Direction), string(call.TelephonyStatus),
				fromNumber, toNumber, call.Result, duration, call.StartTime,
				fromEntityID, toEntityID)
			if err != nil {
				return errors.Wrap(err, errors.ErrDatabase, "call log upsert failed")
			}
			return nil
		},
	}
}
