package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/hamzaKhattat/calllog-production-system/internal/db"
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
)

// ActivityMatcher resolves session ids to existing log entries in the
// call_log table. A non-empty match for a session means someone has
// already started logging that call, so status updates keep flowing to it
// even with auto-log disabled.
type ActivityMatcher struct {
	matchSet
	database *db.DB
}

func NewActivityMatcher(database *db.DB) *ActivityMatcher {
	return &ActivityMatcher{
		matchSet: newMatchSet(),
		database: database,
	}
}

// TriggerMatch re-reads the log entries for every registered session id.
// No caching here: a manual log must be visible to the very next pass.
func (m *ActivityMatcher) TriggerMatch(ctx context.Context) error {
	keys := m.registeredKeys()
	mapping := make(map[string][]models.MatchEntity, len(keys))
	if len(keys) == 0 {
		m.replaceMapping(mapping)
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	query := fmt.Sprintf(`
		SELECT id, session_id, provider, result
		FROM call_log
		WHERE session_id IN (%s)
		ORDER BY id`, placeholders)

	args := make([]interface{}, len(keys))
	for i, key := range keys {
		args[i] = key
	}

	rows, err := m.database.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabase, "activity lookup failed")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var sessionID, provider, result string
		if err := rows.Scan(&id, &sessionID, &provider, &result); err != nil {
			return errors.Wrap(err, errors.ErrDatabase, "activity scan failed")
		}
		mapping[sessionID] = append(mapping[sessionID], models.MatchEntity{
			ID:   fmt.Sprintf("%d", id),
			Type: "activity",
			Name: provider,
		})
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.ErrDatabase, "activity iteration failed")
	}

	m.replaceMapping(mapping)
	return nil
}
