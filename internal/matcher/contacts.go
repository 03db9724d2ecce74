package matcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hamzaKhattat/calllog-production-system/internal/db"
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/internal/phone"
	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
	"github.com/hamzaKhattat/calllog-production-system/pkg/logger"
)

const contactCacheTTL = time.Minute

// ContactMatcher resolves phone numbers to contact entities from the
// contacts table. Numbers are matched on their cleaned form, so formatting
// differences between the telephony feed and the host's contact data do
// not matter.
type ContactMatcher struct {
	matchSet
	database *db.DB
	cache    *db.Cache
}

func NewContactMatcher(database *db.DB, cache *db.Cache) *ContactMatcher {
	return &ContactMatcher{
		matchSet: newMatchSet(),
		database: database,
		cache:    cache,
	}
}

// TriggerMatch resolves every registered number in one batch and replaces
// the data mapping. Cached numbers skip the database.
func (m *ContactMatcher) TriggerMatch(ctx context.Context) error {
	keys := m.registeredKeys()
	mapping := make(map[string][]models.MatchEntity, len(keys))
	if len(keys) == 0 {
		m.replaceMapping(mapping)
		return nil
	}

	// key → cleaned number; several keys may clean to the same number
	cleanOf := make(map[string]string, len(keys))
	var misses []string
	seen := make(map[string]bool)
	byClean := make(map[string][]models.MatchEntity)

	for _, key := range keys {
		cleaned := phone.CleanNumber(key)
		if cleaned == "" {
			continue
		}
		cleanOf[key] = cleaned
		if seen[cleaned] {
			continue
		}
		seen[cleaned] = true

		var cached []models.MatchEntity
		if found, _ := m.cache.Get(ctx, "contacts:"+cleaned, &cached); found {
			byClean[cleaned] = cached
			continue
		}
		misses = append(misses, cleaned)
	}

	if len(misses) > 0 {
		fetched, err := m.queryContacts(ctx, misses)
		if err != nil {
			return err
		}
		for _, cleaned := range misses {
			entities := fetched[cleaned]
			byClean[cleaned] = entities
			if err := m.cache.Set(ctx, "contacts:"+cleaned, entities, contactCacheTTL); err != nil {
				logger.WithError(err).Debug("Contact cache write failed")
			}
		}
	}

	for key, cleaned := range cleanOf {
		if entities := byClean[cleaned]; len(entities) > 0 {
			mapping[key] = entities
		}
	}
	m.replaceMapping(mapping)
	return nil
}

func (m *ContactMatcher) queryContacts(ctx context.Context, cleaned []string) (map[string][]models.MatchEntity, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cleaned)), ",")
	query := fmt.Sprintf(`
		SELECT entity_id, entity_type, name, phone_number, phone_number_clean
		FROM contacts
		WHERE phone_number_clean IN (%s)
		ORDER BY id`, placeholders)

	args := make([]interface{}, len(cleaned))
	for i, number := range cleaned {
		args[i] = number
	}

	rows, err := m.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabase, "contact lookup failed")
	}
	defer rows.Close()

	result := make(map[string][]models.MatchEntity)
	for rows.Next() {
		var entity models.MatchEntity
		var clean string
		if err := rows.Scan(&entity.ID, &entity.Type, &entity.Name, &entity.PhoneNumber, &clean); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabase, "contact scan failed")
		}
		result[clean] = append(result[clean], entity)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabase, "contact iteration failed")
	}
	return result, nil
}

// UpsertContact writes a contact row, used by hosts to seed matcher data.
func (m *ContactMatcher) UpsertContact(ctx context.Context, entity models.MatchEntity) error {
	if entity.ID == "" || entity.PhoneNumber == "" {
		return errors.New(errors.ErrInvalidCall, "contact requires id and phone number")
	}
	entityType := entity.Type
	if entityType == "" {
		entityType = "contact"
	}
	cleaned := phone.CleanNumber(entity.PhoneNumber)

	_, err := m.database.ExecContext(ctx, `
		INSERT INTO contacts (entity_id, entity_type, name, phone_number, phone_number_clean)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE entity_type = VALUES(entity_type), name = VALUES(name),
			phone_number = VALUES(phone_number)`,
		entity.ID, entityType, entity.Name, entity.PhoneNumber, cleaned)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabase, "contact upsert failed")
	}
	if err := m.cache.Delete(ctx, "contacts:"+cleaned); err != nil {
		logger.WithError(err).Debug("Contact cache invalidation failed")
	}
	return nil
}
