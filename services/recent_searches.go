package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fenilmodi00/tibia-lookup-backend/models"
	"github.com/fenilmodi00/tibia-lookup-backend/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	MaxRecentSearches = 4
	RecentSearchesKey = "recent_searches"
)

// RecentSearches is the bounded most-recently-used list of prior lookups.
// It is not safe for concurrent use; a lookup service touches it only from its event loop.
type RecentSearches struct {
	store   shared.KeyValueStore
	key     string
	entries []models.RecentSearchEntry
	logger  *logrus.Entry
}

// NewRecentSearches creates an empty list persisted under key. A nil store keeps the list in memory only.
func NewRecentSearches(store shared.KeyValueStore, key string) *RecentSearches {
	if key == "" {
		key = RecentSearchesKey
	}
	return &RecentSearches{
		store:  store,
		key:    key,
		logger: logrus.WithFields(logrus.Fields{"component": "RecentSearches", "key": key}),
	}
}

// RecentSearchesKeyFor returns the store key of a session's list
func RecentSearchesKeyFor(sessionID string) string {
	if sessionID == "" {
		return RecentSearchesKey
	}
	return RecentSearchesKey + ":" + sessionID
}

// Load replaces the in-memory list with the persisted one, as stored
func (rs *RecentSearches) Load(ctx context.Context) error {
	if rs.store == nil {
		return nil
	}

	data, found, err := rs.store.Get(ctx, rs.key)
	if err != nil {
		return fmt.Errorf("failed to load recent searches: %w", err)
	}
	if !found {
		rs.entries = nil
		return nil
	}

	var entries []models.RecentSearchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode recent searches: %w", err)
	}
	rs.entries = entries

	rs.logger.WithField("count", len(entries)).Debug("Loaded recent searches")
	return nil
}

// Record moves entry to the front, dropping any entry for the same character, and
// truncates the list to MaxRecentSearches. It returns the entries pushed off the end.
// The in-memory list is updated even when persisting fails.
func (rs *RecentSearches) Record(ctx context.Context, entry models.RecentSearchEntry) ([]models.RecentSearchEntry, error) {
	updated := make([]models.RecentSearchEntry, 0, len(rs.entries)+1)
	updated = append(updated, entry)
	for _, existing := range rs.entries {
		if SameCharacter(existing.Name, entry.Name) {
			continue
		}
		updated = append(updated, existing)
	}

	var evicted []models.RecentSearchEntry
	if len(updated) > MaxRecentSearches {
		evicted = append(evicted, updated[MaxRecentSearches:]...)
		updated = updated[:MaxRecentSearches]
	}
	rs.entries = updated

	if len(evicted) > 0 {
		rs.logger.WithField("evicted", len(evicted)).Debug("Recent searches truncated")
	}
	return evicted, rs.persist(ctx)
}

// List returns a copy of the entries, most recent first
func (rs *RecentSearches) List() []models.RecentSearchEntry {
	out := make([]models.RecentSearchEntry, len(rs.entries))
	copy(out, rs.entries)
	return out
}

// Len returns the number of entries
func (rs *RecentSearches) Len() int {
	return len(rs.entries)
}

// Find returns the entry with the given id
func (rs *RecentSearches) Find(id uuid.UUID) (models.RecentSearchEntry, bool) {
	for _, entry := range rs.entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return models.RecentSearchEntry{}, false
}

// Clear empties the list and removes it from the store. It returns the removed entries.
func (rs *RecentSearches) Clear(ctx context.Context) ([]models.RecentSearchEntry, error) {
	removed := rs.entries
	rs.entries = nil

	if rs.store == nil {
		return removed, nil
	}
	if err := rs.store.Delete(ctx, rs.key); err != nil {
		return removed, fmt.Errorf("failed to clear recent searches: %w", err)
	}
	return removed, nil
}

func (rs *RecentSearches) persist(ctx context.Context) error {
	if rs.store == nil {
		return nil
	}

	entries := rs.entries
	if entries == nil {
		entries = []models.RecentSearchEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode recent searches: %w", err)
	}
	if err := rs.store.Put(ctx, rs.key, data); err != nil {
		return fmt.Errorf("failed to persist recent searches: %w", err)
	}
	return nil
}
