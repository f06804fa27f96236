package models

import (
	"time"

	"github.com/google/uuid"
)

type RecentSearchEntry struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Level       int       `json:"level"`
	Vocation    string    `json:"vocation"`
	World       string    `json:"world"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewRecentSearchEntry builds an entry summarizing a fetched character.
func NewRecentSearchEntry(character CharacterRecord, at time.Time) RecentSearchEntry {
	return RecentSearchEntry{
		ID:          uuid.New(),
		Name:        character.Name,
		Level:       character.Level,
		Vocation:    character.Vocation,
		World:       character.World,
		LastUpdated: at,
	}
}
