package models

import "time"

type CharacterRecord struct {
	// Identity
	Name        string   `json:"name"`
	FormerNames []string `json:"former_names,omitempty"`
	Sex         string   `json:"sex"`
	Title       string   `json:"title"`

	// Progress
	Level             int    `json:"level"`
	Vocation          string `json:"vocation"`
	AchievementPoints int    `json:"achievement_points"`
	UnlockedTitles    int    `json:"unlocked_titles"`

	// Location
	World        string   `json:"world"`
	FormerWorlds []string `json:"former_worlds,omitempty"`
	Residence    string   `json:"residence"`

	// Social
	Guild     *GuildMembership `json:"guild,omitempty"`
	MarriedTo *string          `json:"married_to,omitempty"`
	Houses    []House          `json:"houses,omitempty"`

	// Account
	AccountStatus string     `json:"account_status"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	Comment       *string    `json:"comment,omitempty"`
	DeletionDate  *time.Time `json:"deletion_date,omitempty"`
	Traded        bool       `json:"traded"`

	// Online is derived from the other characters list by name match
	Online bool `json:"online"`
}

type GuildMembership struct {
	Name string `json:"name"`
	Rank string `json:"rank"`
}

type House struct {
	Name    string `json:"name"`
	Town    string `json:"town"`
	Paid    string `json:"paid"`
	HouseID int    `json:"house_id"`
}

// DeathRecord is kept in the order the API returns it (newest first).
type DeathRecord struct {
	Time    time.Time `json:"time"`
	Level   int       `json:"level"`
	Reason  string    `json:"reason"`
	Killers []Killer  `json:"killers,omitempty"`
	Assists []Killer  `json:"assists,omitempty"`
}

type Killer struct {
	Name   string `json:"name"`
	Player bool   `json:"player"`
	Traded bool   `json:"traded"`
	Summon string `json:"summon,omitempty"`
}

type AccountInfo struct {
	Created      *time.Time `json:"created,omitempty"`
	LoyaltyTitle *string    `json:"loyalty_title,omitempty"`
	Position     *string    `json:"position,omitempty"`
}

type Achievement struct {
	Name   string `json:"name"`
	Grade  int    `json:"grade"`
	Secret bool   `json:"secret"`
}

type OtherCharacterSummary struct {
	Name    string `json:"name"`
	World   string `json:"world"`
	Status  string `json:"status"`
	Deleted bool   `json:"deleted"`
	Main    bool   `json:"main"`
	Traded  bool   `json:"traded"`
}

// IsOnline reports whether the summary marks the character as online.
func (o OtherCharacterSummary) IsOnline() bool {
	return o.Status == "online"
}

// CharacterResponse is one fully parsed lookup result. It is what the cache stores
// and what replaces the currently published character on every successful fetch.
type CharacterResponse struct {
	Character       CharacterRecord         `json:"character"`
	Deaths          []DeathRecord           `json:"deaths"`
	Achievements    []Achievement           `json:"achievements"`
	AccountInfo     *AccountInfo            `json:"account_information,omitempty"`
	OtherCharacters []OtherCharacterSummary `json:"other_characters"`
	FetchedAt       time.Time               `json:"fetched_at"`
}
