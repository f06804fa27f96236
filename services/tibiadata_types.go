package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/models"
)

// Wire shapes of GET /v4/character/{name}. Pointer fields are required and
// reported by path when missing; everything else may be absent.

type characterEnvelope struct {
	Character *characterPayload `json:"character"`
}

type characterPayload struct {
	Character          *wireCharacter          `json:"character"`
	Deaths             []wireDeath             `json:"deaths"`
	AccountInformation *wireAccountInformation `json:"account_information"`
	Achievements       []wireAchievement       `json:"achievements"`
	OtherCharacters    []wireOtherCharacter    `json:"other_characters"`
}

type wireCharacter struct {
	Name              *string     `json:"name"`
	FormerNames       []string    `json:"former_names"`
	Sex               *string     `json:"sex"`
	Title             *string     `json:"title"`
	UnlockedTitles    *int        `json:"unlocked_titles"`
	Vocation          *string     `json:"vocation"`
	Level             *int        `json:"level"`
	AchievementPoints *int        `json:"achievement_points"`
	World             *string     `json:"world"`
	FormerWorlds      []string    `json:"former_worlds"`
	Residence         *string     `json:"residence"`
	MarriedTo         string      `json:"married_to"`
	Houses            []wireHouse `json:"houses"`
	Guild             *wireGuild  `json:"guild"`
	LastLogin         string      `json:"last_login"`
	AccountStatus     *string     `json:"account_status"`
	Comment           string      `json:"comment"`
	DeletionDate      string      `json:"deletion_date"`
	Traded            bool        `json:"traded"`
}

type wireHouse struct {
	Name    string `json:"name"`
	Town    string `json:"town"`
	Paid    string `json:"paid"`
	HouseID int    `json:"houseid"`
}

type wireGuild struct {
	Name string `json:"name"`
	Rank string `json:"rank"`
}

type wireDeath struct {
	Time    *string      `json:"time"`
	Level   *int         `json:"level"`
	Killers []wireKiller `json:"killers"`
	Assists []wireKiller `json:"assists"`
	Reason  *string      `json:"reason"`
}

type wireKiller struct {
	Name   string `json:"name"`
	Player bool   `json:"player"`
	Traded bool   `json:"traded"`
	Summon string `json:"summon"`
}

type wireAccountInformation struct {
	Position     string `json:"position"`
	Created      string `json:"created"`
	LoyaltyTitle string `json:"loyalty_title"`
}

type wireAchievement struct {
	Name   *string `json:"name"`
	Grade  *int    `json:"grade"`
	Secret bool    `json:"secret"`
}

type wireOtherCharacter struct {
	Name    *string `json:"name"`
	World   *string `json:"world"`
	Status  *string `json:"status"`
	Deleted bool    `json:"deleted"`
	Main    bool    `json:"main"`
	Traded  bool    `json:"traded"`
}

// fieldError names the JSON path of a value that is missing or malformed
type fieldError struct {
	path  string
	cause error
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.path, e.cause)
}

func (e *fieldError) Unwrap() error {
	return e.cause
}

var (
	errMissingField = errors.New("required field is missing")
	errBadTimestamp = errors.New("invalid timestamp")
)

func missing(path string) error {
	return &fieldError{path: path, cause: errMissingField}
}

// toResponse checks required fields and converts the envelope into the domain model
func (env *characterEnvelope) toResponse(fetchedAt time.Time) (*models.CharacterResponse, error) {
	if env.Character == nil {
		return nil, missing("character")
	}
	payload := env.Character
	if payload.Character == nil {
		return nil, missing("character.character")
	}

	character, err := payload.Character.toRecord("character.character")
	if err != nil {
		return nil, err
	}

	response := &models.CharacterResponse{
		Character:       character,
		Deaths:          make([]models.DeathRecord, 0, len(payload.Deaths)),
		Achievements:    make([]models.Achievement, 0, len(payload.Achievements)),
		OtherCharacters: make([]models.OtherCharacterSummary, 0, len(payload.OtherCharacters)),
		FetchedAt:       fetchedAt,
	}

	for i, death := range payload.Deaths {
		record, err := death.toRecord(fmt.Sprintf("character.deaths[%d]", i))
		if err != nil {
			return nil, err
		}
		response.Deaths = append(response.Deaths, record)
	}

	for i, achievement := range payload.Achievements {
		path := fmt.Sprintf("character.achievements[%d]", i)
		if achievement.Name == nil {
			return nil, missing(path + ".name")
		}
		if achievement.Grade == nil {
			return nil, missing(path + ".grade")
		}
		response.Achievements = append(response.Achievements, models.Achievement{
			Name:   *achievement.Name,
			Grade:  *achievement.Grade,
			Secret: achievement.Secret,
		})
	}

	for i, other := range payload.OtherCharacters {
		path := fmt.Sprintf("character.other_characters[%d]", i)
		switch {
		case other.Name == nil:
			return nil, missing(path + ".name")
		case other.World == nil:
			return nil, missing(path + ".world")
		case other.Status == nil:
			return nil, missing(path + ".status")
		}
		summary := models.OtherCharacterSummary{
			Name:    *other.Name,
			World:   *other.World,
			Status:  strings.ToLower(*other.Status),
			Deleted: other.Deleted,
			Main:    other.Main,
			Traded:  other.Traded,
		}
		if summary.IsOnline() && SameCharacter(summary.Name, character.Name) {
			response.Character.Online = true
		}
		response.OtherCharacters = append(response.OtherCharacters, summary)
	}

	if info := payload.AccountInformation; info != nil {
		accountInfo := &models.AccountInfo{
			LoyaltyTitle: optionalString(info.LoyaltyTitle),
			Position:     optionalString(info.Position),
		}
		created, err := optionalTime(info.Created, "character.account_information.created")
		if err != nil {
			return nil, err
		}
		accountInfo.Created = created
		response.AccountInfo = accountInfo
	}

	return response, nil
}

func (c *wireCharacter) toRecord(path string) (models.CharacterRecord, error) {
	required := []struct {
		field string
		ok    bool
	}{
		{"name", c.Name != nil},
		{"sex", c.Sex != nil},
		{"title", c.Title != nil},
		{"unlocked_titles", c.UnlockedTitles != nil},
		{"vocation", c.Vocation != nil},
		{"level", c.Level != nil},
		{"achievement_points", c.AchievementPoints != nil},
		{"world", c.World != nil},
		{"residence", c.Residence != nil},
		{"account_status", c.AccountStatus != nil},
	}
	for _, r := range required {
		if !r.ok {
			return models.CharacterRecord{}, missing(path + "." + r.field)
		}
	}

	lastLogin, err := optionalTime(c.LastLogin, path+".last_login")
	if err != nil {
		return models.CharacterRecord{}, err
	}
	deletionDate, err := optionalTime(c.DeletionDate, path+".deletion_date")
	if err != nil {
		return models.CharacterRecord{}, err
	}

	record := models.CharacterRecord{
		Name:              *c.Name,
		FormerNames:       c.FormerNames,
		Sex:               *c.Sex,
		Title:             *c.Title,
		Level:             *c.Level,
		Vocation:          *c.Vocation,
		AchievementPoints: *c.AchievementPoints,
		UnlockedTitles:    *c.UnlockedTitles,
		World:             *c.World,
		FormerWorlds:      c.FormerWorlds,
		Residence:         *c.Residence,
		MarriedTo:         optionalString(c.MarriedTo),
		AccountStatus:     *c.AccountStatus,
		LastLogin:         lastLogin,
		Comment:           optionalString(c.Comment),
		DeletionDate:      deletionDate,
		Traded:            c.Traded,
	}

	if c.Guild != nil && c.Guild.Name != "" {
		record.Guild = &models.GuildMembership{Name: c.Guild.Name, Rank: c.Guild.Rank}
	}
	for _, house := range c.Houses {
		record.Houses = append(record.Houses, models.House{
			Name:    house.Name,
			Town:    house.Town,
			Paid:    house.Paid,
			HouseID: house.HouseID,
		})
	}

	return record, nil
}

func (d *wireDeath) toRecord(path string) (models.DeathRecord, error) {
	switch {
	case d.Time == nil:
		return models.DeathRecord{}, missing(path + ".time")
	case d.Level == nil:
		return models.DeathRecord{}, missing(path + ".level")
	case d.Reason == nil:
		return models.DeathRecord{}, missing(path + ".reason")
	}

	at, err := time.Parse(time.RFC3339, *d.Time)
	if err != nil {
		return models.DeathRecord{}, &fieldError{path: path + ".time", cause: errBadTimestamp}
	}

	return models.DeathRecord{
		Time:    at,
		Level:   *d.Level,
		Reason:  *d.Reason,
		Killers: convertKillers(d.Killers),
		Assists: convertKillers(d.Assists),
	}, nil
}

func convertKillers(killers []wireKiller) []models.Killer {
	if len(killers) == 0 {
		return nil
	}
	out := make([]models.Killer, 0, len(killers))
	for _, k := range killers {
		out = append(out, models.Killer{Name: k.Name, Player: k.Player, Traded: k.Traded, Summon: k.Summon})
	}
	return out
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// optionalTime parses an RFC 3339 timestamp; an empty value is absent, not an error
func optionalTime(value, path string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, &fieldError{path: path, cause: errBadTimestamp}
	}
	return &parsed, nil
}
