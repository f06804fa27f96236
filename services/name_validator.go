package services

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

const (
	MinCharacterNameLength = 2
	MaxCharacterNameLength = 29
)

// Naming rule violations, reported in the order the rules are checked.
var (
	ErrNameLength         = errors.New("name must be between 2 and 29 characters")
	ErrNameCharacters     = errors.New("name may only contain letters, spaces and hyphens")
	ErrNameHyphenEdge     = errors.New("name must not start or end with a hyphen")
	ErrNameRepeatedSpacer = errors.New("name must not contain double spaces or double hyphens")
)

// ValidateCharacterName checks raw against the game's naming rules after trimming
// surrounding whitespace. It returns nil for a valid name.
func ValidateCharacterName(raw string) error {
	name := strings.TrimSpace(raw)

	length := utf8.RuneCountInString(name)
	if length < MinCharacterNameLength || length > MaxCharacterNameLength {
		return ErrNameLength
	}

	for _, r := range name {
		if !isNameRune(r) {
			return ErrNameCharacters
		}
	}

	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return ErrNameHyphenEdge
	}

	if strings.Contains(name, "  ") || strings.Contains(name, "--") {
		return ErrNameRepeatedSpacer
	}

	return nil
}

func isNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == ' ' || r == '-'
}

// CacheKey is the canonical key for a character name: trimmed and case folded.
// Both the response cache and recent searches deduplicate through it.
func CacheKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameCharacter reports whether two names refer to the same character
func SameCharacter(a, b string) bool {
	return CacheKey(a) == CacheKey(b)
}
