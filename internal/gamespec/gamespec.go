// Package gamespec holds the per-game player-id schemas used before any
// remote lookup. A game without a schema falls back to the strict
// digits-only rule; games with alphanumeric or zoned ids must register a
// schema here.
package gamespec

import (
	"fmt"
	"regexp"
	"strings"
)

// Schema describes the literal shape of a valid player id for one game.
type Schema struct {
	// Pattern is matched against the whole trimmed input.
	Pattern *regexp.Regexp
	// Example is shown to the user on a format error.
	Example string
	// Clean normalizes raw input before it is split into id and zone.
	// Nil means no normalization.
	Clean func(string) string
}

// FormatError reports input that failed the schema for a game.
type FormatError struct {
	GameCode string
	Example  string
}

func (e *FormatError) Error() string {
	if e.Example != "" {
		return fmt.Sprintf("invalid player id format for %s, expected like %q", e.GameCode, e.Example)
	}
	return fmt.Sprintf("invalid player id format for %s, digits only", e.GameCode)
}

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// stripZoneParens turns "12345678 (1234)" and "12345678(1234)" into
// "12345678 1234" so the id/zone split sees two plain tokens.
func stripZoneParens(s string) string {
	s = strings.NewReplacer("(", " ", ")", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// schemas is keyed by the catalog's game code.
var schemas = map[string]Schema{
	"mobile-legends": {
		Pattern: regexp.MustCompile(`^[0-9]{5,12}\s*\(?[0-9]{3,6}\)?$`),
		Example: "123456789 (1234)",
		Clean:   stripZoneParens,
	},
	"free-fire": {
		Pattern: regexp.MustCompile(`^[0-9]{6,12}$`),
		Example: "123456789",
	},
	"pubg-mobile": {
		Pattern: regexp.MustCompile(`^[0-9]{8,12}$`),
		Example: "5123456789",
	},
	"genshin-impact": {
		Pattern: regexp.MustCompile(`^[0-9]{9}$`),
		Example: "800123456",
	},
	"higgs-domino": {
		Pattern: regexp.MustCompile(`^[0-9]{6,12}$`),
		Example: "123456789",
	},
	// Point Blank tops up by nickname, not numeric id.
	"point-blank": {
		Pattern: regexp.MustCompile(`^[A-Za-z0-9._-]{4,16}$`),
		Example: "NickName123",
	},
}

// Lookup returns the schema for a game code, if one is registered.
func Lookup(gameCode string) (Schema, bool) {
	s, ok := schemas[strings.ToLower(strings.TrimSpace(gameCode))]
	return s, ok
}

// CleanFor returns the game's input normalizer, or nil when the game has
// no schema or no clean rule.
func CleanFor(gameCode string) func(string) string {
	if s, ok := Lookup(gameCode); ok {
		return s.Clean
	}
	return nil
}

// Validate checks raw input against the game's schema. Games without a
// schema require the whole trimmed input to be digits only.
func Validate(raw, gameCode string) error {
	trimmed := strings.TrimSpace(raw)
	s, ok := Lookup(gameCode)
	if !ok {
		if !digitsOnly.MatchString(trimmed) {
			return &FormatError{GameCode: gameCode}
		}
		return nil
	}
	if !s.Pattern.MatchString(trimmed) {
		return &FormatError{GameCode: gameCode, Example: s.Example}
	}
	return nil
}
