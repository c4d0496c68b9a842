// Package classify turns raw chat text into an intent: a command, noise
// to ignore, or candidate player-id data. The checks run as a strict
// priority cascade (command > greeting > conversational > blacklist >
// data) because many inputs match more than one category.
package classify

import (
	"strings"
	"unicode"

	"github.com/riky-24/bot-medsos-sub000/internal/gamespec"
)

// Kind is the top-level intent of a message.
type Kind string

const (
	KindCommand Kind = "command"
	KindIgnore  Kind = "ignore"
	KindData    Kind = "data"
)

// Action refines command intents.
type Action string

const (
	ActionCancel  Action = "cancel"
	ActionGeneral Action = "general"
)

// Reason explains why an input was ignored.
type Reason string

const (
	ReasonEmpty          Reason = "empty"
	ReasonGreeting       Reason = "greeting"
	ReasonConversational Reason = "conversational"
	ReasonBlacklist      Reason = "blacklist"
)

// Result is the classified intent. PlayerID and ZoneID are set only for
// KindData.
type Result struct {
	Kind     Kind
	Action   Action
	Reason   Reason
	PlayerID string
	ZoneID   string
}

const (
	maxPlayerIDLen = 30
	maxZoneIDLen   = 20
	maxDataWords   = 2
	maxBareWordLen = 10
)

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

var (
	exitKeywords   = wordSet("batal", "cancel", "menu", "stop", "keluar")
	cancelKeywords = wordSet("batal", "cancel", "stop", "keluar", "/cancel", "/batal")

	greetings = wordSet(
		"halo", "hai", "hi", "hello", "p", "test",
		"assalamualaikum", "malam", "pagi", "siang", "sore",
	)

	// stopwords mark conversational Indonesian; a player id never
	// contains them as a standalone word.
	stopwords = wordSet(
		"yang", "apakah", "gimana", "bagaimana", "kenapa", "tolong",
		"kak", "min", "gan", "bang", "mas", "mbak",
		"bisa", "tidak", "nggak", "gak", "udah", "sudah", "belum",
		"mau", "ini", "itu",
	)

	blacklist = []string{
		"anjing", "bangsat", "bajingan", "kampret", "kontol",
		"memek", "goblok", "tolol", "babi", "asu",
	}
)

// Classify runs the intent cascade over one message. gameCode selects an
// optional per-game clean rule applied before the id/zone split.
func Classify(text, gameCode string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Kind: KindIgnore, Reason: ReasonEmpty}
	}

	lower := strings.ToLower(trimmed)
	if exitKeywords[lower] || strings.HasPrefix(trimmed, "/") {
		action := ActionGeneral
		if cancelKeywords[lower] {
			action = ActionCancel
		}
		return Result{Kind: KindCommand, Action: action}
	}

	if greetings[lower] {
		return Result{Kind: KindIgnore, Reason: ReasonGreeting}
	}

	if isConversational(lower) {
		return Result{Kind: KindIgnore, Reason: ReasonConversational}
	}

	for _, word := range blacklist {
		if strings.Contains(lower, word) {
			return Result{Kind: KindIgnore, Reason: ReasonBlacklist}
		}
	}

	cleaned := trimmed
	if clean := gamespec.CleanFor(gameCode); clean != nil {
		cleaned = clean(cleaned)
	}
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return Result{Kind: KindIgnore, Reason: ReasonEmpty}
	}

	playerID := filterToken(fields[0], maxPlayerIDLen)
	zoneID := ""
	if len(fields) > 1 {
		zoneID = filterToken(strings.Join(fields[1:], " "), maxZoneIDLen)
	}
	return Result{Kind: KindData, PlayerID: playerID, ZoneID: zoneID}
}

func isConversational(lower string) bool {
	words := strings.Fields(lower)
	if len(words) > maxDataWords {
		return true
	}
	for _, w := range words {
		if stopwords[w] {
			return true
		}
	}
	if strings.ContainsAny(lower, "?!,;") {
		return true
	}
	if len(words) == 1 && len(words[0]) > maxBareWordLen && isAlphabetic(words[0]) {
		return true
	}
	return false
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return len(s) > 0
}

// filterToken keeps only whitelisted id characters and caps the length.
func filterToken(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-', r == '(', r == ')', r == ' ':
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if len(out) > max {
		out = out[:max]
	}
	return out
}
