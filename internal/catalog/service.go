package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"log/slog"

	corecache "github.com/riky-24/bot-medsos-sub000/core/cache"
	"github.com/riky-24/bot-medsos-sub000/core/logger"
)

const servicesCacheKey = "catalog:services"

var (
	// ErrGameNotFound reports an unknown game code.
	ErrGameNotFound = errors.New("game not found")
	// ErrServiceNotFound reports an unknown service code.
	ErrServiceNotFound = errors.New("service not found")
)

// Game is one sellable game in the storefront.
type Game struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	NicknameCode string `json:"nickname_code"`
}

// CanValidate reports whether player ids for this game can be checked
// against the provider before payment.
func (g Game) CanValidate() bool { return g.NicknameCode != "" }

// Item is one sellable denomination, denormalized for display.
type Item struct {
	Code     string `json:"code"`
	GameCode string `json:"game_code"`
	GameName string `json:"game_name"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
}

// nicknameCodes maps storefront game codes to the provider's
// get-nickname lookup codes. Games not listed here sell without remote
// player validation.
var nicknameCodes = map[string]string{
	"mobile-legends": "mobile-legends",
	"free-fire":      "free-fire",
	"genshin-impact": "genshin-impact",
	"higgs-domino":   "higgs-domino",
	"point-blank":    "point-blank",
}

type servicesAPI interface {
	Services(ctx context.Context) ([]ServiceRow, error)
}

// jsonCache is the slice of the Redis client the catalog uses. A nil
// *cache.Cache satisfies it as a no-op.
type jsonCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Service serves the storefront catalog from the provider list, cached
// in Redis with a TTL and falling back to the last good in-process copy
// when the provider is down.
type Service struct {
	api   servicesAPI
	cache jsonCache
	ttl   time.Duration

	mu       sync.RWMutex
	lastGood []Item
}

// NewService wires the catalog service. ttl <= 0 falls back to 10
// minutes.
func NewService(api servicesAPI, cache *corecache.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{api: api, cache: cache, ttl: ttl}
}

// Games lists sellable games ordered by name.
func (s *Service) Games(ctx context.Context) ([]Game, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, 16)
	games := make([]Game, 0, 16)
	for _, item := range items {
		if seen[item.GameCode] {
			continue
		}
		seen[item.GameCode] = true
		games = append(games, Game{
			Code:         item.GameCode,
			Name:         item.GameName,
			NicknameCode: nicknameCodes[item.GameCode],
		})
	}
	return games, nil
}

// GameByCode resolves a single game.
func (s *Service) GameByCode(ctx context.Context, code string) (Game, error) {
	games, err := s.Games(ctx)
	if err != nil {
		return Game{}, err
	}
	for _, game := range games {
		if game.Code == code {
			return game, nil
		}
	}
	return Game{}, ErrGameNotFound
}

// GameServices lists a game's denominations, cheapest first.
func (s *Service) GameServices(ctx context.Context, gameCode string) ([]Item, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Item, 0, 32)
	for _, item := range items {
		if item.GameCode == gameCode {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, ErrGameNotFound
	}
	return out, nil
}

// ServiceByCode resolves one denomination by provider service code.
func (s *Service) ServiceByCode(ctx context.Context, code string) (Item, error) {
	items, err := s.load(ctx)
	if err != nil {
		return Item{}, err
	}
	for _, item := range items {
		if item.Code == code {
			return item, nil
		}
	}
	return Item{}, ErrServiceNotFound
}

// Warm pre-fetches the catalog so the first user does not pay the
// provider round trip.
func (s *Service) Warm(ctx context.Context) error {
	items, err := s.load(ctx)
	if err != nil {
		return err
	}
	logger.Info(ctx, "catalog", "catalog.warm", slog.Int("items", len(items)))
	return nil
}

// Invalidate drops the cached provider list so the next load refetches.
// The in-process copy stays as an outage fallback.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, servicesCacheKey)
}

func (s *Service) load(ctx context.Context) ([]Item, error) {
	var cached []Item
	if hit, err := s.cache.GetJSON(ctx, servicesCacheKey, &cached); err == nil && hit && len(cached) > 0 {
		logger.Debug(ctx, "catalog", "catalog.cache_hit", slog.Int("items", len(cached)))
		return cached, nil
	}

	rows, err := s.api.Services(ctx)
	if err != nil {
		s.mu.RLock()
		stale := s.lastGood
		s.mu.RUnlock()
		if len(stale) > 0 {
			logger.Warn(ctx, "catalog", "catalog.stale_fallback",
				slog.Int("items", len(stale)),
				slog.String("error", logger.SanitizeLimit(err.Error(), 256)),
			)
			return stale, nil
		}
		return nil, err
	}

	items := buildItems(rows)
	if err := s.cache.SetJSON(ctx, servicesCacheKey, items, s.ttl); err != nil {
		logger.Warn(ctx, "catalog", "catalog.cache_write_failed",
			slog.String("error", logger.SanitizeLimit(err.Error(), 256)),
		)
	}

	s.mu.Lock()
	s.lastGood = items
	s.mu.Unlock()

	logger.Debug(ctx, "catalog", "catalog.refreshed", slog.Int("items", len(items)))
	return items, nil
}

// buildItems filters the raw provider list down to sellable rows and
// orders them for display: game name A-Z, then price ascending.
func buildItems(rows []ServiceRow) []Item {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		if row.Code == "" || row.Game == "" || row.Price <= 0 {
			continue
		}
		if row.Status != "" && row.Status != "available" {
			continue
		}
		items = append(items, Item{
			Code:     row.Code,
			GameCode: Slugify(row.Game),
			GameName: row.Game,
			Name:     row.Name,
			Price:    row.Price,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].GameName != items[j].GameName {
			return items[i].GameName < items[j].GameName
		}
		if items[i].Price != items[j].Price {
			return items[i].Price < items[j].Price
		}
		return items[i].Name < items[j].Name
	})
	return items
}

// Slugify turns a provider game name into a stable lowercase code safe
// for callback payloads ("Mobile Legends" -> "mobile-legends").
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
