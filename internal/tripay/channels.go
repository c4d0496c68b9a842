package tripay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	corecache "github.com/riky-24/bot-medsos-sub000/core/cache"
	"github.com/riky-24/bot-medsos-sub000/core/logger"
)

const channelsCacheKey = "tripay:channels"

// ErrChannelNotFound reports a channel code the merchant does not
// currently offer.
var ErrChannelNotFound = errors.New("payment channel not available")

// looseFloat accepts both JSON numbers and numeric strings; the gateway
// mixes the two in fee fields.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if trimmed == "" || trimmed == "null" {
		*f = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fmt.Errorf("parse fee %q: %w", trimmed, err)
	}
	*f = looseFloat(parsed)
	return nil
}

func (f looseFloat) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

// Fee is a channel fee component: a flat amount plus a percentage of
// the transaction amount.
type Fee struct {
	Flat    looseFloat `json:"flat"`
	Percent looseFloat `json:"percent"`
}

// Channel is one payment channel offered by the gateway.
type Channel struct {
	Group      string     `json:"group"`
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	TotalFee   Fee        `json:"total_fee"`
	MinimumFee looseFloat `json:"minimum_fee"`
	MaximumFee looseFloat `json:"maximum_fee"`
	Active     bool       `json:"active"`
}

// FeeFor computes the customer fee for an amount: flat + percent of
// amount, rounded up, clamped to the channel's min/max when set.
func (ch Channel) FeeFor(amount int64) int64 {
	raw := float64(ch.TotalFee.Flat) + float64(amount)*float64(ch.TotalFee.Percent)/100
	fee := int64(math.Ceil(raw))
	if min := int64(ch.MinimumFee); min > 0 && fee < min {
		fee = min
	}
	if max := int64(ch.MaximumFee); max > 0 && fee > max {
		fee = max
	}
	if fee < 0 {
		fee = 0
	}
	return fee
}

// Channels fetches the merchant's payment channel list.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	if err := c.do(ctx, http.MethodGet, "/merchant/payment-channel", nil, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

type channelAPI interface {
	Channels(ctx context.Context) ([]Channel, error)
}

// jsonCache is the slice of the Redis client the channel list uses. A
// nil *cache.Cache satisfies it as a no-op.
type jsonCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ChannelService serves the active channel list from Redis with a TTL,
// falling back to the last good in-process copy when the gateway is
// down.
type ChannelService struct {
	api   channelAPI
	cache jsonCache
	ttl   time.Duration

	mu       sync.RWMutex
	lastGood []Channel
}

// NewChannelService wires channel caching. ttl <= 0 falls back to 30
// minutes.
func NewChannelService(api channelAPI, cache *corecache.Cache, ttl time.Duration) *ChannelService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ChannelService{api: api, cache: cache, ttl: ttl}
}

// Channels lists active payment channels grouped the way the gateway
// orders them.
func (s *ChannelService) Channels(ctx context.Context) ([]Channel, error) {
	var cached []Channel
	if hit, err := s.cache.GetJSON(ctx, channelsCacheKey, &cached); err == nil && hit && len(cached) > 0 {
		return cached, nil
	}

	raw, err := s.api.Channels(ctx)
	if err != nil {
		s.mu.RLock()
		stale := s.lastGood
		s.mu.RUnlock()
		if len(stale) > 0 {
			logger.Warn(ctx, "pay", "channels.stale_fallback",
				slog.Int("channels", len(stale)),
				slog.String("error", logger.SanitizeLimit(err.Error(), 256)),
			)
			return stale, nil
		}
		return nil, err
	}

	active := make([]Channel, 0, len(raw))
	for _, ch := range raw {
		if ch.Active {
			active = append(active, ch)
		}
	}

	if err := s.cache.SetJSON(ctx, channelsCacheKey, active, s.ttl); err != nil {
		logger.Warn(ctx, "pay", "channels.cache_write_failed",
			slog.String("error", logger.SanitizeLimit(err.Error(), 256)),
		)
	}

	s.mu.Lock()
	s.lastGood = active
	s.mu.Unlock()
	return active, nil
}

// Invalidate drops the cached channel list so the next read refetches.
func (s *ChannelService) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, channelsCacheKey)
}

// ChannelByCode resolves one active channel.
func (s *ChannelService) ChannelByCode(ctx context.Context, code string) (Channel, error) {
	channels, err := s.Channels(ctx)
	if err != nil {
		return Channel{}, err
	}
	for _, ch := range channels {
		if ch.Code == code {
			return ch, nil
		}
	}
	return Channel{}, fmt.Errorf("%w: %q", ErrChannelNotFound, code)
}
