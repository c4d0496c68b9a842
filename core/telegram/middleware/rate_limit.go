package middleware

import (
	"sync"
	"time"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Allower gates interactions per user ID. The concrete policy (cooldown
// interval, quota window) lives with the implementation.
type Allower interface {
	Allow(id int64) bool
}

// RateLimitOptions configures behaviour of the rate limit middleware.
// When Limiter is set it decides admission; otherwise a plain minimum
// interval per user is enforced.
type RateLimitOptions struct {
	Interval  time.Duration
	Limiter   Allower
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware returns a middleware that enforces a per-user
// interaction cooldown.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	var (
		userLastSeen   = make(map[int64]time.Time)
		userLastSeenMu sync.Mutex
	)
	allow := func(id int64) bool {
		if opts.Limiter != nil {
			return opts.Limiter.Allow(id)
		}
		now := time.Now()
		userLastSeenMu.Lock()
		defer userLastSeenMu.Unlock()
		if last, ok := userLastSeen[id]; ok && now.Sub(last) < opts.Interval {
			return false
		}
		userLastSeen[id] = now
		return true
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || (opts.Limiter == nil && opts.Interval <= 0) {
				return next(c)
			}

			// Determine update kind and apply configured exclusions
			upd := c.Update()
			kind := "other"
			switch {
			case upd.Callback != nil:
				kind = "callback"
			case upd.Message != nil:
				kind = "message"
			}
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			if !allow(user.ID) {
				chat := c.Chat()
				if chat != nil {
					logger.TG.Warn("rate limit",
						slog.String("event", "tg.rate_limit"),
						slog.Int64("chat_id", chat.ID),
						slog.Int64("user_id", user.ID),
					)
				} else {
					logger.TG.Warn("rate limit",
						slog.String("event", "tg.rate_limit"),
						slog.Int64("user_id", user.ID),
					)
				}
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}

			return next(c)
		}
	}
}
