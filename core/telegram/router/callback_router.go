package router

import (
	"time"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
	tg "github.com/riky-24/bot-medsos-sub000/core/telegram"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/callbacks"
	tghelpers "github.com/riky-24/bot-medsos-sub000/core/telegram/helpers"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that parses button data once and routes
// it through the registry by namespace:action. Unknown or malformed keys
// fall back to the registry's not-found handler; the press is always
// answered so the client stops its spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		_ = c.Respond()

		cb, parseErr := callbacks.FromContext(c)
		key := cb.Key()
		if parseErr != nil {
			key = callbacks.CallbackKey(c)
		}
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		cbHandler, ok := reg.GetCallback(key)
		if parseErr != nil || !ok || cbHandler == nil {
			reason := "not_found"
			if parseErr != nil {
				reason = "malformed"
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "callback.unroutable",
				slog.String("cb_key", logger.SanitizeLimit(key, 128)),
				slog.String("cb_args", logger.SanitizeLimit(callbacks.CallbackPayload(c), 128)),
				slog.String("reason", reason),
			)
			fallback := reg.CallbackNotFound()
			if fallback == nil {
				fallback = opts.NotFound
			}
			extras = append(extras, slog.String("reason", reason))
			return handleWithSummary(c, name, start, "", "", func() error {
				if fallback != nil {
					return fallback(c)
				}
				return nil
			}, extras...)
		}

		return handleWithSummary(c, name, start, "", "", func() error {
			return cbHandler(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
