package shop

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
	tghelpers "github.com/riky-24/bot-medsos-sub000/core/telegram/helpers"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/state"
	"github.com/riky-24/bot-medsos-sub000/internal/catalog"
	"github.com/riky-24/bot-medsos-sub000/internal/classify"
	"github.com/riky-24/bot-medsos-sub000/internal/gamespec"

	tele "gopkg.in/telebot.v4"
)

// onFunnelText handles free text while an order funnel is active. The
// classifier decides between noise, an exit command and candidate
// player-id data; data runs through format validation and, when the
// game supports it, the provider's nickname lookup.
func (h *Handlers) onFunnelText(c tele.Context) error {
	chatID := c.Chat().ID
	ctx := tghelpers.BuildContext(c)
	sess := h.sessions.Get(chatID)
	res := classify.Classify(c.Text(), sess.Game)

	switch res.Kind {
	case classify.KindCommand:
		if res.Action == classify.ActionCancel {
			return h.cancelFunnel(c)
		}
		if strings.EqualFold(strings.TrimSpace(c.Text()), "menu") {
			h.clearFunnel(chatID)
			return h.render(c, mainMenuScreen(h.cfg.StoreName))
		}
		// Unregistered slash commands are noise mid-funnel.
		_ = c.Delete()
		return nil
	case classify.KindIgnore:
		logger.Debug(ctx, "shop", "funnel.text_ignored",
			slog.Int64("chat_id", chatID),
			slog.String("reason", string(res.Reason)),
		)
		_ = c.Delete()
		return nil
	}
	return h.onPlayerID(c, ctx, sess, res)
}

// cancelFunnel aborts the running order from any state. Registered both
// as /cancel and as the cancel button.
func (h *Handlers) cancelFunnel(c tele.Context) error {
	h.clearFunnel(c.Chat().ID)
	return h.render(c, cancelledScreen())
}

func (h *Handlers) onPlayerID(c tele.Context, ctx context.Context, sess state.Session, res classify.Result) error {
	chatID := c.Chat().ID
	if sess.ServiceCode == "" {
		h.clearFunnel(chatID)
		return h.render(c, sessionExpiredScreen())
	}

	if err := gamespec.Validate(c.Text(), sess.Game); err != nil {
		var ferr *gamespec.FormatError
		example := ""
		if errors.As(err, &ferr) {
			example = ferr.Example
		}
		logger.Debug(ctx, "shop", "funnel.format_rejected",
			slog.Int64("chat_id", chatID),
			slog.String("game", sess.Game),
		)
		return h.render(c, formatErrorScreen(sess, example))
	}

	if res.PlayerID != "" && res.PlayerID == sess.PlayerID && res.ZoneID == sess.ZoneID {
		// Same id sent again while its confirmation is already up.
		logger.Debug(ctx, "shop", "funnel.resend_ignored", slog.Int64("chat_id", chatID))
		return nil
	}

	nickname := ""
	verified := false
	game, gerr := h.catalog.GameByCode(ctx, sess.Game)
	if gerr != nil {
		// Catalog lookup failed; skip the nickname check.
		logger.Warn(ctx, "shop", "funnel.game_lookup_failed",
			slog.String("game", sess.Game),
			slog.String("err", gerr.Error()),
		)
	}
	if game.CanValidate() {
		userID := sess.UserID
		if sender := c.Sender(); sender != nil {
			userID = sender.ID
		}
		if h.quota == nil || h.quota.Allow(userID) {
			vctx, cancel := context.WithTimeout(ctx, h.cfg.ValidateTimeout)
			nick, verr := h.validator.ValidatePlayer(vctx, game.NicknameCode, res.PlayerID, res.ZoneID)
			cancel()
			switch {
			case verr == nil:
				nickname, verified = nick, true
			case errors.Is(verr, catalog.ErrPlayerNotFound):
				remaining := -1
				if h.quota != nil {
					remaining = h.quota.Remaining(userID)
				}
				logger.Info(ctx, "shop", "validate.player_not_found",
					slog.Int64("chat_id", chatID),
					slog.String("game", game.NicknameCode),
				)
				return h.render(c, playerNotFoundScreen(sess, res.PlayerID, res.ZoneID, remaining))
			default:
				var apiErr *catalog.APIError
				if errors.As(verr, &apiErr) {
					// Provider answered, but not about the id.
					logger.Warn(ctx, "shop", "validate.provider_trouble",
						slog.String("err", verr.Error()))
					return h.render(c, validatorTroubleScreen(sess))
				}
				// Transport trouble; sell without a nickname rather
				// than blocking the order.
				logger.Warn(ctx, "shop", "validate.unavailable",
					slog.String("err", verr.Error()))
			}
		} else {
			logger.Debug(ctx, "shop", "validate.quota_exhausted",
				slog.Int64("user_id", userID))
		}
	}

	st := state.StateIDPendingConfirm
	sess = h.sessions.Save(chatID, state.Update{
		State:    &st,
		PlayerID: &res.PlayerID,
		ZoneID:   &res.ZoneID,
		Nickname: &nickname,
		Verified: &verified,
	})
	return h.render(c, confirmIDScreen(sess))
}

// cbConfirmID moves a confirmed player id on to channel selection. The
// later states are accepted too so "Ganti Metode" can reopen the list.
func (h *Handlers) cbConfirmID(c tele.Context) error {
	sess, ok := h.liveSession(c,
		state.StateIDPendingConfirm,
		state.StateChannelPending,
		state.StateReadyToPay,
	)
	if !ok {
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	channels, err := h.channels.Channels(ctx)
	if err != nil || len(channels) == 0 {
		if err != nil {
			logger.Warn(ctx, "shop", "channels.load_failed", slog.String("err", err.Error()))
			h.countError()
		}
		return h.render(c, troubleScreen("Metode pembayaran belum bisa dimuat.\nKetuk ✅ Ya, Benar sekali lagi."))
	}

	st := state.StateChannelPending
	sess = h.sessions.Save(c.Chat().ID, state.Update{State: &st})
	return h.render(c, channelsScreen(sess, channels))
}
