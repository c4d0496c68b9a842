package shop

import (
	"errors"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/callbacks"
	tghelpers "github.com/riky-24/bot-medsos-sub000/core/telegram/helpers"
	"github.com/riky-24/bot-medsos-sub000/internal/repo"

	tele "gopkg.in/telebot.v4"
)

// cmdStatus lists the user's latest transactions with their stored
// statuses. The per-transaction refresh buttons sync on demand.
func (h *Handlers) cmdStatus(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	var userID int64
	if sender := c.Sender(); sender != nil {
		userID = sender.ID
	}
	trxs, err := h.store.RecentByUser(ctx, userID, h.cfg.StatusLimit)
	if err != nil {
		logger.Warn(ctx, "shop", "trx.list_failed", slog.String("err", err.Error()))
		h.countError()
		return h.render(c, troubleScreen("Daftar transaksi belum bisa dimuat.\nCoba lagi sebentar lagi."))
	}
	if len(trxs) == 0 {
		return h.render(c, emptyStatusScreen())
	}
	return h.render(c, statusListScreen(trxs))
}

// cbRefreshTrx re-checks one transaction at the gateway. A per-chat
// cooldown keeps trigger-happy tapping off the gateway; rejected taps
// are dropped quietly since the press was already answered.
func (h *Handlers) cbRefreshTrx(c tele.Context) error {
	chatID := c.Chat().ID
	if h.cooldown != nil && !h.cooldown.Allow(chatID) {
		logger.Debug(tghelpers.BuildContext(c), "shop", "trx.refresh_throttled",
			slog.Int64("chat_id", chatID))
		return nil
	}
	cb, _ := callbacks.FromContext(c)
	return h.showTrx(c, cb.Arg(0))
}

// showTrx syncs one transaction against the gateway and renders its
// detail screen. When the gateway is unreachable the stored state is
// shown instead.
func (h *Handlers) showTrx(c tele.Context, ref string) error {
	ctx := tghelpers.BuildContext(c)

	trx, err := h.recon.Sync(ctx, ref)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return h.render(c, catalogMissScreen("Transaksi"))
		}
		logger.Warn(ctx, "shop", "trx.sync_failed",
			slog.String("ref", logger.SanitizeLimit(ref, 64)),
			slog.String("err", err.Error()),
		)
		h.countError()

		stored, lerr := h.store.ByMerchantRef(ctx, ref)
		if lerr != nil {
			return h.render(c, troubleScreen("Status transaksi belum bisa dicek.\nCoba lagi sebentar lagi."))
		}
		trx = stored
	}
	return h.render(c, trxDetailScreen(trx))
}
