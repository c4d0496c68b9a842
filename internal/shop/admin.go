package shop

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/buildinfo"
	"github.com/riky-24/bot-medsos-sub000/core/logger"
	tghelpers "github.com/riky-24/bot-medsos-sub000/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) cmdPing(c tele.Context) error {
	return tghelpers.SendText(c, "🏓 pong")
}

// cmdRefresh drops the cached provider and channel lists, then reloads
// both so price changes go live without waiting out the TTL.
func (h *Handlers) cmdRefresh(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	for name, inv := range map[string]Invalidator{
		"catalog":  h.catalogCache,
		"channels": h.channelCache,
	} {
		if inv == nil {
			continue
		}
		if err := inv.Invalidate(ctx); err != nil {
			logger.Warn(ctx, "shop", "refresh.invalidate_failed",
				slog.String("cache", name),
				slog.String("err", err.Error()),
			)
		}
	}

	games, err := h.catalog.Games(ctx)
	if err != nil {
		logger.Warn(ctx, "shop", "refresh.reload_failed", slog.String("err", err.Error()))
		return tghelpers.SendText(c, "Cache sudah dibuang, tapi daftar harga belum bisa dimuat ulang.")
	}
	channels, err := h.channels.Channels(ctx)
	if err != nil {
		logger.Warn(ctx, "shop", "refresh.channels_failed", slog.String("err", err.Error()))
		return tghelpers.SendText(c, fmt.Sprintf("Katalog dimuat ulang (%d game), channel pembayaran gagal dimuat.", len(games)))
	}
	return tghelpers.SendText(c, fmt.Sprintf("Katalog dimuat ulang: %d game, %d channel pembayaran.", len(games), len(channels)))
}

// cmdStats reports order counts by status, live sessions and process
// uptime. Admin only; replies as a plain message, not via the bubble.
func (h *Handlers) cmdStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	counts, err := h.store.CountByStatus(ctx)
	if err != nil {
		logger.Warn(ctx, "shop", "stats.count_failed", slog.String("err", err.Error()))
		return tghelpers.SendText(c, "Statistik belum bisa diambil.")
	}

	statuses := make([]string, 0, len(counts))
	var total int64
	for st, n := range counts {
		statuses = append(statuses, st)
		total += n
	}
	sort.Strings(statuses)

	var b strings.Builder
	b.WriteString("*Statistik*\n\n")
	fmt.Fprintf(&b, "Transaksi: %d\n", total)
	for _, st := range statuses {
		fmt.Fprintf(&b, "• %s: %d\n", st, counts[st])
	}
	fmt.Fprintf(&b, "\nSesi aktif: %d\n", h.sessions.Len())
	fmt.Fprintf(&b, "Uptime: %s\n", time.Since(h.startedAt).Round(time.Second))
	fmt.Fprintf(&b, "Versi: %s (%s)", buildinfo.Version, buildinfo.Commit)
	return tghelpers.SendMD(c, b.String())
}
