package shop

import (
	"errors"
	"strings"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/callbacks"
	tghelpers "github.com/riky-24/bot-medsos-sub000/core/telegram/helpers"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/state"
	"github.com/riky-24/bot-medsos-sub000/internal/catalog"
	"github.com/riky-24/bot-medsos-sub000/internal/gamespec"

	tele "gopkg.in/telebot.v4"
)

// cmdStart clears any running funnel and shows the main menu. A deep
// link payload "trx_<ref>" jumps straight to that transaction's status
// screen instead.
func (h *Handlers) cmdStart(c tele.Context) error {
	h.clearFunnel(c.Chat().ID)

	payload := ""
	if msg := c.Message(); msg != nil {
		payload = strings.TrimSpace(msg.Payload)
	}
	if ref, ok := strings.CutPrefix(payload, "trx_"); ok && ref != "" {
		return h.showTrx(c, ref)
	}
	return h.render(c, mainMenuScreen(h.cfg.StoreName))
}

func (h *Handlers) cbMainMenu(c tele.Context) error {
	h.clearFunnel(c.Chat().ID)
	return h.render(c, mainMenuScreen(h.cfg.StoreName))
}

// cbStaleButton draws a recovery screen for callback data nothing
// routes anymore. Funnel state is left untouched.
func (h *Handlers) cbStaleButton(c tele.Context) error {
	return h.render(c, staleButtonScreen())
}

func (h *Handlers) cmdHelp(c tele.Context) error {
	return h.render(c, helpScreen())
}

// cbGames renders the game list. It serves both the menu entry (no
// args) and the pager ("game:page:<n>").
func (h *Handlers) cbGames(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	page := 0
	if cb, err := callbacks.FromContext(c); err == nil {
		if n, perr := cb.ArgInt(0); perr == nil {
			page = n
		}
	}

	games, err := h.catalog.Games(ctx)
	if err != nil {
		logger.Warn(ctx, "shop", "catalog.games_failed", slog.String("err", err.Error()))
		h.countError()
		return h.render(c, troubleScreen("Katalog sedang tidak bisa dimuat.\nCoba lagi sebentar lagi."))
	}
	if len(games) == 0 {
		return h.render(c, troubleScreen("Katalog sedang kosong. Coba lagi nanti."))
	}
	return h.render(c, gamesScreen(games, page, h.cfg.PageSize))
}

func (h *Handlers) cbPickGame(c tele.Context) error {
	cb, _ := callbacks.FromContext(c)
	return h.showProducts(c, cb.Arg(0), 0)
}

func (h *Handlers) cbProductPage(c tele.Context) error {
	cb, _ := callbacks.FromContext(c)
	page, _ := cb.ArgInt(1)
	return h.showProducts(c, cb.Arg(0), page)
}

func (h *Handlers) showProducts(c tele.Context, gameCode string, page int) error {
	ctx := tghelpers.BuildContext(c)

	game, err := h.catalog.GameByCode(ctx, gameCode)
	if err == nil {
		var items []catalog.Item
		items, err = h.catalog.GameServices(ctx, gameCode)
		if err == nil {
			return h.render(c, productsScreen(game, items, page, h.cfg.PageSize))
		}
	}
	if errors.Is(err, catalog.ErrGameNotFound) {
		return h.render(c, catalogMissScreen("Game"))
	}
	logger.Warn(ctx, "shop", "catalog.products_failed",
		slog.String("game", logger.SanitizeLimit(gameCode, 64)),
		slog.String("err", err.Error()),
	)
	h.countError()
	return h.render(c, troubleScreen("Daftar produk sedang tidak bisa dimuat.\nCoba lagi sebentar lagi."))
}

// cbPickProduct stores the chosen denomination and asks for the player
// id. Picking a product always starts a clean funnel; ids from an
// earlier attempt never leak into the new order.
func (h *Handlers) cbPickProduct(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	cb, _ := callbacks.FromContext(c)

	item, err := h.catalog.ServiceByCode(ctx, cb.Arg(0))
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return h.render(c, catalogMissScreen("Produk"))
		}
		logger.Warn(ctx, "shop", "catalog.service_failed",
			slog.String("code", logger.SanitizeLimit(cb.Arg(0), 64)),
			slog.String("err", err.Error()),
		)
		h.countError()
		return h.render(c, troubleScreen("Produk sedang tidak bisa dimuat.\nCoba lagi sebentar lagi."))
	}

	var (
		st     = state.StateItemSelected
		userID int64
		empty  string
		no     bool
		zero   int64
	)
	if sender := c.Sender(); sender != nil {
		userID = sender.ID
	}
	sess := h.sessions.Save(c.Chat().ID, state.Update{
		State:       &st,
		UserID:      &userID,
		Game:        &item.GameCode,
		GameName:    &item.GameName,
		Item:        &item.Name,
		ServiceCode: &item.Code,
		Price:       &item.Price,
		PlayerID:    &empty,
		ZoneID:      &empty,
		Nickname:    &empty,
		Verified:    &no,
		Channel:     &empty,
		ChannelName: &empty,
		Fee:         &zero,
		Total:       &zero,
	})

	example := ""
	if schema, ok := gamespec.Lookup(item.GameCode); ok {
		example = schema.Example
	}

	logger.Info(ctx, "shop", "funnel.item_selected",
		slog.Int64("chat_id", c.Chat().ID),
		slog.String("game", item.GameCode),
		slog.String("service", item.Code),
		slog.Int64("price", item.Price),
	)
	return h.render(c, askIDScreen(sess, example))
}
