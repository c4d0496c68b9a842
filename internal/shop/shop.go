// Package shop implements the storefront conversation: game browsing,
// player-id intake, channel selection, payment hand-off and status
// checks. Every screen is drawn into the chat's single UI bubble; the
// funnel state lives in the session store with merge-writes, and only
// the payment commit is serialized by the chat lock.
package shop

import (
	"context"
	"time"

	coremetrics "github.com/riky-24/bot-medsos-sub000/core/metrics"
	tg "github.com/riky-24/bot-medsos-sub000/core/telegram"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/commands"
	tghelpers "github.com/riky-24/bot-medsos-sub000/core/telegram/helpers"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/state"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/ui"
	"github.com/riky-24/bot-medsos-sub000/internal/catalog"
	"github.com/riky-24/bot-medsos-sub000/internal/repo"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"

	tele "gopkg.in/telebot.v4"
)

// Config tunes the storefront surface.
type Config struct {
	StoreName       string        `yaml:"store_name" envconfig:"SHOP_STORE_NAME"`
	PageSize        int           `yaml:"page_size" envconfig:"SHOP_PAGE_SIZE"`
	StatusLimit     int           `yaml:"status_limit" envconfig:"SHOP_STATUS_LIMIT"`
	InvoiceTTL      time.Duration `yaml:"invoice_ttl" envconfig:"SHOP_INVOICE_TTL"`
	ValidateTimeout time.Duration `yaml:"validate_timeout" envconfig:"SHOP_VALIDATE_TIMEOUT"`
	// SimulatePayment skips the gateway and books invoices with a local
	// placeholder reference. Development only.
	SimulatePayment bool `yaml:"simulate_payment" envconfig:"SHOP_SIMULATE_PAYMENT"`
}

func (c Config) withDefaults() Config {
	if c.StoreName == "" {
		c.StoreName = "Medsos Store"
	}
	if c.PageSize <= 0 {
		c.PageSize = 8
	}
	if c.StatusLimit <= 0 {
		c.StatusLimit = 5
	}
	if c.InvoiceTTL <= 0 {
		c.InvoiceTTL = 24 * time.Hour
	}
	if c.ValidateTimeout <= 0 {
		c.ValidateTimeout = 10 * time.Second
	}
	return c
}

// Catalog lists the sellable games and denominations.
type Catalog interface {
	Games(ctx context.Context) ([]catalog.Game, error)
	GameByCode(ctx context.Context, code string) (catalog.Game, error)
	GameServices(ctx context.Context, gameCode string) ([]catalog.Item, error)
	ServiceByCode(ctx context.Context, code string) (catalog.Item, error)
}

// PlayerValidator resolves in-game nicknames before checkout.
type PlayerValidator interface {
	ValidatePlayer(ctx context.Context, validationCode, playerID, zoneID string) (string, error)
}

// Channels lists payment channels and their fee schedules.
type Channels interface {
	Channels(ctx context.Context) ([]tripay.Channel, error)
	ChannelByCode(ctx context.Context, code string) (tripay.Channel, error)
}

// Gateway opens invoices at the payment gateway.
type Gateway interface {
	CreateInvoice(ctx context.Context, order tripay.Order) (*tripay.Invoice, error)
}

// Store persists transactions.
type Store interface {
	Create(ctx context.Context, trx *repo.Transaction) error
	ByMerchantRef(ctx context.Context, merchantRef string) (*repo.Transaction, error)
	UpdateFields(ctx context.Context, merchantRef string, fields map[string]any) error
	RecentByUser(ctx context.Context, userID int64, limit int) ([]repo.Transaction, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// Syncer re-checks one transaction against the gateway.
type Syncer interface {
	Sync(ctx context.Context, ref string) (*repo.Transaction, error)
}

// Invalidator drops a cached remote list so the next read refetches.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Locker serializes the payment commit per chat.
type Locker interface {
	Do(chatID int64, fn func() error) error
}

// Limiter is a boolean cooldown gate.
type Limiter interface {
	Allow(id int64) bool
}

// QuotaLimiter gates remote player validation per user.
type QuotaLimiter interface {
	Allow(id int64) bool
	Remaining(id int64) int
}

// Deps carries the collaborators the storefront drives.
type Deps struct {
	Sessions  state.Manager
	Bubble    *ui.Bubble
	Catalog   Catalog
	Validator PlayerValidator
	Channels  Channels
	Gateway   Gateway
	Store     Store
	Recon     Syncer
	Locks     Locker
	Cooldown  Limiter
	Quota     QuotaLimiter
	Metrics   *coremetrics.Metrics

	// CatalogCache and ChannelCache back the admin /refresh command.
	// Nil skips the invalidation step.
	CatalogCache Invalidator
	ChannelCache Invalidator
}

// Handlers binds the storefront handlers to their collaborators.
type Handlers struct {
	cfg          Config
	sessions     state.Manager
	bubble       *ui.Bubble
	catalog      Catalog
	validator    PlayerValidator
	channels     Channels
	gateway      Gateway
	store        Store
	recon        Syncer
	locks        Locker
	cooldown     Limiter
	quota        QuotaLimiter
	metrics      *coremetrics.Metrics
	catalogCache Invalidator
	channelCache Invalidator
	startedAt    time.Time
	now          func() time.Time
}

// New builds the storefront on its collaborators.
func New(cfg Config, d Deps) *Handlers {
	return &Handlers{
		cfg:          cfg.withDefaults(),
		sessions:     d.Sessions,
		bubble:       d.Bubble,
		catalog:      d.Catalog,
		validator:    d.Validator,
		channels:     d.Channels,
		gateway:      d.Gateway,
		store:        d.Store,
		recon:        d.Recon,
		locks:        d.Locks,
		cooldown:     d.Cooldown,
		quota:        d.Quota,
		metrics:      d.Metrics,
		catalogCache: d.CatalogCache,
		channelCache: d.ChannelCache,
		startedAt:    time.Now(),
		now:          time.Now,
	}
}

// Register wires commands, callbacks and the funnel's per-state text
// handlers. Call once during bootstrap, before the bot consumes
// updates.
func (h *Handlers) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.cmdStart,
		Description: "Mulai dan tampilkan menu utama",
		Aliases:     []string{"menu"},
	})
	reg.RegisterCommand("/status", commands.Command{
		Handler:     h.cmdStatus,
		Description: "Cek status transaksi terakhir",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.cmdHelp,
		Description: "Cara order dan bantuan",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     h.cancelFunnel,
		Description: "Batalkan pesanan yang sedang berjalan",
		Aliases:     []string{"batal"},
	})
	reg.RegisterCommand("/ping", commands.Command{
		Handler:     h.cmdPing,
		Description: "Cek bot masih hidup",
		Hidden:      true,
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     h.cmdStats,
		Description: "Ringkasan transaksi dan sesi",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/refresh", commands.Command{
		Handler:     h.cmdRefresh,
		Description: "Muat ulang daftar harga dari provider",
		AdminOnly:   true,
	})

	for key, handler := range map[string]tele.HandlerFunc{
		"menu:main":     h.cbMainMenu,
		"menu:games":    h.cbGames,
		"menu:status":   h.cmdStatus,
		"menu:help":     h.cmdHelp,
		"game:page":     h.cbGames,
		"game:pick":     h.cbPickGame,
		"product:page":  h.cbProductPage,
		"product:pick":  h.cbPickProduct,
		"order:confirm": h.cbConfirmID,
		"order:cancel":  h.cancelFunnel,
		"pay:channel":   h.cbPickChannel,
		"pay:commit":    h.cbCommitPayment,
		"trx:refresh":   h.cbRefreshTrx,
	} {
		_ = reg.RegisterCallback(key, handler)
	}

	reg.SetCallbackNotFound(h.cbStaleButton)

	state.RegisterHandler(state.StateItemSelected, h.onFunnelText)
	state.RegisterHandler(state.StateIDPendingConfirm, h.onFunnelText)
	state.RegisterHandler(state.StateChannelPending, h.onFunnelText)
	state.RegisterHandler(state.StateReadyToPay, h.onFunnelText)
}

// render draws a screen into the chat's bubble.
func (h *Handlers) render(c tele.Context, s ui.Screen) error {
	ctx := tghelpers.BuildContext(c)
	if _, err := h.bubble.Render(ctx, c.Chat().ID, s); err != nil {
		h.countError()
		return err
	}
	return nil
}

func (h *Handlers) countError() {
	if h.metrics == nil || h.metrics.Errors == nil {
		return
	}
	h.metrics.Errors.WithLabelValues("shop").Inc()
}

// clearFunnel drops the chat's funnel state but keeps the bubble pointer
// so the next screen still replaces the same message.
func (h *Handlers) clearFunnel(chatID int64) {
	last := h.sessions.LastMessageID(chatID)
	h.sessions.Clear(chatID)
	if last != 0 {
		h.sessions.SetLastMessageID(chatID, last)
	}
}

// liveSession returns the chat's session when it is in one of the given
// states. Otherwise it renders the session-expired screen and reports
// false; the pressed button belonged to a funnel that no longer exists.
func (h *Handlers) liveSession(c tele.Context, states ...state.State) (state.Session, bool) {
	sess := h.sessions.Get(c.Chat().ID)
	for _, st := range states {
		if sess.State == st {
			return sess, true
		}
	}
	_ = h.render(c, sessionExpiredScreen())
	return sess, false
}
