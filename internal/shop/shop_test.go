package shop

import (
	"context"
	"testing"
	"time"

	tg "github.com/riky-24/bot-medsos-sub000/core/telegram"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/state"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/ui"
	"github.com/riky-24/bot-medsos-sub000/internal/catalog"
	"github.com/riky-24/bot-medsos-sub000/internal/chatlock"
	"github.com/riky-24/bot-medsos-sub000/internal/repo"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"

	tele "gopkg.in/telebot.v4"
)

const (
	testChatID int64 = 77
	testUserID int64 = 501
)

// fakeTeleCtx implements the slice of tele.Context the handlers touch.
// Calling anything else panics through the embedded nil interface,
// which is exactly what a test wants to hear about.
type fakeTeleCtx struct {
	tele.Context

	chat    *tele.Chat
	sender  *tele.User
	text    string
	payload string
	cb      *tele.Callback
	kv      map[string]any
	deleted int
	sent    []string
}

func textCtx(text string) *fakeTeleCtx {
	return &fakeTeleCtx{
		chat:   &tele.Chat{ID: testChatID},
		sender: &tele.User{ID: testUserID, FirstName: "Budi"},
		text:   text,
	}
}

func tapCtx(data string) *fakeTeleCtx {
	c := textCtx("")
	c.cb = &tele.Callback{Data: data}
	return c
}

func (f *fakeTeleCtx) Update() tele.Update { return tele.Update{} }
func (f *fakeTeleCtx) Chat() *tele.Chat    { return f.chat }
func (f *fakeTeleCtx) Sender() *tele.User  { return f.sender }
func (f *fakeTeleCtx) Text() string        { return f.text }

func (f *fakeTeleCtx) Message() *tele.Message {
	return &tele.Message{Text: f.text, Payload: f.payload}
}

func (f *fakeTeleCtx) Callback() *tele.Callback { return f.cb }

func (f *fakeTeleCtx) Delete() error {
	f.deleted++
	return nil
}

func (f *fakeTeleCtx) Send(what interface{}, _ ...interface{}) error {
	if s, ok := what.(string); ok {
		f.sent = append(f.sent, s)
	}
	return nil
}

func (f *fakeTeleCtx) Get(key string) any { return f.kv[key] }

func (f *fakeTeleCtx) Set(key string, val any) {
	if f.kv == nil {
		f.kv = map[string]any{}
	}
	f.kv[key] = val
}

type fakeMessenger struct {
	nextID  int
	ops     []string
	screens []ui.Screen
	sendErr error
	editErr error
}

func (m *fakeMessenger) Send(_ context.Context, _ int64, s ui.Screen) (int, error) {
	m.ops = append(m.ops, "send")
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.screens = append(m.screens, s)
	m.nextID++
	return m.nextID, nil
}

func (m *fakeMessenger) Edit(_ context.Context, _ int64, _ int, s ui.Screen) error {
	m.ops = append(m.ops, "edit")
	if m.editErr != nil {
		return m.editErr
	}
	m.screens = append(m.screens, s)
	return nil
}

func (m *fakeMessenger) Delete(_ context.Context, _ int64, _ int) error {
	m.ops = append(m.ops, "delete")
	return nil
}

func (m *fakeMessenger) last(t *testing.T) ui.Screen {
	t.Helper()
	if len(m.screens) == 0 {
		t.Fatal("no screen was rendered")
	}
	return m.screens[len(m.screens)-1]
}

func buttonData(s ui.Screen) []string {
	var out []string
	if s.Markup == nil {
		return out
	}
	for _, row := range s.Markup.InlineKeyboard {
		for _, btn := range row {
			if btn.Data != "" {
				out = append(out, btn.Data)
			}
		}
	}
	return out
}

func hasButton(s ui.Screen, data string) bool {
	for _, d := range buttonData(s) {
		if d == data {
			return true
		}
	}
	return false
}

type fakeCatalog struct {
	games    []catalog.Game
	items    map[string][]catalog.Item
	gamesErr error
}

func (f *fakeCatalog) Games(_ context.Context) ([]catalog.Game, error) {
	if f.gamesErr != nil {
		return nil, f.gamesErr
	}
	return f.games, nil
}

func (f *fakeCatalog) GameByCode(_ context.Context, code string) (catalog.Game, error) {
	for _, g := range f.games {
		if g.Code == code {
			return g, nil
		}
	}
	return catalog.Game{}, catalog.ErrGameNotFound
}

func (f *fakeCatalog) GameServices(_ context.Context, gameCode string) ([]catalog.Item, error) {
	items, ok := f.items[gameCode]
	if !ok {
		return nil, catalog.ErrGameNotFound
	}
	return items, nil
}

func (f *fakeCatalog) ServiceByCode(_ context.Context, code string) (catalog.Item, error) {
	for _, items := range f.items {
		for _, item := range items {
			if item.Code == code {
				return item, nil
			}
		}
	}
	return catalog.Item{}, catalog.ErrServiceNotFound
}

type validateCall struct {
	code     string
	playerID string
	zoneID   string
}

type fakeValidator struct {
	nickname string
	err      error
	calls    []validateCall
}

func (f *fakeValidator) ValidatePlayer(_ context.Context, code, playerID, zoneID string) (string, error) {
	f.calls = append(f.calls, validateCall{code: code, playerID: playerID, zoneID: zoneID})
	if f.err != nil {
		return "", f.err
	}
	return f.nickname, nil
}

type fakeChannels struct {
	channels []tripay.Channel
	err      error
}

func (f *fakeChannels) Channels(_ context.Context) ([]tripay.Channel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.channels, nil
}

func (f *fakeChannels) ChannelByCode(_ context.Context, code string) (tripay.Channel, error) {
	for _, ch := range f.channels {
		if ch.Code == code {
			return ch, nil
		}
	}
	return tripay.Channel{}, tripay.ErrChannelNotFound
}

type fakeGateway struct {
	inv    *tripay.Invoice
	err    error
	orders []tripay.Order
}

func (f *fakeGateway) CreateInvoice(_ context.Context, order tripay.Order) (*tripay.Invoice, error) {
	f.orders = append(f.orders, order)
	if f.err != nil {
		return nil, f.err
	}
	inv := *f.inv
	inv.MerchantRef = order.MerchantRef
	inv.Method = order.Method
	inv.Amount = order.Amount
	return &inv, nil
}

type fakeTrxStore struct {
	created   []*repo.Transaction
	updates   []map[string]any
	recent    []repo.Transaction
	counts    map[string]int64
	createErr error
	listErr   error
}

func (f *fakeTrxStore) Create(_ context.Context, trx *repo.Transaction) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, trx)
	return nil
}

func (f *fakeTrxStore) ByMerchantRef(_ context.Context, ref string) (*repo.Transaction, error) {
	for _, trx := range f.created {
		if trx.MerchantRef == ref {
			return trx, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeTrxStore) UpdateFields(_ context.Context, _ string, fields map[string]any) error {
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeTrxStore) RecentByUser(_ context.Context, _ int64, limit int) ([]repo.Transaction, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > 0 && len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeTrxStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	return f.counts, nil
}

type fakeSyncer struct {
	trx  *repo.Transaction
	err  error
	refs []string
}

func (f *fakeSyncer) Sync(_ context.Context, ref string) (*repo.Transaction, error) {
	f.refs = append(f.refs, ref)
	if f.err != nil {
		return nil, f.err
	}
	return f.trx, nil
}

type fakeLocker struct {
	busy  bool
	calls int
}

func (l *fakeLocker) Do(_ int64, fn func() error) error {
	if l.busy {
		return chatlock.ErrLocked
	}
	l.calls++
	return fn()
}

type fakeCooldown struct {
	deny bool
}

func (f *fakeCooldown) Allow(_ int64) bool { return !f.deny }

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context) error {
	f.calls++
	return f.err
}

type fakeQuota struct {
	deny      bool
	remaining int
}

func (f *fakeQuota) Allow(_ int64) bool    { return !f.deny }
func (f *fakeQuota) Remaining(_ int64) int { return f.remaining }

type fixture struct {
	h         *Handlers
	sessions  state.Manager
	msgr      *fakeMessenger
	catalog   *fakeCatalog
	validator *fakeValidator
	channels  *fakeChannels
	gateway   *fakeGateway
	trxs      *fakeTrxStore
	recon     *fakeSyncer
	locks     *fakeLocker
	cooldown  *fakeCooldown
	quota     *fakeQuota
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fx := &fixture{
		sessions: state.NewMemoryManager(time.Hour),
		msgr:     &fakeMessenger{},
		catalog: &fakeCatalog{
			games: []catalog.Game{
				{Code: "mobile-legends", Name: "Mobile Legends", NicknameCode: "mobile-legends"},
				{Code: "free-fire", Name: "Free Fire", NicknameCode: "free-fire"},
				{Code: "higgs-domino", Name: "Higgs Domino"},
			},
			items: map[string][]catalog.Item{
				"mobile-legends": {
					{Code: "MLBB86", GameCode: "mobile-legends", GameName: "Mobile Legends", Name: "86 Diamonds", Price: 20000},
					{Code: "MLBB172", GameCode: "mobile-legends", GameName: "Mobile Legends", Name: "172 Diamonds", Price: 39000},
				},
				"higgs-domino": {
					{Code: "HD60M", GameCode: "higgs-domino", GameName: "Higgs Domino", Name: "60M Koin", Price: 12000},
				},
			},
		},
		validator: &fakeValidator{nickname: "BudiGaming"},
		channels: &fakeChannels{
			channels: []tripay.Channel{
				{Group: "E-Wallet", Code: "QRIS", Name: "QRIS", TotalFee: tripay.Fee{Flat: 750, Percent: 0.7}, Active: true},
				{Group: "Virtual Account", Code: "BRIVA", Name: "BRI Virtual Account", TotalFee: tripay.Fee{Flat: 4000}, Active: true},
			},
		},
		gateway: &fakeGateway{
			inv: &tripay.Invoice{
				Reference:   "T0001",
				MethodName:  "QRIS",
				CheckoutURL: "https://pay.example/checkout/T0001",
				QRString:    "00020101021226",
				QRURL:       "https://pay.example/qr/T0001.png",
				Status:      tripay.StatusUnpaid,
				ExpiredTime: 1700086400,
			},
		},
		trxs:     &fakeTrxStore{},
		recon:    &fakeSyncer{},
		locks:    &fakeLocker{},
		cooldown: &fakeCooldown{},
		quota:    &fakeQuota{remaining: 4},
	}

	fx.h = New(Config{}, Deps{
		Sessions:  fx.sessions,
		Bubble:    ui.NewBubble(fx.msgr, fx.sessions),
		Catalog:   fx.catalog,
		Validator: fx.validator,
		Channels:  fx.channels,
		Gateway:   fx.gateway,
		Store:     fx.trxs,
		Recon:     fx.recon,
		Locks:     fx.locks,
		Cooldown:  fx.cooldown,
		Quota:     fx.quota,
	})
	fx.h.now = func() time.Time { return time.Unix(1700000000, 0) }
	return fx
}

func (fx *fixture) session() state.Session {
	return fx.sessions.Get(testChatID)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.StoreName == "" {
		t.Error("StoreName default missing")
	}
	if cfg.PageSize <= 0 || cfg.StatusLimit <= 0 {
		t.Errorf("paging defaults = %d/%d, want positive", cfg.PageSize, cfg.StatusLimit)
	}
	if cfg.InvoiceTTL <= 0 || cfg.ValidateTimeout <= 0 {
		t.Errorf("duration defaults = %v/%v, want positive", cfg.InvoiceTTL, cfg.ValidateTimeout)
	}

	set := Config{StoreName: "Toko", PageSize: 3}.withDefaults()
	if set.StoreName != "Toko" || set.PageSize != 3 {
		t.Errorf("withDefaults overwrote explicit values: %+v", set)
	}
}

func TestRegisterWiresSurface(t *testing.T) {
	fx := newFixture(t)
	reg := tg.NewRegistry()
	fx.h.Register(reg)

	for _, name := range []string{"/start", "/status", "/help", "/cancel", "/ping", "/stats", "/refresh"} {
		if _, _, ok := reg.LookupCommand(name); !ok {
			t.Errorf("command %s not registered", name)
		}
	}
	if key, _, ok := reg.LookupCommand("batal"); !ok || key != "/cancel" {
		t.Errorf("alias batal resolved to %q, want /cancel", key)
	}
	if key, _, ok := reg.LookupCommand("menu"); !ok || key != "/start" {
		t.Errorf("alias menu resolved to %q, want /start", key)
	}

	for _, key := range []string{
		"menu:main", "menu:games", "menu:status", "menu:help",
		"game:page", "game:pick", "product:page", "product:pick",
		"order:confirm", "order:cancel",
		"pay:channel", "pay:commit", "trx:refresh",
	} {
		if _, ok := reg.GetCallback(key); !ok {
			t.Errorf("callback %s not registered", key)
		}
	}
	if reg.CallbackNotFound() == nil {
		t.Error("callback not-found fallback not registered")
	}
}

func TestStaleButtonKeepsState(t *testing.T) {
	fx := newFixture(t)
	fx.sessions.SetState(testChatID, state.StateReadyToPay)

	if err := fx.h.cbStaleButton(tapCtx("retired:action")); err != nil {
		t.Fatalf("cbStaleButton: %v", err)
	}
	if got := fx.sessions.StateOf(testChatID); got != state.StateReadyToPay {
		t.Errorf("state = %v, want untouched", got)
	}
	if len(fx.msgr.screens) != 1 || !hasButton(fx.msgr.screens[0], "menu:main") {
		t.Errorf("screens = %+v, want recovery screen with menu button", fx.msgr.screens)
	}
}
