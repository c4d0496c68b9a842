package shop

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/riky-24/bot-medsos-sub000/core/telegram/state"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"

	tele "gopkg.in/telebot.v4"
)

func driveToCheckout(t *testing.T, fx *fixture) {
	t.Helper()
	pickProduct(t, fx, "MLBB86")
	sendText(t, fx, "812345678 (1234)")
	confirmID(t, fx)
	pickChannel(t, fx, "QRIS")
}

func commit(t *testing.T, fx *fixture) {
	t.Helper()
	if err := fx.h.cbCommitPayment(tapCtx("pay:commit")); err != nil {
		t.Fatalf("cbCommitPayment: %v", err)
	}
}

func TestCommitCreatesTransaction(t *testing.T) {
	fx := newFixture(t)
	driveToCheckout(t, fx)
	commit(t, fx)

	if fx.locks.calls != 1 {
		t.Fatalf("lock acquisitions = %d, want 1", fx.locks.calls)
	}
	if len(fx.trxs.created) != 1 {
		t.Fatalf("transactions created = %d, want 1", len(fx.trxs.created))
	}
	trx := fx.trxs.created[0]

	refShape := regexp.MustCompile(`^ORDER-501-1700000000-[0-9a-f]{8}$`)
	if !refShape.MatchString(trx.MerchantRef) {
		t.Errorf("merchant ref = %q, want %s", trx.MerchantRef, refShape)
	}
	if trx.UserID != testUserID || trx.ChatID != testChatID {
		t.Errorf("ownership = user %d chat %d", trx.UserID, trx.ChatID)
	}
	if trx.ServiceCode != "MLBB86" || trx.PlayerID != "812345678" {
		t.Errorf("order detail = %q/%q", trx.ServiceCode, trx.PlayerID)
	}
	if trx.ZoneID == nil || *trx.ZoneID != "1234" {
		t.Errorf("zone = %v, want 1234", trx.ZoneID)
	}
	if trx.Nickname == nil || *trx.Nickname != "BudiGaming" {
		t.Errorf("nickname = %v, want BudiGaming", trx.Nickname)
	}
	if trx.Amount != 20000 || trx.FeeAmount != 890 || trx.TotalAmount != 20890 {
		t.Errorf("amounts = %d/%d/%d, want 20000/890/20890", trx.Amount, trx.FeeAmount, trx.TotalAmount)
	}
	if trx.Status != tripay.StatusUnpaid {
		t.Errorf("status = %q, want %q", trx.Status, tripay.StatusUnpaid)
	}
	if trx.GatewayRef() != "T0001" {
		t.Errorf("gateway ref = %q, want the gateway reference", trx.GatewayRef())
	}
	if trx.ExpiredAt == nil || trx.ExpiredAt.Unix() != 1700086400 {
		t.Errorf("expiry = %v, want the gateway's expired_time", trx.ExpiredAt)
	}

	if len(fx.gateway.orders) != 1 {
		t.Fatalf("gateway orders = %d, want 1", len(fx.gateway.orders))
	}
	order := fx.gateway.orders[0]
	if order.Amount != 20890 || order.Method != "QRIS" {
		t.Errorf("order sent = %d via %q, want 20890 via QRIS", order.Amount, order.Method)
	}
	if order.ItemSKU != "MLBB86" || order.MerchantRef != trx.MerchantRef {
		t.Errorf("order sku/ref = %q/%q", order.ItemSKU, order.MerchantRef)
	}
	if order.CustomerName != "Budi" || order.CustomerEmail != "tg501@medsos.store" {
		t.Errorf("customer = %q/%q", order.CustomerName, order.CustomerEmail)
	}

	if fx.sessions.InProgress(testChatID) {
		t.Error("funnel must be cleared after commit")
	}
	if fx.sessions.LastMessageID(testChatID) == 0 {
		t.Error("bubble pointer lost after commit")
	}

	screen := fx.msgr.last(t)
	if screen.Photo != "https://pay.example/qr/T0001.png" {
		t.Errorf("payment screen photo = %q, want the QR image", screen.Photo)
	}
	if !strings.Contains(screen.Text, trx.MerchantRef) {
		t.Errorf("payment screen lacks the reference: %q", screen.Text)
	}

	if len(fx.trxs.updates) != 1 {
		t.Fatalf("field updates = %d, want the message_id write", len(fx.trxs.updates))
	}
	if id, ok := fx.trxs.updates[0]["message_id"].(int64); !ok || id == 0 {
		t.Errorf("message_id update = %v", fx.trxs.updates[0])
	}
}

func TestCommitDoubleTapIsDropped(t *testing.T) {
	fx := newFixture(t)
	driveToCheckout(t, fx)
	rendered := len(fx.msgr.screens)

	fx.locks.busy = true
	commit(t, fx)

	if len(fx.gateway.orders) != 0 || len(fx.trxs.created) != 0 {
		t.Error("losing the lock must not reach the gateway")
	}
	if len(fx.msgr.screens) != rendered {
		t.Error("dropped tap must not redraw")
	}
	if st := fx.session().State; st != state.StateReadyToPay {
		t.Errorf("state = %q, want %q", st, state.StateReadyToPay)
	}
}

func TestCommitGatewayFailureAllowsRetry(t *testing.T) {
	fx := newFixture(t)
	driveToCheckout(t, fx)

	fx.gateway.err = errors.New("http 503")
	commit(t, fx)
	if len(fx.trxs.created) != 0 {
		t.Fatal("failed invoice must not be stored")
	}
	if got := fx.msgr.last(t).Text; !strings.Contains(got, "Pembayaran belum bisa dibuat") {
		t.Fatalf("screen = %q, want invoice trouble", got)
	}
	if st := fx.session().State; st != state.StateReadyToPay {
		t.Fatalf("state = %q, failure must keep the order payable", st)
	}

	fx.gateway.err = nil
	commit(t, fx)
	if len(fx.trxs.created) != 1 {
		t.Errorf("transactions after retry = %d, want 1", len(fx.trxs.created))
	}
}

func TestCommitStoreFailureKeepsOrder(t *testing.T) {
	fx := newFixture(t)
	driveToCheckout(t, fx)

	fx.trxs.createErr = errors.New("db down")
	commit(t, fx)
	if got := fx.msgr.last(t).Text; !strings.Contains(got, "Pesanan belum bisa disimpan") {
		t.Fatalf("screen = %q, want store trouble", got)
	}
	if st := fx.session().State; st != state.StateReadyToPay {
		t.Errorf("state = %q, want %q", st, state.StateReadyToPay)
	}
}

func TestSimulatedModeSkipsGateway(t *testing.T) {
	fx := newFixture(t)
	fx.h.cfg.SimulatePayment = true
	driveToCheckout(t, fx)
	commit(t, fx)

	if len(fx.gateway.orders) != 0 {
		t.Error("simulated mode must not call the gateway")
	}
	if len(fx.trxs.created) != 1 {
		t.Fatalf("transactions created = %d, want 1", len(fx.trxs.created))
	}
	trx := fx.trxs.created[0]
	if !trx.Simulated {
		t.Error("transaction not marked simulated")
	}
	if trx.TrxID == nil || *trx.TrxID != "SIM-"+trx.MerchantRef {
		t.Errorf("trx id = %v, want the SIM placeholder", trx.TrxID)
	}
	if trx.GatewayRef() != trx.MerchantRef {
		t.Errorf("gateway ref = %q, placeholder must never reach the gateway", trx.GatewayRef())
	}
	if trx.Status != tripay.StatusUnpaid {
		t.Errorf("status = %q, want %q", trx.Status, tripay.StatusUnpaid)
	}
}

func TestCommitOnDeadSessionShowsExpiry(t *testing.T) {
	fx := newFixture(t)
	commit(t, fx)

	if len(fx.gateway.orders) != 0 || len(fx.trxs.created) != 0 {
		t.Error("dead session must not produce an order")
	}
	if got := fx.msgr.last(t).Text; !strings.Contains(got, "Sesi sudah berakhir") {
		t.Errorf("screen = %q, want session expired", got)
	}
}

func TestBuildTransactionOptionalFields(t *testing.T) {
	sess := state.Session{
		UserID:      9,
		Game:        "free-fire",
		GameName:    "Free Fire",
		Item:        "100 Diamonds",
		ServiceCode: "FF100",
		Price:       15000,
		PlayerID:    "11223344",
		Channel:     "BRIVA",
		ChannelName: "BRI Virtual Account",
		Fee:         4000,
		Total:       19000,
	}
	inv := &tripay.Invoice{
		Reference: "T9",
		Status:    "PAID",
		PayCode:   "8808001122",
	}
	fallback := time.Unix(100, 0).UTC()

	trx := buildTransaction(42, sess, "REF-1", inv, fallback)
	if trx.ZoneID != nil || trx.Nickname != nil {
		t.Errorf("empty zone/nickname must stay NULL: %v %v", trx.ZoneID, trx.Nickname)
	}
	if trx.PayURL != nil || trx.QRString != nil {
		t.Errorf("absent urls must stay NULL: %v %v", trx.PayURL, trx.QRString)
	}
	if trx.PayCode == nil || *trx.PayCode != "8808001122" {
		t.Errorf("pay code = %v", trx.PayCode)
	}
	if trx.Status != tripay.StatusPaid {
		t.Errorf("status = %q, want normalized %q", trx.Status, tripay.StatusPaid)
	}
	if trx.ExpiredAt == nil || !trx.ExpiredAt.Equal(fallback) {
		t.Errorf("expiry = %v, want fallback %v", trx.ExpiredAt, fallback)
	}
}

func TestCustomerName(t *testing.T) {
	cases := []struct {
		name   string
		sender *tele.User
		want   string
	}{
		{"full name", &tele.User{FirstName: "Budi", LastName: "Santoso"}, "Budi Santoso"},
		{"first only", &tele.User{FirstName: "Budi"}, "Budi"},
		{"username fallback", &tele.User{Username: "budi88"}, "budi88"},
		{"anonymous", &tele.User{}, "Pelanggan"},
		{"no sender", nil, "Pelanggan"},
	}
	for _, tc := range cases {
		c := textCtx("")
		c.sender = tc.sender
		if got := customerName(c); got != tc.want {
			t.Errorf("%s: customerName = %q, want %q", tc.name, got, tc.want)
		}
	}
}
