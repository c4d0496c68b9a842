package shop

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/callbacks"
	tghelpers "github.com/riky-24/bot-medsos-sub000/core/telegram/helpers"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/state"
	"github.com/riky-24/bot-medsos-sub000/internal/chatlock"
	"github.com/riky-24/bot-medsos-sub000/internal/repo"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"

	tele "gopkg.in/telebot.v4"
)

// cbPickChannel fixes the payment channel and the totals, then shows
// the fee breakdown. Re-picking from the breakdown screen is allowed.
func (h *Handlers) cbPickChannel(c tele.Context) error {
	sess, ok := h.liveSession(c, state.StateChannelPending, state.StateReadyToPay)
	if !ok {
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	cb, _ := callbacks.FromContext(c)

	ch, err := h.channels.ChannelByCode(ctx, cb.Arg(0))
	if err != nil {
		if errors.Is(err, tripay.ErrChannelNotFound) {
			return h.render(c, catalogMissScreen("Metode pembayaran"))
		}
		logger.Warn(ctx, "shop", "channels.lookup_failed",
			slog.String("code", logger.SanitizeLimit(cb.Arg(0), 32)),
			slog.String("err", err.Error()),
		)
		h.countError()
		return h.render(c, troubleScreen("Metode pembayaran belum bisa dimuat.\nCoba pilih lagi."))
	}

	fee := ch.FeeFor(sess.Price)
	total := sess.Price + fee
	st := state.StateReadyToPay
	sess = h.sessions.Save(c.Chat().ID, state.Update{
		State:       &st,
		Channel:     &ch.Code,
		ChannelName: &ch.Name,
		Fee:         &fee,
		Total:       &total,
	})

	logger.Debug(ctx, "shop", "funnel.channel_picked",
		slog.Int64("chat_id", c.Chat().ID),
		slog.String("channel", ch.Code),
		slog.Int64("fee", fee),
		slog.Int64("total", total),
	)
	return h.render(c, checkoutScreen(sess))
}

// cbCommitPayment creates the invoice under the chat lock. A double tap
// loses the lock and is dropped; the first tap's screen is the answer.
func (h *Handlers) cbCommitPayment(c tele.Context) error {
	chatID := c.Chat().ID
	err := h.locks.Do(chatID, func() error {
		return h.finalizePayment(c)
	})
	if errors.Is(err, chatlock.ErrLocked) {
		logger.Debug(tghelpers.BuildContext(c), "shop", "pay.duplicate_tap",
			slog.Int64("chat_id", chatID))
		return nil
	}
	return err
}

func (h *Handlers) finalizePayment(c tele.Context) error {
	chatID := c.Chat().ID
	ctx := tghelpers.BuildContext(c)

	sess := h.sessions.Get(chatID)
	if sess.State != state.StateReadyToPay || sess.ServiceCode == "" || sess.Channel == "" {
		return h.render(c, sessionExpiredScreen())
	}

	merchantRef := h.newMerchantRef(sess.UserID)
	expiredAt := h.now().Add(h.cfg.InvoiceTTL)

	var (
		inv *tripay.Invoice
		err error
	)
	if h.cfg.SimulatePayment {
		inv = simulatedInvoice(merchantRef, sess.Total, expiredAt)
	} else {
		inv, err = h.gateway.CreateInvoice(ctx, tripay.Order{
			MerchantRef:   merchantRef,
			Method:        sess.Channel,
			Amount:        sess.Total,
			CustomerName:  customerName(c),
			CustomerEmail: fmt.Sprintf("tg%d@medsos.store", sess.UserID),
			ItemSKU:       sess.ServiceCode,
			ItemName:      sess.Item,
			ExpiredAt:     expiredAt,
		})
	}
	if err != nil {
		logger.Error(ctx, "shop", "pay.invoice_failed",
			slog.String("merchant_ref", merchantRef),
			slog.String("channel", sess.Channel),
			slog.String("err", err.Error()),
		)
		h.countError()
		return h.render(c, troubleScreen("Pembayaran belum bisa dibuat.\nKetuk 💳 Bayar Sekarang untuk mencoba lagi."))
	}

	trx := buildTransaction(chatID, sess, merchantRef, inv, expiredAt)
	trx.Simulated = h.cfg.SimulatePayment
	if err := h.store.Create(ctx, trx); err != nil {
		logger.Error(ctx, "shop", "pay.store_failed",
			slog.String("merchant_ref", merchantRef),
			slog.String("err", err.Error()),
		)
		h.countError()
		return h.render(c, troubleScreen("Pesanan belum bisa disimpan.\nKetuk 💳 Bayar Sekarang untuk mencoba lagi."))
	}

	if h.metrics != nil && h.metrics.OrdersTotal != nil {
		h.metrics.OrdersTotal.WithLabelValues(trx.Status).Inc()
	}
	logger.Info(ctx, "shop", "pay.invoice_created",
		slog.String("merchant_ref", merchantRef),
		slog.String("channel", sess.Channel),
		slog.Int64("total", sess.Total),
		slog.Bool("simulated", trx.Simulated),
	)

	// The order now lives as a transaction; the funnel is done.
	h.clearFunnel(chatID)

	msgID, rerr := h.bubble.Render(ctx, chatID, paymentScreen(trx, inv))
	if rerr != nil {
		h.countError()
		return rerr
	}
	_ = h.store.UpdateFields(ctx, merchantRef, map[string]any{"message_id": int64(msgID)})
	return nil
}

func buildTransaction(chatID int64, sess state.Session, merchantRef string, inv *tripay.Invoice, fallbackExpiry time.Time) *repo.Transaction {
	trx := &repo.Transaction{
		MerchantRef: merchantRef,
		UserID:      sess.UserID,
		ChatID:      chatID,
		GameCode:    sess.Game,
		GameName:    sess.GameName,
		ServiceCode: sess.ServiceCode,
		ItemName:    sess.Item,
		PlayerID:    sess.PlayerID,
		Amount:      sess.Price,
		FeeAmount:   sess.Fee,
		TotalAmount: sess.Total,
		Channel:     sess.Channel,
		ChannelName: sess.ChannelName,
		Status:      tripay.NormalizeStatus(inv.Status),
	}
	if sess.ZoneID != "" {
		trx.ZoneID = &sess.ZoneID
	}
	if sess.Nickname != "" {
		trx.Nickname = &sess.Nickname
	}
	if inv.Reference != "" {
		trx.TrxID = &inv.Reference
	}
	if url := firstNonEmpty(inv.CheckoutURL, inv.PayURL); url != "" {
		trx.PayURL = &url
	}
	if inv.PayCode != "" {
		trx.PayCode = &inv.PayCode
	}
	if inv.QRString != "" {
		trx.QRString = &inv.QRString
	}
	expiry := fallbackExpiry
	if inv.ExpiredTime > 0 {
		expiry = time.Unix(inv.ExpiredTime, 0).UTC()
	}
	trx.ExpiredAt = &expiry
	return trx
}

// simulatedInvoice stands in for the gateway in development setups
// without merchant credentials. The placeholder reference never leaves
// the process; GatewayRef falls back to the merchant ref.
func simulatedInvoice(merchantRef string, total int64, expiredAt time.Time) *tripay.Invoice {
	return &tripay.Invoice{
		Reference:   "SIM-" + merchantRef,
		MerchantRef: merchantRef,
		Amount:      total,
		Status:      tripay.StatusUnpaid,
		ExpiredTime: expiredAt.Unix(),
	}
}

// newMerchantRef builds the idempotency key sent to the gateway, unique
// per payment attempt.
func (h *Handlers) newMerchantRef(userID int64) string {
	id := uuid.NewString()
	if i := strings.IndexByte(id, '-'); i > 0 {
		id = id[:i]
	}
	return fmt.Sprintf("ORDER-%d-%d-%s", userID, h.now().Unix(), id)
}

func customerName(c tele.Context) string {
	sender := c.Sender()
	if sender == nil {
		return "Pelanggan"
	}
	name := strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	if name == "" {
		name = sender.Username
	}
	if name == "" {
		name = "Pelanggan"
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
