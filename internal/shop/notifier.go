package shop

import (
	"context"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/ui"
	"github.com/riky-24/bot-medsos-sub000/internal/repo"
)

// StatusNotifier announces terminal payment updates in the
// transaction's chat. The reconciler calls it from detached tasks.
type StatusNotifier struct {
	bubble *ui.Bubble
}

func NewStatusNotifier(bubble *ui.Bubble) *StatusNotifier {
	return &StatusNotifier{bubble: bubble}
}

// NotifyStatus renders the terminal-status screen as a fresh message.
// Failures are logged, never returned; notification is best effort.
func (n *StatusNotifier) NotifyStatus(ctx context.Context, trx *repo.Transaction) {
	if n == nil || trx == nil || trx.ChatID == 0 {
		return
	}
	if _, err := n.bubble.Render(ctx, trx.ChatID, notifyScreen(trx)); err != nil {
		logger.Warn(ctx, "shop", "notify.failed",
			slog.String("merchant_ref", trx.MerchantRef),
			slog.String("status", trx.Status),
			slog.String("err", err.Error()),
		)
	}
}
