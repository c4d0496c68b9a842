package shop

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/riky-24/bot-medsos-sub000/core/telegram/state"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/ui"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"
)

func TestNotifyReplacesBubbleWithFreshMessage(t *testing.T) {
	msgr := &fakeMessenger{}
	sessions := state.NewMemoryManager(time.Hour)
	sessions.SetLastMessageID(testChatID, 5)
	n := NewStatusNotifier(ui.NewBubble(msgr, sessions))

	trx := sampleTrx("REF-1", tripay.StatusPaid)
	n.NotifyStatus(context.Background(), &trx)

	if len(msgr.ops) != 2 || msgr.ops[0] != "delete" || msgr.ops[1] != "send" {
		t.Fatalf("ops = %v, want [delete send]", msgr.ops)
	}
	if got := msgr.last(t).Text; !strings.Contains(got, "Pembayaran Diterima") {
		t.Errorf("notification = %q", got)
	}
	if sessions.LastMessageID(testChatID) == 5 {
		t.Error("bubble pointer not moved to the fresh message")
	}
}

func TestNotifySkipsUnroutableTransactions(t *testing.T) {
	msgr := &fakeMessenger{}
	n := NewStatusNotifier(ui.NewBubble(msgr, state.NewMemoryManager(time.Hour)))

	n.NotifyStatus(context.Background(), nil)
	orphan := sampleTrx("REF-2", tripay.StatusPaid)
	orphan.ChatID = 0
	n.NotifyStatus(context.Background(), &orphan)

	if len(msgr.ops) != 0 {
		t.Errorf("ops = %v, want none", msgr.ops)
	}
}

func TestNotifySwallowsSendFailure(t *testing.T) {
	msgr := &fakeMessenger{sendErr: errors.New("forbidden: bot was blocked by the user")}
	n := NewStatusNotifier(ui.NewBubble(msgr, state.NewMemoryManager(time.Hour)))

	trx := sampleTrx("REF-3", tripay.StatusExpired)
	n.NotifyStatus(context.Background(), &trx)
	// Best effort: the failure is logged, the caller never sees it.
}
