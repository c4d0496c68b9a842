package ui

import (
	"context"
	"errors"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
)

// Store is the slice of the session store the renderer needs to remember
// which message currently is the chat's bubble.
type Store interface {
	LastMessageID(chatID int64) int
	SetLastMessageID(chatID int64, msgID int)
}

// Bubble keeps each chat down to one bot message by editing it in place
// where possible and replacing it otherwise.
type Bubble struct {
	messenger Messenger
	store     Store
}

// NewBubble builds a renderer on top of a Messenger and a Store.
func NewBubble(m Messenger, store Store) *Bubble {
	return &Bubble{messenger: m, store: store}
}

// Render draws s as the chat's single bubble and returns the message ID it
// now occupies.
//
// With a known previous bubble the renderer first tries an in-place edit
// unless the screen carries a photo or asks for a fresh message. An edit
// that fails for any reason other than identical content falls back to
// deleting the old bubble and sending anew; the delete is best effort, so
// a chat can briefly show a dangling old message but never two live ones
// produced by this renderer.
func (b *Bubble) Render(ctx context.Context, chatID int64, s Screen) (int, error) {
	last := b.store.LastMessageID(chatID)

	if last != 0 && !s.ForceNew && s.Photo == "" {
		err := b.messenger.Edit(ctx, chatID, last, s)
		if err == nil || errors.Is(err, ErrNotModified) {
			return last, nil
		}
		logger.Debug(ctx, "tg", "bubble.edit_fallback",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.Int("msg_id", last),
			slog.String("err", err.Error()),
		)
		b.drop(ctx, chatID, last)
	} else if last != 0 {
		b.drop(ctx, chatID, last)
	}

	msgID, err := b.messenger.Send(ctx, chatID, s)
	if err != nil {
		return 0, err
	}
	b.store.SetLastMessageID(chatID, msgID)
	return msgID, nil
}

// Reset forgets the chat's bubble without touching Telegram, so the next
// Render sends a fresh message.
func (b *Bubble) Reset(chatID int64) {
	b.store.SetLastMessageID(chatID, 0)
}

func (b *Bubble) drop(ctx context.Context, chatID int64, msgID int) {
	if err := b.messenger.Delete(ctx, chatID, msgID); err != nil {
		logger.Debug(ctx, "tg", "bubble.delete_failed",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.Int("msg_id", msgID),
			slog.String("err", err.Error()),
		)
	}
}
