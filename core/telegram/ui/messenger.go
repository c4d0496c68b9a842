// Package ui renders the bot's single UI bubble per chat. Every screen of
// the storefront replaces the previous one, by editing in place when the
// platform allows it and by delete-and-resend when it does not, so a chat
// never accumulates stale menus with live buttons.
package ui

import (
	"context"
	"errors"

	tele "gopkg.in/telebot.v4"
)

// ErrNotModified reports an edit whose content and markup already match the
// live message. Renderers treat it as success.
var ErrNotModified = errors.New("message is not modified")

// Screen describes one rendering of the chat's UI bubble.
type Screen struct {
	Text      string
	Markup    *tele.ReplyMarkup
	ParseMode string
	// Photo holds a file URL or Telegram file ID. Photo screens cannot be
	// edited over a text bubble, so the renderer always replaces.
	Photo string
	// ForceNew drops the previous bubble and sends a fresh message even
	// when an edit would be possible.
	ForceNew bool
}

// Messenger is the transport the renderer draws through. Implementations
// translate platform errors for identical edits into ErrNotModified.
type Messenger interface {
	Send(ctx context.Context, chatID int64, s Screen) (int, error)
	Edit(ctx context.Context, chatID int64, msgID int, s Screen) error
	Delete(ctx context.Context, chatID int64, msgID int) error
}
