package ui

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// telebotMessenger adapts a *tele.Bot to the Messenger interface.
type telebotMessenger struct {
	bot *tele.Bot
}

// NewTelebotMessenger wraps a live bot as a Messenger.
func NewTelebotMessenger(bot *tele.Bot) Messenger {
	return &telebotMessenger{bot: bot}
}

func (t *telebotMessenger) Send(ctx context.Context, chatID int64, s Screen) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rec := &tele.Chat{ID: chatID}
	opts := sendOptions(s)

	var (
		msg *tele.Message
		err error
	)
	if s.Photo != "" {
		photo := &tele.Photo{File: photoFile(s.Photo), Caption: s.Text}
		msg, err = t.bot.Send(rec, photo, opts)
	} else {
		msg, err = t.bot.Send(rec, s.Text, opts)
	}
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (t *telebotMessenger) Edit(ctx context.Context, chatID int64, msgID int, s Screen) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref := tele.StoredMessage{MessageID: strconv.Itoa(msgID), ChatID: chatID}
	_, err := t.bot.Edit(ref, s.Text, sendOptions(s))
	return mapEditError(err)
}

func (t *telebotMessenger) Delete(ctx context.Context, chatID int64, msgID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.bot.Delete(tele.StoredMessage{MessageID: strconv.Itoa(msgID), ChatID: chatID})
}

func sendOptions(s Screen) *tele.SendOptions {
	mode := s.ParseMode
	if mode == "" {
		mode = tele.ModeMarkdown
	}
	return &tele.SendOptions{
		ParseMode:   mode,
		ReplyMarkup: s.Markup,
	}
}

func photoFile(ref string) tele.File {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tele.FromURL(ref)
	}
	return tele.File{FileID: ref}
}

// mapEditError folds Telegram's "message is not modified" API error into
// ErrNotModified so callers get one stable sentinel instead of matching
// response text themselves.
func mapEditError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) &&
		strings.Contains(strings.ToLower(apiErr.Description), "message is not modified") {
		return ErrNotModified
	}
	return err
}
