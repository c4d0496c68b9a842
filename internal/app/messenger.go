package app

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/riky-24/bot-medsos-sub000/core/telegram/ui"
)

var errMessengerUnbound = errors.New("app: telegram messenger not bound")

// lateMessenger delegates to a transport bound after construction. The
// bubble renderer must exist before handlers are registered, but the
// live bot only exists once the runtime has started; the OnStart hook
// binds the real messenger before any update is consumed.
type lateMessenger struct {
	target atomic.Pointer[ui.Messenger]
}

// Bind wires the live transport.
func (l *lateMessenger) Bind(m ui.Messenger) {
	l.target.Store(&m)
}

func (l *lateMessenger) current() ui.Messenger {
	if p := l.target.Load(); p != nil {
		return *p
	}
	return nil
}

func (l *lateMessenger) Send(ctx context.Context, chatID int64, s ui.Screen) (int, error) {
	m := l.current()
	if m == nil {
		return 0, errMessengerUnbound
	}
	return m.Send(ctx, chatID, s)
}

func (l *lateMessenger) Edit(ctx context.Context, chatID int64, msgID int, s ui.Screen) error {
	m := l.current()
	if m == nil {
		return errMessengerUnbound
	}
	return m.Edit(ctx, chatID, msgID, s)
}

func (l *lateMessenger) Delete(ctx context.Context, chatID int64, msgID int) error {
	m := l.current()
	if m == nil {
		return errMessengerUnbound
	}
	return m.Delete(ctx, chatID, msgID)
}
