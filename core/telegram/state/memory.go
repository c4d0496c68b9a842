package state

import (
	"sync"
	"time"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
	tghelpers "github.com/riky-24/bot-medsos-sub000/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// DefaultTTL bounds how long an untouched session survives before the
// sweeper may drop it.
const DefaultTTL = 7 * 24 * time.Hour

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryManager constructs an in-memory Manager. ttl <= 0 selects
// DefaultTTL.
func NewMemoryManager(ttl time.Duration) Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &memoryManager{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a snapshot of the chat's session, or an idle zero session.
func (m *memoryManager) Get(chatID int64) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sess, ok := m.sessions[chatID]; ok {
		return *sess
	}
	return Session{State: StateIdle}
}

// Save merges the patch into the chat's session and returns the result.
func (m *memoryManager) Save(chatID int64, patch Update) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	sess, ok := m.sessions[chatID]
	if !ok {
		sess = &Session{State: StateIdle, ExpiresAt: now.Add(m.ttl)}
		m.sessions[chatID] = sess
	}

	applyUpdate(sess, patch)
	sess.LastActivity = now
	return *sess
}

func applyUpdate(sess *Session, patch Update) {
	if patch.State != nil {
		sess.State = *patch.State
	}
	if patch.UserID != nil {
		sess.UserID = *patch.UserID
	}
	if patch.Game != nil {
		sess.Game = *patch.Game
	}
	if patch.GameName != nil {
		sess.GameName = *patch.GameName
	}
	if patch.Item != nil {
		sess.Item = *patch.Item
	}
	if patch.ServiceCode != nil {
		sess.ServiceCode = *patch.ServiceCode
	}
	if patch.Price != nil {
		sess.Price = *patch.Price
	}
	if patch.PlayerID != nil {
		sess.PlayerID = *patch.PlayerID
	}
	if patch.ZoneID != nil {
		sess.ZoneID = *patch.ZoneID
	}
	if patch.Nickname != nil {
		sess.Nickname = *patch.Nickname
	}
	if patch.Verified != nil {
		sess.Verified = *patch.Verified
	}
	if patch.Channel != nil {
		sess.Channel = *patch.Channel
	}
	if patch.ChannelName != nil {
		sess.ChannelName = *patch.ChannelName
	}
	if patch.Fee != nil {
		sess.Fee = *patch.Fee
	}
	if patch.Total != nil {
		sess.Total = *patch.Total
	}
	if patch.LastMsgID != nil {
		sess.LastMsgID = *patch.LastMsgID
	}
	if patch.ExpiresAt != nil {
		sess.ExpiresAt = *patch.ExpiresAt
	}
}

// Clear removes the entire session for a chat.
func (m *memoryManager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, chatID)
}

// SetLastMessageID records the chat's current UI bubble.
func (m *memoryManager) SetLastMessageID(chatID int64, msgID int) {
	m.Save(chatID, Update{LastMsgID: &msgID})
}

// LastMessageID returns the chat's current UI bubble, zero when unknown.
func (m *memoryManager) LastMessageID(chatID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[chatID]; ok {
		return sess.LastMsgID
	}
	return 0
}

// SetState sets the funnel state for the given chat.
func (m *memoryManager) SetState(chatID int64, st State) {
	m.Save(chatID, Update{State: &st})
}

// StateOf returns the current funnel state of a chat, StateIdle if none exists.
func (m *memoryManager) StateOf(chatID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[chatID]; ok {
		return sess.State
	}
	return StateIdle
}

// InProgress reports whether the chat currently has a non-idle state.
func (m *memoryManager) InProgress(chatID int64) bool {
	return m.StateOf(chatID) != StateIdle
}

// CleanupExpired drops sessions past their TTL or idle beyond maxIdle.
func (m *memoryManager) CleanupExpired(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for chatID, sess := range m.sessions {
		expired := !sess.ExpiresAt.IsZero() && now.After(sess.ExpiresAt)
		idle := maxIdle > 0 && !sess.LastActivity.IsZero() && now.Sub(sess.LastActivity) > maxIdle
		if expired || idle {
			delete(m.sessions, chatID)
			removed++
		}
	}
	return removed
}

// Len reports how many sessions are currently held.
func (m *memoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ManagerHandler executes the handler registered for the chat's current state, if any.
func (m *memoryManager) ManagerHandler(c tele.Context) error {
	chatID := c.Chat().ID
	current := m.StateOf(chatID)
	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
		slog.String("state", string(current)),
	)

	if handler, ok := fsmHandlers[current]; ok {
		return handler(c)
	}
	return nil
}
