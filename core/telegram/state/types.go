package state

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// State identifies a step in the purchase funnel.
type State string

const (
	// StateIdle indicates there is no active order flow in the chat.
	StateIdle State = "idle"
	// StateItemSelected means a product was picked and the bot waits for a player ID.
	StateItemSelected State = "item_selected"
	// StateIDPendingConfirm means a player ID was received and awaits confirmation.
	StateIDPendingConfirm State = "id_pending_confirm"
	// StateChannelPending means the order waits for a payment channel choice.
	StateChannelPending State = "channel_pending"
	// StateReadyToPay means channel and totals are fixed and the order can be committed.
	StateReadyToPay State = "ready_to_pay"
)

// Session stores one chat's progress through the order funnel together with
// the identity of the bot's single UI message in that chat.
type Session struct {
	State State

	UserID      int64
	Game        string
	GameName    string
	Item        string
	ServiceCode string
	Price       int64

	PlayerID string
	ZoneID   string
	Nickname string
	Verified bool

	Channel     string
	ChannelName string
	Fee         int64
	Total       int64

	// LastMsgID is the Telegram ID of the bot's UI bubble in this chat,
	// zero when none has been sent yet.
	LastMsgID int

	LastActivity time.Time
	ExpiresAt    time.Time
}

// Update is a partial session patch applied by Save. Nil fields keep the
// value already stored; set fields overwrite it.
type Update struct {
	State       *State
	UserID      *int64
	Game        *string
	GameName    *string
	Item        *string
	ServiceCode *string
	Price       *int64
	PlayerID    *string
	ZoneID      *string
	Nickname    *string
	Verified    *bool
	Channel     *string
	ChannelName *string
	Fee         *int64
	Total       *int64
	LastMsgID   *int
	ExpiresAt   *time.Time
}

// Manager orchestrates chat sessions and funnel state transitions.
// Sessions are keyed by chat ID; writes are last-write-wins and the
// payment commit is guarded elsewhere, not here.
type Manager interface {
	// Get returns a snapshot of the chat's session, an idle zero session
	// when none exists.
	Get(chatID int64) Session
	// Save merges the patch into the chat's session, creating it when
	// missing, and returns the resulting snapshot. The first save stamps
	// ExpiresAt unless the patch sets it.
	Save(chatID int64, patch Update) Session
	// Clear removes the session entirely.
	Clear(chatID int64)

	SetLastMessageID(chatID int64, msgID int)
	LastMessageID(chatID int64) int

	SetState(chatID int64, st State)
	StateOf(chatID int64) State
	// InProgress reports whether the chat is in any non-idle state.
	InProgress(chatID int64) bool

	// CleanupExpired drops sessions past ExpiresAt or idle longer than
	// maxIdle (maxIdle <= 0 checks ExpiresAt only) and reports how many
	// were removed.
	CleanupExpired(maxIdle time.Duration) int
	// Len reports how many sessions are currently held.
	Len() int

	// ManagerHandler dispatches an incoming text update to the handler
	// registered for the chat's current state.
	ManagerHandler(c tele.Context) error
}
