// Package state holds per-chat order sessions and the funnel FSM that
// drives free-text input. A session carries both the order being built
// and the ID of the bot's single UI bubble in that chat; handlers write
// through Manager.Save with partial updates so concurrent steps never
// clobber fields they did not touch.
package state
