// Package callbacks defines the wire grammar for inline button data.
// Every button carries "namespace:action" plus optional colon-separated
// arguments; the router parses the raw data exactly once and dispatches
// on the namespace:action pair.
package callbacks

import (
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrMalformed reports callback data that does not follow the
// namespace:action grammar.
var ErrMalformed = errors.New("malformed callback data")

const sep = ":"

// Callback is one parsed button press.
type Callback struct {
	Namespace string
	Action    string
	Args      []string
}

// Data builds the wire form "ns:action[:arg...]" for tele.Btn.Data.
// Telegram caps callback data at 64 bytes, so args hold codes and
// references, never free text.
func Data(ns, action string, args ...string) string {
	parts := append([]string{ns, action}, args...)
	return strings.Join(parts, sep)
}

// Parse splits raw callback data into its Callback form. Telebot's
// legacy \f<unique>|<payload> encoding is normalized first so buttons
// built either way parse the same.
func Parse(raw string) (Callback, error) {
	raw = strings.TrimPrefix(raw, "\f")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Callback{}, ErrMalformed
	}

	if key, payload, ok := strings.Cut(raw, "|"); ok {
		raw = key
		if payload != "" {
			raw += sep + strings.ReplaceAll(payload, "|", sep)
		}
	}

	parts := strings.Split(raw, sep)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Callback{}, ErrMalformed
	}
	cb := Callback{Namespace: parts[0], Action: parts[1]}
	if len(parts) > 2 {
		cb.Args = parts[2:]
	}
	return cb, nil
}

// FromContext parses the pressed button of the current update.
func FromContext(c tele.Context) (Callback, error) {
	return FromCallback(c.Callback())
}

// FromCallback parses a raw callback query, reassembling telebot's
// unique/data split when the update came through a typed button handler.
func FromCallback(cbq *tele.Callback) (Callback, error) {
	if cbq == nil {
		return Callback{}, ErrMalformed
	}
	raw := cbq.Data
	if cbq.Unique != "" {
		raw = cbq.Unique + sep + strings.ReplaceAll(cbq.Data, "|", sep)
	}
	return Parse(raw)
}

// Key returns the dispatch key "namespace:action".
func (cb Callback) Key() string {
	return cb.Namespace + sep + cb.Action
}

// Arg returns the i-th argument or "" when absent.
func (cb Callback) Arg(i int) string {
	if i < 0 || i >= len(cb.Args) {
		return ""
	}
	return cb.Args[i]
}

// ArgInt64 parses the i-th argument as int64.
func (cb Callback) ArgInt64(i int) (int64, error) {
	return strconv.ParseInt(cb.Arg(i), 10, 64)
}

// ArgInt parses the i-th argument as int.
func (cb Callback) ArgInt(i int) (int, error) {
	return strconv.Atoi(cb.Arg(i))
}

// Payload rejoins the arguments for log lines.
func (cb Callback) Payload() string {
	return strings.Join(cb.Args, sep)
}
