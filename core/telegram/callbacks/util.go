package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// CallbackKey returns the dispatch key of the pressed button, falling back
// to the raw data when it does not follow the grammar. Intended for log
// lines; handlers should use FromContext.
func CallbackKey(c tele.Context) string {
	cb, err := FromContext(c)
	if err == nil {
		return cb.Key()
	}
	if raw := c.Callback(); raw != nil {
		return strings.TrimSpace(strings.TrimPrefix(raw.Data, "\f"))
	}
	return ""
}

// CallbackPayload returns the argument part of the pressed button, empty
// when there are no arguments or the data is malformed.
func CallbackPayload(c tele.Context) string {
	cb, err := FromContext(c)
	if err != nil {
		return ""
	}
	return cb.Payload()
}
