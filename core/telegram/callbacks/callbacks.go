// Package callbacks decodes inline button payloads.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Split decodes telebot's "\f<unique>|<payload>" callback data. Data without
// the leading form feed is read as "<unique>|<payload>".
func Split(data string) (key, payload string) {
	key, payload, _ = strings.Cut(strings.TrimPrefix(data, "\f"), "|")
	return strings.TrimSpace(key), payload
}

// Parse applies Split to a callback; nil yields empty values.
func Parse(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	return Split(cb.Data)
}

// Key returns the unique key of the callback in c. Endpoints registered for
// a specific button fill Unique; the generic OnCallback handler does not.
func Key(c tele.Context) string {
	cb := c.Callback()
	switch {
	case cb == nil:
		return ""
	case cb.Unique != "":
		return cb.Unique
	}
	key, _ := Split(cb.Data)
	return key
}
