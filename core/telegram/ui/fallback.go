package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands, callbacks, or expected documents.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Fallbacks is a FallbackProvider assembled from plain handlers.
// Nil fields resolve to Ignore.
type Fallbacks struct {
	Text     tele.HandlerFunc
	Document tele.HandlerFunc
	Callback tele.HandlerFunc
}

// UnknownText returns the handler for unmatched text.
func (f Fallbacks) UnknownText() tele.HandlerFunc { return orIgnore(f.Text) }

// UnknownDocument returns the handler for unexpected documents.
func (f Fallbacks) UnknownDocument() tele.HandlerFunc { return orIgnore(f.Document) }

// UnknownCallback returns the handler for unregistered callback keys.
func (f Fallbacks) UnknownCallback() tele.HandlerFunc { return orIgnore(f.Callback) }

// Ignore drops the update without replying.
func Ignore(tele.Context) error { return nil }

func orIgnore(h tele.HandlerFunc) tele.HandlerFunc {
	if h == nil {
		return Ignore
	}
	return h
}
