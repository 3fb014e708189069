package middleware

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "out_counters"

// counters tracks what a handler sent back for the update summary log.
// Sends may run on dispatcher workers, so access is locked.
type counters struct {
	mu       sync.Mutex
	messages int
	keyboard bool
}

// countingContext records every successful outbound message or edit.
type countingContext struct {
	tele.Context
	n *counters
}

func (c countingContext) track(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	kb := withMarkup(opts)
	c.n.mu.Lock()
	c.n.messages++
	c.n.keyboard = c.n.keyboard || kb
	c.n.mu.Unlock()
	return nil
}

func withMarkup(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return c.track(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the replies a handler produces.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &counters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns the number of messages sent for the current update and
// whether any of them carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(countersKey).(*counters)
	if !ok || n == nil {
		return 0, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messages, n.keyboard
}
