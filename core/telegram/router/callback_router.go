package router

import (
	"log/slog"

	tg "github.com/m3rciful/scriptbot/core/telegram"
	"github.com/m3rciful/scriptbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// Every callback is acknowledged before dispatch so the client stops its spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	onCallback := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key := callbacks.Key(c)
		s := newSummary("callback."+normalizeHandlerName(key), slog.String("cb_key", key))
		_ = c.Respond()

		if h, ok := reg.GetCallback(key); ok && h != nil {
			return s.run(c, h)
		}

		s = s.with(slog.String("reason", "not_found"))
		if opts.NotFound == nil {
			s.skip(c, "ignored")
			return nil
		}
		return s.run(c, opts.NotFound)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: guarded(onCallback)}
}
