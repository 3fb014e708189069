package router

import (
	tg "github.com/m3rciful/scriptbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// FSM routes free-form input to an active conversation.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds the OnText and OnDocument handlers. Input from a user with
// an active conversation always goes to the FSM. Other text is matched against
// registered commands and then handed to UnknownText.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	onText := func(c tele.Context) error {
		if inProgress(fsm, c) {
			return newSummary("fsm").run(c, fsm.ManagerHandler)
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return newSummary(normalizeHandlerName(key)).run(c, cmd.Handler)
			}
		}
		s := newSummary("unknown_text")
		if opts.UnknownText == nil {
			s.skip(c, "ok")
			return nil
		}
		return s.run(c, opts.UnknownText)
	}

	onDocument := func(c tele.Context) error {
		if inProgress(fsm, c) {
			return newSummary("fsm_document").run(c, fsm.ManagerHandler)
		}
		s := newSummary("unexpected_document")
		if opts.UnknownDocument == nil {
			s.skip(c, "ok")
			return nil
		}
		return s.run(c, opts.UnknownDocument)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: guarded(onText)},
		{Endpoint: tele.OnDocument, Handler: guarded(onDocument)},
	}
}

func inProgress(fsm FSM, c tele.Context) bool {
	if fsm == nil || c.Sender() == nil {
		return false
	}
	return fsm.InProgress(c.Sender().ID)
}
