// Package handlers binds the conversation engine to telebot.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/scriptbot/bots/scriptbot/flow"
	tg "github.com/m3rciful/scriptbot/core/telegram"
	"github.com/m3rciful/scriptbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/scriptbot/core/telegram/helpers"
	"github.com/m3rciful/scriptbot/core/telegram/router"
	"github.com/m3rciful/scriptbot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

const (
	textUseStart      = "Use /start to open the menu."
	textUnexpectedDoc = "📎 I was not expecting a file. Use /start to open the menu."
	textAdminOnly     = "⛔ This command is available to admins only."
)

// Handlers adapts telebot updates to the flow engine.
type Handlers struct {
	engine *flow.Engine
}

// New returns Handlers for engine.
func New(engine *flow.Engine) *Handlers {
	return &Handlers{engine: engine}
}

type engineOp func(ctx context.Context, ev flow.Event, r flow.Responder) error

func (h *Handlers) wrap(op engineOp) tele.HandlerFunc {
	return func(c tele.Context) error {
		return op(tghelpers.BuildContext(c), eventFrom(c), teleResponder{c: c})
	}
}

// Register adds the bot commands and one callback per action code to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: h.wrap(h.engine.Start), Description: "Open the main menu"}},
		{"/cancel", commands.Command{Handler: h.wrap(h.engine.Cancel), Description: "Cancel the current action"}},
		{h.engine.FinishCommand(), commands.Command{
			Handler:     h.wrap(h.engine.Finish),
			Description: "Finish writing a file or adding libraries",
		}},
		{"/mybots", commands.Command{Handler: h.wrap(h.engine.MyBots), Description: "List your bots"}},
		{"/libraries", commands.Command{Handler: h.wrap(h.engine.Libraries), Description: "List installed libraries"}},
		{"/quota", commands.Command{
			Handler:     h.wrap(h.engine.Quota),
			Description: "Show the bot quota of a user",
			Usage:       "<user_id>",
			AdminOnly:   true,
			Hidden:      true,
		}},
	}
	var errs []error
	for _, c := range cmds {
		errs = append(errs, reg.RegisterCommand(c.name, c.cmd))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	action := h.wrap(h.engine.HandleAction)
	for _, code := range h.engine.Actions() {
		if err := reg.RegisterCallback(code, action); err != nil {
			return fmt.Errorf("register callback %s: %w", code, err)
		}
	}
	return nil
}

// InProgress reports whether the user has an active conversation.
func (h *Handlers) InProgress(userID int64) bool {
	return h.engine.InProgress(userID)
}

// ManagerHandler feeds text and documents to the active conversation.
func (h *Handlers) ManagerHandler(c tele.Context) error {
	return h.wrap(h.engine.HandleMessage)(c)
}

// Fallbacks answers input that no route claims. Unknown callbacks still go
// through the engine, which logs and drops them.
func (h *Handlers) Fallbacks() ui.Fallbacks {
	return ui.Fallbacks{
		Text: func(c tele.Context) error {
			return tghelpers.SendText(c, textUseStart)
		},
		Document: func(c tele.Context) error {
			return tghelpers.SendText(c, textUnexpectedDoc)
		},
		Callback: h.wrap(h.engine.HandleAction),
	}
}

// RouteOptions configures admin access for Routes.
type RouteOptions struct {
	AdminID int64
	IsAdmin func(userID int64) bool
}

// Routes returns every telebot route of the bot. Register must run first.
func (h *Handlers) Routes(reg *tg.Registry, opts RouteOptions) []tg.Route {
	var fb ui.FallbackProvider = h.Fallbacks()
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: opts.AdminID,
		IsAdmin: opts.IsAdmin,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, textAdminOnly)
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: fb.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(h, reg, router.TextOptions{
		UnknownText:     fb.UnknownText(),
		UnknownDocument: fb.UnknownDocument(),
	})...)
	return routes
}
