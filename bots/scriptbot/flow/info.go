package flow

import (
	"context"
	"errors"
	"strconv"

	"github.com/m3rciful/scriptbot/bots/scriptbot/apperror"
)

// MyBots lists the user's registrations and quota usage.
func (e *Engine) MyBots(ctx context.Context, ev Event, r Responder) error {
	defer e.sessions.Lock(ev.UserID)()
	e.ensureUser(ctx, ev)

	sctx, cancel := e.storageCtx(ctx)
	defer cancel()
	bots, err := e.store.ListUserBots(sctx, ev.UserID)
	if err != nil {
		return e.unavailable(ctx, r, "list_bots", err)
	}
	u, err := e.store.GetUser(sctx, ev.UserID)
	if err != nil {
		return e.unavailable(ctx, r, "get_user", err)
	}
	if len(bots) == 0 {
		return r.Send(ctx, Reply{Text: textNoBots + "\n\n" + usageText(u)})
	}
	return r.Send(ctx, Reply{Text: botsText(bots, u)})
}

// Libraries lists every registered library, most recent first.
func (e *Engine) Libraries(ctx context.Context, ev Event, r Responder) error {
	sctx, cancel := e.storageCtx(ctx)
	names, err := e.store.ListLibraries(sctx)
	cancel()
	if err != nil {
		return e.unavailable(ctx, r, "list_libraries", err)
	}
	if len(names) == 0 {
		return r.Send(ctx, Reply{Text: textNoLibraries})
	}
	return r.Send(ctx, Reply{Text: "📚 *Libraries*\n\n" + libraryList(names, 0)})
}

// Quota shows the usage of the user named in the first argument. Callers
// restrict it to admins.
func (e *Engine) Quota(ctx context.Context, ev Event, r Responder) error {
	if len(ev.Args) == 0 {
		return r.Send(ctx, Reply{Text: textQuotaUsage})
	}
	id, err := strconv.ParseInt(ev.Args[0], 10, 64)
	if err != nil || id <= 0 {
		return r.Send(ctx, Reply{Text: textQuotaUsage})
	}
	sctx, cancel := e.storageCtx(ctx)
	u, err := e.store.GetUser(sctx, id)
	cancel()
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return r.Send(ctx, Reply{Text: textUserNotFound})
	case err != nil:
		return e.unavailable(ctx, r, "get_user", err)
	}
	return r.Send(ctx, Reply{Text: userQuotaText(u)})
}
