package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/scriptbot/bots/scriptbot/apperror"
	"github.com/m3rciful/scriptbot/bots/scriptbot/menu"
	"github.com/m3rciful/scriptbot/core/logger"
)

func (e *Engine) installLibraries(ctx context.Context, ev Event, r Responder) error {
	e.ensureUser(ctx, ev)
	sctx, cancel := e.storageCtx(ctx)
	names, err := e.store.ListLibraries(sctx)
	cancel()
	if err != nil {
		logger.LogEvent(ctx, logger.FSM, slog.LevelWarn, "libraries.list_fail", logger.ErrAttr(err))
		names = nil
	}
	e.set(ctx, ev.UserID, Session{Flow: InstallLibraries, Step: AwaitingLibraries})
	return r.Edit(ctx, Reply{Text: librariesPromptText(names, e.finish), Menu: menu.LibrariesBack})
}

// receiveLibraries registers one name per line. Duplicates and invalid names
// count as rejected.
func (e *Engine) receiveLibraries(ctx context.Context, ev Event, r Responder, _ Session) error {
	if ev.IsCommand || ev.Document != nil || strings.TrimSpace(ev.Text) == "" {
		return r.Send(ctx, Reply{Text: textLibsAsText, Menu: menu.LibrariesBack})
	}

	accepted, rejected := 0, 0
	for _, line := range strings.Split(ev.Text, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		sctx, cancel := e.storageCtx(ctx)
		added, err := e.store.AddLibrary(sctx, name, ev.UserID)
		cancel()
		switch {
		case errors.Is(err, apperror.ErrUnavailable):
			return e.unavailable(ctx, r, "add_library", err)
		case err != nil, !added:
			rejected++
		default:
			accepted++
		}
	}
	logger.LogEvent(ctx, logger.FSM, slog.LevelInfo, "libraries.batch",
		slog.Int("accepted", accepted),
		slog.Int("rejected", rejected),
	)
	return r.Send(ctx, Reply{Text: libraryBatchText(accepted, rejected, e.finish), Menu: menu.LibrariesBack})
}
