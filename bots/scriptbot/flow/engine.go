package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/scriptbot/bots/scriptbot/executor"
	"github.com/m3rciful/scriptbot/bots/scriptbot/menu"
	"github.com/m3rciful/scriptbot/bots/scriptbot/scripts"
	"github.com/m3rciful/scriptbot/core/logger"
)

const (
	defaultFinishCommand   = "/done"
	defaultStorageTimeout  = 5 * time.Second
	defaultDownloadTimeout = 30 * time.Second
)

// Options configures an Engine.
type Options struct {
	Store    Store
	Sessions SessionStore
	Scripts  *scripts.Dir
	Executor executor.Executor
	// FinishCommand ends code entry and library entry; default "/done".
	FinishCommand   string
	StorageTimeout  time.Duration
	DownloadTimeout time.Duration
}

// Engine runs the conversations. All work for one user is serialized
// through the session store's per-user lock.
type Engine struct {
	store           Store
	sessions        SessionStore
	scripts         *scripts.Dir
	exec            executor.Executor
	finish          string
	storageTimeout  time.Duration
	downloadTimeout time.Duration

	actions map[string]actionFunc
}

type actionFunc func(ctx context.Context, ev Event, r Responder) error

// New builds an Engine. Store and Sessions are required.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("flow: store is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("flow: session store is required")
	}
	if opts.Scripts == nil {
		opts.Scripts = scripts.New("", 0)
	}
	if opts.Executor == nil {
		opts.Executor = executor.Stub{}
	}
	finish := strings.ToLower(strings.TrimSpace(opts.FinishCommand))
	if finish == "" {
		finish = defaultFinishCommand
	}
	if !strings.HasPrefix(finish, "/") {
		finish = "/" + finish
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = defaultStorageTimeout
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = defaultDownloadTimeout
	}

	e := &Engine{
		store:           opts.Store,
		sessions:        opts.Sessions,
		scripts:         opts.Scripts,
		exec:            opts.Executor,
		finish:          finish,
		storageTimeout:  opts.StorageTimeout,
		downloadTimeout: opts.DownloadTimeout,
	}
	e.actions = map[string]actionFunc{
		menu.ActionRunFile:          e.runFile,
		menu.ActionOurServices:      e.ourServices,
		menu.ActionMainMenu:         e.mainMenu,
		menu.ActionCreateFile:       e.createFile,
		menu.ActionBackToServices:   e.backToServices,
		menu.ActionInstallLibraries: e.installLibraries,
		menu.ActionRunPython:        e.runLanguage,
		menu.ActionRunPHP:           e.runLanguage,
		menu.ActionLangPython:       e.createLanguage,
		menu.ActionLangPHP:          e.createLanguage,
	}
	return e, nil
}

// FinishCommand returns the terminator command, including the slash.
func (e *Engine) FinishCommand() string { return e.finish }

// Actions lists the action codes the engine dispatches.
func (e *Engine) Actions() []string {
	out := make([]string, 0, len(e.actions))
	for _, code := range menu.Actions() {
		if _, ok := e.actions[code]; ok {
			out = append(out, code)
		}
	}
	return out
}

// InProgress reports whether the user is inside a multi-step conversation.
func (e *Engine) InProgress(userID int64) bool {
	_, ok := e.sessions.Get(userID)
	return ok
}

// Session returns a copy of the user's session.
func (e *Engine) Session(userID int64) (Session, bool) {
	return e.sessions.Get(userID)
}

// Start greets the user and shows the top menu, dropping any conversation.
func (e *Engine) Start(ctx context.Context, ev Event, r Responder) error {
	defer e.sessions.Lock(ev.UserID)()
	e.ensureUser(ctx, ev)
	e.clear(ctx, ev.UserID, "start")
	name := ev.DisplayName
	if name == "" {
		name = ev.Username
	}
	return r.Send(ctx, Reply{Text: welcomeText(name), Menu: menu.Top})
}

// HandleAction dispatches a button press. Unknown codes are logged and ignored.
func (e *Engine) HandleAction(ctx context.Context, ev Event, r Responder) error {
	defer e.sessions.Lock(ev.UserID)()
	fn, ok := e.actions[ev.Action]
	if !ok {
		logger.LogEvent(ctx, logger.FSM, slog.LevelDebug, "action.unknown",
			slog.String("action", logger.SanitizeLimit(ev.Action, 64)))
		return nil
	}
	return fn(ctx, ev, r)
}

// HandleMessage feeds text or a document to the user's conversation.
// Without a session the event is ignored.
func (e *Engine) HandleMessage(ctx context.Context, ev Event, r Responder) error {
	defer e.sessions.Lock(ev.UserID)()
	sess, ok := e.sessions.Get(ev.UserID)
	if !ok {
		return nil
	}
	if ev.IsCommand {
		switch commandName(ev.Text) {
		case e.finish:
			return e.finishLocked(ctx, ev, r)
		case "/cancel":
			return e.cancelLocked(ctx, ev, r)
		}
	}

	switch {
	case sess.Flow == RunFile && sess.Step == AwaitingFile:
		return e.receiveFile(ctx, ev, r, sess)
	case sess.Flow == RunFile && sess.Step == AwaitingToken:
		return e.receiveToken(ctx, ev, r, sess)
	case sess.Flow == CreateFile && sess.Step == AwaitingCode:
		return e.receiveCode(ctx, ev, r, sess)
	case sess.Flow == InstallLibraries && sess.Step == AwaitingLibraries:
		return e.receiveLibraries(ctx, ev, r, sess)
	}
	logger.LogEvent(ctx, logger.FSM, slog.LevelWarn, "session.invalid",
		slog.String("flow", string(sess.Flow)),
		slog.String("step", string(sess.Step)),
	)
	e.clear(ctx, ev.UserID, "invalid")
	return r.Send(ctx, Reply{Text: textMainMenu, Menu: menu.Top})
}

// Finish handles the terminator command.
func (e *Engine) Finish(ctx context.Context, ev Event, r Responder) error {
	defer e.sessions.Lock(ev.UserID)()
	return e.finishLocked(ctx, ev, r)
}

func (e *Engine) finishLocked(ctx context.Context, ev Event, r Responder) error {
	sess, ok := e.sessions.Get(ev.UserID)
	switch {
	case ok && sess.Flow == CreateFile && sess.Step == AwaitingCode:
		return e.saveCode(ctx, ev, r, sess)
	case ok && sess.Flow == InstallLibraries:
		e.clear(ctx, ev.UserID, "libraries.done")
		return r.Send(ctx, Reply{Text: textLibsDone, Menu: menu.Top})
	}
	return r.Send(ctx, Reply{Text: finishHintText(e.finish)})
}

// Cancel drops any conversation and shows the top menu.
func (e *Engine) Cancel(ctx context.Context, ev Event, r Responder) error {
	defer e.sessions.Lock(ev.UserID)()
	return e.cancelLocked(ctx, ev, r)
}

func (e *Engine) cancelLocked(ctx context.Context, ev Event, r Responder) error {
	e.clear(ctx, ev.UserID, "cancel")
	return r.Send(ctx, Reply{Text: textCancelled, Menu: menu.Top})
}

func (e *Engine) ourServices(ctx context.Context, _ Event, r Responder) error {
	return r.Edit(ctx, Reply{Text: textServices, Menu: menu.Services})
}

func (e *Engine) mainMenu(ctx context.Context, ev Event, r Responder) error {
	e.clear(ctx, ev.UserID, "main_menu")
	return r.Edit(ctx, Reply{Text: textMainMenu, Menu: menu.Top})
}

func (e *Engine) backToServices(ctx context.Context, ev Event, r Responder) error {
	e.clear(ctx, ev.UserID, "back_to_services")
	return r.Edit(ctx, Reply{Text: textServices, Menu: menu.Services})
}

func (e *Engine) set(ctx context.Context, userID int64, s Session) {
	e.sessions.Set(userID, s)
	logger.LogEvent(ctx, logger.FSM, slog.LevelDebug, "session.set",
		slog.String("flow", string(s.Flow)),
		slog.String("step", string(s.Step)),
		slog.String("language", string(s.Language)),
	)
}

// clear ends the user's conversation and drops its staged upload, if any.
func (e *Engine) clear(ctx context.Context, userID int64, reason string) {
	sess, ok := e.sessions.Get(userID)
	if !ok {
		return
	}
	e.sessions.Clear(userID)
	if err := e.scripts.Remove(sess.Staged); err != nil {
		logger.LogEvent(ctx, logger.FSM, slog.LevelWarn, "staged.remove_fail", logger.ErrAttr(err))
	}
	logger.LogEvent(ctx, logger.FSM, slog.LevelDebug, "session.clear", slog.String("reason", reason))
}

func (e *Engine) ensureUser(ctx context.Context, ev Event) {
	sctx, cancel := e.storageCtx(ctx)
	defer cancel()
	e.store.EnsureUser(sctx, ev.UserID, ev.Username, ev.DisplayName)
}

func (e *Engine) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storageTimeout)
}

// unavailable reports a storage failure to the user.
func (e *Engine) unavailable(ctx context.Context, r Responder, op string, err error) error {
	logger.LogEvent(ctx, logger.FSM, slog.LevelError, "storage.fail",
		slog.String("op", op),
		logger.ErrAttr(err),
	)
	return r.Send(ctx, Reply{Text: textUnavailable, Menu: menu.Top})
}

func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}
