package flow

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/scriptbot/bots/scriptbot/apperror"
	"github.com/m3rciful/scriptbot/bots/scriptbot/executor"
	"github.com/m3rciful/scriptbot/bots/scriptbot/menu"
	"github.com/m3rciful/scriptbot/bots/scriptbot/models"
	"github.com/m3rciful/scriptbot/bots/scriptbot/scripts"
	"github.com/m3rciful/scriptbot/core/logger"
)

// runFile checks the quota before offering the run language menu.
func (e *Engine) runFile(ctx context.Context, ev Event, r Responder) error {
	e.ensureUser(ctx, ev)
	sctx, cancel := e.storageCtx(ctx)
	u, err := e.store.GetUser(sctx, ev.UserID)
	cancel()
	if err != nil {
		return e.unavailable(ctx, r, "get_user", err)
	}
	if !u.CanRegister() {
		logger.LogEvent(ctx, logger.FSM, slog.LevelInfo, "quota.blocked",
			slog.Int("active_bots", u.ActiveBots),
			slog.Int("max_bots", u.MaxBots),
		)
		return r.Edit(ctx, Reply{Text: quotaText(u), Menu: menu.Top})
	}
	return r.Edit(ctx, Reply{Text: textRunLang, Menu: menu.RunLanguage})
}

// runLanguage re-checks the quota and starts waiting for the upload.
func (e *Engine) runLanguage(ctx context.Context, ev Event, r Responder) error {
	lang, ok := models.ParseLanguage(strings.TrimPrefix(ev.Action, "run_"))
	if !ok {
		return nil
	}
	e.ensureUser(ctx, ev)
	sctx, cancel := e.storageCtx(ctx)
	allowed, err := e.store.CanRegisterBot(sctx, ev.UserID)
	cancel()
	if err != nil {
		return e.unavailable(ctx, r, "can_register", err)
	}
	if !allowed {
		return e.quotaReply(ctx, ev, r, true)
	}
	e.set(ctx, ev.UserID, Session{Flow: RunFile, Step: AwaitingFile, Language: lang})
	return r.Edit(ctx, Reply{Text: awaitingFileText(lang), Menu: menu.CancelRun})
}

func (e *Engine) receiveFile(ctx context.Context, ev Event, r Responder, sess Session) error {
	if ev.Document == nil {
		return r.Send(ctx, Reply{Text: awaitingFileText(sess.Language), Menu: menu.CancelRun})
	}
	if err := e.scripts.CheckUpload(sess.Language, ev.Document.FileName, ev.Document.Size); err != nil {
		return r.Send(ctx, Reply{Text: invalidFileText(validationMessage(err), sess.Language), Menu: menu.CancelRun})
	}
	staged, err := e.scripts.StageUpload(ev.UserID, sess.Language, ev.Document.FileName)
	if err != nil {
		logger.LogEvent(ctx, logger.FSM, slog.LevelError, "upload.dir_fail", logger.ErrAttr(err))
		return r.Send(ctx, Reply{Text: textDownloadFail, Menu: menu.CancelRun})
	}

	dctx, cancel := context.WithTimeout(ctx, e.downloadTimeout)
	err = r.Download(dctx, staged)
	cancel()
	if err != nil {
		logger.LogEvent(ctx, logger.FSM, slog.LevelWarn, "upload.download_fail",
			slog.String("file", staged),
			slog.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
			logger.ErrAttr(err),
		)
		_ = e.scripts.Remove(staged)
		return r.Send(ctx, Reply{Text: textDownloadFail, Menu: menu.CancelRun})
	}

	sess.Step = AwaitingToken
	sess.Staged = staged
	sess.FileName = path.Base(strings.ReplaceAll(ev.Document.FileName, `\`, "/"))
	e.set(ctx, ev.UserID, sess)
	return r.Send(ctx, Reply{Text: textSendToken, Menu: menu.CancelRun})
}

func (e *Engine) receiveToken(ctx context.Context, ev Event, r Responder, sess Session) error {
	token := strings.TrimSpace(ev.Text)
	if ev.Document != nil || token == "" || ev.IsCommand {
		return r.Send(ctx, Reply{Text: textTokenAsText, Menu: menu.CancelRun})
	}
	if utf8.RuneCountInString(token) > maxTokenLen {
		return r.Send(ctx, Reply{Text: textTokenTooLong, Menu: menu.CancelRun})
	}

	dst, err := e.scripts.Reserve(scripts.UploadName(ev.UserID, sess.Language, sess.FileName))
	if err != nil {
		logger.LogEvent(ctx, logger.FSM, slog.LevelError, "upload.reserve_fail", logger.ErrAttr(err))
		return r.Send(ctx, Reply{Text: textUnavailable, Menu: menu.CancelRun})
	}
	sctx, cancel := e.storageCtx(ctx)
	id, err := e.store.RegisterBot(sctx, models.NewBot{
		UserID:   ev.UserID,
		Name:     sess.FileName,
		Language: sess.Language,
		Token:    token,
		FilePath: dst,
	})
	cancel()
	if err != nil {
		return e.registerFailed(ctx, ev, r, sess, err)
	}
	e.commit(ctx, sess.Staged, dst)

	e.clear(ctx, ev.UserID, "run.done")
	res, err := e.exec.Run(ctx, executor.Request{
		BotID:    id,
		UserID:   ev.UserID,
		Language: sess.Language,
		FilePath: dst,
		Token:    token,
	})
	if err != nil || res == nil || !res.Started {
		if err != nil {
			logger.LogEvent(ctx, logger.FSM, slog.LevelError, "run.fail",
				slog.Int64("bot_id", id), logger.ErrAttr(err))
		}
		return r.Send(ctx, Reply{Text: textRunFailed, Menu: menu.Top})
	}
	return r.Send(ctx, Reply{Text: startedText(token, sess.Language, sess.FileName), Menu: menu.Top})
}

// registerFailed maps a RegisterBot error to a reply. Quota and validation
// failures end the conversation and drop its staged upload; storage outages
// keep both so the user can retry.
func (e *Engine) registerFailed(ctx context.Context, ev Event, r Responder, sess Session, err error) error {
	if errors.Is(err, apperror.ErrUnavailable) {
		return e.unavailable(ctx, r, "register_bot", err)
	}
	logger.LogEvent(ctx, logger.FSM, slog.LevelWarn, "register.rejected",
		slog.String("flow", string(sess.Flow)),
		logger.ErrAttr(err),
	)
	e.clear(ctx, ev.UserID, "register.rejected")
	if errors.Is(err, apperror.ErrQuotaExceeded) {
		return e.quotaReply(ctx, ev, r, false)
	}
	return r.Send(ctx, Reply{Text: textUnavailable, Menu: menu.Top})
}

// quotaReply shows the usage of a user who cannot register another bot.
func (e *Engine) quotaReply(ctx context.Context, ev Event, r Responder, edit bool) error {
	sctx, cancel := e.storageCtx(ctx)
	u, err := e.store.GetUser(sctx, ev.UserID)
	cancel()
	if err != nil {
		return e.unavailable(ctx, r, "get_user", err)
	}
	reply := Reply{Text: quotaText(u), Menu: menu.Top}
	if edit {
		return r.Edit(ctx, reply)
	}
	return r.Send(ctx, reply)
}

func validationMessage(err error) string {
	var ae *apperror.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return "invalid input"
}
