package flow

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/m3rciful/scriptbot/bots/scriptbot/menu"
	"github.com/m3rciful/scriptbot/bots/scriptbot/models"
	"github.com/m3rciful/scriptbot/core/logger"
)

// placeholderToken is stored for files written in chat until a real token exists.
const placeholderToken = "TOKEN_HERE"

func (e *Engine) createFile(ctx context.Context, ev Event, r Responder) error {
	e.clear(ctx, ev.UserID, "create_file")
	return r.Edit(ctx, Reply{Text: textCreateLang, Menu: menu.LanguageChoice})
}

// createLanguage checks the quota before collecting any code.
func (e *Engine) createLanguage(ctx context.Context, ev Event, r Responder) error {
	lang, ok := models.ParseLanguage(strings.TrimPrefix(ev.Action, "lang_"))
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
	e.set(ctx, ev.UserID, Session{Flow: CreateFile, Step: AwaitingCode, Language: lang})
	return r.Edit(ctx, Reply{Text: awaitingCodeText(lang, e.finish), Menu: menu.CancelCreate})
}

func (e *Engine) receiveCode(ctx context.Context, ev Event, r Responder, sess Session) error {
	if ev.IsCommand || ev.Document != nil || ev.Text == "" {
		return r.Send(ctx, Reply{Text: codeOnlyText(e.finish), Menu: menu.CancelCreate})
	}
	sess.Code += ev.Text + "\n"
	e.set(ctx, ev.UserID, sess)
	return r.Send(ctx, Reply{Text: lineAddedText(sess.Code, e.finish)})
}

// saveCode stages the collected code, registers it under a free file name
// and only then moves the file into place. Stored scripts are never replaced.
func (e *Engine) saveCode(ctx context.Context, ev Event, r Responder, sess Session) error {
	if sess.Code == "" {
		return r.Send(ctx, Reply{Text: emptyCodeText(e.finish), Menu: menu.CancelCreate})
	}
	staged, name, err := e.scripts.StageAuthored(ev.UserID, sess.Language, sess.Code)
	if err != nil {
		logger.LogEvent(ctx, logger.FSM, slog.LevelError, "create.write_fail", logger.ErrAttr(err))
		return r.Send(ctx, Reply{Text: textUnavailable, Menu: menu.CancelCreate})
	}
	dst, err := e.scripts.Reserve(name)
	if err != nil {
		_ = e.scripts.Remove(staged)
		logger.LogEvent(ctx, logger.FSM, slog.LevelError, "create.write_fail", logger.ErrAttr(err))
		return r.Send(ctx, Reply{Text: textUnavailable, Menu: menu.CancelCreate})
	}
	name = filepath.Base(dst)

	code := sess.Code
	sctx, cancel := e.storageCtx(ctx)
	_, err = e.store.RegisterBot(sctx, models.NewBot{
		UserID:   ev.UserID,
		Name:     name,
		Language: sess.Language,
		Token:    placeholderToken,
		Code:     &code,
		FilePath: dst,
	})
	cancel()
	if err != nil {
		// Storage outages keep the buffer; the code is staged again on retry.
		_ = e.scripts.Remove(staged)
		return e.registerFailed(ctx, ev, r, sess, err)
	}
	e.commit(ctx, staged, dst)

	e.clear(ctx, ev.UserID, "create.done")
	logger.LogEvent(ctx, logger.FSM, slog.LevelInfo, "create.saved",
		slog.String("file", name),
		slog.String("language", string(sess.Language)),
	)
	return r.Send(ctx, Reply{Text: createdText(name, sess.Language, code), Menu: menu.Top})
}

// commit moves a staged script into the path its registration points at.
func (e *Engine) commit(ctx context.Context, staged, dst string) {
	if err := e.scripts.Commit(staged, dst); err != nil {
		_ = e.scripts.Remove(staged)
		logger.LogEvent(ctx, logger.FSM, slog.LevelError, "script.commit_fail",
			slog.String("file", dst), logger.ErrAttr(err))
	}
}
