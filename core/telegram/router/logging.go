package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/scriptbot/core/logger"
	tghelpers "github.com/m3rciful/scriptbot/core/telegram/helpers"
	"github.com/m3rciful/scriptbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary emits one handler.handled record per routed update.
type summary struct {
	name   string
	start  time.Time
	extras []slog.Attr
}

func newSummary(name string, extras ...slog.Attr) summary {
	return summary{name: name, start: time.Now(), extras: extras}
}

func (s summary) with(extras ...slog.Attr) summary {
	s.extras = append(append([]slog.Attr(nil), s.extras...), extras...)
	return s
}

// run tags the context with the handler name, calls fn and logs the result.
func (s summary) run(c tele.Context, fn tele.HandlerFunc) error {
	tghelpers.WithHandler(c, s.name)
	err := fn(c)
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	s.log(c, logger.Status(err), outcome, err)
	return err
}

// skip records an update that no handler consumed.
func (s summary) skip(c tele.Context, outcome string) {
	s.log(c, "skip", outcome, nil)
}

func (s summary) log(c tele.Context, status, outcome string, err error) {
	ctx := tghelpers.WithHandler(c, s.name)
	msgs, kb := middleware.GetCounters(c)

	attrs := make([]slog.Attr, 0, 9+len(s.extras))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", s.name),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(s.start)),
	)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, logger.ErrAttr(err), slog.String("err_code", errorCode(err)))
	}
	attrs = append(attrs, s.extras...)
	logger.LogEvent(ctx, logger.TG, level, "handler.handled", attrs...)
}

// guarded applies the recovery and request-logging middleware shared by every route.
func guarded(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}

func normalizeHandlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// errorCode prefers a Code() method anywhere in the chain and falls back to
// the dynamic type name.
func errorCode(err error) string {
	var c interface{ Code() string }
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
