package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/scriptbot/core/buildinfo"
	coreconfig "github.com/m3rciful/scriptbot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex

	logClosers []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(defaultSampleNum, defaultSampleDen)
	traceOverride atomic.Bool

	// components caches Component loggers by name; InitLogger resets it.
	components sync.Map

	// L is the base logger exposed for compatibility while migrating to context-first logging.
	L = slog.New(newContextHandler(slog.NewTextHandler(os.Stdout, handlerOptions(&levelVar))))
)

// Component loggers, rebound to L by InitLogger.
var (
	DB           *slog.Logger // database connection and queries
	TG           *slog.Logger // Telegram transport
	MIG          *slog.Logger // migrations
	TWire        *slog.Logger // route and registry wiring
	SEED         *slog.Logger // seeding
	SVCUsers     *slog.Logger // user accounts
	SVCBots      *slog.Logger // bot registrations
	SVCLibraries *slog.Logger // library registry
	FSM          *slog.Logger // conversation state transitions
)

func init() { wireComponents() }

// InitLogger configures the global structured logger. Only the first call
// has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		s := resolve(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.sampleNum, s.sampleDen)
		traceOverride.Store(traceRequested())

		out, closer := s.output()
		if closer != nil {
			logClosers = append(logClosers, closer)
		}

		opts := handlerOptions(&levelVar)
		var inner slog.Handler = slog.NewTextHandler(out, opts)
		if s.format == formatJSON {
			inner = slog.NewJSONHandler(out, opts)
		}
		L = slog.New(newContextHandler(inner))
		slog.SetDefault(L)

		components.Clear()
		wireComponents()
		logStartup(s, cfg != nil)
	})
	return nil
}

func wireComponents() {
	DB = Component("db")
	TG = Component("tg")
	MIG = Component("db.migrate")
	TWire = Component("tg.wire")
	SEED = Component("db.seed")
	SVCUsers = Component("service.users")
	SVCBots = Component("service.bots")
	SVCLibraries = Component("service.libraries")
	FSM = Component("fsm")
}

func logStartup(s settings, configured bool) {
	build := buildinfo.Get()
	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", build.Version),
		slog.String("build_commit", build.Commit),
		slog.String("build_time", build.Date),
		slog.String("log_level", s.level.String()),
		slog.String("log_format", string(s.format)),
	}
	if configured {
		attrs = append(attrs, slog.String("cfg_profile", s.profile))
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

// Shutdown closes opened file sinks. Later calls are no-ops.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	closers := logClosers
	logClosers = nil

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogEvent logs attrs under the given event name using logg, the context logger, or L.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns the logger scoped to the given component attribute.
func Component(name string) *slog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return L
	}
	if l, ok := components.Load(name); ok {
		return l.(*slog.Logger)
	}
	l, _ := components.LoadOrStore(name, L.With(slog.String("component", name)))
	return l.(*slog.Logger)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether debug-level details should be logged for high-volume events.
func ShouldSampleDebug() bool {
	if traceOverride.Load() {
		return true
	}
	return debugSampler.Allow()
}
