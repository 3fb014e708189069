// Package app wires scriptbot: bootstrap, storage, the conversation engine,
// telebot routes and the health server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/scriptbot/bots/scriptbot/config"
	"github.com/m3rciful/scriptbot/bots/scriptbot/executor"
	"github.com/m3rciful/scriptbot/bots/scriptbot/flow"
	"github.com/m3rciful/scriptbot/bots/scriptbot/handlers"
	"github.com/m3rciful/scriptbot/bots/scriptbot/scripts"
	"github.com/m3rciful/scriptbot/bots/scriptbot/storage"
	"github.com/m3rciful/scriptbot/core/bootstrap"
	coredatabase "github.com/m3rciful/scriptbot/core/database"
	"github.com/m3rciful/scriptbot/core/health"
	"github.com/m3rciful/scriptbot/core/logger"
	tg "github.com/m3rciful/scriptbot/core/telegram"
	tghelpers "github.com/m3rciful/scriptbot/core/telegram/helpers"
	"github.com/m3rciful/scriptbot/core/telegram/state"
	"github.com/m3rciful/scriptbot/migrations"

	tele "gopkg.in/telebot.v4"
)

const textRateLimited = "⏳ Too many requests, please slow down."

// App holds the initialized components of the bot.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	store    *storage.Store
	sessions *state.Store[flow.Session]
	engine   *flow.Engine
	handlers *handlers.Handlers
	health   *health.Server
}

// Bootstrap initializes logging, migrates and seeds the database and builds the App.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
		Modules: bootstrap.Modules{
			Seeders: []bootstrap.Seeder{AdminSeeder(cfg)},
		},
	})
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, res.DB)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return a, nil
}

// New builds the App over an already migrated database.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	store := storage.New(db, storage.Options{DefaultMaxBots: cfg.Quota.DefaultMaxBots})
	sessions := state.NewStore[flow.Session]()
	engine, err := flow.New(flow.Options{
		Store:           store,
		Sessions:        sessions,
		Scripts:         scripts.New(cfg.Scripts.Dir, cfg.Scripts.MaxUploadBytes),
		Executor:        executor.Stub{},
		FinishCommand:   cfg.Conversation.FinishCommand,
		StorageTimeout:  cfg.Conversation.StorageTimeout(),
		DownloadTimeout: cfg.Conversation.DownloadTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a := &App{
		cfg:      cfg,
		db:       db,
		store:    store,
		sessions: sessions,
		engine:   engine,
		handlers: handlers.New(engine),
	}
	if cfg.Health.Listen != "" {
		a.health = health.New(health.Options{
			Listen: cfg.Health.Listen,
			Checks: []health.Check{{Name: "database", Run: store.Ping}},
		})
	}
	return a, nil
}

// AdminSeeder upserts the configured admin with the admin quota.
func AdminSeeder(cfg *config.Config) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		adminID := cfg.Telegram.AdminID
		if adminID == 0 {
			return nil
		}
		st := storage.New(db, storage.Options{DefaultMaxBots: cfg.Quota.DefaultMaxBots})
		if err := st.SeedAdmin(ctx, adminID, cfg.Quota.AdminMaxBots); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		return nil
	})
}

// Migrate applies the schema migrations for the configured database.
func Migrate(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("app: nil config")
	}
	return coredatabase.RunMigrations(cfg.Database, migrations.FS)
}

// Engine returns the conversation engine.
func (a *App) Engine() *flow.Engine { return a.engine }

// TelegramRunOptions assembles the registry, routes, middleware and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}
	core := a.cfg.CoreConfig()
	routes := a.handlers.Routes(reg, handlers.RouteOptions{
		AdminID: core.Telegram.AdminID,
		IsAdmin: a.isAdmin,
	})

	return tg.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(core, onLimited),
		Routes:      routes,
		OnStart: func(_ context.Context, _ tg.Runtime) error {
			if a.health == nil {
				return nil
			}
			if err := a.health.Start(); err != nil {
				return fmt.Errorf("app: health server: %w", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			return a.Close(ctx)
		},
	}, nil
}

// Close stops the health server and closes the database. Conversations
// still open are in memory only and are dropped.
func (a *App) Close(ctx context.Context) error {
	if n := a.sessions.Len(); n > 0 {
		logger.FSM.LogAttrs(ctx, slog.LevelInfo, "sessions dropped",
			slog.String("event", "shutdown"),
			slog.Int("sessions", n),
		)
	}
	var errs []error
	if a.health != nil {
		if err := a.health.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health shutdown: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) isAdmin(userID int64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Conversation.StorageTimeout())
	defer cancel()
	return a.store.IsAdmin(ctx, userID)
}

func onLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: textRateLimited})
	}
	return tghelpers.SendText(c, textRateLimited)
}
