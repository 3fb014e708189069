package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scriptbot/bots/scriptbot/config"
	"github.com/m3rciful/scriptbot/bots/scriptbot/flow"
	"github.com/m3rciful/scriptbot/bots/scriptbot/storage"
	coreconfig "github.com/m3rciful/scriptbot/core/config"
	coredatabase "github.com/m3rciful/scriptbot/core/database"
	tg "github.com/m3rciful/scriptbot/core/telegram"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "t", AdminID: 42}},
		Database: coredatabase.Config{
			Driver: coredatabase.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "bot.db"),
		},
		Scripts: config.ScriptsConfig{Dir: t.TempDir()},
	}
	require.NoError(t, config.Normalize(cfg))
	return cfg
}

func migratedDB(t *testing.T, cfg *config.Config) *sqlx.DB {
	t.Helper()
	require.NoError(t, Migrate(cfg))
	db, err := coredatabase.Connect(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAdminSeeder(t *testing.T) {
	cfg := testConfig(t)
	db := migratedDB(t, cfg)
	ctx := context.Background()

	require.NoError(t, AdminSeeder(cfg).Seed(ctx, db))
	require.NoError(t, AdminSeeder(cfg).Seed(ctx, db))

	u, err := storage.New(db, storage.Options{}).GetUser(ctx, 42)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.Equal(t, 10, u.MaxBots)
}

func TestAdminSeederWithoutAdmin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telegram.AdminID = 0
	db := migratedDB(t, cfg)
	require.NoError(t, AdminSeeder(cfg).Seed(context.Background(), db))
}

func TestTelegramRunOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Health.Listen = "127.0.0.1:0"
	db := migratedDB(t, cfg)

	a, err := New(cfg, db)
	require.NoError(t, err)
	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)

	assert.Same(t, cfg.CoreConfig(), opts.Config)
	assert.NotEmpty(t, opts.Middlewares)

	endpoints := make(map[any]bool)
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, ep := range []any{"/start", "/cancel", "/done", "/mybots", "/libraries", "/quota", tele.OnCallback, tele.OnText, tele.OnDocument} {
		assert.True(t, endpoints[ep], "missing route %v", ep)
	}

	ctx := context.Background()
	require.NoError(t, opts.OnStart(ctx, tg.Runtime{}))
	require.NoError(t, opts.OnStop(ctx, tg.Runtime{}))
	assert.Error(t, db.Ping())
}

func TestIsAdminUsesStore(t *testing.T) {
	cfg := testConfig(t)
	db := migratedDB(t, cfg)
	require.NoError(t, AdminSeeder(cfg).Seed(context.Background(), db))

	a, err := New(cfg, db)
	require.NoError(t, err)
	assert.True(t, a.isAdmin(42))
	assert.False(t, a.isAdmin(7))
}

func TestCloseWithOpenConversations(t *testing.T) {
	cfg := testConfig(t)
	db := migratedDB(t, cfg)

	a, err := New(cfg, db)
	require.NoError(t, err)
	a.sessions.Set(7, flow.Session{Flow: flow.CreateFile, Step: flow.AwaitingCode})
	require.True(t, a.Engine().InProgress(7))
	assert.Equal(t, 1, a.sessions.Len())

	require.NoError(t, a.Close(context.Background()))
	assert.Error(t, db.Ping())
}
