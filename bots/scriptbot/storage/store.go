// Package storage persists users, bot registrations and libraries with sqlx.
// Queries use "?" placeholders and are rebound for the connected driver.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/scriptbot/bots/scriptbot/apperror"
	"github.com/m3rciful/scriptbot/bots/scriptbot/models"
	"github.com/m3rciful/scriptbot/core/logger"
)

// MaxLibraryNameLen bounds library names in runes.
const MaxLibraryNameLen = 100

// Options configures a Store.
type Options struct {
	// DefaultMaxBots is the quota of newly created users.
	DefaultMaxBots int
}

// Store is the persistence service backed by a *sqlx.DB.
type Store struct {
	db         *sqlx.DB
	defaultMax int
}

// New wraps db. A non-positive DefaultMaxBots means 3.
func New(db *sqlx.DB, opts Options) *Store {
	if opts.DefaultMaxBots <= 0 {
		opts.DefaultMaxBots = 3
	}
	return &Store{db: db, defaultMax: opts.DefaultMaxBots}
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperror.Unavailable("ping", err)
	}
	return nil
}

// EnsureUser creates the user with the default quota when absent. Existing
// rows are never modified. Storage errors are logged and swallowed.
func (s *Store) EnsureUser(ctx context.Context, userID int64, username, displayName string) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (user_id, username, display_name, max_bots)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`),
		userID, nullString(username), nullString(displayName), s.defaultMax,
	)
	if err != nil {
		logger.SVCUsers.LogAttrs(ctx, slog.LevelError, "service.users",
			slog.String("event", "ensure"),
			slog.Int64("user_id", userID),
			logger.ErrAttr(err),
		)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.SVCUsers.LogAttrs(ctx, slog.LevelInfo, "service.users",
			slog.String("event", "created"),
			slog.Int64("user_id", userID),
			slog.Int("max_bots", s.defaultMax),
			slog.Duration("took", logger.Took(start)),
		)
	}
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, s.q(`
		SELECT user_id, username, display_name, is_admin, active_bots, max_bots, created_at
		FROM users WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", userID)
	}
	if err != nil {
		return nil, apperror.Unavailable("get user", err)
	}
	return &u, nil
}

// CanRegisterBot reports whether the user is below its quota. Unknown users
// cannot register; storage failures also deny, with an ErrUnavailable error.
func (s *Store) CanRegisterBot(ctx context.Context, userID int64) (bool, error) {
	u, err := s.GetUser(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.CanRegister(), nil
}

// RegisterBot records a bot and increments the owner's active_bots in one
// transaction. The quota is re-checked by the conditional update, so
// concurrent registrations can never push active_bots past max_bots.
func (s *Store) RegisterBot(ctx context.Context, bot models.NewBot) (id int64, err error) {
	if strings.TrimSpace(bot.Name) == "" {
		return 0, apperror.ValidationFailed("bot_name", "bot name is required")
	}
	if _, ok := models.ParseLanguage(string(bot.Language)); !ok {
		return 0, apperror.ValidationFailed("language", "unsupported language")
	}

	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, apperror.Unavailable("register bot", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE users SET active_bots = active_bots + 1
		WHERE user_id = ? AND active_bots < max_bots`), bot.UserID)
	if err != nil {
		return 0, apperror.Unavailable("register bot", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.Unavailable("register bot", err)
	}
	if n == 0 {
		var exists int
		err = tx.GetContext(ctx, &exists, s.q(`SELECT COUNT(*) FROM users WHERE user_id = ?`), bot.UserID)
		switch {
		case err != nil:
			return 0, apperror.Unavailable("register bot", err)
		case exists == 0:
			err = apperror.NotFound("user", bot.UserID)
		default:
			err = apperror.QuotaExceeded(bot.UserID)
		}
		return 0, err
	}

	err = tx.QueryRowxContext(ctx, s.q(`
		INSERT INTO bots (user_id, bot_name, language, token, code, file_path, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		bot.UserID, bot.Name, string(bot.Language), bot.Token, bot.Code, bot.FilePath, true,
	).Scan(&id)
	if err != nil {
		return 0, apperror.Unavailable("register bot", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, apperror.Unavailable("register bot", err)
	}

	logger.SVCBots.LogAttrs(ctx, slog.LevelInfo, "service.bots",
		slog.String("event", "registered"),
		slog.Int64("user_id", bot.UserID),
		slog.Int64("bot_id", id),
		slog.String("language", string(bot.Language)),
		slog.Bool("authored", bot.Code != nil),
		slog.Duration("took", logger.Took(start)),
	)
	return id, nil
}

// ListUserBots returns the user's registrations, most recent first.
func (s *Store) ListUserBots(ctx context.Context, userID int64) ([]models.BotSummary, error) {
	var bots []models.BotSummary
	err := s.db.SelectContext(ctx, &bots, s.q(`
		SELECT id, bot_name, language, file_path, is_active, created_at
		FROM bots WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, apperror.Unavailable("list bots", err)
	}
	return bots, nil
}

// SeedAdmin creates or promotes the admin account with the given quota.
func (s *Store) SeedAdmin(ctx context.Context, userID int64, maxBots int) error {
	if userID == 0 {
		return nil
	}
	if maxBots <= 0 {
		return apperror.ValidationFailed("max_bots", "admin max_bots must be positive")
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (user_id, username, is_admin, max_bots)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET is_admin = excluded.is_admin, max_bots = excluded.max_bots`),
		userID, "admin", true, maxBots,
	)
	if err != nil {
		return apperror.Unavailable("seed admin", err)
	}
	logger.SEED.LogAttrs(ctx, slog.LevelInfo, "db.seed",
		slog.String("event", "admin"),
		slog.Int64("user_id", userID),
		slog.Int("max_bots", maxBots),
	)
	return nil
}

// IsAdmin reports whether the stored user carries the admin flag.
func (s *Store) IsAdmin(ctx context.Context, userID int64) bool {
	u, err := s.GetUser(ctx, userID)
	return err == nil && u.IsAdmin
}

func nullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
