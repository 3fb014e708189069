package storage

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/scriptbot/bots/scriptbot/apperror"
	"github.com/m3rciful/scriptbot/core/logger"
)

// AddLibrary records a library name. It returns true when the row was
// inserted and false when the name was already present.
func (s *Store) AddLibrary(ctx context.Context, name string, installedBy int64) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, apperror.ValidationFailed("library_name", "library name is empty")
	}
	if utf8.RuneCountInString(name) > MaxLibraryNameLen {
		return false, apperror.ValidationFailed("library_name", "library name is too long")
	}

	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO libraries (library_name, installed_by)
		VALUES (?, ?)
		ON CONFLICT (library_name) DO NOTHING`), name, installedBy)
	if err != nil {
		return false, apperror.Unavailable("add library", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Unavailable("add library", err)
	}
	logger.SVCLibraries.LogAttrs(ctx, slog.LevelDebug, "service.libraries",
		slog.String("event", "add"),
		slog.String("name", logger.SanitizeLimit(name, MaxLibraryNameLen)),
		slog.Bool("inserted", n > 0),
	)
	return n > 0, nil
}

// ListLibraries returns library names, most recently installed first.
func (s *Store) ListLibraries(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, `
		SELECT library_name FROM libraries
		ORDER BY installed_at DESC, id DESC`)
	if err != nil {
		return nil, apperror.Unavailable("list libraries", err)
	}
	return names, nil
}
