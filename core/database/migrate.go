package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/scriptbot/core/logger"
)

const (
	readyTimeout = 30 * time.Second
	previewFiles = 6
)

// migration is one up script of the source directory.
type migration struct {
	version uint64
	name    string
}

// RunMigrations applies all up migrations found under the driver named
// directory of files (for example "postgres/0001_init.up.sql").
func RunMigrations(cfg Config, files fs.FS) error {
	if files == nil {
		return errors.New("migrations: nil source filesystem")
	}
	ctx := context.Background()
	if err := WaitReady(cfg, readyTimeout); err != nil {
		logger.MIG.LogAttrs(ctx, slog.LevelError, "db not ready",
			slog.String("event", "db.migrate"), logger.ErrAttr(err))
		return fmt.Errorf("database not ready: %w", err)
	}

	dir := cfg.Driver
	known := scanMigrations(files, dir)
	logger.MIG.LogAttrs(ctx, slog.LevelDebug, "migrations resolved",
		append([]slog.Attr{slog.String("event", "resolve"), slog.String("path", dir)},
			logger.PreviewAttrs("files", names(known), previewFiles)...)...)

	src, err := iofs.New(files, dir)
	if err != nil {
		return fmt.Errorf("failed to open migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		logger.MIG.LogAttrs(ctx, slog.LevelError, "init failed",
			slog.String("event", "db.migrate"), logger.ErrAttr(err))
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if err := errors.Join(m.Close()); err != nil {
			logger.MIG.LogAttrs(ctx, slog.LevelWarn, "close failed",
				slog.String("event", "db.migrate"), logger.ErrAttr(err))
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := slog.Duration("duration", logger.RoundMS(time.Since(start)))

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.LogAttrs(ctx, slog.LevelError, "migration failed",
			slog.String("event", "apply"), logger.ErrAttr(upErr), took)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	to := from
	if upErr == nil {
		to, _, _ = m.Version()
	}
	applied := between(known, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.MIG.LogAttrs(ctx, slog.LevelDebug, "applied files",
			append([]slog.Attr{slog.String("event", "apply")},
				logger.PreviewAttrs("files", names(applied), previewFiles)...)...)
	}
	logger.MIG.LogAttrs(ctx, slog.LevelInfo, "migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		took,
	)
	return nil
}

// scanMigrations lists the up scripts of dir ordered by version. Files
// without a numeric version prefix are skipped.
func scanMigrations(files fs.FS, dir string) []migration {
	matches, err := fs.Glob(files, path.Join(dir, "*.up.sql"))
	if err != nil {
		return nil
	}
	out := make([]migration, 0, len(matches))
	for _, p := range matches {
		name := path.Base(p)
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, migration{version: v, name: name})
	}
	slices.SortFunc(out, func(a, b migration) int {
		return cmpUint(a.version, b.version)
	})
	return out
}

// between returns the migrations with from < version <= to.
func between(all []migration, from, to uint64) []migration {
	var out []migration
	for _, m := range all {
		if m.version > from && m.version <= to {
			out = append(out, m)
		}
	}
	return out
}

func names(ms []migration) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.name
	}
	return out
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
