// Package migrations embeds the versioned schema for every supported driver.
// Files live in a directory named after the driver (postgres, sqlite).
package migrations

import "embed"

// FS holds the migration files, rooted so that "<driver>/<file>" resolves.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
