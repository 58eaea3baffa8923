// Package migrations embeds the SQLite schema so the binary can migrate
// its database without the .sql files on disk.
package migrations

import "embed"

// FS holds every migration at its root. Pass it to database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
