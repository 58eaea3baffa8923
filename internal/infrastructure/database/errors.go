package database

import "errors"

var (
	// ErrNoPath indicates the database path was left empty.
	ErrNoPath = errors.New("database: path is required")

	// ErrMigrationMissing indicates an applied migration has no file in the source.
	ErrMigrationMissing = errors.New("database: migration not found in source")

	// ErrNoDownMigration indicates a rollback was requested for a migration without .down.sql.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)
