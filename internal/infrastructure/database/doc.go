// Package database provides SQLite connectivity for homeconnect-core.
//
// The store is small: the current OAuth2 token (so a restart does not need
// a fresh refresh token) and the property history audit trail. Live
// appliance state is never read back from it.
//
// Migrations are plain .sql files passed in as an fs.FS, normally the
// embedded migrations.FS:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
