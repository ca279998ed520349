// Package database provides SQLite connectivity for Bosun Core.
//
// SQLite holds what must survive a restart: the provisioned device table
// (names, types, per-device decoder config such as encryption keys) and the
// action event log written by rule dispatch.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive. Each version is a pair of files named
// YYYYMMDD_HHMMSS_description.up.sql and .down.sql at the root of the
// supplied filesystem.
package database
