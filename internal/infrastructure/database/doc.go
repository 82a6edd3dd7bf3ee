// Package database provides SQLite connectivity for the telemetry core.
//
// The database holds only the lifecycle audit trail. Temperature readings are
// never persisted here; they live in the device actors and, as write-only
// history, in InfluxDB.
//
// This package manages:
//   - Database connection with WAL mode and a busy timeout
//   - Schema migrations read from an fs.FS (see package migrations)
//   - Transaction helper and health check
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are additive: new columns must be nullable or
// carry a default.
package database
