// Package database provides the SQLite connection used to store the device
// catalog.
//
// The store is optional: devcaps compiles from YAML files by default and
// only opens a database when catalog.source is "sqlite" or when
// catalog.import_to_database is set.
//
// Migrations are versioned .up.sql/.down.sql pairs read from MigrationsFS.
// Only up migrations run automatically; down files are kept alongside for
// manual rollback and are reported in Migration.DownSQL.
// Importing the migrations package registers the embedded catalog schema:
//
//	import _ "github.com/nerrad567/gray-logic-devcaps/migrations"
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//	cat, err := catalog.LoadSQLite(ctx, db, db.Path())
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is created with 0600 permissions
package database
