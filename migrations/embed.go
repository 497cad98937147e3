// Package migrations embeds the catalog schema into the binary.
//
// Importing this package registers the SQL files with the database package,
// so Migrate works without the files present on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
