package admin

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// MigrationsDir is the root of the embedded migrations, one directory per dialect
const MigrationsDir = "data/sql/migrations"

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
