package sqlite

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/jadehq/jade/pkg/sqlite/migrate"
)

//go:embed migrate/migrations/*.sql
var migrationsFS embed.FS

// migrationTable tracks applied event store migrations.
const migrationTable = "jade_schema_migrations"

// runMigrations applies all pending event store migrations.
func runMigrations(db *sql.DB) error {
	m := migrate.New(db, migrationTable)
	if err := m.LoadFromFS(migrationsFS, "migrate/migrations"); err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	return m.Up()
}

// SchemaVersion returns the applied migration version of the store.
func (s *EventStore) SchemaVersion() (int, error) {
	return migrate.New(s.db, migrationTable).Version()
}
