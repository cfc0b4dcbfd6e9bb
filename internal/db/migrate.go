// Package db holds the PostgreSQL schema for the video catalog and applies it.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations brings the schema up to the latest version. It is a no-op
// when the database is already current.
func RunMigrations(conn *sql.DB) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("db: load migrations: %w", err)
	}

	driver, err := pgx.WithInstance(conn, &pgx.Config{})
	if err != nil {
		return fmt.Errorf("db: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("db: init migrate: %w", err)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Printf("service=migrate msg=%q", "schema_up_to_date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("db: migrate up: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		log.Printf("service=migrate msg=%q version=%d dirty=%v", "schema_migrated", version, dirty)
	}
	return nil
}

// MigrationNames lists the embedded migration files, in order.
func MigrationNames() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
