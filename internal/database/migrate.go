package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrations/ holds the students (pgvector embedding, unique fingerprint)
// and blobs (student photos) tables.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// Versions lists the embedded schema versions in ascending order.
func Versions() ([]uint, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	defer func() { _ = src.Close() }()
	return versions(src)
}

func versions(src source.Driver) ([]uint, error) {
	v, err := src.First()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read first migration: %w", err)
	}

	out := []uint{v}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read migration after %d: %w", v, err)
		}
		out = append(out, next)
		v = next
	}
}

// Status is where the database stands against the embedded schema.
type Status struct {
	Current uint
	Latest  uint
	Dirty   bool
	Pending []uint
}

// Migrator aplica o schema de alunos e imagens
type Migrator struct {
	m        *migrate.Migrate
	versions []uint
}

// NewMigrator creates a migrator over the embedded migrations
func NewMigrator(db *sql.DB, dbName string) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{
		DatabaseName: dbName,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	known, err := Versions()
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	return &Migrator{m: m, versions: known}, nil
}

// Up runs all pending migrations and returns the versions it applied.
// An up-to-date schema returns an empty slice.
func (m *Migrator) Up() ([]uint, error) {
	before, _, err := m.Version()
	if err != nil {
		return nil, err
	}

	err = m.m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	after, _, err := m.Version()
	if err != nil {
		return nil, err
	}
	return between(m.versions, before, after), nil
}

// Down rolls back the last migration (DEV ONLY)
func (m *Migrator) Down() error {
	if err := m.m.Steps(-1); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Version returns current migration version; 0 means no schema yet.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get version: %w", err)
	}
	return version, dirty, nil
}

// Status compares the database version with the embedded migrations.
func (m *Migrator) Status() (Status, error) {
	current, dirty, err := m.Version()
	if err != nil {
		return Status{}, err
	}
	return statusOf(m.versions, current, dirty), nil
}

func statusOf(known []uint, current uint, dirty bool) Status {
	st := Status{Current: current, Dirty: dirty, Pending: []uint{}}
	if len(known) > 0 {
		st.Latest = known[len(known)-1]
		st.Pending = between(known, current, st.Latest)
	}
	return st
}

// between returns the known versions in (from, to].
func between(known []uint, from, to uint) []uint {
	out := []uint{}
	for _, v := range known {
		if v > from && v <= to {
			out = append(out, v)
		}
	}
	return out
}

// Force sets the migration version without running migrations (DANGEROUS)
func (m *Migrator) Force(version int) error {
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version: %w", err)
	}
	return nil
}

// Close closes the migrator
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return fmt.Errorf("close source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close database: %w", dbErr)
	}
	return nil
}
