package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationsDir is the directory inside the embedded filesystem that holds
// the schema migrations.
const MigrationsDir = "migrations"

// Migration is one versioned schema change with its optional revert script.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt *time.Time
}

// Migrator applies Migrations to a Postgres pool and tracks them in
// schema_migrations.
type Migrator struct {
	pool       *Pool
	migrations []Migration
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// NewMigrator creates a new Migrator reading NNN_name.{up,down}.sql files from
// dir in migrationsFS.
func NewMigrator(pool *Pool, migrationsFS fs.FS, dir string) (*Migrator, error) {
	migrations, err := loadMigrations(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	return &Migrator{
		pool:       pool,
		migrations: migrations,
	}, nil
}

// NewSchemaMigrator creates a Migrator for the application schema.
func NewSchemaMigrator(pool *Pool) (*Migrator, error) {
	return NewMigrator(pool, embeddedMigrations, MigrationsDir)
}

// SchemaMigrations returns the application schema migrations in version order.
func SchemaMigrations() ([]Migration, error) {
	return loadMigrations(embeddedMigrations, MigrationsDir)
}

// NewMigratorWithMigrations builds a Migrator over an explicit list, which
// must already be in version order.
func NewMigratorWithMigrations(pool *Pool, migrations []Migration) *Migrator {
	return &Migrator{
		pool:       pool,
		migrations: migrations,
	}
}

// parseScriptName splits "001_create_products.up.sql" into its version, name
// and direction. ok is false for files that are not migration scripts.
func parseScriptName(file string) (version int, name, direction string, ok bool) {
	base, found := strings.CutSuffix(file, ".sql")
	if !found {
		return 0, "", "", false
	}
	switch {
	case strings.HasSuffix(base, ".up"):
		direction = "up"
	case strings.HasSuffix(base, ".down"):
		direction = "down"
	default:
		return 0, "", "", false
	}
	base = strings.TrimSuffix(base, "."+direction)

	rawVersion, name, found := strings.Cut(base, "_")
	if !found || name == "" {
		return 0, "", "", false
	}
	version, err := strconv.Atoi(rawVersion)
	if err != nil || version <= 0 {
		return 0, "", "", false
	}
	return version, name, direction, true
}

// loadMigrations pairs the up and down scripts in dir by version.
func loadMigrations(migrationsFS fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, direction, ok := parseScriptName(entry.Name())
		if !ok {
			continue
		}

		script, err := fs.ReadFile(migrationsFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		m, seen := byVersion[version]
		if !seen {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, m.Name, name)
		}

		target := &m.UpSQL
		if direction == "down" {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("migration %d (%s) has more than one %s script", version, name, direction)
		}
		*target = string(script)
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %d (%s) has no up script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// schemaLockKey is the advisory lock held while a migration runs, so API
// replicas starting together with DB_AUTO_MIGRATE apply each script once.
const schemaLockKey int64 = 0x666c616b656964

// EnsureMigrationsTable creates schema_migrations if needed.
func (m *Migrator) EnsureMigrationsTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

// AppliedMigrations lists recorded migrations, oldest first.
func (m *Migrator) AppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := m.pool.Query(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("listing applied migrations: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MigrationRecord, error) {
		var r MigrationRecord
		err := row.Scan(&r.Version, &r.Name, &r.AppliedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning applied migrations: %w", err)
	}
	return records, nil
}

// PendingMigrations returns known migrations with no schema_migrations row.
func (m *Migrator) PendingMigrations(ctx context.Context) ([]Migration, error) {
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]struct{}, len(applied))
	for _, r := range applied {
		done[r.Version] = struct{}{}
	}

	var pending []Migration
	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies pending migrations in version order and reports how many this
// call applied. Scripts another process applied concurrently are skipped.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return 0, err
	}
	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, mig := range pending {
		ran, err := m.apply(ctx, mig)
		if err != nil {
			return applied, fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		if ran {
			applied++
		}
	}
	return applied, nil
}

// Down reverts the newest applied migration. It is a no-op on an empty history.
func (m *Migrator) Down(ctx context.Context) error {
	version, err := m.CurrentVersion(ctx)
	if err != nil || version == 0 {
		return err
	}
	mig, ok := m.find(version)
	if !ok {
		return fmt.Errorf("migration %d is recorded but has no script", version)
	}
	if err := m.revert(ctx, mig); err != nil {
		return fmt.Errorf("failed to revert migration %d (%s): %w", mig.Version, mig.Name, err)
	}
	return nil
}

// CurrentVersion returns the newest applied version, or 0.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func (m *Migrator) find(version int) (Migration, bool) {
	for _, mig := range m.migrations {
		if mig.Version == version {
			return mig, true
		}
	}
	return Migration{}, false
}

func (m *Migrator) apply(ctx context.Context, mig Migration) (bool, error) {
	ran := false
	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
			return fmt.Errorf("taking schema lock: %w", err)
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.Version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration record: %w", err)
		}
		if exists {
			return nil
		}
		if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
			return fmt.Errorf("running up script: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name); err != nil {
			return fmt.Errorf("recording migration: %w", err)
		}
		ran = true
		return nil
	})
	return ran, err
}

func (m *Migrator) revert(ctx context.Context, mig Migration) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
			return fmt.Errorf("taking schema lock: %w", err)
		}
		if mig.DownSQL != "" {
			if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
				return fmt.Errorf("running down script: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version); err != nil {
			return fmt.Errorf("removing migration record: %w", err)
		}
		return nil
	})
}
