package db

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	embeddedmigrations "github.com/solatis/cpq/migrations"
)

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *string
	ExecutionMs int64
}

// migration represents a parsed migration file
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// MigrateUp runs all pending migrations against the database.
// Applied migrations are checksum-verified before anything new runs.
func MigrateUp(db *sqlx.DB) error {
	migrations, err := prepare(db)
	if err != nil {
		return err
	}

	if err := validateChecksums(db, migrations); err != nil {
		return fmt.Errorf("migration checksum validation failed: %w", err)
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}

	for _, m := range migrations {
		if _, ok := applied[m.ID]; ok {
			continue
		}
		if err := runMigration(db, m); err != nil {
			return err
		}
	}

	return nil
}

// MigrateStatus returns the status of all migrations (applied and pending).
func MigrateStatus(db *sqlx.DB) ([]MigrationStatus, error) {
	migrations, err := prepare(db)
	if err != nil {
		return nil, err
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		if s, ok := applied[m.ID]; ok {
			statuses = append(statuses, s)
			continue
		}
		statuses = append(statuses, MigrationStatus{ID: m.ID, Checksum: m.Checksum})
	}
	return statuses, nil
}

// prepare selects the embedded migrations for the driver, creates the
// tracking table and parses the migration files.
func prepare(db *sqlx.DB) ([]migration, error) {
	fsys, dir, err := embeddedFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	if err := createMigrationsTable(db); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	migrations, err := parseMigrationFiles(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	return migrations, nil
}

func embeddedFor(driver string) (embed.FS, string, error) {
	switch driver {
	case "sqlite3":
		return embeddedmigrations.SqliteMigrations, "sqlite", nil
	case "postgres":
		return embeddedmigrations.PostgresMigrations, "postgres", nil
	default:
		return embed.FS{}, "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// runMigration applies and records one migration in a single transaction.
func runMigration(db *sqlx.DB, m migration) error {
	start := time.Now()

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", m.ID, err)
	}

	if err := applyMigration(tx, m); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
	}

	_, err = tx.Exec(
		tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		m.ID, m.Checksum, time.Now().UTC().Format(time.RFC3339), time.Since(start).Milliseconds(),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.ID, err)
	}
	return nil
}

// parseMigrationFiles extracts ordered list of migrations from embed.FS
func parseMigrationFiles(fsys embed.FS, dir string) ([]migration, error) {
	var migrations []migration

	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		content, err := fsys.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		migrations = append(migrations, migration{
			ID:       filepath.Base(path),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
			SQL:      string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})
	return migrations, nil
}

// createMigrationsTable ensures the tracking table exists.
// applied_at is RFC3339 text on both drivers.
func createMigrationsTable(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			execution_ms BIGINT NOT NULL
		)
	`)
	return err
}

// appliedMigrations returns applied migrations keyed by id.
func appliedMigrations(db *sqlx.DB) (map[string]MigrationStatus, error) {
	rows, err := db.Queryx("SELECT migration_id, checksum, applied_at, execution_ms FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]MigrationStatus)
	for rows.Next() {
		var s MigrationStatus
		var appliedAt string
		if err := rows.Scan(&s.ID, &s.Checksum, &appliedAt, &s.ExecutionMs); err != nil {
			return nil, err
		}
		s.Applied = true
		s.AppliedAt = &appliedAt
		applied[s.ID] = s
	}
	return applied, rows.Err()
}

// validateChecksums verifies all applied migrations match embedded checksums
func validateChecksums(db *sqlx.DB, migrations []migration) error {
	applied, err := appliedMigrations(db)
	if err != nil {
		return err
	}

	checksums := make(map[string]string, len(migrations))
	for _, m := range migrations {
		checksums[m.ID] = m.Checksum
	}

	for id, s := range applied {
		expected, ok := checksums[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if s.Checksum != expected {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, expected, s.Checksum)
		}
	}
	return nil
}

// applyMigration executes a single migration's statements within a transaction.
// lib/pq doesn't support multiple statements in a single Exec.
func applyMigration(tx *sqlx.Tx, m migration) error {
	for _, stmt := range strings.Split(m.SQL, ";") {
		stmt = stripComments(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	return nil
}

// stripComments drops full-line "--" comments and surrounding whitespace.
func stripComments(stmt string) string {
	var kept []string
	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
