package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version int
	name    string
	up      string
	down    string
}

// RunMigrations applies all pending migrations to the journal at dbPath.
func RunMigrations(ctx context.Context, dbPath string) error {
	return migratePath(ctx, dbPath, false)
}

// RollbackMigrations rolls back all migrations of the journal at dbPath.
func RollbackMigrations(ctx context.Context, dbPath string) error {
	return migratePath(ctx, dbPath, true)
}

func migratePath(ctx context.Context, dbPath string, down bool) error {
	sqlDB, err := open(dbPath)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return migrate(ctx, sqlDB, down)
}

// SchemaVersion returns the highest applied migration and whether it is dirty.
func SchemaVersion(ctx context.Context, sqlDB *sql.DB) (int, bool, error) {
	if err := ensureMigrationsTable(ctx, sqlDB); err != nil {
		return 0, false, err
	}
	var version, dirty int
	err := sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0), COALESCE(MAX(dirty), 0) FROM schema_migrations`,
	).Scan(&version, &dirty)
	if err != nil {
		return 0, false, fmt.Errorf("get schema version: %w", err)
	}
	return version, dirty != 0, nil
}

func ensureMigrationsTable(ctx context.Context, sqlDB *sql.DB) error {
	_, err := sqlDB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, sqlDB *sql.DB, down bool) error {
	current, dirty, err := SchemaVersion(ctx, sqlDB)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("journal is in dirty state at version %d, manual intervention required", current)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	if down {
		for i := len(migrations) - 1; i >= 0; i-- {
			m := migrations[i]
			if m.version > current {
				continue
			}
			if m.down == "" {
				return fmt.Errorf("no down migration for version %d", m.version)
			}
			if err := step(ctx, sqlDB, m.version, m.down, true); err != nil {
				return err
			}
		}
		return nil
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if m.up == "" {
			return fmt.Errorf("no up migration for version %d", m.version)
		}
		if err := step(ctx, sqlDB, m.version, m.up, false); err != nil {
			return err
		}
	}
	return nil
}

// step runs one migration with the version marked dirty until it succeeds.
func step(ctx context.Context, sqlDB *sql.DB, version int, script string, down bool) error {
	if _, err := sqlDB.ExecContext(ctx, `INSERT OR REPLACE INTO schema_migrations (version, dirty) VALUES (?, 1)`, version); err != nil {
		return fmt.Errorf("mark version %d as dirty: %w", version, err)
	}
	if _, err := sqlDB.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("run migration %d: %w", version, err)
	}

	var err error
	if down {
		_, err = sqlDB.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, version)
	} else {
		_, err = sqlDB.ExecContext(ctx, `UPDATE schema_migrations SET dirty = 0 WHERE version = ?`, version)
	}
	if err != nil {
		return fmt.Errorf("record version %d: %w", version, err)
	}
	return nil
}

// loadMigrations reads NNNN_name.{up,down}.sql pairs, sorted by version.
func loadMigrations() ([]*migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	byVersion := make(map[int]*migration)
	for _, entry := range entries {
		name := entry.Name()
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &migration{version: version}
			byVersion[version] = m
		}
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			m.up = string(content)
			m.name = strings.TrimSuffix(name, ".up.sql")
		case strings.HasSuffix(name, ".down.sql"):
			m.down = string(content)
		}
	}

	migrations := make([]*migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}
