package sqlite

import (
	"database/sql"
	"fmt"
)

// migration is one additive, idempotent schema step. name is recorded in
// schema_migrations once apply succeeds; running an already-applied
// migration again is always safe (every statement is self-guarding), but
// recording lets startup skip the no-op fast.
type migration struct {
	name  string
	apply func(db *sql.DB) error
}

func execMigration(sqlText string) func(db *sql.DB) error {
	return func(db *sql.DB) error {
		_, err := db.Exec(sqlText)
		return err
	}
}

var migrations = []migration{
	{"001_sources", execMigration(schemaSources)},
	{"002_summaries", execMigration(schemaSummaries)},
	{"003_extractions", execMigration(schemaExtractions)},
	{"004_file_mentions", execMigration(schemaFileMentions)},
	{"005_summaries_fts", execMigration(schemaSummariesFTS)},
	{"006_file_mentions_fts", execMigration(schemaFileMentionsFTS)},
	{"007_triggers", installTriggers},
}

// runMigrations applies every migration in order, skipping ones already
// recorded in schema_migrations. Migrations are additive alterations only
// (add table, add index, recreate trigger); there is no down direction.
func (db *DB) runMigrations() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, m.name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if applied > 0 {
			continue
		}
		if err := m.apply(db.DB); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations(name) VALUES (?)`, m.name); err != nil {
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
	}
	return nil
}

// installTriggers creates every trigger that does not yet exist, and
// replaces any whose stored definition has drifted from the target SQL:
// detect the old form, replace atomically.
func installTriggers(db *sql.DB) error {
	for _, t := range allTriggers {
		if err := replaceTriggerIfChanged(db, t.name, t.sql); err != nil {
			return fmt.Errorf("install trigger %s: %w", t.name, err)
		}
	}
	return nil
}

func replaceTriggerIfChanged(db *sql.DB, name, targetSQL string) error {
	var existing string
	err := db.QueryRow(`SELECT sql FROM sqlite_master WHERE type = 'trigger' AND name = ?`, name).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.Exec(targetSQL)
		return err
	case err != nil:
		return err
	case existing == targetSQL:
		return nil
	default:
		if _, err := db.Exec(fmt.Sprintf("DROP TRIGGER IF EXISTS %s", name)); err != nil {
			return err
		}
		_, err = db.Exec(targetSQL)
		return err
	}
}
