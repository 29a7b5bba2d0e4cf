package sqlite

import (
	"context"
	"fmt"

	"github.com/ganot/larder/internal/repository"
)

// RebuildFTS drops and recreates both FTS mirrors and their triggers, then
// repopulates them from the base tables in one transaction. This is the
// maintenance operation: a full rebuild rather than
// an external-content "rebuild" magic command, since these tables are
// standalone.
func (db *DB) RebuildFTS(ctx context.Context) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback()

	drops := []string{
		"DROP TRIGGER IF EXISTS summaries_ai",
		"DROP TRIGGER IF EXISTS summaries_ad",
		"DROP TRIGGER IF EXISTS summaries_au",
		"DROP TRIGGER IF EXISTS sources_title_au",
		"DROP TRIGGER IF EXISTS file_mentions_ai",
		"DROP TRIGGER IF EXISTS file_mentions_ad",
		"DROP TRIGGER IF EXISTS file_mentions_au",
		"DROP TABLE IF EXISTS summaries_fts",
		"DROP TABLE IF EXISTS file_mentions_fts",
	}
	for _, stmt := range drops {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop stale fts objects: %w", err)
		}
	}

	creates := []string{schemaSummariesFTS, schemaFileMentionsFTS}
	for _, stmt := range creates {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("recreate fts tables: %w", err)
		}
	}
	for _, t := range allTriggers {
		if _, err := tx.ExecContext(ctx, t.sql); err != nil {
			return fmt.Errorf("recreate trigger %s: %w", t.name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO summaries_fts(rowid, source_id, title, summary_text, raw_text)
		SELECT s.rowid, s.source_id, src.title, s.summary_text, s.raw_text
		FROM summaries s JOIN sources src ON src.id = s.source_id
	`); err != nil {
		return fmt.Errorf("repopulate summaries_fts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO file_mentions_fts(rowid, source_id, file_path)
		SELECT f.id, f.source_id, f.file_path FROM file_mentions f
	`); err != nil {
		return fmt.Errorf("repopulate file_mentions_fts: %w", err)
	}

	return tx.Commit()
}

// VerifyFTS checks that every base row has exactly one FTS mirror row and
// vice versa. It returns repository.ErrFTSDrift, wrapped with counts, when
// it finds orphaned or missing rows.
func (db *DB) VerifyFTS(ctx context.Context) error {
	checks := []struct {
		label string
		query string
	}{
		{
			"summaries missing fts row",
			`SELECT COUNT(*) FROM summaries s
			 WHERE NOT EXISTS (SELECT 1 FROM summaries_fts f WHERE f.rowid = s.rowid)`,
		},
		{
			"fts row with no summary",
			`SELECT COUNT(*) FROM summaries_fts f
			 WHERE NOT EXISTS (SELECT 1 FROM summaries s WHERE s.rowid = f.rowid)`,
		},
		{
			"file_mentions missing fts row",
			`SELECT COUNT(*) FROM file_mentions m
			 WHERE NOT EXISTS (SELECT 1 FROM file_mentions_fts f WHERE f.rowid = m.id)`,
		},
		{
			"file_mentions fts row with no mention",
			`SELECT COUNT(*) FROM file_mentions_fts f
			 WHERE NOT EXISTS (SELECT 1 FROM file_mentions m WHERE m.id = f.rowid)`,
		},
	}

	for _, c := range checks {
		var n int
		if err := db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return fmt.Errorf("verify fts (%s): %w", c.label, err)
		}
		if n > 0 {
			return fmt.Errorf("%s: %d rows: %w", c.label, n, repository.ErrFTSDrift)
		}
	}
	return nil
}
