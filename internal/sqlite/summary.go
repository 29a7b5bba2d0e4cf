package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ganot/larder/internal/domain/source"
	"github.com/ganot/larder/internal/repository"
)

// SummaryRepository implements repository.SummaryRepository for SQLite.
type SummaryRepository struct {
	db *DB
}

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(db *DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// UpsertSummary inserts or replaces the Summary row for a Source. raw_text
// is truncated to source.MaxRawTextLen and word_count is derived from
// summary_text, both at write time.
func (r *SummaryRepository) UpsertSummary(ctx context.Context, sum *source.Summary) error {
	rawText := sum.RawText
	if utf8.RuneCountInString(rawText) > source.MaxRawTextLen {
		rawText = string([]rune(rawText)[:source.MaxRawTextLen])
	}
	wordCount := len(strings.Fields(sum.SummaryText))

	query := `
		INSERT INTO summaries (source_id, summary_text, raw_text, title, has_presummary, word_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			summary_text   = excluded.summary_text,
			raw_text       = excluded.raw_text,
			title          = excluded.title,
			has_presummary = excluded.has_presummary,
			word_count     = excluded.word_count
	`
	_, err := r.db.ExecContext(ctx, query,
		sum.SourceID, sum.SummaryText, rawText, sum.Title, sum.HasPresummary, wordCount)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("upsert summary: %w", err)
	}
	sum.RawText = rawText
	sum.WordCount = wordCount
	return nil
}

// GetSummary retrieves the Summary for a Source.
func (r *SummaryRepository) GetSummary(ctx context.Context, sourceID string) (*source.Summary, error) {
	query := `
		SELECT source_id, summary_text, raw_text, title, has_presummary, word_count
		FROM summaries WHERE source_id = ?
	`
	var sum source.Summary
	err := r.db.QueryRowContext(ctx, query, sourceID).Scan(
		&sum.SourceID, &sum.SummaryText, &sum.RawText, &sum.Title, &sum.HasPresummary, &sum.WordCount)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return &sum, nil
}
