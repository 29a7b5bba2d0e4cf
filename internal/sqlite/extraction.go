package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ganot/larder/internal/domain/source"
	"github.com/ganot/larder/internal/repository"
)

// ExtractionRepository implements repository.ExtractionRepository for SQLite.
type ExtractionRepository struct {
	db *DB
}

// NewExtractionRepository creates a new ExtractionRepository.
func NewExtractionRepository(db *DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

// UpsertExtraction writes the structured digest and, when summary is
// non-empty, also refreshes Summary.summary_text. This indirectly re-fires
// the Summary triggers and keeps the short FTS field in sync with the
// latest digest.
func (r *ExtractionRepository) UpsertExtraction(ctx context.Context, ex *source.Extraction) error {
	arc, err := json.Marshal(ex.Arc)
	if err != nil {
		return fmt.Errorf("marshal arc: %w", err)
	}
	builds, err := json.Marshal(ex.Builds)
	if err != nil {
		return fmt.Errorf("marshal builds: %w", err)
	}
	learnings, err := json.Marshal(ex.Learnings)
	if err != nil {
		return fmt.Errorf("marshal learnings: %w", err)
	}
	friction, err := json.Marshal(ex.Friction)
	if err != nil {
		return fmt.Errorf("marshal friction: %w", err)
	}
	patterns, err := json.Marshal(ex.Patterns)
	if err != nil {
		return fmt.Errorf("marshal patterns: %w", err)
	}
	openThreads, err := json.Marshal(ex.OpenThreads)
	if err != nil {
		return fmt.Errorf("marshal open_threads: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert extraction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO extractions (
			source_id, summary, arc, builds, learnings, friction,
			patterns, open_threads, model_used, extracted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			summary      = excluded.summary,
			arc          = excluded.arc,
			builds       = excluded.builds,
			learnings    = excluded.learnings,
			friction     = excluded.friction,
			patterns     = excluded.patterns,
			open_threads = excluded.open_threads,
			model_used   = excluded.model_used,
			extracted_at = excluded.extracted_at
	`
	_, err = tx.ExecContext(ctx, query,
		ex.SourceID, ex.Summary, string(arc), string(builds), string(learnings),
		string(friction), string(patterns), string(openThreads), ex.ModelUsed, ex.ExtractedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("upsert extraction: %w", err)
	}

	if ex.Summary != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE summaries SET summary_text = ?, word_count = ? WHERE source_id = ?`,
			ex.Summary, len(strings.Fields(ex.Summary)), ex.SourceID,
		); err != nil {
			return fmt.Errorf("refresh summary_text from extraction: %w", err)
		}
	}

	return tx.Commit()
}

// GetExtraction retrieves the Extraction for a Source.
func (r *ExtractionRepository) GetExtraction(ctx context.Context, sourceID string) (*source.Extraction, error) {
	query := `
		SELECT source_id, summary, arc, builds, learnings, friction,
		       patterns, open_threads, model_used, extracted_at
		FROM extractions WHERE source_id = ?
	`
	var ex source.Extraction
	var arc, builds, learnings, friction, patterns, openThreads string
	var extractedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, sourceID).Scan(
		&ex.SourceID, &ex.Summary, &arc, &builds, &learnings, &friction,
		&patterns, &openThreads, &ex.ModelUsed, &extractedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get extraction: %w", err)
	}
	if extractedAt.Valid {
		ex.ExtractedAt = extractedAt.Time
	}
	if err := json.Unmarshal([]byte(arc), &ex.Arc); err != nil {
		return nil, fmt.Errorf("unmarshal arc: %w", err)
	}
	if err := json.Unmarshal([]byte(builds), &ex.Builds); err != nil {
		return nil, fmt.Errorf("unmarshal builds: %w", err)
	}
	if err := json.Unmarshal([]byte(learnings), &ex.Learnings); err != nil {
		return nil, fmt.Errorf("unmarshal learnings: %w", err)
	}
	if err := json.Unmarshal([]byte(friction), &ex.Friction); err != nil {
		return nil, fmt.Errorf("unmarshal friction: %w", err)
	}
	if err := json.Unmarshal([]byte(patterns), &ex.Patterns); err != nil {
		return nil, fmt.Errorf("unmarshal patterns: %w", err)
	}
	if err := json.Unmarshal([]byte(openThreads), &ex.OpenThreads); err != nil {
		return nil, fmt.Errorf("unmarshal open_threads: %w", err)
	}
	return &ex, nil
}
