package sqlite

import (
	"context"
	"fmt"

	"github.com/ganot/larder/internal/domain/source"
	"github.com/ganot/larder/internal/repository"
)

// FileMentionRepository implements repository.FileMentionRepository for SQLite.
type FileMentionRepository struct {
	db *DB
}

// NewFileMentionRepository creates a new FileMentionRepository.
func NewFileMentionRepository(db *DB) *FileMentionRepository {
	return &FileMentionRepository{db: db}
}

// AddFileMentionsBatch inserts file mentions for a Source, ignoring
// duplicates on the (source_id, file_path) unique constraint so adapters
// can re-index idempotently.
func (r *FileMentionRepository) AddFileMentionsBatch(ctx context.Context, sourceID string, mentions []source.FileMention) error {
	if len(mentions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add file mentions: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO file_mentions (source_id, file_path, operation) VALUES (?, ?, ?)
		 ON CONFLICT(source_id, file_path) DO UPDATE SET operation = excluded.operation`)
	if err != nil {
		return fmt.Errorf("prepare add file mentions: %w", err)
	}
	defer stmt.Close()

	for _, m := range mentions {
		if _, err := stmt.ExecContext(ctx, sourceID, m.FilePath, m.Operation); err != nil {
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			return fmt.Errorf("insert file mention %s: %w", m.FilePath, err)
		}
	}

	return tx.Commit()
}
