package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ganot/larder/internal/domain/source"
	"github.com/ganot/larder/internal/repository"
)

// SourceRepository implements repository.SourceRepository for SQLite.
type SourceRepository struct {
	db *DB
}

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(db *DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// UpsertSource inserts or, on conflict by id, updates a Source row in place.
func (r *SourceRepository) UpsertSource(ctx context.Context, s *source.Source) error {
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("marshal source metadata: %w", err)
	}
	if s.DiscoveredAt.IsZero() {
		s.DiscoveredAt = time.Now()
	}
	if s.Status == "" {
		s.Status = source.StatusPending
	}

	query := `
		INSERT INTO sources (
			id, source_type, title, path, created_at, updated_at,
			project_path, content_hash, metadata, discovered_at, processed_at, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_type  = excluded.source_type,
			title        = excluded.title,
			path         = excluded.path,
			updated_at   = excluded.updated_at,
			project_path = excluded.project_path,
			content_hash = excluded.content_hash,
			metadata     = excluded.metadata
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.SourceType, s.Title, s.Path, s.CreatedAt, s.UpdatedAt,
		s.ProjectPath, s.ContentHash, string(metadata), s.DiscoveredAt, s.ProcessedAt, s.Status,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("upsert source: %w", err)
	}
	return nil
}

// GetSource retrieves a Source by id.
func (r *SourceRepository) GetSource(ctx context.Context, id string) (*source.Source, error) {
	query := `
		SELECT id, source_type, title, path, created_at, updated_at,
		       project_path, content_hash, metadata, discovered_at, processed_at, status
		FROM sources WHERE id = ?
	`
	return scanSource(r.db.QueryRowContext(ctx, query, id))
}

func scanSource(row *sql.Row) (*source.Source, error) {
	var s source.Source
	var metadata string
	var processedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.SourceType, &s.Title, &s.Path, &s.CreatedAt, &s.UpdatedAt,
		&s.ProjectPath, &s.ContentHash, &metadata, &s.DiscoveredAt, &processedAt, &s.Status,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	if processedAt.Valid {
		t := processedAt.Time
		s.ProcessedAt = &t
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &s.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal source metadata: %w", err)
		}
	}
	return &s, nil
}

// MarkStale transitions a Source to status=stale without touching its
// derived rows; a stale Source stays searchable.
func (r *SourceRepository) MarkStale(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, source.StatusStale)
}

// MarkProcessed transitions a Source to status=processed, recording the
// completion time.
func (r *SourceRepository) MarkProcessed(ctx context.Context, id string, processedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sources SET status = ?, processed_at = ? WHERE id = ?`,
		source.StatusProcessed, processedAt, id)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return requireRowsAffected(res)
}

func (r *SourceRepository) setStatus(ctx context.Context, id string, status source.Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sources SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return requireRowsAffected(res)
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteSource performs the cascading delete:
// File-mentions, then Extraction, then Summary, then Source, all inside one
// transaction, ordered child-first.
func (r *SourceRepository) DeleteSource(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	steps := []string{
		`DELETE FROM file_mentions WHERE source_id = ?`,
		`DELETE FROM extractions WHERE source_id = ?`,
		`DELETE FROM summaries WHERE source_id = ?`,
		`DELETE FROM sources WHERE id = ?`,
	}
	var sourceDeleted bool
	for i, stmt := range steps {
		res, err := tx.ExecContext(ctx, stmt, id)
		if err != nil {
			return fmt.Errorf("delete step %d: %w", i, err)
		}
		if i == len(steps)-1 {
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			sourceDeleted = n > 0
		}
	}
	if !sourceDeleted {
		return repository.ErrNotFound
	}
	return tx.Commit()
}

// ListByType returns every Source of a given type, for batch scans.
func (r *SourceRepository) ListByType(ctx context.Context, sourceType string) ([]source.Source, error) {
	return r.list(ctx, `
		SELECT id, source_type, title, path, created_at, updated_at,
		       project_path, content_hash, metadata, discovered_at, processed_at, status
		FROM sources WHERE source_type = ? ORDER BY created_at ASC`, sourceType)
}

// ListAllWithPath returns every Source that carries a non-virtual
// filesystem path, for the prune operation.
func (r *SourceRepository) ListAllWithPath(ctx context.Context) ([]source.Source, error) {
	return r.list(ctx, `
		SELECT id, source_type, title, path, created_at, updated_at,
		       project_path, content_hash, metadata, discovered_at, processed_at, status
		FROM sources WHERE path != '' ORDER BY created_at ASC`)
}

func (r *SourceRepository) list(ctx context.Context, query string, args ...any) ([]source.Source, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []source.Source
	for rows.Next() {
		var s source.Source
		var metadata string
		var processedAt sql.NullTime
		if err := rows.Scan(
			&s.ID, &s.SourceType, &s.Title, &s.Path, &s.CreatedAt, &s.UpdatedAt,
			&s.ProjectPath, &s.ContentHash, &metadata, &s.DiscoveredAt, &processedAt, &s.Status,
		); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if processedAt.Valid {
			t := processedAt.Time
			s.ProcessedAt = &t
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &s.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal source metadata: %w", err)
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}
