package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ganot/larder/internal/repository"
)

// SearchRepository implements repository.SearchRepository for SQLite.
type SearchRepository struct {
	db *DB
}

// NewSearchRepository creates a new SearchRepository.
func NewSearchRepository(db *DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Search runs the compiled FTS query against summaries_fts, joining back
// to sources for filters and the fields the caller needs. Rank is the
// bm25() score: negative, and lower (more negative) is a better match.
func (r *SearchRepository) Search(ctx context.Context, query string, opts repository.SearchOptions) ([]repository.SearchResult, error) {
	sqlQuery := `
		SELECT src.id, src.source_type, src.title, f.summary_text, src.created_at,
		       bm25(summaries_fts) AS rank
		FROM summaries_fts f
		JOIN sources src ON src.id = f.source_id
		WHERE summaries_fts MATCH ?
	`
	args := []any{query}
	var conditions []string

	if len(opts.SourceTypes) > 0 {
		placeholders := make([]string, len(opts.SourceTypes))
		for i, t := range opts.SourceTypes {
			placeholders[i] = "?"
			args = append(args, t)
		}
		conditions = append(conditions, fmt.Sprintf("src.source_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if opts.ProjectPath != "" {
		conditions = append(conditions, "src.project_path LIKE ?")
		args = append(args, "%"+opts.ProjectPath+"%")
	}
	if len(conditions) > 0 {
		sqlQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sqlQuery += " ORDER BY rank"
	if opts.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []repository.SearchResult
	for rows.Next() {
		var res repository.SearchResult
		if err := rows.Scan(&res.SourceID, &res.SourceType, &res.Title, &res.SummaryText, &res.CreatedAt, &res.Rank); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return results, nil
}

// SearchFiles runs a query against file_mentions_fts and groups matches by
// source, newest first, capping the matched paths surfaced per source to
// three.
func (r *SearchRepository) SearchFiles(ctx context.Context, query string, limit int) ([]repository.FileSearchResult, error) {
	sqlQuery := `
		SELECT src.id, m.file_path, src.created_at
		FROM file_mentions_fts f
		JOIN sources src ON src.id = f.source_id
		JOIN file_mentions m ON m.id = f.rowid
		WHERE file_mentions_fts MATCH ?
		ORDER BY src.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, sqlQuery, query)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	defer rows.Close()

	const maxPathsPerSource = 3
	order := make([]string, 0)
	bySource := make(map[string]*repository.FileSearchResult)
	for rows.Next() {
		var sourceID, path string
		var createdAt time.Time
		if err := rows.Scan(&sourceID, &path, &createdAt); err != nil {
			return nil, fmt.Errorf("scan file search result: %w", err)
		}
		res, ok := bySource[sourceID]
		if !ok {
			res = &repository.FileSearchResult{SourceID: sourceID, CreatedAt: createdAt}
			bySource[sourceID] = res
			order = append(order, sourceID)
		}
		if len(res.FilePaths) < maxPathsPerSource {
			res.FilePaths = append(res.FilePaths, path)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file search results: %w", err)
	}

	out := make([]repository.FileSearchResult, 0, len(order))
	for _, id := range order {
		out = append(out, *bySource[id])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
