package sqlite

import (
	"context"
	"fmt"

	"github.com/ganot/larder/internal/domain/source"
)

// StatsRepository implements repository.StatsRepository for SQLite.
type StatsRepository struct {
	db *DB
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats reports aggregate counts across the index.
func (r *StatsRepository) GetStats(ctx context.Context) (source.Stats, error) {
	stats := source.Stats{ByType: map[string]int{}, ByStatus: map[string]int{}}

	rows, err := r.db.QueryContext(ctx, `SELECT source_type, COUNT(*) FROM sources GROUP BY source_type`)
	if err != nil {
		return stats, fmt.Errorf("stats by type: %w", err)
	}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			rows.Close()
			return stats, fmt.Errorf("scan stats by type: %w", err)
		}
		stats.ByType[t] = n
		stats.TotalSources += n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return stats, fmt.Errorf("iterate stats by type: %w", err)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sources GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("stats by status: %w", err)
	}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			rows.Close()
			return stats, fmt.Errorf("scan stats by status: %w", err)
		}
		stats.ByStatus[s] = n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return stats, fmt.Errorf("iterate stats by status: %w", err)
	}
	rows.Close()

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&stats.TotalSummary); err != nil {
		return stats, fmt.Errorf("count summaries: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extractions`).Scan(&stats.TotalExtract); err != nil {
		return stats, fmt.Errorf("count extractions: %w", err)
	}

	return stats, nil
}
