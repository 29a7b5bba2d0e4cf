package repository

import (
	"context"
	"time"

	"github.com/ganot/larder/internal/domain/source"
)

// SourceRepository persists Source rows and their lifecycle transitions.
type SourceRepository interface {
	UpsertSource(ctx context.Context, s *source.Source) error
	GetSource(ctx context.Context, id string) (*source.Source, error)
	MarkStale(ctx context.Context, id string) error
	MarkProcessed(ctx context.Context, id string, processedAt time.Time) error
	DeleteSource(ctx context.Context, id string) error
	ListByType(ctx context.Context, sourceType string) ([]source.Source, error)
	ListAllWithPath(ctx context.Context) ([]source.Source, error)
}

// SummaryRepository persists the 1:1 Summary row for a Source.
type SummaryRepository interface {
	UpsertSummary(ctx context.Context, sum *source.Summary) error
	GetSummary(ctx context.Context, sourceID string) (*source.Summary, error)
}

// ExtractionRepository persists the 1:1 structured digest for a Source.
type ExtractionRepository interface {
	UpsertExtraction(ctx context.Context, ex *source.Extraction) error
	GetExtraction(ctx context.Context, sourceID string) (*source.Extraction, error)
}

// FileMentionRepository persists per-Source file references.
type FileMentionRepository interface {
	AddFileMentionsBatch(ctx context.Context, sourceID string, mentions []source.FileMention) error
}

// SearchOptions filters a full-text search over Summary rows. Recency
// decay is applied by the query engine on top of these raw results, not by
// the repository. Limit here is the raw row cap the caller wants back,
// which the query engine may set higher than the user-facing limit when it
// needs to re-rank by decayed score.
type SearchOptions struct {
	SourceTypes []string
	ProjectPath string // substring match against Source.project_path
	Limit       int
}

// SearchResult is one ranked hit.
type SearchResult struct {
	SourceID    string
	SourceType  string
	Title       string
	SummaryText string
	CreatedAt   time.Time
	Rank        float64
}

// FileSearchResult is one file-mention hit grouped by source.
type FileSearchResult struct {
	SourceID  string
	FilePaths []string
	CreatedAt time.Time
}

// SearchRepository performs full-text queries against the FTS mirrors.
type SearchRepository interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
	SearchFiles(ctx context.Context, query string, limit int) ([]FileSearchResult, error)
}

// StatsRepository reports aggregate counts across the index.
type StatsRepository interface {
	GetStats(ctx context.Context) (source.Stats, error)
}

// FTSMaintenance exposes the rebuild/verify maintenance operations.
type FTSMaintenance interface {
	RebuildFTS(ctx context.Context) error
	VerifyFTS(ctx context.Context) error
}

// Storage is the full surface the ingest pipeline and query engine depend
// on.
type Storage interface {
	SourceRepository
	SummaryRepository
	ExtractionRepository
	FileMentionRepository
	SearchRepository
	StatsRepository
	FTSMaintenance
}
