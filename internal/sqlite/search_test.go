package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganot/larder/internal/domain/source"
	"github.com/ganot/larder/internal/repository"
	"github.com/ganot/larder/internal/sqlite"
)

func TestSearchFiltersBySourceType(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	sources := sqlite.NewSourceRepository(db)
	summaries := sqlite.NewSummaryRepository(db)
	search := sqlite.NewSearchRepository(db)

	require.NoError(t, sources.UpsertSource(ctx, &source.Source{ID: "test:a", SourceType: "claude_code", Title: "A"}))
	require.NoError(t, sources.UpsertSource(ctx, &source.Source{ID: "test:b", SourceType: "handoff", Title: "B"}))
	require.NoError(t, summaries.UpsertSummary(ctx, &source.Summary{SourceID: "test:a", SummaryText: "rocket fuel telemetry"}))
	require.NoError(t, summaries.UpsertSummary(ctx, &source.Summary{SourceID: "test:b", SummaryText: "rocket fuel handoff notes"}))

	results, err := search.Search(ctx, "rocket", repository.SearchOptions{SourceTypes: []string{"handoff"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "test:b", results[0].SourceID)
}

func TestSearchFilesCapsPathsPerSourceAtThree(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	sources := sqlite.NewSourceRepository(db)
	mentions := sqlite.NewFileMentionRepository(db)
	search := sqlite.NewSearchRepository(db)

	seedSource(t, sources, "test:many-files", "Many Files Source")
	require.NoError(t, mentions.AddFileMentionsBatch(ctx, "test:many-files", []source.FileMention{
		{FilePath: "a/widget.go"}, {FilePath: "b/widget.go"},
		{FilePath: "c/widget.go"}, {FilePath: "d/widget.go"},
	}))

	results, err := search.SearchFiles(ctx, "widget", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].FilePaths, 3)
}

func TestSearchFilesRespectsLimitAcrossSources(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	sources := sqlite.NewSourceRepository(db)
	mentions := sqlite.NewFileMentionRepository(db)
	search := sqlite.NewSearchRepository(db)

	seedSource(t, sources, "test:limit-1", "Limit One")
	seedSource(t, sources, "test:limit-2", "Limit Two")
	require.NoError(t, mentions.AddFileMentionsBatch(ctx, "test:limit-1", []source.FileMention{{FilePath: "gadget.go"}}))
	require.NoError(t, mentions.AddFileMentionsBatch(ctx, "test:limit-2", []source.FileMention{{FilePath: "gadget_two.go"}}))

	results, err := search.SearchFiles(ctx, "gadget", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
