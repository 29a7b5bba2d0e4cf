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

func TestUpsertSummaryDerivesWordCount(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	sources := sqlite.NewSourceRepository(db)
	summaries := sqlite.NewSummaryRepository(db)

	seedSource(t, sources, "test:wc", "Word Count Source")
	sum := &source.Summary{SourceID: "test:wc", SummaryText: "five little words here now"}
	require.NoError(t, summaries.UpsertSummary(ctx, sum))
	assert.Equal(t, 5, sum.WordCount)

	got, err := summaries.GetSummary(ctx, "test:wc")
	require.NoError(t, err)
	assert.Equal(t, 5, got.WordCount)
}

func TestUpsertSummaryMissingSourceIsForeignKeyViolation(t *testing.T) {
	db := NewTestDB(t)
	summaries := sqlite.NewSummaryRepository(db)

	err := summaries.UpsertSummary(context.Background(), &source.Summary{SourceID: "test:ghost", SummaryText: "orphan"})
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)
}

func TestGetSummaryNotFound(t *testing.T) {
	db := NewTestDB(t)
	summaries := sqlite.NewSummaryRepository(db)

	_, err := summaries.GetSummary(context.Background(), "test:missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
