package ingest_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganot/larder/internal/chunker"
	"github.com/ganot/larder/internal/extraction"
	"github.com/ganot/larder/internal/ingest"
	"github.com/ganot/larder/internal/ingestrecord"
	"github.com/ganot/larder/internal/sqlite"
)

func newTestPipeline(t *testing.T) (*ingest.Pipeline, *sqlite.Storage) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	storage := sqlite.NewStorage(db)
	extractionStore := extraction.NewStore(storage, storage)
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	p := ingest.NewPipeline(storage, extractionStore, nil, chunker.Config{}, logger)
	return p, storage
}

type fakeAdapter struct {
	sourceType string
	records    []ingestrecord.Record
	errs       []error
}

func (a *fakeAdapter) SourceType() string { return a.sourceType }

func (a *fakeAdapter) Discover(ctx context.Context) <-chan ingest.Discovered {
	out := make(chan ingest.Discovered, len(a.records)+len(a.errs))
	for _, r := range a.records {
		out <- ingest.Discovered{Record: r}
	}
	for _, e := range a.errs {
		out <- ingest.Discovered{Err: e}
	}
	close(out)
	return out
}

func TestProcessRecordNewThenUnchanged(t *testing.T) {
	p, storage := newTestPipeline(t)
	ctx := context.Background()

	rec := ingestrecord.Record{
		SourceID: "test:1", SourceType: "test", Title: "First",
		ContentHash: "hash-1", FullText: "line one\nline two\n",
	}

	outcome, err := p.ProcessRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "new", outcome)

	outcome, err = p.ProcessRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "unchanged", outcome)

	src, err := storage.GetSource(ctx, "test:1")
	require.NoError(t, err)
	assert.Equal(t, "First", src.Title)
}

func TestProcessRecordUpdatedOnHashChange(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	rec := ingestrecord.Record{SourceID: "test:2", SourceType: "test", Title: "V1", ContentHash: "h1"}
	_, err := p.ProcessRecord(ctx, rec)
	require.NoError(t, err)

	rec.ContentHash = "h2"
	rec.Title = "V2"
	outcome, err := p.ProcessRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "updated", outcome)
}

func TestProcessRecordInvalidRejected(t *testing.T) {
	p, _ := newTestPipeline(t)
	_, err := p.ProcessRecord(context.Background(), ingestrecord.Record{})
	require.Error(t, err)
}

func TestScanAllAggregatesAcrossAdapters(t *testing.T) {
	p, _ := newTestPipeline(t)
	a1 := &fakeAdapter{sourceType: "a", records: []ingestrecord.Record{
		{SourceID: "a:1", SourceType: "a", Title: "A1", ContentHash: "1"},
	}}
	a2 := &fakeAdapter{sourceType: "b", records: []ingestrecord.Record{
		{SourceID: "b:1", SourceType: "b", Title: "B1", ContentHash: "1"},
	}, errs: []error{assertError{}}}

	result, err := p.ScanAll(context.Background(), []ingest.Adapter{a1, a2}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.New)
	assert.Equal(t, 1, result.Errors)
}

type assertError struct{}

func (assertError) Error() string { return "malformed artifact" }

func TestPruneMarksStaleSourcesWhenFileVanishes(t *testing.T) {
	p, storage := newTestPipeline(t)
	ctx := context.Background()

	rec := ingestrecord.Record{SourceID: "test:3", SourceType: "test", Title: "T", Path: "/tmp/gone.md", ContentHash: "1"}
	_, err := p.ProcessRecord(ctx, rec)
	require.NoError(t, err)

	result, err := p.Prune(ctx, func(path string) bool { return false }, ingest.PruneMarkStale)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pruned)

	src, err := storage.GetSource(ctx, "test:3")
	require.NoError(t, err)
	assert.Equal(t, "stale", string(src.Status))
}
