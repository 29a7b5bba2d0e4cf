package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/ganot/larder/internal/domain/source"
	"github.com/ganot/larder/internal/repository"
)

// serialWriter funnels every storage mutation through one mutex so that
// concurrent adapter discovery never races on the single-writer SQLite
// connection. Reads pass through unguarded; only write operations are
// serialized.
type serialWriter struct {
	mu      sync.Mutex
	storage repository.Storage
}

func newSerialWriter(storage repository.Storage) *serialWriter {
	return &serialWriter{storage: storage}
}

func (w *serialWriter) UpsertSource(ctx context.Context, s *source.Source) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storage.UpsertSource(ctx, s)
}

func (w *serialWriter) UpsertSummary(ctx context.Context, sum *source.Summary) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storage.UpsertSummary(ctx, sum)
}

func (w *serialWriter) UpsertExtraction(ctx context.Context, ex *source.Extraction) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storage.UpsertExtraction(ctx, ex)
}

func (w *serialWriter) AddFileMentionsBatch(ctx context.Context, sourceID string, mentions []source.FileMention) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storage.AddFileMentionsBatch(ctx, sourceID, mentions)
}

func (w *serialWriter) MarkProcessed(ctx context.Context, id string, processedAt time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storage.MarkProcessed(ctx, id, processedAt)
}

func (w *serialWriter) MarkStale(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storage.MarkStale(ctx, id)
}

func (w *serialWriter) DeleteSource(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storage.DeleteSource(ctx, id)
}

// Reads need no serialization; they pass straight through.

func (w *serialWriter) GetSource(ctx context.Context, id string) (*source.Source, error) {
	return w.storage.GetSource(ctx, id)
}

func (w *serialWriter) ListByType(ctx context.Context, sourceType string) ([]source.Source, error) {
	return w.storage.ListByType(ctx, sourceType)
}

func (w *serialWriter) ListAllWithPath(ctx context.Context) ([]source.Source, error) {
	return w.storage.ListAllWithPath(ctx)
}
