// Package ingest orchestrates discovery, change-detection, upsert, and
// extraction across every adapter, serializing all storage writes behind
// a single writer.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ganot/larder/internal/chunker"
	"github.com/ganot/larder/internal/domain/source"
	"github.com/ganot/larder/internal/extraction"
	"github.com/ganot/larder/internal/ingestrecord"
	"github.com/ganot/larder/internal/oracle"
	"github.com/ganot/larder/internal/repository"
)

// Adapter is the contract every source-format package implements:
// restartable, side-effect-free discovery of Records.
type Adapter interface {
	SourceType() string
	Discover(ctx context.Context) <-chan Discovered
}

// Discovered is one item off an Adapter's Discover channel. A non-nil Err
// means the adapter hit a malformed artifact; Record is the zero value in
// that case and the pass continues.
type Discovered struct {
	Record ingestrecord.Record
	Err    error
}

// Failure records one per-artifact error for aggregate reporting.
type Failure struct {
	SourceType string
	SourceID   string
	Err        error
}

// ScanResult aggregates the outcome of a batch operation: per-artifact
// errors are captured in counts, not propagated individually.
type ScanResult struct {
	New       int
	Updated   int
	Unchanged int
	Errors    int
	Failures  []Failure
}

func (r *ScanResult) merge(o ScanResult) {
	r.New += o.New
	r.Updated += o.Updated
	r.Unchanged += o.Unchanged
	r.Errors += o.Errors
	r.Failures = append(r.Failures, o.Failures...)
}

// basicSummaryUserMessageCap bounds how many non-meta user messages feed
// the algorithmic basic summary when an adapter has no presummary.
const basicSummaryUserMessageCap = 3

// Pipeline wires storage, the extraction store, and the oracle together
// behind the ingest operations.
type Pipeline struct {
	writer     *serialWriter
	extraction *extraction.Store
	oracle     oracle.Oracle
	chunkCfg   chunker.Config
	log        *slog.Logger

	// ExtractEnabled gates step 6 (invoking the summarizer). It defaults
	// to false so callers must opt in explicitly: the oracle call is the
	// one step with real external cost and failure surface.
	ExtractEnabled bool
}

// NewPipeline builds a Pipeline. logger must be non-nil; it is used as
// given, with no nil check.
func NewPipeline(storage repository.Storage, extractionStore *extraction.Store, o oracle.Oracle, chunkCfg chunker.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		writer:     newSerialWriter(storage),
		extraction: extractionStore,
		oracle:     o,
		chunkCfg:   chunkCfg,
		log:        logger,
	}
}

// ProcessRecord runs the per-Record pipeline steps against a single
// discovered Record and reports which bucket it landed in.
func (p *Pipeline) ProcessRecord(ctx context.Context, rec ingestrecord.Record) (outcome string, err error) {
	if !rec.Valid() {
		return "", fmt.Errorf("invalid record: missing source_id, source_type, or title")
	}

	// Step 1: change detection.
	existing, err := p.writer.GetSource(ctx, rec.SourceID)
	if err != nil && err != repository.ErrNotFound {
		return "", fmt.Errorf("load existing source: %w", err)
	}
	if existing != nil && rec.ContentHash != "" && existing.ContentHash == rec.ContentHash {
		return "unchanged", nil
	}

	now := rec.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}

	src := &source.Source{
		ID:          rec.SourceID,
		SourceType:  rec.SourceType,
		Title:       rec.Title,
		Path:        rec.Path,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   now,
		ProjectPath: rec.ProjectPath,
		ContentHash: rec.ContentHash,
		Metadata:    rec.RawMetadata,
	}
	if existing != nil {
		src.DiscoveredAt = existing.DiscoveredAt
	}

	// Step 2: upsert Source.
	if err := p.writer.UpsertSource(ctx, src); err != nil {
		return "", fmt.Errorf("upsert source: %w", err)
	}

	if len(rec.FileMentions) > 0 {
		mentions := make([]source.FileMention, len(rec.FileMentions))
		for i, m := range rec.FileMentions {
			mentions[i] = source.FileMention{SourceID: rec.SourceID, FilePath: m.Path, Operation: m.Operation}
		}
		if err := p.writer.AddFileMentionsBatch(ctx, rec.SourceID, mentions); err != nil {
			return "", fmt.Errorf("add file mentions: %w", err)
		}
	}

	// Step 3-4: decide and write Summary.
	summaryText := basicSummary(rec)
	if rec.HasPresummary {
		summaryText = rec.FullText
	}
	sum := &source.Summary{
		SourceID:      rec.SourceID,
		SummaryText:   summaryText,
		RawText:       rec.FullText,
		Title:         rec.Title,
		HasPresummary: rec.HasPresummary,
	}
	if err := p.writer.UpsertSummary(ctx, sum); err != nil {
		return "", fmt.Errorf("upsert summary: %w", err)
	}

	// Step 5: mark processed.
	if err := p.writer.MarkProcessed(ctx, rec.SourceID, now); err != nil {
		return "", fmt.Errorf("mark processed: %w", err)
	}

	// Step 6: optional extraction.
	if p.ExtractEnabled && p.oracle != nil && !rec.HasPresummary {
		ex, err := chunker.Summarize(ctx, p.oracle, rec.FullText, nil, p.chunkCfg)
		if err != nil {
			return "", fmt.Errorf("summarize: %w", err)
		}
		ex.SourceID = rec.SourceID
		p.writer.mu.Lock()
		err = p.extraction.Upsert(ctx, &ex)
		p.writer.mu.Unlock()
		if err != nil {
			return "", fmt.Errorf("upsert extraction: %w", err)
		}
	}

	if existing == nil {
		return "new", nil
	}
	return "updated", nil
}

// basicSummary is the algorithmic fallback for adapters without a
// presummary: the title concatenated with the first few non-meta,
// non-compaction user messages the adapter identified. Adapters with no
// per-turn structure to draw on leave NonMetaUserMessages empty and fall
// back to the title alone; adapters that need better fidelity should set
// HasPresummary and supply their own distilled FullText instead.
func basicSummary(rec ingestrecord.Record) string {
	picked := rec.NonMetaUserMessages
	if len(picked) > basicSummaryUserMessageCap {
		picked = picked[:basicSummaryUserMessageCap]
	}
	if len(picked) == 0 {
		return rec.Title
	}
	return rec.Title + "\n\n" + strings.Join(picked, "\n")
}

// Scan drains adapter, processing every Record through ProcessRecord and
// aggregating the outcome.
func (p *Pipeline) Scan(ctx context.Context, adapter Adapter) ScanResult {
	var result ScanResult
	for d := range adapter.Discover(ctx) {
		if d.Err != nil {
			result.Errors++
			result.Failures = append(result.Failures, Failure{SourceType: adapter.SourceType(), Err: d.Err})
			continue
		}
		outcome, err := p.ProcessRecord(ctx, d.Record)
		if err != nil {
			result.Errors++
			result.Failures = append(result.Failures, Failure{SourceType: adapter.SourceType(), SourceID: d.Record.SourceID, Err: err})
			continue
		}
		switch outcome {
		case "new":
			result.New++
		case "updated":
			result.Updated++
		case "unchanged":
			result.Unchanged++
		}
	}
	return result
}

// ScanAll runs Scan across every adapter, bounding concurrent Discover
// calls to concurrency. Discovered records still funnel through the
// single writer serializer regardless of how many adapters discover in
// parallel.
func (p *Pipeline) ScanAll(ctx context.Context, adapters []Adapter, concurrency int64) (ScanResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	runID := uuid.NewString()
	p.log.Info("scan started", "run_id", runID, "adapters", len(adapters))
	sem := semaphore.NewWeighted(concurrency)

	results := make([]ScanResult, len(adapters))
	done := make(chan struct{}, len(adapters))

	for i, a := range adapters {
		i, a := i, a
		if err := sem.Acquire(ctx, 1); err != nil {
			return ScanResult{}, fmt.Errorf("acquire discovery slot: %w", err)
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()
			results[i] = p.Scan(ctx, a)
		}()
	}

	for range adapters {
		<-done
	}

	var total ScanResult
	for _, r := range results {
		total.merge(r)
	}
	p.log.Info("scan finished", "run_id", runID, "new", total.New, "updated", total.Updated,
		"unchanged", total.Unchanged, "errors", total.Errors)
	return total, nil
}

// DryRun performs step 1 only (change detection) and reports intended
// actions without writing anything.
func (p *Pipeline) DryRun(ctx context.Context, adapter Adapter) ScanResult {
	var result ScanResult
	for d := range adapter.Discover(ctx) {
		if d.Err != nil {
			result.Errors++
			result.Failures = append(result.Failures, Failure{SourceType: adapter.SourceType(), Err: d.Err})
			continue
		}
		existing, err := p.writer.GetSource(ctx, d.Record.SourceID)
		if err != nil && err != repository.ErrNotFound {
			result.Errors++
			result.Failures = append(result.Failures, Failure{SourceType: adapter.SourceType(), SourceID: d.Record.SourceID, Err: err})
			continue
		}
		switch {
		case existing == nil:
			result.New++
		case d.Record.ContentHash != "" && existing.ContentHash == d.Record.ContentHash:
			result.Unchanged++
		default:
			result.Updated++
		}
	}
	return result
}

// PruneAction is the operator's choice for a Source whose on-disk
// artifact has vanished.
type PruneAction int

const (
	// PruneMarkStale transitions vanished sources to status=stale,
	// keeping them searchable.
	PruneMarkStale PruneAction = iota
	// PruneHardDelete removes vanished sources and their derived rows.
	PruneHardDelete
)

// PruneResult reports how many Sources were affected.
type PruneResult struct {
	Checked int
	Pruned  int
	Errors  int
}

// Prune walks every Source with a non-virtual path, checks filesystem
// existence via exists, and applies action to any that have vanished.
func (p *Pipeline) Prune(ctx context.Context, exists func(path string) bool, action PruneAction) (PruneResult, error) {
	sources, err := p.writer.ListAllWithPath(ctx)
	if err != nil {
		return PruneResult{}, fmt.Errorf("list sources for prune: %w", err)
	}

	var result PruneResult
	for _, s := range sources {
		result.Checked++
		if exists(s.Path) {
			continue
		}
		var err error
		switch action {
		case PruneHardDelete:
			err = p.writer.DeleteSource(ctx, s.ID)
		default:
			err = p.writer.MarkStale(ctx, s.ID)
		}
		if err != nil {
			result.Errors++
			p.log.Error("prune failed", "source_id", s.ID, "error", err)
			continue
		}
		result.Pruned++
	}
	return result, nil
}
