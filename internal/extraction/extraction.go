// Package extraction provides the structured-digest store: persisting an
// Extraction alongside its Source and flattening it into the searchable
// text a Summary row carries.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ganot/larder/internal/domain/source"
	"github.com/ganot/larder/internal/repository"
)

// Store persists structured digests and flattens them into searchable
// text on demand.
type Store struct {
	extractions repository.ExtractionRepository
	summaries   repository.SummaryRepository
}

// NewStore builds a Store over the given repositories.
func NewStore(extractions repository.ExtractionRepository, summaries repository.SummaryRepository) *Store {
	return &Store{extractions: extractions, summaries: summaries}
}

// Upsert writes ex. The repository layer itself refreshes
// Summary.summary_text when ex.Summary is non-empty, see
// internal/sqlite/extraction.go.
func (s *Store) Upsert(ctx context.Context, ex *source.Extraction) error {
	ex.ExtractedAt = time.Now()
	if err := s.extractions.UpsertExtraction(ctx, ex); err != nil {
		return fmt.Errorf("upsert extraction: %w", err)
	}
	return nil
}

// Get retrieves the Extraction for a Source.
func (s *Store) Get(ctx context.Context, sourceID string) (*source.Extraction, error) {
	ex, err := s.extractions.GetExtraction(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get extraction: %w", err)
	}
	return ex, nil
}

// Flatten converts the entire digest (summary, each learning's
// insight + why_it_matters, each build's what + outcome, each friction's
// problem) into a single multi-paragraph string.
func Flatten(ex *source.Extraction) string {
	var paragraphs []string

	if ex.Summary != "" {
		paragraphs = append(paragraphs, ex.Summary)
	}
	for _, l := range ex.Learnings {
		p := l.Insight
		if l.WhyItMatters != "" {
			p += " — " + l.WhyItMatters
		}
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	for _, b := range ex.Builds {
		p := b.What
		if b.Outcome != "" {
			p += " — " + b.Outcome
		}
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	for _, f := range ex.Friction {
		if f.Problem != "" {
			paragraphs = append(paragraphs, f.Problem)
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

// FlattenAndStore computes Flatten(ex) and writes it back as
// Summary.summary_text, bridging what is stored structurally (Extraction)
// and what is searchable (Summary), for callers that want the full digest
// indexed rather than just the short summary field.
func (s *Store) FlattenAndStore(ctx context.Context, ex *source.Extraction) error {
	sum, err := s.summaries.GetSummary(ctx, ex.SourceID)
	if err != nil {
		return fmt.Errorf("flatten: load summary: %w", err)
	}
	sum.SummaryText = Flatten(ex)
	if err := s.summaries.UpsertSummary(ctx, sum); err != nil {
		return fmt.Errorf("flatten: store summary: %w", err)
	}
	return nil
}
