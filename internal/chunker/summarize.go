package chunker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ganot/larder/internal/domain/source"
	"github.com/ganot/larder/internal/oracle"
)

// SummarizeThreshold is the content length above which Summarize chunks
// and merges instead of issuing a single oracle call.
const SummarizeThreshold = 80_000

// digest mirrors the JSON shape the oracle is expected to return. It is
// deliberately separate from source.Extraction, which also carries
// storage-only bookkeeping fields (SourceID, ModelUsed, ExtractedAt) the
// oracle never produces.
type digest struct {
	Summary     string            `json:"summary"`
	Arc         any               `json:"arc"`
	Builds      []source.Build    `json:"builds"`
	Learnings   []source.Learning `json:"learnings"`
	Friction    []source.Friction `json:"friction"`
	Patterns    any               `json:"patterns"`
	OpenThreads any               `json:"open_threads"`
}

func (d digest) toExtraction() source.Extraction {
	return source.Extraction{
		Summary:     d.Summary,
		Arc:         d.Arc,
		Builds:      d.Builds,
		Learnings:   d.Learnings,
		Friction:    d.Friction,
		Patterns:    d.Patterns,
		OpenThreads: d.OpenThreads,
	}
}

// Summarize produces a structured digest for content, chunking and
// merging when content exceeds SummarizeThreshold, and issuing a single
// oracle call otherwise.
func Summarize(ctx context.Context, o oracle.Oracle, content string, messages []MessageData, cfg Config) (source.Extraction, error) {
	if len(content) <= SummarizeThreshold {
		resp, err := o.Invoke(ctx, singlePrompt(content))
		if err != nil {
			return source.Extraction{}, fmt.Errorf("summarize: %w", err)
		}
		return parseDigest(resp), nil
	}

	chunks := Chunk(content, messages, cfg)
	n := len(chunks)
	partials := make([]string, 0, n)
	for i, c := range chunks {
		resp, err := o.Invoke(ctx, chunkPrompt(c, i+1, n))
		if err != nil {
			return source.Extraction{}, fmt.Errorf("summarize chunk %d/%d: %w", i+1, n, err)
		}
		partials = append(partials, resp)
	}

	merged, err := o.Invoke(ctx, mergePrompt(partials))
	if err != nil {
		return source.Extraction{}, fmt.Errorf("merge chunk summaries: %w", err)
	}
	return parseDigest(merged), nil
}

func singlePrompt(content string) string {
	return "Summarize the following conversation into a structured digest:\n\n" + content
}

func chunkPrompt(content string, k, n int) string {
	return fmt.Sprintf("This is chunk %d of %d of a longer conversation. Summarize it into a structured digest:\n\n%s", k, n, content)
}

func mergePrompt(partials []string) string {
	var b strings.Builder
	b.WriteString("Merge and deduplicate the following chunk summaries by meaning into one structured digest:\n\n")
	for i, p := range partials {
		fmt.Fprintf(&b, "--- chunk %d ---\n%s\n\n", i+1, p)
	}
	return b.String()
}

// parseDigest finds the outermost {...} in resp and unmarshals it. On any
// failure it returns an empty-but-well-formed digest rather than an
// error, per the documented fallback.
func parseDigest(resp string) source.Extraction {
	start := strings.IndexByte(resp, '{')
	end := strings.LastIndexByte(resp, '}')
	if start == -1 || end == -1 || end < start {
		return source.Extraction{}
	}

	var d digest
	if err := json.Unmarshal([]byte(resp[start:end+1]), &d); err != nil {
		return source.Extraction{}
	}
	return d.toExtraction()
}
