// Package ingestrecord defines the uniform in-memory shape that every
// source adapter emits. A Record has no identity beyond its SourceID and is
// never persisted as a whole; the ingest pipeline flattens it into Source,
// Summary and File-mention rows.
package ingestrecord

import "time"

// Record is the normalized shape produced by an adapter's Parse step.
type Record struct {
	SourceID      string
	SourceType    string
	Title         string
	Path          string // empty for virtual/aggregate sources
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProjectPath   string
	ContentHash   string // adapter-local change-detection token; empty if unused
	HasPresummary bool
	FullText      string
	RawMetadata   map[string]any
	FileMentions  []FileMention

	// NonMetaUserMessages holds, in order, the genuine user-authored
	// message texts an adapter identified (role=user, not a tool result,
	// not a compaction-prompt envelope). Adapters with no per-turn
	// structure to draw on leave this empty. The ingest pipeline's
	// algorithmic fallback summary draws from this instead of FullText.
	NonMetaUserMessages []string
}

// FileMention is a file touched by or referenced from a Record.
type FileMention struct {
	Path      string
	Operation string // e.g. "edit", "read", "create"; empty if unknown
}

// Valid reports whether r carries the minimum fields every downstream
// consumer (storage, query) depends on.
func (r Record) Valid() bool {
	return r.SourceID != "" && r.SourceType != "" && r.Title != ""
}
