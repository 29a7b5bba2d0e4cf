// Package issuetracker adapts line-delimited issue-tracker exports. Both
// the "beads" and "arc" trackers are JSONL formats sharing this one
// parser, parameterized by a field-name mapping.
package issuetracker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ganot/larder/internal/ingest"
	"github.com/ganot/larder/internal/ingestrecord"
	"github.com/ganot/larder/internal/titleclean"
)

// FieldMap names the JSON keys this tracker's export uses for each
// distilled field. Empty entries are skipped.
type FieldMap struct {
	ID          string
	Title       string
	Status      string
	CreatedAt   string
	UpdatedAt   string
	Why         string
	What        string
	Done        string
	Design      string
	Notes       string
	Acceptance  string
	CloseReason string
	Deleted     string // boolean field name marking a tombstoned item
}

// BeadsFields is the field mapping for the "beads" tracker.
var BeadsFields = FieldMap{
	ID: "id", Title: "title", Status: "status",
	CreatedAt: "created", UpdatedAt: "updated",
	Why: "why", What: "what", Done: "done_when",
	Design: "design", Notes: "notes", Acceptance: "acceptance_criteria",
	CloseReason: "close_reason", Deleted: "deleted",
}

// ArcFields is the field mapping for the "arc" tracker.
var ArcFields = FieldMap{
	ID: "id", Title: "title", Status: "status",
	CreatedAt: "created_at", UpdatedAt: "updated_at",
	Why: "rationale", What: "summary", Done: "definition_of_done",
	Design: "design_notes", Notes: "notes", Acceptance: "acceptance_criteria",
	CloseReason: "close_reason", Deleted: "tombstoned",
}

// Options configures discovery.
type Options struct {
	// Path is the JSONL export file to read.
	Path string
	// SourceType is "beads" or "arc", selecting identity prefix.
	SourceType string
	Fields     FieldMap
}

// Adapter discovers and parses issue-tracker items.
type Adapter struct{ opts Options }

// New builds an issuetracker Adapter.
func New(opts Options) *Adapter { return &Adapter{opts: opts} }

// SourceType implements ingest.Adapter.
func (a *Adapter) SourceType() string { return a.opts.SourceType }

// Discover implements ingest.Adapter. It reads every non-tombstoned
// line of opts.Path; malformed lines are skipped with a diagnostic.
func (a *Adapter) Discover(ctx context.Context) <-chan ingest.Discovered {
	out := make(chan ingest.Discovered)
	go func() {
		defer close(out)

		f, err := os.Open(a.opts.Path)
		if err != nil {
			out <- ingest.Discovered{Err: fmt.Errorf("open %s: %w", a.opts.Path, err)}
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

		lineNum := 0
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			lineNum++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			rec, err := a.parseLine(line)
			if err != nil {
				out <- ingest.Discovered{Err: fmt.Errorf("%s line %d: %w", a.opts.Path, lineNum, err)}
				continue
			}
			if rec == nil {
				continue // tombstoned, skipped
			}
			out <- ingest.Discovered{Record: *rec}
		}
		if err := scanner.Err(); err != nil {
			out <- ingest.Discovered{Err: fmt.Errorf("scan %s: %w", a.opts.Path, err)}
		}
	}()
	return out
}

// Parse implements a single-line entry point for callers that already
// have one issue item in hand (e.g. tests).
func (a *Adapter) Parse(line string) (*ingestrecord.Record, error) {
	return a.parseLine(line)
}

func (a *Adapter) parseLine(line string) (*ingestrecord.Record, error) {
	var item map[string]any
	if err := json.Unmarshal([]byte(line), &item); err != nil {
		return nil, fmt.Errorf("parse issue item: %w", err)
	}

	f := a.opts.Fields
	if deleted, _ := item[f.Deleted].(bool); deleted {
		return nil, nil
	}

	id, _ := item[f.ID].(string)
	if id == "" {
		return nil, fmt.Errorf("missing issue id field %q", f.ID)
	}
	title, _ := item[f.Title].(string)
	title = titleclean.Clean(title)

	var body []string
	if title != "" {
		body = append(body, title)
	}
	for _, key := range []string{f.Why, f.What, f.Done, f.Design, f.Notes, f.Acceptance, f.CloseReason} {
		if key == "" {
			continue
		}
		if v, ok := item[key].(string); ok && v != "" {
			body = append(body, v)
		}
	}

	status, _ := item[f.Status].(string)
	createdStr, _ := item[f.CreatedAt].(string)
	updatedStr, _ := item[f.UpdatedAt].(string)

	return &ingestrecord.Record{
		SourceID:      a.opts.SourceType + ":" + id,
		SourceType:    a.opts.SourceType,
		Title:         title,
		CreatedAt:     parseFlexibleTime(createdStr),
		UpdatedAt:     parseFlexibleTime(updatedStr),
		ContentHash:   createdStr + ":" + status,
		HasPresummary: true,
		FullText:      strings.Join(body, "\n\n"),
		RawMetadata: map[string]any{
			"status": status,
		},
	}, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseFlexibleTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
