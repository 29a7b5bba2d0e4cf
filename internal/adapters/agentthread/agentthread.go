// Package agentthread adapts single-file agent-thread formats: one file
// holds a full thread with a thread id and ordered turns. The "amp"
// source type shares this contract, selected by configuration.
package agentthread

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ganot/larder/internal/ingest"
	"github.com/ganot/larder/internal/ingestrecord"
	"github.com/ganot/larder/internal/titleclean"
)

// Options configures discovery.
type Options struct {
	Root    string
	Pattern string // defaults to "*.json"
	// SourceType distinguishes "agent_thread" from variants like "amp";
	// defaults to "agent_thread".
	SourceType string
}

// Adapter discovers and parses agent-thread files.
type Adapter struct{ opts Options }

// New builds an agentthread Adapter.
func New(opts Options) *Adapter {
	if opts.Pattern == "" {
		opts.Pattern = "*.json"
	}
	if opts.SourceType == "" {
		opts.SourceType = "agent_thread"
	}
	return &Adapter{opts: opts}
}

// Amp builds an Adapter for the "amp" variant of this format.
func Amp(opts Options) *Adapter {
	opts.SourceType = "amp"
	return New(opts)
}

// SourceType implements ingest.Adapter.
func (a *Adapter) SourceType() string { return a.opts.SourceType }

// Discover implements ingest.Adapter.
func (a *Adapter) Discover(ctx context.Context) <-chan ingest.Discovered {
	out := make(chan ingest.Discovered)
	go func() {
		defer close(out)
		_ = filepath.WalkDir(a.opts.Root, func(path string, d fs.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err != nil || d.IsDir() {
				return nil
			}
			match, _ := filepath.Match(a.opts.Pattern, d.Name())
			if !match {
				return nil
			}
			rec, err := a.Parse(path)
			if err != nil {
				out <- ingest.Discovered{Err: err}
				return nil
			}
			out <- ingest.Discovered{Record: *rec}
			return nil
		})
	}()
	return out
}

type fileShape struct {
	ThreadID  string `json:"thread_id"`
	Title     string `json:"title"`
	ParentID  string `json:"parent_handoff_id"`
	ChildID   string `json:"child_handoff_id"`
	UpdatedAt string `json:"updated_at"`
	Turns     []turn `json:"turns"`
}

type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var skippedRoles = map[string]bool{
	"thinking":    true,
	"tool_use":    true,
	"tool_result": true,
}

// Parse reads one agent-thread file. Identity is the thread id;
// full_text() concatenates text blocks from user/assistant turns only.
func (a *Adapter) Parse(path string) (*ingestrecord.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f fileShape
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.ThreadID == "" {
		return nil, fmt.Errorf("%s: missing thread_id", path)
	}

	var blocks []string
	var nonMetaUserTexts []string
	for _, t := range f.Turns {
		if skippedRoles[t.Role] || t.Content == "" {
			continue
		}
		blocks = append(blocks, t.Content)
		if t.Role == "user" {
			nonMetaUserTexts = append(nonMetaUserTexts, t.Content)
		}
	}

	title := titleclean.Clean(f.Title)

	updated, err := time.Parse(time.RFC3339, f.UpdatedAt)
	if err != nil {
		updated = modTimeOf(path)
	}

	return &ingestrecord.Record{
		SourceID:      a.opts.SourceType + ":" + f.ThreadID,
		SourceType:    a.opts.SourceType,
		Title:         title,
		Path:          path,
		CreatedAt:     updated,
		UpdatedAt:     updated,
		ContentHash:   updated.Format(time.RFC3339),
		HasPresummary: false,
		FullText:      strings.Join(blocks, "\n\n"),
		RawMetadata: map[string]any{
			"parent_handoff_id": f.ParentID,
			"child_handoff_id":  f.ChildID,
		},
		NonMetaUserMessages: nonMetaUserTexts,
	}, nil
}

func modTimeOf(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
