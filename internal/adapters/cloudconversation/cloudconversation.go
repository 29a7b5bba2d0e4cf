// Package cloudconversation adapts a single cloud conversation file keyed
// by a platform-issued UUID.
package cloudconversation

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
}

// Adapter discovers and parses cloud conversation files.
type Adapter struct{ opts Options }

// New builds a cloudconversation Adapter.
func New(opts Options) *Adapter {
	if opts.Pattern == "" {
		opts.Pattern = "*.json"
	}
	return &Adapter{opts: opts}
}

// SourceType implements ingest.Adapter.
func (a *Adapter) SourceType() string { return "claude_ai" }

type fileShape struct {
	UUID      string  `json:"uuid"`
	Name      string  `json:"name"`
	Summary   string  `json:"summary"`
	UpdatedAt string  `json:"updated_at"`
	Messages  []block `json:"chat_messages"`
}

type block struct {
	Sender  string `json:"sender"`
	Content []part `json:"content"`
}

type part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

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

// Parse reads one conversation file. full_text() concatenates text blocks
// across every turn; a pre-generated summary flags HasPresummary.
func (a *Adapter) Parse(path string) (*ingestrecord.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f fileShape
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.UUID == "" {
		return nil, fmt.Errorf("%s: missing conversation uuid", path)
	}

	var blocks []string
	var nonMetaUserTexts []string
	for _, m := range f.Messages {
		for _, c := range m.Content {
			if c.Type == "text" && c.Text != "" {
				blocks = append(blocks, c.Text)
				if m.Sender == "human" {
					nonMetaUserTexts = append(nonMetaUserTexts, c.Text)
				}
			}
		}
	}

	title := f.Summary
	if title == "" {
		title = f.Name
	}
	title = titleclean.Clean(title)

	updated, err := time.Parse(time.RFC3339, f.UpdatedAt)
	if err != nil {
		if info, statErr := os.Stat(path); statErr == nil {
			updated = info.ModTime()
		}
	}

	return &ingestrecord.Record{
		SourceID:            "claude_ai:" + f.UUID,
		SourceType:          "claude_ai",
		Title:               title,
		Path:                path,
		CreatedAt:           updated,
		UpdatedAt:           updated,
		ContentHash:         updated.Format(time.RFC3339),
		HasPresummary:       f.Summary != "",
		FullText:            strings.Join(blocks, "\n\n"),
		NonMetaUserMessages: nonMetaUserTexts,
	}, nil
}
