// Package cloudsession adapts a cloud session's aggregate file: all turns
// for one session live in a single JSON file named by the session id.
package cloudsession

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

// Adapter discovers and parses cloud session aggregate files.
type Adapter struct{ opts Options }

// New builds a cloudsession Adapter.
func New(opts Options) *Adapter {
	if opts.Pattern == "" {
		opts.Pattern = "*.json"
	}
	return &Adapter{opts: opts}
}

// SourceType implements ingest.Adapter.
func (a *Adapter) SourceType() string { return "cloud_session" }

type fileShape struct {
	Summary   string `json:"summary"`
	CWD       string `json:"cwd"`
	GitBranch string `json:"gitBranch"`
	Turns     []turn `json:"turns"`
}

type turn struct {
	Role string `json:"role"`
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

// Parse reads one aggregate session file into a Record; the session id is
// the filename stem.
func (a *Adapter) Parse(path string) (*ingestrecord.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f fileShape
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var blocks []string
	var firstUser string
	var nonMetaUserTexts []string
	for _, t := range f.Turns {
		if t.Text == "" {
			continue
		}
		blocks = append(blocks, t.Text)
		if t.Role == "user" {
			if firstUser == "" {
				firstUser = t.Text
			}
			nonMetaUserTexts = append(nonMetaUserTexts, t.Text)
		}
	}

	title := f.Summary
	if title == "" {
		title = firstUser
	}
	title = titleclean.Clean(title)

	info, statErr := os.Stat(path)
	modTime := time.Time{}
	if statErr == nil {
		modTime = info.ModTime()
	}

	return &ingestrecord.Record{
		SourceID:      "cloud_session:" + stem,
		SourceType:    "cloud_session",
		Title:         title,
		Path:          path,
		CreatedAt:     modTime,
		UpdatedAt:     modTime,
		ProjectPath:   f.CWD,
		ContentHash:   modTime.Format("20060102150405"),
		HasPresummary: f.Summary != "",
		FullText:      strings.Join(blocks, "\n\n"),
		RawMetadata: map[string]any{
			"cwd":        f.CWD,
			"git_branch": f.GitBranch,
		},
		NonMetaUserMessages: nonMetaUserTexts,
	}, nil
}
