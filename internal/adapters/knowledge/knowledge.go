// Package knowledge adapts curated knowledge and local-notes markdown
// files, sharing one parser distinguished by Kind (which sets the
// source_type and HasPresummary).
package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ganot/larder/internal/ingest"
	"github.com/ganot/larder/internal/ingestrecord"
)

// Options configures discovery.
type Options struct {
	Root    string
	Pattern string // defaults to "*.md"
	// Kind selects the source_type and HasPresummary: "knowledge" (curated,
	// has_presummary=true) or "local_md" (generic notes, has_presummary=false).
	Kind string
}

// Adapter discovers and parses knowledge/local-notes markdown files.
type Adapter struct{ opts Options }

// New builds a knowledge Adapter. opts.Kind defaults to "knowledge".
func New(opts Options) *Adapter {
	if opts.Pattern == "" {
		opts.Pattern = "*.md"
	}
	if opts.Kind == "" {
		opts.Kind = "knowledge"
	}
	return &Adapter{opts: opts}
}

// LocalNotes builds a generic local-notes Adapter sharing this package's
// parser but with HasPresummary=false.
func LocalNotes(opts Options) *Adapter {
	opts.Kind = "local_md"
	return New(opts)
}

// SourceType implements ingest.Adapter.
func (a *Adapter) SourceType() string { return a.opts.Kind }

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

var (
	leadingTimestampRE = regexp.MustCompile(`^\d{12}[-_]?`)
	trailingDateRE     = regexp.MustCompile(`-\d{4}-\d{2}-\d{2}$`)
	stemTimestampRE    = regexp.MustCompile(`^(\d{12}|\d{4}-\d{2}-\d{2})`)
)

// Parse reads one file relative to Root. Identity is
// "<kind>:<relative-path-with-slashes-escaped>".
func (a *Adapter) Parse(path string) (*ingestrecord.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	rel, err := filepath.Rel(a.opts.Root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	identity := strings.ReplaceAll(filepath.ToSlash(rel), "/", "__")

	title := firstH1(data)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if title == "" {
		title = normalizeStem(stem)
	}

	createdAt := dateFromStem(stem)
	if createdAt.IsZero() {
		createdAt = modTimeOf(path)
	}

	return &ingestrecord.Record{
		SourceID:      a.opts.Kind + ":" + identity,
		SourceType:    a.opts.Kind,
		Title:         title,
		Path:          path,
		CreatedAt:     createdAt,
		UpdatedAt:     modTimeOf(path),
		ContentHash:   modTimeOf(path).Format("20060102150405"),
		HasPresummary: a.opts.Kind == "knowledge",
		FullText:      string(data),
	}, nil
}

func firstH1(data []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(data))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			return strings.TrimSpace(string(headingText(h, data)))
		}
	}
	return ""
}

func headingText(n ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := node.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.Bytes()
}

// normalizeStem strips a leading 12-digit timestamp and a trailing
// -YYYY-MM-DD suffix from a filename stem.
func normalizeStem(stem string) string {
	s := leadingTimestampRE.ReplaceAllString(stem, "")
	s = trailingDateRE.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.TrimSpace(s)
}

// dateFromStem parses a YYYYMMDDHHmm or YYYY-MM-DD prefix in stem.
func dateFromStem(stem string) time.Time {
	m := stemTimestampRE.FindString(stem)
	if m == "" {
		return time.Time{}
	}
	if len(m) == 12 {
		if _, err := strconv.Atoi(m); err == nil {
			if t, err := time.Parse("200601021504", m); err == nil {
				return t
			}
		}
	}
	if t, err := time.Parse("2006-01-02", m); err == nil {
		return t
	}
	return time.Time{}
}

func modTimeOf(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
