// Package handoff adapts structured markdown handoff notes: a top-level
// heading of the form "# Handoff — YYYY-MM-DD (<mood>)?" followed by
// level-2 sections whose headings become section keys.
package handoff

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ganot/larder/internal/ingest"
	"github.com/ganot/larder/internal/ingestrecord"
	"github.com/ganot/larder/internal/pathdecode"
	"github.com/ganot/larder/internal/titleclean"
)

// Options configures discovery.
type Options struct {
	Root    string
	Pattern string // defaults to "*.md"
}

// Adapter discovers and parses handoff markdown files.
type Adapter struct{ opts Options }

// New builds a handoff Adapter.
func New(opts Options) *Adapter {
	if opts.Pattern == "" {
		opts.Pattern = "*.md"
	}
	return &Adapter{opts: opts}
}

// SourceType implements ingest.Adapter.
func (a *Adapter) SourceType() string { return "handoff" }

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

var titleLineRE = regexp.MustCompile(`^#\s+Handoff\s*—?\s*(\d{4}-\d{2}-\d{2})?\s*(?:\(([^)]*)\))?`)

type section struct {
	key  string
	body string
}

// Parse reads one handoff file, walking its markdown AST to extract
// level-2 sections in declaration order.
func (a *Adapter) Parse(path string) (*ingestrecord.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	sections := extractSections(data)

	dirName := filepath.Base(filepath.Dir(path))
	decoded := pathdecode.Decode(dirName, nil)

	var date, mood string
	if m := titleLineRE.FindSubmatch(data); m != nil {
		date, mood = string(m[1]), string(m[2])
	}

	title := titleclean.Clean(synthesizeTitle(decoded.ProjectName, mood, date))

	ordered := make([]string, 0, len(sections))
	for _, s := range sections {
		ordered = append(ordered, "## "+s.key+"\n"+s.body)
	}

	createdAt := modTimeOf(path)

	return &ingestrecord.Record{
		SourceID:      "handoff:" + decoded.ProjectName + ":" + filepath.Base(path),
		SourceType:    "handoff",
		Title:         title,
		Path:          path,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
		ProjectPath:   decoded.ProjectPath,
		ContentHash:   createdAt.Format("20060102150405"),
		HasPresummary: true,
		FullText:      strings.Join(ordered, "\n\n"),
		RawMetadata: map[string]any{
			"mood": mood,
			"date": date,
		},
	}, nil
}

func synthesizeTitle(projectName, mood, date string) string {
	var b strings.Builder
	b.WriteString(projectName)
	if date != "" {
		b.WriteString(" — ")
		b.WriteString(date)
	}
	if mood != "" {
		b.WriteString(" (")
		b.WriteString(mood)
		b.WriteString(")")
	}
	return b.String()
}

// extractSections walks the goldmark AST for level-2 headings and
// collects the text of each heading's following siblings, in document
// order, until the next level-2 heading.
func extractSections(data []byte) []section {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(data))

	var sections []section
	var current *section

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 2 {
			if current != nil {
				current.body = strings.TrimSpace(current.body)
				sections = append(sections, *current)
			}
			current = &section{key: strings.TrimSpace(string(nodeText(h, data)))}
			continue
		}
		if current == nil {
			continue
		}
		current.body += string(nodeText(n, data)) + "\n"
	}
	if current != nil {
		current.body = strings.TrimSpace(current.body)
		sections = append(sections, *current)
	}
	return sections
}

func nodeText(n ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := node.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			buf.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func modTimeOf(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
