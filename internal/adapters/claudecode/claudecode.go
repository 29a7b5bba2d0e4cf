// Package claudecode adapts per-project session logs: line-delimited
// JSON transcripts, one file per session, identified by the session id
// embedded in the first user/assistant entry.
package claudecode

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ganot/larder/internal/ingest"
	"github.com/ganot/larder/internal/ingestrecord"
	"github.com/ganot/larder/internal/titleclean"
)

// Options configures discovery.
type Options struct {
	// Root is the directory tree to scan for session log files.
	Root string
	// Pattern filters filenames; defaults to "*.jsonl".
	Pattern string
}

// Adapter discovers and parses per-project session logs under Root.
type Adapter struct {
	opts Options
}

// New builds a claudecode Adapter.
func New(opts Options) *Adapter {
	if opts.Pattern == "" {
		opts.Pattern = "*.jsonl"
	}
	return &Adapter{opts: opts}
}

// SourceType implements ingest.Adapter.
func (a *Adapter) SourceType() string { return "claude_code" }

// Discover implements ingest.Adapter. It walks Root for files matching
// Pattern and parses each independently; a malformed file yields a
// diagnostic without aborting the rest of the walk.
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
			if err != nil {
				return nil // best-effort: missing dirs during scan are silent skips
			}
			if d.IsDir() {
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
			if rec == nil {
				return nil // warmup/empty file, dropped silently
			}
			out <- ingest.Discovered{Record: *rec}
			return nil
		})
	}()
	return out
}

// entry is one line of the session log.
type entry struct {
	Type      string       `json:"type"`
	SessionID string       `json:"sessionId"`
	UUID      string       `json:"uuid"`
	Timestamp string       `json:"timestamp"`
	Message   *messageBody `json:"message"`
	Summary   string       `json:"summary"`
}

type messageBody struct {
	Role    string        `json:"role"`
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Content string `json:"content"` // tool_result content is sometimes a bare string
}

var gitCommitRE = regexp.MustCompile(`\[[\w\-/]+ ([a-f0-9]{7,})\] (.+?)(?:\n|$)`)

// Parse reads one session log file and produces a single Record, or nil
// if the file is a dropped warmup/empty session.
func (a *Adapter) Parse(path string) (*ingestrecord.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var (
		sessionID        string
		explicitSummary  string
		firstUserText    string
		nonMetaUserTexts []string
		textBlocks       []string
		toolsUsed        = map[string]struct{}{}
		filesTouched     = map[string]struct{}{}
		skillsUsed       = map[string]struct{}{}
		commits          []string
		userMessages     int
	)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue // malformed line, skip
		}
		if sessionID == "" && e.SessionID != "" {
			sessionID = e.SessionID
		}
		if e.Type == "summary" && e.Summary != "" {
			explicitSummary = e.Summary
			continue
		}
		if e.Message == nil {
			continue
		}
		switch e.Message.Role {
		case "user":
			userMessages++
			text := flattenText(e.Message.Content, false)
			if text != "" {
				if firstUserText == "" {
					firstUserText = text
				}
				textBlocks = append(textBlocks, text)
				if !isCompactionPrompt(text) {
					nonMetaUserTexts = append(nonMetaUserTexts, text)
				}
			}
			for _, c := range e.Message.Content {
				for _, m := range gitCommitRE.FindAllStringSubmatch(c.Content, -1) {
					commits = append(commits, m[2])
				}
			}
		case "assistant":
			text := flattenText(e.Message.Content, true)
			if text != "" {
				textBlocks = append(textBlocks, text)
			}
			for _, c := range e.Message.Content {
				if c.Type == "tool_use" {
					toolsUsed[c.Text] = struct{}{}
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("no session id found in %s", path)
	}
	if userMessages <= 1 && isWarmup(firstUserText) {
		return nil, nil
	}

	// Title priority: (i) explicit summary, (ii) the first genuine user
	// message, (iii) text extracted from a compaction-prompt envelope when
	// every early user message turned out to be a compaction prompt.
	title := explicitSummary
	if title == "" && len(nonMetaUserTexts) > 0 {
		title = nonMetaUserTexts[0]
	}
	if title == "" {
		title = titleFromEnvelope(firstUserText)
	}
	if title == "" {
		title = firstUserText
	}
	title = titleclean.Clean(title)

	modTime := modTimeOf(path)

	projectPath := filepath.Base(filepath.Dir(path))

	mentions := make([]ingestrecord.FileMention, 0, len(filesTouched))
	for p := range filesTouched {
		mentions = append(mentions, ingestrecord.FileMention{Path: p})
	}

	meta := map[string]any{
		"tools_used":    keys(toolsUsed),
		"files_touched": keys(filesTouched),
		"skills_used":   keys(skillsUsed),
		"git_commits":   commits,
	}

	rec := &ingestrecord.Record{
		SourceID:            "claude_code:" + sessionID,
		SourceType:          "claude_code",
		Title:               title,
		Path:                path,
		CreatedAt:           modTime,
		UpdatedAt:           modTime,
		ProjectPath:         projectPath,
		ContentHash:         modTime.Format("20060102150405"),
		HasPresummary:       explicitSummary != "",
		FullText:            strings.Join(textBlocks, "\n\n"),
		RawMetadata:         meta,
		FileMentions:        mentions,
		NonMetaUserMessages: nonMetaUserTexts,
	}
	if explicitSummary != "" {
		rec.FullText = explicitSummary
	}
	return rec, nil
}

// flattenText concatenates text blocks from a message's content, skipping
// tool-use and tool-result payloads so FullText reflects only what a
// human would read.
func flattenText(content []contentItem, skipToolUse bool) string {
	var parts []string
	for _, c := range content {
		switch c.Type {
		case "tool_use", "tool_result":
			continue
		case "text", "":
			if c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

var summaryEnvelopeRE = regexp.MustCompile(`(?s)<summary>(.*?)</summary>`)

// titleFromEnvelope extracts a title from a compaction-prompt envelope:
// the inner <summary>...</summary> markers if present, else the span
// between an embedded "User:" line and the next "Agent:" line.
func titleFromEnvelope(text string) string {
	if m := summaryEnvelopeRE.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if idx := strings.Index(text, "User:"); idx >= 0 {
		rest := text[idx+len("User:"):]
		if end := strings.Index(rest, "Agent:"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return ""
}

// isCompactionPrompt reports whether text is a compaction-prompt envelope
// rather than a genuine user message: either the explicit preamble Claude
// Code inserts ahead of a resumed-session summary, or text that itself
// carries an extractable <summary> or User:/Agent: envelope.
func isCompactionPrompt(text string) bool {
	if strings.HasPrefix(strings.TrimSpace(text), "Context: This summary will be shown") {
		return true
	}
	return titleFromEnvelope(text) != ""
}

func isWarmup(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "warmup")
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func modTimeOf(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
