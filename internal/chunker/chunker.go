// Package chunker splits long conversation text into chunks aligned to
// topic boundaries inferred from message metadata, so a bounded-context
// summarizer never has a naive fixed-size split cut through a topic.
package chunker

import (
	"regexp"
	"strings"
	"time"
)

// MessageData describes one message's position within content and the
// signals used to score topic boundaries.
type MessageData struct {
	Timestamp    time.Time
	Role         string // "user" or "assistant"
	CharOffset   int
	CharLength   int
	IsToolResult bool
	HasToolUse   bool
}

// Config controls chunk sizing and boundary sensitivity. Zero values are
// replaced by the package defaults in Chunk.
type Config struct {
	Min            int // merge-forward floor, default 15000
	Max            int // hard ceiling, default 80000
	Target         int // paragraph-split aim point, default 40000
	TimeGapSeconds int // boundary trigger threshold, default 300
}

const (
	defaultMin    = 15_000
	defaultMax    = 80_000
	defaultTarget = 40_000
	defaultGapSec = 300

	splitWindow = 5_000
)

func (c Config) withDefaults() Config {
	if c.Min <= 0 {
		c.Min = defaultMin
	}
	if c.Max <= 0 {
		c.Max = defaultMax
	}
	if c.Target <= 0 {
		c.Target = defaultTarget
	}
	if c.TimeGapSeconds <= 0 {
		c.TimeGapSeconds = defaultGapSec
	}
	return c
}

var explicitMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)let's move on`),
	regexp.MustCompile(`(?i)new topic:`),
	regexp.MustCompile(`(?i)moving on to`),
	regexp.MustCompile(`(?i)switching to`),
	regexp.MustCompile(`^-{3,}\s*$`),
	regexp.MustCompile(`(?m)^#{1,6}\s+\S`),
}

// Chunk splits content at scored topic boundaries, merges undersized
// chunks forward, and splits oversized ones at paragraph breaks. With no
// messages or no boundaries it falls back to pure paragraph splitting.
func Chunk(content string, messages []MessageData, cfg Config) []string {
	cfg = cfg.withDefaults()

	boundaries := boundaryOffsets(content, messages, cfg)
	if len(content) <= cfg.Max && len(boundaries) == 0 {
		return []string{content}
	}

	var pieces []string
	if len(boundaries) == 0 {
		pieces = []string{content}
	} else {
		pieces = splitAtOffsets(content, boundaries)
	}

	pieces = mergeForward(pieces, cfg.Min)
	return splitOversized(pieces, cfg)
}

// boundaryOffsets returns the char offsets of messages at which a
// semantic boundary is declared, per the weighted signal table.
func boundaryOffsets(content string, messages []MessageData, cfg Config) []int {
	var offsets []int
	consecutiveAssistant := 0

	for i, m := range messages {
		if i == 0 {
			if m.Role == "assistant" {
				consecutiveAssistant++
			} else {
				consecutiveAssistant = 0
			}
			continue
		}
		prev := messages[i-1]

		var score float64

		if m.Timestamp.After(prev.Timestamp) &&
			m.Timestamp.Sub(prev.Timestamp) > time.Duration(cfg.TimeGapSeconds)*time.Second {
			score += 1.0
		}

		if m.Role == "user" && consecutiveAssistant >= 3 {
			score += 0.5
		}

		if m.Role == "assistant" && prev.Role == "assistant" && prev.HasToolUse && !m.HasToolUse {
			score += 0.3
		}

		if hasExplicitMarker(messageText(content, m)) {
			score += 0.2
		}

		if score >= 0.5 {
			offsets = append(offsets, m.CharOffset)
		}

		if m.Role == "assistant" {
			consecutiveAssistant++
		} else {
			consecutiveAssistant = 0
		}
	}

	return offsets
}

// messageText slices the message's own text out of content using its
// recorded offset/length, guarding against out-of-range metadata.
func messageText(content string, m MessageData) string {
	start := m.CharOffset
	end := start + m.CharLength
	if start < 0 || end > len(content) || start >= end {
		return ""
	}
	return content[start:end]
}

func hasExplicitMarker(s string) bool {
	if s == "" {
		return false
	}
	for _, re := range explicitMarkers {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func splitAtOffsets(content string, offsets []int) []string {
	var pieces []string
	prev := 0
	for _, off := range offsets {
		if off <= prev || off >= len(content) {
			continue
		}
		pieces = append(pieces, content[prev:off])
		prev = off
	}
	pieces = append(pieces, content[prev:])
	return pieces
}

// mergeForward accumulates pieces into a running group only while adding
// the next piece would keep the group under min; once a piece would push
// the group to min or beyond, the group is flushed as-is and the piece
// starts the next group. A too-short trailing group is folded back into
// its predecessor rather than emitted on its own.
func mergeForward(pieces []string, min int) []string {
	if len(pieces) <= 1 {
		return pieces
	}

	merged := make([]string, 0, len(pieces))
	var current string
	for _, p := range pieces {
		if current == "" {
			current = p
			continue
		}
		if len(current)+len(p) < min {
			current += p
			continue
		}
		merged = append(merged, current)
		current = p
	}
	if current != "" {
		if len(merged) > 0 && len(current) < min {
			merged[len(merged)-1] += current
		} else {
			merged = append(merged, current)
		}
	}
	return merged
}

// splitOversized further splits any chunk exceeding max at a paragraph
// break near target, falling back to a hard cut at max.
func splitOversized(pieces []string, cfg Config) []string {
	var out []string
	for _, p := range pieces {
		out = append(out, splitOne(p, cfg)...)
	}
	return out
}

func splitOne(s string, cfg Config) []string {
	if len(s) <= cfg.Max {
		return []string{s}
	}

	cut := findParagraphBreak(s, cfg.Target, splitWindow)
	if cut == -1 {
		cut = cfg.Max
	}
	head, tail := s[:cut], s[cut:]
	return append([]string{head}, splitOne(tail, cfg)...)
}

// findParagraphBreak looks for a double-newline boundary within
// [target-window, target+window] and returns the offset just past it, or
// -1 if none exists in range.
func findParagraphBreak(s string, target, window int) int {
	lo := target - window
	if lo < 0 {
		lo = 0
	}
	hi := target + window
	if hi > len(s) {
		hi = len(s)
	}
	if lo >= hi {
		return -1
	}

	win := s[lo:hi]
	best := -1
	bestDist := window + 1
	idx := 0
	for {
		rel := strings.Index(win[idx:], "\n\n")
		if rel == -1 {
			break
		}
		abs := lo + idx + rel + 2
		dist := abs - target
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			bestDist = dist
			best = abs
		}
		idx += rel + 2
		if idx >= len(win) {
			break
		}
	}
	return best
}

// ParagraphSplit splits content purely at paragraph breaks near target,
// used as the chunker's fallback when no messages are supplied or no
// boundary fires.
func ParagraphSplit(content string, cfg Config) []string {
	cfg = cfg.withDefaults()
	return splitOne(content, cfg)
}
