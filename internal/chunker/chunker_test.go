package chunker_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganot/larder/internal/chunker"
)

func msg(role string, offset, length int, ts time.Time) chunker.MessageData {
	return chunker.MessageData{Role: role, CharOffset: offset, CharLength: length, Timestamp: ts}
}

func TestChunkBelowMaxWithNoBoundariesPassesThrough(t *testing.T) {
	content := strings.Repeat("a", 100)
	out := chunker.Chunk(content, nil, chunker.Config{})
	require.Len(t, out, 1)
	assert.Equal(t, content, out[0])
}

func TestTopicBoundaryByTimeGap(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	seg := strings.Repeat("x", 20_000)
	content := seg + seg + seg

	messages := []chunker.MessageData{
		msg("user", 0, len(seg), base),
		msg("assistant", len(seg), len(seg), base.Add(10*time.Second)),
		// gap > default 300s triggers a boundary at this message's offset
		msg("user", 2*len(seg), len(seg), base.Add(20*time.Minute)),
	}

	out := chunker.Chunk(content, messages, chunker.Config{Min: 1000, Max: 1_000_000})
	require.Len(t, out, 2)
	assert.Equal(t, seg+seg, out[0])
	assert.Equal(t, seg, out[1])
}

func TestSemanticMergeOfUndersizedChunks(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	seg := strings.Repeat("y", 5_000)
	content := seg + seg + seg

	messages := []chunker.MessageData{
		msg("user", 0, len(seg), base),
		msg("user", len(seg), len(seg), base.Add(1*time.Hour)),
		msg("user", 2*len(seg), len(seg), base.Add(2*time.Hour)),
	}

	cfg := chunker.Config{Min: 8_000, Max: 1_000_000}
	out := chunker.Chunk(content, messages, cfg)

	// Boundaries fire at both later messages (big time gaps), producing
	// three 5000-char pieces. Adding the second piece to the first would
	// reach 10000, which is not under the 8000 floor, so the first piece is
	// emitted on its own, and likewise the second; the trailing 5000-char
	// piece is too short to stand on its own so it folds back into the
	// chunk before it.
	require.Len(t, out, 2)
	assert.Equal(t, seg, out[0])
	assert.Equal(t, seg+seg, out[1])
}

func TestOversizedChunkSplitsAtParagraphBreak(t *testing.T) {
	head := strings.Repeat("h", 100) + "\n\n"
	tail := strings.Repeat("t", 100)
	content := head + tail
	cfg := chunker.Config{Min: 1, Max: len(head), Target: len(head) - 5}

	out := chunker.ParagraphSplit(content, cfg)
	require.Len(t, out, 2)
	assert.True(t, strings.HasSuffix(out[0], "\n\n"))
	assert.Equal(t, tail, out[1])
}

func TestExplicitMarkerHeadingTriggersBoundary(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	part1 := strings.Repeat("a", 9_000)
	heading := "## New Topic\n"
	part2 := strings.Repeat("b", 9_000)
	content := part1 + heading + part2

	// Need score >= 0.5. Explicit marker alone is 0.2, so pair it with a
	// tool-sequence end (0.3): an assistant turn without tool use right
	// after one that used tools. Without the heading the score stays 0.3.
	toolTurn := msg("assistant", 0, len(part1), base)
	toolTurn.HasToolUse = true
	messages := []chunker.MessageData{
		toolTurn,
		msg("assistant", len(part1), len(heading)+len(part2), base.Add(1*time.Second)),
	}

	out := chunker.Chunk(content, messages, chunker.Config{Min: 100, Max: 1_000_000})
	require.Len(t, out, 2)
	assert.Equal(t, part1, out[0])
	assert.Equal(t, heading+part2, out[1])
}
