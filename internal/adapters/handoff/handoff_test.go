package handoff_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganot/larder/internal/adapters/handoff"
)

func TestParseExtractsSectionsAndDecodesParentDir(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "-Users-jane-Repos-skill-session-management")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))

	content := "# Handoff — 2026-03-01 (focused)\n\n" +
		"## What happened\n\nShipped the new chunker.\n\n" +
		"## Next steps\n\nWire up the adapters.\n"
	path := filepath.Join(projectDir, "handoff.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	a := handoff.New(handoff.Options{Root: root})
	rec, err := a.Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "/Users/jane/Repos/skill-session-management", rec.ProjectPath)
	assert.Contains(t, rec.SourceID, "skill-session-management")
	assert.Contains(t, rec.FullText, "## What happened")
	assert.Contains(t, rec.FullText, "Shipped the new chunker.")
	assert.Contains(t, rec.FullText, "## Next steps")
	assert.True(t, rec.HasPresummary)
	assert.Equal(t, "2026-03-01", rec.RawMetadata["date"])
	assert.Equal(t, "focused", rec.RawMetadata["mood"])
}

func TestParseWithoutKnownBaseFallsBackToLastSegment(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "some-random-project-name")
	require.NoError(t, os.MkdirAll(projectDir, 0o755))

	path := filepath.Join(projectDir, "handoff.md")
	require.NoError(t, os.WriteFile(path, []byte("# Handoff\n\n## Summary\n\nnothing much\n"), 0o644))

	a := handoff.New(handoff.Options{Root: root})
	rec, err := a.Parse(path)
	require.NoError(t, err)
	assert.Contains(t, rec.Title, "name")
}
