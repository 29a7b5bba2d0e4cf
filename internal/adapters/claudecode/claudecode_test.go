package claudecode_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganot/larder/internal/adapters/claudecode"
)

func writeJSONL(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseTitleFromCompactionEnvelope(t *testing.T) {
	dir := t.TempDir()
	path := writeJSONL(t, dir, "session.jsonl", []string{
		`{"sessionId":"abc123","message":{"role":"user","content":[{"type":"text","text":"<summary>Fix the JWT refresh token race condition</summary>"}]}}`,
		`{"sessionId":"abc123","message":{"role":"assistant","content":[{"type":"text","text":"Sure, investigating now."}]}}`,
	})

	a := claudecode.New(claudecode.Options{Root: dir})
	rec, err := a.Parse(path)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Fix the JWT refresh token race condition", rec.Title)
	assert.Equal(t, "claude_code:abc123", rec.SourceID)
}

func TestParseDropsWarmupSingleMessageSession(t *testing.T) {
	dir := t.TempDir()
	path := writeJSONL(t, dir, "warmup.jsonl", []string{
		`{"sessionId":"xyz","message":{"role":"user","content":[{"type":"text","text":"warmup"}]}}`,
	})

	a := claudecode.New(claudecode.Options{Root: dir})
	rec, err := a.Parse(path)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestParseExtractsGitCommitFromToolResult(t *testing.T) {
	dir := t.TempDir()
	path := writeJSONL(t, dir, "session.jsonl", []string{
		`{"sessionId":"s1","message":{"role":"user","content":[{"type":"text","text":"please commit"},{"type":"tool_result","content":"[main a1b2c3d] Fix the bug\n"}]}}`,
		`{"sessionId":"s1","message":{"role":"assistant","content":[{"type":"text","text":"Done."}]}}`,
	})

	a := claudecode.New(claudecode.Options{Root: dir})
	rec, err := a.Parse(path)
	require.NoError(t, err)
	require.NotNil(t, rec)
	commits, ok := rec.RawMetadata["git_commits"].([]string)
	require.True(t, ok)
	assert.Contains(t, commits, "Fix the bug")
}

func TestParseExplicitSummaryMarksPresummary(t *testing.T) {
	dir := t.TempDir()
	path := writeJSONL(t, dir, "session.jsonl", []string{
		`{"sessionId":"s2","type":"summary","summary":"Refactored the auth middleware"}`,
		`{"sessionId":"s2","message":{"role":"user","content":[{"type":"text","text":"let's refactor auth"}]}}`,
		`{"sessionId":"s2","message":{"role":"assistant","content":[{"type":"text","text":"ok"}]}}`,
	})

	a := claudecode.New(claudecode.Options{Root: dir})
	rec, err := a.Parse(path)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.HasPresummary)
	assert.Equal(t, "Refactored the auth middleware", rec.Title)
	assert.Equal(t, "Refactored the auth middleware", rec.FullText)
}

func TestParseMissingSessionIDErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeJSONL(t, dir, "nosession.jsonl", []string{
		`{"message":{"role":"user","content":[{"type":"text","text":"hello"}]}}`,
	})

	a := claudecode.New(claudecode.Options{Root: dir})
	_, err := a.Parse(path)
	require.Error(t, err)
}
