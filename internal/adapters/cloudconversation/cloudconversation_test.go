package cloudconversation_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganot/larder/internal/adapters/cloudconversation"
)

func TestParseConcatenatesTextBlocksAcrossMessages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conv.json")
	data := `{
		"uuid": "conv-uuid-1",
		"name": "Debugging session",
		"updated_at": "2026-03-01T10:00:00Z",
		"chat_messages": [
			{"sender": "human", "content": [{"type": "text", "text": "first message"}]},
			{"sender": "assistant", "content": [{"type": "text", "text": "second message"}, {"type": "tool_use", "text": "ignored"}]}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	a := cloudconversation.New(cloudconversation.Options{Root: dir})
	rec, err := a.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "claude_ai:conv-uuid-1", rec.SourceID)
	assert.Equal(t, "first message\n\nsecond message", rec.FullText)
	assert.Equal(t, 2026, rec.UpdatedAt.Year())
}

func TestParseMissingUUIDErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"x"}`), 0o644))

	a := cloudconversation.New(cloudconversation.Options{Root: dir})
	_, err := a.Parse(path)
	require.Error(t, err)
}
