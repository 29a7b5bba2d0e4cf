package pathdecode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ganot/larder/internal/pathdecode"
)

func TestDecodeKnownBaseRepos(t *testing.T) {
	got := pathdecode.Decode("-Users-jane-Repos-skill-session-management", nil)
	assert.Equal(t, "skill-session-management", got.ProjectName)
	assert.Equal(t, "/Users/jane/Repos/skill-session-management", got.ProjectPath)
}

func TestDecodeKnownBaseClaudeProjects(t *testing.T) {
	got := pathdecode.Decode("-home-bob-.claude-projects-my-app", nil)
	assert.Equal(t, "my-app", got.ProjectName)
	assert.Equal(t, "/home/bob/.claude-projects/my-app", got.ProjectPath)
}

func TestDecodeFallsBackToProbedRealPath(t *testing.T) {
	probe := func(path string) bool { return path == "/opt/service/worker" }
	got := pathdecode.Decode("-opt-service-worker", probe)
	assert.Equal(t, "worker", got.ProjectName)
	assert.Equal(t, "/opt/service/worker", got.ProjectPath)
}

func TestDecodeFallsBackToLastSegmentWhenNothingMatches(t *testing.T) {
	probe := func(path string) bool { return false }
	got := pathdecode.Decode("totally-unknown-shape", probe)
	assert.Equal(t, "shape", got.ProjectName)
	assert.Empty(t, got.ProjectPath)
}
