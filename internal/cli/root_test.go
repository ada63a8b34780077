package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	cmd := NewRootCommand()

	migrate, _, err := cmd.Find([]string{"migrate"})
	require.NoError(t, err)
	assert.Equal(t, "migrate", migrate.Name())

	var names []string
	for _, sub := range migrate.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down", "version"}, names)

	for _, flag := range []string{"song-data", "log-data", "migrate", "config"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), flag)
	}
}

func TestRootCommandRejectsArguments(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"unexpected"})
	cmd.SetOut(&discard{})
	cmd.SetErr(&discard{})

	assert.Error(t, cmd.Execute())
}

func TestLoadConfigAppliesFlagOverrides(t *testing.T) {
	opts := &rootOptions{
		configPath: t.TempDir(),
		songData:   "/tmp/songs",
		logData:    "/tmp/logs",
	}

	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/songs", cfg.Pipeline.SongData)
	assert.Equal(t, "/tmp/logs", cfg.Pipeline.LogData)
	assert.Equal(t, ".json", cfg.Pipeline.Extension)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
