package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("folio", pflag.ContinueOnError)
	fs.String("source", "", "")
	fs.String("output", "", "")
	fs.String("log-level", "", "")
	return fs
}

func TestApplyOverrides_NothingSet(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyOverrides(cfg, newTestFlags()))
	assert.Equal(t, Default(), cfg, "unchanged flags must not override the file")
}

func TestApplyOverrides_Environment(t *testing.T) {
	root := t.TempDir()
	t.Setenv("FOLIO_SITE_SOURCE_ROOT", filepath.Join(root, "src"))
	t.Setenv("FOLIO_SITE_OUTPUT_ROOT", filepath.Join(root, "out"))
	t.Setenv("FOLIO_SITE_INDEX_DIR", root)
	t.Setenv("FOLIO_APPLICATION_LOG_FORMAT", "json")
	t.Setenv("FOLIO_WATCH_DEBOUNCE", "300ms")

	cfg := Default()
	require.NoError(t, ApplyOverrides(cfg, nil))

	assert.Equal(t, filepath.Join(root, "src"), cfg.Site.SourceRoot)
	assert.Equal(t, filepath.Join(root, "out"), cfg.Site.OutputRoot)
	assert.Equal(t, root, cfg.Site.IndexDir)
	assert.Equal(t, "json", cfg.Application.LogFormat)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce.Duration)
}

func TestApplyOverrides_FlagsBeatEnvironment(t *testing.T) {
	root := t.TempDir()
	t.Setenv("FOLIO_SITE_OUTPUT_ROOT", filepath.Join(root, "from-env"))
	t.Setenv("FOLIO_APPLICATION_LOG_LEVEL", "warn")

	flags := newTestFlags()
	require.NoError(t, flags.Parse([]string{"--output", filepath.Join(root, "from-flag"), "--log-level", "debug"}))

	cfg := Default()
	require.NoError(t, ApplyOverrides(cfg, flags))

	assert.Equal(t, filepath.Join(root, "from-flag"), cfg.Site.OutputRoot)
	assert.Equal(t, "debug", cfg.Application.LogLevel)
}

func TestApplyOverrides_Revalidates(t *testing.T) {
	t.Setenv("FOLIO_APPLICATION_LOG_LEVEL", "chatty")

	cfg := Default()
	err := ApplyOverrides(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log_level: chatty")
}
