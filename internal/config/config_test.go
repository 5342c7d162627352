package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	require.Equal(t, 100, cfg.Crawl.MaxPages)
	require.Equal(t, 5, cfg.Crawl.MaxDepth)
	require.Equal(t, 300*time.Millisecond, cfg.Crawl.Delay)
	require.Equal(t, 50, cfg.LargeSite.RequestBudget)
	require.Equal(t, "memory", cfg.Store.Driver)
	require.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	t.Parallel()

	data := []byte(`
crawl:
  max_pages: 25
  max_depth: -1
  delay: 1s
  timeout: 2500ms
  follow_external: true
large_site:
  threshold: 500
analysis:
  rps: -1
store:
  driver: sqlite
  dsn: file:tasks.db
log:
  level: debug
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	require.Equal(t, 25, cfg.Crawl.MaxPages)
	require.Equal(t, -1, cfg.Crawl.MaxDepth, "negative depth crawls the base url only")
	require.Equal(t, time.Second, cfg.Crawl.Delay)
	require.Equal(t, 2500*time.Millisecond, cfg.Crawl.Timeout)
	require.True(t, cfg.Crawl.FollowExternal)
	require.Equal(t, 500, cfg.LargeSite.Threshold)
	require.Equal(t, 50, cfg.LargeSite.RequestBudget, "unset fields keep defaults")
	require.InDelta(t, -1, cfg.Analysis.RPS, 0, "negative rps disables the limit")
	require.Equal(t, "sqlite", cfg.Store.Driver)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "unknown driver", data: "store:\n  driver: mongo\n"},
		{name: "sqlite without dsn", data: "store:\n  driver: sqlite\n"},
		{name: "negative retries", data: "crawl:\n  retries: -1\n"},
		{name: "malformed yaml", data: "crawl: [1, 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "seoscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))

	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
