package configs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 60, cfg.Upstream.PageSize)
	require.Equal(t, 15*time.Second, cfg.Upstream.ListingTimeout)
	require.Equal(t, 10*time.Second, cfg.Upstream.DetailTimeout)
	require.Equal(t, 90*time.Second, cfg.Collector.Interval)
	require.Equal(t, 30*time.Second, cfg.Collector.ErrorBackoff)
	require.False(t, cfg.Featured.RespectsBlacklist)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("COLLECT_INTERVAL", "5s")
	t.Setenv("FEATURED_RESPECTS_BLACKLIST", "true")
	t.Setenv("ENRICH_CONCURRENCY", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "0.0.0.0:9090", cfg.GetServerAddress())
	require.Equal(t, 5*time.Second, cfg.Collector.Interval)
	require.True(t, cfg.Featured.RespectsBlacklist)
	require.Equal(t, 16, cfg.Collector.EnrichConcurrency)
	require.Equal(t, filepath.Join(dir, "pumpfun_streams.json"), cfg.SnapshotPath())
}

func TestConfig_AbsoluteRecordPathWins(t *testing.T) {
	t.Setenv("BLACKLIST_FILE", "/etc/livewall/blacklist.json")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "/etc/livewall/blacklist.json", cfg.BlacklistPath())
}

func TestConfig_Validate(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.Upstream.PageSize = 0
	require.Error(t, cfg.Validate())

	cfg.Upstream.PageSize = 60
	cfg.Collector.Interval = 100 * time.Millisecond
	require.Error(t, cfg.Validate())
}

func TestLoadConfig_AllowedOrigins(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}
