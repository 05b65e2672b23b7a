package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server struct {
		Port           int
		Host           string
		StaticDir      string
		AllowedOrigins []string
		RequestTimeout time.Duration
	}
	Storage struct {
		DataDir           string
		SnapshotFile      string
		BlacklistFile     string
		FeaturedFile      string
		FeaturedCacheFile string
	}
	Upstream struct {
		ListingURL       string
		DetailURL        string
		PageSize         int
		ListingTimeout   time.Duration
		DetailTimeout    time.Duration
		PageDelay        time.Duration
		DetailRatePerSec int
		ThumbnailGateway string
	}
	Collector struct {
		Enabled           bool
		Interval          time.Duration
		ErrorBackoff      time.Duration
		EnrichConcurrency int
	}
	Featured struct {
		RespectsBlacklist bool
	}
	Live struct {
		PushInterval time.Duration
	}
	Telemetry struct {
		ServiceName string
		UseStdout   bool
	}
	LogLevel string
}

func LoadConfig() (*Config, error) {
	config := &Config{}

	// Server config
	config.Server.Port = getEnvAsInt("SERVER_PORT", 5000)
	config.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	config.Server.StaticDir = getEnv("STATIC_DIR", "static")
	config.Server.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"})
	config.Server.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second)

	// Storage config
	config.Storage.DataDir = getEnv("DATA_DIR", "/data")
	config.Storage.SnapshotFile = getEnv("SNAPSHOT_FILE", "pumpfun_streams.json")
	config.Storage.BlacklistFile = getEnv("BLACKLIST_FILE", "blacklist.json")
	config.Storage.FeaturedFile = getEnv("FEATURED_FILE", "featured.json")
	config.Storage.FeaturedCacheFile = getEnv("FEATURED_CACHE_FILE", "featured_cache.json")

	// Upstream config
	config.Upstream.ListingURL = getEnv("LISTING_URL", "https://frontend-api-v3.pump.fun/coins/currently-live")
	config.Upstream.DetailURL = getEnv("DETAIL_URL", "https://livestream-api.pump.fun/livestream")
	config.Upstream.PageSize = getEnvAsInt("LISTING_PAGE_SIZE", 60)
	config.Upstream.ListingTimeout = getEnvAsDuration("LISTING_TIMEOUT", 15*time.Second)
	config.Upstream.DetailTimeout = getEnvAsDuration("DETAIL_TIMEOUT", 10*time.Second)
	config.Upstream.PageDelay = getEnvAsDuration("PAGE_DELAY", 100*time.Millisecond)
	config.Upstream.DetailRatePerSec = getEnvAsInt("DETAIL_RATE_PER_SEC", 0)
	config.Upstream.ThumbnailGateway = getEnv("THUMBNAIL_GATEWAY", "ipfs.io")

	// Collector config
	config.Collector.Enabled = getEnvAsBool("COLLECTOR_ENABLED", true)
	config.Collector.Interval = getEnvAsDuration("COLLECT_INTERVAL", 90*time.Second)
	config.Collector.ErrorBackoff = getEnvAsDuration("ERROR_BACKOFF", 30*time.Second)
	config.Collector.EnrichConcurrency = getEnvAsInt("ENRICH_CONCURRENCY", 16)

	config.Featured.RespectsBlacklist = getEnvAsBool("FEATURED_RESPECTS_BLACKLIST", false)

	config.Live.PushInterval = getEnvAsDuration("LIVE_PUSH_INTERVAL", 15*time.Second)

	config.Telemetry.ServiceName = getEnv("OTEL_SERVICE_NAME", "livewall")
	config.Telemetry.UseStdout = getEnvAsBool("OTEL_STDOUT", false)

	config.LogLevel = getEnv("LOG_LEVEL", "info")

	return config, nil
}

// Validate rejects settings the collector or server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.Upstream.ListingURL == "" || c.Upstream.DetailURL == "" {
		return fmt.Errorf("LISTING_URL and DETAIL_URL are required")
	}
	if c.Upstream.PageSize <= 0 {
		return fmt.Errorf("LISTING_PAGE_SIZE must be positive, got %d", c.Upstream.PageSize)
	}
	if c.Upstream.ListingTimeout <= 0 || c.Upstream.DetailTimeout <= 0 {
		return fmt.Errorf("upstream timeouts must be positive")
	}
	if c.Collector.Interval < time.Second {
		return fmt.Errorf("COLLECT_INTERVAL must be at least 1s, got %s", c.Collector.Interval)
	}
	if c.Collector.ErrorBackoff < time.Second {
		return fmt.Errorf("ERROR_BACKOFF must be at least 1s, got %s", c.Collector.ErrorBackoff)
	}
	if c.Collector.EnrichConcurrency <= 0 {
		return fmt.Errorf("ENRICH_CONCURRENCY must be positive, got %d", c.Collector.EnrichConcurrency)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.Live.PushInterval <= 0 {
		return fmt.Errorf("LIVE_PUSH_INTERVAL must be positive")
	}
	return nil
}

// GetServerAddress returns the host:port the read API listens on
func (c *Config) GetServerAddress() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// SnapshotPath returns the absolute location of the snapshot record
func (c *Config) SnapshotPath() string {
	return c.resolve(c.Storage.SnapshotFile)
}

// BlacklistPath returns the location of the blacklist record
func (c *Config) BlacklistPath() string {
	return c.resolve(c.Storage.BlacklistFile)
}

// FeaturedPath returns the location of the featured list record
func (c *Config) FeaturedPath() string {
	return c.resolve(c.Storage.FeaturedFile)
}

// FeaturedCachePath returns the location of the featured cache record
func (c *Config) FeaturedCachePath() string {
	return c.resolve(c.Storage.FeaturedCacheFile)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Storage.DataDir, name)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
