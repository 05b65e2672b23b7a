package app

import (
	"livewall/configs"
	"livewall/internal/collector"
	"livewall/internal/pumpfun"
	"livewall/internal/stream"
)

// NewStore opens the file-backed records under the configured data directory.
func NewStore(cfg *configs.Config) *stream.FileStore {
	return stream.NewFileStore(stream.FileStorePaths{
		Snapshot:      cfg.SnapshotPath(),
		Blacklist:     cfg.BlacklistPath(),
		Featured:      cfg.FeaturedPath(),
		FeaturedCache: cfg.FeaturedCachePath(),
	})
}

func NewUpstreamClient(cfg *configs.Config) *pumpfun.Client {
	return pumpfun.NewClient(pumpfun.Options{
		ListingURL:       cfg.Upstream.ListingURL,
		DetailURL:        cfg.Upstream.DetailURL,
		PageSize:         cfg.Upstream.PageSize,
		ListingTimeout:   cfg.Upstream.ListingTimeout,
		DetailTimeout:    cfg.Upstream.DetailTimeout,
		PageDelay:        cfg.Upstream.PageDelay,
		DetailRatePerSec: cfg.Upstream.DetailRatePerSec,
		ThumbnailGateway: cfg.Upstream.ThumbnailGateway,
	})
}

// NewCollector builds the collection loop writing into store.
func NewCollector(cfg *configs.Config, store collector.Store) *collector.Collector {
	client := NewUpstreamClient(cfg)
	return collector.NewCollector(client, client, store, collector.Config{
		Interval:          cfg.Collector.Interval,
		ErrorBackoff:      cfg.Collector.ErrorBackoff,
		EnrichConcurrency: cfg.Collector.EnrichConcurrency,
	})
}
