package stream

import (
	"context"

	"livewall/pkg/telemetry"
	utils "livewall/pkg/utils"

	"go.opentelemetry.io/otel/attribute"
)

// LoadFailureMessage is reported to readers when the snapshot cannot be read.
const LoadFailureMessage = "Failed to load streams"

// TimeoutMessage is reported when the view is not ready before the request deadline.
const TimeoutMessage = "Timed out loading streams"

// FeaturedAuditor receives featured-cache membership changes.
type FeaturedAuditor interface {
	LogFeaturedCached(mintID, title string)
	LogFeaturedEvicted(mintID string)
}

// ServiceOptions tunes reconciliation policy.
type ServiceOptions struct {
	// RespectBlacklistForFeatured also hides blacklisted ids from the offline backfill.
	RespectBlacklistForFeatured bool
}

type StreamService struct {
	store   Store
	auditor FeaturedAuditor
	opts    ServiceOptions
}

func NewStreamService(store Store, auditor FeaturedAuditor, opts ServiceOptions) *StreamService {
	return &StreamService{
		store:   store,
		auditor: auditor,
		opts:    opts,
	}
}

// View merges the current snapshot with the featured cache into the list served
// to readers. Every call re-reads all records and rewrites the featured cache.
//
// Snapshot items come first in snapshot order, then offline featured entries
// synthesized from the cache in featured-list order. When the snapshot cannot
// be read the response carries an empty list and an error message, and the
// returned error explains why.
func (ss *StreamService) View(ctx context.Context) (StreamsResponse, error) {
	_, span := telemetry.Tracer("stream").Start(ctx, "stream.view")
	defer span.End()

	snapshot, err := ss.store.LoadSnapshot()
	if err != nil {
		utils.WithField("error", err.Error()).Error("Error loading streams")
		span.RecordError(err)
		return StreamsResponse{Streams: []PublicStreamItem{}, Error: LoadFailureMessage}, err
	}

	blacklist, err := ss.store.LoadBlacklist()
	if err != nil {
		utils.WithField("error", err.Error()).Warn("Error loading blacklist, using empty set")
		blacklist = IDSet{}
	}
	featuredList, err := ss.store.LoadFeatured()
	if err != nil {
		utils.WithField("error", err.Error()).Warn("Error loading featured list, using empty list")
		featuredList = []string{}
	}
	cache, err := ss.store.LoadFeaturedCache()
	if err != nil {
		utils.WithField("error", err.Error()).Warn("Error loading featured cache, starting empty")
		cache = FeaturedCache{}
	}
	featured := NewIDSet(featuredList...)

	ss.refreshCache(cache, snapshot, featured)
	ss.evictCache(cache, featured)
	if err := ss.store.SaveFeaturedCache(cache); err != nil {
		utils.WithField("error", err.Error()).Error("Error saving featured cache")
	}

	streams := make([]PublicStreamItem, 0, len(snapshot)+len(cache))
	processed := IDSet{}
	for _, s := range snapshot {
		if blacklist.Has(s.MintID) {
			continue
		}
		isFeatured := featured.Has(s.MintID)
		streams = append(streams, publicFromSnapshot(s, isFeatured))
		if isFeatured {
			processed[s.MintID] = struct{}{}
		}
	}

	backfilled := 0
	for _, mintID := range featuredList {
		if processed.Has(mintID) {
			continue
		}
		if ss.opts.RespectBlacklistForFeatured && blacklist.Has(mintID) {
			continue
		}
		cached, ok := cache[mintID]
		if !ok {
			continue
		}
		streams = append(streams, publicFromCache(cached))
		// a featured id listed twice is only backfilled once
		processed[mintID] = struct{}{}
		backfilled++
	}

	span.SetAttributes(
		attribute.Int("snapshot.size", len(snapshot)),
		attribute.Int("view.size", len(streams)),
		attribute.Int("view.backfilled", backfilled),
	)
	return StreamsResponse{Streams: streams}, nil
}

func (ss *StreamService) refreshCache(cache FeaturedCache, snapshot []StreamItem, featured IDSet) {
	for _, s := range snapshot {
		if !s.IsLive || !featured.Has(s.MintID) {
			continue
		}
		_, known := cache[s.MintID]
		cache[s.MintID] = NewCachedStream(s)
		if !known && ss.auditor != nil {
			ss.auditor.LogFeaturedCached(s.MintID, s.Title)
		}
	}
}

func (ss *StreamService) evictCache(cache FeaturedCache, featured IDSet) {
	for mintID := range cache {
		if featured.Has(mintID) {
			continue
		}
		delete(cache, mintID)
		if ss.auditor != nil {
			ss.auditor.LogFeaturedEvicted(mintID)
		}
	}
}
