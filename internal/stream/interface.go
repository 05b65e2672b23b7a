package stream

import "errors"

// ErrCorruptRecord is returned when a persisted record exists but cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt record")

// ErrSnapshotMissing is returned when no snapshot has been written yet.
var ErrSnapshotMissing = errors.New("snapshot missing")

// IDSet is a set of mintIds.
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids, skipping empty ones.
func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// SnapshotStore persists the output of one collection cycle.
type SnapshotStore interface {
	// LoadSnapshot returns the last fully written snapshot. A missing snapshot
	// yields an empty slice and ErrSnapshotMissing; an undecodable one wraps ErrCorruptRecord.
	LoadSnapshot() ([]StreamItem, error)
	// SaveSnapshot replaces the snapshot as a whole; readers never observe a partial write.
	SaveSnapshot(items []StreamItem) error
}

// ListStore exposes the operator-curated id lists. Both are re-read on every call.
type ListStore interface {
	LoadBlacklist() (IDSet, error)
	LoadFeatured() ([]string, error)
}

// CacheStore persists the featured last-known-good cache.
type CacheStore interface {
	LoadFeaturedCache() (FeaturedCache, error)
	SaveFeaturedCache(cache FeaturedCache) error
}

// Store groups every persisted record the system reads or writes.
type Store interface {
	SnapshotStore
	ListStore
	CacheStore
	// Init creates any absent record as an empty but valid structure.
	Init() error
}
