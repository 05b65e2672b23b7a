package stream

import "strings"

const (
	// PlaceholderTitle marks a candidate whose title has not been resolved by the detail endpoint.
	PlaceholderTitle = "Unknown Title"
	// DefaultCategory is the only category the listing source produces.
	DefaultCategory = "Crypto"

	defaultViewTitle = "Unknown Stream"
	defaultName      = "Unknown"
	defaultURL       = "#"
)

// StreamItem is one observed live-stream candidate, and the snapshot record format.
type StreamItem struct {
	Title        string `json:"title"`
	StreamerName string `json:"streamerName"`
	GameCategory string `json:"gameCategory"`
	MintID       string `json:"mintId"`
	URL          string `json:"url"`
	Thumbnail    string `json:"thumbnail"`
	ViewerCount  int    `json:"viewers"`
	IsLive       bool   `json:"isLive"`
}

// FallbackTitle is the synthesized title for a stream whose detail never produced one.
func (s *StreamItem) FallbackTitle() string {
	return "Live Stream of " + s.StreamerName
}

// HasPlaceholderTitle reports whether enrichment has not resolved the title yet.
func (s *StreamItem) HasPlaceholderTitle() bool {
	return s.Title == PlaceholderTitle
}

// Normalize fills read-side defaults for fields a snapshot may carry empty.
func (s *StreamItem) Normalize() {
	if strings.TrimSpace(s.Title) == "" {
		s.Title = defaultViewTitle
	}
	if s.StreamerName == "" {
		s.StreamerName = defaultName
	}
	if s.GameCategory == "" {
		s.GameCategory = defaultName
	}
	if s.URL == "" {
		s.URL = defaultURL
	}
	if s.ViewerCount < 0 {
		s.ViewerCount = 0
	}
}

// CachedStream is the last-known-good projection kept for a featured stream.
type CachedStream struct {
	Title        string `json:"title"`
	Thumbnail    string `json:"thumbnail"`
	ViewerCount  int    `json:"viewerCount"`
	StreamerName string `json:"streamerName"`
	GameCategory string `json:"gameCategory"`
	URL          string `json:"url"`
	MintID       string `json:"mintId"`
}

// NewCachedStream projects a live snapshot item into a cache entry.
func NewCachedStream(s StreamItem) CachedStream {
	return CachedStream{
		Title:        s.Title,
		Thumbnail:    s.Thumbnail,
		ViewerCount:  s.ViewerCount,
		StreamerName: s.StreamerName,
		GameCategory: s.GameCategory,
		URL:          s.URL,
		MintID:       s.MintID,
	}
}

// FeaturedCache maps mintId to its last-known-good projection.
type FeaturedCache map[string]CachedStream

// PublicStreamItem is the shape served by the read API.
type PublicStreamItem struct {
	Title        string `json:"title"`
	Thumbnail    string `json:"thumbnail"`
	ViewerCount  int    `json:"viewerCount"`
	StreamerName string `json:"streamerName"`
	GameCategory string `json:"gameCategory"`
	URL          string `json:"url"`
	Featured     bool   `json:"featured"`
	IsLive       bool   `json:"isLive"`
}

func publicFromSnapshot(s StreamItem, featured bool) PublicStreamItem {
	s.Normalize()
	return PublicStreamItem{
		Title:        s.Title,
		Thumbnail:    s.Thumbnail,
		ViewerCount:  s.ViewerCount,
		StreamerName: s.StreamerName,
		GameCategory: s.GameCategory,
		URL:          s.URL,
		Featured:     featured,
		IsLive:       s.IsLive,
	}
}

// offline placeholder for a featured stream that is not in the snapshot
func publicFromCache(c CachedStream) PublicStreamItem {
	item := StreamItem{
		Title:        c.Title,
		Thumbnail:    c.Thumbnail,
		StreamerName: c.StreamerName,
		GameCategory: c.GameCategory,
		URL:          c.URL,
	}
	item.Normalize()
	return PublicStreamItem{
		Title:        item.Title,
		Thumbnail:    item.Thumbnail,
		ViewerCount:  0,
		StreamerName: item.StreamerName,
		GameCategory: item.GameCategory,
		URL:          item.URL,
		Featured:     true,
		IsLive:       false,
	}
}

// StreamsResponse is the envelope returned by GET /api/streams.
type StreamsResponse struct {
	Streams []PublicStreamItem `json:"streams"`
	Error   string             `json:"error,omitempty"`
}
