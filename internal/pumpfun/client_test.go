package pumpfun

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"livewall/internal/stream"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coins(prefix string, n int) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s%d", prefix, i)
		out = append(out, map[string]interface{}{
			"mint":      id,
			"name":      "name-" + id,
			"image_uri": "https://cf-ipfs.com/ipfs/" + id,
		})
	}
	return out
}

// listingServer answers successive listing pages from pages, keyed by offset.
func listingServer(t *testing.T, pageSize int, pages ...[]map[string]interface{}) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		assert.Equal(t, strconv.Itoa(pageSize), q.Get("limit"))
		assert.Equal(t, "currently_live", q.Get("sort"))
		assert.Equal(t, "DESC", q.Get("order"))
		assert.Equal(t, "false", q.Get("includeNsfw"))

		offset, err := strconv.Atoi(q.Get("offset"))
		assert.NoError(t, err)
		idx := offset / pageSize
		page := []map[string]interface{}{}
		if idx < len(pages) {
			page = pages[idx]
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testClient(listingURL, detailURL string) *Client {
	return NewClient(Options{
		ListingURL:       listingURL,
		DetailURL:        detailURL,
		PageSize:         60,
		ListingTimeout:   time.Second,
		DetailTimeout:    time.Second,
		ThumbnailGateway: "ipfs.io",
		TimeoutPause:     time.Millisecond,
		HTTPClient:       &http.Client{},
	})
}

func TestFetchListing_PagingStops(t *testing.T) {
	tests := []struct {
		name      string
		pages     []int
		wantCalls int32
		wantItems int
	}{
		{"short second page", []int{60, 10}, 2, 70},
		{"short third page", []int{60, 60, 5}, 3, 125},
		{"empty page", []int{60, 0}, 2, 60},
		{"single short page", []int{3}, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := make([][]map[string]interface{}, 0, len(tt.pages))
			for i, n := range tt.pages {
				pages = append(pages, coins(fmt.Sprintf("p%d-", i), n))
			}
			srv, calls := listingServer(t, 60, pages...)

			items, err := testClient(srv.URL, srv.URL).FetchListing(context.Background(), stream.IDSet{})
			require.NoError(t, err)
			require.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
			require.Len(t, items, tt.wantItems)
		})
	}
}

func TestFetchListing_BuildsCandidates(t *testing.T) {
	page := []map[string]interface{}{
		{"mint": "M1", "name": "alpha", "image_uri": "https://cf-ipfs.com/ipfs/Qm1?x=1"},
		{"mint": "", "name": "no mint"},
		{"mint": "M2", "name": nil, "image_uri": "https://example.com/a.png"},
		{"name": "missing mint"},
	}
	srv, _ := listingServer(t, 60, page)

	items, err := testClient(srv.URL, srv.URL).FetchListing(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Equal(t, stream.StreamItem{
		Title:        "Unknown Title",
		StreamerName: "alpha",
		GameCategory: "Crypto",
		MintID:       "M1",
		URL:          "https://pump.fun/M1",
		Thumbnail:    "https://ipfs.io/ipfs/Qm1?x=1",
	}, items[0])
	require.Equal(t, "Unknown", items[1].StreamerName)
	require.Equal(t, "https://example.com/a.png", items[1].Thumbnail)
}

func TestFetchListing_BlacklistNeverLeaks(t *testing.T) {
	first := coins("a", 60)
	second := coins("b", 60)
	third := coins("c", 7)
	srv, _ := listingServer(t, 60, first, second, third)

	blacklist := stream.NewIDSet("a0", "a59", "b17", "c6")
	items, err := testClient(srv.URL, srv.URL).FetchListing(context.Background(), blacklist)
	require.NoError(t, err)
	require.Len(t, items, 127-4)
	for _, item := range items {
		require.False(t, blacklist.Has(item.MintID), "blacklisted %s leaked", item.MintID)
	}
}

func TestFetchListing_DropsRepeatsAcrossPages(t *testing.T) {
	first := coins("a", 60)
	second := append(coins("a", 2), coins("b", 3)...)
	srv, _ := listingServer(t, 60, first, second)

	items, err := testClient(srv.URL, srv.URL).FetchListing(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, items, 63)
	require.Equal(t, "a0", items[0].MintID)
	require.Equal(t, "b0", items[60].MintID)
}

func TestFetchListing_ErrorAbortsWithEmptyResult(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			json.NewEncoder(w).Encode(coins("a", 60))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	items, err := testClient(srv.URL, srv.URL).FetchListing(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchPageWithRetry_StatusErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, srv.URL).fetchPageWithRetry(context.Background(), 0)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchListing_RetriesTimedOutPage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		json.NewEncoder(w).Encode(coins("a", 3))
	}))
	defer srv.Close()

	c := testClient(srv.URL, srv.URL)
	c.opts.ListingTimeout = 50 * time.Millisecond

	items, err := c.FetchListing(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchListing_GivesUpAfterRepeatedTimeouts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	c := testClient(srv.URL, srv.URL)
	c.opts.ListingTimeout = 20 * time.Millisecond

	_, err := c.fetchPageWithRetry(context.Background(), 0)
	require.Error(t, err)
	require.True(t, isTimeout(err))
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))

	items, err := c.FetchListing(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestFetchListing_StopsWhenCancelled(t *testing.T) {
	srv, calls := listingServer(t, 60, coins("a", 60), coins("b", 60), coins("c", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := testClient(srv.URL, srv.URL).FetchListing(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, items)
	require.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func detailServer(t *testing.T, handler func(mintID string, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(r.URL.Query().Get("mintId"), w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchDetail_Success(t *testing.T) {
	srv := detailServer(t, func(mintID string, w http.ResponseWriter) {
		assert.Equal(t, "M1", mintID)
		w.Write([]byte(`{"numParticipants": 42, "isLive": true, "title": "gm"}`))
	})

	item := stream.StreamItem{MintID: "M1", Title: stream.PlaceholderTitle}
	ok := testClient(srv.URL, srv.URL).FetchDetail(context.Background(), &item)
	require.True(t, ok)
	require.Equal(t, 42, item.ViewerCount)
	require.True(t, item.IsLive)
	require.Equal(t, "gm", item.Title)
}

func TestFetchDetail_MissingFieldsUseDefaults(t *testing.T) {
	srv := detailServer(t, func(_ string, w http.ResponseWriter) {
		w.Write([]byte(`{"title": ""}`))
	})

	item := stream.StreamItem{MintID: "M1", Title: stream.PlaceholderTitle, ViewerCount: 9, IsLive: true}
	ok := testClient(srv.URL, srv.URL).FetchDetail(context.Background(), &item)
	require.True(t, ok)
	require.Equal(t, 0, item.ViewerCount)
	require.False(t, item.IsLive)
	require.Equal(t, stream.PlaceholderTitle, item.Title)
}

func TestFetchDetail_FailuresApplySafeDefaults(t *testing.T) {
	tests := []struct {
		name    string
		handler func(string, http.ResponseWriter)
	}{
		{"non-200", func(_ string, w http.ResponseWriter) { w.WriteHeader(http.StatusNotFound) }},
		{"bad body", func(_ string, w http.ResponseWriter) { w.Write([]byte(`{"numParticipants":`)) }},
		{"timeout", func(_ string, w http.ResponseWriter) { time.Sleep(100 * time.Millisecond) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := detailServer(t, tt.handler)
			c := testClient(srv.URL, srv.URL)
			c.opts.DetailTimeout = 20 * time.Millisecond

			item := stream.StreamItem{MintID: "M1", Title: "kept", ViewerCount: 5, IsLive: true}
			ok := c.FetchDetail(context.Background(), &item)
			require.False(t, ok)
			require.Equal(t, 0, item.ViewerCount)
			require.False(t, item.IsLive)
			require.Equal(t, "kept", item.Title)
		})
	}
}

func TestFetchDetail_CancelledContextDoesNotAbortRequest(t *testing.T) {
	srv := detailServer(t, func(_ string, w http.ResponseWriter) {
		time.Sleep(30 * time.Millisecond)
		w.Write([]byte(`{"numParticipants": 1, "isLive": true}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	item := stream.StreamItem{MintID: "M1"}
	require.True(t, testClient(srv.URL, srv.URL).FetchDetail(ctx, &item))
	require.True(t, item.IsLive)
}

func TestDetail_TitleOr(t *testing.T) {
	blank, empty, set := "  ", "", "gm"
	tests := []struct {
		name  string
		title *string
		want  string
	}{
		{"absent", nil, "fallback"},
		{"empty", &empty, "fallback"},
		{"whitespace is a title", &blank, "  "},
		{"set", &set, "gm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Detail{Title: tt.title}.TitleOr("fallback"))
		})
	}
}

func TestGetDetail_WrapsUnexpectedStatus(t *testing.T) {
	srv := detailServer(t, func(_ string, w http.ResponseWriter) { w.WriteHeader(http.StatusTooManyRequests) })

	_, err := testClient(srv.URL, srv.URL).GetDetail(context.Background(), "M1")
	require.True(t, errors.Is(err, ErrUnexpectedStatus))
}
