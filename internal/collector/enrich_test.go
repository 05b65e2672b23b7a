package collector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"livewall/internal/stream"

	"github.com/stretchr/testify/require"
)

// detailResult is the scripted answer for one request.
type detailResult struct {
	ok      bool
	viewers int
	live    bool
	title   string
}

// fakeDetails replays scripted answers per mintId, one per call.
type fakeDetails struct {
	mu       sync.Mutex
	script   map[string][]detailResult
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func newFakeDetails(script map[string][]detailResult) *fakeDetails {
	return &fakeDetails{script: script, calls: map[string]int{}}
}

func (f *fakeDetails) FetchDetail(ctx context.Context, item *stream.StreamItem) bool {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	idx := f.calls[item.MintID]
	f.calls[item.MintID]++
	answers := f.script[item.MintID]
	f.mu.Unlock()

	res := detailResult{ok: true, live: true, viewers: 1, title: "title-" + item.MintID}
	if idx < len(answers) {
		res = answers[idx]
	}
	if !res.ok {
		item.ViewerCount = 0
		item.IsLive = false
		return false
	}
	item.ViewerCount = res.viewers
	item.IsLive = res.live
	if res.title != "" {
		item.Title = res.title
	}
	return true
}

func (f *fakeDetails) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func candidates(ids ...string) []stream.StreamItem {
	items := make([]stream.StreamItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, stream.StreamItem{
			Title:        stream.PlaceholderTitle,
			StreamerName: "name-" + id,
			GameCategory: stream.DefaultCategory,
			MintID:       id,
			URL:          "https://pump.fun/" + id,
		})
	}
	return items
}

func TestEnrich_ReturnsOnlyLiveInOrder(t *testing.T) {
	details := newFakeDetails(map[string][]detailResult{
		"B": {{ok: true, live: false, title: "offline"}},
		"D": {{ok: false}, {ok: false}},
	})

	got := NewEnricher(details, 4).Enrich(context.Background(), candidates("A", "B", "C", "D", "E"))

	ids := []string{}
	for _, item := range got {
		require.True(t, item.IsLive)
		ids = append(ids, item.MintID)
	}
	require.Equal(t, []string{"A", "C", "E"}, ids)
}

func TestEnrich_FallbackTitleAfterTwoFailures(t *testing.T) {
	// A is live on the first pass but never gets a title
	details := newFakeDetails(map[string][]detailResult{
		"A": {{ok: true, live: true, viewers: 7}, {ok: false}},
		"B": {{ok: false}, {ok: false}},
	})

	items := candidates("A", "B")
	got := NewEnricher(details, 2).Enrich(context.Background(), items)

	require.Len(t, got, 1)
	require.Equal(t, "Live Stream of name-A", got[0].Title)
	require.Equal(t, 7, got[0].ViewerCount, "failed retry keeps first pass viewers")
	require.True(t, got[0].IsLive)

	require.Equal(t, "Live Stream of name-B", items[1].Title)
	for _, item := range items {
		require.NotEqual(t, stream.PlaceholderTitle, item.Title)
	}
}

func TestEnrich_RetryResolvesTitleAndRefreshesDetail(t *testing.T) {
	details := newFakeDetails(map[string][]detailResult{
		"A": {{ok: false}, {ok: true, live: true, viewers: 11, title: "resolved"}},
		"B": {{ok: true, live: true, viewers: 3}, {ok: true, live: true, viewers: 4}},
	})

	got := NewEnricher(details, 2).Enrich(context.Background(), candidates("A", "B"))

	require.Len(t, got, 2)
	require.Equal(t, "resolved", got[0].Title)
	require.Equal(t, 11, got[0].ViewerCount)
	require.Equal(t, "Live Stream of name-B", got[1].Title, "successful retry without a title falls back")
	require.Equal(t, 4, got[1].ViewerCount)
}

func TestEnrich_ResolvedTitlesAreNotRetried(t *testing.T) {
	details := newFakeDetails(nil)

	NewEnricher(details, 2).Enrich(context.Background(), candidates("A", "B", "C"))

	for _, id := range []string{"A", "B", "C"} {
		require.Equal(t, 1, details.callsFor(id))
	}
}

func TestEnrich_RespectsConcurrencyLimit(t *testing.T) {
	details := newFakeDetails(nil)
	details.delay = 5 * time.Millisecond

	ids := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		ids = append(ids, fmt.Sprintf("M%d", i))
	}
	got := NewEnricher(details, 3).Enrich(context.Background(), candidates(ids...))

	require.Len(t, got, 40)
	require.LessOrEqual(t, details.peak.Load(), int32(3))
}

func TestEnrich_CancelledContextStartsNoRequests(t *testing.T) {
	details := newFakeDetails(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewEnricher(details, 2).Enrich(ctx, candidates("A", "B"))

	require.Empty(t, got)
	require.Equal(t, 0, details.callsFor("A"))
	require.Equal(t, 0, details.callsFor("B"))
}
