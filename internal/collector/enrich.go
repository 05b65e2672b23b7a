package collector

import (
	"context"

	"livewall/internal/stream"
	utils "livewall/pkg/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ListingFetcher produces the candidate set for one cycle.
type ListingFetcher interface {
	FetchListing(ctx context.Context, blacklist stream.IDSet) ([]stream.StreamItem, error)
}

// DetailFetcher fills the detail fields of one candidate in place. It never
// fails past its own boundary; the return value only reports whether the
// upstream answered.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, item *stream.StreamItem) bool
}

// Enricher resolves viewer counts, live status and titles for candidates.
type Enricher struct {
	details     DetailFetcher
	concurrency int
}

func NewEnricher(details DetailFetcher, concurrency int) *Enricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Enricher{
		details:     details,
		concurrency: concurrency,
	}
}

// Enrich runs the detail fan-out over every candidate, waits for all of it,
// retries unresolved titles one at a time and returns the live candidates in
// their original order.
//
// Once ctx is cancelled no new detail request starts; candidates left over are
// marked offline.
func (e *Enricher) Enrich(ctx context.Context, candidates []stream.StreamItem) []stream.StreamItem {
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range candidates {
		item := &candidates[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				item.ViewerCount = 0
				item.IsLive = false
				return nil
			}
			e.details.FetchDetail(ctx, item)
			return nil
		})
	}
	g.Wait()

	retried, resolved := 0, 0
	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		item := &candidates[i]
		if !item.HasPlaceholderTitle() {
			continue
		}
		retried++

		attempt := *item
		if !e.details.FetchDetail(ctx, &attempt) {
			// keep the first pass viewers and live status
			item.Title = item.FallbackTitle()
			continue
		}
		resolved++
		item.ViewerCount = attempt.ViewerCount
		item.IsLive = attempt.IsLive
		if attempt.HasPlaceholderTitle() {
			item.Title = item.FallbackTitle()
		} else {
			item.Title = attempt.Title
		}
	}
	if retried > 0 {
		utils.WithFields(logrus.Fields{
			"retried":  retried,
			"resolved": resolved,
		}).Info("Retried unresolved stream titles")
	}

	live := make([]stream.StreamItem, 0, len(candidates))
	for _, item := range candidates {
		if item.IsLive {
			live = append(live, item)
		}
	}
	return live
}
