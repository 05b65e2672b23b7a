package pumpfun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"livewall/internal/stream"
	"livewall/pkg/telemetry"
	utils "livewall/pkg/utils"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	DefaultListingURL = "https://frontend-api-v3.pump.fun/coins/currently-live"
	DefaultDetailURL  = "https://livestream-api.pump.fun/livestream"

	streamURLPrefix = "https://pump.fun/"
	unknownStreamer = "Unknown"

	defaultTimeoutRetries = 3
	defaultTimeoutPause   = 2 * time.Second
)

// ErrUnexpectedStatus is wrapped by upstream calls answering anything but 200.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Options configures a Client. Zero values fall back to the production defaults.
type Options struct {
	ListingURL     string
	DetailURL      string
	PageSize       int
	ListingTimeout time.Duration
	DetailTimeout  time.Duration
	// PageDelay is the minimum spacing between listing page requests.
	PageDelay time.Duration
	// DetailRatePerSec caps detail requests per second; 0 leaves them unlimited.
	DetailRatePerSec int
	ThumbnailGateway string

	// TimeoutRetries bounds attempts at one listing offset when the page times out.
	TimeoutRetries int
	TimeoutPause   time.Duration

	HTTPClient *http.Client
}

// Client talks to the pump.fun listing and livestream detail endpoints.
type Client struct {
	opts          Options
	httpClient    *http.Client
	pageLimiter   *rate.Limiter
	detailLimiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.ListingURL == "" {
		opts.ListingURL = DefaultListingURL
	}
	if opts.DetailURL == "" {
		opts.DetailURL = DefaultDetailURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 60
	}
	if opts.ListingTimeout <= 0 {
		opts.ListingTimeout = 15 * time.Second
	}
	if opts.DetailTimeout <= 0 {
		opts.DetailTimeout = 10 * time.Second
	}
	if opts.TimeoutRetries <= 0 {
		opts.TimeoutRetries = defaultTimeoutRetries
	}
	if opts.TimeoutPause <= 0 {
		opts.TimeoutPause = defaultTimeoutPause
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	pageLimit := rate.Inf
	if opts.PageDelay > 0 {
		pageLimit = rate.Every(opts.PageDelay)
	}

	c := &Client{
		opts:        opts,
		httpClient:  httpClient,
		pageLimiter: rate.NewLimiter(pageLimit, 1),
	}
	if opts.DetailRatePerSec > 0 {
		c.detailLimiter = rate.NewLimiter(rate.Limit(opts.DetailRatePerSec), opts.DetailRatePerSec)
	}
	return c
}

// FetchListing pages through the currently-live listing and returns one
// candidate per mintId, in listing order, with placeholder detail fields.
// Blacklisted and repeated mintIds are dropped while paging.
//
// Paging ends on a short or empty page. A page that times out is retried at
// the same offset; any other failure aborts the whole listing, which is logged
// and reported as an empty listing. ctx is checked before every page request;
// a cancelled ctx yields an empty result together with ctx's error.
func (c *Client) FetchListing(ctx context.Context, blacklist stream.IDSet) ([]stream.StreamItem, error) {
	ctx, span := telemetry.Tracer("pumpfun").Start(ctx, "pumpfun.listing")
	defer span.End()

	candidates := []stream.StreamItem{}
	seen := stream.IDSet{}
	offset, pages, skipped := 0, 0, 0

	for {
		if err := ctx.Err(); err != nil {
			return []stream.StreamItem{}, err
		}
		if err := c.pageLimiter.Wait(ctx); err != nil {
			return []stream.StreamItem{}, err
		}

		coins, err := c.fetchPageWithRetry(ctx, offset)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return []stream.StreamItem{}, ctxErr
			}
			utils.WithFields(logrus.Fields{
				"offset": offset,
				"error":  err.Error(),
			}).Error("Error fetching listing page, aborting listing")
			span.RecordError(err)
			return []stream.StreamItem{}, nil
		}
		pages++

		for _, coin := range coins {
			if coin.Mint == "" || blacklist.Has(coin.Mint) || seen.Has(coin.Mint) {
				skipped++
				continue
			}
			seen[coin.Mint] = struct{}{}
			candidates = append(candidates, c.candidate(coin))
		}

		if len(coins) < c.opts.PageSize {
			break
		}
		offset += c.opts.PageSize
	}

	span.SetAttributes(
		attribute.Int("listing.pages", pages),
		attribute.Int("listing.candidates", len(candidates)),
		attribute.Int("listing.skipped", skipped),
	)
	utils.WithFields(logrus.Fields{
		"pages":      pages,
		"candidates": len(candidates),
		"skipped":    skipped,
	}).Info("Listing fetched")
	return candidates, nil
}

func (c *Client) candidate(coin Coin) stream.StreamItem {
	name := unknownStreamer
	if coin.Name != nil && *coin.Name != "" {
		name = *coin.Name
	}
	return stream.StreamItem{
		Title:        stream.PlaceholderTitle,
		StreamerName: name,
		GameCategory: stream.DefaultCategory,
		MintID:       coin.Mint,
		URL:          streamURLPrefix + coin.Mint,
		Thumbnail:    NormalizeThumbnail(coin.ImageURI, c.opts.ThumbnailGateway),
		ViewerCount:  0,
		IsLive:       false,
	}
}

// fetchPageWithRetry retries timed out page requests at a constant pause, up
// to TimeoutRetries attempts. Other errors are returned at once.
func (c *Client) fetchPageWithRetry(ctx context.Context, offset int) ([]Coin, error) {
	attempts := 0
	coins, err := backoff.Retry(ctx, func() ([]Coin, error) {
		attempts++
		coins, err := c.fetchPage(ctx, offset)
		if err != nil && !isTimeout(err) {
			return nil, backoff.Permanent(err)
		}
		return coins, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.TimeoutPause)),
		backoff.WithMaxTries(uint(c.opts.TimeoutRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			utils.WithFields(logrus.Fields{
				"offset":   offset,
				"attempt":  attempts,
				"retry_in": next.String(),
			}).Warn("Listing page timed out, retrying")
		}),
	)
	if err != nil && isTimeout(err) && ctx.Err() == nil {
		return nil, fmt.Errorf("listing offset %d timed out %d times: %w", offset, attempts, err)
	}
	return coins, err
}

func (c *Client) fetchPage(ctx context.Context, offset int) ([]Coin, error) {
	u, err := url.Parse(c.opts.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url: %w", err)
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(c.opts.PageSize))
	q.Set("sort", "currently_live")
	q.Set("order", "DESC")
	q.Set("includeNsfw", "false")
	u.RawQuery = q.Encode()

	var coins []Coin
	if err := c.doRequest(ctx, u.String(), c.opts.ListingTimeout, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// GetDetail requests the livestream detail for one mintId.
func (c *Client) GetDetail(ctx context.Context, mintID string) (Detail, error) {
	u, err := url.Parse(c.opts.DetailURL)
	if err != nil {
		return Detail{}, fmt.Errorf("invalid detail url: %w", err)
	}
	q := u.Query()
	q.Set("mintId", mintID)
	u.RawQuery = q.Encode()

	if c.detailLimiter != nil {
		if err := c.detailLimiter.Wait(context.WithoutCancel(ctx)); err != nil {
			return Detail{}, err
		}
	}

	var detail Detail
	if err := c.doRequest(ctx, u.String(), c.opts.DetailTimeout, &detail); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// FetchDetail fills viewer count, live status and title of item from the
// detail endpoint. On any failure viewers drop to 0 and the item is marked
// offline; the title is left untouched. It reports whether the request succeeded.
func (c *Client) FetchDetail(ctx context.Context, item *stream.StreamItem) bool {
	detail, err := c.GetDetail(ctx, item.MintID)
	if err != nil {
		utils.WithFields(logrus.Fields{
			"mint_id": item.MintID,
			"error":   err.Error(),
		}).Warn("Failed to fetch stream detail")
		item.ViewerCount = 0
		item.IsLive = false
		return false
	}
	item.ViewerCount = detail.Viewers()
	item.IsLive = detail.Live()
	item.Title = detail.TitleOr(item.Title)
	return true
}

// doRequest issues a GET bounded by timeout and decodes a 200 body into result.
// The request is detached from ctx cancellation so shutdown never cuts a call short.
func (c *Client) doRequest(ctx context.Context, target string, timeout time.Duration, result interface{}) error {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: %w: %d", req.URL.Path, ErrUnexpectedStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
