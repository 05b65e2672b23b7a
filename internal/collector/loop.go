package collector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"livewall/internal/stream"
	"livewall/pkg/telemetry"
	utils "livewall/pkg/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// State is the phase the collection loop is currently in.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateEnriching
	StatePersisting
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateEnriching:
		return "enriching"
	case StatePersisting:
		return "persisting"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrPersistFailed marks a cycle whose snapshot could not be written.
var ErrPersistFailed = errors.New("snapshot persist failed")

// Store is the part of the record store the collector touches.
type Store interface {
	LoadBlacklist() (stream.IDSet, error)
	SaveSnapshot(items []stream.StreamItem) error
}

// Config holds the loop cadence.
type Config struct {
	// Interval is the pause between completed cycles (default: 90s)
	Interval time.Duration
	// ErrorBackoff is the pause after a failed fetch or enrichment (default: 30s)
	ErrorBackoff time.Duration
	// Checkpoint is how often a sleeping loop looks for shutdown (default: 1s)
	Checkpoint time.Duration
	// EnrichConcurrency caps in-flight detail requests (default: 16)
	EnrichConcurrency int
}

// DefaultConfig returns the production cadence
func DefaultConfig() Config {
	return Config{
		Interval:          90 * time.Second,
		ErrorBackoff:      30 * time.Second,
		Checkpoint:        time.Second,
		EnrichConcurrency: 16,
	}
}

// CycleResult describes one completed cycle.
type CycleResult struct {
	ID         string
	Candidates int
	Live       int
	Elapsed    time.Duration
}

// Collector owns the snapshot: it is the only writer.
type Collector struct {
	config    Config
	listing   ListingFetcher
	enricher  *Enricher
	store     Store
	onPersist func(CycleResult)

	state atomic.Int32
}

func NewCollector(listing ListingFetcher, details DetailFetcher, store Store, config Config) *Collector {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = defaults.ErrorBackoff
	}
	if config.Checkpoint <= 0 {
		config.Checkpoint = defaults.Checkpoint
	}
	if config.EnrichConcurrency <= 0 {
		config.EnrichConcurrency = defaults.EnrichConcurrency
	}
	return &Collector{
		config:   config,
		listing:  listing,
		enricher: NewEnricher(details, config.EnrichConcurrency),
		store:    store,
	}
}

// OnPersist registers fn to run after every successfully written snapshot.
func (c *Collector) OnPersist(fn func(CycleResult)) {
	c.onPersist = fn
}

func (c *Collector) State() State {
	return State(c.state.Load())
}

func (c *Collector) setState(s State) {
	c.state.Store(int32(s))
}

// Run repeats collection cycles until ctx is cancelled. A cycle that fails
// before persisting is followed by the error back-off instead of the regular
// interval. Run never writes a snapshot once ctx is done.
func (c *Collector) Run(ctx context.Context) error {
	utils.WithFields(logrus.Fields{
		"interval": c.config.Interval.String(),
		"backoff":  c.config.ErrorBackoff.String(),
	}).Info("Collector started")

	for ctx.Err() == nil {
		wait := c.config.Interval
		if _, err := c.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			if !errors.Is(err, ErrPersistFailed) {
				wait = c.config.ErrorBackoff
			}
			utils.WithFields(logrus.Fields{
				"error": err.Error(),
				"wait":  wait.String(),
			}).Error("Collection cycle failed")
		}

		c.setState(StateSleeping)
		if !c.sleep(ctx, wait) {
			break
		}
	}

	c.setState(StateStopped)
	utils.Info("Collector stopped")
	return nil
}

// RunOnce performs one full cycle: listing, enrichment, live filter, persist.
// A failed listing counts as an empty one, so the snapshot is still replaced.
// Nothing is written when ctx is cancelled before the persist step.
func (c *Collector) RunOnce(ctx context.Context) (result CycleResult, err error) {
	result.ID = uuid.New().String()
	start := time.Now()
	log := utils.WithField("cycle_id", result.ID)

	ctx, span := telemetry.Tracer("collector").Start(ctx, "collector.cycle")
	defer span.End()
	span.SetAttributes(attribute.String("cycle.id", result.ID))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collection cycle panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
		}
	}()

	c.setState(StateFetching)
	blacklist, loadErr := c.store.LoadBlacklist()
	if loadErr != nil {
		log.WithField("error", loadErr.Error()).Warn("Error loading blacklist, using empty set")
		blacklist = stream.IDSet{}
	}

	candidates, listErr := c.listing.FetchListing(ctx, blacklist)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if listErr != nil {
		log.WithField("error", listErr.Error()).Error("Error fetching listing, treating as no live streams")
		candidates = []stream.StreamItem{}
	}
	result.Candidates = len(candidates)

	c.setState(StateEnriching)
	live := c.enricher.Enrich(ctx, candidates)
	result.Live = len(live)
	if err := ctx.Err(); err != nil {
		log.Info("Shutdown requested, discarding cycle")
		return result, err
	}

	c.setState(StatePersisting)
	if err := c.store.SaveSnapshot(live); err != nil {
		log.WithField("error", err.Error()).Error("Error saving snapshot, keeping previous")
		return result, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	result.Elapsed = time.Since(start)

	span.SetAttributes(
		attribute.Int("cycle.candidates", result.Candidates),
		attribute.Int("cycle.live", result.Live),
	)
	log.WithFields(logrus.Fields{
		"candidates": result.Candidates,
		"live":       result.Live,
		"elapsed":    result.Elapsed.Round(time.Millisecond).String(),
	}).Info("Collected live streams")

	if c.onPersist != nil {
		c.onPersist(result)
	}
	return result, nil
}

// sleep waits d in checkpoint steps and reports false if ctx ended first.
func (c *Collector) sleep(ctx context.Context, d time.Duration) bool {
	ticker := time.NewTicker(c.config.Checkpoint)
	defer ticker.Stop()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return ctx.Err() == nil
}
