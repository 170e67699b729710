package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ZaphyrRobin/firstdeploy/service/metrics"
	natspub "github.com/ZaphyrRobin/firstdeploy/service/nats"
	solanago "github.com/gagliardetto/solana-go"
)

// Cache is the key-value capability the discoverer memoizes results in.
type Cache interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, value int64) error
	Delete(ctx context.Context, key string) error
}

// Result is a resolved first-transaction answer.
type Result struct {
	UnixTimestamp int64
	UTCTime       time.Time
}

func newResult(timestamp int64) *Result {
	return &Result{
		UnixTimestamp: timestamp,
		UTCTime:       time.Unix(timestamp, 0).UTC(),
	}
}

// CacheKey builds the result cache key for a (program, network) pair.
func CacheKey(programID string, mainnet bool) string {
	return fmt.Sprintf("program_first_deployment_timestamp:%s:%t", programID, mainnet)
}

// NetworkName returns the metrics/event label for a network flag.
func NetworkName(mainnet bool) string {
	if mainnet {
		return "mainnet"
	}
	return "devnet"
}

// Discoverer answers "when was this program first used" by picking one of
// the configured sources at random, memoizing answers in the cache. The
// randomization spreads load across providers with different rate limits.
type Discoverer struct {
	sources   []Source
	cache     Cache
	pick      func(n int) int
	publisher natspub.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithPick replaces the source selection function, so tests (and the
// --source flag) can force a deterministic choice.
func WithPick(pick func(n int) int) DiscovererOption {
	return func(d *Discoverer) { d.pick = pick }
}

// WithPublisher attaches a NATS publisher; each successful discovery is
// published best-effort.
func WithPublisher(p natspub.Publisher) DiscovererOption {
	return func(d *Discoverer) { d.publisher = p }
}

// WithMetrics attaches metrics.
func WithMetrics(m *metrics.Metrics) DiscovererOption {
	return func(d *Discoverer) { d.metrics = m }
}

// NewDiscoverer creates a Discoverer over the given sources and cache.
func NewDiscoverer(sources []Source, cache Cache, logger *slog.Logger, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		sources: sources,
		cache:   cache,
		pick:    rand.Intn,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover returns the first-transaction timestamp for the program, from
// cache when possible. All source failures are normalized into an error
// return; this is the boundary above which nothing partial escapes.
func (d *Discoverer) Discover(ctx context.Context, program solanago.PublicKey, mainnet bool) (*Result, error) {
	key := CacheKey(program.String(), mainnet)

	value, ok, err := d.cache.Get(ctx, key)
	switch {
	case err != nil:
		// A broken cache degrades to a network lookup.
		d.metrics.RecordCacheLookup("error")
		d.logger.WarnContext(ctx, "cache lookup failed", "key", key, "error", err)
	case ok:
		d.metrics.RecordCacheLookup("hit")
		d.logger.DebugContext(ctx, "cache hit", "key", key, "value", value)
		return newResult(value), nil
	default:
		d.metrics.RecordCacheLookup("miss")
	}

	if len(d.sources) == 0 {
		return nil, errors.New("no discovery sources configured")
	}
	source := d.sources[d.pick(len(d.sources))]
	d.logger.DebugContext(ctx, "picked source",
		"source", source.Name(),
		"program", program.String(),
		"mainnet", mainnet,
	)

	timestamp, err := source.FirstTransactionTimestamp(ctx, program, mainnet)
	if err != nil {
		d.metrics.RecordDiscovery(source.Name(), "error")
		d.logger.ErrorContext(ctx, "discovery failed",
			"source", source.Name(),
			"program", program.String(),
			"error", err,
		)
		return nil, err
	}
	if timestamp <= 0 {
		d.metrics.RecordDiscovery(source.Name(), "error")
		return nil, fmt.Errorf("%w: source %s returned no timestamp", ErrNoTransactions, source.Name())
	}
	d.metrics.RecordDiscovery(source.Name(), "success")

	if err := d.cache.Set(ctx, key, timestamp); err != nil {
		// The discovery succeeded; losing the memoization is not a
		// reason to fail the request.
		d.metrics.RecordCacheWrite("error")
		d.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	} else {
		d.metrics.RecordCacheWrite("success")
		d.logger.DebugContext(ctx, "cached result", "key", key, "value", timestamp)
	}

	d.publishResult(ctx, program, mainnet, timestamp, source.Name())

	return newResult(timestamp), nil
}

// publishResult publishes a discovery event best-effort.
func (d *Discoverer) publishResult(ctx context.Context, program solanago.PublicKey, mainnet bool, timestamp int64, sourceName string) {
	if d.publisher == nil {
		return
	}

	event := &natspub.DiscoveryEvent{
		ProgramID:                 program.String(),
		Network:                   NetworkName(mainnet),
		FirstTransactionTimestamp: timestamp,
		FirstTransactionTime:      time.Unix(timestamp, 0).UTC(),
		Source:                    sourceName,
		PublishedAt:               time.Now().UTC(),
	}
	if err := d.publisher.PublishDiscovery(ctx, event); err != nil {
		d.metrics.RecordNATSPublish("error")
		d.logger.WarnContext(ctx, "failed to publish discovery event",
			"program", event.ProgramID,
			"error", err,
		)
		return
	}
	d.metrics.RecordNATSPublish("success")
}
