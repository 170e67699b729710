package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZaphyrRobin/firstdeploy/service/metrics"
	"github.com/ZaphyrRobin/firstdeploy/service/retry"
	"github.com/ZaphyrRobin/firstdeploy/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// PageFetcher fetches one signature history page. *solana.Client satisfies
// this; tests use scripted stubs.
type PageFetcher interface {
	FetchSignaturePage(ctx context.Context, params solana.FetchPageParams) (solana.SignaturePage, error)
}

const (
	// DefaultPageLimit is the getSignaturesForAddress page size,
	// the provider maximum.
	DefaultPageLimit = 1000

	// DefaultMaxPages bounds the backward walk. 100 pages of 1000
	// signatures is deep enough for any program we have met; beyond that
	// the search stops and reports itself inconclusive rather than loop
	// forever.
	DefaultMaxPages = 100

	// DefaultPageDelay is the courtesy delay between paginated calls.
	DefaultPageDelay = 1 * time.Second

	// MainnetPageDelay is the courtesy delay used against mainnet, where
	// public rate limits are stricter.
	MainnetPageDelay = 5 * time.Second
)

// Engine performs the backward pagination search over a program's
// signature history. A single call only returns the most recent page, so
// the engine walks older pages using the oldest signature of each page as
// the cursor for the next, until the provider returns an empty page.
//
// Pages are fetched strictly sequentially: each cursor depends on the
// previous page's result.
type Engine struct {
	fetcher     PageFetcher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	network     string
	retryPolicy retry.Policy
	pageLimit   int
	maxPages    int
	pageDelay   time.Duration
	sleep       func(time.Duration)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPageLimit sets the per-page signature limit.
func WithPageLimit(n int) EngineOption {
	return func(e *Engine) { e.pageLimit = n }
}

// WithMaxPages sets the pagination safety cap.
func WithMaxPages(n int) EngineOption {
	return func(e *Engine) { e.maxPages = n }
}

// WithPageDelay sets the courtesy delay between paginated calls.
func WithPageDelay(d time.Duration) EngineOption {
	return func(e *Engine) { e.pageDelay = d }
}

// WithRetryPolicy sets the per-page retry policy.
func WithRetryPolicy(p retry.Policy) EngineOption {
	return func(e *Engine) { e.retryPolicy = p }
}

// WithSleep replaces the sleep function, so tests can record delays
// instead of waiting them out.
func WithSleep(sleep func(time.Duration)) EngineOption {
	return func(e *Engine) { e.sleep = sleep }
}

// WithEngineMetrics attaches metrics, labeled with the network name.
func WithEngineMetrics(m *metrics.Metrics, network string) EngineOption {
	return func(e *Engine) {
		e.metrics = m
		e.network = network
	}
}

// NewEngine creates a pagination search engine over the given fetcher.
func NewEngine(fetcher PageFetcher, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		fetcher:     fetcher,
		logger:      logger,
		network:     "devnet",
		retryPolicy: retry.DefaultPolicy(),
		pageLimit:   DefaultPageLimit,
		maxPages:    DefaultMaxPages,
		pageDelay:   DefaultPageDelay,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// isSentinel reports whether a fetch result is the terminal sentinel: the
// provider returned zero records before the cursor, meaning no earlier
// transactions exist.
func isSentinel(timestamp int64, signature string) bool {
	return timestamp == 0 && signature == ""
}

// fetchOldest fetches one page (with retries) and returns its oldest
// record, or the (0, "") sentinel for an empty page.
func (e *Engine) fetchOldest(ctx context.Context, program solanago.PublicKey, before string) (int64, string, error) {
	oldest, err := retry.Do(ctx, e.retryPolicy, e.logger, func() (solana.SignatureRecord, error) {
		page, err := e.fetcher.FetchSignaturePage(ctx, solana.FetchPageParams{
			Address: program,
			Before:  before,
			Limit:   e.pageLimit,
		})
		if err != nil {
			return solana.SignatureRecord{}, err
		}
		record, ok := page.Oldest()
		if !ok {
			return solana.SignatureRecord{}, nil
		}
		return record, nil
	})
	if err != nil {
		return 0, "", err
	}
	return oldest.BlockTime, oldest.Signature, nil
}

// FindFirstTransaction walks the signature history backward and returns
// the block time of the program's very first transaction.
//
// Returns ErrNoTransactions when the history is empty or the initial page
// cannot be fetched, and ErrSearchExhausted when the safety cap is reached
// before the end of history.
func (e *Engine) FindFirstTransaction(ctx context.Context, program solanago.PublicKey) (int64, error) {
	oldestTS, oldestSig, err := e.fetchOldest(ctx, program, "")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoTransactions, err)
	}
	if isSentinel(oldestTS, oldestSig) {
		return 0, ErrNoTransactions
	}

	e.sleep(DefaultPageDelay)
	ts, sig, err := e.fetchOldest(ctx, program, oldestSig)

	for pages := 1; pages < e.maxPages; pages++ {
		if err != nil {
			return 0, fmt.Errorf("page %d fetch failed: %w", pages+1, err)
		}
		if isSentinel(ts, sig) {
			// Nothing exists before the cursor: the previous page's
			// oldest record is the first transaction.
			e.metrics.RecordPagesWalked(e.network, float64(pages))
			e.logger.DebugContext(ctx, "reached end of signature history",
				"program", program.String(),
				"pages", pages,
				"first_timestamp", oldestTS,
			)
			return oldestTS, nil
		}
		if ts >= oldestTS {
			e.logger.WarnContext(ctx, "signature history not monotonically decreasing",
				"program", program.String(),
				"previous_oldest", oldestTS,
				"current_oldest", ts,
			)
		}
		oldestTS, oldestSig = ts, sig
		e.sleep(e.pageDelay)
		ts, sig, err = e.fetchOldest(ctx, program, oldestSig)
	}

	if err != nil {
		return 0, fmt.Errorf("page fetch failed: %w", err)
	}
	e.logger.ErrorContext(ctx, "pagination search gave up",
		"program", program.String(),
		"max_pages", e.maxPages,
	)
	return 0, ErrSearchExhausted
}
