package discovery

import (
	"context"
	"log/slog"

	"github.com/ZaphyrRobin/firstdeploy/service/retry"
	"github.com/ZaphyrRobin/firstdeploy/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Source names, used for logging, metrics labels and event payloads.
const (
	SourceNameHelius = "helius"
	SourceNameRPC    = "rpc"
)

// Source resolves the first-transaction timestamp for a program on the
// given network. Implementations normalize their own failures: callers see
// either a timestamp or an error, never a partial answer.
type Source interface {
	Name() string
	FirstTransactionTimestamp(ctx context.Context, program solanago.PublicKey, mainnet bool) (int64, error)
}

// HeliusSource estimates the first transaction with a single unbounded
// call against a Helius endpoint, taking the last (oldest) record of the
// returned page. This is only correct when the full history fits in one
// page; it is a best-effort estimate, not an exhaustive search.
type HeliusSource struct {
	mainnet     PageFetcher
	devnet      PageFetcher
	retryPolicy retry.Policy
	logger      *slog.Logger
}

// NewHeliusSource creates the single-call source over per-network fetchers.
func NewHeliusSource(mainnetFetcher, devnetFetcher PageFetcher, policy retry.Policy, logger *slog.Logger) *HeliusSource {
	return &HeliusSource{
		mainnet:     mainnetFetcher,
		devnet:      devnetFetcher,
		retryPolicy: policy,
		logger:      logger,
	}
}

// Name implements Source.
func (s *HeliusSource) Name() string { return SourceNameHelius }

// FirstTransactionTimestamp implements Source.
func (s *HeliusSource) FirstTransactionTimestamp(ctx context.Context, program solanago.PublicKey, mainnet bool) (int64, error) {
	fetcher := s.devnet
	if mainnet {
		fetcher = s.mainnet
	}

	s.logger.DebugContext(ctx, "helius lookup start", "program", program.String(), "mainnet", mainnet)

	// The whole call is retried as a unit. An empty page is permanent:
	// retrying won't make history appear.
	oldest, err := retry.Do(ctx, s.retryPolicy, s.logger, func() (solana.SignatureRecord, error) {
		page, err := fetcher.FetchSignaturePage(ctx, solana.FetchPageParams{Address: program})
		if err != nil {
			return solana.SignatureRecord{}, err
		}
		record, ok := page.Oldest()
		if !ok {
			return solana.SignatureRecord{}, retry.Permanent(ErrNoTransactions)
		}
		return record, nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "helius lookup failed",
			"program", program.String(),
			"error", err,
		)
		return 0, err
	}

	s.logger.DebugContext(ctx, "helius lookup done",
		"program", program.String(),
		"timestamp", oldest.BlockTime,
		"signature", oldest.Signature,
	)
	return oldest.BlockTime, nil
}

// RPCSource finds the true first transaction with the full backward
// pagination search against the public RPC endpoints.
type RPCSource struct {
	mainnet *Engine
	devnet  *Engine
}

// NewRPCSource creates the pagination source over per-network engines.
func NewRPCSource(mainnetEngine, devnetEngine *Engine) *RPCSource {
	return &RPCSource{
		mainnet: mainnetEngine,
		devnet:  devnetEngine,
	}
}

// Name implements Source.
func (s *RPCSource) Name() string { return SourceNameRPC }

// FirstTransactionTimestamp implements Source.
func (s *RPCSource) FirstTransactionTimestamp(ctx context.Context, program solanago.PublicKey, mainnet bool) (int64, error) {
	engine := s.devnet
	if mainnet {
		engine = s.mainnet
	}
	return engine.FindFirstTransaction(ctx, program)
}
