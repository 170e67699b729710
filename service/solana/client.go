package solana

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZaphyrRobin/firstdeploy/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real
// Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)
}

// Client fetches signature history pages for an address.
// It wraps the RPC client with our domain model and metrics. Retry policy
// is deliberately not applied here; callers decide how to retry.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // endpoint identifier for metrics (e.g. "helius-mainnet")
}

// NewClient creates a new Solana client. The endpoint parameter is used
// for metrics labeling. If m is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// FetchPageParams contains parameters for fetching one signature page.
type FetchPageParams struct {
	Address solana.PublicKey
	// Before is the pagination cursor: only transactions strictly older
	// than this signature are returned. Empty means start from the most
	// recent transaction.
	Before string
	// Limit bounds the page size. Zero means the provider default.
	Limit int
}

// FetchSignaturePage performs exactly one getSignaturesForAddress call and
// converts the response into a SignaturePage (newest-first). A record
// without a block time makes the whole page a parse failure, since the
// oldest record is what the search advances on.
func (c *Client) FetchSignaturePage(ctx context.Context, params FetchPageParams) (SignaturePage, error) {
	var opts *rpc.GetSignaturesForAddressOpts
	if params.Before != "" || params.Limit > 0 {
		opts = &rpc.GetSignaturesForAddressOpts{}
		if params.Before != "" {
			before, err := solana.SignatureFromBase58(params.Before)
			if err != nil {
				return nil, fmt.Errorf("invalid before cursor %q: %w", params.Before, err)
			}
			opts.Before = before
		}
		if params.Limit > 0 {
			limit := params.Limit
			opts.Limit = &limit
		}
	}

	c.logger.DebugContext(ctx, "calling getSignaturesForAddress",
		"address", params.Address.String(),
		"before", params.Before,
		"limit", params.Limit,
		"endpoint", c.endpoint,
	)

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, params.Address, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"address", params.Address.String(),
			"error", err,
		)
	}
	c.metrics.RecordRPCCall("getSignaturesForAddress", status, c.endpoint, duration)
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
	}
	c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(signatures)))

	page := make(SignaturePage, 0, len(signatures))
	for _, sig := range signatures {
		if sig == nil {
			continue
		}
		if sig.BlockTime == nil {
			// The node has not finished indexing this entry; treat as a
			// parse failure so the caller retries the page.
			return nil, fmt.Errorf("signature %s has no block time", sig.Signature)
		}
		page = append(page, SignatureRecord{
			Signature: sig.Signature.String(),
			BlockTime: int64(*sig.BlockTime),
			Slot:      sig.Slot,
		})
	}

	c.logger.DebugContext(ctx, "fetched signature page",
		"address", params.Address.String(),
		"count", len(page),
	)

	return page, nil
}
