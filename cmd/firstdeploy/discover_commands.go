package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/ZaphyrRobin/firstdeploy/service/cache"
	"github.com/ZaphyrRobin/firstdeploy/service/config"
	"github.com/ZaphyrRobin/firstdeploy/service/discovery"
	"github.com/ZaphyrRobin/firstdeploy/service/metrics"
	natspub "github.com/ZaphyrRobin/firstdeploy/service/nats"
	"github.com/ZaphyrRobin/firstdeploy/service/retry"
	"github.com/ZaphyrRobin/firstdeploy/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/itchyny/gojq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func discoverCommand() *cli.Command {
	return &cli.Command{
		Name:      "discover",
		Aliases:   []string{"find"},
		Usage:     "Discover the first deployment timestamp of a program",
		ArgsUsage: "PROGRAM_ID",
		Description: `Looks up the UNIX timestamp of the first transaction ever submitted to
the given program. On a cache miss, one of two sources is picked at
random: a single-call Helius estimate or an exhaustive backward
pagination search over the public RPC endpoint.

Example:
  firstdeploy discover TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA -m`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "mainnet",
				Aliases: []string{"m"},
				Usage:   "Use mainnet if specified, otherwise devnet",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose (debug) logging",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to the JSON output (implies --json)",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Force a source instead of picking at random (helius or rpc)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Signature page size for the pagination search",
				Value: discovery.DefaultPageLimit,
			},
			&cli.IntFlag{
				Name:  "max-pages",
				Usage: "Safety cap on the number of pages walked",
				Value: discovery.DefaultMaxPages,
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Publish the discovery result to NATS JetStream",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address while the search runs (e.g. :9090)",
			},
		},
		Action: runDiscover,
	}
}

func runDiscover(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("program ID is required")
	}

	programID := c.Args().Get(0)
	program, err := solanago.PublicKeyFromBase58(programID)
	if err != nil {
		return fmt.Errorf("invalid program ID %q: %w", programID, err)
	}

	mainnet := c.Bool("mainnet")
	logger := setupLogger(c.Bool("verbose"))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := c.Context

	var m *metrics.Metrics
	if addr := c.String("metrics-addr"); addr != "" {
		registry := prometheus.NewRegistry()
		m = metrics.New(registry)
		go serveMetrics(addr, registry, logger)
	}

	resultCache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	discoverer, closePublisher, err := buildDiscoverer(c, cfg, resultCache, m, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	result, err := discoverer.Discover(ctx, program, mainnet)
	if err != nil {
		// The result line always prints; failures become None placeholders.
		logger.DebugContext(ctx, "discovery failed", "program", programID, "error", err)
	}

	return printResult(c, programID, mainnet, result)
}

// buildDiscoverer wires the source strategies and orchestrator options from
// flags and config. The returned closer shuts down the NATS publisher when
// one was requested.
func buildDiscoverer(c *cli.Context, cfg *config.Config, resultCache discovery.Cache, m *metrics.Metrics, logger *slog.Logger) (*discovery.Discoverer, func(), error) {
	noop := func() {}

	limit := c.Int("limit")
	maxPages := c.Int("max-pages")

	rpcMainnet := solana.NewClient(solana.NewRPCClient(cfg.RPCEndpoint(true)), "rpc-mainnet", m, logger)
	rpcDevnet := solana.NewClient(solana.NewRPCClient(cfg.RPCEndpoint(false)), "rpc-devnet", m, logger)

	rpcSource := discovery.NewRPCSource(
		discovery.NewEngine(rpcMainnet, logger,
			discovery.WithPageLimit(limit),
			discovery.WithMaxPages(maxPages),
			discovery.WithPageDelay(discovery.MainnetPageDelay),
			discovery.WithEngineMetrics(m, "mainnet"),
		),
		discovery.NewEngine(rpcDevnet, logger,
			discovery.WithPageLimit(limit),
			discovery.WithMaxPages(maxPages),
			discovery.WithEngineMetrics(m, "devnet"),
		),
	)

	sources := []discovery.Source{rpcSource}
	if cfg.HeliusAPIKey != "" {
		heliusMainnet := solana.NewClient(solana.NewRPCClient(cfg.HeliusEndpoint(true)), "helius-mainnet", m, logger)
		heliusDevnet := solana.NewClient(solana.NewRPCClient(cfg.HeliusEndpoint(false)), "helius-devnet", m, logger)
		sources = append(sources, discovery.NewHeliusSource(heliusMainnet, heliusDevnet, retry.DefaultPolicy(), logger))
	} else {
		logger.Debug("HELIUS_API_KEY not set, using the public RPC source only")
	}

	opts := []discovery.DiscovererOption{discovery.WithMetrics(m)}

	if forced := c.String("source"); forced != "" {
		index := -1
		for i, s := range sources {
			if s.Name() == forced {
				index = i
			}
		}
		if index < 0 {
			return nil, noop, fmt.Errorf("unknown source %q (HELIUS_API_KEY unset?)", forced)
		}
		opts = append(opts, discovery.WithPick(func(int) int { return index }))
	}

	closer := noop
	if c.Bool("publish") {
		publisher, err := natspub.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		closer = func() { publisher.Close() }
		opts = append(opts, discovery.WithPublisher(publisher))
	}

	return discovery.NewDiscoverer(sources, resultCache, logger, opts...), closer, nil
}

// openCache returns the Postgres-backed cache when DATABASE_URL is set and
// an in-process cache otherwise.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (discovery.Cache, func(), error) {
	if cfg.DatabaseURL == "" {
		return cache.NewMemory(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}
	pg := cache.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Debug("using postgres result cache")
	return pg, pool.Close, nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", "addr", addr, "error", err)
	}
}

// discoverOutput is the JSON shape of a discovery result. Pointer fields
// render as null on failure, mirroring the None placeholders of the plain
// output line.
type discoverOutput struct {
	ProgramID     string  `json:"program_id"`
	Network       string  `json:"network"`
	UnixTimestamp *int64  `json:"unix_timestamp"`
	UTCDatetime   *string `json:"utc_datetime"`
}

// printResult writes the final result line. Every invocation produces
// output, with None placeholders on failure.
func printResult(c *cli.Context, programID string, mainnet bool, result *discovery.Result) error {
	jqExpr := c.String("jq")
	if !c.Bool("json") && jqExpr == "" {
		fmt.Println(formatResultLine(result))
		return nil
	}

	out := discoverOutput{
		ProgramID: programID,
		Network:   discovery.NetworkName(mainnet),
	}
	if result != nil {
		ts := result.UnixTimestamp
		utc := result.UTCTime.Format("2006-01-02 15:04:05")
		out.UnixTimestamp = &ts
		out.UTCDatetime = &utc
	}

	if jqExpr == "" {
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	return printFiltered(out, jqExpr)
}

// formatResultLine renders the one-line human output.
func formatResultLine(result *discovery.Result) string {
	if result == nil {
		return "First Deployment Timestamp: None, None"
	}
	return fmt.Sprintf("First Deployment Timestamp: %d, %s UTC",
		result.UnixTimestamp,
		result.UTCTime.Format("2006-01-02 15:04:05"))
}

// printFiltered runs a jq expression over the JSON output and prints every
// value it produces.
func printFiltered(out discoverOutput, jqExpr string) error {
	query, err := gojq.Parse(jqExpr)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", jqExpr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", jqExpr, err)
	}

	// Round-trip through JSON so gojq sees plain maps.
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			fmt.Fprintf(os.Stderr, "jq filter error: %v\n", err)
			continue
		}
		rendered, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Println(string(rendered))
	}
	return nil
}
