package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ZaphyrRobin/firstdeploy/service/cache"
	"github.com/ZaphyrRobin/firstdeploy/service/config"
	"github.com/ZaphyrRobin/firstdeploy/service/discovery"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

// cacheCommands groups operations on the shared Postgres result cache.
func cacheCommands() *cli.Command {
	networkFlag := &cli.BoolFlag{
		Name:    "mainnet",
		Aliases: []string{"m"},
		Usage:   "Use mainnet if specified, otherwise devnet",
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and manage cached discovery results",
		Description: `Read, seed, and clear entries in the shared result cache. These
commands require DATABASE_URL; the in-process cache used when it is
unset has nothing to inspect.`,
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show the cached timestamp for a program",
				ArgsUsage: "PROGRAM_ID",
				Flags:     []cli.Flag{networkFlag},
				Action:    runCacheGet,
			},
			{
				Name:      "set",
				Usage:     "Seed the cache with a known timestamp",
				ArgsUsage: "PROGRAM_ID UNIX_TIMESTAMP",
				Flags:     []cli.Flag{networkFlag},
				Action:    runCacheSet,
			},
			{
				Name:      "clear",
				Usage:     "Remove the cached entry for a program",
				ArgsUsage: "PROGRAM_ID",
				Flags:     []cli.Flag{networkFlag},
				Action:    runCacheClear,
			},
		},
	}
}

// openPostgresCache connects to the shared cache. Unlike the discover
// command, cache commands have no in-process fallback.
func openPostgresCache(c *cli.Context) (*cache.Postgres, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL must be set for cache commands")
	}

	pool, err := pgxpool.New(c.Context, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}
	pg := cache.NewPostgres(pool)
	if err := pg.EnsureSchema(c.Context); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}

func runCacheGet(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("program ID is required")
	}
	programID := c.Args().Get(0)
	mainnet := c.Bool("mainnet")

	pg, closePool, err := openPostgresCache(c)
	if err != nil {
		return err
	}
	defer closePool()

	key := discovery.CacheKey(programID, mainnet)
	value, ok, err := pg.Get(c.Context, key)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("No cached entry for %s on %s\n", programID, discovery.NetworkName(mainnet))
		return nil
	}

	fmt.Printf("Program:    %s\n", programID)
	fmt.Printf("Network:    %s\n", discovery.NetworkName(mainnet))
	fmt.Printf("Timestamp:  %d\n", value)
	fmt.Printf("UTC:        %s\n", time.Unix(value, 0).UTC().Format("2006-01-02 15:04:05"))
	return nil
}

func runCacheSet(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("program ID and unix timestamp are required")
	}
	programID := c.Args().Get(0)

	timestamp, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", c.Args().Get(1), err)
	}
	if timestamp <= 0 {
		return fmt.Errorf("timestamp must be positive, got %d", timestamp)
	}
	mainnet := c.Bool("mainnet")

	pg, closePool, err := openPostgresCache(c)
	if err != nil {
		return err
	}
	defer closePool()

	key := discovery.CacheKey(programID, mainnet)
	if err := pg.Set(c.Context, key, timestamp); err != nil {
		return err
	}

	fmt.Printf("Cached %s on %s at %d\n", programID, discovery.NetworkName(mainnet), timestamp)
	return nil
}

func runCacheClear(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("program ID is required")
	}
	programID := c.Args().Get(0)
	mainnet := c.Bool("mainnet")

	pg, closePool, err := openPostgresCache(c)
	if err != nil {
		return err
	}
	defer closePool()

	key := discovery.CacheKey(programID, mainnet)
	if err := pg.Delete(c.Context, key); err != nil {
		return err
	}

	fmt.Printf("Cleared cache entry for %s on %s\n", programID, discovery.NetworkName(mainnet))
	return nil
}
