package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "firstdeploy",
		Usage: "Find the first on-chain transaction of a Solana program",
		Description: `A command-line tool that determines when a Solana program was first
used, by walking its signature history backward until no earlier
transactions exist.

Results are cached per (program, network). Set DATABASE_URL to share the
cache across invocations, and HELIUS_API_KEY to enable the Helius source.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			discoverCommand(),
			cacheCommands(),
			natsCommands(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setupLogger creates the CLI logger. Verbose mode surfaces debug logs on
// stderr; otherwise only errors come through, keeping stdout clean for the
// result line.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
