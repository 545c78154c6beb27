// Command migrate applies the character document schema.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/cory-johannsen/d20sheet/internal/config"
	"github.com/cory-johannsen/d20sheet/internal/observability"
	"github.com/cory-johannsen/d20sheet/internal/storage/postgres"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	start := time.Now()

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "configs/dev.yaml", "path to configuration file")
	migrationsDir := fs.String("migrations", "migrations", "path to the migrations directory")
	direction := fs.String("direction", "up", "migration direction: up or down")
	steps := fs.Int("steps", 0, "number of steps (0 = all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *steps < 0 {
		fmt.Fprintf(stderr, "invalid -steps %d: must be >= 0\n", *steps)
		return 2
	}
	dir := postgres.Direction(*direction)
	if dir != postgres.Up && dir != postgres.Down {
		fmt.Fprintf(stderr, "invalid direction %q: must be 'up' or 'down'\n", *direction)
		return 2
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "loading config: %v\n", err)
		return 1
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "initializing logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	res, err := postgres.Migrate(cfg.Database.DSN(), *migrationsDir, dir, *steps, logger)
	if err != nil {
		fmt.Fprintf(stderr, "migration failed: %v\n", err)
		return 1
	}

	elapsed := time.Since(start)
	if res.NoChange {
		fmt.Fprintf(stdout, "no changes (version=%d dirty=%v) [%s]\n", res.Version, res.Dirty, elapsed)
	} else {
		fmt.Fprintf(stdout, "migrated %s to version=%d dirty=%v [%s]\n", dir, res.Version, res.Dirty, elapsed)
	}
	return 0
}
