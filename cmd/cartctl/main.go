// Command cartctl runs cart maintenance and support tasks against the
// storefront database without going through the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// errUsage means the arguments were wrong and usage has been printed
var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		switch {
		case errors.Is(err, errCriticalIssues):
			os.Exit(2)
		case !errors.Is(err, errUsage):
			fmt.Fprintf(os.Stderr, "cartctl: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("cartctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	configDir := global.String("config", ".", "Directory containing config.toml")
	logLevel := global.String("log-level", "warn", "Log level (debug, info, warn, error)")
	global.Usage = func() { printUsage(stderr) }
	if err := global.Parse(args); err != nil {
		return errUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return errUsage
	}
	command, cmdArgs := rest[0], rest[1:]

	cmd, ok := commands[command]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		printUsage(stderr)
		return errUsage
	}

	cfg, err := config.LoadFrom(*configDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
		Service:    "cartctl",
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	env := &env{cfg: cfg, log: log, out: stdout, errOut: stderr}
	if cmd.needsDB {
		db, err := persistence.NewDatabase(&cfg.Database,
			persistence.WithGormLogger(logger.NewSQLLogger(log, logger.SQLLogLevel(*logLevel), persistence.ClassifiedSQL())))
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn("Error closing database", zap.Error(err))
			}
		}()
		if cfg.Database.Driver == config.DriverSQLite {
			if err := db.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate sqlite schema: %w", err)
			}
		}
		env.db = db
	}

	return cmd.run(ctx, env, cmdArgs)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Storefront cart maintenance tool

Usage:
  cartctl [flags] <command> [arguments]

Commands:
  audit   -customer <id> | -ip <addr>            Check one cart for integrity issues
  repair  -customer <id> | -ip <addr> [options]  Repair one cart
            -orphaned=false    skip removing lines of deleted products
            -quantities=false  skip clamping out of range quantities
            -merge=false       skip merging duplicate lines
  cleanup [-ttl <duration>]                      Delete stale guest cart lines
  orders  -customer <id> [-page n] [-size n]     List a customer's orders
  token   -customer <id> [-email addr]           Issue a customer token (development)

Flags:
  -config string      Directory containing config.toml (default: .)
  -log-level string   Log level: debug, info, warn, error (default: warn)

Output is JSON on stdout. audit exits 2 when critical issues are found.

Examples:
  cartctl audit -ip 203.0.113.7
  cartctl repair -customer 42 -merge=false
  STOREFRONT_CART_STALE_GUEST_TTL=168h cartctl cleanup`)
}
