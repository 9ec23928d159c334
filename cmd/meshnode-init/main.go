// Command meshnode-init applies configuration from the environment to a
// mesh node and exits.
//
// Each section (owner, region, role, position broadcast, Wi-Fi, channel)
// is read from the node first and written only when it differs, so running
// the command again changes nothing.
//
// Usage:
//
//	meshnode-init [flags]
//
// Flags:
//
//	-port string          Serial port of the node (default: auto-detect)
//	-host string          Host name or address of a network node
//	-discover             Find a network node with mDNS when no host is given
//	-config string        YAML configuration file
//	-env-file string      Environment file (default ".env")
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-flush-timeout dur    Bound on waiting for the node to apply writes (default 30s)
//
// Exit codes: 0 success, 1 a dependency is unavailable, 2 the node could
// not be reached, 3 configuration failed after connecting.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meshnode/meshnode-go/internal/cli"
	"github.com/meshnode/meshnode-go/pkg/config"
	"github.com/meshnode/meshnode-go/pkg/node"
	"github.com/meshnode/meshnode-go/pkg/reconcile"
)

// DefaultFlushTimeout bounds the final wait for the node.
const DefaultFlushTimeout = 30 * time.Second

var (
	flags        cli.Flags
	flushTimeout time.Duration
)

func init() {
	flags.Register(flag.CommandLine)
	flag.DurationVar(&flushTimeout, "flush-timeout", DefaultFlushTimeout, "Bound on waiting for the node to apply writes")
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := flags.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration: %v\n", err)
		return cli.ExitUnavailable
	}
	logger, err := cli.NewLogger(os.Stderr, flags.LogLevel, cfg.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.ExitUnavailable
	}
	slog.SetDefault(logger)

	capture, err := cli.OpenCapture(flags.ProtocolLog, logger)
	if err != nil {
		logger.Error("protocol log unavailable", "error", err)
		return cli.ExitUnavailable
	}
	defer capture.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dial, target, err := cli.Dialer(ctx, cfg.Connection, flags.Discover, logger)
	if err != nil {
		logger.Error("no node to configure", "error", err)
		return cli.ExitUnavailable
	}

	logger.Info("connecting", "target", target)
	n := node.New(node.Config{Dial: dial, Capture: capture.Logger, Logger: logger})
	defer n.Close()

	if err := n.Connect(ctx); err != nil {
		logger.Error("failed to connect", "target", target, "error", err)
		return cli.ExitConnect
	}

	if err := initialize(ctx, n, cfg.Desired, flushTimeout, logger); err != nil {
		logger.Error("initialization failed", "error", err)
		return cli.ExitInit
	}
	return cli.ExitOK
}

// Device is the node as used by initialize.
type Device interface {
	reconcile.Device
	BeginEdit(ctx context.Context) error
	Flush(ctx context.Context) error
}

// initialize reconciles the node with desired inside one edit transaction
// and waits for the node to apply it. A flush that does not complete in
// time is logged and not treated as a failure.
func initialize(ctx context.Context, dev Device, desired config.Desired, timeout time.Duration, logger *slog.Logger) error {
	if desired.Empty() {
		logger.Info("nothing to configure")
		logger.Info("Initialization complete.")
		return nil
	}

	if err := dev.BeginEdit(ctx); err != nil {
		return err
	}
	results, recErr := reconcile.New(dev, logger).Reconcile(ctx, desired)
	logger.Info("sections reconciled", "applied", len(reconcile.Applied(results)), "total", len(results))

	logger.Info("Waiting for config to flush to device...")
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := dev.Flush(fctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("node did not confirm the flush in time", "timeout", timeout)
		} else {
			logger.Warn("flush failed", "error", err)
		}
	}

	if recErr != nil {
		return recErr
	}
	logger.Info("Initialization complete.")
	return nil
}
