// Package cli holds the flag, logging and connection setup shared by the
// meshnode commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/meshnode/meshnode-go/pkg/config"
	"github.com/meshnode/meshnode-go/pkg/discovery"
	mlog "github.com/meshnode/meshnode-go/pkg/log"
	"github.com/meshnode/meshnode-go/pkg/node"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitUnavailable = 1
	ExitConnect     = 2
	ExitInit        = 3
)

// Flags are the command-line options common to the node commands.
type Flags struct {
	Port        string
	Host        string
	ConfigFile  string
	EnvFile     string
	LogLevel    string
	ProtocolLog string
	Discover    bool
}

// Register adds the flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Port, "port", "", "Serial port of the node (default: auto-detect)")
	fs.StringVar(&f.Host, "host", "", "Host name or address of a network node")
	fs.StringVar(&f.ConfigFile, "config", "", "YAML configuration file")
	fs.StringVar(&f.EnvFile, "env-file", config.DefaultEnvFile, "Environment file")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default info)")
	fs.StringVar(&f.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	fs.BoolVar(&f.Discover, "discover", false, "Find a network node with mDNS when no host is given")
}

// Load resolves the configuration with the flags taking precedence.
func (f *Flags) Load() (*config.Config, error) {
	return config.Load(config.Options{
		File:    f.ConfigFile,
		EnvFile: f.EnvFile,
		Overrides: map[string]string{
			config.KeySerial: f.Port,
			config.KeyHost:   f.Host,
		},
	})
}

// ParseLevel parses a log level name. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q (use: debug, info, warn, error)", s)
}

// NewLogger returns a text logger on w. verbose selects debug unless an
// explicit level is given.
func NewLogger(w io.Writer, level string, verbose bool) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose && level == "" {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// Capture is an open protocol capture.
type Capture struct {
	Logger mlog.Logger
	file   *mlog.FileLogger
}

// OpenCapture opens the capture file at path. With an empty path the
// capture goes to the debug log only.
func OpenCapture(path string, logger *slog.Logger) (*Capture, error) {
	c := &Capture{}
	tee := mlog.Tee{}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		tee = append(tee, mlog.NewSlogAdapter(logger))
	}
	if path != "" {
		f, err := mlog.NewFileLogger(path)
		if err != nil {
			return nil, fmt.Errorf("open protocol log: %w", err)
		}
		c.file = f
		tee = append(tee, f)
	}
	if len(tee) > 0 {
		c.Logger = tee
	}
	return c, nil
}

// Close flushes and closes the capture file.
func (c *Capture) Close() error {
	if c == nil || c.file == nil {
		return nil
	}
	return c.file.Close()
}

// ErrDiscoveryFailed wraps failures to find a node with mDNS.
var ErrDiscoveryFailed = errors.New("node discovery failed")

// Dialer selects how the node is reached and describes the target. With
// discover set and no host configured, the first node found with mDNS is
// used.
func Dialer(ctx context.Context, conn config.Connection, discover bool, logger *slog.Logger) (node.Dialer, string, error) {
	if conn.UseTCP() || !discover {
		if conn.UseTCP() {
			return node.TCP(conn.Host), conn.String(), nil
		}
		return node.Serial(conn.Serial), conn.String(), nil
	}

	logger.Info("browsing for network nodes", "service", discovery.ServiceType)
	svc, err := discovery.NewBrowser(discovery.Config{}).FindFirst(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}
	addr := svc.Address()
	logger.Info("node discovered", "node", svc.Label(), "addr", addr)
	return node.TCP(addr), "tcp " + addr + " (" + svc.Label() + ")", nil
}
