// Command meshnode-client is an interactive text client for a mesh node.
//
// It connects over serial or TCP, prints incoming text messages as they
// arrive and accepts commands at a prompt.
//
// Usage:
//
//	meshnode-client [flags]
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
//	-state-dir string     Directory for message history and the current channel
//	-history-file string  Readline input history file
//
// When standard input is not a terminal, commands are read line by line
// without editing or input history.
//
// MESHTASTIC_REGION, when set, is applied to the node in the background
// right after connecting.
//
// Interactive Commands:
//
//	send <message>               - Send on the current channel
//	list                         - List channels
//	set_channel <name>           - Select the current channel
//	add_channel <name> <psk> <uplink_on|off> <downlink_on|off>
//	set_region <code>            - Set the LoRa region
//	list_regions                 - List region codes
//	history                      - Show received messages
//	help                         - Show commands
//	exit, quit                   - Exit
//
// Exit codes: 0 normal exit, 1 a dependency is unavailable, 2 the node
// could not be reached or the link was lost.
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

	"github.com/meshnode/meshnode-go/cmd/meshnode-client/interactive"
	"github.com/meshnode/meshnode-go/internal/cli"
	"github.com/meshnode/meshnode-go/pkg/console"
	"github.com/meshnode/meshnode-go/pkg/eventbus"
	"github.com/meshnode/meshnode-go/pkg/node"
	"github.com/meshnode/meshnode-go/pkg/persistence"
)

var (
	flags       cli.Flags
	stateDir    string
	historyFile string
)

func init() {
	flags.Register(flag.CommandLine)
	flag.StringVar(&stateDir, "state-dir", "", "Directory for message history and the current channel")
	flag.StringVar(&historyFile, "history-file", "", "Readline input history file")
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

	term, err := openTerminal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Terminal: %v\n", err)
		return cli.ExitUnavailable
	}
	con := console.New(term)
	defer con.Close()

	logger, err := cli.NewLogger(con.Writer(), flags.LogLevel, cfg.Verbose)
	if err != nil {
		con.Println(err)
		return cli.ExitUnavailable
	}
	slog.SetDefault(logger)

	capture, err := cli.OpenCapture(flags.ProtocolLog, logger)
	if err != nil {
		con.Println(err)
		return cli.ExitUnavailable
	}
	defer capture.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	dial, target, err := cli.Dialer(ctx, cfg.Connection, flags.Discover, logger)
	if err != nil {
		con.Println(err)
		return cli.ExitUnavailable
	}

	opts := interactive.Options{
		Node: node.New(node.Config{
			Dial:    dial,
			Capture: capture.Logger,
			Logger:  logger,
		}),
		Bus:     eventbus.New(eventbus.WithLogger(logger)),
		Console: con,
		Target:  target,
		Region:  cfg.Desired.Region,
		Logger:  logger,
	}
	if stateDir != "" {
		opts.Store = persistence.NewSessionStore(stateDir)
	}

	err = interactive.New(opts).Run(ctx)
	var ce *node.ConnectError
	switch {
	case err == nil:
		return cli.ExitOK
	case errors.As(err, &ce), errors.Is(err, interactive.ErrConnectionLost):
		return cli.ExitConnect
	default:
		con.Println(err)
		return cli.ExitUnavailable
	}
}

// openTerminal uses readline on a terminal and plain line input otherwise,
// so commands can be piped in.
func openTerminal() (console.Terminal, error) {
	if !console.IsTerminal() {
		return console.NewLineTerminal(os.Stdin, os.Stdout, interactive.Prompt), nil
	}
	return console.NewReadline(console.ReadlineConfig{
		Prompt:      interactive.Prompt,
		HistoryFile: historyFile,
		Commands:    interactive.Commands,
	})
}
