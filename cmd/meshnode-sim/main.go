// Command meshnode-sim runs a simulated mesh node on TCP.
//
// The node answers the configuration handshake and admin requests from
// memory, so meshnode-client and meshnode-init can be tried without radio
// hardware. It can advertise itself with mDNS and inject chatter from a
// second, fictional node.
//
// Usage:
//
//	meshnode-sim [flags]
//
// Flags:
//
//	-listen string     Listen address (default ":4403")
//	-node string       Node number in hex, e.g. !1234abcd (default: random)
//	-region string     Initial LoRa region (default UNSET)
//	-advertise         Advertise the node with mDNS
//	-chatter duration  Inject a text message at this interval (0 disables)
//	-log-level string  Log level: debug, info, warn, error
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/meshnode/meshnode-go/internal/cli"
	"github.com/meshnode/meshnode-go/internal/meshsim"
	"github.com/meshnode/meshnode-go/pkg/discovery"
	"github.com/meshnode/meshnode-go/pkg/reconcile"
	"github.com/meshnode/meshnode-go/pkg/wire"
)

var (
	listen    = flag.String("listen", ":4403", "Listen address")
	nodeFlag  = flag.String("node", "", "Node number in hex, e.g. !1234abcd (default: random)")
	region    = flag.String("region", "", "Initial LoRa region")
	advertise = flag.Bool("advertise", false, "Advertise the node with mDNS")
	chatter   = flag.Duration("chatter", 0, "Inject a text message at this interval (0 disables)")
	logLevel  = flag.String("log-level", "", "Log level: debug, info, warn, error")
)

// chatterNode is the sender of injected messages.
const chatterNode = 0x0badcafe

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	logger, err := cli.NewLogger(os.Stderr, *logLevel, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.ExitUnavailable
	}
	slog.SetDefault(logger)

	num, err := nodeNum(*nodeFlag)
	if err != nil {
		logger.Error("invalid node number", "error", err)
		return cli.ExitUnavailable
	}

	sim := meshsim.New(num)
	sim.SetLogger(logger)
	if *region != "" {
		code, err := reconcile.NormalizeRegion(*region)
		if err != nil {
			logger.Error("invalid region", "error", err)
			return cli.ExitUnavailable
		}
		sim.SetRegion(code)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *advertise {
		adv, err := startAdvertiser(sim, *listen)
		if err != nil {
			logger.Error("mDNS advertisement failed", "error", err)
			return cli.ExitUnavailable
		}
		defer adv.Stop()
		logger.Info("advertising node", "service", discovery.ServiceType)
	}

	if *chatter > 0 {
		go chat(ctx, sim, *chatter, logger)
	}

	if err := sim.ListenAndServe(ctx, *listen); err != nil {
		logger.Error("listen failed", "addr", *listen, "error", err)
		return cli.ExitUnavailable
	}
	logger.Info("simulated node stopped")
	return cli.ExitOK
}

// nodeNum parses s, or derives a number from a random UUID when s is empty.
func nodeNum(s string) (uint32, error) {
	if s == "" {
		id := uuid.New()
		return binary.BigEndian.Uint32(id[:4]) | 1, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(s, "!"), "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	if v == 0 || uint32(v) == wire.BroadcastAddr {
		return 0, fmt.Errorf("%q is reserved", s)
	}
	return uint32(v), nil
}

func startAdvertiser(sim *meshsim.Sim, addr string) (*discovery.Advertiser, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("port %q: %w", portStr, err)
	}
	owner := sim.Owner()
	adv := discovery.NewAdvertiser(discovery.Config{})
	err = adv.Advertise(&discovery.NodeInfo{
		InstanceName: "Meshtastic_" + owner.ShortName,
		Port:         uint16(port),
		NodeID:       owner.ID,
		ShortName:    owner.ShortName,
	})
	if err != nil {
		return nil, err
	}
	return adv, nil
}

func chat(ctx context.Context, sim *meshsim.Sim, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := sim.InjectText(chatterNode, 0, fmt.Sprintf("ping %d", i)); err != nil {
			logger.Debug("chatter not delivered", "error", err)
		}
	}
}
