// Package interactive provides the interactive command-line session of
// meshnode-client.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/meshnode/meshnode-go/pkg/channel"
	"github.com/meshnode/meshnode-go/pkg/console"
	"github.com/meshnode/meshnode-go/pkg/eventbus"
	"github.com/meshnode/meshnode-go/pkg/node"
	"github.com/meshnode/meshnode-go/pkg/persistence"
	"github.com/meshnode/meshnode-go/pkg/reconcile"
	"github.com/meshnode/meshnode-go/pkg/session"
	"github.com/meshnode/meshnode-go/pkg/wire"
)

// Prompt is the input prompt.
const Prompt = "> "

var (
	// ErrInvalidInput is returned by commands given malformed arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConnectionLost ends a session whose link failed.
	ErrConnectionLost = errors.New("connection lost")

	errExit = errors.New("exit")
)

// State is the session lifecycle state.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateIdle
	StateAwaitingInput
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting-input"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Options configures a Client.
type Options struct {
	Node    *node.Node
	Bus     *eventbus.Bus
	Console *console.Console

	// Target describes the connection for the banner, e.g. "tcp 10.0.0.5".
	Target string

	// Region is applied in the background once connected. Optional.
	Region string

	// Store persists history and the current channel. Optional.
	Store *persistence.SessionStore

	Logger *slog.Logger
}

// Client runs one interactive session.
type Client struct {
	node     *node.Node
	bus      *eventbus.Bus
	con      *console.Console
	sess     *session.Session
	channels *channel.Manager
	rec      *reconcile.Reconciler
	store    *persistence.SessionStore
	logger   *slog.Logger
	target   string
	region   string

	mu    sync.Mutex
	state State
	names [wire.MaxChannels]string
	lost  error

	background sync.WaitGroup
}

// New creates a client. Nothing happens until Run.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		node:     opts.Node,
		bus:      opts.Bus,
		con:      opts.Console,
		sess:     session.New(),
		channels: channel.NewManager(opts.Node, logger),
		rec:      reconcile.New(opts.Node, logger),
		store:    opts.Store,
		logger:   logger,
		target:   opts.Target,
		region:   opts.Region,
	}
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Session returns the session state.
func (c *Client) Session() *session.Session { return c.sess }

// Run connects, runs the command loop until exit, end of input, an
// interrupt or loss of the link, and always closes the node. It returns a
// *node.ConnectError if the node could not be reached.
func (c *Client) Run(ctx context.Context) error {
	defer c.shutdown()

	c.setState(StateConnecting)
	c.con.Printf("Connecting to %s...\n", c.target)

	unsubscribe := c.subscribe()
	defer unsubscribe()

	if err := c.node.Connect(ctx); err != nil {
		c.setState(StateDisconnected)
		c.con.Printf("Failed to connect to device: %v\n", err)
		return err
	}
	c.setState(StateIdle)
	c.restore()

	// Cancellation unblocks a pending ReadLine with io.EOF.
	stopClose := context.AfterFunc(ctx, func() { _ = c.con.Close() })
	defer stopClose()

	busCtx, stopBus := context.WithCancel(ctx)
	defer stopBus()
	go func() { _ = c.bus.Run(busCtx) }()

	c.banner(ctx)
	if c.region != "" {
		c.background.Add(1)
		go c.bootstrapRegion(ctx, c.region)
	}
	return c.loop(ctx)
}

func (c *Client) subscribe() func() {
	unsubs := []func(){
		c.bus.Subscribe(eventbus.KindMessageReceived, c.onMessage),
		c.bus.Subscribe(eventbus.KindConnectionEstablished, c.onEstablished),
		c.bus.Subscribe(eventbus.KindConnectionLost, c.onLost),
	}
	c.node.Subscribe(c.bus)
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (c *Client) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		c.setState(StateAwaitingInput)
		line, err := c.con.ReadLine(Prompt)
		c.setState(StateIdle)

		if lost := c.lostErr(); lost != nil {
			return fmt.Errorf("%w: %v", ErrConnectionLost, lost)
		}
		switch {
		case errors.Is(err, console.ErrInterrupt):
			return c.finalCommand(ctx)
		case errors.Is(err, io.EOF):
			c.con.Println("Exiting...")
			return nil
		case err != nil:
			return err
		}

		if errors.Is(c.dispatch(ctx, line), errExit) {
			c.con.Println("Exiting...")
			return nil
		}
	}
}

// finalCommand reads and runs one more command after an interrupt. A
// second interrupt, end of input or an empty line ends the session at once.
func (c *Client) finalCommand(ctx context.Context) error {
	c.con.Println("Interrupted. Enter a final command (empty line exits).")
	c.setState(StateAwaitingInput)
	line, err := c.con.ReadLine(Prompt)
	c.setState(StateIdle)
	if err == nil && strings.TrimSpace(line) != "" {
		_ = c.dispatch(ctx, line)
	}
	c.con.Println("Exiting...")
	return nil
}

func (c *Client) shutdown() {
	c.background.Wait()
	if err := c.node.Close(); err != nil {
		c.logger.Warn("close failed", "error", err)
	}
	c.persist()
	c.setState(StateClosed)
}

func (c *Client) restore() {
	if c.store == nil {
		return
	}
	id := wire.NodeID(c.node.Info().NodeNum)
	state, err := c.store.Load(id)
	if err != nil {
		c.logger.Warn("session state not restored", "node", id, "error", err)
		return
	}
	if state != nil {
		state.Restore(c.sess)
		c.logger.Debug("session state restored", "node", id, "messages", len(state.History))
	}
}

func (c *Client) persist() {
	info := c.node.Info()
	if c.store == nil || info.NodeNum == 0 {
		return
	}
	id := wire.NodeID(info.NodeNum)
	if err := c.store.Save(persistence.Capture(id, c.sess)); err != nil {
		c.logger.Warn("session state not saved", "node", id, "error", err)
	}
}

func (c *Client) bootstrapRegion(ctx context.Context, token string) {
	defer c.background.Done()
	code, err := reconcile.NormalizeRegion(token)
	if err != nil {
		c.con.Asyncf("Ignoring region from environment: %v", err)
		return
	}
	res, err := c.rec.SetRegion(ctx, token)
	switch {
	case err != nil:
		c.con.Asyncf("Region bootstrap failed: %v", err)
	case res.Outcome == reconcile.OutcomeSkipped:
		c.con.Asyncf("Region already set to %s, skipping.", code)
	default:
		c.con.Asyncf("Bootstrapping region from env: %s. The device may reboot.", code)
	}
}

func (c *Client) onMessage(_ context.Context, ev eventbus.Event) error {
	m, ok := ev.(eventbus.MessageReceived)
	if !ok {
		return nil
	}
	msg, ok := session.FromPacket(m.ReceivedAt, m.Packet, c.channelName)
	if !ok {
		return nil
	}
	c.sess.Record(msg)
	c.con.Async(msg.String())
	return nil
}

func (c *Client) onEstablished(_ context.Context, ev eventbus.Event) error {
	e, ok := ev.(eventbus.ConnectionEstablished)
	if !ok {
		return nil
	}
	name := ""
	if e.Owner != nil {
		name = " (" + e.Owner.LongName + ")"
	}
	c.con.Asyncf("Connection established: %s, node %s%s", e.Link, wire.NodeID(e.NodeNum), name)
	return nil
}

func (c *Client) onLost(_ context.Context, ev eventbus.Event) error {
	e, ok := ev.(eventbus.ConnectionLost)
	if !ok {
		return nil
	}
	c.mu.Lock()
	c.lost = e.Err
	if c.lost == nil {
		c.lost = node.ErrClosed
	}
	c.mu.Unlock()

	c.con.Asyncf("Connection lost: %v", e.Err)
	return c.con.Close()
}

func (c *Client) lostErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

// channelName returns the cached name of a channel slot.
func (c *Client) channelName(index uint32) (string, bool) {
	if index >= wire.MaxChannels {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	name := c.names[index]
	return name, name != ""
}

func (c *Client) cacheNames(slots []channel.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range slots {
		if s.Index >= 0 && s.Index < len(c.names) {
			c.names[s.Index] = s.Name
		}
	}
}
