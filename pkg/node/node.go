package node

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/meshnode/meshnode-go/pkg/connection"
	"github.com/meshnode/meshnode-go/pkg/eventbus"
	"github.com/meshnode/meshnode-go/pkg/log"
	"github.com/meshnode/meshnode-go/pkg/transport"
	"github.com/meshnode/meshnode-go/pkg/wire"
)

// Defaults.
const (
	DefaultConnectAttempts = 3
	DefaultRequestTimeout  = 15 * time.Second

	// closeWriteTimeout bounds the disconnect notice sent on Close.
	closeWriteTimeout = time.Second
)

// Dialer opens the link to a node.
type Dialer func(ctx context.Context) (transport.Link, error)

// Publisher receives inbound events. Implemented by *eventbus.Bus.
type Publisher interface {
	Publish(ctx context.Context, ev eventbus.Event) error
}

// Config configures a Node.
type Config struct {
	// Dial opens the link. Required.
	Dial Dialer

	// Capture receives protocol capture events. Optional.
	Capture log.Logger

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ConnectAttempts bounds dial retries.
	ConnectAttempts int

	// Backoff spaces dial retries.
	Backoff *connection.Backoff

	// RequestTimeout bounds admin requests whose context has no deadline.
	RequestTimeout time.Duration

	Heartbeat transport.HeartbeatConfig

	// OnDebugLine receives device console output. Optional.
	OnDebugLine func(line string)
}

// Info describes the connected node.
type Info struct {
	Link    string
	NodeNum uint32
	Owner   *wire.User
}

// Node is a session with one mesh node. It is safe for concurrent use.
type Node struct {
	cfg     Config
	log     *slog.Logger
	capture log.Logger
	connID  string

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	link        transport.Link
	framer      *transport.Framer
	heartbeat   *transport.Heartbeat
	pub         Publisher
	info        Info
	connected   bool
	established bool
	editing     bool
	pending     map[uint32]chan *wire.MeshPacket

	wantConfigID uint32
	configDone   chan struct{}
	configOnce   sync.Once

	readerDone chan struct{}
	lost       chan struct{}
	lostErr    error

	packetID  atomic.Uint32
	closing   atomic.Bool
	closeOnce sync.Once
}

// New creates a node session. Call Connect to open the link.
func New(cfg Config) *Node {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = DefaultConnectAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = connection.NewBackoff()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:        cfg,
		log:        cfg.Logger,
		capture:    log.OrNoop(cfg.Capture),
		connID:     uuid.NewString(),
		ctx:        ctx,
		cancel:     cancel,
		pending:    make(map[uint32]chan *wire.MeshPacket),
		configDone: make(chan struct{}),
		lost:       make(chan struct{}),
	}
	n.packetID.Store(rand.Uint32() >> 1)
	return n
}

// ConnectionID returns the capture correlation ID of this session.
func (n *Node) ConnectionID() string { return n.connID }

// Subscribe routes inbound events to p. Call before Connect to receive
// ConnectionEstablished.
func (n *Node) Subscribe(p Publisher) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pub = p
}

// Info returns what the node reported during the handshake.
func (n *Node) Info() Info {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.info
}

// Connected reports whether the link is up.
func (n *Node) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

// Connect opens the link and waits for the node to send its configuration.
// Dial failures are retried with backoff; handshake failures are not.
func (n *Node) Connect(ctx context.Context) error {
	n.mu.Lock()
	if n.link != nil {
		n.mu.Unlock()
		return ErrAlreadyConnected
	}
	n.mu.Unlock()
	if n.closing.Load() {
		return &ConnectError{Err: ErrClosed}
	}

	var link transport.Link
	err := connection.Retry(ctx, n.cfg.Backoff, n.cfg.ConnectAttempts,
		func(ctx context.Context) error {
			l, err := n.cfg.Dial(ctx)
			if err != nil {
				return err
			}
			link = l
			return nil
		},
		connection.OnRetry(func(a connection.Attempt) {
			n.log.Warn("connect attempt failed", "attempt", a.Number, "error", a.Err, "retry_in", a.Delay)
		}))
	if err != nil {
		return &ConnectError{Err: err}
	}

	if err := n.start(ctx, link); err != nil {
		return &ConnectError{Link: link.String(), Err: err}
	}
	return nil
}

func (n *Node) start(ctx context.Context, link transport.Link) error {
	framer := transport.NewFramer(link)
	framer.SetLogger(n.capture, n.connID)
	if n.cfg.OnDebugLine != nil {
		framer.OnDebugLine(n.cfg.OnDebugLine)
	}

	n.mu.Lock()
	n.link = link
	n.framer = framer
	n.info.Link = link.String()
	n.wantConfigID = rand.Uint32()>>1 | 1
	n.mu.Unlock()
	n.logState(log.StateEntityLink, "", "OPEN", "")

	if w, ok := link.(transport.Waker); ok {
		if err := w.Wake(framer.FrameWriter); err != nil {
			n.abort()
			return err
		}
	}

	done := make(chan struct{})
	n.mu.Lock()
	n.readerDone = done
	n.mu.Unlock()
	go n.readLoop(framer, done)

	if err := n.send(&wire.ToRadio{WantConfigID: n.wantConfigID}); err != nil {
		n.abort()
		return err
	}

	select {
	case <-n.configDone:
	case <-n.lost:
		n.abort()
		return fmt.Errorf("handshake: %w: %v", ErrLinkLost, n.lostCause())
	case <-ctx.Done():
		n.abort()
		return fmt.Errorf("handshake: %w", ctx.Err())
	}

	n.mu.Lock()
	n.connected = true
	n.established = true
	info := n.info
	pub := n.pub
	n.heartbeat = transport.NewHeartbeat(n.cfg.Heartbeat,
		func() error { return n.send(&wire.ToRadio{Heartbeat: true}) },
		func(err error) {
			n.log.Warn("heartbeat failed, dropping link", "error", err)
			_ = link.Close()
		})
	hb := n.heartbeat
	n.mu.Unlock()

	hb.Start(n.ctx)
	n.logState(log.StateEntitySession, "HANDSHAKE", "CONNECTED", "")
	n.log.Info("connected", "link", info.Link, "node", wire.NodeID(info.NodeNum))

	if pub != nil {
		if err := pub.Publish(ctx, eventbus.ConnectionEstablished{
			Link:    info.Link,
			NodeNum: info.NodeNum,
			Owner:   info.Owner,
		}); err != nil {
			n.log.Debug("connection event not published", "error", err)
		}
	}
	return nil
}

// abort tears down a half-open link after a failed handshake.
func (n *Node) abort() {
	n.closing.Store(true)
	n.cancel()
	n.mu.Lock()
	link := n.link
	done := n.readerDone
	n.mu.Unlock()
	_ = link.Close()
	n.mu.Lock()
	n.link = nil
	n.framer = nil
	n.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-time.After(closeWriteTimeout):
		}
	}
}

// Close sends a disconnect notice and closes the link. It is idempotent.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		n.closing.Store(true)

		n.mu.Lock()
		link := n.link
		hb := n.heartbeat
		connected := n.connected
		done := n.readerDone
		n.mu.Unlock()

		if hb != nil {
			hb.Stop()
		}
		if link == nil {
			n.cancel()
			return
		}
		if connected {
			if d, ok := link.(interface{ SetWriteDeadline(time.Time) error }); ok {
				_ = d.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
			}
			_ = n.send(&wire.ToRadio{Disconnect: true})
		}
		n.cancel()
		err = link.Close()
		if done != nil {
			<-done
		}
		n.logState(log.StateEntityLink, "OPEN", "CLOSED", "")
	})
	return err
}

func (n *Node) readLoop(framer *transport.Framer, done chan<- struct{}) {
	defer close(done)
	for {
		payload, err := framer.ReadFrame()
		if err != nil {
			n.linkLost(err)
			return
		}
		msg, err := wire.DecodeFromRadio(payload)
		if err != nil {
			n.log.Debug("dropping undecodable frame", "error", err)
			n.capture.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: n.connID,
				Direction:    log.DirectionIn,
				Layer:        log.LayerWire,
				Category:     log.CategoryError,
				Error:        &log.ErrorEventData{Layer: log.LayerWire, Message: err.Error(), Context: "decode FromRadio"},
			})
			continue
		}
		n.captureMessage(log.DirectionIn, log.MessageFromRadio(msg))
		n.handle(msg)
	}
}

func (n *Node) handle(msg *wire.FromRadio) {
	switch {
	case msg.Packet != nil:
		n.handlePacket(msg.Packet)
	case msg.MyInfo != nil:
		n.mu.Lock()
		n.info.NodeNum = msg.MyInfo.MyNodeNum
		n.mu.Unlock()
	case msg.NodeInfo != nil:
		n.mu.Lock()
		if msg.NodeInfo.Num == n.info.NodeNum && msg.NodeInfo.User != nil {
			n.info.Owner = msg.NodeInfo.User
		}
		n.mu.Unlock()
	case msg.ConfigCompleteID != 0:
		n.mu.Lock()
		want := n.wantConfigID
		n.mu.Unlock()
		if msg.ConfigCompleteID == want {
			n.configOnce.Do(func() { close(n.configDone) })
		}
	case msg.Rebooted:
		n.log.Info("node rebooted")
	}
}

func (n *Node) handlePacket(p *wire.MeshPacket) {
	if d := p.Decoded; d != nil && d.RequestID != 0 {
		n.mu.Lock()
		ch, ok := n.pending[d.RequestID]
		n.mu.Unlock()
		if ok {
			select {
			case ch <- p:
			default:
			}
			return
		}
	}

	n.mu.Lock()
	pub := n.pub
	n.mu.Unlock()
	if pub == nil {
		return
	}
	err := pub.Publish(n.ctx, eventbus.MessageReceived{ReceivedAt: time.Now(), Packet: p})
	if err != nil && !n.closing.Load() {
		n.log.Debug("inbound packet not published", "error", err)
	}
}

func (n *Node) linkLost(err error) {
	n.mu.Lock()
	n.lostErr = err
	n.connected = false
	established := n.established
	pub := n.pub
	n.mu.Unlock()
	close(n.lost)

	if n.closing.Load() {
		return
	}
	n.logState(log.StateEntityLink, "OPEN", "LOST", err.Error())
	n.log.Warn("link lost", "error", err)
	if pub != nil && established {
		_ = pub.Publish(n.ctx, eventbus.ConnectionLost{Err: err})
	}
}

func (n *Node) lostCause() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lostErr
}

// send encodes and writes one ToRadio message.
func (n *Node) send(msg *wire.ToRadio) error {
	n.mu.Lock()
	framer := n.framer
	n.mu.Unlock()
	if framer == nil {
		return ErrNotConnected
	}
	if err := framer.WriteFrame(wire.EncodeToRadio(msg)); err != nil {
		return err
	}
	n.captureMessage(log.DirectionOut, log.MessageToRadio(msg))
	return nil
}

func (n *Node) nextPacketID() uint32 {
	for {
		if id := n.packetID.Add(1); id != 0 {
			return id
		}
	}
}

func (n *Node) captureMessage(dir log.Direction, m *log.MessageEvent) {
	info := n.Info()
	n.capture.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: n.connID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Link:         info.Link,
		NodeNum:      info.NodeNum,
		Message:      m,
	})
}

func (n *Node) logState(entity log.StateEntity, from, to, reason string) {
	n.capture.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: n.connID,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}
