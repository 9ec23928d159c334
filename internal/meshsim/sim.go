// Package meshsim is an in-process mesh node speaking the stream protocol.
//
// It answers the configuration handshake, serves admin get/set requests
// from in-memory state, acknowledges writes, records sent text and can
// inject inbound traffic. Faults can be configured per admin kind to
// exercise error paths.
package meshsim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/meshnode/meshnode-go/pkg/transport"
	"github.com/meshnode/meshnode-go/pkg/wire"
)

// Write kinds, as used by Fault and Writes.
const (
	KindOwner    = "owner"
	KindLoRa     = "lora"
	KindDevice   = "device"
	KindPosition = "position"
	KindNetwork  = "network"
	KindChannel  = "channel"
	KindCommit   = "commit"
)

// Fault alters the handling of admin messages of one kind.
type Fault struct {
	Kind string

	// After lets this many matching messages succeed first.
	After int

	// Reason is returned as a routing error. Ignored when Drop is set.
	Reason wire.RoutingError

	// Drop discards the message without any reply.
	Drop bool

	// Get applies the fault to get requests instead of writes.
	Get bool
}

// SentText is a text packet received from the host.
type SentText struct {
	Channel uint32
	Text    string
}

// Sim is a simulated node.
type Sim struct {
	mu       sync.Mutex
	nodeNum  uint32
	owner    *wire.User
	lora     *wire.LoRaConfig
	device   *wire.DeviceConfig
	position *wire.PositionConfig
	network  *wire.NetworkConfig
	channels [wire.MaxChannels]*wire.Channel

	writes     map[string]int
	seen       map[string]int
	faults     []Fault
	sent       []SentText
	heartbeats int
	editing    bool

	conns  map[*transport.Framer]io.Closer
	logger *slog.Logger
}

// New returns a node with factory defaults: region unset, client role,
// one unnamed primary channel using the default key.
func New(nodeNum uint32) *Sim {
	s := &Sim{
		nodeNum: nodeNum,
		owner: &wire.User{
			ID:        wire.NodeID(nodeNum),
			LongName:  fmt.Sprintf("Meshtastic %04x", nodeNum&0xffff),
			ShortName: fmt.Sprintf("%04x", nodeNum&0xffff),
		},
		lora:     &wire.LoRaConfig{UsePreset: true, Region: wire.RegionUnset, HopLimit: 3, TxEnabled: true},
		device:   &wire.DeviceConfig{Role: wire.RoleClient},
		position: &wire.PositionConfig{},
		network:  &wire.NetworkConfig{},
		writes:   make(map[string]int),
		seen:     make(map[string]int),
		conns:    make(map[*transport.Framer]io.Closer),
		logger:   slog.New(slog.DiscardHandler),
	}
	for i := range s.channels {
		s.channels[i] = &wire.Channel{Index: int32(i), Settings: &wire.ChannelSettings{}}
	}
	s.channels[0].Role = wire.ChannelRolePrimary
	s.channels[0].Settings.PSK = []byte{0x01}
	return s
}

// SetLogger sets the logger for served traffic.
func (s *Sim) SetLogger(l *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

// NodeNum returns the node number.
func (s *Sim) NodeNum() uint32 { return s.nodeNum }

// AddFault registers a fault.
func (s *Sim) AddFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, f)
}

// ClearFaults removes all faults.
func (s *Sim) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
	s.seen = make(map[string]int)
}

// SetChannel replaces a channel slot.
func (s *Sim) SetChannel(ch *wire.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.Index] = ch.Clone()
}

// Channel returns a copy of a channel slot.
func (s *Sim) Channel(index int) *wire.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[index].Clone()
}

// Region returns the configured region.
func (s *Sim) Region() wire.RegionCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lora.Region
}

// Role returns the configured device role.
func (s *Sim) Role() wire.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device.Role
}

// Owner returns a copy of the owner.
func (s *Sim) Owner() wire.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.owner
}

// Position returns a copy of the position section.
func (s *Sim) Position() wire.PositionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.position
}

// Network returns a copy of the network section.
func (s *Sim) Network() wire.NetworkConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.network
}

// SetRegion sets the region directly.
func (s *Sim) SetRegion(r wire.RegionCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lora.Region = r
}

// Writes returns how many writes of kind were applied.
func (s *Sim) Writes(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[kind]
}

// TotalWrites returns the number of applied writes of every kind.
func (s *Sim) TotalWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for k, n := range s.writes {
		if k != KindCommit {
			total += n
		}
	}
	return total
}

// Sent returns text packets received from the host.
func (s *Sim) Sent() []SentText {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentText(nil), s.sent...)
}

// Heartbeats returns the number of heartbeats received.
func (s *Sim) Heartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeats
}

// Connections returns the number of connected hosts.
func (s *Sim) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Dialer returns a dialer connecting to this node over an in-memory pipe.
// Served connections end with ctx. It matches node.Dialer.
func (s *Sim) Dialer(ctx context.Context) func(context.Context) (transport.Link, error) {
	return func(context.Context) (transport.Link, error) {
		client, server := net.Pipe()
		go func() { _ = s.Serve(ctx, server) }()
		return transport.NewStreamLink(client, "pipe:sim"), nil
	}
}

// ListenAndServe accepts TCP connections on addr until ctx ends.
func (s *Sim) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("simulated node listening", "addr", ln.Addr().String(), "node", wire.NodeID(s.nodeNum))
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			if err := s.Serve(ctx, conn); err != nil {
				s.logger.Warn("connection ended", "remote", conn.RemoteAddr().String(), "error", err)
			}
		}()
	}
}

// Serve speaks the stream protocol on conn until the host disconnects,
// the stream fails, or ctx ends.
func (s *Sim) Serve(ctx context.Context, conn io.ReadWriteCloser) error {
	framer := transport.NewFramer(conn)
	s.mu.Lock()
	s.conns[framer] = conn
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
		s.mu.Lock()
		delete(s.conns, framer)
		s.mu.Unlock()
	}()

	for {
		payload, err := framer.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		msg, err := wire.DecodeToRadio(payload)
		if err != nil {
			s.logger.Warn("undecodable frame", "error", err)
			continue
		}
		if msg.Disconnect {
			return nil
		}
		if err := s.handle(framer, msg); err != nil {
			return err
		}
	}
}

// InjectText delivers a text message from another node to every
// connected host.
func (s *Sim) InjectText(from uint32, channel uint32, text string) error {
	return s.broadcast(&wire.FromRadio{Packet: &wire.MeshPacket{
		From:    from,
		To:      wire.BroadcastAddr,
		Channel: channel,
		ID:      s.nextID(),
		Decoded: &wire.Data{PortNum: wire.PortTextMessage, Payload: []byte(text)},
	}})
}

// InjectPacket delivers an arbitrary packet to every connected host.
func (s *Sim) InjectPacket(p *wire.MeshPacket) error {
	return s.broadcast(&wire.FromRadio{Packet: p})
}

// Disconnect drops every connected host.
func (s *Sim) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
}

func (s *Sim) broadcast(m *wire.FromRadio) error {
	s.mu.Lock()
	conns := make([]*transport.Framer, 0, len(s.conns))
	for f := range s.conns {
		conns = append(conns, f)
	}
	s.mu.Unlock()

	var errs []error
	for _, f := range conns {
		errs = append(errs, f.WriteFrame(wire.EncodeFromRadio(m)))
	}
	return errors.Join(errs...)
}
