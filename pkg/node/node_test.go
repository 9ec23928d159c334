package node_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshnode/meshnode-go/internal/meshsim"
	"github.com/meshnode/meshnode-go/pkg/connection"
	"github.com/meshnode/meshnode-go/pkg/eventbus"
	"github.com/meshnode/meshnode-go/pkg/log"
	"github.com/meshnode/meshnode-go/pkg/node"
	"github.com/meshnode/meshnode-go/pkg/transport"
	"github.com/meshnode/meshnode-go/pkg/wire"
)

const simNodeNum = 0x1234abcd

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
	ch     chan eventbus.Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{ch: make(chan eventbus.Event, 16)}
}

func (p *recordingPublisher) Publish(_ context.Context, ev eventbus.Event) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	p.ch <- ev
	return nil
}

func (p *recordingPublisher) next(t *testing.T) eventbus.Event {
	t.Helper()
	select {
	case ev := <-p.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func connect(t *testing.T, sim *meshsim.Sim, pub node.Publisher) *node.Node {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	n := node.New(node.Config{Dial: sim.Dialer(ctx), RequestTimeout: 2 * time.Second})
	if pub != nil {
		n.Subscribe(pub)
	}
	cctx, ccancel := context.WithTimeout(ctx, 2*time.Second)
	defer ccancel()
	require.NoError(t, n.Connect(cctx))
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestConnectHandshake(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	pub := newRecordingPublisher()
	n := connect(t, sim, pub)

	info := n.Info()
	assert.Equal(t, uint32(simNodeNum), info.NodeNum)
	assert.Equal(t, "pipe:sim", info.Link)
	require.NotNil(t, info.Owner)
	assert.Equal(t, "!1234abcd", info.Owner.ID)
	assert.True(t, n.Connected())

	ev := pub.next(t)
	est, ok := ev.(eventbus.ConnectionEstablished)
	require.True(t, ok, "first event is %T", ev)
	assert.Equal(t, uint32(simNodeNum), est.NodeNum)
}

func TestGetAndWriteSection(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	n := connect(t, sim, nil)
	ctx := context.Background()

	v, err := n.GetSection(ctx, node.SectionRegion)
	require.NoError(t, err)
	require.NotNil(t, v.LoRa)
	assert.Equal(t, wire.RegionUnset, v.LoRa.Region)

	v.LoRa.Region = wire.RegionEU868
	require.NoError(t, n.WriteSection(ctx, v))
	assert.Equal(t, wire.RegionEU868, sim.Region())

	owner, err := n.GetSection(ctx, node.SectionIdentity)
	require.NoError(t, err)
	owner.Owner.LongName = "Base Camp"
	require.NoError(t, n.WriteSection(ctx, owner))
	assert.Equal(t, "Base Camp", sim.Owner().LongName)
}

func TestGetSectionChannelUnsupported(t *testing.T) {
	n := connect(t, meshsim.New(simNodeNum), nil)
	_, err := n.GetSection(context.Background(), node.SectionChannel)
	assert.ErrorIs(t, err, node.ErrUnsupported)
}

func TestChannels(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	sim.SetChannel(&wire.Channel{Index: 2, Role: wire.ChannelRoleSecondary, Settings: &wire.ChannelSettings{Name: "Ops"}})
	n := connect(t, sim, nil)

	chans, err := n.Channels(context.Background())
	require.NoError(t, err)
	require.Len(t, chans, wire.MaxChannels)
	for i, ch := range chans {
		assert.Equal(t, int32(i), ch.Index)
	}
	assert.Equal(t, wire.ChannelRolePrimary, chans[0].Role)
	assert.Equal(t, "Ops", chans[2].DisplayName())
}

func TestWriteRejected(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	sim.AddFault(meshsim.Fault{Kind: meshsim.KindDevice, Reason: wire.RoutingErrorNotAuthorized})
	n := connect(t, sim, nil)
	ctx := context.Background()

	v, err := n.GetSection(ctx, node.SectionRole)
	require.NoError(t, err)
	v.Device.Role = wire.RoleRouter
	err = n.WriteSection(ctx, v)

	var we *node.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, node.SectionRole, we.Section)
	var re *node.RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, wire.RoutingErrorNotAuthorized, re.Reason)
	assert.Equal(t, wire.RoleClient, sim.Role())

	sim.ClearFaults()
	require.NoError(t, n.WriteSection(ctx, v))
	assert.Equal(t, wire.RoleRouter, sim.Role())
}

func TestRequestTimeout(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	sim.AddFault(meshsim.Fault{Kind: meshsim.KindLoRa, Get: true, Drop: true})
	n := connect(t, sim, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := n.GetSection(ctx, node.SectionRegion)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendTextAndInbound(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	pub := newRecordingPublisher()
	n := connect(t, sim, pub)
	pub.next(t) // ConnectionEstablished

	require.NoError(t, n.SendText(context.Background(), "hello mesh", 1))
	require.NoError(t, n.Flush(context.Background()))
	sent := sim.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, meshsim.SentText{Channel: 1, Text: "hello mesh"}, sent[0])

	require.NoError(t, sim.InjectText(0xdeadbeef, 0, "hi back"))
	ev := pub.next(t)
	msg, ok := ev.(eventbus.MessageReceived)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, uint32(0xdeadbeef), msg.Packet.From)
	assert.Equal(t, "hi back", string(msg.Packet.Decoded.Payload))
}

func TestInboundPacketOnOtherPort(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	pub := newRecordingPublisher()
	connect(t, sim, pub)
	pub.next(t)

	require.NoError(t, sim.InjectPacket(&wire.MeshPacket{
		From:    0xdeadbeef,
		To:      wire.BroadcastAddr,
		ID:      7,
		Decoded: &wire.Data{PortNum: wire.PortPosition, Payload: []byte{0x08, 0x01}},
	}))
	msg, ok := pub.next(t).(eventbus.MessageReceived)
	require.True(t, ok)
	assert.Equal(t, wire.PortPosition, msg.Packet.Decoded.PortNum)
}

func TestHeartbeatReachesNode(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := node.New(node.Config{
		Dial:      sim.Dialer(ctx),
		Heartbeat: transport.HeartbeatConfig{Interval: 10 * time.Millisecond},
	})
	require.NoError(t, n.Connect(ctx))
	defer n.Close()

	assert.Eventually(t, func() bool { return sim.Heartbeats() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSendTextTooLong(t *testing.T) {
	n := connect(t, meshsim.New(simNodeNum), nil)
	long := make([]byte, wire.MaxDataPayload+1)
	err := n.SendText(context.Background(), string(long), 0)

	var se *node.SendError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, node.ErrTextTooLong)
}

func TestEditTransaction(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	n := connect(t, sim, nil)
	ctx := context.Background()

	require.NoError(t, n.BeginEdit(ctx))
	v, err := n.GetSection(ctx, node.SectionPosition)
	require.NoError(t, err)
	v.Position.PositionBroadcastSecs = 900
	require.NoError(t, n.WriteSection(ctx, v))
	require.NoError(t, n.Flush(ctx))

	assert.Equal(t, 1, sim.Writes(meshsim.KindCommit))
	assert.Equal(t, uint32(900), sim.Position().PositionBroadcastSecs)
}

func TestConnectionLost(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	pub := newRecordingPublisher()
	n := connect(t, sim, pub)
	pub.next(t)

	sim.Disconnect()

	ev := pub.next(t)
	lost, ok := ev.(eventbus.ConnectionLost)
	require.True(t, ok, "got %T", ev)
	assert.Error(t, lost.Err)
	assert.False(t, n.Connected())

	_, err := n.GetSection(context.Background(), node.SectionRegion)
	assert.ErrorIs(t, err, node.ErrNotConnected)
}

func TestCloseIsIdempotent(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	pub := newRecordingPublisher()
	n := connect(t, sim, pub)
	pub.next(t)

	require.NoError(t, n.Close())
	assert.NoError(t, n.Close())
	assert.False(t, n.Connected())

	// An orderly close is not reported as a lost connection.
	select {
	case ev := <-pub.ch:
		t.Fatalf("unexpected event %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnectRetriesThenFails(t *testing.T) {
	dialErr := errors.New("connection refused")
	calls := 0
	n := node.New(node.Config{
		Dial: func(context.Context) (transport.Link, error) {
			calls++
			return nil, dialErr
		},
		ConnectAttempts: 3,
		Backoff:         connection.NewBackoffWithConfig(connection.BackoffConfig{Initial: time.Millisecond}),
	})

	err := n.Connect(context.Background())
	var ce *node.ConnectError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, 3, calls)
	assert.NoError(t, n.Close())
}

func TestCaptureRecordsTraffic(t *testing.T) {
	sim := meshsim.New(simNodeNum)
	rec := &captureRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := node.New(node.Config{Dial: sim.Dialer(ctx), Capture: rec})
	require.NoError(t, n.Connect(ctx))
	require.NoError(t, n.Close())

	var frames, wantConfig, completes int
	for _, ev := range rec.snapshot() {
		assert.Equal(t, n.ConnectionID(), ev.ConnectionID)
		if ev.Frame != nil {
			frames++
		}
		if ev.Message != nil && ev.Message.Variant == "want_config" {
			wantConfig++
		}
		if ev.Message != nil && ev.Message.Variant == "config_complete" {
			completes++
		}
	}
	assert.Positive(t, frames)
	assert.Equal(t, 1, wantConfig)
	assert.Equal(t, 1, completes)
}

type captureRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *captureRecorder) Log(e log.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *captureRecorder) snapshot() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]log.Event(nil), r.events...)
}
