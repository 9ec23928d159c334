package node

import (
	"context"
	"fmt"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

// adminHopLimit is the hop limit for packets addressed to the local node.
const adminHopLimit = 3

// request sends an admin message to the local node and waits for the reply
// correlated by request ID. With wantResponse the reply is the admin
// response packet; otherwise it is the routing acknowledgement.
func (n *Node) request(ctx context.Context, msg *wire.AdminMessage, wantResponse bool) (*wire.MeshPacket, error) {
	n.mu.Lock()
	if !n.connected {
		n.mu.Unlock()
		return nil, ErrNotConnected
	}
	local := n.info.NodeNum
	id := n.nextPacketID()
	replies := make(chan *wire.MeshPacket, 4)
	n.pending[id] = replies
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		delete(n.pending, id)
		n.mu.Unlock()
	}()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.RequestTimeout)
		defer cancel()
	}

	err := n.send(&wire.ToRadio{Packet: &wire.MeshPacket{
		To:       local,
		ID:       id,
		HopLimit: adminHopLimit,
		WantAck:  true,
		Decoded: &wire.Data{
			PortNum:      wire.PortAdmin,
			Payload:      wire.EncodeAdmin(msg),
			WantResponse: wantResponse,
		},
	}})
	if err != nil {
		return nil, err
	}

	for {
		select {
		case p := <-replies:
			switch p.Decoded.PortNum {
			case wire.PortRouting:
				r, err := wire.DecodeRouting(p.Decoded.Payload)
				if err != nil {
					return nil, err
				}
				if r.ErrorReason != wire.RoutingErrorNone {
					return nil, &RoutingError{Reason: r.ErrorReason}
				}
				if !wantResponse {
					return p, nil
				}
			case wire.PortAdmin:
				if wantResponse {
					return p, nil
				}
			}
		case <-n.lost:
			return nil, fmt.Errorf("%w: %v", ErrLinkLost, n.lostCause())
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// query sends a get request and decodes the admin response.
func (n *Node) query(ctx context.Context, msg *wire.AdminMessage) (*wire.AdminMessage, error) {
	p, err := n.request(ctx, msg, true)
	if err != nil {
		return nil, err
	}
	return wire.DecodeAdmin(p.Decoded.Payload)
}

// GetSection reads one configuration section from the node. Channels are
// read by index with Channel.
func (n *Node) GetSection(ctx context.Context, s Section) (SectionValue, error) {
	if s == SectionIdentity {
		resp, err := n.query(ctx, &wire.AdminMessage{GetOwnerRequest: true})
		if err != nil {
			return SectionValue{}, fmt.Errorf("get %s: %w", s, err)
		}
		if resp.GetOwnerResponse == nil {
			return SectionValue{}, fmt.Errorf("get %s: %w: %s", s, ErrUnexpectedResponse, resp.Kind())
		}
		return SectionValue{Section: s, Owner: resp.GetOwnerResponse}, nil
	}

	ct, ok := configType(s)
	if !ok {
		return SectionValue{}, fmt.Errorf("get %s: %w", s, ErrUnsupported)
	}
	resp, err := n.query(ctx, &wire.AdminMessage{GetConfigRequest: &ct})
	if err != nil {
		return SectionValue{}, fmt.Errorf("get %s: %w", s, err)
	}
	v, ok := fromConfig(s, resp.GetConfigResponse)
	if !ok {
		return SectionValue{}, fmt.Errorf("get %s: %w: %s", s, ErrUnexpectedResponse, resp.Kind())
	}
	return v, nil
}

// Channel reads the channel slot at index.
func (n *Node) Channel(ctx context.Context, index int) (*wire.Channel, error) {
	if index < 0 || index >= wire.MaxChannels {
		return nil, fmt.Errorf("get channel %d: index out of range", index)
	}
	resp, err := n.query(ctx, &wire.AdminMessage{GetChannelRequest: uint32(index) + 1})
	if err != nil {
		return nil, fmt.Errorf("get channel %d: %w", index, err)
	}
	if resp.GetChannelResponse == nil {
		return nil, fmt.Errorf("get channel %d: %w: %s", index, ErrUnexpectedResponse, resp.Kind())
	}
	ch := resp.GetChannelResponse
	ch.Index = int32(index)
	return ch, nil
}

// Channels reads every channel slot in index order.
func (n *Node) Channels(ctx context.Context) ([]*wire.Channel, error) {
	out := make([]*wire.Channel, 0, wire.MaxChannels)
	for i := 0; i < wire.MaxChannels; i++ {
		ch, err := n.Channel(ctx, i)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// WriteSection writes one section and waits for the node to acknowledge it.
func (n *Node) WriteSection(ctx context.Context, v SectionValue) error {
	msg, err := setMessage(v)
	if err != nil {
		return &WriteError{Section: v.Section, Err: err}
	}
	if _, err := n.request(ctx, msg, false); err != nil {
		return &WriteError{Section: v.Section, Err: err}
	}
	return nil
}

// SendText broadcasts text on the channel at index. It returns once the
// packet is handed to the node; mesh delivery is not confirmed.
func (n *Node) SendText(ctx context.Context, text string, channel int) error {
	if len(text) > wire.MaxDataPayload {
		return &SendError{Channel: channel, Err: fmt.Errorf("%w: %d > %d bytes", ErrTextTooLong, len(text), wire.MaxDataPayload)}
	}
	if channel < 0 || channel >= wire.MaxChannels {
		return &SendError{Channel: channel, Err: fmt.Errorf("channel index out of range")}
	}
	if err := ctx.Err(); err != nil {
		return &SendError{Channel: channel, Err: err}
	}
	if !n.Connected() {
		return &SendError{Channel: channel, Err: ErrNotConnected}
	}

	err := n.send(&wire.ToRadio{Packet: &wire.MeshPacket{
		To:      wire.BroadcastAddr,
		Channel: uint32(channel),
		ID:      n.nextPacketID(),
		Decoded: &wire.Data{PortNum: wire.PortTextMessage, Payload: []byte(text)},
	}})
	if err != nil {
		return &SendError{Channel: channel, Err: err}
	}
	return nil
}

// BeginEdit opens a settings transaction. Writes are applied together
// when Flush commits.
func (n *Node) BeginEdit(ctx context.Context) error {
	if _, err := n.request(ctx, &wire.AdminMessage{BeginEditSettings: true}, false); err != nil {
		return fmt.Errorf("begin edit: %w", err)
	}
	n.mu.Lock()
	n.editing = true
	n.mu.Unlock()
	return nil
}

// Flush waits until the node has processed every earlier write. Inside an
// edit transaction it commits the edit; otherwise it performs a round trip.
func (n *Node) Flush(ctx context.Context) error {
	n.mu.Lock()
	editing := n.editing
	n.mu.Unlock()

	if editing {
		if _, err := n.request(ctx, &wire.AdminMessage{CommitEditSettings: true}, false); err != nil {
			return fmt.Errorf("commit edit: %w", err)
		}
		n.mu.Lock()
		n.editing = false
		n.mu.Unlock()
		return nil
	}
	if _, err := n.query(ctx, &wire.AdminMessage{GetOwnerRequest: true}); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
