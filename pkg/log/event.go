package log

import (
	"time"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

// Event is a protocol capture event recorded at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies one link session (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// Link describes the transport, e.g. "tcp:192.168.1.50:4403".
	Link string `cbor:"6,keyasint,omitempty"`

	// NodeNum is the local node number once known.
	NodeNum uint32 `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these is set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Debug       *DebugEvent       `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates message flow relative to the host.
type Direction uint8

const (
	// DirectionIn is node to host.
	DirectionIn Direction = 0
	// DirectionOut is host to node.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates where the event was captured.
type Layer uint8

const (
	LayerTransport Layer = 0
	LayerWire      Layer = 1
	LayerSession   Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryDebug   Category = 1
	CategoryState   Category = 2
	CategoryError   Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryDebug:
		return "DEBUG"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw stream frame.
type FrameEvent struct {
	// Size is the frame size in bytes including the 4-byte header.
	Size int `cbor:"1,keyasint"`

	Data []byte `cbor:"2,keyasint,omitempty"`
}

// MessageEvent captures a decoded ToRadio or FromRadio message.
type MessageEvent struct {
	// Variant names the populated envelope field ("packet", "config",
	// "channel", "want_config", "config_complete", ...).
	Variant string `cbor:"1,keyasint"`

	PacketID uint32        `cbor:"2,keyasint,omitempty"`
	From     uint32        `cbor:"3,keyasint,omitempty"`
	To       uint32        `cbor:"4,keyasint,omitempty"`
	Channel  *uint32       `cbor:"5,keyasint,omitempty"`
	PortNum  *wire.PortNum `cbor:"6,keyasint,omitempty"`

	// Admin is the admin message kind for ADMIN_APP packets.
	Admin string `cbor:"7,keyasint,omitempty"`

	// RequestID correlates admin responses and routing acks.
	RequestID uint32 `cbor:"8,keyasint,omitempty"`

	// Text is the payload of TEXT_MESSAGE_APP packets.
	Text string `cbor:"9,keyasint,omitempty"`
}

// StateChangeEvent captures link and session lifecycle changes.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	StateEntityLink    StateEntity = 0
	StateEntitySession StateEntity = 1
	StateEntityConfig  StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityLink:
		return "LINK"
	case StateEntitySession:
		return "SESSION"
	case StateEntityConfig:
		return "CONFIG"
	default:
		return "UNKNOWN"
	}
}

// DebugEvent captures a line of device console output found between frames.
type DebugEvent struct {
	Line string `cbor:"1,keyasint"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// MessageFromRadio builds a wire-layer event describing an inbound message.
func MessageFromRadio(m *wire.FromRadio) *MessageEvent {
	switch {
	case m.Packet != nil:
		return packetEvent(m.Packet)
	case m.MyInfo != nil:
		return &MessageEvent{Variant: "my_info"}
	case m.NodeInfo != nil:
		return &MessageEvent{Variant: "node_info", From: m.NodeInfo.Num}
	case m.Config != nil:
		return &MessageEvent{Variant: "config"}
	case m.Channel != nil:
		return &MessageEvent{Variant: "channel"}
	case m.ConfigCompleteID != 0:
		return &MessageEvent{Variant: "config_complete", RequestID: m.ConfigCompleteID}
	case m.Rebooted:
		return &MessageEvent{Variant: "rebooted"}
	default:
		return &MessageEvent{Variant: "other"}
	}
}

// MessageToRadio builds a wire-layer event describing an outbound message.
func MessageToRadio(m *wire.ToRadio) *MessageEvent {
	switch {
	case m.Packet != nil:
		return packetEvent(m.Packet)
	case m.WantConfigID != 0:
		return &MessageEvent{Variant: "want_config", RequestID: m.WantConfigID}
	case m.Heartbeat:
		return &MessageEvent{Variant: "heartbeat"}
	case m.Disconnect:
		return &MessageEvent{Variant: "disconnect"}
	default:
		return &MessageEvent{Variant: "other"}
	}
}

func packetEvent(p *wire.MeshPacket) *MessageEvent {
	ev := &MessageEvent{
		Variant:  "packet",
		PacketID: p.ID,
		From:     p.From,
		To:       p.To,
	}
	ch := p.Channel
	ev.Channel = &ch
	if p.Decoded == nil {
		return ev
	}
	port := p.Decoded.PortNum
	ev.PortNum = &port
	ev.RequestID = p.Decoded.RequestID
	switch port {
	case wire.PortTextMessage:
		ev.Text = string(p.Decoded.Payload)
	case wire.PortAdmin:
		if admin, err := wire.DecodeAdmin(p.Decoded.Payload); err == nil {
			ev.Admin = admin.Kind()
		}
	}
	return ev
}
