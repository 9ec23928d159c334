package eventbus

import (
	"time"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

// Kind identifies an event type for subscription.
type Kind uint8

const (
	KindMessageReceived Kind = iota
	KindConnectionEstablished
	KindConnectionLost
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMessageReceived:
		return "MessageReceived"
	case KindConnectionEstablished:
		return "ConnectionEstablished"
	case KindConnectionLost:
		return "ConnectionLost"
	default:
		return "Unknown"
	}
}

// Event is implemented by every event type carried by the bus.
type Event interface {
	Kind() Kind
}

// MessageReceived carries a decoded mesh packet addressed to or overheard
// by the local node.
type MessageReceived struct {
	ReceivedAt time.Time
	Packet     *wire.MeshPacket
}

// Kind implements Event.
func (MessageReceived) Kind() Kind { return KindMessageReceived }

// ConnectionEstablished is published once the node has finished sending
// its configuration.
type ConnectionEstablished struct {
	Link    string
	NodeNum uint32
	Owner   *wire.User
}

// Kind implements Event.
func (ConnectionEstablished) Kind() Kind { return KindConnectionEstablished }

// ConnectionLost is published when the link fails after being established.
// Err is nil for an orderly close.
type ConnectionLost struct {
	Err error
}

// Kind implements Event.
func (ConnectionLost) Kind() Kind { return KindConnectionLost }
