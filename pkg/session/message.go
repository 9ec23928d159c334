package session

import (
	"fmt"
	"time"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

// ReceivedMessage is a text message received from the mesh.
type ReceivedMessage struct {
	Timestamp   time.Time `json:"timestamp"`
	SenderID    string    `json:"sender_id"`
	ChannelName string    `json:"channel"`
	Text        string    `json:"text"`
}

// ChannelNamer returns the display name of the channel at index, or false
// when it is not known.
type ChannelNamer func(index uint32) (string, bool)

// FromPacket builds a message from a text packet. It returns false for
// packets that carry no text.
func FromPacket(at time.Time, p *wire.MeshPacket, names ChannelNamer) (ReceivedMessage, bool) {
	if p == nil || p.Decoded == nil || p.Decoded.PortNum != wire.PortTextMessage {
		return ReceivedMessage{}, false
	}
	name := ""
	if names != nil {
		name, _ = names(p.Channel)
	}
	if name == "" {
		name = fmt.Sprintf("Channel %d", p.Channel)
	}
	return ReceivedMessage{
		Timestamp:   at,
		SenderID:    wire.NodeID(p.From),
		ChannelName: name,
		Text:        string(p.Decoded.Payload),
	}, true
}

// String formats the message the way it is shown on arrival.
func (m ReceivedMessage) String() string {
	return fmt.Sprintf("Message from %s on channel %s: %s", m.SenderID, m.ChannelName, m.Text)
}

// HistoryLine formats the message with its time for the history listing.
func (m ReceivedMessage) HistoryLine() string {
	return fmt.Sprintf("[%s] %s@%s: %s", m.Timestamp.Format("15:04:05"), m.SenderID, m.ChannelName, m.Text)
}
