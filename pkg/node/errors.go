package node

import (
	"errors"
	"fmt"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

// Node errors.
var (
	// ErrUnsupported indicates a section or operation the node cannot serve.
	ErrUnsupported = errors.New("unsupported")

	// ErrNotConnected is returned by operations issued before Connect or
	// after the link was lost.
	ErrNotConnected = errors.New("not connected")

	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("node closed")

	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrLinkLost indicates the link failed while a request was pending.
	ErrLinkLost = errors.New("link lost")

	// ErrUnexpectedResponse indicates an admin response of the wrong kind.
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrTextTooLong indicates a text message above wire.MaxDataPayload.
	ErrTextTooLong = errors.New("text too long")
)

// ConnectError reports a failure to open or handshake the link.
type ConnectError struct {
	Link string
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Link == "" {
		return fmt.Sprintf("connect: %v", e.Err)
	}
	return fmt.Sprintf("connect %s: %v", e.Link, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// WriteError reports a rejected or unacknowledged section write.
type WriteError struct {
	Section Section
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Section, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// SendError reports a failed text send.
type SendError struct {
	Channel int
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send on channel %d: %v", e.Channel, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// RoutingError is a negative acknowledgement from the node.
type RoutingError struct {
	Reason wire.RoutingError
}

func (e *RoutingError) Error() string {
	return "node rejected request: " + e.Reason.String()
}
