package node

import (
	"context"

	"github.com/meshnode/meshnode-go/pkg/connection"
	"github.com/meshnode/meshnode-go/pkg/transport"
)

// TCP returns a dialer for a network node. host may omit the port.
func TCP(host string) Dialer {
	return func(ctx context.Context) (transport.Link, error) {
		return transport.DialTCP(ctx, host)
	}
}

// Serial returns a dialer for a serial node. An empty port is detected.
// Detection failures are not retried.
func Serial(port string) Dialer {
	return func(context.Context) (transport.Link, error) {
		name := port
		if name == "" {
			detected, err := transport.DetectSerialPort()
			if err != nil {
				return nil, &connection.Permanent{Err: err}
			}
			name = detected
		}
		return transport.OpenSerial(name)
	}
}
