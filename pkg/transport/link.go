package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Link defaults.
const (
	// DefaultTCPPort is the port network nodes serve the stream protocol on.
	DefaultTCPPort = "4403"

	// DefaultBaudRate is the serial speed nodes use for the stream protocol.
	DefaultBaudRate = 115200

	// wakeSettle is how long a serial node needs after the wake sequence.
	wakeSettle = 100 * time.Millisecond
)

// Link errors.
var (
	// ErrNoSerialPort indicates auto-detection found no candidate port.
	ErrNoSerialPort = errors.New("no serial port found")

	// ErrMultipleSerialPorts indicates auto-detection found more than one
	// candidate and cannot choose.
	ErrMultipleSerialPorts = errors.New("multiple serial ports found")
)

// Link is a byte stream to a node.
type Link interface {
	io.ReadWriteCloser

	// String describes the link, e.g. "tcp:10.0.0.5:4403".
	String() string
}

// Waker is implemented by links that must be woken before framing starts.
type Waker interface {
	Wake(fw *FrameWriter) error
}

type connLink struct {
	net.Conn
	name string
}

func (l *connLink) String() string { return l.name }

// DialTCP connects to a network node. host may omit the port.
func DialTCP(ctx context.Context, host string) (Link, error) {
	addr := TCPAddress(host)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &connLink{Conn: conn, name: "tcp:" + addr}, nil
}

// TCPAddress adds DefaultTCPPort to host when it has no port.
func TCPAddress(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), DefaultTCPPort)
}

// NewStreamLink wraps an established connection, used for in-process
// nodes and tests.
func NewStreamLink(conn net.Conn, name string) Link {
	return &connLink{Conn: conn, name: name}
}

type serialLink struct {
	serial.Port
	name string
}

func (l *serialLink) String() string { return "serial:" + l.name }

// Wake sends the wake sequence and gives the node time to switch modes.
func (l *serialLink) Wake(fw *FrameWriter) error {
	if err := fw.Wake(); err != nil {
		return err
	}
	time.Sleep(wakeSettle)
	return l.ResetInputBuffer()
}

// OpenSerial opens a serial node at DefaultBaudRate, 8N1.
func OpenSerial(name string) (Link, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &serialLink{Port: port, name: name}, nil
}

// listPorts is replaced in tests.
var listPorts = serial.GetPortsList

// DetectSerialPort returns the single serial port that looks like a node.
func DetectSerialPort() (string, error) {
	ports, err := listPorts()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	candidates := serialCandidates(ports)
	switch len(candidates) {
	case 0:
		return "", ErrNoSerialPort
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrMultipleSerialPorts, strings.Join(candidates, ", "))
	}
}

var serialPrefixes = []string{
	"/dev/ttyUSB",
	"/dev/ttyACM",
	"/dev/cu.usbserial",
	"/dev/cu.usbmodem",
	"/dev/cu.SLAB_USBtoUART",
	"/dev/cu.wchusbserial",
	"COM",
}

func serialCandidates(ports []string) []string {
	var out []string
	for _, p := range ports {
		for _, prefix := range serialPrefixes {
			if strings.HasPrefix(p, prefix) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
