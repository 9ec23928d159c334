package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service constants.
const (
	// ServiceType is the mDNS service type of the stream API.
	ServiceType = "_meshtastic._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the stream API port.
	DefaultPort = 4403

	// DefaultBrowseTimeout bounds Find operations without a deadline.
	DefaultBrowseTimeout = 5 * time.Second

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyID        = "id"
	TXTKeyShortName = "shortname"
)

var (
	// ErrNotFound is returned when browsing ends without a result.
	ErrNotFound = errors.New("no node found")

	// ErrInvalidInstanceName is returned for empty or overlong names.
	ErrInvalidInstanceName = errors.New("invalid instance name")
)

// NodeService is a node found on the network.
type NodeService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	// NodeID and ShortName come from TXT records and may be empty.
	NodeID    string
	ShortName string
}

// Address returns a dialable host:port, preferring IPv4 addresses over
// the advertised host name.
func (s *NodeService) Address() string {
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	host := s.Host
	for _, a := range s.Addresses {
		ip := net.ParseIP(a)
		if ip != nil && ip.To4() != nil {
			host = a
			break
		}
		if host == "" {
			host = a
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

// Label returns a short description for listings.
func (s *NodeService) Label() string {
	switch {
	case s.ShortName != "" && s.NodeID != "":
		return s.ShortName + " (" + s.NodeID + ")"
	case s.NodeID != "":
		return s.NodeID
	default:
		return s.InstanceName
	}
}

// NodeInfo describes a node to advertise.
type NodeInfo struct {
	InstanceName string
	Port         uint16
	NodeID       string
	ShortName    string
}
