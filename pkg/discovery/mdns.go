package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Config configures the browser and advertiser.
type Config struct {
	// Interface restricts mDNS to one network interface.
	// Empty string means all interfaces.
	Interface string

	// TTL for advertised records. Zero uses the library default.
	TTL time.Duration
}

// serviceEntry is the part of a zeroconf entry the package uses.
type serviceEntry struct {
	Instance string
	HostName string
	Port     int
	Text     []string
	Addrs    []net.IP
}

func fromZeroconf(e *zeroconf.ServiceEntry) serviceEntry {
	addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	addrs = append(addrs, e.AddrIPv4...)
	addrs = append(addrs, e.AddrIPv6...)
	return serviceEntry{
		Instance: e.Instance,
		HostName: e.HostName,
		Port:     e.Port,
		Text:     e.Text,
		Addrs:    addrs,
	}
}

// toNode converts an entry to a NodeService.
func toNode(e serviceEntry) *NodeService {
	txt := StringsToTXTRecords(e.Text)
	addrs := make([]string, 0, len(e.Addrs))
	for _, ip := range e.Addrs {
		addrs = append(addrs, ip.String())
	}
	return &NodeService{
		InstanceName: e.Instance,
		Host:         e.HostName,
		Port:         uint16(e.Port),
		Addresses:    addrs,
		NodeID:       txt[TXTKeyID],
		ShortName:    txt[TXTKeyShortName],
	}
}

// Browser finds nodes using zeroconf.
type Browser struct {
	config Config
	browse func(ctx context.Context, entries, removed chan<- serviceEntry) error
}

// NewBrowser creates a browser.
func NewBrowser(config Config) *Browser {
	b := &Browser{config: config}
	b.browse = b.zeroconfBrowse
	return b
}

// zeroconfBrowse runs a zeroconf browse and forwards its entries.
func (b *Browser) zeroconfBrowse(ctx context.Context, entries, removed chan<- serviceEntry) error {
	zEntries := make(chan *zeroconf.ServiceEntry)
	zRemoved := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			var e *zeroconf.ServiceEntry
			var dst chan<- serviceEntry
			ok := true
			select {
			case e, ok = <-zEntries:
				dst = entries
			case e, ok = <-zRemoved:
				dst = removed
			case <-ctx.Done():
				return
			}
			if !ok {
				return
			}
			if e == nil {
				continue
			}
			select {
			case dst <- fromZeroconf(e):
			case <-ctx.Done():
				return
			}
		}
	}()
	return zeroconf.Browse(ctx, ServiceType, Domain, zEntries, zRemoved, b.options()...)
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		if iface, err := net.InterfaceByName(b.config.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// Browse reports nodes as they appear until ctx ends. Addresses from
// repeated entries are merged into the node reported first; later entries
// for a known instance are not reported again.
func (b *Browser) Browse(ctx context.Context) (<-chan *NodeService, error) {
	out := make(chan *NodeService)
	entries := make(chan serviceEntry)
	removed := make(chan serviceEntry)

	go func() {
		defer close(out)
		nodes := make(map[string]*NodeService)
		for {
			select {
			case e := <-entries:
				n := toNode(e)
				if existing, found := nodes[n.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, n.Addresses)
					continue
				}
				nodes[n.InstanceName] = n
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			case e := <-removed:
				if existing, found := nodes[e.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, toNode(e).Addresses)
					if len(existing.Addresses) == 0 {
						delete(nodes, e.Instance)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = b.browse(ctx, entries, removed)
	}()
	return out, nil
}

// FindAll browses until ctx ends, or DefaultBrowseTimeout without a
// deadline, and returns every node seen. An empty result is not an error.
func (b *Browser) FindAll(ctx context.Context) ([]*NodeService, error) {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	nodes, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var out []*NodeService
	for n := range nodes {
		out = append(out, n)
	}
	return out, nil
}

// FindFirst returns the first node found.
func (b *Browser) FindFirst(ctx context.Context) (*NodeService, error) {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	nodes, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	n, ok := <-nodes
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, DefaultBrowseTimeout)
}

// Advertiser publishes a node with zeroconf.
type Advertiser struct {
	config Config

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser.
func NewAdvertiser(config Config) *Advertiser {
	return &Advertiser{config: config}
}

// Advertise starts advertising info, replacing any earlier advertisement.
func (a *Advertiser) Advertise(info *NodeInfo) error {
	if err := ValidateInstanceName(info.InstanceName); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	var ifaces []net.Interface
	if a.config.Interface != "" {
		if iface, err := net.InterfaceByName(a.config.Interface); err == nil {
			ifaces = []net.Interface{*iface}
		}
	}

	server, err := zeroconf.Register(
		info.InstanceName,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeNodeTXT(info)),
		ifaces,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register node service: %w", err)
	}
	a.server = server
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the given addresses from the list.
func removeAddresses(addresses, gone []string) []string {
	drop := make(map[string]bool, len(gone))
	for _, a := range gone {
		drop[a] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !drop[addr] {
			result = append(result, addr)
		}
	}
	return result
}
