package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBrowser(added []serviceEntry, removed []serviceEntry) *Browser {
	b := &Browser{}
	b.browse = func(ctx context.Context, entries, gone chan<- serviceEntry) error {
		for _, e := range added {
			select {
			case entries <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for _, e := range removed {
			select {
			case gone <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		<-ctx.Done()
		return nil
	}
	return b
}

func TestToNode(t *testing.T) {
	n := toNode(serviceEntry{
		Instance: "Meshtastic_abcd",
		HostName: "meshtastic-abcd.local.",
		Port:     4403,
		Text:     []string{"id=!1234abcd", "shortname=BASE", "pio_env=tbeam"},
		Addrs:    []net.IP{net.ParseIP("fe80::1"), net.ParseIP("192.168.1.50")},
	})
	assert.Equal(t, "Meshtastic_abcd", n.InstanceName)
	assert.Equal(t, "!1234abcd", n.NodeID)
	assert.Equal(t, "BASE", n.ShortName)
	assert.Equal(t, "BASE (!1234abcd)", n.Label())
	assert.Equal(t, "192.168.1.50:4403", n.Address())
}

func TestAddress(t *testing.T) {
	tests := []struct {
		name string
		svc  NodeService
		want string
	}{
		{"host only", NodeService{Host: "node.local."}, "node.local.:4403"},
		{"ipv6 only", NodeService{Host: "node.local.", Addresses: []string{"fe80::1"}, Port: 4403}, "node.local.:4403"},
		{"ipv6 without host", NodeService{Addresses: []string{"fe80::1"}, Port: 4403}, "[fe80::1]:4403"},
		{"custom port", NodeService{Addresses: []string{"10.0.0.2"}, Port: 14403}, "10.0.0.2:14403"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.svc.Address())
		})
	}
}

func TestBrowseAggregatesByInstance(t *testing.T) {
	b := fakeBrowser([]serviceEntry{
		{Instance: "a", Port: 4403, Addrs: []net.IP{net.ParseIP("10.0.0.1")}},
		{Instance: "a", Port: 4403, Addrs: []net.IP{net.ParseIP("10.0.0.2")}},
		{Instance: "b", Port: 4403, Addrs: []net.IP{net.ParseIP("10.0.0.3")}},
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	nodes, err := b.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].InstanceName)
	assert.Equal(t, "b", nodes[1].InstanceName)
}

func TestFindFirst(t *testing.T) {
	b := fakeBrowser([]serviceEntry{{Instance: "only", Text: []string{"id=!00000001"}}}, nil)
	n, err := b.FindFirst(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "!00000001", n.NodeID)
}

func TestFindFirstNotFound(t *testing.T) {
	b := fakeBrowser(nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.FindFirst(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTXTRecords(t *testing.T) {
	txt := EncodeNodeTXT(&NodeInfo{NodeID: "!1234abcd", ShortName: "SIM"})
	strs := TXTRecordsToStrings(txt)
	assert.Equal(t, []string{"id=!1234abcd", "shortname=SIM"}, strs)
	assert.Equal(t, txt, StringsToTXTRecords(strs))

	assert.Equal(t, TXTRecordMap{"flag": ""}, StringsToTXTRecords([]string{"flag", ""}))
	assert.Empty(t, EncodeNodeTXT(&NodeInfo{}))
}

func TestValidateInstanceName(t *testing.T) {
	assert.NoError(t, ValidateInstanceName("Meshtastic_abcd"))
	assert.ErrorIs(t, ValidateInstanceName(""), ErrInvalidInstanceName)
	long := make([]byte, MaxInstanceNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.ErrorIs(t, ValidateInstanceName(string(long)), ErrInvalidInstanceName)
}

func TestAddressHelpers(t *testing.T) {
	merged := mergeAddresses([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, merged)
	assert.Equal(t, []string{"a", "c"}, removeAddresses(merged, []string{"b"}))
}
