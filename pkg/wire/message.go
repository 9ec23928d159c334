package wire

import (
	"fmt"
	"strconv"
)

// BroadcastAddr is the node number that addresses every node in the mesh.
const BroadcastAddr uint32 = 0xFFFFFFFF

// MaxChannels is the number of channel slots a node exposes.
const MaxChannels = 8

// MaxDataPayload is the largest Data payload the mesh carries.
const MaxDataPayload = 233

// ToRadio is the envelope for everything the host sends to the node.
// Exactly one field is expected to be set.
type ToRadio struct {
	Packet       *MeshPacket // 1
	WantConfigID uint32      // 3
	Disconnect   bool        // 4
	Heartbeat    bool        // 7
}

// FromRadio is the envelope for everything the node sends to the host.
type FromRadio struct {
	ID               uint32      // 1
	Packet           *MeshPacket // 2
	MyInfo           *MyNodeInfo // 3
	NodeInfo         *NodeInfo   // 4
	Config           *Config     // 5
	ConfigCompleteID uint32      // 7
	Rebooted         bool        // 8
	Channel          *Channel    // 10
}

// MeshPacket is a packet routed through the mesh.
type MeshPacket struct {
	From     uint32 // 1, fixed32
	To       uint32 // 2, fixed32
	Channel  uint32 // 3
	Decoded  *Data  // 4
	ID       uint32 // 6, fixed32
	RxTime   uint32 // 7, fixed32
	HopLimit uint32 // 9
	WantAck  bool   // 10
}

// Data is the decoded application payload of a MeshPacket.
type Data struct {
	PortNum      PortNum // 1
	Payload      []byte  // 2
	WantResponse bool    // 3
	RequestID    uint32  // 6, fixed32
}

// Routing carries the delivery result for a request (ROUTING_APP payload).
type Routing struct {
	ErrorReason RoutingError // 3
}

// MyNodeInfo identifies the node the host is attached to.
type MyNodeInfo struct {
	MyNodeNum uint32 // 1
}

// NodeInfo is one entry of the node database.
type NodeInfo struct {
	Num       uint32 // 1
	User      *User  // 2
	LastHeard uint32 // 5, fixed32
	Channel   uint32 // 7
}

// User is the owner identity of a node.
type User struct {
	ID        string // 1
	LongName  string // 2
	ShortName string // 3
	HWModel   uint32 // 5

	unknown []byte
}

// Channel is one channel slot.
type Channel struct {
	Index    int32            // 1
	Settings *ChannelSettings // 2
	Role     ChannelRole      // 3
}

// ChannelSettings holds the user-visible channel parameters.
type ChannelSettings struct {
	PSK             []byte // 2
	Name            string // 3
	ID              uint32 // 4, fixed32
	UplinkEnabled   bool   // 5
	DownlinkEnabled bool   // 6

	unknown []byte
}

// Config is a single configuration section. Exactly one field is set.
type Config struct {
	Device   *DeviceConfig   // 1
	Position *PositionConfig // 2
	Network  *NetworkConfig  // 4
	LoRa     *LoRaConfig     // 6
}

// Type returns the config type of the populated section.
// The second result is false when no section is set.
func (c *Config) Type() (ConfigType, bool) {
	switch {
	case c == nil:
		return 0, false
	case c.Device != nil:
		return ConfigTypeDevice, true
	case c.Position != nil:
		return ConfigTypePosition, true
	case c.Network != nil:
		return ConfigTypeNetwork, true
	case c.LoRa != nil:
		return ConfigTypeLoRa, true
	default:
		return 0, false
	}
}

// DeviceConfig is the device section.
type DeviceConfig struct {
	Role                  Role   // 1
	SerialEnabled         bool   // 2
	NodeInfoBroadcastSecs uint32 // 7

	unknown []byte
}

// PositionConfig is the position section.
type PositionConfig struct {
	PositionBroadcastSecs uint32 // 1
	SmartEnabled          bool   // 2
	FixedPosition         bool   // 3
	GPSUpdateInterval     uint32 // 5

	unknown []byte
}

// NetworkConfig is the network section.
type NetworkConfig struct {
	WifiEnabled bool   // 1
	WifiSSID    string // 3
	WifiPSK     string // 4
	NTPServer   string // 5
	EthEnabled  bool   // 6

	unknown []byte
}

// LoRaConfig is the radio section.
type LoRaConfig struct {
	UsePreset   bool       // 1
	ModemPreset uint32     // 2
	Region      RegionCode // 7
	HopLimit    uint32     // 8
	TxEnabled   bool       // 9
	TxPower     int32      // 10
	ChannelNum  uint32     // 11

	unknown []byte
}

// AdminMessage is the payload of ADMIN_APP packets. Exactly one field is set.
type AdminMessage struct {
	GetChannelRequest  uint32      // 1, slot index + 1
	GetChannelResponse *Channel    // 2
	GetOwnerRequest    bool        // 3
	GetOwnerResponse   *User       // 4
	GetConfigRequest   *ConfigType // 5
	GetConfigResponse  *Config     // 6
	SetOwner           *User       // 32
	SetChannel         *Channel    // 33
	SetConfig          *Config     // 34
	BeginEditSettings  bool        // 64
	CommitEditSettings bool        // 65
}

// Kind returns a short name for the populated field, used in logs.
func (m *AdminMessage) Kind() string {
	switch {
	case m.GetChannelRequest != 0:
		return "get_channel_request"
	case m.GetChannelResponse != nil:
		return "get_channel_response"
	case m.GetOwnerRequest:
		return "get_owner_request"
	case m.GetOwnerResponse != nil:
		return "get_owner_response"
	case m.GetConfigRequest != nil:
		return "get_config_request"
	case m.GetConfigResponse != nil:
		return "get_config_response"
	case m.SetOwner != nil:
		return "set_owner"
	case m.SetChannel != nil:
		return "set_channel"
	case m.SetConfig != nil:
		return "set_config"
	case m.BeginEditSettings:
		return "begin_edit_settings"
	case m.CommitEditSettings:
		return "commit_edit_settings"
	default:
		return "empty"
	}
}

// Clone returns a deep copy of the channel.
func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}
	out := *c
	if c.Settings != nil {
		s := *c.Settings
		s.PSK = append([]byte(nil), c.Settings.PSK...)
		s.unknown = append([]byte(nil), c.Settings.unknown...)
		out.Settings = &s
	}
	return &out
}

// DisplayName returns the channel name, or "Unnamed channel N" when empty.
func (c *Channel) DisplayName() string {
	if c.Settings != nil && c.Settings.Name != "" {
		return c.Settings.Name
	}
	return unnamedChannel(c.Index)
}

func unnamedChannel(index int32) string {
	return "Unnamed channel " + strconv.Itoa(int(index))
}

// NodeID formats a node number the way the mesh displays it, e.g. "!1234abcd".
func NodeID(num uint32) string {
	return fmt.Sprintf("!%08x", num)
}
