package wire

import "fmt"

// RegionCode identifies the regulatory region the radio operates in.
// Numeric values match the node firmware.
type RegionCode uint32

const (
	RegionUnset  RegionCode = 0
	RegionUS     RegionCode = 1
	RegionEU433  RegionCode = 2
	RegionEU868  RegionCode = 3
	RegionCN     RegionCode = 4
	RegionJP     RegionCode = 5
	RegionANZ    RegionCode = 6
	RegionKR     RegionCode = 7
	RegionTW     RegionCode = 8
	RegionRU     RegionCode = 9
	RegionIN     RegionCode = 10
	RegionNZ865  RegionCode = 11
	RegionTH     RegionCode = 12
	RegionLoRa24 RegionCode = 13
	RegionUA433  RegionCode = 14
	RegionUA868  RegionCode = 15
	RegionMY433  RegionCode = 16
	RegionMY919  RegionCode = 17
	RegionSG923  RegionCode = 18
)

var regionNames = map[RegionCode]string{
	RegionUnset:  "UNSET",
	RegionUS:     "US",
	RegionEU433:  "EU433",
	RegionEU868:  "EU868",
	RegionCN:     "CN",
	RegionJP:     "JP",
	RegionANZ:    "ANZ",
	RegionKR:     "KR",
	RegionTW:     "TW",
	RegionRU:     "RU",
	RegionIN:     "IN",
	RegionNZ865:  "NZ865",
	RegionTH:     "TH",
	RegionLoRa24: "LORA_24",
	RegionUA433:  "UA433",
	RegionUA868:  "UA868",
	RegionMY433:  "MY433",
	RegionMY919:  "MY919",
	RegionSG923:  "SG923",
}

// String returns the canonical region name.
func (r RegionCode) String() string {
	if name, ok := regionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("REGION(%d)", uint32(r))
}

// IsValid returns true for known regions other than UNSET.
func (r RegionCode) IsValid() bool {
	_, ok := regionNames[r]
	return ok && r != RegionUnset
}

// RegionCodes returns every known region except UNSET, in numeric order.
func RegionCodes() []RegionCode {
	out := make([]RegionCode, 0, len(regionNames)-1)
	for r := RegionUS; r <= RegionSG923; r++ {
		out = append(out, r)
	}
	return out
}

// ParseRegionCode returns the region with the given canonical name.
// Matching is exact; alias handling belongs to the caller.
func ParseRegionCode(name string) (RegionCode, bool) {
	for code, n := range regionNames {
		if n == name {
			return code, true
		}
	}
	return RegionUnset, false
}

// Role is the device role which controls rebroadcast and power behaviour.
type Role uint32

const (
	RoleClient       Role = 0
	RoleClientMute   Role = 1
	RoleRouter       Role = 2
	RoleRouterClient Role = 3
	RoleRepeater     Role = 4
	RoleTracker      Role = 5
	RoleSensor       Role = 6
	RoleTAK          Role = 7
	RoleClientHidden Role = 8
	RoleLostAndFound Role = 9
	RoleTAKTracker   Role = 10
	RoleRouterLate   Role = 11
)

var roleNames = []string{
	RoleClient:       "CLIENT",
	RoleClientMute:   "CLIENT_MUTE",
	RoleRouter:       "ROUTER",
	RoleRouterClient: "ROUTER_CLIENT",
	RoleRepeater:     "REPEATER",
	RoleTracker:      "TRACKER",
	RoleSensor:       "SENSOR",
	RoleTAK:          "TAK",
	RoleClientHidden: "CLIENT_HIDDEN",
	RoleLostAndFound: "LOST_AND_FOUND",
	RoleTAKTracker:   "TAK_TRACKER",
	RoleRouterLate:   "ROUTER_LATE",
}

// String returns the role name.
func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("ROLE(%d)", uint32(r))
}

// Roles returns every known role in numeric order.
func Roles() []Role {
	out := make([]Role, len(roleNames))
	for i := range roleNames {
		out[i] = Role(i)
	}
	return out
}

// ConfigType selects a configuration section in admin get requests.
type ConfigType uint32

const (
	ConfigTypeDevice    ConfigType = 0
	ConfigTypePosition  ConfigType = 1
	ConfigTypePower     ConfigType = 2
	ConfigTypeNetwork   ConfigType = 3
	ConfigTypeDisplay   ConfigType = 4
	ConfigTypeLoRa      ConfigType = 5
	ConfigTypeBluetooth ConfigType = 6
)

// String returns the config type name.
func (c ConfigType) String() string {
	switch c {
	case ConfigTypeDevice:
		return "DEVICE_CONFIG"
	case ConfigTypePosition:
		return "POSITION_CONFIG"
	case ConfigTypePower:
		return "POWER_CONFIG"
	case ConfigTypeNetwork:
		return "NETWORK_CONFIG"
	case ConfigTypeDisplay:
		return "DISPLAY_CONFIG"
	case ConfigTypeLoRa:
		return "LORA_CONFIG"
	case ConfigTypeBluetooth:
		return "BLUETOOTH_CONFIG"
	default:
		return fmt.Sprintf("CONFIG(%d)", uint32(c))
	}
}

// PortNum identifies the application a Data payload belongs to.
type PortNum uint32

const (
	PortUnknown       PortNum = 0
	PortTextMessage   PortNum = 1
	PortRemoteHW      PortNum = 2
	PortPosition      PortNum = 3
	PortNodeInfo      PortNum = 4
	PortRouting       PortNum = 5
	PortAdmin         PortNum = 6
	PortTelemetry     PortNum = 67
	PortTraceroute    PortNum = 70
	PortPrivateRangeA PortNum = 256
)

// String returns the port name.
func (p PortNum) String() string {
	switch p {
	case PortUnknown:
		return "UNKNOWN_APP"
	case PortTextMessage:
		return "TEXT_MESSAGE_APP"
	case PortRemoteHW:
		return "REMOTE_HARDWARE_APP"
	case PortPosition:
		return "POSITION_APP"
	case PortNodeInfo:
		return "NODEINFO_APP"
	case PortRouting:
		return "ROUTING_APP"
	case PortAdmin:
		return "ADMIN_APP"
	case PortTelemetry:
		return "TELEMETRY_APP"
	case PortTraceroute:
		return "TRACEROUTE_APP"
	default:
		return fmt.Sprintf("PORT(%d)", uint32(p))
	}
}

// ChannelRole describes how a channel slot is used.
type ChannelRole uint32

const (
	// ChannelRoleDisabled marks a free slot.
	ChannelRoleDisabled ChannelRole = 0
	// ChannelRolePrimary is slot 0; its settings drive the radio.
	ChannelRolePrimary ChannelRole = 1
	// ChannelRoleSecondary is any other active slot.
	ChannelRoleSecondary ChannelRole = 2
)

// String returns the channel role name.
func (r ChannelRole) String() string {
	switch r {
	case ChannelRoleDisabled:
		return "DISABLED"
	case ChannelRolePrimary:
		return "PRIMARY"
	case ChannelRoleSecondary:
		return "SECONDARY"
	default:
		return fmt.Sprintf("CHANNEL_ROLE(%d)", uint32(r))
	}
}

// RoutingError is the result carried in a routing acknowledgement.
type RoutingError uint32

const (
	RoutingErrorNone           RoutingError = 0
	RoutingErrorNoRoute        RoutingError = 1
	RoutingErrorGotNAK         RoutingError = 2
	RoutingErrorTimeout        RoutingError = 3
	RoutingErrorNoInterface    RoutingError = 4
	RoutingErrorMaxRetransmit  RoutingError = 5
	RoutingErrorNoChannel      RoutingError = 6
	RoutingErrorTooLarge       RoutingError = 7
	RoutingErrorNoResponse     RoutingError = 8
	RoutingErrorDutyCycleLimit RoutingError = 9
	RoutingErrorBadRequest     RoutingError = 32
	RoutingErrorNotAuthorized  RoutingError = 33
)

// String returns the routing error name.
func (e RoutingError) String() string {
	switch e {
	case RoutingErrorNone:
		return "NONE"
	case RoutingErrorNoRoute:
		return "NO_ROUTE"
	case RoutingErrorGotNAK:
		return "GOT_NAK"
	case RoutingErrorTimeout:
		return "TIMEOUT"
	case RoutingErrorNoInterface:
		return "NO_INTERFACE"
	case RoutingErrorMaxRetransmit:
		return "MAX_RETRANSMIT"
	case RoutingErrorNoChannel:
		return "NO_CHANNEL"
	case RoutingErrorTooLarge:
		return "TOO_LARGE"
	case RoutingErrorNoResponse:
		return "NO_RESPONSE"
	case RoutingErrorDutyCycleLimit:
		return "DUTY_CYCLE_LIMIT"
	case RoutingErrorBadRequest:
		return "BAD_REQUEST"
	case RoutingErrorNotAuthorized:
		return "NOT_AUTHORIZED"
	default:
		return fmt.Sprintf("ROUTING_ERROR(%d)", uint32(e))
	}
}
