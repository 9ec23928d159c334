package node

import (
	"fmt"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

// Section names a unit of node configuration.
type Section uint8

const (
	SectionIdentity Section = iota
	SectionRegion
	SectionRole
	SectionPosition
	SectionNetwork
	SectionChannel
)

// String returns the section name.
func (s Section) String() string {
	switch s {
	case SectionIdentity:
		return "identity"
	case SectionRegion:
		return "region"
	case SectionRole:
		return "role"
	case SectionPosition:
		return "position"
	case SectionNetwork:
		return "network"
	case SectionChannel:
		return "channel"
	default:
		return fmt.Sprintf("section(%d)", uint8(s))
	}
}

// SectionValue holds one section. The field matching Section is set.
type SectionValue struct {
	Section Section

	Owner    *wire.User
	LoRa     *wire.LoRaConfig
	Device   *wire.DeviceConfig
	Position *wire.PositionConfig
	Network  *wire.NetworkConfig
	Channel  *wire.Channel
}

func configType(s Section) (wire.ConfigType, bool) {
	switch s {
	case SectionRegion:
		return wire.ConfigTypeLoRa, true
	case SectionRole:
		return wire.ConfigTypeDevice, true
	case SectionPosition:
		return wire.ConfigTypePosition, true
	case SectionNetwork:
		return wire.ConfigTypeNetwork, true
	default:
		return 0, false
	}
}

// fromConfig extracts the section from a config response.
func fromConfig(s Section, c *wire.Config) (SectionValue, bool) {
	v := SectionValue{Section: s}
	if c == nil {
		return v, false
	}
	switch s {
	case SectionRegion:
		v.LoRa = c.LoRa
		return v, c.LoRa != nil
	case SectionRole:
		v.Device = c.Device
		return v, c.Device != nil
	case SectionPosition:
		v.Position = c.Position
		return v, c.Position != nil
	case SectionNetwork:
		v.Network = c.Network
		return v, c.Network != nil
	}
	return v, false
}

// setMessage builds the admin message that writes v.
func setMessage(v SectionValue) (*wire.AdminMessage, error) {
	switch v.Section {
	case SectionIdentity:
		if v.Owner != nil {
			return &wire.AdminMessage{SetOwner: v.Owner}, nil
		}
	case SectionRegion:
		if v.LoRa != nil {
			return &wire.AdminMessage{SetConfig: &wire.Config{LoRa: v.LoRa}}, nil
		}
	case SectionRole:
		if v.Device != nil {
			return &wire.AdminMessage{SetConfig: &wire.Config{Device: v.Device}}, nil
		}
	case SectionPosition:
		if v.Position != nil {
			return &wire.AdminMessage{SetConfig: &wire.Config{Position: v.Position}}, nil
		}
	case SectionNetwork:
		if v.Network != nil {
			return &wire.AdminMessage{SetConfig: &wire.Config{Network: v.Network}}, nil
		}
	case SectionChannel:
		if v.Channel != nil {
			return &wire.AdminMessage{SetChannel: v.Channel}, nil
		}
	default:
		return nil, ErrUnsupported
	}
	return nil, fmt.Errorf("%s value missing", v.Section)
}
