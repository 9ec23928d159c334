package channel

import (
	"bytes"
	"strconv"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

// MaxSlots is the number of channel slots on a node.
const MaxSlots = wire.MaxChannels

// Slot is a read-only view of one channel slot.
type Slot struct {
	Index    int
	Name     string
	Role     wire.ChannelRole
	PSK      []byte
	Uplink   bool
	Downlink bool
}

// SlotFromWire converts a channel read from the node.
func SlotFromWire(ch *wire.Channel) Slot {
	s := Slot{Index: int(ch.Index), Role: ch.Role}
	if ch.Settings != nil {
		s.Name = ch.Settings.Name
		s.PSK = append([]byte(nil), ch.Settings.PSK...)
		s.Uplink = ch.Settings.UplinkEnabled
		s.Downlink = ch.Settings.DownlinkEnabled
	}
	return s
}

// DisplayName returns the name, or "Unnamed channel N" for unnamed slots.
func (s Slot) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return "Unnamed channel " + strconv.Itoa(s.Index)
}

// Enabled reports whether the slot is in use.
func (s Slot) Enabled() bool {
	return s.Role != wire.ChannelRoleDisabled
}

// Keyed reports whether the slot carries its own key rather than none or
// one of the single-byte default keys.
func (s Slot) Keyed() bool {
	return len(s.PSK) > 1
}

// Spec is a desired channel configuration. Nil flags and an unset
// passphrase leave the current values alone.
type Spec struct {
	Name       string
	Passphrase Passphrase
	Uplink     *bool
	Downlink   *bool
}

// Satisfied reports whether the slot already matches spec. A generated
// passphrase is satisfied by any keyed slot so that repeated runs with
// "random" do not rotate the key.
func (s Slot) Satisfied(spec Spec) bool {
	if !s.Enabled() {
		return false
	}
	if spec.Name != "" && spec.Name != s.Name {
		return false
	}
	if spec.Uplink != nil && *spec.Uplink != s.Uplink {
		return false
	}
	if spec.Downlink != nil && *spec.Downlink != s.Downlink {
		return false
	}
	switch {
	case spec.Passphrase.Kind == PassphraseUnset:
		return true
	case spec.Passphrase.Generated:
		return s.Keyed()
	default:
		return bytes.Equal(spec.Passphrase.Bytes(), s.PSK)
	}
}

// apply returns ch with spec applied.
func apply(ch *wire.Channel, spec Spec) *wire.Channel {
	out := ch.Clone()
	if out.Settings == nil {
		out.Settings = &wire.ChannelSettings{}
	}
	if out.Role == wire.ChannelRoleDisabled {
		out.Role = wire.ChannelRoleSecondary
		if out.Index == 0 {
			out.Role = wire.ChannelRolePrimary
		}
	}
	if spec.Name != "" {
		out.Settings.Name = spec.Name
	}
	if b := spec.Passphrase.Bytes(); b != nil {
		out.Settings.PSK = b
	}
	if spec.Uplink != nil {
		out.Settings.UplinkEnabled = *spec.Uplink
	}
	if spec.Downlink != nil {
		out.Settings.DownlinkEnabled = *spec.Downlink
	}
	return out
}
