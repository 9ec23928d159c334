package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed indicates a payload that is not valid protobuf.
var ErrMalformed = errors.New("malformed message")

// field is one decoded protobuf field.
type field struct {
	num   protowire.Number
	typ   protowire.Type
	num64 uint64 // varint, fixed32 and fixed64 values
	bytes []byte // length-delimited values
	raw   []byte // the complete field including its tag
}

// forEachField walks the top-level fields of a message.
func forEachField(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		start := b
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		var m int
		switch typ {
		case protowire.VarintType:
			f.num64, m = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, m = protowire.ConsumeFixed32(b)
			f.num64 = uint64(v)
		case protowire.Fixed64Type:
			f.num64, m = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, m = protowire.ConsumeBytes(b)
		default:
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
		f.raw = start[:n+m]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Proto3 scalars are omitted when they hold the default value. Oneof members
// are always emitted, so they use the *Always variants.

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	return appendVarintAlways(b, num, v)
}

func appendVarintAlways(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarintAlways(b, num, 1)
}

func appendFixed32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	return appendMessage(b, num, v)
}

func appendMessage(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// ---------------------------------------------------------------------------
// Envelopes
// ---------------------------------------------------------------------------

// EncodeToRadio encodes a ToRadio envelope.
func EncodeToRadio(m *ToRadio) []byte {
	var b []byte
	if m.Packet != nil {
		b = appendMessage(b, 1, encodeMeshPacket(m.Packet))
	}
	if m.WantConfigID != 0 {
		b = appendVarintAlways(b, 3, uint64(m.WantConfigID))
	}
	if m.Disconnect {
		b = appendVarintAlways(b, 4, 1)
	}
	if m.Heartbeat {
		// Heartbeat is an empty message.
		b = appendMessage(b, 7, nil)
	}
	return b
}

// DecodeToRadio decodes a ToRadio envelope.
func DecodeToRadio(data []byte) (*ToRadio, error) {
	m := &ToRadio{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 1:
			p, err := decodeMeshPacket(f.bytes)
			if err != nil {
				return fmt.Errorf("packet: %w", err)
			}
			m.Packet = p
		case 3:
			m.WantConfigID = uint32(f.num64)
		case 4:
			m.Disconnect = protowire.DecodeBool(f.num64)
		case 7:
			m.Heartbeat = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode ToRadio: %w", err)
	}
	return m, nil
}

// EncodeFromRadio encodes a FromRadio envelope.
func EncodeFromRadio(m *FromRadio) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.ID))
	if m.Packet != nil {
		b = appendMessage(b, 2, encodeMeshPacket(m.Packet))
	}
	if m.MyInfo != nil {
		b = appendMessage(b, 3, appendVarint(nil, 1, uint64(m.MyInfo.MyNodeNum)))
	}
	if m.NodeInfo != nil {
		b = appendMessage(b, 4, encodeNodeInfo(m.NodeInfo))
	}
	if m.Config != nil {
		b = appendMessage(b, 5, encodeConfig(m.Config))
	}
	if m.ConfigCompleteID != 0 {
		b = appendVarintAlways(b, 7, uint64(m.ConfigCompleteID))
	}
	if m.Rebooted {
		b = appendVarintAlways(b, 8, 1)
	}
	if m.Channel != nil {
		b = appendMessage(b, 10, encodeChannel(m.Channel))
	}
	return b
}

// DecodeFromRadio decodes a FromRadio envelope. Variants this package does
// not model are skipped, leaving every field nil.
func DecodeFromRadio(data []byte) (*FromRadio, error) {
	m := &FromRadio{}
	err := forEachField(data, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.ID = uint32(f.num64)
		case 2:
			m.Packet, err = decodeMeshPacket(f.bytes)
		case 3:
			m.MyInfo = &MyNodeInfo{}
			err = forEachField(f.bytes, func(g field) error {
				if g.num == 1 {
					m.MyInfo.MyNodeNum = uint32(g.num64)
				}
				return nil
			})
		case 4:
			m.NodeInfo, err = decodeNodeInfo(f.bytes)
		case 5:
			m.Config, err = decodeConfig(f.bytes)
		case 7:
			m.ConfigCompleteID = uint32(f.num64)
		case 8:
			m.Rebooted = protowire.DecodeBool(f.num64)
		case 10:
			m.Channel, err = decodeChannel(f.bytes)
		}
		if err != nil {
			return fmt.Errorf("field %d: %w", f.num, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode FromRadio: %w", err)
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Packets
// ---------------------------------------------------------------------------

func encodeMeshPacket(p *MeshPacket) []byte {
	var b []byte
	b = appendFixed32(b, 1, p.From)
	b = appendFixed32(b, 2, p.To)
	b = appendVarint(b, 3, uint64(p.Channel))
	if p.Decoded != nil {
		b = appendMessage(b, 4, encodeData(p.Decoded))
	}
	b = appendFixed32(b, 6, p.ID)
	b = appendFixed32(b, 7, p.RxTime)
	b = appendVarint(b, 9, uint64(p.HopLimit))
	b = appendBool(b, 10, p.WantAck)
	return b
}

func decodeMeshPacket(data []byte) (*MeshPacket, error) {
	p := &MeshPacket{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 1:
			p.From = uint32(f.num64)
		case 2:
			p.To = uint32(f.num64)
		case 3:
			p.Channel = uint32(f.num64)
		case 4:
			d, err := decodeData(f.bytes)
			if err != nil {
				return err
			}
			p.Decoded = d
		case 6:
			p.ID = uint32(f.num64)
		case 7:
			p.RxTime = uint32(f.num64)
		case 9:
			p.HopLimit = uint32(f.num64)
		case 10:
			p.WantAck = protowire.DecodeBool(f.num64)
		}
		return nil
	})
	return p, err
}

func encodeData(d *Data) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(d.PortNum))
	b = appendBytes(b, 2, d.Payload)
	b = appendBool(b, 3, d.WantResponse)
	b = appendFixed32(b, 6, d.RequestID)
	return b
}

func decodeData(data []byte) (*Data, error) {
	d := &Data{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 1:
			d.PortNum = PortNum(f.num64)
		case 2:
			d.Payload = cloneBytes(f.bytes)
		case 3:
			d.WantResponse = protowire.DecodeBool(f.num64)
		case 6:
			d.RequestID = uint32(f.num64)
		}
		return nil
	})
	return d, err
}

// EncodeRouting encodes a ROUTING_APP payload.
func EncodeRouting(r *Routing) []byte {
	// error_reason lives in the oneof, so NONE must still be emitted.
	return appendVarintAlways(nil, 3, uint64(r.ErrorReason))
}

// DecodeRouting decodes a ROUTING_APP payload.
func DecodeRouting(data []byte) (*Routing, error) {
	r := &Routing{}
	err := forEachField(data, func(f field) error {
		if f.num == 3 {
			r.ErrorReason = RoutingError(f.num64)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode Routing: %w", err)
	}
	return r, nil
}

func encodeNodeInfo(n *NodeInfo) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(n.Num))
	if n.User != nil {
		b = appendMessage(b, 2, encodeUser(n.User))
	}
	b = appendFixed32(b, 5, n.LastHeard)
	b = appendVarint(b, 7, uint64(n.Channel))
	return b
}

func decodeNodeInfo(data []byte) (*NodeInfo, error) {
	n := &NodeInfo{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 1:
			n.Num = uint32(f.num64)
		case 2:
			u, err := decodeUser(f.bytes)
			if err != nil {
				return err
			}
			n.User = u
		case 5:
			n.LastHeard = uint32(f.num64)
		case 7:
			n.Channel = uint32(f.num64)
		}
		return nil
	})
	return n, err
}

func encodeUser(u *User) []byte {
	var b []byte
	b = appendString(b, 1, u.ID)
	b = appendString(b, 2, u.LongName)
	b = appendString(b, 3, u.ShortName)
	b = appendVarint(b, 5, uint64(u.HWModel))
	return append(b, u.unknown...)
}

func decodeUser(data []byte) (*User, error) {
	u := &User{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 1:
			u.ID = string(f.bytes)
		case 2:
			u.LongName = string(f.bytes)
		case 3:
			u.ShortName = string(f.bytes)
		case 5:
			u.HWModel = uint32(f.num64)
		default:
			u.unknown = append(u.unknown, f.raw...)
		}
		return nil
	})
	return u, err
}

// ---------------------------------------------------------------------------
// Channels
// ---------------------------------------------------------------------------

func encodeChannel(c *Channel) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(c.Index))
	if c.Settings != nil {
		b = appendMessage(b, 2, encodeChannelSettings(c.Settings))
	}
	b = appendVarint(b, 3, uint64(c.Role))
	return b
}

func decodeChannel(data []byte) (*Channel, error) {
	c := &Channel{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 1:
			c.Index = int32(f.num64)
		case 2:
			s, err := decodeChannelSettings(f.bytes)
			if err != nil {
				return err
			}
			c.Settings = s
		case 3:
			c.Role = ChannelRole(f.num64)
		}
		return nil
	})
	return c, err
}

func encodeChannelSettings(s *ChannelSettings) []byte {
	var b []byte
	b = appendBytes(b, 2, s.PSK)
	b = appendString(b, 3, s.Name)
	b = appendFixed32(b, 4, s.ID)
	b = appendBool(b, 5, s.UplinkEnabled)
	b = appendBool(b, 6, s.DownlinkEnabled)
	return append(b, s.unknown...)
}

func decodeChannelSettings(data []byte) (*ChannelSettings, error) {
	s := &ChannelSettings{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 2:
			s.PSK = cloneBytes(f.bytes)
		case 3:
			s.Name = string(f.bytes)
		case 4:
			s.ID = uint32(f.num64)
		case 5:
			s.UplinkEnabled = protowire.DecodeBool(f.num64)
		case 6:
			s.DownlinkEnabled = protowire.DecodeBool(f.num64)
		default:
			s.unknown = append(s.unknown, f.raw...)
		}
		return nil
	})
	return s, err
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func encodeConfig(c *Config) []byte {
	var b []byte
	switch {
	case c.Device != nil:
		b = appendMessage(b, 1, encodeDeviceConfig(c.Device))
	case c.Position != nil:
		b = appendMessage(b, 2, encodePositionConfig(c.Position))
	case c.Network != nil:
		b = appendMessage(b, 4, encodeNetworkConfig(c.Network))
	case c.LoRa != nil:
		b = appendMessage(b, 6, encodeLoRaConfig(c.LoRa))
	}
	return b
}

func decodeConfig(data []byte) (*Config, error) {
	c := &Config{}
	err := forEachField(data, func(f field) error {
		var err error
		switch f.num {
		case 1:
			c.Device, err = decodeDeviceConfig(f.bytes)
		case 2:
			c.Position, err = decodePositionConfig(f.bytes)
		case 4:
			c.Network, err = decodeNetworkConfig(f.bytes)
		case 6:
			c.LoRa, err = decodeLoRaConfig(f.bytes)
		}
		return err
	})
	return c, err
}

func encodeDeviceConfig(d *DeviceConfig) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(d.Role))
	b = appendBool(b, 2, d.SerialEnabled)
	b = appendVarint(b, 7, uint64(d.NodeInfoBroadcastSecs))
	return append(b, d.unknown...)
}

func decodeDeviceConfig(data []byte) (*DeviceConfig, error) {
	d := &DeviceConfig{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 1:
			d.Role = Role(f.num64)
		case 2:
			d.SerialEnabled = protowire.DecodeBool(f.num64)
		case 7:
			d.NodeInfoBroadcastSecs = uint32(f.num64)
		default:
			d.unknown = append(d.unknown, f.raw...)
		}
		return nil
	})
	return d, err
}

func encodePositionConfig(p *PositionConfig) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(p.PositionBroadcastSecs))
	b = appendBool(b, 2, p.SmartEnabled)
	b = appendBool(b, 3, p.FixedPosition)
	b = appendVarint(b, 5, uint64(p.GPSUpdateInterval))
	return append(b, p.unknown...)
}

func decodePositionConfig(data []byte) (*PositionConfig, error) {
	p := &PositionConfig{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 1:
			p.PositionBroadcastSecs = uint32(f.num64)
		case 2:
			p.SmartEnabled = protowire.DecodeBool(f.num64)
		case 3:
			p.FixedPosition = protowire.DecodeBool(f.num64)
		case 5:
			p.GPSUpdateInterval = uint32(f.num64)
		default:
			p.unknown = append(p.unknown, f.raw...)
		}
		return nil
	})
	return p, err
}

func encodeNetworkConfig(n *NetworkConfig) []byte {
	var b []byte
	b = appendBool(b, 1, n.WifiEnabled)
	b = appendString(b, 3, n.WifiSSID)
	b = appendString(b, 4, n.WifiPSK)
	b = appendString(b, 5, n.NTPServer)
	b = appendBool(b, 6, n.EthEnabled)
	return append(b, n.unknown...)
}

func decodeNetworkConfig(data []byte) (*NetworkConfig, error) {
	n := &NetworkConfig{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 1:
			n.WifiEnabled = protowire.DecodeBool(f.num64)
		case 3:
			n.WifiSSID = string(f.bytes)
		case 4:
			n.WifiPSK = string(f.bytes)
		case 5:
			n.NTPServer = string(f.bytes)
		case 6:
			n.EthEnabled = protowire.DecodeBool(f.num64)
		default:
			n.unknown = append(n.unknown, f.raw...)
		}
		return nil
	})
	return n, err
}

func encodeLoRaConfig(l *LoRaConfig) []byte {
	var b []byte
	b = appendBool(b, 1, l.UsePreset)
	b = appendVarint(b, 2, uint64(l.ModemPreset))
	b = appendVarint(b, 7, uint64(l.Region))
	b = appendVarint(b, 8, uint64(l.HopLimit))
	b = appendBool(b, 9, l.TxEnabled)
	// int32 is sign-extended to 64 bits on the wire.
	b = appendVarint(b, 10, uint64(int64(l.TxPower)))
	b = appendVarint(b, 11, uint64(l.ChannelNum))
	return append(b, l.unknown...)
}

func decodeLoRaConfig(data []byte) (*LoRaConfig, error) {
	l := &LoRaConfig{}
	err := forEachField(data, func(f field) error {
		switch f.num {
		case 1:
			l.UsePreset = protowire.DecodeBool(f.num64)
		case 2:
			l.ModemPreset = uint32(f.num64)
		case 7:
			l.Region = RegionCode(f.num64)
		case 8:
			l.HopLimit = uint32(f.num64)
		case 9:
			l.TxEnabled = protowire.DecodeBool(f.num64)
		case 10:
			l.TxPower = int32(int64(f.num64))
		case 11:
			l.ChannelNum = uint32(f.num64)
		default:
			l.unknown = append(l.unknown, f.raw...)
		}
		return nil
	})
	return l, err
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

// EncodeAdmin encodes an ADMIN_APP payload.
func EncodeAdmin(m *AdminMessage) []byte {
	var b []byte
	switch {
	case m.GetChannelRequest != 0:
		b = appendVarintAlways(b, 1, uint64(m.GetChannelRequest))
	case m.GetChannelResponse != nil:
		b = appendMessage(b, 2, encodeChannel(m.GetChannelResponse))
	case m.GetOwnerRequest:
		b = appendVarintAlways(b, 3, 1)
	case m.GetOwnerResponse != nil:
		b = appendMessage(b, 4, encodeUser(m.GetOwnerResponse))
	case m.GetConfigRequest != nil:
		b = appendVarintAlways(b, 5, uint64(*m.GetConfigRequest))
	case m.GetConfigResponse != nil:
		b = appendMessage(b, 6, encodeConfig(m.GetConfigResponse))
	case m.SetOwner != nil:
		b = appendMessage(b, 32, encodeUser(m.SetOwner))
	case m.SetChannel != nil:
		b = appendMessage(b, 33, encodeChannel(m.SetChannel))
	case m.SetConfig != nil:
		b = appendMessage(b, 34, encodeConfig(m.SetConfig))
	case m.BeginEditSettings:
		b = appendVarintAlways(b, 64, 1)
	case m.CommitEditSettings:
		b = appendVarintAlways(b, 65, 1)
	}
	return b
}

// DecodeAdmin decodes an ADMIN_APP payload.
func DecodeAdmin(data []byte) (*AdminMessage, error) {
	m := &AdminMessage{}
	err := forEachField(data, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.GetChannelRequest = uint32(f.num64)
		case 2:
			m.GetChannelResponse, err = decodeChannel(f.bytes)
		case 3:
			m.GetOwnerRequest = protowire.DecodeBool(f.num64)
		case 4:
			m.GetOwnerResponse, err = decodeUser(f.bytes)
		case 5:
			ct := ConfigType(f.num64)
			m.GetConfigRequest = &ct
		case 6:
			m.GetConfigResponse, err = decodeConfig(f.bytes)
		case 32:
			m.SetOwner, err = decodeUser(f.bytes)
		case 33:
			m.SetChannel, err = decodeChannel(f.bytes)
		case 34:
			m.SetConfig, err = decodeConfig(f.bytes)
		case 64:
			m.BeginEditSettings = protowire.DecodeBool(f.num64)
		case 65:
			m.CommitEditSettings = protowire.DecodeBool(f.num64)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode AdminMessage: %w", err)
	}
	return m, nil
}
