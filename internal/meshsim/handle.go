package meshsim

import (
	"sync/atomic"

	"github.com/meshnode/meshnode-go/pkg/transport"
	"github.com/meshnode/meshnode-go/pkg/wire"
)

var packetIDs atomic.Uint32

func (s *Sim) nextID() uint32 {
	return packetIDs.Add(1) | 0x40000000
}

func (s *Sim) handle(f *transport.Framer, msg *wire.ToRadio) error {
	switch {
	case msg.WantConfigID != 0:
		return s.sendConfig(f, msg.WantConfigID)
	case msg.Heartbeat:
		s.mu.Lock()
		s.heartbeats++
		s.mu.Unlock()
		return nil
	case msg.Packet != nil && msg.Packet.Decoded != nil:
		return s.handlePacket(f, msg.Packet)
	}
	return nil
}

func (s *Sim) sendConfig(f *transport.Framer, id uint32) error {
	s.mu.Lock()
	msgs := []*wire.FromRadio{
		{MyInfo: &wire.MyNodeInfo{MyNodeNum: s.nodeNum}},
		{NodeInfo: &wire.NodeInfo{Num: s.nodeNum, User: cloneUser(s.owner)}},
		{Config: &wire.Config{Device: cloneDevice(s.device)}},
		{Config: &wire.Config{Position: clonePosition(s.position)}},
		{Config: &wire.Config{Network: cloneNetwork(s.network)}},
		{Config: &wire.Config{LoRa: cloneLoRa(s.lora)}},
	}
	for _, ch := range s.channels {
		msgs = append(msgs, &wire.FromRadio{Channel: ch.Clone()})
	}
	msgs = append(msgs, &wire.FromRadio{ConfigCompleteID: id})
	s.mu.Unlock()

	for i, m := range msgs {
		m.ID = uint32(i + 1)
		if err := f.WriteFrame(wire.EncodeFromRadio(m)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sim) handlePacket(f *transport.Framer, p *wire.MeshPacket) error {
	switch p.Decoded.PortNum {
	case wire.PortTextMessage:
		s.mu.Lock()
		s.sent = append(s.sent, SentText{Channel: p.Channel, Text: string(p.Decoded.Payload)})
		s.mu.Unlock()
		return nil
	case wire.PortAdmin:
		admin, err := wire.DecodeAdmin(p.Decoded.Payload)
		if err != nil {
			return s.reply(f, p, wire.PortRouting, wire.EncodeRouting(&wire.Routing{ErrorReason: wire.RoutingErrorBadRequest}))
		}
		return s.handleAdmin(f, p, admin)
	}
	return nil
}

func (s *Sim) handleAdmin(f *transport.Framer, p *wire.MeshPacket, m *wire.AdminMessage) error {
	kind, isGet := adminKind(m)

	s.mu.Lock()
	fault, faulted := s.matchFault(kind, isGet)
	s.mu.Unlock()
	if faulted {
		if fault.Drop {
			return nil
		}
		return s.ack(f, p, fault.Reason)
	}

	if isGet {
		resp := s.answer(m)
		return s.reply(f, p, wire.PortAdmin, wire.EncodeAdmin(resp))
	}

	s.apply(m, kind)
	return s.ack(f, p, wire.RoutingErrorNone)
}

// matchFault reports the first fault for kind whose After budget is used up.
// Callers hold s.mu.
func (s *Sim) matchFault(kind string, isGet bool) (Fault, bool) {
	key := kind
	if isGet {
		key = "get:" + kind
	}
	n := s.seen[key]
	s.seen[key] = n + 1
	for _, f := range s.faults {
		if f.Kind == kind && f.Get == isGet && n >= f.After {
			return f, true
		}
	}
	return Fault{}, false
}

func (s *Sim) answer(m *wire.AdminMessage) *wire.AdminMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case m.GetOwnerRequest:
		return &wire.AdminMessage{GetOwnerResponse: cloneUser(s.owner)}
	case m.GetChannelRequest != 0:
		idx := int(m.GetChannelRequest) - 1
		if idx >= wire.MaxChannels {
			return &wire.AdminMessage{}
		}
		return &wire.AdminMessage{GetChannelResponse: s.channels[idx].Clone()}
	case m.GetConfigRequest != nil:
		c := &wire.Config{}
		switch *m.GetConfigRequest {
		case wire.ConfigTypeDevice:
			c.Device = cloneDevice(s.device)
		case wire.ConfigTypePosition:
			c.Position = clonePosition(s.position)
		case wire.ConfigTypeNetwork:
			c.Network = cloneNetwork(s.network)
		case wire.ConfigTypeLoRa:
			c.LoRa = cloneLoRa(s.lora)
		default:
			return &wire.AdminMessage{}
		}
		return &wire.AdminMessage{GetConfigResponse: c}
	}
	return &wire.AdminMessage{}
}

func (s *Sim) apply(m *wire.AdminMessage, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case m.SetOwner != nil:
		s.owner = cloneUser(m.SetOwner)
	case m.SetChannel != nil:
		if idx := m.SetChannel.Index; idx >= 0 && idx < wire.MaxChannels {
			s.channels[idx] = m.SetChannel.Clone()
		}
	case m.SetConfig != nil:
		c := m.SetConfig
		switch {
		case c.Device != nil:
			s.device = cloneDevice(c.Device)
		case c.Position != nil:
			s.position = clonePosition(c.Position)
		case c.Network != nil:
			s.network = cloneNetwork(c.Network)
		case c.LoRa != nil:
			s.lora = cloneLoRa(c.LoRa)
		}
	case m.BeginEditSettings:
		s.editing = true
	case m.CommitEditSettings:
		s.editing = false
	}
	if kind != "" {
		s.writes[kind]++
	}
}

func (s *Sim) ack(f *transport.Framer, p *wire.MeshPacket, reason wire.RoutingError) error {
	return s.reply(f, p, wire.PortRouting, wire.EncodeRouting(&wire.Routing{ErrorReason: reason}))
}

func (s *Sim) reply(f *transport.Framer, req *wire.MeshPacket, port wire.PortNum, payload []byte) error {
	return f.WriteFrame(wire.EncodeFromRadio(&wire.FromRadio{Packet: &wire.MeshPacket{
		From:    s.nodeNum,
		To:      req.From,
		Channel: req.Channel,
		ID:      s.nextID(),
		Decoded: &wire.Data{PortNum: port, Payload: payload, RequestID: req.ID},
	}}))
}

// adminKind classifies an admin message for fault matching and counting.
func adminKind(m *wire.AdminMessage) (kind string, isGet bool) {
	switch {
	case m.GetOwnerRequest:
		return KindOwner, true
	case m.GetChannelRequest != 0:
		return KindChannel, true
	case m.GetConfigRequest != nil:
		return configKind(*m.GetConfigRequest), true
	case m.SetOwner != nil:
		return KindOwner, false
	case m.SetChannel != nil:
		return KindChannel, false
	case m.SetConfig != nil:
		t, _ := m.SetConfig.Type()
		return configKind(t), false
	case m.CommitEditSettings:
		return KindCommit, false
	}
	return "", false
}

func configKind(t wire.ConfigType) string {
	switch t {
	case wire.ConfigTypeDevice:
		return KindDevice
	case wire.ConfigTypePosition:
		return KindPosition
	case wire.ConfigTypeNetwork:
		return KindNetwork
	case wire.ConfigTypeLoRa:
		return KindLoRa
	}
	return t.String()
}

func cloneUser(u *wire.User) *wire.User {
	c := *u
	return &c
}

func cloneDevice(d *wire.DeviceConfig) *wire.DeviceConfig {
	c := *d
	return &c
}

func clonePosition(p *wire.PositionConfig) *wire.PositionConfig {
	c := *p
	return &c
}

func cloneNetwork(n *wire.NetworkConfig) *wire.NetworkConfig {
	c := *n
	return &c
}

func cloneLoRa(l *wire.LoRaConfig) *wire.LoRaConfig {
	c := *l
	return &c
}
