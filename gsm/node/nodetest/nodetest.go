// Package nodetest provides recording stand-ins for the collaborators of a
// node, so that a single role can be driven event by event in tests.
package nodetest

import (
	"fmt"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/transport"
	"github.com/sarchlab/gsmsim/sim"
)

// IP records every packet sent.
type IP struct {
	Sent []transport.Packet
}

// Send records the packet.
func (ip *IP) Send(pkt transport.Packet) {
	ip.Sent = append(ip.Sent, pkt)
}

// Take returns and forgets the recorded packets.
func (ip *IP) Take() []transport.Packet {
	out := ip.Sent
	ip.Sent = nil

	return out
}

// MACCall is one recorded MAC primitive.
type MACCall struct {
	Op      string
	Node    uint32
	Cell    uint16
	Channel int
	Slot    int
}

// MAC records every primitive invoked.
type MAC struct {
	Calls []MACCall
}

// StartListen records the call.
func (m *MAC) StartListen(n uint32, channel int) {
	m.Calls = append(m.Calls, MACCall{Op: "StartListen", Node: n, Channel: channel})
}

// StopListen records the call.
func (m *MAC) StopListen(n uint32, channel int) {
	m.Calls = append(m.Calls, MACCall{Op: "StopListen", Node: n, Channel: channel})
}

// SetChannel records the call.
func (m *MAC) SetChannel(n uint32, channel, slot int) {
	m.Calls = append(m.Calls,
		MACCall{Op: "SetChannel", Node: n, Channel: channel, Slot: slot})
}

// ChannelRelease records the call.
func (m *MAC) ChannelRelease(n uint32) {
	m.Calls = append(m.Calls, MACCall{Op: "ChannelRelease", Node: n})
}

// Handover records the call.
func (m *MAC) Handover(n uint32, cell uint16, channel, slot int) {
	m.Calls = append(m.Calls, MACCall{
		Op: "Handover", Node: n, Cell: cell, Channel: channel, Slot: slot,
	})
}

// Ops lists the names of the recorded primitives.
func (m *MAC) Ops() []string {
	ops := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		ops = append(ops, c.Op)
	}

	return ops
}

// Harness is one node wired to recording collaborators.
type Harness struct {
	Engine *sim.SerialEngine
	Node   *node.Node
	Ctx    *node.Context
	IP     *IP
	MAC    *MAC
}

// New builds a node around role with a fresh engine.
func New(name string, id uint32, role node.Role) *Harness {
	h := NewEmpty(name, id)
	h.Bind(role)

	return h
}

// NewEmpty prepares the engine and collaborators of a node. Bind must be
// called before any event is delivered.
func NewEmpty(name string, id uint32) *Harness {
	h := &Harness{
		Engine: sim.NewSerialEngine(),
		IP:     &IP{},
		MAC:    &MAC{},
	}

	h.Ctx = &node.Context{
		ID:     id,
		Name:   name,
		Engine: h.Engine,
		Radio:  transport.NewRadioQueue(name+".Radio", 1024),
		MAC:    h.MAC,
		IP:     h.IP,
		Timers: node.DefaultTimers(),
	}

	return h
}

// Bind creates the node from the prepared context and role.
func (h *Harness) Bind(role node.Role) {
	h.Node = node.New(h.Ctx, role)
}

// Start powers the node on at the current time.
func (h *Harness) Start() {
	h.must(h.Node.Handle(node.NewStartEvent(h.Engine.CurrentTime(), h.Node)))
}

// Advance runs the engine for the given duration, firing due timers.
func (h *Harness) Advance(d sim.VTimeInSec) {
	h.must(h.Engine.RunUntil(h.Engine.CurrentTime() + d))
}

// Radio delivers an encoded message received on channel and slot.
func (h *Harness) Radio(channel, slot int, m codec.Message) {
	kind := transport.BurstSignaling

	switch m.(type) {
	case *codec.ChannelRequest, *codec.HandoverAccess:
		kind = transport.BurstAccess
	}

	h.Burst(channel, slot, transport.Burst{Kind: kind, Data: codec.MustEncode(m)})
}

// Burst delivers a raw burst received on channel and slot.
func (h *Harness) Burst(channel, slot int, b transport.Burst) {
	h.must(h.Node.Handle(node.NewRadioEvent(
		h.Engine.CurrentTime(), h.Node, channel, slot, b)))
}

// Packet delivers a packet from the IP network.
func (h *Harness) Packet(pkt transport.Packet) {
	h.must(h.Node.Handle(node.NewPacketEvent(h.Engine.CurrentTime(), h.Node, pkt)))
}

// Signaling delivers an A-interface message from src.
func (h *Harness) Signaling(
	src uint32,
	typ transport.SCCPMessageType,
	connID int32,
	m codec.Message,
) {
	// Every DTAP message also satisfies codec.BSSMAP.
	d := transport.DiscriminationBSSMAP
	if _, ok := m.(codec.DTAP); ok {
		d = transport.DiscriminationDTAP
	}

	hdr := transport.AInterfaceHeader{
		MessageTypeCode: typ,
		ConnectionID:    connID,
		SourceNodeID:    src,
	}

	h.Packet(transport.Packet{
		Kind: transport.PacketSignaling,
		Src:  src,
		Dst:  h.Ctx.ID,
		Data: transport.WrapAInterface(hdr,
			transport.WrapBSSAP(d, codec.MustEncode(m))),
	})
}

// Traffic delivers a traffic envelope from src.
func (h *Harness) Traffic(src uint32, hdr transport.TrafficHeader, payload []byte) {
	h.Packet(transport.Packet{
		Kind: transport.PacketTraffic,
		Src:  src,
		Dst:  h.Ctx.ID,
		Data: transport.WrapTraffic(hdr, payload),
	})
}

// Measure delivers a SACCH measurement report of channel and slot.
func (h *Harness) Measure(channel, slot int, r handover.Report) {
	h.must(h.Node.Handle(node.NewMeasurementEvent(
		h.Engine.CurrentTime(), h.Node, channel, slot, r)))
}

// Command injects a user command.
func (h *Harness) Command(cmd node.Command) {
	h.must(h.Node.Handle(node.NewCommandEvent(h.Engine.CurrentTime(), h.Node, cmd)))
}

// Frame is one burst taken from the radio queue.
type Frame struct {
	Slot    int
	Channel int
	Burst   transport.Burst
}

// Message decodes the frame as a message sent in dir.
func (f Frame) Message(dir codec.Direction) codec.Message {
	switch f.Burst.Kind {
	case transport.BurstAccess:
		if f.Burst.ChannelType == codec.ChannelRACH {
			m, err := codec.DecodeChannelRequest(f.Burst.Data)
			mustNot(err)

			return m
		}

		m, err := codec.DecodeHandoverAccess(f.Burst.Data)
		mustNot(err)

		return m
	case transport.BurstSignaling:
		m, err := codec.DecodeDTAP(f.Burst.Data, dir)
		mustNot(err)

		return m
	default:
		return nil
	}
}

// DrainRadio removes every queued burst, in slot then channel order.
func (h *Harness) DrainRadio() []Frame {
	var out []Frame

	for _, k := range h.Ctx.Radio.Pending() {
		for {
			b, ok := h.Ctx.Radio.Dequeue(k.Slot, k.Channel)
			if !ok {
				break
			}

			out = append(out, Frame{Slot: k.Slot, Channel: k.Channel, Burst: b})
		}
	}

	return out
}

// Signal is one decoded A-interface message.
type Signal struct {
	Dst     uint32
	Header  transport.AInterfaceHeader
	Message codec.Message
	Raw     []byte
}

// DecodeSignal decodes a signaling packet sent in dir.
func DecodeSignal(pkt transport.Packet, dir codec.Direction) (Signal, error) {
	if pkt.Kind != transport.PacketSignaling {
		return Signal{}, fmt.Errorf("not a signaling packet")
	}

	hdr, payload, err := transport.UnwrapAInterface(pkt.Data)
	if err != nil {
		return Signal{}, err
	}

	d, l3, err := transport.SplitBSSAP(payload)
	if err != nil {
		return Signal{}, err
	}

	var m codec.Message
	if d == transport.DiscriminationBSSMAP {
		m, err = codec.DecodeBSSMAP(l3)
	} else {
		m, err = codec.DecodeDTAP(l3, dir)
	}

	if err != nil {
		return Signal{}, err
	}

	return Signal{Dst: pkt.Dst, Header: hdr, Message: m, Raw: l3}, nil
}

// TakeSignals decodes and forgets every signaling packet sent so far.
// Traffic packets are dropped.
func (h *Harness) TakeSignals(dir codec.Direction) []Signal {
	var out []Signal

	for _, pkt := range h.IP.Take() {
		if pkt.Kind != transport.PacketSignaling {
			continue
		}

		s, err := DecodeSignal(pkt, dir)
		mustNot(err)

		out = append(out, s)
	}

	return out
}

// Names lists the message names of signals.
func Names(signals []Signal) []string {
	out := make([]string, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.Message.Name())
	}

	return out
}

func (h *Harness) must(err error) {
	mustNot(err)
}

func mustNot(err error) {
	if err != nil {
		panic(err)
	}
}
