package node

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/transport"
	"github.com/sarchlab/gsmsim/sim"
)

// MACControl is the medium access layer as seen from Layer 3.
type MACControl interface {
	// StartListen makes a BS receive the uplink of a channel pair.
	StartListen(node uint32, channel int)

	// StopListen is the reverse of StartListen.
	StopListen(node uint32, channel int)

	// SetChannel tunes a mobile to a dedicated downlink channel and slot.
	SetChannel(node uint32, channel, slot int)

	// ChannelRelease returns a mobile to idle listening on its cell.
	ChannelRelease(node uint32)

	// Handover moves a dedicated mobile to a channel and slot of another
	// cell.
	Handover(node uint32, cell uint16, channel, slot int)
}

// IPNetwork carries packets between the base stations and the switch.
type IPNetwork interface {
	Send(pkt transport.Packet)
}

// Context is the state every role handler receives: who the node is and
// the collaborators it talks to.
type Context struct {
	sim.HookableBase

	ID     uint32
	Name   string
	Engine sim.Engine
	Log    *zap.Logger
	Radio  *transport.RadioQueue
	MAC    MACControl
	IP     IPNetwork
	Rand   *rand.Rand
	Timers TimerConfig

	handler sim.Handler
}

// Now returns the current simulation time.
func (c *Context) Now() sim.VTimeInSec {
	return c.Engine.CurrentTime()
}

// Handler returns the node that owns the context.
func (c *Context) Handler() sim.Handler {
	return c.handler
}

// StartTimer (re)starts t so that it fires after the given delay. A firing
// from an earlier start becomes stale.
func (c *Context) StartTimer(t *Timer, after sim.VTimeInSec) {
	evt := &TimerEvent{
		EventBase: sim.MakeEventBase(c.Now()+after, c.handler),
		Timer:     t,
	}
	t.arm(evt)

	c.Engine.Schedule(evt)
}

// SendRadio encodes m and queues it on the air interface. Channel request
// and handover access messages go out as access bursts.
func (c *Context) SendRadio(
	slot, channel int,
	ct codec.ChannelType,
	m codec.Message,
) bool {
	return c.RelayRadio(slot, channel, ct, codec.MustEncode(m), m)
}

// RelayRadio queues an already encoded message on the air interface.
func (c *Context) RelayRadio(
	slot, channel int,
	ct codec.ChannelType,
	raw []byte,
	m codec.Message,
) bool {
	kind := transport.BurstSignaling

	switch m.(type) {
	case *codec.ChannelRequest, *codec.HandoverAccess:
		kind = transport.BurstAccess
	}

	ok := c.Radio.Enqueue(slot, channel, transport.Burst{
		Kind:        kind,
		ChannelType: ct,
		Data:        raw,
	})
	if !ok {
		c.Log.Warn("radio queue full",
			zap.String("msg", m.Name()),
			zap.Int("slot", slot),
			zap.Int("channel", channel))

		return false
	}

	c.notify(HookPosMsgSend, InterfaceRadio, m)

	return true
}

// SendTrafficFrame queues one bearer frame on a traffic channel.
func (c *Context) SendTrafficFrame(slot, channel int, data []byte) bool {
	return c.Radio.Enqueue(slot, channel, transport.Burst{
		Kind:        transport.BurstTraffic,
		ChannelType: codec.ChannelTCH,
		Data:        data,
	})
}

// SendBSSMAP sends a BSS management message to another node.
func (c *Context) SendBSSMAP(
	dst uint32,
	typ transport.SCCPMessageType,
	connID int32,
	m codec.BSSMAP,
) {
	c.sendSignaling(dst, typ, connID,
		transport.DiscriminationBSSMAP, codec.MustEncode(m), m)
}

// SendDTAP sends a direct transfer message to another node.
func (c *Context) SendDTAP(
	dst uint32,
	typ transport.SCCPMessageType,
	connID int32,
	m codec.DTAP,
) {
	c.sendSignaling(dst, typ, connID,
		transport.DiscriminationDTAP, codec.MustEncode(m), m)
}

// RelayDTAP forwards an encoded direct transfer message unchanged.
func (c *Context) RelayDTAP(
	dst uint32,
	connID int32,
	raw []byte,
	m codec.Message,
) {
	c.sendSignaling(dst, transport.SCCPConnectionReference, connID,
		transport.DiscriminationDTAP, raw, m)
}

func (c *Context) sendSignaling(
	dst uint32,
	typ transport.SCCPMessageType,
	connID int32,
	d transport.Discrimination,
	l3 []byte,
	m codec.Message,
) {
	h := transport.AInterfaceHeader{
		MessageTypeCode: typ,
		ConnectionID:    connID,
		SourceNodeID:    c.ID,
		RoutingLabel: transport.RoutingLabel{
			SourcePointCode: transport.PointCode(c.ID),
			DestPointCode:   transport.PointCode(dst),
		},
	}

	c.IP.Send(transport.Packet{
		Kind: transport.PacketSignaling,
		Src:  c.ID,
		Dst:  dst,
		Data: transport.WrapAInterface(h, transport.WrapBSSAP(d, l3)),
	})

	c.Log.Debug("signaling sent",
		zap.String("msg", m.Name()),
		zap.Uint32("dst", dst),
		zap.Stringer("sccp", typ),
		zap.Int32("conn", connID))

	c.notify(HookPosMsgSend, InterfaceA, m)
}

// SendTraffic sends a traffic envelope to another node.
func (c *Context) SendTraffic(
	dst uint32,
	h transport.TrafficHeader,
	payload []byte,
) {
	c.IP.Send(transport.Packet{
		Kind: transport.PacketTraffic,
		Src:  c.ID,
		Dst:  dst,
		Data: transport.WrapTraffic(h, payload),
	})
}

// Received reports a decoded incoming signaling message to the hooks.
func (c *Context) Received(iface Interface, m codec.Message) {
	c.Log.Debug("signaling received",
		zap.String("msg", m.Name()),
		zap.Stringer("if", iface))

	c.notify(HookPosMsgRecv, iface, m)
}

func (c *Context) notify(pos *sim.HookPos, iface Interface, m codec.Message) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item: MsgInfo{
			Time:      c.Now(),
			Node:      c.Name,
			Interface: iface,
			Message:   m,
		},
	})
}
