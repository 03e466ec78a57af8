package node

import (
	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/gsm/transport"
	"github.com/sarchlab/gsmsim/sim"
)

// TimerEvent is the firing of a Timer.
type TimerEvent struct {
	sim.EventBase
	Timer *Timer
}

// StartEvent powers a node on.
type StartEvent struct {
	sim.EventBase
}

// NewStartEvent creates a StartEvent.
func NewStartEvent(t sim.VTimeInSec, handler sim.Handler) *StartEvent {
	return &StartEvent{EventBase: sim.MakeEventBase(t, handler)}
}

// RadioEvent delivers a burst taken from the air interface. Channel and
// Slot tell where the burst was received.
type RadioEvent struct {
	sim.EventBase
	Channel int
	Slot    int
	Burst   transport.Burst
}

// NewRadioEvent creates a RadioEvent.
func NewRadioEvent(
	t sim.VTimeInSec,
	handler sim.Handler,
	channel, slot int,
	burst transport.Burst,
) *RadioEvent {
	return &RadioEvent{
		EventBase: sim.MakeEventBase(t, handler),
		Channel:   channel,
		Slot:      slot,
		Burst:     burst,
	}
}

// PacketEvent delivers a packet from the IP network.
type PacketEvent struct {
	sim.EventBase
	Packet transport.Packet
}

// NewPacketEvent creates a PacketEvent.
func NewPacketEvent(
	t sim.VTimeInSec,
	handler sim.Handler,
	pkt transport.Packet,
) *PacketEvent {
	return &PacketEvent{EventBase: sim.MakeEventBase(t, handler), Packet: pkt}
}

// MeasurementEvent delivers one SACCH measurement report of the mobile
// occupying the uplink Channel and Slot.
type MeasurementEvent struct {
	sim.EventBase
	Channel int
	Slot    int
	Report  handover.Report
}

// NewMeasurementEvent creates a MeasurementEvent.
func NewMeasurementEvent(
	t sim.VTimeInSec,
	handler sim.Handler,
	channel, slot int,
	report handover.Report,
) *MeasurementEvent {
	return &MeasurementEvent{
		EventBase: sim.MakeEventBase(t, handler),
		Channel:   channel,
		Slot:      slot,
		Report:    report,
	}
}

// A Command is a user action injected into a mobile station.
type Command interface {
	isCommand()
}

// PowerOff switches a mobile off, detaching it from the network when
// possible.
type PowerOff struct{}

// Originate places a call to Callee which the caller hangs up after
// Duration.
type Originate struct {
	Callee   codec.Identity
	Duration sim.VTimeInSec
}

func (PowerOff) isCommand()  {}
func (Originate) isCommand() {}

// CommandEvent injects a Command at a point in time.
type CommandEvent struct {
	sim.EventBase
	Command Command
}

// NewCommandEvent creates a CommandEvent.
func NewCommandEvent(
	t sim.VTimeInSec,
	handler sim.Handler,
	cmd Command,
) *CommandEvent {
	return &CommandEvent{EventBase: sim.MakeEventBase(t, handler), Command: cmd}
}
