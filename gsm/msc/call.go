package msc

import (
	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

// CCState is the network side call control state of a leg.
type CCState int

// Network side CC states. The values follow the N-numbering of GSM 04.08.
const (
	CCNull                 CCState = 0
	CCCallInitiated        CCState = 1
	CCMOCallProceeding     CCState = 3
	CCCallDelivered        CCState = 4
	CCCallPresent          CCState = 6
	CCCallReceived         CCState = 7
	CCConnectRequest       CCState = 8
	CCMTCallConfirmed      CCState = 9
	CCActive               CCState = 10
	CCDisconnectIndication CCState = 12
	CCReleaseRequest       CCState = 19
	CCConnectIndication    CCState = 28
)

func (s CCState) String() string {
	switch s {
	case CCNull:
		return "NULL"
	case CCCallInitiated:
		return "CALL_INITIATED"
	case CCMOCallProceeding:
		return "MO_CALL_PROCEEDING"
	case CCCallDelivered:
		return "CALL_DELIVERED"
	case CCCallPresent:
		return "CALL_PRESENT"
	case CCCallReceived:
		return "CALL_RECEIVED"
	case CCConnectRequest:
		return "CONNECT_REQUEST"
	case CCMTCallConfirmed:
		return "MT_CALL_CONFIRMED"
	case CCActive:
		return "ACTIVE"
	case CCDisconnectIndication:
		return "DISCONNECT_INDICATION"
	case CCReleaseRequest:
		return "RELEASE_REQUEST"
	case CCConnectIndication:
		return "CONNECT_INDICATION"
	default:
		return "UNKNOWN"
	}
}

// LegRole tells which side of a call a leg is.
type LegRole int

// Leg roles.
const (
	LegOrigin LegRole = iota
	LegTerm
)

func (r LegRole) String() string {
	if r == LegOrigin {
		return "origin"
	}

	return "term"
}

// Leg is the switch's view of one mobile of a call.
type Leg struct {
	Role   LegRole
	IMSI   codec.Identity
	MSISDN codec.Identity

	BSID         uint32
	ConnectionID int32
	RR           resource.RRState
	CC           CCState

	TrafficConnectionID int32

	HandoverTrying       bool
	HandoverCompleted    bool
	HandoverBSID         uint32
	HandoverConnectionID int32
	TempHandoverID       int32

	call            *CallInfo
	releaseAttempts int

	// releasing is set once the mobile was told to leave its channel.
	releasing bool

	t301, t303, t305, t308, t310, t313, t3103, udt1 *node.Timer
}

func newLeg(call *CallInfo, role LegRole) Leg {
	arg := call.Index*2 + int(role)

	return Leg{
		Role:                 role,
		call:                 call,
		ConnectionID:         transport.NoConnection,
		TrafficConnectionID:  transport.NoConnection,
		HandoverConnectionID: transport.NoConnection,
		TempHandoverID:       transport.NoConnection,
		t301:                 node.NewTimer("T301", arg),
		t303:                 node.NewTimer("T303", arg),
		t305:                 node.NewTimer("T305", arg),
		t308:                 node.NewTimer("T308", arg),
		t310:                 node.NewTimer("T310", arg),
		t313:                 node.NewTimer("T313", arg),
		t3103:                node.NewTimer("T3103", arg),
		udt1:                 node.NewTimer("UDT1", arg),
	}
}

// Call returns the call the leg belongs to.
func (l *Leg) Call() *CallInfo {
	return l.call
}

// Peer returns the other leg of the call.
func (l *Leg) Peer() *Leg {
	if l.Role == LegOrigin {
		return &l.call.Term
	}

	return &l.call.Origin
}

// Connected tells if the leg holds an A-interface connection.
func (l *Leg) Connected() bool {
	return l.RR == resource.RRDedicated
}

// ActiveBS returns the BS and connection currently serving the mobile. Once
// the target cell confirmed a handover it takes over.
func (l *Leg) ActiveBS() (uint32, int32) {
	if l.HandoverCompleted {
		return l.HandoverBSID, l.HandoverConnectionID
	}

	return l.BSID, l.ConnectionID
}

func (l *Leg) timers() []*node.Timer {
	return []*node.Timer{
		l.t301, l.t303, l.t305, l.t308, l.t310, l.t313, l.t3103, l.udt1,
	}
}

// cancelTimers stops the call control timers. T3103 belongs to the
// handover and is stopped only when the handover ends.
func (l *Leg) cancelTimers() {
	for _, t := range l.timers() {
		if t != l.t3103 {
			t.Cancel()
		}
	}
}

func (l *Leg) clearHandover() {
	l.HandoverTrying = false
	l.HandoverCompleted = false
	l.HandoverBSID = 0
	l.HandoverConnectionID = transport.NoConnection
	l.TempHandoverID = transport.NoConnection
	l.t3103.Cancel()
}

func (l *Leg) reset() {
	l.cancelTimers()
	l.t3103.Cancel()

	*l = Leg{
		Role:                 l.Role,
		call:                 l.call,
		ConnectionID:         transport.NoConnection,
		TrafficConnectionID:  transport.NoConnection,
		HandoverConnectionID: transport.NoConnection,
		TempHandoverID:       transport.NoConnection,
		t301:                 l.t301,
		t303:                 l.t303,
		t305:                 l.t305,
		t308:                 l.t308,
		t310:                 l.t310,
		t313:                 l.t313,
		t3103:                l.t3103,
		udt1:                 l.udt1,
	}
}

// CallInfo is one two-party call.
type CallInfo struct {
	Index int
	InUse bool

	Origin Leg
	Term   Leg

	PagingAttempts int
	Connected      bool

	TrafficFromOrigin uint64
	TrafficFromTerm   uint64

	t3113 *node.Timer
}

func newCallInfo(index int) *CallInfo {
	c := &CallInfo{
		Index: index,
		t3113: node.NewTimer("T3113", index),
	}
	c.Origin = newLeg(c, LegOrigin)
	c.Term = newLeg(c, LegTerm)

	return c
}

// Legs returns both legs, origin first.
func (c *CallInfo) Legs() []*Leg {
	return []*Leg{&c.Origin, &c.Term}
}

// Idle tells if neither leg holds a connection any more.
func (c *CallInfo) Idle() bool {
	return !c.Origin.Connected() && !c.Term.Connected()
}

func (c *CallInfo) reset() {
	c.t3113.Cancel()
	c.Origin.reset()
	c.Term.reset()
	c.InUse = false
	c.PagingAttempts = 0
	c.Connected = false
	c.TrafficFromOrigin = 0
	c.TrafficFromTerm = 0
}

// CallSnapshot is a copy of the observable state of a call.
type CallSnapshot struct {
	Index  int
	Origin LegSnapshot
	Term   LegSnapshot
}

// LegSnapshot is a copy of the observable state of a leg.
type LegSnapshot struct {
	IMSI                codec.Identity
	MSISDN              codec.Identity
	BSID                uint32
	ConnectionID        int32
	RR                  resource.RRState
	CC                  CCState
	TrafficConnectionID int32
	HandoverTrying      bool
}

func (l *Leg) snapshot() LegSnapshot {
	return LegSnapshot{
		IMSI:                l.IMSI,
		MSISDN:              l.MSISDN,
		BSID:                l.BSID,
		ConnectionID:        l.ConnectionID,
		RR:                  l.RR,
		CC:                  l.CC,
		TrafficConnectionID: l.TrafficConnectionID,
		HandoverTrying:      l.HandoverTrying,
	}
}
