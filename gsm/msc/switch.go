// Package msc implements the mobile switching center: the visitor location
// register, the call records linking an originating and a terminating
// mobile, paging, the bearer relay and the anchor half of inter-cell
// handovers.
package msc

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
)

// Limits of a switch.
const (
	MaxBaseStations       = 7
	MaxTrafficConnections = 200
)

// Cell describes a base station attached to the switch.
type Cell struct {
	NodeID       uint32
	CellIdentity uint16
	LAC          uint16
}

// Config describes a switch.
type Config struct {
	Subscribers []Subscriber
	Cells       []Cell

	// MaxCalls bounds the number of simultaneous calls.
	MaxCalls int

	// PagingAttempts is how many times a mobile is paged before the call is
	// given up.
	PagingAttempts int
}

// DefaultConfig returns a switch configuration with the standard limits.
func DefaultConfig(subscribers []Subscriber, cells []Cell) Config {
	return Config{
		Subscribers:    subscribers,
		Cells:          cells,
		MaxCalls:       50,
		PagingAttempts: 3,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Cells) > MaxBaseStations {
		return fmt.Errorf("%d base stations attached, at most %d supported",
			len(c.Cells), MaxBaseStations)
	}

	if c.MaxCalls <= 0 || 2*c.MaxCalls > MaxTrafficConnections {
		return fmt.Errorf("max calls %d must be within [1, %d]",
			c.MaxCalls, MaxTrafficConnections/2)
	}

	if c.PagingAttempts <= 0 {
		return fmt.Errorf("paging attempts %d must be positive",
			c.PagingAttempts)
	}

	imsis := make(map[codec.Identity]bool)
	msisdns := make(map[codec.Identity]bool)

	for _, s := range c.Subscribers {
		if s.IMSI.IsZero() || s.MSISDN.IsZero() {
			return fmt.Errorf("subscriber without IMSI or MSISDN")
		}

		if imsis[s.IMSI] || msisdns[s.MSISDN] {
			return fmt.Errorf("subscriber %s listed twice", s.IMSI)
		}

		imsis[s.IMSI] = true
		msisdns[s.MSISDN] = true
	}

	return nil
}

// Stats counts what happened at the switch.
type Stats struct {
	CallRequests           uint64
	CallsConnected         uint64
	CallsCompleted         uint64
	CallsDropped           uint64
	CallsRejected          uint64
	Handovers              uint64
	HandoverFailures       uint64
	TrafficPackets         uint64
	CompleteLayer3Received uint64
	LocationUpdates        uint64
	LocationUpdateRejects  uint64
	Detaches               uint64
	CMServiceAccepts       uint64
	PagingsSent            uint64
	PagingResponses        uint64
	SetupsSent             uint64
	SetupsReceived         uint64
	DisconnectsReceived    uint64
	DisconnectsSent        uint64
	ReleasesSent           uint64
	ReleasesReceived       uint64
	ChannelReleasesSent    uint64
	ClearCommandsSent      uint64
	ClearCompletes         uint64
	ClearRequests          uint64
	MessagesDropped        uint64
}

// Switch is the MSC role.
type Switch struct {
	node.RoleBase

	cfg Config
	vlr *VLR

	calls   []*CallInfo
	legs    map[*node.Timer]*Leg
	paging  map[*node.Timer]*CallInfo
	traffic []*Leg

	handovers      map[int32]*Leg
	nextHandoverID int32

	statsLock sync.Mutex
	stats     Stats
}

// New creates a switch.
func New(cfg Config) (*Switch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Switch{
		cfg:       cfg,
		vlr:       NewVLR(cfg.Subscribers),
		legs:      make(map[*node.Timer]*Leg),
		paging:    make(map[*node.Timer]*CallInfo),
		traffic:   make([]*Leg, MaxTrafficConnections),
		handovers: make(map[int32]*Leg),
	}

	for i := 0; i < cfg.MaxCalls; i++ {
		c := newCallInfo(i)
		s.calls = append(s.calls, c)
		s.paging[c.t3113] = c

		for _, l := range c.Legs() {
			for _, t := range l.timers() {
				s.legs[t] = l
			}
		}
	}

	return s, nil
}

// Kind implements node.Role.
func (s *Switch) Kind() node.Kind {
	return node.KindMSC
}

// Config returns the configuration of the switch.
func (s *Switch) Config() Config {
	return s.cfg
}

// VLR returns the visitor location register.
func (s *Switch) VLR() *VLR {
	return s.vlr
}

// Calls returns a snapshot of the calls in progress.
func (s *Switch) Calls() []CallSnapshot {
	var out []CallSnapshot

	for _, c := range s.calls {
		if !c.InUse {
			continue
		}

		out = append(out, CallSnapshot{
			Index:  c.Index,
			Origin: c.Origin.snapshot(),
			Term:   c.Term.snapshot(),
		})
	}

	return out
}

// TrafficInUse returns the number of allocated traffic ids.
func (s *Switch) TrafficInUse() int {
	n := 0

	for _, l := range s.traffic {
		if l != nil {
			n++
		}
	}

	return n
}

// Stats returns a snapshot of the counters.
func (s *Switch) Stats() Stats {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()

	return s.stats
}

func (s *Switch) count(f func(st *Stats)) {
	s.statsLock.Lock()
	f(&s.stats)
	s.statsLock.Unlock()
}

// Start implements node.Role.
func (s *Switch) Start(ctx *node.Context) {
	ctx.Log.Info("switch up",
		zap.Int("cells", len(s.cfg.Cells)),
		zap.Int("subscribers", len(s.cfg.Subscribers)))
}

func (s *Switch) cellByID(lac, cell uint16) (Cell, bool) {
	for _, c := range s.cfg.Cells {
		if c.LAC == lac && c.CellIdentity == cell {
			return c, true
		}
	}

	return Cell{}, false
}

func (s *Switch) cellsInArea(lac uint16) []Cell {
	var out []Cell

	for _, c := range s.cfg.Cells {
		if c.LAC == lac {
			out = append(out, c)
		}
	}

	return out
}

// allocateCall takes the first free call record.
func (s *Switch) allocateCall() (*CallInfo, bool) {
	for _, c := range s.calls {
		if !c.InUse {
			c.InUse = true
			return c, true
		}
	}

	return nil, false
}

func (s *Switch) callByOrigin(imsi codec.Identity) (*CallInfo, bool) {
	for _, c := range s.calls {
		if c.InUse && c.Origin.IMSI == imsi {
			return c, true
		}
	}

	return nil, false
}

func (s *Switch) busy(imsi codec.Identity) bool {
	for _, c := range s.calls {
		if c.InUse && (c.Origin.IMSI == imsi || c.Term.IMSI == imsi) {
			return true
		}
	}

	return false
}

func (s *Switch) pagedLeg(imsi codec.Identity) (*Leg, bool) {
	for _, c := range s.calls {
		if c.InUse && c.Term.IMSI == imsi && c.t3113.Active() {
			return &c.Term, true
		}
	}

	return nil, false
}

// legByConnection finds the leg that owns an A-interface connection, either
// as its serving connection or as the target of a handover.
func (s *Switch) legByConnection(bsID uint32, connID int32) (*Leg, bool) {
	for _, c := range s.calls {
		if !c.InUse {
			continue
		}

		for _, l := range c.Legs() {
			if !l.Connected() {
				continue
			}

			if l.BSID == bsID && l.ConnectionID == connID {
				return l, true
			}

			if l.HandoverTrying && l.HandoverBSID == bsID &&
				l.HandoverConnectionID == connID {
				return l, true
			}
		}
	}

	return nil, false
}

// freeCall releases a call record once neither mobile holds a connection.
func (s *Switch) freeCall(ctx *node.Context, c *CallInfo) {
	if !c.InUse || !c.Idle() {
		return
	}

	for _, l := range c.Legs() {
		s.releaseTraffic(l)
		s.abandonHandover(ctx, l)
		s.endHandover(l)
	}

	if c.Connected {
		s.count(func(st *Stats) { st.CallsCompleted++ })
	}

	ctx.Log.Info("call freed",
		zap.Int("call", c.Index),
		zap.Stringer("origin", c.Origin.IMSI),
		zap.Stringer("term", c.Term.IMSI))
	c.reset()
}

func (s *Switch) drop(ctx *node.Context, what string, fields ...zap.Field) {
	ctx.Log.Warn(what, fields...)
	s.count(func(st *Stats) { st.MessagesDropped++ })
}
