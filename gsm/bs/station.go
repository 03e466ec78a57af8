// Package bs implements the Layer-3 relay of a base station: channel
// assignment on random access, the A-interface connection of every
// dedicated mobile, paging, the traffic path and both halves of the
// handover procedure.
package bs

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/sim"
)

// Config describes one cell.
type Config struct {
	CellIdentity uint16
	LAC          uint16

	// MSC is the node id of the switch the cell is attached to.
	MSC uint32

	Resources resource.Config

	// Neighbours lists the candidate handover targets in the order the
	// measurement reports carry their levels.
	Neighbours     []handover.Neighbour
	Thresholds     handover.Thresholds
	HandoverMargin float64

	// LinkLossLevel is the averaged downlink level, in dBm, under which the
	// radio link is considered lost.
	LinkLossLevel float64
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Resources.Validate(); err != nil {
		return err
	}

	if len(c.Neighbours) > handover.NumNeighbours {
		return fmt.Errorf("cell %d has %d neighbours, at most %d supported",
			c.CellIdentity, len(c.Neighbours), handover.NumNeighbours)
	}

	if c.Thresholds.Window <= 0 || c.Thresholds.Window > handover.SampleDepth {
		return fmt.Errorf("handover window %d must be within [1, %d]",
			c.Thresholds.Window, handover.SampleDepth)
	}

	return nil
}

// Stats counts what happened in the cell.
type Stats struct {
	ChannelRequests        uint64
	AssignmentFailures     uint64
	ImmediateAssignments   uint64
	AssignmentTimeouts     uint64
	ConnectionsEstablished uint64
	ConnectionFailures     uint64
	ChannelsReleased       uint64
	PagingRequests         uint64
	HandoversRequired      uint64
	HandoverTargetsMissing uint64
	HandoversRejected      uint64
	HandoverRequests       uint64
	HandoverFailures       uint64
	HandoversIn            uint64
	HandoversOut           uint64
	RadioLinkFailures      uint64
	UplinkFrames           uint64
	DownlinkFrames         uint64
	MessagesDropped        uint64
}

type slotState struct {
	slot  *resource.SlotInfo
	t3101 *node.Timer
	t3111 *node.Timer

	linkLost   bool
	trafficSeq int32
}

// Station is the base station role.
type Station struct {
	node.RoleBase

	cfg Config
	res *resource.Manager

	slots  map[*resource.SlotInfo]*slotState
	timers map[*node.Timer]*slotState
	bcch   *node.Timer

	nextHandoverRef uint8

	statsLock sync.Mutex
	stats     Stats
}

// New creates a base station whose resources follow the clock of
// timeTeller.
func New(cfg Config, timeTeller sim.TimeTeller) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.NewManager(timeTeller, cfg.Resources)
	if err != nil {
		return nil, err
	}

	cfg.Neighbours = append([]handover.Neighbour(nil), cfg.Neighbours...)
	for i := range cfg.Neighbours {
		cfg.Neighbours[i].Index = i
	}

	s := &Station{
		cfg:    cfg,
		res:    res,
		slots:  make(map[*resource.SlotInfo]*slotState),
		timers: make(map[*node.Timer]*slotState),
		bcch:   node.NewTimer("BCCH", 0),
	}

	for p := 0; p < res.NumPairs(); p++ {
		for sl := 0; sl < resource.SlotsPerFrame; sl++ {
			info := res.Slot(p, sl)
			idx := p*resource.SlotsPerFrame + sl
			st := &slotState{
				slot:  info,
				t3101: node.NewTimer("T3101", idx),
				t3111: node.NewTimer("T3111", idx),
			}

			s.slots[info] = st
			s.timers[st.t3101] = st
			s.timers[st.t3111] = st
		}
	}

	return s, nil
}

// Kind implements node.Role.
func (s *Station) Kind() node.Kind {
	return node.KindBS
}

// Config returns the configuration of the cell.
func (s *Station) Config() Config {
	return s.cfg
}

// Resources returns the channel and connection table of the cell.
func (s *Station) Resources() *resource.Manager {
	return s.res
}

// BCCH returns the downlink channel of the control slot.
func (s *Station) BCCH() int {
	return s.res.ControlSlot().DownlinkChannel
}

// Stats returns a snapshot of the counters.
func (s *Station) Stats() Stats {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()

	return s.stats
}

func (s *Station) count(f func(st *Stats)) {
	s.statsLock.Lock()
	f(&s.stats)
	s.statsLock.Unlock()
}

// Start opens the control channel and begins broadcasting system
// information.
func (s *Station) Start(ctx *node.Context) {
	ctx.MAC.StartListen(ctx.ID, s.res.ControlSlot().UplinkChannel)
	s.broadcastSystemInformation(ctx)

	ctx.Log.Info("cell up",
		zap.Uint16("cell", s.cfg.CellIdentity),
		zap.Uint16("lac", s.cfg.LAC),
		zap.Int("bcch", s.BCCH()))
}

// HandleTimer reacts to the expiry of a cell or slot timer.
func (s *Station) HandleTimer(ctx *node.Context, t *node.Timer) {
	if t == s.bcch {
		s.broadcastSystemInformation(ctx)
		return
	}

	st, ok := s.timers[t]
	if !ok {
		ctx.Log.Warn("unknown timer", zap.String("timer", t.Name))
		return
	}

	switch t {
	case st.t3101:
		if st.slot.RRState != resource.RRConnectionPending {
			return
		}

		s.count(func(stats *Stats) { stats.AssignmentTimeouts++ })
		ctx.Log.Debug("assignment not used",
			zap.Int("channel", st.slot.DownlinkChannel),
			zap.Int("slot", st.slot.Slot))
		s.releaseSlot(ctx, st.slot)
	case st.t3111:
		connID := st.slot.ConnectionID
		s.releaseSlot(ctx, st.slot)
		s.sendClearComplete(ctx, connID)
	}
}

func (s *Station) broadcastSystemInformation(ctx *node.Context) {
	si := &codec.SystemInformationType3{
		CellIdentity:   s.cfg.CellIdentity,
		LAC:            s.cfg.LAC,
		BCCH:           uint16(s.BCCH()),
		T3212:          uint16(ctx.Timers.T3212 / 360),
		NeighbourCount: uint8(len(s.cfg.Neighbours)),
	}

	for i, n := range s.cfg.Neighbours {
		si.NeighbourBCCH[i] = n.BCCH
		si.NeighbourCell[i] = n.CellIdentity
		si.NeighbourLAC[i] = n.LAC
	}

	ctx.SendRadio(0, s.BCCH(), codec.ChannelBCCH, si)
	ctx.StartTimer(s.bcch, ctx.Timers.BCCHRefresh)
}

// releaseSlot frees a slot with its connection and traffic ids, and stops
// listening on the pair once it is empty.
func (s *Station) releaseSlot(ctx *node.Context, slot *resource.SlotInfo) {
	st := s.slots[slot]
	st.t3101.Cancel()
	st.t3111.Cancel()
	st.linkLost = false
	st.trafficSeq = 0

	uplink := slot.UplinkChannel

	pairFreed, ok := s.res.ReleaseChannel(slot)
	if !ok {
		return
	}

	s.count(func(stats *Stats) { stats.ChannelsReleased++ })

	if pairFreed {
		ctx.MAC.StopListen(ctx.ID, uplink)
	}
}

func (s *Station) drop(ctx *node.Context, what string, fields ...zap.Field) {
	ctx.Log.Warn(what, fields...)
	s.count(func(st *Stats) { st.MessagesDropped++ })
}
