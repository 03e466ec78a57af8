// Package network provides the collaborators the Layer-3 nodes talk to: a
// radio medium that carries bursts between mobiles and cells and a fixed
// latency IP cloud between the cells and the switch.
package network

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/transport"
	"github.com/sarchlab/gsmsim/sim"
)

// MediumStats counts the bursts carried by the medium.
type MediumStats struct {
	Uplink       uint64
	Downlink     uint64
	Broadcast    uint64
	Undelivered  uint64
	Measurements uint64
	Handovers    uint64
}

type cellEnd struct {
	node       *node.Node
	bcch       int
	identity   uint16
	neighbours []uint16
}

type mobileEnd struct {
	node    *node.Node
	serving *cellEnd

	dedicated bool
	channel   int
	slot      int
}

type dedicatedKey struct {
	channel int
	slot    int
}

// Medium carries radio bursts. Every TDMA frame it takes at most one burst
// from each non-empty queue of every attached node and delivers it after
// the radio delay. Uplink bursts go to the cell listening on the channel,
// downlink bursts to the mobile tuned to the channel and slot, and the
// control slot of a cell reaches every idle mobile camped on it.
type Medium struct {
	*sim.TickingComponent

	engine  sim.Engine
	delay   sim.VTimeInSec
	signals *SignalModel
	log     *zap.Logger
	sacch   *sim.TickingComponent

	cells      []*cellEnd
	mobiles    []*mobileEnd
	cellByNode map[uint32]*cellEnd
	cellByID   map[uint16]*cellEnd
	mobileByID map[uint32]*mobileEnd
	listeners  map[int]*cellEnd
	dedicated  map[dedicatedKey]*mobileEnd

	next int

	lock  sync.Mutex
	stats MediumStats
}

// NewMedium creates a medium. Bursts arrive delay seconds after they leave
// their queue.
func NewMedium(
	name string,
	engine sim.Engine,
	delay sim.VTimeInSec,
	signals *SignalModel,
	log *zap.Logger,
) *Medium {
	if log == nil {
		log = zap.NewNop()
	}

	if signals == nil {
		signals = NewSignalModel()
	}

	m := &Medium{
		engine:     engine,
		delay:      delay,
		signals:    signals,
		log:        log.Named(name),
		cellByNode: make(map[uint32]*cellEnd),
		cellByID:   make(map[uint16]*cellEnd),
		mobileByID: make(map[uint32]*mobileEnd),
		listeners:  make(map[int]*cellEnd),
		dedicated:  make(map[dedicatedKey]*mobileEnd),
	}

	m.TickingComponent = sim.NewTickingComponent(
		name, engine, sim.FreqFromPeriod(node.TDMAFrame), m)
	m.sacch = sim.NewTickingComponent(
		name+".SACCH", engine, sim.FreqFromPeriod(node.SACCHPeriod),
		sim.TickerFunc(m.measure))
	m.sacch.MakeSecondary()

	return m
}

// Signals returns the signal model used for the measurement reports.
func (m *Medium) Signals() *SignalModel {
	return m.signals
}

// Stats returns a copy of the counters.
func (m *Medium) Stats() MediumStats {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.stats
}

func (m *Medium) count(f func(*MediumStats)) {
	m.lock.Lock()
	f(&m.stats)
	m.lock.Unlock()
}

// AttachCell connects a base station whose control channel is bcch. The
// neighbour cells are listed in the order the cell expects their levels
// in the measurement reports.
func (m *Medium) AttachCell(
	n *node.Node,
	bcch int,
	identity uint16,
	neighbours []uint16,
) {
	c := &cellEnd{
		node:       n,
		bcch:       bcch,
		identity:   identity,
		neighbours: neighbours,
	}

	m.cells = append(m.cells, c)
	m.cellByNode[n.ID()] = c
	m.cellByID[identity] = c

	n.Context().Radio.AcceptHook(m.TickingComponent)
}

// AttachMobile connects a mobile camped on the cell of node serving.
func (m *Medium) AttachMobile(n *node.Node, serving uint32) {
	c, ok := m.cellByNode[serving]
	if !ok {
		panic("mobile " + n.Name() + " camps on an unknown cell")
	}

	e := &mobileEnd{node: n, serving: c}
	m.mobiles = append(m.mobiles, e)
	m.mobileByID[n.ID()] = e

	n.Context().Radio.AcceptHook(m.TickingComponent)
}

// Serving returns the node id of the cell a mobile is camped on.
func (m *Medium) Serving(ms uint32) (uint32, bool) {
	e, ok := m.mobileByID[ms]
	if !ok {
		return 0, false
	}

	return e.serving.node.ID(), true
}

// StartListen implements node.MACControl.
func (m *Medium) StartListen(n uint32, channel int) {
	c, ok := m.cellByNode[n]
	if !ok {
		m.log.Warn("listen from an unknown cell", zap.Uint32("node", n))
		return
	}

	m.listeners[channel] = c
}

// StopListen implements node.MACControl.
func (m *Medium) StopListen(n uint32, channel int) {
	if c, ok := m.listeners[channel]; ok && c.node.ID() == n {
		delete(m.listeners, channel)
	}
}

// SetChannel implements node.MACControl.
func (m *Medium) SetChannel(n uint32, channel, slot int) {
	e, ok := m.mobileByID[n]
	if !ok {
		m.log.Warn("channel set on an unknown mobile", zap.Uint32("node", n))
		return
	}

	m.tune(e, channel, slot)
}

// ChannelRelease implements node.MACControl.
func (m *Medium) ChannelRelease(n uint32) {
	e, ok := m.mobileByID[n]
	if !ok || !e.dedicated {
		return
	}

	m.untune(e)
}

// Handover implements node.MACControl. The mobile camps on the cell with
// the given identity and tunes to its channel and slot.
func (m *Medium) Handover(n uint32, cell uint16, channel, slot int) {
	e, ok := m.mobileByID[n]
	if !ok {
		return
	}

	c, ok := m.cellByID[cell]
	if !ok {
		m.log.Warn("handover to an unknown cell",
			zap.Uint32("node", n),
			zap.Uint16("cell", cell))

		return
	}

	e.serving = c
	m.tune(e, channel, slot)
	m.count(func(s *MediumStats) { s.Handovers++ })
}

func (m *Medium) tune(e *mobileEnd, channel, slot int) {
	if e.dedicated {
		m.untune(e)
	}

	e.dedicated = true
	e.channel = channel
	e.slot = slot
	m.dedicated[dedicatedKey{channel, slot}] = e

	m.sacch.TickLater()
}

func (m *Medium) untune(e *mobileEnd) {
	k := dedicatedKey{e.channel, e.slot}
	if m.dedicated[k] == e {
		delete(m.dedicated, k)
	}

	e.dedicated = false
}

// Tick moves one burst out of every pending queue.
func (m *Medium) Tick() bool {
	ends := len(m.cells) + len(m.mobiles)
	if ends == 0 {
		return false
	}

	progress := false

	for i := 0; i < ends; i++ {
		idx := (m.next + i) % ends

		if idx < len(m.cells) {
			progress = m.drainCell(m.cells[idx]) || progress
		} else {
			progress = m.drainMobile(m.mobiles[idx-len(m.cells)]) || progress
		}
	}

	m.next = (m.next + 1) % ends

	return progress
}

func (m *Medium) drainCell(c *cellEnd) bool {
	q := c.node.Context().Radio
	progress := false

	for _, k := range q.Pending() {
		burst, _ := q.Dequeue(k.Slot, k.Channel)
		progress = true

		if k.Slot == 0 && k.Channel == c.bcch {
			m.broadcast(c, k, burst)
			continue
		}

		e, ok := m.dedicated[dedicatedKey{k.Channel, k.Slot}]
		if !ok {
			m.undelivered(c.node, k)
			continue
		}

		m.deliver(e.node, k, burst)
		m.count(func(s *MediumStats) { s.Downlink++ })
	}

	return progress
}

func (m *Medium) broadcast(c *cellEnd, k transport.QueueKey, b transport.Burst) {
	for _, e := range m.mobiles {
		if e.serving != c || e.dedicated {
			continue
		}

		m.deliver(e.node, k, b)
	}

	m.count(func(s *MediumStats) { s.Broadcast++ })
}

func (m *Medium) drainMobile(e *mobileEnd) bool {
	q := e.node.Context().Radio
	progress := false

	for _, k := range q.Pending() {
		burst, _ := q.Dequeue(k.Slot, k.Channel)
		progress = true

		c, ok := m.listeners[k.Channel]
		if !ok {
			m.undelivered(e.node, k)
			continue
		}

		m.deliver(c.node, k, burst)
		m.count(func(s *MediumStats) { s.Uplink++ })
	}

	return progress
}

func (m *Medium) deliver(dst *node.Node, k transport.QueueKey, b transport.Burst) {
	m.engine.Schedule(node.NewRadioEvent(
		m.engine.CurrentTime()+m.delay, dst, k.Channel, k.Slot, b))
}

func (m *Medium) undelivered(src *node.Node, k transport.QueueKey) {
	m.log.Debug("burst lost",
		zap.String("src", src.Name()),
		zap.Int("channel", k.Channel),
		zap.Int("slot", k.Slot))
	m.count(func(s *MediumStats) { s.Undelivered++ })
}

// measure sends one SACCH report per dedicated mobile to its serving cell.
// It keeps the SACCH clock running while any mobile is dedicated.
func (m *Medium) measure() bool {
	now := m.engine.CurrentTime()
	active := false

	for _, e := range m.mobiles {
		if !e.dedicated {
			continue
		}

		active = true
		r := m.report(e, now)

		m.engine.Schedule(node.NewMeasurementEvent(
			now+m.delay, e.serving.node, e.channel+1, e.slot, r))
		m.count(func(s *MediumStats) { s.Measurements++ })
	}

	return active
}

func (m *Medium) report(e *mobileEnd, now sim.VTimeInSec) handover.Report {
	ms := e.node.ID()
	serving := e.serving.node.ID()
	level := m.signals.Level(ms, serving, now)
	quality := m.signals.Quality(ms, serving)

	r := handover.Report{
		ULLevel:   level,
		DLLevel:   level,
		ULQuality: quality,
		DLQuality: quality,
	}

	for _, id := range e.serving.neighbours {
		lvl := NoSignal
		if c, ok := m.cellByID[id]; ok {
			lvl = m.signals.Level(ms, c.node.ID(), now)
		}

		r.NeighbourLevels = append(r.NeighbourLevels, lvl)
	}

	return r
}
