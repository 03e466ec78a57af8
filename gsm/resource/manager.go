package resource

import (
	"fmt"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/sim"
)

// MaxConnections bounds the connection ids of a BS.
const MaxConnections = 100

// Config sizes a Manager.
type Config struct {
	// ChannelStart is the first channel index of the cell. Pair p uses the
	// downlink channel ChannelStart+2p and the uplink channel right after.
	ChannelStart int

	// ChannelCount is the number of channels, an even number between 2
	// and 16.
	ChannelCount int

	// ReleaseDelay is how long a released connection id stays quarantined.
	ReleaseDelay sim.VTimeInSec
}

// Validate checks the channel range.
func (c Config) Validate() error {
	if c.ChannelCount < 2 || c.ChannelCount > 16 || c.ChannelCount%2 != 0 {
		return fmt.Errorf("channel count %d must be even and within [2, 16]",
			c.ChannelCount)
	}

	if c.ChannelStart < 0 {
		return fmt.Errorf("channel start %d must not be negative",
			c.ChannelStart)
	}

	if c.ReleaseDelay < 0 {
		return fmt.Errorf("release delay must not be negative")
	}

	return nil
}

// Stats counts the outcomes of the manager's operations.
type Stats struct {
	ChannelsAssigned          uint64
	ChannelAssignmentFailures uint64
	ChannelsReleased          uint64
	PairsReleased             uint64
	ConnectionsAssigned       uint64
	ConnectionFailures        uint64
	ConnectionsReleased       uint64
}

type connection struct {
	inUse    bool
	slot     *SlotInfo
	useAfter sim.VTimeInSec
}

// A Manager owns the slot table, the connection id table and the traffic id
// cross reference of one BS.
type Manager struct {
	timeTeller sim.TimeTeller
	cfg        Config

	slots     [][]*SlotInfo
	pairInUse []bool
	conns     []connection
	traffic   map[int32]*SlotInfo

	Stats Stats
}

// NewManager creates a manager with every slot free except the control slot.
func NewManager(timeTeller sim.TimeTeller, cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	numPairs := cfg.ChannelCount / 2
	m := &Manager{
		timeTeller: timeTeller,
		cfg:        cfg,
		slots:      make([][]*SlotInfo, numPairs),
		pairInUse:  make([]bool, numPairs),
		conns:      make([]connection, MaxConnections),
		traffic:    make(map[int32]*SlotInfo),
	}

	for p := 0; p < numPairs; p++ {
		m.slots[p] = make([]*SlotInfo, SlotsPerFrame)
		for s := 0; s < SlotsPerFrame; s++ {
			m.slots[p][s] = &SlotInfo{
				Pair:                p,
				Slot:                s,
				DownlinkChannel:     cfg.ChannelStart + 2*p,
				UplinkChannel:       cfg.ChannelStart + 2*p + 1,
				ConnectionID:        NoConnection,
				TrafficConnectionID: NoConnection,
				History:             handover.NewHistory(),
			}
		}
	}

	ctrl := m.slots[0][0]
	ctrl.InUse = true
	ctrl.ChannelType = codec.ChannelBCCH
	m.pairInUse[0] = true

	return m, nil
}

// NumPairs returns the number of channel pairs.
func (m *Manager) NumPairs() int {
	return len(m.slots)
}

// ControlSlot returns pair 0 slot 0.
func (m *Manager) ControlSlot() *SlotInfo {
	return m.slots[0][0]
}

// Slot returns the descriptor of a slot, or nil when out of range.
func (m *Manager) Slot(pair, slot int) *SlotInfo {
	if pair < 0 || pair >= len(m.slots) || slot < 0 || slot >= SlotsPerFrame {
		return nil
	}

	return m.slots[pair][slot]
}

// SlotByUplink finds the slot that receives on an uplink channel.
func (m *Manager) SlotByUplink(channel, slot int) *SlotInfo {
	pair := channel - m.cfg.ChannelStart - 1
	if pair < 0 || pair%2 != 0 {
		return nil
	}

	return m.Slot(pair/2, slot)
}

// AssignChannel picks the first pair, in index order, that has a free
// non-control slot, and takes its lowest free slot. pairOpened is true when
// the pair was wholly unused, so that the caller starts listening on it.
func (m *Manager) AssignChannel() (slot *SlotInfo, pairOpened bool, ok bool) {
	for p := range m.slots {
		for s := 0; s < SlotsPerFrame; s++ {
			info := m.slots[p][s]
			if info.InUse || info.IsControl() {
				continue
			}

			pairOpened = !m.pairInUse[p]
			m.pairInUse[p] = true

			info.InUse = true
			info.ChannelType = codec.ChannelTCH
			info.RRState = RRConnectionPending
			info.StartTime = m.timeTeller.CurrentTime()
			m.Stats.ChannelsAssigned++

			return info, pairOpened, true
		}
	}

	m.Stats.ChannelAssignmentFailures++

	return nil, false, false
}

// ReleaseChannel frees a slot. When it was the last occupied slot of its
// pair, the pair is freed too and pairFreed is true. Releasing a free slot
// or the control slot fails without side effects.
func (m *Manager) ReleaseChannel(slot *SlotInfo) (pairFreed bool, ok bool) {
	if slot == nil || !slot.InUse || slot.IsControl() {
		return false, false
	}

	if m.traffic[slot.TrafficConnectionID] == slot {
		delete(m.traffic, slot.TrafficConnectionID)
	}

	if slot.ConnectionID != NoConnection {
		m.ReleaseConnectionID(slot.ConnectionID)
	}

	slot.reset()
	m.Stats.ChannelsReleased++

	for _, s := range m.slots[slot.Pair] {
		if s.InUse {
			return false, true
		}
	}

	m.pairInUse[slot.Pair] = false
	m.Stats.PairsReleased++

	return true, true
}

// AssignConnectionID binds the lowest eligible id to the slot. An id is
// eligible when it is unused and its quarantine has elapsed. A slot that
// already holds an id is refused.
func (m *Manager) AssignConnectionID(slot *SlotInfo) (int32, bool) {
	if slot.ConnectionID != NoConnection {
		return NoConnection, false
	}

	now := m.timeTeller.CurrentTime()

	for id := range m.conns {
		c := &m.conns[id]
		if c.inUse || now < c.useAfter {
			continue
		}

		c.inUse = true
		c.slot = slot
		slot.ConnectionID = int32(id)
		m.Stats.ConnectionsAssigned++

		return int32(id), true
	}

	m.Stats.ConnectionFailures++

	return NoConnection, false
}

// ReleaseConnectionID frees an id and quarantines it. Releasing a free or
// out of range id returns false.
func (m *Manager) ReleaseConnectionID(id int32) bool {
	if id < 0 || id >= MaxConnections || !m.conns[id].inUse {
		return false
	}

	c := &m.conns[id]
	if c.slot != nil && c.slot.ConnectionID == id {
		c.slot.ConnectionID = NoConnection
	}

	c.inUse = false
	c.slot = nil
	c.useAfter = m.timeTeller.CurrentTime() + m.cfg.ReleaseDelay
	m.Stats.ConnectionsReleased++

	return true
}

// SlotByConnection returns the slot bound to a connection id.
func (m *Manager) SlotByConnection(id int32) (*SlotInfo, bool) {
	if id < 0 || id >= MaxConnections || !m.conns[id].inUse {
		return nil, false
	}

	return m.conns[id].slot, true
}

// UseAfter returns the end of the quarantine of an id.
func (m *Manager) UseAfter(id int32) sim.VTimeInSec {
	if id < 0 || id >= MaxConnections {
		return 0
	}

	return m.conns[id].useAfter
}

// BindTraffic associates an MSC traffic id with a slot.
func (m *Manager) BindTraffic(slot *SlotInfo, tid int32) {
	if m.traffic[slot.TrafficConnectionID] == slot {
		delete(m.traffic, slot.TrafficConnectionID)
	}

	slot.TrafficConnectionID = tid
	slot.UsedForTraffic = true
	m.traffic[tid] = slot
}

// SlotByTraffic returns the slot a traffic id is bound to.
func (m *Manager) SlotByTraffic(tid int32) (*SlotInfo, bool) {
	s, ok := m.traffic[tid]
	return s, ok
}

// UnbindTraffic removes a traffic id. It returns false if it was not bound.
func (m *Manager) UnbindTraffic(tid int32) bool {
	s, ok := m.traffic[tid]
	if !ok {
		return false
	}

	s.TrafficConnectionID = NoConnection
	s.UsedForTraffic = false
	delete(m.traffic, tid)

	return true
}

// InUseSlots lists the occupied slots except the control slot, in pair and
// slot order.
func (m *Manager) InUseSlots() []*SlotInfo {
	var out []*SlotInfo

	for p := range m.slots {
		for _, s := range m.slots[p] {
			if s.InUse && !s.IsControl() {
				out = append(out, s)
			}
		}
	}

	return out
}

// PairInUse tells if any slot of a pair is occupied.
func (m *Manager) PairInUse(pair int) bool {
	return pair >= 0 && pair < len(m.pairInUse) && m.pairInUse[pair]
}
