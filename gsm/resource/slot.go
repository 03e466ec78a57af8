// Package resource manages the radio channels and A-interface connection
// ids of a base station.
package resource

import (
	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/handover"
	"github.com/sarchlab/gsmsim/sim"
)

// SlotsPerFrame is the number of TDMA slots of a channel pair.
const SlotsPerFrame = 8

// NoConnection marks a slot without a connection or traffic id.
const NoConnection int32 = -1

// RRState is the radio resource state the network keeps for a slot.
type RRState int

// Network side RR states.
const (
	RRNull RRState = iota
	RRIdle
	RRConnectionPending
	RRDedicated
)

func (s RRState) String() string {
	switch s {
	case RRIdle:
		return "IDLE"
	case RRConnectionPending:
		return "CONNECTION_PENDING"
	case RRDedicated:
		return "DEDICATED"
	default:
		return "NULL"
	}
}

// SlotInfo describes one slot of a channel pair.
type SlotInfo struct {
	Pair            int
	Slot            int
	DownlinkChannel int
	UplinkChannel   int

	InUse          bool
	SeizedByMS     bool
	ChannelType    codec.ChannelType
	UsedForTraffic bool

	HandoverAttempted  bool
	HandoverInProgress bool
	HandoverReference  uint8

	IMSI      codec.Identity
	RRState   RRState
	StartTime sim.VTimeInSec

	ConnectionID        int32
	TrafficConnectionID int32

	History *handover.History
}

// IsControl tells if the slot carries the broadcast and common channels.
func (s *SlotInfo) IsControl() bool {
	return s.Pair == 0 && s.Slot == 0
}

func (s *SlotInfo) reset() {
	*s = SlotInfo{
		Pair:                s.Pair,
		Slot:                s.Slot,
		DownlinkChannel:     s.DownlinkChannel,
		UplinkChannel:       s.UplinkChannel,
		ConnectionID:        NoConnection,
		TrafficConnectionID: NoConnection,
		History:             s.History,
	}
	s.History.Reset()
}
