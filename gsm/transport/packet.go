package transport

import "github.com/sarchlab/gsmsim/gsm/codec"

// PacketKind tells which envelope a packet carries.
type PacketKind int

// Packet kinds.
const (
	PacketSignaling PacketKind = iota
	PacketTraffic
)

func (k PacketKind) String() string {
	if k == PacketTraffic {
		return "traffic"
	}

	return "signaling"
}

// Packet is the unit handed to the IP network between a BS and the MSC.
type Packet struct {
	Kind PacketKind
	Src  uint32
	Dst  uint32
	Data []byte
}

// BurstKind tells how the payload of a radio burst is to be read.
type BurstKind int

// Burst kinds.
const (
	BurstAccess BurstKind = iota
	BurstSignaling
	BurstTraffic
)

// Burst is one frame queued toward the medium access layer.
type Burst struct {
	Kind        BurstKind
	ChannelType codec.ChannelType
	Data        []byte
}
