package msc

import (
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

// connectTraffic allocates a traffic id for a leg and binds it at the
// leg's cell.
func (s *Switch) connectTraffic(ctx *node.Context, l *Leg) {
	if l.TrafficConnectionID != transport.NoConnection {
		return
	}

	tid, ok := s.allocateTraffic(l)
	if !ok {
		ctx.Log.Info("no traffic id left", zap.Stringer("imsi", l.IMSI))
		return
	}

	bs, conn := l.ActiveBS()
	ctx.SendTraffic(bs, transport.TrafficHeader{
		MessageTypeCode:     transport.TrafficConnectRequest,
		TrafficConnectionID: tid,
	}, transport.ConnectionPayload(conn))
}

func (s *Switch) allocateTraffic(l *Leg) (int32, bool) {
	for i, owner := range s.traffic {
		if owner == nil {
			s.traffic[i] = l
			l.TrafficConnectionID = int32(i)

			return int32(i), true
		}
	}

	return transport.NoConnection, false
}

func (s *Switch) releaseTraffic(l *Leg) {
	tid := l.TrafficConnectionID
	if tid < 0 || tid >= MaxTrafficConnections {
		return
	}

	if s.traffic[tid] == l {
		s.traffic[tid] = nil
	}

	l.TrafficConnectionID = transport.NoConnection
}

// onTraffic relays a bearer frame to the cell of the other mobile.
func (s *Switch) onTraffic(ctx *node.Context, src uint32, data []byte) {
	h, payload, err := transport.UnwrapTraffic(data)
	if err != nil {
		s.drop(ctx, "bad traffic envelope", zap.Error(err))
		return
	}

	switch h.MessageTypeCode {
	case transport.TrafficConnectConfirm:
		ctx.Log.Debug("bearer connected",
			zap.Uint32("bs", src),
			zap.Int32("tid", h.TrafficConnectionID))
	case transport.TrafficData:
		s.relayTraffic(ctx, h, payload)
	default:
		s.drop(ctx, "unexpected traffic message",
			zap.Uint8("type", uint8(h.MessageTypeCode)))
	}
}

func (s *Switch) relayTraffic(
	ctx *node.Context,
	h transport.TrafficHeader,
	payload []byte,
) {
	tid := h.TrafficConnectionID
	if tid < 0 || tid >= MaxTrafficConnections || s.traffic[tid] == nil {
		return
	}

	l := s.traffic[tid]
	c := l.Call()

	if l.Role == LegOrigin {
		c.TrafficFromOrigin++
	} else {
		c.TrafficFromTerm++
	}

	s.count(func(st *Stats) { st.TrafficPackets++ })

	peer := l.Peer()
	if peer.TrafficConnectionID == transport.NoConnection ||
		peer.CC != CCActive {
		return
	}

	bs, _ := peer.ActiveBS()
	ctx.SendTraffic(bs, transport.TrafficHeader{
		MessageTypeCode:     transport.TrafficData,
		TrafficConnectionID: peer.TrafficConnectionID,
		SequenceNumber:      h.SequenceNumber,
	}, payload)
}
