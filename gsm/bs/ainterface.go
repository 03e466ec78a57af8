package bs

import (
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

// HandlePacket processes a packet from the switch.
func (s *Station) HandlePacket(ctx *node.Context, evt *node.PacketEvent) {
	if evt.Packet.Kind == transport.PacketTraffic {
		s.onDownlinkTraffic(ctx, evt.Packet.Data)
		return
	}

	h, payload, err := transport.UnwrapAInterface(evt.Packet.Data)
	if err != nil {
		s.drop(ctx, "bad A-interface envelope", zap.Error(err))
		return
	}

	d, l3, err := transport.SplitBSSAP(payload)
	if err != nil {
		s.drop(ctx, "bad A-interface payload", zap.Error(err))
		return
	}

	if d == transport.DiscriminationDTAP {
		s.onDownlinkDTAP(ctx, h, l3)
		return
	}

	m, err := codec.DecodeBSSMAP(l3)
	if err != nil {
		s.drop(ctx, "undecodable BSSMAP message", zap.Error(err))
		return
	}

	ctx.Received(node.InterfaceA, m)
	s.onBSSMAP(ctx, h, m)
}

func (s *Station) onDownlinkDTAP(
	ctx *node.Context,
	h transport.AInterfaceHeader,
	l3 []byte,
) {
	m, err := codec.DecodeDTAP(l3, codec.Downlink)
	if err != nil {
		s.drop(ctx, "undecodable downlink message", zap.Error(err))
		return
	}

	ctx.Received(node.InterfaceA, m)

	slot, ok := s.res.SlotByConnection(h.ConnectionID)
	if !ok {
		s.drop(ctx, "downlink message for unknown connection",
			zap.String("msg", m.Name()),
			zap.Int32("conn", h.ConnectionID))

		return
	}

	ct := codec.ChannelSDCCH
	if slot.UsedForTraffic {
		ct = codec.ChannelFACCH
	}

	ctx.RelayRadio(slot.Slot, slot.DownlinkChannel, ct, l3, m)

	if _, ok := m.(*codec.ChannelRelease); ok {
		ctx.StartTimer(s.slots[slot].t3111, ctx.Timers.T3111)
	}
}

func (s *Station) onBSSMAP(
	ctx *node.Context,
	h transport.AInterfaceHeader,
	m codec.BSSMAP,
) {
	switch msg := m.(type) {
	case *codec.Paging:
		s.onPaging(ctx, msg)
	case *codec.ClearCommand:
		s.onClearCommand(ctx, h.ConnectionID)
	case *codec.HandoverRequest:
		s.onHandoverRequest(ctx, msg)
	case *codec.HandoverCommand:
		s.onHandoverCommand(ctx, h.ConnectionID, msg)
	case *codec.HandoverRequiredReject:
		if slot, ok := s.res.SlotByConnection(h.ConnectionID); ok {
			slot.HandoverAttempted = false
		}

		s.count(func(st *Stats) { st.HandoversRejected++ })
	default:
		s.drop(ctx, "unexpected BSSMAP message", zap.String("msg", m.Name()))
	}
}

func (s *Station) onPaging(ctx *node.Context, msg *codec.Paging) {
	ctrl := s.res.ControlSlot()
	ctx.SendRadio(ctrl.Slot, ctrl.DownlinkChannel, codec.ChannelPCH,
		&codec.PagingRequestType1{
			PageMode: codec.PagingModeNormal,
			IMSI:     msg.IMSI,
		})
	s.count(func(st *Stats) { st.PagingRequests++ })
}

// onClearCommand releases a connection at the switch's request. The mobile
// is told only when it is still on this cell.
func (s *Station) onClearCommand(ctx *node.Context, connID int32) {
	if slot, ok := s.res.SlotByConnection(connID); ok {
		if slot.SeizedByMS && !slot.HandoverInProgress {
			ctx.SendRadio(slot.Slot, slot.DownlinkChannel, codec.ChannelSDCCH,
				&codec.ChannelRelease{Cause: codec.CauseNormalClearing})
		}

		s.releaseSlot(ctx, slot)
	}

	s.sendClearComplete(ctx, connID)
}

func (s *Station) sendClearComplete(ctx *node.Context, connID int32) {
	ctx.SendBSSMAP(s.cfg.MSC, transport.SCCPConnectionReference, connID,
		&codec.ClearComplete{})
}

// onHandoverRequest reserves a channel for a mobile coming from another
// cell.
func (s *Station) onHandoverRequest(ctx *node.Context, msg *codec.HandoverRequest) {
	s.count(func(st *Stats) { st.HandoverRequests++ })

	fail := func(cause uint8) {
		s.count(func(st *Stats) { st.HandoverFailures++ })
		ctx.SendBSSMAP(s.cfg.MSC, transport.SCCPConnectionless,
			transport.NoConnection, &codec.HandoverFailure{
				Cause:          cause,
				TempHandoverID: msg.TempHandoverID,
			})
	}

	if msg.TargetCell != s.cfg.CellIdentity {
		fail(codec.AIFCauseInvalidCell)
		return
	}

	slot, opened, ok := s.res.AssignChannel()
	if !ok {
		fail(codec.AIFCauseNoRadioResource)
		return
	}

	if opened {
		ctx.MAC.StartListen(ctx.ID, slot.UplinkChannel)
	}

	id, ok := s.res.AssignConnectionID(slot)
	if !ok {
		s.releaseSlot(ctx, slot)
		fail(codec.AIFCauseNoRadioResource)

		return
	}

	s.nextHandoverRef++

	slot.RRState = resource.RRConnectionPending
	slot.ChannelType = codec.ChannelTCH
	slot.HandoverInProgress = true
	slot.HandoverReference = s.nextHandoverRef

	if msg.TrafficConnectionID != transport.NoConnection {
		s.res.BindTraffic(slot, msg.TrafficConnectionID)
	}

	ctrl := s.res.ControlSlot()
	ctx.SendBSSMAP(s.cfg.MSC, transport.SCCPConnectRequest, id,
		&codec.HandoverRequestAck{
			TempHandoverID: msg.TempHandoverID,
			Command: codec.RIHandoverCommand{
				CellIdentity:      s.cfg.CellIdentity,
				LAC:               s.cfg.LAC,
				BCCH:              uint16(ctrl.DownlinkChannel),
				Channel:           uint16(slot.DownlinkChannel),
				Slot:              uint8(slot.Slot),
				HandoverReference: slot.HandoverReference,
			},
		})
}

func (s *Station) onHandoverCommand(
	ctx *node.Context,
	connID int32,
	msg *codec.HandoverCommand,
) {
	slot, ok := s.res.SlotByConnection(connID)
	if !ok {
		s.drop(ctx, "handover command for unknown connection",
			zap.Int32("conn", connID))

		return
	}

	cmd := msg.Command
	ctx.SendRadio(slot.Slot, slot.DownlinkChannel, codec.ChannelFACCH, &cmd)
	slot.HandoverInProgress = true
	s.count(func(st *Stats) { st.HandoversOut++ })
}

func (s *Station) onDownlinkTraffic(ctx *node.Context, data []byte) {
	h, payload, err := transport.UnwrapTraffic(data)
	if err != nil {
		s.drop(ctx, "bad traffic envelope", zap.Error(err))
		return
	}

	switch h.MessageTypeCode {
	case transport.TrafficConnectRequest:
		connID, err := transport.ParseConnectionPayload(payload)
		if err != nil {
			s.drop(ctx, "bad traffic connect request", zap.Error(err))
			return
		}

		slot, ok := s.res.SlotByConnection(connID)
		if !ok {
			s.drop(ctx, "traffic connect for unknown connection",
				zap.Int32("conn", connID))

			return
		}

		s.res.BindTraffic(slot, h.TrafficConnectionID)
		slot.ChannelType = codec.ChannelTCH

		ctx.SendTraffic(s.cfg.MSC, transport.TrafficHeader{
			MessageTypeCode:     transport.TrafficConnectConfirm,
			TrafficConnectionID: h.TrafficConnectionID,
		}, transport.ConnectionPayload(connID))
	case transport.TrafficData:
		slot, ok := s.res.SlotByTraffic(h.TrafficConnectionID)
		if !ok || !slot.SeizedByMS || slot.HandoverInProgress {
			return
		}

		if ctx.SendTrafficFrame(slot.Slot, slot.DownlinkChannel, payload) {
			s.count(func(st *Stats) { st.DownlinkFrames++ })
		}
	default:
		s.drop(ctx, "unexpected traffic message",
			zap.Uint8("type", uint8(h.MessageTypeCode)))
	}
}
