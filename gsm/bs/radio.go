package bs

import (
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

// HandleRadio processes an uplink burst.
func (s *Station) HandleRadio(ctx *node.Context, evt *node.RadioEvent) {
	ctrl := s.res.ControlSlot()
	if evt.Channel == ctrl.UplinkChannel && evt.Slot == ctrl.Slot {
		if evt.Burst.Kind != transport.BurstAccess {
			s.drop(ctx, "non access burst on the RACH")
			return
		}

		s.onChannelRequest(ctx, evt.Burst.Data)

		return
	}

	slot := s.res.SlotByUplink(evt.Channel, evt.Slot)
	if slot == nil || !slot.InUse {
		s.drop(ctx, "burst on an unassigned slot",
			zap.Int("channel", evt.Channel),
			zap.Int("slot", evt.Slot))

		return
	}

	switch evt.Burst.Kind {
	case transport.BurstAccess:
		s.onHandoverAccess(ctx, slot, evt.Burst.Data)
	case transport.BurstTraffic:
		s.onUplinkTraffic(ctx, slot, evt.Burst.Data)
	case transport.BurstSignaling:
		s.onUplinkSignaling(ctx, slot, evt.Burst.Data)
	}
}

func (s *Station) onChannelRequest(ctx *node.Context, data []byte) {
	req, err := codec.DecodeChannelRequest(data)
	if err != nil {
		s.drop(ctx, "bad channel request", zap.Error(err))
		return
	}

	ctx.Received(node.InterfaceRadio, req)
	s.count(func(st *Stats) { st.ChannelRequests++ })

	slot, opened, ok := s.res.AssignChannel()
	if !ok {
		s.count(func(st *Stats) { st.AssignmentFailures++ })
		ctx.Log.Info("no free channel", zap.Stringer("cause", req.Cause()))

		return
	}

	if opened {
		ctx.MAC.StartListen(ctx.ID, slot.UplinkChannel)
	}

	slot.ChannelType = codec.ChannelSDCCH
	slot.RRState = resource.RRConnectionPending

	ctrl := s.res.ControlSlot()
	ctx.SendRadio(ctrl.Slot, ctrl.DownlinkChannel, codec.ChannelAGCH,
		&codec.ImmediateAssignment{
			RandomReference: req.RandomReference,
			Channel:         uint16(slot.DownlinkChannel),
			Slot:            uint8(slot.Slot),
			ChannelType:     codec.ChannelSDCCH,
		})
	ctx.StartTimer(s.slots[slot].t3101, ctx.Timers.T3101)
	s.count(func(st *Stats) { st.ImmediateAssignments++ })
}

func (s *Station) onUplinkSignaling(
	ctx *node.Context,
	slot *resource.SlotInfo,
	data []byte,
) {
	m, err := codec.DecodeDTAP(data, codec.Uplink)
	if err != nil {
		s.drop(ctx, "undecodable uplink message", zap.Error(err))
		return
	}

	ctx.Received(node.InterfaceRadio, m)

	if slot.RRState == resource.RRConnectionPending {
		s.onFirstMessage(ctx, slot, m, data)
		return
	}

	if slot.ConnectionID == resource.NoConnection {
		s.drop(ctx, "uplink message without connection",
			zap.String("msg", m.Name()))

		return
	}

	ctx.RelayDTAP(s.cfg.MSC, slot.ConnectionID, data, m)
}

func (s *Station) onFirstMessage(
	ctx *node.Context,
	slot *resource.SlotInfo,
	m codec.DTAP,
	data []byte,
) {
	switch msg := m.(type) {
	case *codec.RIHandoverComplete:
		if slot.HandoverInProgress {
			s.onHandoverComplete(ctx, slot)
			return
		}
	case *codec.LocationUpdateRequest:
		s.establish(ctx, slot, msg.IMSI, data)
		return
	case *codec.CMServiceRequest:
		s.establish(ctx, slot, msg.IMSI, data)
		return
	case *codec.PagingResponse:
		s.establish(ctx, slot, msg.IMSI, data)
		return
	case *codec.IMSIDetachIndication:
		s.establish(ctx, slot, msg.IMSI, data)
		return
	}

	s.drop(ctx, "unexpected first message", zap.String("msg", m.Name()))
}

// establish opens the A-interface connection of a freshly seized slot and
// hands the initial message to the switch.
func (s *Station) establish(
	ctx *node.Context,
	slot *resource.SlotInfo,
	imsi codec.Identity,
	l3 []byte,
) {
	s.slots[slot].t3101.Cancel()

	id, ok := s.res.AssignConnectionID(slot)
	if !ok {
		s.count(func(st *Stats) { st.ConnectionFailures++ })
		ctx.Log.Warn("no connection id left", zap.Stringer("imsi", imsi))
		ctx.SendRadio(slot.Slot, slot.DownlinkChannel, codec.ChannelSDCCH,
			&codec.ChannelRelease{Cause: codec.CauseCongestion})
		s.releaseSlot(ctx, slot)

		return
	}

	slot.RRState = resource.RRDedicated
	slot.SeizedByMS = true
	slot.IMSI = imsi
	s.count(func(st *Stats) { st.ConnectionsEstablished++ })

	ctx.SendBSSMAP(s.cfg.MSC, transport.SCCPConnectRequest, id,
		&codec.CompleteLayer3Info{
			CellIdentity: s.cfg.CellIdentity,
			LAC:          s.cfg.LAC,
			L3:           l3,
		})
}

func (s *Station) onHandoverAccess(
	ctx *node.Context,
	slot *resource.SlotInfo,
	data []byte,
) {
	ha, err := codec.DecodeHandoverAccess(data)
	if err != nil {
		s.drop(ctx, "bad handover access", zap.Error(err))
		return
	}

	ctx.Received(node.InterfaceRadio, ha)

	if !slot.HandoverInProgress ||
		slot.RRState != resource.RRConnectionPending ||
		ha.HandoverReference != slot.HandoverReference {
		s.drop(ctx, "unexpected handover access",
			zap.Uint8("ref", ha.HandoverReference))

		return
	}

	slot.SeizedByMS = true
	ctx.SendBSSMAP(s.cfg.MSC, transport.SCCPConnectionReference,
		slot.ConnectionID, &codec.HandoverDetect{})
}

func (s *Station) onHandoverComplete(ctx *node.Context, slot *resource.SlotInfo) {
	slot.HandoverInProgress = false
	slot.RRState = resource.RRDedicated
	slot.SeizedByMS = true
	s.count(func(st *Stats) { st.HandoversIn++ })

	ctx.SendBSSMAP(s.cfg.MSC, transport.SCCPConnectionReference,
		slot.ConnectionID,
		&codec.HandoverComplete{Cause: codec.AIFCauseHandoverSuccessful})
}

func (s *Station) onUplinkTraffic(
	ctx *node.Context,
	slot *resource.SlotInfo,
	data []byte,
) {
	if slot.TrafficConnectionID == resource.NoConnection ||
		slot.RRState != resource.RRDedicated {
		return
	}

	st := s.slots[slot]
	ctx.SendTraffic(s.cfg.MSC, transport.TrafficHeader{
		MessageTypeCode:     transport.TrafficData,
		TrafficConnectionID: slot.TrafficConnectionID,
		SequenceNumber:      st.trafficSeq,
	}, data)
	st.trafficSeq++
	s.count(func(st *Stats) { st.UplinkFrames++ })
}
