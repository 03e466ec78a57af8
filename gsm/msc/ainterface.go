package msc

import (
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

// HandlePacket processes a packet from a base station.
func (s *Switch) HandlePacket(ctx *node.Context, evt *node.PacketEvent) {
	if evt.Packet.Kind == transport.PacketTraffic {
		s.onTraffic(ctx, evt.Packet.Src, evt.Packet.Data)
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
		s.onUplinkDTAP(ctx, h, l3)
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

func (s *Switch) onBSSMAP(
	ctx *node.Context,
	h transport.AInterfaceHeader,
	m codec.BSSMAP,
) {
	src := h.SourceNodeID

	switch msg := m.(type) {
	case *codec.CompleteLayer3Info:
		s.onCompleteLayer3Info(ctx, src, h.ConnectionID, msg)
	case *codec.ClearComplete:
		s.onClearComplete(ctx, src, h.ConnectionID)
	case *codec.ClearRequest:
		s.onClearRequest(ctx, src, h.ConnectionID, msg)
	case *codec.HandoverRequired:
		s.onHandoverRequired(ctx, src, h.ConnectionID, msg)
	case *codec.HandoverRequestAck:
		s.onHandoverRequestAck(ctx, src, h.ConnectionID, msg)
	case *codec.HandoverFailure:
		s.onHandoverFailure(ctx, msg)
	case *codec.HandoverDetect:
		s.onHandoverDetect(ctx, src, h.ConnectionID)
	case *codec.HandoverComplete:
		s.onHandoverComplete(ctx, src, h.ConnectionID)
	default:
		s.drop(ctx, "unexpected BSSMAP message", zap.String("msg", m.Name()))
	}
}

// onCompleteLayer3Info dispatches the first message of a new connection.
func (s *Switch) onCompleteLayer3Info(
	ctx *node.Context,
	src uint32,
	connID int32,
	msg *codec.CompleteLayer3Info,
) {
	s.count(func(st *Stats) { st.CompleteLayer3Received++ })

	m, err := codec.DecodeDTAP(msg.L3, codec.Uplink)
	if err != nil {
		s.drop(ctx, "undecodable initial message", zap.Error(err))
		return
	}

	ctx.Received(node.InterfaceA, m)

	switch l3 := m.(type) {
	case *codec.LocationUpdateRequest:
		s.onLocationUpdate(ctx, src, connID, msg, l3)
	case *codec.IMSIDetachIndication:
		s.onDetach(ctx, src, connID, l3)
	case *codec.CMServiceRequest:
		s.onCMServiceRequest(ctx, src, connID, msg, l3)
	case *codec.PagingResponse:
		s.onPagingResponse(ctx, src, connID, msg, l3)
	default:
		s.drop(ctx, "unexpected initial message", zap.String("msg", m.Name()))
		s.sendChannelRelease(ctx, src, connID)
	}
}

func (s *Switch) onLocationUpdate(
	ctx *node.Context,
	src uint32,
	connID int32,
	info *codec.CompleteLayer3Info,
	req *codec.LocationUpdateRequest,
) {
	if _, ok := s.vlr.Update(req.IMSI, src, info.LAC, info.CellIdentity); !ok {
		s.count(func(st *Stats) { st.LocationUpdateRejects++ })
		ctx.Log.Info("location update from unknown subscriber",
			zap.Stringer("imsi", req.IMSI))
		ctx.SendDTAP(src, transport.SCCPConnectionReference, connID,
			&codec.LocationUpdateReject{Cause: codec.CauseIMSIUnknownInVLR})
		s.sendChannelRelease(ctx, src, connID)

		return
	}

	s.count(func(st *Stats) { st.LocationUpdates++ })
	ctx.Log.Debug("location updated",
		zap.Stringer("imsi", req.IMSI),
		zap.Uint16("lac", info.LAC),
		zap.Uint16("cell", info.CellIdentity))
	ctx.SendDTAP(src, transport.SCCPConnectionReference, connID,
		&codec.LocationUpdateAccept{LAC: info.LAC})
	s.sendChannelRelease(ctx, src, connID)
}

func (s *Switch) onDetach(
	ctx *node.Context,
	src uint32,
	connID int32,
	msg *codec.IMSIDetachIndication,
) {
	if s.vlr.Detach(msg.IMSI) {
		s.count(func(st *Stats) { st.Detaches++ })
		ctx.Log.Info("detached", zap.Stringer("imsi", msg.IMSI))
	}

	s.sendChannelRelease(ctx, src, connID)
}

func (s *Switch) onCMServiceRequest(
	ctx *node.Context,
	src uint32,
	connID int32,
	info *codec.CompleteLayer3Info,
	req *codec.CMServiceRequest,
) {
	s.count(func(st *Stats) { st.CallRequests++ })

	reject := func(cause uint8, why string) {
		s.count(func(st *Stats) { st.CallsRejected++ })
		ctx.Log.Info("call request rejected",
			zap.Stringer("imsi", req.IMSI),
			zap.String("reason", why))
		ctx.SendDTAP(src, transport.SCCPConnectionReference, connID,
			&codec.CMServiceReject{Cause: cause})
		s.sendChannelRelease(ctx, src, connID)
	}

	entry, ok := s.vlr.Lookup(req.IMSI)
	if !ok || !entry.Attached {
		reject(codec.CauseIMSIUnknownInVLR, "not registered")
		return
	}

	if _, dup := s.callByOrigin(req.IMSI); dup {
		reject(codec.CauseCallRejected, "call already in progress")
		return
	}

	c, ok := s.allocateCall()
	if !ok {
		reject(codec.CauseCongestion, "no call record left")
		return
	}

	s.vlr.Update(req.IMSI, src, info.LAC, info.CellIdentity)

	o := &c.Origin
	o.IMSI = req.IMSI
	o.MSISDN = entry.MSISDN
	o.BSID = src
	o.ConnectionID = connID
	o.RR = resource.RRDedicated
	o.CC = CCNull

	s.count(func(st *Stats) { st.CMServiceAccepts++ })
	s.sendDTAP(ctx, o, &codec.CMServiceAccept{})
	ctx.StartTimer(o.udt1, ctx.Timers.UDT1)

	ctx.Log.Info("call record allocated",
		zap.Int("call", c.Index),
		zap.Stringer("imsi", req.IMSI))
}

func (s *Switch) onPagingResponse(
	ctx *node.Context,
	src uint32,
	connID int32,
	info *codec.CompleteLayer3Info,
	resp *codec.PagingResponse,
) {
	t, ok := s.pagedLeg(resp.IMSI)
	if !ok {
		s.drop(ctx, "unsolicited paging response",
			zap.Stringer("imsi", resp.IMSI))
		s.sendChannelRelease(ctx, src, connID)

		return
	}

	s.count(func(st *Stats) { st.PagingResponses++ })
	s.vlr.Update(resp.IMSI, src, info.LAC, info.CellIdentity)

	c := t.Call()
	c.t3113.Cancel()

	t.BSID = src
	t.ConnectionID = connID
	t.RR = resource.RRDedicated

	s.sendDTAP(ctx, t, &codec.SetupMT{
		BearerCapability: codec.BearerSpeech,
		CallingNumber:    c.Origin.MSISDN.BCD(),
	})
	t.CC = CCCallPresent
	ctx.StartTimer(t.t303, ctx.Timers.T303)
	s.count(func(st *Stats) { st.SetupsSent++ })
}

// onClearComplete marks a connection released. For the source cell of a
// completed handover it hands the leg over to the target connection.
func (s *Switch) onClearComplete(ctx *node.Context, src uint32, connID int32) {
	s.count(func(st *Stats) { st.ClearCompletes++ })

	l, ok := s.legByConnection(src, connID)
	if !ok {
		ctx.Log.Debug("clear complete without call",
			zap.Uint32("bs", src),
			zap.Int32("conn", connID))

		return
	}

	if l.BSID != src || l.ConnectionID != connID {
		if !l.HandoverCompleted {
			s.endHandover(l)
			return
		}

		// The mobile left the target cell before the source cell was
		// cleared.
		s.endHandover(l)
		s.clearCommand(ctx, l.BSID, l.ConnectionID, codec.AIFCauseCallControl)
	} else if l.HandoverCompleted {
		s.swapToTarget(ctx, l)
		return
	}

	l.RR = resource.RRIdle
	l.ConnectionID = transport.NoConnection
	s.releaseTraffic(l)
	s.freeCall(ctx, l.Call())
}

func (s *Switch) onClearRequest(
	ctx *node.Context,
	src uint32,
	connID int32,
	msg *codec.ClearRequest,
) {
	s.count(func(st *Stats) { st.ClearRequests++ })

	l, ok := s.legByConnection(src, connID)
	if !ok {
		ctx.SendBSSMAP(src, transport.SCCPConnectionReference, connID,
			&codec.ClearCommand{Cause: msg.Cause})

		return
	}

	ctx.Log.Info("radio link lost",
		zap.Stringer("imsi", l.IMSI),
		zap.Uint8("cause", msg.Cause))
	s.dropCall(ctx, l.Call(), msg.Cause)
}

func (s *Switch) sendDTAP(ctx *node.Context, l *Leg, m codec.DTAP) {
	bs, conn := l.ActiveBS()
	ctx.SendDTAP(bs, transport.SCCPConnectionReference, conn, m)
}

func (s *Switch) sendChannelRelease(ctx *node.Context, bs uint32, connID int32) {
	ctx.SendDTAP(bs, transport.SCCPConnectionReference, connID,
		&codec.ChannelRelease{Cause: codec.CauseNormalClearing})
	s.count(func(st *Stats) { st.ChannelReleasesSent++ })
}

// releaseLeg tells the mobile to leave its channel. The leg stays connected
// until its cell reports Clear Complete.
func (s *Switch) releaseLeg(ctx *node.Context, l *Leg) {
	bs, conn := l.ActiveBS()
	s.sendChannelRelease(ctx, bs, conn)
}

// dropCall clears every connection of a call at once and frees it.
func (s *Switch) dropCall(ctx *node.Context, c *CallInfo, cause uint8) {
	if !c.InUse {
		return
	}

	for _, l := range c.Legs() {
		if !l.Connected() {
			continue
		}

		s.clearCommand(ctx, l.BSID, l.ConnectionID, cause)

		if l.HandoverTrying && l.HandoverConnectionID != transport.NoConnection {
			s.clearCommand(ctx, l.HandoverBSID, l.HandoverConnectionID, cause)
		}

		s.endHandover(l)
		l.RR = resource.RRIdle
	}

	s.count(func(st *Stats) { st.CallsDropped++ })
	ctx.Log.Info("call dropped",
		zap.Int("call", c.Index),
		zap.Uint8("cause", cause))

	c.Connected = false
	s.freeCall(ctx, c)
}

func (s *Switch) clearCommand(
	ctx *node.Context,
	bs uint32,
	connID int32,
	cause uint8,
) {
	ctx.SendBSSMAP(bs, transport.SCCPConnectionReference, connID,
		&codec.ClearCommand{Cause: cause})
	s.count(func(st *Stats) { st.ClearCommandsSent++ })
}
