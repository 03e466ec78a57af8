package ms

import (
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/resource"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

// HandleRadio processes a downlink burst.
func (s *Station) HandleRadio(ctx *node.Context, evt *node.RadioEvent) {
	if s.rr == resource.RRNull {
		return
	}

	switch evt.Burst.Kind {
	case transport.BurstTraffic:
		if s.cc == CCActive {
			s.count(func(st *Stats) { st.TrafficFramesReceived++ })
		}

		return
	case transport.BurstSignaling:
	default:
		return
	}

	m, err := codec.DecodeDTAP(evt.Burst.Data, codec.Downlink)
	if err != nil {
		ctx.Log.Warn("undecodable downlink message", zap.Error(err))
		s.count(func(st *Stats) { st.MessagesDropped++ })

		return
	}

	switch msg := m.(type) {
	case *codec.SystemInformationType3:
		s.onSystemInformation(ctx, msg)
		return
	case *codec.PagingRequestType1:
		s.onPaging(ctx, msg)
		return
	case *codec.ImmediateAssignment:
		s.onImmediateAssignment(ctx, msg)
		return
	}

	if s.rr != resource.RRDedicated {
		s.drop(ctx, m)
		return
	}

	ctx.Received(node.InterfaceRadio, m)

	if !s.dispatchDedicated(ctx, m) {
		s.drop(ctx, m)
	}
}

func (s *Station) dispatchDedicated(ctx *node.Context, m codec.DTAP) bool {
	switch msg := m.(type) {
	case *codec.ChannelRelease:
		s.localRelease(ctx)
	case *codec.RIHandoverCommand:
		s.onHandoverCommand(ctx, msg)
	case *codec.LocationUpdateAccept:
		return s.onLocationUpdateAccept(ctx, msg)
	case *codec.LocationUpdateReject:
		return s.onLocationUpdateReject(ctx, msg)
	case *codec.CMServiceAccept:
		return s.onCMServiceAccept(ctx)
	case *codec.CMServiceReject:
		return s.onCMServiceReject(ctx, msg)
	case *codec.CallProceeding:
		return s.onCallProceeding(ctx)
	case *codec.Alerting:
		return s.onAlerting()
	case *codec.ConnectMO:
		return s.onConnect(ctx)
	case *codec.SetupMT:
		return s.onSetup(ctx, msg)
	case *codec.ConnectAck:
		return s.onConnectAck(ctx)
	case *codec.DisconnectByNetwork:
		return s.onDisconnect(ctx, msg)
	case *codec.Release:
		return s.onRelease(ctx)
	case *codec.ReleaseComplete:
		return s.onReleaseComplete(ctx)
	default:
		return false
	}

	return true
}

func (s *Station) drop(ctx *node.Context, m codec.Message) {
	ctx.Log.Warn("message dropped",
		zap.String("msg", m.Name()),
		zap.Stringer("rr", s.rr),
		zap.Stringer("mm", s.mm),
		zap.Stringer("cc", s.cc))
	s.count(func(st *Stats) { st.MessagesDropped++ })
}

func (s *Station) onSystemInformation(
	ctx *node.Context,
	msg *codec.SystemInformationType3,
) {
	s.cell = cellInfo{
		camped:   true,
		identity: msg.CellIdentity,
		lac:      msg.LAC,
		bcch:     int(msg.BCCH),
	}

	if s.rr != resource.RRIdle || s.mm != MMIdle {
		return
	}

	if s.t3211.Active() || s.t3213.Active() {
		return
	}

	switch {
	case s.idle == IdlePLMNSearch:
		s.startLocationUpdate(ctx, codec.LocationUpdateIMSIAttach)
	case s.update == RoamingNotAllowed && msg.LAC == s.registeredLAC:
		s.idle = IdleLimitedService
	case s.update != Updated || msg.LAC != s.registeredLAC:
		s.startLocationUpdate(ctx, codec.LocationUpdateNormal)
	}
}

func (s *Station) onPaging(ctx *node.Context, msg *codec.PagingRequestType1) {
	if msg.IMSI != s.cfg.IMSI {
		return
	}

	ctx.Received(node.InterfaceRadio, msg)

	if s.rr != resource.RRIdle || s.mm != MMIdle || s.cc != CCNull ||
		s.update != Updated {
		ctx.Log.Info("paging ignored",
			zap.Stringer("rr", s.rr),
			zap.Stringer("mm", s.mm),
			zap.Stringer("cc", s.cc))

		return
	}

	s.count(func(st *Stats) { st.PagingsReceived++ })
	s.requestChannel(ctx, codec.EstablishAnswerToPaging)
}

func (s *Station) onImmediateAssignment(
	ctx *node.Context,
	msg *codec.ImmediateAssignment,
) {
	if s.rr != resource.RRConnectionPending ||
		msg.RandomReference != s.pendingRef {
		return
	}

	ctx.Received(node.InterfaceRadio, msg)

	s.channelRequest.Cancel()
	s.rr = resource.RRDedicated
	s.channel = int(msg.Channel)
	s.slot = int(msg.Slot)
	ctx.MAC.SetChannel(ctx.ID, s.channel, s.slot)
	s.count(func(st *Stats) { st.ImmediateAssignments++ })

	switch s.pendingCause {
	case codec.EstablishLocationUpdating:
		if s.detaching {
			s.sendUplink(ctx, &codec.IMSIDetachIndication{IMSI: s.cfg.IMSI})
			ctx.StartTimer(s.t3240, ctx.Timers.T3240)

			return
		}

		s.sendUplink(ctx, &codec.LocationUpdateRequest{
			UpdateType: s.luType,
			LAC:        s.registeredLAC,
			IMSI:       s.cfg.IMSI,
		})
		s.mm = MMLocationUpdatingInitiated
		ctx.StartTimer(s.t3210, ctx.Timers.T3210)
	case codec.EstablishNormalCall:
		s.sendUplink(ctx, &codec.CMServiceRequest{
			ServiceType: codec.ServiceMobileOriginatingCall,
			IMSI:        s.cfg.IMSI,
		})
		s.mm = MMWaitForOutgoingMMConnection
		ctx.StartTimer(s.t3230, ctx.Timers.T3230)
	case codec.EstablishAnswerToPaging:
		s.sendUplink(ctx, &codec.PagingResponse{IMSI: s.cfg.IMSI})
		s.mm = MMWaitForNetworkCommand
		ctx.StartTimer(s.t3240, ctx.Timers.T3240)
	}
}

func (s *Station) onHandoverCommand(
	ctx *node.Context,
	msg *codec.RIHandoverCommand,
) {
	s.channel = int(msg.Channel)
	s.slot = int(msg.Slot)
	s.cell.identity = msg.CellIdentity
	s.cell.lac = msg.LAC
	s.cell.bcch = int(msg.BCCH)

	ctx.MAC.Handover(ctx.ID, msg.CellIdentity, s.channel, s.slot)
	ctx.SendRadio(s.slot, s.channel+1, codec.ChannelFACCH,
		&codec.HandoverAccess{HandoverReference: msg.HandoverReference})
	s.sendUplink(ctx, &codec.RIHandoverComplete{})
	s.count(func(st *Stats) { st.Handovers++ })

	ctx.Log.Info("handed over",
		zap.Uint16("cell", msg.CellIdentity),
		zap.Int("channel", s.channel),
		zap.Int("slot", s.slot))
}

func (s *Station) onLocationUpdateAccept(
	ctx *node.Context,
	msg *codec.LocationUpdateAccept,
) bool {
	if s.mm != MMLocationUpdatingInitiated {
		return false
	}

	s.t3210.Cancel()
	s.update = Updated
	s.registeredLAC = msg.LAC
	s.luAttempts = 0
	s.t3213Retries = 0
	s.mm = MMWaitForNetworkCommand
	ctx.StartTimer(s.t3240, ctx.Timers.T3240)
	s.count(func(st *Stats) { st.LocationUpdatesAccepted++ })

	ctx.Log.Info("registered", zap.Uint16("lac", msg.LAC))

	return true
}

func (s *Station) onLocationUpdateReject(
	ctx *node.Context,
	msg *codec.LocationUpdateReject,
) bool {
	if s.mm != MMLocationUpdatingInitiated {
		return false
	}

	s.t3210.Cancel()
	s.update = RoamingNotAllowed
	s.registeredLAC = s.cell.lac
	s.mm = MMWaitForNetworkCommand
	ctx.StartTimer(s.t3240, ctx.Timers.T3240)
	s.count(func(st *Stats) { st.LocationUpdatesRejected++ })

	ctx.Log.Warn("location update rejected", zap.Uint8("cause", msg.Cause))

	return true
}

func (s *Station) onCMServiceAccept(ctx *node.Context) bool {
	if s.mm != MMWaitForOutgoingMMConnection || s.cc != CCMMConnectionPending {
		return false
	}

	s.t3230.Cancel()
	s.mm = MMConnectionActive
	s.sendUplink(ctx, &codec.SetupMO{
		BearerCapability: codec.BearerSpeech,
		CalledNumber:     s.callee.BCD(),
	})
	s.cc = CCCallInitiated
	ctx.StartTimer(s.t303, ctx.Timers.T303)

	return true
}

func (s *Station) onCMServiceReject(
	ctx *node.Context,
	msg *codec.CMServiceReject,
) bool {
	if s.mm != MMWaitForOutgoingMMConnection {
		return false
	}

	s.t3230.Cancel()
	s.abortCall()
	s.mm = MMWaitForNetworkCommand
	ctx.StartTimer(s.t3240, ctx.Timers.T3240)
	s.count(func(st *Stats) { st.CallsRejected++ })

	ctx.Log.Info("call rejected", zap.Uint8("cause", msg.Cause))

	return true
}

func (s *Station) onCallProceeding(ctx *node.Context) bool {
	if s.cc != CCCallInitiated {
		return false
	}

	s.t303.Cancel()
	s.cc = CCMOCallProceeding
	ctx.StartTimer(s.t310, ctx.Timers.T310)

	return true
}

func (s *Station) onAlerting() bool {
	if s.cc != CCCallInitiated && s.cc != CCMOCallProceeding {
		return false
	}

	s.t303.Cancel()
	s.t310.Cancel()
	s.cc = CCCallDelivered

	return true
}

func (s *Station) onConnect(ctx *node.Context) bool {
	switch s.cc {
	case CCCallInitiated, CCMOCallProceeding, CCCallDelivered:
	default:
		return false
	}

	s.t303.Cancel()
	s.t310.Cancel()
	s.sendUplink(ctx, &codec.ConnectAck{})
	s.startActive(ctx)

	return true
}

func (s *Station) onSetup(ctx *node.Context, msg *codec.SetupMT) bool {
	if s.cc != CCNull || s.mm != MMWaitForNetworkCommand {
		return false
	}

	s.t3240.Cancel()
	s.mm = MMConnectionActive
	s.cc = CCCallPresent
	s.callDuration = s.cfg.HangUpAfter
	s.count(func(st *Stats) { st.CallsReceived++ })

	caller, _ := msg.CallingNumber.Identity()
	ctx.Log.Info("incoming call", zap.Stringer("caller", caller))

	s.sendUplink(ctx, &codec.CallConfirmed{BearerCapability: codec.BearerSpeech})
	s.cc = CCMTCallConfirmed
	s.sendUplink(ctx, &codec.Alerting{})
	s.cc = CCCallReceived

	if s.cfg.AutoAnswer {
		ctx.StartTimer(s.answer, s.cfg.AnswerDelay)
	}

	return true
}

func (s *Station) onConnectAck(ctx *node.Context) bool {
	if s.cc != CCConnectRequest {
		return false
	}

	s.t313.Cancel()
	s.startActive(ctx)

	return true
}

func (s *Station) onDisconnect(
	ctx *node.Context,
	msg *codec.DisconnectByNetwork,
) bool {
	switch s.cc {
	case CCNull, CCReleaseRequest, CCMMConnectionPending:
		return false
	}

	ctx.Log.Info("disconnected by network", zap.Uint8("cause", msg.Cause))

	s.cancelCallTimers()
	s.cc = CCDisconnectIndication
	s.releaseAttempts = 1
	s.sendRelease(ctx, codec.CauseNormalClearing)

	return true
}

func (s *Station) onRelease(ctx *node.Context) bool {
	if s.cc == CCNull || s.cc == CCMMConnectionPending {
		return false
	}

	s.sendUplink(ctx, &codec.ReleaseComplete{
		Cause:    codec.CauseNormalClearing,
		Location: codec.LocationUser,
	})
	s.callCleared(ctx)

	return true
}

func (s *Station) onReleaseComplete(ctx *node.Context) bool {
	if s.cc != CCReleaseRequest {
		return false
	}

	s.callCleared(ctx)

	return true
}
