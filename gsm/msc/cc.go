package msc

import (
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

func (s *Switch) onUplinkDTAP(
	ctx *node.Context,
	h transport.AInterfaceHeader,
	l3 []byte,
) {
	m, err := codec.DecodeDTAP(l3, codec.Uplink)
	if err != nil {
		s.drop(ctx, "undecodable uplink message", zap.Error(err))
		return
	}

	ctx.Received(node.InterfaceA, m)

	l, ok := s.legByConnection(h.SourceNodeID, h.ConnectionID)
	if !ok {
		s.drop(ctx, "message for unknown connection",
			zap.String("msg", m.Name()),
			zap.Uint32("bs", h.SourceNodeID),
			zap.Int32("conn", h.ConnectionID))

		return
	}

	if !s.dispatchCC(ctx, l, m) {
		s.drop(ctx, "message dropped",
			zap.String("msg", m.Name()),
			zap.Stringer("leg", l.Role),
			zap.Stringer("cc", l.CC))
	}
}

func (s *Switch) dispatchCC(ctx *node.Context, l *Leg, m codec.DTAP) bool {
	switch msg := m.(type) {
	case *codec.SetupMO:
		return s.onSetup(ctx, l, msg)
	case *codec.CallConfirmed:
		return s.onCallConfirmed(ctx, l)
	case *codec.Alerting:
		return s.onAlerting(ctx, l)
	case *codec.ConnectMT:
		return s.onConnect(ctx, l)
	case *codec.ConnectAck:
		return s.onConnectAck(ctx, l)
	case *codec.DisconnectByMS:
		return s.onDisconnect(ctx, l, msg)
	case *codec.Release:
		return s.onRelease(ctx, l)
	case *codec.ReleaseComplete:
		return s.onReleaseComplete(ctx, l)
	case *codec.RIHandoverComplete:
		return true
	default:
		return false
	}
}

// onSetup proceeds with an outgoing call: the caller's bearer is set up
// and the callee is paged in its location area.
func (s *Switch) onSetup(ctx *node.Context, o *Leg, msg *codec.SetupMO) bool {
	if o.Role != LegOrigin || o.CC != CCNull {
		return false
	}

	s.count(func(st *Stats) { st.SetupsReceived++ })
	o.udt1.Cancel()
	o.CC = CCCallInitiated

	s.sendDTAP(ctx, o, &codec.CallProceeding{})
	o.CC = CCMOCallProceeding

	s.connectTraffic(ctx, o)

	c := o.Call()

	callee, err := msg.CalledNumber.Identity()
	if err != nil {
		ctx.Log.Info("bad called number", zap.Error(err))
		s.clearCall(ctx, c, codec.CauseNormalUnspecified)

		return true
	}

	entry, ok := s.vlr.LookupMSISDN(callee)
	if !ok {
		ctx.Log.Info("callee not reachable", zap.Stringer("msisdn", callee))
		s.clearCall(ctx, c, codec.CauseNormalUnspecified)

		return true
	}

	if entry.IMSI == o.IMSI || s.busy(entry.IMSI) {
		ctx.Log.Info("callee busy", zap.Stringer("msisdn", callee))
		s.clearCall(ctx, c, codec.CauseCallCompletionFailed)

		return true
	}

	t := &c.Term
	t.IMSI = entry.IMSI
	t.MSISDN = entry.MSISDN
	t.BSID = entry.BSID

	c.PagingAttempts = 0
	s.page(ctx, c)

	return true
}

// page sends a Paging to every cell of the callee's location area.
func (s *Switch) page(ctx *node.Context, c *CallInfo) {
	entry, _ := s.vlr.Lookup(c.Term.IMSI)

	cells := s.cellsInArea(entry.LAC)
	if len(cells) == 0 {
		cells = []Cell{{NodeID: entry.BSID, LAC: entry.LAC}}
	}

	for _, cell := range cells {
		ctx.SendBSSMAP(cell.NodeID, transport.SCCPConnectionless,
			transport.NoConnection, &codec.Paging{
				IMSI:         c.Term.IMSI,
				LAC:          entry.LAC,
				CellIdentity: cell.CellIdentity,
			})
	}

	c.PagingAttempts++
	s.count(func(st *Stats) { st.PagingsSent++ })
	ctx.StartTimer(c.t3113, ctx.Timers.T3113)
}

func (s *Switch) onCallConfirmed(ctx *node.Context, t *Leg) bool {
	if t.Role != LegTerm || t.CC != CCCallPresent {
		return false
	}

	t.t303.Cancel()
	t.CC = CCMTCallConfirmed
	ctx.StartTimer(t.t310, ctx.Timers.T310)
	s.connectTraffic(ctx, t)

	return true
}

func (s *Switch) onAlerting(ctx *node.Context, t *Leg) bool {
	if t.Role != LegTerm ||
		(t.CC != CCCallPresent && t.CC != CCMTCallConfirmed) {
		return false
	}

	t.t303.Cancel()
	t.t310.Cancel()
	t.CC = CCCallReceived
	ctx.StartTimer(t.t301, ctx.Timers.T301)

	o := t.Peer()
	if o.CC == CCMOCallProceeding {
		s.sendDTAP(ctx, o, &codec.Alerting{})
		o.CC = CCCallDelivered
	}

	return true
}

// onConnect answers the callee and connects the caller.
func (s *Switch) onConnect(ctx *node.Context, t *Leg) bool {
	if t.Role != LegTerm ||
		(t.CC != CCCallReceived && t.CC != CCMTCallConfirmed) {
		return false
	}

	t.t301.Cancel()
	t.t310.Cancel()
	t.CC = CCConnectRequest
	s.sendDTAP(ctx, t, &codec.ConnectAck{})
	t.CC = CCActive

	o := t.Peer()
	s.sendDTAP(ctx, o, &codec.ConnectMO{})
	o.CC = CCConnectIndication
	ctx.StartTimer(o.t313, ctx.Timers.T313)

	return true
}

func (s *Switch) onConnectAck(ctx *node.Context, o *Leg) bool {
	if o.Role != LegOrigin || o.CC != CCConnectIndication {
		return false
	}

	o.t313.Cancel()
	o.CC = CCActive

	c := o.Call()
	c.Connected = true
	s.count(func(st *Stats) { st.CallsConnected++ })

	ctx.Log.Info("call connected",
		zap.Int("call", c.Index),
		zap.Stringer("origin", o.IMSI),
		zap.Stringer("term", c.Term.IMSI))

	return true
}

// onDisconnect answers a Disconnect with a Release and mirrors it to the
// other mobile.
func (s *Switch) onDisconnect(
	ctx *node.Context,
	l *Leg,
	msg *codec.DisconnectByMS,
) bool {
	switch l.CC {
	case CCNull, CCReleaseRequest:
		return false
	}

	s.count(func(st *Stats) { st.DisconnectsReceived++ })
	l.cancelTimers()
	s.abandonHandover(ctx, l)
	l.releaseAttempts = 1
	s.sendRelease(ctx, l, msg.Cause)

	s.disconnectLeg(ctx, l.Peer(), msg.Cause)

	return true
}

func (s *Switch) onRelease(ctx *node.Context, l *Leg) bool {
	if l.CC == CCNull {
		return false
	}

	s.count(func(st *Stats) { st.ReleasesReceived++ })
	l.cancelTimers()
	s.abandonHandover(ctx, l)
	s.sendDTAP(ctx, l, &codec.ReleaseComplete{
		Cause:    codec.CauseNormalClearing,
		Location: codec.LocationPublicNetworkLocalUser,
	})
	s.legCleared(ctx, l)

	s.disconnectLeg(ctx, l.Peer(), codec.CauseNormalClearing)

	return true
}

func (s *Switch) onReleaseComplete(ctx *node.Context, l *Leg) bool {
	if l.CC != CCReleaseRequest {
		return false
	}

	l.t308.Cancel()
	s.legCleared(ctx, l)

	return true
}

func (s *Switch) sendRelease(ctx *node.Context, l *Leg, cause uint8) {
	s.sendDTAP(ctx, l, &codec.Release{
		Cause:    cause,
		Location: codec.LocationPublicNetworkLocalUser,
	})
	l.CC = CCReleaseRequest
	ctx.StartTimer(l.t308, ctx.Timers.T308)
	s.count(func(st *Stats) { st.ReleasesSent++ })
}

// legCleared ends the call control of a leg: the bearer is given back and
// the mobile is told to leave its channel.
func (s *Switch) legCleared(ctx *node.Context, l *Leg) {
	l.CC = CCNull
	l.releasing = true
	s.releaseTraffic(l)
	s.releaseLeg(ctx, l)
}

// disconnectLeg clears the call at one mobile, whatever point the call
// reached there.
func (s *Switch) disconnectLeg(ctx *node.Context, l *Leg, cause uint8) {
	if l.Role == LegTerm {
		l.Call().t3113.Cancel()
	}

	if !l.Connected() {
		l.cancelTimers()
		l.CC = CCNull

		return
	}

	switch l.CC {
	case CCReleaseRequest, CCDisconnectIndication:
		return
	case CCNull:
		l.cancelTimers()
		if !l.releasing {
			s.legCleared(ctx, l)
		}

		return
	}

	l.cancelTimers()
	s.sendDTAP(ctx, l, &codec.DisconnectByNetwork{
		Cause:             cause,
		Location:          codec.LocationPublicNetworkLocalUser,
		ProgressIndicator: codec.ProgressInBandInfo,
	})
	l.CC = CCDisconnectIndication
	ctx.StartTimer(l.t305, ctx.Timers.T305)
	s.count(func(st *Stats) { st.DisconnectsSent++ })
}

// clearCall disconnects both mobiles of a call and frees the record if
// neither holds a connection.
func (s *Switch) clearCall(ctx *node.Context, c *CallInfo, cause uint8) {
	ctx.Log.Info("clearing call",
		zap.Int("call", c.Index),
		zap.Uint8("cause", cause))

	s.disconnectLeg(ctx, &c.Origin, cause)
	s.disconnectLeg(ctx, &c.Term, cause)
	s.freeCall(ctx, c)
}
