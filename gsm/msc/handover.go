package msc

import (
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/codec"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/gsm/transport"
)

// onHandoverRequired asks the target cell for a channel.
func (s *Switch) onHandoverRequired(
	ctx *node.Context,
	src uint32,
	connID int32,
	msg *codec.HandoverRequired,
) {
	l, ok := s.legByConnection(src, connID)
	if !ok || l.BSID != src || l.ConnectionID != connID {
		s.drop(ctx, "handover required for unknown connection",
			zap.Uint32("bs", src),
			zap.Int32("conn", connID))

		return
	}

	if l.HandoverTrying {
		return
	}

	reject := func(cause uint8) {
		s.count(func(st *Stats) { st.HandoverFailures++ })
		ctx.SendBSSMAP(src, transport.SCCPConnectionReference, connID,
			&codec.HandoverRequiredReject{Cause: cause})
	}

	target, ok := s.cellByID(msg.TargetLAC, msg.TargetCell)
	if !ok || target.NodeID == src {
		ctx.Log.Info("handover target unknown",
			zap.Uint16("lac", msg.TargetLAC),
			zap.Uint16("cell", msg.TargetCell))
		reject(codec.AIFCauseInvalidCell)

		return
	}

	s.nextHandoverID++
	id := s.nextHandoverID
	s.handovers[id] = l

	l.HandoverTrying = true
	l.HandoverBSID = target.NodeID
	l.TempHandoverID = id

	ctx.SendBSSMAP(target.NodeID, transport.SCCPConnectionless,
		transport.NoConnection, &codec.HandoverRequest{
			ServingLAC:          msg.ServingLAC,
			ServingCell:         msg.ServingCell,
			TargetLAC:           msg.TargetLAC,
			TargetCell:          msg.TargetCell,
			Cause:               msg.Cause,
			TrafficConnectionID: l.TrafficConnectionID,
			TempHandoverID:      id,
		})
	ctx.StartTimer(l.t3103, ctx.Timers.T3103)

	ctx.Log.Info("handover started",
		zap.Stringer("imsi", l.IMSI),
		zap.Uint32("from", src),
		zap.Uint32("to", target.NodeID))
}

// onHandoverRequestAck passes the target channel to the mobile through its
// current cell.
func (s *Switch) onHandoverRequestAck(
	ctx *node.Context,
	src uint32,
	connID int32,
	msg *codec.HandoverRequestAck,
) {
	l, ok := s.handovers[msg.TempHandoverID]
	if !ok || !l.HandoverTrying || l.HandoverBSID != src || !l.Connected() {
		s.drop(ctx, "stale handover request ack",
			zap.Int32("id", msg.TempHandoverID))
		s.clearCommand(ctx, src, connID, codec.AIFCauseCallControl)

		if ok && l.HandoverBSID == src {
			s.endHandover(l)
		}

		return
	}

	l.HandoverConnectionID = connID
	ctx.SendBSSMAP(l.BSID, transport.SCCPConnectionReference, l.ConnectionID,
		&codec.HandoverCommand{Command: msg.Command})
}

func (s *Switch) onHandoverFailure(ctx *node.Context, msg *codec.HandoverFailure) {
	l, ok := s.handovers[msg.TempHandoverID]
	if !ok || !l.HandoverTrying {
		return
	}

	s.endHandover(l)
	s.count(func(st *Stats) { st.HandoverFailures++ })
	ctx.Log.Info("handover failed",
		zap.Stringer("imsi", l.IMSI),
		zap.Uint8("cause", msg.Cause))
	ctx.SendBSSMAP(l.BSID, transport.SCCPConnectionReference, l.ConnectionID,
		&codec.HandoverRequiredReject{Cause: msg.Cause})
}

func (s *Switch) onHandoverDetect(ctx *node.Context, src uint32, connID int32) {
	l, ok := s.legByConnection(src, connID)
	if !ok || !l.HandoverTrying {
		return
	}

	ctx.Log.Debug("mobile detected on target cell",
		zap.Stringer("imsi", l.IMSI),
		zap.Uint32("bs", src))
}

// onHandoverComplete makes the target connection the active one and clears
// the source cell.
func (s *Switch) onHandoverComplete(ctx *node.Context, src uint32, connID int32) {
	l, ok := s.legByConnection(src, connID)
	if !ok || !l.HandoverTrying || l.HandoverBSID != src ||
		l.HandoverConnectionID != connID {
		s.drop(ctx, "unexpected handover complete",
			zap.Uint32("bs", src),
			zap.Int32("conn", connID))

		return
	}

	l.t3103.Cancel()
	l.HandoverCompleted = true
	s.count(func(st *Stats) { st.Handovers++ })

	if cell, ok := s.cellByNode(src); ok {
		s.vlr.Update(l.IMSI, src, cell.LAC, cell.CellIdentity)
	}

	s.clearCommand(ctx, l.BSID, l.ConnectionID, codec.AIFCauseHandoverSuccessful)
}

// swapToTarget finishes a handover once the source cell is cleared.
func (s *Switch) swapToTarget(ctx *node.Context, l *Leg) {
	l.BSID = l.HandoverBSID
	l.ConnectionID = l.HandoverConnectionID
	s.endHandover(l)

	ctx.Log.Info("handover done",
		zap.Stringer("imsi", l.IMSI),
		zap.Uint32("bs", l.BSID),
		zap.Int32("conn", l.ConnectionID))
}

// abandonHandover gives up a handover that the mobile never completed and
// clears the channel the target cell reserved for it.
func (s *Switch) abandonHandover(ctx *node.Context, l *Leg) {
	if !l.HandoverTrying || l.HandoverCompleted {
		return
	}

	if l.HandoverConnectionID != transport.NoConnection {
		s.clearCommand(ctx, l.HandoverBSID, l.HandoverConnectionID,
			codec.AIFCauseCallControl)
	}

	ctx.Log.Info("handover abandoned", zap.Stringer("imsi", l.IMSI))
	s.count(func(st *Stats) { st.HandoverFailures++ })
	s.endHandover(l)
}

func (s *Switch) endHandover(l *Leg) {
	if l.TempHandoverID != transport.NoConnection {
		delete(s.handovers, l.TempHandoverID)
	}

	l.clearHandover()
}

func (s *Switch) cellByNode(id uint32) (Cell, bool) {
	for _, c := range s.cfg.Cells {
		if c.NodeID == id {
			return c, true
		}
	}

	return Cell{}, false
}
